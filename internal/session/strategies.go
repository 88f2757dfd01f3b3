package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bundleid/internal/config"
	"bundleid/internal/resolution"
	"bundleid/internal/resolution/archive"
	"bundleid/internal/resolution/assisted"
	"bundleid/internal/resolution/catalog"
	"bundleid/internal/resolution/codesearch"
	"bundleid/internal/resolution/homebrew"
	"bundleid/internal/services"
	"bundleid/internal/services/gemini"
	"bundleid/internal/services/llm"
)

const userAgent = "bundleid"

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// buildStrategies constructs the configured strategies in order. Strategies
// whose credentials are missing are still built; they decline at resolve time.
func buildStrategies(ctx context.Context, cfg *config.Config, logger *slog.Logger, b *builder) ([]resolution.Strategy, error) {
	var completer assisted.Completer
	strategies := make([]resolution.Strategy, 0, len(cfg.Resolution.Strategies))
	for _, name := range cfg.Resolution.Strategies {
		if replacement, ok := b.extra[name]; ok {
			strategies = append(strategies, replacement)
			continue
		}

		switch name {
		case config.StrategyMacAppStore:
			var opts []catalog.Option
			if b.httpClient != nil {
				opts = append(opts, catalog.WithHTTPClient(b.httpClient))
			}
			client, err := catalog.New(cfg.Catalog.BaseURL, cfg.Catalog.Country, cfg.Catalog.Limit, seconds(cfg.Catalog.TimeoutSeconds), opts...)
			if err != nil {
				return nil, services.Wrap(services.ErrConfiguration, "session", "catalog client", "", err)
			}
			strategies = append(strategies, catalog.NewLookup(client, logger))

		case config.StrategyPkgInspection:
			var opts []archive.Option
			if b.httpClient != nil {
				opts = append(opts, archive.WithHTTPClient(b.httpClient))
			}
			strategies = append(strategies, archive.New(archive.Config{
				WorkspaceDir: cfg.Paths.WorkspaceDir,
				MaxBytes:     cfg.Archive.MaxBytes,
				Timeout:      seconds(cfg.Archive.TimeoutSeconds),
				PlistParser:  cfg.Archive.PlistParser,
				UserAgent:    userAgent,
			}, logger, opts...))

		case config.StrategyGitHubSearch:
			opts := []codesearch.ClientOption{
				codesearch.WithBaseURL(cfg.GitHub.BaseURL),
				codesearch.WithUserAgent(userAgent),
			}
			if b.httpClient != nil {
				opts = append(opts, codesearch.WithHTTPClient(b.httpClient))
			}
			client := codesearch.NewClient(cfg.GitHub.Token, seconds(cfg.GitHub.TimeoutSeconds), opts...)
			strategies = append(strategies, codesearch.NewLookup(client, cfg.GitHub.MaxFiles, logger))

		case config.StrategyAISearch, config.StrategyAISearchConcise:
			if completer == nil {
				built, err := buildCompleter(ctx, cfg.LLM, b)
				if err != nil {
					return nil, err
				}
				completer = built
			}
			variant := assisted.DetailedVariant
			if name == config.StrategyAISearchConcise {
				variant = assisted.ConciseVariant
			}
			strategies = append(strategies, assisted.NewLookup(variant, completer, logger))

		case config.StrategyHomebrewCask:
			var opts []homebrew.Option
			if b.httpClient != nil {
				opts = append(opts, homebrew.WithHTTPClient(b.httpClient))
			}
			client, err := homebrew.New(cfg.Homebrew.BaseURL, seconds(cfg.Homebrew.TimeoutSeconds), opts...)
			if err != nil {
				return nil, services.Wrap(services.ErrConfiguration, "session", "homebrew client", "", err)
			}
			strategies = append(strategies, homebrew.NewLookup(client, logger))

		default:
			return nil, services.Wrap(services.ErrConfiguration, "session", "build strategies",
				fmt.Sprintf("unknown strategy %q", name), nil)
		}
	}
	return strategies, nil
}

// buildCompleter returns the model backend selected by llm.provider. The
// returned completer reports itself unconfigured when no key is set.
func buildCompleter(ctx context.Context, cfg config.LLM, b *builder) (assisted.Completer, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		var opts []gemini.Option
		if b.httpClient != nil {
			opts = append(opts, gemini.WithHTTPClient(b.httpClient))
		}
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			GoogleSearch:   cfg.WebSearch,
			TimeoutSeconds: cfg.TimeoutSeconds,
		}, opts...)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "session", "gemini client", "", err)
		}
		return client, nil
	default:
		var opts []llm.Option
		if b.httpClient != nil {
			opts = append(opts, llm.WithHTTPClient(b.httpClient))
		}
		return llm.NewClient(llm.Config{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			Referer:        cfg.Referer,
			Title:          cfg.Title,
			WebSearch:      cfg.WebSearch,
			TimeoutSeconds: cfg.TimeoutSeconds,
		}, opts...), nil
	}
}
