// Package session assembles the per-run object graph from configuration: the
// verification cache snapshot, the override registry, the strategy clients
// and the resolution pipeline. Nothing here is global; each run builds its
// own Session and hands it to the workflow runner.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"bundleid/internal/config"
	"bundleid/internal/logging"
	"bundleid/internal/overrides"
	"bundleid/internal/resolution"
	"bundleid/internal/runhistory"
	"bundleid/internal/services"
	"bundleid/internal/verifycache"
)

// Session holds everything one run needs.
type Session struct {
	Config    *config.Config
	Logger    *slog.Logger
	Cache     *verifycache.Store
	Overrides *overrides.Registry
	Pipeline  *resolution.Pipeline
	// History is nil when the database could not be opened.
	History *runhistory.Store
}

// Option customizes session construction.
type Option func(*builder)

type builder struct {
	httpClient  *http.Client
	extra       map[string]resolution.Strategy
	skipHistory bool
}

// WithHTTPClient routes every strategy client through client.
func WithHTTPClient(client *http.Client) Option {
	return func(b *builder) {
		b.httpClient = client
	}
}

// WithStrategy replaces the strategy built for its name. Used by tests and
// dry runs that need a canned answer at a fixed position in the order.
func WithStrategy(strategy resolution.Strategy) Option {
	return func(b *builder) {
		if strategy == nil {
			return
		}
		if b.extra == nil {
			b.extra = map[string]resolution.Strategy{}
		}
		b.extra[strategy.Name()] = strategy
	}
}

// WithoutHistory skips opening the run history database.
func WithoutHistory() Option {
	return func(b *builder) {
		b.skipHistory = true
	}
}

// New builds a session. Failing to load a malformed overrides file is fatal;
// an unreadable cache snapshot or history database only logs a warning.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "session", "new", "config is required", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	b := &builder{}
	for _, opt := range opts {
		opt(b)
	}

	registry, err := overrides.Load(cfg.Paths.OverridesPath, logger)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "session", "load overrides", cfg.Paths.OverridesPath, err)
	}

	strategies, err := buildStrategies(ctx, cfg, logger, b)
	if err != nil {
		return nil, err
	}

	s := &Session{
		Config:    cfg,
		Logger:    logger,
		Cache:     verifycache.Open(cfg.Paths.CachePath, logger),
		Overrides: registry,
		Pipeline:  resolution.NewPipeline(logger, registry, strategies...),
	}

	if !b.skipHistory && cfg.Paths.HistoryDB != "" {
		history, err := runhistory.Open(cfg.Paths.HistoryDB)
		if err != nil {
			logging.WarnWithContext(logger, "run history unavailable", "history_open_failed",
				logging.Error(err),
				logging.String("path", cfg.Paths.HistoryDB),
				logging.String(logging.FieldErrorHint, "delete the history database if the schema changed"),
				logging.String(logging.FieldImpact, "this run will not be recorded in history"))
		} else {
			s.History = history
		}
	}

	logger.Info("session ready",
		logging.String(logging.FieldEventType, "session_ready"),
		logging.Int("cache_entries", s.Cache.Count()),
		logging.Int("overrides", registry.Len()),
		logging.Any("strategies", s.Pipeline.StrategyNames()),
	)
	return s, nil
}

// Staleness returns the configured staleness window.
func (s *Session) Staleness() time.Duration {
	if s == nil || s.Config == nil || s.Config.Run.StalenessDays <= 0 {
		return verifycache.DefaultStaleness
	}
	return time.Duration(s.Config.Run.StalenessDays) * 24 * time.Hour
}

// Close releases the history database.
func (s *Session) Close() error {
	if s == nil || s.History == nil {
		return nil
	}
	err := s.History.Close()
	s.History = nil
	if err != nil {
		return fmt.Errorf("close history: %w", err)
	}
	return nil
}
