package codesearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bundleid/internal/identifier"
	"bundleid/internal/logging"
	"bundleid/internal/plistinfo"
	"bundleid/internal/records"
	"bundleid/internal/services"
	"bundleid/internal/textutil"
)

// StrategyName is the provenance tag for code search matches.
const StrategyName = "github_search"

// DefaultMaxFiles is how many search hits are read per record.
const DefaultMaxFiles = 3

// Lookup is the code search resolution strategy.
type Lookup struct {
	client   *Client
	maxFiles int
	logger   *slog.Logger
}

// NewLookup wraps client as a strategy reading at most maxFiles hits.
func NewLookup(client *Client, maxFiles int, logger *slog.Logger) *Lookup {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	return &Lookup{client: client, maxFiles: maxFiles, logger: logging.NewComponentLogger(logger, "codesearch")}
}

// Name returns the strategy name.
func (l *Lookup) Name() string { return StrategyName }

// Resolve searches Info.plist files mentioning the record name.
func (l *Lookup) Resolve(ctx context.Context, record records.Record) (string, error) {
	if l == nil || !l.client.Configured() {
		return "", nil
	}
	name := strings.TrimSpace(record.Name)
	if name == "" {
		return "", nil
	}
	logger := logging.WithContext(ctx, l.logger)

	query := fmt.Sprintf("%q filename:Info.plist", name)
	items, err := l.client.SearchCode(ctx, query, l.maxFiles)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "codesearch", "search", "code search failed", err)
	}
	if len(items) > l.maxFiles {
		items = items[:l.maxFiles]
	}

	normalizedName := textutil.NormalizeName(name)
	for _, item := range items {
		content, err := l.client.RawContent(ctx, item.URL)
		if err != nil {
			var rateErr *RateLimitError
			if errors.As(err, &rateErr) {
				return "", services.Wrap(services.ErrExternalTool, "codesearch", "fetch", "rate limited", err)
			}
			logger.Debug("skipping unreadable search hit",
				logging.String("repository", item.Repository.FullName),
				logging.String("path", item.Path),
				logging.Error(err))
			continue
		}
		candidate, ok := plistinfo.FindBundleIdentifier(content)
		if !ok || !identifier.Valid(candidate) {
			continue
		}
		if !RelatedToName(candidate, normalizedName) {
			logger.Debug("skipping unrelated bundle identifier",
				logging.String("candidate", candidate),
				logging.String("repository", item.Repository.FullName))
			continue
		}
		logger.Debug("code search hit accepted",
			logging.String("candidate", candidate),
			logging.String("repository", item.Repository.FullName),
			logging.String("path", item.Path))
		return candidate, nil
	}
	return "", nil
}

// RelatedToName reports whether the normalised candidate, or its final dot
// segment, contains or is contained in normalizedName.
func RelatedToName(candidate, normalizedName string) bool {
	if textutil.Related(textutil.NormalizeName(candidate), normalizedName) {
		return true
	}
	return textutil.Related(textutil.NormalizeName(textutil.LastSegment(candidate)), normalizedName)
}
