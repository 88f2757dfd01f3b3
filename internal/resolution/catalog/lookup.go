package catalog

import (
	"context"
	"log/slog"
	"strings"

	"bundleid/internal/identifier"
	"bundleid/internal/logging"
	"bundleid/internal/records"
	"bundleid/internal/services"
	"bundleid/internal/textutil"
)

// StrategyName is the provenance tag for catalog matches.
const StrategyName = "mac_app_store"

// Lookup is the catalog resolution strategy.
type Lookup struct {
	searcher Searcher
	logger   *slog.Logger
}

// NewLookup wraps a searcher as a strategy.
func NewLookup(searcher Searcher, logger *slog.Logger) *Lookup {
	return &Lookup{searcher: searcher, logger: logging.NewComponentLogger(logger, "catalog")}
}

// Name returns the strategy name.
func (l *Lookup) Name() string { return StrategyName }

// Resolve searches by record name and returns the bundle id of the first
// accepted listing.
func (l *Lookup) Resolve(ctx context.Context, record records.Record) (string, error) {
	if l == nil || l.searcher == nil {
		return "", nil
	}
	name := strings.TrimSpace(record.Name)
	if name == "" {
		return "", nil
	}
	resp, err := l.searcher.Search(ctx, name)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "catalog", "search", "catalog request failed", err)
	}
	match, ok := Match(record, resp.Results)
	if !ok {
		logging.WithContext(ctx, l.logger).Debug("no catalog listing matched",
			logging.Int("result_count", len(resp.Results)))
		return "", nil
	}
	logging.WithContext(ctx, l.logger).Debug("catalog listing matched",
		logging.String("track_name", match.TrackName),
		logging.String("bundle_id", match.BundleID))
	return match.BundleID, nil
}

// Match returns the first result accepted for record. A result is accepted
// when its normalised name equals or contains (or is contained in) the record
// name, or when the record has a publisher contained in the listing's seller.
// Results without a valid bundle id are ignored.
func Match(record records.Record, results []Result) (Result, bool) {
	name := textutil.NormalizeName(record.Name)
	publisher := textutil.NormalizeName(record.Publisher)
	for _, result := range results {
		if !identifier.Valid(strings.TrimSpace(result.BundleID)) {
			continue
		}
		if textutil.Related(name, textutil.NormalizeName(result.TrackName)) {
			result.BundleID = strings.TrimSpace(result.BundleID)
			return result, true
		}
		if publisher == "" {
			continue
		}
		seller := textutil.NormalizeName(result.SellerName)
		if seller == "" {
			seller = textutil.NormalizeName(result.ArtistName)
		}
		if seller != "" && strings.Contains(seller, publisher) {
			result.BundleID = strings.TrimSpace(result.BundleID)
			return result, true
		}
	}
	return Result{}, false
}
