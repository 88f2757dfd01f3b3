package workflow

import (
	"context"
	"log/slog"
	"strings"

	"bundleid/internal/identifier"
	"bundleid/internal/logging"
	"bundleid/internal/records"
	"bundleid/internal/services"
	"bundleid/internal/verifycache"
)

// step is what happened to one record.
type step struct {
	key         string
	name        string
	outcome     string
	identifier  string
	previous    string
	source      string
	methods     []string
	usedNetwork bool
}

// stopReason tells the run loop why it must end before the next record.
type stopReason int

const (
	keepGoing stopReason = iota
	stopCutoff
	stopInterrupted
)

// processRecord handles one record. It leaves the record and its cache entry
// untouched when the cutoff is exhausted or when ctx ends before resolution
// produced an identifier.
func (r *Runner) processRecord(ctx context.Context, ref records.Ref, limit int, limited bool, summary *Summary) (step, stopReason) {
	ctx = services.WithRecordKey(ctx, ref.Key)
	logger := logging.WithContext(ctx, r.logger)
	result := step{key: ref.Key, outcome: OutcomeErrored}

	rec, err := records.Load(ref)
	if err != nil {
		logging.WarnWithContext(logger, "record could not be loaded", "record_load_failed",
			logging.Error(err),
			logging.String("path", ref.Path),
			logging.String(logging.FieldErrorHint, "fix the record file; its cache entry was left untouched"),
			logging.String(logging.FieldImpact, "record skipped for this run"))
		return result, keepGoing
	}
	result.name = rec.Name
	current := rec.Identifier

	var entry *verifycache.Entry
	if cached, ok := r.cache.Lookup(rec.Key); ok {
		entry = &cached
	}
	now := r.now()
	decision := verifycache.Decide(entry, current, r.opts.Force, now, r.opts.Staleness)

	switch {
	case decision.NeedsSync:
		err := r.cache.Write(rec.Key, verifycache.Entry{
			LastCheckedAt: now.UTC(),
			Identifier:    stringPtr(current),
			Status:        verifycache.StatusVerified,
			Source:        stringPtr(verifycache.SourceFile),
		})
		if err != nil {
			r.warnCacheWrite(logger, err)
			return result, keepGoing
		}
		logger.Debug("cache synced from record",
			logging.Args(logging.DecisionAttrs("cache_action", OutcomeSynced, decision.Reason)...)...)
		result.outcome = OutcomeSynced
		result.identifier = current
		result.source = verifycache.SourceFile
		return result, keepGoing

	case !decision.NeedsAPI:
		logger.Debug("record skipped",
			logging.Args(logging.DecisionAttrs("cache_action", OutcomeSkipped, decision.Reason)...)...)
		result.outcome = OutcomeSkipped
		return result, keepGoing
	}

	if limited && summary.Processed >= limit {
		return result, stopCutoff
	}
	summary.Processed++

	logger.Info("resolving identifier",
		logging.Args(append(logging.DecisionAttrs("cache_action", "resolve", decision.Reason),
			logging.String("name", rec.Name),
			logging.String("current_identifier", current))...)...)

	resolved := r.resolver.Resolve(ctx, rec)
	if !resolved.Resolved() && ctx.Err() != nil {
		summary.Processed--
		logger.Info("resolution abandoned",
			logging.Args(append(logging.DecisionAttrs("cache_action", "leave", "run interrupted before a result"),
				logging.String("methods_tried", strings.Join(resolved.MethodsTried, ",")))...)...)
		return result, stopInterrupted
	}
	result.methods = resolved.MethodsTried
	result.usedNetwork = resolved.UsedNetwork
	checkedAt := r.now().UTC()

	if !resolved.Resolved() {
		summary.Unresolved = append(summary.Unresolved, Unresolved{
			Key:               rec.Key,
			Name:              rec.Name,
			CurrentIdentifier: optionalString(current),
			MethodsTried:      append([]string{}, resolved.MethodsTried...),
		})
		err := r.cache.Write(rec.Key, verifycache.Entry{
			LastCheckedAt: checkedAt,
			Identifier:    validOrNil(current),
			Status:        verifycache.StatusUnknown,
			MethodsTried:  resolved.MethodsTried,
		})
		if err != nil {
			r.warnCacheWrite(logger, err)
			return result, keepGoing
		}
		result.outcome = OutcomeUnknown
		result.identifier = current
		return result, keepGoing
	}

	result.identifier = resolved.Identifier
	result.source = resolved.Source
	summary.credit(resolved.Source)

	if resolved.Identifier == current {
		err := r.cache.Write(rec.Key, verifycache.Entry{
			LastCheckedAt: checkedAt,
			Identifier:    stringPtr(resolved.Identifier),
			Status:        verifycache.StatusVerified,
			Source:        stringPtr(resolved.Source),
			MethodsTried:  resolved.MethodsTried,
		})
		if err != nil {
			r.warnCacheWrite(logger, err)
			return result, keepGoing
		}
		result.outcome = OutcomeVerified
		return result, keepGoing
	}

	if err := records.SetIdentifier(rec.Path, resolved.Identifier); err != nil {
		logging.WarnWithContext(logger, "failed to rewrite record", "record_write_failed",
			logging.Error(err),
			logging.String("path", rec.Path),
			logging.String("identifier", resolved.Identifier),
			logging.String(logging.FieldErrorHint, "check permissions on the records directory"),
			logging.String(logging.FieldImpact, "record keeps its old identifier and is retried next run"))
		return result, keepGoing
	}
	err = r.cache.Write(rec.Key, verifycache.Entry{
		LastCheckedAt:      checkedAt,
		Identifier:         stringPtr(resolved.Identifier),
		Status:             verifycache.StatusUpdated,
		Source:             stringPtr(resolved.Source),
		MethodsTried:       resolved.MethodsTried,
		PreviousIdentifier: current,
	})
	if err != nil {
		r.warnCacheWrite(logger, err)
		return result, keepGoing
	}
	logger.Info("record identifier updated",
		logging.String(logging.FieldEventType, "record_updated"),
		logging.String("previous_identifier", current),
		logging.String("identifier", resolved.Identifier),
		logging.String("source", resolved.Source))
	result.outcome = OutcomeUpdated
	result.previous = current
	return result, keepGoing
}

func (r *Runner) warnCacheWrite(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "cache entry rejected", "cache_write_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "the resolved identifier failed validation"),
		logging.String(logging.FieldImpact, "record counted as errored; its previous entry is kept"))
}

func stringPtr(value string) *string {
	v := value
	return &v
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return stringPtr(value)
}

// validOrNil keeps a record's own identifier on an unknown entry only when it
// would be accepted as a persisted identifier.
func validOrNil(value string) *string {
	if !identifier.Valid(value) {
		return nil
	}
	return stringPtr(value)
}
