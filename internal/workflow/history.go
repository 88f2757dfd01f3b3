package workflow

import (
	"context"
	"time"

	"bundleid/internal/logging"
	"bundleid/internal/records"
	"bundleid/internal/runhistory"
)

func (r *Runner) beginHistory(ctx context.Context, runID string, started time.Time, limit int, limited bool) {
	if r.history == nil {
		return
	}
	err := r.history.BeginRun(ctx, runhistory.Run{
		ID:           runID,
		StartedAt:    started,
		Force:        r.opts.Force,
		MaxProcessed: maxProcessedValue(limit, limited),
	})
	if err != nil {
		r.warnHistory(ctx, "begin run", err)
	}
}

func (r *Runner) recordHistory(ctx context.Context, runID string, ref records.Ref, s step) {
	if r.history == nil || s.outcome == OutcomeSkipped {
		return
	}
	err := r.history.RecordResolution(ctx, runhistory.Resolution{
		RunID:              runID,
		RecordKey:          ref.Key,
		Name:               s.name,
		Outcome:            s.outcome,
		Identifier:         s.identifier,
		PreviousIdentifier: s.previous,
		Source:             s.source,
		MethodsTried:       s.methods,
		RecordedAt:         r.now(),
	})
	if err != nil {
		r.warnHistory(ctx, "record resolution", err)
	}
}

func (r *Runner) finishHistory(ctx context.Context, summary Summary, runErr error) {
	if r.history == nil {
		return
	}
	run := runhistory.Run{
		ID:         summary.RunID,
		FinishedAt: r.now(),
		Status:     runhistory.StatusCompleted,
		Counts: runhistory.Counts{
			Processed: summary.Processed,
			Updated:   summary.Updated,
			Verified:  summary.Verified,
			Synced:    summary.Synced,
			Unknown:   summary.Unknown,
			Skipped:   summary.Skipped,
			Errored:   summary.Errored,
		},
		CutoffReached: summary.CutoffReached,
	}
	if runErr != nil {
		run.Status = runhistory.StatusFailed
		run.Error = runErr.Error()
	}
	if err := r.history.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		r.warnHistory(ctx, "finish run", err)
	}
}

func (r *Runner) warnHistory(ctx context.Context, op string, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, r.logger), "run history write failed", "history_write_failed",
		logging.Error(err),
		logging.String("operation", op),
		logging.String(logging.FieldErrorHint, "check the history database path"),
		logging.String(logging.FieldImpact, "run history is incomplete; verification results are unaffected"))
}
