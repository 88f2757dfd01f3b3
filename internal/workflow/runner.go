package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"bundleid/internal/logging"
	"bundleid/internal/records"
	"bundleid/internal/resolution"
	"bundleid/internal/runhistory"
	"bundleid/internal/services"
	"bundleid/internal/session"
	"bundleid/internal/verifycache"
)

// ErrRunInProgress is returned when another process holds the run lock.
var ErrRunInProgress = errors.New("another run holds the verification cache lock")

// Resolver produces identifiers for records.
type Resolver interface {
	Resolve(ctx context.Context, record records.Record) resolution.Result
}

// History receives run progress. Failures are logged and never stop a run.
type History interface {
	BeginRun(ctx context.Context, run runhistory.Run) error
	RecordResolution(ctx context.Context, res runhistory.Resolution) error
	FinishRun(ctx context.Context, run runhistory.Run) error
}

// Options controls one run.
type Options struct {
	Force bool
	// MaxProcessed caps the records that require a lookup. Nil is unbounded.
	MaxProcessed *int
	Delay        time.Duration
	Staleness    time.Duration
	ReportPath   string
	// LockPath defaults to the cache path with a ".lock" suffix.
	LockPath string
}

// Runner executes verification runs.
type Runner struct {
	cache    *verifycache.Store
	resolver Resolver
	history  History
	logger   *slog.Logger
	opts     Options

	now   func() time.Time
	sleep func(context.Context, time.Duration)
	newID func() string
}

// Option customizes a Runner.
type Option func(*Runner)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithSleeper overrides the inter-record delay implementation.
func WithSleeper(sleep func(context.Context, time.Duration)) Option {
	return func(r *Runner) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithHistory records runs into h.
func WithHistory(h History) Option {
	return func(r *Runner) {
		r.history = h
	}
}

// WithRunID fixes the run identifier generator.
func WithRunID(newID func() string) Option {
	return func(r *Runner) {
		if newID != nil {
			r.newID = newID
		}
	}
}

// NewRunner builds a runner over an already loaded cache and a resolver.
func NewRunner(cache *verifycache.Store, resolver Resolver, logger *slog.Logger, opts Options, options ...Option) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Staleness <= 0 {
		opts.Staleness = verifycache.DefaultStaleness
	}
	if opts.LockPath == "" && cache != nil && cache.Path() != "" {
		opts.LockPath = cache.Path() + ".lock"
	}
	r := &Runner{
		cache:    cache,
		resolver: resolver,
		logger:   logging.NewComponentLogger(logger, "workflow"),
		opts:     opts,
		now:      time.Now,
		sleep:    sleepContext,
		newID:    uuid.NewString,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// FromSession builds a runner from a session and its configuration.
func FromSession(s *session.Session, options ...Option) *Runner {
	cfg := s.Config
	opts := Options{
		Force:        cfg.Run.ForceRecheck,
		MaxProcessed: cfg.Run.MaxProcessed,
		Delay:        time.Duration(cfg.Run.InterRecordDelayMS) * time.Millisecond,
		Staleness:    s.Staleness(),
		ReportPath:   cfg.Paths.ReportPath,
	}
	if s.History != nil {
		options = append([]Option{WithHistory(s.History)}, options...)
	}
	return NewRunner(s.Cache, s.Pipeline, s.Logger, opts, options...)
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Run verifies refs in order. Per-record failures are counted and never
// abort the loop. The cache snapshot and unresolved report are written after
// the loop; failing to save the snapshot is returned as an error.
func (r *Runner) Run(ctx context.Context, refs []records.Ref) (Summary, error) {
	if r.cache == nil || r.resolver == nil {
		return Summary{}, services.Wrap(services.ErrConfiguration, "workflow", "run", "cache and resolver are required", nil)
	}

	unlock, err := r.acquireLock()
	if err != nil {
		return Summary{}, err
	}
	defer unlock()

	runID := r.newID()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)

	started := r.now()
	summary := Summary{RunID: runID, StartedAt: started, Total: len(refs), BySource: map[string]int{}}
	limit, limited := 0, r.opts.MaxProcessed != nil
	if limited {
		limit = *r.opts.MaxProcessed
	}

	r.beginHistory(ctx, runID, started, limit, limited)
	logger.Info("verification run started",
		logging.String(logging.FieldEventType, "run_started"),
		logging.Int("records", len(refs)),
		logging.Bool("force", r.opts.Force),
		logging.Int("max_processed", maxProcessedValue(limit, limited)),
		logging.Int("cache_entries", r.cache.Count()))

	for i, ref := range refs {
		if ctx.Err() != nil {
			r.interrupted(logger, &summary, len(refs)-i)
			break
		}

		outcome, stop := r.processRecord(ctx, ref, limit, limited, &summary)
		if stop == stopInterrupted {
			r.interrupted(logger, &summary, len(refs)-i)
			break
		}
		if stop == stopCutoff {
			summary.CutoffReached = true
			logger.Info("processing cutoff reached",
				logging.Args(append(logging.DecisionAttrs("cutoff", "stop", "max processed records reached"),
					logging.Int("processed", summary.Processed),
					logging.Int("remaining", len(refs)-i))...)...)
			break
		}
		summary.count(outcome.outcome)
		r.recordHistory(ctx, runID, ref, outcome)

		if outcome.usedNetwork && r.opts.Delay > 0 && i < len(refs)-1 {
			r.sleep(ctx, r.opts.Delay)
		}
	}

	if !limited && !summary.CutoffReached && !summary.Interrupted {
		r.cache.MarkFullScan(r.now())
	}

	saveErr := r.cache.Save()
	if saveErr != nil {
		saveErr = services.Wrap(services.ErrConfiguration, "workflow", "save cache", r.cache.Path(), saveErr)
		logging.ErrorWithContext(logger, "failed to save verification cache", "cache_save_failed",
			logging.Error(saveErr),
			logging.String(logging.FieldErrorHint, "check permissions on the cache directory"),
			logging.String(logging.FieldImpact, "results of this run are lost; records already rewritten keep their identifier"))
	}

	if r.opts.ReportPath != "" {
		if err := WriteReport(r.opts.ReportPath, summary.Unresolved); err != nil {
			logging.WarnWithContext(logger, "failed to write unresolved report", "report_write_failed",
				logging.Error(err),
				logging.String("path", r.opts.ReportPath),
				logging.String(logging.FieldErrorHint, "check permissions on the report directory"),
				logging.String(logging.FieldImpact, "unresolved records are only listed in the cache"))
		}
	}

	summary.Duration = r.now().Sub(started)
	r.finishHistory(ctx, summary, saveErr)

	logger.Info("verification run finished",
		logging.String(logging.FieldEventType, "run_finished"),
		logging.Int("processed", summary.Processed),
		logging.Int("updated", summary.Updated),
		logging.Int("verified", summary.Verified),
		logging.Int("synced", summary.Synced),
		logging.Int("unknown", summary.Unknown),
		logging.Int("skipped", summary.Skipped),
		logging.Int("errored", summary.Errored),
		logging.Bool("cutoff_reached", summary.CutoffReached),
		logging.Duration("duration", summary.Duration))

	return summary, saveErr
}

func (r *Runner) interrupted(logger *slog.Logger, summary *Summary, remaining int) {
	summary.Interrupted = true
	logging.WarnWithContext(logger, "run interrupted", "run_interrupted",
		logging.Int("remaining", remaining),
		logging.String(logging.FieldErrorHint, "re-run to continue; completed records are cached"),
		logging.String(logging.FieldImpact, "remaining records were not checked"))
}

func (r *Runner) acquireLock() (func(), error) {
	if r.opts.LockPath == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(r.opts.LockPath), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "workflow", "create cache directory", filepath.Dir(r.opts.LockPath), err)
	}
	lock := flock.New(r.opts.LockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrRunInProgress, r.opts.LockPath)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("failed to release run lock",
				logging.Error(err),
				logging.String("path", r.opts.LockPath))
		}
	}, nil
}

func maxProcessedValue(limit int, limited bool) int {
	if !limited {
		return -1
	}
	return limit
}
