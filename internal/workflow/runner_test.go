package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/go-cmp/cmp"

	"bundleid/internal/config"
	"bundleid/internal/logging"
	"bundleid/internal/overrides"
	"bundleid/internal/records"
	"bundleid/internal/resolution"
	"bundleid/internal/runhistory"
	"bundleid/internal/session"
	"bundleid/internal/testsupport"
	"bundleid/internal/verifycache"
	"bundleid/internal/workflow"
)

type fixture struct {
	dir        string
	cachePath  string
	reportPath string
	now        time.Time
	calls      map[string]int
	sleeps     []time.Duration
	mu         sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	return &fixture{
		dir:        dir,
		cachePath:  filepath.Join(dir, "cache", "verification_cache.json"),
		reportPath: filepath.Join(dir, "unresolved.json"),
		now:        time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		calls:      map[string]int{},
	}
}

func (f *fixture) recordsDir() string {
	return filepath.Join(f.dir, "records")
}

// strategy returns a canned strategy that answers from table by record name.
func (f *fixture) strategy(name string, table map[string]string) resolution.Strategy {
	return resolution.StrategyFunc{
		StrategyName: name,
		Fn: func(_ context.Context, rec records.Record) (string, error) {
			f.mu.Lock()
			f.calls[name]++
			f.mu.Unlock()
			return table[rec.Name], nil
		},
	}
}

func (f *fixture) runner(t *testing.T, pipeline *resolution.Pipeline, opts workflow.Options, extra ...workflow.Option) (*workflow.Runner, *verifycache.Store) {
	t.Helper()
	cache := verifycache.Open(f.cachePath, logging.NewNop())
	if opts.ReportPath == "" {
		opts.ReportPath = f.reportPath
	}
	if opts.Delay == 0 {
		opts.Delay = time.Second
	}
	options := append([]workflow.Option{
		workflow.WithClock(func() time.Time { return f.now }),
		workflow.WithSleeper(func(_ context.Context, d time.Duration) { f.sleeps = append(f.sleeps, d) }),
	}, extra...)
	return workflow.NewRunner(cache, pipeline, logging.NewNop(), opts, options...), cache
}

func (f *fixture) refs(t *testing.T) []records.Ref {
	t.Helper()
	refs, err := records.Discover(f.recordsDir())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	return refs
}

func TestRunUpdatesFigmaFromCatalog(t *testing.T) {
	f := newFixture(t)
	ref := testsupport.WriteRecord(t, f.recordsDir(), "figma", map[string]any{
		"name":       "Figma",
		"identifier": nil,
		"category":   "Design",
	})
	pipeline := resolution.NewPipeline(logging.NewNop(), nil,
		f.strategy("mac_app_store", map[string]string{"Figma": "com.figma.Desktop"}),
		f.strategy("pkg_inspection", nil),
	)
	runner, cache := f.runner(t, pipeline, workflow.Options{})

	summary, err := runner.Run(context.Background(), f.refs(t))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Updated != 1 || summary.Processed != 1 || summary.BySource["mac_app_store"] != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if f.calls["pkg_inspection"] != 0 {
		t.Fatal("expected pipeline to stop after the catalog match")
	}

	entry, ok := cache.Lookup("figma")
	if !ok {
		t.Fatal("expected cache entry for figma")
	}
	if entry.Status != verifycache.StatusUpdated || entry.SourceValue() != "mac_app_store" || entry.IdentifierValue() != "com.figma.Desktop" {
		t.Fatalf("unexpected cache entry %+v", entry)
	}
	if diff := cmp.Diff([]string{"mac_app_store"}, entry.MethodsTried); diff != "" {
		t.Fatalf("methods tried mismatch (-want +got):\n%s", diff)
	}

	rec := testsupport.ReadRecord(t, ref)
	if rec.Identifier != "com.figma.Desktop" || rec.Category != "Design" {
		t.Fatalf("unexpected rewritten record %+v", rec)
	}

	reloaded := verifycache.Open(f.cachePath, logging.NewNop())
	if got, _ := reloaded.Lookup("figma"); got.IdentifierValue() != "com.figma.Desktop" {
		t.Fatalf("expected snapshot saved to disk, got %+v", got)
	}
	if len(f.sleeps) != 0 {
		t.Fatalf("expected no delay after the last record, got %v", f.sleeps)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(t)
	testsupport.WriteRecord(t, f.recordsDir(), "figma", map[string]any{"name": "Figma"})
	testsupport.WriteRecord(t, f.recordsDir(), "safari", map[string]any{"name": "Safari", "identifier": "com.apple.Safari"})
	testsupport.WriteRecord(t, f.recordsDir(), "obscure", map[string]any{"name": "Obscure Tool"})
	testsupport.WriteRecord(t, f.recordsDir(), "slack", map[string]any{"name": "Slack", "identifier": "com.tinyspeck.slackmacgap"})

	table := map[string]string{"Figma": "com.figma.Desktop"}
	newPipeline := func() *resolution.Pipeline {
		return resolution.NewPipeline(logging.NewNop(), nil, f.strategy("mac_app_store", table))
	}

	first, cache := f.runner(t, newPipeline(), workflow.Options{})
	summary, err := first.Run(context.Background(), f.refs(t))
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if summary.Updated != 1 || summary.Synced != 2 || summary.Unknown != 1 {
		t.Fatalf("unexpected first summary %+v", summary)
	}
	firstSnapshot := cache.Snapshot()
	if firstSnapshot.LastFullScan == nil {
		t.Fatal("expected full scan timestamp after uncapped run")
	}

	f.now = f.now.Add(time.Hour)
	callsBefore := f.calls["mac_app_store"]
	second, cache2 := f.runner(t, newPipeline(), workflow.Options{})
	summary, err = second.Run(context.Background(), f.refs(t))
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if summary.Updated != 0 || summary.Processed != 0 || summary.Skipped != 4 {
		t.Fatalf("unexpected second summary %+v", summary)
	}
	if f.calls["mac_app_store"] != callsBefore {
		t.Fatal("expected no lookups on the second run")
	}
	if diff := cmp.Diff(firstSnapshot, cache2.Snapshot()); diff != "" {
		t.Fatalf("snapshot changed between runs (-first +second):\n%s", diff)
	}
}

func TestRunRecordsUnknownAndReport(t *testing.T) {
	f := newFixture(t)
	testsupport.WriteRecord(t, f.recordsDir(), "broken-id", map[string]any{"name": "Broken", "identifier": "not valid"})
	pipeline := resolution.NewPipeline(logging.NewNop(), nil,
		f.strategy("mac_app_store", nil),
		f.strategy("github_search", nil),
	)
	runner, cache := f.runner(t, pipeline, workflow.Options{})

	summary, err := runner.Run(context.Background(), f.refs(t))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Unknown != 1 {
		t.Fatalf("expected one unknown, got %+v", summary)
	}

	entry, _ := cache.Lookup("broken-id")
	if entry.Status != verifycache.StatusUnknown || entry.Identifier != nil || entry.Source != nil {
		t.Fatalf("unexpected unknown entry %+v", entry)
	}

	data, err := os.ReadFile(f.reportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var report []workflow.Unresolved
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	current := "not valid"
	want := []workflow.Unresolved{{
		Key:               "broken-id",
		Name:              "Broken",
		CurrentIdentifier: &current,
		MethodsTried:      []string{"mac_app_store", "github_search"},
	}}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestInterruptedLookupLeavesCacheUntouched(t *testing.T) {
	f := newFixture(t)
	testsupport.WriteRecord(t, f.recordsDir(), "a-done", map[string]any{"name": "Done"})
	testsupport.WriteRecord(t, f.recordsDir(), "b-cut", map[string]any{"name": "Cut"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cancelling := resolution.StrategyFunc{
		StrategyName: "mac_app_store",
		Fn: func(ctx context.Context, rec records.Record) (string, error) {
			if rec.Name == "Cut" {
				cancel()
				return "", ctx.Err()
			}
			return "", nil
		},
	}
	pipeline := resolution.NewPipeline(logging.NewNop(), nil, cancelling, f.strategy("pkg_inspection", nil))
	runner, cache := f.runner(t, pipeline, workflow.Options{})

	summary, err := runner.Run(ctx, f.refs(t))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !summary.Interrupted || summary.Unknown != 1 || summary.Processed != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if f.calls["pkg_inspection"] != 1 {
		t.Fatalf("expected pkg_inspection only for the first record, got %d calls", f.calls["pkg_inspection"])
	}
	if _, ok := cache.Lookup("b-cut"); ok {
		t.Fatal("expected interrupted record to stay out of the cache")
	}
	if cache.Snapshot().LastFullScan != nil {
		t.Fatal("expected an interrupted run to leave lastFullScan unset")
	}

	reloaded := verifycache.Open(f.cachePath, logging.NewNop())
	if _, ok := reloaded.Lookup("b-cut"); ok {
		t.Fatal("expected saved snapshot without the interrupted record")
	}
	if entry, ok := reloaded.Lookup("a-done"); !ok || entry.Status != verifycache.StatusUnknown {
		t.Fatalf("expected completed record to be saved, got %+v", entry)
	}
}

func TestUnknownEntryRetriedAfterStaleness(t *testing.T) {
	f := newFixture(t)
	testsupport.WriteRecord(t, f.recordsDir(), "obscure", map[string]any{"name": "Obscure"})
	pipeline := resolution.NewPipeline(logging.NewNop(), nil, f.strategy("mac_app_store", nil))

	runner, _ := f.runner(t, pipeline, workflow.Options{})
	if _, err := runner.Run(context.Background(), f.refs(t)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	f.now = f.now.Add(89 * 24 * time.Hour)
	runner, _ = f.runner(t, pipeline, workflow.Options{})
	summary, err := runner.Run(context.Background(), f.refs(t))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Skipped != 1 {
		t.Fatalf("expected fresh unknown entry to be skipped, got %+v", summary)
	}

	f.now = f.now.Add(2 * 24 * time.Hour)
	runner, _ = f.runner(t, pipeline, workflow.Options{})
	summary, err = runner.Run(context.Background(), f.refs(t))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Processed != 1 || summary.Unknown != 1 {
		t.Fatalf("expected stale entry to be retried, got %+v", summary)
	}
}

func TestOverrideBypassesStrategiesAndDelay(t *testing.T) {
	f := newFixture(t)
	testsupport.WriteRecord(t, f.recordsDir(), "a-custom", map[string]any{"name": "Custom"})
	testsupport.WriteRecord(t, f.recordsDir(), "b-other", map[string]any{"name": "Other"})

	overridesPath := filepath.Join(f.dir, "overrides.json")
	if err := os.WriteFile(overridesPath, []byte(`{"overrides":{"a-custom":"com.example.custom"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	registry, err := overrides.Load(overridesPath, logging.NewNop())
	if err != nil {
		t.Fatalf("load overrides: %v", err)
	}
	pipeline := resolution.NewPipeline(logging.NewNop(), registry, f.strategy("mac_app_store", nil))
	runner, cache := f.runner(t, pipeline, workflow.Options{})

	summary, err := runner.Run(context.Background(), f.refs(t))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.BySource[resolution.SourceOverride] != 1 || f.calls["mac_app_store"] != 1 {
		t.Fatalf("unexpected summary %+v calls=%v", summary, f.calls)
	}
	entry, _ := cache.Lookup("a-custom")
	if entry.SourceValue() != resolution.SourceOverride || strings.Join(entry.MethodsTried, ",") != "override" {
		t.Fatalf("unexpected override entry %+v", entry)
	}
	if len(f.sleeps) != 0 {
		t.Fatalf("expected no delay after an override hit, got %v", f.sleeps)
	}
}

func TestDelayAfterNetworkRecords(t *testing.T) {
	f := newFixture(t)
	for _, key := range []string{"a", "b", "c"} {
		testsupport.WriteRecord(t, f.recordsDir(), key, map[string]any{"name": strings.ToUpper(key)})
	}
	pipeline := resolution.NewPipeline(logging.NewNop(), nil, f.strategy("mac_app_store", nil))
	runner, _ := f.runner(t, pipeline, workflow.Options{Delay: 250 * time.Millisecond})

	if _, err := runner.Run(context.Background(), f.refs(t)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if diff := cmp.Diff([]time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, f.sleeps); diff != "" {
		t.Fatalf("sleep mismatch (-want +got):\n%s", diff)
	}
}

func TestCutoffCountsOnlyLookups(t *testing.T) {
	f := newFixture(t)
	testsupport.WriteRecord(t, f.recordsDir(), "a-synced", map[string]any{"name": "Synced", "identifier": "com.example.synced"})
	testsupport.WriteRecord(t, f.recordsDir(), "b-first", map[string]any{"name": "First"})
	testsupport.WriteRecord(t, f.recordsDir(), "c-second", map[string]any{"name": "Second"})
	pipeline := resolution.NewPipeline(logging.NewNop(), nil, f.strategy("mac_app_store", nil))

	limit := 1
	runner, cache := f.runner(t, pipeline, workflow.Options{MaxProcessed: &limit})
	summary, err := runner.Run(context.Background(), f.refs(t))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !summary.CutoffReached || summary.Processed != 1 || summary.Synced != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if _, ok := cache.Lookup("c-second"); ok {
		t.Fatal("expected record beyond the cutoff to be untouched")
	}
	if cache.Snapshot().LastFullScan != nil {
		t.Fatal("expected capped run to leave lastFullScan unset")
	}
}

func TestMalformedRecordCountsAsErrored(t *testing.T) {
	f := newFixture(t)
	if err := os.MkdirAll(f.recordsDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(f.recordsDir(), "a-bad.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	testsupport.WriteRecord(t, f.recordsDir(), "b-good", map[string]any{"name": "Figma"})
	pipeline := resolution.NewPipeline(logging.NewNop(), nil,
		f.strategy("mac_app_store", map[string]string{"Figma": "com.figma.Desktop"}))
	runner, cache := f.runner(t, pipeline, workflow.Options{})

	summary, err := runner.Run(context.Background(), f.refs(t))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Errored != 1 || summary.Updated != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if _, ok := cache.Lookup("a-bad"); ok {
		t.Fatal("expected no cache entry for malformed record")
	}
}

func TestForceRechecksVerifiedRecords(t *testing.T) {
	f := newFixture(t)
	testsupport.WriteRecord(t, f.recordsDir(), "safari", map[string]any{"name": "Safari", "identifier": "com.apple.Safari"})
	pipeline := resolution.NewPipeline(logging.NewNop(), nil,
		f.strategy("mac_app_store", map[string]string{"Safari": "com.apple.Safari"}))

	runner, cache := f.runner(t, pipeline, workflow.Options{Force: true})
	summary, err := runner.Run(context.Background(), f.refs(t))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Verified != 1 {
		t.Fatalf("expected verified outcome, got %+v", summary)
	}
	entry, _ := cache.Lookup("safari")
	if entry.Status != verifycache.StatusVerified || entry.SourceValue() != "mac_app_store" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestSaveFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	testsupport.WriteRecord(t, f.recordsDir(), "figma", map[string]any{"name": "Figma"})
	pipeline := resolution.NewPipeline(logging.NewNop(), nil, f.strategy("mac_app_store", nil))

	blocker := filepath.Join(f.dir, "blocker")
	testsupport.WriteFile(t, blocker, 1)
	cache := verifycache.Open(filepath.Join(blocker, "cache.json"), logging.NewNop())
	runner := workflow.NewRunner(cache, pipeline, logging.NewNop(), workflow.Options{
		LockPath: filepath.Join(f.dir, "run.lock"),
	}, workflow.WithSleeper(func(context.Context, time.Duration) {}))

	if _, err := runner.Run(context.Background(), f.refs(t)); err == nil {
		t.Fatal("expected error when the snapshot cannot be written")
	}
}

func TestSecondRunnerFailsFastWhileLocked(t *testing.T) {
	f := newFixture(t)
	if err := os.MkdirAll(filepath.Dir(f.cachePath), 0o755); err != nil {
		t.Fatal(err)
	}
	lock := flock.New(f.cachePath + ".lock")
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("take lock: ok=%v err=%v", ok, err)
	}
	defer lock.Unlock()

	runner, _ := f.runner(t, resolution.NewPipeline(logging.NewNop(), nil), workflow.Options{})
	if _, err := runner.Run(context.Background(), nil); !errors.Is(err, workflow.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
}

func TestRunRecordsHistory(t *testing.T) {
	f := newFixture(t)
	cfg := testsupport.NewConfig(t)
	history := testsupport.MustOpenHistory(t, cfg)
	testsupport.WriteRecord(t, f.recordsDir(), "figma", map[string]any{"name": "Figma"})
	testsupport.WriteRecord(t, f.recordsDir(), "safari", map[string]any{"name": "Safari", "identifier": "com.apple.Safari"})
	pipeline := resolution.NewPipeline(logging.NewNop(), nil,
		f.strategy("mac_app_store", map[string]string{"Figma": "com.figma.Desktop"}))

	runner, _ := f.runner(t, pipeline, workflow.Options{},
		workflow.WithHistory(history),
		workflow.WithRunID(func() string { return "run-fixed" }),
	)
	if _, err := runner.Run(context.Background(), f.refs(t)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	run, err := history.GetRun(context.Background(), "run-fixed")
	if err != nil || run == nil {
		t.Fatalf("expected run row, got %#v err=%v", run, err)
	}
	if run.Status != runhistory.StatusCompleted || run.Counts.Updated != 1 || run.Counts.Synced != 1 || run.MaxProcessed != -1 {
		t.Fatalf("unexpected run row %+v", run)
	}
	resolutions, err := history.RunResolutions(context.Background(), "run-fixed")
	if err != nil {
		t.Fatalf("RunResolutions: %v", err)
	}
	outcomes := make([]string, 0, len(resolutions))
	for _, res := range resolutions {
		outcomes = append(outcomes, res.RecordKey+"="+res.Outcome)
	}
	if got := strings.Join(outcomes, ","); got != "figma=updated,safari=synced" {
		t.Fatalf("unexpected recorded outcomes %q", got)
	}
}

func TestFromSessionAppliesRunSettings(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithStrategies(config.StrategyMacAppStore),
		testsupport.WithMaxProcessed(1),
		testsupport.WithForceRecheck(),
	)
	testsupport.WriteRecord(t, cfg.Paths.RecordsDir, "a-safari", map[string]any{"name": "Safari", "identifier": "com.apple.Safari"})
	testsupport.WriteRecord(t, cfg.Paths.RecordsDir, "b-zoom", map[string]any{"name": "Zoom"})

	var calls int
	stub := resolution.StrategyFunc{
		StrategyName: config.StrategyMacAppStore,
		Fn: func(_ context.Context, rec records.Record) (string, error) {
			calls++
			return map[string]string{"Safari": "com.apple.Safari", "Zoom": "us.zoom.xos"}[rec.Name], nil
		},
	}
	s, err := session.New(context.Background(), cfg, logging.NewNop(), session.WithoutHistory(), session.WithStrategy(stub))
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	defer s.Close()

	refs, err := records.Discover(cfg.Paths.RecordsDir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	summary, err := workflow.FromSession(s).Run(context.Background(), refs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Force sends the already identified record to the strategies instead of
	// syncing it, and the cutoff of one stops the loop before the second.
	if calls != 1 || summary.Verified != 1 || summary.Synced != 0 {
		t.Fatalf("force not applied: calls=%d summary=%+v", calls, summary)
	}
	if !summary.CutoffReached || summary.Processed != 1 {
		t.Fatalf("cutoff not applied: %+v", summary)
	}
}
