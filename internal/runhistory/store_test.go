package runhistory_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"bundleid/internal/runhistory"
	"bundleid/internal/testsupport"
)

func TestRunLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := store.BeginRun(ctx, runhistory.Run{ID: "run-1", StartedAt: started, Force: true, MaxProcessed: -1}); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}

	running, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if running == nil || running.Status != runhistory.StatusRunning || !running.Force {
		t.Fatalf("unexpected running row: %#v", running)
	}
	if !running.FinishedAt.IsZero() {
		t.Fatalf("expected no finish time yet, got %v", running.FinishedAt)
	}

	resolutions := []runhistory.Resolution{
		{
			RunID:        "run-1",
			RecordKey:    "figma",
			Name:         "Figma",
			Outcome:      "updated",
			Identifier:   "com.figma.Desktop",
			Source:       "mac_app_store",
			MethodsTried: []string{"mac_app_store"},
			RecordedAt:   started.Add(time.Second),
		},
		{
			RunID:        "run-1",
			RecordKey:    "obscure",
			Name:         "Obscure",
			Outcome:      "unknown",
			MethodsTried: []string{"mac_app_store", "pkg_inspection"},
			RecordedAt:   started.Add(2 * time.Second),
		},
	}
	for _, res := range resolutions {
		if err := store.RecordResolution(ctx, res); err != nil {
			t.Fatalf("RecordResolution failed: %v", err)
		}
	}

	finished := started.Add(time.Minute)
	err = store.FinishRun(ctx, runhistory.Run{
		ID:         "run-1",
		FinishedAt: finished,
		Counts:     runhistory.Counts{Processed: 2, Updated: 1, Unknown: 1},
	})
	if err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	want := &runhistory.Run{
		ID:           "run-1",
		StartedAt:    started,
		FinishedAt:   finished,
		Status:       runhistory.StatusCompleted,
		Force:        true,
		MaxProcessed: -1,
		Counts:       runhistory.Counts{Processed: 2, Updated: 1, Unknown: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("run mismatch (-want +got):\n%s", diff)
	}

	stored, err := store.RunResolutions(ctx, "run-1")
	if err != nil {
		t.Fatalf("RunResolutions failed: %v", err)
	}
	if diff := cmp.Diff(resolutions, stored); diff != "" {
		t.Fatalf("resolutions mismatch (-want +got):\n%s", diff)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		run := runhistory.Run{ID: id, StartedAt: base.Add(time.Duration(i) * time.Hour), MaxProcessed: 5}
		if err := store.BeginRun(ctx, run); err != nil {
			t.Fatalf("BeginRun %s failed: %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
		t.Fatalf("unexpected run order: %#v", runs)
	}

	all, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(all))
	}
}

func TestGetRunMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	run, err := store.GetRun(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run != nil {
		t.Fatalf("expected nil run, got %#v", run)
	}
}

func TestBeginRunRequiresID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	if err := store.BeginRun(context.Background(), runhistory.Run{}); err == nil {
		t.Fatal("expected error for empty run id")
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := runhistory.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.BeginRun(context.Background(), runhistory.Run{ID: "persisted"}); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := runhistory.Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	run, err := reopened.GetRun(context.Background(), "persisted")
	if err != nil || run == nil {
		t.Fatalf("expected persisted run, got %#v err=%v", run, err)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := runhistory.Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenDetectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := runhistory.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := runhistory.Open(path); !errors.Is(err, runhistory.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
