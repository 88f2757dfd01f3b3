package testsupport

import (
	"testing"

	"bundleid/internal/config"
	"bundleid/internal/runhistory"
)

// MustOpenHistory opens the run history database for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *runhistory.Store {
	t.Helper()

	store, err := runhistory.Open(cfg.Paths.HistoryDB)
	if err != nil {
		t.Fatalf("runhistory.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
