package verifycache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestStoreWriteSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "verification_cache.json")
	store := Open(path, nil)
	checked := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)

	entry := Entry{
		LastCheckedAt:      checked,
		Identifier:         strPtr("com.figma.Desktop"),
		Status:             StatusUpdated,
		Source:             strPtr("mac_app_store"),
		MethodsTried:       []string{"mac_app_store"},
		PreviousIdentifier: "com.figma.old",
	}
	if err := store.Write("figma", entry); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := store.Write("unknown_app", Entry{LastCheckedAt: checked, Status: StatusUnknown, MethodsTried: []string{"mac_app_store", "pkg_inspection"}}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	store.MarkFullScan(checked)
	if err := store.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded := Open(path, nil)
	if diff := cmp.Diff(store.Snapshot(), reloaded.Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch after reload (-want +got):\n%s", diff)
	}
	got, ok := reloaded.Lookup("figma")
	if !ok {
		t.Fatal("expected figma entry")
	}
	if got.Key != "figma" || got.IdentifierValue() != "com.figma.Desktop" || got.SourceValue() != "mac_app_store" {
		t.Fatalf("unexpected entry %+v", got)
	}
	if reloaded.Dirty() {
		t.Fatal("freshly loaded store should not be dirty")
	}
}

func TestStoreWriteReplacesEntry(t *testing.T) {
	store := Open(filepath.Join(t.TempDir(), "cache.json"), nil)
	first := Entry{Status: StatusUpdated, Identifier: strPtr("com.example.one"), PreviousIdentifier: "com.example.zero", MethodsTried: []string{"a", "b"}}
	if err := store.Write("app", first); err != nil {
		t.Fatal(err)
	}
	if err := store.Write("app", Entry{Status: StatusVerified, Identifier: strPtr("com.example.one")}); err != nil {
		t.Fatal(err)
	}
	got, _ := store.Lookup("app")
	if got.PreviousIdentifier != "" || len(got.MethodsTried) != 0 || got.Status != StatusVerified {
		t.Fatalf("expected full replacement, got %+v", got)
	}
}

func TestStoreWriteRejectsInvalid(t *testing.T) {
	store := Open(filepath.Join(t.TempDir(), "cache.json"), nil)
	if err := store.Write("app", Entry{Status: StatusVerified, Identifier: strPtr("bad id")}); err == nil {
		t.Fatal("expected invalid identifier to be rejected")
	}
	if err := store.Write("app", Entry{Status: "maybe"}); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}
	if err := store.Write(" ", Entry{Status: StatusUnknown}); err == nil {
		t.Fatal("expected empty key to be rejected")
	}
	if store.Count() != 0 {
		t.Fatalf("expected no entries, got %d", store.Count())
	}
}

func TestOpenCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("{corrupt"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := Open(path, nil)
	if store.Count() != 0 {
		t.Fatalf("expected empty store, got %d", store.Count())
	}
	if err := store.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	reloaded := Open(path, nil)
	if reloaded.Snapshot().Version != SnapshotVersion {
		t.Fatal("expected corrupt file to be replaced by a valid snapshot")
	}

	aside, err := filepath.Glob(path + ".corrupt-*")
	if err != nil || len(aside) != 1 {
		t.Fatalf("expected one quarantined copy, got %v (%v)", aside, err)
	}
	data, err := os.ReadFile(aside[0])
	if err != nil {
		t.Fatalf("read quarantined copy: %v", err)
	}
	if string(data) != "{corrupt" {
		t.Fatalf("quarantined copy altered: %q", data)
	}
}

func TestMarkFullScanRequiresChanges(t *testing.T) {
	store := Open(filepath.Join(t.TempDir(), "cache.json"), nil)
	store.MarkFullScan(time.Now())
	if store.Snapshot().LastFullScan != nil {
		t.Fatal("expected untouched store to keep a null lastFullScan")
	}
	if err := store.Write("app", Entry{Status: StatusUnknown}); err != nil {
		t.Fatal(err)
	}
	store.MarkFullScan(time.Now())
	if store.Snapshot().LastFullScan == nil {
		t.Fatal("expected lastFullScan to be recorded")
	}
}

func TestRemoveAndClear(t *testing.T) {
	store := Open(filepath.Join(t.TempDir(), "cache.json"), nil)
	for _, key := range []string{"a", "b"} {
		if err := store.Write(key, Entry{Status: StatusUnknown}); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Remove("a"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := store.Remove("a"); err == nil {
		t.Fatal("expected error removing missing key")
	}
	if store.Count() != 1 {
		t.Fatalf("expected 1 entry, got %d", store.Count())
	}
	store.Clear()
	if store.Count() != 0 {
		t.Fatalf("expected empty cache, got %d", store.Count())
	}
}
