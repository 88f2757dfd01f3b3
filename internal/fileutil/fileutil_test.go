package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.txt")

	if err := WriteFileAtomic(path, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Fatalf("content mismatch: got %q", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
}

func TestWriteJSONAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := WriteJSONAtomic(path, map[string]int{"count": 2}); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(got), "\"count\": 2") || !strings.HasSuffix(string(got), "\n") {
		t.Fatalf("unexpected json output %q", got)
	}
}

func TestSafeJoin(t *testing.T) {
	root := t.TempDir()
	got, err := SafeJoin(root, "/Payload/App.app/Contents/Info.plist")
	if err != nil {
		t.Fatalf("SafeJoin returned error: %v", err)
	}
	if got != filepath.Join(root, "Payload", "App.app", "Contents", "Info.plist") {
		t.Fatalf("unexpected path %q", got)
	}
	for _, name := range []string{"../escape", "a/../../escape", ".", ""} {
		if _, err := SafeJoin(root, name); err == nil {
			t.Errorf("expected SafeJoin to reject %q", name)
		}
	}
}
