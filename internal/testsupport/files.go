package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"bundleid/internal/records"
)

// WriteRecord writes a record file named key.json under dir and returns its
// Ref. fields are encoded as given so tests control which keys are present.
func WriteRecord(t testing.TB, dir, key string, fields map[string]any) records.Ref {
	t.Helper()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	data, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		t.Fatalf("encode record %s: %v", key, err)
	}
	path := filepath.Join(dir, key+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		t.Fatalf("write record %s: %v", key, err)
	}
	return records.Ref{Key: key, Path: path}
}

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadRecord loads the record at ref, failing the test on error.
func ReadRecord(t testing.TB, ref records.Ref) records.Record {
	t.Helper()

	rec, err := records.Load(ref)
	if err != nil {
		t.Fatalf("load record %s: %v", ref.Key, err)
	}
	return rec
}
