package verifycache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"bundleid/internal/fileutil"
	"bundleid/internal/identifier"
	"bundleid/internal/logging"
)

// Snapshot format constants.
const (
	SnapshotVersion     = 1
	SnapshotDescription = "Bundle identifier verification cache"
)

// Status values for cache entries.
const (
	StatusVerified = "verified"
	StatusUpdated  = "updated"
	StatusUnknown  = "unknown"
)

// SourceFile marks entries synced from a record's own identifier.
const SourceFile = "file"

// Entry is the verification outcome for one record key.
type Entry struct {
	Key                string    `json:"key"`
	LastCheckedAt      time.Time `json:"lastCheckedAt"`
	Identifier         *string   `json:"identifier"`
	Status             string    `json:"status"`
	Source             *string   `json:"source"`
	MethodsTried       []string  `json:"methodsTried"`
	PreviousIdentifier string    `json:"previousIdentifier,omitempty"`
}

// IdentifierValue returns the entry identifier or "".
func (e Entry) IdentifierValue() string {
	if e.Identifier == nil {
		return ""
	}
	return *e.Identifier
}

// SourceValue returns the entry source or "".
func (e Entry) SourceValue() string {
	if e.Source == nil {
		return ""
	}
	return *e.Source
}

// Snapshot is the on-disk cache document.
type Snapshot struct {
	Version      int              `json:"version"`
	Description  string           `json:"description"`
	LastFullScan *time.Time       `json:"lastFullScan"`
	Entries      map[string]Entry `json:"entries"`
}

// Store holds the cache snapshot in memory between an initial load and a
// final save. Writes replace whole entries and are only persisted by Save.
type Store struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	snapshot Snapshot
	dirty    bool
}

// errCorrupt marks a snapshot file that exists but cannot be decoded.
var errCorrupt = errors.New("corrupt cache file")

// Open loads the snapshot at path. A missing file yields an empty store; an
// unreadable file is logged and also yields an empty store. A corrupt file is
// first renamed to <path>.corrupt-<timestamp> so the next Save cannot destroy it.
func Open(path string, logger *slog.Logger) *Store {
	logger = logging.NewComponentLogger(logger, "verifycache")
	s := &Store{
		path:     strings.TrimSpace(path),
		logger:   logger,
		snapshot: emptySnapshot(),
	}
	if s.path == "" {
		return s
	}
	err := s.load()
	switch {
	case err == nil:
	case errors.Is(err, errCorrupt):
		s.quarantine(err)
	default:
		logging.WarnWithContext(logger, "failed to load verification cache", "verifycache_load_failed",
			logging.Error(err),
			logging.String("path", s.path),
			logging.String(logging.FieldErrorHint, "check permissions on the cache file"),
			logging.String(logging.FieldImpact, "previously checked records will be checked again"))
	}
	return s
}

// quarantine moves an undecodable snapshot aside and starts empty.
func (s *Store) quarantine(cause error) {
	aside := s.path + ".corrupt-" + time.Now().UTC().Format("20060102T150405Z")
	if err := os.Rename(s.path, aside); err != nil {
		logging.WarnWithContext(s.logger, "failed to move corrupt verification cache aside", "verifycache_quarantine_failed",
			logging.Error(err),
			logging.String("cause", cause.Error()),
			logging.String("path", s.path),
			logging.String(logging.FieldErrorHint, "copy the cache file elsewhere before the run ends"),
			logging.String(logging.FieldImpact, "the corrupt file is overwritten when the run saves"))
		return
	}
	logging.WarnWithContext(s.logger, "verification cache was corrupt and has been moved aside", "verifycache_load_failed",
		logging.Error(cause),
		logging.String("path", s.path),
		logging.String("moved_to", aside),
		logging.String(logging.FieldErrorHint, "repair the moved file and copy it back to restore history"),
		logging.String(logging.FieldImpact, "previously checked records will be checked again"))
}

func emptySnapshot() Snapshot {
	return Snapshot{
		Version:     SnapshotVersion,
		Description: SnapshotDescription,
		Entries:     map[string]Entry{},
	}
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}

// Lookup returns the entry for key.
func (s *Store) Lookup(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.snapshot.Entries[key]
	return entry, ok
}

// Write replaces the entry for key. Non-null identifiers must pass validation.
func (s *Store) Write(key string, entry Entry) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("cache key cannot be empty")
	}
	if entry.Identifier != nil && !identifier.Valid(*entry.Identifier) {
		return fmt.Errorf("cache entry %s: invalid identifier %q", key, *entry.Identifier)
	}
	switch entry.Status {
	case StatusVerified, StatusUpdated, StatusUnknown:
	default:
		return fmt.Errorf("cache entry %s: unknown status %q", key, entry.Status)
	}
	entry.Key = key
	entry.MethodsTried = append([]string(nil), entry.MethodsTried...)
	if entry.MethodsTried == nil {
		entry.MethodsTried = []string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Entries[key] = entry
	s.dirty = true
	return nil
}

// Remove deletes the entry for key.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshot.Entries[key]; !ok {
		return fmt.Errorf("key %q not found in cache", key)
	}
	delete(s.snapshot.Entries, key)
	s.dirty = true
	return nil
}

// Clear removes all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Entries = map[string]Entry{}
	s.snapshot.LastFullScan = nil
	s.dirty = true
}

// Dirty reports whether any entry changed since load.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// MarkFullScan records the completion time of an uncapped run that changed the
// cache. Runs that changed nothing leave the snapshot untouched.
func (s *Store) MarkFullScan(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return
	}
	at = at.UTC()
	s.snapshot.LastFullScan = &at
}

// Count returns the number of entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshot.Entries)
}

// List returns entries sorted by key.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]Entry, 0, len(s.snapshot.Entries))
	for _, entry := range s.snapshot.Entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

// Snapshot returns a deep copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snapshot
	if s.snapshot.LastFullScan != nil {
		scan := *s.snapshot.LastFullScan
		out.LastFullScan = &scan
	}
	out.Entries = make(map[string]Entry, len(s.snapshot.Entries))
	for key, entry := range s.snapshot.Entries {
		entry.MethodsTried = append([]string{}, entry.MethodsTried...)
		out.Entries[key] = entry
	}
	return out
}

// Save writes the full snapshot atomically.
func (s *Store) Save() error {
	if s.path == "" {
		return errors.New("verification cache path not configured")
	}
	snapshot := s.Snapshot()
	if err := fileutil.WriteJSONAtomic(s.path, snapshot); err != nil {
		return fmt.Errorf("persist verification cache: %w", err)
	}
	s.logger.Debug("saved verification cache",
		logging.Int("entry_count", len(snapshot.Entries)),
		logging.String("path", s.path))
	return nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read cache file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("%w: %w", errCorrupt, err)
	}
	loaded := emptySnapshot()
	loaded.LastFullScan = snapshot.LastFullScan
	for key, entry := range snapshot.Entries {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		entry.Key = key
		if entry.MethodsTried == nil {
			entry.MethodsTried = []string{}
		}
		loaded.Entries[key] = entry
	}

	s.mu.Lock()
	s.snapshot = loaded
	s.mu.Unlock()
	s.logger.Debug("loaded verification cache",
		logging.Int("entry_count", len(loaded.Entries)),
		logging.String("path", s.path))
	return nil
}
