package overrides

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"

	"bundleid/internal/identifier"
	"bundleid/internal/logging"
)

// Registry maps record keys to operator-pinned bundle identifiers. It is loaded
// once and read-only afterwards.
type Registry struct {
	path    string
	entries map[string]string
}

// Entry is one pinned mapping, used for the array file form and for listings.
type Entry struct {
	Key        string `json:"key"`
	Identifier string `json:"identifier"`
}

// Empty returns a registry with no overrides.
func Empty() *Registry {
	return &Registry{entries: map[string]string{}}
}

// Load reads the overrides file at path. A missing or blank file yields an empty
// registry. Values that fail identifier validation are dropped with a warning.
func Load(path string, logger *slog.Logger) (*Registry, error) {
	logger = logging.NewComponentLogger(logger, "overrides")
	reg := Empty()
	reg.path = strings.TrimSpace(path)
	if reg.path == "" {
		return reg, nil
	}

	data, err := os.ReadFile(reg.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("no overrides file", logging.String("path", reg.path))
			return reg, nil
		}
		return nil, fmt.Errorf("read overrides: %w", err)
	}

	entries, err := parseOverrides(data)
	if err != nil {
		return nil, fmt.Errorf("parse overrides %s: %w", reg.path, err)
	}
	for _, entry := range entries {
		if !identifier.Valid(entry.Identifier) {
			logging.WarnWithContext(logger, "ignoring invalid override", "override_invalid",
				logging.String(logging.FieldRecordKey, entry.Key),
				logging.String("identifier", entry.Identifier),
				logging.String(logging.FieldErrorHint, "fix the identifier in the overrides file"),
				logging.String(logging.FieldImpact, "record falls through to automated lookup"))
			continue
		}
		reg.entries[entry.Key] = entry.Identifier
	}
	logger.Info("loaded overrides", logging.String("path", reg.path), logging.Int("count", len(reg.entries)))
	return reg, nil
}

// Lookup returns the pinned identifier for key.
func (r *Registry) Lookup(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	value, ok := r.entries[strings.TrimSpace(key)]
	return value, ok
}

// Len returns the number of usable overrides.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// List returns all overrides sorted by key.
func (r *Registry) List() []Entry {
	if r == nil {
		return nil
	}
	out := make([]Entry, 0, len(r.entries))
	for key, value := range r.entries {
		out = append(out, Entry{Key: key, Identifier: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// parseOverrides accepts {"overrides": {key: id}}, a bare {key: id} object, or
// an array of {"key", "identifier"} objects.
func parseOverrides(data []byte) ([]Entry, error) {
	data = bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var entries []Entry
	if data[0] == '[' {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, err
		}
	} else {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		mapping := map[string]string{}
		if wrapped, ok := raw["overrides"]; ok {
			if err := json.Unmarshal(wrapped, &mapping); err != nil {
				return nil, fmt.Errorf("overrides field: %w", err)
			}
		} else if err := json.Unmarshal(data, &mapping); err != nil {
			return nil, err
		}
		for key, value := range mapping {
			entries = append(entries, Entry{Key: key, Identifier: value})
		}
	}

	normalized := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		entry.Key = strings.TrimSpace(entry.Key)
		entry.Identifier = strings.TrimSpace(entry.Identifier)
		if entry.Key == "" {
			continue
		}
		normalized = append(normalized, entry)
	}
	sort.Slice(normalized, func(i, j int) bool { return normalized[i].Key < normalized[j].Key })
	return normalized, nil
}
