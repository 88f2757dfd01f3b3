// Package records reads and rewrites the per-application JSON files that make
// up the catalog. Only the identifier field is ever rewritten; every other key
// keeps its value and position.
package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bundleid/internal/fileutil"
)

const identifierField = "identifier"

// Record is one catalog entry. Key is derived from the file name.
type Record struct {
	Key         string `json:"-"`
	Path        string `json:"-"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Homepage    string `json:"homepage,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	Identifier  string `json:"identifier,omitempty"`
	ArtifactURL string `json:"artifactUrl,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Ref locates a record file without reading it.
type Ref struct {
	Key  string
	Path string
}

// ErrMalformed marks record files that cannot be used.
var ErrMalformed = errors.New("malformed record")

// Discover lists the *.json record files directly under dir, sorted by key.
func Discover(dir string) ([]Ref, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read records dir: %w", err)
	}
	refs := make([]Ref, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		key := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if strings.HasPrefix(key, ".") || key == "" {
			continue
		}
		refs = append(refs, Ref{Key: key, Path: filepath.Join(dir, entry.Name())})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Key < refs[j].Key })
	return refs, nil
}

// RefForPath builds a Ref from a record file path.
func RefForPath(path string) Ref {
	base := filepath.Base(path)
	return Ref{Key: strings.TrimSuffix(base, filepath.Ext(base)), Path: path}
}

// Load reads and decodes the record behind ref.
func Load(ref Ref) (Record, error) {
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return Record{}, fmt.Errorf("read record %s: %w", ref.Key, err)
	}
	var rec struct {
		Record
		Identifier *string `json:"identifier"`
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w %s: %w", ErrMalformed, ref.Key, err)
	}
	out := rec.Record
	out.Key = ref.Key
	out.Path = ref.Path
	out.Name = strings.TrimSpace(out.Name)
	out.Identifier = ""
	if rec.Identifier != nil {
		out.Identifier = strings.TrimSpace(*rec.Identifier)
	}
	if out.Name == "" {
		return Record{}, fmt.Errorf("%w %s: missing name", ErrMalformed, ref.Key)
	}
	return out, nil
}

// SetIdentifier rewrites the identifier field of the record file at path,
// preserving all other keys in their original order. The field is appended
// when absent.
func SetIdentifier(path, value string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read record: %w", err)
	}
	fields, err := decodeOrdered(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	encodedValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode identifier: %w", err)
	}

	replaced := false
	for i := range fields {
		if fields[i].key == identifierField {
			fields[i].value = encodedValue
			replaced = true
		}
	}
	if !replaced {
		fields = append(fields, orderedField{key: identifierField, value: encodedValue})
	}

	compact, err := encodeOrdered(fields)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, compact, "", "  "); err != nil {
		return fmt.Errorf("indent record: %w", err)
	}
	pretty.WriteByte('\n')
	return fileutil.WriteFileAtomic(path, pretty.Bytes(), 0o644)
}

type orderedField struct {
	key   string
	value json.RawMessage
}

func decodeOrdered(data []byte) ([]orderedField, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("record is not a JSON object")
	}
	var fields []orderedField
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		fields = append(fields, orderedField{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after record object")
	}
	return fields, nil
}

func encodeOrdered(fields []orderedField) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.key)
		if err != nil {
			return nil, fmt.Errorf("encode key %q: %w", field.key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(field.value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
