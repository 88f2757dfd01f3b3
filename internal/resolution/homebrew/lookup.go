package homebrew

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"

	"bundleid/internal/identifier"
	"bundleid/internal/logging"
	"bundleid/internal/records"
	"bundleid/internal/services"
	"bundleid/internal/textutil"
)

// StrategyName is the provenance tag for cask matches.
const StrategyName = "homebrew_cask"

// stanzaKeys are consulted in this order; within a key, document order wins.
// pkgutil receipts and launchctl labels are not app identifiers and are
// ignored.
var stanzaKeys = []string{"bundle_id", "quit"}

// Lookup is the Homebrew cask resolution strategy.
type Lookup struct {
	client *Client
	logger *slog.Logger
}

// NewLookup wraps client as a strategy.
func NewLookup(client *Client, logger *slog.Logger) *Lookup {
	return &Lookup{client: client, logger: logging.NewComponentLogger(logger, "homebrew")}
}

// Name returns the strategy name.
func (l *Lookup) Name() string { return StrategyName }

// Resolve tries the cask token variants derived from the record name and
// returns the first valid identifier found in the first cask that exists.
func (l *Lookup) Resolve(ctx context.Context, record records.Record) (string, error) {
	if l == nil || l.client == nil {
		return "", nil
	}
	logger := logging.WithContext(ctx, l.logger)
	for _, token := range TokenVariants(record.Name) {
		data, err := l.client.Cask(ctx, token)
		if errors.Is(err, ErrCaskNotFound) {
			continue
		}
		if err != nil {
			return "", services.Wrap(services.ErrExternalTool, "homebrew", "cask", "cask request failed", err)
		}
		value, err := CaskIdentifier(data)
		if err != nil {
			return "", services.Wrap(services.ErrValidation, "homebrew", "parse", "malformed cask document", err)
		}
		logger.Debug("cask found",
			logging.String("token", token),
			logging.String("candidate", value))
		return value, nil
	}
	return "", nil
}

// TokenVariants returns the cask tokens to try for a display name: the
// hyphenated token, the token with hyphens removed, and with hyphens replaced
// by underscores. Duplicates are dropped.
func TokenVariants(name string) []string {
	base := textutil.SanitizeToken(name)
	if base == "" {
		return nil
	}
	variants := []string{base, strings.ReplaceAll(base, "-", ""), strings.ReplaceAll(base, "-", "_")}
	out := make([]string, 0, len(variants))
	seen := map[string]struct{}{}
	for _, v := range variants {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// CaskIdentifier returns the first valid bundle_id value, else the first valid
// quit value found in the uninstall or zap stanzas.
func CaskIdentifier(data []byte) (string, error) {
	values, err := collectStanzas(data)
	if err != nil {
		return "", err
	}
	for _, key := range stanzaKeys {
		for _, value := range values[key] {
			if identifier.Valid(value) {
				return value, nil
			}
		}
	}
	return "", nil
}

type jsonFrame struct {
	object    bool
	expectKey bool
	// key is the current member name for objects and the owning member name
	// for arrays.
	key string
}

// collectStanzas streams the document and gathers string values, including
// string array elements, stored under any of stanzaKeys.
func collectStanzas(data []byte) (map[string][]string, error) {
	want := make(map[string]struct{}, len(stanzaKeys))
	for _, key := range stanzaKeys {
		want[key] = struct{}{}
	}
	out := make(map[string][]string, len(stanzaKeys))

	dec := json.NewDecoder(bytes.NewReader(data))
	var stack []jsonFrame
	valueDone := func() {
		if n := len(stack); n > 0 && stack[n-1].object {
			stack[n-1].expectKey = true
		}
	}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{':
				stack = append(stack, jsonFrame{object: true, expectKey: true})
			case '[':
				owner := ""
				if n := len(stack); n > 0 {
					owner = stack[n-1].key
				}
				stack = append(stack, jsonFrame{key: owner})
			case '}', ']':
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
				valueDone()
			}
		case string:
			n := len(stack)
			if n == 0 {
				continue
			}
			top := &stack[n-1]
			if top.object && top.expectKey {
				top.key = v
				top.expectKey = false
				continue
			}
			if _, ok := want[top.key]; ok {
				out[top.key] = append(out[top.key], strings.TrimSpace(v))
			}
			valueDone()
		default:
			valueDone()
		}
	}
	if len(stack) != 0 {
		return nil, io.ErrUnexpectedEOF
	}
	return out, nil
}
