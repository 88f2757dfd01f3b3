package assisted

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"bundleid/internal/identifier"
	"bundleid/internal/logging"
	"bundleid/internal/records"
	"bundleid/internal/services"
)

// Completer is a language model backend. Both the OpenRouter chat client and
// the Gemini client satisfy it.
type Completer interface {
	Configured() bool
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Lookup is one assisted search strategy variant.
type Lookup struct {
	variant   Variant
	completer Completer
	logger    *slog.Logger
}

// NewLookup binds a prompt variant to a backend.
func NewLookup(variant Variant, completer Completer, logger *slog.Logger) *Lookup {
	return &Lookup{
		variant:   variant,
		completer: completer,
		logger:    logging.NewComponentLogger(logger, "assisted"),
	}
}

// Name returns the variant name.
func (l *Lookup) Name() string { return l.variant.Name }

// Resolve asks the model. Without a configured backend it returns no result.
func (l *Lookup) Resolve(ctx context.Context, record records.Record) (string, error) {
	if l.completer == nil || !l.completer.Configured() {
		return "", nil
	}
	if strings.TrimSpace(record.Name) == "" {
		return "", nil
	}
	content, err := l.completer.Complete(ctx, l.variant.System, l.variant.User(record))
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "assisted", l.variant.Name, "model request failed", err)
	}
	value, ok := ParseResponse(content)
	logging.WithContext(ctx, l.logger).Debug("model response parsed",
		logging.String("variant", l.variant.Name),
		logging.Bool("accepted", ok),
		logging.String("candidate", value))
	if !ok {
		return "", nil
	}
	return value, nil
}

// ParseResponse extracts an identifier from free-text model output. Empty
// output and the unknown token yield no result. The first line that contains
// a dot, has no whitespace and is shorter than 200 characters is chosen,
// falling back to the first non-empty line; the choice must then pass
// identifier validation.
func ParseResponse(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" || strings.EqualFold(trimmed, UnknownToken) {
		return "", false
	}
	var first, chosen string
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "`\"'")
		if line == "" {
			continue
		}
		if first == "" {
			first = line
		}
		if strings.Contains(line, ".") && !strings.ContainsFunc(line, unicode.IsSpace) && len(line) < 200 {
			chosen = line
			break
		}
	}
	if chosen == "" {
		chosen = first
	}
	if !identifier.Valid(chosen) {
		return "", false
	}
	return chosen, true
}
