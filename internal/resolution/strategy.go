package resolution

import (
	"context"

	"bundleid/internal/records"
)

// SourceOverride is the provenance tag for operator-supplied identifiers.
const SourceOverride = "override"

// Strategy resolves an identifier for a record. An empty string with a nil
// error means "no result".
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, record records.Record) (string, error)
}

// Result is the outcome of one pipeline run. Identifier and Source are empty
// when nothing resolved.
type Result struct {
	Identifier   string
	Source       string
	MethodsTried []string
	// UsedNetwork is true when at least one strategy was invoked.
	UsedNetwork bool
}

// Resolved reports whether the pipeline produced an identifier.
func (r Result) Resolved() bool {
	return r.Identifier != ""
}

// StrategyFunc adapts a function to the Strategy interface.
type StrategyFunc struct {
	StrategyName string
	Fn           func(ctx context.Context, record records.Record) (string, error)
}

// Name returns the strategy name.
func (f StrategyFunc) Name() string { return f.StrategyName }

// Resolve calls the wrapped function.
func (f StrategyFunc) Resolve(ctx context.Context, record records.Record) (string, error) {
	if f.Fn == nil {
		return "", nil
	}
	return f.Fn(ctx, record)
}
