package resolution

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bundleid/internal/identifier"
	"bundleid/internal/logging"
	"bundleid/internal/overrides"
	"bundleid/internal/records"
	"bundleid/internal/services"
)

// Pipeline resolves records through overrides and an ordered strategy list.
type Pipeline struct {
	logger     *slog.Logger
	overrides  *overrides.Registry
	strategies []Strategy
}

// NewPipeline builds a pipeline. Nil strategies are ignored; a nil registry
// behaves as empty.
func NewPipeline(logger *slog.Logger, registry *overrides.Registry, strategies ...Strategy) *Pipeline {
	filtered := make([]Strategy, 0, len(strategies))
	for _, strategy := range strategies {
		if strategy != nil {
			filtered = append(filtered, strategy)
		}
	}
	if registry == nil {
		registry = overrides.Empty()
	}
	return &Pipeline{
		logger:     logging.NewComponentLogger(logger, "resolution"),
		overrides:  registry,
		strategies: filtered,
	}
}

// StrategyNames returns the configured strategy order.
func (p *Pipeline) StrategyNames() []string {
	names := make([]string, 0, len(p.strategies))
	for _, strategy := range p.strategies {
		names = append(names, strategy.Name())
	}
	return names
}

// Resolve runs the override check and then each strategy in order, stopping at
// the first valid identifier. Once ctx is done no further strategy starts.
func (p *Pipeline) Resolve(ctx context.Context, record records.Record) Result {
	ctx = services.WithRecordKey(ctx, record.Key)
	logger := logging.WithContext(ctx, p.logger)

	if value, ok := p.overrides.Lookup(record.Key); ok {
		logger.Info("override applied",
			logging.Args(append(logging.DecisionAttrs("identifier_source", SourceOverride, "override registered for key"),
				logging.String("identifier", value))...)...)
		return Result{Identifier: value, Source: SourceOverride, MethodsTried: []string{SourceOverride}}
	}

	result := Result{MethodsTried: make([]string, 0, len(p.strategies))}
	for _, strategy := range p.strategies {
		if err := ctx.Err(); err != nil {
			logger.Info("resolution interrupted",
				logging.Error(err),
				logging.String("methods_tried", strings.Join(result.MethodsTried, ",")))
			return result
		}
		name := strategy.Name()
		result.MethodsTried = append(result.MethodsTried, name)
		result.UsedNetwork = true

		candidate, err := p.invoke(services.WithStrategy(ctx, name), strategy, record)
		strategyLogger := logger.With(logging.String(logging.FieldStrategy, name))
		if err != nil {
			logging.WarnWithContext(strategyLogger, "lookup strategy failed", "strategy_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check connectivity and credentials for this strategy"),
				logging.String(logging.FieldImpact, "falling through to the next strategy"))
			continue
		}
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			strategyLogger.Debug("strategy returned no identifier")
			continue
		}
		if !identifier.Valid(candidate) {
			strategyLogger.Debug("strategy candidate rejected by validator",
				logging.String("candidate", candidate))
			continue
		}
		result.Identifier = candidate
		result.Source = name
		strategyLogger.Info("identifier resolved",
			logging.Args(append(logging.DecisionAttrs("identifier_source", name, "first valid strategy result"),
				logging.String("identifier", candidate),
				logging.Int("methods_tried", len(result.MethodsTried)))...)...)
		return result
	}

	logger.Info("no strategy resolved identifier",
		logging.String("methods_tried", strings.Join(result.MethodsTried, ",")))
	return result
}

func (p *Pipeline) invoke(ctx context.Context, strategy Strategy, record records.Record) (value string, err error) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			value = ""
			err = fmt.Errorf("strategy %s panicked: %v", strategy.Name(), r)
		}
		logging.WithContext(ctx, p.logger).Debug("strategy finished",
			logging.Duration("elapsed", time.Since(started)),
			logging.Bool("ok", err == nil && value != ""))
	}()
	return strategy.Resolve(ctx, record)
}
