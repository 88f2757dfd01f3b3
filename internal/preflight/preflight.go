package preflight

import (
	"context"
	"path/filepath"
	"slices"

	"bundleid/internal/config"
)

// Result reports the outcome of a single preflight check. Optional results
// are informational and never block a run.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// Blocking reports whether the result should stop a run from starting.
func (r Result) Blocking() bool {
	return !r.Passed && !r.Optional
}

// Options tunes which checks RunAll performs.
type Options struct {
	// Network enables the catalog reachability probe and LLM health check.
	Network bool
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results,
		CheckDirectoryAccess("Records directory", cfg.Paths.RecordsDir),
		CheckDirectoryAccess("Cache directory", filepath.Dir(cfg.Paths.CachePath)),
		CheckDirectoryAccess("Report directory", filepath.Dir(cfg.Paths.ReportPath)),
		CheckDirectoryAccess("History directory", filepath.Dir(cfg.Paths.HistoryDB)),
	)

	if enabled(cfg, config.StrategyPkgInspection) {
		results = append(results,
			CheckDirectoryAccess("Workspace directory", cfg.Paths.WorkspaceDir),
			CheckFreeSpace("Workspace free space", cfg.Paths.WorkspaceDir, uint64(cfg.Archive.MaxBytes)),
		)
	}

	if enabled(cfg, config.StrategyGitHubSearch) {
		results = append(results, CheckCredential("GitHub token", cfg.GitHub.Token, config.StrategyGitHubSearch))
	}

	llmEnabled := enabled(cfg, config.StrategyAISearch) || enabled(cfg, config.StrategyAISearchConcise)
	if llmEnabled {
		results = append(results, CheckCredential("LLM API key", cfg.LLM.APIKey, "assisted search"))
	}

	if !opts.Network {
		return results
	}

	if enabled(cfg, config.StrategyMacAppStore) {
		results = append(results, CheckCatalog(ctx, cfg.Catalog.BaseURL, cfg.Catalog.Country))
	}
	if llmEnabled && cfg.LLM.APIKey != "" {
		results = append(results, CheckLLM(ctx, "Assisted search LLM", cfg.LLM))
	}

	return results
}

// Failed returns the blocking results.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if result.Blocking() {
			failed = append(failed, result)
		}
	}
	return failed
}

func enabled(cfg *config.Config, strategy string) bool {
	return slices.Contains(cfg.Resolution.Strategies, strategy)
}
