package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Paths contains file and directory locations used by a run.
type Paths struct {
	RecordsDir    string `toml:"records_dir"`
	CachePath     string `toml:"cache_path"`
	OverridesPath string `toml:"overrides_path"`
	ReportPath    string `toml:"report_path"`
	WorkspaceDir  string `toml:"workspace_dir"`
	HistoryDB     string `toml:"history_db"`
	LogDir        string `toml:"log_dir"`
}

// Run contains orchestration settings. MaxProcessed is nil when unbounded.
type Run struct {
	ForceRecheck       bool `toml:"force_recheck"`
	MaxProcessed       *int `toml:"max_processed"`
	InterRecordDelayMS int  `toml:"inter_record_delay_ms"`
	StalenessDays      int  `toml:"staleness_days"`
}

// Resolution lists the lookup strategies in the order they are attempted.
type Resolution struct {
	Strategies []string `toml:"strategies"`
}

// Catalog contains configuration for the Mac App Store search API.
type Catalog struct {
	BaseURL        string `toml:"base_url"`
	Country        string `toml:"country"`
	Limit          int    `toml:"limit"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Archive contains configuration for artifact download and inspection.
type Archive struct {
	MaxBytes       int64  `toml:"max_bytes"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	PlistParser    string `toml:"plist_parser"`
}

// GitHub contains configuration for code search.
type GitHub struct {
	Token          string `toml:"token"`
	BaseURL        string `toml:"base_url"`
	MaxFiles       int    `toml:"max_files"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// LLM contains connection settings for the assisted search strategies.
type LLM struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	WebSearch      bool   `toml:"web_search"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Homebrew contains configuration for the cask API lookup.
type Homebrew struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for bundleid.
//
// Configuration sections by subsystem:
//   - Paths: record directory, cache snapshot, overrides, report, workspace
//   - Run: force recheck, processing cutoff, pacing, staleness window
//   - Resolution: ordered strategy list
//   - Catalog, Archive, GitHub, LLM, Homebrew: per-strategy settings
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Run        Run        `toml:"run"`
	Resolution Resolution `toml:"resolution"`
	Catalog    Catalog    `toml:"catalog"`
	Archive    Archive    `toml:"archive"`
	GitHub     GitHub     `toml:"github"`
	LLM        LLM        `toml:"llm"`
	Homebrew   Homebrew   `toml:"homebrew"`
	Logging    Logging    `toml:"logging"`
}

// EnsureDirectories creates the directories a run writes into. The records
// directory is not created; it must already hold the catalog.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{
		c.Paths.WorkspaceDir,
		c.Paths.LogDir,
		filepath.Dir(c.Paths.CachePath),
		filepath.Dir(c.Paths.ReportPath),
		filepath.Dir(c.Paths.HistoryDB),
	} {
		if strings.TrimSpace(dir) == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MaxProcessedValue reports the processing cutoff and whether one is set.
func (c *Config) MaxProcessedValue() (int, bool) {
	if c.Run.MaxProcessed == nil {
		return 0, false
	}
	return *c.Run.MaxProcessed, true
}
