package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRun(); err != nil {
		return err
	}
	if err := c.validateResolution(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.RecordsDir) == "" {
		return errors.New("paths.records_dir must be set")
	}
	if strings.TrimSpace(c.Paths.CachePath) == "" {
		return errors.New("paths.cache_path must be set")
	}
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		return errors.New("paths.workspace_dir must be set")
	}
	return nil
}

func (c *Config) validateRun() error {
	if c.Run.MaxProcessed != nil && *c.Run.MaxProcessed < 0 {
		return errors.New("run.max_processed must be >= 0")
	}
	if c.Run.InterRecordDelayMS < 0 {
		return errors.New("run.inter_record_delay_ms must be >= 0")
	}
	if c.Run.StalenessDays < 0 {
		return errors.New("run.staleness_days must be positive")
	}
	return nil
}

func (c *Config) validateResolution() error {
	if len(c.Resolution.Strategies) == 0 {
		return errors.New("resolution.strategies must list at least one strategy")
	}
	for _, name := range c.Resolution.Strategies {
		if !slices.Contains(KnownStrategies, name) {
			return fmt.Errorf("resolution.strategies: unknown strategy %q (known: %s)", name, strings.Join(KnownStrategies, ", "))
		}
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"catalog.timeout_seconds":  c.Catalog.TimeoutSeconds,
		"archive.timeout_seconds":  c.Archive.TimeoutSeconds,
		"github.timeout_seconds":   c.GitHub.TimeoutSeconds,
		"llm.timeout_seconds":      c.LLM.TimeoutSeconds,
		"homebrew.timeout_seconds": c.Homebrew.TimeoutSeconds,
	})
}

func (c *Config) validateArchive() error {
	if c.Archive.MaxBytes <= 0 {
		return errors.New("archive.max_bytes must be positive")
	}
	switch c.Archive.PlistParser {
	case PlistParserAuto, PlistParserStructured, PlistParserPattern:
		return nil
	default:
		return fmt.Errorf("archive.plist_parser: unsupported value %q", c.Archive.PlistParser)
	}
}

func (c *Config) validateLLM() error {
	switch c.LLM.Provider {
	case ProviderOpenRouter, ProviderGemini:
	default:
		return fmt.Errorf("llm.provider: unsupported value %q", c.LLM.Provider)
	}
	if c.LLM.Provider == ProviderOpenRouter && strings.TrimSpace(c.LLM.BaseURL) == "" {
		return errors.New("llm.base_url must be set for the openrouter provider")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
