package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeRun(); err != nil {
		return err
	}
	c.normalizeResolution()
	c.normalizeCatalog()
	c.normalizeArchive()
	c.normalizeGitHub()
	c.normalizeLLM()
	c.normalizeHomebrew()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		key   string
		value *string
		def   string
	}{
		{"paths.records_dir", &c.Paths.RecordsDir, defaultRecordsDir},
		{"paths.cache_path", &c.Paths.CachePath, defaultCachePath},
		{"paths.overrides_path", &c.Paths.OverridesPath, defaultOverridesPath},
		{"paths.report_path", &c.Paths.ReportPath, defaultReportPath},
		{"paths.workspace_dir", &c.Paths.WorkspaceDir, defaultWorkspaceDir},
		{"paths.history_db", &c.Paths.HistoryDB, defaultHistoryDB},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.def
		}
		expanded, err := ExpandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.key, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeRun() error {
	if value, ok := os.LookupEnv("BUNDLEID_FORCE_RECHECK"); ok && strings.TrimSpace(value) != "" {
		force, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("BUNDLEID_FORCE_RECHECK: %w", err)
		}
		c.Run.ForceRecheck = force
	}
	if c.Run.MaxProcessed == nil {
		if value, ok := os.LookupEnv("BUNDLEID_MAX_PROCESSED"); ok && strings.TrimSpace(value) != "" {
			limit, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return fmt.Errorf("BUNDLEID_MAX_PROCESSED: %w", err)
			}
			c.Run.MaxProcessed = &limit
		}
	}
	if c.Run.StalenessDays == 0 {
		c.Run.StalenessDays = defaultStalenessDays
	}
	return nil
}

func (c *Config) normalizeResolution() {
	if len(c.Resolution.Strategies) == 0 {
		c.Resolution.Strategies = DefaultStrategies()
		return
	}
	names := make([]string, 0, len(c.Resolution.Strategies))
	seen := make(map[string]struct{}, len(c.Resolution.Strategies))
	for _, name := range c.Resolution.Strategies {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		names = append(names, normalized)
	}
	c.Resolution.Strategies = names
}

func (c *Config) normalizeCatalog() {
	c.Catalog.BaseURL = strings.TrimSpace(c.Catalog.BaseURL)
	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = defaultCatalogBaseURL
	}
	c.Catalog.Country = strings.ToLower(strings.TrimSpace(c.Catalog.Country))
	if c.Catalog.Limit <= 0 {
		c.Catalog.Limit = defaultCatalogLimit
	}
}

func (c *Config) normalizeArchive() {
	c.Archive.PlistParser = strings.ToLower(strings.TrimSpace(c.Archive.PlistParser))
	if c.Archive.PlistParser == "" {
		c.Archive.PlistParser = defaultPlistParser
	}
}

func (c *Config) normalizeGitHub() {
	c.GitHub.Token = strings.TrimSpace(c.GitHub.Token)
	if c.GitHub.Token == "" {
		if value, ok := os.LookupEnv("GITHUB_TOKEN"); ok {
			c.GitHub.Token = strings.TrimSpace(value)
		}
	}
	c.GitHub.BaseURL = strings.TrimRight(strings.TrimSpace(c.GitHub.BaseURL), "/")
	if c.GitHub.BaseURL == "" {
		c.GitHub.BaseURL = defaultGitHubBaseURL
	}
	if c.GitHub.MaxFiles <= 0 {
		c.GitHub.MaxFiles = defaultGitHubMaxFiles
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = defaultLLMProvider
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		for _, env := range llmKeyEnv(c.LLM.Provider) {
			if value, ok := os.LookupEnv(env); ok && strings.TrimSpace(value) != "" {
				c.LLM.APIKey = strings.TrimSpace(value)
				break
			}
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	switch c.LLM.Provider {
	case ProviderOpenRouter:
		if c.LLM.BaseURL == "" {
			c.LLM.BaseURL = defaultOpenRouterBaseURL
		}
		if c.LLM.Model == "" {
			c.LLM.Model = defaultOpenRouterModel
		}
	case ProviderGemini:
		if c.LLM.BaseURL == defaultOpenRouterBaseURL {
			c.LLM.BaseURL = ""
		}
		if c.LLM.Model == "" || c.LLM.Model == defaultOpenRouterModel {
			c.LLM.Model = defaultGeminiModel
		}
	}
	if strings.TrimSpace(c.LLM.Referer) == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	if strings.TrimSpace(c.LLM.Title) == "" {
		c.LLM.Title = defaultLLMTitle
	}
}

func llmKeyEnv(provider string) []string {
	if provider == ProviderGemini {
		return []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	}
	return []string{"OPENROUTER_API_KEY"}
}

func (c *Config) normalizeHomebrew() {
	c.Homebrew.BaseURL = strings.TrimRight(strings.TrimSpace(c.Homebrew.BaseURL), "/")
	if c.Homebrew.BaseURL == "" {
		c.Homebrew.BaseURL = defaultHomebrewBaseURL
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
