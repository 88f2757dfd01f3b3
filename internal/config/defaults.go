package config

const (
	defaultConfigPath         = "~/.config/bundleid/config.toml"
	defaultRecordsDir         = "./Apps"
	defaultCachePath          = "~/.cache/bundleid/verification_cache.json"
	defaultOverridesPath      = "~/.config/bundleid/overrides.json"
	defaultReportPath         = "~/.local/share/bundleid/unresolved.json"
	defaultWorkspaceDir       = "~/.cache/bundleid/workspace"
	defaultHistoryDB          = "~/.local/share/bundleid/history.db"
	defaultLogDir             = "~/.local/share/bundleid/logs"
	defaultInterRecordDelayMS = 1000
	defaultStalenessDays      = 90
	defaultCatalogBaseURL     = "https://itunes.apple.com/search"
	defaultCatalogCountry     = "us"
	defaultCatalogLimit       = 10
	defaultCatalogTimeout     = 10
	defaultArchiveMaxBytes    = 512 << 20
	defaultArchiveTimeout     = 300
	defaultPlistParser        = "auto"
	defaultGitHubBaseURL      = "https://api.github.com"
	defaultGitHubMaxFiles     = 3
	defaultGitHubTimeout      = 15
	defaultLLMProvider        = "openrouter"
	defaultOpenRouterBaseURL  = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenRouterModel    = "google/gemini-3-flash-preview"
	defaultGeminiModel        = "gemini-2.5-flash"
	defaultLLMReferer         = "https://github.com/ugurkocde/IntuneBrew"
	defaultLLMTitle           = "bundleid"
	defaultLLMTimeoutSeconds  = 60
	defaultHomebrewBaseURL    = "https://formulae.brew.sh/api/cask"
	defaultHomebrewTimeout    = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	ProviderOpenRouter        = "openrouter"
	ProviderGemini            = "gemini"
	PlistParserAuto           = "auto"
	PlistParserStructured     = "structured"
	PlistParserPattern        = "pattern"
)

// Strategy names accepted in resolution.strategies.
const (
	StrategyMacAppStore     = "mac_app_store"
	StrategyPkgInspection   = "pkg_inspection"
	StrategyGitHubSearch    = "github_search"
	StrategyAISearch        = "ai_search"
	StrategyAISearchConcise = "ai_search_concise"
	StrategyHomebrewCask    = "homebrew_cask"
)

// KnownStrategies lists every strategy name the resolver can build.
var KnownStrategies = []string{
	StrategyMacAppStore,
	StrategyPkgInspection,
	StrategyGitHubSearch,
	StrategyAISearch,
	StrategyAISearchConcise,
	StrategyHomebrewCask,
}

// DefaultStrategies returns the default lookup order.
func DefaultStrategies() []string {
	return []string{
		StrategyMacAppStore,
		StrategyPkgInspection,
		StrategyGitHubSearch,
		StrategyAISearch,
		StrategyAISearchConcise,
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RecordsDir:    defaultRecordsDir,
			CachePath:     defaultCachePath,
			OverridesPath: defaultOverridesPath,
			ReportPath:    defaultReportPath,
			WorkspaceDir:  defaultWorkspaceDir,
			HistoryDB:     defaultHistoryDB,
			LogDir:        defaultLogDir,
		},
		Run: Run{
			InterRecordDelayMS: defaultInterRecordDelayMS,
			StalenessDays:      defaultStalenessDays,
		},
		Resolution: Resolution{
			Strategies: DefaultStrategies(),
		},
		Catalog: Catalog{
			BaseURL:        defaultCatalogBaseURL,
			Country:        defaultCatalogCountry,
			Limit:          defaultCatalogLimit,
			TimeoutSeconds: defaultCatalogTimeout,
		},
		Archive: Archive{
			MaxBytes:       defaultArchiveMaxBytes,
			TimeoutSeconds: defaultArchiveTimeout,
			PlistParser:    defaultPlistParser,
		},
		GitHub: GitHub{
			BaseURL:        defaultGitHubBaseURL,
			MaxFiles:       defaultGitHubMaxFiles,
			TimeoutSeconds: defaultGitHubTimeout,
		},
		LLM: LLM{
			Provider:       defaultLLMProvider,
			BaseURL:        defaultOpenRouterBaseURL,
			Model:          defaultOpenRouterModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			WebSearch:      true,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Homebrew: Homebrew{
			BaseURL:        defaultHomebrewBaseURL,
			TimeoutSeconds: defaultHomebrewTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
