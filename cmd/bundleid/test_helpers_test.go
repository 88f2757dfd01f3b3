package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"bundleid/internal/config"
	"bundleid/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	catalog    *httptest.Server
}

// setupCLITestEnv writes a config file whose paths live under a temp dir and
// whose only strategy is the catalog lookup, served by a stub that knows Figma.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("BUNDLEID_FORCE_RECHECK", "")
	t.Setenv("BUNDLEID_MAX_PROCESSED", "")

	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("term") == "Figma" {
			_, _ = w.Write([]byte(`{"resultCount":1,"results":[{"trackName":"Figma","bundleId":"com.figma.Desktop","sellerName":"Figma, Inc."}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"resultCount":0,"results":[]}`))
	}))
	t.Cleanup(catalog.Close)

	cfg := testsupport.NewConfig(t,
		testsupport.WithStrategies(config.StrategyMacAppStore),
		testsupport.WithCatalogURL(catalog.URL),
	)
	if err := os.MkdirAll(cfg.Paths.RecordsDir, 0o755); err != nil {
		t.Fatalf("mkdir records: %v", err)
	}

	configPath := filepath.Join(home, ".config", "bundleid", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, catalog: catalog}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\n")
	fmt.Fprintf(&b, "records_dir = %q\n", cfg.Paths.RecordsDir)
	fmt.Fprintf(&b, "cache_path = %q\n", cfg.Paths.CachePath)
	fmt.Fprintf(&b, "overrides_path = %q\n", cfg.Paths.OverridesPath)
	fmt.Fprintf(&b, "report_path = %q\n", cfg.Paths.ReportPath)
	fmt.Fprintf(&b, "workspace_dir = %q\n", cfg.Paths.WorkspaceDir)
	fmt.Fprintf(&b, "history_db = %q\n", cfg.Paths.HistoryDB)
	fmt.Fprintf(&b, "log_dir = %q\n\n", cfg.Paths.LogDir)
	fmt.Fprintf(&b, "[run]\ninter_record_delay_ms = 0\n\n")
	quoted := make([]string, len(cfg.Resolution.Strategies))
	for i, name := range cfg.Resolution.Strategies {
		quoted[i] = strconv.Quote(name)
	}
	fmt.Fprintf(&b, "[resolution]\nstrategies = [%s]\n\n", strings.Join(quoted, ", "))
	fmt.Fprintf(&b, "[catalog]\nbase_url = %q\n\n", cfg.Catalog.BaseURL)
	fmt.Fprintf(&b, "[logging]\nlevel = \"error\"\n")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
