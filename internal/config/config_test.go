package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nugget/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, path, exists, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatalf("expected missing config, got exists=%v at %s", exists, path)
	}
	if cfg.Batch.Concurrency != 2 {
		t.Fatalf("expected default concurrency 2, got %d", cfg.Batch.Concurrency)
	}
	if cfg.Tools.YtDlpBinary != "yt-dlp" {
		t.Fatalf("expected default yt-dlp binary, got %q", cfg.Tools.YtDlpBinary)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`workspace_dir = "` + filepath.Join(dir, "ws") + `"`,
		`output_dir = "` + filepath.Join(dir, "out") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		"[batch]",
		"concurrency = 4",
		`export_formats = ["JSON", "csv"]`,
		"[logging]",
		`format = "JSON"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Batch.Concurrency != 4 {
		t.Fatalf("expected concurrency 4, got %d", cfg.Batch.Concurrency)
	}
	if got := cfg.Batch.ExportFormats; len(got) != 2 || got[0] != "json" || got[1] != "csv" {
		t.Fatalf("expected normalized formats [json csv], got %v", got)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized log format json, got %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero concurrency", func(c *config.Config) { c.Batch.Concurrency = 0 }},
		{"negative concurrency", func(c *config.Config) { c.Batch.Concurrency = -1 }},
		{"unknown export format", func(c *config.Config) { c.Batch.ExportFormats = []string{"xml"} }},
		{"overlap exceeds duration", func(c *config.Config) {
			c.Batch.NuggetDuration = 10
			c.Batch.OverlapDuration = 12
		}},
		{"empty workspace", func(c *config.Config) { c.Paths.WorkspaceDir = "" }},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "yaml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.WorkspaceDir = t.TempDir()
			cfg.Paths.OutputDir = t.TempDir()
			cfg.Logging.Format = "console"
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkspaceDir = filepath.Join(base, "ws")
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.CacheDir = filepath.Join(base, "cache")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkspaceDir, cfg.Paths.OutputDir, cfg.Paths.LogDir, cfg.Paths.CacheDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s, err=%v", dir, err)
		}
	}
}

func TestKnownExportFormat(t *testing.T) {
	for _, format := range []string{"json", "csv", "markdown", " JSON "} {
		if !config.KnownExportFormat(format) {
			t.Fatalf("expected %q to be known", format)
		}
	}
	if config.KnownExportFormat("xml") {
		t.Fatal("xml must not be a known format")
	}
}
