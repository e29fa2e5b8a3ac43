package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkspaceDir string `toml:"workspace_dir"`
	OutputDir    string `toml:"output_dir"`
	LogDir       string `toml:"log_dir"`
	CacheDir     string `toml:"cache_dir"`
}

// Batch contains defaults applied to new batch jobs.
type Batch struct {
	Concurrency        int      `toml:"concurrency"`
	RetryFailed        bool     `toml:"retry_failed"`
	MaxRetries         uint     `toml:"max_retries"`
	NuggetDuration     float64  `toml:"nugget_duration"`
	OverlapDuration    float64  `toml:"overlap_duration"`
	EnableTranscript   bool     `toml:"enable_transcript"`
	EnableAnalysis     bool     `toml:"enable_analysis"`
	EnableSocialExport bool     `toml:"enable_social_export"`
	ExportFormats      []string `toml:"export_formats"`
}

// Tools contains the external binaries the pipeline shells out to.
type Tools struct {
	YtDlpBinary   string `toml:"ytdlp_binary"`
	WhisperBinary string `toml:"whisper_binary"`
	WhisperModel  string `toml:"whisper_model"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
}

// LLM contains connection settings for the analysis model.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the nugget pipeline.
//
// Configuration sections by subsystem:
//   - Paths: workspace, output, log, and cache directories
//   - Batch: defaults for new batch jobs (concurrency, retries, segmentation)
//   - Tools: external binary names for yt-dlp, whisper, and ffmpeg
//   - LLM: shared connection settings for AI content analysis
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Batch   Batch   `toml:"batch"`
	Tools   Tools   `toml:"tools"`
	LLM     LLM     `toml:"llm"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/nugget/config.toml")
}

// SampleConfig returns the embedded sample configuration file content.
func SampleConfig() string {
	return sampleConfig
}

// ExpandPath resolves a leading tilde against the current user's home.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// CreateSample writes the embedded sample configuration file to path.
func CreateSample(path string) error {
	return os.WriteFile(path, []byte(SampleConfig()), 0o644)
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("nugget.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for pipeline operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkspaceDir, c.Paths.OutputDir, c.Paths.LogDir, c.Paths.CacheDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return home, nil
	}
	if strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Abs(trimmed)
}
