package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBatch()
	c.normalizeTools()
	c.normalizeLLM()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeBatch() {
	if c.Batch.Concurrency == 0 {
		c.Batch.Concurrency = defaultConcurrency
	}
	if c.Batch.NuggetDuration <= 0 {
		c.Batch.NuggetDuration = defaultNuggetDuration
	}
	if c.Batch.OverlapDuration < 0 {
		c.Batch.OverlapDuration = defaultOverlapDuration
	}
	formats := make([]string, 0, len(c.Batch.ExportFormats))
	for _, format := range c.Batch.ExportFormats {
		trimmed := strings.ToLower(strings.TrimSpace(format))
		if trimmed != "" {
			formats = append(formats, trimmed)
		}
	}
	if len(formats) == 0 {
		formats = []string{"json"}
	}
	c.Batch.ExportFormats = formats
}

func (c *Config) normalizeTools() {
	if strings.TrimSpace(c.Tools.YtDlpBinary) == "" {
		c.Tools.YtDlpBinary = defaultYtDlpBinary
	}
	if strings.TrimSpace(c.Tools.WhisperBinary) == "" {
		c.Tools.WhisperBinary = defaultWhisperBinary
	}
	if strings.TrimSpace(c.Tools.WhisperModel) == "" {
		c.Tools.WhisperModel = defaultWhisperModel
	}
	if strings.TrimSpace(c.Tools.FFmpegBinary) == "" {
		c.Tools.FFmpegBinary = defaultFFmpegBinary
	}
}

func (c *Config) normalizeLLM() {
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("NUGGET_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeout
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
