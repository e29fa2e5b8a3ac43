package config

import (
	"errors"
	"fmt"
	"strings"
)

var knownExportFormats = map[string]struct{}{
	"json":     {},
	"csv":      {},
	"markdown": {},
}

// KnownExportFormat reports whether a format name is a supported export format.
func KnownExportFormat(format string) bool {
	_, ok := knownExportFormats[strings.ToLower(strings.TrimSpace(format))]
	return ok
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		return errors.New("paths.workspace_dir must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.Concurrency < 1 {
		return errors.New("batch.concurrency must be at least 1")
	}
	if c.Batch.NuggetDuration <= 0 {
		return errors.New("batch.nugget_duration must be positive")
	}
	if c.Batch.OverlapDuration < 0 {
		return errors.New("batch.overlap_duration must not be negative")
	}
	if c.Batch.OverlapDuration >= c.Batch.NuggetDuration {
		return errors.New("batch.overlap_duration must be shorter than batch.nugget_duration")
	}
	for _, format := range c.Batch.ExportFormats {
		if !KnownExportFormat(format) {
			return fmt.Errorf("batch.export_formats: unknown format %q", format)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
