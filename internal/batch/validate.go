package batch

import (
	"fmt"
	"strings"

	"nugget/internal/config"
	"nugget/internal/services"
)

// CreateRequest is the caller-facing shape of a new job.
type CreateRequest struct {
	Name   string
	Items  []string
	Config Config
}

// normalize trims the request in place and reports the first validation
// failure. Duplicate references are allowed and processed independently.
func (r *CreateRequest) normalize() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return fmt.Errorf("%w: job name is required", services.ErrValidation)
	}

	cleaned := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		cleaned = append(cleaned, item)
	}
	if len(cleaned) == 0 {
		return fmt.Errorf("%w: job requires at least one item", services.ErrValidation)
	}
	r.Items = cleaned

	if r.Config.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1 (got %d)", services.ErrValidation, r.Config.Concurrency)
	}
	if r.Config.NuggetDuration <= 0 {
		return fmt.Errorf("%w: nugget duration must be positive", services.ErrValidation)
	}
	if r.Config.OverlapDuration < 0 {
		return fmt.Errorf("%w: overlap duration must not be negative", services.ErrValidation)
	}
	if r.Config.OverlapDuration >= r.Config.NuggetDuration {
		return fmt.Errorf("%w: overlap duration must be shorter than nugget duration", services.ErrValidation)
	}
	if len(r.Config.ExportFormats) == 0 {
		return fmt.Errorf("%w: at least one export format is required", services.ErrValidation)
	}
	for i, format := range r.Config.ExportFormats {
		format = strings.ToLower(strings.TrimSpace(format))
		if !config.KnownExportFormat(format) {
			return fmt.Errorf("%w: unknown export format %q", services.ErrValidation, format)
		}
		r.Config.ExportFormats[i] = format
	}
	return nil
}
