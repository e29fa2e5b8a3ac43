package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation     = errors.New("validation error")
	ErrNotFound       = errors.New("not found")
	ErrNotRunning     = errors.New("job not running")
	ErrAlreadyRunning = errors.New("job already running")
	ErrNotPaused      = errors.New("job not paused")

	ErrFetch         = errors.New("metadata fetch failed")
	ErrSegment       = errors.New("segmentation failed")
	ErrTranscription = errors.New("transcription failed")
	ErrAnalysis      = errors.New("analysis failed")
	ErrExport        = errors.New("export failed")

	ErrFatal = errors.New("fatal scheduler error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrFetch
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsStageError reports whether an error belongs to the per-item stage taxonomy,
// as opposed to a facade precondition or a fatal condition.
func IsStageError(err error) bool {
	switch {
	case errors.Is(err, ErrFetch),
		errors.Is(err, ErrSegment),
		errors.Is(err, ErrTranscription),
		errors.Is(err, ErrAnalysis),
		errors.Is(err, ErrExport):
		return true
	default:
		return false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
