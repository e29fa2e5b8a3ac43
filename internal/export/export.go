// Package export serializes nugget sets to their on-disk formats.
//
// Every writer here is deterministic: exporting the same nugget set twice
// produces byte-identical output, so re-exports can be diffed and cached.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nugget/internal/nugget"
)

// Format identifies one supported export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat converts a string into a known Format.
func ParseFormat(value string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatJSON:
		return FormatJSON, true
	case FormatCSV:
		return FormatCSV, true
	case FormatMarkdown:
		return FormatMarkdown, true
	default:
		return "", false
	}
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// Render serializes nuggets into the requested format.
func Render(nuggets []nugget.Nugget, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return renderJSON(nuggets)
	case FormatCSV:
		return renderCSV(nuggets)
	case FormatMarkdown:
		return renderMarkdown(nuggets), nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// WriteFile renders nuggets and writes them below dir using the supplied base
// name. It returns the full path of the written file.
func WriteFile(nuggets []nugget.Nugget, format Format, dir, baseName string) (string, error) {
	data, err := Render(nuggets, format)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.%s", baseName, format.Extension()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return path, nil
}
