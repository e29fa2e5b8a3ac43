package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nugget/internal/logging"
	"nugget/internal/services"
)

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nugget.log")

	logger, err := logging.New(logging.Options{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("job admitted", logging.String("reference", "https://example.com/v"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, `"msg":"job admitted"`) {
		t.Fatalf("expected message in log output, got %q", content)
	}
	if !strings.Contains(content, `"reference":"https://example.com/v"`) {
		t.Fatalf("expected attribute in log output, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleHandlerIncludesContextFields(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "console.log")

	logger, err := logging.New(logging.Options{
		Level:            "debug",
		Format:           "console",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "0b5fca11-aaaa-bbbb-cccc-000000000000")
	ctx = services.WithStage(ctx, "segment")
	logging.WithContext(ctx, logger).Info("stage started")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "[0b5fca11/segment]") {
		t.Fatalf("expected job/stage header in console line, got %q", line)
	}
	if !strings.Contains(line, "stage started") {
		t.Fatalf("expected message in console line, got %q", line)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	// Must not panic and must report disabled at every level.
	logger.Error("ignored", logging.Error(nil))
	if logger.Enabled(context.Background(), 0) {
		t.Fatal("noop logger should be disabled")
	}
}
