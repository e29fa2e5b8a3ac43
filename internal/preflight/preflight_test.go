package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"nugget/internal/config"
	"nugget/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("Workspace directory", dir)
	if !result.Passed {
		t.Fatalf("expected pass: %+v", result)
	}

	result = CheckDirectoryAccess("Workspace directory", filepath.Join(dir, "missing"))
	if result.Passed {
		t.Fatalf("expected failure for missing dir: %+v", result)
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	result = CheckDirectoryAccess("Workspace directory", file)
	if result.Passed {
		t.Fatalf("expected failure for regular file: %+v", result)
	}
}

func TestCheckDiskSpace(t *testing.T) {
	result := CheckDiskSpace("Workspace disk space", t.TempDir())
	if result.Detail == "" {
		t.Fatalf("expected detail: %+v", result)
	}

	result = CheckDiskSpace("Workspace disk space", "/definitely/not/a/path")
	if result.Passed {
		t.Fatalf("expected failure for bogus path: %+v", result)
	}
}

func TestCheckLLM(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer server.Close()

	result := CheckLLM(context.Background(), "Analysis LLM", config.LLM{
		APIKey: "key", BaseURL: server.URL, Model: "m",
	})
	if !result.Passed {
		t.Fatalf("expected pass: %+v", result)
	}

	result = CheckLLM(context.Background(), "Analysis LLM", config.LLM{})
	if result.Passed || result.Detail != "API key missing" {
		t.Fatalf("expected missing key failure: %+v", result)
	}
}

func TestRunAllSkipsLLMWhenAnalysisDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Batch.EnableAnalysis = false
	for _, result := range RunAll(context.Background(), cfg) {
		if result.Name == "Analysis LLM" {
			t.Fatal("LLM check should be skipped when analysis is off")
		}
	}

	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatalf("nil config should yield no checks, got %v", results)
	}
}
