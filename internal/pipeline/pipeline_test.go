package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"nugget/internal/export"
	"nugget/internal/nugget"
	"nugget/internal/segment"
)

func stubStages(calls *[]string) Stages {
	record := func(name string) {
		*calls = append(*calls, name)
	}
	return Stages{
		FetchMetadata: func(_ context.Context, reference string) (nugget.VideoInfo, error) {
			record("fetch")
			return nugget.VideoInfo{URL: reference, Title: "Stub Video", Duration: 65}, nil
		},
		Segment: func(_ context.Context, info nugget.VideoInfo, opts segment.Options) ([]nugget.Nugget, error) {
			record("segment")
			return segment.Slice(info, opts)
		},
		Transcribe: func(_ context.Context, _ string, _ nugget.VideoInfo) (nugget.SpeechAnalysis, error) {
			record("transcribe")
			return nugget.SpeechAnalysis{Segments: []nugget.TranscriptSegment{{StartTime: 0, EndTime: 5, Text: "hello world"}}}, nil
		},
		Analyze: func(_ context.Context, transcript string, _ nugget.VideoInfo) (nugget.ContentAnalysis, error) {
			record("analyze")
			return nugget.ContentAnalysis{Summary: "summary of " + transcript}, nil
		},
		Export: func(_ context.Context, nuggets []nugget.Nugget, _ []export.Format, _ string, baseName string) ([]string, error) {
			record("export")
			return []string{baseName + ".json"}, nil
		},
		ExportSocial: func(_ context.Context, _ []nugget.Nugget, _ nugget.VideoInfo, _ string) ([]string, error) {
			record("social")
			return []string{"social.md"}, nil
		},
	}
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func baseRequest() Request {
	return Request{
		Reference:       "https://example.com/watch?v=abc",
		NuggetDuration:  30,
		OverlapDuration: 5,
		OutputDir:       "/tmp/out",
		BaseName:        "stub-video",
		ExportFormats:   []export.Format{export.FormatJSON},
	}
}

func TestRunnerRunsRequiredStagesInOrder(t *testing.T) {
	var calls []string
	runner, err := NewRunner(stubStages(&calls), nil, WithSleeper(noSleep))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	result, err := runner.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := []string{"fetch", "segment", "export"}
	if len(calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, calls)
	}
	for i, name := range want {
		if calls[i] != name {
			t.Fatalf("call %d: expected %q, got %q", i, name, calls[i])
		}
	}
	if result.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", result.Attempts)
	}
	if len(result.Nuggets) == 0 {
		t.Fatal("expected nuggets from segment stage")
	}
	if len(result.OutputFiles) != 1 || result.OutputFiles[0] != "stub-video.json" {
		t.Fatalf("unexpected output files: %v", result.OutputFiles)
	}
}

func TestRunnerOptionalStages(t *testing.T) {
	var calls []string
	runner, err := NewRunner(stubStages(&calls), nil, WithSleeper(noSleep))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	req := baseRequest()
	req.EnableTranscript = true
	req.EnableAnalysis = true
	req.EnableSocialExport = true
	result, err := runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := []string{"fetch", "segment", "transcribe", "analyze", "export", "social"}
	if len(calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, calls)
	}
	if result.Analysis == nil || result.Analysis.Summary == "" {
		t.Fatal("expected analysis result")
	}
	if len(result.OutputFiles) != 2 {
		t.Fatalf("expected export plus social output, got %v", result.OutputFiles)
	}
	if result.Nuggets[0].Transcript == "" {
		t.Fatal("expected transcript copied onto first nugget")
	}
}

func TestRunnerAnalysisSkippedWithoutTranscript(t *testing.T) {
	var calls []string
	runner, err := NewRunner(stubStages(&calls), nil, WithSleeper(noSleep))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	req := baseRequest()
	req.EnableAnalysis = true
	if _, err := runner.Run(context.Background(), req); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, name := range calls {
		if name == "analyze" {
			t.Fatal("analysis should not run without a transcript")
		}
	}
}

func TestRunnerRetriesWholePipeline(t *testing.T) {
	var calls []string
	stages := stubStages(&calls)
	fetchCalls := 0
	stages.FetchMetadata = func(_ context.Context, reference string) (nugget.VideoInfo, error) {
		calls = append(calls, "fetch")
		fetchCalls++
		if fetchCalls < 3 {
			return nugget.VideoInfo{}, errors.New("metadata fetch timed out")
		}
		return nugget.VideoInfo{URL: reference, Title: "Stub Video", Duration: 65}, nil
	}

	var delays []time.Duration
	runner, err := NewRunner(stages, nil, WithSleeper(func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	req := baseRequest()
	req.RetryFailed = true
	req.MaxRetries = 2
	var retried []int
	req.OnRetry = func(attempt int, err error) {
		if err == nil {
			t.Fatal("OnRetry called without error")
		}
		retried = append(retried, attempt)
	}

	result, err := runner.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run failed after retries: %v", err)
	}
	if result.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", result.Attempts)
	}
	if fetchCalls != 3 {
		t.Fatalf("expected metadata fetched on every attempt, got %d calls", fetchCalls)
	}
	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Fatalf("unexpected retry notifications: %v", retried)
	}
	if len(delays) != 2 || delays[0] != time.Second || delays[1] != 2*time.Second {
		t.Fatalf("unexpected backoff delays: %v", delays)
	}
}

func TestRunnerExhaustsRetries(t *testing.T) {
	var calls []string
	stages := stubStages(&calls)
	stageErr := errors.New("segmentation failed")
	stages.Segment = func(_ context.Context, _ nugget.VideoInfo, _ segment.Options) ([]nugget.Nugget, error) {
		return nil, stageErr
	}
	runner, err := NewRunner(stages, nil, WithSleeper(noSleep))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	req := baseRequest()
	req.RetryFailed = true
	req.MaxRetries = 2
	result, err := runner.Run(context.Background(), req)
	if !errors.Is(err, stageErr) {
		t.Fatalf("expected stage error, got %v", err)
	}
	if result.Attempts != 3 {
		t.Fatalf("expected 3 attempts recorded on failure, got %d", result.Attempts)
	}
}

func TestRunnerNoRetryWhenDisabled(t *testing.T) {
	var calls []string
	stages := stubStages(&calls)
	attempts := 0
	stages.FetchMetadata = func(_ context.Context, _ string) (nugget.VideoInfo, error) {
		attempts++
		return nugget.VideoInfo{}, errors.New("unreachable host")
	}
	runner, err := NewRunner(stages, nil, WithSleeper(noSleep))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	req := baseRequest()
	req.MaxRetries = 5
	if _, err := runner.Run(context.Background(), req); err == nil {
		t.Fatal("expected failure")
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt with retry disabled, got %d", attempts)
	}
}

func TestRunnerCancellationStopsBetweenStages(t *testing.T) {
	var calls []string
	stages := stubStages(&calls)
	cancelAfterFetch := false
	stages.FetchMetadata = func(_ context.Context, reference string) (nugget.VideoInfo, error) {
		calls = append(calls, "fetch")
		cancelAfterFetch = true
		return nugget.VideoInfo{URL: reference, Title: "Stub Video", Duration: 65}, nil
	}
	runner, err := NewRunner(stages, nil, WithSleeper(noSleep))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	req := baseRequest()
	req.RetryFailed = true
	req.MaxRetries = 3
	req.Cancelled = func() bool { return cancelAfterFetch }
	_, err = runner.Run(context.Background(), req)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	for _, name := range calls {
		if name == "segment" {
			t.Fatal("segment stage ran after cancellation")
		}
	}
	if len(calls) != 1 {
		t.Fatalf("cancelled run should not retry, calls=%v", calls)
	}
}

func TestNewRunnerRequiresCoreStages(t *testing.T) {
	var calls []string
	stages := stubStages(&calls)
	stages.Export = nil
	if _, err := NewRunner(stages, nil); err == nil {
		t.Fatal("expected error for missing export stage")
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	if d := backoffDelay(1); d != time.Second {
		t.Fatalf("attempt 1 delay: %v", d)
	}
	if d := backoffDelay(4); d != 8*time.Second {
		t.Fatalf("attempt 4 delay: %v", d)
	}
	if d := backoffDelay(40); d != retryMaxDelay {
		t.Fatalf("expected cap, got %v", d)
	}
}
