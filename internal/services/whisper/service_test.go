package whisper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"nugget/internal/services"
)

const sampleOutput = `{
  "language": "en",
  "segments": [
    {"start": 0.0, "end": 4.2, "text": " Hello and welcome.", "avg_logprob": -0.1, "no_speech_prob": 0.01},
    {"start": 4.2, "end": 9.8, "text": " Today we talk about Go.", "avg_logprob": -0.2, "no_speech_prob": 0.02},
    {"start": 9.8, "end": 10.4, "text": "   ", "avg_logprob": -1.5, "no_speech_prob": 0.9}
  ]
}`

func TestTranscribeParsesWhisperJSON(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "talk.wav")
	if err := os.WriteFile(audio, []byte("fake"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	service, err := NewService("whisper", "base")
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	var gotArgs []string
	service.WithCommandRunner(func(_ context.Context, _ string, args ...string) error {
		gotArgs = args
		return os.WriteFile(filepath.Join(dir, "talk.json"), []byte(sampleOutput), 0o644)
	})

	analysis, err := service.Transcribe(context.Background(), audio, dir)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if analysis.Language != "en" {
		t.Fatalf("language: %q", analysis.Language)
	}
	// Blank segments are dropped.
	if len(analysis.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(analysis.Segments))
	}
	if analysis.Segments[0].Text != "Hello and welcome." {
		t.Fatalf("segment text: %q", analysis.Segments[0].Text)
	}
	if analysis.WordCount != 8 {
		t.Fatalf("word count: %d", analysis.WordCount)
	}
	if analysis.TotalSpeechTime < 9.7 || analysis.TotalSpeechTime > 9.9 {
		t.Fatalf("speech time: %v", analysis.TotalSpeechTime)
	}
	if analysis.AverageConfidence <= 0 || analysis.AverageConfidence > 1 {
		t.Fatalf("confidence out of range: %v", analysis.AverageConfidence)
	}

	wantFlags := map[string]string{"--model": "base", "--output_format": "json", "--output_dir": dir}
	for flag, value := range wantFlags {
		found := false
		for i, arg := range gotArgs {
			if arg == flag && i+1 < len(gotArgs) && gotArgs[i+1] == value {
				found = true
			}
		}
		if !found {
			t.Fatalf("missing %s %s in %v", flag, value, gotArgs)
		}
	}
}

func TestTranscribeCommandFailure(t *testing.T) {
	service, err := NewService("whisper", "")
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	service.WithCommandRunner(func(_ context.Context, _ string, _ ...string) error {
		return errors.New("model not found")
	})
	if _, err := service.Transcribe(context.Background(), "/tmp/a.wav", t.TempDir()); !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
}

func TestTranscribeMissingOutput(t *testing.T) {
	service, _ := NewService("whisper", "base")
	service.WithCommandRunner(func(_ context.Context, _ string, _ ...string) error {
		return nil
	})
	if _, err := service.Transcribe(context.Background(), "/tmp/a.wav", t.TempDir()); !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription error for missing JSON, got %v", err)
	}
}

func TestNewServiceDefaultsModel(t *testing.T) {
	service, err := NewService("whisper", "  ")
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if service.Model() != DefaultModel {
		t.Fatalf("expected default model, got %q", service.Model())
	}
	if _, err := NewService("", "base"); err == nil {
		t.Fatal("expected error for empty binary")
	}
}
