// Package whisper runs the whisper command line tool over extracted audio
// and parses its JSON output into a transcript with timed segments.
package whisper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"nugget/internal/nugget"
	"nugget/internal/services"
)

// CommandRunner abstracts command execution (for testing).
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Service provides speech-to-text transcription.
type Service struct {
	binary string
	model  string
	runner CommandRunner
}

// DefaultModel is used when no model is configured.
const DefaultModel = "base"

// NewService creates a whisper service.
func NewService(binary, model string) (*Service, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("whisper binary required")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &Service{binary: binary, model: model}, nil
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner CommandRunner) {
	s.runner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	return s.model
}

// Transcribe runs whisper over an audio file, writing intermediates to
// outputDir, and returns the parsed speech analysis.
func (s *Service) Transcribe(ctx context.Context, audioPath, outputDir string) (nugget.SpeechAnalysis, error) {
	var analysis nugget.SpeechAnalysis
	if strings.TrimSpace(audioPath) == "" {
		return analysis, fmt.Errorf("%w: transcribe: audio path required", services.ErrValidation)
	}
	if outputDir == "" {
		outputDir = filepath.Dir(audioPath)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return analysis, services.Wrap(services.ErrTranscription, "transcribe", "prepare", "ensure output dir", err)
	}

	args := []string{
		audioPath,
		"--model", s.model,
		"--task", "transcribe",
		"--output_format", "json",
		"--output_dir", outputDir,
	}
	if err := s.run(ctx, s.binary, args...); err != nil {
		return analysis, services.Wrap(services.ErrTranscription, "transcribe", "whisper", "transcription failed", err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(outputDir, base+".json")
	analysis, err := loadAnalysis(jsonPath)
	if err != nil {
		return analysis, services.Wrap(services.ErrTranscription, "transcribe", "parse", "read whisper output", err)
	}
	return analysis, nil
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.runner != nil {
		return s.runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// whisperOutput mirrors the JSON whisper writes alongside the audio file.
type whisperOutput struct {
	Language string `json:"language"`
	Segments []struct {
		Start        float64 `json:"start"`
		End          float64 `json:"end"`
		Text         string  `json:"text"`
		AvgLogprob   float64 `json:"avg_logprob"`
		NoSpeechProb float64 `json:"no_speech_prob"`
	} `json:"segments"`
}

func loadAnalysis(path string) (nugget.SpeechAnalysis, error) {
	var analysis nugget.SpeechAnalysis
	data, err := os.ReadFile(path)
	if err != nil {
		return analysis, err
	}
	var output whisperOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return analysis, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	analysis.Language = output.Language
	var confidenceSum float64
	for _, seg := range output.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		confidence := segmentConfidence(seg.AvgLogprob, seg.NoSpeechProb)
		analysis.Segments = append(analysis.Segments, nugget.TranscriptSegment{
			StartTime:  seg.Start,
			EndTime:    seg.End,
			Text:       text,
			Confidence: confidence,
		})
		analysis.TotalSpeechTime += seg.End - seg.Start
		analysis.WordCount += len(strings.Fields(text))
		confidenceSum += confidence
	}
	if len(analysis.Segments) > 0 {
		analysis.AverageConfidence = confidenceSum / float64(len(analysis.Segments))
	}
	return analysis, nil
}

// segmentConfidence approximates a 0..1 confidence from whisper's
// per-segment statistics: the exponentiated mean token log-probability,
// discounted by the no-speech probability.
func segmentConfidence(avgLogprob, noSpeechProb float64) float64 {
	confidence := math.Exp(avgLogprob) * (1 - noSpeechProb)
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
