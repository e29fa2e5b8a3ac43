// Package pipeline runs the fixed stage sequence for one batch item:
// FetchMetadata, Segment, optional Transcribe, optional Analyze, Export, and
// optional social export. Retries restart the whole sequence from metadata
// fetch; stage outputs are not assumed safe to resume from mid-pipeline.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"nugget/internal/export"
	"nugget/internal/logging"
	"nugget/internal/nugget"
	"nugget/internal/segment"
	"nugget/internal/services"
)

// ErrCancelled is returned when a cancellation checkpoint fires between
// stages. In-flight stage calls are allowed to finish naturally first.
var ErrCancelled = errors.New("item cancelled")

// Stages bundles the pluggable stage functions. FetchMetadata, Segment, and
// Export are required; the rest are consulted only when the matching request
// flag is set.
type Stages struct {
	FetchMetadata func(ctx context.Context, reference string) (nugget.VideoInfo, error)
	Segment       func(ctx context.Context, info nugget.VideoInfo, opts segment.Options) ([]nugget.Nugget, error)
	Transcribe    func(ctx context.Context, reference string, info nugget.VideoInfo) (nugget.SpeechAnalysis, error)
	Analyze       func(ctx context.Context, transcript string, info nugget.VideoInfo) (nugget.ContentAnalysis, error)
	Export        func(ctx context.Context, nuggets []nugget.Nugget, formats []export.Format, outputDir, baseName string) ([]string, error)
	ExportSocial  func(ctx context.Context, nuggets []nugget.Nugget, info nugget.VideoInfo, outputDir string) ([]string, error)
}

// Request describes one item run.
type Request struct {
	Reference          string
	NuggetDuration     float64
	OverlapDuration    float64
	EnableTranscript   bool
	EnableAnalysis     bool
	EnableSocialExport bool
	OutputDir          string
	BaseName           string
	ExportFormats      []export.Format

	RetryFailed bool
	MaxRetries  uint

	// Cancelled is polled at the start of every stage. Nil means never.
	Cancelled func() bool
	// OnRetry is invoked after a failed attempt that will be retried, with
	// the attempt number just completed and its error.
	OnRetry func(attempt int, err error)
}

// Result is the outcome of a successful run.
type Result struct {
	Info        nugget.VideoInfo
	Nuggets     []nugget.Nugget
	Analysis    *nugget.ContentAnalysis
	OutputFiles []string
	Attempts    int
	Elapsed     time.Duration
}

// Runner executes requests against a fixed stage set.
type Runner struct {
	stages Stages
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

// Option customizes the runner.
type Option func(*Runner)

// WithSleeper overrides how retry backoff sleeps are performed (used in tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(r *Runner) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// NewRunner constructs a runner. The logger may be nil.
func NewRunner(stages Stages, logger *slog.Logger, opts ...Option) (*Runner, error) {
	if stages.FetchMetadata == nil {
		return nil, errors.New("pipeline requires a FetchMetadata stage")
	}
	if stages.Segment == nil {
		return nil, errors.New("pipeline requires a Segment stage")
	}
	if stages.Export == nil {
		return nil, errors.New("pipeline requires an Export stage")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	runner := &Runner{stages: stages, logger: logger, sleep: sleepContext}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

const (
	retryBaseDelay = time.Second
	retryMaxDelay  = 30 * time.Second
)

// Run executes the stage sequence with the request's retry policy. The
// returned Result always carries the attempt count, even on failure.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	maxAttempts := 1
	if req.RetryFailed {
		maxAttempts = 1 + int(req.MaxRetries)
	}

	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, r.logger)

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := r.runOnce(ctx, req)
		result.Attempts = attempt
		result.Elapsed = time.Since(start)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrCancelled) || ctx.Err() != nil {
			return result, err
		}
		if attempt == maxAttempts {
			break
		}

		logger.Warn("pipeline attempt failed, retrying",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", maxAttempts),
			logging.Error(err),
		)
		if req.OnRetry != nil {
			req.OnRetry(attempt, err)
		}
		delay := backoffDelay(attempt)
		logger.Debug("backing off before next attempt", logging.Duration("backoff", delay))
		if err := r.sleep(ctx, delay); err != nil {
			return result, err
		}
	}
	return Result{Attempts: maxAttempts, Elapsed: time.Since(start)}, lastErr
}

func (r *Runner) runOnce(ctx context.Context, req Request) (Result, error) {
	var result Result

	if cancelled(req) {
		return result, ErrCancelled
	}
	info, err := r.stages.FetchMetadata(services.WithStage(ctx, "fetch"), req.Reference)
	if err != nil {
		return result, err
	}
	result.Info = info

	if cancelled(req) {
		return result, ErrCancelled
	}
	nuggets, err := r.stages.Segment(services.WithStage(ctx, "segment"), info, segment.Options{
		NuggetDuration:  req.NuggetDuration,
		OverlapDuration: req.OverlapDuration,
	})
	if err != nil {
		return result, err
	}
	result.Nuggets = nuggets

	var transcript string
	if req.EnableTranscript && r.stages.Transcribe != nil {
		if cancelled(req) {
			return result, ErrCancelled
		}
		analysis, err := r.stages.Transcribe(services.WithStage(ctx, "transcribe"), req.Reference, info)
		if err != nil {
			return result, err
		}
		transcript = analysis.FullText()
		for i := range nuggets {
			nuggets[i].Transcript = segment.TranscriptFor(analysis, nuggets[i].StartTime, nuggets[i].EndTime)
		}
	}

	if req.EnableAnalysis && transcript != "" && r.stages.Analyze != nil {
		if cancelled(req) {
			return result, ErrCancelled
		}
		analysis, err := r.stages.Analyze(services.WithStage(ctx, "analyze"), transcript, info)
		if err != nil {
			return result, err
		}
		result.Analysis = &analysis
	}

	if cancelled(req) {
		return result, ErrCancelled
	}
	files, err := r.stages.Export(services.WithStage(ctx, "export"), nuggets, req.ExportFormats, req.OutputDir, req.BaseName)
	if err != nil {
		return result, err
	}
	result.OutputFiles = files

	if req.EnableSocialExport && r.stages.ExportSocial != nil {
		if cancelled(req) {
			return result, ErrCancelled
		}
		social, err := r.stages.ExportSocial(services.WithStage(ctx, "social"), nuggets, info, req.OutputDir)
		if err != nil {
			return result, err
		}
		result.OutputFiles = append(result.OutputFiles, social...)
	}

	return result, nil
}

func cancelled(req Request) bool {
	return req.Cancelled != nil && req.Cancelled()
}

func backoffDelay(attempt int) time.Duration {
	delay := retryBaseDelay << uint(attempt-1)
	if delay > retryMaxDelay || delay <= 0 {
		return retryMaxDelay
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
