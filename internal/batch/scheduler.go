package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"nugget/internal/export"
	"nugget/internal/logging"
	"nugget/internal/pipeline"
	"nugget/internal/services"
)

// ItemRunner executes the full stage sequence for one item. Satisfied by
// *pipeline.Runner; tests substitute stubs.
type ItemRunner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

type eventKind int

const (
	eventStarted eventKind = iota
	eventRetrying
	eventFinished
)

type itemEvent struct {
	kind      eventKind
	position  int
	reference string
	attempt   int
	err       error
	result    pipeline.Result
}

// execution drives one running job. Items are admitted in submission order by
// a single dispatcher, processed by up to Config.Concurrency workers, and all
// store writes flow through a single collector goroutine so item results and
// progress never race.
type execution struct {
	job    *Job
	store  *Store
	runner ItemRunner
	logger *slog.Logger

	tracker *tracker

	mu       sync.Mutex
	paused   bool
	resumeCh chan struct{}

	cancelled  atomic.Bool
	cancelCh   chan struct{}
	cancelOnce sync.Once

	fatalErr error

	done chan struct{}
}

func newExecution(job *Job, store *Store, runner ItemRunner, logger *slog.Logger) *execution {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &execution{
		job:      job,
		store:    store,
		runner:   runner,
		logger:   logger.With(logging.String(logging.FieldJobID, job.ID)),
		tracker:  newTracker(len(job.Items), time.Now().UTC()),
		cancelCh: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// requestCancel flips the cooperative flag. In-flight stage calls finish
// naturally; everything not yet admitted is recorded as skipped.
func (e *execution) requestCancel() {
	e.cancelOnce.Do(func() {
		e.cancelled.Store(true)
		close(e.cancelCh)
	})
}

func (e *execution) pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.paused {
		e.paused = true
		e.resumeCh = make(chan struct{})
	}
}

func (e *execution) resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		e.paused = false
		close(e.resumeCh)
	}
}

// waitAdmission blocks while the job is paused. It returns false once the
// job is cancelled or the context expires, meaning no further items may
// start.
func (e *execution) waitAdmission(ctx context.Context) bool {
	for {
		if e.cancelled.Load() || ctx.Err() != nil {
			return false
		}
		e.mu.Lock()
		paused := e.paused
		resume := e.resumeCh
		e.mu.Unlock()
		if !paused {
			return true
		}
		select {
		case <-resume:
		case <-e.cancelCh:
		case <-ctx.Done():
		}
	}
}

func (e *execution) run(ctx context.Context) {
	defer close(e.done)

	events := make(chan itemEvent, len(e.job.Items)*2+4)
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		e.collect(ctx, events)
	}()

	slots := make(chan struct{}, e.job.Config.Concurrency)
	var wg sync.WaitGroup
	admitted := 0

	for position, reference := range e.job.Items {
		if !e.waitAdmission(ctx) {
			break
		}
		acquired := false
		select {
		case slots <- struct{}{}:
			acquired = true
		case <-e.cancelCh:
		case <-ctx.Done():
		}
		// A pause may have landed while the dispatcher was blocked on a
		// slot, so admission is re-checked before the item starts.
		if !e.waitAdmission(ctx) {
			if acquired {
				<-slots
			}
			break
		}
		admitted++
		wg.Add(1)
		go func(position int, reference string) {
			defer wg.Done()
			defer func() { <-slots }()
			e.runItem(ctx, position, reference, events)
		}(position, reference)
	}

	wg.Wait()
	close(events)
	<-collectorDone

	e.finalize(ctx, admitted)
}

func (e *execution) runItem(ctx context.Context, position int, reference string, events chan<- itemEvent) {
	events <- itemEvent{kind: eventStarted, position: position, reference: reference}

	cfg := e.job.Config
	formats := make([]export.Format, 0, len(cfg.ExportFormats))
	for _, name := range cfg.ExportFormats {
		format, ok := export.ParseFormat(name)
		if !ok {
			events <- itemEvent{kind: eventFinished, position: position, reference: reference,
				err: fmt.Errorf("%w: export: format: unknown format %q", services.ErrExport, name)}
			return
		}
		formats = append(formats, format)
	}

	req := pipeline.Request{
		Reference:          reference,
		NuggetDuration:     cfg.NuggetDuration,
		OverlapDuration:    cfg.OverlapDuration,
		EnableTranscript:   cfg.EnableTranscript,
		EnableAnalysis:     cfg.EnableAnalysis,
		EnableSocialExport: cfg.EnableSocialExport,
		OutputDir:          cfg.OutputDir,
		BaseName:           fmt.Sprintf("%s-item-%03d", e.job.ID[:8], position+1),
		ExportFormats:      formats,
		RetryFailed:        cfg.RetryFailed,
		MaxRetries:         cfg.MaxRetries,
		Cancelled:          e.cancelled.Load,
		OnRetry: func(attempt int, err error) {
			events <- itemEvent{kind: eventRetrying, position: position, reference: reference, attempt: attempt, err: err}
		},
	}

	itemCtx := services.WithItem(services.WithJobID(ctx, e.job.ID), reference)
	result, err := e.runner.Run(itemCtx, req)
	events <- itemEvent{kind: eventFinished, position: position, reference: reference, result: result, err: err}
}

// collect is the only writer of item results while the job runs.
func (e *execution) collect(ctx context.Context, events <-chan itemEvent) {
	for event := range events {
		var err error
		switch event.kind {
		case eventStarted:
			progress := e.tracker.itemStarted(event.position, event.reference)
			err = e.store.SetItemResult(ctx, e.job.ID, ItemResult{
				Position:  event.position,
				Reference: event.reference,
				Status:    ItemRunning,
			}, progress)
		case eventRetrying:
			e.logger.Warn("item retrying",
				logging.String(logging.FieldItem, event.reference),
				logging.Int("attempt", event.attempt),
				logging.Error(event.err),
			)
			err = e.store.SetItemResult(ctx, e.job.ID, ItemResult{
				Position:     event.position,
				Reference:    event.reference,
				Status:       ItemRetrying,
				Attempts:     event.attempt,
				ErrorMessage: event.err.Error(),
			}, e.tracker.snapshot())
		case eventFinished:
			result := e.itemResult(event)
			progress := e.tracker.itemFinished(event.position, result.Status, event.result.Elapsed)
			err = e.store.SetItemResult(ctx, e.job.ID, result, progress)
		}
		if err != nil && e.fatalErr == nil {
			e.fatalErr = fmt.Errorf("%w: persist item state: %v", services.ErrFatal, err)
			e.logger.Error("persisting item state failed, cancelling job", logging.Error(err))
			e.requestCancel()
		}
	}
}

func (e *execution) itemResult(event itemEvent) ItemResult {
	result := ItemResult{
		Position:       event.position,
		Reference:      event.reference,
		Attempts:       event.result.Attempts,
		ElapsedSeconds: event.result.Elapsed.Seconds(),
	}
	switch {
	case event.err == nil:
		result.Status = ItemSuccess
		info := event.result.Info
		result.VideoInfo = &info
		result.Nuggets = event.result.Nuggets
		result.Analysis = event.result.Analysis
		result.OutputFiles = event.result.OutputFiles
		e.logger.Info("item completed",
			logging.String(logging.FieldItem, event.reference),
			logging.Int("nuggets", len(result.Nuggets)),
			logging.Int("attempts", result.Attempts),
		)
	case errors.Is(event.err, pipeline.ErrCancelled):
		result.Status = ItemSkipped
		result.ErrorMessage = "cancelled before completion"
	default:
		result.Status = ItemFailed
		result.ErrorMessage = event.err.Error()
		attrs := []logging.Attr{
			logging.String(logging.FieldItem, event.reference),
			logging.Int("attempts", result.Attempts),
			logging.Error(event.err),
		}
		if hint := errorHint(event.err); hint != "" {
			attrs = append(attrs, logging.String(logging.FieldErrorHint, hint))
		}
		e.logger.Warn("item failed", logging.Args(attrs...)...)
	}
	return result
}

// errorHint maps stage failures to operator guidance surfaced in logs.
func errorHint(err error) string {
	if !services.IsStageError(err) {
		return ""
	}
	switch {
	case errors.Is(err, services.ErrFetch):
		return "check the video reference and that yt-dlp is installed and current"
	case errors.Is(err, services.ErrTranscription):
		return "check the whisper installation and configured model"
	case errors.Is(err, services.ErrAnalysis):
		return "check the LLM API key, base URL, and model"
	case errors.Is(err, services.ErrExport):
		return "check that the output directory exists and is writable"
	default:
		return ""
	}
}

// finalize records the terminal status, the final progress snapshot, and a
// skipped marker for every item that was never admitted, in one transaction.
func (e *execution) finalize(ctx context.Context, admitted int) {
	var skipped []ItemResult
	for position := admitted; position < len(e.job.Items); position++ {
		skipped = append(skipped, ItemResult{
			Position:     position,
			Reference:    e.job.Items[position],
			Status:       ItemSkipped,
			ErrorMessage: "job cancelled before item started",
		})
	}

	to := StatusCompleted
	switch {
	case e.fatalErr != nil:
		to = StatusFailed
	case e.cancelled.Load() || ctx.Err() != nil:
		to = StatusCancelled
	}

	final := e.tracker.final()
	if err := e.store.Finalize(context.WithoutCancel(ctx), e.job.ID, to, final, skipped); err != nil {
		e.logger.Error("finalizing job failed", logging.Error(err))
		return
	}
	e.logger.Info("job finished",
		logging.String(logging.FieldEventType, "job_finished"),
		logging.String("status", string(to)),
		logging.Int("processed", final.Processed),
		logging.Int("failed", final.Failed),
		logging.Int("skipped", len(e.job.Items)-final.Processed-final.Failed),
		logging.Float64("percentage", final.Percentage),
	)
}
