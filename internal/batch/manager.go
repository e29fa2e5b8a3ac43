package batch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"nugget/internal/config"
	"nugget/internal/logging"
	"nugget/internal/services"
)

// PlaylistExpander turns a playlist reference into the individual video
// references it contains.
type PlaylistExpander interface {
	ExpandPlaylist(ctx context.Context, reference string) ([]string, error)
}

// Manager owns the lifecycle of batch jobs: creation, start, pause, resume,
// cancel, deletion, and status queries. Job state is persisted through the
// store; the in-memory registry tracks only currently running executions.
type Manager struct {
	cfg    *config.Config
	store  *Store
	runner ItemRunner
	logger *slog.Logger

	expander PlaylistExpander

	mu     sync.Mutex
	active map[string]*execution
	wg     sync.WaitGroup
}

// ManagerOption customizes the manager.
type ManagerOption func(*Manager)

// WithPlaylistExpander enables CreateJobFromPlaylist.
func WithPlaylistExpander(expander PlaylistExpander) ManagerOption {
	return func(m *Manager) { m.expander = expander }
}

// NewManager wires the manager. The logger may be nil.
func NewManager(cfg *config.Config, store *Store, runner ItemRunner, logger *slog.Logger, opts ...ManagerOption) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("manager requires configuration")
	}
	if store == nil {
		return nil, errors.New("manager requires a store")
	}
	if runner == nil {
		return nil, errors.New("manager requires an item runner")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:    cfg,
		store:  store,
		runner: runner,
		logger: logging.NewComponentLogger(logger, "batch"),
		active: make(map[string]*execution),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// DefaultJobConfig derives a per-job configuration from the application
// configuration.
func DefaultJobConfig(cfg *config.Config) Config {
	return Config{
		Concurrency:        cfg.Batch.Concurrency,
		RetryFailed:        cfg.Batch.RetryFailed,
		MaxRetries:         cfg.Batch.MaxRetries,
		NuggetDuration:     cfg.Batch.NuggetDuration,
		OverlapDuration:    cfg.Batch.OverlapDuration,
		EnableTranscript:   cfg.Batch.EnableTranscript,
		EnableAnalysis:     cfg.Batch.EnableAnalysis,
		EnableSocialExport: cfg.Batch.EnableSocialExport,
		OutputDir:          cfg.Paths.OutputDir,
		ExportFormats:      append([]string(nil), cfg.Batch.ExportFormats...),
	}
}

// CreateJob validates and persists a new pending job. Duplicate references
// are kept and processed independently.
func (m *Manager) CreateJob(ctx context.Context, req CreateRequest) (*Job, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	job := &Job{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Items:     req.Items,
		Config:    req.Config,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	job.Progress.Total = len(job.Items)
	job.Progress.recomputePercentage()
	job.Results = make([]ItemResult, len(job.Items))
	for i, reference := range job.Items {
		job.Results[i] = ItemResult{Position: i, Reference: reference, Status: ItemPending}
	}

	if err := m.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	m.logger.Info("job created",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("name", job.Name),
		logging.Int("items", len(job.Items)),
		logging.Bool("retry_failed", job.Config.RetryFailed),
	)
	return job.Clone(), nil
}

// CreateJobFromPlaylist expands a playlist reference into its videos and
// creates a job over them.
func (m *Manager) CreateJobFromPlaylist(ctx context.Context, name, reference string, jobConfig Config) (*Job, error) {
	if m.expander == nil {
		return nil, errors.New("playlist expansion is not configured")
	}
	items, err := m.expander.ExpandPlaylist(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("expand playlist: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: playlist %q contains no videos", services.ErrValidation, reference)
	}
	return m.CreateJob(ctx, CreateRequest{Name: name, Items: items, Config: jobConfig})
}

// StartJob transitions a pending job to running and launches its execution.
// Starting a job that is already running or paused returns ErrAlreadyRunning.
func (m *Manager) StartJob(ctx context.Context, id string) error {
	err := m.store.TransitionStatus(ctx, id, StatusRunning, StatusPending)
	var conflict *StatusConflictError
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: job %s", services.ErrNotFound, id)
	case errors.As(err, &conflict):
		if conflict.Current == StatusRunning || conflict.Current == StatusPaused {
			return fmt.Errorf("%w: job %s is %s", services.ErrAlreadyRunning, id, conflict.Current)
		}
		return fmt.Errorf("%w: job %s is %s and cannot be started", services.ErrValidation, id, conflict.Current)
	case err != nil:
		return fmt.Errorf("start job: %w", err)
	}

	job, err := m.store.GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("start job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("%w: job %s", services.ErrNotFound, id)
	}

	exec := newExecution(job, m.store, m.runner, m.logger)
	m.mu.Lock()
	m.active[id] = exec
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			delete(m.active, id)
			m.mu.Unlock()
		}()
		exec.run(context.WithoutCancel(ctx))
	}()

	m.logger.Info("job started",
		logging.String(logging.FieldJobID, id),
		logging.Int("items", len(job.Items)),
		logging.Int("concurrency", job.Config.Concurrency),
	)
	return nil
}

// WaitJob blocks until the job's execution finishes or the context expires.
// It returns immediately when the job is not currently running.
func (m *Manager) WaitJob(ctx context.Context, id string) error {
	m.mu.Lock()
	exec, ok := m.active[id]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-exec.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CancelJob requests cooperative cancellation. In-flight items finish their
// current stage; everything else is skipped. A paused job is woken so it can
// wind down.
func (m *Manager) CancelJob(ctx context.Context, id string) error {
	m.mu.Lock()
	exec, ok := m.active[id]
	m.mu.Unlock()
	if ok {
		exec.requestCancel()
		exec.resume()
		m.logger.Info("job cancellation requested", logging.String(logging.FieldJobID, id))
		return nil
	}

	// Not in the registry: either unknown, already terminal, or a stale
	// running record from an earlier process.
	job, err := m.store.GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("%w: job %s", services.ErrNotFound, id)
	}
	if job.Status != StatusRunning && job.Status != StatusPaused {
		return fmt.Errorf("%w: job %s is %s", services.ErrNotRunning, id, job.Status)
	}
	if err := m.store.TransitionStatus(ctx, id, StatusCancelled, StatusRunning, StatusPaused); err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	return nil
}

// PauseJob stops admitting new items; in-flight items run to completion.
func (m *Manager) PauseJob(ctx context.Context, id string) error {
	m.mu.Lock()
	exec, ok := m.active[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: job %s", services.ErrNotRunning, id)
	}
	if err := m.store.TransitionStatus(ctx, id, StatusPaused, StatusRunning); err != nil {
		var conflict *StatusConflictError
		if errors.As(err, &conflict) {
			return fmt.Errorf("%w: job %s is %s", services.ErrNotRunning, id, conflict.Current)
		}
		return fmt.Errorf("pause job: %w", err)
	}
	exec.pause()
	m.logger.Info("job paused", logging.String(logging.FieldJobID, id))
	return nil
}

// ResumeJob restarts admission for a paused job.
func (m *Manager) ResumeJob(ctx context.Context, id string) error {
	m.mu.Lock()
	exec, ok := m.active[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: job %s", services.ErrNotPaused, id)
	}
	if err := m.store.TransitionStatus(ctx, id, StatusRunning, StatusPaused); err != nil {
		var conflict *StatusConflictError
		if errors.As(err, &conflict) {
			return fmt.Errorf("%w: job %s is %s", services.ErrNotPaused, id, conflict.Current)
		}
		return fmt.Errorf("resume job: %w", err)
	}
	exec.resume()
	m.logger.Info("job resumed", logging.String(logging.FieldJobID, id))
	return nil
}

// GetJobStatus returns a snapshot of one job, or (nil, nil) when unknown.
func (m *Manager) GetJobStatus(ctx context.Context, id string) (*Job, error) {
	return m.store.GetJob(ctx, id)
}

// ListJobs returns snapshots of all known jobs in creation order.
func (m *Manager) ListJobs(ctx context.Context) ([]*Job, error) {
	return m.store.ListJobs(ctx)
}

// DeleteJob removes a job record. Active jobs must be cancelled first.
func (m *Manager) DeleteJob(ctx context.Context, id string) error {
	m.mu.Lock()
	_, running := m.active[id]
	m.mu.Unlock()
	if running {
		return fmt.Errorf("%w: job %s must be cancelled before deletion", services.ErrAlreadyRunning, id)
	}
	deleted, err := m.store.DeleteJob(ctx, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%w: job %s", services.ErrNotFound, id)
	}
	m.logger.Info("job deleted", logging.String(logging.FieldJobID, id))
	return nil
}

// Shutdown cancels all active executions and waits for them to persist their
// terminal state.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, exec := range m.active {
		exec.requestCancel()
		exec.resume()
	}
	m.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
