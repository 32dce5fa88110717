package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"budgetpulse/internal/budget"
	"budgetpulse/internal/infrastructure"
)

// Job queue errors
var (
	ErrQueueFull    = errors.New("job queue is full")
	ErrQueueStopped = errors.New("job queue is stopped")
)

// JobQueue runs analysis jobs on a fixed pool of workers
type JobQueue struct {
	mu         sync.RWMutex
	jobs       chan *Job
	workers    int
	wg         sync.WaitGroup
	store      JobStore
	manager    *Manager
	workspaces *Workspaces
	logger     *slog.Logger
	shutdown   chan struct{}
	stopOnce   sync.Once
	stopped    bool
	active     map[string]*Job // Currently executing jobs
}

// NewJobQueue creates a new job queue
func NewJobQueue(cfg *Config, store JobStore, manager *Manager, workspaces *Workspaces, logger *slog.Logger) *JobQueue {
	if cfg == nil {
		cfg = NewConfig()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &JobQueue{
		jobs:       make(chan *Job, size),
		workers:    workers,
		store:      store,
		manager:    manager,
		workspaces: workspaces,
		logger:     logger.With(slog.String("component", "jobqueue")),
		shutdown:   make(chan struct{}),
		active:     make(map[string]*Job),
	}
}

// Start begins processing jobs
func (q *JobQueue) Start(ctx context.Context) {
	q.logger.Info("starting job queue", slog.Int("workers", q.workers))

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Stop stops accepting jobs and waits for in-flight jobs to finish
func (q *JobQueue) Stop(timeout time.Duration) error {
	q.logger.Info("stopping job queue")

	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.stopped = true
		q.mu.Unlock()
		close(q.shutdown)
	})

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("job queue stopped gracefully")
		return nil
	case <-time.After(timeout):
		q.logger.Warn("job queue stop timeout exceeded")
		return fmt.Errorf("timeout waiting for workers to finish")
	}
}

// Submit creates a processing job for an uploaded dataset and queues it.
// The input is stored in the job's workspace and read back by the worker.
func (q *JobQueue) Submit(ctx context.Context, input []byte) (*Job, error) {
	q.mu.RLock()
	stopped := q.stopped
	q.mu.RUnlock()
	if stopped {
		return nil, ErrQueueStopped
	}

	id := uuid.New().String()
	dir, err := q.workspaces.Prepare(id, input)
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:        id,
		Status:    JobStatusProcessing,
		Workspace: dir,
		TraceID:   infrastructure.GetTraceID(ctx),
		CreatedAt: time.Now(),
	}
	if err := q.store.CreateJob(job); err != nil {
		q.workspaces.Remove(id)
		return nil, fmt.Errorf("failed to save job: %w", err)
	}
	infrastructure.RecordJobSubmitted(ctx, q.metrics())

	select {
	case q.jobs <- job.Clone():
		q.logger.InfoContext(ctx, "job enqueued", slog.String("job_id", job.ID))
		return job, nil
	default:
		q.finish(ctx, job, nil, ErrQueueFull)
		q.workspaces.Remove(id)
		return nil, ErrQueueFull
	}
}

// GetJob retrieves a job by ID
func (q *JobQueue) GetJob(id string) (*Job, error) {
	return q.store.GetJob(id)
}

// ListJobs returns jobs matching the filter
func (q *JobQueue) ListJobs(filter JobFilter) ([]*Job, error) {
	return q.store.ListJobs(filter)
}

// Release removes a job's workspace once its report has been delivered.
// The job record is kept.
func (q *JobQueue) Release(id string) error {
	if err := q.workspaces.Remove(id); err != nil {
		return err
	}
	if b := q.manager.GetBroadcaster(); b != nil {
		b.Forget(id)
	}
	return nil
}

// worker processes jobs from the queue
func (q *JobQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	logger := q.logger.With(slog.Int("worker_id", workerID))
	logger.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker stopped by context")
			return
		case <-q.shutdown:
			logger.Debug("worker stopped by shutdown")
			return
		case job := <-q.jobs:
			q.processJob(ctx, job, logger)
		}
	}
}

// processJob executes a single job. A panic in any stage fails the job.
func (q *JobQueue) processJob(ctx context.Context, job *Job, logger *slog.Logger) {
	ctx = infrastructure.WithJobID(ctx, job.ID)
	if job.TraceID != "" {
		ctx = infrastructure.WithTraceID(ctx, job.TraceID)
	}
	ctx = infrastructure.EnsureTraceID(ctx)
	logger = logger.With(slog.String("job_id", job.ID))
	logger.InfoContext(ctx, "processing job started")

	q.mu.Lock()
	q.active[job.ID] = job
	q.mu.Unlock()

	var state *PipelineState
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "job processing panicked", slog.Any("panic", r))
			q.finish(ctx, job, state, fmt.Errorf("job processing panicked: %v", r))
		}

		q.mu.Lock()
		delete(q.active, job.ID)
		q.mu.Unlock()
	}()

	now := time.Now()
	job.StartedAt = &now
	if err := q.store.UpdateJob(job); err != nil {
		logger.ErrorContext(ctx, "failed to update job status", slog.String("error", err.Error()))
	}

	input, err := q.workspaces.Input(job.ID)
	if err != nil {
		q.finish(ctx, job, nil, fmt.Errorf("failed to read input: %w", err))
		return
	}
	dataset, err := budget.ParseDataset(input)
	if err != nil {
		q.finish(ctx, job, nil, err)
		return
	}

	state = NewPipelineState(job.ID, job.Workspace, dataset)
	err = q.manager.Execute(ctx, state)
	q.finish(ctx, job, state, err)
}

// finish moves a job to its terminal status
func (q *JobQueue) finish(ctx context.Context, job *Job, state *PipelineState, err error) {
	now := time.Now()
	job.CompletedAt = &now
	if job.StartedAt == nil {
		job.StartedAt = &now
	}

	broadcaster := q.manager.GetBroadcaster()
	if err != nil {
		job.Status = JobStatusFailed
		job.Error = RootMessage(err)
		var opErr *OperationError
		if errors.As(err, &opErr) {
			job.Stage = opErr.Stage
		}
		q.logger.ErrorContext(ctx, "job failed",
			slog.String("job_id", job.ID),
			slog.String("stage", job.Stage),
			slog.String("error", job.Error))
		if broadcaster != nil {
			broadcaster.FailJob(job.ID, job.Error)
		}
	} else {
		job.Status = JobStatusCompleted
		job.ReportPath = state.ReportPath
		job.WorkbookPath = state.WorkbookPath
		job.Summary = state.Summary()
		q.logger.InfoContext(ctx, "job completed",
			slog.String("job_id", job.ID),
			slog.String("risk_level", string(job.Summary.RiskLevel)),
			slog.Duration("duration", job.Duration()))
		if broadcaster != nil {
			broadcaster.CompleteJob(job.ID, "Report ready")
		}
	}

	if uerr := q.store.UpdateJob(job); uerr != nil {
		q.logger.ErrorContext(ctx, "failed to update job", slog.String("job_id", job.ID), slog.String("error", uerr.Error()))
	}
	infrastructure.RecordJobFinished(ctx, q.metrics(), string(job.Status), job.Duration())
}

func (q *JobQueue) metrics() *infrastructure.BusinessMetrics {
	return q.manager.GetTracer().Metrics()
}

// QueueStats describes the queue and its store
type QueueStats struct {
	Workers    int `json:"workers"`
	Queued     int `json:"queued"`
	Capacity   int `json:"capacity"`
	ActiveJobs int `json:"active_jobs"`
}

// GetQueueStats returns queue statistics
func (q *JobQueue) GetQueueStats() QueueStats {
	q.mu.RLock()
	activeCount := len(q.active)
	q.mu.RUnlock()

	return QueueStats{
		Workers:    q.workers,
		Queued:     len(q.jobs),
		Capacity:   cap(q.jobs),
		ActiveJobs: activeCount,
	}
}
