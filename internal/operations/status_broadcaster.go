package operations

import (
	"log/slog"
	"sync"
	"time"
)

// StatusBroadcaster is the single authority for live job status. It keeps
// a snapshot per job and sends the whole snapshot to the hub on every change.
type StatusBroadcaster struct {
	mu       sync.RWMutex
	jobs     map[string]*JobSnapshot
	hub      WebSocketHub
	logger   *slog.Logger
	updates  chan updateRequest
	stop     chan struct{}
	stopOnce sync.Once
}

// JobSnapshot represents the complete state of a job at a point in time
type JobSnapshot struct {
	JobID       string         `json:"job_id"`
	Status      JobStatus      `json:"status"`
	Progress    int            `json:"progress"` // 0-100
	CurrentStep string         `json:"current_step,omitempty"`
	Steps       []StepSnapshot `json:"steps"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// StepSnapshot represents the state of a single stage
type StepSnapshot struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Status  StepStatus `json:"status"`
	Message string     `json:"message,omitempty"`
	Error   string     `json:"error,omitempty"`
}

func (s *JobSnapshot) clone() *JobSnapshot {
	c := *s
	c.Steps = append([]StepSnapshot(nil), s.Steps...)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

type updateRequest struct {
	jobID      string
	eventType  string
	updateFunc func(*JobSnapshot)
	done       chan struct{}
}

// NewStatusBroadcaster creates a new status broadcaster. A nil hub keeps
// snapshots without sending them anywhere.
func NewStatusBroadcaster(hub WebSocketHub, logger *slog.Logger) *StatusBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}

	sb := &StatusBroadcaster{
		jobs:    make(map[string]*JobSnapshot),
		hub:     hub,
		logger:  logger.With(slog.String("component", "status_broadcaster")),
		updates: make(chan updateRequest, 100),
		stop:    make(chan struct{}),
	}

	go sb.processUpdates()

	return sb
}

// processUpdates handles all updates sequentially to avoid race conditions
func (sb *StatusBroadcaster) processUpdates() {
	for {
		select {
		case <-sb.stop:
			return
		case req := <-sb.updates:
			sb.handleUpdate(req)
		}
	}
}

func (sb *StatusBroadcaster) handleUpdate(req updateRequest) {
	defer close(req.done)

	sb.mu.Lock()
	snapshot, exists := sb.jobs[req.jobID]
	if !exists {
		snapshot = &JobSnapshot{
			JobID:  req.jobID,
			Status: JobStatusProcessing,
			Steps:  []StepSnapshot{},
		}
		sb.jobs[req.jobID] = snapshot
	}

	req.updateFunc(snapshot)
	snapshot.UpdatedAt = time.Now()

	if n := len(snapshot.Steps); n > 0 {
		done := 0
		for _, step := range snapshot.Steps {
			if step.Status == StepStatusCompleted || step.Status == StepStatusSkipped {
				done++
			}
		}
		snapshot.Progress = done * 100 / n
	}

	if snapshot.Status.IsTerminal() && snapshot.CompletedAt == nil {
		now := time.Now()
		snapshot.CompletedAt = &now
	}

	out := snapshot.clone()
	sb.mu.Unlock()

	sb.broadcast(req.eventType, out)
}

func (sb *StatusBroadcaster) broadcast(eventType string, snapshot *JobSnapshot) {
	if sb.hub == nil {
		return
	}

	sb.logger.Debug("broadcasting job snapshot",
		slog.String("job_id", snapshot.JobID),
		slog.String("status", string(snapshot.Status)),
		slog.Int("progress", snapshot.Progress),
		slog.String("current_step", snapshot.CurrentStep))

	sb.hub.BroadcastUpdate(eventType, snapshot.JobID, string(snapshot.Status), snapshot)
}

// update applies fn to the job's snapshot and waits until it is broadcast
func (sb *StatusBroadcaster) update(jobID, eventType string, fn func(*JobSnapshot)) {
	req := updateRequest{
		jobID:      jobID,
		eventType:  eventType,
		updateFunc: fn,
		done:       make(chan struct{}),
	}

	select {
	case sb.updates <- req:
	case <-sb.stop:
		return
	}

	select {
	case <-req.done:
	case <-sb.stop:
	}
}

// stepOf returns the snapshot entry for stepID, appending one if missing
func stepOf(s *JobSnapshot, stepID string) *StepSnapshot {
	for i := range s.Steps {
		if s.Steps[i].ID == stepID {
			return &s.Steps[i]
		}
	}
	s.Steps = append(s.Steps, StepSnapshot{ID: stepID, Name: stepID, Status: StepStatusPending})
	return &s.Steps[len(s.Steps)-1]
}

func (sb *StatusBroadcaster) updateStep(jobID, stepID string, fn func(*StepSnapshot)) {
	sb.update(jobID, EventTypeJobStage, func(s *JobSnapshot) {
		fn(stepOf(s, stepID))
	})
}

// CreateJob initializes a snapshot listing the stages about to run
func (sb *StatusBroadcaster) CreateJob(jobID string, steps []Step) {
	sb.update(jobID, EventTypeJobStatus, func(s *JobSnapshot) {
		s.Status = JobStatusProcessing
		s.Steps = make([]StepSnapshot, len(steps))
		for i, step := range steps {
			s.Steps[i] = StepSnapshot{
				ID:     step.ID(),
				Name:   step.Name(),
				Status: StepStatusPending,
			}
		}
		s.Message = "Job created"
	})
}

// StartStep marks a stage as active
func (sb *StatusBroadcaster) StartStep(jobID, stepID string) {
	sb.update(jobID, EventTypeJobStage, func(s *JobSnapshot) {
		stepOf(s, stepID).Status = StepStatusActive
		s.CurrentStep = stepID
	})
}

// CompleteStep marks a stage as completed
func (sb *StatusBroadcaster) CompleteStep(jobID, stepID string) {
	sb.updateStep(jobID, stepID, func(st *StepSnapshot) {
		st.Status = StepStatusCompleted
	})
}

// SkipStep marks a stage as skipped
func (sb *StatusBroadcaster) SkipStep(jobID, stepID, reason string) {
	sb.updateStep(jobID, stepID, func(st *StepSnapshot) {
		st.Status = StepStatusSkipped
		st.Message = reason
	})
}

// FailStep marks a stage as failed
func (sb *StatusBroadcaster) FailStep(jobID, stepID string, err error) {
	sb.updateStep(jobID, stepID, func(st *StepSnapshot) {
		st.Status = StepStatusFailed
		st.Error = err.Error()
	})
}

// CompleteJob marks a job as completed
func (sb *StatusBroadcaster) CompleteJob(jobID, message string) {
	sb.update(jobID, EventTypeJobStatus, func(s *JobSnapshot) {
		s.Status = JobStatusCompleted
		s.CurrentStep = ""
		s.Progress = 100
		s.Message = message
	})
}

// FailJob marks a job as failed
func (sb *StatusBroadcaster) FailJob(jobID, errMsg string) {
	sb.update(jobID, EventTypeJobStatus, func(s *JobSnapshot) {
		s.Status = JobStatusFailed
		s.CurrentStep = ""
		s.Error = errMsg
	})
}

// GetSnapshot returns a copy of the current snapshot for a job
func (sb *StatusBroadcaster) GetSnapshot(jobID string) (*JobSnapshot, bool) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	snapshot, exists := sb.jobs[jobID]
	if !exists {
		return nil, false
	}
	return snapshot.clone(), true
}

// Forget drops a job's snapshot
func (sb *StatusBroadcaster) Forget(jobID string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	delete(sb.jobs, jobID)
}

// Stop gracefully shuts down the broadcaster
func (sb *StatusBroadcaster) Stop() {
	sb.stopOnce.Do(func() {
		close(sb.stop)
	})
}
