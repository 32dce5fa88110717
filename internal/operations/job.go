package operations

import (
	"errors"
	"time"

	"budgetpulse/internal/budget"
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition can happen
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is a known status
func (s JobStatus) Valid() bool {
	return s == JobStatusProcessing || s.IsTerminal()
}

// ErrJobNotFound is returned by stores for unknown job IDs
var ErrJobNotFound = errors.New("job not found")

// InterruptedError is the failure recorded for jobs cut short by a restart
const InterruptedError = "interrupted by restart"

// Job is one asynchronous budget analysis
type Job struct {
	ID           string      `json:"job_id"`
	Status       JobStatus   `json:"status"`
	Stage        string      `json:"stage,omitempty"`
	ReportPath   string      `json:"report_path,omitempty"`
	WorkbookPath string      `json:"workbook_path,omitempty"`
	Error        string      `json:"error,omitempty"`
	Summary      *JobSummary `json:"summary,omitempty"`
	Workspace    string      `json:"-"`
	TraceID      string      `json:"trace_id,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

// JobSummary describes a completed analysis
type JobSummary struct {
	DataValidation    string           `json:"data_validation"`
	Standardized      bool             `json:"standardized"`
	BudgetProjections string           `json:"budget_projections"`
	RiskLevel         budget.RiskLevel `json:"risk_level"`
	RiskScore         float64          `json:"risk_score"`
	TaxSlabsCount     int              `json:"tax_slabs_count"`
	Visualizations    int              `json:"visualizations"`
}

// Clone returns a deep copy of the job
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.Summary != nil {
		s := *j.Summary
		c.Summary = &s
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Duration is the time from start to completion, or zero while unknown
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

// JobFilter for querying jobs. Zero fields match everything.
type JobFilter struct {
	Status JobStatus
	// CompletedBefore matches terminal jobs that finished before the instant
	CompletedBefore time.Time
	Limit           int
}

func (f JobFilter) matches(j *Job) bool {
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	if !f.CompletedBefore.IsZero() {
		if j.CompletedAt == nil || !j.CompletedAt.Before(f.CompletedBefore) {
			return false
		}
	}
	return true
}

// JobStore persists jobs. Reads return copies so callers never observe
// another goroutine's partial writes.
type JobStore interface {
	CreateJob(job *Job) error
	GetJob(id string) (*Job, error)
	UpdateJob(job *Job) error
	// ListJobs returns matching jobs, newest first
	ListJobs(filter JobFilter) ([]*Job, error)
	DeleteJob(id string) error
	Close() error
}

// StatsProvider is implemented by stores that can count their jobs
type StatsProvider interface {
	Stats() (StoreStats, error)
}

// StoreStats counts jobs by status
type StoreStats struct {
	Total      int `json:"total"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

func (s *StoreStats) add(status JobStatus, n int) {
	s.Total += n
	switch status {
	case JobStatusProcessing:
		s.Processing += n
	case JobStatusCompleted:
		s.Completed += n
	case JobStatusFailed:
		s.Failed += n
	}
}
