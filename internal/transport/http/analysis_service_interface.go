package http

import (
	"context"

	"budgetpulse/internal/operations"
	"budgetpulse/internal/services"
)

// AnalysisServiceInterface defines the job operations the analysis handler needs
type AnalysisServiceInterface interface {
	// Submit checks an uploaded dataset and queues it for analysis
	Submit(ctx context.Context, filename string, body []byte) (*operations.Job, error)

	// Status returns the current job record
	Status(ctx context.Context, id string) (*operations.Job, error)

	// ListJobs returns jobs, optionally filtered by status
	ListJobs(ctx context.Context, status string, limit int) ([]*operations.Job, error)

	// Report returns the compiled PDF of a completed job
	Report(ctx context.Context, id string) (services.Artifact, error)

	// Workbook returns the projection workbook of a completed job
	Workbook(ctx context.Context, id string) (services.Artifact, error)

	// Release removes the job's workspace
	Release(ctx context.Context, id string)
}

// Ensure AnalysisService implements the interface
var _ AnalysisServiceInterface = (*services.AnalysisService)(nil)
