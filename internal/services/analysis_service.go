package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"budgetpulse/internal/budget"
	apierrors "budgetpulse/internal/errors"
	"budgetpulse/internal/operations"
)

// Download names and media types of the job artifacts
const (
	ReportFilename   = "budget_report.pdf"
	ReportMediaType  = "application/pdf"
	WorkbookFilename = "budget_projection.xlsx"
	WorkbookMedia    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// JobRunner is the part of operations.JobQueue the analysis service drives
type JobRunner interface {
	Submit(ctx context.Context, input []byte) (*operations.Job, error)
	GetJob(id string) (*operations.Job, error)
	ListJobs(filter operations.JobFilter) ([]*operations.Job, error)
	Release(id string) error
}

// Artifact is a finished job file ready to stream
type Artifact struct {
	Path      string
	Filename  string
	MediaType string
}

// AnalysisService accepts dataset uploads and serves job results
type AnalysisService struct {
	jobs   JobRunner
	logger *slog.Logger
}

// NewAnalysisService creates the service
func NewAnalysisService(jobs JobRunner, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		jobs:   jobs,
		logger: logger.With(slog.String("service", "analysis")),
	}
}

// Submit checks an uploaded file and starts a job for it. Only the file
// name, JSON syntax and the presence of the four sections are checked here;
// item-level validation happens inside the job.
func (s *AnalysisService) Submit(ctx context.Context, filename string, body []byte) (*operations.Job, error) {
	if !strings.HasSuffix(filename, ".json") {
		return nil, apierrors.UnsupportedFile(filename)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, apierrors.InvalidJSON(err)
	}
	if top == nil {
		return nil, apierrors.InvalidJSON(errors.New("top-level value is not an object"))
	}
	for _, key := range budget.RequiredSections() {
		if _, ok := top[key]; !ok {
			return nil, apierrors.MissingSection(key)
		}
	}

	job, err := s.jobs.Submit(ctx, bytes.TrimSpace(body))
	if err != nil {
		s.logger.ErrorContext(ctx, "job submission failed",
			slog.String("filename", filename),
			slog.String("error", err.Error()))
		return nil, toAPIError(err, "")
	}

	s.logger.InfoContext(ctx, "analysis submitted",
		slog.String("job_id", job.ID),
		slog.String("filename", filename),
		slog.Int("bytes", len(body)))
	return job, nil
}

// Status returns a job record
func (s *AnalysisService) Status(ctx context.Context, id string) (*operations.Job, error) {
	job, err := s.jobs.GetJob(id)
	if err != nil {
		return nil, toAPIError(err, id)
	}
	return job, nil
}

// ListJobs returns jobs newest first, optionally filtered by status
func (s *AnalysisService) ListJobs(ctx context.Context, status string, limit int) ([]*operations.Job, error) {
	filter := operations.JobFilter{Status: operations.JobStatus(status), Limit: limit}
	if status != "" && !filter.Status.Valid() {
		return nil, apierrors.ErrValidation("status", fmt.Sprintf("unknown job status %q", status))
	}

	jobs, err := s.jobs.ListJobs(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	if jobs == nil {
		jobs = []*operations.Job{}
	}
	return jobs, nil
}

// Report returns the PDF of a completed job
func (s *AnalysisService) Report(ctx context.Context, id string) (Artifact, error) {
	job, err := s.completedJob(id)
	if err != nil {
		return Artifact{}, err
	}
	return s.artifact(ctx, job, job.ReportPath, "Report file", ReportFilename, ReportMediaType)
}

// Workbook returns the projection spreadsheet of a completed job
func (s *AnalysisService) Workbook(ctx context.Context, id string) (Artifact, error) {
	job, err := s.completedJob(id)
	if err != nil {
		return Artifact{}, err
	}
	return s.artifact(ctx, job, job.WorkbookPath, "Workbook file", WorkbookFilename, WorkbookMedia)
}

// Release removes a job's workspace after its report was delivered
func (s *AnalysisService) Release(ctx context.Context, id string) {
	if err := s.jobs.Release(id); err != nil {
		s.logger.WarnContext(ctx, "failed to clean up job workspace",
			slog.String("job_id", id),
			slog.String("error", err.Error()))
		return
	}
	s.logger.InfoContext(ctx, "job workspace removed", slog.String("job_id", id))
}

func (s *AnalysisService) completedJob(id string) (*operations.Job, error) {
	job, err := s.jobs.GetJob(id)
	if err != nil {
		return nil, toAPIError(err, id)
	}
	if job.Status != operations.JobStatusCompleted {
		return nil, apierrors.JobNotCompleted(id, string(job.Status))
	}
	return job, nil
}

func (s *AnalysisService) artifact(ctx context.Context, job *operations.Job, path, label, filename, media string) (Artifact, error) {
	if path == "" {
		return Artifact{}, apierrors.ArtifactMissing(label)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		s.logger.WarnContext(ctx, "job artifact missing",
			slog.String("job_id", job.ID),
			slog.String("path", filepath.Base(path)))
		return Artifact{}, apierrors.ArtifactMissing(label)
	}
	return Artifact{Path: path, Filename: filename, MediaType: media}, nil
}
