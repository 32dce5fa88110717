package services

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "budgetpulse/internal/errors"
	"budgetpulse/internal/operations"
	"budgetpulse/internal/shared/testutil"
)

type mockJobRunner struct {
	mock.Mock
}

func (m *mockJobRunner) Submit(ctx context.Context, input []byte) (*operations.Job, error) {
	args := m.Called(ctx, input)
	job, _ := args.Get(0).(*operations.Job)
	return job, args.Error(1)
}

func (m *mockJobRunner) GetJob(id string) (*operations.Job, error) {
	args := m.Called(id)
	job, _ := args.Get(0).(*operations.Job)
	return job, args.Error(1)
}

func (m *mockJobRunner) ListJobs(filter operations.JobFilter) ([]*operations.Job, error) {
	args := m.Called(filter)
	jobs, _ := args.Get(0).([]*operations.Job)
	return jobs, args.Error(1)
}

func (m *mockJobRunner) Release(id string) error {
	return m.Called(id).Error(0)
}

func newAnalysisService(t *testing.T) (*AnalysisService, *mockJobRunner, *testutil.BufferedSlogHandler) {
	t.Helper()
	logger, handler := testutil.NewTestLogger(t)
	runner := &mockJobRunner{}
	t.Cleanup(func() { runner.AssertExpectations(t) })
	return NewAnalysisService(runner, logger), runner, handler
}

func requireAPIError(t *testing.T, err error, status int, code, message string) {
	t.Helper()
	var apiErr *apierrors.APIError
	require.True(t, errors.As(err, &apiErr), "expected *APIError, got %v", err)
	assert.Equal(t, status, apiErr.StatusCode)
	assert.Equal(t, code, apiErr.ErrorCode)
	if message != "" {
		assert.Equal(t, message, apiErr.Message)
	}
}

func TestSubmitRejectsBadUploads(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		body     string
		code     string
		message  string
	}{
		{
			name:     "not a json file",
			filename: "budget.csv",
			body:     testutil.ScenarioJSON,
			code:     apierrors.CodeUnsupportedFile,
			message:  "Only JSON files are allowed",
		},
		{
			name:     "upper case extension",
			filename: "budget.JSON",
			body:     testutil.ScenarioJSON,
			code:     apierrors.CodeUnsupportedFile,
		},
		{
			name:     "malformed json",
			filename: "budget.json",
			body:     `{"revenue": [`,
			code:     apierrors.CodeInvalidJSON,
			message:  "Invalid JSON format",
		},
		{
			name:     "top level array",
			filename: "budget.json",
			body:     `[1, 2, 3]`,
			code:     apierrors.CodeInvalidJSON,
		},
		{
			name:     "null document",
			filename: "budget.json",
			body:     `null`,
			code:     apierrors.CodeInvalidJSON,
		},
		{
			name:     "missing gdp_growth",
			filename: "budget.json",
			body:     `{"revenue": [], "expenditure": [], "inflation": []}`,
			code:     apierrors.CodeMissingSection,
			message:  "Missing required key in JSON: gdp_growth",
		},
		{
			name:     "first missing key wins",
			filename: "budget.json",
			body:     `{"gdp_growth": []}`,
			code:     apierrors.CodeMissingSection,
			message:  "Missing required key in JSON: revenue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newAnalysisService(t)
			job, err := svc.Submit(context.Background(), tt.filename, []byte(tt.body))
			assert.Nil(t, job)
			requireAPIError(t, err, http.StatusBadRequest, tt.code, tt.message)
		})
	}
}

func TestSubmitAcceptsShallowValidDataset(t *testing.T) {
	svc, runner, handler := newAnalysisService(t)
	ctx := context.Background()

	// item level problems are left for the job to report
	runner.On("Submit", ctx, []byte(testutil.MissingAmountJSON)).
		Return(&operations.Job{ID: "job-1", Status: operations.JobStatusProcessing}, nil).Once()

	job, err := svc.Submit(ctx, "budget.json", []byte("\n"+testutil.MissingAmountJSON+"\n"))
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, operations.JobStatusProcessing, job.Status)
	assert.True(t, handler.ContainsMessage("analysis submitted"))
}

func TestSubmitQueueErrors(t *testing.T) {
	svc, runner, _ := newAnalysisService(t)
	ctx := context.Background()

	runner.On("Submit", ctx, mock.Anything).Return(nil, operations.ErrQueueFull).Once()
	_, err := svc.Submit(ctx, "budget.json", []byte(testutil.ScenarioJSON))
	requireAPIError(t, err, http.StatusServiceUnavailable, apierrors.CodeUnavailable, "")

	runner.On("Submit", ctx, mock.Anything).Return(nil, operations.ErrQueueStopped).Once()
	_, err = svc.Submit(ctx, "budget.json", []byte(testutil.ScenarioJSON))
	requireAPIError(t, err, http.StatusServiceUnavailable, apierrors.CodeUnavailable, "Server is shutting down")
}

func TestStatusUnknownJob(t *testing.T) {
	svc, runner, _ := newAnalysisService(t)
	runner.On("GetJob", "nope").Return(nil, operations.ErrJobNotFound)

	_, err := svc.Status(context.Background(), "nope")
	requireAPIError(t, err, http.StatusNotFound, apierrors.CodeJobNotFound, "Job not found")
}

func TestReportGating(t *testing.T) {
	dir := t.TempDir()
	report := testutil.WriteFile(t, dir, "budget_report.pdf", "%PDF-1.4")
	workbook := testutil.WriteFile(t, dir, "budget_projection.xlsx", "PK")

	svc, runner, _ := newAnalysisService(t)
	ctx := context.Background()

	runner.On("GetJob", "missing").Return(nil, operations.ErrJobNotFound)
	runner.On("GetJob", "running").Return(&operations.Job{ID: "running", Status: operations.JobStatusProcessing}, nil)
	runner.On("GetJob", "broken").Return(&operations.Job{ID: "broken", Status: operations.JobStatusFailed, Error: "boom"}, nil)
	runner.On("GetJob", "gone").Return(&operations.Job{
		ID:         "gone",
		Status:     operations.JobStatusCompleted,
		ReportPath: filepath.Join(dir, "deleted.pdf"),
	}, nil)
	runner.On("GetJob", "done").Return(&operations.Job{
		ID:           "done",
		Status:       operations.JobStatusCompleted,
		ReportPath:   report,
		WorkbookPath: workbook,
	}, nil)

	_, err := svc.Report(ctx, "missing")
	requireAPIError(t, err, http.StatusNotFound, apierrors.CodeJobNotFound, "")

	_, err = svc.Report(ctx, "running")
	requireAPIError(t, err, http.StatusBadRequest, apierrors.CodeJobNotCompleted, "Report not ready. Current status: processing")

	_, err = svc.Report(ctx, "broken")
	requireAPIError(t, err, http.StatusBadRequest, apierrors.CodeJobNotCompleted, "Report not ready. Current status: failed")

	_, err = svc.Report(ctx, "gone")
	requireAPIError(t, err, http.StatusNotFound, apierrors.CodeArtifactMissing, "Report file not found")

	_, err = svc.Workbook(ctx, "gone")
	requireAPIError(t, err, http.StatusNotFound, apierrors.CodeArtifactMissing, "Workbook file not found")

	art, err := svc.Report(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, Artifact{Path: report, Filename: ReportFilename, MediaType: ReportMediaType}, art)

	art, err = svc.Workbook(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, workbook, art.Path)
	assert.Equal(t, WorkbookFilename, art.Filename)
}

func TestListJobs(t *testing.T) {
	svc, runner, _ := newAnalysisService(t)
	ctx := context.Background()

	_, err := svc.ListJobs(ctx, "exploded", 10)
	requireAPIError(t, err, http.StatusBadRequest, apierrors.CodeValidationFailed, "")

	runner.On("ListJobs", operations.JobFilter{Status: operations.JobStatusFailed, Limit: 5}).Return(nil, nil).Once()
	jobs, err := svc.ListJobs(ctx, "failed", 5)
	require.NoError(t, err)
	assert.NotNil(t, jobs)
	assert.Empty(t, jobs)

	runner.On("ListJobs", operations.JobFilter{}).Return(nil, errors.New("disk I/O error")).Once()
	_, err = svc.ListJobs(ctx, "", 0)
	assert.EqualError(t, err, "failed to list jobs: disk I/O error")
}

func TestReleaseLogsFailures(t *testing.T) {
	svc, runner, handler := newAnalysisService(t)
	ctx := context.Background()

	runner.On("Release", "job-1").Return(nil).Once()
	svc.Release(ctx, "job-1")
	assert.True(t, handler.ContainsMessage("job workspace removed"))

	runner.On("Release", "job-2").Return(errors.New("permission denied")).Once()
	svc.Release(ctx, "job-2")
	assert.True(t, handler.ContainsMessage("failed to clean up job workspace"))
}
