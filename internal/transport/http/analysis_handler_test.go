package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apierrors "budgetpulse/internal/errors"
	"budgetpulse/internal/operations"
	"budgetpulse/internal/services"
	"budgetpulse/internal/shared/testutil"
)

type mockAnalysisService struct {
	mock.Mock
}

func (m *mockAnalysisService) Submit(ctx context.Context, filename string, body []byte) (*operations.Job, error) {
	args := m.Called(ctx, filename, body)
	job, _ := args.Get(0).(*operations.Job)
	return job, args.Error(1)
}

func (m *mockAnalysisService) Status(ctx context.Context, id string) (*operations.Job, error) {
	args := m.Called(ctx, id)
	job, _ := args.Get(0).(*operations.Job)
	return job, args.Error(1)
}

func (m *mockAnalysisService) ListJobs(ctx context.Context, status string, limit int) ([]*operations.Job, error) {
	args := m.Called(ctx, status, limit)
	jobs, _ := args.Get(0).([]*operations.Job)
	return jobs, args.Error(1)
}

func (m *mockAnalysisService) Report(ctx context.Context, id string) (services.Artifact, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(services.Artifact), args.Error(1)
}

func (m *mockAnalysisService) Workbook(ctx context.Context, id string) (services.Artifact, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(services.Artifact), args.Error(1)
}

func (m *mockAnalysisService) Release(ctx context.Context, id string) {
	m.Called(ctx, id)
}

func newAnalysisRouter(t *testing.T, maxUpload int64) (chi.Router, *mockAnalysisService) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	svc := &mockAnalysisService{}
	t.Cleanup(func() { svc.AssertExpectations(t) })

	r := chi.NewRouter()
	NewAnalysisHandler(svc, apierrors.NewErrorHandler(logger, false), maxUpload, logger).Register(r)
	return r, svc
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem), rec.Body.String())
	return problem
}

func TestUpload(t *testing.T) {
	t.Run("queues the dataset", func(t *testing.T) {
		r, svc := newAnalysisRouter(t, 1<<20)
		svc.On("Submit", mock.Anything, "budget.json", []byte(testutil.ScenarioJSON)).
			Return(&operations.Job{ID: "job-1", Status: operations.JobStatusProcessing}, nil).Once()

		body, ct := multipartBody(t, "file", "budget.json", testutil.ScenarioJSON)
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"job_id": "job-1", "status": "processing"}`, rec.Body.String())
	})

	t.Run("service rejection is a problem response", func(t *testing.T) {
		r, svc := newAnalysisRouter(t, 1<<20)
		svc.On("Submit", mock.Anything, "budget.csv", mock.Anything).
			Return(nil, apierrors.UnsupportedFile("budget.csv")).Once()

		body, ct := multipartBody(t, "file", "budget.csv", "a,b\n1,2\n")
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		problem := decodeProblem(t, rec)
		assert.Equal(t, "Only JSON files are allowed", problem["detail"])
		assert.Equal(t, apierrors.CodeUnsupportedFile, problem["error_code"])
	})

	t.Run("missing file field", func(t *testing.T) {
		r, _ := newAnalysisRouter(t, 1<<20)

		body, ct := multipartBody(t, "document", "budget.json", testutil.ScenarioJSON)
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, apierrors.CodeValidationFailed, decodeProblem(t, rec)["error_code"])
	})

	t.Run("not multipart", func(t *testing.T) {
		r, _ := newAnalysisRouter(t, 1<<20)

		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(testutil.ScenarioJSON))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("body over the limit", func(t *testing.T) {
		r, _ := newAnalysisRouter(t, 64)

		body, ct := multipartBody(t, "file", "budget.json", strings.Repeat(" ", 4096)+testutil.ScenarioJSON)
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, apierrors.CodePayloadTooLarge, decodeProblem(t, rec)["error_code"])
	})
}

func TestStatus(t *testing.T) {
	r, svc := newAnalysisRouter(t, 0)
	svc.On("Status", mock.Anything, "job-1").
		Return(&operations.Job{ID: "job-1", Status: operations.JobStatusFailed, Error: "Missing 'amount' in revenue item 0"}, nil).Once()
	svc.On("Status", mock.Anything, "nope").Return(nil, apierrors.JobNotFound("nope")).Once()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/job-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var job map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "failed", job["status"])
	assert.Equal(t, "Missing 'amount' in revenue item 0", job["error"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Job not found", decodeProblem(t, rec)["detail"])
}

func TestDownload(t *testing.T) {
	dir := t.TempDir()
	report := testutil.WriteFile(t, dir, services.ReportFilename, "%PDF-1.4 budget")

	t.Run("streams the report then releases the job", func(t *testing.T) {
		r, svc := newAnalysisRouter(t, 0)
		svc.On("Report", mock.Anything, "job-1").Return(services.Artifact{
			Path:      report,
			Filename:  services.ReportFilename,
			MediaType: services.ReportMediaType,
		}, nil).Once()
		svc.On("Release", mock.Anything, "job-1").Once()

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/job-1", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		disposition := rec.Header().Get("Content-Disposition")
		assert.True(t, strings.HasPrefix(disposition, "attachment"), disposition)
		assert.Contains(t, disposition, services.ReportFilename)
		assert.Equal(t, "%PDF-1.4 budget", rec.Body.String())
	})

	t.Run("partial responses keep the workspace", func(t *testing.T) {
		tests := []struct {
			name   string
			method string
			header map[string]string
			code   int
			body   string
		}{
			{name: "head", method: http.MethodHead, code: http.StatusOK},
			{
				name:   "byte range",
				method: http.MethodGet,
				header: map[string]string{"Range": "bytes=0-3"},
				code:   http.StatusPartialContent,
				body:   "%PDF",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				r, svc := newAnalysisRouter(t, 0)
				svc.On("Report", mock.Anything, "job-4").Return(services.Artifact{
					Path:      report,
					Filename:  services.ReportFilename,
					MediaType: services.ReportMediaType,
				}, nil).Once()

				req := httptest.NewRequest(tt.method, "/download/job-4", nil)
				for k, v := range tt.header {
					req.Header.Set(k, v)
				}
				rec := httptest.NewRecorder()
				r.ServeHTTP(rec, req)

				assert.Equal(t, tt.code, rec.Code)
				assert.Equal(t, tt.body, rec.Body.String())
				svc.AssertNotCalled(t, "Release", mock.Anything, "job-4")
			})
		}
	})

	t.Run("not ready keeps the workspace", func(t *testing.T) {
		r, svc := newAnalysisRouter(t, 0)
		svc.On("Report", mock.Anything, "job-2").
			Return(services.Artifact{}, apierrors.JobNotCompleted("job-2", "processing")).Once()

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/job-2", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Report not ready. Current status: processing", decodeProblem(t, rec)["detail"])
		svc.AssertNotCalled(t, "Release", mock.Anything, "job-2")
	})

	t.Run("report removed after the check", func(t *testing.T) {
		r, svc := newAnalysisRouter(t, 0)
		svc.On("Report", mock.Anything, "job-3").Return(services.Artifact{
			Path:      filepath.Join(dir, "gone.pdf"),
			Filename:  services.ReportFilename,
			MediaType: services.ReportMediaType,
		}, nil).Once()

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/job-3", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Report file not found", decodeProblem(t, rec)["detail"])
		svc.AssertNotCalled(t, "Release", mock.Anything, "job-3")
	})
}

func TestExportDoesNotRelease(t *testing.T) {
	workbook := testutil.WriteFile(t, t.TempDir(), services.WorkbookFilename, "PK\x03\x04")

	r, svc := newAnalysisRouter(t, 0)
	svc.On("Workbook", mock.Anything, "job-1").Return(services.Artifact{
		Path:      workbook,
		Filename:  services.WorkbookFilename,
		MediaType: services.WorkbookMedia,
	}, nil).Once()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/export/job-1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.WorkbookMedia, rec.Header().Get("Content-Type"))
	assert.Equal(t, "PK\x03\x04", rec.Body.String())
	svc.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestListJobsQuery(t *testing.T) {
	r, svc := newAnalysisRouter(t, 0)
	svc.On("ListJobs", mock.Anything, "failed", 5).
		Return([]*operations.Job{{ID: "a", Status: operations.JobStatusFailed}}, nil).Once()
	svc.On("ListJobs", mock.Anything, "", defaultListLimit).Return([]*operations.Job{}, nil).Once()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs?status=failed&limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp JobListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "a", resp.Jobs[0].ID)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, query := range []string{"status=exploded", "limit=0", "limit=ten"} {
		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs?"+query, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}
