package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetpulse/internal/config"
	"budgetpulse/internal/operations"
	"budgetpulse/internal/services"
	"budgetpulse/internal/shared/testutil"
	ws "budgetpulse/internal/websocket"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.BaseDir = t.TempDir()
	cfg.Telemetry.MetricExporter = "none"
	cfg.Telemetry.TraceExporter = "none"
	cfg.Security.RateLimit.Enabled = false
	cfg.Server.ShutdownTimeout = 5 * time.Second
	return cfg
}

func startApp(t *testing.T, cfg *config.Config) *Application {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)

	a, err := New(cfg, logger)
	require.NoError(t, err)

	a.StartBackground(context.Background())
	t.Cleanup(func() {
		assert.NoError(t, a.Stop(context.Background()))
	})
	return a
}

func upload(t *testing.T, h http.Handler, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func submit(t *testing.T, h http.Handler, content string) string {
	t.Helper()
	rec := upload(t, h, "budget.json", content)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.JobID)
	assert.Equal(t, "processing", resp.Status)
	return resp.JobID
}

func waitForJob(t *testing.T, h http.Handler, id string) operations.Job {
	t.Helper()
	var job operations.Job
	require.Eventually(t, func() bool {
		rec := get(h, "/status/"+id)
		if rec.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
			return false
		}
		return job.Status.IsTerminal()
	}, 30*time.Second, 50*time.Millisecond)
	return job
}

func TestAnalysisLifecycle(t *testing.T) {
	a := startApp(t, testConfig(t))
	h := a.Router

	id := submit(t, h, testutil.ScenarioJSON)
	job := waitForJob(t, h, id)
	require.Equal(t, operations.JobStatusCompleted, job.Status, job.Error)
	require.NotNil(t, job.Summary)
	assert.Equal(t, "medium", string(job.Summary.RiskLevel))
	assert.Equal(t, 3, job.Summary.TaxSlabsCount)

	rec := get(h, "/export/"+id)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.WorkbookMedia, rec.Header().Get("Content-Type"))

	rec = get(h, "/download/"+id)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))

	_, err := os.Stat(filepath.Join(a.Paths.WorkspaceDir, id))
	assert.True(t, os.IsNotExist(err), "workspace should be removed after download")

	rec = get(h, "/download/"+id)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Report file not found")
}

func TestInvalidItemFailsJob(t *testing.T) {
	a := startApp(t, testConfig(t))

	id := submit(t, a.Router, testutil.MissingAmountJSON)
	job := waitForJob(t, a.Router, id)
	assert.Equal(t, operations.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "amount")

	rec := get(a.Router, "/download/"+id)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Report not ready. Current status: failed")
}

func TestUploadRejections(t *testing.T) {
	a := startApp(t, testConfig(t))

	tests := []struct {
		name     string
		filename string
		content  string
		detail   string
	}{
		{"csv file", "budget.csv", testutil.ScenarioJSON, "Only JSON files are allowed"},
		{"broken json", "budget.json", `{"revenue": [`, "Invalid JSON format"},
		{"missing key", "budget.json", `{"revenue": [], "expenditure": [], "gdp_growth": []}`, "Missing required key in JSON: inflation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := upload(t, a.Router, tt.filename, tt.content)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.detail)
		})
	}

	rec := get(a.Router, "/status/does-not-exist")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Job not found")
}

func TestAmbientRoutes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers.OpenAIAPIKey = "sk-test"
	a := startApp(t, cfg)

	rec := get(a.Router, "/api-status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"openai": {"available": true, "model": "gpt-4o-2024-08-06"},
		"anthropic": {"available": false, "model": null},
		"preferred": "openai"
	}`, rec.Body.String())

	rec = get(a.Router, "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = get(a.Router, "/tools")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "project_budget")

	// metrics exporter is disabled in tests
	rec = get(a.Router, "/metrics")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = get(a.Router, "/nowhere")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestStatusStream(t *testing.T) {
	a := startApp(t, testConfig(t))
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello ws.Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, ws.TypeConnection, hello.Type)

	id := submit(t, a.Router, testutil.ScenarioJSON)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(30*time.Second)))
	for {
		var msg ws.Message
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == ws.TypeJobStatus && msg.Subject == id && msg.Status == string(operations.JobStatusCompleted) {
			break
		}
	}
}

func TestSQLiteStoreRecoversInterruptedJobs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Jobs.Store = config.StoreSQLite

	paths, err := cfg.GetPaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())

	store, err := operations.NewSQLiteJobStore(paths.JobsDB)
	require.NoError(t, err)
	require.NoError(t, store.CreateJob(&operations.Job{
		ID:        "left-behind",
		Status:    operations.JobStatusProcessing,
		CreatedAt: time.Now(),
	}))
	require.NoError(t, store.Close())

	a := startApp(t, cfg)

	job := waitForJob(t, a.Router, "left-behind")
	assert.Equal(t, operations.JobStatusFailed, job.Status)
	assert.Equal(t, operations.InterruptedError, job.Error)

	id := submit(t, a.Router, testutil.ScenarioJSON)
	assert.Equal(t, operations.JobStatusCompleted, waitForJob(t, a.Router, id).Status)
}
