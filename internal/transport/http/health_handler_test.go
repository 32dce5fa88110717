package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetpulse/internal/config"
	apierrors "budgetpulse/internal/errors"
	"budgetpulse/internal/operations"
	"budgetpulse/internal/services"
	"budgetpulse/internal/shared/testutil"
)

type stubQueue struct{}

func (stubQueue) GetQueueStats() operations.QueueStats {
	return operations.QueueStats{Workers: 1, Capacity: 8}
}

type stubHub struct{ running bool }

func (h stubHub) ClientCount() int { return 0 }
func (h stubHub) Running() bool    { return h.running }

func newHealthRouter(t *testing.T, hubRunning bool) chi.Router {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	ws, err := operations.NewWorkspaces(filepath.Join(t.TempDir(), "jobs"))
	require.NoError(t, err)

	svc := services.NewHealthService("1.2.3", "", services.HealthDeps{
		Store:      operations.NewMemoryJobStore(),
		Workspaces: ws,
		Queue:      stubQueue{},
		Hub:        stubHub{running: hubRunning},
	}, logger)

	h := NewHealthHandler(svc, logger)
	r := chi.NewRouter()
	r.Mount("/health", h.Routes())
	r.Get("/version", h.Version)
	return r
}

func TestHealthEndpoints(t *testing.T) {
	r := newHealthRouter(t, true)

	for path, want := range map[string]string{
		"/health":       services.StatusOK,
		"/health/live":  services.StatusAlive,
		"/health/ready": services.StatusReady,
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)

		var status services.HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, want, status.Status, path)
		assert.Equal(t, "1.2.3", status.Version, path)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"1.2.3"`)
}

func TestReadinessNotReady(t *testing.T) {
	r := newHealthRouter(t, false)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status services.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, services.StatusNotReady, status.Status)
	assert.Equal(t, "websocket hub not running", status.Services["websocket"].Message)
}

func TestAPIStatus(t *testing.T) {
	cfg := config.Default().Providers
	cfg.AnthropicAPIKey = "ak-test"

	r := chi.NewRouter()
	r.Get("/api-status", NewProviderHandler(services.NewProviderService(cfg)).APIStatus)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api-status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"openai": {"available": false, "model": null},
		"anthropic": {"available": true, "model": "claude-3-haiku-20240307"},
		"preferred": "anthropic"
	}`, rec.Body.String())
}

func TestMetricsHandler(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	eh := apierrors.NewErrorHandler(logger, false)

	rec := httptest.NewRecorder()
	NewMetricsHandler(nil, eh).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	exporter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("budgetpulse_jobs_submitted_total 3\n"))
	})
	rec = httptest.NewRecorder()
	NewMetricsHandler(exporter, eh).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "budgetpulse_jobs_submitted_total")
}
