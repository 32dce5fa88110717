package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	apierrors "budgetpulse/internal/errors"
	"budgetpulse/internal/infrastructure"
	"budgetpulse/internal/shared/testutil"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
})

func TestRequestID(t *testing.T) {
	t.Run("generates an ID and exposes it", func(t *testing.T) {
		var seen string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
			assert.Equal(t, seen, infrastructure.GetTraceID(r.Context()))
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})

	t.Run("reuses the client header", func(t *testing.T) {
		var seen string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "client-id")
		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "client-id", seen)
	})
}

func TestStructuredLogger(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(StructuredLogger(logger))
	r.Get("/ok", okHandler)
	r.Get("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok?x=1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	require.Equal(t, 2, logs.Count())
	info := logs.GetRecordsByLevel(slog.LevelInfo)
	require.Len(t, info, 1)
	assert.Equal(t, int64(200), info[0].Attrs["status"])
	assert.Equal(t, "x=1", info[0].Attrs["query"])

	warn := logs.GetRecordsByLevel(slog.LevelWarn)
	require.Len(t, warn, 1)
	assert.Equal(t, int64(404), warn[0].Attrs["status"])
}

func TestRateLimiter(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	rl := NewRateLimiter(0.5, 2, logger)
	h := rl.Handler(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status/x", nil))
		codes = append(codes, rec.Code)

		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "3", rec.Header().Get("Retry-After"))
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, apierrors.TypeRateLimit, body["type"])
		}
	}

	assert.Equal(t, []int{200, 200, 429}, codes)
	testutil.AssertLogContains(t, logs, slog.LevelWarn, "rate limit exceeded")
}

func TestTimeout(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	t.Run("handler that gives up on deadline gets 504", func(t *testing.T) {
		h := Timeout(10*time.Millisecond, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	})

	t.Run("fast handler is untouched", func(t *testing.T) {
		h := Timeout(time.Second, logger)(okHandler)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
	})
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		config     CORSConfig
		origin     string
		method     string
		wantOrigin string
		wantStatus int
	}{
		{
			name:       "wildcard",
			config:     CORSConfig{AllowedOrigins: []string{"*"}},
			origin:     "http://example.com",
			method:     http.MethodGet,
			wantOrigin: "*",
			wantStatus: http.StatusOK,
		},
		{
			name:       "listed origin is echoed",
			config:     CORSConfig{AllowedOrigins: []string{"http://app.local"}},
			origin:     "http://app.local",
			method:     http.MethodGet,
			wantOrigin: "http://app.local",
			wantStatus: http.StatusOK,
		},
		{
			name:       "unlisted origin gets no header",
			config:     CORSConfig{AllowedOrigins: []string{"http://app.local"}},
			origin:     "http://evil.local",
			method:     http.MethodGet,
			wantOrigin: "",
			wantStatus: http.StatusOK,
		},
		{
			name:       "preflight",
			config:     CORSConfig{AllowedOrigins: []string{"*"}},
			origin:     "http://example.com",
			method:     http.MethodOptions,
			wantOrigin: "*",
			wantStatus: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := CORS(tt.config)(okHandler)

			req := httptest.NewRequest(tt.method, "/upload", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestMaxBodySize(t *testing.T) {
	var readErr error
	h := MaxBodySize(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 16)
		_, readErr = r.Body.Read(buf)
		for readErr == nil {
			_, readErr = r.Body.Read(buf)
		}
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("0123456789")))

	var maxErr *http.MaxBytesError
	assert.ErrorAs(t, readErr, &maxErr)
}

func TestOTelMiddleware(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	metrics, err := infrastructure.CreateBusinessMetrics(mp.Meter("test"))
	require.NoError(t, err)

	var traceID string
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(NewOTelMiddleware(tp.Tracer("test"), metrics).Handler)
	r.Get("/status/{job_id}", func(w http.ResponseWriter, r *http.Request) {
		traceID = infrastructure.GetTraceID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/status/abc", nil))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /status/{job_id}", spans[0].Name)
	assert.Equal(t, spans[0].SpanContext.TraceID().String(), traceID)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http_requests_total" {
				continue
			}
			sum := m.Data.(metricdata.Sum[int64])
			require.Len(t, sum.DataPoints, 1)
			route, _ := sum.DataPoints[0].Attributes.Value("route")
			assert.Equal(t, "/status/{job_id}", route.AsString())
			found = true
		}
	}
	assert.True(t, found, "http_requests_total not recorded")
}

type toolRequest struct {
	Tool  string `json:"tool" validate:"required,oneof=validate_data project_budget"`
	Limit int    `json:"limit" validate:"gte=0,lte=100"`
}

func TestValidator(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateStruct(toolRequest{Tool: "project_budget", Limit: 5}))

	err := v.ValidateStruct(toolRequest{Limit: 500})
	require.Error(t, err)

	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	fields := apiErr.Details.([]apierrors.ValidationError)
	require.Len(t, fields, 2)
	assert.Equal(t, "tool", fields[0].Field)
	assert.Equal(t, "tool is required", fields[0].Message)
	assert.Equal(t, "limit", fields[1].Field)
	assert.Equal(t, "limit must be less than or equal to 100", fields[1].Message)
}

func TestContentTypeValidator(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	eh := apierrors.NewErrorHandler(logger, false)
	h := ContentTypeValidator(eh, "application/json")(okHandler)

	tests := []struct {
		name        string
		method      string
		contentType string
		want        int
	}{
		{"json with charset", http.MethodPost, "application/json; charset=utf-8", http.StatusOK},
		{"missing", http.MethodPost, "", http.StatusBadRequest},
		{"wrong type", http.MethodPost, "text/plain", http.StatusUnsupportedMediaType},
		{"GET skipped", http.MethodGet, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/tools/x", strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestQueryParamValidator(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	v := NewQueryParamValidator(logger, apierrors.NewErrorHandler(logger, false))

	t.Run("int default and bounds", func(t *testing.T) {
		rec := httptest.NewRecorder()
		n, ok := v.ValidateInt(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil), "limit", 1, 100, 50)
		assert.True(t, ok)
		assert.Equal(t, 50, n)

		rec = httptest.NewRecorder()
		_, ok = v.ValidateInt(rec, httptest.NewRequest(http.MethodGet, "/jobs?limit=0", nil), "limit", 1, 100, 50)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = httptest.NewRecorder()
		_, ok = v.ValidateInt(rec, httptest.NewRequest(http.MethodGet, "/jobs?limit=abc", nil), "limit", 1, 100, 50)
		assert.False(t, ok)
	})

	t.Run("enum", func(t *testing.T) {
		allowed := []string{"processing", "completed", "failed"}

		rec := httptest.NewRecorder()
		s, ok := v.ValidateEnum(rec, httptest.NewRequest(http.MethodGet, "/jobs?status=failed", nil), "status", allowed, "")
		assert.True(t, ok)
		assert.Equal(t, "failed", s)

		rec = httptest.NewRecorder()
		_, ok = v.ValidateEnum(rec, httptest.NewRequest(http.MethodGet, "/jobs?status=running", nil), "status", allowed, "")
		assert.False(t, ok)
		assert.Contains(t, rec.Body.String(), "status must be one of: processing, completed, failed")
	})
}
