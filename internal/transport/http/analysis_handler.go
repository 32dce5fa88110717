package http

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apierrors "budgetpulse/internal/errors"
	"budgetpulse/internal/middleware"
	"budgetpulse/internal/operations"
	"budgetpulse/internal/services"
)

const (
	uploadField      = "file"
	defaultListLimit = 100
	maxListLimit     = 1000
)

// UploadResponse is returned once a dataset is queued
type UploadResponse struct {
	JobID  string               `json:"job_id"`
	Status operations.JobStatus `json:"status"`
}

// JobListResponse wraps GET /jobs results
type JobListResponse struct {
	Jobs  []*operations.Job `json:"jobs"`
	Count int               `json:"count"`
}

// AnalysisHandler serves dataset upload, job status and artifact downloads
type AnalysisHandler struct {
	service      AnalysisServiceInterface
	errorHandler *apierrors.ErrorHandler
	query        *middleware.QueryParamValidator
	maxUpload    int64
	tracer       trace.Tracer
	logger       *slog.Logger
}

// NewAnalysisHandler creates a new analysis handler. maxUpload caps the
// multipart request body in bytes.
func NewAnalysisHandler(service AnalysisServiceInterface, errorHandler *apierrors.ErrorHandler, maxUpload int64, logger *slog.Logger) *AnalysisHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}

	return &AnalysisHandler{
		service:      service,
		errorHandler: errorHandler,
		query:        middleware.NewQueryParamValidator(logger, errorHandler),
		maxUpload:    maxUpload,
		tracer:       otel.Tracer("analysis-handler"),
		logger:       logger.With(slog.String("handler", "analysis")),
	}
}

// Register mounts the analysis endpoints on r. They live at the API root.
func (h *AnalysisHandler) Register(r chi.Router) {
	r.With(middleware.ContentTypeValidator(h.errorHandler, "multipart/form-data")).
		Post("/upload", h.Upload)
	r.Get("/status/{job_id}", h.Status)
	r.Get("/download/{job_id}", h.Download)
	r.Head("/download/{job_id}", h.Download)
	r.Get("/export/{job_id}", h.Export)
	r.Head("/export/{job_id}", h.Export)
	r.Get("/jobs", h.ListJobs)
}

// Upload handles POST /upload
func (h *AnalysisHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "analysis_handler.upload",
		trace.WithAttributes(
			attribute.String("http.route", "/upload"),
			attribute.String("request_id", middleware.GetRequestID(r.Context())),
		),
	)
	defer span.End()

	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		h.fail(w, r, span, uploadError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		h.fail(w, r, span, apierrors.ErrValidation(uploadField, "file is required"))
		return
	}
	defer file.Close()

	body, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, r, span, uploadError(err))
		return
	}

	span.SetAttributes(
		attribute.String("upload.filename", header.Filename),
		attribute.Int("upload.size", len(body)),
	)

	job, err := h.service.Submit(ctx, header.Filename, body)
	if err != nil {
		h.fail(w, r, span, err)
		return
	}

	span.SetAttributes(attribute.String("job.id", job.ID))
	render.JSON(w, r, UploadResponse{JobID: job.ID, Status: job.Status})
}

// Status handles GET /status/{job_id}
func (h *AnalysisHandler) Status(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Status(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, job)
}

// Download handles GET /download/{job_id}. The job's workspace is removed
// once the whole report has been written to the client; HEAD, partial and
// not-modified responses keep it.
func (h *AnalysisHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")

	art, err := h.service.Report(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
	if !h.serveArtifact(ww, r, art, "Report file") {
		return
	}
	if r.Method != http.MethodGet || ww.Status() != http.StatusOK {
		return
	}

	h.service.Release(context.WithoutCancel(r.Context()), id)
}

// Export handles GET /export/{job_id}
func (h *AnalysisHandler) Export(w http.ResponseWriter, r *http.Request) {
	art, err := h.service.Workbook(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.serveArtifact(w, r, art, "Workbook file")
}

// ListJobs handles GET /jobs
func (h *AnalysisHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	status, ok := h.query.ValidateEnum(w, r, "status", []string{
		string(operations.JobStatusProcessing),
		string(operations.JobStatusCompleted),
		string(operations.JobStatusFailed),
	}, "")
	if !ok {
		return
	}

	limit, ok := h.query.ValidateInt(w, r, "limit", 1, maxListLimit, defaultListLimit)
	if !ok {
		return
	}

	jobs, err := h.service.ListJobs(r.Context(), status, limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, JobListResponse{Jobs: jobs, Count: len(jobs)})
}

func (h *AnalysisHandler) serveArtifact(w http.ResponseWriter, r *http.Request, art services.Artifact, label string) bool {
	f, err := os.Open(art.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = apierrors.ArtifactMissing(label)
		}
		h.errorHandler.HandleError(w, r, err)
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return false
	}

	w.Header().Set("Content-Type", art.MediaType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Filename}))
	http.ServeContent(w, r, art.Filename, info.ModTime(), f)

	h.logger.InfoContext(r.Context(), "artifact served",
		slog.String("job_id", chi.URLParam(r, "job_id")),
		slog.String("filename", art.Filename),
		slog.Int64("bytes", info.Size()))
	return true
}

func (h *AnalysisHandler) fail(w http.ResponseWriter, r *http.Request, span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, "upload rejected")
	h.errorHandler.HandleError(w, r, err)
}

// uploadError keeps body-limit failures intact so they render as 413
func uploadError(err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return maxBytes
	}
	return apierrors.InvalidRequestWithError(err)
}
