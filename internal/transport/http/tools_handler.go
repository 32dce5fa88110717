package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "budgetpulse/internal/errors"
	"budgetpulse/internal/middleware"
	"budgetpulse/internal/services"
	"budgetpulse/internal/tools"
)

// ToolServiceInterface is the stage tool surface used by the agent runtime
type ToolServiceInterface interface {
	List() []tools.Tool
	Invoke(ctx context.Context, name string, args json.RawMessage) (tools.Result, error)
	Check(ctx context.Context, name string, req services.CheckRequest) (tools.Result, error)
}

var _ ToolServiceInterface = (*services.ToolService)(nil)

var requestValidator = middleware.NewValidator()

// CheckToolRequest is the body of POST /tools/{name}/check
type CheckToolRequest struct {
	services.CheckRequest
}

// Bind implements the render.Binder interface for request validation
func (c *CheckToolRequest) Bind(r *http.Request) error {
	return requestValidator.ValidateStruct(c.CheckRequest)
}

// ToolsHandler exposes the stage tools over HTTP
type ToolsHandler struct {
	service      ToolServiceInterface
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewToolsHandler creates a new tools handler
func NewToolsHandler(service ToolServiceInterface, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *ToolsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	return &ToolsHandler{
		service:      service,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "tools")),
	}
}

// Routes returns the /tools subrouter
func (h *ToolsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeValidator(h.errorHandler, "application/json"))
		r.Post("/{name}", h.Invoke)
		r.Post("/{name}/check", h.Check)
	})
	return r
}

// List handles GET /tools
func (h *ToolsHandler) List(w http.ResponseWriter, r *http.Request) {
	list := h.service.List()
	render.JSON(w, r, map[string]interface{}{
		"tools": list,
		"count": len(list),
	})
}

// Invoke handles POST /tools/{name}
func (h *ToolsHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	args, err := io.ReadAll(r.Body)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	res, err := h.service.Invoke(r.Context(), name, args)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, res)
}

// Check handles POST /tools/{name}/check
func (h *ToolsHandler) Check(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	req := &CheckToolRequest{}
	if err := render.Bind(r, req); err != nil {
		var apiErr *apierrors.APIError
		if !errors.As(err, &apiErr) {
			err = apierrors.InvalidJSON(err)
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	res, err := h.service.Check(r.Context(), name, req.CheckRequest)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if res.Fallback {
		h.logger.InfoContext(r.Context(), "tool output replaced",
			slog.String("tool", name),
			slog.String("reason", res.Reason))
	}
	render.JSON(w, r, res)
}
