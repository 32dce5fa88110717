package http

import (
	"net/http"

	"github.com/go-chi/render"

	"budgetpulse/internal/services"
)

// ProviderHandler reports which model providers are configured
type ProviderHandler struct {
	service *services.ProviderService
}

// NewProviderHandler creates a new provider handler
func NewProviderHandler(service *services.ProviderService) *ProviderHandler {
	return &ProviderHandler{service: service}
}

// APIStatus handles GET /api-status
func (h *ProviderHandler) APIStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Status())
}
