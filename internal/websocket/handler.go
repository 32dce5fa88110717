package websocket

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"budgetpulse/internal/infrastructure"
)

// Handler upgrades requests to the job status stream
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// HandlerOptions configures the upgrade
type HandlerOptions struct {
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int
}

// NewHandler creates the upgrade handler. Browsers are accepted when their
// Origin is in AllowedOrigins or the list holds "*"; requests without an
// Origin header are always accepted.
func NewHandler(hub *Hub, opts HandlerOptions, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		hub:    hub,
		logger: logger.With(slog.String("handler", "websocket")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  opts.ReadBufferSize,
		WriteBufferSize: opts.WriteBufferSize,
		CheckOrigin:     h.originChecker(opts.AllowedOrigins),
	}
	return h
}

func (h *Handler) originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		h.logger.WarnContext(r.Context(), "websocket origin not allowed",
			slog.String("origin", origin),
			slog.Any("allowed_origins", allowed))
		return false
	}
}

// ServeHTTP upgrades the connection and hands it to the hub
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.WarnContext(ctx, "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	ServeWS(h.hub, conn, infrastructure.GetTraceID(ctx), h.logger)
}
