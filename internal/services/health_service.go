package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"budgetpulse/internal/operations"
)

// Health states
const (
	StatusOK       = "ok"
	StatusAlive    = "alive"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
)

// Pinger is implemented by job stores backed by a database
type Pinger interface {
	Ping(ctx context.Context) error
}

// WorkspaceChecker reports whether job workspaces can be written
type WorkspaceChecker interface {
	Check() error
}

// QueueStatter exposes job queue statistics
type QueueStatter interface {
	GetQueueStats() operations.QueueStats
}

// ClientCounter exposes the number of status stream subscribers
type ClientCounter interface {
	ClientCount() int
	Running() bool
}

// HealthDeps are the components the readiness check inspects. Nil fields
// are reported as not ready.
type HealthDeps struct {
	Store      operations.JobStore
	Workspaces WorkspaceChecker
	Queue      QueueStatter
	Hub        ClientCounter
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	deps      HealthDeps
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]any           `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual component health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`
}

// NewHealthService creates a health service
func NewHealthService(version, buildTime string, deps HealthDeps, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		buildTime: buildTime,
		deps:      deps,
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    StatusOK,
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    StatusAlive,
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]any{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// ReadinessCheck inspects the job store, workspaces, queue and status hub
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    StatusReady,
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]ServiceHealth{
			"job_store":  hs.checkStore(ctx),
			"workspaces": hs.checkWorkspaces(),
			"job_queue":  hs.checkQueue(),
			"websocket":  hs.checkWebSocket(),
		},
	}

	for name, sh := range status.Services {
		if sh.Status != StatusReady {
			status.Status = StatusNotReady
			hs.logger.WarnContext(ctx, "component not ready",
				slog.String("component", name),
				slog.String("message", sh.Message))
		}
	}
	return status
}

// Version returns version information
func (hs *HealthService) Version() map[string]any {
	result := map[string]any{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	return result
}

func (hs *HealthService) checkStore(ctx context.Context) ServiceHealth {
	store := hs.deps.Store
	if store == nil {
		return notReady("job store not initialized")
	}
	if p, ok := store.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return notReady(fmt.Sprintf("job store unreachable: %v", err))
		}
	}

	sh := ServiceHealth{Status: StatusReady, Message: "job store is healthy"}
	if sp, ok := store.(operations.StatsProvider); ok {
		stats, err := sp.Stats()
		if err != nil {
			return notReady(fmt.Sprintf("job store stats failed: %v", err))
		}
		sh.Details = stats
	}
	return sh
}

func (hs *HealthService) checkWorkspaces() ServiceHealth {
	if hs.deps.Workspaces == nil {
		return notReady("workspaces not initialized")
	}
	if err := hs.deps.Workspaces.Check(); err != nil {
		return notReady(fmt.Sprintf("workspace check failed: %v", err))
	}
	return ServiceHealth{Status: StatusReady, Message: "workspace root is writable"}
}

func (hs *HealthService) checkQueue() ServiceHealth {
	if hs.deps.Queue == nil {
		return notReady("job queue not initialized")
	}
	stats := hs.deps.Queue.GetQueueStats()
	if stats.Capacity > 0 && stats.Queued >= stats.Capacity {
		return ServiceHealth{Status: StatusNotReady, Message: "job queue is full", Details: stats}
	}
	return ServiceHealth{Status: StatusReady, Message: "job queue is accepting work", Details: stats}
}

func (hs *HealthService) checkWebSocket() ServiceHealth {
	if hs.deps.Hub == nil || !hs.deps.Hub.Running() {
		return notReady("websocket hub not running")
	}
	return ServiceHealth{
		Status:  StatusReady,
		Message: "websocket hub is running",
		Details: map[string]int{"clients": hs.deps.Hub.ClientCount()},
	}
}

func notReady(msg string) ServiceHealth {
	return ServiceHealth{Status: StatusNotReady, Message: msg}
}
