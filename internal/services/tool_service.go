package services

import (
	"context"
	"encoding/json"
	"log/slog"

	apierrors "budgetpulse/internal/errors"
	"budgetpulse/internal/tools"
)

// CheckRequest carries output produced outside the engine together with the
// input it was produced from
type CheckRequest struct {
	Input  json.RawMessage `json:"input" validate:"required"`
	Output json.RawMessage `json:"output" validate:"required"`
}

// ToolService runs the stage tools for the agent runtime
type ToolService struct {
	registry *tools.Registry
	logger   *slog.Logger
}

// NewToolService creates the service
func NewToolService(registry *tools.Registry, logger *slog.Logger) *ToolService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolService{
		registry: registry,
		logger:   logger.With(slog.String("service", "tools")),
	}
}

// List returns the tool catalogue
func (s *ToolService) List() []tools.Tool {
	return s.registry.List()
}

// Invoke runs a tool on JSON arguments
func (s *ToolService) Invoke(ctx context.Context, name string, args json.RawMessage) (tools.Result, error) {
	if !json.Valid(args) {
		return tools.Result{}, apierrors.InvalidJSON(errInvalidBody)
	}
	res, err := s.registry.Execute(ctx, name, args)
	if err != nil {
		return tools.Result{}, toAPIError(err, name)
	}
	s.logger.DebugContext(ctx, "tool invoked",
		slog.String("tool", name),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// Check validates producer output for a tool, recomputing it on mismatch
func (s *ToolService) Check(ctx context.Context, name string, req CheckRequest) (tools.Result, error) {
	res, err := s.registry.Check(ctx, name, req.Input, req.Output)
	if err != nil {
		return tools.Result{}, toAPIError(err, name)
	}
	return res, nil
}
