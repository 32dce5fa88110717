package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"budgetpulse/internal/infrastructure"
)

// Registry errors
var (
	ErrNotFound         = errors.New("tool not found")
	ErrAlreadyExists    = errors.New("tool already registered")
	ErrEmptyName        = errors.New("tool name is empty")
	ErrNoChecker        = errors.New("tool has no output check")
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// Tool describes a stage callable by the agent runtime. Parameters is a
// JSON Schema of the arguments.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Checkable   bool           `json:"checkable"`
}

// Handler runs a tool over JSON arguments and returns its JSON output
type Handler func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// Checker validates output produced elsewhere for the tool's input. When
// the output is unusable it recomputes it and flags the fallback.
type Checker func(ctx context.Context, input, produced json.RawMessage) (Result, error)

// Result is the output of a tool call
type Result struct {
	Tool     string          `json:"tool"`
	Output   json.RawMessage `json:"result"`
	Fallback bool            `json:"fallback"`
	Reason   string          `json:"fallback_reason,omitempty"`
	Duration time.Duration   `json:"-"`
}

type entry struct {
	tool    Tool
	handler Handler
	checker Checker
}

// Registry holds the tools in registration order
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
}

// NewRegistry creates an empty registry. metrics may be nil.
func NewRegistry(logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]entry),
		metrics: metrics,
		logger:  logger.With(slog.String("component", "tools")),
	}
}

// Register adds a tool. checker may be nil.
func (r *Registry) Register(tool Tool, handler Handler, checker Checker) error {
	if tool.Name == "" {
		return ErrEmptyName
	}
	if handler == nil {
		return fmt.Errorf("tool %s has no handler", tool.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, tool.Name)
	}
	tool.Checkable = checker != nil
	r.entries[tool.Name] = entry{tool: tool, handler: handler, checker: checker}
	r.order = append(r.order, tool.Name)
	return nil
}

// Get returns a tool definition
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.tool, ok
}

// List returns the tool definitions in registration order
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].tool)
	}
	return out
}

// Execute runs the named tool
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (Result, error) {
	e, err := r.lookup(name)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	out, err := e.handler(ctx, args)
	if err != nil {
		r.logger.WarnContext(ctx, "tool failed", slog.String("tool", name), slog.String("error", err.Error()))
		return Result{}, fmt.Errorf("tool %s execution failed: %w", name, err)
	}

	infrastructure.RecordToolInvocation(ctx, r.metrics, name, false)
	return Result{Tool: name, Output: out, Duration: time.Since(start)}, nil
}

// Check validates output that another producer generated for the named
// tool, falling back to the tool's own computation on mismatch
func (r *Registry) Check(ctx context.Context, name string, input, produced json.RawMessage) (Result, error) {
	e, err := r.lookup(name)
	if err != nil {
		return Result{}, err
	}
	if e.checker == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrNoChecker, name)
	}

	start := time.Now()
	res, err := e.checker(ctx, input, produced)
	if err != nil {
		return Result{}, fmt.Errorf("tool %s check failed: %w", name, err)
	}
	res.Tool = name
	res.Duration = time.Since(start)

	if res.Fallback {
		r.logger.WarnContext(ctx, "producer output rejected, recomputed",
			slog.String("tool", name),
			slog.String("reason", res.Reason))
	}
	infrastructure.RecordToolInvocation(ctx, r.metrics, name, res.Fallback)
	return res, nil
}

func (r *Registry) lookup(name string) (entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e, nil
}
