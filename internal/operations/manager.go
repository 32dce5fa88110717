package operations

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Manager runs the registered stages over a pipeline state
type Manager struct {
	registry    *Registry
	broadcaster *StatusBroadcaster
	tracer      *OperationTracer
	logger      *slog.Logger
}

// NewManager creates a manager. The broadcaster may be nil; a nil tracer
// uses the global tracer provider without metrics.
func NewManager(registry *Registry, broadcaster *StatusBroadcaster, tracer *OperationTracer, logger *slog.Logger) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if tracer == nil {
		tracer = NewOperationTracer(nil, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		registry:    registry,
		broadcaster: broadcaster,
		tracer:      tracer,
		logger:      logger.With(slog.String("component", "manager")),
	}
}

// GetRegistry returns the registry for accessing registered stages
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// GetBroadcaster returns the status broadcaster, which may be nil
func (m *Manager) GetBroadcaster() *StatusBroadcaster {
	return m.broadcaster
}

// GetTracer returns the operation tracer
func (m *Manager) GetTracer() *OperationTracer {
	return m.tracer
}

// Execute runs every stage in registration order and stops at the first
// failure. The returned error is an *OperationError.
func (m *Manager) Execute(ctx context.Context, state *PipelineState) error {
	steps := m.registry.List()

	for _, step := range steps {
		state.SetStage(step.ID(), NewStepState(step.ID(), step.Name()))
	}
	if m.broadcaster != nil {
		m.broadcaster.CreateJob(state.JobID, steps)
	}

	ctx, span := m.tracer.TraceJob(ctx, state.JobID)
	err := m.executeSequential(ctx, state, steps)
	m.tracer.RecordJobCompletion(span, state, err)
	return err
}

func (m *Manager) executeSequential(ctx context.Context, state *PipelineState, steps []Step) error {
	m.logger.InfoContext(ctx, "sequential_execution_start",
		slog.String("job_id", state.JobID),
		slog.Int("stage_count", len(steps)))

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			m.logger.WarnContext(ctx, "operation_cancelled",
				slog.String("job_id", state.JobID),
				slog.String("stage", step.ID()))
			return NewCancellationError(step.ID(), err)
		}

		stepState := state.GetStage(step.ID())

		if skipper, ok := step.(Skipper); ok {
			if reason := skipper.SkipReason(state); reason != "" {
				stepState.Skip(reason)
				m.tracer.RecordStageSkipped(ctx, step.ID(), reason)
				if m.broadcaster != nil {
					m.broadcaster.SkipStep(state.JobID, step.ID(), reason)
				}
				m.logger.InfoContext(ctx, "stage_skipped",
					slog.String("job_id", state.JobID),
					slog.String("stage", step.ID()),
					slog.String("reason", reason))
				continue
			}
		}

		m.logger.InfoContext(ctx, "executing_stage",
			slog.String("job_id", state.JobID),
			slog.String("stage", step.ID()),
			slog.Int("stage_number", i+1),
			slog.Int("total_stages", len(steps)))

		if err := m.executeStage(ctx, state, step, stepState); err != nil {
			return err
		}
	}

	m.logger.InfoContext(ctx, "all_stages_completed",
		slog.String("job_id", state.JobID),
		slog.Duration("duration", time.Since(state.StartTime)))
	return nil
}

func (m *Manager) executeStage(ctx context.Context, state *PipelineState, step Step, stepState *StepState) error {
	if err := step.Validate(state); err != nil {
		opErr := NewExecutionError(step.ID(), fmt.Errorf("%s cannot run: %w", step.Name(), err))
		m.failStage(ctx, state, step, stepState, opErr, 0)
		return opErr
	}

	stepState.Start()
	if m.broadcaster != nil {
		m.broadcaster.StartStep(state.JobID, step.ID())
	}

	stageCtx, span := m.tracer.TraceStage(ctx, state.JobID, step.ID())
	start := time.Now()
	err := step.Execute(stageCtx, state)
	duration := time.Since(start)

	if err != nil {
		opErr := WrapError(err, step.ID())
		m.tracer.RecordStageCompletion(stageCtx, span, step.ID(), duration, opErr)
		m.failStage(ctx, state, step, stepState, opErr, duration)
		return opErr
	}

	m.tracer.RecordStageCompletion(stageCtx, span, step.ID(), duration, nil)
	stepState.Complete()
	if m.broadcaster != nil {
		m.broadcaster.CompleteStep(state.JobID, step.ID())
	}

	m.logger.InfoContext(ctx, "stage_completed",
		slog.String("job_id", state.JobID),
		slog.String("stage", step.ID()),
		slog.Duration("duration", duration))
	return nil
}

func (m *Manager) failStage(ctx context.Context, state *PipelineState, step Step, stepState *StepState, err *OperationError, duration time.Duration) {
	stepState.Fail(err)
	if m.broadcaster != nil {
		m.broadcaster.FailStep(state.JobID, step.ID(), err)
	}
	m.logger.ErrorContext(ctx, "stage_failed",
		slog.String("job_id", state.JobID),
		slog.String("stage", step.ID()),
		slog.String("error_type", string(err.Type)),
		slog.Duration("duration", duration),
		slog.String("error", err.Error()))
}
