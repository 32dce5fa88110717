package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"budgetpulse/internal/budget"
	"budgetpulse/internal/exporter"
	"budgetpulse/internal/infrastructure"
	"budgetpulse/internal/report"
	"budgetpulse/internal/visualization"
)

var errNoDataset = errors.New("no dataset loaded")

// NewPipelineStages returns the analysis stages in execution order
func NewPipelineStages(logger *slog.Logger, options *StageOptions) []Step {
	if logger == nil {
		logger = slog.Default()
	}
	options = options.withDefaults()
	if options.Charts == nil {
		options.Charts = visualization.NewProducer(logger)
	}
	if options.Compiler == nil {
		options.Compiler = report.NewCompiler(logger)
	}

	return []Step{
		NewValidateStage(logger, options),
		NewStandardizeStage(logger, options),
		NewProjectStage(logger, options),
		NewAssessStage(logger, options),
		NewVisualizeStage(logger, options),
		NewCompileStage(logger, options),
	}
}

// NewPipelineRegistry registers the analysis stages
func NewPipelineRegistry(logger *slog.Logger, options *StageOptions) (*Registry, error) {
	registry := NewRegistry()
	for _, step := range NewPipelineStages(logger, options) {
		if err := registry.Register(step); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// ValidateStage checks the dataset schema
type ValidateStage struct {
	BaseStage
	logger  *slog.Logger
	options *StageOptions
}

// NewValidateStage creates the validation stage
func NewValidateStage(logger *slog.Logger, options *StageOptions) *ValidateStage {
	return &ValidateStage{
		BaseStage: NewBaseStage(StageIDValidate, StageNameValidate),
		logger:    logger.With(slog.String("stage", StageIDValidate)),
		options:   options.withDefaults(),
	}
}

// Validate requires a dataset
func (s *ValidateStage) Validate(state *PipelineState) error {
	if state.Dataset == nil {
		return errNoDataset
	}
	return nil
}

// Execute records the first schema violation. It fails the run unless the
// dataset is to be standardized.
func (s *ValidateStage) Execute(ctx context.Context, state *PipelineState) error {
	err := budget.Validate(state.Dataset)
	if err == nil {
		s.logger.InfoContext(ctx, "dataset valid", slog.String("job_id", state.JobID))
		return nil
	}

	state.ValidationErr = err
	if !s.options.Config.StandardizeOnInvalid {
		return NewValidationError(s.ID(), err)
	}

	s.logger.WarnContext(ctx, "dataset invalid, continuing with standardization",
		slog.String("job_id", state.JobID),
		slog.String("error", err.Error()))
	return nil
}

// StandardizeStage backfills missing numeric values
type StandardizeStage struct {
	BaseStage
	logger *slog.Logger
}

// NewStandardizeStage creates the standardization stage
func NewStandardizeStage(logger *slog.Logger, _ *StageOptions) *StandardizeStage {
	return &StandardizeStage{
		BaseStage: NewBaseStage(StageIDStandardize, StageNameStandardize),
		logger:    logger.With(slog.String("stage", StageIDStandardize)),
	}
}

// SkipReason skips valid datasets
func (s *StandardizeStage) SkipReason(state *PipelineState) string {
	if state.ValidationErr == nil {
		return "dataset is valid"
	}
	return ""
}

// Execute replaces the working dataset with its standardized copy
func (s *StandardizeStage) Execute(ctx context.Context, state *PipelineState) error {
	out, filled := budget.StandardizeWithReport(state.Dataset)
	state.Dataset = out
	state.Standardized = true
	state.Backfills = filled

	if len(out) == 0 {
		s.logger.WarnContext(ctx, "dataset missing required sections, standardized to empty",
			slog.String("job_id", state.JobID))
		return nil
	}

	s.logger.InfoContext(ctx, "dataset standardized",
		slog.String("job_id", state.JobID),
		slog.Int("backfilled", len(filled)))
	return nil
}

// ProjectStage computes next-period projections
type ProjectStage struct {
	BaseStage
	logger *slog.Logger
}

// NewProjectStage creates the projection stage
func NewProjectStage(logger *slog.Logger, _ *StageOptions) *ProjectStage {
	return &ProjectStage{
		BaseStage: NewBaseStage(StageIDProject, StageNameProject),
		logger:    logger.With(slog.String("stage", StageIDProject)),
	}
}

// Execute projects the working dataset
func (s *ProjectStage) Execute(ctx context.Context, state *PipelineState) error {
	projection, notes := budget.ProjectWithNotes(state.Dataset)
	state.Projection = projection
	state.Notes = notes

	for _, note := range notes {
		s.logger.InfoContext(ctx, "indicator projected from mean",
			slog.String("job_id", state.JobID),
			slog.String("section", note.Section),
			slog.Int("points", note.ValidPoints))
	}

	s.logger.InfoContext(ctx, "budget projected",
		slog.String("job_id", state.JobID),
		slog.Int("revenue_items", len(projection.Revenue)),
		slog.Int("expenditure_items", len(projection.Expenditure)))
	return nil
}

// AssessStage scores fiscal risk and derives tax slabs concurrently
type AssessStage struct {
	BaseStage
	logger  *slog.Logger
	options *StageOptions
}

// NewAssessStage creates the risk and tax stage
func NewAssessStage(logger *slog.Logger, options *StageOptions) *AssessStage {
	return &AssessStage{
		BaseStage: NewBaseStage(StageIDAssess, StageNameAssess),
		logger:    logger.With(slog.String("stage", StageIDAssess)),
		options:   options.withDefaults(),
	}
}

// Execute runs the risk scorer and the tax slab generator in parallel
func (s *AssessStage) Execute(ctx context.Context, state *PipelineState) error {
	projection := state.Projection

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		state.Risk = budget.AssessRisk(projection)
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		state.Slabs = budget.GenerateTaxSlabs(projection)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	infrastructure.RecordRiskLevel(ctx, s.options.Metrics, string(state.Risk.Level))
	s.logger.InfoContext(ctx, "risk assessed",
		slog.String("job_id", state.JobID),
		slog.String("risk_level", string(state.Risk.Level)),
		slog.Float64("risk_score", state.Risk.Score),
		slog.Int("tax_slabs", len(state.Slabs)))
	return nil
}

// VisualizeStage renders charts into the workspace
type VisualizeStage struct {
	BaseStage
	logger  *slog.Logger
	options *StageOptions
}

// NewVisualizeStage creates the visualization stage
func NewVisualizeStage(logger *slog.Logger, options *StageOptions) *VisualizeStage {
	options = options.withDefaults()
	if options.Charts == nil {
		options.Charts = visualization.NewProducer(logger)
	}
	return &VisualizeStage{
		BaseStage: NewBaseStage(StageIDVisualize, StageNameVisualize),
		logger:    logger.With(slog.String("stage", StageIDVisualize)),
		options:   options,
	}
}

// SkipReason skips when charts are disabled
func (s *VisualizeStage) SkipReason(state *PipelineState) string {
	if !s.options.Config.Visualize {
		return "visualization disabled"
	}
	return ""
}

// Execute draws the dataset charts into the plots directory. Charts are
// best effort: only cancellation fails the stage.
func (s *VisualizeStage) Execute(ctx context.Context, state *PipelineState) error {
	ds := budget.PlottableDataset(state.Dataset)

	charts, err := s.options.Charts.Produce(ctx, ds, state.PlotsDir())
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		s.logger.WarnContext(ctx, "charts incomplete",
			slog.String("job_id", state.JobID),
			slog.String("error", err.Error()))
	}
	state.Charts = charts
	return nil
}

// CompileStage writes the PDF report and the workbook
type CompileStage struct {
	BaseStage
	logger  *slog.Logger
	options *StageOptions
}

// NewCompileStage creates the report stage
func NewCompileStage(logger *slog.Logger, options *StageOptions) *CompileStage {
	options = options.withDefaults()
	if options.Compiler == nil {
		options.Compiler = report.NewCompiler(logger)
	}
	return &CompileStage{
		BaseStage: NewBaseStage(StageIDCompile, StageNameCompile),
		logger:    logger.With(slog.String("stage", StageIDCompile)),
		options:   options,
	}
}

// Validate requires an assessed projection
func (s *CompileStage) Validate(state *PipelineState) error {
	if !state.Risk.Level.Valid() {
		return fmt.Errorf("risk assessment missing")
	}
	return nil
}

// Execute compiles the report, then the workbook when enabled
func (s *CompileStage) Execute(ctx context.Context, state *PipelineState) error {
	visuals := make(map[string]string, len(state.Charts))
	for _, c := range state.Charts {
		visuals[c.Base()] = c.Caption
	}

	path, err := s.options.Compiler.Compile(ctx, report.Input{
		Projection: state.Projection,
		Risk:       state.Risk,
		Slabs:      state.Slabs,
		VisualDir:  state.PlotsDir(),
		Insights:   report.Insights{Visual: visuals},
		OutputPath: state.ReportFile(),
	})
	if err != nil {
		return err
	}
	state.ReportPath = path
	s.recordArtifact(ctx, "report", path)

	if !s.options.Config.ExportWorkbook {
		return nil
	}

	workbook := state.WorkbookFile()
	err = exporter.WriteWorkbook(workbook, exporter.Result{
		Projection: state.Projection,
		Risk:       state.Risk,
		Slabs:      state.Slabs,
	})
	if err != nil {
		return &report.ArtifactError{Path: workbook, Err: err}
	}
	state.WorkbookPath = workbook
	s.recordArtifact(ctx, "workbook", workbook)
	return nil
}

func (s *CompileStage) recordArtifact(ctx context.Context, kind, path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	infrastructure.RecordArtifact(ctx, s.options.Metrics, kind, info.Size())
}
