package operations

import (
	"path/filepath"
	"sync"
	"time"

	"budgetpulse/internal/budget"
	"budgetpulse/internal/visualization"
)

// PipelineState carries one analysis through the stages. Each stage reads
// what earlier stages wrote; only the assess stage writes concurrently, and
// to disjoint fields.
type PipelineState struct {
	mu sync.RWMutex

	JobID     string    `json:"job_id"`
	Workspace string    `json:"workspace"`
	StartTime time.Time `json:"start_time"`

	// Dataset is the working dataset. The standardize stage replaces it.
	Dataset budget.RawDataset `json:"-"`

	ValidationErr error             `json:"-"`
	Standardized  bool              `json:"standardized"`
	Backfills     []budget.Backfill `json:"backfills,omitempty"`

	Projection budget.Projection               `json:"projection"`
	Notes      []*budget.InsufficientDataError `json:"-"`
	Risk       budget.RiskAssessment           `json:"risk"`
	Slabs      []budget.TaxSlab                `json:"tax_slabs"`
	Charts     []visualization.Chart           `json:"charts,omitempty"`

	ReportPath   string `json:"report_path,omitempty"`
	WorkbookPath string `json:"workbook_path,omitempty"`

	Steps map[string]*StepState `json:"steps"`
}

// NewPipelineState creates the state for one run over dataset. Artifacts are
// written below workspace.
func NewPipelineState(jobID, workspace string, dataset budget.RawDataset) *PipelineState {
	return &PipelineState{
		JobID:     jobID,
		Workspace: workspace,
		StartTime: time.Now(),
		Dataset:   dataset,
		Steps:     make(map[string]*StepState),
	}
}

// GetStage returns the state of a specific stage
func (p *PipelineState) GetStage(stageID string) *StepState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Steps[stageID]
}

// SetStage updates the state of a specific stage
func (p *PipelineState) SetStage(stageID string, state *StepState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Steps[stageID] = state
}

// PlotsDir is where charts are written
func (p *PipelineState) PlotsDir() string {
	return filepath.Join(p.Workspace, PlotsDirName)
}

// ReportFile is where the PDF report is written
func (p *PipelineState) ReportFile() string {
	return filepath.Join(p.Workspace, ReportFileName)
}

// WorkbookFile is where the XLSX workbook is written
func (p *PipelineState) WorkbookFile() string {
	return filepath.Join(p.Workspace, WorkbookFileName)
}

// Summary condenses the state into the record stored on a completed job
func (p *PipelineState) Summary() *JobSummary {
	validation := ValidationValid
	if p.ValidationErr != nil {
		validation = ValidationInvalid
	}

	return &JobSummary{
		DataValidation:    validation,
		Standardized:      p.Standardized,
		BudgetProjections: ProjectionsCompleted,
		RiskLevel:         p.Risk.Level,
		RiskScore:         p.Risk.Score,
		TaxSlabsCount:     len(p.Slabs),
		Visualizations:    len(p.Charts),
	}
}
