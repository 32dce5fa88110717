package operations

// Pipeline stage identifiers, in execution order
const (
	StageIDValidate    = "validate"
	StageIDStandardize = "standardize"
	StageIDProject     = "project"
	StageIDAssess      = "assess"
	StageIDVisualize   = "visualize"
	StageIDCompile     = "compile"
)

// Pipeline stage names
const (
	StageNameValidate    = "Data Validation"
	StageNameStandardize = "Data Standardization"
	StageNameProject     = "Budget Projection"
	StageNameAssess      = "Risk and Tax Assessment"
	StageNameVisualize   = "Visualization"
	StageNameCompile     = "Report Compilation"
)

// Files and directories inside a job workspace
const (
	InputFileName    = "input.json"
	PlotsDirName     = "plots"
	ReportFileName   = "budget_report.pdf"
	WorkbookFileName = "budget_projection.xlsx"
)

// Job summary values
const (
	ValidationValid   = "valid"
	ValidationInvalid = "invalid"

	ProjectionsCompleted = "completed"
)

// WebSocket event types
const (
	EventTypeJobStatus = "job:status"
	EventTypeJobStage  = "job:stage"
)
