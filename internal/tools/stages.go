package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"budgetpulse/internal/budget"
	"budgetpulse/internal/infrastructure"
)

// Stage tool names
const (
	ToolValidateData    = "validate_data"
	ToolStandardizeData = "standardize_data"
	ToolProjectBudget   = "project_budget"
	ToolIdentifyRisk    = "identify_risk"
	ToolCreateTaxSlabs  = "create_tax_slabs"
)

// ValidationOutput is the result of validate_data
type ValidationOutput struct {
	Valid bool                    `json:"valid"`
	Error *budget.ValidationError `json:"error,omitempty"`
}

var datasetParameters = map[string]any{
	"type":        "object",
	"description": "Financial dataset with revenue, expenditure, inflation and gdp_growth lists",
	"required":    budget.RequiredSections(),
}

var projectionParameters = map[string]any{
	"type":        "object",
	"description": "Budget projection as returned by project_budget",
	"required":    []string{"projected_revenue", "projected_expenditure"},
}

// NewStageRegistry registers every analysis stage as a tool. Calling a tool
// gives the same result as the stage inside a job.
func NewStageRegistry(logger *slog.Logger, metrics *infrastructure.BusinessMetrics) (*Registry, error) {
	r := NewRegistry(logger, metrics)

	registrations := []struct {
		tool    Tool
		handler Handler
		checker Checker
	}{
		{
			tool: Tool{
				Name:        ToolValidateData,
				Description: "Check a dataset against the required schema and report the first violation",
				Parameters:  datasetParameters,
			},
			handler: validateData,
		},
		{
			tool: Tool{
				Name:        ToolStandardizeData,
				Description: "Fill missing or non-numeric amounts and rates with the section mean",
				Parameters:  datasetParameters,
			},
			handler: standardizeData,
		},
		{
			tool: Tool{
				Name:        ToolProjectBudget,
				Description: "Project revenue, expenditure, inflation and GDP growth one period ahead",
				Parameters:  datasetParameters,
			},
			handler: projectBudget,
			checker: checkProjection,
		},
		{
			tool: Tool{
				Name:        ToolIdentifyRisk,
				Description: "Score the fiscal risk of a projection as low, medium or high",
				Parameters:  projectionParameters,
			},
			handler: identifyRisk,
			checker: checkRisk,
		},
		{
			tool: Tool{
				Name:        ToolCreateTaxSlabs,
				Description: "Split projected revenue into three tax brackets",
				Parameters:  projectionParameters,
			},
			handler: createTaxSlabs,
			checker: checkTaxSlabs,
		},
	}

	for _, reg := range registrations {
		if err := r.Register(reg.tool, reg.handler, reg.checker); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func validateData(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
	ds, err := datasetArg(args)
	if err != nil {
		return nil, err
	}

	out := ValidationOutput{Valid: true}
	if err := budget.Validate(ds); err != nil {
		var verr *budget.ValidationError
		if !errors.As(err, &verr) {
			return nil, err
		}
		out = ValidationOutput{Error: verr}
	}
	return json.Marshal(out)
}

func standardizeData(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
	ds, err := datasetArg(args)
	if err != nil {
		return nil, err
	}
	return json.Marshal(budget.Standardize(ds))
}

func projectBudget(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
	ds, err := datasetArg(args)
	if err != nil {
		return nil, err
	}
	return json.Marshal(budget.Project(ds))
}

func identifyRisk(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
	p, err := projectionArg(args)
	if err != nil {
		return nil, err
	}
	return json.Marshal(budget.AssessRisk(p))
}

func createTaxSlabs(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
	p, err := projectionArg(args)
	if err != nil {
		return nil, err
	}
	return json.Marshal(budget.GenerateTaxSlabs(p))
}

func checkProjection(_ context.Context, input, produced json.RawMessage) (Result, error) {
	ds, err := datasetArg(input)
	if err != nil {
		return Result{}, err
	}
	p, outcome := CheckProjection(produced, ds)
	return marshalResult(p, outcome)
}

func checkRisk(_ context.Context, input, produced json.RawMessage) (Result, error) {
	p, err := projectionArg(input)
	if err != nil {
		return Result{}, err
	}
	a, outcome := CheckRisk(produced, p)
	return marshalResult(a, outcome)
}

func checkTaxSlabs(_ context.Context, input, produced json.RawMessage) (Result, error) {
	p, err := projectionArg(input)
	if err != nil {
		return Result{}, err
	}
	slabs, outcome := CheckTaxSlabs(produced, p)
	return marshalResult(slabs, outcome)
}

func marshalResult(v any, outcome Outcome) (Result, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return Result{}, err
	}
	return Result{Output: out, Fallback: outcome.Fallback, Reason: outcome.Reason}, nil
}

func datasetArg(args json.RawMessage) (budget.RawDataset, error) {
	ds, err := budget.ParseDataset(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return ds, nil
}

func projectionArg(args json.RawMessage) (budget.Projection, error) {
	var schema projectionSchema
	if err := decodeStrict(args, &schema); err != nil {
		return budget.Projection{}, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	var p budget.Projection
	if err := json.Unmarshal(args, &p); err != nil {
		return budget.Projection{}, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return p, nil
}
