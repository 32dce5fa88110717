package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetpulse/internal/budget"
	"budgetpulse/internal/shared/testutil"
)

func newStageRegistry(t *testing.T) *Registry {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	r, err := NewStageRegistry(logger, nil)
	require.NoError(t, err)
	return r
}

func scenarioProjection(t *testing.T) (budget.Projection, []byte) {
	t.Helper()
	p := budget.Project(testutil.ScenarioDataset(t))
	data, err := json.Marshal(p)
	require.NoError(t, err)
	return p, data
}

func TestStageRegistryCatalogue(t *testing.T) {
	r := newStageRegistry(t)

	names := []string{}
	for _, tool := range r.List() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
		assert.NotEmpty(t, tool.Parameters)
	}
	assert.Equal(t, []string{
		ToolValidateData, ToolStandardizeData, ToolProjectBudget, ToolIdentifyRisk, ToolCreateTaxSlabs,
	}, names)

	tool, ok := r.Get(ToolIdentifyRisk)
	require.True(t, ok)
	assert.True(t, tool.Checkable)
	tool, ok = r.Get(ToolValidateData)
	require.True(t, ok)
	assert.False(t, tool.Checkable)
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry(nil, nil)
	noop := func(context.Context, json.RawMessage) (json.RawMessage, error) { return json.RawMessage(`{}`), nil }

	require.NoError(t, r.Register(Tool{Name: "noop"}, noop, nil))
	assert.ErrorIs(t, r.Register(Tool{Name: "noop"}, noop, nil), ErrAlreadyExists)
	assert.ErrorIs(t, r.Register(Tool{}, noop, nil), ErrEmptyName)
	assert.Error(t, r.Register(Tool{Name: "nil"}, nil, nil))

	_, err := r.Execute(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Check(context.Background(), "noop", nil, nil)
	assert.ErrorIs(t, err, ErrNoChecker)
}

func TestStageToolsMatchStages(t *testing.T) {
	r := newStageRegistry(t)
	ctx := context.Background()
	dataset := []byte(testutil.ScenarioJSON)
	projection, projectionJSON := scenarioProjection(t)

	res, err := r.Execute(ctx, ToolValidateData, dataset)
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid": true}`, string(res.Output))
	assert.Equal(t, ToolValidateData, res.Tool)

	res, err = r.Execute(ctx, ToolProjectBudget, dataset)
	require.NoError(t, err)
	assert.JSONEq(t, string(projectionJSON), string(res.Output))

	res, err = r.Execute(ctx, ToolIdentifyRisk, projectionJSON)
	require.NoError(t, err)
	var risk budget.RiskAssessment
	require.NoError(t, json.Unmarshal(res.Output, &risk))
	assert.Equal(t, budget.AssessRisk(projection).Level, risk.Level)
	assert.Equal(t, budget.RiskMedium, risk.Level)
	assert.InDelta(t, 0.3, risk.Score, 1e-9)

	res, err = r.Execute(ctx, ToolCreateTaxSlabs, projectionJSON)
	require.NoError(t, err)
	var slabs []budget.TaxSlab
	require.NoError(t, json.Unmarshal(res.Output, &slabs))
	require.Len(t, slabs, 3)
	assert.Equal(t, "0 - 210.00", slabs[0].Range)
	assert.Equal(t, "Above 735.00", slabs[2].Range)
}

func TestValidateDataReportsViolation(t *testing.T) {
	r := newStageRegistry(t)
	res, err := r.Execute(context.Background(), ToolValidateData, []byte(testutil.MissingAmountJSON))
	require.NoError(t, err)

	var out ValidationOutput
	require.NoError(t, json.Unmarshal(res.Output, &out))
	assert.False(t, out.Valid)
	require.NotNil(t, out.Error)
	assert.Equal(t, "missing field 'amount' in item 0 of 'revenue'", out.Error.Message)
	assert.Equal(t, "revenue", out.Error.Section)
}

func TestStandardizeDataTool(t *testing.T) {
	r := newStageRegistry(t)
	ctx := context.Background()

	res, err := r.Execute(ctx, ToolStandardizeData, []byte(testutil.MissingAmountJSON))
	require.NoError(t, err)
	var ds map[string]any
	require.NoError(t, json.Unmarshal(res.Output, &ds))
	item := ds["revenue"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(0), item["amount"])

	res, err = r.Execute(ctx, ToolStandardizeData, []byte(`{"revenue": []}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(res.Output))
}

func TestToolsRejectBadArguments(t *testing.T) {
	r := newStageRegistry(t)
	ctx := context.Background()

	_, err := r.Execute(ctx, ToolProjectBudget, []byte(`[1, 2]`))
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = r.Execute(ctx, ToolIdentifyRisk, []byte(`{"projected_revenue": "lots"}`))
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestCheckAcceptsValidOutput(t *testing.T) {
	r := newStageRegistry(t)
	ctx := context.Background()
	projection, projectionJSON := scenarioProjection(t)

	res, err := r.Check(ctx, ToolProjectBudget, []byte(testutil.ScenarioJSON), projectionJSON)
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.JSONEq(t, string(projectionJSON), string(res.Output))

	risk, err := json.Marshal(budget.AssessRisk(projection))
	require.NoError(t, err)
	res, err = r.Check(ctx, ToolIdentifyRisk, projectionJSON, risk)
	require.NoError(t, err)
	assert.False(t, res.Fallback)

	slabs, err := json.Marshal(budget.GenerateTaxSlabs(projection))
	require.NoError(t, err)
	res, err = r.Check(ctx, ToolCreateTaxSlabs, projectionJSON, slabs)
	require.NoError(t, err)
	assert.False(t, res.Fallback)
}

func TestCheckProjectionAcceptsUnknownYear(t *testing.T) {
	dataset := testutil.MustParseDataset(t, `{
		"revenue": [{"name": "tax", "amount": 1000}],
		"expenditure": [{"name": "health", "amount": 900}],
		"inflation": [{"year": "n/a", "rate": 2}],
		"gdp_growth": [{"year": "2023", "rate": 3}, {"year": "2024", "rate": 2.8}]
	}`)
	projection := budget.Project(dataset)
	require.Equal(t, budget.UnknownYear, projection.Inflation.Year)

	produced, err := json.Marshal(projection)
	require.NoError(t, err)

	got, outcome := CheckProjection(produced, dataset)
	assert.False(t, outcome.Fallback, outcome.Reason)
	assert.Equal(t, projection, got)
}

func TestCheckFallsBack(t *testing.T) {
	projection, _ := scenarioProjection(t)
	dataset := testutil.ScenarioDataset(t)

	tests := []struct {
		name     string
		check    func(produced []byte) Outcome
		produced string
	}{
		{
			name: "projection is prose",
			check: func(b []byte) Outcome {
				_, o := CheckProjection(b, dataset)
				return o
			},
			produced: `The projected revenue is about 1050.`,
		},
		{
			name: "projection item without name",
			check: func(b []byte) Outcome {
				_, o := CheckProjection(b, dataset)
				return o
			},
			produced: `{"projected_revenue": [{"amount": 1, "projected_amount": 2}], "projected_expenditure": [], "projected_inflation": {}, "projected_gdp_growth": {}}`,
		},
		{
			name: "projected year not a year",
			check: func(b []byte) Outcome {
				_, o := CheckProjection(b, dataset)
				return o
			},
			produced: `{"projected_revenue": [], "projected_expenditure": [], "projected_inflation": {"year": "20x5", "rate": 1}, "projected_gdp_growth": {}}`,
		},
		{
			name: "risk level outside the set",
			check: func(b []byte) Outcome {
				_, o := CheckRisk(b, projection)
				return o
			},
			produced: `{"risk_level": "severe", "risk_score": 0.9}`,
		},
		{
			name: "risk level disagrees with score",
			check: func(b []byte) Outcome {
				_, o := CheckRisk(b, projection)
				return o
			},
			produced: `{"risk_level": "low", "risk_score": 0.7}`,
		},
		{
			name: "two tax slabs",
			check: func(b []byte) Outcome {
				_, o := CheckTaxSlabs(b, projection)
				return o
			},
			produced: `[{"slab": 1, "range": "0 - 1", "rate": "10%"}, {"slab": 2, "range": "Above 1", "rate": "20%"}]`,
		},
		{
			name: "tax rate unknown",
			check: func(b []byte) Outcome {
				_, o := CheckTaxSlabs(b, projection)
				return o
			},
			produced: `[{"slab": 1, "range": "0 - 1", "rate": "15%"}, {"slab": 2, "range": "1 - 2", "rate": "20%"}, {"slab": 3, "range": "Above 2", "rate": "30%"}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := tt.check([]byte(tt.produced))
			assert.True(t, outcome.Fallback)
			assert.NotEmpty(t, outcome.Reason)
		})
	}
}

func TestCheckRiskRecomputes(t *testing.T) {
	projection, _ := scenarioProjection(t)
	got, outcome := CheckRisk([]byte(`not json`), projection)
	assert.True(t, outcome.Fallback)
	assert.Equal(t, budget.AssessRisk(projection), got)

	slabs, outcome := CheckTaxSlabs([]byte(`[]`), projection)
	assert.False(t, outcome.Fallback, "an empty slab list is well formed")
	assert.Empty(t, slabs)
}
