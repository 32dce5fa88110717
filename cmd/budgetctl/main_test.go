package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetpulse/internal/shared/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func datasetFile(t *testing.T, content string) string {
	t.Helper()
	return testutil.WriteFile(t, t.TempDir(), "budget.json", content)
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate", datasetFile(t, testutil.ScenarioJSON))
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid": true}`, out)

	out, err = execute(t, "validate", datasetFile(t, testutil.MissingAmountJSON))
	assert.ErrorIs(t, err, errInvalidDataset)
	assert.JSONEq(t, `{"valid": false, "error": "missing field 'amount' in item 0 of 'revenue'"}`, out)
}

func TestStandardizeCommand(t *testing.T) {
	out, err := execute(t, "standardize", "--report", datasetFile(t, testutil.MissingAmountJSON))
	require.NoError(t, err)

	var res struct {
		Dataset struct {
			Revenue []map[string]any `json:"revenue"`
		} `json:"dataset"`
		Backfills []struct {
			Section string  `json:"section"`
			Field   string  `json:"field"`
			Value   float64 `json:"value"`
		} `json:"backfills"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Dataset.Revenue, 1)
	assert.Equal(t, 0.0, res.Dataset.Revenue[0]["amount"])
	require.Len(t, res.Backfills, 1)
	assert.Equal(t, "revenue", res.Backfills[0].Section)
	assert.Equal(t, "amount", res.Backfills[0].Field)

	out, err = execute(t, "standardize", datasetFile(t, `{"revenue": []}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, out)
}

func TestProjectCommand(t *testing.T) {
	path := datasetFile(t, testutil.ScenarioJSON)

	out, err := execute(t, "project", path)
	require.NoError(t, err)
	var projection struct {
		Revenue []struct {
			ProjectedAmount float64 `json:"projected_amount"`
		} `json:"projected_revenue"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &projection))
	require.Len(t, projection.Revenue, 1)
	assert.InDelta(t, 1050.0, projection.Revenue[0].ProjectedAmount, 1e-9)

	out, err = execute(t, "project", "--format", "csv", path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"type,name,amount,projected_amount",
		"revenue,tax,1000.00,1050.00",
		"expenditure,health,900.00,927.00",
	}, strings.Split(strings.TrimSpace(out), "\n"))

	_, err = execute(t, "project", "--format", "xml", path)
	assert.ErrorContains(t, err, "unsupported format")
}

func TestAnalyzeCommand(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "report")

	out, err := execute(t, "analyze", "--out", outDir, datasetFile(t, testutil.ScenarioJSON))
	require.NoError(t, err)

	var res struct {
		JobID        string `json:"job_id"`
		ReportPath   string `json:"report_path"`
		WorkbookPath string `json:"workbook_path"`
		Summary      struct {
			RiskLevel     string `json:"risk_level"`
			TaxSlabsCount int    `json:"tax_slabs_count"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.NotEmpty(t, res.JobID)
	assert.Equal(t, "medium", res.Summary.RiskLevel)
	assert.Equal(t, 3, res.Summary.TaxSlabsCount)

	pdf, err := os.ReadFile(res.ReportPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	assert.FileExists(t, res.WorkbookPath)
}

func TestAnalyzeInvalidDataset(t *testing.T) {
	path := datasetFile(t, testutil.MissingAmountJSON)

	_, err := execute(t, "analyze", "--out", t.TempDir(), "--no-charts", path)
	assert.ErrorContains(t, err, "amount")

	out, err := execute(t, "analyze", "--out", t.TempDir(), "--no-charts", "--no-workbook", "--standardize", path)
	require.NoError(t, err)

	var res struct {
		WorkbookPath string `json:"workbook_path"`
		Summary      struct {
			Standardized   bool `json:"standardized"`
			Visualizations int  `json:"visualizations"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Summary.Standardized)
	assert.Zero(t, res.Summary.Visualizations)
	assert.Empty(t, res.WorkbookPath)

	_, err = execute(t, "analyze", datasetFile(t, `{"revenue": []}`))
	assert.ErrorContains(t, err, "missing required key in JSON: expenditure")

	_, err = execute(t, "validate", filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorContains(t, err, "does not exist")

	_, err = execute(t, "project", testutil.WriteFile(t, t.TempDir(), "budget.txt", testutil.ScenarioJSON))
	assert.ErrorContains(t, err, "only JSON files are allowed")
}
