package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"budgetpulse/internal/budget"
)

// ScenarioJSON is a small, valid dataset with hand-checked results:
// projected revenue 1050, projected expenditure 927, inflation 2025 at 4.0,
// GDP growth 2025 at 2.6, risk score 0.3 (medium), slab boundaries 210/735.
const ScenarioJSON = `{
	"revenue": [{"name": "tax", "amount": 1000}],
	"expenditure": [{"name": "health", "amount": 900}],
	"inflation": [{"year": "2023", "rate": 2}, {"year": "2024", "rate": 3}],
	"gdp_growth": [{"year": "2023", "rate": 3}, {"year": "2024", "rate": 2.8}]
}`

// MissingAmountJSON has the right top-level keys but a revenue item without
// an amount: it passes the upload check and fails validation in the job.
const MissingAmountJSON = `{
	"revenue": [{"name": "tax"}],
	"expenditure": [{"name": "health", "amount": 900}],
	"inflation": [{"year": "2023", "rate": 2}],
	"gdp_growth": [{"year": "2023", "rate": 3}]
}`

// ScenarioDataset parses ScenarioJSON
func ScenarioDataset(t testing.TB) budget.RawDataset {
	t.Helper()
	return MustParseDataset(t, ScenarioJSON)
}

// MustParseDataset parses data or fails the test
func MustParseDataset(t testing.TB, data string) budget.RawDataset {
	t.Helper()
	raw, err := budget.ParseDataset([]byte(data))
	if err != nil {
		t.Fatalf("failed to parse dataset: %v", err)
	}
	return raw
}

// WriteFile writes content to name under dir and returns the full path
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
