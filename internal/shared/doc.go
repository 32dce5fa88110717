// Package shared holds helpers used by more than one package.
//
// The testutil subpackage provides a capturing slog handler and the sample
// financial datasets used across package tests:
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    data := testutil.ScenarioDataset(t)
//	    ...
//	    testutil.AssertLogContains(t, logs, slog.LevelInfo, "job completed")
//	}
package shared
