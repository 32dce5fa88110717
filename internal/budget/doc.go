// Package budget implements the deterministic budget analysis pipeline.
//
// A submitted financial dataset carries four sections: revenue and
// expenditure line items, and inflation and GDP growth rate series. The
// package turns that dataset into a next-period projection, a weighted risk
// ranking and a set of progressive tax slabs.
//
// # Pipeline
//
//  1. Validate: schema check, stops at the first violation
//  2. Standardize: backfills missing or non-numeric values with the section mean
//  3. Project: growth-rate compounding for line items, least squares
//     extrapolation for the rate series
//  4. AssessRisk: discretized deficit, inflation and GDP factors weighted 0.4/0.3/0.3
//  5. GenerateTaxSlabs: three brackets at 20% and 70% of projected revenue
//
// # Files
//
//   - dataset.go: raw and typed dataset shapes, typed decoding
//   - validate.go: schema validation
//   - standardize.go: mean backfill
//   - projection.go: projection engine
//   - risk.go: risk scorer
//   - tax.go: tax slab generator
//   - errors.go: error taxonomy
//
// # Usage Example
//
//	raw, err := budget.ParseDataset(data)
//	if err != nil {
//	    return err
//	}
//	if err := budget.Validate(raw); err != nil {
//	    return err
//	}
//	projection := budget.Project(raw)
//	risk := budget.AssessRisk(projection)
//	slabs := budget.GenerateTaxSlabs(projection)
//
// Every stage is a pure function of its input. Numeric edge cases such as
// empty sections, zero totals or unparseable years degrade to sentinel values
// instead of errors; only Validate reports a failure.
package budget
