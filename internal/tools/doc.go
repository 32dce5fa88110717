// Package tools exposes the analysis stages as named JSON tools for the agent
// runtime: validate_data, standardize_data, project_budget, identify_risk and
// create_tax_slabs.
//
// Output produced by an external model can be passed to Registry.Check. It is
// accepted when it fits the tool's output schema and recomputed otherwise, with
// the fallback flagged on the result.
package tools
