// Package report compiles budget analysis results into a PDF document.
//
// A report has a fixed layout: budget projections, risk identification, tax
// slabs, and one page per chart image. Every section carries a narrative
// paragraph taken from Insights, falling back to a default when none is given.
package report
