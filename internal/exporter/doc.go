// Package exporter writes budget analysis results in spreadsheet formats.
//
// WriteWorkbook produces an XLSX workbook with one sheet per result:
// projections, economic indicators, risk and tax slabs. CSVWriter writes the
// projected line items as CSV with an optional UTF-8 BOM so that Excel
// recognizes the encoding.
//
// Example usage:
//
//	err := exporter.WriteWorkbook(path, exporter.Result{
//		Projection: projection,
//		Risk:       risk,
//		Slabs:      slabs,
//	})
package exporter
