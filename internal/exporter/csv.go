package exporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"budgetpulse/internal/budget"
)

// utf8BOM helps Excel recognize UTF-8 CSV files
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ProjectionHeaders are the columns written by WriteProjection
var ProjectionHeaders = []string{"type", "name", "amount", "projected_amount"}

// CSVWriter writes CSV records to an underlying writer
type CSVWriter struct {
	out    io.Writer
	writer *csv.Writer
	bom    bool
	began  bool
}

// NewCSVWriter creates a CSV writer. With bom set, the first write is
// preceded by a UTF-8 byte order mark.
func NewCSVWriter(out io.Writer, bom bool) *CSVWriter {
	return &CSVWriter{
		out:    out,
		writer: csv.NewWriter(out),
		bom:    bom,
	}
}

// WriteRecords writes headers (if any) followed by records and flushes
func (w *CSVWriter) WriteRecords(headers []string, records [][]string) error {
	if !w.began {
		w.began = true
		if w.bom {
			if _, err := w.out.Write(utf8BOM); err != nil {
				return fmt.Errorf("failed to write BOM: %w", err)
			}
		}
	}

	if len(headers) > 0 {
		if err := w.writer.Write(headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for i, record := range records {
		if err := w.writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	w.writer.Flush()
	return w.writer.Error()
}

// WriteProjection writes the projected line items, revenue first
func (w *CSVWriter) WriteProjection(p budget.Projection) error {
	records := make([][]string, 0, len(p.Revenue)+len(p.Expenditure))
	for _, item := range p.Revenue {
		records = append(records, []string{KindRevenue, item.Name, formatFloat(item.Amount), formatFloat(item.ProjectedAmount)})
	}
	for _, item := range p.Expenditure {
		records = append(records, []string{KindExpenditure, item.Name, formatFloat(item.Amount), formatFloat(item.ProjectedAmount)})
	}
	return w.WriteRecords(ProjectionHeaders, records)
}

// formatFloat formats a value with exactly 2 decimal places
func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}
