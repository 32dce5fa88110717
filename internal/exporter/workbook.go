package exporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"budgetpulse/internal/budget"
)

// Sheet names, in workbook order
const (
	SheetProjections = "Projections"
	SheetIndicators  = "Indicators"
	SheetRisk        = "Risk"
	SheetTaxSlabs    = "Tax Slabs"
)

// Row kinds on the projections sheet
const (
	KindRevenue     = "revenue"
	KindExpenditure = "expenditure"
)

// numFmtAmount is the built-in "#,##0.00" format
const numFmtAmount = 4

// Result is the analysis output exported to a workbook
type Result struct {
	Projection budget.Projection
	Risk       budget.RiskAssessment
	Slabs      []budget.TaxSlab
}

// WriteWorkbook writes result as an XLSX file at path, creating parent directories
func WriteWorkbook(path string, result Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := buildWorkbook(result)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// EncodeWorkbook writes result as XLSX to w
func EncodeWorkbook(w io.Writer, result Result) error {
	f, err := buildWorkbook(result)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

type sheetWriter struct {
	f      *excelize.File
	header int
	amount int
}

func buildWorkbook(result Result) (*excelize.File, error) {
	f := excelize.NewFile()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "003366"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DCE6F1"}},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	amount, err := f.NewStyle(&excelize.Style{NumFmt: numFmtAmount})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create amount style: %w", err)
	}

	w := &sheetWriter{f: f, header: header, amount: amount}

	if err := f.SetSheetName("Sheet1", SheetProjections); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetIndicators, SheetRisk, SheetTaxSlabs} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	steps := []func(Result) error{w.projections, w.indicators, w.risk, w.taxSlabs}
	for _, step := range steps {
		if err := step(result); err != nil {
			f.Close()
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

func (w *sheetWriter) writeRows(sheet string, headers []string, rows [][]interface{}) error {
	hdr := make([]interface{}, len(headers))
	for i, h := range headers {
		hdr[i] = h
	}
	if err := w.f.SetSheetRow(sheet, "A1", &hdr); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}

	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := w.f.SetCellStyle(sheet, "A1", last, w.header); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := w.f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}

	if err := w.f.SetColWidth(sheet, "A", "F", 20); err != nil {
		return fmt.Errorf("failed to size %s columns: %w", sheet, err)
	}
	return nil
}

func (w *sheetWriter) styleAmounts(sheet, fromCol, toCol string, rows int) error {
	if rows == 0 {
		return nil
	}
	return w.f.SetCellStyle(sheet, fromCol+"2", fmt.Sprintf("%s%d", toCol, rows+1), w.amount)
}

func (w *sheetWriter) projections(r Result) error {
	rows := make([][]interface{}, 0, len(r.Projection.Revenue)+len(r.Projection.Expenditure)+2)
	for _, item := range r.Projection.Revenue {
		rows = append(rows, []interface{}{KindRevenue, item.Name, item.Amount, item.ProjectedAmount})
	}
	for _, item := range r.Projection.Expenditure {
		rows = append(rows, []interface{}{KindExpenditure, item.Name, item.Amount, item.ProjectedAmount})
	}
	rows = append(rows,
		[]interface{}{"total", "Total Revenue", nil, r.Projection.TotalRevenue()},
		[]interface{}{"total", "Total Expenditure", nil, r.Projection.TotalExpenditure()},
	)

	if err := w.writeRows(SheetProjections, []string{"Type", "Name", "Amount", "Projected Amount"}, rows); err != nil {
		return err
	}
	return w.styleAmounts(SheetProjections, "C", "D", len(rows))
}

func (w *sheetWriter) indicators(r Result) error {
	var rows [][]interface{}
	for _, ind := range []struct {
		name string
		p    budget.IndicatorProjection
	}{
		{"Inflation", r.Projection.Inflation},
		{"GDP Growth", r.Projection.GDPGrowth},
	} {
		if ind.p.IsEmpty() {
			rows = append(rows, []interface{}{ind.name, "N/A", nil})
			continue
		}
		rows = append(rows, []interface{}{ind.name, ind.p.Year, ind.p.Rate})
	}

	return w.writeRows(SheetIndicators, []string{"Indicator", "Year", "Projected Rate (%)"}, rows)
}

func (w *sheetWriter) risk(r Result) error {
	rows := [][]interface{}{
		{"Risk Level", r.Risk.Level.Upper()},
		{"Risk Score", r.Risk.Score},
		{"Total Revenue", r.Risk.TotalRevenue},
		{"Total Expenditure", r.Risk.TotalExpenditure},
	}
	if f := r.Risk.Factors; f != nil {
		rows = append(rows,
			[]interface{}{"Deficit Ratio", f.DeficitRatio},
			[]interface{}{"Deficit Risk", f.Deficit},
			[]interface{}{"Inflation Risk", f.Inflation},
			[]interface{}{"GDP Risk", f.GDP},
		)
	}

	return w.writeRows(SheetRisk, []string{"Metric", "Value"}, rows)
}

func (w *sheetWriter) taxSlabs(r Result) error {
	rows := make([][]interface{}, 0, len(r.Slabs))
	for _, s := range r.Slabs {
		var upper interface{}
		if s.Upper != nil {
			upper = *s.Upper
		}
		rows = append(rows, []interface{}{s.Slab, s.Range, s.Rate, s.Lower, upper})
	}

	if err := w.writeRows(SheetTaxSlabs, []string{"Slab", "Income Range", "Tax Rate", "Lower", "Upper"}, rows); err != nil {
		return err
	}
	return w.styleAmounts(SheetTaxSlabs, "D", "E", len(rows))
}
