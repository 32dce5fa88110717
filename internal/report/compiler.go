package report

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-pdf/fpdf"

	"budgetpulse/internal/budget"
)

// Title is printed in every page header
const Title = "Budget Analysis Report"

// NoVisualsText fills the visual section when there are no images
const NoVisualsText = "No visual plots found."

const (
	fontFamily = "Helvetica"
	pageMargin = 10.0
	breakAt    = 15.0
	lineHeight = 6.0
)

var imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true}

// Input is everything a report is compiled from
type Input struct {
	Projection budget.Projection
	Risk       budget.RiskAssessment
	Slabs      []budget.TaxSlab
	VisualDir  string
	Insights   Insights
	OutputPath string
}

// Compiler renders budget reports as PDF
type Compiler struct {
	logger   *slog.Logger
	compress bool
}

// NewCompiler creates a report compiler
func NewCompiler(logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{
		logger:   logger.With(slog.String("component", "report")),
		compress: true,
	}
}

// Compile renders a report with a default compiler
func Compile(ctx context.Context, in Input) (string, error) {
	return NewCompiler(nil).Compile(ctx, in)
}

// Compile writes the report to in.OutputPath and returns that path.
//
// Sections appear in fixed order: budget projections, risk identification,
// tax slabs, then one page per image in VisualDir sorted by file name.
// Filesystem failures are returned as *ArtifactError.
func (c *Compiler) Compile(ctx context.Context, in Input) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	images, err := listImages(in.VisualDir)
	if err != nil {
		return "", &ArtifactError{Path: in.VisualDir, Err: err}
	}

	insights := in.Insights.WithDefaults(in.Risk.Level)

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(c.compress)
	pdf.SetTitle(Title, true)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, breakAt)

	w := &writer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.SetHeaderFunc(w.header)
	pdf.SetFooterFunc(w.footer)

	w.projectionSection(in.Projection, insights)
	w.riskSection(in.Risk, insights)
	w.taxSection(in.Slabs, insights)
	w.visualSection(images, insights)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(in.OutputPath), 0755); err != nil {
		return "", &ArtifactError{Path: in.OutputPath, Err: err}
	}
	if err := pdf.OutputFileAndClose(in.OutputPath); err != nil {
		return "", &ArtifactError{Path: in.OutputPath, Err: err}
	}

	attrs := []any{
		slog.String("path", in.OutputPath),
		slog.Int("pages", pdf.PageNo()),
		slog.Int("visuals", len(images)),
	}
	if info, err := os.Stat(in.OutputPath); err == nil {
		attrs = append(attrs, slog.String("size", humanize.Bytes(uint64(info.Size()))))
	}
	c.logger.InfoContext(ctx, "report compiled", attrs...)

	return in.OutputPath, nil
}

// listImages returns image paths in dir sorted by file name. A missing dir
// has no images.
func listImages(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var images []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		images = append(images, filepath.Join(dir, e.Name()))
	}
	sort.Strings(images)
	return images, nil
}

// FormatCurrency prints an amount as dollars with thousands separators
func FormatCurrency(v float64) string {
	if v < 0 {
		return "-$" + humanize.FormatFloat("#,###.##", -v)
	}
	return "$" + humanize.FormatFloat("#,###.##", v)
}

func formatRate(p budget.IndicatorProjection) (year, rate string) {
	if p.IsEmpty() {
		return "N/A", "N/A"
	}
	return p.Year, fmt.Sprintf("%.2f%%", p.Rate)
}

type writer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (w *writer) header() {
	pdf := w.pdf
	pageW, _ := pdf.GetPageSize()

	pdf.SetFont(fontFamily, "B", 16)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, Title, "", 1, "C", false, 0, "")
	pdf.Line(pageMargin, 20, pageW-pageMargin, 20)
	pdf.Ln(10)
	pdf.SetTextColor(0, 0, 0)
}

func (w *writer) footer() {
	pdf := w.pdf
	pdf.SetY(-15)
	pdf.SetFont(fontFamily, "I", 8)
	pdf.SetTextColor(128, 128, 128)
	pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
}

func (w *writer) sectionTitle(title string) {
	w.pdf.SetFont(fontFamily, "B", 14)
	w.pdf.SetTextColor(0, 51, 102)
	w.pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
	w.pdf.SetTextColor(0, 0, 0)
}

func (w *writer) subTitle(title string) {
	w.pdf.SetFont(fontFamily, "B", 12)
	w.pdf.SetTextColor(0, 0, 0)
	w.pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
}

func (w *writer) insight(text string) {
	if text == "" {
		return
	}
	w.pdf.Ln(5)
	w.pdf.SetFont(fontFamily, "I", 11)
	w.pdf.SetTextColor(50, 50, 50)
	w.pdf.MultiCell(0, lineHeight, w.tr(text), "", "L", false)
	w.pdf.SetTextColor(0, 0, 0)
}

func (w *writer) table(headers []string, rows [][]string) {
	pdf := w.pdf
	pageW, _ := pdf.GetPageSize()
	colW := (pageW-2*pageMargin)/float64(len(headers)) - 1

	pdf.SetFont(fontFamily, "B", 10)
	for _, h := range headers {
		pdf.CellFormat(colW, 10, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(fontFamily, "", 10)
	for _, row := range rows {
		for _, cell := range row {
			pdf.CellFormat(colW, 8, w.tr(cell), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
}

func itemRows(items []budget.ProjectedItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		name := item.Name
		if name == "" {
			name = "Unknown"
		}
		rows = append(rows, []string{name, FormatCurrency(item.ProjectedAmount)})
	}
	return rows
}

func (w *writer) projectionSection(p budget.Projection, insights Insights) {
	w.pdf.AddPage()
	w.sectionTitle("Budget Projections")
	w.pdf.Ln(5)

	w.subTitle("Projected Revenues")
	w.table([]string{"Revenue Source", "Projected Amount"}, itemRows(p.Revenue))
	w.insight(insights.Revenue)

	w.pdf.Ln(8)
	w.subTitle("Projected Expenditures")
	w.table([]string{"Expenditure Category", "Projected Amount"}, itemRows(p.Expenditure))
	w.insight(insights.Expenditure)

	w.pdf.Ln(8)
	w.subTitle("Economic Indicators")
	w.pdf.SetFont(fontFamily, "", 11)
	year, rate := formatRate(p.Inflation)
	w.pdf.CellFormat(0, lineHeight, fmt.Sprintf("Projected Inflation (%s): %s", year, rate), "", 1, "L", false, 0, "")
	year, rate = formatRate(p.GDPGrowth)
	w.pdf.CellFormat(0, lineHeight, fmt.Sprintf("Projected GDP Growth (%s): %s", year, rate), "", 1, "L", false, 0, "")
	w.insight(insights.Economic)
}

func (w *writer) riskSection(r budget.RiskAssessment, insights Insights) {
	w.pdf.AddPage()
	w.sectionTitle("Risk Identification")
	w.pdf.Ln(8)

	w.pdf.SetFont(fontFamily, "", 12)
	w.pdf.CellFormat(0, 10, fmt.Sprintf("Overall Risk Ranking: %s", r.Level.Upper()), "", 1, "L", false, 0, "")
	if !r.Indeterminate() {
		w.pdf.CellFormat(0, 10, fmt.Sprintf("Risk Score: %.2f", r.Score), "", 1, "L", false, 0, "")
	}
	w.insight(insights.Risk)
}

func (w *writer) taxSection(slabs []budget.TaxSlab, insights Insights) {
	w.pdf.AddPage()
	w.sectionTitle("Tax Slabs")
	w.pdf.Ln(5)

	rows := make([][]string, 0, len(slabs))
	for _, s := range slabs {
		rows = append(rows, []string{fmt.Sprintf("%d", s.Slab), s.Range, s.Rate})
	}
	w.table([]string{"Slab", "Income Range", "Tax Rate"}, rows)
	w.insight(insights.Tax)
}

func (w *writer) visualSection(images []string, insights Insights) {
	if len(images) == 0 {
		w.pdf.AddPage()
		w.pdf.SetFont(fontFamily, "", 12)
		w.pdf.CellFormat(0, 10, NoVisualsText, "", 1, "L", false, 0, "")
		return
	}

	pageW, _ := w.pdf.GetPageSize()
	for _, path := range images {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		w.pdf.AddPage()
		w.subTitle("Visual Analysis: " + w.tr(base))
		w.pdf.ImageOptions(path, 20, 0, pageW-40, 0, true, fpdf.ImageOptions{ReadDpi: true}, 0, "")

		if caption, ok := insights.Visual[base]; ok {
			w.insight(caption)
		}
	}
}
