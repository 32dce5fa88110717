package visualization

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"budgetpulse/internal/budget"
)

// Chart kinds, also used as file name prefixes
const (
	KindRevenuePie     = "pie_chart_revenues"
	KindExpenditureBar = "bar_plot_expenditure"
	KindGDPScatter     = "scatter_plot_gdp_growth"
	KindInflation      = "scatter_plot_inflation"
)

const (
	defaultWidth  = 800
	defaultHeight = 600
	unknownLabel  = "Unknown"
)

var (
	barColor       = drawing.ColorFromHex("87ceeb")
	gdpDotColor    = drawing.ColorFromHex("2ca02c")
	inflationColor = drawing.ColorFromHex("d62728")
)

// Chart is a rendered image on disk
type Chart struct {
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	Caption string `json:"caption"`
}

// Base returns the file name without directory and extension
func (c Chart) Base() string {
	return strings.TrimSuffix(filepath.Base(c.Path), filepath.Ext(c.Path))
}

// Producer renders dataset charts as PNG files
type Producer struct {
	logger *slog.Logger
	width  int
	height int
}

// NewProducer creates a chart producer
func NewProducer(logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		logger: logger.With(slog.String("component", "visualization")),
		width:  defaultWidth,
		height: defaultHeight,
	}
}

// Produce renders every chart the dataset has data for into dir, creating
// dir if needed. Sections without plottable values are skipped, as is any
// chart that fails to render. Only a directory failure or a cancelled
// context is returned as an error.
func (p *Producer) Produce(ctx context.Context, ds *budget.Dataset, dir string) ([]Chart, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create plot directory: %w", err)
	}

	steps := []struct {
		kind   string
		render func(dir string) (Chart, bool, error)
	}{
		{KindRevenuePie, func(dir string) (Chart, bool, error) { return p.revenuePie(ds.Revenue, dir) }},
		{KindExpenditureBar, func(dir string) (Chart, bool, error) { return p.expenditureBar(ds.Expenditure, dir) }},
		{KindGDPScatter, func(dir string) (Chart, bool, error) {
			return p.rateScatter(KindGDPScatter, "GDP Growth", "GDP Growth Rate", gdpDotColor, ds.GDPGrowth, dir)
		}},
		{KindInflation, func(dir string) (Chart, bool, error) {
			return p.rateScatter(KindInflation, "Inflation", "Inflation Rate", inflationColor, ds.Inflation, dir)
		}},
	}

	charts := make([]Chart, 0, len(steps))
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return charts, err
		}

		c, ok, err := step.render(dir)
		if err != nil {
			p.logger.WarnContext(ctx, "chart skipped",
				slog.String("chart", step.kind),
				slog.String("error", err.Error()))
			continue
		}
		if !ok {
			p.logger.DebugContext(ctx, "no data to plot", slog.String("chart", step.kind))
			continue
		}

		p.logger.InfoContext(ctx, "chart saved",
			slog.String("chart", c.Kind),
			slog.String("path", c.Path))
		charts = append(charts, c)
	}

	return charts, nil
}

func (p *Producer) revenuePie(items []budget.LineItem, dir string) (Chart, bool, error) {
	var total float64
	for _, item := range items {
		if item.Amount > 0 {
			total += item.Amount
		}
	}
	if total == 0 {
		return Chart{}, false, nil
	}

	values := make([]chart.Value, 0, len(items))
	for _, item := range items {
		if item.Amount <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s (%.1f%%)", labelOf(item.Name), item.Amount/total*100),
			Value: item.Amount,
		})
	}

	pie := chart.PieChart{
		Title:  "Revenues",
		Width:  p.width,
		Height: p.height,
		Values: values,
	}

	caption := fmt.Sprintf("Share of base-year revenue across %d sources.", len(values))
	return p.save(KindRevenuePie, caption, dir, pie.Render)
}

func (p *Producer) expenditureBar(items []budget.LineItem, dir string) (Chart, bool, error) {
	if len(items) == 0 {
		return Chart{}, false, nil
	}

	bars := make([]chart.Value, 0, len(items))
	lo, hi := 0.0, 0.0
	for _, item := range items {
		bars = append(bars, chart.Value{
			Label: labelOf(item.Name),
			Value: item.Amount,
			Style: chart.Style{FillColor: barColor, StrokeColor: barColor},
		})
		lo = math.Min(lo, item.Amount)
		hi = math.Max(hi, item.Amount)
	}
	if hi == lo {
		hi = lo + 1
	}

	const barWidth, barSpacing = 40, 20
	width := p.width
	if need := 160 + len(bars)*(barWidth+barSpacing); need > width {
		width = need
	}

	bar := chart.BarChart{
		Title:      "Expenditure",
		Width:      width,
		Height:     p.height,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		XAxis:      chart.Style{TextRotationDegrees: 45},
		YAxis: chart.YAxis{
			Name:  "Amount",
			Range: &chart.ContinuousRange{Min: lo, Max: hi * 1.1},
		},
		Bars: bars,
	}

	caption := fmt.Sprintf("Base-year expenditure by category (%d categories).", len(bars))
	return p.save(KindExpenditureBar, caption, dir, bar.Render)
}

func (p *Producer) rateScatter(kind, title, yName string, color drawing.Color, points []budget.RatePoint, dir string) (Chart, bool, error) {
	type obs struct{ year, rate float64 }
	series := make([]obs, 0, len(points))
	for _, pt := range points {
		year, err := strconv.Atoi(strings.TrimSpace(pt.Year))
		if err != nil {
			continue
		}
		series = append(series, obs{float64(year), pt.Rate})
	}
	if len(series) == 0 {
		return Chart{}, false, nil
	}
	sort.Slice(series, func(i, j int) bool { return series[i].year < series[j].year })

	xs := make([]float64, len(series))
	ys := make([]float64, len(series))
	first, last := series[0].year, series[len(series)-1].year
	// padding ticks keep the x-range open when every point shares one year
	ticks := []chart.Tick{{Value: first - 1, Label: strconv.Itoa(int(first) - 1)}}
	minY, maxY := math.Inf(1), math.Inf(-1)
	for i, o := range series {
		xs[i], ys[i] = o.year, o.rate
		minY = math.Min(minY, o.rate)
		maxY = math.Max(maxY, o.rate)
		if i == 0 || series[i-1].year != o.year {
			ticks = append(ticks, chart.Tick{Value: o.year, Label: strconv.Itoa(int(o.year))})
		}
	}
	ticks = append(ticks, chart.Tick{Value: last + 1, Label: strconv.Itoa(int(last) + 1)})

	dots := chart.ContinuousSeries{
		Name: title,
		Style: chart.Style{
			StrokeWidth: chart.Disabled,
			DotWidth:    5,
			DotColor:    color,
		},
		XValues: xs,
		YValues: ys,
	}
	plotted := []chart.Series{dots}
	if last > first {
		plotted = append(plotted, &chart.LinearRegressionSeries{
			Name:        title + " trend",
			Style:       chart.Style{StrokeColor: color, StrokeWidth: 1, StrokeDashArray: []float64{5, 5}},
			InnerSeries: dots,
		})
	}

	graph := chart.Chart{
		Title:  title,
		Width:  p.width,
		Height: p.height,
		XAxis: chart.XAxis{
			Name:  "Year",
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Name:  yName,
			Range: &chart.ContinuousRange{Min: minY - 1, Max: maxY + 1},
		},
		Series: plotted,
	}

	caption := fmt.Sprintf("%s observations from %d to %d.", title, int(first), int(last))
	return p.save(kind, caption, dir, graph.Render)
}

func (p *Producer) save(kind, caption, dir string, render func(chart.RendererProvider, io.Writer) error) (Chart, bool, error) {
	name := fmt.Sprintf("%s_%s.png", kind, strings.ReplaceAll(uuid.NewString(), "-", ""))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return Chart{}, false, err
	}

	if err := render(chart.PNG, f); err != nil {
		f.Close()
		os.Remove(path)
		return Chart{}, false, err
	}
	if err := f.Close(); err != nil {
		return Chart{}, false, err
	}

	return Chart{Kind: kind, Path: path, Caption: caption}, true, nil
}

func labelOf(name string) string {
	if strings.TrimSpace(name) == "" {
		return unknownLabel
	}
	return name
}
