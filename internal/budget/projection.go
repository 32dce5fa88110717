package budget

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Growth factors applied to line items
const (
	RevenueGrowthRate     = 0.05
	ExpenditureGrowthRate = 0.03
)

// UnknownYear is the projected year when no observation carries a usable year
const UnknownYear = "Unknown"

// ProjectedItem is a line item with its next-period amount
type ProjectedItem struct {
	Name            string  `json:"name"`
	Amount          float64 `json:"amount"`
	ProjectedAmount float64 `json:"projected_amount"`
}

// IndicatorProjection is the projected rate of an economic indicator.
// The zero value means the source series was empty and marshals to {}.
type IndicatorProjection struct {
	Year string  `json:"year,omitempty"`
	Rate float64 `json:"rate"`
}

// IsEmpty reports whether the indicator had no source data
func (p IndicatorProjection) IsEmpty() bool {
	return p.Year == ""
}

// MarshalJSON renders an empty projection as {}
func (p IndicatorProjection) MarshalJSON() ([]byte, error) {
	if p.IsEmpty() {
		return []byte("{}"), nil
	}
	type alias IndicatorProjection
	return json.Marshal(alias(p))
}

// Projection is the next-period budget computed from a dataset
type Projection struct {
	Revenue     []ProjectedItem     `json:"projected_revenue"`
	Expenditure []ProjectedItem     `json:"projected_expenditure"`
	Inflation   IndicatorProjection `json:"projected_inflation"`
	GDPGrowth   IndicatorProjection `json:"projected_gdp_growth"`
}

// TotalRevenue sums projected revenue
func (p *Projection) TotalRevenue() float64 {
	return sumProjected(p.Revenue)
}

// TotalExpenditure sums projected expenditure
func (p *Projection) TotalExpenditure() float64 {
	return sumProjected(p.Expenditure)
}

func sumProjected(items []ProjectedItem) float64 {
	var total float64
	for _, item := range items {
		total += item.ProjectedAmount
	}
	return total
}

// Project computes the next-period projection of a dataset.
//
// Revenue and expenditure items grow by RevenueGrowthRate and
// ExpenditureGrowthRate, preserving order. A missing or non-numeric amount
// counts as 0 and non-object entries are skipped. Inflation and GDP growth are
// extrapolated independently with ProjectRates. Project never fails.
func Project(d RawDataset) Projection {
	projection, _ := ProjectWithNotes(d)
	return projection
}

// ProjectWithNotes is Project that also returns an InsufficientDataError for
// every rate series that fell back to the mean
func ProjectWithNotes(d RawDataset) (Projection, []*InsufficientDataError) {
	var notes []*InsufficientDataError

	inflation, note := ProjectRates(SectionInflation, d.Items(SectionInflation))
	if note != nil {
		notes = append(notes, note)
	}
	gdp, note := ProjectRates(SectionGDPGrowth, d.Items(SectionGDPGrowth))
	if note != nil {
		notes = append(notes, note)
	}

	return Projection{
		Revenue:     projectItems(d.Items(SectionRevenue), RevenueGrowthRate),
		Expenditure: projectItems(d.Items(SectionExpenditure), ExpenditureGrowthRate),
		Inflation:   inflation,
		GDPGrowth:   gdp,
	}, notes
}

func projectItems(items []map[string]any, growth float64) []ProjectedItem {
	out := make([]ProjectedItem, 0, len(items))
	for _, item := range items {
		amount, _ := numeric(item[FieldAmount])
		name, ok := item[FieldName].(string)
		if !ok {
			name = "Unknown"
		}
		out = append(out, ProjectedItem{
			Name:            name,
			Amount:          amount,
			ProjectedAmount: amount * (1 + growth),
		})
	}
	return out
}

type point struct {
	year int
	rate float64
}

// ProjectRates extrapolates a yearly rate series one year past its latest
// observation.
//
// Entries whose year does not parse as an integer or whose rate is not a
// number are discarded. With two or more valid points the rate comes from an
// ordinary least squares line; with fewer, it is the mean of the valid rates
// (0 when none) and an InsufficientDataError is returned alongside. An empty
// series yields the empty projection.
func ProjectRates(section string, items []map[string]any) (IndicatorProjection, *InsufficientDataError) {
	if len(items) == 0 {
		return IndicatorProjection{}, nil
	}

	var points []point
	for _, item := range items {
		year, ok := parseYear(item[FieldYear])
		if !ok {
			continue
		}
		rate, ok := parseRate(item[FieldRate])
		if !ok {
			continue
		}
		points = append(points, point{year: year, rate: rate})
	}

	if len(points) >= 2 {
		next := maxYear(points) + 1
		if rate, ok := leastSquares(points, float64(next)); ok {
			return IndicatorProjection{Year: strconv.Itoa(next), Rate: round2(rate)}, nil
		}
	}

	note := &InsufficientDataError{Section: section, ValidPoints: len(points)}
	if len(points) == 0 {
		return IndicatorProjection{Year: UnknownYear, Rate: 0}, note
	}

	var sum float64
	for _, p := range points {
		sum += p.rate
	}
	return IndicatorProjection{
		Year: strconv.Itoa(maxYear(points) + 1),
		Rate: round2(sum / float64(len(points))),
	}, note
}

// leastSquares fits rate = m*year + c and evaluates it at x.
// Years are centred on their mean; a series with a single distinct year has
// no slope and reports false.
func leastSquares(points []point, x float64) (float64, bool) {
	n := float64(len(points))
	var meanX, meanY float64
	for _, p := range points {
		meanX += float64(p.year)
		meanY += p.rate
	}
	meanX /= n
	meanY /= n

	var sxy, sxx float64
	for _, p := range points {
		dx := float64(p.year) - meanX
		sxy += dx * (p.rate - meanY)
		sxx += dx * dx
	}
	if sxx == 0 {
		return 0, false
	}

	slope := sxy / sxx
	return meanY + slope*(x-meanX), true
}

func maxYear(points []point) int {
	best := points[0].year
	for _, p := range points[1:] {
		if p.year > best {
			best = p.year
		}
	}
	return best
}

func parseYear(v any) (int, bool) {
	switch y := v.(type) {
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(y))
		return n, err == nil
	default:
		f, ok := numeric(v)
		if !ok || f != math.Trunc(f) {
			return 0, false
		}
		return int(f), true
	}
}

func parseRate(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return numeric(v)
}

// round2 rounds half away from zero to two decimals
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
