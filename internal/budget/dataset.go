package budget

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

// Section names of a financial dataset
const (
	SectionRevenue     = "revenue"
	SectionExpenditure = "expenditure"
	SectionInflation   = "inflation"
	SectionGDPGrowth   = "gdp_growth"
)

// Item field names
const (
	FieldName   = "name"
	FieldAmount = "amount"
	FieldYear   = "year"
	FieldRate   = "rate"
)

// sectionSchema describes the fields each section's items must carry, in check order
type sectionSchema struct {
	Section string
	Fields  []string
	Numeric string // field backfilled by Standardize
}

// schema is ordered; Validate reports violations in this order
var schema = []sectionSchema{
	{Section: SectionRevenue, Fields: []string{FieldName, FieldAmount}, Numeric: FieldAmount},
	{Section: SectionExpenditure, Fields: []string{FieldName, FieldAmount}, Numeric: FieldAmount},
	{Section: SectionInflation, Fields: []string{FieldYear, FieldRate}, Numeric: FieldRate},
	{Section: SectionGDPGrowth, Fields: []string{FieldYear, FieldRate}, Numeric: FieldRate},
}

// RequiredSections returns the top-level keys every dataset must carry
func RequiredSections() []string {
	sections := make([]string, len(schema))
	for i, s := range schema {
		sections[i] = s.Section
	}
	return sections
}

// RawDataset is an untrusted dataset as decoded from JSON.
// Values are map[string]any, []any, float64, string, bool or nil.
type RawDataset map[string]any

// ParseDataset decodes JSON bytes into a RawDataset.
// The top-level value must be an object.
func ParseDataset(data []byte) (RawDataset, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid dataset JSON: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("invalid dataset JSON: top-level value must be an object")
	}
	return RawDataset(raw), nil
}

// MissingSections returns the required top-level keys absent from the dataset
func (d RawDataset) MissingSections() []string {
	var missing []string
	for _, s := range schema {
		if _, ok := d[s.Section]; !ok {
			missing = append(missing, s.Section)
		}
	}
	return missing
}

// Items returns the object entries of a section, skipping anything that is
// not a JSON object. A missing or non-list section yields nil.
func (d RawDataset) Items(section string) []map[string]any {
	list, ok := d[section].([]any)
	if !ok {
		return nil
	}
	items := make([]map[string]any, 0, len(list))
	for _, entry := range list {
		if obj, ok := entry.(map[string]any); ok {
			items = append(items, obj)
		}
	}
	return items
}

// Clone returns a deep copy of the dataset
func (d RawDataset) Clone() RawDataset {
	if d == nil {
		return nil
	}
	return RawDataset(cloneValue(map[string]any(d)).(map[string]any))
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return val
	}
}

// LineItem is a named revenue or expenditure amount
type LineItem struct {
	Name   string  `json:"name" mapstructure:"name"`
	Amount float64 `json:"amount" mapstructure:"amount"`
}

// RatePoint is one observation of a yearly rate series
type RatePoint struct {
	Year string  `json:"year" mapstructure:"year"`
	Rate float64 `json:"rate" mapstructure:"rate"`
}

// Dataset is the typed form of a validated dataset
type Dataset struct {
	Revenue     []LineItem  `json:"revenue" mapstructure:"revenue"`
	Expenditure []LineItem  `json:"expenditure" mapstructure:"expenditure"`
	Inflation   []RatePoint `json:"inflation" mapstructure:"inflation"`
	GDPGrowth   []RatePoint `json:"gdp_growth" mapstructure:"gdp_growth"`
}

// DecodeDataset converts a raw dataset into its typed form.
// Numeric years are converted to their decimal string form. Decoding does not
// validate; run Validate first when the input is untrusted.
func DecodeDataset(raw RawDataset) (*Dataset, error) {
	var ds Dataset
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &ds,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create dataset decoder: %w", err)
	}
	if err := decoder.Decode(map[string]any(raw)); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	return &ds, nil
}

// PlottableDataset builds a typed dataset from the usable entries of raw,
// skipping entries that are not objects or lack a numeric amount or rate.
// Numeric years become their decimal string form; other non-string years
// are dropped. Unlike DecodeDataset it never fails.
func PlottableDataset(raw RawDataset) *Dataset {
	ds := &Dataset{}
	ds.Revenue = plottableItems(raw.Items(SectionRevenue))
	ds.Expenditure = plottableItems(raw.Items(SectionExpenditure))
	ds.Inflation = plottablePoints(raw.Items(SectionInflation))
	ds.GDPGrowth = plottablePoints(raw.Items(SectionGDPGrowth))
	return ds
}

func plottableItems(items []map[string]any) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		amount, ok := numeric(item[FieldAmount])
		if !ok {
			continue
		}
		name, _ := item[FieldName].(string)
		out = append(out, LineItem{Name: name, Amount: amount})
	}
	return out
}

func plottablePoints(items []map[string]any) []RatePoint {
	out := make([]RatePoint, 0, len(items))
	for _, item := range items {
		rate, ok := parseRate(item[FieldRate])
		if !ok {
			continue
		}
		var year string
		switch y := item[FieldYear].(type) {
		case string:
			year = y
		default:
			n, ok := parseYear(y)
			if !ok {
				continue
			}
			year = strconv.Itoa(n)
		}
		out = append(out, RatePoint{Year: year, Rate: rate})
	}
	return out
}

// Raw converts a typed dataset back to its raw form
func (d *Dataset) Raw() RawDataset {
	raw := RawDataset{
		SectionRevenue:     lineItemsRaw(d.Revenue),
		SectionExpenditure: lineItemsRaw(d.Expenditure),
		SectionInflation:   ratePointsRaw(d.Inflation),
		SectionGDPGrowth:   ratePointsRaw(d.GDPGrowth),
	}
	return raw
}

func lineItemsRaw(items []LineItem) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = map[string]any{FieldName: item.Name, FieldAmount: item.Amount}
	}
	return out
}

func ratePointsRaw(points []RatePoint) []any {
	out := make([]any, len(points))
	for i, p := range points {
		out[i] = map[string]any{FieldYear: p.Year, FieldRate: p.Rate}
	}
	return out
}

// numeric reports whether v is a JSON number and returns its value.
// Booleans are not numbers.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
