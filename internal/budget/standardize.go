package budget

// Backfill records one value written by Standardize
type Backfill struct {
	Section string  `json:"section"`
	Index   int     `json:"index"`
	Field   string  `json:"field"`
	Value   float64 `json:"value"`
}

// Standardize returns a copy of the dataset in which every missing or
// non-numeric amount (revenue, expenditure) or rate (inflation, gdp_growth) is
// replaced by the mean of the section's numeric values, or 0 when the section
// has none.
//
// Existing numeric values and keys are never altered, so the operation is
// idempotent. A dataset missing any required top-level key yields an empty
// dataset. Non-list sections and non-object entries are left as they are.
func Standardize(d RawDataset) RawDataset {
	out, _ := StandardizeWithReport(d)
	return out
}

// StandardizeWithReport is Standardize that also lists every backfilled value
func StandardizeWithReport(d RawDataset) (RawDataset, []Backfill) {
	if len(d.MissingSections()) > 0 {
		return RawDataset{}, nil
	}

	out := d.Clone()
	var filled []Backfill

	for _, s := range schema {
		list, ok := out[s.Section].([]any)
		if !ok {
			continue
		}

		mean := sectionMean(list, s.Numeric)

		for i, entry := range list {
			item, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			if _, ok := numeric(item[s.Numeric]); ok {
				continue
			}
			item[s.Numeric] = mean
			filled = append(filled, Backfill{Section: s.Section, Index: i, Field: s.Numeric, Value: mean})
		}
	}

	return out, filled
}

// sectionMean averages the numeric values of field across object entries
func sectionMean(list []any, field string) float64 {
	var sum float64
	var count int
	for _, entry := range list {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if v, ok := numeric(item[field]); ok {
			sum += v
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
