package budget

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectLineItems(t *testing.T) {
	raw := mustParse(t, `{
		"revenue": [{"name": "a", "amount": 100}, {"name": "b", "amount": 0}, {"name": "c", "amount": 250.5}],
		"expenditure": [{"name": "x", "amount": 1000}, {"name": "y", "amount": 10}],
		"inflation": [],
		"gdp_growth": []
	}`)

	p := Project(raw)

	require.Len(t, p.Revenue, 3)
	for i, name := range []string{"a", "b", "c"} {
		assert.Equal(t, name, p.Revenue[i].Name)
		assert.InDelta(t, p.Revenue[i].Amount*1.05, p.Revenue[i].ProjectedAmount, 1e-9)
	}

	require.Len(t, p.Expenditure, 2)
	assert.Equal(t, "x", p.Expenditure[0].Name)
	assert.InDelta(t, 1030.0, p.Expenditure[0].ProjectedAmount, 1e-9)
	assert.InDelta(t, 10.3, p.Expenditure[1].ProjectedAmount, 1e-9)
}

func TestProjectRates(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  IndicatorProjection
		note  bool
	}{
		{
			name:  "two points extrapolate linearly",
			input: `[{"year": "2023", "rate": 2}, {"year": "2024", "rate": 3}]`,
			want:  IndicatorProjection{Year: "2025", Rate: 4.0},
		},
		{
			name:  "decreasing series",
			input: `[{"year": "2023", "rate": 3}, {"year": "2024", "rate": 2.8}]`,
			want:  IndicatorProjection{Year: "2025", Rate: 2.6},
		},
		{
			name:  "least squares over unordered points",
			input: `[{"year": "2022", "rate": 1}, {"year": "2020", "rate": 1}, {"year": "2021", "rate": 2}]`,
			want:  IndicatorProjection{Year: "2023", Rate: 1.33},
		},
		{
			name:  "unparseable entries are discarded",
			input: `[{"year": "abc", "rate": 9}, {"year": "2019", "rate": 1}, {"year": "2020", "rate": "x"}, {"year": " 2021 ", "rate": 3}]`,
			want:  IndicatorProjection{Year: "2022", Rate: 4.0},
		},
		{
			name:  "single valid point falls back to mean",
			input: `[{"year": "2020", "rate": 2.5}, {"year": "bad", "rate": 9}]`,
			want:  IndicatorProjection{Year: "2021", Rate: 2.5},
			note:  true,
		},
		{
			name:  "no valid year",
			input: `[{"year": "soon", "rate": 2}]`,
			want:  IndicatorProjection{Year: UnknownYear, Rate: 0},
			note:  true,
		},
		{
			name:  "same year twice has no slope",
			input: `[{"year": "2020", "rate": 2}, {"year": "2020", "rate": 4}]`,
			want:  IndicatorProjection{Year: "2021", Rate: 3},
			note:  true,
		},
		{
			name:  "empty series",
			input: `[]`,
			want:  IndicatorProjection{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := mustParse(t, `{"inflation": `+tt.input+`}`)
			got, note := ProjectRates(SectionInflation, raw.Items(SectionInflation))
			assert.Equal(t, tt.want, got)
			if tt.note {
				require.NotNil(t, note)
				assert.Equal(t, SectionInflation, note.Section)
			} else {
				assert.Nil(t, note)
			}
		})
	}
}

func TestTwoPointExtrapolation(t *testing.T) {
	pairs := [][2]float64{{2, 3}, {3, 2.8}, {-1.5, 0.25}, {10, 10}, {0.01, 7.77}}
	for _, pair := range pairs {
		items := []map[string]any{
			{FieldYear: "2000", FieldRate: pair[0]},
			{FieldYear: "2001", FieldRate: pair[1]},
		}
		got, note := ProjectRates(SectionGDPGrowth, items)
		require.Nil(t, note)
		assert.Equal(t, "2002", got.Year)
		assert.InDelta(t, round2(pair[1]+(pair[1]-pair[0])), got.Rate, 1e-9)
	}
}

func TestProjectIsNonFatal(t *testing.T) {
	raw := mustParse(t, `{"revenue": "nope", "expenditure": [3, {"name": 7, "amount": "x"}]}`)

	p, notes := ProjectWithNotes(raw)
	assert.Empty(t, p.Revenue)
	require.Len(t, p.Expenditure, 1)
	assert.Equal(t, "Unknown", p.Expenditure[0].Name)
	assert.Equal(t, 0.0, p.Expenditure[0].ProjectedAmount)
	assert.True(t, p.Inflation.IsEmpty())
	assert.True(t, p.GDPGrowth.IsEmpty())
	assert.Empty(t, notes)
}

func TestProjectionJSON(t *testing.T) {
	data, err := json.Marshal(Project(mustParse(t, `{"revenue": [], "expenditure": [], "inflation": [], "gdp_growth": [{"year": "2020", "rate": 1}, {"year": "2021", "rate": 2}]}`)))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, map[string]any{}, decoded["projected_inflation"])
	assert.Equal(t, map[string]any{"year": "2022", "rate": 3.0}, decoded["projected_gdp_growth"])
	assert.Equal(t, []any{}, decoded["projected_revenue"])
}
