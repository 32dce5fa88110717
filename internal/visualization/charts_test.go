package visualization

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetpulse/internal/budget"
	"budgetpulse/internal/shared/testutil"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func scenario(t *testing.T) *budget.Dataset {
	t.Helper()
	ds, err := budget.DecodeDataset(testutil.ScenarioDataset(t))
	require.NoError(t, err)
	return ds
}

func TestProduce(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	dir := filepath.Join(t.TempDir(), "plots")

	charts, err := NewProducer(logger).Produce(context.Background(), scenario(t), dir)
	require.NoError(t, err)
	require.Len(t, charts, 4)

	kinds := []string{KindRevenuePie, KindExpenditureBar, KindGDPScatter, KindInflation}
	for i, c := range charts {
		assert.Equal(t, kinds[i], c.Kind)
		assert.Equal(t, dir, filepath.Dir(c.Path))
		assert.True(t, strings.HasPrefix(c.Base(), c.Kind+"_"), c.Base())
		assert.NotEmpty(t, c.Caption)

		data, err := os.ReadFile(c.Path)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, pngMagic), "%s is not a PNG", c.Path)
	}

	assert.Equal(t, "Inflation observations from 2023 to 2024.", charts[3].Caption)
}

func TestProduceUniqueNames(t *testing.T) {
	dir := t.TempDir()
	p := NewProducer(nil)

	first, err := p.Produce(context.Background(), scenario(t), dir)
	require.NoError(t, err)
	second, err := p.Produce(context.Background(), scenario(t), dir)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, len(first)+len(second))
}

func TestProduceSkipsEmptySections(t *testing.T) {
	tests := []struct {
		name  string
		ds    *budget.Dataset
		kinds []string
	}{
		{
			name:  "empty dataset",
			ds:    &budget.Dataset{},
			kinds: []string{},
		},
		{
			name: "only non-positive revenue",
			ds: &budget.Dataset{
				Revenue:     []budget.LineItem{{Name: "refunds", Amount: -5}, {Name: "none", Amount: 0}},
				Expenditure: []budget.LineItem{{Name: "", Amount: 0}},
			},
			kinds: []string{KindExpenditureBar},
		},
		{
			name: "unparseable years",
			ds: &budget.Dataset{
				Inflation: []budget.RatePoint{{Year: "n/a", Rate: 2}},
				GDPGrowth: []budget.RatePoint{{Year: " 2024 ", Rate: 2}},
			},
			kinds: []string{KindGDPScatter},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			charts, err := NewProducer(nil).Produce(context.Background(), tt.ds, t.TempDir())
			require.NoError(t, err)

			got := make([]string, 0, len(charts))
			for _, c := range charts {
				got = append(got, c.Kind)
			}
			assert.Equal(t, tt.kinds, got)
		})
	}
}

func TestProduceSparseRateSeries(t *testing.T) {
	tests := []struct {
		name    string
		ds      *budget.Dataset
		caption string
	}{
		{
			name: "single observation",
			ds: &budget.Dataset{
				Inflation: []budget.RatePoint{{Year: "2024", Rate: 3}},
				GDPGrowth: []budget.RatePoint{{Year: "2024", Rate: 2}},
			},
			caption: "Inflation observations from 2024 to 2024.",
		},
		{
			name: "repeated year",
			ds: &budget.Dataset{
				Inflation: []budget.RatePoint{{Year: "2023", Rate: 1}, {Year: "2023", Rate: 1}},
				GDPGrowth: []budget.RatePoint{{Year: "2023", Rate: 3}, {Year: "2024", Rate: 2.8}},
			},
			caption: "Inflation observations from 2023 to 2023.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			charts, err := NewProducer(logger).Produce(context.Background(), tt.ds, t.TempDir())
			require.NoError(t, err)
			require.Len(t, charts, 2)

			assert.Equal(t, KindGDPScatter, charts[0].Kind)
			assert.Equal(t, KindInflation, charts[1].Kind)
			assert.Equal(t, tt.caption, charts[1].Caption)
			for _, c := range charts {
				data, err := os.ReadFile(c.Path)
				require.NoError(t, err)
				assert.True(t, bytes.HasPrefix(data, pngMagic), c.Base())
			}
			assert.False(t, logs.ContainsMessage("chart skipped"))
		})
	}
}

func TestProduceSkipsFailedChart(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	dir := t.TempDir()
	ds := &budget.Dataset{
		Inflation: []budget.RatePoint{{Year: "2023", Rate: math.Inf(1)}},
		GDPGrowth: []budget.RatePoint{{Year: "2023", Rate: 3}, {Year: "2024", Rate: 2.8}},
	}

	charts, err := NewProducer(logger).Produce(context.Background(), ds, dir)
	require.NoError(t, err)
	require.Len(t, charts, 1)
	assert.Equal(t, KindGDPScatter, charts[0].Kind)
	assert.True(t, logs.ContainsMessage("chart skipped"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestProduceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	charts, err := NewProducer(nil).Produce(ctx, scenario(t), t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, charts)
}

func TestProduceUnwritableDir(t *testing.T) {
	file := testutil.WriteFile(t, t.TempDir(), "not-a-dir", "x")

	_, err := NewProducer(nil).Produce(context.Background(), scenario(t), file)
	assert.Error(t, err)
}
