package budget

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Bracket boundaries as shares of total projected revenue
var (
	lowerBracketShare = decimal.RequireFromString("0.2")
	upperBracketShare = decimal.RequireFromString("0.7")
)

// TaxSlab is one progressive revenue bracket
type TaxSlab struct {
	Slab  int    `json:"slab"`
	Range string `json:"range"`
	Rate  string `json:"rate"`
	// Lower and Upper are the numeric bounds of Range; Upper is absent for the open top bracket.
	Lower float64  `json:"lower"`
	Upper *float64 `json:"upper,omitempty"`
}

// GenerateTaxSlabs partitions total projected revenue into three brackets:
// [0, 0.2*total) at 10%, [0.2*total, 0.7*total) at 20% and 0.7*total upward
// at 30%. Boundaries are computed in decimal arithmetic and printed with two
// decimals. A projection without revenue items yields an empty list.
func GenerateTaxSlabs(p Projection) []TaxSlab {
	if len(p.Revenue) == 0 {
		return []TaxSlab{}
	}

	total := decimal.Zero
	for _, item := range p.Revenue {
		total = total.Add(decimal.NewFromFloat(item.ProjectedAmount))
	}

	first := total.Mul(lowerBracketShare).Round(2)
	second := total.Mul(upperBracketShare).Round(2)

	firstBound := first.InexactFloat64()
	secondBound := second.InexactFloat64()

	return []TaxSlab{
		{
			Slab:  1,
			Range: fmt.Sprintf("0 - %s", first.StringFixed(2)),
			Rate:  "10%",
			Lower: 0,
			Upper: &firstBound,
		},
		{
			Slab:  2,
			Range: fmt.Sprintf("%s - %s", first.StringFixed(2), second.StringFixed(2)),
			Rate:  "20%",
			Lower: firstBound,
			Upper: &secondBound,
		},
		{
			Slab:  3,
			Range: fmt.Sprintf("Above %s", second.StringFixed(2)),
			Rate:  "30%",
			Lower: secondBound,
		},
	}
}
