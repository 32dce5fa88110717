package budget

import (
	"math"
	"strings"
)

// RiskLevel is the categorical risk ranking of a projection
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskUnknown RiskLevel = "unknown"
)

// Factor weights of the composite risk score
const (
	DeficitWeight   = 0.4
	InflationWeight = 0.3
	GDPWeight       = 0.3
)

// Category thresholds on the composite score
const (
	LowRiskCeiling    = 0.3
	MediumRiskCeiling = 0.6
)

// ZeroRevenueDeficitRatio is the deficit ratio used when projected revenue totals zero
const ZeroRevenueDeficitRatio = 1.0

// Order ranks levels low < medium < high. Unknown ranks below low.
func (l RiskLevel) Order() int {
	switch l {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	default:
		return -1
	}
}

// Upper returns the level in upper case, as printed in reports
func (l RiskLevel) Upper() string {
	return strings.ToUpper(string(l))
}

// Valid reports whether l is one of the defined levels
func (l RiskLevel) Valid() bool {
	return l == RiskUnknown || l.Order() >= 0
}

// RiskFactors are the discretized sub-scores behind a risk score.
// Each sub-score is 0, 0.5 or 1.
type RiskFactors struct {
	DeficitRatio  float64 `json:"deficit_ratio"`
	Deficit       float64 `json:"deficit"`
	InflationRate float64 `json:"inflation_rate"`
	Inflation     float64 `json:"inflation"`
	GDPGrowthRate float64 `json:"gdp_growth_rate"`
	GDP           float64 `json:"gdp"`
}

// RiskAssessment is the risk ranking derived from a projection
type RiskAssessment struct {
	Level            RiskLevel    `json:"risk_level"`
	Score            float64      `json:"risk_score"`
	TotalRevenue     float64      `json:"total_revenue"`
	TotalExpenditure float64      `json:"total_expenditure"`
	Factors          *RiskFactors `json:"factors,omitempty"`
}

// Indeterminate reports whether the assessment is the unknown sentinel
func (a RiskAssessment) Indeterminate() bool {
	return a.Level == RiskUnknown
}

// AssessRisk scores a projection.
//
// A projection without revenue or without expenditure items is indeterminate
// and yields RiskUnknown with a zero score. A zero revenue total maps to
// ZeroRevenueDeficitRatio. A missing indicator projection reads as a 0 rate.
func AssessRisk(p Projection) RiskAssessment {
	if len(p.Revenue) == 0 || len(p.Expenditure) == 0 {
		return RiskAssessment{Level: RiskUnknown}
	}

	totalRevenue := p.TotalRevenue()
	totalExpenditure := p.TotalExpenditure()

	factors := RiskFactors{
		DeficitRatio:  DeficitRatio(totalRevenue, totalExpenditure),
		InflationRate: p.Inflation.Rate,
		GDPGrowthRate: p.GDPGrowth.Rate,
	}
	factors.Deficit = DeficitRisk(factors.DeficitRatio)
	factors.Inflation = InflationRisk(factors.InflationRate)
	factors.GDP = GDPRisk(factors.GDPGrowthRate)

	score := DeficitWeight*factors.Deficit + InflationWeight*factors.Inflation + GDPWeight*factors.GDP
	// strip float noise before comparing against category thresholds
	score = math.Round(score*10000) / 10000

	return RiskAssessment{
		Level:            CategorizeScore(score),
		Score:            score,
		TotalRevenue:     totalRevenue,
		TotalExpenditure: totalExpenditure,
		Factors:          &factors,
	}
}

// DeficitRatio is (expenditure - revenue) / revenue
func DeficitRatio(revenue, expenditure float64) float64 {
	if revenue == 0 {
		return ZeroRevenueDeficitRatio
	}
	return (expenditure - revenue) / revenue
}

// DeficitRisk discretizes a deficit ratio
func DeficitRisk(ratio float64) float64 {
	switch {
	case ratio > 0.1:
		return 1
	case ratio > 0:
		return 0.5
	default:
		return 0
	}
}

// InflationRisk discretizes a projected inflation rate
func InflationRisk(rate float64) float64 {
	switch {
	case rate > 4:
		return 1
	case rate >= 3:
		return 0.5
	default:
		return 0
	}
}

// GDPRisk discretizes a projected GDP growth rate
func GDPRisk(rate float64) float64 {
	switch {
	case rate < 2.5:
		return 1
	case rate < 3:
		return 0.5
	default:
		return 0
	}
}

// CategorizeScore maps a composite score to a level
func CategorizeScore(score float64) RiskLevel {
	switch {
	case score < LowRiskCeiling:
		return RiskLow
	case score < MediumRiskCeiling:
		return RiskMedium
	default:
		return RiskHigh
	}
}
