package report

import "budgetpulse/internal/budget"

// Default narratives used when no insight is supplied for a section
const (
	DefaultRevenueInsight     = "Revenue analysis shows a balanced distribution across tax and non-tax sources, with particular strength in corporate and personal income taxes."
	DefaultExpenditureInsight = "The expenditure allocation prioritizes education, healthcare, and debt servicing, representing a balanced approach to public spending."
	DefaultEconomicInsight    = "The projected inflation rate slightly exceeds GDP growth, suggesting careful monitoring of fiscal policies will be needed in the coming year."
	DefaultTaxInsight         = "The progressive tax structure aims to balance revenue generation with equitable distribution of tax burden across income levels."
)

var defaultRiskInsights = map[budget.RiskLevel]string{
	budget.RiskLow:     "The low risk assessment indicates a stable fiscal position in which current policies can be maintained with routine monitoring.",
	budget.RiskMedium:  "The medium risk assessment indicates potential challenges that require proactive management strategies.",
	budget.RiskHigh:    "The high risk assessment indicates significant fiscal pressure that calls for prompt corrective measures.",
	budget.RiskUnknown: "The risk level could not be determined because revenue or expenditure projections are missing.",
}

// DefaultRiskInsight returns the fallback risk narrative for a level
func DefaultRiskInsight(level budget.RiskLevel) string {
	if s, ok := defaultRiskInsights[level]; ok {
		return s
	}
	return defaultRiskInsights[budget.RiskUnknown]
}

// Insights are the narrative paragraphs printed under each report section.
// Visual maps an image's base file name to its caption.
type Insights struct {
	Revenue     string            `json:"revenue,omitempty"`
	Expenditure string            `json:"expenditure,omitempty"`
	Economic    string            `json:"economic,omitempty"`
	Risk        string            `json:"risk,omitempty"`
	Tax         string            `json:"tax,omitempty"`
	Visual      map[string]string `json:"visual,omitempty"`
}

// WithDefaults returns a copy with every empty section narrative replaced by
// its default. Visual captions have no default.
func (in Insights) WithDefaults(level budget.RiskLevel) Insights {
	out := in
	if out.Revenue == "" {
		out.Revenue = DefaultRevenueInsight
	}
	if out.Expenditure == "" {
		out.Expenditure = DefaultExpenditureInsight
	}
	if out.Economic == "" {
		out.Economic = DefaultEconomicInsight
	}
	if out.Risk == "" {
		out.Risk = DefaultRiskInsight(level)
	}
	if out.Tax == "" {
		out.Tax = DefaultTaxInsight
	}

	out.Visual = make(map[string]string, len(in.Visual))
	for k, v := range in.Visual {
		out.Visual[k] = v
	}
	return out
}
