package plans

import (
	"math"

	"lead-wizard/internal/models"
)

var basePlans = []models.Plan{
	{
		ID:             "silver-plus",
		Name:           "Silver Plus",
		Carrier:        "TFI Health",
		MonthlyPremium: 265.5,
		Deductible:     1200,
		OutOfPocketMax: 4500,
		Summary:        "Comprehensive coverage with access to a wide network of specialists and savings on generic prescriptions.",
		CoverageHighlights: []string{
			"Unlimited in-network visits",
			"Lower copay at partner pharmacies",
			"24/7 telemedicine access",
		},
	},
}

type localizedCopy struct {
	summary    string
	highlights []string
}

var planCopy = map[string]map[string]localizedCopy{
	"es": {
		"silver-plus": {
			summary: "Cobertura integral con acceso a una red amplia de especialistas y beneficios en medicamentos genéricos.",
			highlights: []string{
				"Consultas ilimitadas en red",
				"Copago reducido en farmacias adheridas",
				"Telemedicina 24/7",
			},
		},
	},
}

// premiumStep is the per-plan-index surcharge per unit of household factor.
const premiumStep = 12.4

// BasePlans returns the static plan list in lang, without household pricing.
func BasePlans(lang string) []models.Plan {
	out := make([]models.Plan, 0, len(basePlans))
	for _, p := range basePlans {
		out = append(out, localize(p, lang))
	}
	return out
}

// EstimatedPlans prices the static list for a household. The result depends
// only on member count and ages.
func EstimatedPlans(f HouseholdFacts, lang string) []models.Plan {
	factor := float64(f.MemberCount)
	if factor < 1 {
		factor = 1
	}
	for _, m := range f.Members {
		if m.Age != nil {
			factor += float64(*m.Age) / 120
		}
	}

	out := make([]models.Plan, 0, len(basePlans))
	for i, p := range basePlans {
		plan := localize(p, lang)
		plan.MonthlyPremium = roundCurrency(p.MonthlyPremium + factor*float64(i+1)*premiumStep)
		out = append(out, plan)
	}
	return out
}

func localize(p models.Plan, lang string) models.Plan {
	p.CoverageHighlights = append([]string(nil), p.CoverageHighlights...)
	if c, ok := planCopy[lang][p.ID]; ok {
		p.Summary = c.summary
		p.CoverageHighlights = append([]string(nil), c.highlights...)
	}
	return p
}

func roundCurrency(v float64) float64 {
	return math.Round(v*100) / 100
}
