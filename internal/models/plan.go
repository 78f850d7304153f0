// internal/models/plan.go
package models

// Plan is the normalized insurance offer shown on the plans step.
type Plan struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Carrier            string   `json:"carrier"`
	MonthlyPremium     float64  `json:"monthlyPremium"`
	Deductible         float64  `json:"deductible"`
	OutOfPocketMax     float64  `json:"outOfPocketMax"`
	Summary            string   `json:"summary"`
	CoverageHighlights []string `json:"coverageHighlights"`
}

// PlanListing is one fetch of the plan list with its provenance.
type PlanListing struct {
	Plans     []Plan `json:"plans"`
	FetchedAt string `json:"fetchedAt"`
	Count     int    `json:"count"`
	Fallback  bool   `json:"fallback"`
}

// Find returns the plan with id, if listed.
func (l *PlanListing) Find(id string) (Plan, bool) {
	if l == nil {
		return Plan{}, false
	}
	for _, p := range l.Plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}
