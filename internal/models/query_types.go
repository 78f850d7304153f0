// internal/models/query_types.go
package models

// MarketplaceQueryType selects the marketplace operation.
type MarketplaceQueryType string

const (
	QueryTypeSearchPlans MarketplaceQueryType = "BUSCAR_PLANES"
)

// WizardStepUpdate is the backend's wizardStep enum for household updates.
type WizardStepUpdate string

const (
	WizardStepUpdatePlans WizardStepUpdate = "PLANS"
)
