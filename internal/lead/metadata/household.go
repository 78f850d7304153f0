package metadata

import "lead-wizard/internal/models"

// NeedsAdditionalMembers reports whether the household type requires the
// members step.
func NeedsAdditionalMembers(t *models.HouseholdType) bool {
	if t == nil {
		return false
	}
	return *t == models.HouseholdCouple || *t == models.HouseholdFamily
}

// IsHouseholdComplete checks the member list against the household type,
// primary included.
func IsHouseholdComplete(t *models.HouseholdType, members []models.HouseholdMember) bool {
	if t == nil || len(members) == 0 {
		return false
	}
	switch *t {
	case models.HouseholdSingle:
		return len(members) == 1
	case models.HouseholdCouple:
		return len(members) == 2 && hasRole(members, models.RolePrimary) && hasRole(members, models.RoleSpouse)
	case models.HouseholdFamily:
		return len(members) >= 2
	default:
		return false
	}
}

func hasRole(members []models.HouseholdMember, role models.HouseholdRole) bool {
	for _, m := range members {
		if m.Role == role {
			return true
		}
	}
	return false
}

// PrimaryFromMetadata rebuilds the primary applicant from the PRIMARY member.
// Terms count as accepted when the wizard recorded a timestamp.
func PrimaryFromMetadata(m models.WizardMetadata) *models.PrimaryApplicant {
	for _, member := range m.Members {
		if member.Role != models.RolePrimary {
			continue
		}
		p := &models.PrimaryApplicant{
			FirstName:    member.FirstName,
			LastName:     member.LastName,
			Gender:       member.Gender,
			BirthDate:    member.BirthDate,
			AcceptsTerms: m.Wizard.TermsAcceptedAt != nil,
		}
		if member.Phone != nil {
			p.Phone = *member.Phone
		}
		if member.Email != nil {
			p.Email = *member.Email
		}
		return p
	}
	return nil
}

// StepFromMetadata derives the step a resumed lead should land on.
func StepFromMetadata(m models.WizardMetadata) models.WizardStep {
	if m.Consent.Status == models.ConsentSigned {
		return models.StepConsent
	}
	if m.Plan.Selection != nil || m.Consent.Status != models.ConsentNotRequested {
		return models.StepSummary
	}
	h := m.Household
	if h.Type == nil {
		return models.StepHouseholdType
	}
	if h.ZipCode == nil || h.Income == nil {
		return models.StepHouseholdBasics
	}
	if !hasRole(m.Members, models.RolePrimary) {
		return models.StepPrimary
	}
	if NeedsAdditionalMembers(h.Type) && !IsHouseholdComplete(h.Type, m.Members) {
		return models.StepMembers
	}
	return models.StepPlans
}
