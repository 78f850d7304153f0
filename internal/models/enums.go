// internal/models/enums.go
package models

import "strings"

// HouseholdType is the closed set of household compositions.
type HouseholdType string

const (
	HouseholdSingle HouseholdType = "SOLTERO"
	HouseholdCouple HouseholdType = "PAREJA"
	HouseholdFamily HouseholdType = "FAMILIA"
)

// ParseHouseholdType returns false for anything outside the closed set.
func ParseHouseholdType(s string) (HouseholdType, bool) {
	switch t := HouseholdType(strings.ToUpper(strings.TrimSpace(s))); t {
	case HouseholdSingle, HouseholdCouple, HouseholdFamily:
		return t, true
	default:
		return "", false
	}
}

type HouseholdRole string

const (
	RolePrimary   HouseholdRole = "PRIMARY"
	RoleSpouse    HouseholdRole = "SPOUSE"
	RoleDependent HouseholdRole = "DEPENDENT"
)

func (r HouseholdRole) Valid() bool {
	switch r {
	case RolePrimary, RoleSpouse, RoleDependent:
		return true
	}
	return false
}

type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
	GenderOther  Gender = "X"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// ConsentStatus tracks the e-signature lifecycle of a lead.
type ConsentStatus string

const (
	ConsentNotRequested ConsentStatus = "NOT_REQUESTED"
	ConsentPending      ConsentStatus = "PENDING"
	ConsentSigned       ConsentStatus = "SIGNED"
	ConsentDeclined     ConsentStatus = "DECLINED"
)

// ParseConsentStatus maps unknown or empty values to NOT_REQUESTED.
func ParseConsentStatus(s string) ConsentStatus {
	switch c := ConsentStatus(strings.ToUpper(strings.TrimSpace(s))); c {
	case ConsentPending, ConsentSigned, ConsentDeclined:
		return c
	default:
		return ConsentNotRequested
	}
}

func (c ConsentStatus) rank() int {
	switch c {
	case ConsentPending:
		return 1
	case ConsentSigned, ConsentDeclined:
		return 2
	default:
		return 0
	}
}

// Terminal reports SIGNED or DECLINED.
func (c ConsentStatus) Terminal() bool {
	return c.rank() == 2
}

// Advance returns next only when it moves the status forward along
// NOT_REQUESTED -> PENDING -> {SIGNED, DECLINED}; otherwise c is kept.
func (c ConsentStatus) Advance(next ConsentStatus) ConsentStatus {
	if next.rank() > c.rank() {
		return next
	}
	return c
}

// WizardStep identifies the screen the wizard is on.
type WizardStep string

const (
	StepHouseholdType   WizardStep = "householdType"
	StepHouseholdBasics WizardStep = "householdBasics"
	StepPrimary         WizardStep = "primary"
	StepMembers         WizardStep = "members"
	StepPlans           WizardStep = "plans"
	StepSummary         WizardStep = "summary"
	StepConsent         WizardStep = "consent"
	// StepExtra is reserved and never entered.
	StepExtra WizardStep = "extra"
)

// AllSteps lists steps in flow order.
var AllSteps = []WizardStep{
	StepHouseholdType,
	StepHouseholdBasics,
	StepPrimary,
	StepMembers,
	StepPlans,
	StepSummary,
	StepConsent,
	StepExtra,
}

func ParseWizardStep(s string) (WizardStep, bool) {
	for _, step := range AllSteps {
		if string(step) == s {
			return step, true
		}
	}
	return "", false
}
