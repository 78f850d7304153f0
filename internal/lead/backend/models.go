package backend

import (
	"strconv"
	"strings"

	commonerrors "lead-wizard/internal/common/errors"
	"lead-wizard/internal/models"
)

// Operation names used in logs and metrics.
const (
	OpStartLead       = "StartLead"
	OpUpdateHousehold = "UpdateHousehold"
	OpConfirmPlan     = "ConfirmPlan"
	OpCheckConsent    = "CheckConsent"
)

type HouseholdInput struct {
	Type          models.HouseholdType `json:"type"`
	ZipCode       *string              `json:"zipCode"`
	Income        *float64             `json:"income"`
	CountyFips    *string              `json:"countyFips"`
	EffectiveDate *string              `json:"effectiveDate"`
	StateID       *string              `json:"stateId"`
	StateName     *string              `json:"stateName"`
	CountyName    *string              `json:"countyName"`
}

// HouseholdFromMetadata copies the household fields the backend expects.
func HouseholdFromMetadata(t models.HouseholdType, h models.Household) HouseholdInput {
	return HouseholdInput{
		Type:          t,
		ZipCode:       h.ZipCode,
		Income:        h.Income,
		CountyFips:    h.CountyFips,
		EffectiveDate: h.EffectiveDate,
		StateID:       h.StateID,
		StateName:     h.StateName,
		CountyName:    h.CountyName,
	}
}

// LeadContext carries the routing identifiers. Numeric ids are sent as numbers.
type LeadContext struct {
	LeadSourceID    string
	StagePipelineID string
	CampusID        string
}

func (c LeadContext) variables() map[string]interface{} {
	return map[string]interface{}{
		"leadSourceId":    routingID(c.LeadSourceID),
		"stagePipelineId": routingID(c.StagePipelineID),
		"campusId":        routingID(c.CampusID),
	}
}

func routingID(s string) interface{} {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

type StartLeadInput struct {
	Household HouseholdInput
	Primary   models.PrimaryApplicant
	Context   LeadContext
}

type MemberInput struct {
	Role      models.HouseholdRole `json:"role"`
	FirstName string               `json:"firstName"`
	LastName  string               `json:"lastName"`
	Gender    models.Gender        `json:"gender"`
	BirthDate string               `json:"birthDate"`
}

func MembersFromHousehold(members []models.HouseholdMember) []MemberInput {
	out := make([]MemberInput, 0, len(members))
	for _, m := range members {
		out = append(out, MemberInput{
			Role:      m.Role,
			FirstName: m.FirstName,
			LastName:  m.LastName,
			Gender:    m.Gender,
			BirthDate: m.BirthDate,
		})
	}
	return out
}

type UpdateHouseholdInput struct {
	LeadID     string
	Members    []MemberInput
	WizardStep models.WizardStepUpdate
}

// PlanSelectionInput snapshots the chosen plan. MetalLevel and ProductType
// both carry the plan summary.
type PlanSelectionInput struct {
	PlanID      string  `json:"planId"`
	Issuer      string  `json:"issuer"`
	Premium     float64 `json:"premium"`
	Deductible  float64 `json:"deductible"`
	MetalLevel  string  `json:"metalLevel"`
	ProductType string  `json:"productType"`
	Name        string  `json:"name"`
}

func SelectionFromPlan(p models.Plan) PlanSelectionInput {
	return PlanSelectionInput{
		PlanID:      p.ID,
		Issuer:      p.Carrier,
		Premium:     p.MonthlyPremium,
		Deductible:  p.Deductible,
		MetalLevel:  p.Summary,
		ProductType: p.Summary,
		Name:        p.Name,
	}
}

// PlanResultsInput describes the listing the selection came from. Filters is
// a JSON-encoded string.
type PlanResultsInput struct {
	Count     int     `json:"count"`
	FetchedAt *string `json:"fetchedAt"`
	Filters   string  `json:"filters"`
}

type ConfirmPlanInput struct {
	LeadID          string
	Selection       PlanSelectionInput
	Results         PlanResultsInput
	SignatureFormID *string
	AgentID         *string
	SendEmail       bool
	SendSMS         bool
	GetSigningLink  bool
}

// Result is the common response shape of the lead mutations.
type Result struct {
	Success     bool                      `json:"success"`
	LeadID      *string                   `json:"leadId,omitempty"`
	Metadata    *string                   `json:"metadata"`
	SigningLink *string                   `json:"signingLink,omitempty"`
	Status      *string                   `json:"status,omitempty"`
	Errors      []commonerrors.FieldError `json:"errors,omitempty"`
}

// FirstErrorMessage returns the first non-blank structured message.
func (r *Result) FirstErrorMessage() string {
	if r == nil {
		return ""
	}
	for _, e := range r.Errors {
		if msg := strings.TrimSpace(e.Message); msg != "" {
			return msg
		}
	}
	return ""
}

// RawMetadata returns the metadata blob for the codec, nil when absent.
func (r *Result) RawMetadata() interface{} {
	if r == nil || r.Metadata == nil {
		return nil
	}
	return *r.Metadata
}
