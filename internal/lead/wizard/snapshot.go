package wizard

import (
	commonerrors "lead-wizard/internal/common/errors"
	"lead-wizard/internal/models"
)

// ErrorView is the last failure as the applicant should see it.
type ErrorView struct {
	Code    commonerrors.ErrorCode    `json:"code"`
	Message string                    `json:"message"`
	Fields  []commonerrors.FieldError `json:"fields,omitempty"`
}

// Snapshot is a copy of the wizard state. Mutating it does not affect the
// wizard.
type Snapshot struct {
	Step            models.WizardStep        `json:"step"`
	HouseholdType   *models.HouseholdType    `json:"householdType"`
	LeadID          string                   `json:"leadId,omitempty"`
	Primary         *models.PrimaryApplicant `json:"primary,omitempty"`
	Metadata        models.WizardMetadata    `json:"metadata"`
	Zipcode         *models.ZipcodeRecord    `json:"zipcode,omitempty"`
	Counties        []models.CountyOption    `json:"counties,omitempty"`
	Plans           *models.PlanListing      `json:"plans,omitempty"`
	SelectedPlan    *models.Plan             `json:"selectedPlan,omitempty"`
	PlanContext     *PlanContext             `json:"planContext,omitempty"`
	ConsentStatus   models.ConsentStatus     `json:"consentStatus"`
	SigningLink     string                   `json:"signingLink,omitempty"`
	Error           *ErrorView               `json:"error,omitempty"`
	Submitting      bool                     `json:"submitting"`
	CheckingConsent bool                     `json:"checkingConsent"`
	Polling         bool                     `json:"polling"`
}

func (w *Wizard) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Wizard) snapshotLocked() Snapshot {
	s := Snapshot{
		Step:            w.step,
		LeadID:          w.leadID,
		Metadata:        w.metadata,
		ConsentStatus:   w.consent,
		SigningLink:     w.signingLink,
		Submitting:      w.submitting > 0,
		CheckingConsent: w.checkingConsent > 0,
		Polling:         w.poller.Running(),
	}
	s.Metadata.Members = append([]models.HouseholdMember(nil), w.metadata.Members...)

	if w.householdType != nil {
		t := *w.householdType
		s.HouseholdType = &t
	}
	if w.primary != nil {
		p := *w.primary
		s.Primary = &p
	}
	if w.zipcode != nil {
		z := *w.zipcode
		s.Zipcode = &z
		s.Counties = countyOptions(z)
	}
	if w.listing != nil {
		l := *w.listing
		l.Plans = append([]models.Plan(nil), w.listing.Plans...)
		s.Plans = &l
	}
	if w.selectedPlan != nil {
		p := *w.selectedPlan
		s.SelectedPlan = &p
	}
	if w.planContext != nil {
		pc := *w.planContext
		s.PlanContext = &pc
	}
	if w.lastError != nil {
		e := *w.lastError
		e.Fields = append([]commonerrors.FieldError(nil), w.lastError.Fields...)
		s.Error = &e
	}
	return s
}
