package wizard

import (
	"context"
	"strings"

	commonerrors "lead-wizard/internal/common/errors"
	"lead-wizard/internal/common/validation"
	"lead-wizard/internal/lead/backend"
	"lead-wizard/internal/lead/metadata"
	"lead-wizard/internal/lead/plans"
	"lead-wizard/internal/lead/zipcode"
	"lead-wizard/internal/models"
)

var countyOptions = zipcode.CountyOptions

// BasicsInput is the household basics form.
type BasicsInput struct {
	ZipCode string  `json:"zipCode"`
	Income  float64 `json:"income"`
	// CountyFips picks among the zip's counties; empty selects the primary one.
	CountyFips string `json:"countyFips"`
}

// SelectHouseholdType stores the household composition and moves to the
// basics form.
func (w *Wizard) SelectHouseholdType(ctx context.Context, t models.HouseholdType) error {
	defer w.notify()
	w.mu.Lock()
	defer w.mu.Unlock()

	const action = "selectHouseholdType"
	if err := w.requireStep(action, models.StepHouseholdType); err != nil {
		return err
	}
	parsed, ok := models.ParseHouseholdType(string(t))
	if !ok {
		return w.validationFailed(action, []commonerrors.FieldError{{
			Field:   "householdType",
			Message: validation.Message(w.cfg.Language, validation.MsgHouseholdType),
		}})
	}

	w.clearError()
	w.householdType = &parsed
	w.metadata.Household.Type = &parsed
	w.transition(action, models.StepHouseholdBasics)
	return nil
}

// SubmitHouseholdBasics resolves the zip code, picks the county and stores
// income, then moves to the primary applicant form.
func (w *Wizard) SubmitHouseholdBasics(ctx context.Context, in BasicsInput) error {
	defer w.notify()
	const action = "submitHouseholdBasics"

	w.mu.Lock()
	if err := w.requireStep(action, models.StepHouseholdBasics); err != nil {
		w.mu.Unlock()
		return err
	}
	zip := validation.DigitsOnly(strings.TrimSpace(in.ZipCode))
	if fields := validation.ValidateBasics(zip, in.Income, w.cfg.Language); len(fields) > 0 {
		err := w.validationFailed(action, fields)
		w.mu.Unlock()
		return err
	}
	w.clearError()
	gen := w.begin(slotZipLookup)
	w.submitting++
	w.mu.Unlock()

	record, lookupErr := w.zipcodes.ByZip(ctx, zip)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting--
	if !w.isCurrent(slotZipLookup, gen) {
		return w.stale(action, slotZipLookup)
	}
	if lookupErr != nil {
		return w.fail(action, lookupErr)
	}
	if record == nil {
		return w.validationFailed(action, []commonerrors.FieldError{{
			Field:   "zipCode",
			Message: validation.Message(w.cfg.Language, validation.MsgZipCode),
		}})
	}
	county, ok := zipcode.ResolveCounty(*record, in.CountyFips)
	if !ok {
		return w.validationFailed(action, []commonerrors.FieldError{{
			Field:   "countyFips",
			Message: validation.Message(w.cfg.Language, validation.MsgCounty),
		}})
	}

	effective := plans.EffectiveDate(w.now()).Format("2006-01-02")
	h := w.metadata.Household
	h.Type = w.householdType
	h.ZipCode = models.StringPtr(record.ZipCode)
	h.Income = models.FloatPtr(in.Income)
	h.CountyFips = nonEmpty(county.Fips)
	h.CountyName = nonEmpty(county.Name)
	h.StateID = nonEmpty(record.StateID)
	h.StateName = nonEmpty(record.StateName)
	h.EffectiveDate = models.StringPtr(effective)
	w.metadata.Household = h
	w.zipcode = record
	w.listing = nil

	w.transition(action, models.StepPrimary)
	return nil
}

// SubmitPrimary validates the primary applicant and creates the lead.
func (w *Wizard) SubmitPrimary(ctx context.Context, p models.PrimaryApplicant) error {
	defer w.notify()
	const action = "submitPrimary"

	w.mu.Lock()
	if err := w.requireStep(action, models.StepPrimary); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.householdType == nil {
		err := w.fail(action, commonerrors.NewInvalidTransitionError(action, string(w.step)))
		w.mu.Unlock()
		return err
	}
	p = trimPrimary(p)
	if fields := validation.ValidatePrimary(p, w.cfg.Language, w.now()); len(fields) > 0 {
		err := w.validationFailed(action, fields)
		w.mu.Unlock()
		return err
	}
	if missing := w.cfg.Lead.MissingRoutingIDs(); len(missing) > 0 {
		err := w.fail(action, commonerrors.NewConfigurationError("missing: "+strings.Join(missing, ", ")))
		w.mu.Unlock()
		return err
	}

	in := backend.StartLeadInput{
		Household: backend.HouseholdFromMetadata(*w.householdType, w.metadata.Household),
		Primary:   p,
		Context: backend.LeadContext{
			LeadSourceID:    w.cfg.Lead.LeadSourceID,
			StagePipelineID: w.cfg.Lead.StagePipelineID,
			CampusID:        w.cfg.Lead.CampusID,
		},
	}
	w.clearError()
	gen := w.begin(slotStartLead)
	w.submitting++
	w.mu.Unlock()

	res, err := w.backend.StartLead(ctx, in)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting--
	if !w.isCurrent(slotStartLead, gen) {
		return w.stale(action, slotStartLead)
	}
	if err == nil && (res == nil || res.LeadID == nil || strings.TrimSpace(*res.LeadID) == "") {
		var fields []commonerrors.FieldError
		if res != nil {
			fields = res.Errors
		}
		err = commonerrors.NewBackendRejectedError(backend.OpStartLead, fields)
	}
	if err != nil {
		return w.fail(action, err)
	}

	w.leadID = strings.TrimSpace(*res.LeadID)
	w.primary = &p
	w.applyResult(res)
	if t := w.metadata.Household.Type; t != nil {
		w.householdType = t
	}

	next := models.StepPlans
	if metadata.NeedsAdditionalMembers(w.householdType) {
		next = models.StepMembers
	}
	w.transition(action, next)
	w.syncPollerLocked()
	return nil
}

// SubmitMembers validates the additional members and sends the full member
// list, primary first, to the backend.
func (w *Wizard) SubmitMembers(ctx context.Context, members []models.HouseholdMember) error {
	defer w.notify()
	const action = "submitMembers"

	w.mu.Lock()
	if err := w.requireStep(action, models.StepMembers); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.leadID == "" || w.householdType == nil {
		err := w.fail(action, commonerrors.NewInvalidTransitionError(action, string(w.step)))
		w.mu.Unlock()
		return err
	}

	others := make([]models.HouseholdMember, 0, len(members))
	for _, m := range members {
		others = append(others, trimMember(m))
	}
	if fields := validation.ValidateMembers(*w.householdType, others, w.cfg.Language, w.now()); len(fields) > 0 {
		err := w.validationFailed(action, fields)
		w.mu.Unlock()
		return err
	}

	full := append([]models.HouseholdMember{w.primaryMember()}, others...)
	in := backend.UpdateHouseholdInput{
		LeadID:     w.leadID,
		Members:    backend.MembersFromHousehold(full),
		WizardStep: models.WizardStepUpdatePlans,
	}
	w.clearError()
	gen := w.begin(slotUpdateHousehold)
	w.submitting++
	w.mu.Unlock()

	res, err := w.backend.UpdateHousehold(ctx, in)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting--
	if !w.isCurrent(slotUpdateHousehold, gen) {
		return w.stale(action, slotUpdateHousehold)
	}
	if err != nil {
		return w.fail(action, err)
	}

	w.applyResult(res)
	w.listing = nil
	w.transition(action, models.StepPlans)
	w.syncPollerLocked()
	return nil
}

// Back moves to the previous step and discards in-flight submissions.
func (w *Wizard) Back(ctx context.Context) error {
	defer w.notify()
	w.mu.Lock()
	defer w.mu.Unlock()

	const action = "back"
	var prev models.WizardStep
	switch w.step {
	case models.StepHouseholdBasics:
		prev = models.StepHouseholdType
	case models.StepPrimary:
		prev = models.StepHouseholdBasics
	case models.StepMembers:
		prev = models.StepPrimary
	case models.StepPlans:
		prev = models.StepPrimary
		if metadata.NeedsAdditionalMembers(w.householdType) {
			prev = models.StepMembers
		}
	case models.StepSummary:
		prev = models.StepPlans
	case models.StepConsent:
		prev = models.StepSummary
	default:
		return w.fail(action, commonerrors.NewInvalidTransitionError(action, string(w.step)))
	}

	w.invalidateSubmissions()
	w.clearError()
	w.transition(action, prev)
	return nil
}

// primaryMember is the PRIMARY entry sent with household updates.
func (w *Wizard) primaryMember() models.HouseholdMember {
	for _, m := range w.metadata.Members {
		if m.Role == models.RolePrimary {
			return m
		}
	}
	m := models.HouseholdMember{Role: models.RolePrimary}
	if w.primary != nil {
		m.FirstName = w.primary.FirstName
		m.LastName = w.primary.LastName
		m.Gender = w.primary.Gender
		m.BirthDate = w.primary.BirthDate
		m.Email = nonEmpty(w.primary.Email)
		m.Phone = nonEmpty(w.primary.Phone)
	}
	return m
}

func trimPrimary(p models.PrimaryApplicant) models.PrimaryApplicant {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Gender = models.Gender(strings.ToUpper(strings.TrimSpace(string(p.Gender))))
	p.BirthDate = strings.TrimSpace(p.BirthDate)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Email = strings.TrimSpace(p.Email)
	return p
}

func trimMember(m models.HouseholdMember) models.HouseholdMember {
	m.Role = models.HouseholdRole(strings.ToUpper(strings.TrimSpace(string(m.Role))))
	m.FirstName = strings.TrimSpace(m.FirstName)
	m.LastName = strings.TrimSpace(m.LastName)
	m.Gender = models.Gender(strings.ToUpper(strings.TrimSpace(string(m.Gender))))
	m.BirthDate = strings.TrimSpace(m.BirthDate)
	return m
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
