package wizard

import (
	"context"
	"encoding/json"
	"strings"

	commonerrors "lead-wizard/internal/common/errors"
	"lead-wizard/internal/common/validation"
	"lead-wizard/internal/lead/backend"
	"lead-wizard/internal/lead/plans"
	"lead-wizard/internal/models"
)

// ListPlans fetches plans for the current household. Marketplace trouble
// yields the estimated list, never an error.
func (w *Wizard) ListPlans(ctx context.Context, lang string) (*models.PlanListing, error) {
	const action = "listPlans"

	w.mu.Lock()
	if err := w.requireStep(action, models.StepPlans); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	lang = w.resolveLanguage(lang)
	facts := plans.FactsFromMetadata(w.metadata, w.now())
	gen := w.begin(slotListPlans)
	w.mu.Unlock()

	listing, err := w.plans.Fetch(ctx, facts, lang)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isCurrent(slotListPlans, gen) {
		return nil, w.stale(action, slotListPlans)
	}
	if err != nil {
		return nil, w.fail(action, err)
	}

	w.listing = listing
	l := *listing
	l.Plans = append([]models.Plan(nil), listing.Plans...)
	return &l, nil
}

// SelectPlan picks a plan from the last listing and moves to the summary.
func (w *Wizard) SelectPlan(ctx context.Context, planID string) error {
	defer w.notify()
	w.mu.Lock()
	defer w.mu.Unlock()

	const action = "selectPlan"
	if err := w.requireStep(action, models.StepPlans); err != nil {
		return err
	}
	plan, ok := w.listing.Find(strings.TrimSpace(planID))
	if !ok {
		return w.validationFailed(action, []commonerrors.FieldError{{
			Field:   "planId",
			Message: validation.Message(w.cfg.Language, validation.MsgPlan),
		}})
	}

	w.clearError()
	w.selectedPlan = &plan
	w.planContext = &PlanContext{FetchedAt: w.listing.FetchedAt, Count: w.listing.Count}
	w.transition(action, models.StepSummary)
	return nil
}

// ConfirmPlan submits the selection and requests a signing link. Once
// consent was requested and a link exists it does nothing.
func (w *Wizard) ConfirmPlan(ctx context.Context, lang string) error {
	defer w.notify()
	const action = "confirmPlan"

	w.mu.Lock()
	if err := w.requireStep(action, models.StepSummary); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.leadID == "" || w.selectedPlan == nil {
		err := w.fail(action, commonerrors.NewInvalidTransitionError(action, string(w.step)))
		w.mu.Unlock()
		return err
	}
	if w.consent != models.ConsentNotRequested && w.signingLink != "" {
		w.clearError()
		w.transition(action, models.StepSummary)
		w.mu.Unlock()
		return nil
	}

	lang = w.resolveLanguage(lang)
	filters, _ := json.Marshal(map[string]string{"language": lang})
	results := backend.PlanResultsInput{Filters: string(filters)}
	if w.planContext != nil {
		results.Count = w.planContext.Count
		results.FetchedAt = nonEmpty(w.planContext.FetchedAt)
	}
	in := backend.ConfirmPlanInput{
		LeadID:          w.leadID,
		Selection:       backend.SelectionFromPlan(*w.selectedPlan),
		Results:         results,
		SignatureFormID: nonEmpty(w.cfg.Lead.SignatureFormID),
		AgentID:         nonEmpty(w.cfg.Lead.AgentID),
		SendEmail:       w.cfg.Lead.SendEmail,
		SendSMS:         w.cfg.Lead.SendSMS,
		GetSigningLink:  true,
	}
	w.clearError()
	gen := w.begin(slotConfirmPlan)
	w.submitting++
	w.mu.Unlock()

	res, err := w.backend.ConfirmPlan(ctx, in)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting--
	if !w.isCurrent(slotConfirmPlan, gen) {
		return w.stale(action, slotConfirmPlan)
	}
	if err == nil && res == nil {
		err = commonerrors.NewBackendRejectedError(backend.OpConfirmPlan, nil)
	}
	if err != nil {
		return w.fail(action, err)
	}

	w.applyResult(res)
	w.signingLink = ""
	if res.SigningLink != nil {
		w.signingLink = strings.TrimSpace(*res.SigningLink)
	}

	next := models.StepSummary
	if w.consent == models.ConsentSigned {
		next = models.StepConsent
	}
	w.transition(action, next)
	w.syncPollerLocked()
	return nil
}

func (w *Wizard) resolveLanguage(lang string) string {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "es":
		return "es"
	case "en":
		return "en"
	default:
		return w.cfg.Language
	}
}
