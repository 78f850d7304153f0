package wizard

import (
	"context"

	commonerrors "lead-wizard/internal/common/errors"
	"lead-wizard/internal/common/metrics"
	"lead-wizard/internal/models"
)

// CheckConsent re-reads the lead's signature status. Foreground checks mark
// the wizard busy and surface failures; background checks do neither.
func (w *Wizard) CheckConsent(ctx context.Context, mode CheckMode) error {
	defer w.notify()
	const action = "checkConsent"

	w.mu.Lock()
	if w.leadID == "" {
		var err error
		if mode == Foreground {
			err = w.fail(action, commonerrors.NewInvalidTransitionError(action, string(w.step)))
		}
		w.mu.Unlock()
		return err
	}
	leadID := w.leadID
	gen := w.begin(slotCheckConsent)
	if mode == Foreground {
		w.checkingConsent++
		w.clearError()
	}
	w.mu.Unlock()

	res, err := w.backend.CheckConsent(ctx, leadID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if mode == Foreground {
		w.checkingConsent--
	}
	if !w.isCurrent(slotCheckConsent, gen) {
		metrics.ConsentPolls.WithLabelValues(mode.String(), "stale").Inc()
		// a newer check owns the outcome
		return nil
	}
	if err != nil {
		metrics.ConsentPolls.WithLabelValues(mode.String(), "error").Inc()
		if mode == Background {
			w.logger.Debug("Background consent check failed", map[string]interface{}{
				"leadId": leadID,
				"error":  err,
			})
			return nil
		}
		return w.fail(action, err)
	}
	metrics.ConsentPolls.WithLabelValues(mode.String(), "success").Inc()

	w.applyResult(res)
	if res != nil && res.Status != nil {
		w.consent = w.consent.Advance(models.ParseConsentStatus(*res.Status))
		w.metadata.Consent.Status = w.consent
	}
	if w.consent == models.ConsentSigned {
		w.transition(action, models.StepConsent)
	}
	w.syncPollerLocked()
	return nil
}

// OpenConsent moves from the summary to the consent screen while the
// signature is pending.
func (w *Wizard) OpenConsent(ctx context.Context) error {
	defer w.notify()
	w.mu.Lock()
	defer w.mu.Unlock()

	const action = "openConsent"
	if err := w.requireStep(action, models.StepSummary); err != nil {
		return err
	}
	if w.leadID == "" || (w.consent != models.ConsentPending && w.consent != models.ConsentSigned) {
		return w.fail(action, commonerrors.NewInvalidTransitionError(action, string(w.step)))
	}
	w.clearError()
	w.transition(action, models.StepConsent)
	return nil
}

// backgroundCheck is the polling task body. It reports done once polling
// no longer applies.
func (w *Wizard) backgroundCheck(ctx context.Context) bool {
	_ = w.CheckConsent(ctx, Background)

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed || w.consent != models.ConsentPending || w.leadID == "" || w.signingLink == ""
}
