// Package wizard is the lead-intake state machine. One Wizard holds one
// applicant's progress from household type to signed consent.
package wizard

import (
	"context"
	"strings"
	"sync"
	"time"

	"lead-wizard/internal/common/config"
	commonerrors "lead-wizard/internal/common/errors"
	"lead-wizard/internal/common/logger"
	"lead-wizard/internal/common/metrics"
	"lead-wizard/internal/lead/backend"
	"lead-wizard/internal/lead/consent"
	"lead-wizard/internal/lead/metadata"
	"lead-wizard/internal/lead/plans"
	"lead-wizard/internal/models"
)

// LeadBackend is the lead RPC surface the wizard drives.
type LeadBackend interface {
	StartLead(ctx context.Context, in backend.StartLeadInput) (*backend.Result, error)
	UpdateHousehold(ctx context.Context, in backend.UpdateHouseholdInput) (*backend.Result, error)
	ConfirmPlan(ctx context.Context, in backend.ConfirmPlanInput) (*backend.Result, error)
	CheckConsent(ctx context.Context, leadID string) (*backend.Result, error)
}

type ZipLookup interface {
	ByZip(ctx context.Context, zip string) (*models.ZipcodeRecord, error)
}

type PlanFetcher interface {
	Fetch(ctx context.Context, facts plans.HouseholdFacts, lang string) (*models.PlanListing, error)
}

// Observer is told about every step change, after the wizard lock is
// released.
type Observer interface {
	StepChanged(t Transition)
}

type Transition struct {
	From    models.WizardStep
	To      models.WizardStep
	Action  string
	LeadID  string
	Consent models.ConsentStatus
	At      time.Time
}

type Config struct {
	Lead         config.LeadConfig
	Language     string
	PollInterval time.Duration
}

type Dependencies struct {
	Backend  LeadBackend
	Zipcodes ZipLookup
	Plans    PlanFetcher
	Codec    *metadata.Codec
	Observer Observer
	Logger   logger.Logger
	Clock    func() time.Time
}

// CheckMode separates user-initiated consent checks from automatic polls.
type CheckMode int

const (
	Foreground CheckMode = iota
	Background
)

func (m CheckMode) String() string {
	if m == Background {
		return "background"
	}
	return "foreground"
}

// slot groups requests whose responses supersede each other.
type slot int

const (
	slotStartLead slot = iota
	slotUpdateHousehold
	slotConfirmPlan
	slotCheckConsent
	slotZipLookup
	slotListPlans
	slotCount
)

var slotNames = [slotCount]string{"startLead", "updateHousehold", "confirmPlan", "checkConsent", "zipLookup", "listPlans"}

// PlanContext is the provenance of the list a plan was chosen from.
type PlanContext struct {
	FetchedAt string `json:"fetchedAt"`
	Count     int    `json:"count"`
}

type Wizard struct {
	mu sync.Mutex

	cfg      Config
	backend  LeadBackend
	zipcodes ZipLookup
	plans    PlanFetcher
	codec    *metadata.Codec
	observer Observer
	logger   logger.Logger
	errors   *commonerrors.ErrorHandler
	now      func() time.Time
	poller   *consent.Poller

	step          models.WizardStep
	householdType *models.HouseholdType
	leadID        string
	primary       *models.PrimaryApplicant
	metadata      models.WizardMetadata
	zipcode       *models.ZipcodeRecord
	listing       *models.PlanListing
	selectedPlan  *models.Plan
	planContext   *PlanContext
	signingLink   string
	consent       models.ConsentStatus
	lastError     *ErrorView

	submitting      int
	checkingConsent int
	generations     [slotCount]uint64
	pendingObserved []Transition
	closed          bool
}

func New(cfg Config, deps Dependencies) *Wizard {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	codec := deps.Codec
	if codec == nil {
		codec = metadata.NewCodec(metadata.Policy{}, log)
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	if cfg.Language == "" {
		cfg.Language = "es"
	}

	return &Wizard{
		cfg:      cfg,
		backend:  deps.Backend,
		zipcodes: deps.Zipcodes,
		plans:    deps.Plans,
		codec:    codec,
		observer: deps.Observer,
		logger:   log,
		errors:   commonerrors.NewErrorHandler(log),
		now:      now,
		poller:   consent.NewPoller(cfg.PollInterval, log),
		step:     models.StepHouseholdType,
		metadata: metadata.Empty(),
		consent:  models.ConsentNotRequested,
	}
}

// SetLanguage switches the language of validation and error messages.
func (w *Wizard) SetLanguage(lang string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch strings.ToLower(lang) {
	case "es", "en":
		w.cfg.Language = strings.ToLower(lang)
	}
}

func (w *Wizard) Step() models.WizardStep {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Polling reports whether a consent polling task is running.
func (w *Wizard) Polling() bool {
	return w.poller.Running()
}

// Close stops polling and discards every in-flight response. It waits for
// the polling goroutine to exit.
func (w *Wizard) Close() {
	w.mu.Lock()
	w.closed = true
	for i := range w.generations {
		w.generations[i]++
	}
	w.mu.Unlock()

	w.poller.Shutdown()
}

// Restore resumes a lead from persisted metadata. The step is derived from
// the record.
func (w *Wizard) Restore(leadID string, raw interface{}, signingLink string) models.WizardStep {
	defer w.notify()
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.generations {
		w.generations[i]++
	}

	m := w.codec.Parse(raw)
	w.leadID = strings.TrimSpace(leadID)
	w.signingLink = strings.TrimSpace(signingLink)
	w.metadata = m
	w.householdType = m.Household.Type
	w.primary = metadata.PrimaryFromMetadata(m)
	w.consent = models.ConsentNotRequested.Advance(m.Consent.Status)
	w.selectedPlan = planFromSelection(m.Plan.Selection)
	w.planContext = contextFromResults(m.Plan.Results)
	w.listing = nil
	w.lastError = nil

	step := metadata.StepFromMetadata(m)
	if w.leadID == "" && step != models.StepHouseholdType && step != models.StepHouseholdBasics {
		step = models.StepPrimary
	}
	w.transition("restore", step)
	w.syncPollerLocked()
	return w.step
}

// RestoreSnapshot reinstates a persisted snapshot, local progress included.
// The snapshot step is kept when the restored state supports it, otherwise
// the step is derived from the metadata. No transition is reported.
func (w *Wizard) RestoreSnapshot(s Snapshot) models.WizardStep {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.generations {
		w.generations[i]++
	}

	m := s.Metadata
	m.Members = append([]models.HouseholdMember(nil), s.Metadata.Members...)
	w.leadID = strings.TrimSpace(s.LeadID)
	w.signingLink = strings.TrimSpace(s.SigningLink)
	w.consent = models.ConsentNotRequested.Advance(m.Consent.Status).Advance(s.ConsentStatus)
	m.Consent.Status = w.consent
	w.metadata = m

	w.householdType = m.Household.Type
	if s.HouseholdType != nil {
		t := *s.HouseholdType
		w.householdType = &t
	}
	w.primary = metadata.PrimaryFromMetadata(m)
	if s.Primary != nil {
		p := *s.Primary
		w.primary = &p
	}
	w.zipcode = nil
	if s.Zipcode != nil {
		z := *s.Zipcode
		w.zipcode = &z
	}
	w.listing = nil
	if s.Plans != nil {
		l := *s.Plans
		l.Plans = append([]models.Plan(nil), s.Plans.Plans...)
		w.listing = &l
	}
	w.selectedPlan = planFromSelection(m.Plan.Selection)
	if s.SelectedPlan != nil {
		p := *s.SelectedPlan
		w.selectedPlan = &p
	}
	w.planContext = contextFromResults(m.Plan.Results)
	if s.PlanContext != nil {
		pc := *s.PlanContext
		w.planContext = &pc
	}
	w.lastError = nil

	w.step = w.restoredStepLocked(s.Step)
	w.syncPollerLocked()
	return w.step
}

// restoredStepLocked returns want if the current state can stand on it.
func (w *Wizard) restoredStepLocked(want models.WizardStep) models.WizardStep {
	derived := metadata.StepFromMetadata(w.metadata)
	if w.leadID == "" && derived != models.StepHouseholdType && derived != models.StepHouseholdBasics {
		derived = models.StepPrimary
	}
	if w.consent == models.ConsentSigned {
		return models.StepConsent
	}

	step, ok := models.ParseWizardStep(string(want))
	if !ok {
		return derived
	}
	switch step {
	case models.StepHouseholdType:
		return step
	case models.StepHouseholdBasics:
		if w.householdType != nil {
			return step
		}
	case models.StepPrimary:
		if w.householdType != nil && w.zipcode != nil {
			return step
		}
	case models.StepMembers:
		if w.leadID != "" && metadata.NeedsAdditionalMembers(w.householdType) {
			return step
		}
	case models.StepPlans:
		if w.leadID != "" {
			return step
		}
	case models.StepSummary:
		if w.leadID != "" && w.selectedPlan != nil {
			return step
		}
	case models.StepConsent:
		if w.leadID != "" && w.consent == models.ConsentPending {
			return step
		}
	}
	return derived
}

// begin opens a request in s and returns its generation.
func (w *Wizard) begin(s slot) uint64 {
	w.generations[s]++
	return w.generations[s]
}

func (w *Wizard) isCurrent(s slot, gen uint64) bool {
	return !w.closed && w.generations[s] == gen
}

// invalidateSubmissions makes in-flight step submissions stale.
func (w *Wizard) invalidateSubmissions() {
	for _, s := range []slot{slotStartLead, slotUpdateHousehold, slotConfirmPlan, slotZipLookup, slotListPlans} {
		w.generations[s]++
	}
}

func (w *Wizard) stale(action string, s slot) error {
	w.logger.Debug("Discarding superseded response", map[string]interface{}{
		"action": action,
		"slot":   slotNames[s],
		"leadId": w.leadID,
	})
	return commonerrors.NewStaleResponseError(slotNames[s])
}

func (w *Wizard) requireStep(action string, allowed ...models.WizardStep) error {
	for _, s := range allowed {
		if w.step == s {
			return nil
		}
	}
	return w.fail(action, commonerrors.NewInvalidTransitionError(action, string(w.step)))
}

// fail records err as the last user-facing error and returns it normalized.
func (w *Wizard) fail(action string, err error) error {
	stdErr := commonerrors.Normalize(err)
	metrics.WizardActionErrors.WithLabelValues(action, string(stdErr.Code)).Inc()
	w.lastError = &ErrorView{
		Code:    stdErr.Code,
		Message: w.errors.HandleStepError(string(w.step), stdErr, w.cfg.Language),
		Fields:  stdErr.Fields,
	}
	return stdErr
}

func (w *Wizard) validationFailed(action string, fields []commonerrors.FieldError) error {
	return w.fail(action, commonerrors.NewValidationError(fields))
}

func (w *Wizard) transition(action string, to models.WizardStep) {
	from := w.step
	w.step = to
	if from == to {
		return
	}
	metrics.WizardTransitions.WithLabelValues(string(from), string(to)).Inc()
	w.logger.Info("Wizard step changed", map[string]interface{}{
		"from":   string(from),
		"to":     string(to),
		"action": action,
		"leadId": w.leadID,
	})
	if w.observer != nil {
		w.pendingObserved = append(w.pendingObserved, Transition{
			From:    from,
			To:      to,
			Action:  action,
			LeadID:  w.leadID,
			Consent: w.consent,
			At:      w.now().UTC(),
		})
	}
}

// notify delivers queued transitions outside the lock.
func (w *Wizard) notify() {
	w.mu.Lock()
	pending := w.pendingObserved
	w.pendingObserved = nil
	obs := w.observer
	w.mu.Unlock()

	for _, t := range pending {
		obs.StepChanged(t)
	}
}

// applyResult replaces metadata with the backend's copy and moves consent
// forward. A response without metadata keeps the current record.
func (w *Wizard) applyResult(res *backend.Result) {
	if res == nil || res.Metadata == nil {
		return
	}
	next := w.codec.Parse(res.RawMetadata())
	w.consent = w.consent.Advance(next.Consent.Status)
	next.Consent.Status = w.consent
	w.metadata = next
}

// syncPollerLocked runs the consent poller iff consent is pending and both a
// lead id and a signing link exist.
func (w *Wizard) syncPollerLocked() {
	if w.closed || w.consent != models.ConsentPending || w.leadID == "" || w.signingLink == "" {
		w.poller.Stop()
		return
	}
	w.poller.Ensure(consent.Key{LeadID: w.leadID, SigningLink: w.signingLink}, w.backgroundCheck)
}

func (w *Wizard) clearError() {
	w.lastError = nil
}

func planFromSelection(sel *models.PlanSelection) *models.Plan {
	if sel == nil {
		return nil
	}
	p := &models.Plan{ID: sel.PlanID}
	if sel.Name != nil {
		p.Name = *sel.Name
	}
	if sel.Issuer != nil {
		p.Carrier = *sel.Issuer
	}
	if sel.Premium != nil {
		p.MonthlyPremium = *sel.Premium
	}
	if sel.Deductible != nil {
		p.Deductible = *sel.Deductible
	}
	if sel.MetalLevel != nil {
		p.Summary = *sel.MetalLevel
	}
	return p
}

func contextFromResults(r *models.PlanResults) *PlanContext {
	if r == nil {
		return nil
	}
	pc := &PlanContext{}
	if r.FetchedAt != nil {
		pc.FetchedAt = *r.FetchedAt
	}
	if r.Count != nil {
		pc.Count = *r.Count
	}
	return pc
}
