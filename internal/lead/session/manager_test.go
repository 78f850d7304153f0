package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"lead-wizard/internal/common/config"
	commonerrors "lead-wizard/internal/common/errors"
	"lead-wizard/internal/common/logger"
	"lead-wizard/internal/lead/backend"
	"lead-wizard/internal/lead/metadata"
	"lead-wizard/internal/lead/plans"
	"lead-wizard/internal/lead/wizard"
	"lead-wizard/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBackend struct {
	checkConsent func(ctx context.Context, leadID string) (*backend.Result, error)
}

func (f *fakeBackend) StartLead(ctx context.Context, in backend.StartLeadInput) (*backend.Result, error) {
	id := "L-1"
	return &backend.Result{Success: true, LeadID: &id}, nil
}

func (f *fakeBackend) UpdateHousehold(ctx context.Context, in backend.UpdateHouseholdInput) (*backend.Result, error) {
	return &backend.Result{Success: true}, nil
}

func (f *fakeBackend) ConfirmPlan(ctx context.Context, in backend.ConfirmPlanInput) (*backend.Result, error) {
	return &backend.Result{Success: true}, nil
}

func (f *fakeBackend) CheckConsent(ctx context.Context, leadID string) (*backend.Result, error) {
	if f.checkConsent == nil {
		return &backend.Result{Success: true}, nil
	}
	return f.checkConsent(ctx, leadID)
}

type noZipcodes struct{}

func (noZipcodes) ByZip(ctx context.Context, zip string) (*models.ZipcodeRecord, error) {
	return nil, nil
}

type memoryAudit struct {
	mu     sync.Mutex
	events []models.StepEvent
	err    error
}

func (a *memoryAudit) Append(ctx context.Context, ev models.StepEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.events = append(a.events, ev)
	return nil
}

func (a *memoryAudit) ListBySession(ctx context.Context, sessionID string) ([]models.StepEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.StepEvent
	for _, ev := range a.events {
		if ev.SessionID == sessionID {
			out = append(out, ev)
		}
	}
	return out, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	manager *Manager
	store   *MemoryStore
	audit   *memoryAudit
	backend *fakeBackend
	clock   *clock
}

func newFixture(t *testing.T, store *MemoryStore, poll time.Duration) *fixture {
	t.Helper()
	clk := &clock{now: time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)}
	if store == nil {
		store = NewMemoryStore()
	}
	store.now = clk.Now
	fb := &fakeBackend{}
	audit := &memoryAudit{}

	m := NewManager(Config{
		TTL: 30 * time.Minute,
		Wizard: wizard.Config{
			Lead:         config.LeadConfig{StagePipelineID: "3", LeadSourceID: "7", CampusID: "12"},
			PollInterval: poll,
		},
	}, wizard.Dependencies{
		Backend:  fb,
		Zipcodes: noZipcodes{},
		Plans:    plans.NewService(nil, nil, plans.Config{}, nil),
	}, store, logger.NewTestLogger(t), WithAuditLog(audit), WithClock(clk.Now))
	t.Cleanup(m.Shutdown)

	return &fixture{manager: m, store: store, audit: audit, backend: fb, clock: clk}
}

func summaryMetadata(t *testing.T, status models.ConsentStatus) string {
	t.Helper()
	return leadMetadata(t, func(m *models.WizardMetadata) {
		m.Plan.Selection = &models.PlanSelection{PlanID: "silver-plus", Name: models.StringPtr("Silver Plus")}
		m.Consent.Status = status
	})
}

// leadMetadata is a single household with its primary applicant on file.
func leadMetadata(t *testing.T, mutate func(m *models.WizardMetadata)) string {
	t.Helper()
	m := metadata.Empty()
	ht := models.HouseholdSingle
	m.Household.Type = &ht
	m.Household.ZipCode = models.StringPtr("33101")
	m.Household.Income = models.FloatPtr(3000)
	m.Members = []models.HouseholdMember{{
		Role: models.RolePrimary, FirstName: "Ana", LastName: "Ruiz",
		Gender: models.GenderFemale, BirthDate: "1990-05-01",
	}}
	if mutate != nil {
		mutate(&m)
	}
	raw, err := metadata.Serialize(m)
	require.NoError(t, err)
	return string(raw)
}

func TestManager_Create(t *testing.T) {
	f := newFixture(t, nil, time.Hour)
	ctx := context.Background()

	rec, err := f.manager.Create(ctx, "EN")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Session.ID)
	assert.Equal(t, "en", rec.Session.Language)
	assert.Equal(t, models.StepHouseholdType, rec.State.Step)
	assert.Equal(t, f.clock.Now().Add(30*time.Minute), rec.Session.ExpiresAt)
	assert.Equal(t, 1, f.manager.Len())

	stored, err := f.store.Load(ctx, rec.Session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.StepHouseholdType, stored.State.Step)

	other, err := f.manager.Create(ctx, "fr")
	require.NoError(t, err)
	assert.Equal(t, "es", other.Session.Language)
	assert.NotEqual(t, rec.Session.ID, other.Session.ID)
}

func TestManager_DoAuditsTransitionsAndPersists(t *testing.T) {
	f := newFixture(t, nil, time.Hour)
	ctx := context.Background()
	rec, err := f.manager.Create(ctx, "es")
	require.NoError(t, err)
	id := rec.Session.ID

	f.clock.Advance(10 * time.Minute)
	rec, err = f.manager.Do(ctx, id, "selectHouseholdType", func(ctx context.Context, w *wizard.Wizard) error {
		return w.SelectHouseholdType(ctx, models.HouseholdFamily)
	})
	require.NoError(t, err)
	assert.Equal(t, models.StepHouseholdBasics, rec.State.Step)
	assert.Equal(t, f.clock.Now().Add(30*time.Minute), rec.Session.ExpiresAt)

	events, err := f.manager.Events(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "selectHouseholdType", events[0].Action)
	assert.Equal(t, models.StepHouseholdType, events[0].FromStep)
	assert.Equal(t, models.StepHouseholdBasics, events[0].ToStep)
	assert.Empty(t, events[0].ErrorCode)
	assert.NotEmpty(t, events[0].ID)

	stored, err := f.store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StepHouseholdBasics, stored.State.Step)
}

func TestManager_DoAuditsFailures(t *testing.T) {
	f := newFixture(t, nil, time.Hour)
	ctx := context.Background()
	rec, err := f.manager.Create(ctx, "es")
	require.NoError(t, err)

	rec, err = f.manager.Do(ctx, rec.Session.ID, "back", func(ctx context.Context, w *wizard.Wizard) error {
		return w.Back(ctx)
	})
	assert.True(t, errors.Is(err, commonerrors.ErrInvalidTransition))
	require.NotNil(t, rec.State.Error)
	assert.Equal(t, commonerrors.ErrCodeInvalidTransition, rec.State.Error.Code)

	events, _ := f.manager.Events(ctx, rec.Session.ID)
	require.Len(t, events, 1)
	assert.Equal(t, "INVALID_TRANSITION", events[0].ErrorCode)
	assert.Equal(t, models.StepHouseholdType, events[0].FromStep)
	assert.Equal(t, models.StepHouseholdType, events[0].ToStep)
}

func TestManager_AuditFailureDoesNotFailAction(t *testing.T) {
	f := newFixture(t, nil, time.Hour)
	f.audit.err = errors.New("database unavailable")
	ctx := context.Background()
	rec, err := f.manager.Create(ctx, "es")
	require.NoError(t, err)

	rec, err = f.manager.Do(ctx, rec.Session.ID, "selectHouseholdType", func(ctx context.Context, w *wizard.Wizard) error {
		return w.SelectHouseholdType(ctx, models.HouseholdSingle)
	})
	require.NoError(t, err)
	assert.Equal(t, models.StepHouseholdBasics, rec.State.Step)
}

func TestManager_UnknownSession(t *testing.T) {
	f := newFixture(t, nil, time.Hour)
	ctx := context.Background()

	_, err := f.manager.Get(ctx, "missing")
	assert.True(t, errors.Is(err, commonerrors.ErrSessionNotFound))

	_, err = f.manager.Do(ctx, "missing", "back", func(ctx context.Context, w *wizard.Wizard) error {
		t.Fatal("action must not run")
		return nil
	})
	assert.True(t, errors.Is(err, commonerrors.ErrSessionNotFound))

	assert.True(t, errors.Is(f.manager.Close(ctx, "missing"), commonerrors.ErrSessionNotFound))
}

func TestManager_Close(t *testing.T) {
	f := newFixture(t, nil, time.Hour)
	ctx := context.Background()
	rec, err := f.manager.Create(ctx, "es")
	require.NoError(t, err)

	require.NoError(t, f.manager.Close(ctx, rec.Session.ID))
	assert.Equal(t, 0, f.manager.Len())

	stored, err := f.store.Load(ctx, rec.Session.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)

	_, err = f.manager.Get(ctx, rec.Session.ID)
	assert.True(t, errors.Is(err, commonerrors.ErrSessionNotFound))
}

func TestManager_Sweep(t *testing.T) {
	f := newFixture(t, nil, time.Hour)
	ctx := context.Background()
	idle, err := f.manager.Create(ctx, "es")
	require.NoError(t, err)

	f.clock.Advance(20 * time.Minute)
	busy, err := f.manager.Create(ctx, "es")
	require.NoError(t, err)

	f.clock.Advance(15 * time.Minute)
	assert.Equal(t, 1, f.manager.Sweep(ctx))
	assert.Equal(t, 1, f.manager.Len())

	_, err = f.manager.Get(ctx, idle.Session.ID)
	assert.True(t, errors.Is(err, commonerrors.ErrSessionNotFound))
	_, err = f.manager.Get(ctx, busy.Session.ID)
	assert.NoError(t, err)
}

func TestManager_ResumeAndRehydrate(t *testing.T) {
	store := NewMemoryStore()
	first := newFixture(t, store, time.Hour)
	ctx := context.Background()

	rec, err := first.manager.Resume(ctx, ResumeInput{
		Language: "en",
		LeadID:   "L-1",
		Metadata: summaryMetadata(t, models.ConsentNotRequested),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StepSummary, rec.State.Step)
	assert.Equal(t, "L-1", rec.State.LeadID)
	assert.Equal(t, "silver-plus", rec.State.SelectedPlan.ID)
	id := rec.Session.ID

	// a second process sees only the store
	second := newFixture(t, store, time.Hour)
	got, err := second.manager.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.Session.ID)
	assert.Equal(t, "en", got.Session.Language)
	assert.Equal(t, models.StepSummary, got.State.Step)
	assert.Equal(t, "L-1", got.State.LeadID)
	assert.Equal(t, 1, second.manager.Len())
}

func TestManager_RehydrateKeepsUnconfirmedSelection(t *testing.T) {
	store := NewMemoryStore()
	first := newFixture(t, store, time.Hour)
	ctx := context.Background()

	rec, err := first.manager.Resume(ctx, ResumeInput{
		Language: "en",
		LeadID:   "L-1",
		Metadata: leadMetadata(t, nil),
	})
	require.NoError(t, err)
	require.Equal(t, models.StepPlans, rec.State.Step)
	id := rec.Session.ID

	_, err = first.manager.Do(ctx, id, "listPlans", func(ctx context.Context, w *wizard.Wizard) error {
		_, err := w.ListPlans(ctx, "en")
		return err
	})
	require.NoError(t, err)
	rec, err = first.manager.Do(ctx, id, "selectPlan", func(ctx context.Context, w *wizard.Wizard) error {
		return w.SelectPlan(ctx, "silver-plus")
	})
	require.NoError(t, err)
	require.Equal(t, models.StepSummary, rec.State.Step)

	// the selection lives only in the snapshot until the plan is confirmed
	second := newFixture(t, store, time.Hour)
	got, err := second.manager.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StepSummary, got.State.Step)
	require.NotNil(t, got.State.SelectedPlan)
	assert.Equal(t, "silver-plus", got.State.SelectedPlan.ID)
	require.NotNil(t, got.State.Plans)
	assert.NotEmpty(t, got.State.Plans.Plans)

	stored, err := store.Load(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.StepSummary, stored.State.Step)
	require.NotNil(t, stored.State.SelectedPlan)
	assert.Equal(t, "silver-plus", stored.State.SelectedPlan.ID)

	got, err = second.manager.Do(ctx, id, "confirmPlan", func(ctx context.Context, w *wizard.Wizard) error {
		return w.ConfirmPlan(ctx, "en")
	})
	require.NoError(t, err)
	assert.Equal(t, models.StepSummary, got.State.Step)
	assert.Nil(t, got.State.Error)
}

func TestManager_RehydrateFallsBackWhenStoredStepIsUnsupported(t *testing.T) {
	store := NewMemoryStore()
	first := newFixture(t, store, time.Hour)
	ctx := context.Background()

	rec, err := first.manager.Resume(ctx, ResumeInput{LeadID: "L-1", Metadata: leadMetadata(t, nil)})
	require.NoError(t, err)
	id := rec.Session.ID

	stored, err := store.Load(ctx, id)
	require.NoError(t, err)
	stored.State.Step = models.StepSummary
	stored.State.SelectedPlan = nil
	require.NoError(t, store.Save(ctx, *stored, time.Hour))

	second := newFixture(t, store, time.Hour)
	got, err := second.manager.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StepPlans, got.State.Step)
}

func TestManager_BackgroundConsentTransitionIsPersisted(t *testing.T) {
	f := newFixture(t, nil, 5*time.Millisecond)
	signed := summaryMetadata(t, models.ConsentSigned)
	f.backend.checkConsent = func(ctx context.Context, leadID string) (*backend.Result, error) {
		return &backend.Result{Success: true, Metadata: &signed}, nil
	}
	ctx := context.Background()

	rec, err := f.manager.Resume(ctx, ResumeInput{
		LeadID:      "L-1",
		Metadata:    summaryMetadata(t, models.ConsentPending),
		SigningLink: "https://sign.example/L-1",
	})
	require.NoError(t, err)
	id := rec.Session.ID

	require.Eventually(t, func() bool {
		stored, err := f.store.Load(ctx, id)
		return err == nil && stored != nil && stored.State.Step == models.StepConsent
	}, 2*time.Second, 5*time.Millisecond)

	events, err := f.manager.Events(ctx, id)
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, "checkConsent", last.Action)
	assert.Equal(t, models.StepConsent, last.ToStep)
	assert.Equal(t, models.ConsentSigned, last.ConsentStatus)
}

func TestManager_Shutdown(t *testing.T) {
	f := newFixture(t, nil, time.Hour)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.manager.Create(ctx, "es")
		require.NoError(t, err)
	}

	f.manager.Shutdown()
	assert.Equal(t, 0, f.manager.Len())
}
