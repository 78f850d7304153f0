// Package session owns the running wizards: one per applicant session, each
// persisted as a snapshot and audited step by step.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	commonerrors "lead-wizard/internal/common/errors"
	"lead-wizard/internal/common/logger"
	"lead-wizard/internal/common/metrics"
	"lead-wizard/internal/common/observability"
	"lead-wizard/internal/lead/wizard"
	"lead-wizard/internal/models"
)

const (
	DefaultTTL   = 2 * time.Hour
	auditTimeout = 5 * time.Second
)

var tracer = otel.Tracer("lead-wizard/session")

type Config struct {
	TTL             time.Duration
	DefaultLanguage string
	Wizard          wizard.Config
}

// Action is one wizard operation run under Manager.Do.
type Action func(ctx context.Context, w *wizard.Wizard) error

// ResumeInput re-opens an existing lead in a new session.
type ResumeInput struct {
	Language    string      `json:"language"`
	LeadID      string      `json:"leadId"`
	Metadata    interface{} `json:"metadata"`
	SigningLink string      `json:"signingLink"`
}

type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry

	cfg    Config
	deps   wizard.Dependencies
	store  Store
	audit  AuditLog
	obs    *observability.Observability
	logger logger.Logger
	now    func() time.Time
}

type Option func(*Manager)

func WithAuditLog(a AuditLog) Option {
	return func(m *Manager) { m.audit = a }
}

func WithObservability(o *observability.Observability) Option {
	return func(m *Manager) { m.obs = o }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

type entry struct {
	mu      sync.Mutex
	session models.WizardSession
	wizard  *wizard.Wizard
	// saveMu orders snapshot writes so the store never regresses.
	saveMu sync.Mutex
}

func (e *entry) info() models.WizardSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

func (e *entry) record() Record {
	return Record{Session: e.info(), State: e.wizard.Snapshot()}
}

// NewManager builds the registry. deps is the template every wizard is built
// from; its Observer is replaced per session.
func NewManager(cfg Config, deps wizard.Dependencies, store Store, log logger.Logger, opts ...Option) *Manager {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "es"
	}
	m := &Manager{
		sessions: map[string]*entry{},
		cfg:      cfg,
		deps:     deps,
		store:    store,
		logger:   log.WithFields(map[string]interface{}{"component": "session-manager"}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.deps.Logger == nil {
		m.deps.Logger = log
	}
	if m.deps.Clock == nil {
		m.deps.Clock = m.now
	}
	return m
}

// Create opens a new session on the first step.
func (m *Manager) Create(ctx context.Context, lang string) (Record, error) {
	now := m.now()
	e := &entry{session: models.WizardSession{
		ID:        uuid.NewString(),
		Language:  m.language(lang),
		CreatedAt: now,
	}}
	e.session.Touch(now, m.cfg.TTL)
	e.wizard = m.newWizard(e)

	m.add(e)
	m.obs.RecordSession(ctx, "created")
	m.logger.Info("Wizard session created", map[string]interface{}{
		"sessionId": e.session.ID,
		"language":  e.session.Language,
	})

	return m.save(ctx, e), nil
}

// Resume opens a session for a lead that already exists.
func (m *Manager) Resume(ctx context.Context, in ResumeInput) (Record, error) {
	rec, err := m.Create(ctx, in.Language)
	if err != nil {
		return Record{}, err
	}
	return m.Do(ctx, rec.Session.ID, "restore", func(ctx context.Context, w *wizard.Wizard) error {
		w.Restore(in.LeadID, in.Metadata, in.SigningLink)
		return nil
	})
}

// Get returns the current record, rehydrating from the store when the
// session is not held in memory.
func (m *Manager) Get(ctx context.Context, id string) (Record, error) {
	e, err := m.lookup(ctx, id)
	if err != nil {
		return Record{}, err
	}
	return e.record(), nil
}

// Do runs action against the session's wizard, then persists the resulting
// snapshot. The action's error is returned alongside the record.
func (m *Manager) Do(ctx context.Context, id, name string, action Action) (Record, error) {
	ctx, span := tracer.Start(ctx, "wizard."+name, trace.WithAttributes(
		attribute.String("session.id", id),
	))
	defer span.End()

	e, err := m.lookup(ctx, id)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Record{}, err
	}

	start := m.now()
	actionErr := action(ctx, e.wizard)

	status := "success"
	if actionErr != nil {
		status = "error"
		span.RecordError(actionErr)
		span.SetStatus(codes.Error, string(commonerrors.Normalize(actionErr).Code))
		m.auditFailure(e, name, actionErr)
	}
	m.obs.RecordAction(ctx, name, m.now().Sub(start), status)

	e.mu.Lock()
	e.session.Touch(m.now(), m.cfg.TTL)
	e.mu.Unlock()

	return m.save(ctx, e), actionErr
}

// Events lists the audited transitions of a session.
func (m *Manager) Events(ctx context.Context, id string) ([]models.StepEvent, error) {
	if _, err := m.lookup(ctx, id); err != nil {
		return nil, err
	}
	if m.audit == nil {
		return []models.StepEvent{}, nil
	}
	return m.audit.ListBySession(ctx, id)
}

// Close stops the session's poller and forgets it.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		metrics.SessionsActive.Set(float64(len(m.sessions)))
	}
	m.mu.Unlock()

	if !ok {
		rec, err := m.store.Load(ctx, id)
		if err != nil {
			return commonerrors.NewTransportError("LoadSession", err)
		}
		if rec == nil {
			return commonerrors.NewSessionNotFoundError(id)
		}
	} else {
		e.wizard.Close()
	}

	if err := m.store.Delete(ctx, id); err != nil {
		m.logger.Warn("Failed to delete session snapshot", map[string]interface{}{
			"sessionId": id,
			"error":     err,
		})
	}
	m.obs.RecordSession(ctx, "closed")
	m.logger.Info("Wizard session closed", map[string]interface{}{"sessionId": id})
	return nil
}

// Sweep closes sessions idle past their TTL and returns how many.
func (m *Manager) Sweep(ctx context.Context) int {
	now := m.now()
	var expired []*entry

	m.mu.Lock()
	for id, e := range m.sessions {
		info := e.info()
		if info.IsExpired(now) {
			expired = append(expired, e)
			delete(m.sessions, id)
		}
	}
	metrics.SessionsActive.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, e := range expired {
		e.wizard.Close()
		m.obs.RecordSession(ctx, "expired")
		m.logger.Info("Wizard session expired", map[string]interface{}{"sessionId": e.info().ID})
	}
	return len(expired)
}

// RunJanitor sweeps every interval until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(ctx); n > 0 {
				m.logger.Debug("Swept idle sessions", map[string]interface{}{"count": n})
			}
		}
	}
}

// Shutdown stops every wizard. Snapshots stay in the store.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.sessions = map[string]*entry{}
	metrics.SessionsActive.Set(0)
	m.mu.Unlock()

	for _, e := range entries {
		e.wizard.Close()
	}
	m.logger.Info("Session manager stopped", map[string]interface{}{"closed": len(entries)})
}

// Len is the number of sessions held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) lookup(ctx context.Context, id string) (*entry, error) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	m.mu.Unlock()

	if ok {
		if e.info().IsExpired(m.now()) {
			m.expire(ctx, id, e)
			return nil, commonerrors.NewSessionNotFoundError(id)
		}
		return e, nil
	}
	return m.rehydrate(ctx, id)
}

func (m *Manager) expire(ctx context.Context, id string, e *entry) {
	m.mu.Lock()
	if m.sessions[id] == e {
		delete(m.sessions, id)
		metrics.SessionsActive.Set(float64(len(m.sessions)))
	}
	m.mu.Unlock()
	e.wizard.Close()
	m.obs.RecordSession(ctx, "expired")
}

// rehydrate rebuilds a wizard from its persisted snapshot.
func (m *Manager) rehydrate(ctx context.Context, id string) (*entry, error) {
	rec, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, commonerrors.NewTransportError("LoadSession", err)
	}
	if rec == nil || rec.Session.IsExpired(m.now()) {
		return nil, commonerrors.NewSessionNotFoundError(id)
	}

	e := &entry{session: rec.Session}
	e.wizard = m.newWizard(e)
	e.wizard.RestoreSnapshot(rec.State)

	m.mu.Lock()
	if existing, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		e.wizard.Close()
		return existing, nil
	}
	m.sessions[id] = e
	metrics.SessionsActive.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	m.obs.RecordSession(ctx, "rehydrated")
	m.logger.Info("Wizard session rehydrated", map[string]interface{}{
		"sessionId": id,
		"step":      string(e.wizard.Step()),
	})
	return e, nil
}

func (m *Manager) add(e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[e.session.ID] = e
	metrics.SessionsActive.Set(float64(len(m.sessions)))
}

func (m *Manager) newWizard(e *entry) *wizard.Wizard {
	cfg := m.cfg.Wizard
	cfg.Language = e.session.Language
	deps := m.deps
	deps.Observer = &recorder{m: m, e: e}
	return wizard.New(cfg, deps)
}

func (m *Manager) language(lang string) string {
	switch l := strings.ToLower(strings.TrimSpace(lang)); l {
	case "es", "en":
		return l
	default:
		return m.cfg.DefaultLanguage
	}
}

// save snapshots e and writes it. The snapshot is taken under saveMu so
// the last write always carries the latest state.
func (m *Manager) save(ctx context.Context, e *entry) Record {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()
	rec := e.record()
	m.persist(ctx, rec)
	return rec
}

func (m *Manager) persist(ctx context.Context, rec Record) {
	if err := m.store.Save(ctx, rec, m.cfg.TTL); err != nil {
		m.logger.Warn("Failed to persist session snapshot", map[string]interface{}{
			"sessionId": rec.Session.ID,
			"error":     err,
		})
	}
}

func (m *Manager) appendEvent(ev models.StepEvent) {
	if m.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	if err := m.audit.Append(ctx, ev); err != nil {
		m.logger.Warn("Failed to append wizard event", map[string]interface{}{
			"sessionId": ev.SessionID,
			"action":    ev.Action,
			"error":     err,
		})
	}
}

func (m *Manager) auditFailure(e *entry, action string, err error) {
	snap := e.wizard.Snapshot()
	m.appendEvent(models.StepEvent{
		ID:            uuid.NewString(),
		SessionID:     e.info().ID,
		LeadID:        snap.LeadID,
		Action:        action,
		FromStep:      snap.Step,
		ToStep:        snap.Step,
		ConsentStatus: snap.ConsentStatus,
		ErrorCode:     string(commonerrors.Normalize(err).Code),
		CreatedAt:     m.now().UTC(),
	})
}

// recorder audits and persists a session's step changes, including those
// made by consent polling outside any Do call.
type recorder struct {
	m *Manager
	e *entry
}

func (r *recorder) StepChanged(t wizard.Transition) {
	r.m.appendEvent(models.StepEvent{
		ID:            uuid.NewString(),
		SessionID:     r.e.info().ID,
		LeadID:        t.LeadID,
		Action:        t.Action,
		FromStep:      t.From,
		ToStep:        t.To,
		ConsentStatus: t.Consent,
		CreatedAt:     t.At,
	})
	if r.e.wizard != nil {
		ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		r.m.save(ctx, r.e)
	}
}
