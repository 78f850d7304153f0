package session

import (
	"context"
	"fmt"

	"lead-wizard/internal/common/database"
	"lead-wizard/internal/models"
)

// AuditLog records every wizard step transition.
type AuditLog interface {
	Append(ctx context.Context, ev models.StepEvent) error
	ListBySession(ctx context.Context, sessionID string) ([]models.StepEvent, error)
}

const auditSchema = `
	CREATE TABLE IF NOT EXISTS lead_wizard_events (
		id             UUID PRIMARY KEY,
		session_id     TEXT NOT NULL,
		lead_id        TEXT,
		action         TEXT NOT NULL,
		from_step      TEXT NOT NULL,
		to_step        TEXT NOT NULL,
		consent_status TEXT NOT NULL,
		error_code     TEXT,
		created_at     TIMESTAMPTZ NOT NULL
	)`

const auditIndex = `
	CREATE INDEX IF NOT EXISTS lead_wizard_events_session_idx
		ON lead_wizard_events (session_id, created_at)`

type PostgresAuditLog struct {
	db *database.PostgresClient
}

func NewPostgresAuditLog(db *database.PostgresClient) *PostgresAuditLog {
	return &PostgresAuditLog{db: db}
}

// EnsureSchema creates the events table and its index.
func (a *PostgresAuditLog) EnsureSchema(ctx context.Context) error {
	return a.db.EnsureSchema(ctx, auditSchema, auditIndex)
}

func (a *PostgresAuditLog) Append(ctx context.Context, ev models.StepEvent) error {
	_, err := a.db.Exec(ctx, `
		INSERT INTO lead_wizard_events (
			id, session_id, lead_id, action,
			from_step, to_step, consent_status, error_code, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ev.ID,
		ev.SessionID,
		nullable(ev.LeadID),
		ev.Action,
		string(ev.FromStep),
		string(ev.ToStep),
		string(ev.ConsentStatus),
		nullable(ev.ErrorCode),
		ev.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert wizard event: %w", err)
	}
	return nil
}

func (a *PostgresAuditLog) ListBySession(ctx context.Context, sessionID string) ([]models.StepEvent, error) {
	rows, err := a.db.Query(ctx, `
		SELECT id, session_id, COALESCE(lead_id, ''), action,
			from_step, to_step, consent_status, COALESCE(error_code, ''), created_at
		FROM lead_wizard_events
		WHERE session_id = $1
		ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query wizard events: %w", err)
	}
	defer rows.Close()

	var events []models.StepEvent
	for rows.Next() {
		var ev models.StepEvent
		var from, to, consent string
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.LeadID, &ev.Action,
			&from, &to, &consent, &ev.ErrorCode, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan wizard event: %w", err)
		}
		ev.FromStep = models.WizardStep(from)
		ev.ToStep = models.WizardStep(to)
		ev.ConsentStatus = models.ConsentStatus(consent)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wizard events: %w", err)
	}
	return events, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
