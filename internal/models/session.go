package models

import "time"

// WizardSession is the registry record of one running wizard.
type WizardSession struct {
	ID           string    `json:"id"`
	Language     string    `json:"language"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// IsExpired checks if session has expired
func (s WizardSession) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Touch records activity and slides the expiry window.
func (s *WizardSession) Touch(now time.Time, ttl time.Duration) {
	s.LastActivity = now
	if ttl > 0 {
		s.ExpiresAt = now.Add(ttl)
	}
}

// StepEvent is one audited wizard action.
type StepEvent struct {
	ID            string        `json:"id" db:"id"`
	SessionID     string        `json:"sessionId" db:"session_id"`
	LeadID        string        `json:"leadId,omitempty" db:"lead_id"`
	Action        string        `json:"action" db:"action"`
	FromStep      WizardStep    `json:"fromStep" db:"from_step"`
	ToStep        WizardStep    `json:"toStep" db:"to_step"`
	ConsentStatus ConsentStatus `json:"consentStatus" db:"consent_status"`
	ErrorCode     string        `json:"errorCode,omitempty" db:"error_code"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
}
