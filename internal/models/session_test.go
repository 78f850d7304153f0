package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWizardSession_IsExpired(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"no expiry", time.Time{}, false},
		{"in the future", now.Add(time.Minute), false},
		{"exactly now", now, false},
		{"in the past", now.Add(-time.Minute), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// called on a non-addressable value, the way the registry reads it
			assert.Equal(t, tt.want, WizardSession{ExpiresAt: tt.expiresAt}.IsExpired(now))
		})
	}
}

func TestWizardSession_Touch(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	s := WizardSession{ExpiresAt: now}

	s.Touch(now.Add(time.Minute), 30*time.Minute)
	assert.Equal(t, now.Add(time.Minute), s.LastActivity)
	assert.Equal(t, now.Add(31*time.Minute), s.ExpiresAt)
	assert.False(t, s.IsExpired(now.Add(30*time.Minute)))

	s.Touch(now.Add(2*time.Minute), 0)
	assert.Equal(t, now.Add(31*time.Minute), s.ExpiresAt)
}
