package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsentStatus_Advance(t *testing.T) {
	tests := []struct {
		from, next, want ConsentStatus
	}{
		{ConsentNotRequested, ConsentPending, ConsentPending},
		{ConsentNotRequested, ConsentSigned, ConsentSigned},
		{ConsentPending, ConsentNotRequested, ConsentPending},
		{ConsentPending, ConsentPending, ConsentPending},
		{ConsentPending, ConsentSigned, ConsentSigned},
		{ConsentPending, ConsentDeclined, ConsentDeclined},
		{ConsentSigned, ConsentPending, ConsentSigned},
		{ConsentSigned, ConsentDeclined, ConsentSigned},
		{ConsentDeclined, ConsentSigned, ConsentDeclined},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.next), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.Advance(tt.next))
		})
	}
}

func TestParseConsentStatus(t *testing.T) {
	assert.Equal(t, ConsentSigned, ParseConsentStatus(" signed "))
	assert.Equal(t, ConsentNotRequested, ParseConsentStatus("EXPIRED"))
	assert.Equal(t, ConsentNotRequested, ParseConsentStatus(""))
	assert.True(t, ConsentDeclined.Terminal())
	assert.False(t, ConsentPending.Terminal())
}

func TestParseHouseholdType(t *testing.T) {
	got, ok := ParseHouseholdType("pareja")
	assert.True(t, ok)
	assert.Equal(t, HouseholdCouple, got)

	_, ok = ParseHouseholdType("ROOMMATES")
	assert.False(t, ok)
}

func TestParseWizardStep(t *testing.T) {
	step, ok := ParseWizardStep("summary")
	assert.True(t, ok)
	assert.Equal(t, StepSummary, step)

	_, ok = ParseWizardStep("SUMMARY")
	assert.False(t, ok)
}

func TestWizardSection_MarshalKeepsExtra(t *testing.T) {
	w := WizardSection{
		Step:  StringPtr("plans"),
		Extra: map[string]json.RawMessage{"source": json.RawMessage(`"web"`)},
	}
	raw, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"step":"plans","termsAcceptedAt":null,"source":"web"}`, string(raw))
}

func TestPlanListing_Find(t *testing.T) {
	l := &PlanListing{Plans: []Plan{{ID: "a"}, {ID: "b"}}}
	p, ok := l.Find("b")
	assert.True(t, ok)
	assert.Equal(t, "b", p.ID)

	_, ok = l.Find("z")
	assert.False(t, ok)

	var nilListing *PlanListing
	_, ok = nilListing.Find("a")
	assert.False(t, ok)
}
