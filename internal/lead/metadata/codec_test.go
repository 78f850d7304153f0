package metadata

import (
	"encoding/json"
	stderrors "errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "lead-wizard/internal/common/errors"
	"lead-wizard/internal/common/logger"
	"lead-wizard/internal/models"
)

const emptyJSON = `{
  "version": 1,
  "wizard": {"step": "householdType", "termsAcceptedAt": null},
  "household": {
    "type": null, "zipCode": null, "countyFips": null, "income": null,
    "effectiveDate": null, "size": null, "updatedAt": null,
    "stateId": null, "stateName": null, "countyName": null
  },
  "members": [],
  "plan": {"selection": null, "results": null},
  "consent": {
    "signatureEntryId": null, "status": "NOT_REQUESTED",
    "requestedAt": null, "lastChecked": null, "signedAt": null
  }
}`

const fullJSON = `{
  "version": 2,
  "wizard": {"step": "PLANS", "termsAcceptedAt": "2026-01-05T10:00:00Z", "source": "web", "attempts": 3},
  "household": {
    "type": "FAMILIA", "zipCode": "33101", "countyFips": "12086", "income": 52000.5,
    "effectiveDate": "2026-02-01", "size": 3, "stateId": "FL", "stateName": "Florida",
    "countyName": "Miami-Dade"
  },
  "members": [
    {"role": "PRIMARY", "firstName": "Ana", "lastName": "Pérez", "gender": "F", "birthDate": "1990-04-02", "email": "ana@example.com", "phone": "3055550100"},
    {"role": "dependent", "firstName": " Leo ", "lastName": "Pérez", "gender": "m", "birthDate": "2015-09-12"}
  ],
  "plan": {
    "selection": {"planId": "12345FL0010001", "issuer": "Ambetter", "premium": "310.25", "deductible": 1500, "name": "Silver Select"},
    "results": {"fetchedAt": "2026-01-05T10:05:00Z", "count": 12, "filters": "{\"language\":\"es\"}"}
  },
  "consent": {"signatureEntryId": 77, "status": "PENDING", "requestedAt": "2026-01-05T10:06:00Z"}
}`

func TestParse_EmptyInputs(t *testing.T) {
	inputs := map[string]interface{}{
		"nil":          nil,
		"empty string": "",
		"blank string": "   ",
		"invalid json": "{not json",
		"json array":   "[1,2,3]",
		"json number":  "42",
		"empty bytes":  []byte{},
		"bool":         true,
		"int":          7,
		"slice":        []interface{}{"a"},
	}

	want := Empty()
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, Parse(input))
		})
	}
}

func TestEmpty_Shape(t *testing.T) {
	raw, err := Serialize(Empty())
	require.NoError(t, err)
	assert.JSONEq(t, emptyJSON, string(raw))
}

func TestParse_PartialFallsBackPerField(t *testing.T) {
	m := Parse(`{"household":{"type":"pareja","zipCode":" 10001 ","income":"3000"}}`)

	assert.Equal(t, 1, m.Version)
	require.NotNil(t, m.Wizard.Step)
	assert.Equal(t, "householdType", *m.Wizard.Step)
	require.NotNil(t, m.Household.Type)
	assert.Equal(t, models.HouseholdCouple, *m.Household.Type)
	assert.Equal(t, "10001", *m.Household.ZipCode)
	assert.Equal(t, 3000.0, *m.Household.Income)
	assert.Nil(t, m.Household.CountyFips)
	assert.Empty(t, m.Members)
	assert.NotNil(t, m.Members)
	assert.Nil(t, m.Plan.Selection)
	assert.Equal(t, models.ConsentNotRequested, m.Consent.Status)
}

func TestParse_Full(t *testing.T) {
	m := Parse(fullJSON)

	assert.Equal(t, 2, m.Version)
	assert.Equal(t, "PLANS", *m.Wizard.Step)
	assert.JSONEq(t, `"web"`, string(m.Wizard.Extra["source"]))
	assert.JSONEq(t, `3`, string(m.Wizard.Extra["attempts"]))

	assert.Equal(t, models.HouseholdFamily, *m.Household.Type)
	assert.Equal(t, 52000.5, *m.Household.Income)
	assert.Equal(t, 3, *m.Household.Size)
	assert.Nil(t, m.Household.UpdatedAt)

	require.Len(t, m.Members, 2)
	assert.Equal(t, models.RoleDependent, m.Members[1].Role)
	assert.Equal(t, models.GenderMale, m.Members[1].Gender)
	assert.Equal(t, "Leo", m.Members[1].FirstName)
	assert.Nil(t, m.Members[1].Email)

	require.NotNil(t, m.Plan.Selection)
	assert.Equal(t, "12345FL0010001", m.Plan.Selection.PlanID)
	assert.Equal(t, 310.25, *m.Plan.Selection.Premium)
	assert.Nil(t, m.Plan.Selection.APTC)
	require.NotNil(t, m.Plan.Results)
	assert.Equal(t, 12, *m.Plan.Results.Count)
	assert.JSONEq(t, `"{\"language\":\"es\"}"`, string(m.Plan.Results.Filters))

	assert.Equal(t, models.ConsentPending, m.Consent.Status)
	assert.Equal(t, int64(77), *m.Consent.SignatureEntryID)
	assert.Nil(t, m.Consent.SignedAt)
}

func TestParse_Version(t *testing.T) {
	assert.Equal(t, 3, Parse(`{"version":3}`).Version)
	assert.Equal(t, 1, Parse(`{"version":"3"}`).Version)
	assert.Equal(t, 1, Parse(`{"version":null}`).Version)
}

func TestParse_ExplicitNullOverridesDefault(t *testing.T) {
	m := Parse(`{"wizard":{"step":null}}`)
	assert.Nil(t, m.Wizard.Step)
}

func TestParse_Numbers(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  *float64
	}{
		{"number", 1200.0, models.FloatPtr(1200)},
		{"numeric string", "45.5", models.FloatPtr(45.5)},
		{"padded numeric string", " 10 ", models.FloatPtr(10)},
		{"text", "abc", nil},
		{"blank", "", nil},
		{"nan", math.NaN(), nil},
		{"inf", math.Inf(1), nil},
		{"bool", true, nil},
		{"object", map[string]interface{}{"a": 1}, nil},
		{"null", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Parse(map[string]interface{}{
				"household": map[string]interface{}{"income": tt.value},
			})
			assert.Equal(t, tt.want, m.Household.Income)
		})
	}
}

func TestParse_UnknownEnums(t *testing.T) {
	m := Parse(`{"household":{"type":"ROOMMATES"},"consent":{"status":"EXPIRED"}}`)
	assert.Nil(t, m.Household.Type)
	assert.Equal(t, models.ConsentNotRequested, m.Consent.Status)

	m = Parse(`{"consent":{"status":"signed"}}`)
	assert.Equal(t, models.ConsentSigned, m.Consent.Status)
}

func TestParse_PlanSelectionRequiresPlanID(t *testing.T) {
	m := Parse(`{"plan":{"selection":{"issuer":"X","premium":100},"results":"bogus"}}`)
	assert.Nil(t, m.Plan.Selection)
	assert.Nil(t, m.Plan.Results)

	m = Parse(`{"plan":{"selection":{"planId":"  "}}}`)
	assert.Nil(t, m.Plan.Selection)
}

const membersJSON = `{"members":[
  {"role":"PRIMARY","firstName":"Ana","lastName":"Ruiz","gender":"F","birthDate":"1990-01-01"},
  {"role":"SPOUSE","firstName":"Luis","lastName":"Ruiz","birthDate":"1989-01-01"},
  {"role":"COUSIN","firstName":"Eva","lastName":"Ruiz","gender":"F","birthDate":"2000-01-01"},
  "not a member"
]}`

func TestParse_DropsIncompleteMembers(t *testing.T) {
	m := Parse(membersJSON)
	require.Len(t, m.Members, 1)
	assert.Equal(t, "Ana", m.Members[0].FirstName)
}

func TestParseStrict_ReportsDroppedMembers(t *testing.T) {
	m, err := ParseStrict(membersJSON)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, commonerrors.ErrCorruptMetadata))
	assert.Len(t, m.Members, 1)

	_, err = ParseStrict(fullJSON)
	assert.NoError(t, err)
}

func TestCodec_StrictParseNeverFails(t *testing.T) {
	c := NewCodec(Policy{StrictMembers: true}, logger.NewTestLogger(t))
	m := c.Parse(membersJSON)
	assert.Len(t, m.Members, 1)
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{emptyJSON, fullJSON, membersJSON, `{"household":{"income":"12.5"}}`}
	for _, input := range inputs {
		first := Parse(input)
		raw, err := Serialize(first)
		require.NoError(t, err)
		assert.Equal(t, first, Parse(raw))
		assert.Equal(t, first, Parse(string(raw)))
		assert.Equal(t, first, Parse(json.RawMessage(raw)))
		assert.Equal(t, first, Parse(first))
		assert.Equal(t, first, Parse(&first))
	}
}
