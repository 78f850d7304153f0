package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "lead-wizard/internal/common/errors"
	"lead-wizard/internal/models"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fields(errs []commonerrors.FieldError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func validPrimary() models.PrimaryApplicant {
	return models.PrimaryApplicant{
		FirstName: "Ana", LastName: "Ruiz", Gender: models.GenderFemale, BirthDate: "1990-04-02",
		Phone: "+1 305 555 0100", Email: "ana@example.com", AcceptsTerms: true,
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Enter a valid zip code.", Message("en", MsgZipCode))
	assert.Equal(t, "Ingresá un código postal válido.", Message("es", MsgZipCode))
	assert.Equal(t, Message("es", MsgIncome), Message("de", MsgIncome))
	assert.Equal(t, "unknownKey", Message("en", "unknownKey"))
}

func TestValidateBasics(t *testing.T) {
	assert.Empty(t, ValidateBasics("10001", 3000, "es"))
	assert.Equal(t, []string{"zipCode", "income"}, fields(ValidateBasics("1000", 0, "es")))
	assert.Equal(t, []string{"zipCode"}, fields(ValidateBasics("1000a", 10, "en")))
	assert.Equal(t, []string{"income"}, fields(ValidateBasics("10001", -5, "en")))
}

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "10001", DigitsOnly("10-001 "))
	assert.Equal(t, "", DigitsOnly("abc"))
}

func TestValidatePrimary(t *testing.T) {
	assert.Empty(t, ValidatePrimary(validPrimary(), "es", now))

	tests := []struct {
		name   string
		mutate func(*models.PrimaryApplicant)
		field  string
	}{
		{"missing first name", func(p *models.PrimaryApplicant) { p.FirstName = " " }, "firstName"},
		{"missing last name", func(p *models.PrimaryApplicant) { p.LastName = "" }, "lastName"},
		{"bad gender", func(p *models.PrimaryApplicant) { p.Gender = "Q" }, "gender"},
		{"future birth date", func(p *models.PrimaryApplicant) { p.BirthDate = "2030-01-01" }, "birthDate"},
		{"unparseable birth date", func(p *models.PrimaryApplicant) { p.BirthDate = "01/02/1990" }, "birthDate"},
		{"short phone", func(p *models.PrimaryApplicant) { p.Phone = "123" }, "phone"},
		{"bad email", func(p *models.PrimaryApplicant) { p.Email = "ana@localhost" }, "email"},
		{"terms", func(p *models.PrimaryApplicant) { p.AcceptsTerms = false }, "acceptsTerms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPrimary()
			tt.mutate(&p)
			assert.Equal(t, []string{tt.field}, fields(ValidatePrimary(p, "en", now)))
		})
	}
}

func member(role models.HouseholdRole) models.HouseholdMember {
	return models.HouseholdMember{Role: role, FirstName: "Luis", LastName: "Ruiz", Gender: models.GenderMale, BirthDate: "2012-05-05"}
}

func TestValidateMembers(t *testing.T) {
	spouse := member(models.RoleSpouse)
	dependent := member(models.RoleDependent)

	assert.Empty(t, ValidateMembers(models.HouseholdCouple, []models.HouseholdMember{spouse}, "es", now))
	assert.Empty(t, ValidateMembers(models.HouseholdFamily, []models.HouseholdMember{dependent}, "es", now))
	assert.Empty(t, ValidateMembers(models.HouseholdFamily, []models.HouseholdMember{spouse, dependent, dependent}, "es", now))

	assert.Equal(t, []string{"members"}, fields(ValidateMembers(models.HouseholdCouple, nil, "es", now)))
	assert.Equal(t, []string{"members"}, fields(ValidateMembers(models.HouseholdCouple, []models.HouseholdMember{spouse, dependent}, "es", now)))
	assert.Equal(t, []string{"members"}, fields(ValidateMembers(models.HouseholdFamily, []models.HouseholdMember{spouse}, "es", now)))

	primary := member(models.RolePrimary)
	primary.BirthDate = ""
	got := fields(ValidateMembers(models.HouseholdFamily, []models.HouseholdMember{primary, dependent}, "en", now))
	assert.Equal(t, []string{"members[0].role", "members[0].birthDate"}, got)
}

var planPayloadSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"plans": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"id"},
			},
		},
	},
}

func TestSchema_Validate(t *testing.T) {
	s, err := CompileSchema(planPayloadSchema)
	require.NoError(t, err)

	res, err := s.ValidateJSON([]byte(`{"plans":[{"id":"a"}]}`))
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = s.Validate(map[string]interface{}{"plans": []interface{}{map[string]interface{}{"name": "x"}}})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "required", res.Errors[0].Code)

	_, err = s.ValidateJSON([]byte(`{not json`))
	assert.Error(t, err)
}

func TestCompileSchema_Invalid(t *testing.T) {
	_, err := CompileSchema(map[string]interface{}{"type": "bogus"})
	assert.Error(t, err)
	assert.Panics(t, func() { MustCompileSchema(map[string]interface{}{"type": "bogus"}) })
}
