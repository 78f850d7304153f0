package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	commonerrors "lead-wizard/internal/common/errors"
	"lead-wizard/internal/models"
)

var (
	zipPattern   = regexp.MustCompile(`^\d{5}$`)
	phoneDigits  = regexp.MustCompile(`\d`)
	nonDigits    = regexp.MustCompile(`\D`)
	birthDateFmt = "2006-01-02"
)

// Message keys.
const (
	MsgZipCode       = "zipCode"
	MsgIncome        = "income"
	MsgName          = "name"
	MsgBirthDate     = "birthDate"
	MsgPhone         = "phone"
	MsgEmail         = "email"
	MsgGender        = "gender"
	MsgTerms         = "terms"
	MsgHouseholdType = "householdType"
	MsgCounty        = "county"
	MsgSpouse        = "spouse"
	MsgDependent     = "dependent"
	MsgMemberRole    = "memberRole"
	MsgPlan          = "plan"
)

var catalog = map[string]map[string]string{
	"es": {
		MsgZipCode:       "Ingresá un código postal válido.",
		MsgIncome:        "Ingresá un ingreso familiar mensual mayor a cero.",
		MsgName:          "Completá el nombre y apellido del responsable del hogar.",
		MsgBirthDate:     "Ingresá la fecha de nacimiento.",
		MsgPhone:         "Ingresá un número de celular.",
		MsgEmail:         "Ingresá un correo electrónico válido.",
		MsgGender:        "Seleccioná un género.",
		MsgTerms:         "Debés aceptar los términos y condiciones.",
		MsgHouseholdType: "Seleccioná un tipo de hogar.",
		MsgCounty:        "Seleccioná un condado válido para el código postal.",
		MsgSpouse:        "Agregá exactamente un cónyuge.",
		MsgDependent:     "Agregá al menos un dependiente.",
		MsgMemberRole:    "Cada integrante debe ser cónyuge o dependiente.",
		MsgPlan:          "Seleccioná un plan de la lista.",
	},
	"en": {
		MsgZipCode:       "Enter a valid zip code.",
		MsgIncome:        "Enter a monthly household income greater than zero.",
		MsgName:          "Please fill in the household primary contact's first and last name.",
		MsgBirthDate:     "Enter a date of birth.",
		MsgPhone:         "Enter a cell phone number.",
		MsgEmail:         "Enter a valid email address.",
		MsgGender:        "Select a gender.",
		MsgTerms:         "You must accept the terms and conditions.",
		MsgHouseholdType: "Select a household type.",
		MsgCounty:        "Select a valid county for the zip code.",
		MsgSpouse:        "Add exactly one spouse.",
		MsgDependent:     "Add at least one dependent.",
		MsgMemberRole:    "Each member must be a spouse or a dependent.",
		MsgPlan:          "Select a plan from the list.",
	},
}

// Message returns the localized text for key; unknown languages use Spanish.
func Message(lang, key string) string {
	msgs, ok := catalog[strings.ToLower(lang)]
	if !ok {
		msgs = catalog["es"]
	}
	if msg, ok := msgs[key]; ok {
		return msg
	}
	return key
}

func fieldError(lang, field, key string) commonerrors.FieldError {
	return commonerrors.FieldError{Field: field, Message: Message(lang, key)}
}

// DigitsOnly strips everything but digits, as zip and income inputs do.
func DigitsOnly(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}

func IsValidZip(zip string) bool {
	return zipPattern.MatchString(zip)
}

// ValidBirthDate accepts YYYY-MM-DD dates that are not in the future.
func ValidBirthDate(s string, now time.Time) bool {
	d, err := time.Parse(birthDateFmt, strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return !d.After(now)
}

func ValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return false
	}
	domain := parts[1]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

// ValidPhone requires at least seven digits.
func ValidPhone(phone string) bool {
	return len(phoneDigits.FindAllString(phone, -1)) >= 7
}

// ValidateBasics checks the household basics form.
func ValidateBasics(zip string, income float64, lang string) []commonerrors.FieldError {
	var errs []commonerrors.FieldError
	if !IsValidZip(zip) {
		errs = append(errs, fieldError(lang, "zipCode", MsgZipCode))
	}
	if !(income > 0) {
		errs = append(errs, fieldError(lang, "income", MsgIncome))
	}
	return errs
}

// ValidatePrimary checks the primary applicant form.
func ValidatePrimary(p models.PrimaryApplicant, lang string, now time.Time) []commonerrors.FieldError {
	var errs []commonerrors.FieldError
	if strings.TrimSpace(p.FirstName) == "" {
		errs = append(errs, fieldError(lang, "firstName", MsgName))
	}
	if strings.TrimSpace(p.LastName) == "" {
		errs = append(errs, fieldError(lang, "lastName", MsgName))
	}
	if !p.Gender.Valid() {
		errs = append(errs, fieldError(lang, "gender", MsgGender))
	}
	if !ValidBirthDate(p.BirthDate, now) {
		errs = append(errs, fieldError(lang, "birthDate", MsgBirthDate))
	}
	if !ValidPhone(p.Phone) {
		errs = append(errs, fieldError(lang, "phone", MsgPhone))
	}
	if !ValidEmail(p.Email) {
		errs = append(errs, fieldError(lang, "email", MsgEmail))
	}
	if !p.AcceptsTerms {
		errs = append(errs, fieldError(lang, "acceptsTerms", MsgTerms))
	}
	return errs
}

// ValidateMembers checks the additional members against the household type.
// The primary applicant is not part of members.
func ValidateMembers(t models.HouseholdType, members []models.HouseholdMember, lang string, now time.Time) []commonerrors.FieldError {
	var errs []commonerrors.FieldError
	spouses, dependents := 0, 0
	for i, m := range members {
		prefix := fmt.Sprintf("members[%d].", i)
		switch m.Role {
		case models.RoleSpouse:
			spouses++
		case models.RoleDependent:
			dependents++
		default:
			errs = append(errs, fieldError(lang, prefix+"role", MsgMemberRole))
		}
		if strings.TrimSpace(m.FirstName) == "" || strings.TrimSpace(m.LastName) == "" {
			errs = append(errs, fieldError(lang, prefix+"name", MsgName))
		}
		if !m.Gender.Valid() {
			errs = append(errs, fieldError(lang, prefix+"gender", MsgGender))
		}
		if !ValidBirthDate(m.BirthDate, now) {
			errs = append(errs, fieldError(lang, prefix+"birthDate", MsgBirthDate))
		}
	}

	switch t {
	case models.HouseholdCouple:
		if spouses != 1 || dependents != 0 {
			errs = append(errs, fieldError(lang, "members", MsgSpouse))
		}
	case models.HouseholdFamily:
		if spouses > 1 {
			errs = append(errs, fieldError(lang, "members", MsgSpouse))
		}
		if dependents < 1 {
			errs = append(errs, fieldError(lang, "members", MsgDependent))
		}
	}
	return errs
}
