package metadata

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"lead-wizard/internal/models"
)

// normalize merges payload over the empty record and returns how many members
// were dropped.
func normalize(payload map[string]interface{}) (models.WizardMetadata, int) {
	m := Empty()

	if _, isString := payload["version"].(string); !isString {
		if v, ok := toFiniteNumber(payload["version"]); ok {
			m.Version = int(v)
		}
	}

	if wizard, ok := payload["wizard"].(map[string]interface{}); ok {
		m.Wizard = normalizeWizard(wizard, m.Wizard)
	}
	if household, ok := payload["household"].(map[string]interface{}); ok {
		m.Household = normalizeHousehold(household)
	}

	dropped := 0
	if list, ok := payload["members"].([]interface{}); ok {
		for _, item := range list {
			raw, ok := item.(map[string]interface{})
			if !ok {
				dropped++
				continue
			}
			member, ok := normalizeMember(raw)
			if !ok {
				dropped++
				continue
			}
			m.Members = append(m.Members, member)
		}
	}

	if plan, ok := payload["plan"].(map[string]interface{}); ok {
		m.Plan.Selection = normalizePlanSelection(plan["selection"])
		m.Plan.Results = normalizePlanResults(plan["results"])
	}

	if consent, ok := payload["consent"].(map[string]interface{}); ok {
		m.Consent = normalizeConsent(consent)
	}

	return m, dropped
}

func normalizeWizard(raw map[string]interface{}, base models.WizardSection) models.WizardSection {
	w := base
	if v, ok := raw["step"]; ok {
		w.Step = toStringOrNull(v)
	}
	if v, ok := raw["termsAcceptedAt"]; ok {
		w.TermsAcceptedAt = toStringOrNull(v)
	}
	for k, v := range raw {
		if k == "step" || k == "termsAcceptedAt" {
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		if w.Extra == nil {
			w.Extra = make(map[string]json.RawMessage)
		}
		w.Extra[k] = b
	}
	return w
}

func normalizeHousehold(raw map[string]interface{}) models.Household {
	var h models.Household
	if s := toStringOrNull(raw["type"]); s != nil {
		if t, ok := models.ParseHouseholdType(*s); ok {
			h.Type = &t
		}
	}
	h.ZipCode = toStringOrNull(raw["zipCode"])
	h.CountyFips = toStringOrNull(raw["countyFips"])
	h.Income = toNumberOrNull(raw["income"])
	h.EffectiveDate = toStringOrNull(raw["effectiveDate"])
	h.Size = toIntOrNull(raw["size"])
	h.UpdatedAt = toStringOrNull(raw["updatedAt"])
	h.StateID = toStringOrNull(raw["stateId"])
	h.StateName = toStringOrNull(raw["stateName"])
	h.CountyName = toStringOrNull(raw["countyName"])
	return h
}

func normalizeMember(raw map[string]interface{}) (models.HouseholdMember, bool) {
	role := toUpperString(raw["role"])
	firstName := toStringOrNull(raw["firstName"])
	lastName := toStringOrNull(raw["lastName"])
	gender := toUpperString(raw["gender"])
	birthDate := toStringOrNull(raw["birthDate"])

	if role == nil || firstName == nil || lastName == nil || gender == nil || birthDate == nil {
		return models.HouseholdMember{}, false
	}
	member := models.HouseholdMember{
		Role:      models.HouseholdRole(*role),
		FirstName: *firstName,
		LastName:  *lastName,
		Gender:    models.Gender(*gender),
		BirthDate: *birthDate,
		Email:     toStringOrNull(raw["email"]),
		Phone:     toStringOrNull(raw["phone"]),
	}
	if !member.Role.Valid() || !member.Gender.Valid() {
		return models.HouseholdMember{}, false
	}
	return member, true
}

func normalizePlanSelection(value interface{}) *models.PlanSelection {
	raw, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	planID := toStringOrNull(raw["planId"])
	if planID == nil {
		return nil
	}
	return &models.PlanSelection{
		PlanID:      *planID,
		Issuer:      toStringOrNull(raw["issuer"]),
		Premium:     toNumberOrNull(raw["premium"]),
		APTC:        toNumberOrNull(raw["aptc"]),
		Deductible:  toNumberOrNull(raw["deductible"]),
		MetalLevel:  toStringOrNull(raw["metalLevel"]),
		ProductType: toStringOrNull(raw["productType"]),
		Name:        toStringOrNull(raw["name"]),
	}
}

func normalizePlanResults(value interface{}) *models.PlanResults {
	raw, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	results := &models.PlanResults{
		FetchedAt: toStringOrNull(raw["fetchedAt"]),
		Count:     toIntOrNull(raw["count"]),
	}
	if filters, ok := raw["filters"]; ok && filters != nil {
		if b, err := json.Marshal(filters); err == nil {
			results.Filters = b
		}
	}
	return results
}

func normalizeConsent(raw map[string]interface{}) models.Consent {
	c := models.Consent{Status: models.ConsentNotRequested}
	if v, ok := toFiniteNumber(raw["signatureEntryId"]); ok && v == math.Trunc(v) {
		id := int64(v)
		c.SignatureEntryID = &id
	}
	if s := toStringOrNull(raw["status"]); s != nil {
		c.Status = models.ParseConsentStatus(*s)
	}
	c.RequestedAt = toStringOrNull(raw["requestedAt"])
	c.LastChecked = toStringOrNull(raw["lastChecked"])
	c.SignedAt = toStringOrNull(raw["signedAt"])
	return c
}

// toStringOrNull stringifies scalars and trims them; blank becomes nil.
// Objects and arrays are not strings.
func toStringOrNull(value interface{}) *string {
	var s string
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		s = v
	case json.Number:
		s = v.String()
	case bool:
		s = strconv.FormatBool(v)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case float32, int, int32, int64, uint, uint32, uint64:
		s = fmt.Sprint(v)
	default:
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func toUpperString(value interface{}) *string {
	s := toStringOrNull(value)
	if s == nil {
		return nil
	}
	upper := strings.ToUpper(*s)
	return &upper
}

// toFiniteNumber accepts numeric values and numeric strings. NaN, infinities,
// blanks and everything else are rejected.
func toFiniteNumber(value interface{}) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toNumberOrNull(value interface{}) *float64 {
	f, ok := toFiniteNumber(value)
	if !ok {
		return nil
	}
	return &f
}

// toIntOrNull accepts only integral finite numbers.
func toIntOrNull(value interface{}) *int {
	f, ok := toFiniteNumber(value)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return nil
	}
	i := int(f)
	return &i
}
