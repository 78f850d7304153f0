// internal/models/metadata.go
package models

import (
	"encoding/json"
	"sort"
)

// MetadataVersion is the schema version written by the empty record.
const MetadataVersion = 1

// WizardMetadata is the lead's opaque metadata blob, fully shaped. Nullable
// fields are pointers and serialize as null.
type WizardMetadata struct {
	Version   int               `json:"version"`
	Wizard    WizardSection     `json:"wizard"`
	Household Household         `json:"household"`
	Members   []HouseholdMember `json:"members"`
	Plan      PlanSection       `json:"plan"`
	Consent   Consent           `json:"consent"`
}

// WizardSection keeps unknown keys in Extra so they survive a round trip.
type WizardSection struct {
	Step            *string                    `json:"step"`
	TermsAcceptedAt *string                    `json:"termsAcceptedAt"`
	Extra           map[string]json.RawMessage `json:"-"`
}

func (w WizardSection) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(w.Extra))
	for k := range w.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]interface{}, len(w.Extra)+2)
	for _, k := range keys {
		out[k] = w.Extra[k]
	}
	out["step"] = w.Step
	out["termsAcceptedAt"] = w.TermsAcceptedAt
	return json.Marshal(out)
}

type Household struct {
	Type          *HouseholdType `json:"type"`
	ZipCode       *string        `json:"zipCode"`
	CountyFips    *string        `json:"countyFips"`
	Income        *float64       `json:"income"`
	EffectiveDate *string        `json:"effectiveDate"`
	Size          *int           `json:"size"`
	UpdatedAt     *string        `json:"updatedAt"`
	StateID       *string        `json:"stateId"`
	StateName     *string        `json:"stateName"`
	CountyName    *string        `json:"countyName"`
}

type HouseholdMember struct {
	Role      HouseholdRole `json:"role"`
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	Gender    Gender        `json:"gender"`
	BirthDate string        `json:"birthDate"`
	Email     *string       `json:"email"`
	Phone     *string       `json:"phone"`
}

type PlanSection struct {
	Selection *PlanSelection `json:"selection"`
	Results   *PlanResults   `json:"results"`
}

// PlanSelection is the persisted choice. PlanID is always non-empty.
type PlanSelection struct {
	PlanID      string   `json:"planId"`
	Issuer      *string  `json:"issuer"`
	Premium     *float64 `json:"premium"`
	APTC        *float64 `json:"aptc"`
	Deductible  *float64 `json:"deductible"`
	MetalLevel  *string  `json:"metalLevel"`
	ProductType *string  `json:"productType"`
	Name        *string  `json:"name"`
}

type PlanResults struct {
	FetchedAt *string         `json:"fetchedAt"`
	Count     *int            `json:"count"`
	Filters   json.RawMessage `json:"filters"`
}

type Consent struct {
	SignatureEntryID *int64        `json:"signatureEntryId"`
	Status           ConsentStatus `json:"status"`
	RequestedAt      *string       `json:"requestedAt"`
	LastChecked      *string       `json:"lastChecked"`
	SignedAt         *string       `json:"signedAt"`
}

// PrimaryApplicant is the contact captured on the primary step.
type PrimaryApplicant struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Gender       Gender `json:"gender"`
	BirthDate    string `json:"birthDate"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	AcceptsTerms bool   `json:"acceptsTerms"`
}

// StringPtr and FloatPtr help build nullable fields.
func StringPtr(s string) *string { return &s }

func FloatPtr(f float64) *float64 { return &f }

func IntPtr(i int) *int { return &i }
