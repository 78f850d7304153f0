package plans

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"lead-wizard/internal/common/validation"
	"lead-wizard/internal/models"
)

const marketplaceQuery = `
query PublicMarketplace2(
  $token: String!
  $queryType: MarketplaceEnum!
  $year: Int!
  $householdIncome: Int
  $people: [PersonInput]
  $effectiveDate: String
  $hasMarriedCouple: Boolean
  $countyfips: String
  $state: String
  $zipCode: String
  $market: String
  $numberOfMembers: Int
  $limit: Int
  $offset: Int
  $order: String
) {
  publicMarketplace2(
    token: $token
    queryType: $queryType
    year: $year
    householdIncome: $householdIncome
    people: $people
    effectiveDate: $effectiveDate
    hasMarriedCouple: $hasMarriedCouple
    countyfips: $countyfips
    state: $state
    zipCode: $zipCode
    market: $market
    numberOfMembers: $numberOfMembers
    limit: $limit
    offset: $offset
    order: $order
  )
}`

// Classified marketplace failures. All of them degrade to the estimated list.
var (
	ErrMarketplaceValidation  = errors.New("marketplace validation error")
	ErrMarketplaceApplication = errors.New("marketplace application error")
	ErrMarketplaceUnavailable = errors.New("marketplace unavailable")
)

type person struct {
	Age               *int   `json:"age,omitempty"`
	DOB               string `json:"dob,omitempty"`
	Gender            string `json:"gender"`
	IsPregnant        bool   `json:"isPregnant"`
	PregnantWith      int    `json:"pregnantWith"`
	IsParent          bool   `json:"isParent"`
	UsesTobacco       bool   `json:"usesTobacco"`
	HasMec            bool   `json:"hasMec"`
	AptcEligible      bool   `json:"aptcEligible"`
	UtilizationLevel  string `json:"utilizationLevel"`
	Relationship      string `json:"relationship"`
	DoesNotCohabitate bool   `json:"doesNotCohabitate"`
}

// buildPeople keeps only members the marketplace can price.
func buildPeople(members []MemberFacts) []person {
	out := make([]person, 0, len(members))
	for i, m := range members {
		if m.Age == nil && m.BirthDate == "" {
			continue
		}
		p := person{
			Age:              m.Age,
			DOB:              m.BirthDate,
			Gender:           "Male",
			AptcEligible:     true,
			UtilizationLevel: "Low",
			Relationship:     "Other Relationship",
		}
		if m.Female {
			p.Gender = "Female"
		}
		if i == 0 {
			p.Relationship = "Self"
		}
		out = append(out, p)
	}
	return out
}

type marketplaceResponse struct {
	Plans            []marketplacePlan `json:"plans"`
	ValidationErrors []struct {
		Error string `json:"error"`
	} `json:"validation_errors"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type amount struct {
	Amount *float64 `json:"amount"`
}

type marketplacePlan struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	MetalLevel string `json:"metal_level"`
	Type       string `json:"type"`
	Issuer     *struct {
		Name *string `json:"name"`
	} `json:"issuer"`
	Premium           *float64 `json:"premium"`
	PremiumWithCredit *float64 `json:"premium_w_credit"`
	Deductibles       []amount `json:"deductibles"`
	DeductiblesPerson *struct {
		Combined *amount `json:"combined"`
	} `json:"deductibles_person"`
	Moops       []amount `json:"moops"`
	MoopsPerson *amount  `json:"moops_person"`
	Benefits    []struct {
		Name    string `json:"name"`
		Covered bool   `json:"covered"`
	} `json:"benefits"`
}

var responseSchema = validation.MustCompileSchema(map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"plans": map[string]interface{}{
			"type": []interface{}{"array", "null"},
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"id"},
				"properties": map[string]interface{}{
					"id":   map[string]interface{}{"type": "string", "minLength": 1},
					"name": map[string]interface{}{"type": []interface{}{"string", "null"}},
				},
			},
		},
		"validation_errors": map[string]interface{}{"type": []interface{}{"array", "null"}},
		"error":             map[string]interface{}{"type": []interface{}{"object", "null"}},
	},
})

// decodeResponse parses the JSON string the marketplace returns and
// classifies failures.
func decodeResponse(raw string) ([]models.Plan, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty marketplace response", ErrMarketplaceUnavailable)
	}

	result, err := responseSchema.ValidateJSON([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMarketplaceUnavailable, err)
	}
	if !result.Valid {
		return nil, fmt.Errorf("%w: malformed payload: %s", ErrMarketplaceUnavailable, result.Errors[0].Message)
	}

	var resp marketplaceResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMarketplaceUnavailable, err)
	}

	if len(resp.ValidationErrors) > 0 {
		msgs := make([]string, 0, len(resp.ValidationErrors))
		for _, ve := range resp.ValidationErrors {
			if ve.Error != "" {
				msgs = append(msgs, ve.Error)
			}
		}
		if len(msgs) == 0 {
			return nil, ErrMarketplaceValidation
		}
		return nil, fmt.Errorf("%w: %s", ErrMarketplaceValidation, strings.Join(msgs, ", "))
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return nil, fmt.Errorf("%w: %s", ErrMarketplaceApplication, resp.Error.Message)
	}

	out := make([]models.Plan, 0, len(resp.Plans))
	for _, p := range resp.Plans {
		out = append(out, mapPlan(p))
	}
	return out, nil
}

func mapPlan(p marketplacePlan) models.Plan {
	carrier := "Unknown carrier"
	if p.Issuer != nil && p.Issuer.Name != nil {
		carrier = *p.Issuer.Name
	}

	premium := firstAmount(p.PremiumWithCredit, p.Premium)

	var deductible float64
	switch {
	case p.DeductiblesPerson != nil && p.DeductiblesPerson.Combined != nil && p.DeductiblesPerson.Combined.Amount != nil:
		deductible = *p.DeductiblesPerson.Combined.Amount
	case len(p.Deductibles) > 0:
		deductible = firstAmount(p.Deductibles[0].Amount)
	}

	var oop float64
	switch {
	case p.MoopsPerson != nil && p.MoopsPerson.Amount != nil:
		oop = *p.MoopsPerson.Amount
	case len(p.Moops) > 0:
		oop = firstAmount(p.Moops[0].Amount)
	}

	var highlights []string
	covered := 0
	for _, b := range p.Benefits {
		if !b.Covered {
			continue
		}
		if covered++; covered > 3 {
			break
		}
		if strings.TrimSpace(b.Name) != "" {
			highlights = append(highlights, b.Name)
		}
	}
	if len(highlights) == 0 {
		highlights = []string{"Standard essential health benefits coverage."}
	}

	var parts []string
	if p.MetalLevel != "" {
		parts = append(parts, p.MetalLevel+" level")
	}
	if p.Type != "" {
		parts = append(parts, p.Type+" plan")
	}
	summary := "Marketplace plan"
	if len(parts) > 0 {
		summary = strings.Join(parts, " ")
	}

	return models.Plan{
		ID:                 p.ID,
		Name:               p.Name,
		Carrier:            carrier,
		MonthlyPremium:     roundCurrency(premium),
		Deductible:         roundCurrency(deductible),
		OutOfPocketMax:     roundCurrency(oop),
		Summary:            fmt.Sprintf("%s offered by %s.", summary, carrier),
		CoverageHighlights: highlights,
	}
}

func firstAmount(values ...*float64) float64 {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}
