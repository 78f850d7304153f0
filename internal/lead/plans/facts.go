package plans

import (
	"strings"
	"time"

	"lead-wizard/internal/models"
)

// HouseholdFacts is what the marketplace needs to price a household.
type HouseholdFacts struct {
	ZipCode    string
	CountyFips string
	StateID    string
	Income     float64
	// MemberCount is at least 1 even when no member is known yet.
	MemberCount int
	Members     []MemberFacts
}

type MemberFacts struct {
	Age       *int
	BirthDate string
	Female    bool
}

// FactsFromMetadata derives pricing facts from the lead record. Ages are
// computed against now.
func FactsFromMetadata(m models.WizardMetadata, now time.Time) HouseholdFacts {
	f := HouseholdFacts{
		ZipCode:    deref(m.Household.ZipCode),
		CountyFips: deref(m.Household.CountyFips),
		StateID:    deref(m.Household.StateID),
	}
	if m.Household.Income != nil {
		f.Income = *m.Household.Income
	}

	for _, member := range m.Members {
		f.Members = append(f.Members, MemberFacts{
			Age:       AgeOn(member.BirthDate, now),
			BirthDate: member.BirthDate,
			Female:    member.Gender == models.GenderFemale,
		})
	}

	f.MemberCount = len(f.Members)
	if f.MemberCount == 0 {
		f.MemberCount = 1
	}
	return f
}

// AgeOn returns full years between a YYYY-MM-DD birth date and now, or nil
// when the date does not parse.
func AgeOn(birthDate string, now time.Time) *int {
	birthDate = strings.TrimSpace(birthDate)
	if len(birthDate) > 10 {
		birthDate = birthDate[:10]
	}
	born, err := time.Parse("2006-01-02", birthDate)
	if err != nil {
		return nil
	}

	age := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		age--
	}
	return &age
}

// EffectiveDate is the first day of the month after now.
func EffectiveDate(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
