package plans

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lead-wizard/internal/common/database"
	"lead-wizard/internal/common/graphql/graphqltest"
	"lead-wizard/internal/common/logger"
	"lead-wizard/internal/models"
)

var fixedNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, token string, cache database.Cache) (*Service, *graphqltest.MockClient) {
	client := &graphqltest.MockClient{}
	t.Cleanup(func() { client.AssertExpectations(t) })
	svc := NewService(client, cache, Config{Token: token, CacheTTL: time.Hour}, logger.NewTestLogger(t),
		WithClock(func() time.Time { return fixedNow }))
	return svc, client
}

func coupleFacts() HouseholdFacts {
	m := models.WizardMetadata{
		Household: models.Household{
			ZipCode:    models.StringPtr("33101"),
			CountyFips: models.StringPtr("12086"),
			StateID:    models.StringPtr("FL"),
			Income:     models.FloatPtr(45210.6),
		},
		Members: []models.HouseholdMember{
			{Role: models.RolePrimary, FirstName: "Ana", LastName: "Ruiz", Gender: models.GenderFemale, BirthDate: "1996-03-15"},
			{Role: models.RoleSpouse, FirstName: "Leo", LastName: "Ruiz", Gender: models.GenderMale, BirthDate: "1986-01-01"},
		},
	}
	return FactsFromMetadata(m, fixedNow)
}

func marketplaceAnswer(t *testing.T, payload string) string {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{"publicMarketplace2": payload})
	require.NoError(t, err)
	return string(raw)
}

func TestFactsFromMetadata(t *testing.T) {
	f := coupleFacts()

	assert.Equal(t, "33101", f.ZipCode)
	assert.Equal(t, 2, f.MemberCount)
	require.Len(t, f.Members, 2)
	assert.Equal(t, 30, *f.Members[0].Age)
	assert.True(t, f.Members[0].Female)
	assert.Equal(t, 40, *f.Members[1].Age)

	empty := FactsFromMetadata(models.WizardMetadata{}, fixedNow)
	assert.Equal(t, 1, empty.MemberCount)
}

func TestAgeOn(t *testing.T) {
	assert.Equal(t, 29, *AgeOn("1996-03-16", fixedNow))
	assert.Equal(t, 30, *AgeOn("1996-03-15T00:00:00Z", fixedNow))
	assert.Nil(t, AgeOn("15/03/1996", fixedNow))
	assert.Nil(t, AgeOn("", fixedNow))
}

func TestFetch_MissingInputsReturnBasePlans(t *testing.T) {
	tests := []struct {
		name  string
		token string
		facts HouseholdFacts
	}{
		{name: "no token", token: "", facts: coupleFacts()},
		{name: "no zip", token: "tok", facts: HouseholdFacts{MemberCount: 1, Members: []MemberFacts{{BirthDate: "1990-01-01"}}}},
		{name: "no priceable member", token: "tok", facts: HouseholdFacts{ZipCode: "33101", MemberCount: 1, Members: []MemberFacts{{}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, tt.token, nil)

			listing, err := svc.Fetch(context.Background(), tt.facts, "es")
			require.NoError(t, err)
			assert.True(t, listing.Fallback)
			require.Len(t, listing.Plans, 1)
			assert.Equal(t, "silver-plus", listing.Plans[0].ID)
			assert.Equal(t, 265.5, listing.Plans[0].MonthlyPremium)
			assert.Equal(t, "Consultas ilimitadas en red", listing.Plans[0].CoverageHighlights[0])
		})
	}
}

func TestFetch_MapsMarketplacePlans(t *testing.T) {
	svc, client := newTestService(t, "tok", nil)

	payload := `{"plans":[
		{"id":"P1","name":"Gold HMO","metal_level":"Gold","type":"HMO","issuer":{"name":"Ambetter"},
		 "premium":410.129,"premium_w_credit":120.456,
		 "deductibles_person":{"combined":{"amount":1500}},"deductibles":[{"amount":9}],
		 "moops":[{"amount":8700.004}],
		 "benefits":[{"name":"Primary care","covered":true},{"name":"Dental","covered":false},{"name":"","covered":true},{"name":"Urgent care","covered":true},{"name":"Labs","covered":true}]},
		{"id":"P2","name":"Basic","premium":99.999}
	]}`

	var vars map[string]interface{}
	client.On("Query", mock.Anything, marketplaceQuery, mock.Anything).
		Run(func(args mock.Arguments) { vars = graphqltest.Vars(args) }).
		Return(marketplaceAnswer(t, payload), nil).Once()

	plans, err := svc.FetchPlans(context.Background(), coupleFacts(), "en")
	require.NoError(t, err)
	require.Len(t, plans, 2)

	assert.Equal(t, models.Plan{
		ID:                 "P1",
		Name:               "Gold HMO",
		Carrier:            "Ambetter",
		MonthlyPremium:     120.46,
		Deductible:         1500,
		OutOfPocketMax:     8700,
		Summary:            "Gold level HMO plan offered by Ambetter.",
		CoverageHighlights: []string{"Primary care", "Urgent care"},
	}, plans[0])

	assert.Equal(t, "Unknown carrier", plans[1].Carrier)
	assert.Equal(t, 100.0, plans[1].MonthlyPremium)
	assert.Equal(t, "Marketplace plan offered by Unknown carrier.", plans[1].Summary)
	assert.Equal(t, []string{"Standard essential health benefits coverage."}, plans[1].CoverageHighlights)

	assert.Equal(t, "BUSCAR_PLANES", vars["queryType"])
	assert.Equal(t, 2026, vars["year"])
	assert.Equal(t, "2026-04-01", vars["effectiveDate"])
	assert.Equal(t, 45211, vars["householdIncome"])
	assert.Equal(t, "12086", vars["countyfips"])
	assert.Equal(t, "FL", vars["state"])
	assert.Equal(t, "Individual", vars["market"])
	assert.Equal(t, 12, vars["limit"])
	assert.Equal(t, 2, vars["numberOfMembers"])
	people := vars["people"].([]person)
	require.Len(t, people, 2)
	assert.Equal(t, "Female", people[0].Gender)
	assert.Equal(t, "Self", people[0].Relationship)
	assert.Equal(t, "Male", people[1].Gender)
	assert.Equal(t, "Other Relationship", people[1].Relationship)
}

func TestFetch_FallbackIsDeterministic(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
	}{
		{name: "network error", err: errors.New("dial tcp: connection refused")},
		{name: "validation errors", response: `{"validation_errors":[{"error":"invalid county"}]}`},
		{name: "application error", response: `{"error":{"message":"upstream timeout"}}`},
		{name: "empty payload", response: ""},
		{name: "no plans", response: `{"plans":[]}`},
		{name: "malformed payload", response: `{"plans":"nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, client := newTestService(t, "tok", nil)
			call := client.On("Query", mock.Anything, marketplaceQuery, mock.Anything).Once()
			if tt.err != nil {
				call.Return("", tt.err)
			} else {
				call.Return(marketplaceAnswer(t, tt.response), nil)
			}

			listing, err := svc.Fetch(context.Background(), coupleFacts(), "es")
			require.NoError(t, err)
			assert.True(t, listing.Fallback)
			require.Len(t, listing.Plans, 1)
			// factor = 2 members + (30+40)/120
			assert.Equal(t, 297.53, listing.Plans[0].MonthlyPremium)
			assert.Equal(t, 1, listing.Count)
		})
	}
}

func TestFetch_CanceledContextIsReturned(t *testing.T) {
	svc, client := newTestService(t, "tok", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client.On("Query", mock.Anything, marketplaceQuery, mock.Anything).Return("", context.Canceled).Once()

	_, err := svc.Fetch(ctx, coupleFacts(), "es")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetch_UsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc, client := newTestService(t, "tok", database.NewRedisFromClient(rdb, "test:"))
	client.On("Query", mock.Anything, marketplaceQuery, mock.Anything).
		Return(marketplaceAnswer(t, `{"plans":[{"id":"P1","name":"Gold"}]}`), nil).Once()

	first, err := svc.Fetch(context.Background(), coupleFacts(), "es")
	require.NoError(t, err)
	second, err := svc.Fetch(context.Background(), coupleFacts(), "es")
	require.NoError(t, err)

	assert.False(t, second.Fallback)
	assert.Equal(t, first.Plans, second.Plans)
	assert.Len(t, mr.Keys(), 1)
}

func TestDecodeResponse_Classifies(t *testing.T) {
	_, err := decodeResponse(`{"validation_errors":[{"error":"bad zip"},{"error":"bad age"}]}`)
	assert.ErrorIs(t, err, ErrMarketplaceValidation)
	assert.Contains(t, err.Error(), "bad zip, bad age")

	_, err = decodeResponse(`{"error":{"message":"quota exceeded"}}`)
	assert.ErrorIs(t, err, ErrMarketplaceApplication)

	_, err = decodeResponse(`not json`)
	assert.ErrorIs(t, err, ErrMarketplaceUnavailable)
}

func TestEstimatedPlans(t *testing.T) {
	age := 30
	single := HouseholdFacts{MemberCount: 1, Members: []MemberFacts{{Age: &age}}}

	en := EstimatedPlans(single, "en")
	require.Len(t, en, 1)
	assert.Equal(t, 281.0, en[0].MonthlyPremium)
	assert.Equal(t, "24/7 telemedicine access", en[0].CoverageHighlights[2])

	// base list is not mutated
	en[0].CoverageHighlights[0] = "changed"
	assert.Equal(t, "Unlimited in-network visits", BasePlans("en")[0].CoverageHighlights[0])
}
