// Package plans lists insurance plans for a household, degrading to a
// locally estimated list when the marketplace cannot answer.
package plans

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math"
	"time"

	"lead-wizard/internal/common/database"
	commonerrors "lead-wizard/internal/common/errors"
	"lead-wizard/internal/common/graphql"
	"lead-wizard/internal/common/logger"
	"lead-wizard/internal/common/metrics"
	"lead-wizard/internal/models"
)

const (
	DefaultLimit  = 12
	DefaultMarket = "Individual"
)

type Config struct {
	Token    string
	Limit    int
	Market   string
	CacheTTL time.Duration
}

type Service struct {
	client graphql.Client
	cache  database.Cache
	config Config
	logger logger.Logger
	now    func() time.Time
}

type Option func(*Service)

// WithClock fixes the time used for ages and the effective date.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds the adapter. cache may be nil.
func NewService(client graphql.Client, cache database.Cache, cfg Config, log logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Market == "" {
		cfg.Market = DefaultMarket
	}
	s := &Service{client: client, cache: cache, config: cfg, logger: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now is the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

// FetchPlans returns the plans for a household. Marketplace failures never
// reach the caller; only a canceled context does.
func (s *Service) FetchPlans(ctx context.Context, facts HouseholdFacts, lang string) ([]models.Plan, error) {
	listing, err := s.Fetch(ctx, facts, lang)
	if err != nil {
		return nil, err
	}
	return listing.Plans, nil
}

// Fetch is FetchPlans with provenance.
func (s *Service) Fetch(ctx context.Context, facts HouseholdFacts, lang string) (*models.PlanListing, error) {
	now := s.now()

	people := buildPeople(facts.Members)
	if s.config.Token == "" || facts.ZipCode == "" || len(people) == 0 {
		metrics.PlanFetchFallbacks.WithLabelValues("skipped").Inc()
		return s.listing(BasePlans(lang), now, true), nil
	}

	vars := s.variables(facts, people, now)
	key := cacheKey(vars)

	var cached []models.Plan
	if s.lookupCache(ctx, key, &cached) && len(cached) > 0 {
		return s.listing(cached, now, false), nil
	}

	plans, err := s.query(ctx, vars)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return s.degrade(facts, lang, now, err), nil
	}
	if len(plans) == 0 {
		return s.degrade(facts, lang, now, errors.New("marketplace returned no plans")), nil
	}

	s.storeCache(ctx, key, plans)
	return s.listing(plans, now, false), nil
}

func (s *Service) variables(f HouseholdFacts, people []person, now time.Time) map[string]interface{} {
	effective := EffectiveDate(now)

	var countyFips, state interface{}
	if f.CountyFips != "" {
		countyFips = f.CountyFips
	}
	if f.StateID != "" {
		state = f.StateID
	}

	return map[string]interface{}{
		"token":            s.config.Token,
		"queryType":        string(models.QueryTypeSearchPlans),
		"year":             effective.Year(),
		"householdIncome":  int(math.Max(0, math.Round(f.Income))),
		"people":           people,
		"effectiveDate":    effective.Format("2006-01-02"),
		"hasMarriedCouple": false,
		"countyfips":       countyFips,
		"state":            state,
		"zipCode":          f.ZipCode,
		"market":           s.config.Market,
		"numberOfMembers":  f.MemberCount,
		"limit":            s.config.Limit,
		"offset":           0,
		"order":            "asc",
	}
}

func (s *Service) query(ctx context.Context, vars map[string]interface{}) ([]models.Plan, error) {
	var out struct {
		PublicMarketplace2 *string `json:"publicMarketplace2"`
	}
	if err := s.client.Query(ctx, marketplaceQuery, vars, &out); err != nil {
		return nil, errors.Join(ErrMarketplaceUnavailable, err)
	}
	if out.PublicMarketplace2 == nil {
		return decodeResponse("")
	}
	return decodeResponse(*out.PublicMarketplace2)
}

func (s *Service) degrade(f HouseholdFacts, lang string, now time.Time, cause error) *models.PlanListing {
	reason := "unavailable"
	switch {
	case errors.Is(cause, ErrMarketplaceValidation):
		reason = "validation"
	case errors.Is(cause, ErrMarketplaceApplication):
		reason = "application"
	case !errors.Is(cause, ErrMarketplaceUnavailable):
		reason = "empty"
	}
	metrics.PlanFetchFallbacks.WithLabelValues(reason).Inc()

	degraded := commonerrors.NewMarketplaceDegradedError(reason, cause)
	s.logger.Warn("Marketplace fetch fell back to estimated plans", map[string]interface{}{
		"reason":  reason,
		"zipCode": f.ZipCode,
		"error":   degraded.Details,
	})
	return s.listing(EstimatedPlans(f, lang), now, true)
}

func (s *Service) listing(plans []models.Plan, now time.Time, fallback bool) *models.PlanListing {
	return &models.PlanListing{
		Plans:     plans,
		FetchedAt: now.UTC().Format(time.RFC3339),
		Count:     len(plans),
		Fallback:  fallback,
	}
}

// cacheKey hashes the request without the token.
func cacheKey(vars map[string]interface{}) string {
	keyed := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		if k != "token" {
			keyed[k] = v
		}
	}
	raw, _ := json.Marshal(keyed)
	sum := sha256.Sum256(raw)
	return "plans:" + hex.EncodeToString(sum[:16])
}

func (s *Service) lookupCache(ctx context.Context, key string, dst interface{}) bool {
	if s.cache == nil || s.config.CacheTTL <= 0 {
		return false
	}
	found, err := s.cache.GetJSON(ctx, key, dst)
	if err != nil {
		s.logger.Debug("Plan cache read failed", map[string]interface{}{"key": key, "error": err})
		return false
	}
	result := "miss"
	if found {
		result = "hit"
	}
	metrics.CacheLookups.WithLabelValues("plans", result).Inc()
	return found
}

func (s *Service) storeCache(ctx context.Context, key string, plans []models.Plan) {
	if s.cache == nil || s.config.CacheTTL <= 0 {
		return
	}
	if err := s.cache.SetJSON(ctx, key, plans, s.config.CacheTTL); err != nil {
		s.logger.Debug("Plan cache write failed", map[string]interface{}{"key": key, "error": err})
	}
}
