// Package zipcode resolves US zip codes to state and county records.
package zipcode

import (
	"context"
	"strings"
	"time"

	"lead-wizard/internal/common/database"
	commonerrors "lead-wizard/internal/common/errors"
	"lead-wizard/internal/common/graphql"
	"lead-wizard/internal/common/logger"
	"lead-wizard/internal/common/metrics"
	"lead-wizard/internal/common/validation"
	"lead-wizard/internal/models"
)

const (
	// MinSuggestionPrefix is the shortest prefix that triggers suggestions.
	MinSuggestionPrefix = 3
	DefaultLimit        = 5
)

type Config struct {
	Token           string
	CacheTTL        time.Duration
	SuggestionLimit int
}

type Service struct {
	client graphql.Client
	cache  database.Cache
	config Config
	logger logger.Logger
}

// NewService builds the lookup. cache may be nil.
func NewService(client graphql.Client, cache database.Cache, cfg Config, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if cfg.SuggestionLimit <= 0 {
		cfg.SuggestionLimit = DefaultLimit
	}
	return &Service{client: client, cache: cache, config: cfg, logger: log}
}

// ByZip returns the record for a 5-digit zip, or nil when the zip is unknown.
func (s *Service) ByZip(ctx context.Context, zip string) (*models.ZipcodeRecord, error) {
	zip = strings.TrimSpace(zip)
	if !validation.IsValidZip(zip) {
		return nil, nil
	}

	cacheKey := "zipcode:" + zip
	var cached models.ZipcodeRecord
	if s.lookupCache(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	var out struct {
		PublicZipcodeByZip *models.ZipcodeRecord `json:"publicZipcodeByZip"`
	}
	vars := map[string]interface{}{"zipCode": zip, "token": s.config.Token}
	if err := s.client.Query(ctx, byZipQuery, vars, &out); err != nil {
		s.logger.Warn("Zipcode lookup failed", map[string]interface{}{
			"zipCode": zip,
			"error":   err,
		})
		return nil, commonerrors.NewTransportError("ZipcodeByZip", err)
	}
	if out.PublicZipcodeByZip == nil {
		return nil, nil
	}

	s.storeCache(ctx, cacheKey, out.PublicZipcodeByZip)
	return out.PublicZipcodeByZip, nil
}

// Suggestions returns up to limit zips starting with prefix. Non-digits are
// stripped; prefixes shorter than three digits yield nothing.
func (s *Service) Suggestions(ctx context.Context, prefix string, limit int) ([]models.ZipcodeSuggestion, error) {
	prefix = validation.DigitsOnly(prefix)
	if len(prefix) < MinSuggestionPrefix {
		return []models.ZipcodeSuggestion{}, nil
	}
	if len(prefix) > 5 {
		prefix = prefix[:5]
	}
	if limit <= 0 {
		limit = s.config.SuggestionLimit
	}

	var out struct {
		PublicZipcodeSuggestions []models.ZipcodeSuggestion `json:"publicZipcodeSuggestions"`
	}
	vars := map[string]interface{}{"prefix": prefix, "token": s.config.Token, "limit": limit}
	if err := s.client.Query(ctx, suggestionsQuery, vars, &out); err != nil {
		s.logger.Warn("Zipcode suggestions failed", map[string]interface{}{
			"prefix": prefix,
			"error":  err,
		})
		return nil, commonerrors.NewTransportError("ZipcodeSuggestions", err)
	}
	if out.PublicZipcodeSuggestions == nil {
		return []models.ZipcodeSuggestion{}, nil
	}
	return out.PublicZipcodeSuggestions, nil
}

func (s *Service) lookupCache(ctx context.Context, key string, dst interface{}) bool {
	if s.cache == nil || s.config.CacheTTL <= 0 {
		return false
	}
	found, err := s.cache.GetJSON(ctx, key, dst)
	if err != nil {
		s.logger.Debug("Zipcode cache read failed", map[string]interface{}{"key": key, "error": err})
		return false
	}
	result := "miss"
	if found {
		result = "hit"
	}
	metrics.CacheLookups.WithLabelValues("zipcode", result).Inc()
	return found
}

func (s *Service) storeCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil || s.config.CacheTTL <= 0 {
		return
	}
	if err := s.cache.SetJSON(ctx, key, value, s.config.CacheTTL); err != nil {
		s.logger.Debug("Zipcode cache write failed", map[string]interface{}{"key": key, "error": err})
	}
}

// CountyOptions lists the counties a zip spans, pairing the pipe-separated
// fips and names by position. With no fips list the record's primary county
// is the only option.
func CountyOptions(r models.ZipcodeRecord) []models.CountyOption {
	fips := splitPipe(r.CountyFipsAll)
	names := splitPipe(r.CountyNamesAll)

	if len(fips) == 0 {
		name := r.CountyName
		if name == "" {
			name = r.CountyFips
		}
		return []models.CountyOption{{Fips: r.CountyFips, Name: name}}
	}

	out := make([]models.CountyOption, 0, len(fips))
	for i, f := range fips {
		name := f
		if i < len(names) {
			name = names[i]
		}
		out = append(out, models.CountyOption{Fips: f, Name: name})
	}
	return out
}

// ResolveCounty picks the option matching fips, or the record's primary
// county when fips is empty. ok is false when fips names no option.
func ResolveCounty(r models.ZipcodeRecord, fips string) (models.CountyOption, bool) {
	fips = strings.TrimSpace(fips)
	if fips == "" {
		return models.CountyOption{Fips: r.CountyFips, Name: r.CountyName}, true
	}
	for _, opt := range CountyOptions(r) {
		if opt.Fips == fips {
			return opt, true
		}
	}
	return models.CountyOption{}, false
}

func splitPipe(s string) []string {
	var out []string
	for _, part := range strings.Split(s, "|") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
