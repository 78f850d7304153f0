// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	GraphQL     GraphQLConfig     `mapstructure:"graphql"`
	Lead        LeadConfig        `mapstructure:"lead"`
	Consent     ConsentConfig     `mapstructure:"consent"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	Zipcode     ZipcodeConfig     `mapstructure:"zipcode"`
	Session     SessionConfig     `mapstructure:"session"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	MetricsPort     int    `mapstructure:"metrics_port"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
	// AllowedOrigins lists the front-end origins allowed by CORS.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Addr returns host:port for the API listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GraphQLConfig points at the public lead API. Token is sent as a bearer token
// and also gates the marketplace lookup.
type GraphQLConfig struct {
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// LeadConfig holds the routing identifiers attached to every new lead.
type LeadConfig struct {
	StagePipelineID string `mapstructure:"stage_pipeline_id"`
	LeadSourceID    string `mapstructure:"lead_source_id"`
	CampusID        string `mapstructure:"campus_id"`
	AgentID         string `mapstructure:"agent_id"`
	SignatureFormID string `mapstructure:"signature_form_id"`
	SendEmail       bool   `mapstructure:"send_email"`
	SendSMS         bool   `mapstructure:"send_sms"`
}

// MissingRoutingIDs lists the required routing keys that are blank. Missing
// ids do not fail startup; they fail the primary applicant step.
func (l LeadConfig) MissingRoutingIDs() []string {
	var missing []string
	if l.StagePipelineID == "" {
		missing = append(missing, "stage_pipeline_id")
	}
	if l.LeadSourceID == "" {
		missing = append(missing, "lead_source_id")
	}
	if l.CampusID == "" {
		missing = append(missing, "campus_id")
	}
	return missing
}

type ConsentConfig struct {
	PollInterval int `mapstructure:"poll_interval"` // milliseconds
}

type MarketplaceConfig struct {
	Limit    int    `mapstructure:"limit"`
	Market   string `mapstructure:"market"`
	CacheTTL int    `mapstructure:"cache_ttl"` // milliseconds, 0 disables caching
}

type ZipcodeConfig struct {
	SuggestionLimit int `mapstructure:"suggestion_limit"`
	CacheTTL        int `mapstructure:"cache_ttl"` // milliseconds, 0 disables caching
}

type SessionConfig struct {
	TTL             int    `mapstructure:"ttl"` // milliseconds
	StrictMembers   bool   `mapstructure:"strict_members"`
	DefaultLanguage string `mapstructure:"default_language"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig backs the step audit log. An empty host disables it.
type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// Enabled reports whether the audit log should be wired.
func (p PostgresConfig) Enabled() bool {
	return p.Host != ""
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig backs session snapshots and lookup caches. An empty address
// selects the in-memory stores.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// TracingConfig controls otel span export. Spans go to stdout when enabled.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}
