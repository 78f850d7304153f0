// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	// 1. base config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// 2. environment overlay
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // ignore error if not found

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	// LEAD_CAMPUS_ID overrides lead.campus_id
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// bools cannot be defaulted after unmarshal
	v.SetDefault("lead.send_email", true)
	v.SetDefault("lead.send_sms", false)
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Load .env from the working directory, its parents, or the module root.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// firstEnv returns the first non-empty variable among names.
func firstEnv(names ...string) string {
	for _, name := range names {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	return ""
}

func overrideString(dst *string, names ...string) {
	if *dst != "" {
		return
	}
	if val := firstEnv(names...); val != "" {
		*dst = val
	}
}

// Front-end style variable names still configure the service. Explicit
// config keys win.
func overrideEmptyConfig(cfg *Config) {
	overrideString(&cfg.GraphQL.URL, "GRAPHQL_URL", "REACT_APP_GRAPHQL_URL")
	overrideString(&cfg.GraphQL.Token, "PUBLIC_GRAPHQL_TOKEN", "REACT_APP_PUBLIC_GRAPHQL_TOKEN")

	overrideString(&cfg.Lead.StagePipelineID, "PUBLIC_STAGE_PIPELINE_ID", "REACT_APP_PUBLIC_STAGE_PIPELINE_ID")
	overrideString(&cfg.Lead.LeadSourceID, "PUBLIC_LEAD_SOURCE_ID", "REACT_APP_PUBLIC_LEAD_SOURCE_ID")
	overrideString(&cfg.Lead.CampusID, "PUBLIC_CAMPUS_ID", "REACT_APP_PUBLIC_CAMPUS_ID")
	overrideString(&cfg.Lead.AgentID, "PUBLIC_AGENT_ID", "REACT_APP_PUBLIC_AGENT_ID")
	overrideString(&cfg.Lead.SignatureFormID, "PUBLIC_SIGNATURE_FORM_ID", "REACT_APP_PUBLIC_SIGNATURE_FORM_ID")

	if val := firstEnv("PUBLIC_SEND_EMAIL", "REACT_APP_PUBLIC_SEND_EMAIL"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Lead.SendEmail = b
		}
	}
	if val := firstEnv("PUBLIC_SEND_SMS", "REACT_APP_PUBLIC_SEND_SMS"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Lead.SendSMS = b
		}
	}

	overrideString(&cfg.Database.Postgres.User, "DB_USER")
	overrideString(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	overrideString(&cfg.Database.Redis.Address, "REDIS_ADDR")
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "lead-wizard"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10000
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}

	if cfg.GraphQL.Timeout == 0 {
		cfg.GraphQL.Timeout = 20000
	}

	if cfg.Consent.PollInterval == 0 {
		cfg.Consent.PollInterval = 7000
	}

	if cfg.Marketplace.Limit == 0 {
		cfg.Marketplace.Limit = 12
	}
	if cfg.Marketplace.Market == "" {
		cfg.Marketplace.Market = "Individual"
	}

	if cfg.Zipcode.SuggestionLimit == 0 {
		cfg.Zipcode.SuggestionLimit = 5
	}

	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = int((24 * time.Hour).Milliseconds())
	}
	if cfg.Session.DefaultLanguage == "" {
		cfg.Session.DefaultLanguage = "es"
	}

	// Database defaults
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 0.1
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.GraphQL.URL == "" {
		return fmt.Errorf("graphql.url is required")
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", cfg.Server.Port)
	}
	if cfg.Consent.PollInterval < 0 {
		return fmt.Errorf("consent.poll_interval must be positive")
	}
	if cfg.Marketplace.Limit < 0 {
		return fmt.Errorf("marketplace.limit must be positive")
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1")
	}

	if cfg.Database.Postgres.Enabled() {
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	}

	switch cfg.Session.DefaultLanguage {
	case "es", "en":
	default:
		return fmt.Errorf("session.default_language must be es or en, got %q", cfg.Session.DefaultLanguage)
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
