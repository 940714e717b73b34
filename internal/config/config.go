package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Auth modes.
const (
	AuthModeDevelopment = "development"
	AuthModeExternal    = "external"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	AuthMode       string        `mapstructure:"AUTH_MODE"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	ReportCacheTTL time.Duration `mapstructure:"REPORT_CACHE_TTL"`
	AuthIssuer     string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL    string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience   string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string        `mapstructure:"AUTH_SIGNING_KEY"`
	DefaultClinic  string        `mapstructure:"DEFAULT_CLINIC"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ReportTimezone string        `mapstructure:"REPORT_TIMEZONE"`
	RetentionBasis string        `mapstructure:"RETENTION_BASIS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	// ReportArchiveURL is a directory, s3://bucket/prefix or mem:// location
	// where generated reports are also stored.
	ReportArchiveURL string `mapstructure:"REPORT_ARCHIVE_URL"`
	MetricsEnabled   bool   `mapstructure:"METRICS_ENABLED"`
}

var keys = []string{
	"PORT", "ENV", "AUTH_MODE", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_URL", "REPORT_CACHE_TTL", "AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE",
	"AUTH_SIGNING_KEY", "DEFAULT_CLINIC", "CORS_ORIGINS", "REQUEST_TIMEOUT",
	"REPORT_TIMEZONE", "RETENTION_BASIS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"REPORT_ARCHIVE_URL", "METRICS_ENABLED",
}

// Load reads configuration from the environment and an optional .env file.
// DATABASE_URL is checked by RequireDatabase since offline commands run
// without one.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "") // inferred from ENV when empty
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("REPORT_CACHE_TTL", "5m")
	v.SetDefault("DEFAULT_CLINIC", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("REPORT_TIMEZONE", "UTC")
	v.SetDefault("RETENTION_BASIS", "any")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("METRICS_ENABLED", true)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns AUTH_MODE when set. Otherwise ENV=development
// selects development auth and anything else requires bearer tokens.
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return AuthModeDevelopment
	}
	return AuthModeExternal
}

// Location returns the report time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ReportTimezone)
	if err != nil {
		return nil, fmt.Errorf("REPORT_TIMEZONE %q: %w", c.ReportTimezone, err)
	}
	return loc, nil
}

// RequireDatabase fails when no database is configured.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// Validate checks that the configuration is safe to serve with. Development
// auth grants every request admin access and is refused in production.
func (c *Config) Validate() error {
	switch mode := c.ResolvedAuthMode(); mode {
	case AuthModeDevelopment:
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE=development is not allowed when ENV=production")
		}
	case AuthModeExternal:
		if c.AuthSigningKey == "" && c.AuthJWKSURL == "" {
			return fmt.Errorf("AUTH_JWKS_URL or AUTH_SIGNING_KEY must be set when AUTH_MODE is \"external\" (current ENV=%q)", c.Env)
		}
		if c.IsProduction() && c.AuthSigningKey != "" {
			return fmt.Errorf("AUTH_SIGNING_KEY is for development only; use AUTH_JWKS_URL in production")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be \"development\" or \"external\", got %q", mode)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	switch strings.ToLower(c.RetentionBasis) {
	case "", "any", "qualifying":
	default:
		return fmt.Errorf("RETENTION_BASIS must be \"any\" or \"qualifying\", got %q", c.RetentionBasis)
	}
	if c.RequestTimeout < 0 || c.ReportCacheTTL < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT and REPORT_CACHE_TTL must not be negative")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
