// Package config loads gateway configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/frameio/frameio-gateway/pkg/observability"
)

// Environment names. Dev conveniences (bypass headers, insecure cookies)
// are refused outside development and test.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvTest        = "test"
)

// Config holds all application configuration
type Config struct {
	Environment string

	Server        ServerConfig
	Admin         AdminConfig
	Identity      IdentityConfig
	Upstream      UpstreamConfig
	Redis         RedisConfig
	Profile       ProfileConfig
	RateLimit     RateLimitConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// AdminConfig holds the operator credential configuration.
// Username, password and secret have no defaults; startup fails without them.
type AdminConfig struct {
	Username string
	Password string
	// Secret signs admin session tokens. Required, no baked-in fallback.
	Secret     string
	SessionTTL time.Duration
	// AllowInsecureCookie drops the Secure cookie flag for local development.
	// Cookies are Secure by default.
	AllowInsecureCookie bool
}

// IdentityConfig holds product IdP (OIDC) configuration
type IdentityConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Dev bypass identity, honored only outside production
	DevUserID string
	DevOrgID  string
}

// UpstreamConfig holds resource backend configuration
type UpstreamConfig struct {
	BaseURL string
	Timeout time.Duration

	// Explicit per-call timeouts for the AI poster endpoints
	PosterGenerateTimeout  time.Duration
	PosterEditTimeout      time.Duration
	PosterCompositeTimeout time.Duration
	PosterStatusTimeout    time.Duration
}

// RedisConfig holds shared cache / rate limiter configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// ProfileConfig holds profile resolver cache settings
type ProfileConfig struct {
	CacheSize int
	CacheTTL  time.Duration
	// RoleMapPath points at an optional YAML role->permission override file
	RoleMapPath string
}

// RateLimitConfig holds the poster rate limiter settings
type RateLimitConfig struct {
	PosterLimit  int
	PosterWindow time.Duration
}

// AuditConfig holds audit store configuration
type AuditConfig struct {
	PostgresURL   string
	RetentionDays int
	// SweepSchedule is a cron expression for the retention sweep
	SweepSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Environment:   getEnv("FRAMEIO_ENV", EnvDevelopment),
		Server:        loadServerConfig(),
		Admin:         loadAdminConfig(),
		Identity:      loadIdentityConfig(),
		Upstream:      loadUpstreamConfig(),
		Redis:         loadRedisConfig(),
		Profile:       loadProfileConfig(),
		RateLimit:     loadRateLimitConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// IsProduction reports whether the gateway runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("FRAMEIO_HOST", "0.0.0.0"),
		Port:            getEnv("FRAMEIO_PORT", "8080"),
		ReadTimeout:     getEnvDuration("FRAMEIO_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("FRAMEIO_WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:     getEnvDuration("FRAMEIO_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("FRAMEIO_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("FRAMEIO_HEALTH_PORT", "9090"),
	}
}

func loadAdminConfig() AdminConfig {
	return AdminConfig{
		Username:            getEnv("FRAMEIO_ADMIN_USERNAME", ""),
		Password:            getEnv("FRAMEIO_ADMIN_PASSWORD", ""),
		Secret:              getEnv("FRAMEIO_ADMIN_SESSION_SECRET", ""),
		SessionTTL:          time.Duration(getEnvInt("FRAMEIO_ADMIN_SESSION_EXPIRY", 24)) * time.Hour,
		AllowInsecureCookie: getEnvBool("FRAMEIO_ALLOW_INSECURE_COOKIE", false),
	}
}

func loadIdentityConfig() IdentityConfig {
	scopes := strings.Split(getEnv("FRAMEIO_OIDC_SCOPES", "openid,profile,email"), ",")
	for i := range scopes {
		scopes[i] = strings.TrimSpace(scopes[i])
	}
	return IdentityConfig{
		IssuerURL:    getEnv("FRAMEIO_OIDC_ISSUER_URL", ""),
		ClientID:     getEnv("FRAMEIO_OIDC_CLIENT_ID", ""),
		ClientSecret: getEnv("FRAMEIO_OIDC_CLIENT_SECRET", ""),
		RedirectURL:  getEnv("FRAMEIO_OIDC_REDIRECT_URL", ""),
		Scopes:       scopes,
		DevUserID:    getEnv("FRAMEIO_DEV_USER_ID", ""),
		DevOrgID:     getEnv("FRAMEIO_DEV_ORG_ID", ""),
	}
}

func loadUpstreamConfig() UpstreamConfig {
	return UpstreamConfig{
		BaseURL:                getEnv("FRAMEIO_API_BASE_URL", "http://localhost:8000"),
		Timeout:                getEnvDuration("FRAMEIO_API_TIMEOUT", 15*time.Second),
		PosterGenerateTimeout:  getEnvDuration("FRAMEIO_POSTER_GENERATE_TIMEOUT", 45*time.Second),
		PosterEditTimeout:      getEnvDuration("FRAMEIO_POSTER_EDIT_TIMEOUT", 30*time.Second),
		PosterCompositeTimeout: getEnvDuration("FRAMEIO_POSTER_COMPOSITE_TIMEOUT", 45*time.Second),
		PosterStatusTimeout:    getEnvDuration("FRAMEIO_POSTER_STATUS_TIMEOUT", 15*time.Second),
	}
}

func loadRedisConfig() RedisConfig {
	addr := getEnv("FRAMEIO_REDIS_ADDR", "")
	return RedisConfig{
		Addr:     addr,
		Password: getEnv("FRAMEIO_REDIS_PASSWORD", ""),
		DB:       getEnvInt("FRAMEIO_REDIS_DB", 0),
		Enabled:  addr != "",
	}
}

func loadProfileConfig() ProfileConfig {
	return ProfileConfig{
		CacheSize:   getEnvInt("FRAMEIO_PROFILE_CACHE_SIZE", 1024),
		CacheTTL:    getEnvDuration("FRAMEIO_PROFILE_CACHE_TTL", 5*time.Minute),
		RoleMapPath: getEnv("FRAMEIO_ROLE_MAP_PATH", ""),
	}
}

func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		PosterLimit:  getEnvInt("FRAMEIO_POSTER_RATE_LIMIT", 30),
		PosterWindow: getEnvDuration("FRAMEIO_POSTER_RATE_WINDOW", time.Minute),
	}
}

func loadAuditConfig() AuditConfig {
	return AuditConfig{
		PostgresURL:   getEnv("FRAMEIO_AUDIT_POSTGRES_URL", ""),
		RetentionDays: getEnvInt("FRAMEIO_AUDIT_RETENTION_DAYS", 90),
		SweepSchedule: getEnv("FRAMEIO_AUDIT_SWEEP_SCHEDULE", "0 3 * * *"),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("FRAMEIO_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("FRAMEIO_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("FRAMEIO_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("FRAMEIO_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("FRAMEIO_OTEL_SERVICE_NAME", "frameio-gateway"),
		OTelServiceVersion: getEnv("FRAMEIO_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("FRAMEIO_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvProduction, EnvDevelopment, EnvTest:
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// The admin credential set is required configuration. There is no
	// fallback secret compiled into the binary.
	if c.Admin.Username == "" {
		return fmt.Errorf("FRAMEIO_ADMIN_USERNAME is required")
	}
	if c.Admin.Password == "" {
		return fmt.Errorf("FRAMEIO_ADMIN_PASSWORD is required")
	}
	if c.Admin.Secret == "" {
		return fmt.Errorf("FRAMEIO_ADMIN_SESSION_SECRET is required")
	}
	if len(c.Admin.Secret) < 32 {
		return fmt.Errorf("FRAMEIO_ADMIN_SESSION_SECRET must be at least 32 bytes")
	}
	if c.Admin.SessionTTL <= 0 {
		return fmt.Errorf("admin session expiry must be positive")
	}

	// Insecure cookies only exist for local development
	if c.Admin.AllowInsecureCookie && c.IsProduction() {
		return fmt.Errorf("FRAMEIO_ALLOW_INSECURE_COOKIE cannot be set in production")
	}

	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream base URL is required")
	}

	if c.IsProduction() {
		if c.Identity.IssuerURL == "" {
			return fmt.Errorf("FRAMEIO_OIDC_ISSUER_URL is required in production")
		}
		if c.Identity.ClientID == "" {
			return fmt.Errorf("FRAMEIO_OIDC_CLIENT_ID is required in production")
		}
	}

	return nil
}

// Helper functions for environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
