package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/rackbook/pkg/database"
	"github.com/platinummonkey/rackbook/pkg/observability"
	"github.com/platinummonkey/rackbook/pkg/sso"
)

// ConfigFileEnv names the environment variable pointing at an optional YAML file.
const ConfigFileEnv = "RACKBOOK_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	OIDC          sso.OIDCConfig      `yaml:"oidc"`
	Auth          AuthConfig          `yaml:"auth"`
	Redis         RedisConfig         `yaml:"redis"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver      string        `yaml:"driver"`
	DSN         string        `yaml:"dsn"`
	MaxConns    int           `yaml:"max_conns"`
	MinConns    int           `yaml:"min_conns"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxLifetime time.Duration `yaml:"max_lifetime"`
	MaxIdleTime time.Duration `yaml:"max_idle_time"`
}

// Connection converts to the database package's connection config.
func (d DatabaseConfig) Connection() database.Config {
	return database.Config{
		Driver:      d.Driver,
		DSN:         d.DSN,
		MaxConns:    d.MaxConns,
		MinConns:    d.MinConns,
		Timeout:     d.Timeout,
		MaxLifetime: d.MaxLifetime,
		MaxIdleTime: d.MaxIdleTime,
	}
}

// AuthConfig holds sign-in and session settings
type AuthConfig struct {
	// PrivilegedGroupID is the identity-provider group whose executives
	// become ADMIN and whose members become EDITOR at first sign-in.
	PrivilegedGroupID int64         `yaml:"privileged_group_id"`
	SessionTTL        time.Duration `yaml:"session_ttl"`
	SecureCookies     bool          `yaml:"secure_cookies"`
	SessionCleanup    string        `yaml:"session_cleanup_schedule"`
}

// RedisConfig holds the optional view invalidation channel. An empty URL
// disables publishing.
type RedisConfig struct {
	URL     string `yaml:"url"`
	Channel string `yaml:"channel"`
}

// RateLimitConfig limits /auth/* requests per client IP
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel string `yaml:"log_level"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"` // Use insecure gRPC connection
}

// Level returns the parsed log level.
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// OTel converts to the tracing setup config.
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
	}
}

// Default returns the configuration used before any file or environment
// overrides are applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			Driver:      database.DriverPostgres,
			MaxConns:    20,
			MinConns:    5,
			Timeout:     5 * time.Second,
			MaxLifetime: 30 * time.Minute,
			MaxIdleTime: 5 * time.Minute,
		},
		OIDC: sso.OIDCConfig{
			IssuerURL:            "https://auth.sch.bme.hu",
			Scopes:               []string{"openid", "profile", "email"},
			ExecutiveGroupsClaim: sso.DefaultExecutiveGroupsClaim,
			MemberGroupsClaim:    sso.DefaultMemberGroupsClaim,
		},
		Auth: AuthConfig{
			SessionTTL:     sso.DefaultSessionTTL,
			SecureCookies:  true,
			SessionCleanup: "@every 1h",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			Burst:             10,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "rackbook",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by RACKBOOK_CONFIG_FILE, and RACKBOOK_* environment variables, in
// that order of precedence from lowest to highest.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "failed to parse config file %s", path)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("RACKBOOK_HOST", s.Host)
	s.Port = getEnv("RACKBOOK_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("RACKBOOK_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("RACKBOOK_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("RACKBOOK_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("RACKBOOK_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.HealthPort = getEnv("RACKBOOK_HEALTH_PORT", s.HealthPort)

	d := &c.Database
	d.Driver = getEnv("RACKBOOK_DB_DRIVER", d.Driver)
	d.DSN = getEnv("RACKBOOK_DB_DSN", d.DSN)
	d.MaxConns = getEnvInt("RACKBOOK_DB_MAX_CONNS", d.MaxConns)
	d.MinConns = getEnvInt("RACKBOOK_DB_MIN_CONNS", d.MinConns)
	d.Timeout = getEnvDuration("RACKBOOK_DB_TIMEOUT", d.Timeout)

	o := &c.OIDC
	o.IssuerURL = getEnv("RACKBOOK_OIDC_ISSUER_URL", o.IssuerURL)
	o.ClientID = getEnv("RACKBOOK_OIDC_CLIENT_ID", o.ClientID)
	o.ClientSecret = getEnv("RACKBOOK_OIDC_CLIENT_SECRET", o.ClientSecret)
	o.RedirectURL = getEnv("RACKBOOK_OIDC_REDIRECT_URL", o.RedirectURL)
	o.Scopes = getEnvList("RACKBOOK_OIDC_SCOPES", o.Scopes)
	o.UseUserInfo = getEnvBool("RACKBOOK_OIDC_USE_USERINFO", o.UseUserInfo)
	o.ExecutiveGroupsClaim = getEnv("RACKBOOK_OIDC_EXECUTIVE_GROUPS_CLAIM", o.ExecutiveGroupsClaim)
	o.MemberGroupsClaim = getEnv("RACKBOOK_OIDC_MEMBER_GROUPS_CLAIM", o.MemberGroupsClaim)

	a := &c.Auth
	a.PrivilegedGroupID = getEnvInt64("RACKBOOK_PRIVILEGED_GROUP_ID", a.PrivilegedGroupID)
	a.SessionTTL = getEnvDuration("RACKBOOK_SESSION_TTL", a.SessionTTL)
	a.SecureCookies = getEnvBool("RACKBOOK_SECURE_COOKIES", a.SecureCookies)
	a.SessionCleanup = getEnv("RACKBOOK_SESSION_CLEANUP_SCHEDULE", a.SessionCleanup)

	c.Redis.URL = getEnv("RACKBOOK_REDIS_URL", c.Redis.URL)
	c.Redis.Channel = getEnv("RACKBOOK_REDIS_CHANNEL", c.Redis.Channel)

	c.RateLimit.RequestsPerMinute = getEnvInt("RACKBOOK_AUTH_RATE_LIMIT", c.RateLimit.RequestsPerMinute)
	c.RateLimit.Burst = getEnvInt("RACKBOOK_AUTH_RATE_BURST", c.RateLimit.Burst)

	ob := &c.Observability
	ob.LogLevel = getEnv("RACKBOOK_LOG_LEVEL", ob.LogLevel)
	ob.MetricsEnabled = getEnvBool("RACKBOOK_METRICS_ENABLED", ob.MetricsEnabled)
	ob.OTelEnabled = getEnvBool("RACKBOOK_OTEL_ENABLED", ob.OTelEnabled)
	ob.OTelEndpoint = getEnv("RACKBOOK_OTEL_ENDPOINT", ob.OTelEndpoint)
	ob.OTelServiceName = getEnv("RACKBOOK_OTEL_SERVICE_NAME", ob.OTelServiceName)
	ob.OTelServiceVersion = getEnv("RACKBOOK_OTEL_SERVICE_VERSION", ob.OTelServiceVersion)
	ob.OTelInsecure = getEnvBool("RACKBOOK_OTEL_INSECURE", ob.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Database.Driver {
	case database.DriverPostgres, database.DriverSQLite:
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	if err := sso.ValidateOIDCConfig(c.OIDC); err != nil {
		return errors.Wrap(err, "invalid OIDC configuration")
	}

	if c.Auth.PrivilegedGroupID <= 0 {
		return fmt.Errorf("privileged group id must be a positive integer")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	if c.RateLimit.RequestsPerMinute <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("auth rate limit and burst must be positive")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
