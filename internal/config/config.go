// AngelaMos | 2026
// config.go

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const minResetSigningKeyLen = 32

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	Auth      AuthConfig      `koanf:"auth"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `koanf:"driver"`
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	MigrateOnStart  bool          `koanf:"migrate_on_start"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type JWTConfig struct {
	PrivateKeyPath     string        `koanf:"private_key_path"`
	PublicKeyPath      string        `koanf:"public_key_path"`
	AccessTokenExpire  time.Duration `koanf:"access_token_expire"`
	RefreshTokenExpire time.Duration `koanf:"refresh_token_expire"`
	Issuer             string        `koanf:"issuer"`
	Audience           string        `koanf:"audience"`
}

// AuthConfig holds the credential and session policy knobs.
type AuthConfig struct {
	LockoutThreshold               int           `koanf:"lockout_threshold"`
	LockoutWindow                  time.Duration `koanf:"lockout_window"`
	LockoutForNewUsers             bool          `koanf:"lockout_for_new_users"`
	RevokeChainOnReuse             bool          `koanf:"revoke_chain_on_reuse"`
	RevokeSessionsOnPasswordChange bool          `koanf:"revoke_sessions_on_password_change"`
	ResetTokenExpire               time.Duration `koanf:"reset_token_expire"`
	ResetSigningKey                string        `koanf:"reset_signing_key"`
	ResetURL                       string        `koanf:"reset_url"`
}

type RateLimitConfig struct {
	Requests     int           `koanf:"requests"`
	Window       time.Duration `koanf:"window"`
	Burst        int           `koanf:"burst"`
	AuthRequests int           `koanf:"auth_requests"`
	AuthBurst    int           `koanf:"auth_burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// New builds a Config from defaults, the optional YAML file at configPath and
// the environment, in that order of precedence.
func New(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" && fileExists(configPath) {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "sessionguard",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"database.driver":             "pgx",
		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.migrate_on_start":   false,

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.access_token_expire":  "15m",
		"jwt.refresh_token_expire": "168h",
		"jwt.issuer":               "sessionguard",
		"jwt.audience":             "sessionguard-api",
		"jwt.private_key_path":     "keys/private.pem",
		"jwt.public_key_path":      "keys/public.pem",

		"auth.lockout_threshold":                  5,
		"auth.lockout_window":                     "15m",
		"auth.lockout_for_new_users":              true,
		"auth.revoke_chain_on_reuse":              false,
		"auth.revoke_sessions_on_password_change": true,
		"auth.reset_token_expire":                 "1h",
		"auth.reset_url":                          "http://localhost:3000/reset-password",

		"rate_limit.requests":      100,
		"rate_limit.window":        "1m",
		"rate_limit.burst":         20,
		"rate_limit.auth_requests": 10,
		"rate_limit.auth_burst":    5,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "sessionguard",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_DRIVER":                   "database.driver",
	"DATABASE_URL":                      "database.url",
	"DATABASE_MIGRATE_ON_START":         "database.migrate_on_start",
	"REDIS_URL":                         "redis.url",
	"ENVIRONMENT":                       "app.environment",
	"HOST":                              "server.host",
	"PORT":                              "server.port",
	"LOG_LEVEL":                         "log.level",
	"LOG_FORMAT":                        "log.format",
	"JWT_PRIVATE_KEY_PATH":              "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":               "jwt.public_key_path",
	"JWT_ACCESS_TOKEN_EXPIRE":           "jwt.access_token_expire",
	"JWT_REFRESH_TOKEN_EXPIRE":          "jwt.refresh_token_expire",
	"JWT_ISSUER":                        "jwt.issuer",
	"JWT_AUDIENCE":                      "jwt.audience",
	"AUTH_LOCKOUT_THRESHOLD":            "auth.lockout_threshold",
	"AUTH_LOCKOUT_WINDOW":               "auth.lockout_window",
	"AUTH_LOCKOUT_FOR_NEW_USERS":        "auth.lockout_for_new_users",
	"AUTH_REVOKE_CHAIN_ON_REUSE":        "auth.revoke_chain_on_reuse",
	"AUTH_REVOKE_SESSIONS_ON_PW_CHANGE": "auth.revoke_sessions_on_password_change",
	"AUTH_RESET_TOKEN_EXPIRE":           "auth.reset_token_expire",
	"AUTH_RESET_SIGNING_KEY":            "auth.reset_signing_key",
	"AUTH_RESET_URL":                    "auth.reset_url",
	"RATE_LIMIT_REQUESTS":               "rate_limit.requests",
	"RATE_LIMIT_WINDOW":                 "rate_limit.window",
	"RATE_LIMIT_BURST":                  "rate_limit.burst",
	"RATE_LIMIT_AUTH_REQUESTS":          "rate_limit.auth_requests",
	"RATE_LIMIT_AUTH_BURST":             "rate_limit.auth_burst",
	"OTEL_ENDPOINT":                     "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT":       "otel.endpoint",
	"OTEL_SERVICE_NAME":                 "otel.service_name",
	"OTEL_ENABLED":                      "otel.enabled",
	"OTEL_INSECURE":                     "otel.insecure",
	"OTEL_SAMPLE_RATE":                  "otel.sample_rate",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

// validate reports every problem at once so a bad deployment can be fixed
// in a single pass.
func validate(c *Config) error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Database.Driver == "pgx" || c.Database.Driver == "sqlite",
		"database.driver must be pgx or sqlite, got %q", c.Database.Driver)
	check(c.Database.URL != "", "DATABASE_URL is required")
	check(c.Redis.URL != "", "REDIS_URL is required")
	check(c.JWT.PrivateKeyPath != "", "JWT_PRIVATE_KEY_PATH is required")
	check(c.JWT.PublicKeyPath != "", "JWT_PUBLIC_KEY_PATH is required")
	check(c.JWT.AccessTokenExpire > 0, "jwt.access_token_expire must be positive")
	check(c.JWT.RefreshTokenExpire > c.JWT.AccessTokenExpire,
		"jwt.refresh_token_expire must exceed jwt.access_token_expire")

	check(c.Auth.LockoutThreshold >= 1, "auth.lockout_threshold must be at least 1")
	check(c.Auth.LockoutWindow > 0, "auth.lockout_window must be positive")
	check(c.Auth.ResetTokenExpire > 0, "auth.reset_token_expire must be positive")
	check(len(c.Auth.ResetSigningKey) >= minResetSigningKeyLen,
		"AUTH_RESET_SIGNING_KEY must be at least %d characters", minResetSigningKeyLen)

	check(c.RateLimit.Requests > 0 && c.RateLimit.AuthRequests > 0,
		"rate_limit.requests and rate_limit.auth_requests must be positive")
	check(c.RateLimit.Window > 0, "rate_limit.window must be positive")

	check(!c.CORS.AllowCredentials || !slices.Contains(c.CORS.AllowedOrigins, "*"),
		"cors.allowed_origins cannot contain '*' with allow_credentials")

	check(c.Server.ReadTimeout > 0, "server.read_timeout must be positive")
	check(c.Server.WriteTimeout > 0, "server.write_timeout must be positive")

	if c.IsProduction() {
		check(!c.Otel.Enabled || !c.Otel.Insecure, "OTEL_INSECURE must be false in production")
		check(c.Database.Driver != "sqlite", "database.driver sqlite is not allowed in production")
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
