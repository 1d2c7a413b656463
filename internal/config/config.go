// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// StoreDriver selects persistence: postgres, sqlite or memory.
	StoreDriver string `mapstructure:"STORE_DRIVER"`
	// DatabaseURL is the Postgres DSN; required when StoreDriver is postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// SQLitePath is the database file; required when StoreDriver is sqlite.
	SQLitePath string `mapstructure:"SQLITE_PATH"`
	// MigrateOnStart applies embedded migrations before serving.
	MigrateOnStart bool `mapstructure:"MIGRATE_ON_START"`

	// JWTAccessSecret signs access tokens (HS256).
	JWTAccessSecret string `mapstructure:"JWT_ACCESS_SECRET"`
	// JWTRefreshSecret signs refresh tokens; must differ from JWTAccessSecret.
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	// JWTAccessTTL is the access token lifetime (e.g. "1h").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// JWTLeeway is the tolerated clock skew when checking exp/nbf.
	JWTLeeway string `mapstructure:"JWT_LEEWAY"`

	// PasswordScheme is the adaptive algorithm for new digests: bcrypt or argon2id.
	PasswordScheme string `mapstructure:"PASSWORD_SCHEME"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// HasherWorkers caps hashing workers; 0 means NumCPU-1.
	HasherWorkers int `mapstructure:"HASHER_WORKERS"`
	// HasherTasksPerWorker is the concurrent task limit per worker; default 2.
	HasherTasksPerWorker int `mapstructure:"HASHER_TASKS_PER_WORKER"`
	// HasherIdleTimeout retires idle workers (e.g. "30s").
	HasherIdleTimeout string `mapstructure:"HASHER_IDLE_TIMEOUT"`

	// Refresh cookie for web clients.
	CookieName     string `mapstructure:"COOKIE_NAME"`
	CookiePath     string `mapstructure:"COOKIE_PATH"`
	CookieDomain   string `mapstructure:"COOKIE_DOMAIN"`
	CookieSecure   bool   `mapstructure:"COOKIE_SECURE"`
	CookieSameSite string `mapstructure:"COOKIE_SAMESITE"`
	// WebRotateRefreshCookie rotates the cookie and CSRF value on every web refresh.
	WebRotateRefreshCookie bool `mapstructure:"WEB_ROTATE_REFRESH_COOKIE"`

	// OTLPEndpoint is the OTLP gRPC collector; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext gRPC to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("STORE_DRIVER", "postgres")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SQLITE_PATH", "auth.db")
	v.SetDefault("MIGRATE_ON_START", false)
	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("JWT_ACCESS_TTL", "1h")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("JWT_LEEWAY", "0s")
	v.SetDefault("PASSWORD_SCHEME", "bcrypt")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("HASHER_WORKERS", 0)
	v.SetDefault("HASHER_TASKS_PER_WORKER", 2)
	v.SetDefault("HASHER_IDLE_TIMEOUT", "30s")
	v.SetDefault("COOKIE_NAME", "refresh_token")
	v.SetDefault("COOKIE_PATH", "/auth")
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("COOKIE_SAMESITE", "none")
	v.SetDefault("WEB_ROTATE_REFRESH_COOKIE", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "auth-session")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	switch cfg.StoreDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("config: DATABASE_URL must be set when STORE_DRIVER=postgres")
		}
	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, errors.New("config: SQLITE_PATH must be set when STORE_DRIVER=sqlite")
		}
	case "memory":
		if cfg.Env == "production" {
			return nil, errors.New("config: STORE_DRIVER=memory must not be used when APP_ENV=production")
		}
	default:
		return nil, errors.New("config: STORE_DRIVER must be postgres, sqlite or memory")
	}

	if cfg.JWTAccessSecret == "" || cfg.JWTRefreshSecret == "" {
		return nil, errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must be set")
	}
	if cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		return nil, errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	cfg.PasswordScheme = strings.ToLower(strings.TrimSpace(cfg.PasswordScheme))
	if cfg.PasswordScheme != "bcrypt" && cfg.PasswordScheme != "argon2id" {
		return nil, errors.New("config: PASSWORD_SCHEME must be bcrypt or argon2id")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.HasherWorkers < 0 || cfg.HasherTasksPerWorker < 0 {
		return nil, errors.New("config: HASHER_WORKERS and HASHER_TASKS_PER_WORKER must not be negative")
	}

	if cfg.SameSite() == http.SameSiteNoneMode && !cfg.CookieSecure {
		return nil, errors.New("config: COOKIE_SAMESITE=none requires COOKIE_SECURE=true")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parsePositive(c.JWTAccessTTL, time.Hour)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parsePositive(c.JWTRefreshTTL, 168*time.Hour)
}

// Leeway parses JWTLeeway. Returns 0 if unset or invalid.
func (c *Config) Leeway() time.Duration {
	d, err := time.ParseDuration(c.JWTLeeway)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// IdleTimeout parses HasherIdleTimeout. Returns 30s if unset or invalid.
func (c *Config) IdleTimeout() time.Duration {
	return parsePositive(c.HasherIdleTimeout, 30*time.Second)
}

// SameSite maps CookieSameSite to its http constant; unknown values mean None.
func (c *Config) SameSite() http.SameSite {
	switch strings.ToLower(strings.TrimSpace(c.CookieSameSite)) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	default:
		return http.SameSiteNoneMode
	}
}

func parsePositive(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
