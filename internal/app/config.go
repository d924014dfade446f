package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Backend names a Data Access Gateway implementation.
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendMemory   Backend = "memory"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string  `default:"0.0.0.0:8080" usage:"API server listen address"`
	Backend      Backend `default:"postgres" usage:"Data backend: postgres or memory"`
	DatabaseURL  string  `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string  `default:"" usage:"Base URL for relative product image paths" flag:"image-base-url"`
	Session      SessionConfig
	Admin        AdminConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// SessionConfig controls visitor session storage.
type SessionConfig struct {
	DB           string        `default:"file:sessions.db?_pragma=busy_timeout(5000)" usage:"SQLite DSN for session storage" flag:"session-db"`
	IdleTimeout  time.Duration `default:"30m" usage:"Drop sessions idle for this long" flag:"session-idle-timeout"`
	CookieSecure bool          `default:"false" usage:"Mark the session cookie Secure" flag:"cookie-secure"`
}

// AdminConfig controls admin authentication.
type AdminConfig struct {
	KeyPepper string `usage:"HMAC pepper for admin key hashing (SHOP_ADMIN_KEY_PEPPER)" flag:"admin-key-pepper"`
	// Secret is the admin password for the memory backend, which has no
	// admin_keys table.
	Secret string `usage:"Admin password when Backend=memory" flag:"admin-secret"`
}

// RateLimitConfig controls per-session limits on checkout submissions and
// admin login attempts.
type RateLimitConfig struct {
	Checkout int           `default:"10" usage:"Checkout submissions per window"`
	Login    int           `default:"5"  usage:"Admin login attempts per window"`
	Window   time.Duration `default:"1m" usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/shop/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
		}
	case BackendMemory:
		if c.Admin.Secret == "" {
			return errors.New("admin secret is required for the memory backend: set SHOP_ADMIN_SECRET")
		}
	default:
		return errors.Errorf("unknown backend %q", c.Backend)
	}
	if c.Session.IdleTimeout <= 0 {
		return errors.New("session idle timeout must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
