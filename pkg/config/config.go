// Package config loads server settings from ARCADE_* environment variables.
// Command line flags registered with RegisterFlags take precedence.
package config

import (
	"flag"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cbodonnell/arcade/pkg/log"
)

type Config struct {
	APIPort  int    `env:"ARCADE_API_PORT" envDefault:"8080"`
	WSPort   int    `env:"ARCADE_WS_PORT" envDefault:"8081"`
	LogLevel string `env:"ARCADE_LOG_LEVEL" envDefault:"info"`

	// DatabaseURL selects the durable store: memory://, sqlite://<path> or postgresql://...
	DatabaseURL   string `env:"ARCADE_DATABASE_URL" envDefault:"memory://"`
	MigrationsDir string `env:"ARCADE_MIGRATIONS_DIR" envDefault:"migrations"`

	TLSCertFile string `env:"ARCADE_TLS_CERT_FILE"`
	TLSKeyFile  string `env:"ARCADE_TLS_KEY_FILE"`

	FirebaseProjectID       string `env:"ARCADE_FIREBASE_PROJECT_ID"`
	FirebaseCredentialsFile string `env:"ARCADE_FIREBASE_CREDENTIALS_FILE"`
	FirebaseAPIKey          string `env:"ARCADE_FIREBASE_API_KEY"`
	RequireAuth             bool   `env:"ARCADE_REQUIRE_AUTH"`

	AllowedOrigins []string `env:"ARCADE_ALLOWED_ORIGINS" envSeparator:","`

	OutboxSize        int           `env:"ARCADE_OUTBOX_SIZE" envDefault:"10000"`
	BroadcastInterval time.Duration `env:"ARCADE_BROADCAST_INTERVAL" envDefault:"50ms"`
	ReapInterval      time.Duration `env:"ARCADE_REAP_INTERVAL" envDefault:"1m"`
	InstanceTTL       time.Duration `env:"ARCADE_INSTANCE_TTL" envDefault:"30m"`
	ShutdownTimeout   time.Duration `env:"ARCADE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load parses the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %v", err)
	}
	return cfg, nil
}

// RegisterFlags binds the most common settings to flags. Flag defaults are
// the values already loaded, so an unset flag keeps the environment value.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.APIPort, "api-port", c.APIPort, "API port to listen on")
	fs.IntVar(&c.WSPort, "ws-port", c.WSPort, "WebSocket port to listen on")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level")
	fs.StringVar(&c.DatabaseURL, "database-url", c.DatabaseURL, "Durable store connection string")
	fs.StringVar(&c.MigrationsDir, "migrations-dir", c.MigrationsDir, "Directory holding per-engine migrations")
	fs.BoolVar(&c.RequireAuth, "require-auth", c.RequireAuth, "Reject requests without a bearer token")
}

// Validate checks settings that cannot be expressed with struct tags.
func (c *Config) Validate() error {
	if _, err := log.ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %v", err)
	}
	if c.APIPort <= 0 || c.WSPort <= 0 {
		return fmt.Errorf("ports must be positive")
	}
	if c.APIPort == c.WSPort {
		return fmt.Errorf("API and WebSocket ports must differ: %d", c.APIPort)
	}
	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return fmt.Errorf("invalid database url: %v", err)
	}
	switch u.Scheme {
	case "memory", "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("unknown database type %s", u.Scheme)
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("TLS needs both a certificate and a key file")
	}
	if c.RequireAuth && !c.FirebaseEnabled() {
		return fmt.Errorf("authentication is required but Firebase is not configured")
	}
	for _, d := range []time.Duration{c.BroadcastInterval, c.ReapInterval, c.InstanceTTL} {
		if d <= 0 {
			return fmt.Errorf("intervals must be positive")
		}
	}
	return nil
}

// FirebaseEnabled reports whether tokens can be verified with Firebase.
func (c *Config) FirebaseEnabled() bool {
	return c.FirebaseProjectID != "" && (c.FirebaseCredentialsFile != "" || c.FirebaseAPIKey != "")
}

// TLSEnabled reports whether both servers should serve TLS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// RedactedDatabaseURL returns the database url without its password.
func (c *Config) RedactedDatabaseURL() string {
	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return "invalid"
	}
	return u.Redacted()
}
