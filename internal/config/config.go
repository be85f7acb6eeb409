package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"

	"gastos/internal/core"
	"gastos/internal/period"
)

type Config struct {
	// HTTP Server
	Port               string `env:"PORT" envDefault:"8080"`
	LoginRatePerMinute int    `env:"LOGIN_RATE_PER_MINUTE" envDefault:"10"`

	// Backend selection
	DataBackend string `env:"DATA_BACKEND" envDefault:"memory"`

	// Storage
	SQLiteDBPath       string   `env:"SQLITE_DB_PATH" envDefault:"./data/gastos.db"`
	PostgresDSN        string   `env:"POSTGRES_DSN"`
	FirestoreProjectID string   `env:"FIRESTORE_PROJECT_ID"`
	SeedDir            string   `env:"SEED_DIR"`
	AllowedEmails      []string `env:"ALLOWED_EMAILS" envSeparator:","`

	// AMQP
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"gastos"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"sheets_mirror"`

	// Google Sheets mirror
	GoogleSpreadsheetID      string `env:"GOOGLE_SPREADSHEET_ID"`
	GoogleSheetName          string `env:"GOOGLE_SHEET_NAME" envDefault:"Gastos"`
	GoogleServiceAccountFile string `env:"GOOGLE_SERVICE_ACCOUNT_FILE"`
	GoogleServiceAccountJSON string `env:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	GoogleOAuthClientID      string `env:"GOOGLE_OAUTH_CLIENT_ID"`
	GoogleOAuthClientSecret  string `env:"GOOGLE_OAUTH_CLIENT_SECRET"`
	GoogleOAuthRedirectURL   string `env:"GOOGLE_OAUTH_REDIRECT_URL"`

	// Sessions
	JWTSecret     string        `env:"JWT_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	SecureCookies bool          `env:"SECURE_COOKIES" envDefault:"true"`

	// Engine
	PrefsPath   string `env:"PREFS_PATH" envDefault:"./data/prefs.json"`
	MonthLocale string `env:"MONTH_LOCALE" envDefault:"es_ES"`
	IngestMode  string `env:"INGEST_MODE" envDefault:"lenient"`

	// Worker
	SyncInterval time.Duration `env:"SYNC_INTERVAL" envDefault:"10m"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

var (
	validBackends   = []string{"memory", "sqlite", "postgres", "firestore"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json", "tint"}
)

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if msg := ensureDir(c.SQLiteDBPath, "SQLite database"); msg != "" {
			errors = append(errors, msg)
		}
	case "postgres":
		if c.PostgresDSN == "" {
			errors = append(errors, "POSTGRES_DSN is required when using postgres backend")
		}
	case "firestore":
		if c.FirestoreProjectID == "" {
			errors = append(errors, "FIRESTORE_PROJECT_ID is required when using firestore backend")
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Google Sheets mirror
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet is configured")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Google sign-in needs all three or none
	oauth := []string{c.GoogleOAuthClientID, c.GoogleOAuthClientSecret, c.GoogleOAuthRedirectURL}
	set := 0
	for _, v := range oauth {
		if v != "" {
			set++
		}
	}
	if set > 0 && set < len(oauth) {
		errors = append(errors, "GOOGLE_OAUTH_CLIENT_ID, GOOGLE_OAUTH_CLIENT_SECRET and GOOGLE_OAUTH_REDIRECT_URL must be set together")
	}

	if len(c.JWTSecret) < 16 {
		errors = append(errors, "JWT_SECRET must be at least 16 characters")
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	if c.PrefsPath != "" {
		if msg := ensureDir(c.PrefsPath, "preferences"); msg != "" {
			errors = append(errors, msg)
		}
	}
	if _, err := period.ParseLocale(c.MonthLocale); err != nil {
		errors = append(errors, fmt.Sprintf("invalid month locale: %v", err))
	}
	if !core.IngestMode(c.IngestMode).IsValid() {
		errors = append(errors, fmt.Sprintf("invalid ingest mode '%s': must be 'lenient' or 'strict'", c.IngestMode))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.LoginRatePerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid login rate %d: must be at least 1 per minute", c.LoginRatePerMinute))
	}

	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, strings.ToLower(c.LogFormat)) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// AMQPEnabled reports whether change notifications are configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

func (c *Config) GoogleSignInEnabled() bool {
	return c.GoogleOAuthClientID != ""
}

// Level maps LogLevel to a slog level.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// ensureDir creates the parent directory of path if missing.
func ensureDir(path, what string) string {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return ""
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Sprintf("cannot create %s directory '%s': %v", what, dir, err)
		}
	}
	return ""
}
