package config

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// finalize applies defaults and validates the configuration.
func (c *Config) finalize() error {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Environment == "" {
		c.Logging.Environment = "production"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.AppBaseURL != "" {
		c.Server.AppBaseURL = strings.TrimSuffix(c.Server.AppBaseURL, "/")
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	if c.Storage.CleanupInterval.Duration <= 0 {
		c.Storage.CleanupInterval = Duration{Duration: 5 * time.Minute}
	}
	if c.Facilitator.URL != "" {
		c.Facilitator.URL = strings.TrimSuffix(c.Facilitator.URL, "/")
	}
	if c.Facilitator.Timeout.Duration <= 0 {
		c.Facilitator.Timeout = Duration{Duration: 30 * time.Second}
	}
	if c.Payments.MaxTimeoutSeconds <= 0 {
		c.Payments.MaxTimeoutSeconds = 300
	}
	if c.Upstream.Timeout.Duration <= 0 {
		c.Upstream.Timeout = Duration{Duration: 30 * time.Second}
	}
	if c.RateLimit.SweepInterval.Duration < 5*time.Minute {
		c.RateLimit.SweepInterval = Duration{Duration: 5 * time.Minute}
	}
	if c.RateLimit.StaleAfter.Duration <= 0 {
		c.RateLimit.StaleAfter = Duration{Duration: 60 * time.Second}
	}
	if c.Paywall.DefaultTheme == "" {
		c.Paywall.DefaultTheme = "light"
	}

	return c.validate()
}

// validate checks that required configuration fields are set correctly.
func (c *Config) validate() error {
	var errs []string

	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Storage.PostgresURL == "" {
			errs = append(errs, "storage.postgres_url (RELAY402_DATABASE_URL) is required when backend is 'postgres'")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.backend %q is not supported (use 'memory' or 'postgres')", c.Storage.Backend))
	}

	if c.Facilitator.URL == "" {
		errs = append(errs, "facilitator.url is required")
	} else if _, err := url.Parse(c.Facilitator.URL); err != nil {
		errs = append(errs, fmt.Sprintf("facilitator.url is invalid: %v", err))
	}

	if c.Secrets.EncryptionKey != "" {
		if err := validateEncryptionKey(c.Secrets.EncryptionKey); err != nil {
			errs = append(errs, fmt.Sprintf("secrets.encryption_key: %v", err))
		}
	}

	switch c.Paywall.DefaultTheme {
	case "light", "dark", "midnight":
	default:
		errs = append(errs, fmt.Sprintf("paywall.default_theme %q is not supported (use 'light', 'dark', or 'midnight')", c.Paywall.DefaultTheme))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// validateEncryptionKey checks that the key is 64 hex characters (32 bytes,
// AES-256). Catching this at startup beats failing on the first secret write.
func validateEncryptionKey(key string) error {
	raw, err := hex.DecodeString(key)
	if err != nil {
		return fmt.Errorf("must be hex encoded: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("must decode to 32 bytes, got %d", len(raw))
	}
	return nil
}

// ApplyPostgresPoolSettings applies connection pool settings to a database connection.
// If pool config is not specified, applies sensible defaults.
func ApplyPostgresPoolSettings(db *sql.DB, pool PostgresPoolConfig) {
	maxOpen := pool.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}

	maxIdle := pool.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}

	if maxIdle > maxOpen {
		maxIdle = maxOpen
	}

	maxLifetime := pool.ConnMaxLifetime.Duration
	if maxLifetime <= 0 {
		maxLifetime = 5 * time.Minute
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)
}
