package config

import (
	"os"
	"strings"
	"time"
)

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over YAML configuration.
// All env vars use RELAY402_ prefix for namespace isolation.
func (c *Config) applyEnvOverrides() {
	// Server config
	setIfEnv(&c.Server.Address, "RELAY402_SERVER_ADDRESS")
	setIfEnv(&c.Server.AppBaseURL, "RELAY402_APP_BASE_URL")
	setIfEnv(&c.Server.AdminMetricsAPIKey, "RELAY402_ADMIN_METRICS_API_KEY")

	// Logging config
	setIfEnv(&c.Logging.Level, "RELAY402_LOG_LEVEL")
	setIfEnv(&c.Logging.Format, "RELAY402_LOG_FORMAT")
	setIfEnv(&c.Logging.Environment, "RELAY402_ENVIRONMENT")

	// Storage config
	setIfEnv(&c.Storage.Backend, "RELAY402_STORAGE_BACKEND")
	setIfEnv(&c.Storage.PostgresURL, "RELAY402_DATABASE_URL")

	// Facilitator config
	setIfEnv(&c.Facilitator.URL, "RELAY402_FACILITATOR_URL")
	setDurationIfEnv(&c.Facilitator.Timeout, "RELAY402_FACILITATOR_TIMEOUT")

	// Payments config
	setBoolIfEnv(&c.Payments.ForceTestnet, "RELAY402_FORCE_TESTNET")
	setIfEnv(&c.Payments.USDCBase, "RELAY402_USDC_BASE")
	setIfEnv(&c.Payments.USDCBaseSepolia, "RELAY402_USDC_BASE_SEPOLIA")

	// Paywall config
	setIfEnv(&c.Paywall.WalletConnectProjectID, "RELAY402_WALLETCONNECT_PROJECT_ID")
	setIfEnv(&c.Paywall.DefaultTheme, "RELAY402_PAYWALL_THEME")

	// Secrets config
	setIfEnv(&c.Secrets.EncryptionKey, "RELAY402_ENCRYPTION_KEY")

	// Upstream config
	setDurationIfEnv(&c.Upstream.Timeout, "RELAY402_UPSTREAM_TIMEOUT")
	setBoolIfEnv(&c.Upstream.AllowLocalhost, "RELAY402_ALLOW_LOCALHOST_UPSTREAMS")
	setBoolIfEnv(&c.Upstream.AllowOtherSchemes, "RELAY402_ALLOW_OTHER_SCHEMES")

	// Rate limit config
	setBoolIfEnv(&c.RateLimit.GlobalEnabled, "RELAY402_RATE_LIMIT_GLOBAL_ENABLED")
	setDurationIfEnv(&c.RateLimit.GlobalWindow, "RELAY402_RATE_LIMIT_GLOBAL_WINDOW")
}

// setIfEnv sets a string pointer to the environment variable value if it exists.
func setIfEnv(target *string, key string) {
	if val := os.Getenv(key); val != "" {
		*target = val
	}
}

// setBoolIfEnv sets a boolean pointer from an environment variable.
// Accepts "1", "true", "TRUE", "True" as true values.
func setBoolIfEnv(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v == "1" || strings.EqualFold(v, "true")
	}
}

// setDurationIfEnv sets a Duration pointer from an environment variable.
// Uses time.ParseDuration to parse values like "5m", "120s", "1h30m".
func setDurationIfEnv(target *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			*target = Duration{Duration: dur}
		}
	}
}
