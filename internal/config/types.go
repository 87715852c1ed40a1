package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support string based YAML decoding.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration values expressed as Go-style strings or numbers interpreted as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		raw := strings.TrimSpace(value.Value)
		if raw == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err == nil {
			d.Duration = parsed
			return nil
		}
		secs, convErr := time.ParseDuration(fmt.Sprintf("%ss", raw))
		if convErr == nil {
			d.Duration = secs
			return nil
		}
		return fmt.Errorf("invalid duration value %q: %w", raw, err)
	default:
		return fmt.Errorf("unsupported duration node kind: %v", value.Kind)
	}
}

// MarshalYAML renders the duration as a string to keep config edits human-friendly.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds application level configuration aggregated from file and environment variables.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Logging        LoggingConfig        `yaml:"logging"`
	Storage        StorageConfig        `yaml:"storage"`
	Facilitator    FacilitatorConfig    `yaml:"facilitator"`
	Payments       PaymentsConfig       `yaml:"payments"`
	Paywall        PaywallConfig        `yaml:"paywall"`
	Secrets        SecretsConfig        `yaml:"secrets"`
	Upstream       UpstreamConfig       `yaml:"upstream"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address            string   `yaml:"address"`
	ReadTimeout        Duration `yaml:"read_timeout"`
	WriteTimeout       Duration `yaml:"write_timeout"`
	IdleTimeout        Duration `yaml:"idle_timeout"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	AppBaseURL         string   `yaml:"app_base_url"`          // Public base URL of this deployment, used in resource URLs
	AdminMetricsAPIKey string   `yaml:"admin_metrics_api_key"` // Optional API key to protect /metrics endpoint (leave empty to disable protection)
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`       // debug, info, warn, error (default: info)
	Format      string `yaml:"format"`      // json, console (default: json)
	Environment string `yaml:"environment"` // production, staging, development
}

// StorageConfig holds storage backend configuration.
type StorageConfig struct {
	Backend         string             `yaml:"backend"`          // "memory" or "postgres"
	PostgresURL     string             `yaml:"postgres_url"`     // PostgreSQL connection string
	PostgresPool    PostgresPoolConfig `yaml:"postgres_pool"`    // PostgreSQL connection pool settings
	CleanupInterval Duration           `yaml:"cleanup_interval"` // How often memory backend sweeps stale data (default: 5m)
}

// PostgresPoolConfig holds PostgreSQL connection pool settings.
type PostgresPoolConfig struct {
	MaxOpenConns    int      `yaml:"max_open_conns"`    // Maximum number of open connections (default: 25)
	MaxIdleConns    int      `yaml:"max_idle_conns"`    // Maximum number of idle connections (default: 5)
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"` // Maximum lifetime of connections (default: 5m)
}

// FacilitatorConfig holds x402 facilitator client configuration.
type FacilitatorConfig struct {
	URL     string   `yaml:"url"`     // Base URL of the verify/settle facilitator
	Timeout Duration `yaml:"timeout"` // Per-call HTTP timeout (default: 30s)
}

// PaymentsConfig holds x402 payment configuration.
type PaymentsConfig struct {
	ForceTestnet      bool   `yaml:"force_testnet"`       // Route every endpoint to Base Sepolia regardless of its own flag
	USDCBase          string `yaml:"usdc_base"`           // USDC contract on Base mainnet
	USDCBaseSepolia   string `yaml:"usdc_base_sepolia"`   // USDC contract on Base Sepolia
	MaxTimeoutSeconds int    `yaml:"max_timeout_seconds"` // Authorization validity window advertised to payers (default: 300)
}

// PaywallConfig holds browser paywall page configuration.
type PaywallConfig struct {
	WalletConnectProjectID string `yaml:"walletconnect_project_id"`
	DefaultTheme           string `yaml:"default_theme"` // light, dark, midnight
}

// SecretsConfig holds secret store encryption configuration.
type SecretsConfig struct {
	EncryptionKey string `yaml:"encryption_key"` // 64 hex chars (AES-256 key), normally set via RELAY402_ENCRYPTION_KEY
}

// UpstreamConfig holds upstream forwarding configuration.
type UpstreamConfig struct {
	Timeout           Duration `yaml:"timeout"`             // Upstream request timeout (default: 30s)
	AllowLocalhost    bool     `yaml:"allow_localhost"`     // Permit loopback upstream hosts (dev only)
	AllowOtherSchemes bool     `yaml:"allow_other_schemes"` // Permit non-http(s) upstream schemes
}

// RateLimitConfig holds rate limiting configuration.
// Per-endpoint limits live on the endpoint records; these settings cover the
// shared limiter and the global per-IP guard in front of everything.
type RateLimitConfig struct {
	GlobalEnabled bool     `yaml:"global_enabled"` // Enable global per-IP rate limiting
	GlobalLimit   int      `yaml:"global_limit"`   // Requests allowed per IP per window
	GlobalWindow  Duration `yaml:"global_window"`  // Time window for the per-IP limit

	SweepInterval Duration `yaml:"sweep_interval"` // Minimum time between limiter cleanup sweeps (default: 5m)
	StaleAfter    Duration `yaml:"stale_after"`    // Age after which idle limiter keys are dropped (default: 60s)
}

// CircuitBreakerConfig holds circuit breaker configuration for external services.
// Prevents cascading failures by failing fast when external services are degraded.
type CircuitBreakerConfig struct {
	Enabled     bool                 `yaml:"enabled"`     // Enable circuit breakers (default: true)
	Facilitator BreakerServiceConfig `yaml:"facilitator"` // Facilitator verify/settle circuit breaker
}

// BreakerServiceConfig configures a circuit breaker for a specific external service.
type BreakerServiceConfig struct {
	MaxRequests         uint32   `yaml:"max_requests"`         // Max requests in half-open state (default: 3)
	Interval            Duration `yaml:"interval"`             // Stats reset interval in closed state (default: 60s)
	Timeout             Duration `yaml:"timeout"`              // Open state timeout before half-open (default: 30s)
	ConsecutiveFailures uint32   `yaml:"consecutive_failures"` // Consecutive failures to trip (default: 5)
	FailureRatio        float64  `yaml:"failure_ratio"`        // Failure ratio to trip 0.0-1.0 (default: 0.5)
	MinRequests         uint32   `yaml:"min_requests"`         // Minimum requests before checking ratio (default: 10)
}
