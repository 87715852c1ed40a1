package storage

import (
	"encoding/json"
	"time"

	"github.com/relay402/server/internal/money"
)

// AuthKind enumerates the ways an endpoint authenticates to its upstream.
type AuthKind string

const (
	AuthNone          AuthKind = "none"
	AuthBearer        AuthKind = "bearer"
	AuthHeaderKey     AuthKind = "header-key"
	AuthQueryKey      AuthKind = "query-key"
	AuthBasic         AuthKind = "basic"
	AuthCustomHeaders AuthKind = "custom-headers"
)

// Tenant is a seller account owning endpoints, secrets, and payments.
type Tenant struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	DefaultPayTo string    `json:"defaultPayTo"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PaywallBranding customizes the browser paywall page for an endpoint.
type PaywallBranding struct {
	Title                  string `json:"title,omitempty"`
	Description            string `json:"description,omitempty"`
	LogoURL                string `json:"logoUrl,omitempty"`
	Theme                  string `json:"theme,omitempty"`
	AccentColor            string `json:"accentColor,omitempty"`
	WalletConnectProjectID string `json:"walletConnectProjectId,omitempty"`
}

// Endpoint is a monetized route: a slug under a tenant mapped to an upstream
// URL with a price, upstream credentials, and paywall presentation.
type Endpoint struct {
	ID              string            `json:"id"`
	TenantID        string            `json:"tenantId"`
	Slug            string            `json:"slug"`
	Name            string            `json:"name"`
	Description     string            `json:"description,omitempty"`
	UpstreamURL     string            `json:"upstreamUrl"`
	AuthKind        AuthKind          `json:"authKind"`
	AuthConfig      map[string]string `json:"authConfig,omitempty"`
	PriceUSD        money.USD         `json:"priceUsd"`
	PayTo           string            `json:"payTo,omitempty"`
	Testnet         bool              `json:"testnet"`
	Paywall         PaywallBranding   `json:"paywall,omitempty"`
	CustomTemplate  string            `json:"customTemplate,omitempty"`
	CNAME           string            `json:"cname,omitempty"`
	Active          bool              `json:"active"`
	RateLimitPerSec int               `json:"rateLimitPerSec"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// Secret is an encrypted credential owned by a tenant, referenced from auth
// config values as {{SECRET:NAME}}. Plaintext never touches the store.
type Secret struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	Name       string    `json:"name"`
	Ciphertext []byte    `json:"-"`
	Nonce      []byte    `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// PaymentStatus tracks a payment through its lifecycle.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentVerified PaymentStatus = "verified"
	PaymentSettled  PaymentStatus = "settled"
	PaymentFailed   PaymentStatus = "failed"
)

// Payment is the audit record for one paid request.
type Payment struct {
	ID            string          `json:"id"`
	EndpointID    string          `json:"endpointId"`
	TenantID      string          `json:"tenantId"`
	Payer         string          `json:"payer"`
	AmountUSD     money.USD       `json:"amountUsd"`
	Network       string          `json:"network"`
	ChainID       int64           `json:"chainId"`
	TxHash        string          `json:"txHash,omitempty"`
	Status        PaymentStatus   `json:"status"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Settlement    json.RawMessage `json:"settlement,omitempty"`
	RequestPath   string          `json:"requestPath"`
	RequestMethod string          `json:"requestMethod"`
	ErrorMessage  string          `json:"errorMessage,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	SettledAt     *time.Time      `json:"settledAt,omitempty"`
}

// PaymentUpdate carries the mutable fields of a payment record.
// Nil/zero fields are left unchanged.
type PaymentUpdate struct {
	Status       PaymentStatus
	TxHash       string
	Settlement   json.RawMessage
	SettledAt    *time.Time
	ErrorMessage string
}

// RequestLog records one proxied request for tenant analytics.
type RequestLog struct {
	ID          string    `json:"id"`
	EndpointID  string    `json:"endpointId"`
	TenantID    string    `json:"tenantId"`
	PaymentID   string    `json:"paymentId,omitempty"`
	Path        string    `json:"path"`
	Method      string    `json:"method"`
	Status      int       `json:"status"`
	DurationMs  int64     `json:"durationMs"`
	ClientIP    string    `json:"clientIp"`
	UserAgent   string    `json:"userAgent,omitempty"`
	IsBrowser   bool      `json:"isBrowser"`
	Paid        bool      `json:"paid"`
	RateLimited bool      `json:"rateLimited"`
	CreatedAt   time.Time `json:"createdAt"`
}
