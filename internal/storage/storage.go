package storage

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/relay402/server/internal/config"
)

// ErrNotFound is returned when a requested entity is missing from the store.
var ErrNotFound = errors.New("storage: not found")

// Store captures the persistence requirements for tenants, endpoints,
// secrets, and the payment/request audit trail.
type Store interface {
	// Tenant operations
	CreateTenant(ctx context.Context, tenant Tenant) error
	GetTenant(ctx context.Context, id string) (Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (Tenant, error)

	// Endpoint operations
	CreateEndpoint(ctx context.Context, endpoint Endpoint) error
	UpdateEndpoint(ctx context.Context, endpoint Endpoint) error
	GetEndpoint(ctx context.Context, tenantID, slug string) (Endpoint, error)
	GetEndpointByCNAME(ctx context.Context, host string) (Endpoint, error)
	ListEndpoints(ctx context.Context, tenantID string) ([]Endpoint, error)

	// Secret operations. Values arrive already encrypted; the store never
	// sees plaintext.
	UpsertSecret(ctx context.Context, secret Secret) error
	GetSecret(ctx context.Context, tenantID, name string) (Secret, error)
	DeleteSecret(ctx context.Context, tenantID, name string) error

	// Payment audit trail
	RecordPayment(ctx context.Context, payment Payment) error
	UpdatePayment(ctx context.Context, id string, update PaymentUpdate) error
	GetPayment(ctx context.Context, id string) (Payment, error)
	ListPayments(ctx context.Context, tenantID string, limit int) ([]Payment, error)

	// Request log. Best effort; writers must not fail requests on errors here.
	RecordRequestLog(ctx context.Context, entry RequestLog) error
	ListRequestLogs(ctx context.Context, tenantID string, limit int) ([]RequestLog, error)

	Close() error
}

// StoreConfig holds storage backend configuration.
type StoreConfig struct {
	Backend      string // "memory" or "postgres"
	PostgresURL  string
	PostgresPool config.PostgresPoolConfig
}

// NewStore creates a Store instance based on the provided configuration.
func NewStore(cfg StoreConfig) (Store, error) {
	return NewStoreWithDB(cfg, nil)
}

// NewStoreWithDB creates a Store instance with an optional shared database pool.
// If sharedDB is provided (non-nil) for the postgres backend, it is used
// instead of opening a new connection pool.
func NewStoreWithDB(cfg StoreConfig, sharedDB *sql.DB) (Store, error) {
	switch cfg.Backend {
	case "memory", "":
		// Memory backend loses all state on restart. Development and tests only.
		return NewMemoryStore(), nil
	case "postgres":
		if sharedDB != nil {
			return NewPostgresStoreWithDB(sharedDB)
		}
		return NewPostgresStore(cfg.PostgresURL, cfg.PostgresPool)
	default:
		return nil, fmt.Errorf("storage: unsupported backend %q", cfg.Backend)
	}
}

// NewID generates a random 16-byte hex identifier.
func NewID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the process is in a bad place; a
		// timestamp-derived fallback keeps audit writes from stopping.
		return fmt.Sprintf("fallback_%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
