package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/relay402/server/internal/config"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// queryTimeout bounds individual database queries so a stalled database
// cannot hold proxy requests open indefinitely.
const queryTimeout = 5 * time.Second

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	ownsDB bool // Track if we created the DB connection (for Close())
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(connectionString string, poolConfig config.PostgresPoolConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		// Close() error during initialization cleanup is not actionable;
		// the connection failure is the error the caller needs.
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	config.ApplyPostgresPoolSettings(db, poolConfig)

	store := &PostgresStore{db: db, ownsDB: true}
	if err := store.createTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreWithDB creates a PostgreSQL-backed store using an existing
// connection pool, allowing the pool to be shared across stores.
func NewPostgresStoreWithDB(db *sql.DB) (*PostgresStore, error) {
	store := &PostgresStore{db: db, ownsDB: false}
	if err := store.createTables(); err != nil {
		return nil, err
	}
	return store, nil
}

// createTables creates the schema if it doesn't exist.
func (s *PostgresStore) createTables() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tenants (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			default_pay_to TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS endpoints (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES tenants(id),
			slug TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			upstream_url TEXT NOT NULL,
			auth_kind TEXT NOT NULL DEFAULT 'none',
			auth_config JSONB,
			price_usd BIGINT NOT NULL,
			pay_to TEXT NOT NULL DEFAULT '',
			testnet BOOLEAN NOT NULL DEFAULT FALSE,
			paywall JSONB,
			custom_template TEXT NOT NULL DEFAULT '',
			cname TEXT,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			rate_limit_per_sec INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE (tenant_id, slug)
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_endpoints_cname
			ON endpoints (LOWER(cname)) WHERE cname IS NOT NULL AND cname <> '';

		CREATE TABLE IF NOT EXISTS secrets (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL REFERENCES tenants(id),
			name TEXT NOT NULL,
			ciphertext BYTEA NOT NULL,
			nonce BYTEA NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE (tenant_id, name)
		);

		CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			endpoint_id TEXT REFERENCES endpoints(id) ON DELETE SET NULL,
			tenant_id TEXT NOT NULL,
			payer TEXT NOT NULL DEFAULT '',
			amount_usd BIGINT NOT NULL,
			network TEXT NOT NULL DEFAULT '',
			chain_id BIGINT NOT NULL DEFAULT 0,
			tx_hash TEXT,
			status TEXT NOT NULL,
			payload JSONB,
			settlement JSONB,
			request_path TEXT NOT NULL DEFAULT '',
			request_method TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			settled_at TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_payments_tenant_created
			ON payments (tenant_id, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_payments_endpoint_created
			ON payments (endpoint_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS request_logs (
			id TEXT PRIMARY KEY,
			endpoint_id TEXT,
			tenant_id TEXT NOT NULL,
			payment_id TEXT,
			path TEXT NOT NULL DEFAULT '',
			method TEXT NOT NULL DEFAULT '',
			status INTEGER NOT NULL,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			client_ip TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			is_browser BOOLEAN NOT NULL DEFAULT FALSE,
			paid BOOLEAN NOT NULL DEFAULT FALSE,
			rate_limited BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_request_logs_tenant_created
			ON request_logs (tenant_id, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_request_logs_endpoint_created
			ON request_logs (endpoint_id, created_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// withQueryTimeout derives a bounded context for a single query.
func withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, queryTimeout)
}

// CreateTenant stores a tenant.
func (s *PostgresStore) CreateTenant(ctx context.Context, tenant Tenant) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, slug, default_pay_to, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		tenant.ID, tenant.Name, tenant.Slug, tenant.DefaultPayTo, tenant.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

// GetTenant retrieves a tenant by ID.
func (s *PostgresStore) GetTenant(ctx context.Context, id string) (Tenant, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	return s.scanTenant(s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, default_pay_to, created_at
		FROM tenants WHERE id = $1`, id))
}

// GetTenantBySlug retrieves a tenant by its URL slug.
func (s *PostgresStore) GetTenantBySlug(ctx context.Context, slug string) (Tenant, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	return s.scanTenant(s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, default_pay_to, created_at
		FROM tenants WHERE slug = $1`, slug))
}

func (s *PostgresStore) scanTenant(row *sql.Row) (Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.DefaultPayTo, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Tenant{}, ErrNotFound
	}
	if err != nil {
		return Tenant{}, fmt.Errorf("scan tenant: %w", err)
	}
	return t, nil
}

const endpointColumns = `id, tenant_id, slug, name, description, upstream_url,
	auth_kind, auth_config, price_usd, pay_to, testnet, paywall,
	custom_template, cname, active, rate_limit_per_sec, created_at, updated_at`

// CreateEndpoint stores an endpoint.
func (s *PostgresStore) CreateEndpoint(ctx context.Context, endpoint Endpoint) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	if endpoint.CreatedAt.IsZero() {
		endpoint.CreatedAt = now
	}
	if endpoint.UpdatedAt.IsZero() {
		endpoint.UpdatedAt = now
	}

	authConfig, paywall, err := marshalEndpointJSON(endpoint)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO endpoints (`+endpointColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		endpoint.ID, endpoint.TenantID, endpoint.Slug, endpoint.Name, endpoint.Description,
		endpoint.UpstreamURL, string(endpoint.AuthKind), authConfig, int64(endpoint.PriceUSD),
		endpoint.PayTo, endpoint.Testnet, paywall, endpoint.CustomTemplate,
		nullableString(endpoint.CNAME), endpoint.Active, endpoint.RateLimitPerSec,
		endpoint.CreatedAt.UTC(), endpoint.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert endpoint: %w", err)
	}
	return nil
}

// UpdateEndpoint replaces an existing endpoint.
func (s *PostgresStore) UpdateEndpoint(ctx context.Context, endpoint Endpoint) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	authConfig, paywall, err := marshalEndpointJSON(endpoint)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE endpoints SET
			slug = $2, name = $3, description = $4, upstream_url = $5,
			auth_kind = $6, auth_config = $7, price_usd = $8, pay_to = $9,
			testnet = $10, paywall = $11, custom_template = $12, cname = $13,
			active = $14, rate_limit_per_sec = $15, updated_at = $16
		WHERE id = $1`,
		endpoint.ID, endpoint.Slug, endpoint.Name, endpoint.Description, endpoint.UpstreamURL,
		string(endpoint.AuthKind), authConfig, int64(endpoint.PriceUSD), endpoint.PayTo,
		endpoint.Testnet, paywall, endpoint.CustomTemplate, nullableString(endpoint.CNAME),
		endpoint.Active, endpoint.RateLimitPerSec, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update endpoint: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetEndpoint retrieves an endpoint by tenant and slug.
func (s *PostgresStore) GetEndpoint(ctx context.Context, tenantID, slug string) (Endpoint, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	return scanEndpoint(s.db.QueryRowContext(ctx, `
		SELECT `+endpointColumns+` FROM endpoints
		WHERE tenant_id = $1 AND slug = $2`, tenantID, slug))
}

// GetEndpointByCNAME retrieves an endpoint by its custom domain.
func (s *PostgresStore) GetEndpointByCNAME(ctx context.Context, host string) (Endpoint, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	return scanEndpoint(s.db.QueryRowContext(ctx, `
		SELECT `+endpointColumns+` FROM endpoints
		WHERE LOWER(cname) = $1`, strings.ToLower(host)))
}

// ListEndpoints returns all endpoints for a tenant.
func (s *PostgresStore) ListEndpoints(ctx context.Context, tenantID string) ([]Endpoint, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+endpointColumns+` FROM endpoints
		WHERE tenant_id = $1 ORDER BY slug`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	defer rows.Close()

	var out []Endpoint
	for rows.Next() {
		ep, err := scanEndpointRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

// UpsertSecret creates or replaces a secret.
func (s *PostgresStore) UpsertSecret(ctx context.Context, secret Secret) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	if secret.CreatedAt.IsZero() {
		secret.CreatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO secrets (id, tenant_id, name, ciphertext, nonce, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, name) DO UPDATE SET
			ciphertext = EXCLUDED.ciphertext,
			nonce = EXCLUDED.nonce,
			updated_at = EXCLUDED.updated_at`,
		secret.ID, secret.TenantID, secret.Name, secret.Ciphertext, secret.Nonce,
		secret.CreatedAt.UTC(), now)
	if err != nil {
		return fmt.Errorf("upsert secret: %w", err)
	}
	return nil
}

// GetSecret retrieves a secret by tenant and name.
func (s *PostgresStore) GetSecret(ctx context.Context, tenantID, name string) (Secret, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var sec Secret
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, ciphertext, nonce, created_at, updated_at
		FROM secrets WHERE tenant_id = $1 AND name = $2`, tenantID, name).
		Scan(&sec.ID, &sec.TenantID, &sec.Name, &sec.Ciphertext, &sec.Nonce, &sec.CreatedAt, &sec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Secret{}, ErrNotFound
	}
	if err != nil {
		return Secret{}, fmt.Errorf("scan secret: %w", err)
	}
	return sec, nil
}

// DeleteSecret removes a secret.
func (s *PostgresStore) DeleteSecret(ctx context.Context, tenantID, name string) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM secrets WHERE tenant_id = $1 AND name = $2`, tenantID, name)
	if err != nil {
		return fmt.Errorf("delete secret: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordPayment stores a payment record.
func (s *PostgresStore) RecordPayment(ctx context.Context, payment Payment) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, endpoint_id, tenant_id, payer, amount_usd, network,
			chain_id, tx_hash, status, payload, settlement, request_path, request_method,
			error_message, created_at, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		payment.ID, nullableString(payment.EndpointID), payment.TenantID, payment.Payer,
		int64(payment.AmountUSD), payment.Network, payment.ChainID, nullableString(payment.TxHash),
		string(payment.Status), nullableBytes(payment.Payload), nullableBytes(payment.Settlement),
		payment.RequestPath, payment.RequestMethod, payment.ErrorMessage,
		payment.CreatedAt.UTC(), payment.SettledAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// UpdatePayment applies a partial update to a payment record.
func (s *PostgresStore) UpdatePayment(ctx context.Context, id string, update PaymentUpdate) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, `
		UPDATE payments SET
			status = COALESCE(NULLIF($2, ''), status),
			tx_hash = COALESCE(NULLIF($3, ''), tx_hash),
			settlement = COALESCE($4, settlement),
			settled_at = COALESCE($5, settled_at),
			error_message = COALESCE(NULLIF($6, ''), error_message)
		WHERE id = $1`,
		id, string(update.Status), update.TxHash, nullableBytes(update.Settlement),
		update.SettledAt, update.ErrorMessage)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPayment retrieves a payment by ID.
func (s *PostgresStore) GetPayment(ctx context.Context, id string) (Payment, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, endpoint_id, tenant_id, payer, amount_usd, network, chain_id,
			tx_hash, status, payload, settlement, request_path, request_method,
			error_message, created_at, settled_at
		FROM payments WHERE id = $1`, id)
	if err != nil {
		return Payment{}, fmt.Errorf("get payment: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Payment{}, err
		}
		return Payment{}, ErrNotFound
	}
	return scanPayment(rows)
}

// ListPayments returns the most recent payments for a tenant, newest first.
func (s *PostgresStore) ListPayments(ctx context.Context, tenantID string, limit int) ([]Payment, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, endpoint_id, tenant_id, payer, amount_usd, network, chain_id,
			tx_hash, status, payload, settlement, request_path, request_method,
			error_message, created_at, settled_at
		FROM payments WHERE tenant_id = $1
		ORDER BY created_at DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecordRequestLog appends a request log entry.
func (s *PostgresStore) RecordRequestLog(ctx context.Context, entry RequestLog) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO request_logs (id, endpoint_id, tenant_id, payment_id, path, method,
			status, duration_ms, client_ip, user_agent, is_browser, paid, rate_limited, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		entry.ID, nullableString(entry.EndpointID), entry.TenantID, nullableString(entry.PaymentID),
		entry.Path, entry.Method, entry.Status, entry.DurationMs, entry.ClientIP,
		entry.UserAgent, entry.IsBrowser, entry.Paid, entry.RateLimited, entry.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert request log: %w", err)
	}
	return nil
}

// ListRequestLogs returns the most recent request logs for a tenant, newest first.
func (s *PostgresStore) ListRequestLogs(ctx context.Context, tenantID string, limit int) ([]RequestLog, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, endpoint_id, tenant_id, payment_id, path, method, status,
			duration_ms, client_ip, user_agent, is_browser, paid, rate_limited, created_at
		FROM request_logs WHERE tenant_id = $1
		ORDER BY created_at DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list request logs: %w", err)
	}
	defer rows.Close()

	var out []RequestLog
	for rows.Next() {
		var entry RequestLog
		var endpointID, paymentID sql.NullString
		err := rows.Scan(&entry.ID, &endpointID, &entry.TenantID, &paymentID,
			&entry.Path, &entry.Method, &entry.Status, &entry.DurationMs,
			&entry.ClientIP, &entry.UserAgent, &entry.IsBrowser, &entry.Paid,
			&entry.RateLimited, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan request log: %w", err)
		}
		entry.EndpointID = endpointID.String
		entry.PaymentID = paymentID.String
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Close closes the database connection if this store owns it.
func (s *PostgresStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}
