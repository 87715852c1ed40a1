package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for development and tests.
// All state is lost on restart.
type MemoryStore struct {
	mu sync.RWMutex

	tenants       map[string]Tenant   // by ID
	tenantsBySlug map[string]string   // slug -> ID
	endpoints     map[string]Endpoint // by ID
	endpointKeys  map[string]string   // tenantID+"/"+slug -> ID
	cnames        map[string]string   // lowercase host -> endpoint ID
	secrets       map[string]Secret   // tenantID+"/"+name
	payments      map[string]Payment  // by ID
	requestLogs   []RequestLog
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:       make(map[string]Tenant),
		tenantsBySlug: make(map[string]string),
		endpoints:     make(map[string]Endpoint),
		endpointKeys:  make(map[string]string),
		cnames:        make(map[string]string),
		secrets:       make(map[string]Secret),
		payments:      make(map[string]Payment),
	}
}

func endpointKey(tenantID, slug string) string {
	return tenantID + "/" + slug
}

// CreateTenant stores a tenant.
func (s *MemoryStore) CreateTenant(_ context.Context, tenant Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now().UTC()
	}
	s.tenants[tenant.ID] = tenant
	s.tenantsBySlug[tenant.Slug] = tenant.ID
	return nil
}

// GetTenant retrieves a tenant by ID.
func (s *MemoryStore) GetTenant(_ context.Context, id string) (Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenant, ok := s.tenants[id]
	if !ok {
		return Tenant{}, ErrNotFound
	}
	return tenant, nil
}

// GetTenantBySlug retrieves a tenant by its URL slug.
func (s *MemoryStore) GetTenantBySlug(_ context.Context, slug string) (Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.tenantsBySlug[slug]
	if !ok {
		return Tenant{}, ErrNotFound
	}
	return s.tenants[id], nil
}

// CreateEndpoint stores an endpoint.
func (s *MemoryStore) CreateEndpoint(_ context.Context, endpoint Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if endpoint.CreatedAt.IsZero() {
		endpoint.CreatedAt = now
	}
	if endpoint.UpdatedAt.IsZero() {
		endpoint.UpdatedAt = now
	}
	s.storeEndpointLocked(endpoint)
	return nil
}

// UpdateEndpoint replaces an existing endpoint.
func (s *MemoryStore) UpdateEndpoint(_ context.Context, endpoint Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.endpoints[endpoint.ID]
	if !ok {
		return ErrNotFound
	}
	delete(s.endpointKeys, endpointKey(old.TenantID, old.Slug))
	if old.CNAME != "" {
		delete(s.cnames, strings.ToLower(old.CNAME))
	}

	endpoint.UpdatedAt = time.Now().UTC()
	s.storeEndpointLocked(endpoint)
	return nil
}

func (s *MemoryStore) storeEndpointLocked(endpoint Endpoint) {
	s.endpoints[endpoint.ID] = endpoint
	s.endpointKeys[endpointKey(endpoint.TenantID, endpoint.Slug)] = endpoint.ID
	if endpoint.CNAME != "" {
		s.cnames[strings.ToLower(endpoint.CNAME)] = endpoint.ID
	}
}

// GetEndpoint retrieves an endpoint by tenant and slug.
func (s *MemoryStore) GetEndpoint(_ context.Context, tenantID, slug string) (Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.endpointKeys[endpointKey(tenantID, slug)]
	if !ok {
		return Endpoint{}, ErrNotFound
	}
	return s.endpoints[id], nil
}

// GetEndpointByCNAME retrieves an endpoint by its custom domain.
// Host matching is case insensitive.
func (s *MemoryStore) GetEndpointByCNAME(_ context.Context, host string) (Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.cnames[strings.ToLower(host)]
	if !ok {
		return Endpoint{}, ErrNotFound
	}
	return s.endpoints[id], nil
}

// ListEndpoints returns all endpoints for a tenant.
func (s *MemoryStore) ListEndpoints(_ context.Context, tenantID string) ([]Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Endpoint
	for _, ep := range s.endpoints {
		if ep.TenantID == tenantID {
			out = append(out, ep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

// UpsertSecret creates or replaces a secret.
func (s *MemoryStore) UpsertSecret(_ context.Context, secret Secret) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := secret.TenantID + "/" + secret.Name
	now := time.Now().UTC()
	if existing, ok := s.secrets[key]; ok {
		secret.ID = existing.ID
		secret.CreatedAt = existing.CreatedAt
	} else if secret.CreatedAt.IsZero() {
		secret.CreatedAt = now
	}
	secret.UpdatedAt = now
	s.secrets[key] = secret
	return nil
}

// GetSecret retrieves a secret by tenant and name.
func (s *MemoryStore) GetSecret(_ context.Context, tenantID, name string) (Secret, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	secret, ok := s.secrets[tenantID+"/"+name]
	if !ok {
		return Secret{}, ErrNotFound
	}
	return secret, nil
}

// DeleteSecret removes a secret.
func (s *MemoryStore) DeleteSecret(_ context.Context, tenantID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tenantID + "/" + name
	if _, ok := s.secrets[key]; !ok {
		return ErrNotFound
	}
	delete(s.secrets, key)
	return nil
}

// RecordPayment stores a payment record.
func (s *MemoryStore) RecordPayment(_ context.Context, payment Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	s.payments[payment.ID] = payment
	return nil
}

// UpdatePayment applies a partial update to a payment record.
func (s *MemoryStore) UpdatePayment(_ context.Context, id string, update PaymentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[id]
	if !ok {
		return ErrNotFound
	}
	if update.Status != "" {
		payment.Status = update.Status
	}
	if update.TxHash != "" {
		payment.TxHash = update.TxHash
	}
	if update.Settlement != nil {
		payment.Settlement = update.Settlement
	}
	if update.SettledAt != nil {
		payment.SettledAt = update.SettledAt
	}
	if update.ErrorMessage != "" {
		payment.ErrorMessage = update.ErrorMessage
	}
	s.payments[id] = payment
	return nil
}

// GetPayment retrieves a payment by ID.
func (s *MemoryStore) GetPayment(_ context.Context, id string) (Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payment, ok := s.payments[id]
	if !ok {
		return Payment{}, ErrNotFound
	}
	return payment, nil
}

// ListPayments returns the most recent payments for a tenant, newest first.
func (s *MemoryStore) ListPayments(_ context.Context, tenantID string, limit int) ([]Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Payment
	for _, p := range s.payments {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecordRequestLog appends a request log entry.
func (s *MemoryStore) RecordRequestLog(_ context.Context, entry RequestLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.requestLogs = append(s.requestLogs, entry)
	return nil
}

// ListRequestLogs returns the most recent request logs for a tenant, newest first.
func (s *MemoryStore) ListRequestLogs(_ context.Context, tenantID string, limit int) ([]RequestLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []RequestLog
	for i := len(s.requestLogs) - 1; i >= 0; i-- {
		if s.requestLogs[i].TenantID == tenantID {
			out = append(out, s.requestLogs[i])
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
