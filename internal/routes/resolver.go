// Package routes resolves inbound requests to tenant endpoints, by path slugs
// or by custom domain.
package routes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/relay402/server/internal/storage"
)

// ErrNotFound is returned for any resolution failure a client may probe for:
// unknown tenant, unknown endpoint, inactive endpoint, or reserved slug.
// They are indistinguishable on purpose.
var ErrNotFound = errors.New("routes: endpoint not found")

// ErrNoRecipient is returned when neither the endpoint nor its tenant has a
// payment recipient configured. This is an operator error, not a client one.
var ErrNoRecipient = errors.New("routes: no payment recipient configured")

// ResolvedRoute is a fully resolved endpoint with its effective recipient.
type ResolvedRoute struct {
	Tenant   storage.Tenant
	Endpoint storage.Endpoint
	PayTo    string
}

// Resolver maps request coordinates to endpoints.
type Resolver struct {
	store storage.Store
}

// NewResolver creates a Resolver over the given store.
func NewResolver(store storage.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve finds the endpoint for a tenant slug and endpoint slug pair.
func (r *Resolver) Resolve(ctx context.Context, tenantSlug, endpointSlug string) (ResolvedRoute, error) {
	if tenantSlug == "" || endpointSlug == "" {
		return ResolvedRoute{}, ErrNotFound
	}
	if IsReserved(tenantSlug) || IsReserved(endpointSlug) {
		return ResolvedRoute{}, ErrNotFound
	}

	tenant, err := r.store.GetTenantBySlug(ctx, tenantSlug)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ResolvedRoute{}, ErrNotFound
		}
		return ResolvedRoute{}, fmt.Errorf("lookup tenant: %w", err)
	}

	endpoint, err := r.store.GetEndpoint(ctx, tenant.ID, endpointSlug)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ResolvedRoute{}, ErrNotFound
		}
		return ResolvedRoute{}, fmt.Errorf("lookup endpoint: %w", err)
	}

	return r.finish(ctx, tenant, endpoint)
}

// ResolveHost finds the endpoint mapped to a custom domain. Any port in the
// host is ignored.
func (r *Resolver) ResolveHost(ctx context.Context, host string) (ResolvedRoute, error) {
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	if host == "" {
		return ResolvedRoute{}, ErrNotFound
	}

	endpoint, err := r.store.GetEndpointByCNAME(ctx, host)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ResolvedRoute{}, ErrNotFound
		}
		return ResolvedRoute{}, fmt.Errorf("lookup endpoint by host: %w", err)
	}

	tenant, err := r.store.GetTenant(ctx, endpoint.TenantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ResolvedRoute{}, ErrNotFound
		}
		return ResolvedRoute{}, fmt.Errorf("lookup tenant: %w", err)
	}

	return r.finish(ctx, tenant, endpoint)
}

// finish applies the shared post-lookup checks and recipient fallback.
func (r *Resolver) finish(_ context.Context, tenant storage.Tenant, endpoint storage.Endpoint) (ResolvedRoute, error) {
	if !endpoint.Active {
		return ResolvedRoute{}, ErrNotFound
	}

	payTo := endpoint.PayTo
	if payTo == "" {
		payTo = tenant.DefaultPayTo
	}
	if payTo == "" {
		return ResolvedRoute{}, ErrNoRecipient
	}

	return ResolvedRoute{Tenant: tenant, Endpoint: endpoint, PayTo: payTo}, nil
}
