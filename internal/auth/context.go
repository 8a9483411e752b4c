package auth

import (
	"context"

	"github.com/lexedge/aigateway/internal/tenant"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	identityKey contextKey = "identity"
	tenantKey   contextKey = "tenant"
)

// WithIdentity stores the verified identity on the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the verified identity, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok
}

// WithTenant stores the resolved tenant on the context.
func WithTenant(ctx context.Context, t *tenant.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

// TenantFromContext returns the resolved tenant, if any.
func TenantFromContext(ctx context.Context) (*tenant.Tenant, bool) {
	t, ok := ctx.Value(tenantKey).(*tenant.Tenant)
	return t, ok
}
