package tenant

import (
	"context"
	"time"
)

// Store persists tenants, quotas, and usage records.
//
// Implementations must make CreateWithQuota and RecordUsage atomic: a
// tenant is never visible without its quota row, and a usage record is
// never visible without its counter increments.
type Store interface {
	// FindBySubject returns the tenant for an upstream subject id, with
	// its quota populated. Returns nil, nil when no tenant exists.
	FindBySubject(ctx context.Context, subjectID string) (*Tenant, error)

	// CreateWithQuota inserts a tenant and its quota in one transaction.
	// When another request provisions the same subject concurrently, the
	// loser returns the already-stored tenant instead of an error.
	CreateWithQuota(ctx context.Context, t *Tenant) (*Tenant, error)

	// UpdateLastActive stamps the tenant's last activity time.
	UpdateLastActive(ctx context.Context, tenantID string, at time.Time) error

	// RecordUsage inserts the usage record and applies its token and cost
	// deltas to the tenant's quota counters in one transaction. Counters
	// whose window rolled over are reset before the delta is applied.
	RecordUsage(ctx context.Context, rec *UsageRecord) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	Close() error
}
