package tenant

import (
	"context"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/lexedge/aigateway/internal/config"
	"github.com/lexedge/aigateway/internal/metrics"
	"github.com/lexedge/aigateway/pkg/errors"
)

// resolveCacheTTL bounds how stale a memoized tenant record may be.
// The meter invalidates the record after every counter write, so the
// TTL only covers writes that bypass the meter (admin edits, other
// gateway instances sharing the store).
const resolveCacheTTL = 30 * time.Second

// Directory resolves verified identities to tenant records, provisioning
// first-time callers when enabled.
type Directory struct {
	store  Store
	logger *slog.Logger
	cache  *gocache.Cache

	mu            sync.RWMutex
	autoProvision bool
	defaults      config.QuotaConfig
}

// NewDirectory creates a directory over the given store.
func NewDirectory(store Store, cfg config.AuthConfig, logger *slog.Logger) *Directory {
	return &Directory{
		store:         store,
		autoProvision: cfg.AutoProvision,
		defaults:      cfg.DefaultQuota,
		logger:        logger,
		cache:         gocache.New(resolveCacheTTL, 2*resolveCacheTTL),
	}
}

// SetDefaults applies reloaded provisioning settings. Already-provisioned
// tenants keep their stored quotas; only future provisioning changes.
func (d *Directory) SetDefaults(cfg config.AuthConfig) {
	d.mu.Lock()
	d.autoProvision = cfg.AutoProvision
	d.defaults = cfg.DefaultQuota
	d.mu.Unlock()
}

// Resolve returns the tenant for a verified subject. Unknown subjects are
// auto-provisioned with the configured default quota when enabled, and
// rejected otherwise. Disabled tenants are always rejected.
func (d *Directory) Resolve(ctx context.Context, subjectID, email, name string) (*Tenant, error) {
	if cached, ok := d.cache.Get(subjectID); ok {
		t := cached.(*Tenant)
		if !t.IsActive {
			return nil, errors.NewTenantDisabled()
		}
		d.touchLastActive(t.ID)
		return t, nil
	}

	t, err := d.store.FindBySubject(ctx, subjectID)
	if err != nil {
		return nil, errors.NewInternal("tenant lookup failed: " + err.Error())
	}

	if t == nil {
		d.mu.RLock()
		provision := d.autoProvision
		d.mu.RUnlock()
		if !provision {
			return nil, errors.NewUnknownTenant(subjectID)
		}
		t, err = d.provision(ctx, subjectID, email, name)
		if err != nil {
			return nil, err
		}
	}

	if !t.IsActive {
		// Cache the disabled record too so repeated calls stay cheap.
		d.cache.SetDefault(subjectID, t)
		return nil, errors.NewTenantDisabled()
	}

	d.cache.SetDefault(subjectID, t)
	d.touchLastActive(t.ID)
	return t, nil
}

func (d *Directory) provision(ctx context.Context, subjectID, email, name string) (*Tenant, error) {
	d.mu.RLock()
	defaults := d.defaults
	d.mu.RUnlock()

	t, err := d.store.CreateWithQuota(ctx, &Tenant{
		SubjectID:        subjectID,
		Email:            email,
		Name:             name,
		IsActive:         true,
		CreatedFromToken: true,
		Quota: &Quota{
			DailyTokenLimit:   defaults.DailyTokenLimit,
			MonthlyTokenLimit: defaults.MonthlyTokenLimit,
			RequestsPerMinute: defaults.RequestsPerMinute,
			MaxConcurrent:     defaults.MaxConcurrent,
		},
	})
	if err != nil {
		return nil, errors.NewInternal("tenant provisioning failed: " + err.Error())
	}
	metrics.TenantsProvisioned.Inc()
	d.logger.Info("provisioned tenant from token",
		"tenant_id", t.ID,
		"subject_id", subjectID,
	)
	return t, nil
}

// touchLastActive stamps activity asynchronously. Failures are logged and
// never affect the request.
func (d *Directory) touchLastActive(tenantID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.store.UpdateLastActive(ctx, tenantID, time.Now().UTC()); err != nil {
			d.logger.Warn("failed to update last_active_at", "error", err, "tenant_id", tenantID)
		}
	}()
}

// Invalidate drops a memoized tenant record, forcing the next resolve to
// hit the store.
func (d *Directory) Invalidate(subjectID string) {
	d.cache.Delete(subjectID)
}
