// Package quota performs admission control before any provider call.
//
// Checks run in a fixed order: daily tokens, monthly tokens, request
// rate, then concurrency. The token checks are optimistic: they compare
// counters as of the last metered request, so a burst of parallel
// requests can each pass before any of them is metered. Enforcement
// converges one request after the counters catch up.
package quota

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lexedge/aigateway/internal/tenant"
	"github.com/lexedge/aigateway/pkg/errors"
)

// limiterIdleTimeout is how long an unused per-tenant limiter survives
// before the cleanup loop drops it.
const limiterIdleTimeout = 10 * time.Minute

// Guard admits or rejects requests against a tenant's quota state.
type Guard struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	inflight map[string]int

	now func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewGuard creates a guard with no admitted requests.
func NewGuard() *Guard {
	return &Guard{
		limiters: make(map[string]*limiterEntry),
		inflight: make(map[string]int),
		now:      time.Now,
	}
}

// Release returns a request's concurrency slot. It is safe to call when
// no slot was taken.
type Release func()

// Admit checks the tenant's quota state and, when the tenant has a
// concurrency cap, takes an in-flight slot. The returned Release must be
// called exactly once after the request completes.
func (g *Guard) Admit(t *tenant.Tenant) (Release, error) {
	q := t.Quota
	now := g.now().UTC()

	if q.DailyTokenLimit > 0 && q.EffectiveDailyTokens(now) >= q.DailyTokenLimit {
		return nil, errors.NewQuotaExceeded(errors.ReasonDailyExceeded,
			tenant.NextDailyReset(now).Sub(now))
	}
	if q.MonthlyTokenLimit > 0 && q.EffectiveMonthlyTokens(now) >= q.MonthlyTokenLimit {
		return nil, errors.NewQuotaExceeded(errors.ReasonMonthlyExceeded,
			tenant.NextMonthlyReset(now).Sub(now))
	}

	if q.RequestsPerMinute > 0 && !g.allowRate(t.ID, q.RequestsPerMinute) {
		return nil, errors.NewQuotaExceeded(errors.ReasonRateLimited, time.Minute)
	}

	if q.MaxConcurrent > 0 {
		if !g.acquireSlot(t.ID, q.MaxConcurrent) {
			return nil, errors.NewQuotaExceeded(errors.ReasonTooManyInFlight, 0)
		}
		return func() { g.releaseSlot(t.ID) }, nil
	}

	return func() {}, nil
}

func (g *Guard) allowRate(tenantID string, perMinute int) bool {
	g.mu.Lock()
	entry, ok := g.limiters[tenantID]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
		}
		g.limiters[tenantID] = entry
	}
	entry.lastSeen = g.now()
	g.mu.Unlock()

	return entry.limiter.Allow()
}

func (g *Guard) acquireSlot(tenantID string, max int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inflight[tenantID] >= max {
		return false
	}
	g.inflight[tenantID]++
	return true
}

func (g *Guard) releaseSlot(tenantID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inflight[tenantID] > 0 {
		g.inflight[tenantID]--
	}
	if g.inflight[tenantID] == 0 {
		delete(g.inflight, tenantID)
	}
}

// Cleanup drops rate limiters that have been idle past the timeout.
// Intended to be called periodically from a background loop.
func (g *Guard) Cleanup() {
	cutoff := g.now().Add(-limiterIdleTimeout)
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, entry := range g.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(g.limiters, id)
		}
	}
}
