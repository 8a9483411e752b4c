package tenant

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and local development.
type MemoryStore struct {
	mu      sync.Mutex
	bySubj  map[string]*Tenant
	byID    map[string]*Tenant
	records []*UsageRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bySubj: make(map[string]*Tenant),
		byID:   make(map[string]*Tenant),
	}
}

// FindBySubject returns the tenant for a subject id, or nil.
func (s *MemoryStore) FindBySubject(_ context.Context, subjectID string) (*Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.bySubj[subjectID]
	if !ok {
		return nil, nil
	}
	return cloneTenant(t), nil
}

// CreateWithQuota inserts a tenant and its quota atomically. A concurrent
// create for the same subject returns the existing record.
func (s *MemoryStore) CreateWithQuota(_ context.Context, t *Tenant) (*Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.bySubj[t.SubjectID]; ok {
		return cloneTenant(existing), nil
	}

	stored := cloneTenant(t)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	stored.Quota.TenantID = stored.ID
	s.bySubj[stored.SubjectID] = stored
	s.byID[stored.ID] = stored
	return cloneTenant(stored), nil
}

// UpdateLastActive stamps the tenant's last activity time.
func (s *MemoryStore) UpdateLastActive(_ context.Context, tenantID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.byID[tenantID]; ok {
		stamp := at
		t.LastActiveAt = &stamp
	}
	return nil
}

// RecordUsage appends the record and applies its deltas to the counters.
func (s *MemoryStore) RecordUsage(_ context.Context, rec *UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[rec.TenantID]
	if !ok {
		return nil
	}

	stored := *rec
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.records = append(s.records, &stored)

	now := stored.CreatedAt
	q := t.Quota
	if startOfDay(now).After(q.LastDailyReset) {
		q.CurrentDailyTokens = 0
		q.LastDailyReset = startOfDay(now)
	}
	if startOfMonth(now).After(q.LastMonthlyReset) {
		q.CurrentMonthlyTokens = 0
		q.LastMonthlyReset = startOfMonth(now)
	}
	q.CurrentDailyTokens += int64(stored.TotalTokens)
	q.CurrentMonthlyTokens += int64(stored.TotalTokens)
	q.TotalTokensUsed += int64(stored.TotalTokens)
	q.TotalRequests++
	q.TotalCost += stored.Cost
	return nil
}

// Records returns a snapshot of all stored usage records.
func (s *MemoryStore) Records() []*UsageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*UsageRecord, len(s.records))
	for i, r := range s.records {
		cp := *r
		out[i] = &cp
	}
	return out
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func cloneTenant(t *Tenant) *Tenant {
	cp := *t
	if t.Quota != nil {
		q := *t.Quota
		cp.Quota = &q
	}
	if t.LastActiveAt != nil {
		stamp := *t.LastActiveAt
		cp.LastActiveAt = &stamp
	}
	return &cp
}
