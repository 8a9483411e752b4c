// Package tenant manages caller accounts and their quota state.
package tenant

import "time"

// Tenant is a provisioned caller account.
type Tenant struct {
	ID               string
	SubjectID        string
	Email            string
	Name             string
	IsActive         bool
	CreatedFromToken bool
	LastActiveAt     *time.Time
	CreatedAt        time.Time

	// Quota is always populated when the tenant is loaded from a store.
	Quota *Quota
}

// Quota holds the limits and consumption counters for one tenant.
// Daily and monthly counters reset lazily when their window rolls over,
// tracked by the LastDailyReset and LastMonthlyReset stamps.
type Quota struct {
	TenantID          string
	DailyTokenLimit   int64
	MonthlyTokenLimit int64
	RequestsPerMinute int
	MaxConcurrent     int

	CurrentDailyTokens   int64
	CurrentMonthlyTokens int64
	TotalTokensUsed      int64
	TotalRequests        int64
	TotalCost            float64

	LastDailyReset   time.Time
	LastMonthlyReset time.Time
}

// EffectiveDailyTokens returns the daily counter, treating it as zero when
// the UTC day has rolled over since the last reset.
func (q *Quota) EffectiveDailyTokens(now time.Time) int64 {
	if startOfDay(now).After(q.LastDailyReset) {
		return 0
	}
	return q.CurrentDailyTokens
}

// EffectiveMonthlyTokens returns the monthly counter, treating it as zero
// when the UTC month has rolled over since the last reset.
func (q *Quota) EffectiveMonthlyTokens(now time.Time) int64 {
	if startOfMonth(now).After(q.LastMonthlyReset) {
		return 0
	}
	return q.CurrentMonthlyTokens
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func startOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// NextDailyReset returns the start of the next UTC day.
func NextDailyReset(now time.Time) time.Time {
	return startOfDay(now).Add(24 * time.Hour)
}

// NextMonthlyReset returns the start of the next UTC month.
func NextMonthlyReset(now time.Time) time.Time {
	return startOfMonth(now).AddDate(0, 1, 0)
}

// UsageRecord is one metered generation attempt. Failed attempts are
// recorded too, with Success false and zero or partial token counts.
type UsageRecord struct {
	ID               string
	TenantID         string
	Provider         string
	Model            string
	Operation        string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Cost             float64
	LatencyMS        int64
	Success          bool
	StatusCode       int
	ErrorMessage     string
	CreatedAt        time.Time
}
