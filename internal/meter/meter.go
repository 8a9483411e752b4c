// Package meter records usage for every generation attempt, successful
// or not. Metering failures are logged and never surfaced to the caller:
// losing a usage row is preferable to failing a request that already
// consumed provider tokens.
package meter

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lexedge/aigateway/internal/pricing"
	"github.com/lexedge/aigateway/internal/tenant"
	"github.com/lexedge/aigateway/pkg/types"
)

// Invalidator drops a memoized tenant record once its counters change,
// so the next admission check reads fresh numbers. Implemented by
// tenant.Directory.
type Invalidator interface {
	Invalidate(subjectID string)
}

// Attempt describes one completed call to a provider.
type Attempt struct {
	Provider     string
	Model        string
	Operation    string
	Usage        types.Usage
	Latency      time.Duration
	Success      bool
	StatusCode   int
	ErrorMessage string
}

// Meter persists usage records and their quota counter increments.
type Meter struct {
	store       tenant.Store
	calculator  *pricing.Calculator
	invalidator Invalidator
	logger      *slog.Logger
}

// New creates a meter over the given store. The invalidator may be nil
// when no tenant records are memoized.
func New(store tenant.Store, calculator *pricing.Calculator, invalidator Invalidator, logger *slog.Logger) *Meter {
	return &Meter{
		store:       store,
		calculator:  calculator,
		invalidator: invalidator,
		logger:      logger,
	}
}

// Record persists one attempt. The write is atomic with the counter
// increments; on failure the error is logged and swallowed.
func (m *Meter) Record(ctx context.Context, t *tenant.Tenant, a Attempt) {
	rec := &tenant.UsageRecord{
		ID:               uuid.NewString(),
		TenantID:         t.ID,
		Provider:         a.Provider,
		Model:            a.Model,
		Operation:        a.Operation,
		PromptTokens:     a.Usage.Prompt,
		CompletionTokens: a.Usage.Completion,
		TotalTokens:      a.Usage.Total,
		Cost:             m.calculator.Cost(a.Provider, a.Model, a.Usage),
		LatencyMS:        a.Latency.Milliseconds(),
		Success:          a.Success,
		StatusCode:       a.StatusCode,
		ErrorMessage:     a.ErrorMessage,
		CreatedAt:        time.Now().UTC(),
	}

	if err := m.store.RecordUsage(ctx, rec); err != nil {
		m.logger.Error("failed to record usage",
			"error", err,
			"tenant_id", t.ID,
			"provider", a.Provider,
			"model", a.Model,
			"total_tokens", a.Usage.Total,
		)
		return
	}

	if m.invalidator != nil {
		m.invalidator.Invalidate(t.SubjectID)
	}
}
