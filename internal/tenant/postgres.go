package tenant

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/lexedge/aigateway/internal/config"
)

// PostgresStore persists tenants in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool against the configured DSN.
func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return &PostgresStore{db: db}, nil
}

const tenantColumns = `
	t.id, t.subject_id, t.email, t.name, t.is_active, t.created_from_token,
	t.last_active_at, t.created_at,
	q.daily_token_limit, q.monthly_token_limit, q.requests_per_minute,
	q.max_concurrent, q.current_daily_tokens, q.current_monthly_tokens,
	q.total_tokens_used, q.total_requests, q.total_cost,
	q.last_daily_reset, q.last_monthly_reset`

// FindBySubject returns the tenant for a subject id, or nil.
func (s *PostgresStore) FindBySubject(ctx context.Context, subjectID string) (*Tenant, error) {
	query := `SELECT` + tenantColumns + `
		FROM tenants t
		JOIN quotas q ON q.tenant_id = t.id
		WHERE t.subject_id = $1`

	row := s.db.QueryRowContext(ctx, query, subjectID)
	t, err := scanTenant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find tenant: %w", err)
	}
	return t, nil
}

// CreateWithQuota inserts a tenant and its quota in one transaction.
// When a concurrent request wins the insert race, the existing tenant is
// returned instead.
func (s *PostgresStore) CreateWithQuota(ctx context.Context, t *Tenant) (*Tenant, error) {
	id := t.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tenants (id, subject_id, email, name, is_active, created_from_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, t.SubjectID, t.Email, t.Name, t.IsActive, t.CreatedFromToken, now,
	)
	if err != nil {
		// Unique violation on subject_id means another request won the
		// provisioning race; return its row.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return s.FindBySubject(ctx, t.SubjectID)
		}
		return nil, fmt.Errorf("insert tenant: %w", err)
	}

	q := t.Quota
	_, err = tx.ExecContext(ctx, `
		INSERT INTO quotas (tenant_id, daily_token_limit, monthly_token_limit,
			requests_per_minute, max_concurrent, last_daily_reset, last_monthly_reset)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, q.DailyTokenLimit, q.MonthlyTokenLimit,
		q.RequestsPerMinute, q.MaxConcurrent, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert quota: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return s.FindBySubject(ctx, t.SubjectID)
}

// UpdateLastActive stamps the tenant's last activity time.
func (s *PostgresStore) UpdateLastActive(ctx context.Context, tenantID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tenants SET last_active_at = $1 WHERE id = $2`, at, tenantID)
	if err != nil {
		return fmt.Errorf("update last_active_at: %w", err)
	}
	return nil
}

// RecordUsage inserts the usage record and applies its deltas to the quota
// counters in one transaction. Stale daily or monthly counters are reset
// before the delta is applied.
func (s *PostgresStore) RecordUsage(ctx context.Context, rec *UsageRecord) error {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := rec.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO usage_records (id, tenant_id, provider, model, operation,
			prompt_tokens, completion_tokens, total_tokens, cost,
			latency_ms, success, status_code, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		id, rec.TenantID, rec.Provider, rec.Model, rec.Operation,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.Cost,
		rec.LatencyMS, rec.Success, rec.StatusCode, nullString(rec.ErrorMessage), now,
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}

	dayStart := startOfDay(now)
	monthStart := startOfMonth(now)
	_, err = tx.ExecContext(ctx, `
		UPDATE quotas SET
			current_daily_tokens = CASE WHEN last_daily_reset < $2
				THEN $4 ELSE current_daily_tokens + $4 END,
			last_daily_reset = GREATEST(last_daily_reset, $2),
			current_monthly_tokens = CASE WHEN last_monthly_reset < $3
				THEN $4 ELSE current_monthly_tokens + $4 END,
			last_monthly_reset = GREATEST(last_monthly_reset, $3),
			total_tokens_used = total_tokens_used + $4,
			total_requests = total_requests + 1,
			total_cost = total_cost + $5
		WHERE tenant_id = $1`,
		rec.TenantID, dayStart, monthStart, rec.TotalTokens, rec.Cost,
	)
	if err != nil {
		return fmt.Errorf("update quota counters: %w", err)
	}

	return tx.Commit()
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func scanTenant(row *sql.Row) (*Tenant, error) {
	var (
		t          Tenant
		q          Quota
		lastActive sql.NullTime
	)
	err := row.Scan(
		&t.ID, &t.SubjectID, &t.Email, &t.Name, &t.IsActive, &t.CreatedFromToken,
		&lastActive, &t.CreatedAt,
		&q.DailyTokenLimit, &q.MonthlyTokenLimit, &q.RequestsPerMinute,
		&q.MaxConcurrent, &q.CurrentDailyTokens, &q.CurrentMonthlyTokens,
		&q.TotalTokensUsed, &q.TotalRequests, &q.TotalCost,
		&q.LastDailyReset, &q.LastMonthlyReset,
	)
	if err != nil {
		return nil, err
	}
	if lastActive.Valid {
		t.LastActiveAt = &lastActive.Time
	}
	q.TenantID = t.ID
	t.Quota = &q
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
