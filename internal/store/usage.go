package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tsanders-rh/sentinel/pkg/types"
)

// UsageStore persists per-tenant daily AI usage aggregates
type UsageStore struct {
	db DB
}

// SaveUsage writes the tenant's aggregate for a UTC day
func (s *UsageStore) SaveUsage(ctx context.Context, tenantID string, day time.Time, usage types.TenantUsage) error {
	query := `
		INSERT INTO tenant_daily_usage (
			tenant_id, usage_date, calls, tokens_in, tokens_out, cost, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NOW()
		)
		ON CONFLICT (tenant_id, usage_date) DO UPDATE
		SET calls = EXCLUDED.calls,
			tokens_in = EXCLUDED.tokens_in,
			tokens_out = EXCLUDED.tokens_out,
			cost = EXCLUDED.cost,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.Exec(ctx, query,
		tenantID,
		usageDate(day),
		usage.Calls,
		usage.TokensIn,
		usage.TokensOut,
		usage.Cost,
	)

	if err != nil {
		return fmt.Errorf("save tenant usage: %w", err)
	}

	return nil
}

// LoadDayUsage returns one UTC day's aggregates keyed by tenant
func (s *UsageStore) LoadDayUsage(ctx context.Context, day time.Time) (map[string]types.TenantUsage, error) {
	query := `
		SELECT tenant_id, calls, tokens_in, tokens_out, cost
		FROM tenant_daily_usage
		WHERE usage_date = $1
	`

	rows, err := s.db.Query(ctx, query, usageDate(day))
	if err != nil {
		return nil, fmt.Errorf("query day usage: %w", err)
	}
	defer rows.Close()

	usage := make(map[string]types.TenantUsage)
	for rows.Next() {
		var tenantID string
		var u types.TenantUsage
		if err := rows.Scan(&tenantID, &u.Calls, &u.TokensIn, &u.TokensOut, &u.Cost); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		usage[tenantID] = u
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage: %w", err)
	}

	return usage, nil
}

// ListDaily returns a tenant's persisted daily aggregates, newest first
func (s *UsageStore) ListDaily(ctx context.Context, tenantID string, limit int) ([]*types.DailyUsage, error) {
	query := `
		SELECT tenant_id, usage_date, calls, tokens_in, tokens_out, cost, updated_at
		FROM tenant_daily_usage
		WHERE tenant_id = $1
		ORDER BY usage_date DESC
		LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("query daily usage: %w", err)
	}
	defer rows.Close()

	days := []*types.DailyUsage{}
	for rows.Next() {
		var d types.DailyUsage
		err := rows.Scan(&d.TenantID, &d.UsageDate, &d.Calls, &d.TokensIn, &d.TokensOut, &d.Cost, &d.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan daily usage: %w", err)
		}
		days = append(days, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily usage: %w", err)
	}

	return days, nil
}

// usageDate is the UTC calendar date of t at midnight
func usageDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
