package store

import (
	"context"
	"fmt"

	"github.com/tsanders-rh/sentinel/pkg/types"
)

// SecurityStore handles security event operations
type SecurityStore struct {
	db DB
}

// LogEvent creates an immutable security event record
func (s *SecurityStore) LogEvent(ctx context.Context, event *types.SecurityEvent) error {
	if event.ID == "" {
		event.ID = types.GenerateEventID()
	}

	query := `
		INSERT INTO security_events (
			id, type, severity, tenant_id, details
		) VALUES (
			$1, $2, $3, $4, $5
		)
	`

	_, err := s.db.Exec(ctx, query,
		event.ID,
		event.Type,
		event.Severity,
		event.TenantID,
		event.Details,
	)

	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}

	return nil
}

// ListByTenant retrieves a tenant's security events, newest first
func (s *SecurityStore) ListByTenant(ctx context.Context, tenantID string, limit int) ([]*types.SecurityEvent, error) {
	query := `
		SELECT id, type, severity, tenant_id, details, created_at
		FROM security_events
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("query security events: %w", err)
	}
	defer rows.Close()

	events := []*types.SecurityEvent{}
	for rows.Next() {
		var e types.SecurityEvent
		if err := rows.Scan(&e.ID, &e.Type, &e.Severity, &e.TenantID, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan security event: %w", err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate security events: %w", err)
	}

	return events, nil
}
