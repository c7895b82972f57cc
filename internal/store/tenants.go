package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tsanders-rh/sentinel/pkg/types"
)

// TenantStore reads tenant configuration
type TenantStore struct {
	db DB
}

const tenantColumns = `id, name, plan, status, contact_email, contact_phone, brand_name, created_at`

// GetConfig retrieves a tenant's configuration
func (s *TenantStore) GetConfig(ctx context.Context, tenantID string) (*types.TenantConfig, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`

	var t types.TenantConfig
	err := s.db.QueryRow(ctx, query, tenantID).Scan(
		&t.ID,
		&t.Name,
		&t.Plan,
		&t.Status,
		&t.ContactEmail,
		&t.ContactPhone,
		&t.BrandName,
		&t.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant %s: %w", tenantID, err)
	}

	return &t, nil
}

// ListActive retrieves all tenants with active status, oldest first
func (s *TenantStore) ListActive(ctx context.Context) ([]*types.TenantConfig, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE status = $1 ORDER BY created_at ASC`

	rows, err := s.db.Query(ctx, query, types.TenantStatusActive)
	if err != nil {
		return nil, fmt.Errorf("query active tenants: %w", err)
	}
	defer rows.Close()

	tenants := []*types.TenantConfig{}
	for rows.Next() {
		var t types.TenantConfig
		err := rows.Scan(
			&t.ID,
			&t.Name,
			&t.Plan,
			&t.Status,
			&t.ContactEmail,
			&t.ContactPhone,
			&t.BrandName,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenants: %w", err)
	}

	return tenants, nil
}
