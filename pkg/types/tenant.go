package types

import "time"

// TenantStatus represents the lifecycle state of a tenant account
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusCanceled  TenantStatus = "canceled"
)

// TenantConfig is the slice of tenant configuration the monitoring core consumes
type TenantConfig struct {
	ID           string       `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	Plan         string       `db:"plan" json:"plan"`
	Status       TenantStatus `db:"status" json:"status"`
	ContactEmail *string      `db:"contact_email" json:"contact_email,omitempty"`
	ContactPhone *string      `db:"contact_phone" json:"contact_phone,omitempty"`
	BrandName    *string      `db:"brand_name" json:"brand_name,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}
