package types

import "time"

// UsageHistoryLimit bounds the per-tenant call history kept in memory
const UsageHistoryLimit = 100

// UsageCall is one AI model call attributed to a tenant
type UsageCall struct {
	Timestamp time.Time `json:"timestamp"`
	Model     string    `json:"model"`
	TokensIn  int       `json:"tokens_in"`
	TokensOut int       `json:"tokens_out"`
	Cost      float64   `json:"cost"`
}

// TenantUsage is a tenant's running AI usage aggregate.
// History is bounded; evicted calls stay folded into the totals.
type TenantUsage struct {
	Calls     int         `json:"calls"`
	TokensIn  int         `json:"tokens_in"`
	TokensOut int         `json:"tokens_out"`
	Cost      float64     `json:"cost"`
	History   []UsageCall `json:"history"`
}

// DailyUsage is the persisted aggregate of a tenant's usage for one day
type DailyUsage struct {
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	UsageDate time.Time `db:"usage_date" json:"usage_date"`
	Calls     int       `db:"calls" json:"calls"`
	TokensIn  int       `db:"tokens_in" json:"tokens_in"`
	TokensOut int       `db:"tokens_out" json:"tokens_out"`
	Cost      float64   `db:"cost" json:"cost"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
