package types

import "time"

// SecuritySeverity grades a security event
type SecuritySeverity string

const (
	SeverityLow      SecuritySeverity = "low"
	SeverityMedium   SecuritySeverity = "medium"
	SeverityHigh     SecuritySeverity = "high"
	SeverityCritical SecuritySeverity = "critical"
)

// SecurityEvent is an immutable security log record
type SecurityEvent struct {
	ID        string           `db:"id" json:"id"`
	Type      string           `db:"type" json:"type"`
	Severity  SecuritySeverity `db:"severity" json:"severity"`
	TenantID  *string          `db:"tenant_id" json:"tenant_id,omitempty"`
	Details   Metadata         `db:"details" json:"details"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}
