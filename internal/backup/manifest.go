package backup

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrTenantRequired is returned before any query when a backup or export
	// has no tenant scope
	ErrTenantRequired = errors.New("tenant id is required for backup operations")

	// ErrBackupNotFound is returned for unknown backup names
	ErrBackupNotFound = errors.New("backup not found")

	// ErrInvalidBackupName is returned for names outside the backup file pattern
	ErrInvalidBackupName = errors.New("invalid backup name")
)

const (
	filePrefix = "backup-"
	fileSuffix = ".json"

	isoLayout    = "2006-01-02T15:04:05.000Z"
	timestampLen = len(isoLayout)
)

var (
	namePattern      = regexp.MustCompile(`^backup-[A-Za-z0-9_.@-]+\.json$`)
	timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}-\d{3}Z$`)
	timestampSafe    = strings.NewReplacer(":", "-", ".", "-")
)

// TableResult is one table's export outcome
type TableResult struct {
	Success bool             `json:"success"`
	Count   int              `json:"count"`
	Data    []map[string]any `json:"data,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Stats aggregates a manifest's table results
type Stats struct {
	TotalTables   int `json:"total_tables"`
	SuccessTables int `json:"success_tables"`
	FailedTables  int `json:"failed_tables"`
	TotalRecords  int `json:"total_records"`
}

// Manifest is the persisted record of one backup run
type Manifest struct {
	RunID     string                 `json:"run_id"`
	Name      string                 `json:"name"`
	Timestamp time.Time              `json:"timestamp"`
	TenantID  string                 `json:"tenant_id"`
	Tables    map[string]TableResult `json:"tables"`
	Stats     Stats                  `json:"stats"`
}

// Info describes a backup file on disk
type Info struct {
	Name      string    `json:"name"`
	TenantID  string    `json:"tenant_id"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// FileName returns the manifest file name for a tenant and time
func FileName(tenantID string, at time.Time) string {
	return filePrefix + tenantID + "-" + timestampSafe.Replace(at.UTC().Format(isoLayout)) + fileSuffix
}

// ValidateName rejects names that could escape the backup directory
func ValidateName(name string) error {
	if !namePattern.MatchString(name) || strings.Contains(name, "..") {
		return ErrInvalidBackupName
	}
	return nil
}

// TenantFromName extracts the tenant id from a backup file name
func TenantFromName(name string) (string, bool) {
	if ValidateName(name) != nil {
		return "", false
	}

	core := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
	cut := len(core) - timestampLen - 1
	if cut <= 0 || core[cut] != '-' || !timestampPattern.MatchString(core[cut+1:]) {
		return "", false
	}
	return core[:cut], true
}
