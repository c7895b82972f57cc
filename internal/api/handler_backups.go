package api

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/tsanders-rh/sentinel/internal/backup"
)

// BackupHandler handles backup-related API endpoints
type BackupHandler struct {
	service *backup.Service
}

// NewBackupHandler creates a new backup handler
func NewBackupHandler(service *backup.Service) *BackupHandler {
	return &BackupHandler{service: service}
}

// CreateBackupRequest is the body of POST /api/v1/backups
type CreateBackupRequest struct {
	TenantID string `json:"tenant_id" validate:"required"`
}

// List handles GET /api/v1/backups
func (h *BackupHandler) List(c echo.Context) error {
	params := ParsePaginationParams(c)
	tenantID := c.QueryParam("tenant_id")

	backups, err := h.service.ListBackups(tenantID)
	if err != nil {
		return ErrorInternal(c, "Failed to list backups")
	}

	page, meta := Paginate(backups, params)

	filters := map[string]interface{}{}
	if tenantID != "" {
		filters["tenant_id"] = tenantID
	}

	return SuccessPaginated(c, page, meta, filters)
}

// Create handles POST /api/v1/backups.
// A backup with failed tables is still written and reported with success=false.
func (h *BackupHandler) Create(c echo.Context) error {
	var req CreateBackupRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	res, err := h.service.CreateBackup(context.WithoutCancel(c.Request().Context()), req.TenantID)
	if err != nil {
		return backupError(c, err)
	}
	return SuccessCreated(c, res)
}

// Get handles GET /api/v1/backups/:name
func (h *BackupHandler) Get(c echo.Context) error {
	manifest, err := h.service.GetBackup(c.Param("name"))
	if err != nil {
		return backupError(c, err)
	}
	return SuccessOK(c, manifest)
}

// Delete handles DELETE /api/v1/backups/:name
func (h *BackupHandler) Delete(c echo.Context) error {
	if err := h.service.DeleteBackup(c.Request().Context(), c.Param("name")); err != nil {
		return backupError(c, err)
	}
	return SuccessNoContent(c)
}

// Restore handles POST /api/v1/backups/:name/restore.
// Without an explicit "dry_run": false the restore only reports what it would write.
func (h *BackupHandler) Restore(c echo.Context) error {
	var opts backup.RestoreOptions
	if err := c.Bind(&opts); err != nil {
		return ErrorBadRequest(c, "Invalid request body")
	}

	// A client disconnect must not leave a restore half applied.
	res, err := h.service.RestoreBackup(context.WithoutCancel(c.Request().Context()), c.Param("name"), opts)
	if err != nil {
		return backupError(c, err)
	}
	return SuccessOK(c, res)
}

func backupError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, backup.ErrInvalidBackupName):
		return ErrorBadRequest(c, "Invalid backup name")
	case errors.Is(err, backup.ErrTenantRequired):
		return ErrorBadRequest(c, "Tenant ID is required")
	case errors.Is(err, backup.ErrBackupNotFound):
		return ErrorNotFound(c, "Backup not found")
	default:
		return ErrorInternal(c, "Backup operation failed")
	}
}
