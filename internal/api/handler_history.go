package api

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const defaultHistoryLimit = 30

// HistoryHandler serves persisted usage and security records
type HistoryHandler struct {
	usage UsageHistory
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(usage UsageHistory) *HistoryHandler {
	return &HistoryHandler{usage: usage}
}

// Daily handles GET /api/v1/usage/:tenant/daily
func (h *HistoryHandler) Daily(c echo.Context) error {
	limit, ok := parseLimit(c, defaultHistoryLimit)
	if !ok {
		return ErrorBadRequest(c, "limit must be a positive integer")
	}

	days, err := h.usage.ListDaily(c.Request().Context(), c.Param("tenant"), limit)
	if err != nil {
		return ErrorInternal(c, "Failed to read usage history")
	}
	return SuccessOK(c, map[string]interface{}{
		"days":  days,
		"total": len(days),
	})
}

// SecurityHandler serves the security log
type SecurityHandler struct {
	events SecurityEvents
}

// NewSecurityHandler creates a new security handler
func NewSecurityHandler(events SecurityEvents) *SecurityHandler {
	return &SecurityHandler{events: events}
}

// List handles GET /api/v1/security/events
func (h *SecurityHandler) List(c echo.Context) error {
	tenantID := c.QueryParam("tenant_id")
	if tenantID == "" {
		return ErrorBadRequest(c, "tenant_id is required")
	}

	limit, ok := parseLimit(c, defaultHistoryLimit)
	if !ok {
		return ErrorBadRequest(c, "limit must be a positive integer")
	}

	events, err := h.events.ListByTenant(c.Request().Context(), tenantID, limit)
	if err != nil {
		return ErrorInternal(c, "Failed to read security events")
	}
	return SuccessOK(c, map[string]interface{}{
		"events": events,
		"total":  len(events),
	})
}

func parseLimit(c echo.Context, fallback int) (int, bool) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return fallback, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, false
	}
	return min(limit, maxPerPage), true
}
