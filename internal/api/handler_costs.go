package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tsanders-rh/sentinel/internal/cost"
)

// CostHandler serves the cost ledgers
type CostHandler struct {
	monitor *cost.Monitor
}

// NewCostHandler creates a new cost handler
func NewCostHandler(monitor *cost.Monitor) *CostHandler {
	return &CostHandler{monitor: monitor}
}

// ListToday handles GET /api/v1/costs
func (h *CostHandler) ListToday(c echo.Context) error {
	return SuccessOK(c, map[string]interface{}{
		"tenants":    h.monitor.GetAllTenantsCosts(),
		"thresholds": h.monitor.Thresholds(),
	})
}

// Today handles GET /api/v1/costs/:tenant/today
func (h *CostHandler) Today(c echo.Context) error {
	report, err := h.monitor.GetTodayCosts(c.Param("tenant"))
	if err != nil {
		return costError(c, err)
	}
	return SuccessOK(c, report)
}

// Month handles GET /api/v1/costs/:tenant/month
func (h *CostHandler) Month(c echo.Context) error {
	report, err := h.monitor.GetMonthCosts(c.Param("tenant"))
	if err != nil {
		return costError(c, err)
	}
	return SuccessOK(c, report)
}

// UsageEventRequest is the body of POST /api/v1/costs/:tenant/events.
// Units are SMS segments, voice minutes, characters, payment USD or map requests.
type UsageEventRequest struct {
	Service string   `json:"service" validate:"required,oneof=twilio_sms twilio_voice elevenlabs stripe google_maps"`
	Units   *float64 `json:"units" validate:"required,gte=0"`
}

// TrackEvent handles POST /api/v1/costs/:tenant/events.
// An event without a tenant is dropped and answered with 202 and a null body.
func (h *CostHandler) TrackEvent(c echo.Context) error {
	var req UsageEventRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	snap, err := h.monitor.TrackServiceUsage(c.Param("tenant"), req.Service, *req.Units)
	if err != nil {
		return costError(c, err)
	}
	if snap == nil {
		return c.JSON(http.StatusAccepted, nil)
	}
	return SuccessCreated(c, snap)
}

// Reset handles DELETE /api/v1/costs/:tenant
func (h *CostHandler) Reset(c echo.Context) error {
	h.monitor.ResetTenant(c.Param("tenant"))
	return SuccessNoContent(c)
}

func costError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, cost.ErrTenantRequired):
		return ErrorBadRequest(c, "Tenant ID is required")
	case errors.Is(err, cost.ErrInvalidUnits), errors.Is(err, cost.ErrUnsupportedService):
		return ErrorBadRequest(c, err.Error())
	}
	return ErrorInternal(c, "Failed to read costs")
}
