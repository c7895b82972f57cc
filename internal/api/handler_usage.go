package api

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/tsanders-rh/sentinel/internal/cost"
	"github.com/tsanders-rh/sentinel/internal/plan"
	"github.com/tsanders-rh/sentinel/internal/tracker"
)

// UsageHandler serves per-tenant AI usage and quota checks
type UsageHandler struct {
	tracker *tracker.Tracker
	plans   *plan.Registry
	tenants TenantDirectory
	logger  *slog.Logger
}

// NewUsageHandler creates a new usage handler. tenants may be nil.
func NewUsageHandler(tr *tracker.Tracker, plans *plan.Registry, tenants TenantDirectory, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{
		tracker: tr,
		plans:   plans,
		tenants: tenants,
		logger:  logger,
	}
}

// TrackCallRequest is the body of POST /api/v1/usage/:tenant/calls
type TrackCallRequest struct {
	Model     string `json:"model" validate:"required"`
	TokensIn  int    `json:"tokens_in" validate:"gte=0"`
	TokensOut int    `json:"tokens_out" validate:"gte=0"`
}

// Get handles GET /api/v1/usage/:tenant
func (h *UsageHandler) Get(c echo.Context) error {
	return SuccessOK(c, h.tracker.GetTenantUsage(c.Param("tenant")))
}

// Reset handles DELETE /api/v1/usage/:tenant
func (h *UsageHandler) Reset(c echo.Context) error {
	h.tracker.ResetTenantUsage(c.Param("tenant"))
	return SuccessNoContent(c)
}

// TrackCall handles POST /api/v1/usage/:tenant/calls
func (h *UsageHandler) TrackCall(c echo.Context) error {
	var req TrackCallRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	res, err := h.tracker.TrackTenantCall(c.Param("tenant"), req.Model, req.TokensIn, req.TokensOut)
	if errors.Is(err, cost.ErrTenantRequired) {
		return ErrorBadRequest(c, "Tenant ID is required")
	}
	if err != nil {
		return ErrorInternal(c, "Failed to track call")
	}
	return SuccessCreated(c, res)
}

// Quota handles GET /api/v1/quota/:tenant
//
// The plan comes from the plan query parameter, else the tenant's configuration.
// With resource and used parameters the countable limit is checked instead of cost.
func (h *UsageHandler) Quota(c echo.Context) error {
	tenantID := c.Param("tenant")
	planID := c.QueryParam("plan")
	if planID == "" {
		planID = h.tenantPlan(c, tenantID)
	}

	if resource := c.QueryParam("resource"); resource != "" {
		used, err := strconv.Atoi(c.QueryParam("used"))
		if err != nil || used < 0 {
			return ErrorBadRequest(c, "used must be a non-negative integer")
		}
		return SuccessOK(c, h.plans.CheckResourceQuota(plan.Resource(resource), used, planID))
	}

	usage := h.tracker.GetTenantUsage(tenantID)
	return SuccessOK(c, h.plans.CheckQuota(plan.Usage{Cost: usage.Cost, Calls: usage.Calls}, planID))
}

func (h *UsageHandler) tenantPlan(c echo.Context, tenantID string) string {
	if h.tenants == nil {
		return ""
	}

	cfg, err := h.tenants.GetConfig(c.Request().Context(), tenantID)
	if err != nil {
		h.logger.Warn("resolve tenant plan, using default", "tenant_id", tenantID, "error", err)
		return ""
	}
	return cfg.Plan
}
