package api

import (
	"github.com/labstack/echo/v4"
	"github.com/tsanders-rh/sentinel/internal/plan"
)

// PlanHandler handles plan-related API endpoints
type PlanHandler struct {
	registry *plan.Registry
}

// NewPlanHandler creates a new plan handler
func NewPlanHandler(registry *plan.Registry) *PlanHandler {
	return &PlanHandler{registry: registry}
}

// List handles GET /api/v1/plans
func (h *PlanHandler) List(c echo.Context) error {
	plans := h.registry.List()
	return SuccessOK(c, map[string]interface{}{
		"plans": plans,
		"total": len(plans),
	})
}

// Get handles GET /api/v1/plans/:id
//
// Unlike quota checks, an unknown plan ID is a 404 rather than the starter fallback.
func (h *PlanHandler) Get(c echo.Context) error {
	id := c.Param("id")
	p := h.registry.Get(id)
	if p.ID != id {
		return ErrorNotFound(c, "Plan not found")
	}
	return SuccessOK(c, p)
}
