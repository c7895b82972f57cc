package api

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tsanders-rh/sentinel/internal/autoheal"
)

// AutoHealHandler exposes the remediation log and degraded mode
type AutoHealHandler struct {
	engine *autoheal.Engine
}

// NewAutoHealHandler creates a new auto-heal handler
func NewAutoHealHandler(engine *autoheal.Engine) *AutoHealHandler {
	return &AutoHealHandler{engine: engine}
}

// AttemptRequest is the body of POST /api/v1/autoheal/attempt
type AttemptRequest struct {
	Metric string                 `json:"metric" validate:"required"`
	Data   map[string]interface{} `json:"data"`
}

// StatusResponse reports degraded mode
type StatusResponse struct {
	Degraded      bool       `json:"degraded"`
	DegradedSince *time.Time `json:"degraded_since,omitempty"`
	Restrictions  []string   `json:"restrictions"`
}

// Actions handles GET /api/v1/autoheal/actions
func (h *AutoHealHandler) Actions(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil || l < 0 {
			return ErrorBadRequest(c, "limit must be a non-negative integer")
		}
		limit = l
	}

	actions := h.engine.GetActions(limit)
	return SuccessOK(c, map[string]interface{}{
		"actions": actions,
		"total":   len(actions),
	})
}

// Status handles GET /api/v1/autoheal/status
func (h *AutoHealHandler) Status(c echo.Context) error {
	return SuccessOK(c, h.status())
}

// Attempt handles POST /api/v1/autoheal/attempt.
// Unsupported metrics are recorded and reported in the result, not rejected.
func (h *AutoHealHandler) Attempt(c echo.Context) error {
	var req AttemptRequest
	if ok, err := bindAndValidate(c, &req); !ok {
		return err
	}

	metric, _ := autoheal.ParseMetric(req.Metric)
	return SuccessOK(c, h.engine.Attempt(metric, req.Data))
}

// ExitDegraded handles POST /api/v1/autoheal/degraded/exit
func (h *AutoHealHandler) ExitDegraded(c echo.Context) error {
	h.engine.ExitDegradedMode()
	return SuccessOK(c, h.status())
}

func (h *AutoHealHandler) status() StatusResponse {
	resp := StatusResponse{
		Degraded:     h.engine.IsDegraded(),
		Restrictions: h.engine.Restrictions(),
	}
	if resp.Degraded {
		since := h.engine.DegradedSince()
		resp.DegradedSince = &since
	}
	if resp.Restrictions == nil {
		resp.Restrictions = []string{}
	}
	return resp
}
