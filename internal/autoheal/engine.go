// Package autoheal runs bounded, metric-specific remediations, keeps an
// append-only log of every attempt, and owns the global degraded-mode flag.
package autoheal

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/tsanders-rh/sentinel/internal/metrics"
	"github.com/tsanders-rh/sentinel/pkg/types"
)

// Metric names a remediation target
type Metric string

const (
	MetricMemory   Metric = "memory"
	MetricDatabase Metric = "database"
	MetricAPIs     Metric = "apis"
	MetricCosts    Metric = "costs"
)

// Metrics lists every supported metric
var Metrics = []Metric{MetricMemory, MetricDatabase, MetricAPIs, MetricCosts}

// ParseMetric returns the metric for name and whether it is supported
func ParseMetric(name string) (Metric, bool) {
	for _, m := range Metrics {
		if string(m) == name {
			return m, true
		}
	}
	return Metric(name), false
}

// Reason codes for failed results
const (
	ReasonUnknownMetric = "unknown_metric"
)

// Result is the outcome of one remediation attempt
type Result struct {
	Success      bool           `json:"success"`
	Action       string         `json:"action,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	Error        string         `json:"error,omitempty"`
	Missing      []string       `json:"missing,omitempty"`
	Restrictions []string       `json:"restrictions,omitempty"`
	Details      types.Metadata `json:"details,omitempty"`
}

// Action is one entry of the remediation log
type Action struct {
	ID        string         `json:"id"`
	Metric    Metric         `json:"metric"`
	Data      types.Metadata `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Result    Result         `json:"result"`
}

// DefaultActionLimit is used by GetActions for non-positive limits
const DefaultActionLimit = 20

// MemoryCriticalPercent is the usage above which a restart is recommended
const MemoryCriticalPercent = 90.0

// RequiredCredentials are the environment variables the APIs check expects
var RequiredCredentials = []string{
	"ANTHROPIC_API_KEY",
	"STRIPE_SECRET_KEY",
	"TWILIO_ACCOUNT_SID",
	"TWILIO_AUTH_TOKEN",
	"RESEND_API_KEY",
}

// DegradedRestrictions are reported while degraded mode is active.
// Enforcement belongs to the consumers.
var DegradedRestrictions = []string{
	"max_response_tokens:500",
	"image_generation:disabled",
	"voice_synthesis:disabled",
	"non_essential_messaging:disabled",
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithLookupEnv overrides credential lookup
func WithLookupEnv(lookup func(string) (string, bool)) Option {
	return func(e *Engine) { e.lookupEnv = lookup }
}

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine is the auto-heal action executor
type Engine struct {
	logger    *slog.Logger
	lookupEnv func(string) (string, bool)
	now       func() time.Time

	mu            sync.Mutex
	actions       []Action
	degraded      bool
	degradedSince time.Time
}

// NewEngine creates an engine in normal mode
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		lookupEnv: os.LookupEnv,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Attempt runs the remediation for metric and records it. It never panics;
// handler failures are reported in the result.
func (e *Engine) Attempt(metric Metric, data map[string]interface{}) Result {
	data = maps.Clone(data)
	result := e.dispatch(metric, data)

	e.mu.Lock()
	e.actions = append(e.actions, Action{
		ID:        types.GenerateActionID(),
		Metric:    metric,
		Data:      types.Metadata(data),
		Timestamp: e.now(),
		Result:    result,
	})
	e.mu.Unlock()

	metrics.IncAutoHealAction(string(metric), result.Success)
	e.logger.Info("auto-heal attempt",
		"metric", metric, "success", result.Success, "action", result.Action, "reason", result.Reason, "error", result.Error)

	return result
}

func (e *Engine) dispatch(metric Metric, data map[string]interface{}) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{Success: false, Error: fmt.Sprint(r)}
		}
	}()

	switch metric {
	case MetricMemory:
		return e.healMemory(data)
	case MetricDatabase:
		return e.healDatabase(data)
	case MetricAPIs:
		return e.healAPIs(data)
	case MetricCosts:
		return e.handleCostOverrun(data)
	default:
		return Result{Success: false, Reason: ReasonUnknownMetric}
	}
}

// ExitDegradedMode returns the engine to normal mode
func (e *Engine) ExitDegradedMode() {
	e.mu.Lock()
	was := e.degraded
	e.degraded = false
	e.degradedSince = time.Time{}
	e.mu.Unlock()

	metrics.SetDegraded(false)
	if was {
		e.logger.Info("degraded mode exited")
	}
}

// IsDegraded reports whether degraded mode is active
func (e *Engine) IsDegraded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.degraded
}

// DegradedSince returns when degraded mode was entered, zero when not degraded
func (e *Engine) DegradedSince() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.degradedSince
}

// Restrictions returns the active restrictions, empty when not degraded
func (e *Engine) Restrictions() []string {
	if !e.IsDegraded() {
		return []string{}
	}
	return append([]string(nil), DegradedRestrictions...)
}

// GetActions returns the most recent limit actions, oldest first
func (e *Engine) GetActions(limit int) []Action {
	if limit <= 0 {
		limit = DefaultActionLimit
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := max(len(e.actions)-limit, 0)
	out := make([]Action, len(e.actions)-start)
	copy(out, e.actions[start:])
	for i := range out {
		out[i].Data = maps.Clone(out[i].Data)
		out[i].Result.Details = maps.Clone(out[i].Result.Details)
	}
	return out
}

func (e *Engine) enterDegradedMode() {
	e.mu.Lock()
	if !e.degraded {
		e.degraded = true
		e.degradedSince = e.now()
	}
	e.mu.Unlock()

	metrics.SetDegraded(true)
}

func readMemStats() runtime.MemStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms
}
