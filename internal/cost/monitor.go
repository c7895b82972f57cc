// Package cost keeps the per-tenant daily and monthly external-service cost
// ledgers and classifies them against the configured thresholds.
package cost

import (
	"errors"
	"log/slog"
	"maps"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/tsanders-rh/sentinel/internal/metrics"
	"github.com/tsanders-rh/sentinel/internal/threshold"
)

// MaxDetails bounds the per-service detail ring buffer
const MaxDetails = 100

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// ErrTenantRequired is returned by reads that need a tenant
var ErrTenantRequired = errors.New("tenant id is required")

// Status is the severity of a ledger window
type Status string

const (
	StatusOK       Status = "OK"
	StatusWarning  Status = "WARNING"
	StatusCritical Status = "CRITICAL"
	StatusShutdown Status = "SHUTDOWN"
)

// Detail is one recorded cost event
type Detail struct {
	Amount         float64                `json:"amount"`
	Timestamp      time.Time              `json:"timestamp"`
	PricingVersion string                 `json:"pricing_version"`
	Context        map[string]interface{} `json:"context,omitempty"`
}

// ServiceUsage accumulates one service's cost within a window.
// Total and Calls include events whose details were evicted.
type ServiceUsage struct {
	Total   float64  `json:"total"`
	Calls   int      `json:"calls"`
	Details []Detail `json:"details"`
}

func (u *ServiceUsage) add(d Detail) {
	u.Total += d.Amount
	u.Calls++
	u.Details = append(u.Details, d)
	if len(u.Details) > MaxDetails {
		u.Details = append(u.Details[:0:0], u.Details[len(u.Details)-MaxDetails:]...)
	}
}

type ledger struct {
	daily   map[string]*ServiceUsage
	monthly map[string]*ServiceUsage
}

func newLedger() *ledger {
	return &ledger{
		daily:   make(map[string]*ServiceUsage),
		monthly: make(map[string]*ServiceUsage),
	}
}

// Snapshot is returned by TrackCost after an event is applied
type Snapshot struct {
	TenantID     string  `json:"tenant_id"`
	Service      string  `json:"service"`
	Amount       float64 `json:"amount"`
	DailyTotal   float64 `json:"daily_total"`
	MonthlyTotal float64 `json:"monthly_total"`
	DailyStatus  Status  `json:"daily_status"`
}

// ServiceBreakdown is the per-service part of a report
type ServiceBreakdown struct {
	Total float64 `json:"total"`
	Calls int     `json:"calls"`
}

// Report is a tenant's cost view for one window
type Report struct {
	TenantID   string                      `json:"tenant_id"`
	Date       string                      `json:"date,omitempty"`
	Month      string                      `json:"month,omitempty"`
	Total      float64                     `json:"total"`
	Breakdown  map[string]ServiceBreakdown `json:"breakdown"`
	Status     Status                      `json:"status"`
	Thresholds threshold.Levels            `json:"thresholds"`
}

// TenantTotal is one row of the all-tenants overview
type TenantTotal struct {
	TenantID string  `json:"tenant_id"`
	Total    float64 `json:"total"`
	Status   Status  `json:"status"`
}

// ShutdownHook is notified the first time a tenant's daily total reaches
// the shutdown threshold on a given day
type ShutdownHook func(tenantID string, total float64)

// Option configures a Monitor
type Option func(*Monitor)

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) { m.logger = logger }
}

// WithShutdownHook registers the hook fired on daily SHUTDOWN
func WithShutdownHook(hook ShutdownHook) Option {
	return func(m *Monitor) { m.shutdownHook = hook }
}

// Monitor owns the per-tenant ledgers
type Monitor struct {
	mu           sync.Mutex
	thresholds   *threshold.Config
	ledgers      map[string]*ledger
	currentDate  string
	currentMonth string
	shutdownSent map[string]bool

	now          func() time.Time
	logger       *slog.Logger
	shutdownHook ShutdownHook
}

// NewMonitor creates a cost monitor. A nil thresholds config uses the defaults.
func NewMonitor(thresholds *threshold.Config, opts ...Option) *Monitor {
	if thresholds == nil {
		thresholds = threshold.Default()
	}

	m := &Monitor{
		thresholds:   thresholds,
		ledgers:      make(map[string]*ledger),
		shutdownSent: make(map[string]bool),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}

	now := m.now().UTC()
	m.currentDate = now.Format(dateLayout)
	m.currentMonth = now.Format(monthLayout)

	return m
}

// Thresholds returns the configured thresholds
func (m *Monitor) Thresholds() *threshold.Config {
	return m.thresholds
}

// TrackCost records an event against a tenant's daily and monthly ledgers.
// Events without a tenant are logged and dropped; the result is nil.
func (m *Monitor) TrackCost(tenantID, service string, amount float64, details map[string]interface{}) *Snapshot {
	if tenantID == "" {
		m.logger.Warn("cost event dropped: missing tenant id", "service", service, "amount", amount)
		metrics.IncCostEventsDropped()
		return nil
	}

	m.mu.Lock()
	now := m.now()
	m.rolloverLocked(now)

	l, ok := m.ledgers[tenantID]
	if !ok {
		l = newLedger()
		m.ledgers[tenantID] = l
	}

	d := Detail{
		Amount:         amount,
		Timestamp:      now,
		PricingVersion: PricingVersion,
		Context:        maps.Clone(details),
	}
	usageFor(l.daily, service).add(d)
	usageFor(l.monthly, service).add(d)

	snap := &Snapshot{
		TenantID:     tenantID,
		Service:      service,
		Amount:       amount,
		DailyTotal:   round2(sumWindow(l.daily)),
		MonthlyTotal: round2(sumWindow(l.monthly)),
	}
	snap.DailyStatus = m.GetStatus(snap.DailyTotal, threshold.PeriodDaily)

	fireShutdown := false
	if snap.DailyStatus == StatusShutdown && !m.shutdownSent[tenantID] {
		m.shutdownSent[tenantID] = true
		fireShutdown = m.shutdownHook != nil
	}
	m.mu.Unlock()

	metrics.AddCost(service, amount)

	if snap.DailyStatus != StatusOK {
		m.logger.Warn("tenant daily cost above threshold",
			"tenant_id", tenantID, "total", snap.DailyTotal, "status", snap.DailyStatus)
	}
	if fireShutdown {
		m.shutdownHook(tenantID, snap.DailyTotal)
	}

	return snap
}

// GetTodayCosts returns the tenant's current-day report
func (m *Monitor) GetTodayCosts(tenantID string) (*Report, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolloverLocked(m.now())

	var window map[string]*ServiceUsage
	if l, ok := m.ledgers[tenantID]; ok {
		window = l.daily
	}

	r := m.buildReport(tenantID, window, threshold.PeriodDaily)
	r.Date = m.currentDate
	return r, nil
}

// GetMonthCosts returns the tenant's current-month report
func (m *Monitor) GetMonthCosts(tenantID string) (*Report, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolloverLocked(m.now())

	var window map[string]*ServiceUsage
	if l, ok := m.ledgers[tenantID]; ok {
		window = l.monthly
	}

	r := m.buildReport(tenantID, window, threshold.PeriodMonthly)
	r.Month = m.currentMonth
	return r, nil
}

// GetAllTenantsCosts returns today's totals for every tenant with a ledger,
// highest total first
func (m *Monitor) GetAllTenantsCosts() []TenantTotal {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolloverLocked(m.now())

	out := make([]TenantTotal, 0, len(m.ledgers))
	for id, l := range m.ledgers {
		total := round2(sumWindow(l.daily))
		out = append(out, TenantTotal{
			TenantID: id,
			Total:    total,
			Status:   m.GetStatus(total, threshold.PeriodDaily),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total == out[j].Total {
			return out[i].TenantID < out[j].TenantID
		}
		return out[i].Total > out[j].Total
	})
	return out
}

// ResetTenant drops a tenant's ledger
func (m *Monitor) ResetTenant(tenantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ledgers, tenantID)
	delete(m.shutdownSent, tenantID)
}

// Rollover applies any pending date or month change now rather than on the
// next read or write
func (m *Monitor) Rollover() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolloverLocked(m.now())
}

// GetStatus classifies a total against the period's thresholds.
// Lower bounds are inclusive.
func (m *Monitor) GetStatus(total float64, period threshold.Period) Status {
	levels := m.thresholds.For(period)
	switch {
	case total >= levels.Shutdown:
		return StatusShutdown
	case total >= levels.Critical:
		return StatusCritical
	case total >= levels.Warning:
		return StatusWarning
	default:
		return StatusOK
	}
}

// rolloverLocked clears every tenant's daily or monthly window when the
// clock has moved past the stored date or month. m.mu must be held.
func (m *Monitor) rolloverLocked(now time.Time) {
	now = now.UTC()
	today := now.Format(dateLayout)
	month := now.Format(monthLayout)

	if today != m.currentDate {
		for _, l := range m.ledgers {
			l.daily = make(map[string]*ServiceUsage)
		}
		m.shutdownSent = make(map[string]bool)
		m.logger.Info("daily cost ledgers rolled over", "from", m.currentDate, "to", today)
		m.currentDate = today
	}

	if month != m.currentMonth {
		for _, l := range m.ledgers {
			l.monthly = make(map[string]*ServiceUsage)
		}
		m.logger.Info("monthly cost ledgers rolled over", "from", m.currentMonth, "to", month)
		m.currentMonth = month
	}
}

func (m *Monitor) buildReport(tenantID string, window map[string]*ServiceUsage, period threshold.Period) *Report {
	breakdown := make(map[string]ServiceBreakdown, len(window))
	for service, u := range window {
		breakdown[service] = ServiceBreakdown{
			Total: round2(u.Total),
			Calls: u.Calls,
		}
	}

	total := round2(sumWindow(window))
	return &Report{
		TenantID:   tenantID,
		Total:      total,
		Breakdown:  breakdown,
		Status:     m.GetStatus(total, period),
		Thresholds: m.thresholds.For(period),
	}
}

func usageFor(window map[string]*ServiceUsage, service string) *ServiceUsage {
	u, ok := window[service]
	if !ok {
		u = &ServiceUsage{}
		window[service] = u
	}
	return u
}

func sumWindow(window map[string]*ServiceUsage) float64 {
	var total float64
	for _, u := range window {
		total += u.Total
	}
	return total
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
