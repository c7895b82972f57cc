// Package tracker attributes AI model token cost to tenants, mirrors it into
// the cost monitor, and hands persistence and quota alerting to a background
// worker so the tracking call never waits on I/O.
package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tsanders-rh/sentinel/internal/cost"
	"github.com/tsanders-rh/sentinel/internal/metrics"
	"github.com/tsanders-rh/sentinel/internal/plan"
	"github.com/tsanders-rh/sentinel/pkg/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/tsanders-rh/sentinel/internal/tracker")

// UsageStore persists tenant usage aggregates
type UsageStore interface {
	SaveUsage(ctx context.Context, tenantID string, day time.Time, usage types.TenantUsage) error
	LoadDayUsage(ctx context.Context, day time.Time) (map[string]types.TenantUsage, error)
}

// TenantDirectory resolves tenant configuration
type TenantDirectory interface {
	GetConfig(ctx context.Context, tenantID string) (*types.TenantConfig, error)
}

// Alerter is the alert decision point invoked near the quota ceiling
type Alerter interface {
	CheckAndAlert(ctx context.Context, tenantID string, usage plan.UsageView, planName string) error
}

// Config holds tracker configuration
type Config struct {
	QueueSize      int
	TaskTimeout    time.Duration
	AlertThreshold int // usage percentage at which the alerter is invoked
}

// DefaultConfig returns default tracker configuration
func DefaultConfig() *Config {
	return &Config{
		QueueSize:      1024,
		TaskTimeout:    10 * time.Second,
		AlertThreshold: 80,
	}
}

// Deps are the tracker's collaborators. Store, Tenants and Alerts are optional.
type Deps struct {
	Monitor *cost.Monitor
	Plans   *plan.Registry
	Store   UsageStore
	Tenants TenantDirectory
	Alerts  Alerter
	Logger  *slog.Logger
	Clock   func() time.Time
}

// CallResult is returned once local state is updated
type CallResult struct {
	TenantID  string  `json:"tenant_id"`
	CallCost  float64 `json:"call_cost"`
	TotalCost float64 `json:"total_cost"`
}

type task func(ctx context.Context)

// Tracker holds per-tenant usage records
type Tracker struct {
	config  *Config
	monitor *cost.Monitor
	plans   *plan.Registry
	store   UsageStore
	tenants TenantDirectory
	alerts  Alerter
	logger  *slog.Logger
	now     func() time.Time

	mu    sync.Mutex
	day   string // UTC date the records belong to
	usage map[string]*types.TenantUsage

	queueMu sync.RWMutex
	tasks   chan task
	closed  bool
	wg      sync.WaitGroup
}

// New creates a tracker. Call Start to run the background worker.
func New(config *Config, deps Deps) *Tracker {
	if config == nil {
		config = DefaultConfig()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Plans == nil {
		deps.Plans = plan.DefaultRegistry()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	return &Tracker{
		config:  config,
		monitor: deps.Monitor,
		plans:   deps.Plans,
		store:   deps.Store,
		tenants: deps.Tenants,
		alerts:  deps.Alerts,
		logger:  deps.Logger,
		now:     deps.Clock,
		usage:   make(map[string]*types.TenantUsage),
		tasks:   make(chan task, config.QueueSize),
	}
}

// Start runs the background worker until Stop is called.
// Tasks run with a context derived from ctx that is not canceled with it,
// so queued work still drains on shutdown.
func (t *Tracker) Start(ctx context.Context) {
	base := context.WithoutCancel(ctx)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for fn := range t.tasks {
			t.runTask(base, fn)
		}
	}()

	t.logger.Info("tenant cost tracker started", "queue_size", t.config.QueueSize)
}

// Stop closes the queue and waits for queued tasks to finish
func (t *Tracker) Stop() {
	t.queueMu.Lock()
	if t.closed {
		t.queueMu.Unlock()
		return
	}
	t.closed = true
	close(t.tasks)
	t.queueMu.Unlock()

	t.wg.Wait()
	t.logger.Info("tenant cost tracker stopped")
}

// TrackTenantCall attributes one model call to a tenant and returns as soon as
// in-memory state is updated. Persistence and quota alerting run in the background.
func (t *Tracker) TrackTenantCall(tenantID, model string, tokensIn, tokensOut int) (*CallResult, error) {
	if tenantID == "" {
		return nil, cost.ErrTenantRequired
	}

	tier := cost.TierForModel(model)
	callCost := cost.ClaudeTokenCost(tier, tokensIn, tokensOut)

	t.mu.Lock()
	now := t.now()
	t.rolloverLocked(now)
	day := usageDay(now)
	rec := t.recordLocked(tenantID)
	rec.Calls++
	rec.TokensIn += tokensIn
	rec.TokensOut += tokensOut
	rec.Cost += callCost
	rec.History = append(rec.History, types.UsageCall{
		Timestamp: now,
		Model:     model,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
		Cost:      callCost,
	})
	if len(rec.History) > types.UsageHistoryLimit {
		rec.History = append(rec.History[:0:0], rec.History[len(rec.History)-types.UsageHistoryLimit:]...)
	}
	snapshot := copyUsage(rec)
	t.mu.Unlock()

	if t.monitor != nil {
		t.monitor.TrackClaudeUsage(tenantID, model, tokensIn, tokensOut)
	}
	metrics.IncTenantCall(string(tier))

	t.enqueue("persist_usage", func(ctx context.Context) {
		t.persist(ctx, tenantID, day, snapshot)
	})
	t.enqueue("check_quota", func(ctx context.Context) {
		t.checkQuota(ctx, tenantID, snapshot)
	})

	return &CallResult{
		TenantID:  tenantID,
		CallCost:  callCost,
		TotalCost: snapshot.Cost,
	}, nil
}

// InitTenantUsageFromDB replaces in-memory records with the current UTC day's
// persisted aggregates. History is not persisted and starts empty.
func (t *Tracker) InitTenantUsageFromDB(ctx context.Context) (int, error) {
	if t.store == nil {
		return 0, nil
	}

	now := t.now()
	loaded, err := t.store.LoadDayUsage(ctx, now)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	t.rolloverLocked(now)
	for tenantID, u := range loaded {
		t.usage[tenantID] = &types.TenantUsage{
			Calls:     u.Calls,
			TokensIn:  u.TokensIn,
			TokensOut: u.TokensOut,
			Cost:      u.Cost,
			History:   []types.UsageCall{},
		}
	}
	t.mu.Unlock()

	t.logger.Info("loaded today's tenant usage", "tenants", len(loaded))
	return len(loaded), nil
}

// GetTenantUsage returns a copy of the tenant's record, creating a zero record if needed
func (t *Tracker) GetTenantUsage(tenantID string) types.TenantUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked(t.now())
	return copyUsage(t.recordLocked(tenantID))
}

// GetAllTenantUsage returns copies of every tenant's record
func (t *Tracker) GetAllTenantUsage() map[string]types.TenantUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked(t.now())

	out := make(map[string]types.TenantUsage, len(t.usage))
	for id, rec := range t.usage {
		out[id] = copyUsage(rec)
	}
	return out
}

// ResetTenantUsage drops a tenant's in-memory record
func (t *Tracker) ResetTenantUsage(tenantID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.usage, tenantID)
}

// rolloverLocked drops every record when the UTC date changes so each day's
// persisted row holds only that day's usage
func (t *Tracker) rolloverLocked(now time.Time) {
	day := usageDay(now).Format(time.DateOnly)
	if day == t.day {
		return
	}
	if t.day != "" {
		t.logger.Info("tenant usage day rolled over", "from", t.day, "to", day, "tenants", len(t.usage))
		t.usage = make(map[string]*types.TenantUsage)
	}
	t.day = day
}

func usageDay(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (t *Tracker) recordLocked(tenantID string) *types.TenantUsage {
	rec, ok := t.usage[tenantID]
	if !ok {
		rec = &types.TenantUsage{History: []types.UsageCall{}}
		t.usage[tenantID] = rec
	}
	return rec
}

func (t *Tracker) enqueue(name string, fn task) {
	t.queueMu.RLock()
	defer t.queueMu.RUnlock()

	if t.closed {
		t.logger.Warn("tracker task dropped: tracker stopped", "task", name)
		metrics.IncTrackerTasksDropped()
		return
	}

	select {
	case t.tasks <- fn:
	default:
		t.logger.Warn("tracker task dropped: queue full", "task", name, "queue_size", t.config.QueueSize)
		metrics.IncTrackerTasksDropped()
	}
}

func (t *Tracker) runTask(base context.Context, fn task) {
	ctx, cancel := context.WithTimeout(base, t.config.TaskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("tracker task panicked", "panic", r)
		}
	}()

	fn(ctx)
}

func (t *Tracker) persist(ctx context.Context, tenantID string, day time.Time, usage types.TenantUsage) {
	if t.store == nil {
		return
	}

	ctx, span := tracer.Start(ctx, "tracker.persist_usage")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	if err := t.store.SaveUsage(ctx, tenantID, day, usage); err != nil {
		span.RecordError(err)
		t.logger.Error("persist tenant usage", "tenant_id", tenantID, "error", err)
	}
}

func (t *Tracker) checkQuota(ctx context.Context, tenantID string, usage types.TenantUsage) {
	planID := ""
	if t.tenants != nil {
		cfg, err := t.tenants.GetConfig(ctx, tenantID)
		if err != nil {
			t.logger.Warn("resolve tenant plan, using default", "tenant_id", tenantID, "error", err)
		} else {
			planID = cfg.Plan
		}
	}

	quota := t.plans.CheckQuota(plan.Usage{Cost: usage.Cost, Calls: usage.Calls}, planID)
	if quota.Usage.Percentage < t.config.AlertThreshold || t.alerts == nil {
		return
	}

	if err := t.alerts.CheckAndAlert(ctx, tenantID, quota.Usage, quota.Plan); err != nil {
		t.logger.Error("quota alert failed", "tenant_id", tenantID, "percentage", quota.Usage.Percentage, "error", err)
	}
}

func copyUsage(rec *types.TenantUsage) types.TenantUsage {
	out := *rec
	out.History = append([]types.UsageCall(nil), rec.History...)
	if out.History == nil {
		out.History = []types.UsageCall{}
	}
	return out
}
