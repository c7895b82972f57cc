// Package alert decides whether a tenant's quota usage warrants a
// notification and de-duplicates repeated alerts within a billing month.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tsanders-rh/sentinel/internal/metrics"
	"github.com/tsanders-rh/sentinel/internal/plan"
	"github.com/tsanders-rh/sentinel/pkg/types"
	"golang.org/x/time/rate"
)

// Level is the severity of a quota alert
type Level string

const (
	LevelNone     Level = ""
	LevelWarning  Level = "warning"
	LevelExceeded Level = "exceeded"
)

const (
	WarningPercentage  = 80
	ExceededPercentage = 100
)

// LevelFor maps a usage percentage to an alert level
func LevelFor(percentage int) Level {
	switch {
	case percentage >= ExceededPercentage:
		return LevelExceeded
	case percentage >= WarningPercentage:
		return LevelWarning
	default:
		return LevelNone
	}
}

// Notification is the payload handed to a Notifier
type Notification struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenant_id"`
	Level        Level          `json:"level"`
	PlanName     string         `json:"plan"`
	Usage        plan.UsageView `json:"usage"`
	ContactEmail string         `json:"contact_email,omitempty"`
	BrandName    string         `json:"brand_name,omitempty"`
	SentAt       time.Time      `json:"sent_at"`
}

// TenantDirectory resolves notification addressing
type TenantDirectory interface {
	GetConfig(ctx context.Context, tenantID string) (*types.TenantConfig, error)
}

// Config holds dispatcher configuration
type Config struct {
	DedupTTL time.Duration
	// Per-tenant notification rate
	RatePerHour float64
	Burst       int
}

// DefaultConfig returns default dispatcher configuration
func DefaultConfig() *Config {
	return &Config{
		DedupTTL:    32 * 24 * time.Hour,
		RatePerHour: 6,
		Burst:       2,
	}
}

// Dispatcher is the alert decision point
type Dispatcher struct {
	config   *Config
	dedup    Dedup
	notifier Notifier
	tenants  TenantDirectory
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewDispatcher creates a dispatcher. A nil dedup uses an in-memory store and
// a nil notifier logs alerts. tenants may be nil.
func NewDispatcher(config *Config, dedup Dedup, notifier Notifier, tenants TenantDirectory, logger *slog.Logger) *Dispatcher {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if dedup == nil {
		dedup = NewMemoryDedup()
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}

	return &Dispatcher{
		config:   config,
		dedup:    dedup,
		notifier: notifier,
		tenants:  tenants,
		logger:   logger,
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
	}
}

// DedupKey is the key under which one alert level fires once per tenant per month
func DedupKey(tenantID string, level Level, at time.Time) string {
	return fmt.Sprintf("%s|%s|%s", tenantID, level, at.UTC().Format("2006-01"))
}

// CheckAndAlert sends a notification when usage crosses an alert level that
// has not already fired this month for the tenant
func (d *Dispatcher) CheckAndAlert(ctx context.Context, tenantID string, usage plan.UsageView, planName string) error {
	level := LevelFor(usage.Percentage)
	if level == LevelNone {
		return nil
	}

	now := d.now()
	key := DedupKey(tenantID, level, now)

	claimed, err := d.dedup.Claim(ctx, key, d.config.DedupTTL)
	if err != nil {
		metrics.IncAlert(string(level), "error")
		return err
	}
	if !claimed {
		metrics.IncAlert(string(level), "duplicate")
		return nil
	}

	if !d.limiter(tenantID).Allow() {
		d.release(ctx, key)
		d.logger.Warn("quota alert throttled", "tenant_id", tenantID, "level", level)
		metrics.IncAlert(string(level), "throttled")
		return nil
	}

	n := Notification{
		ID:       types.GenerateID(),
		TenantID: tenantID,
		Level:    level,
		PlanName: planName,
		Usage:    usage,
		SentAt:   now,
	}
	d.address(ctx, &n)

	if err := d.notifier.Notify(ctx, n); err != nil {
		d.release(ctx, key)
		metrics.IncAlert(string(level), "error")
		return fmt.Errorf("notify tenant %s: %w", tenantID, err)
	}

	d.logger.Info("quota alert sent", "tenant_id", tenantID, "level", level, "percentage", usage.Percentage)
	metrics.IncAlert(string(level), "sent")
	return nil
}

func (d *Dispatcher) address(ctx context.Context, n *Notification) {
	if d.tenants == nil {
		return
	}

	cfg, err := d.tenants.GetConfig(ctx, n.TenantID)
	if err != nil {
		d.logger.Warn("resolve alert contact", "tenant_id", n.TenantID, "error", err)
		return
	}
	if cfg.ContactEmail != nil {
		n.ContactEmail = *cfg.ContactEmail
	}
	if cfg.BrandName != nil {
		n.BrandName = *cfg.BrandName
	}
}

func (d *Dispatcher) release(ctx context.Context, key string) {
	if err := d.dedup.Release(ctx, key); err != nil {
		d.logger.Warn("release alert key", "key", key, "error", err)
	}
}

func (d *Dispatcher) limiter(tenantID string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.limiters[tenantID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(d.config.RatePerHour/3600), d.config.Burst)
		d.limiters[tenantID] = l
	}
	return l
}
