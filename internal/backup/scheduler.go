package backup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tsanders-rh/sentinel/pkg/types"
)

// TenantLister lists tenants eligible for scheduled backups
type TenantLister interface {
	ListActive(ctx context.Context) ([]*types.TenantConfig, error)
}

// SecurityLogger records security events
type SecurityLogger interface {
	LogEvent(ctx context.Context, event *types.SecurityEvent) error
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	Interval     time.Duration
	InitialDelay time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		Interval:     24 * time.Hour,
		InitialDelay: time.Minute,
	}
}

// BatchResult summarizes one pass over all active tenants
type BatchResult struct {
	Tenants   int `json:"tenants"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Scheduler runs backups for every active tenant on a fixed interval
type Scheduler struct {
	config   *SchedulerConfig
	service  *Service
	tenants  TenantLister
	security SecurityLogger
	logger   *slog.Logger

	// mu serializes Start and Stop
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler. security may be nil.
func NewScheduler(config *SchedulerConfig, service *Service, tenants TenantLister, security SecurityLogger, logger *slog.Logger) *Scheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		config:   config,
		service:  service,
		tenants:  tenants,
		security: security,
		logger:   logger,
	}
}

// Start arms the scheduler: one pass after the initial delay, then one per
// interval. Calling Start again replaces the running schedule.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	s.logger.Info("backup scheduler starting",
		"interval", s.config.Interval, "initial_delay", s.config.InitialDelay)

	go s.loop(loopCtx, done)
}

// Stop cancels the schedule and waits for an in-flight pass to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
}

// stopLocked cancels the running loop and waits for it. mu must be held.
func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel, s.done = nil, nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(s.config.InitialDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		s.RunOnce(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("backup scheduler shutting down")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce backs up every active tenant sequentially. One tenant's failure
// does not stop the batch.
func (s *Scheduler) RunOnce(ctx context.Context) BatchResult {
	tenants, err := s.tenants.ListActive(ctx)
	if err != nil {
		s.logger.Error("list active tenants", "error", err)
		return BatchResult{}
	}

	s.logger.Info("scheduled backup pass starting", "tenants", len(tenants))

	var batch BatchResult
	for _, t := range tenants {
		if ctx.Err() != nil {
			break
		}
		batch.Tenants++

		if err := s.backupTenant(ctx, t.ID); err != nil {
			batch.Failed++
			s.logger.Error("scheduled backup failed", "tenant_id", t.ID, "error", err)
			s.logSecurityEvent(ctx, t.ID, err)
			continue
		}
		batch.Succeeded++
	}

	s.logger.Info("scheduled backup pass completed",
		"tenants", batch.Tenants, "succeeded", batch.Succeeded, "failed", batch.Failed)
	return batch
}

func (s *Scheduler) backupTenant(ctx context.Context, tenantID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backup panicked: %v", r)
		}
	}()

	res, err := s.service.CreateBackup(ctx, tenantID)
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("backup %s: %d of %d tables failed", res.Name, res.Stats.FailedTables, res.Stats.TotalTables)
	}
	return nil
}

func (s *Scheduler) logSecurityEvent(ctx context.Context, tenantID string, cause error) {
	if s.security == nil {
		return
	}

	tenant := tenantID
	event := &types.SecurityEvent{
		Type:     "backup_failed",
		Severity: types.SeverityHigh,
		TenantID: &tenant,
		Details:  types.Metadata{"error": cause.Error()},
	}
	if err := s.security.LogEvent(ctx, event); err != nil {
		s.logger.Warn("record backup failure event", "tenant_id", tenantID, "error", err)
	}
}
