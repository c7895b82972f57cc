package backup_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsanders-rh/sentinel/internal/backup"
	"github.com/tsanders-rh/sentinel/pkg/types"
)

func activeTenants(ids ...string) *fakeTenants {
	f := &fakeTenants{}
	for _, id := range ids {
		f.tenants = append(f.tenants, &types.TenantConfig{ID: id, Status: types.TenantStatusActive})
	}
	return f
}

func TestScheduler_RunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("backs up every active tenant", func(t *testing.T) {
		svc := newService(t, sampleSource())
		sched := backup.NewScheduler(nil, svc, activeTenants("t1", "t2"), nil, nil)

		batch := sched.RunOnce(ctx)
		assert.Equal(t, backup.BatchResult{Tenants: 2, Succeeded: 2}, batch)

		backups, err := svc.ListBackups("")
		require.NoError(t, err)
		assert.Len(t, backups, 2)
	})

	t.Run("one tenant's failure does not stop the batch", func(t *testing.T) {
		src := sampleSource()
		src.failTable = map[string]error{"customers": errQuery}
		svc := newService(t, src)
		security := &fakeSecurity{err: errors.New("security log unavailable")}
		sched := backup.NewScheduler(nil, svc, activeTenants("t1", "", "t2"), security, nil)

		batch := sched.RunOnce(ctx)
		assert.Equal(t, 3, batch.Tenants)
		assert.Equal(t, 3, batch.Failed)

		require.Len(t, security.events, 3)
		assert.Equal(t, "backup_failed", security.events[0].Type)
		assert.Equal(t, types.SeverityHigh, security.events[0].Severity)
		require.NotNil(t, security.events[0].TenantID)
		assert.Equal(t, "t1", *security.events[0].TenantID)
	})

	t.Run("tenant listing failure", func(t *testing.T) {
		svc := newService(t, sampleSource())
		sched := backup.NewScheduler(nil, svc, &fakeTenants{err: errors.New("db down")}, nil, nil)

		assert.Equal(t, backup.BatchResult{}, sched.RunOnce(ctx))
	})
}

func TestScheduler_StartStop(t *testing.T) {
	svc := newService(t, sampleSource())
	cfg := &backup.SchedulerConfig{Interval: time.Hour, InitialDelay: 10 * time.Millisecond}
	sched := backup.NewScheduler(cfg, svc, activeTenants("t1"), nil, nil)

	sched.Start(context.Background())
	sched.Start(context.Background())

	assert.Eventually(t, func() bool {
		backups, err := svc.ListBackups("t1")
		return err == nil && len(backups) == 1
	}, 2*time.Second, 10*time.Millisecond)

	sched.Stop()
	sched.Stop()

	backups, err := svc.ListBackups("t1")
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

type countingTenants struct {
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (c *countingTenants) ListActive(context.Context) ([]*types.TenantConfig, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		seen := c.maxSeen.Load()
		if n <= seen || c.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	time.Sleep(2 * time.Millisecond)
	c.calls.Add(1)
	return nil, nil
}

func TestScheduler_ConcurrentStart(t *testing.T) {
	svc := newService(t, sampleSource())
	tenants := &countingTenants{}
	cfg := &backup.SchedulerConfig{Interval: 5 * time.Millisecond, InitialDelay: time.Millisecond}
	sched := backup.NewScheduler(cfg, svc, tenants, nil, nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.Start(context.Background())
		}()
	}
	wg.Wait()

	assert.Eventually(t, func() bool { return tenants.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	sched.Stop()

	stopped := tenants.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, tenants.calls.Load(), "a schedule kept running after Stop")
	assert.Equal(t, int32(1), tenants.maxSeen.Load(), "passes overlapped")
}
