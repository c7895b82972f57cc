package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsanders-rh/sentinel/internal/api"
	"github.com/tsanders-rh/sentinel/internal/autoheal"
	"github.com/tsanders-rh/sentinel/internal/backup"
	"github.com/tsanders-rh/sentinel/internal/cost"
	"github.com/tsanders-rh/sentinel/internal/metrics"
	"github.com/tsanders-rh/sentinel/internal/threshold"
	"github.com/tsanders-rh/sentinel/internal/tracker"
	"github.com/tsanders-rh/sentinel/pkg/types"
)

type memorySource struct {
	mu          sync.Mutex
	rows        map[string][]map[string]any
	upserts     int
	upsertDelay time.Duration
}

func (m *memorySource) ExportRows(_ context.Context, table, column, tenantID string) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []map[string]any{}
	for _, row := range m.rows[table] {
		if column == "" || fmt.Sprint(row[column]) == tenantID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memorySource) UpsertRow(ctx context.Context, _, _ string, _ map[string]any) error {
	if m.upsertDelay > 0 {
		select {
		case <-time.After(m.upsertDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	return nil
}

type fakeHistory struct {
	days  []*types.DailyUsage
	limit int
}

func (f *fakeHistory) ListDaily(_ context.Context, tenantID string, limit int) ([]*types.DailyUsage, error) {
	f.limit = limit
	return f.days, nil
}

type fakeSecurityLog struct {
	events []*types.SecurityEvent
}

func (f *fakeSecurityLog) ListByTenant(_ context.Context, tenantID string, _ int) ([]*types.SecurityEvent, error) {
	var out []*types.SecurityEvent
	for _, e := range f.events {
		if e.TenantID != nil && *e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type staticTenants map[string]string

func (s staticTenants) GetConfig(_ context.Context, tenantID string) (*types.TenantConfig, error) {
	p, ok := s[tenantID]
	if !ok {
		return nil, errors.New("not found")
	}
	return &types.TenantConfig{ID: tenantID, Plan: p}, nil
}

type testEnv struct {
	server *api.Server
	source *memorySource
	engine *autoheal.Engine
}

func newTestEnv(t *testing.T, mutate func(*api.Deps)) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, nil, nil, mutate)
}

func newTestEnvWithConfig(t *testing.T, config *api.ServerConfig, source *memorySource, mutate func(*api.Deps)) *testEnv {
	t.Helper()
	metrics.Init()

	monitor := cost.NewMonitor(threshold.Default())
	tr := tracker.New(nil, tracker.Deps{Monitor: monitor})
	tr.Start(context.Background())
	t.Cleanup(tr.Stop)

	engine := autoheal.NewEngine(autoheal.WithLookupEnv(func(string) (string, bool) { return "set", true }))

	if source == nil {
		source = &memorySource{rows: map[string][]map[string]any{
			"customers": {
				{"id": "c1", "tenant_id": "t1"},
				{"id": "c2", "tenant_id": "t2"},
			},
		}}
	}
	backups := backup.NewService(&backup.Config{
		Dir:           t.TempDir(),
		RetentionDays: 7,
		Tables:        []backup.Table{{Name: "customers", TenantScoped: true}},
	}, source)

	deps := api.Deps{
		Monitor:  monitor,
		Tracker:  tr,
		AutoHeal: engine,
		Backups:  backups,
		Tenants:  staticTenants{"t1": "pro"},
	}
	if mutate != nil {
		mutate(&deps)
	}

	return &testEnv{
		server: api.NewServer(config, deps),
		source: source,
		engine: engine,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Echo().ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])

	rec, _ = env.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sentinel_")

	down := newTestEnv(t, func(d *api.Deps) { d.DB = failingPinger{} })
	rec, body = down.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", body["status"])
}

func TestUsageAndCosts(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("tracks a call into usage and costs", func(t *testing.T) {
		rec, body := env.do(t, http.MethodPost, "/api/v1/usage/t1/calls",
			`{"model":"claude-3-5-sonnet","tokens_in":1000,"tokens_out":500}`)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.InDelta(t, 0.0105, body["call_cost"], 1e-12)

		rec, body = env.do(t, http.MethodGet, "/api/v1/usage/t1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 1, body["calls"])

		rec, body = env.do(t, http.MethodGet, "/api/v1/costs/t1/today", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.InDelta(t, 0.01, body["total"], 1e-9)
		assert.Equal(t, "OK", body["status"])

		rec, body = env.do(t, http.MethodGet, "/api/v1/costs/t1/month", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.InDelta(t, 0.01, body["total"], 1e-9)

		rec, body = env.do(t, http.MethodGet, "/api/v1/costs", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, body["tenants"], 1)
	})

	t.Run("missing model fails validation", func(t *testing.T) {
		rec, body := env.do(t, http.MethodPost, "/api/v1/usage/t1/calls", `{"tokens_in":10}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "validation_failed", body["error"])
	})

	t.Run("malformed body", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodPost, "/api/v1/usage/t1/calls", `{"model":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPlansAndQuota(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/api/v1/plans", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, body["total"])

	rec, body = env.do(t, http.MethodGet, "/api/v1/plans/business", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Business", body["name"])

	rec, _ = env.do(t, http.MethodGet, "/api/v1/plans/gold", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	t.Run("plan resolved from tenant config", func(t *testing.T) {
		rec, body := env.do(t, http.MethodGet, "/api/v1/quota/t1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Pro", body["plan"])
		assert.Equal(t, true, body["within_limits"])
	})

	t.Run("unknown tenant falls back to starter", func(t *testing.T) {
		_, body := env.do(t, http.MethodGet, "/api/v1/quota/nobody", "")
		assert.Equal(t, "Starter", body["plan"])
	})

	t.Run("countable resource at its limit", func(t *testing.T) {
		rec, body := env.do(t, http.MethodGet, "/api/v1/quota/t9?plan=starter&resource=users&used=2", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, body["within_limits"])
		assert.EqualValues(t, 2, body["limit"])
	})

	t.Run("invalid used count", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodGet, "/api/v1/quota/t9?resource=users&used=-1", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAutoHeal(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodPost, "/api/v1/autoheal/attempt", `{"metric":"costs","data":{"tenant_id":"t1"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "degraded_mode", body["action"])

	_, body = env.do(t, http.MethodGet, "/api/v1/autoheal/status", "")
	assert.Equal(t, true, body["degraded"])
	assert.NotEmpty(t, body["degraded_since"])
	assert.Len(t, body["restrictions"], len(autoheal.DegradedRestrictions))

	_, body = env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, "degraded", body["status"])

	rec, body = env.do(t, http.MethodPost, "/api/v1/autoheal/attempt", `{"metric":"disk"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, autoheal.ReasonUnknownMetric, body["reason"])

	rec, body = env.do(t, http.MethodGet, "/api/v1/autoheal/actions?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["total"])

	rec, _ = env.do(t, http.MethodGet, "/api/v1/autoheal/actions?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = env.do(t, http.MethodPost, "/api/v1/autoheal/degraded/exit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["degraded"])
	assert.False(t, env.engine.IsDegraded())
}

func TestBackups(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodPost, "/api/v1/backups", `{"tenant_id":"t1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, body["success"])
	name, _ := body["name"].(string)
	require.NotEmpty(t, name)

	rec, _ = env.do(t, http.MethodPost, "/api/v1/backups", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, body = env.do(t, http.MethodGet, "/api/v1/backups?tenant_id=t1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	pagination := body["pagination"].(map[string]any)
	assert.EqualValues(t, 1, pagination["total"])

	_, body = env.do(t, http.MethodGet, "/api/v1/backups?tenant_id=t2", "")
	assert.Empty(t, body["data"])

	rec, body = env.do(t, http.MethodGet, "/api/v1/backups?page=9223372036854775807", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["data"])

	t.Run("restore defaults to dry run", func(t *testing.T) {
		rec, body := env.do(t, http.MethodPost, "/api/v1/backups/"+name+"/restore", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["dry_run"])
		assert.Zero(t, env.source.upserts)
	})

	t.Run("explicit restore writes rows", func(t *testing.T) {
		rec, body := env.do(t, http.MethodPost, "/api/v1/backups/"+name+"/restore", `{"dry_run":false}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, body["dry_run"])
		assert.Equal(t, 1, env.source.upserts)
	})

	t.Run("invalid and unknown names", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodPost, "/api/v1/backups/notes.txt/restore", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec, _ = env.do(t, http.MethodPost, "/api/v1/backups/backup-t1-2020-01-01T00-00-00-000Z.json/restore", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestResetTenant(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, _ := env.do(t, http.MethodPost, "/api/v1/usage/t1/calls", `{"model":"sonnet","tokens_in":1000,"tokens_out":0}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = env.do(t, http.MethodDelete, "/api/v1/costs/t1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, body := env.do(t, http.MethodGet, "/api/v1/costs", "")
	assert.Empty(t, body["tenants"])

	rec, _ = env.do(t, http.MethodDelete, "/api/v1/usage/t1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, body = env.do(t, http.MethodGet, "/api/v1/usage/t1", "")
	assert.EqualValues(t, 0, body["calls"])
}

func TestHistoryRoutes(t *testing.T) {
	history := &fakeHistory{days: []*types.DailyUsage{{TenantID: "t1", Calls: 4, Cost: 0.2}}}
	tenant := "t1"
	security := &fakeSecurityLog{events: []*types.SecurityEvent{
		{ID: "sev_1", Type: "backup_failed", Severity: types.SeverityHigh, TenantID: &tenant},
	}}
	env := newTestEnv(t, func(d *api.Deps) {
		d.History = history
		d.Security = security
	})

	rec, body := env.do(t, http.MethodGet, "/api/v1/usage/t1/daily?limit=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["total"])
	assert.Equal(t, 7, history.limit)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/usage/t1/daily?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = env.do(t, http.MethodGet, "/api/v1/security/events?tenant_id=t1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["total"])

	rec, _ = env.do(t, http.MethodGet, "/api/v1/security/events", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bare := newTestEnv(t, nil)
	rec, _ = bare.do(t, http.MethodGet, "/api/v1/security/events?tenant_id=t1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBackupManifestRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	_, body := env.do(t, http.MethodPost, "/api/v1/backups", `{"tenant_id":"t1"}`)
	name, _ := body["name"].(string)
	require.NotEmpty(t, name)

	rec, body := env.do(t, http.MethodGet, "/api/v1/backups/"+name, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t1", body["tenant_id"])
	assert.NotEmpty(t, body["run_id"])

	rec, _ = env.do(t, http.MethodDelete, "/api/v1/backups/"+name, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/v1/backups/"+name, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRestoreOutlivesRequestTimeout(t *testing.T) {
	rows := make([]map[string]any, 0, 10)
	for i := range 10 {
		rows = append(rows, map[string]any{"id": fmt.Sprintf("c%d", i), "tenant_id": "t1"})
	}
	source := &memorySource{
		rows:        map[string][]map[string]any{"customers": rows},
		upsertDelay: 20 * time.Millisecond,
	}

	config := api.DefaultServerConfig()
	config.RequestTimeout = 60 * time.Millisecond
	env := newTestEnvWithConfig(t, config, source, nil)

	rec, body := env.do(t, http.MethodPost, "/api/v1/backups", `{"tenant_id":"t1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	name, _ := body["name"].(string)
	require.NotEmpty(t, name)

	rec, body = env.do(t, http.MethodPost, "/api/v1/backups/"+name+"/restore", `{"dry_run":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	tables := body["tables"].(map[string]any)
	customers := tables["customers"].(map[string]any)
	assert.EqualValues(t, 10, customers["restored"])
	assert.EqualValues(t, 0, customers["failed"])
	assert.Equal(t, 10, source.upserts)
}

func TestCostEvents(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name    string
		body    string
		service string
		amount  float64
	}{
		{"sms segments", `{"service":"twilio_sms","units":10}`, cost.ServiceTwilioSMS, 0.079},
		{"voice minutes", `{"service":"twilio_voice","units":2.5}`, cost.ServiceTwilioVoice, 0.035},
		{"elevenlabs characters", `{"service":"elevenlabs","units":2000}`, cost.ServiceElevenLabs, 0.6},
		{"stripe payment", `{"service":"stripe","units":100}`, cost.ServiceStripe, 3.2},
		{"map requests", `{"service":"google_maps","units":40}`, cost.ServiceGoogleMaps, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := env.do(t, http.MethodPost, "/api/v1/costs/t1/events", tt.body)
			require.Equal(t, http.StatusCreated, rec.Code)
			assert.Equal(t, "t1", body["tenant_id"])
			assert.Equal(t, tt.service, body["service"])
			assert.InDelta(t, tt.amount, body["amount"], 1e-9)
		})
	}

	t.Run("every service lands in the ledger", func(t *testing.T) {
		_, body := env.do(t, http.MethodGet, "/api/v1/costs/t1/today", "")
		assert.Len(t, body["breakdown"], len(tests))
	})

	t.Run("rejected events", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodPost, "/api/v1/costs/t1/events", `{"service":"claude","units":1}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec, _ = env.do(t, http.MethodPost, "/api/v1/costs/t1/events", `{"service":"twilio_sms"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec, _ = env.do(t, http.MethodPost, "/api/v1/costs/t1/events", `{"service":"twilio_sms","units":-1}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec, _ = env.do(t, http.MethodPost, "/api/v1/costs/t1/events", `{"service":"twilio_sms","units":1.5}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing tenant is dropped with a null body", func(t *testing.T) {
		monitor := cost.NewMonitor(threshold.Default())
		e := echo.New()
		e.Validator = api.NewValidator()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/costs//events",
			strings.NewReader(`{"service":"stripe","units":20}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("tenant")
		c.SetParamValues("")

		require.NoError(t, api.NewCostHandler(monitor).TrackEvent(c))
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))
		assert.Empty(t, monitor.GetAllTenantsCosts())
	})
}
