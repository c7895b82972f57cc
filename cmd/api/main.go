package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tsanders-rh/sentinel/internal/alert"
	"github.com/tsanders-rh/sentinel/internal/api"
	"github.com/tsanders-rh/sentinel/internal/autoheal"
	"github.com/tsanders-rh/sentinel/internal/backup"
	"github.com/tsanders-rh/sentinel/internal/config"
	"github.com/tsanders-rh/sentinel/internal/cost"
	"github.com/tsanders-rh/sentinel/internal/logging"
	"github.com/tsanders-rh/sentinel/internal/metrics"
	"github.com/tsanders-rh/sentinel/internal/plan"
	"github.com/tsanders-rh/sentinel/internal/store"
	"github.com/tsanders-rh/sentinel/internal/telemetry"
	"github.com/tsanders-rh/sentinel/internal/threshold"
	"github.com/tsanders-rh/sentinel/internal/tracker"
)

// rolloverInterval bounds how long an idle ledger keeps yesterday's totals
const rolloverInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.AppEnv)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("api exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	shutdownTracer, err := telemetry.InitTracer("sentinel-api", cfg)
	if err != nil {
		return err
	}
	defer shutdownTracer()

	logger.Info("connecting to database")
	dbConfig := store.DefaultConfig(cfg.DatabaseURL)
	dbConfig.MaxConnections = cfg.DatabaseMaxConns
	st, err := store.NewStore(ctx, dbConfig)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return err
	}

	thresholds, err := threshold.Load(cfg.ThresholdsFile)
	if err != nil {
		return err
	}

	plans, err := plan.NewRegistry(plan.NewLoader(cfg.PlansFile))
	if err != nil {
		return err
	}
	logger.Info("loaded plans", "count", plans.Count())

	engine := autoheal.NewEngine(autoheal.WithLogger(logger))

	monitor := cost.NewMonitor(thresholds,
		cost.WithLogger(logger),
		cost.WithShutdownHook(func(tenantID string, total float64) {
			engine.Attempt(autoheal.MetricCosts, map[string]interface{}{
				"tenant_id": tenantID,
				"total":     total,
			})
		}),
	)

	dispatcher := alert.NewDispatcher(nil, alertDedup(cfg, logger), alertNotifier(cfg, logger), st.Tenants, logger)

	tr := tracker.New(nil, tracker.Deps{
		Monitor: monitor,
		Plans:   plans,
		Store:   st.Usage,
		Tenants: st.Tenants,
		Alerts:  dispatcher,
		Logger:  logger,
	})
	if _, err := tr.InitTenantUsageFromDB(ctx); err != nil {
		logger.Warn("load today's usage, starting empty", "error", err)
	}
	tr.Start(ctx)
	defer tr.Stop()

	backups, err := newBackupService(ctx, cfg, st, logger)
	if err != nil {
		return err
	}

	if cfg.BackupInAPI {
		scheduler := backup.NewScheduler(&backup.SchedulerConfig{
			Interval:     cfg.BackupInterval,
			InitialDelay: cfg.BackupInitialDelay,
		}, backups, st.Tenants, st.Security, logger)
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	go runRollover(ctx, monitor)

	serverConfig := api.DefaultServerConfig()
	serverConfig.Port = cfg.Port
	serverConfig.AllowedOrigins = cfg.AllowedOrigins

	server := api.NewServer(serverConfig, api.Deps{
		Monitor:  monitor,
		Tracker:  tr,
		Plans:    plans,
		AutoHeal: engine,
		Backups:  backups,
		Tenants:  st.Tenants,
		History:  st.Usage,
		Security: st.Security,
		DB:       st,
		Logger:   logger,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server exited")
	return nil
}

func runRollover(ctx context.Context, monitor *cost.Monitor) {
	ticker := time.NewTicker(rolloverInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			monitor.Rollover()
		}
	}
}

func alertDedup(cfg *config.Config, logger *slog.Logger) alert.Dedup {
	if cfg.RedisAddr == "" {
		return alert.NewMemoryDedup()
	}
	logger.Info("alert de-duplication shared through redis", "addr", cfg.RedisAddr)
	return alert.NewRedisDedup(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
}

func alertNotifier(cfg *config.Config, logger *slog.Logger) alert.Notifier {
	if cfg.AlertWebhookURL == "" {
		return alert.LogNotifier{Logger: logger}
	}
	return alert.NewWebhookNotifier(cfg.AlertWebhookURL, &http.Client{Timeout: 10 * time.Second})
}

func newBackupService(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) (*backup.Service, error) {
	opts := []backup.Option{backup.WithLogger(logger)}

	if cfg.BackupS3Bucket != "" {
		mirror, err := backup.NewS3Mirror(ctx, backup.S3MirrorConfig{
			Bucket:   cfg.BackupS3Bucket,
			Region:   cfg.BackupS3Region,
			Endpoint: cfg.BackupS3Endpoint,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, backup.WithMirror(mirror))
		logger.Info("mirroring backups to S3", "bucket", cfg.BackupS3Bucket)
	}

	return backup.NewService(&backup.Config{
		Dir:           cfg.BackupDir,
		RetentionDays: cfg.BackupRetentionDays,
		Tables:        backup.DefaultTables,
	}, st.Tables, opts...), nil
}
