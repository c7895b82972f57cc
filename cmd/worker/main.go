package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tsanders-rh/sentinel/internal/backup"
	"github.com/tsanders-rh/sentinel/internal/config"
	"github.com/tsanders-rh/sentinel/internal/logging"
	"github.com/tsanders-rh/sentinel/internal/metrics"
	"github.com/tsanders-rh/sentinel/internal/store"
	"github.com/tsanders-rh/sentinel/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.AppEnv)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("worker exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	shutdownTracer, err := telemetry.InitTracer("sentinel-worker", cfg)
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

	if err := st.Ping(ctx); err != nil {
		return err
	}
	logger.Info("database connection successful")

	opts := []backup.Option{backup.WithLogger(logger)}
	if cfg.BackupS3Bucket != "" {
		mirror, err := backup.NewS3Mirror(ctx, backup.S3MirrorConfig{
			Bucket:   cfg.BackupS3Bucket,
			Region:   cfg.BackupS3Region,
			Endpoint: cfg.BackupS3Endpoint,
		})
		if err != nil {
			return err
		}
		opts = append(opts, backup.WithMirror(mirror))
	}

	service := backup.NewService(&backup.Config{
		Dir:           cfg.BackupDir,
		RetentionDays: cfg.BackupRetentionDays,
		Tables:        backup.DefaultTables,
	}, st.Tables, opts...)

	scheduler := backup.NewScheduler(&backup.SchedulerConfig{
		Interval:     cfg.BackupInterval,
		InitialDelay: cfg.BackupInitialDelay,
	}, service, st.Tenants, st.Security, logger)

	scheduler.Start(ctx)
	logger.Info("backup worker started", "dir", cfg.BackupDir, "retention_days", cfg.BackupRetentionDays)

	<-ctx.Done()

	logger.Info("shutting down backup worker")
	scheduler.Stop()
	logger.Info("shutdown complete")
	return nil
}
