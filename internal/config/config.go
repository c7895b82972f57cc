package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process configuration loaded from the environment
type Config struct {
	// Server
	Port           int    // default: 8080
	AppEnv         string // "dev" or "prod"
	AllowedOrigins []string

	// Database
	DatabaseURL      string
	DatabaseMaxConns int

	// Cache, optional. Enables alert de-duplication shared across instances.
	RedisAddr string

	// Backups
	BackupDir           string
	BackupRetentionDays int
	BackupInterval      time.Duration
	BackupInitialDelay  time.Duration
	BackupInAPI         bool
	BackupS3Bucket      string
	BackupS3Region      string
	BackupS3Endpoint    string

	// Plan and threshold overrides (YAML), optional
	PlansFile      string
	ThresholdsFile string

	// Alerts
	AlertWebhookURL string

	// Observability
	OTELExporterType     string // "stdout", "otlp" or "none"
	OTELExporterEndpoint string
}

// Load reads configuration from the environment, after an optional .env file
func Load() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:               getEnv("APP_ENV", "dev"),
		DatabaseURL:          getEnv("DATABASE_URL", "postgres://localhost:5432/sentinel?sslmode=disable"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		BackupDir:            getEnv("BACKUP_DIR", "./backups"),
		BackupS3Bucket:       os.Getenv("BACKUP_S3_BUCKET"),
		BackupS3Region:       getEnv("BACKUP_S3_REGION", "us-east-1"),
		BackupS3Endpoint:     os.Getenv("BACKUP_S3_ENDPOINT"),
		PlansFile:            os.Getenv("PLANS_FILE"),
		ThresholdsFile:       os.Getenv("THRESHOLDS_FILE"),
		AlertWebhookURL:      os.Getenv("ALERT_WEBHOOK_URL"),
		OTELExporterType:     getEnv("OTEL_EXPORTER_TYPE", "none"),
		OTELExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
	}

	for _, origin := range strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	var err error
	if cfg.Port, err = getInt("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.DatabaseMaxConns, err = getInt("DATABASE_MAX_CONNS", 10); err != nil {
		return nil, err
	}
	if cfg.BackupRetentionDays, err = getInt("BACKUP_RETENTION_DAYS", 7); err != nil {
		return nil, err
	}

	intervalHours, err := getInt("BACKUP_INTERVAL_HOURS", 24)
	if err != nil {
		return nil, err
	}
	cfg.BackupInterval = time.Duration(intervalHours) * time.Hour

	delay, err := time.ParseDuration(getEnv("BACKUP_INITIAL_DELAY", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid BACKUP_INITIAL_DELAY: %w", err)
	}
	cfg.BackupInitialDelay = delay

	inAPI, err := strconv.ParseBool(getEnv("BACKUP_SCHEDULER_IN_API", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid BACKUP_SCHEDULER_IN_API: %w", err)
	}
	cfg.BackupInAPI = inAPI

	// Validation
	if cfg.DatabaseMaxConns <= 0 {
		return nil, fmt.Errorf("DATABASE_MAX_CONNS must be positive")
	}
	if cfg.BackupRetentionDays <= 0 {
		return nil, fmt.Errorf("BACKUP_RETENTION_DAYS must be positive")
	}
	if cfg.BackupInterval <= 0 {
		return nil, fmt.Errorf("BACKUP_INTERVAL_HOURS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := getEnv(key, strconv.Itoa(fallback))
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
