// Package backup exports each tenant's rows to a JSON manifest on disk,
// prunes manifests by age, restores them by upsert, and schedules backups
// for every active tenant.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tsanders-rh/sentinel/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/tsanders-rh/sentinel/internal/backup")

// Source reads and writes table rows
type Source interface {
	ExportRows(ctx context.Context, table, tenantColumn, tenantID string) ([]map[string]any, error)
	UpsertRow(ctx context.Context, table, conflictKey string, row map[string]any) error
}

// Mirror receives a copy of every written manifest
type Mirror interface {
	Upload(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
}

// Config holds backup service configuration
type Config struct {
	Dir           string
	RetentionDays int
	Tables        []Table
}

// DefaultConfig returns default backup configuration
func DefaultConfig() *Config {
	return &Config{
		Dir:           "./backups",
		RetentionDays: 7,
		Tables:        DefaultTables,
	}
}

// Result is returned by CreateBackup. Success is false when any table failed,
// even though the manifest was written.
type Result struct {
	Success bool   `json:"success"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	Stats   Stats  `json:"stats"`
}

// Option configures a Service
type Option func(*Service)

// WithMirror uploads each manifest after it is written
func WithMirror(m Mirror) Option {
	return func(s *Service) { s.mirror = m }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service performs tenant backups
type Service struct {
	config *Config
	source Source
	mirror Mirror
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a backup service
func NewService(config *Config, source Source, opts ...Option) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	if len(config.Tables) == 0 {
		config.Tables = DefaultTables
	}

	s := &Service{
		config: config,
		source: source,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Dir returns the backup directory
func (s *Service) Dir() string {
	return s.config.Dir
}

func (s *Service) table(name string) Table {
	for _, t := range s.config.Tables {
		if t.Name == name {
			return t
		}
	}
	return Table{Name: name, TenantScoped: true}
}

// ExportTable exports one table for a tenant. Query failures produce a failed
// result with a zero count; only a missing tenant returns an error.
func (s *Service) ExportTable(ctx context.Context, table, tenantID string) (TableResult, error) {
	if tenantID == "" {
		return TableResult{}, ErrTenantRequired
	}

	t := s.table(table)
	column := ""
	if t.TenantScoped {
		column = TenantColumn
	}

	rows, err := s.source.ExportRows(ctx, t.Name, column, tenantID)
	if err != nil {
		s.logger.Error("export table", "table", table, "tenant_id", tenantID, "error", err)
		return TableResult{Success: false, Count: 0, Error: err.Error()}, nil
	}

	if t.TenantScoped {
		for _, row := range rows {
			if fmt.Sprint(row[TenantColumn]) != tenantID {
				s.logger.Error("export returned a row outside tenant scope", "table", table, "tenant_id", tenantID)
				return TableResult{Success: false, Count: 0, Error: "row outside tenant scope"}, nil
			}
		}
	}

	return TableResult{Success: true, Count: len(rows), Data: rows}, nil
}

// CreateBackup exports every table for a tenant into one manifest file, then
// prunes expired backups
func (s *Service) CreateBackup(ctx context.Context, tenantID string) (*Result, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}

	ctx, span := tracer.Start(ctx, "backup.create")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	started := time.Now()
	now := s.now()
	name := FileName(tenantID, now)
	if err := ValidateName(name); err != nil {
		return nil, fmt.Errorf("tenant id %q: %w", tenantID, err)
	}

	manifest := Manifest{
		RunID:     uuid.New().String(),
		Name:      name,
		Timestamp: now.UTC(),
		TenantID:  tenantID,
		Tables:    make(map[string]TableResult, len(s.config.Tables)),
	}

	for _, t := range s.config.Tables {
		res, err := s.ExportTable(ctx, t.Name, tenantID)
		if err != nil {
			return nil, err
		}

		manifest.Tables[t.Name] = res
		manifest.Stats.TotalTables++
		if res.Success {
			manifest.Stats.SuccessTables++
			manifest.Stats.TotalRecords += res.Count
		} else {
			manifest.Stats.FailedTables++
		}
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	if err := os.MkdirAll(s.config.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	path := filepath.Join(s.config.Dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write manifest")
		metrics.IncBackup("error")
		return nil, fmt.Errorf("write backup %s: %w", name, err)
	}

	if s.mirror != nil {
		if err := s.mirror.Upload(ctx, name, data); err != nil {
			s.logger.Warn("mirror backup", "name", name, "error", err)
		}
	}

	if _, err := s.CleanOldBackups(ctx); err != nil {
		s.logger.Warn("prune old backups", "error", err)
	}

	result := &Result{
		Success: manifest.Stats.FailedTables == 0,
		Name:    name,
		Path:    path,
		Stats:   manifest.Stats,
	}

	span.SetAttributes(
		attribute.Int("backup.records", manifest.Stats.TotalRecords),
		attribute.Int("backup.failed_tables", manifest.Stats.FailedTables),
	)
	metrics.ObserveBackupDuration(time.Since(started))
	if result.Success {
		metrics.IncBackup("success")
	} else {
		metrics.IncBackup("partial")
		span.SetStatus(codes.Error, "tables failed")
	}

	s.logger.Info("backup written",
		"tenant_id", tenantID,
		"name", name,
		"records", manifest.Stats.TotalRecords,
		"failed_tables", manifest.Stats.FailedTables,
	)

	return result, nil
}

// GetBackup reads a manifest by name
func (s *Service) GetBackup(name string) (*Manifest, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.config.Dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrBackupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read backup %s: %w", name, err)
	}

	var manifest Manifest
	if err := decodeManifest(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode backup %s: %w", name, err)
	}
	return &manifest, nil
}

// DeleteBackup removes a manifest and its mirror copy
func (s *Service) DeleteBackup(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	err := os.Remove(filepath.Join(s.config.Dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return ErrBackupNotFound
	}
	if err != nil {
		return fmt.Errorf("delete backup %s: %w", name, err)
	}

	s.deleteMirror(ctx, name)
	return nil
}

func (s *Service) deleteMirror(ctx context.Context, name string) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Delete(ctx, name); err != nil {
		s.logger.Warn("delete mirrored backup", "name", name, "error", err)
	}
}

// decodeManifest keeps row numbers exact so restored ids match
func decodeManifest(data []byte, m *Manifest) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(m)
}
