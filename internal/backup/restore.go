package backup

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
)

// maxRestoreErrors bounds the per-table error samples in a restore result
const maxRestoreErrors = 10

// RestoreOptions selects what to restore. A nil DryRun means dry run; the
// caller must set it to false to write. Empty Tables restores every table in
// the manifest.
type RestoreOptions struct {
	DryRun *bool    `json:"dry_run"`
	Tables []string `json:"tables"`
}

func (o RestoreOptions) dryRun() bool {
	return o.DryRun == nil || *o.DryRun
}

// TableRestore is one table's restore outcome
type TableRestore struct {
	WouldRestore int      `json:"would_restore,omitempty"`
	Restored     int      `json:"restored"`
	Failed       int      `json:"failed"`
	Skipped      bool     `json:"skipped,omitempty"`
	Reason       string   `json:"reason,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}

// RestoreResult summarizes a restore
type RestoreResult struct {
	Success  bool                    `json:"success"`
	Name     string                  `json:"name"`
	TenantID string                  `json:"tenant_id"`
	DryRun   bool                    `json:"dry_run"`
	Tables   map[string]TableRestore `json:"tables"`
}

// RestoreBackup upserts a manifest's rows back into the data store. Each row
// is written independently; one row's failure does not stop the rest.
// In dry-run mode no writes are issued.
func (s *Service) RestoreBackup(ctx context.Context, name string, opts RestoreOptions) (*RestoreResult, error) {
	manifest, err := s.GetBackup(name)
	if err != nil {
		return nil, err
	}
	if manifest.TenantID == "" {
		return nil, fmt.Errorf("backup %s: %w", name, ErrTenantRequired)
	}

	ctx, span := tracer.Start(ctx, "backup.restore")
	defer span.End()

	dryRun := opts.dryRun()
	span.SetAttributes(
		attribute.String("tenant.id", manifest.TenantID),
		attribute.Bool("backup.dry_run", dryRun),
	)

	selected := opts.Tables
	if len(selected) == 0 {
		for _, t := range s.config.Tables {
			if _, ok := manifest.Tables[t.Name]; ok {
				selected = append(selected, t.Name)
			}
		}
		for table := range manifest.Tables {
			if !slices.Contains(selected, table) {
				selected = append(selected, table)
			}
		}
	}

	result := &RestoreResult{
		Success:  true,
		Name:     name,
		TenantID: manifest.TenantID,
		DryRun:   dryRun,
		Tables:   make(map[string]TableRestore, len(selected)),
	}

	for _, table := range selected {
		data, ok := manifest.Tables[table]
		switch {
		case !ok:
			result.Tables[table] = TableRestore{Skipped: true, Reason: "not in backup"}
			continue
		case !data.Success:
			result.Tables[table] = TableRestore{Skipped: true, Reason: "export failed"}
			continue
		case dryRun:
			result.Tables[table] = TableRestore{WouldRestore: len(data.Data)}
			continue
		}

		tr := s.restoreTable(ctx, s.table(table), manifest.TenantID, data.Data)
		if tr.Failed > 0 {
			result.Success = false
		}
		result.Tables[table] = tr
	}

	s.logger.Info("backup restore finished",
		"name", name, "tenant_id", manifest.TenantID, "dry_run", dryRun, "success", result.Success)

	return result, nil
}

func (s *Service) restoreTable(ctx context.Context, t Table, tenantID string, rows []map[string]any) TableRestore {
	var tr TableRestore

	for _, row := range rows {
		var err error
		if t.TenantScoped && fmt.Sprint(row[TenantColumn]) != tenantID {
			err = fmt.Errorf("row outside tenant %s", tenantID)
		} else {
			err = s.source.UpsertRow(ctx, t.Name, ConflictKey, row)
		}

		if err != nil {
			tr.Failed++
			if len(tr.Errors) < maxRestoreErrors {
				tr.Errors = append(tr.Errors, err.Error())
			}
			continue
		}
		tr.Restored++
	}

	if tr.Failed > 0 {
		s.logger.Warn("restore table had failures", "table", t.Name, "restored", tr.Restored, "failed", tr.Failed)
	}
	return tr
}
