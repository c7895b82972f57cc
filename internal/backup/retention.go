package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tsanders-rh/sentinel/internal/metrics"
)

// CleanOldBackups deletes backup files whose modification time is older than
// the retention window. Every file gets the same window regardless of content.
func (s *Service) CleanOldBackups(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.config.Dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read backup directory: %w", err)
	}

	cutoff := s.now().Add(-time.Duration(s.config.RetentionDays) * 24 * time.Hour)
	deleted := 0

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isBackupFile(name) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("stat backup", "name", name, "error", err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(s.config.Dir, name)); err != nil {
			s.logger.Warn("delete expired backup", "name", name, "error", err)
			continue
		}
		s.deleteMirror(ctx, name)
		deleted++
		s.logger.Info("deleted expired backup", "name", name, "modified", info.ModTime())
	}

	metrics.AddBackupsPruned(deleted)
	return deleted, nil
}

// ListBackups returns backups on disk, newest first. An empty tenantID lists all tenants.
func (s *Service) ListBackups(tenantID string) ([]Info, error) {
	entries, err := os.ReadDir(s.config.Dir)
	if os.IsNotExist(err) {
		return []Info{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup directory: %w", err)
	}

	backups := []Info{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isBackupFile(name) {
			continue
		}

		owner, ok := TenantFromName(name)
		if !ok || (tenantID != "" && owner != tenantID) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		backups = append(backups, Info{
			Name:      name,
			TenantID:  owner,
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

func isBackupFile(name string) bool {
	return strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileSuffix)
}
