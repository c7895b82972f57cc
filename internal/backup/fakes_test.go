package backup_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tsanders-rh/sentinel/pkg/types"
)

type exportCall struct {
	table, column, tenant string
}

type upsertCall struct {
	table string
	row   map[string]any
}

// fakeSource serves rows per table and filters on the tenant column like the database would
type fakeSource struct {
	mu        sync.Mutex
	rows      map[string][]map[string]any
	failTable map[string]error
	failRow   func(row map[string]any) error
	exports   []exportCall
	upserts   []upsertCall
	// ignoreFilter returns every row regardless of tenant
	ignoreFilter bool
}

func (f *fakeSource) ExportRows(_ context.Context, table, column, tenantID string) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exports = append(f.exports, exportCall{table: table, column: column, tenant: tenantID})

	if err := f.failTable[table]; err != nil {
		return nil, err
	}

	out := []map[string]any{}
	for _, row := range f.rows[table] {
		if column != "" && !f.ignoreFilter && fmt.Sprint(row[column]) != tenantID {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeSource) UpsertRow(_ context.Context, table, _ string, row map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRow != nil {
		if err := f.failRow(row); err != nil {
			return err
		}
	}
	f.upserts = append(f.upserts, upsertCall{table: table, row: row})
	return nil
}

type fakeTenants struct {
	tenants []*types.TenantConfig
	err     error
}

func (f *fakeTenants) ListActive(context.Context) ([]*types.TenantConfig, error) {
	return f.tenants, f.err
}

type fakeSecurity struct {
	mu     sync.Mutex
	events []*types.SecurityEvent
	err    error
}

func (f *fakeSecurity) LogEvent(_ context.Context, e *types.SecurityEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.err
}

type fakeMirror struct {
	mu       sync.Mutex
	uploaded []string
	deleted  []string
	err      error
}

func (f *fakeMirror) Upload(_ context.Context, name string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.uploaded = append(f.uploaded, name)
	return nil
}

func (f *fakeMirror) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	return nil
}

var errQuery = errors.New("relation does not exist")

func sampleSource() *fakeSource {
	return &fakeSource{rows: map[string][]map[string]any{
		"customers": {
			{"id": "c1", "tenant_id": "t1", "name": "Ann"},
			{"id": "c2", "tenant_id": "t2", "name": "Bob"},
			{"id": "c3", "tenant_id": "t1", "name": "Cy"},
		},
		"services": {
			{"id": "s1", "tenant_id": "t1", "name": "Cut"},
		},
		"system_settings": {
			{"id": "maintenance", "value": "off"},
		},
	}}
}
