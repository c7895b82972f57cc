package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of pgxpool.Pool the sub-stores use
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store provides database operations
type Store struct {
	pool *pgxpool.Pool
	db   DB

	Tenants  *TenantStore
	Usage    *UsageStore
	Security *SecurityStore
	Tables   *TableStore
}

// New creates a new Store with all sub-stores initialized
func New(pool *pgxpool.Pool) *Store {
	s := NewWithDB(pool)
	s.pool = pool
	return s
}

// NewWithDB creates a Store over any DB implementation. Close and Ping
// require a pool and are no-ops otherwise.
func NewWithDB(db DB) *Store {
	return &Store{
		db:       db,
		Tenants:  &TenantStore{db: db},
		Usage:    &UsageStore{db: db},
		Security: &SecurityStore{db: db},
		Tables:   &TableStore{db: db},
	}
}

// Close closes the database connection pool
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies the database connection is alive
func (s *Store) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

// NewStore connects a pool with the given configuration and wraps it in a Store
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(pool), nil
}

//go:embed schema.sql
var schema string

// Migrate creates the tables this service owns if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
