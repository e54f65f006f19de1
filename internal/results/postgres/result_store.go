// Package postgres records harvested images in a Postgres table.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/listing-image-harvester/internal/harvest"
)

// DefaultTable is used when Config.Table is empty.
const DefaultTable = "harvested_images"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for result rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// ResultStore writes one row per saved image.
type ResultStore struct {
	pool  execCloser
	table string
}

// NewResultStore connects to Postgres and makes sure the table exists.
func NewResultStore(ctx context.Context, cfg Config) (*ResultStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewResultStoreWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := store.EnsureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewResultStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewResultStoreWithPool(pool execCloser, table string) (*ResultStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ResultStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *ResultStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureTable creates the results table when it is missing.
func (s *ResultStore) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT NOT NULL,
	ebay_url TEXT NOT NULL,
	saved_path TEXT NOT NULL,
	resolved_image_url TEXT NOT NULL,
	strategy TEXT NOT NULL,
	sha256 TEXT NOT NULL,
	bytes INTEGER NOT NULL,
	run_id TEXT NOT NULL,
	harvested_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, saved_path)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// StoreResult inserts a result row. A repeated (run_id, saved_path) is ignored.
func (s *ResultStore) StoreResult(ctx context.Context, result harvest.StoredResult) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("result store is not configured")
	}
	if result.ID == "" || result.SavedPath == "" {
		return fmt.Errorf("result id and saved path are required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	ebay_url,
	saved_path,
	resolved_image_url,
	strategy,
	sha256,
	bytes,
	run_id,
	harvested_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
) ON CONFLICT (run_id, saved_path) DO NOTHING`, s.table)

	args := []any{
		result.ID,
		result.URL,
		result.SavedPath,
		result.ImageURL,
		result.Strategy,
		result.SHA256,
		result.Bytes,
		result.RunID,
		result.HarvestedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}
