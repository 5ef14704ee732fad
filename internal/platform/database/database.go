// Package database provides PostgreSQL connection management and the learning schema via pgx.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a pgx connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// schema is applied in order by Migrate. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS learning_paths (
		id          TEXT PRIMARY KEY,
		seq         BIGSERIAL NOT NULL,
		title       TEXT NOT NULL,
		category    TEXT NOT NULL DEFAULT '',
		difficulty  TEXT NOT NULL DEFAULT 'beginner',
		data        JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS learning_paths_created_idx ON learning_paths (created_at, seq)`,
	`CREATE TABLE IF NOT EXISTS learning_progress (
		path_id     TEXT NOT NULL REFERENCES learning_paths (id) ON DELETE CASCADE,
		user_id     TEXT NOT NULL,
		data        JSONB NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (path_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS learning_progress_user_idx ON learning_progress (user_id)`,
	`CREATE TABLE IF NOT EXISTS learning_goals (
		id          TEXT PRIMARY KEY,
		user_id     TEXT,
		data        JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS learning_goals_user_idx ON learning_goals (user_id)`,
	`CREATE TABLE IF NOT EXISTS learning_events (
		id          BIGSERIAL PRIMARY KEY,
		event_type  TEXT NOT NULL,
		path_id     TEXT,
		user_id     TEXT,
		data        JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS learning_events_path_idx ON learning_events (path_id, created_at)`,
}

// ParseURL validates a PostgreSQL connection URL.
func ParseURL(url string) (*pgxpool.Config, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL is empty")
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	return cfg, nil
}

// New creates a new database connection pool and verifies it with a ping.
func New(ctx context.Context, url string, maxConns, minConns int) (*DB, error) {
	cfg, err := ParseURL(url)
	if err != nil {
		return nil, err
	}
	if minConns > maxConns {
		return nil, fmt.Errorf("min conns (%d) exceeds max conns (%d)", minConns, maxConns)
	}

	cfg.MaxConns = int32(maxConns)
	cfg.MinConns = int32(minConns)
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Migrate creates the learning tables and indexes inside one transaction.
func (db *DB) Migrate(ctx context.Context) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, stmt := range schema {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}

	slog.Info("database schema ready", "statements", len(schema))
	return nil
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
