// Package store persists every learner aggregate in a relational database
// via sqlx. Both PostgreSQL and SQLite are supported; queries stick to the
// syntax both accept ($N placeholders, ON CONFLICT upserts, no RETURNING).
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sproutlearn/backend/internal/gamification"
)

// Supported driver names.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Store wraps a sqlx database handle. A Store obtained from Open runs each
// statement directly; RunInTx yields a transactional view of the same Store.
type Store struct {
	db     *sqlx.DB
	driver string
	q      sqlx.ExtContext // db outside a transaction, tx inside one
}

// Open connects to the database and verifies the connection.
func Open(driver, dsn string) (*Store, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// SQLite has a single writer; funnel all statements through one
		// connection so upserts never race ErrBusy.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
	}

	return &Store{db: db, driver: driver, q: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// inTx runs fn against a transactional view of the store, committing on nil
// and rolling back on error. Nested calls reuse the enclosing transaction.
func (s *Store) inTx(ctx context.Context, fn func(*Store) error) error {
	if _, nested := s.q.(*sqlx.Tx); nested {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	txStore := &Store{db: s.db, driver: s.driver, q: tx}
	if err := fn(txStore); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// RunInTx implements gamification.Store.
func (s *Store) RunInTx(ctx context.Context, fn func(gamification.Store) error) error {
	return s.inTx(ctx, func(txs *Store) error { return fn(txs) })
}

// Migrate creates the schema. Every statement is idempotent, so Migrate is
// safe to run on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS streaks (
		identity_kind TEXT NOT NULL,
		identity_id TEXT NOT NULL,
		current_streak INTEGER NOT NULL DEFAULT 0,
		longest_streak INTEGER NOT NULL DEFAULT 0,
		last_activity_date TEXT,
		PRIMARY KEY (identity_kind, identity_id)
	)`,
	`CREATE TABLE IF NOT EXISTS level_state (
		identity_kind TEXT NOT NULL,
		identity_id TEXT NOT NULL,
		total_xp INTEGER NOT NULL DEFAULT 0,
		current_level INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (identity_kind, identity_id)
	)`,
	`CREATE TABLE IF NOT EXISTS daily_activity (
		identity_kind TEXT NOT NULL,
		identity_id TEXT NOT NULL,
		day TEXT NOT NULL,
		contents_completed INTEGER NOT NULL DEFAULT 0,
		xp_earned INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (identity_kind, identity_id, day)
	)`,
	`CREATE TABLE IF NOT EXISTS weekly_goals (
		identity_kind TEXT NOT NULL,
		identity_id TEXT NOT NULL,
		week_start TEXT NOT NULL,
		target_contents INTEGER NOT NULL,
		completed_contents INTEGER NOT NULL DEFAULT 0,
		is_achieved BOOLEAN NOT NULL DEFAULT FALSE,
		achieved_at TIMESTAMP,
		PRIMARY KEY (identity_kind, identity_id, week_start)
	)`,
	`CREATE TABLE IF NOT EXISTS earned_badges (
		identity_kind TEXT NOT NULL,
		identity_id TEXT NOT NULL,
		badge_id TEXT NOT NULL,
		earned_at TIMESTAMP NOT NULL,
		PRIMARY KEY (identity_kind, identity_id, badge_id)
	)`,
	`CREATE TABLE IF NOT EXISTS content_completions (
		identity_kind TEXT NOT NULL,
		identity_id TEXT NOT NULL,
		content_id TEXT NOT NULL,
		completed_at TIMESTAMP NOT NULL,
		PRIMARY KEY (identity_kind, identity_id, content_id)
	)`,
	`CREATE TABLE IF NOT EXISTS curricula (
		id TEXT PRIMARY KEY,
		identity_kind TEXT NOT NULL,
		identity_id TEXT NOT NULL,
		title TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS curriculum_modules (
		id TEXT PRIMARY KEY,
		curriculum_id TEXT NOT NULL REFERENCES curricula(id),
		title TEXT NOT NULL,
		order_index INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS module_contents (
		id TEXT PRIMARY KEY,
		module_id TEXT NOT NULL REFERENCES curriculum_modules(id),
		title TEXT NOT NULL,
		content_type TEXT NOT NULL,
		duration TEXT NOT NULL DEFAULT '',
		order_index INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS action_items (
		id TEXT PRIMARY KEY,
		identity_kind TEXT NOT NULL,
		identity_id TEXT NOT NULL,
		title TEXT NOT NULL,
		action_kind TEXT NOT NULL DEFAULT '',
		estimated_minutes INTEGER NOT NULL DEFAULT 0,
		order_index INTEGER NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS daily_plans (
		id TEXT PRIMARY KEY,
		identity_kind TEXT NOT NULL,
		identity_id TEXT NOT NULL,
		plan_date TEXT NOT NULL,
		estimated_minutes INTEGER NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (identity_kind, identity_id, plan_date)
	)`,
	`CREATE TABLE IF NOT EXISTS plan_items (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL REFERENCES daily_plans(id),
		item_type TEXT NOT NULL,
		ref_id TEXT NOT NULL,
		order_index INTEGER NOT NULL,
		status TEXT NOT NULL,
		title TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL,
		action_kind TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_curricula_identity
		ON curricula (identity_kind, identity_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_modules_curriculum
		ON curriculum_modules (curriculum_id, order_index)`,
	`CREATE INDEX IF NOT EXISTS idx_contents_module
		ON module_contents (module_id, order_index)`,
	`CREATE INDEX IF NOT EXISTS idx_actions_identity
		ON action_items (identity_kind, identity_id, order_index)`,
	`CREATE INDEX IF NOT EXISTS idx_plan_items_plan
		ON plan_items (plan_id, order_index)`,
}
