// Package store implements the Store (C1): a single-writer, transactional
// record store with a versioned migration list and generic query/exec
// helpers, backed by either modernc.org/sqlite (the default, matching the
// teacher) or github.com/lib/pq (an alternate Postgres backend behind the
// same struct — spec.md §6 calls the persistence schema's "types
// abstract", which this package takes literally).
//
// Grounded on Aureuma-si/apps/ReleaseParty/backend/internal/store/store.go
// (Open/migrate/WAL-pragma/MaxOpenConns(1) shape) and
// original_source/src/db/migrations.rs (ordered, named, audited migrations).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver identifies which backend a Store was opened against.
type Driver string

const (
	SQLite   Driver = "sqlite"
	Postgres Driver = "postgres"
)

// Store is the process-wide handle to the backing database. Per spec.md
// §9 ("Global singletons"), exactly one Store is constructed at startup
// and passed by reference to every other component — it is the only
// point of mutation.
type Store struct {
	db     *sql.DB
	driver Driver
}

// Open opens a Store for the given driver ("sqlite" or "postgres") and
// DSN, running migrations before returning. For sqlite, dsn is a
// filesystem path; the parent directory is created if missing, matching
// the teacher's Open().
func Open(driver Driver, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store: dsn required")
	}
	var db *sql.DB
	var err error
	switch driver {
	case SQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, err
		}
		// journal_mode and foreign_keys are set per connection through the
		// DSN: SQLite refuses to switch into WAL inside a transaction and
		// ignores foreign_keys there, so migration 0001 alone cannot set them.
		db, err = sql.Open("sqlite", dsn+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
		if err != nil {
			return nil, err
		}
		// Single-writer semantics: sqlite only tolerates one writer at a
		// time; capping open connections at 1 serializes all writers
		// through the stdlib's own connection pool rather than racing
		// SQLITE_BUSY, exactly as the teacher does.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(5 * time.Minute)
	case Postgres:
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(8)
		db.SetConnMaxLifetime(5 * time.Minute)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migration failed, refusing to open: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sql.DB    { return s.db }
func (s *Store) Driver() Driver { return s.driver }

// Rebind translates a query written with sqlite/MySQL-style "?"
// placeholders into the target driver's native placeholder syntax
// ($1, $2, ... for Postgres; unchanged for sqlite). Every query/exec
// helper in C2–C4 is written once against "?" and rebound here, so
// business-logic packages never import a driver directly.
func (s *Store) Rebind(query string) string {
	if s.driver != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// BeginTx starts a transaction. Callers must defer Rollback; a successful
// Commit makes the subsequent Rollback a no-op (database/sql itself
// returns sql.ErrTxDone, which callers should ignore) — this is the Go
// idiom replacing original_source's Drop-based rollback-if-not-committed
// Transaction wrapper (db/mod.rs), since Go has no destructors.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// ExecContext and QueryContext rebind then delegate, so callers never
// have to call Rebind themselves for the common case.
func (s *Store) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.Rebind(query), args...)
}

func (s *Store) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.Rebind(query), args...)
}

func (s *Store) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.Rebind(query), args...)
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.auditTableDDL()); err != nil {
		return fmt.Errorf("creating migrations audit table: %w", err)
	}

	applied := map[string]bool{}
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM migrations`)
	if err != nil {
		return fmt.Errorf("reading migrations audit table: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		applied[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	for _, m := range s.migrations() {
		if applied[m.name] {
			continue
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		for _, stmt := range m.statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %s: %w", m.name, err)
			}
		}
		insert := s.Rebind(`INSERT INTO migrations (name, executed_at) VALUES (?, ?)`)
		if _, err := tx.ExecContext(ctx, insert, m.name, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s: recording audit row: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %s: commit: %w", m.name, err)
		}
	}
	return nil
}

func (s *Store) auditTableDDL() string {
	if s.driver == Postgres {
		return `CREATE TABLE IF NOT EXISTS migrations (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			executed_at TEXT NOT NULL
		);`
	}
	return `CREATE TABLE IF NOT EXISTS migrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		executed_at TEXT NOT NULL
	);`
}

type migration struct {
	name       string
	statements []string
}

// migrations returns the ordered, named migration list. Each name is
// unique and permanent — never edit a past migration's SQL, append a new
// one, per original_source/src/db/migrations.rs's own discipline (its
// rename_github_issue_to_platform_issue migration is the precedent this
// repo's column names already assume).
func (s *Store) migrations() []migration {
	if s.driver == Postgres {
		return s.migrationsPostgres()
	}
	return s.migrationsSQLite()
}

func (s *Store) migrationsSQLite() []migration {
	return []migration{
		{name: "0001_enable_foreign_keys", statements: []string{
			`PRAGMA journal_mode=WAL;`,
			`PRAGMA foreign_keys=ON;`,
		}},
		{name: "0002_create_experiments", statements: []string{
			`CREATE TABLE IF NOT EXISTS experiments (
				name TEXT PRIMARY KEY,
				mode TEXT NOT NULL,
				cap_lints TEXT NOT NULL,
				toolchain_start TEXT NOT NULL,
				toolchain_end TEXT NOT NULL,
				package_selection TEXT NOT NULL,
				priority INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				started_at TEXT,
				completed_at TEXT,
				platform_issue TEXT,
				platform_issue_url TEXT,
				platform_issue_identifier TEXT,
				status TEXT NOT NULL,
				assigned_to TEXT,
				report_url TEXT,
				ignore_blacklist INTEGER NOT NULL DEFAULT 0,
				requirement TEXT
			);`,
		}},
		{name: "0003_create_experiment_metadata", statements: []string{
			`CREATE TABLE IF NOT EXISTS experiment_metadata (
				experiment TEXT PRIMARY KEY REFERENCES experiments(name) ON DELETE CASCADE ON UPDATE CASCADE,
				callback_url TEXT,
				platform TEXT,
				triggered_by TEXT,
				created_at TEXT NOT NULL
			);`,
		}},
		{name: "0004_create_results", statements: []string{
			`CREATE TABLE IF NOT EXISTS results (
				experiment TEXT NOT NULL REFERENCES experiments(name) ON DELETE CASCADE ON UPDATE CASCADE,
				crate TEXT NOT NULL,
				toolchain TEXT NOT NULL,
				result_json TEXT NOT NULL,
				log_blob BLOB,
				log_encoding TEXT,
				PRIMARY KEY (experiment, crate, toolchain)
			);`,
		}},
		{name: "0005_create_shas", statements: []string{
			`CREATE TABLE IF NOT EXISTS shas (
				experiment TEXT NOT NULL REFERENCES experiments(name) ON DELETE CASCADE ON UPDATE CASCADE,
				org TEXT NOT NULL,
				name TEXT NOT NULL,
				sha TEXT NOT NULL,
				PRIMARY KEY (experiment, org, name)
			);`,
		}},
		{name: "0006_create_saved_names", statements: []string{
			`CREATE TABLE IF NOT EXISTS saved_names (
				experiment TEXT NOT NULL REFERENCES experiments(name) ON DELETE CASCADE ON UPDATE CASCADE,
				toolchain TEXT NOT NULL,
				name TEXT NOT NULL,
				PRIMARY KEY (experiment, toolchain)
			);`,
		}},
		{name: "0007_create_experiment_crates", statements: []string{
			`CREATE TABLE IF NOT EXISTS experiment_crates (
				experiment TEXT NOT NULL REFERENCES experiments(name) ON DELETE CASCADE ON UPDATE CASCADE,
				crate TEXT NOT NULL,
				skipped INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (experiment, crate)
			);`,
		}},
		{name: "0008_create_agents", statements: []string{
			`CREATE TABLE IF NOT EXISTS agents (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				capabilities TEXT NOT NULL,
				last_heartbeat TEXT NOT NULL,
				current_experiment TEXT,
				status TEXT NOT NULL
			);`,
		}},
		{name: "0009_create_api_tokens", statements: []string{
			`CREATE TABLE IF NOT EXISTS api_tokens (
				token TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				permissions TEXT NOT NULL,
				created_at TEXT NOT NULL,
				expires_at TEXT
			);`,
		}},
	}
}

func (s *Store) migrationsPostgres() []migration {
	// Same logical schema as migrationsSQLite; Postgres needs BYTEA
	// instead of BLOB and lacks a WAL pragma, but foreign keys default
	// to enabled and support ON UPDATE CASCADE natively.
	return []migration{
		{name: "0002_create_experiments", statements: []string{
			`CREATE TABLE IF NOT EXISTS experiments (
				name TEXT PRIMARY KEY,
				mode TEXT NOT NULL,
				cap_lints TEXT NOT NULL,
				toolchain_start TEXT NOT NULL,
				toolchain_end TEXT NOT NULL,
				package_selection TEXT NOT NULL,
				priority INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				started_at TEXT,
				completed_at TEXT,
				platform_issue TEXT,
				platform_issue_url TEXT,
				platform_issue_identifier TEXT,
				status TEXT NOT NULL,
				assigned_to TEXT,
				report_url TEXT,
				ignore_blacklist INTEGER NOT NULL DEFAULT 0,
				requirement TEXT
			);`,
		}},
		{name: "0003_create_experiment_metadata", statements: []string{
			`CREATE TABLE IF NOT EXISTS experiment_metadata (
				experiment TEXT PRIMARY KEY REFERENCES experiments(name) ON DELETE CASCADE ON UPDATE CASCADE,
				callback_url TEXT,
				platform TEXT,
				triggered_by TEXT,
				created_at TEXT NOT NULL
			);`,
		}},
		{name: "0004_create_results", statements: []string{
			`CREATE TABLE IF NOT EXISTS results (
				experiment TEXT NOT NULL REFERENCES experiments(name) ON DELETE CASCADE ON UPDATE CASCADE,
				crate TEXT NOT NULL,
				toolchain TEXT NOT NULL,
				result_json TEXT NOT NULL,
				log_blob BYTEA,
				log_encoding TEXT,
				PRIMARY KEY (experiment, crate, toolchain)
			);`,
		}},
		{name: "0005_create_shas", statements: []string{
			`CREATE TABLE IF NOT EXISTS shas (
				experiment TEXT NOT NULL REFERENCES experiments(name) ON DELETE CASCADE ON UPDATE CASCADE,
				org TEXT NOT NULL,
				name TEXT NOT NULL,
				sha TEXT NOT NULL,
				PRIMARY KEY (experiment, org, name)
			);`,
		}},
		{name: "0006_create_saved_names", statements: []string{
			`CREATE TABLE IF NOT EXISTS saved_names (
				experiment TEXT NOT NULL REFERENCES experiments(name) ON DELETE CASCADE ON UPDATE CASCADE,
				toolchain TEXT NOT NULL,
				name TEXT NOT NULL,
				PRIMARY KEY (experiment, toolchain)
			);`,
		}},
		{name: "0007_create_experiment_crates", statements: []string{
			`CREATE TABLE IF NOT EXISTS experiment_crates (
				experiment TEXT NOT NULL REFERENCES experiments(name) ON DELETE CASCADE ON UPDATE CASCADE,
				crate TEXT NOT NULL,
				skipped INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (experiment, crate)
			);`,
		}},
		{name: "0008_create_agents", statements: []string{
			`CREATE TABLE IF NOT EXISTS agents (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				capabilities TEXT NOT NULL,
				last_heartbeat TEXT NOT NULL,
				current_experiment TEXT,
				status TEXT NOT NULL
			);`,
		}},
		{name: "0009_create_api_tokens", statements: []string{
			`CREATE TABLE IF NOT EXISTS api_tokens (
				token TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				permissions TEXT NOT NULL,
				created_at TEXT NOT NULL,
				expires_at TEXT
			);`,
		}},
	}
}
