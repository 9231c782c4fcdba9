/*
Package sqlite is the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements every leave store interface plus trial.Store. The same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  tenants:        Tenant registry
  leave_types:    Per-tenant leave catalog
  employees:      Employee directory
  balances:       One row per (tenant, employee, type, year)
  requests:       Leave requests with workflow status
  accrual_marks:  Idempotency marks for monthly accrual runs
  rollover_marks: Idempotency marks for year-end carryover
  holidays:       Per-tenant blackout dates
  trial_accounts: Tenant trial lifecycle

CONCURRENCY:
  Per-concern mutexes serialize the read-modify-write Update methods.
  Requests lock before balances, matching the workflow's nesting; the
  reverse order never happens. Balance writes additionally run in a SQL
  transaction so a crash never leaves a half-applied row.

WAL MODE:
  Opened with WAL so readers do not block the single writer.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - leave/store.go: interface definitions
  - store/memory:   in-memory implementation for tests
*/
package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB

	mu    sync.RWMutex // tenants, leave_types, employees, holidays
	balMu sync.RWMutex
	reqMu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite allows a single writer anyway, and a shared
	// connection keeps ":memory:" databases from splitting per-conn.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tenants (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS leave_types (
		tenant_id TEXT NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		annual_entitlement TEXT NOT NULL,
		accrual_rate_per_month TEXT NOT NULL,
		carryover_allowed BOOLEAN NOT NULL DEFAULT FALSE,
		carryover_cap TEXT NOT NULL,
		requires_justification BOOLEAN NOT NULL DEFAULT FALSE,
		max_consecutive_days INTEGER NOT NULL DEFAULT 0,
		allow_negative BOOLEAN NOT NULL DEFAULT FALSE,
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, code)
	);

	CREATE TABLE IF NOT EXISTS employees (
		tenant_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT,
		team_id TEXT NOT NULL DEFAULT '',
		contract_start TEXT NOT NULL,
		contract_end TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_employees_team
		ON employees(tenant_id, team_id);

	CREATE TABLE IF NOT EXISTS balances (
		tenant_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		code TEXT NOT NULL,
		year INTEGER NOT NULL,
		accrued TEXT NOT NULL,
		used TEXT NOT NULL,
		carried_over TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, employee_id, code, year)
	);

	CREATE INDEX IF NOT EXISTS idx_balances_employee_year
		ON balances(tenant_id, employee_id, year);

	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		code TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		start_half_day BOOLEAN NOT NULL DEFAULT FALSE,
		end_half_day BOOLEAN NOT NULL DEFAULT FALSE,
		computed_days TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		justification_ref TEXT,
		created_at TEXT NOT NULL,
		decided_at TEXT,
		decided_by TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_requests_tenant_employee
		ON requests(tenant_id, employee_id);
	CREATE INDEX IF NOT EXISTS idx_requests_tenant_status
		ON requests(tenant_id, status);
	CREATE INDEX IF NOT EXISTS idx_requests_span
		ON requests(tenant_id, start_date, end_date);

	-- Idempotency marks: the primary key is the exactly-once guarantee
	-- for batch runs.
	CREATE TABLE IF NOT EXISTS accrual_marks (
		tenant_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		code TEXT NOT NULL,
		period TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, employee_id, code, period)
	);

	CREATE TABLE IF NOT EXISTS rollover_marks (
		tenant_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		code TEXT NOT NULL,
		target_year INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, employee_id, code, target_year)
	);

	CREATE TABLE IF NOT EXISTS holidays (
		tenant_id TEXT NOT NULL,
		date TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (tenant_id, date)
	);

	CREATE TABLE IF NOT EXISTS trial_accounts (
		tenant_id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		trial_start TEXT NOT NULL,
		trial_end TEXT NOT NULL,
		reminders_json TEXT NOT NULL DEFAULT '{}',
		converted_at TEXT,
		expired_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_trial_accounts_state
		ON trial_accounts(state);
	`

	_, err := s.db.Exec(schema)
	return err
}

// nullable turns "" into NULL for optional text columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
