package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/loomhr/leave-engine/leave"
)

// =============================================================================
// BALANCES
// =============================================================================

func (s *Store) GetBalance(ctx context.Context, key leave.BalanceKey) (leave.BalanceEntry, error) {
	s.balMu.RLock()
	defer s.balMu.RUnlock()
	return s.getBalance(ctx, s.db, key)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getBalance(ctx context.Context, db querier, key leave.BalanceKey) (leave.BalanceEntry, error) {
	var accrued, used, carried, updatedAt string
	err := db.QueryRowContext(ctx, `
		SELECT accrued, used, carried_over, updated_at FROM balances
		WHERE tenant_id = ? AND employee_id = ? AND code = ? AND year = ?`,
		string(key.TenantID), string(key.Employee), string(key.Code), key.Year).
		Scan(&accrued, &used, &carried, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.BalanceEntry{}, leave.ErrBalanceNotFound
	}
	if err != nil {
		return leave.BalanceEntry{}, err
	}

	entry := leave.BalanceEntry{Key: key}
	if entry.Accrued, err = decodeDays(accrued); err != nil {
		return leave.BalanceEntry{}, err
	}
	if entry.Used, err = decodeDays(used); err != nil {
		return leave.BalanceEntry{}, err
	}
	if entry.CarriedOver, err = decodeDays(carried); err != nil {
		return leave.BalanceEntry{}, err
	}
	entry.UpdatedAt, err = decodeTime(updatedAt)
	return entry, err
}

// UpdateBalance runs fn against the row inside a SQL transaction, lazily
// creating a zero row. The balMu write lock serializes writers; the
// transaction keeps the read-modify-write atomic against crashes.
func (s *Store) UpdateBalance(ctx context.Context, key leave.BalanceKey, fn func(*leave.BalanceEntry) error) (leave.BalanceEntry, error) {
	s.balMu.Lock()
	defer s.balMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return leave.BalanceEntry{}, err
	}
	defer tx.Rollback()

	entry, err := s.getBalance(ctx, tx, key)
	if errors.Is(err, leave.ErrBalanceNotFound) {
		entry = leave.BalanceEntry{Key: key}
	} else if err != nil {
		return leave.BalanceEntry{}, err
	}

	if err := fn(&entry); err != nil {
		return leave.BalanceEntry{}, err
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO balances (tenant_id, employee_id, code, year,
			accrued, used, carried_over, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, employee_id, code, year) DO UPDATE SET
			accrued = excluded.accrued,
			used = excluded.used,
			carried_over = excluded.carried_over,
			updated_at = excluded.updated_at`,
		string(key.TenantID), string(key.Employee), string(key.Code), key.Year,
		encodeDays(entry.Accrued), encodeDays(entry.Used),
		encodeDays(entry.CarriedOver), encodeTime(entry.UpdatedAt))
	if err != nil {
		return leave.BalanceEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		return leave.BalanceEntry{}, err
	}
	return entry, nil
}

func (s *Store) ListBalances(ctx context.Context, tenant leave.TenantID, employee leave.EmployeeID, year int) ([]leave.BalanceEntry, error) {
	s.balMu.RLock()
	defer s.balMu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT code, accrued, used, carried_over, updated_at FROM balances
		WHERE tenant_id = ? AND employee_id = ? AND year = ?
		ORDER BY code`,
		string(tenant), string(employee), year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.BalanceEntry
	for rows.Next() {
		var code, accrued, used, carried, updatedAt string
		if err := rows.Scan(&code, &accrued, &used, &carried, &updatedAt); err != nil {
			return nil, err
		}
		entry := leave.BalanceEntry{Key: leave.BalanceKey{
			TenantID: tenant, Employee: employee,
			Code: leave.LeaveTypeCode(code), Year: year,
		}}
		if entry.Accrued, err = decodeDays(accrued); err != nil {
			return nil, err
		}
		if entry.Used, err = decodeDays(used); err != nil {
			return nil, err
		}
		if entry.CarriedOver, err = decodeDays(carried); err != nil {
			return nil, err
		}
		if entry.UpdatedAt, err = decodeTime(updatedAt); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// =============================================================================
// IDEMPOTENCY MARKS
// =============================================================================

// MarkAccrual inserts the mark; a primary-key conflict means the grant
// was already applied.
func (s *Store) MarkAccrual(ctx context.Context, key leave.BalanceKey, period leave.Period) (bool, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accrual_marks (tenant_id, employee_id, code, period, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(key.TenantID), string(key.Employee), string(key.Code),
		period.String(), encodeTime(time.Now()))
	if isUniqueViolation(err) {
		return true, nil
	}
	return false, err
}

func (s *Store) MarkRollover(ctx context.Context, key leave.BalanceKey, targetYear int) (bool, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rollover_marks (tenant_id, employee_id, code, target_year, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		string(key.TenantID), string(key.Employee), string(key.Code),
		targetYear, encodeTime(time.Now()))
	if isUniqueViolation(err) {
		return true, nil
	}
	return false, err
}

// UnmarkAccrual deletes the mark so a re-run can retry the grant.
// Deleting a mark that is not there is a no-op.
func (s *Store) UnmarkAccrual(ctx context.Context, key leave.BalanceKey, period leave.Period) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM accrual_marks
		WHERE tenant_id = ? AND employee_id = ? AND code = ? AND period = ?`,
		string(key.TenantID), string(key.Employee), string(key.Code), period.String())
	return err
}

func (s *Store) UnmarkRollover(ctx context.Context, key leave.BalanceKey, targetYear int) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM rollover_marks
		WHERE tenant_id = ? AND employee_id = ? AND code = ? AND target_year = ?`,
		string(key.TenantID), string(key.Employee), string(key.Code), targetYear)
	return err
}
