package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/loomhr/leave-engine/calendar"
	"github.com/loomhr/leave-engine/leave"
)

// isUniqueViolation reports whether err is a primary-key or unique-index
// conflict.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

// =============================================================================
// TENANTS
// =============================================================================

func (s *Store) CreateTenant(ctx context.Context, t leave.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, created_at) VALUES (?, ?, ?)`,
		string(t.ID), t.Name, encodeTime(t.CreatedAt))
	if isUniqueViolation(err) {
		return leave.ErrTenantAlreadyExists
	}
	return err
}

func (s *Store) GetTenant(ctx context.Context, id leave.TenantID) (leave.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t leave.Tenant
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM tenants WHERE id = ?`, string(id)).
		Scan(&t.ID, &t.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.Tenant{}, leave.ErrTenantNotFound
	}
	if err != nil {
		return leave.Tenant{}, err
	}
	t.CreatedAt, err = decodeTime(createdAt)
	return t, err
}

func (s *Store) ListTenants(ctx context.Context) ([]leave.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM tenants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.Tenant
	for rows.Next() {
		var t leave.Tenant
		var createdAt string
		if err := rows.Scan(&t.ID, &t.Name, &createdAt); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = decodeTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

const leaveTypeColumns = `tenant_id, code, name, annual_entitlement,
	accrual_rate_per_month, carryover_allowed, carryover_cap,
	requires_justification, max_consecutive_days, allow_negative, paid,
	created_at`

func scanLeaveType(scan func(...any) error) (leave.LeaveType, error) {
	var lt leave.LeaveType
	var entitlement, rate, cap, createdAt string
	err := scan(&lt.TenantID, &lt.Code, &lt.Name, &entitlement, &rate,
		&lt.CarryoverAllowed, &cap, &lt.RequiresJustification,
		&lt.MaxConsecutiveDays, &lt.AllowNegativeBalance, &lt.Paid, &createdAt)
	if err != nil {
		return leave.LeaveType{}, err
	}
	if lt.AnnualEntitlement, err = decodeDays(entitlement); err != nil {
		return leave.LeaveType{}, err
	}
	if lt.AccrualRatePerMonth, err = decodeDays(rate); err != nil {
		return leave.LeaveType{}, err
	}
	if lt.CarryoverCap, err = decodeDays(cap); err != nil {
		return leave.LeaveType{}, err
	}
	lt.CreatedAt, err = decodeTime(createdAt)
	return lt, err
}

func (s *Store) CreateLeaveType(ctx context.Context, lt leave.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_types (`+leaveTypeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(lt.TenantID), string(lt.Code), lt.Name,
		encodeDays(lt.AnnualEntitlement), encodeDays(lt.AccrualRatePerMonth),
		lt.CarryoverAllowed, encodeDays(lt.CarryoverCap),
		lt.RequiresJustification, lt.MaxConsecutiveDays,
		lt.AllowNegativeBalance, lt.Paid, encodeTime(lt.CreatedAt))
	if isUniqueViolation(err) {
		return leave.ErrLeaveTypeAlreadyExists
	}
	return err
}

func (s *Store) UpdateLeaveType(ctx context.Context, lt leave.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE leave_types SET name = ?, annual_entitlement = ?,
			accrual_rate_per_month = ?, carryover_allowed = ?,
			carryover_cap = ?, requires_justification = ?,
			max_consecutive_days = ?, allow_negative = ?, paid = ?
		WHERE tenant_id = ? AND code = ?`,
		lt.Name, encodeDays(lt.AnnualEntitlement),
		encodeDays(lt.AccrualRatePerMonth), lt.CarryoverAllowed,
		encodeDays(lt.CarryoverCap), lt.RequiresJustification,
		lt.MaxConsecutiveDays, lt.AllowNegativeBalance, lt.Paid,
		string(lt.TenantID), string(lt.Code))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return leave.ErrLeaveTypeNotFound
	}
	return nil
}

func (s *Store) GetLeaveType(ctx context.Context, tenant leave.TenantID, code leave.LeaveTypeCode) (leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+leaveTypeColumns+` FROM leave_types
		WHERE tenant_id = ? AND code = ?`,
		string(tenant), string(code))
	lt, err := scanLeaveType(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.LeaveType{}, leave.ErrLeaveTypeNotFound
	}
	return lt, err
}

func (s *Store) ListLeaveTypes(ctx context.Context, tenant leave.TenantID) ([]leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+leaveTypeColumns+` FROM leave_types
		WHERE tenant_id = ? ORDER BY code`,
		string(tenant))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.LeaveType
	for rows.Next() {
		lt, err := scanLeaveType(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, lt)
	}
	return out, rows.Err()
}

func (s *Store) DeleteLeaveType(ctx context.Context, tenant leave.TenantID, code leave.LeaveTypeCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM leave_types WHERE tenant_id = ? AND code = ?`,
		string(tenant), string(code))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return leave.ErrLeaveTypeNotFound
	}
	return nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

const employeeColumns = `tenant_id, id, name, email, team_id,
	contract_start, contract_end, active, created_at`

func scanEmployee(scan func(...any) error) (leave.Employee, error) {
	var e leave.Employee
	var email, contractEnd sql.NullString
	var contractStart, createdAt string
	err := scan(&e.TenantID, &e.ID, &e.Name, &email, &e.TeamID,
		&contractStart, &contractEnd, &e.Active, &createdAt)
	if err != nil {
		return leave.Employee{}, err
	}
	e.Email = email.String
	if e.ContractStart, err = decodeDate(contractStart); err != nil {
		return leave.Employee{}, err
	}
	if e.ContractEnd, err = decodeDate(contractEnd.String); err != nil {
		return leave.Employee{}, err
	}
	e.CreatedAt, err = decodeTime(createdAt)
	return e, err
}

func (s *Store) CreateEmployee(ctx context.Context, e leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.TenantID), string(e.ID), e.Name, nullable(e.Email),
		e.TeamID, encodeDate(e.ContractStart), encodeDateNull(e.ContractEnd),
		e.Active, encodeTime(e.CreatedAt))
	if isUniqueViolation(err) {
		return leave.ErrEmployeeAlreadyExists
	}
	return err
}

func (s *Store) UpdateEmployee(ctx context.Context, e leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE employees SET name = ?, email = ?, team_id = ?,
			contract_start = ?, contract_end = ?, active = ?
		WHERE tenant_id = ? AND id = ?`,
		e.Name, nullable(e.Email), e.TeamID, encodeDate(e.ContractStart),
		encodeDateNull(e.ContractEnd), e.Active,
		string(e.TenantID), string(e.ID))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return leave.ErrEmployeeNotFound
	}
	return nil
}

func (s *Store) GetEmployee(ctx context.Context, tenant leave.TenantID, id leave.EmployeeID) (leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+employeeColumns+` FROM employees
		WHERE tenant_id = ? AND id = ?`,
		string(tenant), string(id))
	e, err := scanEmployee(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.Employee{}, leave.ErrEmployeeNotFound
	}
	return e, err
}

func (s *Store) ListEmployees(ctx context.Context, tenant leave.TenantID) ([]leave.Employee, error) {
	return s.queryEmployees(ctx, `
		SELECT `+employeeColumns+` FROM employees
		WHERE tenant_id = ? ORDER BY id`,
		string(tenant))
}

func (s *Store) ListTeam(ctx context.Context, tenant leave.TenantID, teamID string) ([]leave.Employee, error) {
	return s.queryEmployees(ctx, `
		SELECT `+employeeColumns+` FROM employees
		WHERE tenant_id = ? AND team_id = ? AND active ORDER BY id`,
		string(tenant), teamID)
}

func (s *Store) queryEmployees(ctx context.Context, query string, args ...any) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.Employee
	for rows.Next() {
		e, err := scanEmployee(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (s *Store) AddHoliday(ctx context.Context, tenant leave.TenantID, date calendar.Date, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (tenant_id, date, label) VALUES (?, ?, ?)
		ON CONFLICT (tenant_id, date) DO UPDATE SET label = excluded.label`,
		string(tenant), encodeDate(date), label)
	return err
}

func (s *Store) RemoveHoliday(ctx context.Context, tenant leave.TenantID, date calendar.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM holidays WHERE tenant_id = ? AND date = ?`,
		string(tenant), encodeDate(date))
	return err
}

func (s *Store) HolidaysForYear(ctx context.Context, tenant leave.TenantID, year int) (calendar.BlackoutSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT date FROM holidays
		WHERE tenant_id = ? AND date >= ? AND date <= ?`,
		string(tenant),
		fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := calendar.BlackoutSet{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		d, err := decodeDate(raw)
		if err != nil {
			return nil, err
		}
		set[d] = struct{}{}
	}
	return set, rows.Err()
}
