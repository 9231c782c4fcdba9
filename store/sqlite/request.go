package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/loomhr/leave-engine/calendar"
	"github.com/loomhr/leave-engine/leave"
)

const requestColumns = `id, tenant_id, employee_id, code, start_date,
	end_date, start_half_day, end_half_day, computed_days, status,
	reason, justification_ref, created_at, decided_at, decided_by`

func scanRequest(scan func(...any) error) (leave.Request, error) {
	var r leave.Request
	var startDate, endDate, computedDays, createdAt string
	var reason, justification, decidedAt, decidedBy sql.NullString
	err := scan(&r.ID, &r.TenantID, &r.Employee, &r.Code, &startDate,
		&endDate, &r.StartHalfDay, &r.EndHalfDay, &computedDays, &r.Status,
		&reason, &justification, &createdAt, &decidedAt, &decidedBy)
	if err != nil {
		return leave.Request{}, err
	}
	r.Reason = reason.String
	r.JustificationRef = justification.String
	r.DecidedBy = decidedBy.String
	if r.StartDate, err = decodeDate(startDate); err != nil {
		return leave.Request{}, err
	}
	if r.EndDate, err = decodeDate(endDate); err != nil {
		return leave.Request{}, err
	}
	if r.ComputedDays, err = decodeDays(computedDays); err != nil {
		return leave.Request{}, err
	}
	if r.CreatedAt, err = decodeTime(createdAt); err != nil {
		return leave.Request{}, err
	}
	r.DecidedAt, err = decodeTime(decidedAt.String)
	return r, err
}

func (s *Store) CreateRequest(ctx context.Context, r leave.Request) error {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (`+requestColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(r.ID), string(r.TenantID), string(r.Employee), string(r.Code),
		encodeDate(r.StartDate), encodeDate(r.EndDate),
		r.StartHalfDay, r.EndHalfDay, encodeDays(r.ComputedDays),
		string(r.Status), nullable(r.Reason), nullable(r.JustificationRef),
		encodeTime(r.CreatedAt), encodeTimeNull(r.DecidedAt), nullable(r.DecidedBy))
	return err
}

func (s *Store) GetRequest(ctx context.Context, tenant leave.TenantID, id leave.RequestID) (leave.Request, error) {
	s.reqMu.RLock()
	defer s.reqMu.RUnlock()
	return s.getRequest(ctx, s.db, tenant, id)
}

func (s *Store) getRequest(ctx context.Context, db querier, tenant leave.TenantID, id leave.RequestID) (leave.Request, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+requestColumns+` FROM requests
		WHERE id = ? AND tenant_id = ?`,
		string(id), string(tenant))
	r, err := scanRequest(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return leave.Request{}, leave.ErrRequestNotFound
	}
	return r, err
}

// UpdateRequest applies fn under the reqMu write lock. The lock, not a
// SQL transaction, is the atomicity boundary here: fn nests a balance
// update that commits its own transaction, which SQLite's database-wide
// snapshot would reject inside an open write transaction. reqMu locks
// before balMu, never the other way around.
func (s *Store) UpdateRequest(ctx context.Context, tenant leave.TenantID, id leave.RequestID, fn func(*leave.Request) error) (leave.Request, error) {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()

	r, err := s.getRequest(ctx, s.db, tenant, id)
	if err != nil {
		return leave.Request{}, err
	}

	if err := fn(&r); err != nil {
		return leave.Request{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE requests SET status = ?, reason = ?, decided_at = ?, decided_by = ?
		WHERE id = ? AND tenant_id = ?`,
		string(r.Status), nullable(r.Reason), encodeTimeNull(r.DecidedAt),
		nullable(r.DecidedBy), string(id), string(tenant))
	if err != nil {
		return leave.Request{}, err
	}
	return r, nil
}

func (s *Store) ListRequests(ctx context.Context, tenant leave.TenantID, filter leave.RequestFilter) ([]leave.Request, error) {
	s.reqMu.RLock()
	defer s.reqMu.RUnlock()

	query := `SELECT ` + requestColumns + ` FROM requests WHERE tenant_id = ?`
	args := []any{string(tenant)}
	if filter.Employee != "" {
		query += ` AND employee_id = ?`
		args = append(args, string(filter.Employee))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Year != 0 {
		query += ` AND start_date >= ? AND start_date <= ?`
		args = append(args, yearStart(filter.Year), yearEnd(filter.Year))
	}
	query += ` ORDER BY created_at`

	return s.queryRequests(ctx, query, args...)
}

func (s *Store) ListOverlapping(ctx context.Context, tenant leave.TenantID, employees []leave.EmployeeID, start, end calendar.Date, statuses []leave.RequestStatus) ([]leave.Request, error) {
	s.reqMu.RLock()
	defer s.reqMu.RUnlock()

	if len(employees) == 0 || len(statuses) == 0 {
		return nil, nil
	}

	// Overlap: start1 <= end2 AND start2 <= end1, on ISO date strings.
	query := `SELECT ` + requestColumns + ` FROM requests
		WHERE tenant_id = ? AND start_date <= ? AND end_date >= ?
		AND employee_id IN (` + placeholders(len(employees)) + `)
		AND status IN (` + placeholders(len(statuses)) + `)
		ORDER BY id`
	args := []any{string(tenant), encodeDate(end), encodeDate(start)}
	for _, e := range employees {
		args = append(args, string(e))
	}
	for _, st := range statuses {
		args = append(args, string(st))
	}

	return s.queryRequests(ctx, query, args...)
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]leave.Request, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.Request
	for rows.Next() {
		r, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func yearStart(year int) string { return calendar.NewDate(year, 1, 1).String() }
func yearEnd(year int) string   { return calendar.NewDate(year, 12, 31).String() }
