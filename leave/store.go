/*
Store interfaces for the leave package.

PURPOSE:
  The engine depends on these interfaces only; store/memory and
  store/sqlite implement them. Mutations on contended rows go through
  atomic read-modify-write Update methods so the implementation can
  serialize them (mutex in memory, transaction in sqlite).

CONCURRENCY CONTRACT:
  - UpdateBalance / UpdateRequest run fn under the store's exclusive
    lock for that row; fn must be pure apart from mutating its argument
  - fn returning an error aborts the update with no change persisted
*/
package leave

import (
	"context"

	"github.com/loomhr/leave-engine/calendar"
)

// TenantStore persists tenants.
type TenantStore interface {
	CreateTenant(ctx context.Context, t Tenant) error
	GetTenant(ctx context.Context, id TenantID) (Tenant, error)
	ListTenants(ctx context.Context) ([]Tenant, error)
}

// CatalogStore persists per-tenant leave type definitions.
type CatalogStore interface {
	CreateLeaveType(ctx context.Context, lt LeaveType) error
	UpdateLeaveType(ctx context.Context, lt LeaveType) error
	GetLeaveType(ctx context.Context, tenant TenantID, code LeaveTypeCode) (LeaveType, error)
	ListLeaveTypes(ctx context.Context, tenant TenantID) ([]LeaveType, error)
	DeleteLeaveType(ctx context.Context, tenant TenantID, code LeaveTypeCode) error
}

// EmployeeStore persists employees.
type EmployeeStore interface {
	CreateEmployee(ctx context.Context, e Employee) error
	UpdateEmployee(ctx context.Context, e Employee) error
	GetEmployee(ctx context.Context, tenant TenantID, id EmployeeID) (Employee, error)
	ListEmployees(ctx context.Context, tenant TenantID) ([]Employee, error)
	// ListTeam returns the active employees sharing a team.
	ListTeam(ctx context.Context, tenant TenantID, teamID string) ([]Employee, error)
}

// BalanceStore persists balance entries.
type BalanceStore interface {
	GetBalance(ctx context.Context, key BalanceKey) (BalanceEntry, error)

	// UpdateBalance atomically applies fn to the entry for key, creating
	// a zero entry first if none exists. The mutated entry is persisted
	// unless fn returns an error.
	UpdateBalance(ctx context.Context, key BalanceKey, fn func(*BalanceEntry) error) (BalanceEntry, error)

	// ListBalances returns all entries for an employee in a year.
	ListBalances(ctx context.Context, tenant TenantID, employee EmployeeID, year int) ([]BalanceEntry, error)
}

// RequestStore persists leave requests.
type RequestStore interface {
	CreateRequest(ctx context.Context, r Request) error
	GetRequest(ctx context.Context, tenant TenantID, id RequestID) (Request, error)

	// UpdateRequest atomically applies fn to the request. fn runs under
	// the store's exclusive lock for the row; returning an error aborts.
	UpdateRequest(ctx context.Context, tenant TenantID, id RequestID, fn func(*Request) error) (Request, error)

	ListRequests(ctx context.Context, tenant TenantID, filter RequestFilter) ([]Request, error)

	// ListOverlapping returns requests in the given statuses whose span
	// intersects [start, end], for any of the given employees.
	ListOverlapping(ctx context.Context, tenant TenantID, employees []EmployeeID, start, end calendar.Date, statuses []RequestStatus) ([]Request, error)
}

// RequestFilter narrows ListRequests. Zero fields match everything.
type RequestFilter struct {
	Employee EmployeeID
	Status   RequestStatus
	Year     int
}

// Matches reports whether the request passes the filter.
func (f RequestFilter) Matches(r Request) bool {
	if f.Employee != "" && r.Employee != f.Employee {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Year != 0 && r.StartDate.Year() != f.Year {
		return false
	}
	return true
}

// AccrualMarkStore records which (employee, type, period) and
// (employee, type, year) grants have already been applied. Marks make
// accrual and rollover runs idempotent.
type AccrualMarkStore interface {
	// MarkAccrual records the monthly grant. Returns already=true without
	// writing when the mark exists.
	MarkAccrual(ctx context.Context, key BalanceKey, period Period) (already bool, err error)

	// MarkRollover records the year-end carryover into targetYear.
	MarkRollover(ctx context.Context, key BalanceKey, targetYear int) (already bool, err error)

	// UnmarkAccrual removes a mark so a later run retries the grant.
	// Callers use it when the credit behind a fresh mark failed.
	UnmarkAccrual(ctx context.Context, key BalanceKey, period Period) error

	// UnmarkRollover removes a carryover mark.
	UnmarkRollover(ctx context.Context, key BalanceKey, targetYear int) error
}

// HolidayStore persists per-tenant blackout dates.
type HolidayStore interface {
	AddHoliday(ctx context.Context, tenant TenantID, date calendar.Date, label string) error
	RemoveHoliday(ctx context.Context, tenant TenantID, date calendar.Date) error
	// HolidaysForYear returns the tenant's blackout set for a year.
	HolidaysForYear(ctx context.Context, tenant TenantID, year int) (calendar.BlackoutSet, error)
}
