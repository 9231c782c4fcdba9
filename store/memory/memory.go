/*
Package memory is the in-memory store used in tests and demos.

PURPOSE:
  Implements every store interface of the leave and trial packages over
  plain maps.

LOCKING:
  One RWMutex per concern, not one for the whole store: the workflow
  nests a balance update inside a request update, so requests and
  balances must lock independently. Lock order is always request before
  balance, never the reverse.
*/
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/loomhr/leave-engine/calendar"
	"github.com/loomhr/leave-engine/leave"
)

// Store implements all leave store interfaces in memory.
type Store struct {
	mu        sync.RWMutex // tenants, types, employees, holidays
	tenants   map[leave.TenantID]leave.Tenant
	types     map[leave.TenantID]map[leave.LeaveTypeCode]leave.LeaveType
	employees map[leave.TenantID]map[leave.EmployeeID]leave.Employee
	holidays  map[leave.TenantID]map[calendar.Date]string

	balMu    sync.RWMutex
	balances map[leave.BalanceKey]leave.BalanceEntry

	reqMu    sync.RWMutex
	requests map[leave.RequestID]leave.Request

	markMu        sync.Mutex
	accrualMarks  map[string]struct{}
	rolloverMarks map[string]struct{}
}

func New() *Store {
	return &Store{
		tenants:       make(map[leave.TenantID]leave.Tenant),
		types:         make(map[leave.TenantID]map[leave.LeaveTypeCode]leave.LeaveType),
		employees:     make(map[leave.TenantID]map[leave.EmployeeID]leave.Employee),
		balances:      make(map[leave.BalanceKey]leave.BalanceEntry),
		requests:      make(map[leave.RequestID]leave.Request),
		holidays:      make(map[leave.TenantID]map[calendar.Date]string),
		accrualMarks:  make(map[string]struct{}),
		rolloverMarks: make(map[string]struct{}),
	}
}

// =============================================================================
// TENANTS
// =============================================================================

func (s *Store) CreateTenant(_ context.Context, t leave.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[t.ID]; ok {
		return leave.ErrTenantAlreadyExists
	}
	s.tenants[t.ID] = t
	return nil
}

func (s *Store) GetTenant(_ context.Context, id leave.TenantID) (leave.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return leave.Tenant{}, leave.ErrTenantNotFound
	}
	return t, nil
}

func (s *Store) ListTenants(_ context.Context) ([]leave.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]leave.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// CATALOG
// =============================================================================

func (s *Store) CreateLeaveType(_ context.Context, lt leave.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byCode := s.types[lt.TenantID]
	if byCode == nil {
		byCode = make(map[leave.LeaveTypeCode]leave.LeaveType)
		s.types[lt.TenantID] = byCode
	}
	if _, ok := byCode[lt.Code]; ok {
		return leave.ErrLeaveTypeAlreadyExists
	}
	byCode[lt.Code] = lt
	return nil
}

func (s *Store) UpdateLeaveType(_ context.Context, lt leave.LeaveType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byCode := s.types[lt.TenantID]
	if _, ok := byCode[lt.Code]; !ok {
		return leave.ErrLeaveTypeNotFound
	}
	byCode[lt.Code] = lt
	return nil
}

func (s *Store) GetLeaveType(_ context.Context, tenant leave.TenantID, code leave.LeaveTypeCode) (leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lt, ok := s.types[tenant][code]
	if !ok {
		return leave.LeaveType{}, leave.ErrLeaveTypeNotFound
	}
	return lt, nil
}

func (s *Store) ListLeaveTypes(_ context.Context, tenant leave.TenantID) ([]leave.LeaveType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]leave.LeaveType, 0, len(s.types[tenant]))
	for _, lt := range s.types[tenant] {
		out = append(out, lt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) DeleteLeaveType(_ context.Context, tenant leave.TenantID, code leave.LeaveTypeCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.types[tenant][code]; !ok {
		return leave.ErrLeaveTypeNotFound
	}
	delete(s.types[tenant], code)
	return nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) CreateEmployee(_ context.Context, e leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := s.employees[e.TenantID]
	if byID == nil {
		byID = make(map[leave.EmployeeID]leave.Employee)
		s.employees[e.TenantID] = byID
	}
	if _, ok := byID[e.ID]; ok {
		return leave.ErrEmployeeAlreadyExists
	}
	byID[e.ID] = e
	return nil
}

func (s *Store) UpdateEmployee(_ context.Context, e leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := s.employees[e.TenantID]
	if _, ok := byID[e.ID]; !ok {
		return leave.ErrEmployeeNotFound
	}
	byID[e.ID] = e
	return nil
}

func (s *Store) GetEmployee(_ context.Context, tenant leave.TenantID, id leave.EmployeeID) (leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[tenant][id]
	if !ok {
		return leave.Employee{}, leave.ErrEmployeeNotFound
	}
	return e, nil
}

func (s *Store) ListEmployees(_ context.Context, tenant leave.TenantID) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]leave.Employee, 0, len(s.employees[tenant]))
	for _, e := range s.employees[tenant] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListTeam(_ context.Context, tenant leave.TenantID, teamID string) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []leave.Employee
	for _, e := range s.employees[tenant] {
		if e.TeamID == teamID && e.Active {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// BALANCES
// =============================================================================

func (s *Store) GetBalance(_ context.Context, key leave.BalanceKey) (leave.BalanceEntry, error) {
	s.balMu.RLock()
	defer s.balMu.RUnlock()
	b, ok := s.balances[key]
	if !ok {
		return leave.BalanceEntry{}, leave.ErrBalanceNotFound
	}
	return b, nil
}

func (s *Store) UpdateBalance(_ context.Context, key leave.BalanceKey, fn func(*leave.BalanceEntry) error) (leave.BalanceEntry, error) {
	s.balMu.Lock()
	defer s.balMu.Unlock()
	b, ok := s.balances[key]
	if !ok {
		b = leave.BalanceEntry{Key: key}
	}
	if err := fn(&b); err != nil {
		return leave.BalanceEntry{}, err
	}
	s.balances[key] = b
	return b, nil
}

func (s *Store) ListBalances(_ context.Context, tenant leave.TenantID, employee leave.EmployeeID, year int) ([]leave.BalanceEntry, error) {
	s.balMu.RLock()
	defer s.balMu.RUnlock()
	var out []leave.BalanceEntry
	for key, b := range s.balances {
		if key.TenantID == tenant && key.Employee == employee && key.Year == year {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Code < out[j].Key.Code })
	return out, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

func (s *Store) CreateRequest(_ context.Context, r leave.Request) error {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()
	s.requests[r.ID] = r
	return nil
}

func (s *Store) GetRequest(_ context.Context, tenant leave.TenantID, id leave.RequestID) (leave.Request, error) {
	s.reqMu.RLock()
	defer s.reqMu.RUnlock()
	r, ok := s.requests[id]
	if !ok || r.TenantID != tenant {
		return leave.Request{}, leave.ErrRequestNotFound
	}
	return r, nil
}

func (s *Store) UpdateRequest(_ context.Context, tenant leave.TenantID, id leave.RequestID, fn func(*leave.Request) error) (leave.Request, error) {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()
	r, ok := s.requests[id]
	if !ok || r.TenantID != tenant {
		return leave.Request{}, leave.ErrRequestNotFound
	}
	if err := fn(&r); err != nil {
		return leave.Request{}, err
	}
	s.requests[id] = r
	return r, nil
}

func (s *Store) ListRequests(_ context.Context, tenant leave.TenantID, filter leave.RequestFilter) ([]leave.Request, error) {
	s.reqMu.RLock()
	defer s.reqMu.RUnlock()
	var out []leave.Request
	for _, r := range s.requests {
		if r.TenantID == tenant && filter.Matches(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListOverlapping(_ context.Context, tenant leave.TenantID, employees []leave.EmployeeID, start, end calendar.Date, statuses []leave.RequestStatus) ([]leave.Request, error) {
	s.reqMu.RLock()
	defer s.reqMu.RUnlock()

	empSet := make(map[leave.EmployeeID]struct{}, len(employees))
	for _, e := range employees {
		empSet[e] = struct{}{}
	}
	statusSet := make(map[leave.RequestStatus]struct{}, len(statuses))
	for _, st := range statuses {
		statusSet[st] = struct{}{}
	}

	var out []leave.Request
	for _, r := range s.requests {
		if r.TenantID != tenant {
			continue
		}
		if _, ok := empSet[r.Employee]; !ok {
			continue
		}
		if _, ok := statusSet[r.Status]; !ok {
			continue
		}
		if r.Overlaps(start, end) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// MARKS
// =============================================================================

func (s *Store) MarkAccrual(_ context.Context, key leave.BalanceKey, period leave.Period) (bool, error) {
	s.markMu.Lock()
	defer s.markMu.Unlock()
	k := accrualMarkKey(key, period)
	if _, ok := s.accrualMarks[k]; ok {
		return true, nil
	}
	s.accrualMarks[k] = struct{}{}
	return false, nil
}

func (s *Store) MarkRollover(_ context.Context, key leave.BalanceKey, targetYear int) (bool, error) {
	s.markMu.Lock()
	defer s.markMu.Unlock()
	k := rolloverMarkKey(key, targetYear)
	if _, ok := s.rolloverMarks[k]; ok {
		return true, nil
	}
	s.rolloverMarks[k] = struct{}{}
	return false, nil
}

func (s *Store) UnmarkAccrual(_ context.Context, key leave.BalanceKey, period leave.Period) error {
	s.markMu.Lock()
	defer s.markMu.Unlock()
	delete(s.accrualMarks, accrualMarkKey(key, period))
	return nil
}

func (s *Store) UnmarkRollover(_ context.Context, key leave.BalanceKey, targetYear int) error {
	s.markMu.Lock()
	defer s.markMu.Unlock()
	delete(s.rolloverMarks, rolloverMarkKey(key, targetYear))
	return nil
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func (s *Store) AddHoliday(_ context.Context, tenant leave.TenantID, date calendar.Date, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDate := s.holidays[tenant]
	if byDate == nil {
		byDate = make(map[calendar.Date]string)
		s.holidays[tenant] = byDate
	}
	byDate[date] = label
	return nil
}

func (s *Store) RemoveHoliday(_ context.Context, tenant leave.TenantID, date calendar.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.holidays[tenant], date)
	return nil
}

func (s *Store) HolidaysForYear(_ context.Context, tenant leave.TenantID, year int) (calendar.BlackoutSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := calendar.BlackoutSet{}
	for d := range s.holidays[tenant] {
		if d.Year() == year {
			set[d] = struct{}{}
		}
	}
	return set, nil
}
