/*
Package leave implements the leave balance and accrual engine.

PURPOSE:
  Tracks, per tenant and employee, how many days of each leave type have
  been accrued, used and carried over, and governs the request workflow
  that consumes those balances.

KEY CONCEPTS IN THIS FILE (types.go):
  - Days: a day quantity at half-day granularity (decimal, never float)
  - LeaveType: per-tenant configuration of a leave category
  - BalanceEntry: the (tenant, employee, type, year) ledger row
  - Request: a leave request moving through the workflow state machine

DESIGN PRINCIPLES:
  1. Tenant scoping: every record carries its TenantID and every boundary
     operation verifies it; cross-tenant access is a fatal caller bug
  2. Precision: decimal.Decimal for all day arithmetic
  3. Derived availability: available = accrued + carried_over - used is
     recomputed, never stored

SEE ALSO:
  - ledger.go:   balance mutations (the only writers)
  - workflow.go: request state machine
  - accrual.go:  monthly crediting
  - rollover.go: year-end carryover
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/loomhr/leave-engine/calendar"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type EmployeeID string
type LeaveTypeCode string
type RequestID string

// Well-known leave type codes seeded for new tenants.
const (
	CodePaidLeave LeaveTypeCode = "CP"  // congés payés / paid leave
	CodeRTT       LeaveTypeCode = "RTT" // working-time reduction days
	CodeSick      LeaveTypeCode = "SICK"
	CodeUnpaid    LeaveTypeCode = "UNPAID"
)

// =============================================================================
// DAYS - Quantity at half-day granularity
// =============================================================================

// Days is a day quantity. All ledger values are multiples of 0.5.
type Days struct {
	Value decimal.Decimal
}

func DaysFromFloat(v float64) Days { return Days{Value: decimal.NewFromFloat(v)} }
func DaysFromInt(v int) Days       { return Days{Value: decimal.NewFromInt(int64(v))} }
func DaysFromDecimal(v decimal.Decimal) Days { return Days{Value: v} }
func ZeroDays() Days               { return Days{Value: decimal.Zero} }

func (d Days) Add(o Days) Days          { return Days{Value: d.Value.Add(o.Value)} }
func (d Days) Sub(o Days) Days          { return Days{Value: d.Value.Sub(o.Value)} }
func (d Days) Neg() Days                { return Days{Value: d.Value.Neg()} }
func (d Days) IsZero() bool             { return d.Value.IsZero() }
func (d Days) IsNegative() bool         { return d.Value.IsNegative() }
func (d Days) IsPositive() bool         { return d.Value.IsPositive() }
func (d Days) LessThan(o Days) bool     { return d.Value.LessThan(o.Value) }
func (d Days) GreaterThan(o Days) bool  { return d.Value.GreaterThan(o.Value) }
func (d Days) Equal(o Days) bool        { return d.Value.Equal(o.Value) }
func (d Days) String() string           { return d.Value.String() }
func (d Days) Float64() float64         { f, _ := d.Value.Float64(); return f }

func (d Days) Min(o Days) Days {
	if d.LessThan(o) {
		return d
	}
	return o
}

func (d Days) Max(o Days) Days {
	if d.GreaterThan(o) {
		return d
	}
	return o
}

var half = decimal.NewFromFloat(0.5)

// IsHalfDayGranular reports whether the quantity is a multiple of 0.5.
func (d Days) IsHalfDayGranular() bool {
	return d.Value.Mod(half).IsZero()
}

// FloorToHalfDay rounds down to the nearest half day. Used when proration
// produces fractions finer than the ledger granularity.
func (d Days) FloorToHalfDay() Days {
	return Days{Value: d.Value.Div(half).Floor().Mul(half)}
}

// =============================================================================
// LEAVE TYPE - Per-tenant leave category configuration
// =============================================================================

// LeaveType configures one leave category for a tenant. Created and edited
// by tenant admins; the engine only reads it.
type LeaveType struct {
	TenantID TenantID
	Code     LeaveTypeCode
	Name     string

	// AnnualEntitlement is the full-year allocation in days.
	AnnualEntitlement Days

	// AccrualRatePerMonth is credited by the monthly accrual run.
	// Zero means the type does not accrue (e.g. unpaid leave).
	AccrualRatePerMonth Days

	CarryoverAllowed bool
	CarryoverCap     Days // only meaningful when CarryoverAllowed

	// RequiresJustification demands a justification reference at
	// submission time (e.g. a sick note).
	RequiresJustification bool

	// MaxConsecutiveDays caps a single request's span; zero means no cap.
	MaxConsecutiveDays int

	// AllowNegativeBalance permits the available balance to go below
	// zero on approval (typical for sick leave).
	AllowNegativeBalance bool

	Paid      bool
	CreatedAt time.Time
}

// DefaultLeaveTypes returns the catalog seeded for a new tenant.
func DefaultLeaveTypes(tenant TenantID) []LeaveType {
	return []LeaveType{
		{
			TenantID:            tenant,
			Code:                CodePaidLeave,
			Name:                "Paid leave",
			AnnualEntitlement:   DaysFromInt(25),
			AccrualRatePerMonth: DaysFromFloat(2.5),
			CarryoverAllowed:    true,
			CarryoverCap:        DaysFromInt(5),
			Paid:                true,
		},
		{
			TenantID:            tenant,
			Code:                CodeRTT,
			Name:                "RTT",
			AnnualEntitlement:   DaysFromInt(10),
			AccrualRatePerMonth: DaysFromFloat(1),
			CarryoverAllowed:    false,
			Paid:                true,
		},
		{
			TenantID:              tenant,
			Code:                  CodeSick,
			Name:                  "Sick leave",
			RequiresJustification: true,
			AllowNegativeBalance:  true,
			Paid:                  true,
		},
		{
			TenantID: tenant,
			Code:     CodeUnpaid,
			Name:     "Unpaid leave",
		},
	}
}

// =============================================================================
// EMPLOYEE
// =============================================================================

type Employee struct {
	TenantID TenantID
	ID       EmployeeID
	Name     string
	Email    string

	// TeamID groups employees under one manager for conflict detection.
	TeamID string

	// ContractStart/ContractEnd bound the period the employee accrues
	// for. A zero ContractEnd means an open-ended contract.
	ContractStart calendar.Date
	ContractEnd   calendar.Date

	Active    bool
	CreatedAt time.Time
}

// ActiveDuring reports whether the employee was under contract for any
// part of [from, to].
func (e Employee) ActiveDuring(from, to calendar.Date) bool {
	if !e.Active {
		return false
	}
	if e.ContractStart.After(to) {
		return false
	}
	if !e.ContractEnd.IsZero() && e.ContractEnd.Before(from) {
		return false
	}
	return true
}

// =============================================================================
// BALANCE ENTRY - The ledger row
// =============================================================================

// BalanceKey identifies one ledger row.
type BalanceKey struct {
	TenantID TenantID
	Employee EmployeeID
	Code     LeaveTypeCode
	Year     int
}

// BalanceEntry is the per (tenant, employee, leave type, year) running
// balance. Available is always derived, never stored.
type BalanceEntry struct {
	Key BalanceKey

	Accrued     Days
	Used        Days
	CarriedOver Days

	UpdatedAt time.Time
}

// Available returns accrued + carried_over - used.
func (b BalanceEntry) Available() Days {
	return b.Accrued.Add(b.CarriedOver).Sub(b.Used)
}

// =============================================================================
// REQUEST - Workflow subject
// =============================================================================

type RequestStatus string

const (
	StatusDraft     RequestStatus = "draft"
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusRejected  RequestStatus = "rejected"
	StatusCancelled RequestStatus = "cancelled"
)

// transitions is the fixed state table. Any move not listed is rejected
// with ErrInvalidTransition.
var transitions = map[RequestStatus][]RequestStatus{
	StatusDraft:    {StatusPending},
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusCancelled},
}

// CanTransition reports whether from -> to is in the state table.
func CanTransition(from, to RequestStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Decision is the outcome of a decide call.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

type Request struct {
	ID       RequestID
	TenantID TenantID
	Employee EmployeeID
	Code     LeaveTypeCode

	StartDate    calendar.Date
	EndDate      calendar.Date
	StartHalfDay bool
	EndHalfDay   bool

	// ComputedDays is fixed at submission from the calendar math.
	ComputedDays Days

	Status RequestStatus
	Reason string

	// JustificationRef points at an externally stored document.
	JustificationRef string

	CreatedAt time.Time
	DecidedAt time.Time
	DecidedBy string
}

// Overlaps reports whether the request's span intersects [start, end].
func (r Request) Overlaps(start, end calendar.Date) bool {
	return r.StartDate.BeforeOrEqual(end) && start.BeforeOrEqual(r.EndDate)
}

// =============================================================================
// TENANT
// =============================================================================

type Tenant struct {
	ID        TenantID
	Name      string
	CreatedAt time.Time
}
