/*
Errors for the leave package.

PURPOSE:
  Sentinel errors for control flow (errors.Is at the API boundary) and
  structured errors carrying the details handlers put in responses.

CONVENTIONS:
  - Structured errors wrap a sentinel via Unwrap()
  - IsClientError / IsNotFound drive HTTP status mapping in api/
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINELS
// =============================================================================

var (
	ErrTenantNotFound    = errors.New("tenant not found")
	ErrEmployeeNotFound  = errors.New("employee not found")
	ErrLeaveTypeNotFound = errors.New("leave type not found")
	ErrRequestNotFound   = errors.New("request not found")
	ErrBalanceNotFound   = errors.New("balance not found")

	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrDuplicatePeriod     = errors.New("accrual already applied for period")
	ErrDuplicateRollover   = errors.New("rollover already applied for year")

	// ErrCrossTenant flags an operation touching records of a different
	// tenant than the caller's scope. Always a caller bug, never user input.
	ErrCrossTenant = errors.New("cross-tenant access")

	ErrJustificationRequired   = errors.New("justification required for this leave type")
	ErrTooManyConsecutiveDays  = errors.New("request exceeds maximum consecutive days")
	ErrNotHalfDayGranular      = errors.New("day quantity must be a multiple of 0.5")
	ErrZeroDayRequest          = errors.New("request covers no working days")
	ErrLeaveTypeAlreadyExists  = errors.New("leave type already exists")
	ErrEmployeeAlreadyExists   = errors.New("employee already exists")
	ErrTenantAlreadyExists     = errors.New("tenant already exists")
	ErrNegativeAmount          = errors.New("amount must be positive")
	ErrInvalidLeaveType        = errors.New("invalid leave type definition")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InsufficientBalanceError reports exactly how short the balance is.
type InsufficientBalanceError struct {
	Key       BalanceKey
	Available Days
	Requested Days
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s/%s: available %s, requested %s",
		e.Key.Employee, e.Key.Code, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// Shortfall returns requested - available.
func (e *InsufficientBalanceError) Shortfall() Days {
	return e.Requested.Sub(e.Available)
}

// InvalidTransitionError reports a state-machine violation.
type InvalidTransitionError struct {
	RequestID RequestID
	From      RequestStatus
	To        RequestStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("request %s: cannot move from %s to %s", e.RequestID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// CrossTenantError reports which tenants collided.
type CrossTenantError struct {
	Scope  TenantID
	Record TenantID
}

func (e *CrossTenantError) Error() string {
	return fmt.Sprintf("cross-tenant access: scope %s, record belongs to %s", e.Scope, e.Record)
}

func (e *CrossTenantError) Unwrap() error { return ErrCrossTenant }

// =============================================================================
// CLASSIFICATION
// =============================================================================

// IsNotFound reports whether err is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTenantNotFound) ||
		errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrLeaveTypeNotFound) ||
		errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrBalanceNotFound)
}

// IsConflict reports whether err indicates a state conflict the caller
// can observe but not fix by changing input (409-class).
func IsConflict(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicatePeriod) ||
		errors.Is(err, ErrDuplicateRollover) ||
		errors.Is(err, ErrLeaveTypeAlreadyExists) ||
		errors.Is(err, ErrEmployeeAlreadyExists) ||
		errors.Is(err, ErrTenantAlreadyExists)
}

// IsClientError reports whether err stems from bad input (400-class).
func IsClientError(err error) bool {
	return errors.Is(err, ErrJustificationRequired) ||
		errors.Is(err, ErrTooManyConsecutiveDays) ||
		errors.Is(err, ErrNotHalfDayGranular) ||
		errors.Is(err, ErrZeroDayRequest) ||
		errors.Is(err, ErrNegativeAmount) ||
		errors.Is(err, ErrInvalidLeaveType)
}
