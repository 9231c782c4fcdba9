/*
Request workflow.

PURPOSE:
  Implements the request state machine: submit -> pending -> approved /
  rejected, approved -> cancelled. Approval is the only path that debits
  a balance; cancellation of an approved request restores it.

CONCURRENCY:
  Decide runs inside RequestStore.UpdateRequest, so two concurrent
  decisions on the same request serialize and the loser sees an
  InvalidTransitionError. The balance debit nests inside the request
  update, and the debit revalidates availability under the balance row
  lock, so two approvals draining one balance can never overdraw it.

SEE ALSO:
  - ledger.go: the debit/restore primitives
  - calendar:  duration computation
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loomhr/leave-engine/calendar"
	"github.com/loomhr/leave-engine/event"
)

// Workflow drives leave requests through their lifecycle.
type Workflow struct {
	catalog   CatalogStore
	employees EmployeeStore
	requests  RequestStore
	holidays  HolidayStore
	ledger    *Ledger
	publisher event.Publisher
	logger    *zap.Logger
}

func NewWorkflow(
	catalog CatalogStore,
	employees EmployeeStore,
	requests RequestStore,
	holidays HolidayStore,
	ledger *Ledger,
	publisher event.Publisher,
	logger *zap.Logger,
) *Workflow {
	return &Workflow{
		catalog:   catalog,
		employees: employees,
		requests:  requests,
		holidays:  holidays,
		ledger:    ledger,
		publisher: publisher,
		logger:    logger,
	}
}

// SubmitInput carries everything Submit needs. Dates are inclusive.
type SubmitInput struct {
	TenantID TenantID
	Employee EmployeeID
	Code     LeaveTypeCode

	StartDate    calendar.Date
	EndDate      calendar.Date
	StartHalfDay bool
	EndHalfDay   bool

	Reason           string
	JustificationRef string
}

// Submit validates a request, computes its duration and stores it as
// pending. The balance check here is advisory: the authoritative check
// happens at approval, inside the balance row lock.
func (w *Workflow) Submit(ctx context.Context, in SubmitInput) (Request, error) {
	emp, err := w.employees.GetEmployee(ctx, in.TenantID, in.Employee)
	if err != nil {
		return Request{}, err
	}
	lt, err := w.catalog.GetLeaveType(ctx, in.TenantID, in.Code)
	if err != nil {
		return Request{}, err
	}

	if lt.RequiresJustification && in.JustificationRef == "" {
		return Request{}, fmt.Errorf("%w: %s", ErrJustificationRequired, lt.Code)
	}
	if lt.MaxConsecutiveDays > 0 {
		span := in.StartDate.DaysUntil(in.EndDate) + 1
		if span > lt.MaxConsecutiveDays {
			return Request{}, fmt.Errorf("%w: span %d > max %d",
				ErrTooManyConsecutiveDays, span, lt.MaxConsecutiveDays)
		}
	}

	blackout, err := w.holidays.HolidaysForYear(ctx, in.TenantID, in.StartDate.Year())
	if err != nil {
		return Request{}, fmt.Errorf("load holidays: %w", err)
	}
	days, err := calendar.RequestDays(in.StartDate, in.EndDate, in.StartHalfDay, in.EndHalfDay, blackout)
	if err != nil {
		return Request{}, err
	}
	computed := DaysFromDecimal(days)
	if computed.IsZero() {
		return Request{}, ErrZeroDayRequest
	}

	// Advisory availability check. Rejecting obviously hopeless requests
	// early gives the submitter immediate feedback.
	if !lt.AllowNegativeBalance {
		key := BalanceKey{TenantID: in.TenantID, Employee: emp.ID, Code: lt.Code, Year: in.StartDate.Year()}
		available, err := w.ledger.Available(ctx, key)
		if err != nil {
			return Request{}, err
		}
		if available.LessThan(computed) {
			return Request{}, &InsufficientBalanceError{
				Key:       key,
				Available: available,
				Requested: computed,
			}
		}
	}

	req := Request{
		ID:               RequestID(uuid.NewString()),
		TenantID:         in.TenantID,
		Employee:         emp.ID,
		Code:             lt.Code,
		StartDate:        in.StartDate,
		EndDate:          in.EndDate,
		StartHalfDay:     in.StartHalfDay,
		EndHalfDay:       in.EndHalfDay,
		ComputedDays:     computed,
		Status:           StatusPending,
		Reason:           in.Reason,
		JustificationRef: in.JustificationRef,
		CreatedAt:        time.Now(),
	}
	if err := w.requests.CreateRequest(ctx, req); err != nil {
		return Request{}, fmt.Errorf("create request: %w", err)
	}

	w.logger.Info("request submitted",
		zap.String("tenant", string(req.TenantID)),
		zap.String("request", string(req.ID)),
		zap.String("employee", string(req.Employee)),
		zap.String("type", string(req.Code)),
		zap.String("days", req.ComputedDays.String()),
	)
	w.publisher.Publish(ctx, RequestSubmittedEvent{
		TenantID:  req.TenantID,
		RequestID: req.ID,
		Employee:  req.Employee,
		Code:      req.Code,
		Days:      req.ComputedDays,
	})
	return req, nil
}

// Decide approves or rejects a pending request. Approval debits the
// balance; if the debit fails the request stays pending.
func (w *Workflow) Decide(ctx context.Context, tenant TenantID, id RequestID, decision Decision, decidedBy, reason string) (Request, error) {
	target := StatusRejected
	if decision == DecisionApprove {
		target = StatusApproved
	}

	req, err := w.requests.UpdateRequest(ctx, tenant, id, func(r *Request) error {
		if r.TenantID != tenant {
			return &CrossTenantError{Scope: tenant, Record: r.TenantID}
		}
		if !CanTransition(r.Status, target) {
			return &InvalidTransitionError{RequestID: r.ID, From: r.Status, To: target}
		}

		if target == StatusApproved {
			lt, err := w.catalog.GetLeaveType(ctx, tenant, r.Code)
			if err != nil {
				return err
			}
			key := BalanceKey{TenantID: tenant, Employee: r.Employee, Code: r.Code, Year: r.StartDate.Year()}
			if _, err := w.ledger.Debit(ctx, key, r.ComputedDays, lt.AllowNegativeBalance); err != nil {
				return err
			}
		}

		r.Status = target
		r.DecidedAt = time.Now()
		r.DecidedBy = decidedBy
		if reason != "" {
			r.Reason = reason
		}
		return nil
	})
	if err != nil {
		return Request{}, err
	}

	w.logger.Info("request decided",
		zap.String("tenant", string(tenant)),
		zap.String("request", string(id)),
		zap.String("status", string(req.Status)),
		zap.String("decided_by", decidedBy),
	)
	switch req.Status {
	case StatusApproved:
		w.publisher.Publish(ctx, RequestApprovedEvent{
			TenantID:  req.TenantID,
			RequestID: req.ID,
			Employee:  req.Employee,
			Code:      req.Code,
			Days:      req.ComputedDays,
			DecidedBy: decidedBy,
		})
	case StatusRejected:
		w.publisher.Publish(ctx, RequestRejectedEvent{
			TenantID:  req.TenantID,
			RequestID: req.ID,
			Employee:  req.Employee,
			Reason:    req.Reason,
			DecidedBy: decidedBy,
		})
	}
	return req, nil
}

// Cancel cancels an approved request and restores its days, provided the
// leave has not started yet as of the given date. Pending requests are
// rejected instead of cancelled; that keeps a single balance-touching
// cancellation path.
func (w *Workflow) Cancel(ctx context.Context, tenant TenantID, id RequestID, at calendar.Date) (Request, error) {
	req, err := w.requests.UpdateRequest(ctx, tenant, id, func(r *Request) error {
		if r.TenantID != tenant {
			return &CrossTenantError{Scope: tenant, Record: r.TenantID}
		}
		if !CanTransition(r.Status, StatusCancelled) {
			return &InvalidTransitionError{RequestID: r.ID, From: r.Status, To: StatusCancelled}
		}
		// Leave that has already started cannot be unwound.
		if !r.StartDate.After(at) {
			return &InvalidTransitionError{RequestID: r.ID, From: r.Status, To: StatusCancelled}
		}

		key := BalanceKey{TenantID: tenant, Employee: r.Employee, Code: r.Code, Year: r.StartDate.Year()}
		if _, err := w.ledger.Restore(ctx, key, r.ComputedDays); err != nil {
			return err
		}

		r.Status = StatusCancelled
		r.DecidedAt = time.Now()
		return nil
	})
	if err != nil {
		return Request{}, err
	}

	w.logger.Info("request cancelled",
		zap.String("tenant", string(tenant)),
		zap.String("request", string(id)),
		zap.String("restored", req.ComputedDays.String()),
	)
	w.publisher.Publish(ctx, RequestCancelledEvent{
		TenantID:     req.TenantID,
		RequestID:    req.ID,
		Employee:     req.Employee,
		RestoredDays: req.ComputedDays,
	})
	return req, nil
}

// Get returns a request, enforcing tenant scope.
func (w *Workflow) Get(ctx context.Context, tenant TenantID, id RequestID) (Request, error) {
	return w.requests.GetRequest(ctx, tenant, id)
}

// List returns the tenant's requests matching the filter.
func (w *Workflow) List(ctx context.Context, tenant TenantID, filter RequestFilter) ([]Request, error) {
	return w.requests.ListRequests(ctx, tenant, filter)
}

// =============================================================================
// CONFLICT DETECTION
// =============================================================================

type ConflictSeverity string

const (
	SeverityLow    ConflictSeverity = "low"
	SeverityMedium ConflictSeverity = "medium"
	SeverityHigh   ConflictSeverity = "high"
)

// Conflict describes one teammate whose approved or pending leave
// overlaps the probed range.
type Conflict struct {
	Request  Request
	Employee Employee
}

// ConflictReport summarizes team availability over a range.
type ConflictReport struct {
	TeamSize  int
	Conflicts []Conflict
	Severity  ConflictSeverity
}

// CheckConflicts finds teammates of the given employee who are away
// during [start, end]. Severity scales with the share of the team away:
// under a third is low, under two thirds medium, above that high.
func (w *Workflow) CheckConflicts(ctx context.Context, tenant TenantID, employee EmployeeID, start, end calendar.Date) (ConflictReport, error) {
	emp, err := w.employees.GetEmployee(ctx, tenant, employee)
	if err != nil {
		return ConflictReport{}, err
	}
	if end.Before(start) {
		return ConflictReport{}, &calendar.RangeError{Start: start, End: end}
	}

	team, err := w.employees.ListTeam(ctx, tenant, emp.TeamID)
	if err != nil {
		return ConflictReport{}, err
	}
	byID := make(map[EmployeeID]Employee, len(team))
	var teammates []EmployeeID
	for _, member := range team {
		if member.ID == employee {
			continue
		}
		byID[member.ID] = member
		teammates = append(teammates, member.ID)
	}

	report := ConflictReport{TeamSize: len(team), Severity: SeverityLow}
	if len(teammates) == 0 {
		return report, nil
	}

	overlapping, err := w.requests.ListOverlapping(ctx, tenant, teammates, start, end,
		[]RequestStatus{StatusPending, StatusApproved})
	if err != nil {
		return ConflictReport{}, err
	}

	away := make(map[EmployeeID]struct{})
	for _, r := range overlapping {
		report.Conflicts = append(report.Conflicts, Conflict{Request: r, Employee: byID[r.Employee]})
		away[r.Employee] = struct{}{}
	}

	// Share of the team (requester included in the denominator) away at
	// the same time.
	share := float64(len(away)+1) / float64(len(team))
	switch {
	case share > 2.0/3.0:
		report.Severity = SeverityHigh
	case share > 1.0/3.0:
		report.Severity = SeverityMedium
	}
	return report, nil
}
