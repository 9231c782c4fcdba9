/*
Year rollover service.

PURPOSE:
  At year end, moves each balance's remaining days into the next year's
  CarriedOver column, capped by the leave type's carryover policy. Days
  above the cap (or on non-carryover types) are lost and reported.

IDEMPOTENCY:
  A mark per (employee, type, target year) makes the carryover
  exactly-once. Balances touched after a run keep their history: the
  source year's row is never mutated by rollover.
*/
package leave

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/loomhr/leave-engine/event"
)

// RolloverService carries year-end balances forward.
type RolloverService struct {
	tenants   TenantStore
	catalog   CatalogStore
	employees EmployeeStore
	balances  BalanceStore
	marks     AccrualMarkStore
	ledger    *Ledger
	publisher event.Publisher
	logger    *zap.Logger
}

func NewRolloverService(
	tenants TenantStore,
	catalog CatalogStore,
	employees EmployeeStore,
	balances BalanceStore,
	marks AccrualMarkStore,
	ledger *Ledger,
	publisher event.Publisher,
	logger *zap.Logger,
) *RolloverService {
	return &RolloverService{
		tenants:   tenants,
		catalog:   catalog,
		employees: employees,
		balances:  balances,
		marks:     marks,
		ledger:    ledger,
		publisher: publisher,
		logger:    logger,
	}
}

// RolloverEntry records one employee/type carryover in a report.
type RolloverEntry struct {
	Employee EmployeeID
	Code     LeaveTypeCode
	Carried  Days
	Lost     Days
}

// RolloverFailure records one carryover that could not be applied.
type RolloverFailure struct {
	Employee EmployeeID
	Code     LeaveTypeCode
	Err      string
}

// RolloverReport summarizes one tenant's rollover from fromYear into
// fromYear+1.
type RolloverReport struct {
	TenantID TenantID
	FromYear int
	Entries  []RolloverEntry
	Skipped  int
	Failures []RolloverFailure
}

// RunForTenant rolls every employee's fromYear balances into the next
// year for one tenant.
func (s *RolloverService) RunForTenant(ctx context.Context, tenant TenantID, fromYear int) (RolloverReport, error) {
	report := RolloverReport{TenantID: tenant, FromYear: fromYear}
	toYear := fromYear + 1

	types, err := s.catalog.ListLeaveTypes(ctx, tenant)
	if err != nil {
		return report, fmt.Errorf("list leave types: %w", err)
	}
	typeByCode := make(map[LeaveTypeCode]LeaveType, len(types))
	for _, lt := range types {
		typeByCode[lt.Code] = lt
	}

	emps, err := s.employees.ListEmployees(ctx, tenant)
	if err != nil {
		return report, fmt.Errorf("list employees: %w", err)
	}

	for _, emp := range emps {
		entries, err := s.balances.ListBalances(ctx, tenant, emp.ID, fromYear)
		if err != nil {
			report.Failures = append(report.Failures, RolloverFailure{
				Employee: emp.ID, Err: err.Error(),
			})
			continue
		}

		for _, entry := range entries {
			lt, ok := typeByCode[entry.Key.Code]
			if !ok {
				// Type deleted since the balance was created; nothing to
				// carry under an unknown policy.
				continue
			}

			remaining := entry.Available()
			if remaining.IsNegative() || remaining.IsZero() {
				continue
			}

			carried := ZeroDays()
			if lt.CarryoverAllowed {
				carried = remaining.Min(lt.CarryoverCap)
			}
			lost := remaining.Sub(carried)

			targetKey := BalanceKey{TenantID: tenant, Employee: emp.ID, Code: entry.Key.Code, Year: toYear}
			already, err := s.marks.MarkRollover(ctx, targetKey, toYear)
			if err != nil {
				report.Failures = append(report.Failures, RolloverFailure{
					Employee: emp.ID, Code: entry.Key.Code, Err: err.Error(),
				})
				continue
			}
			if already {
				report.Skipped++
				continue
			}

			if carried.IsPositive() {
				if _, err := s.ledger.CreditCarryover(ctx, targetKey, carried); err != nil {
					// Reopen the mark so a re-run retries the carryover.
					if unmarkErr := s.marks.UnmarkRollover(ctx, targetKey, toYear); unmarkErr != nil {
						s.logger.Error("failed to unmark rollover after credit failure",
							zap.String("employee", string(emp.ID)),
							zap.String("type", string(entry.Key.Code)),
							zap.Int("to_year", toYear),
							zap.Error(unmarkErr),
						)
					}
					report.Failures = append(report.Failures, RolloverFailure{
						Employee: emp.ID, Code: entry.Key.Code, Err: err.Error(),
					})
					continue
				}
			}

			report.Entries = append(report.Entries, RolloverEntry{
				Employee: emp.ID, Code: entry.Key.Code, Carried: carried, Lost: lost,
			})
			s.publisher.Publish(ctx, RolloverAppliedEvent{
				TenantID: tenant, Employee: emp.ID, Code: entry.Key.Code,
				FromYear: fromYear, ToYear: toYear, Carried: carried, Lost: lost,
			})
		}
	}

	s.logger.Info("rollover run complete",
		zap.String("tenant", string(tenant)),
		zap.Int("from_year", fromYear),
		zap.Int("entries", len(report.Entries)),
		zap.Int("skipped", report.Skipped),
		zap.Int("failures", len(report.Failures)),
	)
	return report, nil
}

// RunAll rolls fromYear balances forward for every tenant.
func (s *RolloverService) RunAll(ctx context.Context, fromYear int) ([]RolloverReport, error) {
	tenants, err := s.tenants.ListTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	reports := make([]RolloverReport, 0, len(tenants))
	for _, t := range tenants {
		report, err := s.RunForTenant(ctx, t.ID, fromYear)
		if err != nil {
			s.logger.Error("rollover run failed for tenant",
				zap.String("tenant", string(t.ID)),
				zap.Error(err),
			)
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}
