/*
Monthly accrual engine.

PURPOSE:
  Credits each active employee's balances with the leave type's monthly
  accrual rate for a given period. Safe to re-run: a mark per
  (employee, type, period) makes each grant exactly-once.

PRORATION:
  Employees hired or leaving mid-month accrue rate * covered/total
  calendar days, rounded DOWN to the nearest half day. Covering the
  whole month grants the full rate with no rounding.
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/loomhr/leave-engine/calendar"
	"github.com/loomhr/leave-engine/event"
)

// Period identifies one accrual month.
type Period struct {
	Year  int
	Month time.Month
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// PeriodOf returns the period containing a date.
func PeriodOf(d calendar.Date) Period {
	return Period{Year: d.Year(), Month: d.Month()}
}

// Previous returns the period before p.
func (p Period) Previous() Period {
	d := calendar.StartOfMonth(p.Year, p.Month).AddMonths(-1)
	return PeriodOf(d)
}

func (p Period) Start() calendar.Date { return calendar.StartOfMonth(p.Year, p.Month) }
func (p Period) End() calendar.Date   { return calendar.EndOfMonth(p.Year, p.Month) }

// AccrualEngine applies monthly grants across a tenant.
type AccrualEngine struct {
	tenants   TenantStore
	catalog   CatalogStore
	employees EmployeeStore
	marks     AccrualMarkStore
	ledger    *Ledger
	publisher event.Publisher
	logger    *zap.Logger
}

func NewAccrualEngine(
	tenants TenantStore,
	catalog CatalogStore,
	employees EmployeeStore,
	marks AccrualMarkStore,
	ledger *Ledger,
	publisher event.Publisher,
	logger *zap.Logger,
) *AccrualEngine {
	return &AccrualEngine{
		tenants:   tenants,
		catalog:   catalog,
		employees: employees,
		marks:     marks,
		ledger:    ledger,
		publisher: publisher,
		logger:    logger,
	}
}

// AccrualGrant records one applied grant in a report.
type AccrualGrant struct {
	Employee EmployeeID
	Code     LeaveTypeCode
	Amount   Days
	Prorated bool
}

// AccrualFailure records one grant that could not be applied. The run
// continues past failures; re-running picks up what was missed.
type AccrualFailure struct {
	Employee EmployeeID
	Code     LeaveTypeCode
	Err      string
}

// AccrualReport summarizes one tenant's run for one period.
type AccrualReport struct {
	TenantID TenantID
	Period   Period
	Granted  []AccrualGrant
	Skipped  int // already-marked grants
	Failures []AccrualFailure
}

// RunForTenant applies the period's grants for one tenant.
func (e *AccrualEngine) RunForTenant(ctx context.Context, tenant TenantID, period Period) (AccrualReport, error) {
	report := AccrualReport{TenantID: tenant, Period: period}

	types, err := e.catalog.ListLeaveTypes(ctx, tenant)
	if err != nil {
		return report, fmt.Errorf("list leave types: %w", err)
	}
	emps, err := e.employees.ListEmployees(ctx, tenant)
	if err != nil {
		return report, fmt.Errorf("list employees: %w", err)
	}

	for _, emp := range emps {
		if !emp.ActiveDuring(period.Start(), period.End()) {
			continue
		}
		for _, lt := range types {
			if lt.AccrualRatePerMonth.IsZero() {
				continue
			}

			amount, prorated := prorate(lt.AccrualRatePerMonth, emp, period)
			if amount.IsZero() {
				continue
			}

			key := BalanceKey{TenantID: tenant, Employee: emp.ID, Code: lt.Code, Year: period.Year}
			already, err := e.marks.MarkAccrual(ctx, key, period)
			if err != nil {
				report.Failures = append(report.Failures, AccrualFailure{
					Employee: emp.ID, Code: lt.Code, Err: err.Error(),
				})
				continue
			}
			if already {
				report.Skipped++
				continue
			}

			if _, err := e.ledger.Credit(ctx, key, amount); err != nil {
				// Reopen the mark so a re-run retries the lost grant.
				if unmarkErr := e.marks.UnmarkAccrual(ctx, key, period); unmarkErr != nil {
					e.logger.Error("failed to unmark accrual after credit failure",
						zap.String("employee", string(emp.ID)),
						zap.String("type", string(lt.Code)),
						zap.String("period", period.String()),
						zap.Error(unmarkErr),
					)
				}
				report.Failures = append(report.Failures, AccrualFailure{
					Employee: emp.ID, Code: lt.Code, Err: err.Error(),
				})
				continue
			}

			report.Granted = append(report.Granted, AccrualGrant{
				Employee: emp.ID, Code: lt.Code, Amount: amount, Prorated: prorated,
			})
			e.publisher.Publish(ctx, AccrualAppliedEvent{
				TenantID: tenant, Employee: emp.ID, Code: lt.Code,
				Period: period, Amount: amount,
			})
		}
	}

	e.logger.Info("accrual run complete",
		zap.String("tenant", string(tenant)),
		zap.String("period", period.String()),
		zap.Int("granted", len(report.Granted)),
		zap.Int("skipped", report.Skipped),
		zap.Int("failures", len(report.Failures)),
	)
	return report, nil
}

// RunAll applies the period's grants for every tenant.
func (e *AccrualEngine) RunAll(ctx context.Context, period Period) ([]AccrualReport, error) {
	tenants, err := e.tenants.ListTenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	reports := make([]AccrualReport, 0, len(tenants))
	for _, t := range tenants {
		report, err := e.RunForTenant(ctx, t.ID, period)
		if err != nil {
			// A tenant-level failure must not block other tenants.
			e.logger.Error("accrual run failed for tenant",
				zap.String("tenant", string(t.ID)),
				zap.Error(err),
			)
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// prorate scales the monthly rate by the share of the month the employee
// was under contract, rounding down to the nearest half day. A full month
// returns the rate untouched.
func prorate(rate Days, emp Employee, period Period) (Days, bool) {
	from := period.Start()
	to := period.End()

	covered := from
	if emp.ContractStart.After(from) {
		covered = emp.ContractStart
	}
	until := to
	if !emp.ContractEnd.IsZero() && emp.ContractEnd.Before(to) {
		until = emp.ContractEnd
	}
	if until.Before(covered) {
		return ZeroDays(), false
	}
	if covered.Equal(from) && until.Equal(to) {
		return rate, false
	}

	total := calendar.DaysInMonth(period.Year, period.Month)
	days := covered.DaysUntil(until) + 1
	scaled := rate.Value.Mul(decimal.NewFromInt(int64(days))).Div(decimal.NewFromInt(int64(total)))
	return DaysFromDecimal(scaled).FloorToHalfDay(), true
}
