package leave_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loomhr/leave-engine/calendar"
	"github.com/loomhr/leave-engine/leave"
	"github.com/loomhr/leave-engine/store/memory"
)

func march2024() leave.Period {
	return leave.Period{Year: 2024, Month: time.March}
}

func TestAccrual_GrantsMonthlyRates(t *testing.T) {
	e := newEnv(t)
	e.seedTenant(t, tenantA, "alice")
	ctx := context.Background()

	report, err := e.accrual.RunForTenant(ctx, tenantA, march2024())
	require.NoError(t, err)

	// CP accrues 2.5/month, RTT 1/month; sick and unpaid do not accrue.
	require.Len(t, report.Granted, 2)
	assert.Empty(t, report.Failures)

	cp, err := e.ledger.Available(ctx, leave.BalanceKey{
		TenantID: tenantA, Employee: "alice", Code: leave.CodePaidLeave, Year: 2024,
	})
	require.NoError(t, err)
	assert.True(t, cp.Equal(leave.DaysFromFloat(2.5)), "got %s", cp)

	rtt, err := e.ledger.Available(ctx, leave.BalanceKey{
		TenantID: tenantA, Employee: "alice", Code: leave.CodeRTT, Year: 2024,
	})
	require.NoError(t, err)
	assert.True(t, rtt.Equal(leave.DaysFromInt(1)), "got %s", rtt)
}

func TestAccrual_RerunIsIdempotent(t *testing.T) {
	e := newEnv(t)
	e.seedTenant(t, tenantA, "alice")
	ctx := context.Background()

	first, err := e.accrual.RunForTenant(ctx, tenantA, march2024())
	require.NoError(t, err)
	require.Len(t, first.Granted, 2)

	second, err := e.accrual.RunForTenant(ctx, tenantA, march2024())
	require.NoError(t, err)
	assert.Empty(t, second.Granted)
	assert.Equal(t, 2, second.Skipped)

	cp, err := e.ledger.Available(ctx, leave.BalanceKey{
		TenantID: tenantA, Employee: "alice", Code: leave.CodePaidLeave, Year: 2024,
	})
	require.NoError(t, err)
	assert.True(t, cp.Equal(leave.DaysFromFloat(2.5)), "double grant: got %s", cp)
}

func TestAccrual_ConsecutiveMonthsAccumulate(t *testing.T) {
	e := newEnv(t)
	e.seedTenant(t, tenantA, "alice")
	ctx := context.Background()

	for month := time.January; month <= time.April; month++ {
		_, err := e.accrual.RunForTenant(ctx, tenantA, leave.Period{Year: 2024, Month: month})
		require.NoError(t, err)
	}

	cp, err := e.ledger.Available(ctx, leave.BalanceKey{
		TenantID: tenantA, Employee: "alice", Code: leave.CodePaidLeave, Year: 2024,
	})
	require.NoError(t, err)
	assert.True(t, cp.Equal(leave.DaysFromInt(10)), "4 months at 2.5: got %s", cp)
}

func TestAccrual_MidMonthHireProratedAndFloored(t *testing.T) {
	e := newEnv(t)
	e.seedTenant(t, tenantA, "alice")
	ctx := context.Background()

	// Hired March 16: covers 16 of 31 days. 2.5 * 16/31 = 1.29..., floored
	// to 1; RTT 1 * 16/31 = 0.516..., floored to 0.5.
	_, err := e.dir.CreateEmployee(ctx, leave.Employee{
		TenantID:      tenantA,
		ID:            "newhire",
		TeamID:        "team-1",
		ContractStart: calendar.NewDate(2024, time.March, 16),
	})
	require.NoError(t, err)

	report, err := e.accrual.RunForTenant(ctx, tenantA, march2024())
	require.NoError(t, err)

	var grant leave.AccrualGrant
	for _, g := range report.Granted {
		if g.Employee == "newhire" && g.Code == leave.CodePaidLeave {
			grant = g
		}
	}
	require.NotEmpty(t, grant.Employee, "newhire CP grant missing")
	assert.True(t, grant.Prorated)
	assert.True(t, grant.Amount.Equal(leave.DaysFromInt(1)), "got %s", grant.Amount)

	rtt, err := e.ledger.Available(ctx, leave.BalanceKey{
		TenantID: tenantA, Employee: "newhire", Code: leave.CodeRTT, Year: 2024,
	})
	require.NoError(t, err)
	assert.True(t, rtt.Equal(leave.DaysFromFloat(0.5)), "got %s", rtt)
}

func TestAccrual_EmployeeOutsideContractSkipped(t *testing.T) {
	e := newEnv(t)
	e.seedTenant(t, tenantA, "alice")
	ctx := context.Background()

	// Contract ended in February; March accrues nothing.
	_, err := e.dir.CreateEmployee(ctx, leave.Employee{
		TenantID:      tenantA,
		ID:            "departed",
		TeamID:        "team-1",
		ContractStart: calendar.NewDate(2023, time.January, 1),
		ContractEnd:   calendar.NewDate(2024, time.February, 15),
	})
	require.NoError(t, err)

	report, err := e.accrual.RunForTenant(ctx, tenantA, march2024())
	require.NoError(t, err)
	for _, g := range report.Granted {
		assert.NotEqual(t, leave.EmployeeID("departed"), g.Employee)
	}
}

// failingBalances wraps the memory store and fails writes on demand,
// simulating a storage outage mid-run.
type failingBalances struct {
	*memory.Store
	fail bool
}

func (f *failingBalances) UpdateBalance(ctx context.Context, key leave.BalanceKey, fn func(*leave.BalanceEntry) error) (leave.BalanceEntry, error) {
	if f.fail {
		return leave.BalanceEntry{}, errors.New("balance write failed")
	}
	return f.Store.UpdateBalance(ctx, key, fn)
}

func TestAccrual_FailedCreditIsRetriable(t *testing.T) {
	e := newEnv(t)
	e.seedTenant(t, tenantA, "alice")
	ctx := context.Background()

	flaky := &failingBalances{Store: e.store, fail: true}
	logger := zap.NewNop()
	engine := leave.NewAccrualEngine(e.store, e.store, e.store, e.store,
		leave.NewLedger(flaky, logger), e.events, logger)

	// Every credit fails; the run reports the failures without granting.
	report, err := engine.RunForTenant(ctx, tenantA, march2024())
	require.NoError(t, err)
	assert.Empty(t, report.Granted)
	require.Len(t, report.Failures, 2)

	// The failed grants must not be marked as applied: the next run
	// retries them instead of skipping.
	flaky.fail = false
	report, err = engine.RunForTenant(ctx, tenantA, march2024())
	require.NoError(t, err)
	assert.Zero(t, report.Skipped)
	require.Len(t, report.Granted, 2)

	cp, err := e.ledger.Available(ctx, leave.BalanceKey{
		TenantID: tenantA, Employee: "alice", Code: leave.CodePaidLeave, Year: 2024,
	})
	require.NoError(t, err)
	assert.True(t, cp.Equal(leave.DaysFromFloat(2.5)), "got %s", cp)
}

func TestAccrual_RunAllCoversEveryTenant(t *testing.T) {
	e := newEnv(t)
	e.seedTenant(t, tenantA, "alice")
	e.seedTenant(t, tenantB, "bob")
	ctx := context.Background()

	reports, err := e.accrual.RunAll(ctx, march2024())
	require.NoError(t, err)
	require.Len(t, reports, 2)

	for _, emp := range []struct {
		tenant leave.TenantID
		id     leave.EmployeeID
	}{{tenantA, "alice"}, {tenantB, "bob"}} {
		cp, err := e.ledger.Available(ctx, leave.BalanceKey{
			TenantID: emp.tenant, Employee: emp.id, Code: leave.CodePaidLeave, Year: 2024,
		})
		require.NoError(t, err)
		assert.True(t, cp.Equal(leave.DaysFromFloat(2.5)))
	}
}

func TestPeriod_Previous(t *testing.T) {
	p := leave.Period{Year: 2024, Month: time.January}
	assert.Equal(t, leave.Period{Year: 2023, Month: time.December}, p.Previous())
	assert.Equal(t, "2024-01", p.String())
}
