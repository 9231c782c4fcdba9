package leave_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loomhr/leave-engine/leave"
)

func balance2025(t *testing.T, e *env, emp leave.EmployeeID, code leave.LeaveTypeCode) leave.BalanceEntry {
	t.Helper()
	key := leave.BalanceKey{TenantID: tenantA, Employee: emp, Code: code, Year: 2025}
	entry, err := e.store.GetBalance(context.Background(), key)
	require.NoError(t, err)
	return entry
}

func TestRollover_CarriesUpToCapAndReportsLost(t *testing.T) {
	e := newEnv(t)
	e.seedTenant(t, tenantA, "alice")
	ctx := context.Background()

	// 8 days left on CP at year end; cap is 5, so 5 carry and 3 are lost.
	e.credit(t, tenantA, "alice", 2024, 8)

	report, err := e.rollover.RunForTenant(ctx, tenantA, 2024)
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	entry := report.Entries[0]
	assert.Equal(t, leave.CodePaidLeave, entry.Code)
	assert.True(t, entry.Carried.Equal(leave.DaysFromInt(5)), "got %s", entry.Carried)
	assert.True(t, entry.Lost.Equal(leave.DaysFromInt(3)), "got %s", entry.Lost)

	next := balance2025(t, e, "alice", leave.CodePaidLeave)
	assert.True(t, next.CarriedOver.Equal(leave.DaysFromInt(5)))
	assert.True(t, next.Accrued.IsZero())
	assert.Len(t, e.events.Named("rollover.applied"), 1)
}

func TestRollover_UnderCapCarriesEverything(t *testing.T) {
	e := newEnv(t)
	e.seedTenant(t, tenantA, "alice")

	e.credit(t, tenantA, "alice", 2024, 3)

	report, err := e.rollover.RunForTenant(context.Background(), tenantA, 2024)
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	assert.True(t, report.Entries[0].Carried.Equal(leave.DaysFromInt(3)))
	assert.True(t, report.Entries[0].Lost.IsZero())
}

func TestRollover_NonCarryoverTypeLosesEverything(t *testing.T) {
	e := newEnv(t)
	e.seedTenant(t, tenantA, "alice")
	ctx := context.Background()

	// RTT does not carry over.
	key := leave.BalanceKey{TenantID: tenantA, Employee: "alice", Code: leave.CodeRTT, Year: 2024}
	_, err := e.ledger.Credit(ctx, key, leave.DaysFromInt(4))
	require.NoError(t, err)

	report, err := e.rollover.RunForTenant(ctx, tenantA, 2024)
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	assert.True(t, report.Entries[0].Carried.IsZero())
	assert.True(t, report.Entries[0].Lost.Equal(leave.DaysFromInt(4)))

	// No 2025 row gets created for a zero carryover.
	_, err = e.store.GetBalance(ctx, leave.BalanceKey{
		TenantID: tenantA, Employee: "alice", Code: leave.CodeRTT, Year: 2025,
	})
	assert.ErrorIs(t, err, leave.ErrBalanceNotFound)
}

func TestRollover_RerunIsIdempotent(t *testing.T) {
	e := newEnv(t)
	e.seedTenant(t, tenantA, "alice")
	ctx := context.Background()

	e.credit(t, tenantA, "alice", 2024, 8)

	_, err := e.rollover.RunForTenant(ctx, tenantA, 2024)
	require.NoError(t, err)
	second, err := e.rollover.RunForTenant(ctx, tenantA, 2024)
	require.NoError(t, err)
	assert.Empty(t, second.Entries)
	assert.Equal(t, 1, second.Skipped)

	next := balance2025(t, e, "alice", leave.CodePaidLeave)
	assert.True(t, next.CarriedOver.Equal(leave.DaysFromInt(5)), "double carryover: got %s", next.CarriedOver)
}

func TestRollover_FailedCarryoverIsRetriable(t *testing.T) {
	e := newEnv(t)
	e.seedTenant(t, tenantA, "alice")
	ctx := context.Background()

	e.credit(t, tenantA, "alice", 2024, 8)

	flaky := &failingBalances{Store: e.store, fail: true}
	logger := zap.NewNop()
	svc := leave.NewRolloverService(e.store, e.store, e.store, e.store, e.store,
		leave.NewLedger(flaky, logger), e.events, logger)

	report, err := svc.RunForTenant(ctx, tenantA, 2024)
	require.NoError(t, err)
	assert.Empty(t, report.Entries)
	require.Len(t, report.Failures, 1)

	// The failed carryover is not marked; the next run picks it up.
	flaky.fail = false
	report, err = svc.RunForTenant(ctx, tenantA, 2024)
	require.NoError(t, err)
	assert.Zero(t, report.Skipped)
	require.Len(t, report.Entries, 1)
	assert.True(t, report.Entries[0].Carried.Equal(leave.DaysFromInt(5)), "got %s", report.Entries[0].Carried)

	next := balance2025(t, e, "alice", leave.CodePaidLeave)
	assert.True(t, next.CarriedOver.Equal(leave.DaysFromInt(5)))
}

func TestRollover_NegativeOrZeroRemainderSkipped(t *testing.T) {
	e := newEnv(t)
	e.seedTenant(t, tenantA, "alice")
	ctx := context.Background()

	// Fully used balance: nothing remains, nothing rolls.
	key := e.credit(t, tenantA, "alice", 2024, 5)
	_, err := e.ledger.Debit(ctx, key, leave.DaysFromInt(5), false)
	require.NoError(t, err)

	report, err := e.rollover.RunForTenant(ctx, tenantA, 2024)
	require.NoError(t, err)
	assert.Empty(t, report.Entries)
}

func TestRollover_CarriedDaysSpendableNextYear(t *testing.T) {
	e := newEnv(t)
	e.seedTenant(t, tenantA, "alice")
	ctx := context.Background()

	e.credit(t, tenantA, "alice", 2024, 4)
	_, err := e.rollover.RunForTenant(ctx, tenantA, 2024)
	require.NoError(t, err)

	key2025 := leave.BalanceKey{TenantID: tenantA, Employee: "alice", Code: leave.CodePaidLeave, Year: 2025}
	available, err := e.ledger.Available(ctx, key2025)
	require.NoError(t, err)
	assert.True(t, available.Equal(leave.DaysFromInt(4)))

	_, err = e.ledger.Debit(ctx, key2025, leave.DaysFromInt(3), false)
	require.NoError(t, err)
	available, err = e.ledger.Available(ctx, key2025)
	require.NoError(t, err)
	assert.True(t, available.Equal(leave.DaysFromInt(1)))
}
