package trial_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loomhr/leave-engine/calendar"
	"github.com/loomhr/leave-engine/event"
	"github.com/loomhr/leave-engine/leave"
	"github.com/loomhr/leave-engine/store/memory"
	"github.com/loomhr/leave-engine/trial"
)

const acme = leave.TenantID("acme")

func newManager(t *testing.T) (*trial.Manager, *event.Recorder) {
	t.Helper()
	events := event.NewRecorder()
	m := trial.NewManager(memory.NewTrialStore(), 14, events, zap.NewNop())
	return m, events
}

func startTrial(t *testing.T, m *trial.Manager) trial.Account {
	t.Helper()
	a, err := m.Start(context.Background(), acme, calendar.NewDate(2024, time.January, 1))
	require.NoError(t, err)
	return a
}

func TestStart_FourteenDayTrial(t *testing.T) {
	m, _ := newManager(t)
	a := startTrial(t, m)

	assert.Equal(t, trial.StateTrialing, a.State)
	assert.Equal(t, calendar.NewDate(2024, time.January, 15), a.TrialEnd)

	_, err := m.Start(context.Background(), acme, calendar.NewDate(2024, time.February, 1))
	assert.ErrorIs(t, err, trial.ErrAlreadyStarted)
}

func TestTick_RemindersFireAtOffsets(t *testing.T) {
	m, events := newManager(t)
	startTrial(t, m)
	ctx := context.Background()

	// Trial ends Jan 15: reminders on the 8th (D-7), 12th (D-3),
	// 14th (D-1) and 15th (D0).
	for _, tc := range []struct {
		day       int
		remaining int
	}{{8, 7}, {12, 3}, {14, 1}, {15, 0}} {
		report, err := m.Tick(ctx, calendar.NewDate(2024, time.January, tc.day))
		require.NoError(t, err)
		assert.Equal(t, 1, report.Reminders, "day %d", tc.day)
		assert.Equal(t, 0, report.Expired)
	}

	sent := events.Named("trial.reminder_sent")
	require.Len(t, sent, 4)
	assert.Equal(t, 7, sent[0].(trial.ReminderSentEvent).DaysRemaining)
	assert.Equal(t, 0, sent[3].(trial.ReminderSentEvent).DaysRemaining)
}

func TestTick_ReminderFiresOnlyOncePerOffset(t *testing.T) {
	m, events := newManager(t)
	startTrial(t, m)
	ctx := context.Background()

	day := calendar.NewDate(2024, time.January, 8)
	for i := 0; i < 2; i++ {
		_, err := m.Tick(ctx, day)
		require.NoError(t, err)
	}
	assert.Len(t, events.Named("trial.reminder_sent"), 1)
}

func TestTick_NonReminderDaysAreQuiet(t *testing.T) {
	m, events := newManager(t)
	startTrial(t, m)

	report, err := m.Tick(context.Background(), calendar.NewDate(2024, time.January, 10)) // D-5
	require.NoError(t, err)
	assert.Equal(t, 0, report.Reminders)
	assert.Empty(t, events.Events())
}

func TestTick_MissedOffsetsDoNotFireLate(t *testing.T) {
	// The scheduler was down over D-7 and D-3; the next tick lands on
	// D-2, which matches no offset, so nothing fires.
	m, events := newManager(t)
	startTrial(t, m)

	report, err := m.Tick(context.Background(), calendar.NewDate(2024, time.January, 13))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Reminders)
	assert.Empty(t, events.Named("trial.reminder_sent"))
}

func TestTick_ExpiresPastEnd(t *testing.T) {
	m, events := newManager(t)
	startTrial(t, m)
	ctx := context.Background()

	// The end date itself is still trialing.
	report, err := m.Tick(ctx, calendar.NewDate(2024, time.January, 15))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Expired)

	report, err = m.Tick(ctx, calendar.NewDate(2024, time.January, 16))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Expired)

	a, err := m.Get(ctx, acme)
	require.NoError(t, err)
	assert.Equal(t, trial.StateExpired, a.State)
	assert.Len(t, events.Named("trial.expired"), 1)

	// A later tick does not expire it again.
	report, err = m.Tick(ctx, calendar.NewDate(2024, time.January, 17))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Expired)
}

func TestConvert_StopsRemindersAndExpiry(t *testing.T) {
	m, events := newManager(t)
	startTrial(t, m)
	ctx := context.Background()

	a, err := m.Convert(ctx, acme)
	require.NoError(t, err)
	assert.Equal(t, trial.StateConverted, a.State)
	assert.Len(t, events.Named("trial.converted"), 1)

	// Ticks past the end leave a converted account alone.
	report, err := m.Tick(ctx, calendar.NewDate(2024, time.February, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Expired)
	assert.Equal(t, 0, report.Reminders)
}

func TestConvert_ExpiredAccountReactivates(t *testing.T) {
	m, _ := newManager(t)
	startTrial(t, m)
	ctx := context.Background()

	_, err := m.Tick(ctx, calendar.NewDate(2024, time.January, 16))
	require.NoError(t, err)

	a, err := m.Convert(ctx, acme)
	require.NoError(t, err)
	assert.Equal(t, trial.StateConverted, a.State)
}

func TestConvert_UnknownTenant(t *testing.T) {
	m, _ := newManager(t)
	_, err := m.Convert(context.Background(), "ghost")
	assert.ErrorIs(t, err, trial.ErrAccountNotFound)
}
