/*
Package trial manages tenant trial subscriptions.

PURPOSE:
  Every tenant starts on a time-limited trial. A daily tick sends
  reminders as the end approaches (7, 3, 1 and 0 days out) and expires
  trials past their end date. Converting to a paid subscription stops
  both.

SEMANTICS:
  - Reminders fire exactly once per offset: each send is recorded on
    the account before publishing
  - A tick only fires the reminder whose date it lands on; offsets the
    scheduler slept through are not fired late
  - Expiry happens on the first tick strictly after the trial end
*/
package trial

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/loomhr/leave-engine/calendar"
	"github.com/loomhr/leave-engine/event"
	"github.com/loomhr/leave-engine/leave"
)

// =============================================================================
// TYPES
// =============================================================================

type State string

const (
	StateNotStarted State = "not_started"
	StateTrialing   State = "trialing"
	StateConverted  State = "converted"
	StateExpired    State = "expired"
)

// ReminderOffsets are the days-before-end at which reminders fire.
// 0 is "your trial ends today".
var ReminderOffsets = []int{7, 3, 1, 0}

// Account is a tenant's trial record.
type Account struct {
	TenantID leave.TenantID
	State    State

	TrialStart calendar.Date
	TrialEnd   calendar.Date

	// RemindersSent maps a fired offset to the date it fired.
	RemindersSent map[int]calendar.Date

	ConvertedAt time.Time
	ExpiredAt   time.Time
}

// DaysRemaining returns the days from today until the trial end,
// negative once the end has passed.
func (a Account) DaysRemaining(today calendar.Date) int {
	return today.DaysUntil(a.TrialEnd)
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrAccountNotFound = errors.New("trial account not found")
	ErrAlreadyStarted  = errors.New("trial already started")
	ErrNotTrialing     = errors.New("account is not trialing")
)

// =============================================================================
// STORE
// =============================================================================

// Store persists trial accounts. UpdateAccount is an atomic
// read-modify-write, same contract as the leave stores.
type Store interface {
	CreateAccount(ctx context.Context, a Account) error
	GetAccount(ctx context.Context, tenant leave.TenantID) (Account, error)
	UpdateAccount(ctx context.Context, tenant leave.TenantID, fn func(*Account) error) (Account, error)
	// ListByState returns all accounts in a state.
	ListByState(ctx context.Context, state State) ([]Account, error)
}

// =============================================================================
// EVENTS
// =============================================================================

type ReminderSentEvent struct {
	TenantID      leave.TenantID
	DaysRemaining int
	TrialEnd      calendar.Date
}

func (ReminderSentEvent) EventName() string { return "trial.reminder_sent" }

type ExpiredEvent struct {
	TenantID leave.TenantID
	TrialEnd calendar.Date
}

func (ExpiredEvent) EventName() string { return "trial.expired" }

type ConvertedEvent struct {
	TenantID leave.TenantID
}

func (ConvertedEvent) EventName() string { return "trial.converted" }

// =============================================================================
// MANAGER
// =============================================================================

// Manager runs the trial lifecycle.
type Manager struct {
	store     Store
	duration  int // trial length in days
	publisher event.Publisher
	logger    *zap.Logger
}

func NewManager(store Store, durationDays int, publisher event.Publisher, logger *zap.Logger) *Manager {
	return &Manager{
		store:     store,
		duration:  durationDays,
		publisher: publisher,
		logger:    logger,
	}
}

// Start opens a trial for a tenant beginning on the given date.
func (m *Manager) Start(ctx context.Context, tenant leave.TenantID, start calendar.Date) (Account, error) {
	a := Account{
		TenantID:      tenant,
		State:         StateTrialing,
		TrialStart:    start,
		TrialEnd:      start.AddDays(m.duration),
		RemindersSent: make(map[int]calendar.Date),
	}
	if err := m.store.CreateAccount(ctx, a); err != nil {
		return Account{}, err
	}
	m.logger.Info("trial started",
		zap.String("tenant", string(tenant)),
		zap.String("ends", a.TrialEnd.String()),
	)
	return a, nil
}

// Convert moves a trialing or expired account to a paid subscription.
// Expired tenants reactivate by subscribing.
func (m *Manager) Convert(ctx context.Context, tenant leave.TenantID) (Account, error) {
	a, err := m.store.UpdateAccount(ctx, tenant, func(a *Account) error {
		if a.State != StateTrialing && a.State != StateExpired {
			return fmt.Errorf("%w: state %s", ErrNotTrialing, a.State)
		}
		a.State = StateConverted
		a.ConvertedAt = time.Now()
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	m.logger.Info("trial converted", zap.String("tenant", string(tenant)))
	m.publisher.Publish(ctx, ConvertedEvent{TenantID: tenant})
	return a, nil
}

// Get returns the tenant's trial account.
func (m *Manager) Get(ctx context.Context, tenant leave.TenantID) (Account, error) {
	return m.store.GetAccount(ctx, tenant)
}

// TickReport summarizes one daily tick.
type TickReport struct {
	Today     calendar.Date
	Reminders int
	Expired   int
}

// Tick processes every trialing account for the given day: fires the
// reminder whose offset lands on today, expires trials past their end.
// Safe to call more than once per day.
func (m *Manager) Tick(ctx context.Context, today calendar.Date) (TickReport, error) {
	report := TickReport{Today: today}

	accounts, err := m.store.ListByState(ctx, StateTrialing)
	if err != nil {
		return report, fmt.Errorf("list trialing accounts: %w", err)
	}

	for _, acct := range accounts {
		remaining := acct.DaysRemaining(today)

		if remaining < 0 {
			expired := false
			_, err := m.store.UpdateAccount(ctx, acct.TenantID, func(a *Account) error {
				if a.State != StateTrialing {
					return nil // converted between list and update
				}
				a.State = StateExpired
				a.ExpiredAt = time.Now()
				expired = true
				return nil
			})
			if err != nil {
				m.logger.Error("trial expiry failed",
					zap.String("tenant", string(acct.TenantID)), zap.Error(err))
				continue
			}
			if expired {
				report.Expired++
				m.logger.Info("trial expired",
					zap.String("tenant", string(acct.TenantID)),
					zap.String("ended", acct.TrialEnd.String()),
				)
				m.publisher.Publish(ctx, ExpiredEvent{TenantID: acct.TenantID, TrialEnd: acct.TrialEnd})
			}
			continue
		}

		offset, ok := matchOffset(remaining)
		if !ok {
			continue
		}

		sent := false
		_, err = m.store.UpdateAccount(ctx, acct.TenantID, func(a *Account) error {
			if a.State != StateTrialing {
				return nil
			}
			if _, already := a.RemindersSent[offset]; already {
				return nil
			}
			if a.RemindersSent == nil {
				a.RemindersSent = make(map[int]calendar.Date)
			}
			a.RemindersSent[offset] = today
			sent = true
			return nil
		})
		if err != nil {
			m.logger.Error("trial reminder failed",
				zap.String("tenant", string(acct.TenantID)), zap.Error(err))
			continue
		}
		if sent {
			report.Reminders++
			m.publisher.Publish(ctx, ReminderSentEvent{
				TenantID:      acct.TenantID,
				DaysRemaining: remaining,
				TrialEnd:      acct.TrialEnd,
			})
		}
	}

	return report, nil
}

func matchOffset(remaining int) (int, bool) {
	for _, o := range ReminderOffsets {
		if o == remaining {
			return o, true
		}
	}
	return 0, false
}
