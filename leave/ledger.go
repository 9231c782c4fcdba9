/*
Balance ledger service.

PURPOSE:
  The only code that mutates BalanceEntry rows. Credit, debit, restore
  and adjust all funnel through BalanceStore.UpdateBalance so each
  mutation is an atomic read-modify-write on its row.

INVARIANTS ENFORCED HERE:
  - Debit revalidates availability inside the row lock; a stale check
    outside the lock can never overdraw a balance
  - Every amount is validated positive and half-day granular
  - Used never goes below zero (restore clamps are a bug, so restore
    validates instead of clamping)
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Ledger mutates balance entries.
type Ledger struct {
	balances BalanceStore
	logger   *zap.Logger
}

func NewLedger(balances BalanceStore, logger *zap.Logger) *Ledger {
	return &Ledger{balances: balances, logger: logger}
}

// validateAmount rejects non-positive or sub-half-day quantities.
func validateAmount(amount Days) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrNegativeAmount, amount)
	}
	if !amount.IsHalfDayGranular() {
		return fmt.Errorf("%w: %s", ErrNotHalfDayGranular, amount)
	}
	return nil
}

// Credit adds accrued days to a balance, creating the row if needed.
func (l *Ledger) Credit(ctx context.Context, key BalanceKey, amount Days) (BalanceEntry, error) {
	if err := validateAmount(amount); err != nil {
		return BalanceEntry{}, err
	}

	entry, err := l.balances.UpdateBalance(ctx, key, func(b *BalanceEntry) error {
		b.Accrued = b.Accrued.Add(amount)
		b.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return BalanceEntry{}, fmt.Errorf("credit balance: %w", err)
	}

	l.logger.Info("balance credited",
		zap.String("tenant", string(key.TenantID)),
		zap.String("employee", string(key.Employee)),
		zap.String("type", string(key.Code)),
		zap.Int("year", key.Year),
		zap.String("amount", amount.String()),
		zap.String("available", entry.Available().String()),
	)
	return entry, nil
}

// CreditCarryover adds carried-over days. Kept separate from Credit so the
// row records where the days came from.
func (l *Ledger) CreditCarryover(ctx context.Context, key BalanceKey, amount Days) (BalanceEntry, error) {
	if err := validateAmount(amount); err != nil {
		return BalanceEntry{}, err
	}

	entry, err := l.balances.UpdateBalance(ctx, key, func(b *BalanceEntry) error {
		b.CarriedOver = b.CarriedOver.Add(amount)
		b.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return BalanceEntry{}, fmt.Errorf("credit carryover: %w", err)
	}
	return entry, nil
}

// Debit consumes days from a balance. Availability is checked inside the
// row lock; allowNegative (sick leave) skips the check.
func (l *Ledger) Debit(ctx context.Context, key BalanceKey, amount Days, allowNegative bool) (BalanceEntry, error) {
	if err := validateAmount(amount); err != nil {
		return BalanceEntry{}, err
	}

	entry, err := l.balances.UpdateBalance(ctx, key, func(b *BalanceEntry) error {
		if !allowNegative && b.Available().LessThan(amount) {
			return &InsufficientBalanceError{
				Key:       key,
				Available: b.Available(),
				Requested: amount,
			}
		}
		b.Used = b.Used.Add(amount)
		b.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return BalanceEntry{}, err
	}

	l.logger.Info("balance debited",
		zap.String("tenant", string(key.TenantID)),
		zap.String("employee", string(key.Employee)),
		zap.String("type", string(key.Code)),
		zap.String("amount", amount.String()),
		zap.String("available", entry.Available().String()),
	)
	return entry, nil
}

// Restore returns previously debited days, used when an approved request
// is cancelled. Restoring more than was used is a workflow bug.
func (l *Ledger) Restore(ctx context.Context, key BalanceKey, amount Days) (BalanceEntry, error) {
	if err := validateAmount(amount); err != nil {
		return BalanceEntry{}, err
	}

	entry, err := l.balances.UpdateBalance(ctx, key, func(b *BalanceEntry) error {
		if b.Used.LessThan(amount) {
			return fmt.Errorf("restore %s exceeds used %s for %s/%s",
				amount, b.Used, key.Employee, key.Code)
		}
		b.Used = b.Used.Sub(amount)
		b.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return BalanceEntry{}, err
	}
	return entry, nil
}

// Adjust applies a signed manual correction to the accrued column.
// Admin-only; the delta may be negative but must be half-day granular
// and non-zero.
func (l *Ledger) Adjust(ctx context.Context, key BalanceKey, delta Days, reason string) (BalanceEntry, error) {
	if delta.IsZero() {
		return BalanceEntry{}, fmt.Errorf("%w: zero adjustment", ErrNegativeAmount)
	}
	if !delta.IsHalfDayGranular() {
		return BalanceEntry{}, fmt.Errorf("%w: %s", ErrNotHalfDayGranular, delta)
	}

	entry, err := l.balances.UpdateBalance(ctx, key, func(b *BalanceEntry) error {
		b.Accrued = b.Accrued.Add(delta)
		b.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return BalanceEntry{}, fmt.Errorf("adjust balance: %w", err)
	}

	l.logger.Info("balance adjusted",
		zap.String("tenant", string(key.TenantID)),
		zap.String("employee", string(key.Employee)),
		zap.String("type", string(key.Code)),
		zap.String("delta", delta.String()),
		zap.String("reason", reason),
	)
	return entry, nil
}

// Available returns the derived available days for a key. A missing row
// reads as zero, matching UpdateBalance's lazy creation.
func (l *Ledger) Available(ctx context.Context, key BalanceKey) (Days, error) {
	entry, err := l.balances.GetBalance(ctx, key)
	if err != nil {
		if IsNotFound(err) {
			return ZeroDays(), nil
		}
		return ZeroDays(), err
	}
	return entry.Available(), nil
}
