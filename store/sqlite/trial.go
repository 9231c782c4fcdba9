package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/loomhr/leave-engine/calendar"
	"github.com/loomhr/leave-engine/leave"
	"github.com/loomhr/leave-engine/trial"
)

// Reminders are stored as a JSON object mapping offset to fire date,
// e.g. {"7":"2024-01-08"}.

func encodeReminders(m map[int]calendar.Date) (string, error) {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strconv.Itoa(k)] = v.String()
	}
	raw, err := json.Marshal(out)
	return string(raw), err
}

func decodeReminders(raw string) (map[int]calendar.Date, error) {
	if raw == "" {
		return map[int]calendar.Date{}, nil
	}
	var in map[string]string
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, fmt.Errorf("decode reminders: %w", err)
	}
	out := make(map[int]calendar.Date, len(in))
	for k, v := range in {
		offset, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("decode reminder offset %q: %w", k, err)
		}
		d, err := calendar.ParseDate(v)
		if err != nil {
			return nil, err
		}
		out[offset] = d
	}
	return out, nil
}

func scanTrialAccount(scan func(...any) error) (trial.Account, error) {
	var a trial.Account
	var start, end, reminders string
	var convertedAt, expiredAt sql.NullString
	err := scan(&a.TenantID, &a.State, &start, &end, &reminders, &convertedAt, &expiredAt)
	if err != nil {
		return trial.Account{}, err
	}
	if a.TrialStart, err = decodeDate(start); err != nil {
		return trial.Account{}, err
	}
	if a.TrialEnd, err = decodeDate(end); err != nil {
		return trial.Account{}, err
	}
	if a.RemindersSent, err = decodeReminders(reminders); err != nil {
		return trial.Account{}, err
	}
	if a.ConvertedAt, err = decodeTime(convertedAt.String); err != nil {
		return trial.Account{}, err
	}
	a.ExpiredAt, err = decodeTime(expiredAt.String)
	return a, err
}

const trialColumns = `tenant_id, state, trial_start, trial_end,
	reminders_json, converted_at, expired_at`

func (s *Store) CreateAccount(ctx context.Context, a trial.Account) error {
	reminders, err := encodeReminders(a.RemindersSent)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trial_accounts (`+trialColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(a.TenantID), string(a.State),
		encodeDate(a.TrialStart), encodeDate(a.TrialEnd), reminders,
		encodeTimeNull(a.ConvertedAt), encodeTimeNull(a.ExpiredAt))
	if isUniqueViolation(err) {
		return trial.ErrAlreadyStarted
	}
	return err
}

func (s *Store) GetAccount(ctx context.Context, tenant leave.TenantID) (trial.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+trialColumns+` FROM trial_accounts WHERE tenant_id = ?`,
		string(tenant))
	a, err := scanTrialAccount(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return trial.Account{}, trial.ErrAccountNotFound
	}
	return a, err
}

func (s *Store) UpdateAccount(ctx context.Context, tenant leave.TenantID, fn func(*trial.Account) error) (trial.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.GetAccount(ctx, tenant)
	if err != nil {
		return trial.Account{}, err
	}
	if err := fn(&a); err != nil {
		return trial.Account{}, err
	}

	reminders, err := encodeReminders(a.RemindersSent)
	if err != nil {
		return trial.Account{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE trial_accounts SET state = ?, reminders_json = ?,
			converted_at = ?, expired_at = ?
		WHERE tenant_id = ?`,
		string(a.State), reminders,
		encodeTimeNull(a.ConvertedAt), encodeTimeNull(a.ExpiredAt),
		string(tenant))
	if err != nil {
		return trial.Account{}, err
	}
	return a, nil
}

func (s *Store) ListByState(ctx context.Context, state trial.State) ([]trial.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+trialColumns+` FROM trial_accounts
		WHERE state = ? ORDER BY tenant_id`,
		string(state))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []trial.Account
	for rows.Next() {
		a, err := scanTrialAccount(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
