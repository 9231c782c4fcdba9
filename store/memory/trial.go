package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/loomhr/leave-engine/calendar"
	"github.com/loomhr/leave-engine/leave"
	"github.com/loomhr/leave-engine/trial"
)

// TrialStore implements trial.Store in memory. Separate from Store so a
// deployment can persist trials elsewhere.
type TrialStore struct {
	mu       sync.RWMutex
	accounts map[leave.TenantID]trial.Account
}

func NewTrialStore() *TrialStore {
	return &TrialStore{accounts: make(map[leave.TenantID]trial.Account)}
}

func (s *TrialStore) CreateAccount(_ context.Context, a trial.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.TenantID]; ok {
		return trial.ErrAlreadyStarted
	}
	s.accounts[a.TenantID] = cloneAccount(a)
	return nil
}

func (s *TrialStore) GetAccount(_ context.Context, tenant leave.TenantID) (trial.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[tenant]
	if !ok {
		return trial.Account{}, trial.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (s *TrialStore) UpdateAccount(_ context.Context, tenant leave.TenantID, fn func(*trial.Account) error) (trial.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[tenant]
	if !ok {
		return trial.Account{}, trial.ErrAccountNotFound
	}
	a = cloneAccount(a)
	if err := fn(&a); err != nil {
		return trial.Account{}, err
	}
	s.accounts[tenant] = a
	return cloneAccount(a), nil
}

func (s *TrialStore) ListByState(_ context.Context, state trial.State) ([]trial.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []trial.Account
	for _, a := range s.accounts {
		if a.State == state {
			out = append(out, cloneAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

// cloneAccount deep-copies the reminders map so callers cannot mutate
// stored state through it.
func cloneAccount(a trial.Account) trial.Account {
	out := a
	if a.RemindersSent != nil {
		out.RemindersSent = make(map[int]calendar.Date, len(a.RemindersSent))
		for k, v := range a.RemindersSent {
			out.RemindersSent[k] = v
		}
	}
	return out
}
