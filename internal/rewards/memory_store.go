package rewards

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory rewards store for demo/development mode.
type MemoryStore struct {
	accounts map[string]*Account
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory rewards store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*Account)}
}

func (m *MemoryStore) GetAccount(ctx context.Context, predictor string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if a, ok := m.accounts[predictor]; ok {
		cp := *a
		return &cp, nil
	}
	return &Account{Predictor: predictor}, nil
}

func (m *MemoryStore) UpsertAccount(ctx context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *a
	m.accounts[a.Predictor] = &cp
	return nil
}

func (m *MemoryStore) DrainUnclaimed(ctx context.Context, predictor string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[predictor]
	if !ok || a.Unclaimed == 0 {
		return 0, nil
	}
	amount := a.Unclaimed
	a.Unclaimed = 0
	return amount, nil
}

func (m *MemoryStore) RestoreUnclaimed(ctx context.Context, predictor string, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[predictor]
	if !ok {
		a = &Account{Predictor: predictor}
		m.accounts[predictor] = a
	}
	a.Unclaimed += amount
	return nil
}

func (m *MemoryStore) ListAccounts(ctx context.Context, limit int) ([]*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalEarned != out[j].TotalEarned {
			return out[i].TotalEarned > out[j].TotalEarned
		}
		return out[i].Predictor < out[j].Predictor
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
