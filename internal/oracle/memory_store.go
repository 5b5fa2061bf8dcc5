package oracle

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory oracle store for demo/development mode.
type MemoryStore struct {
	oracles map[string]*Oracle
	seq     uint64
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory oracle store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{oracles: make(map[string]*Oracle)}
}

func (m *MemoryStore) CreateOracle(ctx context.Context, o *Oracle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.oracles[o.Principal]; ok {
		return ErrAlreadyRegistered
	}
	m.seq++
	o.Sequence = m.seq
	cp := *o
	m.oracles[o.Principal] = &cp
	return nil
}

func (m *MemoryStore) GetOracle(ctx context.Context, principal string) (*Oracle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.oracles[principal]
	if !ok {
		return nil, ErrOracleNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) UpdateOracle(ctx context.Context, o *Oracle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.oracles[o.Principal]; !ok {
		return ErrOracleNotFound
	}
	cp := *o
	m.oracles[o.Principal] = &cp
	return nil
}

func (m *MemoryStore) ListOracles(ctx context.Context, limit int) ([]*Oracle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Oracle, 0, len(m.oracles))
	for _, o := range m.oracles {
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReputationScore != out[j].ReputationScore {
			return out[i].ReputationScore > out[j].ReputationScore
		}
		return out[i].Principal < out[j].Principal
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Count(ctx context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.oracles)), nil
}
