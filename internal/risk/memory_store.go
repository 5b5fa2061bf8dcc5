package risk

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory risk store for demo/development mode.
type MemoryStore struct {
	scores map[string]*Score
	mu     sync.RWMutex
}

// NewMemoryStore creates a new in-memory risk store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scores: make(map[string]*Score)}
}

func (m *MemoryStore) GetScore(ctx context.Context, protocol string) (*Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if s, ok := m.scores[protocol]; ok {
		cp := *s
		return &cp, nil
	}
	return &Score{Protocol: protocol}, nil
}

func (m *MemoryStore) UpsertScore(ctx context.Context, s *Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	m.scores[s.Protocol] = &cp
	return nil
}

func (m *MemoryStore) ListScores(ctx context.Context, limit int) ([]*Score, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Score, 0, len(m.scores))
	for _, s := range m.scores {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CurrentRisk != out[j].CurrentRisk {
			return out[i].CurrentRisk > out[j].CurrentRisk
		}
		return out[i].Protocol < out[j].Protocol
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
