package predictions

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory prediction store for demo/development mode.
type MemoryStore struct {
	predictions map[uint64]*Prediction
	outcomes    map[uint64]*Outcome
	nextID      uint64
	totalStaked uint64
	mu          sync.RWMutex
}

// NewMemoryStore creates a new in-memory prediction store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		predictions: make(map[uint64]*Prediction),
		outcomes:    make(map[uint64]*Outcome),
		nextID:      1,
	}
}

func (m *MemoryStore) CreatePrediction(ctx context.Context, p *Prediction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p.ID = m.nextID
	m.nextID++
	m.totalStaked += p.StakeAmount

	cp := *p
	m.predictions[p.ID] = &cp
	return nil
}

func (m *MemoryStore) GetPrediction(ctx context.Context, id uint64) (*Prediction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.predictions[id]
	if !ok {
		return nil, ErrPredictionNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) MarkResolved(ctx context.Context, id uint64, accurate bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.predictions[id]
	if !ok {
		return ErrPredictionNotFound
	}
	if p.Resolved {
		return ErrAlreadyResolved
	}
	p.Resolved = true
	p.Accurate = accurate
	return nil
}

func (m *MemoryStore) CreateOutcome(ctx context.Context, o *Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *o
	m.outcomes[o.PredictionID] = &cp
	return nil
}

func (m *MemoryStore) GetOutcome(ctx context.Context, predictionID uint64) (*Outcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.outcomes[predictionID]
	if !ok {
		return nil, ErrPredictionNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) ListByPredictor(ctx context.Context, predictor string, limit int) ([]*Prediction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.filter(limit, func(p *Prediction) bool { return p.Predictor == predictor }), nil
}

func (m *MemoryStore) ListByProtocol(ctx context.Context, protocol string, limit int) ([]*Prediction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.filter(limit, func(p *Prediction) bool { return p.TargetProtocol == protocol }), nil
}

func (m *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := &Stats{
		TotalPredictions: uint64(len(m.predictions)),
		TotalStaked:      m.totalStaked,
	}
	for _, p := range m.predictions {
		if p.Resolved {
			st.ResolvedPredictions++
			if p.Accurate {
				st.AccuratePredictions++
			}
		}
	}
	return st, nil
}

// filter returns copies of predictions matching keep, newest first.
// Caller must hold mu.
func (m *MemoryStore) filter(limit int, keep func(*Prediction) bool) []*Prediction {
	out := make([]*Prediction, 0, limit)
	for id := m.nextID - 1; id >= 1 && len(out) < limit; id-- {
		if p, ok := m.predictions[id]; ok && keep(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out
}
