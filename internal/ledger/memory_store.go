package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/breachmarket/breachmarket/internal/idgen"
)

// MemoryStore is an in-memory ledger store for demo/development mode.
type MemoryStore struct {
	accounts map[string]*Account
	entries  []*Entry
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*Account),
		entries:  make([]*Entry, 0),
	}
}

func (m *MemoryStore) GetAccount(ctx context.Context, addr string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if acct, ok := m.accounts[addr]; ok {
		cp := *acct
		return &cp, nil
	}
	return &Account{Addr: addr, UpdatedAt: time.Now()}, nil
}

func (m *MemoryStore) Credit(ctx context.Context, addr string, amount uint64, counterpart, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct := m.account(addr)
	acct.Available += amount
	acct.TotalIn += amount
	acct.UpdatedAt = time.Now()

	typ := "deposit"
	if counterpart != "" {
		typ = "transfer_in"
	}
	m.append(addr, typ, amount, counterpart, description)
	return nil
}

func (m *MemoryStore) Debit(ctx context.Context, addr string, amount uint64, counterpart, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct := m.account(addr)
	if acct.Available < amount {
		return ErrInsufficientBalance
	}
	acct.Available -= amount
	acct.TotalOut += amount
	acct.UpdatedAt = time.Now()

	m.append(addr, "transfer_out", amount, counterpart, description)
	return nil
}

func (m *MemoryStore) GetHistory(ctx context.Context, addr string, limit int) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Entry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].Addr == addr {
			cp := *m.entries[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// account returns the live account for addr, creating it if needed.
// Caller must hold mu.
func (m *MemoryStore) account(addr string) *Account {
	acct, ok := m.accounts[addr]
	if !ok {
		acct = &Account{Addr: addr}
		m.accounts[addr] = acct
	}
	return acct
}

// append records an entry. Caller must hold mu.
func (m *MemoryStore) append(addr, typ string, amount uint64, counterpart, description string) {
	m.entries = append(m.entries, &Entry{
		ID:          idgen.New(),
		Addr:        addr,
		Type:        typ,
		Amount:      amount,
		Counterpart: counterpart,
		Description: description,
		CreatedAt:   time.Now(),
	})
}
