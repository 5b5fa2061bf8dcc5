// Package ledger tracks value balances held on the platform.
//
// Flow:
//  1. A principal funds its account (faucet in demo mode, deposit watcher in prod)
//  2. Market operations move value between principals, the escrow pool, and
//     the treasury via Transfer
//  3. Claimed rewards drain from escrow back to the predictor
//
// Amounts are integers in the smallest unit (6 decimal places).
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
)

// Entry is an append-only record of a balance movement.
type Entry struct {
	ID          string    `json:"id"`
	Addr        string    `json:"addr"`
	Type        string    `json:"type"` // deposit, transfer_in, transfer_out
	Amount      uint64    `json:"amount"`
	Counterpart string    `json:"counterpart,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Account holds a principal's balance.
type Account struct {
	Addr      string    `json:"addr"`
	Available uint64    `json:"available"`
	TotalIn   uint64    `json:"totalIn"`  // lifetime credits
	TotalOut  uint64    `json:"totalOut"` // lifetime debits
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists accounts and entries.
type Store interface {
	GetAccount(ctx context.Context, addr string) (*Account, error)
	Credit(ctx context.Context, addr string, amount uint64, counterpart, description string) error
	Debit(ctx context.Context, addr string, amount uint64, counterpart, description string) error
	GetHistory(ctx context.Context, addr string, limit int) ([]*Entry, error)
}

// Ledger manages account balances.
type Ledger struct {
	store Store
}

// New creates a new ledger backed by store.
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// Balance returns the current account state for addr. Unknown addresses
// report a zero balance rather than an error.
func (l *Ledger) Balance(ctx context.Context, addr string) (*Account, error) {
	return l.store.GetAccount(ctx, norm(addr))
}

// Deposit credits addr out of thin air. Used by the faucet and by the
// deposit watcher once an on-chain deposit confirms.
func (l *Ledger) Deposit(ctx context.Context, addr string, amount uint64, description string) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	return l.store.Credit(ctx, norm(addr), amount, "", description)
}

// Transfer moves amount from one account to another. The debit happens
// first; if the credit fails the debit is compensated so the ledger never
// loses value. Callers treat any returned error as "nothing moved".
func (l *Ledger) Transfer(ctx context.Context, amount uint64, from, to string, description string) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	from, to = norm(from), norm(to)
	if from == to {
		return fmt.Errorf("%w: self-transfer", ErrInvalidAmount)
	}

	if err := l.store.Debit(ctx, from, amount, to, description); err != nil {
		return err
	}
	if err := l.store.Credit(ctx, to, amount, from, description); err != nil {
		// Put the funds back. A failure here leaves the ledger short and
		// needs operator attention.
		if rerr := l.store.Credit(ctx, from, amount, from, "compensate: "+description); rerr != nil {
			return fmt.Errorf("credit failed (%v) and compensation failed: %w", err, rerr)
		}
		return err
	}
	return nil
}

// History returns recent entries for addr, newest first.
func (l *Ledger) History(ctx context.Context, addr string, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return l.store.GetHistory(ctx, norm(addr), limit)
}

func norm(addr string) string {
	return strings.ToLower(addr)
}
