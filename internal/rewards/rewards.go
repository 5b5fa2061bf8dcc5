// Package rewards tracks earned and unclaimed rewards per predictor.
//
// Accurate resolutions accrue into an account; Claim drains the unclaimed
// balance out of escrow in one shot.
package rewards

import (
	"context"
	"errors"
)

var (
	ErrNothingToClaim = errors.New("nothing to claim")
	ErrTransferFailed = errors.New("transfer failed")
)

// Account is a predictor's reward standing.
type Account struct {
	Predictor       string `json:"predictor"`
	TotalEarned     uint64 `json:"totalEarned"`
	Unclaimed       uint64 `json:"unclaimed"`
	PredictionCount uint64 `json:"predictionCount"`
	AccuracyRate    uint64 `json:"accuracyRate"`
}

// Store persists reward accounts.
type Store interface {
	// GetAccount returns the account for predictor, or a zeroed account
	// if the predictor has never earned.
	GetAccount(ctx context.Context, predictor string) (*Account, error)
	UpsertAccount(ctx context.Context, a *Account) error
	ListAccounts(ctx context.Context, limit int) ([]*Account, error)
	// DrainUnclaimed atomically zeroes the predictor's unclaimed balance
	// and returns the drained amount. Concurrent drains of the same
	// account see the balance exactly once; later callers get 0.
	DrainUnclaimed(ctx context.Context, predictor string) (uint64, error)
	// RestoreUnclaimed credits amount back after a failed payout.
	RestoreUnclaimed(ctx context.Context, predictor string, amount uint64) error
}
