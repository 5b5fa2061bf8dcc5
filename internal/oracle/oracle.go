// Package oracle manages security oracle registration and standing.
//
// Oracles pay a one-time registration fee, receive a credential, and
// build reputation as their predictions resolve. Reputation gates
// privileged actions elsewhere (flagging a protocol critical requires
// a high score).
package oracle

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAlreadyRegistered = errors.New("oracle already registered")
	ErrOracleNotFound    = errors.New("oracle not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrTransferFailed    = errors.New("transfer failed")
)

// Reputation bounds and per-resolution adjustments.
const (
	InitialReputation = 50
	MaxReputation     = 100
	MinReputation     = 0
	ReputationReward  = 2
	ReputationPenalty = 5
)

// Oracle is a registered security oracle. Sequence is the registry-wide
// registration counter, assigned by the store at creation.
type Oracle struct {
	Principal           string    `json:"principal"`
	Sequence            uint64    `json:"sequence"`
	Credential          string    `json:"credential"`
	ReputationScore     int       `json:"reputationScore"`
	TotalPredictions    uint64    `json:"totalPredictions"`
	AccuratePredictions uint64    `json:"accuratePredictions"`
	RegistrationHeight  uint64    `json:"registrationHeight"`
	IsActive            bool      `json:"isActive"`
	RegisteredAt        time.Time `json:"registeredAt"`
}

// Store persists oracle records.
type Store interface {
	CreateOracle(ctx context.Context, o *Oracle) error
	GetOracle(ctx context.Context, principal string) (*Oracle, error)
	UpdateOracle(ctx context.Context, o *Oracle) error
	ListOracles(ctx context.Context, limit int) ([]*Oracle, error)
	Count(ctx context.Context) (uint64, error)
}
