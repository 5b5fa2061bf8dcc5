// Package risk maintains per-protocol security risk scores.
//
// A protocol's risk starts at zero and moves three ways: new predictions
// blend their severity in, confirmed incidents bump it, and high-reputation
// oracles can pin it to the maximum with a critical flag.
package risk

import (
	"context"
	"errors"
)

var ErrUnauthorized = errors.New("unauthorized")

const (
	// MaxRisk is the score ceiling.
	MaxRisk = 100
	// IncidentBump is added to the score on a confirmed incident.
	IncidentBump = 10
	// FlagReputationThreshold is the minimum oracle reputation required
	// to flag a protocol critical.
	FlagReputationThreshold = 80
)

// Score is the current risk state of a protocol.
type Score struct {
	Protocol       string `json:"protocol"`
	CurrentRisk    uint64 `json:"currentRisk"` // 0-100
	LastUpdated    uint64 `json:"lastUpdated"` // height
	IncidentsCount uint64 `json:"incidentsCount"`
	TotalLosses    uint64 `json:"totalLosses"` // smallest units
}

// Store persists risk scores.
type Store interface {
	// GetScore returns the score for protocol, or a zeroed score if the
	// protocol has never been seen.
	GetScore(ctx context.Context, protocol string) (*Score, error)
	UpsertScore(ctx context.Context, s *Score) error
	ListScores(ctx context.Context, limit int) ([]*Score, error)
}
