package risk

import (
	"context"
	"fmt"
	"strings"

	"github.com/breachmarket/breachmarket/internal/heights"
	"github.com/breachmarket/breachmarket/internal/metrics"
	"github.com/breachmarket/breachmarket/internal/oracle"
	"github.com/breachmarket/breachmarket/internal/traces"
)

// Authorizer resolves a caller to its oracle record. Satisfied by
// *oracle.Service.
type Authorizer interface {
	Authorize(ctx context.Context, principal string) (*oracle.Oracle, error)
}

// EventEmitter broadcasts risk events to real-time subscribers.
type EventEmitter interface {
	EmitRiskFlagged(score *Score, caller string)
}

// Service implements risk score updates.
type Service struct {
	store   Store
	oracles Authorizer
	heights heights.Source
	events  EventEmitter
}

// NewService creates a new risk service.
func NewService(store Store, oracles Authorizer, hs heights.Source) *Service {
	return &Service{store: store, oracles: oracles, heights: hs}
}

// WithEvents attaches a real-time event emitter.
func (s *Service) WithEvents(events EventEmitter) *Service {
	s.events = events
	return s
}

// Get returns the current risk score for protocol. Unknown protocols
// report a zeroed score.
func (s *Service) Get(ctx context.Context, protocol string) (*Score, error) {
	return s.store.GetScore(ctx, protocol)
}

// BlendSeverity folds a new prediction's severity into the protocol's
// score, weighted three parts current risk to one part severity. Integer
// division truncates.
func (s *Service) BlendSeverity(ctx context.Context, protocol string, severity uint64) (*Score, error) {
	score, err := s.store.GetScore(ctx, protocol)
	if err != nil {
		return nil, err
	}

	score.CurrentRisk = (score.CurrentRisk*3 + severity) / 4
	score.LastUpdated = s.heights.Current()

	if err := s.store.UpsertScore(ctx, score); err != nil {
		return nil, err
	}
	return score, nil
}

// RecordIncident registers a confirmed security incident against the
// protocol: the score climbs by a fixed bump (capped at the ceiling) and
// the loss is added to the running total.
func (s *Service) RecordIncident(ctx context.Context, protocol string, loss uint64) (*Score, error) {
	score, err := s.store.GetScore(ctx, protocol)
	if err != nil {
		return nil, err
	}

	score.CurrentRisk += IncidentBump
	if score.CurrentRisk > MaxRisk {
		score.CurrentRisk = MaxRisk
	}
	score.IncidentsCount++
	score.TotalLosses += loss
	score.LastUpdated = s.heights.Current()

	if err := s.store.UpsertScore(ctx, score); err != nil {
		return nil, err
	}
	return score, nil
}

// FlagCritical pins the protocol's risk to the maximum. Only active
// oracles at or above the reputation threshold may flag.
func (s *Service) FlagCritical(ctx context.Context, protocol, caller string) (*Score, error) {
	ctx, span := traces.StartSpan(ctx, "risk.FlagCritical",
		traces.Protocol(protocol), traces.Principal(caller))
	defer span.End()

	o, err := s.oracles.Authorize(ctx, strings.ToLower(caller))
	if err != nil {
		return nil, ErrUnauthorized
	}
	if o.ReputationScore < FlagReputationThreshold {
		return nil, fmt.Errorf("%w: reputation %d below flag threshold %d",
			ErrUnauthorized, o.ReputationScore, FlagReputationThreshold)
	}

	score, err := s.store.GetScore(ctx, protocol)
	if err != nil {
		return nil, err
	}
	score.CurrentRisk = MaxRisk
	score.LastUpdated = s.heights.Current()

	if err := s.store.UpsertScore(ctx, score); err != nil {
		return nil, err
	}

	metrics.RiskFlagsTotal.Inc()
	if s.events != nil {
		s.events.EmitRiskFlagged(score, o.Principal)
	}
	return score, nil
}

// Hottest returns the highest-risk protocols.
func (s *Service) Hottest(ctx context.Context, limit int) ([]*Score, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListScores(ctx, limit)
}
