package oracle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/breachmarket/breachmarket/internal/credential"
	"github.com/breachmarket/breachmarket/internal/heights"
	"github.com/breachmarket/breachmarket/internal/metrics"
	"github.com/breachmarket/breachmarket/internal/traces"
)

// Transferer moves value between principals. Satisfied by *ledger.Ledger.
type Transferer interface {
	Transfer(ctx context.Context, amount uint64, from, to string, description string) error
}

// EventEmitter broadcasts oracle lifecycle events to real-time subscribers.
type EventEmitter interface {
	EmitOracleRegistered(o *Oracle)
}

// Service implements oracle registration and standing updates.
type Service struct {
	store    Store
	transfer Transferer
	minter   credential.Minter
	heights  heights.Source
	events   EventEmitter

	fee      uint64
	treasury string
}

// NewService creates a new oracle service.
func NewService(store Store, transfer Transferer, minter credential.Minter, hs heights.Source, fee uint64, treasury string) *Service {
	return &Service{
		store:    store,
		transfer: transfer,
		minter:   minter,
		heights:  hs,
		fee:      fee,
		treasury: strings.ToLower(treasury),
	}
}

// WithEvents attaches a real-time event emitter.
func (s *Service) WithEvents(events EventEmitter) *Service {
	s.events = events
	return s
}

// Register registers principal as an oracle. The registration fee moves to
// the treasury before the record is created; if minting or persistence fails
// afterwards the fee is refunded so the caller observes no effect.
func (s *Service) Register(ctx context.Context, principal string) (*Oracle, error) {
	ctx, span := traces.StartSpan(ctx, "oracle.Register", traces.Principal(principal))
	defer span.End()

	principal = strings.ToLower(principal)

	if _, err := s.store.GetOracle(ctx, principal); err == nil {
		return nil, ErrAlreadyRegistered
	} else if !errors.Is(err, ErrOracleNotFound) {
		return nil, fmt.Errorf("check existing oracle: %w", err)
	}

	if err := s.transfer.Transfer(ctx, s.fee, principal, s.treasury, "oracle registration fee"); err != nil {
		span.SetStatus(codes.Error, "fee transfer failed")
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	cred, err := s.minter.Mint(ctx, principal)
	if err != nil {
		s.refundFee(ctx, principal, "registration mint failure")
		return nil, fmt.Errorf("mint credential: %w", err)
	}

	o := &Oracle{
		Principal:          principal,
		Credential:         cred,
		ReputationScore:    InitialReputation,
		RegistrationHeight: s.heights.Current(),
		IsActive:           true,
		RegisteredAt:       time.Now(),
	}
	if err := s.store.CreateOracle(ctx, o); err != nil {
		s.refundFee(ctx, principal, "registration store failure")
		if errors.Is(err, ErrAlreadyRegistered) {
			return nil, ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("create oracle: %w", err)
	}

	metrics.OraclesRegisteredTotal.Inc()
	if s.events != nil {
		s.events.EmitOracleRegistered(o)
	}
	return o, nil
}

func (s *Service) refundFee(ctx context.Context, principal, reason string) {
	if err := s.transfer.Transfer(ctx, s.fee, s.treasury, principal, "refund: "+reason); err != nil {
		log.Printf("CRITICAL: failed to refund registration fee to %s after %s: %v", principal, reason, err)
	}
}

// Get returns the oracle record for principal.
func (s *Service) Get(ctx context.Context, principal string) (*Oracle, error) {
	return s.store.GetOracle(ctx, strings.ToLower(principal))
}

// Authorize returns the oracle for principal if it is registered and active.
// Anything else is ErrUnauthorized; callers gate privileged operations on it.
func (s *Service) Authorize(ctx context.Context, principal string) (*Oracle, error) {
	o, err := s.store.GetOracle(ctx, strings.ToLower(principal))
	if err != nil {
		if errors.Is(err, ErrOracleNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !o.IsActive {
		return nil, ErrUnauthorized
	}
	return o, nil
}

// ApplyResolution updates an oracle's standing after one of its predictions
// resolves. Accurate predictions earn a small reputation bump; misses cost
// more. The score stays within [0, 100].
func (s *Service) ApplyResolution(ctx context.Context, principal string, accurate bool) error {
	principal = strings.ToLower(principal)

	o, err := s.store.GetOracle(ctx, principal)
	if err != nil {
		return err
	}

	o.TotalPredictions++
	if accurate {
		o.AccuratePredictions++
		o.ReputationScore += ReputationReward
		if o.ReputationScore > MaxReputation {
			o.ReputationScore = MaxReputation
		}
	} else {
		o.ReputationScore -= ReputationPenalty
		if o.ReputationScore < MinReputation {
			o.ReputationScore = MinReputation
		}
	}

	return s.store.UpdateOracle(ctx, o)
}

// Revoke deactivates an oracle. Revoked oracles fail Authorize but keep
// their record and history.
func (s *Service) Revoke(ctx context.Context, principal string) error {
	o, err := s.store.GetOracle(ctx, strings.ToLower(principal))
	if err != nil {
		return err
	}
	o.IsActive = false
	return s.store.UpdateOracle(ctx, o)
}

// Leaderboard returns the top oracles by reputation.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]*Oracle, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListOracles(ctx, limit)
}

// Count returns the number of registered oracles.
func (s *Service) Count(ctx context.Context) (uint64, error) {
	return s.store.Count(ctx)
}
