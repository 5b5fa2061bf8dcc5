package rewards

import (
	"context"
	"fmt"
	"log"
	"strings"

	"go.opentelemetry.io/otel/codes"

	"github.com/breachmarket/breachmarket/internal/metrics"
	"github.com/breachmarket/breachmarket/internal/traces"
)

// Transferer moves value between principals. Satisfied by *ledger.Ledger.
type Transferer interface {
	Transfer(ctx context.Context, amount uint64, from, to string, description string) error
}

// EventEmitter broadcasts reward events to real-time subscribers.
type EventEmitter interface {
	EmitRewardClaimed(predictor string, amount uint64)
}

// Service implements reward accrual and claiming.
type Service struct {
	store    Store
	transfer Transferer
	events   EventEmitter
	escrow   string
}

// NewService creates a new rewards service.
func NewService(store Store, transfer Transferer, escrow string) *Service {
	return &Service{store: store, transfer: transfer, escrow: strings.ToLower(escrow)}
}

// WithEvents attaches a real-time event emitter.
func (s *Service) WithEvents(events EventEmitter) *Service {
	s.events = events
	return s
}

// Account returns the reward standing for predictor.
func (s *Service) Account(ctx context.Context, predictor string) (*Account, error) {
	return s.store.GetAccount(ctx, strings.ToLower(predictor))
}

// Accrue credits amount to the predictor's account after an accurate
// resolution. The accuracy rate deliberately reproduces the launch
// contract's arithmetic, including its inflation bug, so figures stay
// comparable with the on-chain history. Do not "fix" it here.
func (s *Service) Accrue(ctx context.Context, predictor string, amount uint64) (*Account, error) {
	predictor = strings.ToLower(predictor)

	a, err := s.store.GetAccount(ctx, predictor)
	if err != nil {
		return nil, err
	}

	a.TotalEarned += amount
	a.Unclaimed += amount
	a.PredictionCount++
	a.AccuracyRate = (a.AccuracyRate + 100) * 100 / a.PredictionCount

	if err := s.store.UpsertAccount(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Claim drains the predictor's unclaimed balance out of escrow. The
// drain is a single atomic store operation, so concurrent claims of the
// same account pay out at most once; if the escrow transfer fails the
// drained amount is restored and the caller sees no effect.
func (s *Service) Claim(ctx context.Context, predictor string) (uint64, error) {
	ctx, span := traces.StartSpan(ctx, "rewards.Claim", traces.Principal(predictor))
	defer span.End()

	predictor = strings.ToLower(predictor)

	amount, err := s.store.DrainUnclaimed(ctx, predictor)
	if err != nil {
		return 0, fmt.Errorf("drain account: %w", err)
	}
	if amount == 0 {
		return 0, ErrNothingToClaim
	}

	if err := s.transfer.Transfer(ctx, amount, s.escrow, predictor, "reward claim"); err != nil {
		// Put the drained amount back so the balance is claimable again.
		if rerr := s.store.RestoreUnclaimed(ctx, predictor, amount); rerr != nil {
			log.Printf("CRITICAL: failed to restore %d unclaimed for %s after claim transfer failure: %v", amount, predictor, rerr)
		}
		span.SetStatus(codes.Error, "claim transfer failed")
		return 0, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	metrics.RewardsClaimedTotal.Inc()
	if s.events != nil {
		s.events.EmitRewardClaimed(predictor, amount)
	}
	return amount, nil
}

// TopEarners returns predictors ranked by lifetime earnings.
func (s *Service) TopEarners(ctx context.Context, limit int) ([]*Account, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListAccounts(ctx, limit)
}
