package predictions

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/breachmarket/breachmarket/internal/database"
	"github.com/breachmarket/breachmarket/internal/heights"
	"github.com/breachmarket/breachmarket/internal/metrics"
	"github.com/breachmarket/breachmarket/internal/oracle"
	"github.com/breachmarket/breachmarket/internal/rewards"
	"github.com/breachmarket/breachmarket/internal/risk"
	"github.com/breachmarket/breachmarket/internal/syncutil"
	"github.com/breachmarket/breachmarket/internal/traces"
	"github.com/breachmarket/breachmarket/internal/validation"
)

// Directory resolves and updates oracle standing. Satisfied by
// *oracle.Service.
type Directory interface {
	Authorize(ctx context.Context, principal string) (*oracle.Oracle, error)
	ApplyResolution(ctx context.Context, principal string, accurate bool) error
}

// RiskUpdater folds market activity into protocol risk. Satisfied by
// *risk.Service.
type RiskUpdater interface {
	BlendSeverity(ctx context.Context, protocol string, severity uint64) (*risk.Score, error)
	RecordIncident(ctx context.Context, protocol string, loss uint64) (*risk.Score, error)
}

// Accruer credits predictor rewards. Satisfied by *rewards.Service.
type Accruer interface {
	Accrue(ctx context.Context, predictor string, amount uint64) (*rewards.Account, error)
}

// Transferer moves value between principals. Satisfied by *ledger.Ledger.
type Transferer interface {
	Transfer(ctx context.Context, amount uint64, from, to string, description string) error
}

// EventEmitter broadcasts market events to real-time subscribers.
type EventEmitter interface {
	EmitPredictionSubmitted(p *Prediction)
	EmitPredictionResolved(p *Prediction, o *Outcome)
}

// TxBeginner opens database transactions. Satisfied by *sql.DB. When set,
// resolution effects run inside a single transaction.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Service implements the prediction market business logic. All
// state-mutating operations run under a single market-wide lock so
// effects are strictly serial.
type Service struct {
	store    Store
	oracles  Directory
	risk     RiskUpdater
	rewards  Accruer
	transfer Transferer
	heights  heights.Source
	opLock   *syncutil.ContextMutex
	events   EventEmitter
	txb      TxBeginner

	escrow       string
	minStake     uint64
	windowBlocks uint64
}

// NewService creates a new prediction market service.
func NewService(store Store, oracles Directory, riskSvc RiskUpdater, rewardsSvc Accruer,
	transfer Transferer, hs heights.Source, escrow string, minStake, windowBlocks uint64) *Service {
	return &Service{
		store:        store,
		oracles:      oracles,
		risk:         riskSvc,
		rewards:      rewardsSvc,
		transfer:     transfer,
		heights:      hs,
		opLock:       syncutil.NewContextMutex(),
		escrow:       strings.ToLower(escrow),
		minStake:     minStake,
		windowBlocks: windowBlocks,
	}
}

// WithEvents attaches a real-time event emitter.
func (s *Service) WithEvents(events EventEmitter) *Service {
	s.events = events
	return s
}

// WithTxBeginner makes resolution effects run inside one database
// transaction. Only set when all stores share the same *sql.DB.
func (s *Service) WithTxBeginner(txb TxBeginner) *Service {
	s.txb = txb
	return s
}

// SubmitRequest carries a new prediction.
type SubmitRequest struct {
	Predictor      string `json:"predictor" binding:"required"`
	TargetProtocol string `json:"targetProtocol" binding:"required"`
	VulnType       string `json:"vulnType" binding:"required"`
	SeverityScore  uint64 `json:"severityScore"`
	AIConfidence   uint64 `json:"aiConfidence"`
	PredictedLoss  uint64 `json:"predictedLoss"`
	StakeAmount    uint64 `json:"stakeAmount"`
}

// Submit stakes a new breach prediction. The stake moves to escrow before
// the record is created; if persistence fails the stake is refunded.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Prediction, error) {
	ctx, span := traces.StartSpan(ctx, "predictions.Submit",
		traces.Principal(req.Predictor), traces.Protocol(req.TargetProtocol))
	defer span.End()

	unlock, err := s.opLock.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.validateSubmit(&req); err != nil {
		return nil, err
	}

	predictor := strings.ToLower(req.Predictor)
	if _, err := s.oracles.Authorize(ctx, predictor); err != nil {
		return nil, fmt.Errorf("%w: predictor is not an active oracle", ErrUnauthorized)
	}

	if err := s.transfer.Transfer(ctx, req.StakeAmount, predictor, s.escrow, "prediction stake"); err != nil {
		span.SetStatus(codes.Error, "stake transfer failed")
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	now := s.heights.Current()
	p := &Prediction{
		Predictor:        predictor,
		TargetProtocol:   req.TargetProtocol,
		VulnType:         req.VulnType,
		SeverityScore:    req.SeverityScore,
		AIConfidence:     req.AIConfidence,
		PredictedLoss:    req.PredictedLoss,
		StakeAmount:      req.StakeAmount,
		SubmissionHeight: now,
		ResolutionHeight: now + s.windowBlocks,
		CreatedAt:        time.Now(),
	}
	if err := s.store.CreatePrediction(ctx, p); err != nil {
		s.refundStake(ctx, predictor, req.StakeAmount, "submission store failure")
		return nil, fmt.Errorf("create prediction: %w", err)
	}

	// The protocol's risk absorbs the new severity signal. A failure
	// here leaves a valid prediction with a stale risk score; the score
	// self-corrects on the next update, so the submission stands.
	if _, err := s.risk.BlendSeverity(ctx, p.TargetProtocol, p.SeverityScore); err != nil {
		log.Printf("CRITICAL: risk blend failed for protocol %s after prediction %d: %v", p.TargetProtocol, p.ID, err)
	}

	metrics.PredictionsSubmittedTotal.Inc()
	metrics.TotalStaked.Add(float64(req.StakeAmount))
	if s.events != nil {
		s.events.EmitPredictionSubmitted(p)
	}
	return p, nil
}

func (s *Service) validateSubmit(req *SubmitRequest) error {
	if !validation.IsValidPrincipal(req.Predictor) {
		return fmt.Errorf("%w: invalid predictor address", ErrInvalidPrediction)
	}
	if !validation.IsValidProtocol(req.TargetProtocol) {
		return fmt.Errorf("%w: invalid target protocol", ErrInvalidPrediction)
	}
	if !validation.IsValidVulnType(req.VulnType) {
		return fmt.Errorf("%w: invalid vulnerability type", ErrInvalidPrediction)
	}
	if req.SeverityScore > MaxScore {
		return fmt.Errorf("%w: severity score must be 0-100", ErrInvalidPrediction)
	}
	if req.AIConfidence > MaxScore {
		return fmt.Errorf("%w: AI confidence must be 0-100", ErrInvalidPrediction)
	}
	if req.PredictedLoss == 0 {
		return fmt.Errorf("%w: predicted loss must be positive", ErrInvalidPrediction)
	}
	if req.StakeAmount < s.minStake {
		return fmt.Errorf("%w: stake %d below minimum %d", ErrInsufficientStake, req.StakeAmount, s.minStake)
	}
	return nil
}

func (s *Service) refundStake(ctx context.Context, predictor string, amount uint64, reason string) {
	if err := s.transfer.Transfer(ctx, amount, s.escrow, predictor, "refund: "+reason); err != nil {
		log.Printf("CRITICAL: failed to refund stake %d to %s after %s: %v", amount, predictor, reason, err)
	}
}

// ResolveRequest carries a resolution attempt.
type ResolveRequest struct {
	PredictionID      uint64 `json:"predictionId"`
	ResolutionOracle  string `json:"resolutionOracle" binding:"required"`
	ActualLoss        uint64 `json:"actualLoss"`
	IncidentConfirmed bool   `json:"incidentConfirmed"`
	VerificationHash  string `json:"verificationHash" binding:"required"`
}

// Resolve settles a prediction once its window has closed. Exactly one
// resolution wins per prediction; the winner's verdict drives reward
// accrual, oracle reputation, and protocol risk.
func (s *Service) Resolve(ctx context.Context, req ResolveRequest) (*Prediction, *Outcome, error) {
	ctx, span := traces.StartSpan(ctx, "predictions.Resolve",
		traces.PredictionID(req.PredictionID), traces.Principal(req.ResolutionOracle))
	defer span.End()

	unlock, err := s.opLock.Lock(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	if !validation.IsValidVerificationHash(req.VerificationHash) {
		return nil, nil, fmt.Errorf("%w: invalid verification hash", ErrInvalidPrediction)
	}

	resolver := strings.ToLower(req.ResolutionOracle)
	if _, err := s.oracles.Authorize(ctx, resolver); err != nil {
		return nil, nil, fmt.Errorf("%w: resolver is not an active oracle", ErrUnauthorized)
	}

	p, err := s.store.GetPrediction(ctx, req.PredictionID)
	if err != nil {
		return nil, nil, err
	}
	if p.Resolved {
		return nil, nil, ErrAlreadyResolved
	}
	if current := s.heights.Current(); current < p.ResolutionHeight {
		return nil, nil, fmt.Errorf("%w: %d heights remaining",
			ErrWindowNotYetClosed, p.ResolutionHeight-current)
	}

	accurate := IsAccurate(p.PredictedLoss, req.ActualLoss, req.IncidentConfirmed)

	o := &Outcome{
		PredictionID:      p.ID,
		ActualLoss:        req.ActualLoss,
		IncidentConfirmed: req.IncidentConfirmed,
		ResolutionOracle:  resolver,
		VerificationHash:  req.VerificationHash,
		ResolvedAt:        time.Now(),
	}

	// A resolution either lands in full or not at all: the verdict flip,
	// the outcome record, the resolver's standing, the reward, and the
	// incident must move together.
	apply := func(ctx context.Context) error {
		if err := s.store.MarkResolved(ctx, p.ID, accurate); err != nil {
			return err
		}
		if err := s.store.CreateOutcome(ctx, o); err != nil {
			return fmt.Errorf("record outcome: %w", err)
		}
		if err := s.oracles.ApplyResolution(ctx, resolver, accurate); err != nil {
			return fmt.Errorf("update resolver standing: %w", err)
		}
		if accurate {
			reward := CalculateReward(p.StakeAmount, p.SeverityScore, p.AIConfidence)
			if _, err := s.rewards.Accrue(ctx, p.Predictor, reward); err != nil {
				return fmt.Errorf("accrue reward: %w", err)
			}
		}
		if req.IncidentConfirmed {
			if _, err := s.risk.RecordIncident(ctx, p.TargetProtocol, req.ActualLoss); err != nil {
				return fmt.Errorf("record incident: %w", err)
			}
		}
		return nil
	}

	if s.txb != nil {
		tx, err := s.txb.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return nil, nil, fmt.Errorf("begin resolution: %w", err)
		}
		if err := apply(database.WithTx(ctx, tx)); err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				log.Printf("CRITICAL: rollback failed for prediction %d resolution: %v", p.ID, rerr)
			}
			span.SetStatus(codes.Error, "resolution aborted")
			return nil, nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, nil, fmt.Errorf("commit resolution: %w", err)
		}
	} else if err := apply(ctx); err != nil {
		return nil, nil, err
	}
	p.Resolved = true
	p.Accurate = accurate

	verdict := "inaccurate"
	if accurate {
		verdict = "accurate"
	}
	metrics.PredictionsResolvedTotal.WithLabelValues(verdict).Inc()
	if s.events != nil {
		s.events.EmitPredictionResolved(p, o)
	}
	return p, o, nil
}

// IsAccurate applies the accuracy rule: the incident must be confirmed
// and the loss deviation must be strictly under the threshold percentage
// of the predicted loss. All arithmetic truncates.
func IsAccurate(predictedLoss, actualLoss uint64, incidentConfirmed bool) bool {
	if !incidentConfirmed {
		return false
	}
	var deviation uint64
	if actualLoss > predictedLoss {
		deviation = actualLoss - predictedLoss
	} else {
		deviation = predictedLoss - actualLoss
	}
	return deviation*100/predictedLoss < AccuracyDeviationPct
}

// CalculateReward computes the payout for an accurate prediction:
// stake scaled by severity, then boosted by AI confidence. The two
// divisions happen in sequence and truncate, matching the settlement
// contract exactly.
func CalculateReward(stake, severity, aiConfidence uint64) uint64 {
	base := stake * severity / 100
	return base * (100 + aiConfidence) / 100
}

// Get returns a prediction by ID.
func (s *Service) Get(ctx context.Context, id uint64) (*Prediction, error) {
	return s.store.GetPrediction(ctx, id)
}

// GetOutcome returns the outcome for a resolved prediction.
func (s *Service) GetOutcome(ctx context.Context, id uint64) (*Outcome, error) {
	return s.store.GetOutcome(ctx, id)
}

// WindowStatus reports whether a prediction's window is still open and
// how many heights remain.
func (s *Service) WindowStatus(ctx context.Context, id uint64) (open bool, remaining uint64, err error) {
	p, err := s.store.GetPrediction(ctx, id)
	if err != nil {
		return false, 0, err
	}
	current := s.heights.Current()
	if current < p.ResolutionHeight {
		return true, p.ResolutionHeight - current, nil
	}
	return false, 0, nil
}

// ListByPredictor returns a predictor's recent predictions.
func (s *Service) ListByPredictor(ctx context.Context, predictor string, limit int) ([]*Prediction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListByPredictor(ctx, strings.ToLower(predictor), limit)
}

// ListByProtocol returns a protocol's recent predictions.
func (s *Service) ListByProtocol(ctx context.Context, protocol string, limit int) ([]*Prediction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListByProtocol(ctx, protocol, limit)
}

// Stats returns market-wide totals.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.store.Stats(ctx)
}

// MinStake returns the configured minimum stake.
func (s *Service) MinStake() uint64 { return s.minStake }
