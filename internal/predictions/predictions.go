// Package predictions implements the breach prediction market core.
//
// A registered oracle stakes on a claim that a protocol will suffer a
// security incident. After the resolution window closes, any active
// oracle can resolve the prediction against the observed outcome;
// accurate predictions accrue rewards and adjust protocol risk and
// oracle reputation.
package predictions

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidPrediction  = errors.New("invalid prediction")
	ErrInsufficientStake  = errors.New("insufficient stake")
	ErrPredictionNotFound = errors.New("prediction not found")
	ErrAlreadyResolved    = errors.New("prediction already resolved")
	ErrWindowNotYetClosed = errors.New("resolution window not yet closed")
	ErrTransferFailed     = errors.New("transfer failed")
	ErrUnauthorized       = errors.New("unauthorized")
)

// MaxScore bounds severity and AI confidence.
const MaxScore = 100

// AccuracyDeviationPct: a confirmed incident counts as accurately
// predicted when the loss deviation is strictly under this percentage
// of the predicted loss.
const AccuracyDeviationPct = 20

// Prediction is a staked breach forecast.
type Prediction struct {
	ID               uint64    `json:"id"`
	Predictor        string    `json:"predictor"`
	TargetProtocol   string    `json:"targetProtocol"`
	VulnType         string    `json:"vulnType"`
	SeverityScore    uint64    `json:"severityScore"` // 0-100
	AIConfidence     uint64    `json:"aiConfidence"`  // 0-100
	PredictedLoss    uint64    `json:"predictedLoss"` // smallest units, > 0
	StakeAmount      uint64    `json:"stakeAmount"`
	SubmissionHeight uint64    `json:"submissionHeight"`
	ResolutionHeight uint64    `json:"resolutionHeight"`
	Resolved         bool      `json:"resolved"`
	Accurate         bool      `json:"accurate"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Outcome records how a prediction resolved.
type Outcome struct {
	PredictionID      uint64    `json:"predictionId"`
	ActualLoss        uint64    `json:"actualLoss"`
	IncidentConfirmed bool      `json:"incidentConfirmed"`
	ResolutionOracle  string    `json:"resolutionOracle"`
	VerificationHash  string    `json:"verificationHash"`
	ResolvedAt        time.Time `json:"resolvedAt"`
}

// Stats summarizes market activity.
type Stats struct {
	TotalPredictions    uint64 `json:"totalPredictions"`
	ResolvedPredictions uint64 `json:"resolvedPredictions"`
	AccuratePredictions uint64 `json:"accuratePredictions"`
	TotalStaked         uint64 `json:"totalStaked"`
}

// Store persists predictions and outcomes.
type Store interface {
	// CreatePrediction assigns the next sequential ID and persists p.
	CreatePrediction(ctx context.Context, p *Prediction) error
	GetPrediction(ctx context.Context, id uint64) (*Prediction, error)
	// MarkResolved flips resolved from false to true exactly once.
	// A second call for the same id returns ErrAlreadyResolved.
	MarkResolved(ctx context.Context, id uint64, accurate bool) error
	CreateOutcome(ctx context.Context, o *Outcome) error
	GetOutcome(ctx context.Context, predictionID uint64) (*Outcome, error)
	ListByPredictor(ctx context.Context, predictor string, limit int) ([]*Prediction, error)
	ListByProtocol(ctx context.Context, protocol string, limit int) ([]*Prediction, error)
	Stats(ctx context.Context) (*Stats, error)
}
