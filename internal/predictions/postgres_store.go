package predictions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/breachmarket/breachmarket/internal/database"
)

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed prediction store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) q(ctx context.Context) database.Queryer {
	return database.Q(ctx, p.db)
}

func (p *PostgresStore) CreatePrediction(ctx context.Context, pr *Prediction) error {
	err := p.q(ctx).QueryRowContext(ctx, `
		INSERT INTO predictions (
			predictor, target_protocol, vuln_type,
			severity_score, ai_confidence, predicted_loss,
			stake_amount, submission_height, resolution_height,
			resolved, accurate, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, false, $10)
		RETURNING id
	`, pr.Predictor, pr.TargetProtocol, pr.VulnType,
		pr.SeverityScore, pr.AIConfidence, pr.PredictedLoss,
		pr.StakeAmount, pr.SubmissionHeight, pr.ResolutionHeight,
		pr.CreatedAt).Scan(&pr.ID)
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetPrediction(ctx context.Context, id uint64) (*Prediction, error) {
	pr := &Prediction{}
	err := p.q(ctx).QueryRowContext(ctx, selectPrediction+` WHERE id = $1`, id).
		Scan(scanTargets(pr)...)
	if err == sql.ErrNoRows {
		return nil, ErrPredictionNotFound
	}
	if err != nil {
		return nil, err
	}
	return pr, nil
}

// MarkResolved uses a conditional update so concurrent resolvers cannot
// both win: exactly one caller flips resolved, the rest see
// ErrAlreadyResolved.
func (p *PostgresStore) MarkResolved(ctx context.Context, id uint64, accurate bool) error {
	res, err := p.q(ctx).ExecContext(ctx, `
		UPDATE predictions SET resolved = true, accurate = $2
		WHERE id = $1 AND resolved = false
	`, id, accurate)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := p.q(ctx).QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM predictions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrPredictionNotFound
	}
	return ErrAlreadyResolved
}

func (p *PostgresStore) CreateOutcome(ctx context.Context, o *Outcome) error {
	_, err := p.q(ctx).ExecContext(ctx, `
		INSERT INTO outcomes (
			prediction_id, actual_loss, incident_confirmed,
			resolution_oracle, verification_hash, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`, o.PredictionID, o.ActualLoss, o.IncidentConfirmed,
		o.ResolutionOracle, o.VerificationHash, o.ResolvedAt)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetOutcome(ctx context.Context, predictionID uint64) (*Outcome, error) {
	o := &Outcome{}
	err := p.q(ctx).QueryRowContext(ctx, `
		SELECT prediction_id, actual_loss, incident_confirmed,
		       resolution_oracle, verification_hash, resolved_at
		FROM outcomes WHERE prediction_id = $1
	`, predictionID).Scan(&o.PredictionID, &o.ActualLoss, &o.IncidentConfirmed,
		&o.ResolutionOracle, &o.VerificationHash, &o.ResolvedAt)
	if err == sql.ErrNoRows {
		return nil, ErrPredictionNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (p *PostgresStore) ListByPredictor(ctx context.Context, predictor string, limit int) ([]*Prediction, error) {
	return p.list(ctx, `WHERE predictor = $1 ORDER BY id DESC LIMIT $2`, predictor, limit)
}

func (p *PostgresStore) ListByProtocol(ctx context.Context, protocol string, limit int) ([]*Prediction, error) {
	return p.list(ctx, `WHERE target_protocol = $1 ORDER BY id DESC LIMIT $2`, protocol, limit)
}

func (p *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	err := p.q(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE resolved),
		       COUNT(*) FILTER (WHERE resolved AND accurate),
		       COALESCE(SUM(stake_amount), 0)
		FROM predictions
	`).Scan(&st.TotalPredictions, &st.ResolvedPredictions, &st.AccuratePredictions, &st.TotalStaked)
	if err != nil {
		return nil, err
	}
	return st, nil
}

const selectPrediction = `
	SELECT id, predictor, target_protocol, vuln_type,
	       severity_score, ai_confidence, predicted_loss,
	       stake_amount, submission_height, resolution_height,
	       resolved, accurate, created_at
	FROM predictions`

func scanTargets(pr *Prediction) []interface{} {
	return []interface{}{
		&pr.ID, &pr.Predictor, &pr.TargetProtocol, &pr.VulnType,
		&pr.SeverityScore, &pr.AIConfidence, &pr.PredictedLoss,
		&pr.StakeAmount, &pr.SubmissionHeight, &pr.ResolutionHeight,
		&pr.Resolved, &pr.Accurate, &pr.CreatedAt,
	}
}

func (p *PostgresStore) list(ctx context.Context, clause string, arg interface{}, limit int) ([]*Prediction, error) {
	rows, err := p.q(ctx).QueryContext(ctx, selectPrediction+" "+clause, arg, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Prediction
	for rows.Next() {
		pr := &Prediction{}
		if err := rows.Scan(scanTargets(pr)...); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}
