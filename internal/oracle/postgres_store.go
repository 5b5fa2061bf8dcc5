package oracle

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/breachmarket/breachmarket/internal/database"
)

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed oracle store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// q returns the context's transaction when one is in flight, else the pool.
func (p *PostgresStore) q(ctx context.Context) database.Queryer {
	return database.Q(ctx, p.db)
}

func (p *PostgresStore) CreateOracle(ctx context.Context, o *Oracle) error {
	err := p.q(ctx).QueryRowContext(ctx, `
		INSERT INTO oracles (
			principal, credential, reputation_score,
			total_predictions, accurate_predictions,
			registration_height, is_active, registered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING sequence
	`, o.Principal, o.Credential, o.ReputationScore,
		o.TotalPredictions, o.AccuratePredictions,
		o.RegistrationHeight, o.IsActive, o.RegisteredAt).Scan(&o.Sequence)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrAlreadyRegistered
		}
		return fmt.Errorf("insert oracle: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetOracle(ctx context.Context, principal string) (*Oracle, error) {
	o := &Oracle{}
	err := p.q(ctx).QueryRowContext(ctx, `
		SELECT principal, sequence, credential, reputation_score,
		       total_predictions, accurate_predictions,
		       registration_height, is_active, registered_at
		FROM oracles WHERE principal = $1
	`, principal).Scan(&o.Principal, &o.Sequence, &o.Credential, &o.ReputationScore,
		&o.TotalPredictions, &o.AccuratePredictions,
		&o.RegistrationHeight, &o.IsActive, &o.RegisteredAt)
	if err == sql.ErrNoRows {
		return nil, ErrOracleNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (p *PostgresStore) UpdateOracle(ctx context.Context, o *Oracle) error {
	res, err := p.q(ctx).ExecContext(ctx, `
		UPDATE oracles SET
			reputation_score     = $2,
			total_predictions    = $3,
			accurate_predictions = $4,
			is_active            = $5
		WHERE principal = $1
	`, o.Principal, o.ReputationScore, o.TotalPredictions, o.AccuratePredictions, o.IsActive)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOracleNotFound
	}
	return nil
}

func (p *PostgresStore) ListOracles(ctx context.Context, limit int) ([]*Oracle, error) {
	rows, err := p.q(ctx).QueryContext(ctx, `
		SELECT principal, sequence, credential, reputation_score,
		       total_predictions, accurate_predictions,
		       registration_height, is_active, registered_at
		FROM oracles
		ORDER BY reputation_score DESC, principal ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var oracles []*Oracle
	for rows.Next() {
		o := &Oracle{}
		if err := rows.Scan(&o.Principal, &o.Sequence, &o.Credential, &o.ReputationScore,
			&o.TotalPredictions, &o.AccuratePredictions,
			&o.RegistrationHeight, &o.IsActive, &o.RegisteredAt); err != nil {
			return nil, fmt.Errorf("scan oracle: %w", err)
		}
		oracles = append(oracles, o)
	}
	return oracles, rows.Err()
}

func (p *PostgresStore) Count(ctx context.Context) (uint64, error) {
	var n uint64
	err := p.q(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM oracles`).Scan(&n)
	return n, err
}
