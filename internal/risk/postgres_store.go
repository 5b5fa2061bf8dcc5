package risk

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

// NewPostgresStore creates a new PostgreSQL-backed risk store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) q(ctx context.Context) database.Queryer {
	return database.Q(ctx, p.db)
}

func (p *PostgresStore) GetScore(ctx context.Context, protocol string) (*Score, error) {
	s := &Score{Protocol: protocol}
	err := p.q(ctx).QueryRowContext(ctx, `
		SELECT current_risk, last_updated, incidents_count, total_losses
		FROM risk_scores WHERE protocol = $1
	`, protocol).Scan(&s.CurrentRisk, &s.LastUpdated, &s.IncidentsCount, &s.TotalLosses)
	if err == sql.ErrNoRows {
		return &Score{Protocol: protocol}, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (p *PostgresStore) UpsertScore(ctx context.Context, s *Score) error {
	_, err := p.q(ctx).ExecContext(ctx, `
		INSERT INTO risk_scores (protocol, current_risk, last_updated, incidents_count, total_losses)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (protocol) DO UPDATE SET
			current_risk    = $2,
			last_updated    = $3,
			incidents_count = $4,
			total_losses    = $5
	`, s.Protocol, s.CurrentRisk, s.LastUpdated, s.IncidentsCount, s.TotalLosses)
	if err != nil {
		return fmt.Errorf("upsert risk score: %w", err)
	}
	return nil
}

func (p *PostgresStore) ListScores(ctx context.Context, limit int) ([]*Score, error) {
	rows, err := p.q(ctx).QueryContext(ctx, `
		SELECT protocol, current_risk, last_updated, incidents_count, total_losses
		FROM risk_scores
		ORDER BY current_risk DESC, protocol ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []*Score
	for rows.Next() {
		s := &Score{}
		if err := rows.Scan(&s.Protocol, &s.CurrentRisk, &s.LastUpdated, &s.IncidentsCount, &s.TotalLosses); err != nil {
			return nil, fmt.Errorf("scan risk score: %w", err)
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}
