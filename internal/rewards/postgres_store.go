package rewards

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

// NewPostgresStore creates a new PostgreSQL-backed rewards store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) q(ctx context.Context) database.Queryer {
	return database.Q(ctx, p.db)
}

func (p *PostgresStore) GetAccount(ctx context.Context, predictor string) (*Account, error) {
	a := &Account{Predictor: predictor}
	err := p.q(ctx).QueryRowContext(ctx, `
		SELECT total_earned, unclaimed, prediction_count, accuracy_rate
		FROM reward_accounts WHERE predictor = $1
	`, predictor).Scan(&a.TotalEarned, &a.Unclaimed, &a.PredictionCount, &a.AccuracyRate)
	if err == sql.ErrNoRows {
		return &Account{Predictor: predictor}, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (p *PostgresStore) UpsertAccount(ctx context.Context, a *Account) error {
	_, err := p.q(ctx).ExecContext(ctx, `
		INSERT INTO reward_accounts (predictor, total_earned, unclaimed, prediction_count, accuracy_rate)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (predictor) DO UPDATE SET
			total_earned     = $2,
			unclaimed        = $3,
			prediction_count = $4,
			accuracy_rate    = $5
	`, a.Predictor, a.TotalEarned, a.Unclaimed, a.PredictionCount, a.AccuracyRate)
	if err != nil {
		return fmt.Errorf("upsert reward account: %w", err)
	}
	return nil
}

// DrainUnclaimed zeroes the balance and returns what it held in a single
// statement, so concurrent claimers cannot both observe the same balance.
func (p *PostgresStore) DrainUnclaimed(ctx context.Context, predictor string) (uint64, error) {
	var amount uint64
	err := p.q(ctx).QueryRowContext(ctx, `
		UPDATE reward_accounts AS r
		SET unclaimed = 0
		FROM (
			SELECT predictor, unclaimed FROM reward_accounts
			WHERE predictor = $1 FOR UPDATE
		) AS prev
		WHERE r.predictor = prev.predictor AND prev.unclaimed > 0
		RETURNING prev.unclaimed
	`, predictor).Scan(&amount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("drain unclaimed: %w", err)
	}
	return amount, nil
}

func (p *PostgresStore) RestoreUnclaimed(ctx context.Context, predictor string, amount uint64) error {
	_, err := p.q(ctx).ExecContext(ctx, `
		INSERT INTO reward_accounts (predictor, total_earned, unclaimed, prediction_count, accuracy_rate)
		VALUES ($1, 0, $2, 0, 0)
		ON CONFLICT (predictor) DO UPDATE SET
			unclaimed = reward_accounts.unclaimed + $2
	`, predictor, amount)
	if err != nil {
		return fmt.Errorf("restore unclaimed: %w", err)
	}
	return nil
}

func (p *PostgresStore) ListAccounts(ctx context.Context, limit int) ([]*Account, error) {
	rows, err := p.q(ctx).QueryContext(ctx, `
		SELECT predictor, total_earned, unclaimed, prediction_count, accuracy_rate
		FROM reward_accounts
		ORDER BY total_earned DESC, predictor ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		a := &Account{}
		if err := rows.Scan(&a.Predictor, &a.TotalEarned, &a.Unclaimed, &a.PredictionCount, &a.AccuracyRate); err != nil {
			return nil, fmt.Errorf("scan reward account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
