package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/breachmarket/breachmarket/internal/idgen"
)

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed ledger store.
// Schema is managed by the goose migrations under migrations/.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) GetAccount(ctx context.Context, addr string) (*Account, error) {
	acct := &Account{Addr: addr}
	err := p.db.QueryRowContext(ctx, `
		SELECT available, total_in, total_out, updated_at
		FROM accounts WHERE addr = $1
	`, addr).Scan(&acct.Available, &acct.TotalIn, &acct.TotalOut, &acct.UpdatedAt)
	if err == sql.ErrNoRows {
		return &Account{Addr: addr}, nil
	}
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func (p *PostgresStore) Credit(ctx context.Context, addr string, amount uint64, counterpart, description string) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (addr, available, total_in, updated_at)
		VALUES ($1, $2, $2, NOW())
		ON CONFLICT (addr) DO UPDATE SET
			available  = accounts.available + $2,
			total_in   = accounts.total_in  + $2,
			updated_at = NOW()
	`, addr, amount)
	if err != nil {
		return err
	}

	typ := "deposit"
	if counterpart != "" {
		typ = "transfer_in"
	}
	if err := insertEntry(ctx, tx, addr, typ, amount, counterpart, description); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) Debit(ctx context.Context, addr string, amount uint64, counterpart, description string) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE accounts SET
			available  = available - $2,
			total_out  = total_out + $2,
			updated_at = NOW()
		WHERE addr = $1 AND available >= $2
	`, addr, amount)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientBalance
	}

	if err := insertEntry(ctx, tx, addr, "transfer_out", amount, counterpart, description); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) GetHistory(ctx context.Context, addr string, limit int) ([]*Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, addr, type, amount, COALESCE(counterpart, ''), COALESCE(description, ''), created_at
		FROM ledger_entries
		WHERE addr = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, addr, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.ID, &e.Addr, &e.Type, &e.Amount, &e.Counterpart, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func insertEntry(ctx context.Context, tx *sql.Tx, addr, typ string, amount uint64, counterpart, description string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, addr, type, amount, counterpart, description, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NOW())
	`, idgen.New(), addr, typ, amount, counterpart, description)
	return err
}
