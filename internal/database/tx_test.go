package database

import (
	"context"
	"database/sql"
	"testing"
)

func TestTxFromEmptyContext(t *testing.T) {
	if tx, ok := TxFrom(context.Background()); ok || tx != nil {
		t.Errorf("Expected no transaction, got %v", tx)
	}
}

func TestWithTxRoundTrip(t *testing.T) {
	tx := &sql.Tx{}
	ctx := WithTx(context.Background(), tx)

	got, ok := TxFrom(ctx)
	if !ok {
		t.Fatal("Expected a transaction in context")
	}
	if got != tx {
		t.Error("Got a different transaction than was stored")
	}
}

func TestQPrefersTx(t *testing.T) {
	db := &sql.DB{}
	tx := &sql.Tx{}

	if q := Q(context.Background(), db); q != Queryer(db) {
		t.Error("Expected db when context carries no transaction")
	}
	if q := Q(WithTx(context.Background(), tx), db); q != Queryer(tx) {
		t.Error("Expected the context transaction to win")
	}
}
