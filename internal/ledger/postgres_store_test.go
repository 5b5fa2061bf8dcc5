//go:build integration

package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/breachmarket/breachmarket/internal/testutil"
)

func TestPostgres_CreditAndGetAccount(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	addr := "0xaaaa000000000000000000000000000000000001"

	if err := store.Credit(ctx, addr, 10_500_000, "", "test deposit"); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	acct, err := store.GetAccount(ctx, addr)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if acct.Available != 10_500_000 || acct.TotalIn != 10_500_000 {
		t.Errorf("account = %+v", acct)
	}
}

func TestPostgres_DebitInsufficient(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	addr := "0xaaaa000000000000000000000000000000000002"

	if err := store.Credit(ctx, addr, 1_000_000, "", "seed"); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}
	if err := store.Debit(ctx, addr, 2_000_000, "", "overdraw"); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("err = %v, want ErrInsufficientBalance", err)
	}

	acct, _ := store.GetAccount(ctx, addr)
	if acct.Available != 1_000_000 {
		t.Errorf("Available = %d, want untouched 1000000", acct.Available)
	}
}

func TestPostgres_UnknownAccountIsZero(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	acct, err := store.GetAccount(context.Background(), "0xaaaa000000000000000000000000000000000099")
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if acct.Available != 0 {
		t.Errorf("Available = %d, want 0", acct.Available)
	}
}

func TestPostgres_History(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	addr := "0xaaaa000000000000000000000000000000000003"

	store.Credit(ctx, addr, 5_000_000, "", "seed")
	store.Debit(ctx, addr, 1_000_000, "0xbbb", "stake")

	entries, err := store.GetHistory(ctx, addr, 10)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
}
