//go:build integration

package rewards

import (
	"context"
	"testing"

	"github.com/breachmarket/breachmarket/internal/testutil"
)

func TestPostgres_AccountRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	a := &Account{
		Predictor:       "0xaaaa000000000000000000000000000000000001",
		TotalEarned:     12_000_000,
		Unclaimed:       12_000_000,
		PredictionCount: 1,
		AccuracyRate:    10_000,
	}
	if err := store.UpsertAccount(ctx, a); err != nil {
		t.Fatalf("UpsertAccount failed: %v", err)
	}

	got, err := store.GetAccount(ctx, a.Predictor)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if got.TotalEarned != a.TotalEarned || got.Unclaimed != a.Unclaimed {
		t.Errorf("got = %+v", got)
	}
}

func TestPostgres_DrainUnclaimedOnce(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	predictor := "0xaaaa000000000000000000000000000000000001"

	a := &Account{Predictor: predictor, TotalEarned: 5_000_000, Unclaimed: 5_000_000, PredictionCount: 1, AccuracyRate: 10_000}
	if err := store.UpsertAccount(ctx, a); err != nil {
		t.Fatalf("UpsertAccount failed: %v", err)
	}

	amount, err := store.DrainUnclaimed(ctx, predictor)
	if err != nil {
		t.Fatalf("DrainUnclaimed failed: %v", err)
	}
	if amount != 5_000_000 {
		t.Errorf("drained = %d, want 5000000", amount)
	}

	// The drained balance is gone; a second drain finds nothing.
	amount, err = store.DrainUnclaimed(ctx, predictor)
	if err != nil {
		t.Fatalf("second DrainUnclaimed failed: %v", err)
	}
	if amount != 0 {
		t.Errorf("second drain = %d, want 0", amount)
	}

	got, _ := store.GetAccount(ctx, predictor)
	if got.Unclaimed != 0 {
		t.Errorf("Unclaimed = %d after drain, want 0", got.Unclaimed)
	}
	if got.TotalEarned != 5_000_000 {
		t.Errorf("TotalEarned = %d, drain should not touch it", got.TotalEarned)
	}
}

func TestPostgres_DrainUnknownPredictor(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	amount, err := store.DrainUnclaimed(context.Background(), "0xaaaa000000000000000000000000000000000009")
	if err != nil {
		t.Fatalf("DrainUnclaimed failed: %v", err)
	}
	if amount != 0 {
		t.Errorf("drained = %d from unknown predictor, want 0", amount)
	}
}

func TestPostgres_RestoreUnclaimed(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	predictor := "0xaaaa000000000000000000000000000000000001"

	a := &Account{Predictor: predictor, TotalEarned: 3_000_000, Unclaimed: 3_000_000, PredictionCount: 1, AccuracyRate: 10_000}
	store.UpsertAccount(ctx, a)

	amount, _ := store.DrainUnclaimed(ctx, predictor)
	if err := store.RestoreUnclaimed(ctx, predictor, amount); err != nil {
		t.Fatalf("RestoreUnclaimed failed: %v", err)
	}

	got, _ := store.GetAccount(ctx, predictor)
	if got.Unclaimed != 3_000_000 {
		t.Errorf("Unclaimed = %d after restore, want 3000000", got.Unclaimed)
	}
}
