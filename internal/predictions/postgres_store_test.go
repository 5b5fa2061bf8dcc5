//go:build integration

package predictions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/breachmarket/breachmarket/internal/database"
	"github.com/breachmarket/breachmarket/internal/testutil"
)

func testPrediction() *Prediction {
	return &Prediction{
		Predictor:        "0xaaaa000000000000000000000000000000000001",
		TargetProtocol:   "aave-v3",
		VulnType:         "reentrancy",
		SeverityScore:    80,
		AIConfidence:     50,
		PredictedLoss:    10_000_000,
		StakeAmount:      10_000_000,
		SubmissionHeight: 1000,
		ResolutionHeight: 2008,
		CreatedAt:        time.Now(),
	}
}

func TestPostgres_CreateAndGetPrediction(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	p := testPrediction()
	if err := store.CreatePrediction(ctx, p); err != nil {
		t.Fatalf("CreatePrediction failed: %v", err)
	}
	if p.ID == 0 {
		t.Fatal("ID not assigned")
	}

	got, err := store.GetPrediction(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPrediction failed: %v", err)
	}
	if got.Predictor != p.Predictor || got.StakeAmount != p.StakeAmount {
		t.Errorf("got = %+v", got)
	}
	if got.Resolved {
		t.Error("new prediction should be unresolved")
	}
}

func TestPostgres_MarkResolvedOnce(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	p := testPrediction()
	if err := store.CreatePrediction(ctx, p); err != nil {
		t.Fatalf("CreatePrediction failed: %v", err)
	}

	if err := store.MarkResolved(ctx, p.ID, true); err != nil {
		t.Fatalf("MarkResolved failed: %v", err)
	}
	if err := store.MarkResolved(ctx, p.ID, false); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("second MarkResolved err = %v, want ErrAlreadyResolved", err)
	}

	got, _ := store.GetPrediction(ctx, p.ID)
	if !got.Resolved || !got.Accurate {
		t.Errorf("first verdict lost: %+v", got)
	}
}

func TestPostgres_MarkResolvedMissing(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	if err := store.MarkResolved(context.Background(), 999999, true); !errors.Is(err, ErrPredictionNotFound) {
		t.Errorf("err = %v, want ErrPredictionNotFound", err)
	}
}

func TestPostgres_MarkResolvedInTransaction(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	p := testPrediction()
	if err := store.CreatePrediction(ctx, p); err != nil {
		t.Fatalf("CreatePrediction failed: %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}
	txCtx := database.WithTx(ctx, tx)
	if err := store.MarkResolved(txCtx, p.ID, true); err != nil {
		t.Fatalf("MarkResolved in tx failed: %v", err)
	}

	// Uncommitted writes stay invisible outside the transaction.
	got, err := store.GetPrediction(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPrediction failed: %v", err)
	}
	if got.Resolved {
		t.Error("verdict visible before commit")
	}

	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	got, _ = store.GetPrediction(ctx, p.ID)
	if got.Resolved {
		t.Error("verdict survived rollback")
	}

	// A committed transaction lands.
	tx, err = db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}
	txCtx = database.WithTx(ctx, tx)
	if err := store.MarkResolved(txCtx, p.ID, true); err != nil {
		t.Fatalf("MarkResolved in tx failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	got, _ = store.GetPrediction(ctx, p.ID)
	if !got.Resolved || !got.Accurate {
		t.Errorf("committed verdict lost: %+v", got)
	}
}

func TestPostgres_OutcomeRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	p := testPrediction()
	store.CreatePrediction(ctx, p)
	store.MarkResolved(ctx, p.ID, true)

	o := &Outcome{
		PredictionID:      p.ID,
		ActualLoss:        10_500_000,
		IncidentConfirmed: true,
		ResolutionOracle:  "0xaaaa000000000000000000000000000000000002",
		VerificationHash:  "a3f5c1d2e4b6a8c0d2e4f6a8b0c2d4e6f8a0b2c4d6e8f0a2b4c6d8e0f2a4b6c8",
		ResolvedAt:        time.Now(),
	}
	if err := store.CreateOutcome(ctx, o); err != nil {
		t.Fatalf("CreateOutcome failed: %v", err)
	}

	got, err := store.GetOutcome(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetOutcome failed: %v", err)
	}
	if got.ActualLoss != o.ActualLoss || !got.IncidentConfirmed {
		t.Errorf("got = %+v", got)
	}
}

func TestPostgres_Stats(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	p1 := testPrediction()
	p2 := testPrediction()
	store.CreatePrediction(ctx, p1)
	store.CreatePrediction(ctx, p2)
	store.MarkResolved(ctx, p1.ID, true)

	st, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.TotalPredictions != 2 || st.ResolvedPredictions != 1 || st.AccuratePredictions != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.TotalStaked != 20_000_000 {
		t.Errorf("TotalStaked = %d", st.TotalStaked)
	}
}
