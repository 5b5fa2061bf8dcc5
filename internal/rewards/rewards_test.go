package rewards

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

type fakeTransfer struct {
	calls    []string
	failNext error
}

func (f *fakeTransfer) Transfer(ctx context.Context, amount uint64, from, to string, description string) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.calls = append(f.calls, fmt.Sprintf("%d:%s->%s", amount, from, to))
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeTransfer) {
	t.Helper()
	tr := &fakeTransfer{}
	return NewService(NewMemoryStore(), tr, "0xEscrow"), tr
}

func TestAccrue(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Accrue(ctx, "0xAAA", 12_000_000)
	if err != nil {
		t.Fatalf("Accrue: %v", err)
	}
	if a.TotalEarned != 12_000_000 || a.Unclaimed != 12_000_000 {
		t.Errorf("earned/unclaimed = %d/%d", a.TotalEarned, a.Unclaimed)
	}
	if a.PredictionCount != 1 {
		t.Errorf("PredictionCount = %d, want 1", a.PredictionCount)
	}
	// First accrual: (0+100)*100/1.
	if a.AccuracyRate != 10_000 {
		t.Errorf("AccuracyRate = %d, want 10000", a.AccuracyRate)
	}

	a, err = svc.Accrue(ctx, "0xaaa", 3_000_000)
	if err != nil {
		t.Fatalf("Accrue: %v", err)
	}
	if a.TotalEarned != 15_000_000 {
		t.Errorf("TotalEarned = %d, want 15000000", a.TotalEarned)
	}
	// Second accrual: (10000+100)*100/2.
	if a.AccuracyRate != 505_000 {
		t.Errorf("AccuracyRate = %d, want 505000", a.AccuracyRate)
	}
}

func TestClaim(t *testing.T) {
	svc, tr := newTestService(t)
	ctx := context.Background()

	svc.Accrue(ctx, "0xaaa", 7_000_000)

	amount, err := svc.Claim(ctx, "0xaaa")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if amount != 7_000_000 {
		t.Errorf("claimed = %d, want 7000000", amount)
	}
	if len(tr.calls) != 1 || tr.calls[0] != "7000000:0xescrow->0xaaa" {
		t.Errorf("transfer calls = %v", tr.calls)
	}

	a, _ := svc.Account(ctx, "0xaaa")
	if a.Unclaimed != 0 {
		t.Errorf("Unclaimed = %d after claim, want 0", a.Unclaimed)
	}
	if a.TotalEarned != 7_000_000 {
		t.Errorf("TotalEarned = %d, claim should not touch it", a.TotalEarned)
	}
}

func TestClaimNothing(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Claim(context.Background(), "0xaaa"); !errors.Is(err, ErrNothingToClaim) {
		t.Errorf("err = %v, want ErrNothingToClaim", err)
	}
}

func TestClaimTwice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	svc.Accrue(ctx, "0xaaa", 1_000_000)
	if _, err := svc.Claim(ctx, "0xaaa"); err != nil {
		t.Fatalf("first Claim: %v", err)
	}
	if _, err := svc.Claim(ctx, "0xaaa"); !errors.Is(err, ErrNothingToClaim) {
		t.Errorf("second claim err = %v, want ErrNothingToClaim", err)
	}
}

// countingTransfer is safe for concurrent use and tallies payouts.
type countingTransfer struct {
	mu   sync.Mutex
	paid uint64
}

func (c *countingTransfer) Transfer(ctx context.Context, amount uint64, from, to string, description string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paid += amount
	return nil
}

func TestClaimConcurrent(t *testing.T) {
	tr := &countingTransfer{}
	svc := NewService(NewMemoryStore(), tr, "0xescrow")
	ctx := context.Background()

	svc.Accrue(ctx, "0xaaa", 5_000_000)

	var wg sync.WaitGroup
	results := make([]error, 2)
	amounts := make([]uint64, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amounts[i], results[i] = svc.Claim(ctx, "0xaaa")
		}(i)
	}
	wg.Wait()

	// Exactly one claimer drains the balance; the other finds nothing.
	var wins, misses int
	for i := 0; i < 2; i++ {
		switch {
		case results[i] == nil:
			wins++
			if amounts[i] != 5_000_000 {
				t.Errorf("winning claim = %d, want 5000000", amounts[i])
			}
		case errors.Is(results[i], ErrNothingToClaim):
			misses++
		default:
			t.Errorf("claim %d: unexpected error %v", i, results[i])
		}
	}
	if wins != 1 || misses != 1 {
		t.Errorf("wins/misses = %d/%d, want 1/1", wins, misses)
	}
	if tr.paid != 5_000_000 {
		t.Errorf("total paid out = %d, want 5000000", tr.paid)
	}
}

func TestClaimTransferFailureRollsBack(t *testing.T) {
	svc, tr := newTestService(t)
	ctx := context.Background()

	svc.Accrue(ctx, "0xaaa", 4_000_000)
	tr.failNext = errors.New("escrow unavailable")

	_, err := svc.Claim(ctx, "0xaaa")
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("err = %v, want ErrTransferFailed", err)
	}

	// Unclaimed balance restored; a retry succeeds.
	a, _ := svc.Account(ctx, "0xaaa")
	if a.Unclaimed != 4_000_000 {
		t.Fatalf("Unclaimed = %d after rollback, want 4000000", a.Unclaimed)
	}
	amount, err := svc.Claim(ctx, "0xaaa")
	if err != nil || amount != 4_000_000 {
		t.Errorf("retry claim = %d, %v", amount, err)
	}
}

func TestTopEarners(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	svc.Accrue(ctx, "0xaaa", 1_000_000)
	svc.Accrue(ctx, "0xbbb", 9_000_000)

	top, err := svc.TopEarners(ctx, 10)
	if err != nil {
		t.Fatalf("TopEarners: %v", err)
	}
	if len(top) != 2 || top[0].Predictor != "0xbbb" {
		t.Errorf("top = %+v", top)
	}
}
