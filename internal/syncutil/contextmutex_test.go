package syncutil

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestContextMutex_Exclusion(t *testing.T) {
	m := NewContextMutex()
	ctx := context.Background()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(ctx)
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("expected 50 increments, got %d", counter)
	}
}

func TestContextMutex_CancelWhileWaiting(t *testing.T) {
	m := NewContextMutex()

	unlock, err := m.Lock(context.Background())
	if err != nil {
		t.Fatalf("initial lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := m.Lock(ctx); err == nil {
		t.Fatal("expected context error while lock held")
	}

	unlock()

	// Lock should be acquirable again after release.
	unlock2, err := m.Lock(context.Background())
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	unlock2()
}
