package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolKeepsPerKeyOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := map[int64][]int{}
	var wg sync.WaitGroup
	pool := NewPool(ctx, 2, 4, func(_ context.Context, chat int64, n int) {
		defer wg.Done()
		mu.Lock()
		seen[chat] = append(seen[chat], n)
		mu.Unlock()
	})

	for i := 0; i < 20; i++ {
		for _, chat := range []int64{-1, -2, -3} {
			wg.Add(1)
			if err := pool.Submit(context.Background(), chat, i); err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
		}
	}
	wg.Wait()

	if pool.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", pool.Len())
	}
	for chat, got := range seen {
		for i, n := range got {
			if n != i {
				t.Fatalf("chat %d order = %v, want ascending", chat, got)
			}
		}
	}
}

func TestPoolLimitsConcurrency(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	pool := NewPool(ctx, 2, 1, func(_ context.Context, _ int, _ struct{}) {
		defer wg.Done()
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
	})
	for key := 0; key < 6; key++ {
		wg.Add(1)
		if err := pool.Submit(context.Background(), key, struct{}{}); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}
	wg.Wait()
	if peak.Load() > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", peak.Load())
	}
}
