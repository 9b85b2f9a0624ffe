package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMapLimitPreservesOrder(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	results, err := mapLimit(context.Background(), items, 7, func(_ context.Context, n int) (string, error) {
		// Jitter completion order
		time.Sleep(time.Duration(n%3) * time.Millisecond)
		return fmt.Sprintf("item-%d", n), nil
	})
	if err != nil {
		t.Fatalf("mapLimit() error = %v", err)
	}
	if len(results) != len(items) {
		t.Fatalf("got %d results, want %d", len(results), len(items))
	}
	for i, r := range results {
		if want := fmt.Sprintf("item-%d", i); r != want {
			t.Fatalf("results[%d] = %q, want %q", i, r, want)
		}
	}
}

func TestMapLimitBoundsConcurrency(t *testing.T) {
	const limit = 4

	var inFlight, peak int64
	var mu sync.Mutex

	items := make([]int, 50)
	_, err := mapLimit(context.Background(), items, limit, func(_ context.Context, _ int) (struct{}, error) {
		n := atomic.AddInt64(&inFlight, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return struct{}{}, nil
	})
	if err != nil {
		t.Fatalf("mapLimit() error = %v", err)
	}
	if peak > limit {
		t.Fatalf("peak concurrency %d exceeded limit %d", peak, limit)
	}
}

func TestMapLimitReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	items := []int{0, 1, 2, 3, 4}

	var calls int64
	_, err := mapLimit(context.Background(), items, 2, func(_ context.Context, n int) (int, error) {
		atomic.AddInt64(&calls, 1)
		if n == 2 {
			return 0, boom
		}
		return n, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("mapLimit() error = %v, want %v", err, boom)
	}
	if calls == 0 {
		t.Fatal("work function never ran")
	}
}

func TestMapLimitHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := make([]int, 10)
	_, err := mapLimit(ctx, items, 2, func(_ context.Context, _ int) (struct{}, error) {
		return struct{}{}, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("mapLimit() error = %v, want context.Canceled", err)
	}
}
