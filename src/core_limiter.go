package main

import (
	"context"
	"sync"
)

// mapLimit applies fn to every item with at most limit units in flight and
// returns results in input order regardless of completion order. The first
// error is returned after all started work has drained; callers wanting
// partial-failure semantics catch errors inside fn and return a result that
// records them.
func mapLimit[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) ([]R, error) {
	if limit < 1 {
		limit = 1
	}

	results := make([]R, len(items))
	sem := make(chan struct{}, limit)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := fn(ctx, item)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			results[i] = res
		}(i, item)
	}

	wg.Wait()
	return results, firstErr
}
