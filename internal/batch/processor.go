// Package batch fans a multi-key store operation (copy_all, move_all,
// delete_all) out across a bounded pool of goroutines and collects one
// result per key, using a semaphore-bounded fan-out so a large batch
// never spawns unbounded goroutines.
package batch

import (
	"context"
	"sync"
)

// Executor runs per-key work with bounded concurrency.
type Executor struct {
	maxConcurrency int
}

// NewExecutor builds an Executor. maxConcurrency <= 0 means unbounded
// (one goroutine per key).
func NewExecutor(maxConcurrency int) *Executor {
	return &Executor{maxConcurrency: maxConcurrency}
}

// Result is one key's outcome from a batch run.
type Result struct {
	Key string
	Err error
}

// Run executes fn(key) for every key concurrently, bounded by the
// executor's maxConcurrency, and returns every key's outcome. Run does
// not stop early on the first error — a multi-key operation reports
// every failing key, not just the first.
func (e *Executor) Run(ctx context.Context, keys []string, fn func(ctx context.Context, key string) error) map[string]error {
	results := make(map[string]error, len(keys))
	if len(keys) == 0 {
		return results
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	limit := e.maxConcurrency
	if limit <= 0 || limit > len(keys) {
		limit = len(keys)
	}
	semaphore := make(chan struct{}, limit)

	for _, key := range keys {
		key := key
		wg.Add(1)
		go func() {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			err := fn(ctx, key)

			mu.Lock()
			results[key] = err
			mu.Unlock()
		}()
	}

	wg.Wait()
	return results
}

// RunIndexed is Run for positional operations (e.g. parallel copy_all
// source/destination pairs) where keys may repeat; it reports results by
// slice index instead of by key.
func (e *Executor) RunIndexed(ctx context.Context, n int, fn func(ctx context.Context, i int) error) []error {
	results := make([]error, n)
	if n == 0 {
		return results
	}

	var wg sync.WaitGroup
	limit := e.maxConcurrency
	if limit <= 0 || limit > n {
		limit = n
	}
	semaphore := make(chan struct{}, limit)

	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			results[i] = fn(ctx, i)
		}()
	}

	wg.Wait()
	return results
}
