package batch

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
)

func TestExecutorRunCollectsAllResults(t *testing.T) {
	e := NewExecutor(4)
	keys := []string{"a", "b", "c", "d", "e"}

	results := e.Run(context.Background(), keys, func(ctx context.Context, key string) error {
		if key == "c" {
			return fmt.Errorf("boom on %s", key)
		}
		return nil
	})

	if len(results) != len(keys) {
		t.Fatalf("got %d results, want %d", len(results), len(keys))
	}
	for _, k := range keys {
		err, ok := results[k]
		if !ok {
			t.Errorf("missing result for key %q", k)
			continue
		}
		if k == "c" && err == nil {
			t.Errorf("expected error for key %q", k)
		}
		if k != "c" && err != nil {
			t.Errorf("unexpected error for key %q: %v", k, err)
		}
	}
}

func TestExecutorRunBoundsConcurrency(t *testing.T) {
	e := NewExecutor(2)
	keys := []string{"a", "b", "c", "d", "e", "f"}

	var active int32
	var maxActive int32

	e.Run(context.Background(), keys, func(ctx context.Context, key string) error {
		n := atomic.AddInt32(&active, 1)
		for {
			cur := atomic.LoadInt32(&maxActive)
			if n <= cur || atomic.CompareAndSwapInt32(&maxActive, cur, n) {
				break
			}
		}
		atomic.AddInt32(&active, -1)
		return nil
	})

	if maxActive > 2 {
		t.Errorf("max concurrent goroutines = %d, want <= 2", maxActive)
	}
}

func TestExecutorRunEmptyKeys(t *testing.T) {
	e := NewExecutor(4)
	results := e.Run(context.Background(), nil, func(ctx context.Context, key string) error {
		t.Fatal("fn should not be called for empty key set")
		return nil
	})
	if len(results) != 0 {
		t.Errorf("expected empty results, got %d", len(results))
	}
}

func TestExecutorRunIndexed(t *testing.T) {
	e := NewExecutor(3)
	results := e.RunIndexed(context.Background(), 5, func(ctx context.Context, i int) error {
		if i == 2 {
			return fmt.Errorf("failure at %d", i)
		}
		return nil
	})

	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}
	if results[2] == nil {
		t.Error("expected error at index 2")
	}
	for i, err := range results {
		if i != 2 && err != nil {
			t.Errorf("unexpected error at index %d: %v", i, err)
		}
	}
}

func TestExecutorUnboundedConcurrency(t *testing.T) {
	e := NewExecutor(0)
	results := e.Run(context.Background(), []string{"x", "y", "z"}, func(ctx context.Context, key string) error {
		return nil
	})
	if len(results) != 3 {
		t.Errorf("got %d results, want 3", len(results))
	}
}
