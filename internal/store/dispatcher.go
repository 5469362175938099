package store

import (
	"context"
	"errors"

	"github.com/sourcegraph/conc/pool"

	"github.com/objectfs/localstore/internal/breaker"
	objerrors "github.com/objectfs/localstore/pkg/errors"
)

// dispatcher submits blocking filesystem closures to a bounded worker
// pool and completes a Future whose Await is the suspension point the
// event loop waits on (component G). No filesystem syscall ever runs on
// the goroutine that calls submit.
type dispatcher struct {
	pool    *pool.Pool
	breaker *breaker.Breaker
}

func newDispatcher(maxConcurrency int, b *breaker.Breaker) *dispatcher {
	p := pool.New()
	if maxConcurrency > 0 {
		p = p.WithMaxGoroutines(maxConcurrency)
	}
	return &dispatcher{pool: p, breaker: b}
}

// Future is a single-value, single-writer result channel: exactly one
// resolve call, exactly one Await.
type Future[T any] struct {
	ch chan result[T]
}

type result[T any] struct {
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{ch: make(chan result[T], 1)}
}

func (f *Future[T]) resolve(value T, err error) {
	f.ch <- result[T]{value: value, err: err}
}

// Await blocks until the submitted closure completes or ctx is canceled.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case r := <-f.ch:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// submit runs fn on the worker pool, gated by the dispatcher's breaker,
// and returns a Future for its result.
func submit[T any](d *dispatcher, fn func() (T, error)) *Future[T] {
	future := newFuture[T]()
	d.pool.Go(func() {
		var value T
		err := d.breaker.Execute(func() error {
			v, e := fn()
			value = v
			return e
		})
		if errors.Is(err, breaker.ErrOpen) {
			err = objerrors.New(objerrors.IOError, "", "circuit open").WithCause(err)
		}
		future.resolve(value, err)
	})
	return future
}

// submitErr is submit specialized for closures with no value result.
func submitErr(d *dispatcher, fn func() error) *Future[struct{}] {
	return submit(d, func() (struct{}, error) {
		return struct{}{}, fn()
	})
}

// wait blocks until every closure previously submitted to d has
// completed; used on shutdown.
func (d *dispatcher) wait() {
	d.pool.Wait()
}
