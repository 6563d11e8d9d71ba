package embedder

import (
	"context"
	"fmt"
	"runtime"

	"github.com/panjf2000/ants/v2"
)

// Dispatcher runs blocking backend calls on a bounded worker pool so that an
// unbounded number of concurrent callers cannot pile up an unbounded number
// of in-flight network calls. One dispatcher is typically shared by every
// client built at the same composition root.
type Dispatcher struct {
	pool *ants.Pool
}

// NewDispatcher creates a dispatcher with at most size concurrent workers.
// A non-positive size defaults to twice the number of CPUs.
func NewDispatcher(size int) (*Dispatcher, error) {
	if size <= 0 {
		size = runtime.NumCPU() * 2
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding worker pool: %w", err)
	}
	return &Dispatcher{pool: pool}, nil
}

// Run executes fn on the pool and waits for its result. If ctx is cancelled
// while the call is in flight, Run returns ctx.Err() immediately and the
// abandoned result is discarded.
func (d *Dispatcher) Run(ctx context.Context, fn func() ([][]float32, error)) ([][]float32, error) {
	type result struct {
		vectors [][]float32
		err     error
	}

	// Buffered so an abandoned worker can still complete and exit.
	ch := make(chan result, 1)
	if err := d.pool.Submit(func() {
		vectors, err := fn()
		ch <- result{vectors: vectors, err: err}
	}); err != nil {
		return nil, fmt.Errorf("failed to dispatch embedding call: %w", err)
	}

	select {
	case r := <-ch:
		return r.vectors, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close releases the worker pool. In-flight calls are allowed to finish.
func (d *Dispatcher) Close() {
	d.pool.Release()
}
