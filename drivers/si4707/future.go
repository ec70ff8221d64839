package si4707

import (
	"context"
	"sync"
)

// Future is a single-assignment result cell shared between the goroutine
// that executes a command and the one that submitted it.
type Future struct {
	mu   sync.Mutex
	done chan struct{}
	set  bool
	val  any
	err  error
}

func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolve settles the Future with a value.
func (f *Future) Resolve(v any) error { return f.settle(v, nil) }

// Reject settles the Future with a failure.
func (f *Future) Reject(err error) error { return f.settle(nil, err) }

func (f *Future) settle(v any, err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.set {
		return ErrFutureSettled
	}
	f.set = true
	f.val, f.err = v, err
	close(f.done)
	return nil
}

// Done is closed once the Future settles.
func (f *Future) Done() <-chan struct{} { return f.done }

// Settled reports whether Resolve or Reject has been called.
func (f *Future) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set
}

// Value returns the outcome without blocking. Both are nil while pending.
func (f *Future) Value() (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.val, f.err
}

// Wait blocks until the Future settles or ctx ends.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
