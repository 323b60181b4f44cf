package task

import (
	"context"
	"sync"
)

// Outcome is the terminal value of an already-asynchronous operation.
type Outcome struct {
	Value any
	Err   error
}

// Future adapts an operation that is already running elsewhere into a Task.
// Execute blocks until the operation resolves its outcome channel or ctx
// is cancelled. Once resolved, the outcome is cached and further Execute
// and LastResult calls return it without touching the channel again.
type Future struct {
	ch <-chan Outcome

	mu     sync.Mutex
	done   bool
	result any
	err    error
}

var _ Task = (*Future)(nil)

// NewFuture wraps ch as a Task. The operation must send exactly one
// Outcome on ch (a buffered channel of size one is the usual shape).
func NewFuture(ch <-chan Outcome) *Future {
	return &Future{ch: ch}
}

// Execute blocks until the outcome arrives or ctx is cancelled.
func (f *Future) Execute(ctx context.Context) (any, error) {
	f.mu.Lock()
	if f.done {
		result, err := f.result, f.err
		f.mu.Unlock()
		return result, err
	}
	f.mu.Unlock()

	select {
	case o := <-f.ch:
		f.mu.Lock()
		f.done = true
		f.result = o.Value
		f.err = o.Err
		f.mu.Unlock()
		return o.Value, o.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// LastResult returns the cached outcome, or ErrNotCompleted if the
// operation has not resolved through Execute yet.
func (f *Future) LastResult() (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.done {
		return nil, ErrNotCompleted
	}
	return f.result, f.err
}
