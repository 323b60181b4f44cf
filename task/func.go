package task

import (
	"context"
	"sync"
)

// Func adapts a blocking function into a Task.
// The function's result is cached for LastResult after the first Execute.
type Func struct {
	fn func(ctx context.Context) (any, error)

	mu     sync.Mutex
	done   bool
	result any
	err    error
}

var _ Task = (*Func)(nil)

// NewFunc wraps fn as a Task. fn must not be nil.
func NewFunc(fn func(ctx context.Context) (any, error)) *Func {
	return &Func{fn: fn}
}

// Execute runs the wrapped function and caches its outcome.
func (f *Func) Execute(ctx context.Context) (any, error) {
	if f.fn == nil {
		return nil, ErrNilFunc
	}

	result, err := f.fn(ctx)

	f.mu.Lock()
	f.done = true
	f.result = result
	f.err = err
	f.mu.Unlock()

	return result, err
}

// LastResult returns the cached outcome of Execute, or ErrNotCompleted.
func (f *Func) LastResult() (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.done {
		return nil, ErrNotCompleted
	}
	return f.result, f.err
}
