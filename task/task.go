package task

import (
	"context"
	"errors"
)

// Common errors.
var (
	// ErrNotCompleted indicates the task has not produced a result yet.
	ErrNotCompleted = errors.New("task not completed")

	// ErrNilFunc indicates a Func was constructed without a body.
	ErrNilFunc = errors.New("nil task function")
)

// Task is one unit of asynchronous work.
//
// Execute is called exactly once per dispatch, on a worker goroutine.
// It may block; that is its intended shape. Implementations should honor
// ctx cancellation at safe points, but the runner tolerates tasks that
// never check it and simply discards their late results.
type Task interface {
	// Execute computes the result, caches it for LastResult, and returns it.
	// A non-nil error marks the task failed with that domain error.
	Execute(ctx context.Context) (any, error)

	// LastResult returns the result of a completed Execute call.
	// It returns ErrNotCompleted until Execute has finished, and the
	// execution error if Execute failed.
	LastResult() (any, error)
}
