package runner

import "errors"

// Common errors.
var (
	// ErrDuplicateTask indicates a named submission found an in-flight
	// task with the same name under DedupeThrow.
	ErrDuplicateTask = errors.New("duplicate task name in flight")

	// ErrRunnerEvicted indicates the Runner's registry entry has passed
	// its detached TTL. Operations on an evicted Runner are a lifecycle
	// contract violation (a missing attach), so they fail rather than
	// silently no-op.
	ErrRunnerEvicted = errors.New("runner evicted")

	// ErrAlreadyAttached indicates Attach was called while a callback
	// target is already attached.
	ErrAlreadyAttached = errors.New("runner already attached")

	// ErrNotAttached indicates Pause or Resume was called on a detached
	// Runner.
	ErrNotAttached = errors.New("runner not attached")

	// ErrCallbacksMismatch indicates Detach was handed a different
	// callback target than the one attached.
	ErrCallbacksMismatch = errors.New("detach callbacks do not match attached callbacks")

	// ErrNilCallbacks indicates Attach was called without a target.
	ErrNilCallbacks = errors.New("nil callbacks")

	// ErrNilTask indicates a submission without a task.
	ErrNilTask = errors.New("nil task")

	// ErrInvalidName indicates a named submission with an empty name.
	ErrInvalidName = errors.New("empty task name")

	// ErrUnknownTask indicates the id does not belong to this Runner.
	ErrUnknownTask = errors.New("unknown task id")

	// ErrTaskCancelled indicates the handle was cancelled before
	// producing a deliverable outcome.
	ErrTaskCancelled = errors.New("task cancelled")

	// ErrInvalidMode indicates an unrecognized cache or dedupe mode.
	ErrInvalidMode = errors.New("invalid mode")
)
