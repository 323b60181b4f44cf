package runner

import (
	"context"
	"time"

	"github.com/vinayprograms/taskrunner/task"
)

// HandleState is the lifecycle state of one task handle.
type HandleState int

const (
	// HandleQueued means the task has been accepted but no worker has
	// picked it up yet.
	HandleQueued HandleState = iota

	// HandleRunning means a worker is executing the task body.
	HandleRunning

	// HandleSucceeded means the task completed with a result.
	HandleSucceeded

	// HandleFailed means the task completed with a domain error.
	HandleFailed

	// HandleCancelled means the task was cancelled; it delivers no
	// callback and writes no cache entry.
	HandleCancelled
)

// String returns the state name.
func (s HandleState) String() string {
	switch s {
	case HandleQueued:
		return "queued"
	case HandleRunning:
		return "running"
	case HandleSucceeded:
		return "succeeded"
	case HandleFailed:
		return "failed"
	case HandleCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// terminal reports whether the state is final.
func (s HandleState) terminal() bool {
	return s == HandleSucceeded || s == HandleFailed || s == HandleCancelled
}

// Handle is one scheduled, running or completed unit of work and its
// outcome. Handles are created and owned exclusively by one Runner;
// callers hold the id and may inspect the handle read-only.
type Handle struct {
	runner    *Runner
	id        int64
	name      string
	t         task.Task
	cacheMode CacheMode

	ctx    context.Context
	cancel context.CancelFunc

	// Guarded by runner.mu.
	state       HandleState
	result      any
	err         error
	completedAt time.Time
	delivered   bool
	cancelReq   bool
}

// ID returns the Runner-unique task id.
func (h *Handle) ID() int64 { return h.id }

// Name returns the task name, empty for anonymous tasks.
func (h *Handle) Name() string { return h.name }

// Task returns the unit of work this handle wraps.
func (h *Handle) Task() task.Task { return h.t }

// State returns the handle's current lifecycle state.
func (h *Handle) State() HandleState {
	h.runner.mu.Lock()
	defer h.runner.mu.Unlock()
	return h.state
}

// Result returns the terminal outcome. It returns task.ErrNotCompleted
// while the handle is queued or running, the execution error if it
// failed, and ErrTaskCancelled if it was cancelled.
func (h *Handle) Result() (any, error) {
	h.runner.mu.Lock()
	defer h.runner.mu.Unlock()

	switch h.state {
	case HandleSucceeded:
		return h.result, nil
	case HandleFailed:
		return nil, h.err
	case HandleCancelled:
		return nil, ErrTaskCancelled
	default:
		return nil, task.ErrNotCompleted
	}
}
