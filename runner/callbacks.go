package runner

import "github.com/vinayprograms/taskrunner/task"

// Callbacks is the delivery target for task outcomes. The component (or
// its adapter) implements it; the Runner holds it through a clearable,
// non-owning slot set on Attach and cleared on Detach.
//
// Both methods are invoked on the delivery loop goroutine, at most once
// per task handle, and only while the Runner is attached and resumed.
// Implementations may call back into the Runner.
//
// Implementations should be pointer types: Detach verifies that the
// value it is handed is the one currently attached.
type Callbacks interface {
	// OnTaskCompleted reports a successful outcome. name is empty for
	// anonymous tasks.
	OnTaskCompleted(name string, id int64, t task.Task, result any)

	// OnTaskError reports a failed outcome. name is empty for anonymous
	// tasks.
	OnTaskError(name string, id int64, t task.Task, err error)
}
