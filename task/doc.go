// Package task defines the unit of asynchronous work executed by a Runner.
//
// A Task wraps one blocking operation. The runner calls Execute on a worker
// goroutine; the task computes its result, caches it, and returns it. After
// completion the result remains readable through LastResult. Reading it
// before completion fails with ErrNotCompleted.
//
// Two adapters cover the common shapes:
//
//   - Func wraps a plain blocking function.
//   - Future wraps an operation that is already running elsewhere and
//     exposes a blocking get over its outcome channel.
//
// # Explicit inputs only
//
// Tasks are dispatched on behalf of components that may be destroyed and
// recreated while the task is still running. A task must therefore capture
// only the inputs it needs by value — never a live reference to the owning
// component. The runner holds the component through a clearable callback
// slot, and a task that smuggles its own reference in defeats that and
// pins the component in memory for the lifetime of the work.
//
// # Example
//
//	t := task.NewFunc(func(ctx context.Context) (any, error) {
//	    return fetchProfile(ctx, userID)
//	})
//	id, err := rn.RunNamed("profile", t)
package task
