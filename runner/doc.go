// Package runner implements the per-component task orchestrator.
//
// A Runner owns every task submitted on behalf of one component. It
// dispatches task bodies to a shared worker pool, de-duplicates
// concurrent same-named submissions, caches successful results by name,
// and delivers each terminal outcome exactly once — on the delivery
// context, and only while the owning component is in a state to receive
// it.
//
// # Lifecycle
//
// A Runner is always in exactly one of three phases:
//
//	Detached ──Attach──▶ AttachedPaused ◀──Pause── AttachedResumed
//	    ▲                     │    └───────Resume──────▶ ▲
//	    └────────Detach───────┴──────────Detach──────────┘
//
// While paused or detached, completions are buffered in completion
// order; Resume drains the buffer through the delivery loop. Detach
// clears the callback target so the component can be garbage collected;
// outstanding tasks keep running. A detached Runner survives inside the
// process-wide registry for a TTL, after which it is evicted: all
// handles are cancelled and every operation fails with ErrRunnerEvicted.
//
// # Submission
//
// Run dispatches an anonymous task: never deduped, never cached.
// RunNamed consults the result cache and the dedupe policy first, under
// the Runner's single mutex, so two racing submissions of the same name
// can never both dispatch. Both return a Runner-unique, monotonically
// increasing id without blocking.
//
// # Delivery
//
// Exactly one terminal callback — OnTaskCompleted or OnTaskError — is
// delivered per handle, ever, on the delivery loop goroutine. Cancelled
// tasks deliver nothing; a result arriving after cancellation is
// dropped silently. Callbacks may re-enter the Runner (submitting new
// tasks, pausing, resuming) freely.
package runner
