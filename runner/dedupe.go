package runner

import "fmt"

// dedupeOutcome is the resolver's verdict on a named submission.
type dedupeOutcome int

const (
	// dedupeDispatch: no conflict, dispatch a fresh task.
	dedupeDispatch dedupeOutcome = iota

	// dedupeAttach: reuse the in-flight task; return its id.
	dedupeAttach

	// dedupeReject: fail the submission synchronously.
	dedupeReject

	// dedupeReplace: cancel the in-flight task, then dispatch fresh.
	dedupeReplace
)

// resolveDedupe decides what a named submission does when a task with
// the same name may already be in flight. It is a pure function of its
// inputs so the policy can be tested without any threading. The Runner
// evaluates it while holding its mutex, which makes the decision atomic
// with respect to concurrent submissions and completions of the name.
func resolveDedupe(inflight bool, mode DedupeMode) (dedupeOutcome, error) {
	if !inflight {
		return dedupeDispatch, nil
	}

	switch mode {
	case DedupeThrow:
		return dedupeReject, ErrDuplicateTask
	case DedupeUseExisting:
		return dedupeAttach, nil
	case DedupeReplace:
		return dedupeReplace, nil
	default:
		return dedupeReject, fmt.Errorf("%w: dedupe mode %d", ErrInvalidMode, int(mode))
	}
}
