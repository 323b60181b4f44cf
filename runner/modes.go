package runner

import "fmt"

// CacheMode controls how a named submission interacts with the result
// cache.
type CacheMode int

const (
	// CacheNone bypasses the cache entirely. Default.
	CacheNone CacheMode = iota

	// CacheOnSuccess looks up a previous success before dispatching and
	// writes the result back on success. A hit completes the submission
	// synchronously with the cached value; no execution occurs.
	CacheOnSuccess

	// CacheRefresh skips the lookup but still writes the result on
	// success, replacing any cached value for the name.
	CacheRefresh
)

// String returns the mode name as used in configuration.
func (m CacheMode) String() string {
	switch m {
	case CacheNone:
		return "none"
	case CacheOnSuccess:
		return "cache_on_success"
	case CacheRefresh:
		return "cache_refresh"
	default:
		return fmt.Sprintf("CacheMode(%d)", int(m))
	}
}

// lookup reports whether the mode permits reading the cache.
func (m CacheMode) lookup() bool { return m == CacheOnSuccess }

// writes reports whether a successful result is written to the cache.
func (m CacheMode) writes() bool { return m == CacheOnSuccess || m == CacheRefresh }

// ParseCacheMode maps a configuration string to a CacheMode.
func ParseCacheMode(s string) (CacheMode, error) {
	switch s {
	case "none", "":
		return CacheNone, nil
	case "cache_on_success":
		return CacheOnSuccess, nil
	case "cache_refresh":
		return CacheRefresh, nil
	default:
		return CacheNone, fmt.Errorf("%w: cache mode %q", ErrInvalidMode, s)
	}
}

// DedupeMode controls what happens when a named submission finds another
// task with the same name still queued or running.
type DedupeMode int

const (
	// DedupeThrow fails the submission synchronously with
	// ErrDuplicateTask. Default: accidental double-submission is a
	// programmer error and should surface loudly, not merge silently.
	DedupeThrow DedupeMode = iota

	// DedupeUseExisting returns the in-flight task's id. The caller is
	// notified once, when that task completes; no duplicate work runs.
	DedupeUseExisting

	// DedupeReplace cancels the in-flight task and dispatches the new
	// one. The cancelled task delivers no callback.
	DedupeReplace
)

// String returns the mode name as used in configuration.
func (m DedupeMode) String() string {
	switch m {
	case DedupeThrow:
		return "throw"
	case DedupeUseExisting:
		return "use_existing"
	case DedupeReplace:
		return "replace"
	default:
		return fmt.Sprintf("DedupeMode(%d)", int(m))
	}
}

// ParseDedupeMode maps a configuration string to a DedupeMode.
func ParseDedupeMode(s string) (DedupeMode, error) {
	switch s {
	case "throw", "":
		return DedupeThrow, nil
	case "use_existing":
		return DedupeUseExisting, nil
	case "replace":
		return DedupeReplace, nil
	default:
		return DedupeThrow, fmt.Errorf("%w: dedupe mode %q", ErrInvalidMode, s)
	}
}
