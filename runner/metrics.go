package runner

import "time"

// Metrics receives engine events. Implementations must be safe for
// concurrent use and must not block; the observability/prometheus
// package provides the usual one.
type Metrics interface {
	// TaskDispatched is called when a handle is handed to the pool.
	TaskDispatched(runner string)

	// TaskCompleted is called once per handle reaching a terminal state.
	// status is "succeeded", "failed" or "cancelled".
	TaskCompleted(runner, status string, d time.Duration)

	// CacheHit is called when a named submission is satisfied from the
	// result cache without dispatching.
	CacheHit(runner string)

	// Dedupe is called when a named submission collided with an
	// in-flight task. mode is the DedupeMode string.
	Dedupe(runner, mode string)

	// DeliveryQueueDepth reports the buffered-delivery depth after it
	// changes.
	DeliveryQueueDepth(runner string, depth int)

	// RunnerEvicted is called when a detached Runner passes its TTL.
	RunnerEvicted(runner string)
}

// NopMetrics discards every event. The default.
type NopMetrics struct{}

var _ Metrics = NopMetrics{}

func (NopMetrics) TaskDispatched(string)                       {}
func (NopMetrics) TaskCompleted(string, string, time.Duration) {}
func (NopMetrics) CacheHit(string)                             {}
func (NopMetrics) Dedupe(string, string)                       {}
func (NopMetrics) DeliveryQueueDepth(string, int)              {}
func (NopMetrics) RunnerEvicted(string)                        {}
