// Package prometheus adapts runner.Metrics to Prometheus collectors.
package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/vinayprograms/taskrunner/runner"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	// DurationBuckets overrides prom.DefBuckets for task durations.
	DurationBuckets []float64
}

// Exporter implements runner.Metrics over Prometheus collectors.
type Exporter struct {
	taskDispatchedTotal *prom.CounterVec
	taskCompletedTotal  *prom.CounterVec
	taskDurationSeconds *prom.HistogramVec
	cacheHitTotal       *prom.CounterVec
	dedupeTotal         *prom.CounterVec
	deliveryQueueDepth  *prom.GaugeVec
	runnerEvictedTotal  *prom.CounterVec
}

var _ runner.Metrics = (*Exporter)(nil)

// NewExporter creates and registers the engine's collectors. Passing a
// nil Registerer uses the default registry. Re-registering identical
// collectors reuses the existing ones, so two engines in one process
// share the metric families.
func NewExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*Exporter, error) {
	if namespace == "" {
		namespace = "taskrunner"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	dispatchedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_dispatched_total",
		Help:      "Total tasks handed to the worker pool.",
	}, []string{"runner"})
	completedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_completed_total",
		Help:      "Total tasks reaching a terminal state.",
	}, []string{"runner", "status"})
	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Task execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"runner", "status"})
	cacheHitVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hit_total",
		Help:      "Total named submissions served from the result cache.",
	}, []string{"runner"})
	dedupeVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "dedupe_total",
		Help:      "Total named submissions that collided with in-flight work.",
	}, []string{"runner", "mode"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "delivery_queue_depth",
		Help:      "Buffered deliveries awaiting resume.",
	}, []string{"runner"})
	evictedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "runner_evicted_total",
		Help:      "Total Runners discarded after their detach TTL.",
	}, []string{"runner"})

	var err error
	if dispatchedVec, err = registerCollector(reg, dispatchedVec); err != nil {
		return nil, err
	}
	if completedVec, err = registerCollector(reg, completedVec); err != nil {
		return nil, err
	}
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if cacheHitVec, err = registerCollector(reg, cacheHitVec); err != nil {
		return nil, err
	}
	if dedupeVec, err = registerCollector(reg, dedupeVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}
	if evictedVec, err = registerCollector(reg, evictedVec); err != nil {
		return nil, err
	}

	return &Exporter{
		taskDispatchedTotal: dispatchedVec,
		taskCompletedTotal:  completedVec,
		taskDurationSeconds: durationVec,
		cacheHitTotal:       cacheHitVec,
		dedupeTotal:         dedupeVec,
		deliveryQueueDepth:  queueDepthVec,
		runnerEvictedTotal:  evictedVec,
	}, nil
}

// TaskDispatched counts a handle handed to the pool.
func (e *Exporter) TaskDispatched(runnerKey string) {
	if e == nil {
		return
	}
	e.taskDispatchedTotal.WithLabelValues(normalizeLabel(runnerKey)).Inc()
}

// TaskCompleted counts a terminal outcome and observes its duration.
func (e *Exporter) TaskCompleted(runnerKey, status string, d time.Duration) {
	if e == nil {
		return
	}
	r, s := normalizeLabel(runnerKey), normalizeLabel(status)
	e.taskCompletedTotal.WithLabelValues(r, s).Inc()
	e.taskDurationSeconds.WithLabelValues(r, s).Observe(d.Seconds())
}

// CacheHit counts a submission satisfied without dispatch.
func (e *Exporter) CacheHit(runnerKey string) {
	if e == nil {
		return
	}
	e.cacheHitTotal.WithLabelValues(normalizeLabel(runnerKey)).Inc()
}

// Dedupe counts a name collision, labelled by the resolving mode.
func (e *Exporter) Dedupe(runnerKey, mode string) {
	if e == nil {
		return
	}
	e.dedupeTotal.WithLabelValues(normalizeLabel(runnerKey), normalizeLabel(mode)).Inc()
}

// DeliveryQueueDepth records the buffered-delivery depth.
func (e *Exporter) DeliveryQueueDepth(runnerKey string, depth int) {
	if e == nil {
		return
	}
	e.deliveryQueueDepth.WithLabelValues(normalizeLabel(runnerKey)).Set(float64(depth))
}

// RunnerEvicted counts a TTL eviction.
func (e *Exporter) RunnerEvicted(runnerKey string) {
	if e == nil {
		return
	}
	e.runnerEvictedTotal.WithLabelValues(normalizeLabel(runnerKey)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// registerCollector registers collector, tolerating a duplicate
// registration by adopting the existing collector.
func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
