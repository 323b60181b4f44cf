package runner

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vinayprograms/taskrunner/logging"
	"github.com/vinayprograms/taskrunner/pool"
)

// Option configures a Runner at construction.
type Option func(*Runner)

// WithPool sets the worker pool task bodies execute on. Runners sharing
// a registry share its pool; a Runner constructed without one creates a
// private pool and closes it on eviction.
func WithPool(p *pool.Pool) Option {
	return func(r *Runner) {
		r.pool = p
		r.ownsPool = false
	}
}

// WithDeliveryLoop sets the delivery context callbacks are marshalled
// onto. All Runners of one process normally share a single loop — the
// component main thread equivalent.
func WithDeliveryLoop(l *pool.Loop) Option {
	return func(r *Runner) {
		r.delivery = l
		r.ownsLoop = false
	}
}

// WithClock injects the time source used for completion stamps and the
// detach timestamp. Defaults to time.Now.
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLogger sets the Runner's logger.
func WithLogger(l *logrus.Logger) Option {
	return func(r *Runner) {
		r.baseLog = l
	}
}

// WithMetrics sets the metrics sink. Defaults to NopMetrics.
func WithMetrics(m Metrics) Option {
	return func(r *Runner) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithDefaultCacheMode sets the cache mode applied when a submission
// does not specify one. Defaults to CacheNone.
func WithDefaultCacheMode(m CacheMode) Option {
	return func(r *Runner) {
		r.defaultCache = m
	}
}

// WithDefaultDedupeMode sets the dedupe mode applied when a submission
// does not specify one. Defaults to DedupeThrow.
func WithDefaultDedupeMode(m DedupeMode) Option {
	return func(r *Runner) {
		r.defaultDedupe = m
	}
}

// runConfig is the per-submission policy after defaults and options.
type runConfig struct {
	cache  CacheMode
	dedupe DedupeMode
}

// RunOption overrides the Runner-wide default modes for one submission.
type RunOption func(*runConfig)

// WithCacheMode overrides the cache mode for this submission.
func WithCacheMode(m CacheMode) RunOption {
	return func(c *runConfig) {
		c.cache = m
	}
}

// WithDedupeMode overrides the dedupe mode for this submission.
func WithDedupeMode(m DedupeMode) RunOption {
	return func(c *runConfig) {
		c.dedupe = m
	}
}

func componentLog(l *logrus.Logger, key string) *logrus.Entry {
	return logging.Component(l, "runner").WithField("key", key)
}
