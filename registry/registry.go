package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vinayprograms/taskrunner/logging"
	"github.com/vinayprograms/taskrunner/pool"
	"github.com/vinayprograms/taskrunner/runner"
	"github.com/vinayprograms/taskrunner/state"
)

// Defaults applied when construction options are omitted.
const (
	// DefaultTTL is how long a detached Runner survives before the
	// registry discards it. Long enough to span a component
	// reconstruction, short enough that abandoned work does not pile up.
	DefaultTTL = 30 * time.Second

	// DefaultWorkers sizes the shared worker pool.
	DefaultWorkers = 8
)

// ErrClosed is returned by operations on a closed Registry.
var ErrClosed = errors.New("registry: closed")

// Registry is the process-wide map from component identity to Runner.
// It owns the shared worker pool and the shared delivery loop, and it
// is the only code that destroys Runners: a Runner left detached past
// the TTL is evicted together with its handles, cache and buffered
// deliveries.
//
// Safe for concurrent use from any number of components.
type Registry struct {
	pool     *pool.Pool
	delivery *pool.Loop
	ttl      time.Duration
	clock    func() time.Time
	log      *logrus.Entry
	metrics  runner.Metrics
	runOpts  []runner.Option

	mu      sync.Mutex
	entries map[Key]*runner.Runner
	closed  bool

	sweepEvery time.Duration
	sweepStop  chan struct{}
	sweepDone  chan struct{}
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithTTL sets the detached-Runner eviction deadline.
func WithTTL(d time.Duration) Option {
	return func(g *Registry) {
		if d > 0 {
			g.ttl = d
		}
	}
}

// WithWorkers sizes the shared worker pool.
func WithWorkers(n int) Option {
	return func(g *Registry) {
		if n > 0 {
			g.pool = pool.New(n)
		}
	}
}

// WithClock injects the time source used for TTL arithmetic. The same
// clock is handed to every Runner the registry creates.
func WithClock(clock func() time.Time) Option {
	return func(g *Registry) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithLogger sets the registry's logger, propagated to Runners.
func WithLogger(l *logrus.Logger) Option {
	return func(g *Registry) {
		g.log = logging.Component(l, "registry")
		g.runOpts = append(g.runOpts, runner.WithLogger(l))
	}
}

// WithMetrics sets the metrics sink, propagated to Runners.
func WithMetrics(m runner.Metrics) Option {
	return func(g *Registry) {
		if m != nil {
			g.metrics = m
		}
	}
}

// WithSweepInterval starts a background goroutine that evicts expired
// Runners every d. Without it the sweep runs lazily, on each Attach.
func WithSweepInterval(d time.Duration) Option {
	return func(g *Registry) {
		if d > 0 {
			g.sweepEvery = d
		}
	}
}

// WithRunnerOptions appends options applied to every Runner the
// registry creates, e.g. runner.WithDefaultCacheMode.
func WithRunnerOptions(opts ...runner.Option) Option {
	return func(g *Registry) {
		g.runOpts = append(g.runOpts, opts...)
	}
}

// New creates a Registry with its shared pool and delivery loop.
func New(opts ...Option) *Registry {
	g := &Registry{
		ttl:     DefaultTTL,
		clock:   time.Now,
		log:     logging.Component(nil, "registry"),
		metrics: runner.NopMetrics{},
		entries: make(map[Key]*runner.Runner),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.pool == nil {
		g.pool = pool.New(DefaultWorkers)
	}
	g.delivery = pool.NewLoop()

	if g.sweepEvery > 0 {
		g.sweepStop = make(chan struct{})
		g.sweepDone = make(chan struct{})
		go g.sweeper()
	}
	return g
}

// AttachOption configures one Attach call.
type AttachOption func(*attachConfig)

type attachConfig struct {
	store state.Store
}

// WithSavedState restores a persisted snapshot from store when the
// Attach creates a fresh Runner. Reused Runners keep their live state
// and never touch the store.
func WithSavedState(s state.Store) AttachOption {
	return func(c *attachConfig) {
		c.store = s
	}
}

// Attach binds cb to the Runner for key, creating one if the key is
// unknown or its previous Runner was evicted. A detached Runner still
// inside its TTL is reused as-is, which is what lets in-flight work
// survive a component's reconstruction.
func (g *Registry) Attach(ctx context.Context, key Key, cb runner.Callbacks, opts ...AttachOption) (*runner.Runner, error) {
	var cfg attachConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, ErrClosed
	}
	g.sweepLocked(g.clock())

	r, reused := g.entries[key]
	if !reused {
		r = runner.New(key.String(), append([]runner.Option{
			runner.WithPool(g.pool),
			runner.WithDeliveryLoop(g.delivery),
			runner.WithClock(g.clock),
			runner.WithMetrics(g.metrics),
		}, g.runOpts...)...)
		g.entries[key] = r
	}
	g.mu.Unlock()

	if !reused && cfg.store != nil {
		if err := r.RestoreState(ctx, cfg.store); err != nil {
			return nil, fmt.Errorf("attach %s: %w", key, err)
		}
	}

	if err := r.Attach(cb); err != nil {
		return nil, fmt.Errorf("attach %s: %w", key, err)
	}
	g.log.WithFields(logrus.Fields{"key": key.String(), "reused": reused}).Debug("attached")
	return r, nil
}

// Detach releases cb's binding on the Runner for key and starts its TTL
// clock. Unknown keys are a no-op: the Runner may already be evicted.
func (g *Registry) Detach(key Key, cb runner.Callbacks) error {
	g.mu.Lock()
	r, ok := g.entries[key]
	g.mu.Unlock()
	if !ok {
		return nil
	}
	if err := r.Detach(cb); err != nil {
		return fmt.Errorf("detach %s: %w", key, err)
	}
	return nil
}

// Lookup returns the live Runner for key, if any. It does not reset the
// TTL clock of a detached Runner.
func (g *Registry) Lookup(key Key) (*runner.Runner, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.entries[key]
	return r, ok
}

// Len returns the number of live Runners, attached or detached.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// Sweep evicts every Runner whose detach TTL has lapsed and returns how
// many were discarded. Attach sweeps lazily; call this directly when no
// background sweeper is configured and attaches are rare.
func (g *Registry) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sweepLocked(g.clock())
}

// SaveAll persists a snapshot of every live Runner, for process
// shutdown. Runners that fail to save are reported together; the rest
// still save.
func (g *Registry) SaveAll(ctx context.Context, store state.Store) error {
	g.mu.Lock()
	runners := make([]*runner.Runner, 0, len(g.entries))
	for _, r := range g.entries {
		runners = append(runners, r)
	}
	g.mu.Unlock()

	var errs []error
	for _, r := range runners {
		if err := r.SaveState(ctx, store); err != nil {
			errs = append(errs, fmt.Errorf("save %s: %w", r.Key(), err))
		}
	}
	return errors.Join(errs...)
}

// Close evicts every Runner and shuts down the shared pool and delivery
// loop. Outstanding task bodies are cancelled through their contexts.
func (g *Registry) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	runners := make([]*runner.Runner, 0, len(g.entries))
	for _, r := range g.entries {
		runners = append(runners, r)
	}
	g.entries = make(map[Key]*runner.Runner)
	g.mu.Unlock()

	if g.sweepStop != nil {
		close(g.sweepStop)
		<-g.sweepDone
	}
	for _, r := range runners {
		r.Evict()
	}
	g.pool.Close()
	g.delivery.Close()
	g.log.Info("closed")
}

// sweepLocked evicts expired detached Runners. Caller holds g.mu; the
// per-Runner locks nest inside it, never the other way around.
func (g *Registry) sweepLocked(now time.Time) int {
	evicted := 0
	for key, r := range g.entries {
		detachedAt := r.DetachedAt()
		if detachedAt.IsZero() || now.Sub(detachedAt) <= g.ttl {
			continue
		}
		delete(g.entries, key)
		r.Evict()
		evicted++
		g.log.WithField("key", key.String()).Debug("evicted after TTL")
	}
	return evicted
}

func (g *Registry) sweeper() {
	defer close(g.sweepDone)
	ticker := time.NewTicker(g.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.Sweep()
		case <-g.sweepStop:
			return
		}
	}
}
