package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vinayprograms/taskrunner/pool"
	"github.com/vinayprograms/taskrunner/task"
)

// Phase is a Runner's lifecycle state.
type Phase int

const (
	// PhaseDetached: no callback target; completions buffer.
	PhaseDetached Phase = iota

	// PhaseAttachedPaused: a target is attached but delivery is gated;
	// completions buffer until Resume.
	PhaseAttachedPaused

	// PhaseAttachedResumed: completions are delivered as they occur.
	PhaseAttachedResumed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseDetached:
		return "detached"
	case PhaseAttachedPaused:
		return "attached_paused"
	case PhaseAttachedResumed:
		return "attached_resumed"
	default:
		return "unknown"
	}
}

// Runner orchestrates the asynchronous tasks of one component. Obtain
// one through registry.Attach; construct directly only in tests or when
// TTL survival across component reconstruction is not needed.
//
// All state-machine operations are non-blocking and safe to call from
// any goroutine, including from within delivery callbacks.
type Runner struct {
	key        string
	instanceID string

	pool     *pool.Pool
	delivery *pool.Loop
	ownsPool bool
	ownsLoop bool

	clock   func() time.Time
	baseLog *logrus.Logger
	log     *logrus.Entry
	metrics Metrics

	mu            sync.Mutex
	phase         Phase
	callbacks     Callbacks
	evicted       bool
	detachedAt    time.Time
	nextID        int64
	handles       map[int64]*Handle
	inflight      map[string]*Handle
	cache         *resultCache
	buffer        deliveryQueue
	defaultCache  CacheMode
	defaultDedupe DedupeMode
	restored      []Descriptor
}

// New creates a detached Runner for the given component key.
func New(key string, opts ...Option) *Runner {
	r := &Runner{
		key:        key,
		instanceID: uuid.NewString(),
		clock:      time.Now,
		metrics:    NopMetrics{},
		handles:    make(map[int64]*Handle),
		inflight:   make(map[string]*Handle),
		cache:      newResultCache(),
		ownsPool:   true,
		ownsLoop:   true,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.pool == nil {
		r.pool = pool.New(4, pool.WithLogger(r.baseLog))
	}
	if r.delivery == nil {
		r.delivery = pool.NewLoop()
	}
	r.log = componentLog(r.baseLog, key).WithField("instance", r.instanceID)
	return r
}

// Key returns the component key this Runner serves.
func (r *Runner) Key() string { return r.key }

// InstanceID returns the unique id of this Runner instance, used in
// logs and nowhere else.
func (r *Runner) InstanceID() string { return r.instanceID }

// Phase returns the current lifecycle phase.
func (r *Runner) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Evicted reports whether the Runner has been discarded by the registry.
func (r *Runner) Evicted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evicted
}

// DetachedAt returns when the Runner was last detached, or the zero
// time while attached. The registry's TTL sweep reads this.
func (r *Runner) DetachedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detachedAt
}

// Attach binds a callback target, moving the Runner from Detached to
// AttachedPaused. Attaching while already attached is a lifecycle
// contract violation and fails with ErrAlreadyAttached.
func (r *Runner) Attach(cb Callbacks) error {
	if cb == nil {
		return ErrNilCallbacks
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.evicted {
		return ErrRunnerEvicted
	}
	if r.phase != PhaseDetached {
		return ErrAlreadyAttached
	}

	r.callbacks = cb
	r.phase = PhaseAttachedPaused
	r.detachedAt = time.Time{}
	r.log.Debug("attached")
	return nil
}

// Detach clears the callback target and records the detach time for TTL
// eviction. cb must be the value passed to Attach; the check catches a
// component detaching someone else's Runner. Detaching while already
// detached is a no-op.
func (r *Runner) Detach(cb Callbacks) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.evicted {
		return ErrRunnerEvicted
	}
	if r.phase == PhaseDetached {
		return nil
	}
	if cb != nil && r.callbacks != nil && cb != r.callbacks {
		return ErrCallbacksMismatch
	}

	r.phase = PhaseDetached
	r.callbacks = nil
	r.detachedAt = r.clock()
	r.log.Debug("detached")
	return nil
}

// Pause gates delivery. Task dispatch continues; completions buffer in
// completion order until Resume. Pausing while paused is a no-op.
func (r *Runner) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.evicted {
		return ErrRunnerEvicted
	}
	if r.phase == PhaseDetached {
		return ErrNotAttached
	}

	r.phase = PhaseAttachedPaused
	return nil
}

// Resume ungates delivery and flushes every buffered outcome, oldest
// completion first, through the delivery loop. Callbacks run after
// Resume returns, never inside it. Resuming while resumed is a no-op.
func (r *Runner) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.evicted {
		return ErrRunnerEvicted
	}
	if r.phase == PhaseDetached {
		return ErrNotAttached
	}
	if r.phase == PhaseAttachedResumed {
		return nil
	}

	r.phase = PhaseAttachedResumed
	pending := r.buffer.drain()
	for _, h := range pending {
		r.postLocked(h)
	}
	if len(pending) > 0 {
		r.metrics.DeliveryQueueDepth(r.key, 0)
		r.log.WithField("flushed", len(pending)).Debug("resumed with buffered deliveries")
	}
	return nil
}

// Run enqueues an anonymous task: always dispatched fresh, never
// deduped, never cached. Returns the new task id without blocking.
func (r *Runner) Run(t task.Task) (int64, error) {
	if t == nil {
		return 0, ErrNilTask
	}

	r.mu.Lock()
	if r.evicted {
		r.mu.Unlock()
		return 0, ErrRunnerEvicted
	}
	h := r.newHandleLocked("", t, CacheNone)
	r.mu.Unlock()

	r.dispatch(h)
	return h.id, nil
}

// RunNamed enqueues a named task under the Runner's default cache and
// dedupe modes, unless overridden per call. The cache lookup, the
// in-flight lookup and the policy decision are evaluated atomically:
// two concurrent submissions of one name can never both dispatch.
func (r *Runner) RunNamed(name string, t task.Task, opts ...RunOption) (int64, error) {
	if name == "" {
		return 0, ErrInvalidName
	}
	if t == nil {
		return 0, ErrNilTask
	}

	r.mu.Lock()
	if r.evicted {
		r.mu.Unlock()
		return 0, ErrRunnerEvicted
	}

	cfg := runConfig{cache: r.defaultCache, dedupe: r.defaultDedupe}
	for _, opt := range opts {
		opt(&cfg)
	}

	// Cache first: a fresh success for the name completes the
	// submission synthetically, with no execution.
	if cfg.cache.lookup() {
		if e, ok := r.cache.get(name); ok {
			h := r.newHandleLocked(name, t, cfg.cache)
			h.state = HandleSucceeded
			h.result = e.result
			h.completedAt = r.clock()
			r.scheduleLocked(h)
			r.mu.Unlock()

			r.metrics.CacheHit(r.key)
			return h.id, nil
		}
	}

	existing := r.inflight[name]
	outcome, derr := resolveDedupe(existing != nil, cfg.dedupe)
	switch outcome {
	case dedupeReject:
		r.mu.Unlock()
		r.metrics.Dedupe(r.key, cfg.dedupe.String())
		return 0, fmt.Errorf("task %q: %w", name, derr)

	case dedupeAttach:
		id := existing.id
		r.mu.Unlock()
		r.metrics.Dedupe(r.key, cfg.dedupe.String())
		return id, nil

	case dedupeReplace:
		r.cancelLocked(existing)
		r.metrics.Dedupe(r.key, cfg.dedupe.String())
	}

	h := r.newHandleLocked(name, t, cfg.cache)
	r.inflight[name] = h
	r.mu.Unlock()

	r.dispatch(h)
	return h.id, nil
}

// Cancel requests cancellation of a task. Best effort: a queued task is
// cancelled outright, a running task is signalled through its context
// and may ignore it — its eventual outcome is then dropped without a
// callback or cache write. Cancelling a completed task is a no-op.
func (r *Runner) Cancel(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.evicted {
		return ErrRunnerEvicted
	}

	h, ok := r.handles[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTask, id)
	}
	r.cancelLocked(h)
	return nil
}

// Handle returns the handle for id, for read-only inspection.
func (r *Runner) Handle(id int64) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	return h, ok
}

// SetDefaultCacheMode replaces the Runner-wide default cache mode.
func (r *Runner) SetDefaultCacheMode(m CacheMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultCache = m
}

// SetDefaultDedupeMode replaces the Runner-wide default dedupe mode.
func (r *Runner) SetDefaultDedupeMode(m DedupeMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultDedupe = m
}

// Evict discards the Runner: every non-terminal handle is cancelled and
// the cache, buffered deliveries and callback slot are dropped. Called
// by the registry when the detached TTL lapses; every later operation
// fails with ErrRunnerEvicted. Idempotent.
func (r *Runner) Evict() {
	r.mu.Lock()
	if r.evicted {
		r.mu.Unlock()
		return
	}
	r.evicted = true
	for _, h := range r.handles {
		if !h.state.terminal() {
			h.state = HandleCancelled
			if h.cancel != nil {
				h.cancel()
			}
		}
	}
	r.handles = make(map[int64]*Handle)
	r.inflight = make(map[string]*Handle)
	r.cache.clear()
	r.buffer.clear()
	r.callbacks = nil
	r.phase = PhaseDetached
	r.mu.Unlock()

	r.metrics.RunnerEvicted(r.key)
	r.log.Info("evicted")

	// A Runner that created its own execution contexts releases them;
	// registry-shared ones stay up.
	if r.ownsPool {
		go r.pool.Close()
	}
	if r.ownsLoop {
		go r.delivery.Close()
	}
}

// newHandleLocked allocates the next id and registers a handle.
func (r *Runner) newHandleLocked(name string, t task.Task, mode CacheMode) *Handle {
	r.nextID++
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		runner:    r,
		id:        r.nextID,
		name:      name,
		t:         t,
		cacheMode: mode,
		ctx:       ctx,
		cancel:    cancel,
		state:     HandleQueued,
	}
	r.handles[h.id] = h
	return h
}

// dispatch hands a queued handle to the pool.
func (r *Runner) dispatch(h *Handle) {
	r.metrics.TaskDispatched(r.key)
	if err := r.pool.Submit(func(context.Context) { r.execute(h) }); err != nil {
		// Pool shut down under us. Fail the handle through the normal
		// completion path so the contract holds.
		r.complete(h, nil, fmt.Errorf("dispatch: %w", err), r.clock())
	}
}

// execute runs the task body on a worker goroutine.
func (r *Runner) execute(h *Handle) {
	r.mu.Lock()
	if h.state != HandleQueued {
		// Cancelled before a worker picked it up.
		r.mu.Unlock()
		return
	}
	h.state = HandleRunning
	ctx, t := h.ctx, h.t
	r.mu.Unlock()

	start := r.clock()
	result, err := runTask(ctx, t)
	r.complete(h, result, err, start)
}

// runTask executes the body, converting a panic into a failed outcome
// so it is delivered as an error instead of unwinding a worker.
func runTask(ctx context.Context, t task.Task) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return t.Execute(ctx)
}

// complete records a terminal outcome and routes it to delivery.
func (r *Runner) complete(h *Handle, result any, err error, start time.Time) {
	r.mu.Lock()
	if r.evicted {
		r.mu.Unlock()
		return
	}

	now := r.clock()
	if h.state == HandleCancelled || h.cancelReq {
		// Late result of a cancelled task: drop silently.
		h.state = HandleCancelled
		if r.inflight[h.name] == h {
			delete(r.inflight, h.name)
		}
		r.mu.Unlock()

		r.metrics.TaskCompleted(r.key, HandleCancelled.String(), now.Sub(start))
		r.log.WithFields(logrus.Fields{"id": h.id, "name": h.name}).Debug("dropped cancelled outcome")
		return
	}

	if err != nil {
		h.state = HandleFailed
		h.err = err
	} else {
		h.state = HandleSucceeded
		h.result = result
		if h.name != "" && h.cacheMode.writes() {
			r.cache.put(h.name, result, now)
		}
	}
	h.completedAt = now
	if r.inflight[h.name] == h {
		delete(r.inflight, h.name)
	}
	r.scheduleLocked(h)
	status := h.state.String()
	depth := r.buffer.size()
	r.mu.Unlock()

	r.metrics.TaskCompleted(r.key, status, now.Sub(start))
	r.metrics.DeliveryQueueDepth(r.key, depth)
}

// scheduleLocked routes a terminal handle to immediate or buffered
// delivery depending on the current phase.
func (r *Runner) scheduleLocked(h *Handle) {
	if r.phase == PhaseAttachedResumed {
		r.postLocked(h)
		return
	}
	r.buffer.insert(h)
}

// postLocked hands a handle to the delivery loop.
func (r *Runner) postLocked(h *Handle) {
	if err := r.delivery.Post(func() { r.deliver(h) }); err != nil {
		r.log.WithField("id", h.id).WithError(err).Warn("delivery loop rejected outcome")
	}
}

// deliver runs on the delivery loop goroutine. It re-checks the phase
// under the lock — the Runner may have paused or detached between the
// post and now — and re-buffers the handle if delivery is gated again.
// The delivered flag makes the terminal callback at-most-once no matter
// how many times a handle bounces.
func (r *Runner) deliver(h *Handle) {
	r.mu.Lock()
	if r.evicted || h.delivered {
		r.mu.Unlock()
		return
	}
	if r.phase != PhaseAttachedResumed || r.callbacks == nil {
		r.buffer.insert(h)
		r.mu.Unlock()
		return
	}

	h.delivered = true
	cb := r.callbacks
	name, id, t := h.name, h.id, h.t
	failed := h.state == HandleFailed
	result, err := h.result, h.err
	r.mu.Unlock()

	if failed {
		cb.OnTaskError(name, id, t, err)
		return
	}
	cb.OnTaskCompleted(name, id, t, result)
}

// cancelLocked transitions a handle toward cancellation.
func (r *Runner) cancelLocked(h *Handle) {
	switch h.state {
	case HandleQueued:
		h.state = HandleCancelled
	case HandleRunning:
		h.cancelReq = true
	default:
		return
	}
	if h.cancel != nil {
		h.cancel()
	}
	if r.inflight[h.name] == h {
		delete(r.inflight, h.name)
	}
}
