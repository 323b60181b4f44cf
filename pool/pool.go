package pool

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/vinayprograms/taskrunner/logging"
)

// Common errors.
var (
	// ErrClosed indicates the pool or loop no longer accepts work.
	ErrClosed = errors.New("pool closed")

	// ErrNilWork indicates a nil work item was submitted.
	ErrNilWork = errors.New("nil work")
)

// Work is one unit of execution scheduled on a worker.
// ctx is the pool's context; it is cancelled when the pool closes.
type Work func(ctx context.Context)

// Pool runs Work items on a fixed set of worker goroutines, overflowing
// into transient goroutines when every worker is occupied.
type Pool struct {
	workers int
	queue   chan Work

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	log *logrus.Entry
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the pool's logger.
func WithLogger(l *logrus.Logger) Option {
	return func(p *Pool) {
		p.log = logging.Component(l, "pool")
	}
}

// New creates a Pool with the given number of workers and starts them.
// workers values below one are raised to one.
func New(workers int, opts ...Option) *Pool {
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		workers: workers,
		queue:   make(chan Work, workers),
		ctx:     ctx,
		cancel:  cancel,
		log:     logging.Component(nil, "pool"),
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}
	return p
}

// Submit schedules w for execution. It never blocks: if no worker can
// take the item immediately, it runs on a transient goroutine instead.
func (p *Pool) Submit(w Work) error {
	if w == nil {
		return ErrNilWork
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.queue <- w:
		return nil
	default:
	}

	// All workers busy or blocked. Overflow rather than queue behind a
	// blocking task body.
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(-1, w)
	}()
	return nil
}

// Workers returns the fixed worker count.
func (p *Pool) Workers() int {
	return p.workers
}

// Close stops accepting work, cancels the pool context, and waits for
// in-flight work to return. Idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

func (p *Pool) workerLoop(id int) {
	defer p.wg.Done()
	for {
		select {
		case w := <-p.queue:
			p.run(id, w)
		case <-p.ctx.Done():
			// Drain anything accepted before close.
			for {
				select {
				case w := <-p.queue:
					p.run(id, w)
				default:
					return
				}
			}
		}
	}
}

// run executes one item, containing panics so a misbehaving body can
// never take down a worker. Task-level panic conversion happens in the
// runner; this is the last line of defense.
func (p *Pool) run(worker int, w Work) {
	defer func() {
		if r := recover(); r != nil {
			p.log.WithFields(logrus.Fields{
				"worker": worker,
				"panic":  r,
			}).Error("work item panicked")
		}
	}()
	w(p.ctx)
}
