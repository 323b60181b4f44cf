package pool

import (
	"sync"
)

// Loop is a single dedicated goroutine that executes posted functions in
// order. It models the delivery context a component lives on: every
// completion callback the engine issues runs here, never on a worker.
//
// The internal queue is unbounded, so a callback may call Post (directly
// or through runner operations) without risking deadlock.
type Loop struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	closed  bool
	stopped chan struct{}
}

// NewLoop creates a Loop and starts its goroutine.
func NewLoop() *Loop {
	l := &Loop{stopped: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

// Post enqueues fn for execution on the loop goroutine.
func (l *Loop) Post(fn func()) error {
	if fn == nil {
		return ErrNilWork
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
	return nil
}

// Close stops the loop after the already-queued functions have run and
// waits for the goroutine to exit. Idempotent. Must not be called from
// the loop goroutine itself.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.stopped
		return
	}
	l.closed = true
	l.cond.Signal()
	l.mu.Unlock()
	<-l.stopped
}

func (l *Loop) run() {
	defer close(l.stopped)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 && l.closed {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()

		fn()
	}
}
