// Package shutdown coordinates ordered teardown of the task engine.
//
// A host process registers its pieces in phases — save state first,
// then close the registry, then flush telemetry — and the coordinator
// runs them on Shutdown or on SIGTERM/SIGINT. Lower phase numbers run
// first; handlers in the same phase run concurrently.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"
)

var (
	// ErrAlreadyShutdown indicates shutdown was already initiated.
	ErrAlreadyShutdown = errors.New("shutdown already initiated")

	// ErrTimeout indicates shutdown did not complete within the timeout.
	ErrTimeout = errors.New("shutdown timeout exceeded")
)

// Handler is implemented by pieces that need orderly teardown. The
// context is cancelled when the shutdown timeout lapses; handlers
// should stop then, even if work remains.
type Handler interface {
	OnShutdown(ctx context.Context) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context) error

// OnShutdown implements Handler.
func (f HandlerFunc) OnShutdown(ctx context.Context) error {
	return f(ctx)
}

// Conventional phases for the engine's pieces.
const (
	// PhaseSaveState persists Runner snapshots while everything is
	// still up.
	PhaseSaveState = 10

	// PhaseRegistry closes the registry, evicting Runners and stopping
	// the worker pool and delivery loop.
	PhaseRegistry = 20

	// PhaseBackends closes state stores and flushes telemetry.
	PhaseBackends = 30
)

// DefaultTimeout bounds a signal-triggered shutdown.
const DefaultTimeout = 30 * time.Second

type registration struct {
	name    string
	handler Handler
	phase   int
}

// Coordinator runs registered handlers in phase order, once.
type Coordinator struct {
	timeout time.Duration

	mu       sync.Mutex
	handlers []registration

	once       sync.Once
	done       chan struct{}
	err        error
	signalChan chan os.Signal
}

// NewCoordinator creates a Coordinator. A zero timeout means
// DefaultTimeout for signal-triggered shutdowns.
func NewCoordinator(timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Coordinator{
		timeout:    timeout,
		done:       make(chan struct{}),
		signalChan: make(chan os.Signal, 1),
	}
}

// Register adds a named handler in the given phase. Lower phases shut
// down first; equal phases shut down concurrently.
func (c *Coordinator) Register(name string, phase int, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, registration{name: name, handler: h, phase: phase})
}

// RegisterFunc adds a plain function as a handler.
func (c *Coordinator) RegisterFunc(name string, phase int, fn func(ctx context.Context) error) {
	c.Register(name, phase, HandlerFunc(fn))
}

// Shutdown runs every handler, phase by phase. A second call returns
// ErrAlreadyShutdown without running anything. Handler failures do not
// stop later phases; they are joined into the returned error.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	ran := false
	c.once.Do(func() {
		ran = true
		c.err = c.run(ctx)
		close(c.done)
	})
	if !ran {
		select {
		case <-c.done:
			return c.err
		default:
			return ErrAlreadyShutdown
		}
	}
	return c.err
}

// ShutdownWithTimeout runs Shutdown bounded by the coordinator timeout.
func (c *Coordinator) ShutdownWithTimeout() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.Shutdown(ctx)
}

// HandleSignals triggers ShutdownWithTimeout on SIGTERM or SIGINT.
func (c *Coordinator) HandleSignals() {
	signal.Notify(c.signalChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-c.signalChan
		_ = c.ShutdownWithTimeout()
	}()
}

// Done is closed when shutdown has completed.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err reports the shutdown outcome. Valid once Done is closed.
func (c *Coordinator) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Coordinator) run(ctx context.Context) error {
	c.mu.Lock()
	handlers := make([]registration, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	sort.SliceStable(handlers, func(i, j int) bool { return handlers[i].phase < handlers[j].phase })

	var errs []error
	for start := 0; start < len(handlers); {
		end := start
		for end < len(handlers) && handlers[end].phase == handlers[start].phase {
			end++
		}

		phase := handlers[start:end]
		results := make([]error, len(phase))
		var wg sync.WaitGroup
		for i, reg := range phase {
			wg.Add(1)
			go func(i int, reg registration) {
				defer wg.Done()
				results[i] = reg.handler.OnShutdown(ctx)
			}(i, reg)
		}
		wg.Wait()

		for i, err := range results {
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", phase[i].name, err))
			}
		}
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%w after phase %d", ErrTimeout, phase[0].phase))
			break
		}
		start = end
	}
	return errors.Join(errs...)
}
