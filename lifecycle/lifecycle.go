// Package lifecycle adapts a host component's lifecycle events to the
// Runner state machine.
//
// A Delegate receives the five host events — created, state-saved,
// paused, resumed, destroyed — and forwards them as attach, save,
// pause, resume and detach. The host must call OnCreate exactly once
// before any other event and OnDestroy exactly once at the end; the
// Delegate enforces both ends of that contract.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vinayprograms/taskrunner/registry"
	"github.com/vinayprograms/taskrunner/runner"
	"github.com/vinayprograms/taskrunner/state"
)

var (
	// ErrAlreadyCreated is returned by a second OnCreate.
	ErrAlreadyCreated = errors.New("lifecycle: already created")

	// ErrNotCreated is returned by any event before OnCreate.
	ErrNotCreated = errors.New("lifecycle: not created")

	// ErrDestroyed is returned by any event after OnDestroy.
	ErrDestroyed = errors.New("lifecycle: destroyed")
)

// Delegate binds one component instance to its Runner for the span
// between OnCreate and OnDestroy.
type Delegate struct {
	reg   *registry.Registry
	key   registry.Key
	cb    runner.Callbacks
	store state.Store

	mu        sync.Mutex
	r         *runner.Runner
	destroyed bool
}

// DelegateOption configures a Delegate.
type DelegateOption func(*Delegate)

// WithStateStore enables OnSaveState persistence and snapshot restore
// on OnCreate. Without it both are no-ops.
func WithStateStore(s state.Store) DelegateOption {
	return func(d *Delegate) {
		d.store = s
	}
}

// NewDelegate creates a Delegate for the component identified by key,
// delivering outcomes to cb.
func NewDelegate(reg *registry.Registry, key registry.Key, cb runner.Callbacks, opts ...DelegateOption) *Delegate {
	d := &Delegate{reg: reg, key: key, cb: cb}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnCreate attaches to the Runner for the component key, creating or
// reusing one through the registry. Must be the first event, exactly
// once per component instance.
func (d *Delegate) OnCreate(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return ErrDestroyed
	}
	if d.r != nil {
		return ErrAlreadyCreated
	}

	var opts []registry.AttachOption
	if d.store != nil {
		opts = append(opts, registry.WithSavedState(d.store))
	}
	r, err := d.reg.Attach(ctx, d.key, d.cb, opts...)
	if err != nil {
		return fmt.Errorf("on create: %w", err)
	}
	d.r = r
	return nil
}

// OnResume ungates delivery; buffered outcomes flush to the callbacks.
func (d *Delegate) OnResume() error {
	r, err := d.live()
	if err != nil {
		return err
	}
	return r.Resume()
}

// OnPause gates delivery; completions buffer until the next OnResume.
func (d *Delegate) OnPause() error {
	r, err := d.live()
	if err != nil {
		return err
	}
	return r.Pause()
}

// OnSaveState persists the Runner's in-flight descriptors, when a
// state store was configured.
func (d *Delegate) OnSaveState(ctx context.Context) error {
	r, err := d.live()
	if err != nil {
		return err
	}
	if d.store == nil {
		return nil
	}
	return r.SaveState(ctx, d.store)
}

// OnDestroy detaches from the Runner, starting its eviction TTL. The
// terminal event: every later call on the Delegate fails.
func (d *Delegate) OnDestroy() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return ErrDestroyed
	}
	if d.r == nil {
		return ErrNotCreated
	}

	d.destroyed = true
	if err := d.reg.Detach(d.key, d.cb); err != nil {
		return fmt.Errorf("on destroy: %w", err)
	}
	d.r = nil
	return nil
}

// Runner exposes the bound Runner between OnCreate and OnDestroy, for
// submitting tasks.
func (d *Delegate) Runner() (*runner.Runner, error) {
	return d.live()
}

func (d *Delegate) live() (*runner.Runner, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return nil, ErrDestroyed
	}
	if d.r == nil {
		return nil, ErrNotCreated
	}
	return d.r, nil
}
