package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vinayprograms/taskrunner/runner"
	"github.com/vinayprograms/taskrunner/state"
	"github.com/vinayprograms/taskrunner/task"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// sink is a minimal callback target.
type sink struct {
	ch chan string
}

func newSink() *sink {
	return &sink{ch: make(chan string, 16)}
}

func (s *sink) OnTaskCompleted(name string, id int64, t task.Task, result any) {
	s.ch <- name
}

func (s *sink) OnTaskError(name string, id int64, t task.Task, err error) {
	s.ch <- "error:" + name
}

func TestKeyIdentity(t *testing.T) {
	type engine struct{}

	a := KeyFor(&engine{}, "")
	b := KeyFor(engine{}, "")
	if a != b {
		t.Errorf("pointer and value keys differ: %v vs %v", a, b)
	}
	if a.Type != "registry.engine" {
		t.Errorf("type name = %q", a.Type)
	}

	c := KeyFor(&engine{}, "acct-1")
	if a == c {
		t.Error("discriminator must change identity")
	}
	if got := c.String(); got != "registry.engine#acct-1" {
		t.Errorf("String() = %q", got)
	}
	if got := NewKey("sync.Engine", "").String(); got != "sync.Engine" {
		t.Errorf("String() = %q", got)
	}
}

func TestReattachWithinTTLReusesRunner(t *testing.T) {
	clock := newFakeClock()
	reg := New(WithTTL(10*time.Second), WithClock(clock.Now))
	defer reg.Close()
	ctx := context.Background()
	key := NewKey("sync.Engine", "")

	cb1 := newSink()
	r1, err := reg.Attach(ctx, key, cb1)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if err := reg.Detach(key, cb1); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}

	clock.Advance(5 * time.Second) // half the TTL

	cb2 := newSink()
	r2, err := reg.Attach(ctx, key, cb2)
	if err != nil {
		t.Fatalf("re-Attach failed: %v", err)
	}
	if r2 != r1 {
		t.Error("expected the detached Runner to be reused within its TTL")
	}
	if r2.InstanceID() != r1.InstanceID() {
		t.Error("reused Runner changed instance id")
	}
}

func TestExpiredRunnerIsEvictedAndReplaced(t *testing.T) {
	clock := newFakeClock()
	reg := New(WithTTL(10*time.Second), WithClock(clock.Now))
	defer reg.Close()
	ctx := context.Background()
	key := NewKey("sync.Engine", "")

	cb1 := newSink()
	r1, err := reg.Attach(ctx, key, cb1)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	reg.Detach(key, cb1)

	clock.Advance(20 * time.Second) // past the TTL

	cb2 := newSink()
	r2, err := reg.Attach(ctx, key, cb2)
	if err != nil {
		t.Fatalf("Attach after expiry failed: %v", err)
	}
	if r2 == r1 {
		t.Fatal("expected a fresh Runner after TTL expiry")
	}
	if !r1.Evicted() {
		t.Error("expired Runner was not evicted")
	}
	if _, err := r1.Run(task.NewFunc(func(ctx context.Context) (any, error) { return nil, nil })); !errors.Is(err, runner.ErrRunnerEvicted) {
		t.Errorf("stale Runner must fail loudly, got %v", err)
	}
}

func TestSweepOnlyTouchesExpiredEntries(t *testing.T) {
	clock := newFakeClock()
	reg := New(WithTTL(10*time.Second), WithClock(clock.Now))
	defer reg.Close()
	ctx := context.Background()

	attached := NewKey("sync.Engine", "live")
	detached := NewKey("sync.Engine", "stale")

	cbA := newSink()
	if _, err := reg.Attach(ctx, attached, cbA); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	cbB := newSink()
	if _, err := reg.Attach(ctx, detached, cbB); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	reg.Detach(detached, cbB)

	clock.Advance(20 * time.Second)

	if got := reg.Sweep(); got != 1 {
		t.Errorf("Sweep evicted %d, want 1", got)
	}
	if _, ok := reg.Lookup(detached); ok {
		t.Error("expired entry survived the sweep")
	}
	if _, ok := reg.Lookup(attached); !ok {
		t.Error("attached entry was swept")
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestWorkSurvivesReconstruction(t *testing.T) {
	clock := newFakeClock()
	reg := New(WithTTL(time.Minute), WithClock(clock.Now))
	defer reg.Close()
	ctx := context.Background()
	key := NewKey("sync.Engine", "")

	cb1 := newSink()
	r1, err := reg.Attach(ctx, key, cb1)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	r1.Resume()

	gate := make(chan struct{})
	if _, err := r1.RunNamed("fetch", task.NewFunc(func(ctx context.Context) (any, error) {
		<-gate
		return "page", nil
	})); err != nil {
		t.Fatalf("RunNamed failed: %v", err)
	}

	// The component goes away mid-flight and a new instance attaches.
	reg.Detach(key, cb1)
	cb2 := newSink()
	r2, err := reg.Attach(ctx, key, cb2)
	if err != nil {
		t.Fatalf("re-Attach failed: %v", err)
	}
	r2.Resume()
	close(gate)

	select {
	case name := <-cb2.ch:
		if name != "fetch" {
			t.Errorf("delivered %q, want fetch", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("outcome never reached the reconstructed component")
	}
	select {
	case name := <-cb1.ch:
		t.Errorf("old instance received %q after detach", name)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAttachRestoresSavedState(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()
	ctx := context.Background()
	key := NewKey("sync.Engine", "")

	// First process: save with one in-flight task.
	reg1 := New()
	cb1 := newSink()
	r1, err := reg1.Attach(ctx, key, cb1)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	gate := make(chan struct{})
	id, _ := r1.RunNamed("fetch", task.NewFunc(func(c context.Context) (any, error) {
		select {
		case <-gate:
		case <-c.Done():
		}
		return nil, nil
	}))
	if err := reg1.SaveAll(ctx, store); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}
	close(gate)
	reg1.Close()

	// Second process: the snapshot comes back through Attach.
	reg2 := New()
	defer reg2.Close()
	cb2 := newSink()
	r2, err := reg2.Attach(ctx, key, cb2, WithSavedState(store))
	if err != nil {
		t.Fatalf("Attach with saved state failed: %v", err)
	}
	restored := r2.Restored()
	if len(restored) != 1 || restored[0].ID != id || restored[0].Name != "fetch" {
		t.Fatalf("restored = %+v, want one descriptor for fetch id %d", restored, id)
	}
}

func TestClosedRegistryRejectsAttach(t *testing.T) {
	reg := New()
	reg.Close()
	reg.Close() // idempotent

	if _, err := reg.Attach(context.Background(), NewKey("x", ""), newSink()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestBackgroundSweeper(t *testing.T) {
	clock := newFakeClock()
	reg := New(
		WithTTL(10*time.Second),
		WithClock(clock.Now),
		WithSweepInterval(5*time.Millisecond),
	)
	defer reg.Close()
	ctx := context.Background()
	key := NewKey("sync.Engine", "")

	cb := newSink()
	if _, err := reg.Attach(ctx, key, cb); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	reg.Detach(key, cb)
	clock.Advance(time.Minute)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := reg.Lookup(key); !ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("background sweeper never evicted the expired Runner")
}
