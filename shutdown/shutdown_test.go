package shutdown

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestPhasesRunInOrder(t *testing.T) {
	c := NewCoordinator(time.Second)

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	// Registered out of phase order on purpose.
	c.RegisterFunc("backends", PhaseBackends, record("backends"))
	c.RegisterFunc("save", PhaseSaveState, record("save"))
	c.RegisterFunc("registry", PhaseRegistry, record("registry"))

	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	want := []string{"save", "registry", "backends"}
	if len(order) != len(want) {
		t.Fatalf("ran %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("ran %v, want %v", order, want)
		}
	}
}

func TestSamePhaseRunsConcurrently(t *testing.T) {
	c := NewCoordinator(time.Second)

	// Two handlers that each wait for the other; sequential execution
	// would deadlock until the context timeout.
	barrier := make(chan struct{}, 2)
	meet := func(context.Context) error {
		barrier <- struct{}{}
		select {
		case <-barrier:
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("peer never arrived")
		}
	}
	c.RegisterFunc("a", PhaseRegistry, meet)
	c.RegisterFunc("b", PhaseRegistry, meet)

	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestHandlerFailureDoesNotStopLaterPhases(t *testing.T) {
	c := NewCoordinator(time.Second)

	boom := errors.New("boom")
	laterRan := false
	c.RegisterFunc("failing", PhaseSaveState, func(context.Context) error { return boom })
	c.RegisterFunc("later", PhaseRegistry, func(context.Context) error {
		laterRan = true
		return nil
	})

	err := c.Shutdown(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	if !strings.Contains(err.Error(), "failing") {
		t.Errorf("error %v does not name the failed handler", err)
	}
	if !laterRan {
		t.Error("later phase skipped after failure")
	}
}

func TestShutdownRunsHandlersOnce(t *testing.T) {
	c := NewCoordinator(time.Second)
	ran := 0
	c.RegisterFunc("once", PhaseRegistry, func(context.Context) error {
		ran++
		return nil
	})

	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown failed: %v", err)
	}
	if err := c.Shutdown(context.Background()); err != nil {
		// Completed shutdown reports its recorded outcome.
		t.Fatalf("second Shutdown = %v", err)
	}
	if ran != 1 {
		t.Errorf("handler ran %d times", ran)
	}
}

func TestTimeoutStopsRemainingPhases(t *testing.T) {
	c := NewCoordinator(time.Second)

	skipped := false
	c.RegisterFunc("slow", PhaseSaveState, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	c.RegisterFunc("skipped", PhaseRegistry, func(context.Context) error {
		skipped = true
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.Shutdown(ctx)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if skipped {
		t.Error("phase after timeout still ran")
	}
}

func TestDoneAndErr(t *testing.T) {
	c := NewCoordinator(time.Second)
	if err := c.Err(); err != nil {
		t.Fatalf("Err before shutdown = %v", err)
	}
	select {
	case <-c.Done():
		t.Fatal("Done closed before shutdown")
	default:
	}

	boom := errors.New("boom")
	c.RegisterFunc("failing", PhaseRegistry, func(context.Context) error { return boom })
	c.Shutdown(context.Background())

	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed after shutdown")
	}
	if err := c.Err(); !errors.Is(err, boom) {
		t.Errorf("Err = %v, want boom", err)
	}
}
