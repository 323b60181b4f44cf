package pool

import (
	"errors"
	"testing"
	"time"
)

func TestLoopRunsInOrder(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	var got []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		l.Post(func() {
			got = append(got, i)
			if i == 4 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop never drained")
	}

	for i, v := range got {
		if v != i {
			t.Fatalf("out of order delivery: %v", got)
		}
	}
}

func TestLoopReentrantPost(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	done := make(chan struct{})
	l.Post(func() {
		// Posting from inside the loop must not deadlock.
		if err := l.Post(func() { close(done) }); err != nil {
			t.Errorf("re-entrant Post failed: %v", err)
		}
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("re-entrant post never ran")
	}
}

func TestLoopCloseDrains(t *testing.T) {
	l := NewLoop()

	ran := false
	l.Post(func() { ran = true })
	l.Close()

	if !ran {
		t.Error("queued function dropped by Close")
	}

	if err := l.Post(func() {}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}

	// Close again is a no-op.
	l.Close()
}

func TestLoopNilPost(t *testing.T) {
	l := NewLoop()
	defer l.Close()

	if err := l.Post(nil); !errors.Is(err, ErrNilWork) {
		t.Fatalf("expected ErrNilWork, got %v", err)
	}
}
