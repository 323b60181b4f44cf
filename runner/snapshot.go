package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vinayprograms/taskrunner/state"
)

// Descriptor identifies one non-terminal task in a saved snapshot:
// enough for a restarted host to decide whether to re-submit, nothing
// more. Results are not persisted.
type Descriptor struct {
	// ID is the task id the handle had when the snapshot was taken.
	ID int64 `json:"id"`

	// Name is the task name, empty for anonymous tasks.
	Name string `json:"name,omitempty"`

	// State is the handle state string at snapshot time.
	State string `json:"state"`
}

// snapshot is the opaque value SaveState writes. The id counter is
// preserved so ids stay unique across a restart.
type snapshot struct {
	NextID  int64        `json:"next_id"`
	Pending []Descriptor `json:"pending,omitempty"`
}

// SaveState persists the Runner's in-flight task descriptors to store.
// Used only across full process-level reconstruction; detach/attach
// within one process keeps state in memory and never touches a store.
func (r *Runner) SaveState(ctx context.Context, store state.Store) error {
	r.mu.Lock()
	if r.evicted {
		r.mu.Unlock()
		return ErrRunnerEvicted
	}
	snap := snapshot{NextID: r.nextID}
	for _, h := range r.handles {
		if !h.state.terminal() {
			snap.Pending = append(snap.Pending, Descriptor{
				ID:    h.id,
				Name:  h.name,
				State: h.state.String(),
			})
		}
	}
	r.mu.Unlock()

	sort.Slice(snap.Pending, func(i, j int) bool { return snap.Pending[i].ID < snap.Pending[j].ID })

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := store.Put(ctx, StateKey(r.key), data); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// RestoreState loads a previously saved snapshot. The id counter is
// advanced past the saved one and the pending descriptors become
// available through Restored, so the host can skip re-submitting names
// it knows are covered. A missing snapshot is not an error.
func (r *Runner) RestoreState(ctx context.Context, store state.Store) error {
	data, err := store.Get(ctx, StateKey(r.key))
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("restore state: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.evicted {
		return ErrRunnerEvicted
	}
	if snap.NextID > r.nextID {
		r.nextID = snap.NextID
	}
	r.restored = snap.Pending
	return nil
}

// Restored returns the task descriptors recovered by RestoreState.
func (r *Runner) Restored() []Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Descriptor, len(r.restored))
	copy(out, r.restored)
	return out
}

// StateKey returns the store key for a component key, sanitized so
// every state backend accepts it.
func StateKey(componentKey string) string {
	sanitized := strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			return c
		case c == '.' || c == '_' || c == '-':
			return c
		default:
			return '-'
		}
	}, componentKey)
	return "taskrunner." + sanitized
}
