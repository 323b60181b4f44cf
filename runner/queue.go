package runner

import "sort"

// deliveryQueue buffers handles whose outcomes could not be delivered
// because the Runner was paused or detached. Ordered by completion time,
// not submission time. All access happens under the Runner's mutex.
type deliveryQueue struct {
	items []*Handle
}

// insert places h in completion-time order, after any handle that
// completed at the same instant. Completions normally arrive in order,
// so this degenerates to an append; the sorted insert matters when a
// handle bounces back from the delivery loop after a rapid re-pause.
func (q *deliveryQueue) insert(h *Handle) {
	i := sort.Search(len(q.items), func(i int) bool {
		return q.items[i].completedAt.After(h.completedAt)
	})
	q.items = append(q.items, nil)
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = h
}

// drain returns the buffered handles in order and empties the queue.
func (q *deliveryQueue) drain() []*Handle {
	items := q.items
	q.items = nil
	return items
}

// clear discards the buffer.
func (q *deliveryQueue) clear() {
	q.items = nil
}

// size returns the number of buffered handles.
func (q *deliveryQueue) size() int {
	return len(q.items)
}
