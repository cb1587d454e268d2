package waitq

import "container/heap"

type timedEntry struct {
	tid      int
	wakeTick uint32
}

// timedHeap is a container/heap min-heap ordered by wake tick, using
// wrap-tolerant signed comparison (spec.md §4.6): a is before b iff
// int32(a.wakeTick - b.wakeTick) < 0, which stays correct across a 32-bit
// tick counter wraparound as long as no two entries are more than 2^31
// ticks apart.
type timedHeap []timedEntry

func (h timedHeap) Len() int { return len(h) }
func (h timedHeap) Less(i, j int) bool {
	return int32(h[i].wakeTick-h[j].wakeTick) < 0
}
func (h timedHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *timedHeap) Push(x any)   { *h = append(*h, x.(timedEntry)) }
func (h *timedHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Timed is the timed wait queue (spec.md §4.6): Enqueue registers an
// absolute wake tick; Notify(now) drains every entry whose wake tick has
// arrived into the ready list, preserving the heap's min-heap property
// (spec.md §8) after every push/pop.
type Timed struct {
	heap  timedHeap
	ready []int
}

// NewTimed constructs an empty timed wait queue.
func NewTimed() *Timed {
	t := &Timed{}
	heap.Init(&t.heap)
	return t
}

// Enqueue registers tid to wake at wakeTick (an absolute tick value).
func (t *Timed) Enqueue(tid int, wakeTick uint32) {
	heap.Push(&t.heap, timedEntry{tid: tid, wakeTick: wakeTick})
}

// Notify drains every entry whose wake tick has arrived (wakeTick <= now,
// wrap-tolerant) to the ready list, returning the count drained. Spec.md §8
// requires a thread sleeping N ticks wakes at a tick value >= enqueue_tick
// + N; since entries only leave the heap once int32(now-wakeTick) >= 0,
// that bound holds by construction.
func (t *Timed) Notify(now uint32) int {
	moved := 0
	for t.heap.Len() > 0 {
		top := t.heap[0]
		if int32(now-top.wakeTick) < 0 {
			break
		}
		heap.Pop(&t.heap)
		t.ready = append(t.ready, top.tid)
		moved++
	}
	return moved
}

// Pop removes and returns the earliest-ready item, or ErrEmpty.
func (t *Timed) Pop() (int, error) {
	if len(t.ready) == 0 {
		return 0, ErrEmpty()
	}
	tid := t.ready[0]
	t.ready = t.ready[1:]
	return tid, nil
}

// Remove implements Queue: evicts tid from the heap or the ready list.
func (t *Timed) Remove(tid int) bool {
	for i, e := range t.heap {
		if e.tid == tid {
			heap.Remove(&t.heap, i)
			return true
		}
	}
	for i, r := range t.ready {
		if r == tid {
			t.ready = append(t.ready[:i], t.ready[i+1:]...)
			return true
		}
	}
	return false
}

// Delete clears the queue entirely.
func (t *Timed) Delete() {
	t.heap = nil
	t.ready = nil
}

// Len reports the combined heap+ready size.
func (t *Timed) Len() int { return t.heap.Len() + len(t.ready) }
