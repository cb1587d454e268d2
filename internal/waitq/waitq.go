// Package waitq implements the three Wait-Queue Abstractions of spec.md
// §4.6: a basic FIFO queue, a vector (event-bitset) queue, and a timed
// (wake-tick) queue. All three share the same shape — a waiting half and a
// ready half, with items moving from one to the other only via Notify, and
// leaving the queue only via Pop or Remove — which is what spec.md §8's
// wait-queue conservation property checks.
//
// Grounded in the teacher's ring-buffer bookkeeping (src/go/mazarin/virtqueue.go
// tracks used/avail indices the same way these queues track waiting/ready).
package waitq

import "fernos/internal/kerr"

// Mode selects how many matching items Notify releases to the ready half.
type Mode int

const (
	// First releases the single earliest-enqueued matching item (spec.md's
	// NEXT for the basic queue, FIRST for the vector queue).
	First Mode = iota
	// Last releases the single most-recently-enqueued matching item
	// (basic queue only).
	Last
	// All releases every matching item.
	All
)

// Queue is the common virtual interface spec.md §4.6 names: delete and
// remove(item). Each concrete queue additionally exposes its own
// Enqueue/Notify/Pop shape.
type Queue interface {
	// Remove forcibly evicts tid from the queue (waiting or ready half),
	// used by the scheduler's remove_thread hook on forced termination
	// (spec.md §4.5). Reports whether tid was present.
	Remove(tid int) bool
	// Delete clears the queue entirely, as when a resource backing the
	// queue (e.g. a futex, a closed pipe) is torn down.
	Delete()
	// Len reports the combined size of the waiting and ready halves, for
	// the wait-queue conservation property (spec.md §8).
	Len() int
}

var errEmpty = kerr.New("waitq.Pop", kerr.EMPTY, nil)

// ErrEmpty is returned by Pop when the ready half has nothing in it.
func ErrEmpty() error { return errEmpty }
