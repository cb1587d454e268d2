// Package tick is the Time Source (spec.md §4.9): a monotonic 32-bit
// now_tick counter advanced from the timer ISR, which on every increment
// drains expired timed-wait-queue sleepers to runnable, fans the tick out
// to every plugin, and makes a scheduling decision.
//
// Grounded in the teacher's scheduler_bootstrap.go one-tick-at-a-time
// cooperative loop, adapted from driving the Go runtime's goroutine
// scheduler to driving this kernel's own.
package tick

import (
	"fernos/internal/hps"
	"fernos/internal/sched"
	"fernos/internal/waitq"
)

// Source is the timer-ISR-driven tick counter.
type Source struct {
	now     uint32
	timed   *waitq.Timed
	sched   *sched.Scheduler
	plugins *hps.Registry
}

// New builds a tick source starting at now_tick 0, wired to the given
// timed wait queue, scheduler, and plugin registry.
func New(timed *waitq.Timed, s *sched.Scheduler, plugins *hps.Registry) *Source {
	return &Source{timed: timed, sched: s, plugins: plugins}
}

// Now returns the current tick counter value.
func (src *Source) Now() uint32 { return src.now }

// WakeTickAfter computes the absolute wake tick for a sleep of n ticks
// from now, for callers enqueuing onto the timed wait queue.
func (src *Source) WakeTickAfter(n uint32) uint32 { return src.now + n }

// Advance increments now_tick by one and performs the timer ISR's three
// steps in order (spec.md §4.9): notify the timed wait queue, fan the tick
// out to every plugin, and make a scheduling decision (round-robin the
// runnable ring). Returns the number of sleepers woken.
func (src *Source) Advance() int {
	src.now++

	src.timed.Notify(src.now)
	woken := src.sched.DrainReady(src.timed)

	if src.plugins != nil {
		src.plugins.Tick(src.now)
	}

	src.sched.Yield()
	return woken
}
