// Package futex is the futex service (spec.md §5: "the only atomic
// primitive exposed is cmp_xchg, used by userspace to implement futexes;
// the futex syscall wait/wake pair delivers wait-queue semantics across
// processes").
//
// Grounded in the teacher's mazboot/golang/main/syscall.go futexWaiters
// array (a fixed-size table of (addr, waiting) pairs), re-expressed per
// SPEC_FULL.md §D as a single vector wait queue keyed by the watched
// address instead of a fixed MAX_FUTEX_WAITERS array: each distinct
// address seen gets its own interest-bit slot, so CmdWake's notify is
// exactly the vector wait queue's "promote entries whose interest bit
// event_id is set" operation (spec.md §4.6).
package futex

import (
	"fernos/internal/hps"
	"fernos/internal/kerr"
	"fernos/internal/waitq"
)

const (
	// CmdWait parks the caller on the address a0 if *a0's current value
	// (a1, supplied by the caller after an atomic load) still equals the
	// expected value (a2).
	CmdWait uint16 = iota
	// CmdWake wakes waiters on address a0: a1 == 1 wakes one, else all.
	CmdWake
)

// WouldBlock is returned by Cmd for CmdWait when the caller must actually
// park; the syscall dispatcher recognizes kerr.WOULD_BLOCK on any
// hps.BlockingPlugin, enqueuing onto WaitQueue(a0) and calling
// Scheduler.Block instead of returning this to userspace.
var WouldBlock = kerr.New("futex.Wait", kerr.WOULD_BLOCK, nil)

const maxWatchedAddrs = 32

// Plugin is the futex service's plugin-id collaborator: one shared vector
// wait queue, with each watched address assigned its own interest bit the
// first time it is waited on.
type Plugin struct {
	hps.BasePlugin

	wq      *waitq.Vector
	slots   map[uint32]uint // address -> assigned event id (interest bit index)
	nextBit uint
	wake    func(gtid int) error // Scheduler.Wake, supplied by Kernel wiring
}

// NewPlugin constructs the futex plugin. wake is Scheduler.Wake, so the
// plugin can move a woken thread back onto the runnable ring without
// importing internal/sched (which in turn would import internal/proc,
// breaking hps's dependency-inversion design).
func NewPlugin(id int, wake func(gtid int) error) *Plugin {
	return &Plugin{
		BasePlugin: hps.NewBasePlugin(id, "futex"),
		wq:         waitq.NewVector(),
		slots:      map[uint32]uint{},
		wake:       wake,
	}
}

// slotFor assigns (or reuses) a's interest bit. Addresses beyond
// maxWatchedAddrs wrap around, aliasing onto an existing bit — a
// conservative choice that can produce spurious wakes but never a missed
// one, same as real futex hash-table implementations under collision.
func (p *Plugin) slotFor(addr uint32) uint {
	if bit, ok := p.slots[addr]; ok {
		return bit
	}
	bit := p.nextBit % maxWatchedAddrs
	p.nextBit++
	p.slots[addr] = bit
	return bit
}

// WaitQueue returns the shared vector wait queue and the interest bitset
// the caller should enqueue with, for the syscall dispatcher to use after
// Cmd reports WouldBlock.
func (p *Plugin) WaitQueue(addr uint32) (*waitq.Vector, uint32) {
	return p.wq, uint32(1) << p.slotFor(addr)
}

func (p *Plugin) Cmd(callerPID int, id uint16, a0, a1, a2, a3 uint32) (uint32, error) {
	switch id {
	case CmdWait:
		if a1 != a2 {
			// *addr != expected: the word already changed, don't sleep
			// (spec.md's cmp_xchg-backed futex avoids the lost-wakeup
			// race the teacher's comment documents).
			return 0, nil
		}
		return 0, WouldBlock

	case CmdWake:
		mode := waitq.All
		if a1 == 1 {
			mode = waitq.First
		}
		eventID := p.slotFor(a0)
		p.wq.Notify(eventID, mode)
		woken := 0
		for {
			gtid, _, err := p.wq.Pop()
			if err != nil {
				break
			}
			if err := p.wake(gtid); err == nil {
				woken++
			}
		}
		return uint32(woken), nil

	default:
		return 0, kerr.New("futex.Cmd", kerr.NOT_IMPLEMENTED, nil)
	}
}
