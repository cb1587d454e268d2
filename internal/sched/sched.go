// Package sched is the Scheduler (spec.md §4.5): a single runnable ring
// whose head is the currently running thread, the context-switch protocol
// that loads a thread's page directory and kernel stack, and the
// blocking/waking bookkeeping the wait-queue abstractions and the Handle/
// Plugin Object System both hand off to.
//
// Grounded in the teacher's scheduler_bootstrap.go go:linkname trampoline
// style, generalized from "the one Go goroutine the runtime happens to be
// running" to an explicit FIFO ring of (procID, threadID) pairs — this is
// the hosted-model stand-in for switch_k2u/popa/iret (spec.md Design
// Notes): there is no real ring transition, so "switching" means pointing
// the TSS at the target thread's kernel stack and returning its frame.
package sched

import (
	"fernos/internal/dip"
	"fernos/internal/kerr"
	"fernos/internal/proc"
	"fernos/internal/waitq"
)

// popper is satisfied by *waitq.Basic and *waitq.Timed, which share this
// single-value pop shape; *waitq.Vector's Pop also returns the matched
// event id, so it does not satisfy popper.
type popper interface {
	Pop() (int, error)
}

// Scheduler owns the runnable ring and the TSS the context-switch protocol
// reprograms on every switch.
type Scheduler struct {
	procs *proc.Table
	tss   *dip.TSS

	// ring is the runnable ring; ring[0] is the currently running thread's
	// gtid (spec.md §4.5: "the currently running thread is the ring's
	// head").
	ring []int
}

// New builds a scheduler over procs, reprogramming tss on every switch.
func New(procs *proc.Table, tss *dip.TSS) *Scheduler {
	return &Scheduler{procs: procs, tss: tss}
}

// Idle reports whether the runnable ring is empty — the only time kernel
// code may run with interrupts enabled (spec.md §5).
func (s *Scheduler) Idle() bool { return len(s.ring) == 0 }

// Current returns the head of the runnable ring, or ok=false if idle.
func (s *Scheduler) Current() (gtid int, ok bool) {
	if len(s.ring) == 0 {
		return 0, false
	}
	return s.ring[0], true
}

// MakeRunnable appends gtid to the ring's tail. A freshly woken thread
// "goes to the tail, never cutting in" (spec.md §4.5 ordering guarantees),
// and this is also how a newly created thread first enters the ring.
func (s *Scheduler) MakeRunnable(gtid int) {
	s.ring = append(s.ring, gtid)
}

// Yield advances the ring: the current head moves to the tail and the next
// thread becomes head. Called at a timer tick's scheduling decision or a
// voluntary yield at a syscall boundary (spec.md §4.9, §5).
func (s *Scheduler) Yield() {
	if len(s.ring) <= 1 {
		return
	}
	head := s.ring[0]
	s.ring = append(s.ring[1:], head)
}

// removeFromRing deletes gtid from the ring if present, reporting whether
// it was found.
func (s *Scheduler) removeFromRing(gtid int) bool {
	for i, g := range s.ring {
		if g == gtid {
			s.ring = append(s.ring[:i], s.ring[i+1:]...)
			return true
		}
	}
	return false
}

// thread resolves gtid to its live *proc.Thread, or an error if the
// process/thread no longer exists.
func (s *Scheduler) thread(gtid int) (*proc.Thread, error) {
	pid, tid := proc.SplitGTID(gtid)
	p, err := s.procs.Get(pid)
	if err != nil {
		return nil, err
	}
	th, ok := p.Threads[tid]
	if !ok {
		return nil, kerr.New("sched.thread", kerr.INVALID_INDEX, nil)
	}
	return th, nil
}

// Block transitions gtid to waiting and removes it from the runnable ring.
// The caller has already (or will, atomically within the same syscall
// handler invocation) enqueued gtid onto q with whatever extra parameters
// that queue's Enqueue takes; Block just does the scheduler-side
// bookkeeping and remembers q so a forced termination can find it.
func (s *Scheduler) Block(gtid int, q waitq.Queue) error {
	th, err := s.thread(gtid)
	if err != nil {
		return err
	}
	s.removeFromRing(gtid)
	th.State = proc.Waiting
	th.WaitQueues = append(th.WaitQueues, q)
	return nil
}

// CancelOtherWaits removes gtid from every wait queue it is registered on
// except keep, and drops them from its WaitQueues bookkeeping. This is the
// "first to fire wins and removes from the other" half of a timed wait
// raced against its primary wait (spec.md §5).
func (s *Scheduler) CancelOtherWaits(gtid int, keep waitq.Queue) error {
	th, err := s.thread(gtid)
	if err != nil {
		return err
	}
	kept := th.WaitQueues[:0]
	for _, q := range th.WaitQueues {
		if q == keep {
			kept = append(kept, q)
			continue
		}
		q.Remove(gtid)
	}
	th.WaitQueues = kept
	return nil
}

// Wake transitions gtid back to runnable: it is dropped from every wait
// queue it was registered on (the one that actually fired has already
// popped it; any others — a parallel timeout — are explicitly cancelled)
// and appended to the ring's tail.
func (s *Scheduler) Wake(gtid int) error {
	th, err := s.thread(gtid)
	if err != nil {
		return err
	}
	for _, q := range th.WaitQueues {
		q.Remove(gtid)
	}
	th.WaitQueues = nil
	th.State = proc.Runnable
	s.MakeRunnable(gtid)
	return nil
}

// DrainReady pops every ready item off q and wakes it, returning the
// number woken. Used after a wait queue's Notify to move released items
// onto the runnable ring (spec.md §4.5: "items it releases are appended to
// the runnable ring's tail").
func (s *Scheduler) DrainReady(q popper) int {
	n := 0
	for {
		gtid, err := q.Pop()
		if err != nil {
			break
		}
		if err := s.Wake(gtid); err != nil {
			continue
		}
		n++
	}
	return n
}

// RemoveThread is the queue's remove_thread hook's caller-side counterpart
// (spec.md §4.5 Cancellation): forced termination from a parent-initiated
// signal exit, exec replacing the thread, or wait-queue destruction. It
// walks every wait queue the thread is registered on removing it, drops it
// from the runnable ring if present, and transitions it to zombie with the
// given exit status so joiners see a matching error code.
func (s *Scheduler) RemoveThread(gtid int, exitStatus uint32) error {
	th, err := s.thread(gtid)
	if err != nil {
		return err
	}
	for _, q := range th.WaitQueues {
		q.Remove(gtid)
	}
	th.WaitQueues = nil
	s.removeFromRing(gtid)
	th.State = proc.Zombie
	th.ExitStatus = exitStatus
	return nil
}

// SwitchToHead performs the bookkeeping half of switch_k2u: it points the
// TSS at the head thread's kernel stack and returns the thread whose saved
// RegisterFrame the caller should resume. Returns an error if the ring is
// idle.
func (s *Scheduler) SwitchToHead() (*proc.Thread, error) {
	gtid, ok := s.Current()
	if !ok {
		return nil, kerr.New("sched.SwitchToHead", kerr.EMPTY, nil)
	}
	th, err := s.thread(gtid)
	if err != nil {
		return nil, err
	}
	s.tss.SetKernelStack(th.KernelStackTop)
	return th, nil
}

// SwitchToHeadWithRet is switch_k2u_with_ret: as SwitchToHead, but also
// patches the head thread's saved frame with a syscall return value before
// handing it back, for the synchronous-return half of the syscall
// dispatcher (spec.md §4.7).
func (s *Scheduler) SwitchToHeadWithRet(primary uint32, secondary *uint32) (*proc.Thread, error) {
	th, err := s.SwitchToHead()
	if err != nil {
		return nil, err
	}
	th.Frame.SetReturn(primary, secondary)
	return th, nil
}

// Len reports the number of runnable threads.
func (s *Scheduler) Len() int { return len(s.ring) }
