package proc

import (
	"fernos/internal/bitfield"
	"fernos/internal/hps"
	"fernos/internal/kcfg"
	"fernos/internal/kerr"
	"fernos/internal/vmm"
	"fernos/internal/waitq"
)

// ProcState is a process's lifecycle state (spec.md §3): exactly one of
// alive, zombie, or reaped-and-gone (the last represented by the id simply
// not being present in the Table).
type ProcState int

const (
	Alive ProcState = iota
	Zombie
)

// NoParent marks a process with no parent. Only process 0 has it: when a
// process exits, the kernel rewrites its children's parent to 0 (spec.md
// §4.4), so no other process is left without one.
const NoParent = -1

// Process is a single address space plus its threads (spec.md §3).
type Process struct {
	ID    int
	State ProcState

	PD      *vmm.PageDirectory
	Threads map[int]*Thread
	nextTID int

	Parent         int
	LivingChildren map[int]bool
	ZombieChildren map[int]bool

	SignalPending uint32
	SignalAllowed uint32

	Handles *hps.Table

	ExitStatus uint32

	// DefaultIn/DefaultOut are the handle indices exec preserves across a
	// process image replacement (spec.md §4.4).
	DefaultIn, DefaultOut int

	// SignalWQ is the per-process signal wait queue (spec.md §4.4,
	// sc_signal_wait): a vector wait queue whose interest bitset is the
	// caller's requested sv and whose notify event id is the signal bit
	// just set, since that is exactly the vector wait queue's shape
	// (spec.md §4.6).
	SignalWQ *waitq.Vector

	// JoinWQ is the per-process join wait queue (spec.md §4.4,
	// sc_thread_join), keyed the same way: interest bitset is the
	// caller's jv (the tid-set it will accept), notify event id is the
	// exiting thread's tid.
	JoinWQ *waitq.Vector
}

func newProcess(id, parent int) *Process {
	return &Process{
		ID:             id,
		State:          Alive,
		Threads:        map[int]*Thread{},
		Parent:         parent,
		LivingChildren: map[int]bool{},
		ZombieChildren: map[int]bool{},
		Handles:        hps.NewTable(),
		DefaultIn:      -1,
		DefaultOut:     -1,
		SignalWQ:       waitq.NewVector(),
		JoinWQ:         waitq.NewVector(),
	}
}

// AllocThread creates a new thread at the smallest free thread id.
func (p *Process) AllocThread() (*Thread, error) {
	for tid := 0; tid < kcfg.MaxThreadsPerProc; tid++ {
		if _, used := p.Threads[tid]; !used {
			th := newThread(p.ID, tid)
			p.Threads[tid] = th
			return th, nil
		}
	}
	return nil, kerr.New("proc.AllocThread", kerr.NO_SPACE, nil)
}

// RemoveThread deletes tid from the thread table (it has already been
// transitioned to Zombie and unscheduled by the caller).
func (p *Process) RemoveThread(tid int) {
	delete(p.Threads, tid)
}

// AliveThreadCount reports how many of the process's threads are not yet
// zombie.
func (p *Process) AliveThreadCount() int {
	n := 0
	for _, th := range p.Threads {
		if th.State != Zombie {
			n++
		}
	}
	return n
}

// SignalSet sets bit sid in the pending vector.
func (p *Process) SignalSet(sid uint) {
	p.SignalPending = bitfield.SetBit(p.SignalPending, sid, true)
}

// SignalClear clears bit sid in the pending vector.
func (p *Process) SignalClear(sid uint) {
	p.SignalPending = bitfield.SetBit(p.SignalPending, sid, false)
}

// SignalDisallowedPending reports whether any pending bit is not in the
// allowed mask (spec.md §3, Signal Vector invariant).
func (p *Process) SignalDisallowedPending() bool {
	return p.SignalPending&^p.SignalAllowed != 0
}

// Signal ids (spec.md §4.4): bit 0 is CHLD.
const SigCHLD = 0
