// Package proc is the Thread/Process Model (spec.md §4.4): the process
// table, per-process thread table, parent/child links, and the args-block
// encoding exec rewrites into a real argv.
//
// Grounded in the teacher's id-indexed metadata style (page.go's Page
// array indexed by frame number) generalized to process/thread ids, per
// the design note that cyclic pointer structures become id -> entry
// tables.
package proc

import (
	"fernos/internal/dip"
	"fernos/internal/kcfg"
	"fernos/internal/waitq"
)

// ThreadState is a thread's scheduling state (spec.md §3, Thread).
type ThreadState int

const (
	Runnable ThreadState = iota
	Waiting
	Zombie
)

func (s ThreadState) String() string {
	switch s {
	case Runnable:
		return "runnable"
	case Waiting:
		return "waiting"
	case Zombie:
		return "zombie"
	default:
		return "unknown"
	}
}

// Thread is a single schedulable unit of execution (spec.md §3).
type Thread struct {
	ProcID int
	ID     int

	Frame dip.RegisterFrame

	StackStart, StackEnd kcfg.VAddr
	State                ThreadState

	// ExitStatus is set when the thread is forced to zombie by something
	// other than a normal sc_thread_exit (e.g. remove_thread), so joiners
	// can be told why.
	ExitStatus uint32

	// WaitQueues holds every wait queue this thread is currently
	// registered on — ordinarily one, but a timed wait alongside a
	// primary wait (spec.md §5, timeouts) means two in parallel. A forced
	// termination's remove_thread hook walks this slice so no queue is
	// left holding a stale reference (spec.md §4.5).
	WaitQueues []waitq.Queue

	// RetKind/RetVal are the return-value slot a blocking syscall writes
	// into when it wakes (spec.md §3, Thread), read by the scheduler's
	// switch_k2u_with_ret equivalent just before resuming the thread.
	RetKind uint16
	RetVal  uint32

	// KernelStackTop is this thread's kernel-mode stack pointer, loaded
	// into the TSS's ESP0 field whenever the scheduler switches to it
	// (spec.md §4.5): each thread traps into the same ring-0 code but must
	// do so on its own kernel stack.
	KernelStackTop uint32
}

// GTID packs a (procID, threadID) pair into the single integer identity
// the scheduler and wait queues operate on.
func GTID(procID, threadID int) int {
	return procID*kcfg.MaxThreadsPerProc + threadID
}

// SplitGTID is GTID's inverse.
func SplitGTID(g int) (procID, threadID int) {
	return g / kcfg.MaxThreadsPerProc, g % kcfg.MaxThreadsPerProc
}

// newThread constructs a thread in Runnable state with a freshly assigned
// user stack area (spec.md §4.2: stack area indexed by thread id).
func newThread(procID, tid int) *Thread {
	start, end := kcfg.UserStackArea(tid)
	return &Thread{
		ProcID:         procID,
		ID:             tid,
		StackStart:     start,
		StackEnd:       end,
		State:          Runnable,
		KernelStackTop: uint32(kcfg.KernelAreaEnd) - uint32(GTID(procID, tid)+1)*kcfg.PageSize,
	}
}
