// Package kernel assembles the Physical Page Allocator, Address Space
// Manager, Descriptor & Interrupt Plane, Thread/Process Model, Scheduler,
// Handle/Plugin Object System, and Time Source into the single aggregate
// that boots process 0 and serializes every entry point through one
// kernel-context lock (spec.md §5).
//
// Grounded in the teacher's kernel.go, which is itself the one place that
// wires MMIO, the heap, and the exception table together at boot; here
// that wiring happens in Go-level composition instead of linker scripts.
package kernel

import (
	"context"

	"github.com/go-logr/logr"
	"golang.org/x/sync/semaphore"

	"fernos/internal/dip"
	"fernos/internal/hps"
	"fernos/internal/kcfg"
	"fernos/internal/kerr"
	"fernos/internal/ppa"
	"fernos/internal/proc"
	"fernos/internal/sched"
	"fernos/internal/tick"
	"fernos/internal/vmm"
	"fernos/internal/waitq"
)

// Kernel is the fernos hosted kernel core: every subsystem reachable from
// plain Go method calls instead of real IDT vectors (SPEC_FULL.md §A).
type Kernel struct {
	Log logr.Logger

	PPA   *ppa.Allocator
	Phys  *vmm.PhysMemory
	VMM   *vmm.Manager
	GDT   *dip.GDT
	IDT   *dip.IDT
	TSS   *dip.TSS
	PIC   *dip.PIC
	PIT   *dip.PIT
	Procs *proc.Table
	Sched *sched.Scheduler
	HPS   *hps.Registry
	Timed *waitq.Timed
	Tick  *tick.Source

	// ctxLock models the single globally-owned (pd, esp) Kernel Context
	// (spec.md §5): Boot, TimerTick, Fork, Exit, Reap, Exec, Halt and
	// WithLock acquire it non-reentrantly, so exactly one of them ever
	// executes kernel code at a time, mirroring "kernel code runs with
	// interrupts disabled". Syscall dispatch takes no lock of its own; it
	// reaches the kernel through those entry points.
	ctxLock *semaphore.Weighted

	halted bool
}

// Config bounds physical memory and the tick rate for New.
type Config struct {
	PhysBase, PhysEnd kcfg.PAddr
	TickHz            uint32
	Log               logr.Logger
}

// New constructs a Kernel with every subsystem wired but not yet booted:
// call Boot to create process 0.
func New(cfg Config) *Kernel {
	p := ppa.New(cfg.PhysBase, cfg.PhysEnd)
	mem := vmm.NewPhysMemory(cfg.PhysBase, cfg.PhysEnd)
	mgr := vmm.NewManager(p, mem)

	procs := proc.NewTable()
	gdt := dip.NewGDT()
	tss := &dip.TSS{}
	s := sched.New(procs, tss)
	reg := hps.NewRegistry()
	timed := waitq.NewTimed()

	k := &Kernel{
		Log:     cfg.Log,
		PPA:     p,
		Phys:    mem,
		VMM:     mgr,
		GDT:     gdt,
		IDT:     dip.NewIDT(),
		TSS:     tss,
		PIC:     dip.NewPIC(),
		PIT:     dip.NewPIT(cfg.TickHz),
		Procs:   procs,
		Sched:   s,
		HPS:     reg,
		Timed:   timed,
		Tick:    tick.New(timed, s, reg),
		ctxLock: semaphore.NewWeighted(1),
	}
	return k
}

// lock acquires the kernel-context semaphore, panicking on reentrant entry
// (spec.md §5: "no reentrancy" — a context-canceled acquire here would
// mean two entry points raced, which is a programming error, not a
// recoverable condition).
func (k *Kernel) lock() {
	if !k.ctxLock.TryAcquire(1) {
		panic("kernel: reentrant kernel-context entry")
	}
}

func (k *Kernel) unlock() { k.ctxLock.Release(1) }

// Boot maps the kernel area and creates process 0 (spec.md §4.4: the first
// process has no parent).
func (k *Kernel) Boot() (*proc.Process, error) {
	k.lock()
	defer k.unlock()

	if err := k.VMM.MapKernelArea(kcfg.KernelAreaStart, kcfg.KernelAreaEnd, true); err != nil {
		return nil, err
	}
	p, err := k.Procs.Create(proc.NoParent)
	if err != nil {
		return nil, err
	}
	p.PD = k.VMM.PDCreateUser()
	th, err := p.AllocThread()
	if err != nil {
		return nil, err
	}
	k.Sched.MakeRunnable(proc.GTID(p.ID, th.ID))
	k.Log.Info("boot", "pid", p.ID)
	return p, nil
}

// TimerTick drives one timer-ISR step: acquire the kernel context, advance
// the Time Source, release (spec.md §4.9).
func (k *Kernel) TimerTick() int {
	k.lock()
	defer k.unlock()
	return k.Tick.Advance()
}

// Fork creates a child of parentPID: a new page directory (private user
// entries only — the spec.md §4.2 kernel area stays shared by reference),
// a deep copy of the handle table, and one thread whose frame is copied
// from the parent's thread 0 (spec.md §4.4). Fork does not know which
// thread called it; the syscall dispatcher's SCProcFork case overwrites
// the child thread's frame with the calling thread's.
func (k *Kernel) Fork(parentPID int) (childPID int, err error) {
	k.lock()
	defer k.unlock()

	parent, err := k.Procs.Get(parentPID)
	if err != nil {
		return 0, err
	}
	child, err := k.Procs.Create(parentPID)
	if err != nil {
		return 0, err
	}
	child.PD = k.VMM.PDCreateUser()
	handles, err := parent.Handles.Fork(child.ID)
	if err != nil {
		k.Procs.Release(child.ID)
		return 0, err
	}
	child.Handles = handles
	child.DefaultIn, child.DefaultOut = parent.DefaultIn, parent.DefaultOut
	child.SignalAllowed = parent.SignalAllowed

	parent.LivingChildren[child.ID] = true

	th, err := child.AllocThread()
	if err != nil {
		k.Procs.Release(child.ID)
		return 0, err
	}
	if pth, ok := parent.Threads[0]; ok {
		th.Frame = pth.Frame
	}
	k.Sched.MakeRunnable(proc.GTID(child.ID, th.ID))

	// SPEC_FULL.md §E.4: a plugin's on_fork_proc failing does not roll
	// back fork; proceed with partial plugin state and log it.
	for _, err := range k.HPS.ForkNotify(parentPID, child.ID) {
		k.Log.Error(err, "plugin on_fork_proc failed", "parent", parentPID, "child", child.ID)
	}
	return child.ID, nil
}

// Exit terminates thread tid of process pid with status, zombifying the
// thread and, once every thread is zombie, the process (spec.md §4.4).
func (k *Kernel) Exit(pid, tid int, status uint32) error {
	k.lock()
	defer k.unlock()

	p, err := k.Procs.Get(pid)
	if err != nil {
		return err
	}
	gtid := proc.GTID(pid, tid)
	if err := k.Sched.RemoveThread(gtid, status); err != nil {
		return err
	}
	k.wakeOneJoiner(p, tid, status)

	if p.AliveThreadCount() > 0 {
		return nil
	}
	return k.zombifyProcessLocked(p, status)
}

// wakeOneJoiner wakes at most one thread of p parked in sc_thread_join
// whose jv covers exitedTID, delivering retval (spec.md §4.4: "a thread
// that exits wakes at most one joiner whose jv covers its tid; if none,
// its retval is discarded").
func (k *Kernel) wakeOneJoiner(p *proc.Process, exitedTID int, retval uint32) {
	if p.JoinWQ.Notify(uint(exitedTID), waitq.First) == 0 {
		return
	}
	gtid, _, err := p.JoinWQ.Pop()
	if err != nil {
		return
	}
	if err := k.Sched.Wake(gtid); err != nil {
		return
	}
	_, tid := proc.SplitGTID(gtid)
	if joiner, ok := p.Threads[tid]; ok {
		sec := retval
		joiner.Frame.SetReturn(uint32(kerr.SUCCESS), &sec)
		joiner.Frame.ECX = uint32(exitedTID)
	}
}

func (k *Kernel) zombifyProcessLocked(p *proc.Process, status uint32) error {
	p.State = proc.Zombie
	p.ExitStatus = status

	if p.Parent == proc.NoParent {
		// spec.md Open Question, SPEC_FULL.md §E.1: process 0 exiting
		// halts the system rather than being reaped by anyone.
		k.halted = true
		k.Log.Info("process 0 exited; halting", "status", status)
		return nil
	}
	if parent, err := k.Procs.Get(p.Parent); err == nil {
		delete(parent.LivingChildren, p.ID)
		parent.ZombieChildren[p.ID] = true
		parent.SignalSet(proc.SigCHLD)
	}
	// p's children move to process 0 (spec.md §4.4): living ones stay
	// living, zombies wait there to be reaped.
	if root, err := k.Procs.Get(0); err == nil {
		adopt := func(children, into map[int]bool) {
			for cid := range children {
				if c, err := k.Procs.Get(cid); err == nil {
					c.Parent = root.ID
				}
				into[cid] = true
				delete(children, cid)
			}
		}
		adopt(p.LivingChildren, root.LivingChildren)
		adopt(p.ZombieChildren, root.ZombieChildren)
	}
	return nil
}

// Reap collects a zombie child of pid, releasing its address space, handle
// table, and process-table slot (spec.md §4.4).
func (k *Kernel) Reap(pid, childPID int) (exitStatus uint32, err error) {
	k.lock()
	defer k.unlock()

	p, err := k.Procs.Get(pid)
	if err != nil {
		return 0, err
	}
	if !p.ZombieChildren[childPID] {
		return 0, kerr.New("kernel.Reap", kerr.STATE_MISMATCH, nil)
	}
	child, err := k.Procs.Get(childPID)
	if err != nil {
		return 0, err
	}
	child.Handles.CloseAll()
	if err := k.VMM.PDDestroy(child.PD); err != nil {
		return 0, err
	}
	for _, err := range k.HPS.ReapNotify(childPID) {
		k.Log.Error(err, "plugin on_reap_proc failed", "pid", childPID)
	}
	delete(p.ZombieChildren, childPID)
	k.Procs.Release(childPID)
	return child.ExitStatus, nil
}

// Exec replaces pid's image in place (spec.md §4.4): every thread but
// callerTID is forced to zombie and dropped (the exec-replacing-a-thread
// case of the Cancellation policy, spec.md §5), every private user mapping
// is torn down and rebuilt from app.Areas, signal vectors reset, default
// I/O handle indices left untouched, argsBlock rewritten to absolute
// addresses and placed at kcfg.AppArgsAreaStart, and the caller itself
// reborn as a fresh thread 0 at app.Entry. Plugins are notified via
// on_reset_proc so any out-of-band per-process state they keep can reset
// too (spec.md §4.8).
func (k *Kernel) Exec(pid, callerTID int, app *proc.UserApp, argsBlock []byte) (*proc.Thread, error) {
	k.lock()
	defer k.unlock()

	p, err := k.Procs.Get(pid)
	if err != nil {
		return nil, err
	}
	if _, ok := p.Threads[callerTID]; !ok {
		return nil, kerr.New("kernel.Exec", kerr.INVALID_INDEX, nil)
	}

	const execTerminated = 1 // spec.md §6 PROC_ES_EXEC_TERMINATED-equivalent status for a non-caller thread dropped by exec
	for tid := range p.Threads {
		if tid == callerTID {
			continue
		}
		k.Sched.RemoveThread(proc.GTID(pid, tid), execTerminated)
		p.RemoveThread(tid)
	}
	k.Sched.RemoveThread(proc.GTID(pid, callerTID), execTerminated)
	p.RemoveThread(callerTID)

	if err := k.VMM.ResetUser(p.PD); err != nil {
		return nil, err
	}
	for _, area := range app.Areas {
		if !area.Occupied {
			continue
		}
		end := area.LoadVAddr + kcfg.VAddr(area.AreaSize)
		if err := k.VMM.PDMap(p.PD, area.LoadVAddr, end, area.Writable, true); err != nil {
			return nil, err
		}
		if len(area.GivenBytes) > 0 {
			if _, err := k.VMM.MemCpyToUser(p.PD, area.LoadVAddr, area.GivenBytes); err != nil {
				return nil, err
			}
		}
	}

	if err := k.VMM.PDMap(p.PD, kcfg.AppArgsAreaStart, kcfg.AppArgsAreaStart+kcfg.PageSize, true, true); err != nil {
		return nil, err
	}
	rewritten := append([]byte(nil), argsBlock...)
	proc.RewriteArgsBlockAbsolute(rewritten, kcfg.AppArgsAreaStart)
	if _, err := k.VMM.MemCpyToUser(p.PD, kcfg.AppArgsAreaStart, rewritten); err != nil {
		return nil, err
	}

	p.SignalPending = 0
	p.SignalAllowed = 0

	th, err := p.AllocThread()
	if err != nil {
		return nil, err
	}
	th.Frame.EIP = uint32(app.Entry)
	th.Frame.UserESP = uint32(th.StackStart)
	th.Frame.EAX = uint32(kcfg.AppArgsAreaStart) // argv, pointing at the rewritten offsets table

	for _, err := range k.HPS.ResetNotify(pid) {
		k.Log.Error(err, "plugin on_reset_proc failed", "pid", pid)
	}
	k.Sched.MakeRunnable(proc.GTID(pid, th.ID))
	return th, nil
}

// Halted reports whether the kernel has reached the fatal-halt state
// (process 0 exited, or internal/diag.Panic was invoked).
func (k *Kernel) Halted() bool { return k.halted }

// Halt forces the halted state, used by internal/diag's fatal path.
func (k *Kernel) Halt(reason string) {
	k.lock()
	defer k.unlock()
	k.halted = true
	k.HPS.ShutdownNotify()
	k.Log.Info("halt", "reason", reason)
}

// WithLock runs fn holding the kernel-context lock. fn must not call Boot,
// TimerTick, Fork, Exit, Reap, Exec or Halt: they take the same
// non-reentrant lock, and a second acquire panics.
func (k *Kernel) WithLock(fn func() error) error {
	k.lock()
	defer k.unlock()
	return fn()
}

// TryLockContext attempts a non-blocking acquire of the kernel context,
// returning false at once if it is held (ctx is not consulted), mirroring
// the "never reentrant,
// never waits" discipline without panicking — used by diagnostics that
// must not themselves deadlock the kernel they are reporting on.
func (k *Kernel) TryLockContext(ctx context.Context) bool {
	return k.ctxLock.TryAcquire(1)
}
