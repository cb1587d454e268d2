// Package syscall is the Syscall Dispatcher (spec.md §4.7): it decodes the
// syscall id's top two bits into vanilla/handle/plugin categories and
// routes to the Kernel aggregate, a process's handle table, or the plugin
// registry, delivering the return value into the calling thread's saved
// register frame the way the real switch_k2u_with_ret does.
//
// Grounded in the teacher's mazboot/golang/main/syscall.go trap-handler
// switch (id -> handler function), generalized from one flat id space to
// the spec's three-category top-bits encoding.
package syscall

import (
	"fernos/internal/bitfield"
	"fernos/internal/hps"
	"fernos/internal/kcfg"
	"fernos/internal/kerr"
	"fernos/internal/kernel"
	"fernos/internal/proc"
	"fernos/internal/waitq"
)

// Category is the syscall id's top-two-bit class (spec.md §4.7).
type Category int

const (
	Vanilla Category = iota
	Handle
	Plugin
)

// Decode splits a 32-bit syscall id into its category and per-category
// fields: for Handle, a is the handle index; for Plugin, a is the plugin
// id. cmd is the low 16 bits in both cases.
func Decode(id uint32) (cat Category, a int, cmd uint16) {
	switch id >> 30 {
	case 0:
		return Vanilla, 0, uint16(id)
	case 1:
		return Handle, int((id >> 16) & 0xFF), uint16(id)
	default:
		return Plugin, int((id >> 16) & 0xFF), uint16(id)
	}
}

// Vanilla syscall ids (spec.md §4.4, §4.7): fixed kernel services, carried
// in the low 16 bits of a category-00 id (Decode ignores bits 16-29).
const (
	SCProcFork = iota
	SCThreadExit
	SCProcReap
	SCProcExec
	SCSignal
	SCSignalAllow
	SCSignalWait
	SCThreadSpawn
	SCThreadJoin
	SCThreadSleep
	SCMemRequest
	SCMemReturn
	SCWrite
	SCRead
	SCWaitWriteReady
	SCWaitReadReady
)

// Dispatcher routes decoded syscall ids to a Kernel aggregate.
type Dispatcher struct {
	K *kernel.Kernel
}

// New constructs a Dispatcher over k.
func New(k *kernel.Kernel) *Dispatcher {
	return &Dispatcher{K: k}
}

// Dispatch is the dispatcher's kernel entry point for one syscall from
// thread gtid: it mutates the thread's saved frame with the (synchronous)
// return value, or leaves it Waiting if the syscall blocks (spec.md §4.7:
// "a blocking syscall returns by marking the current thread waiting ...
// the eventual wake-up path must supply the return value"). Dispatch must
// not itself be wrapped in Kernel.WithLock: the individual Kernel
// operations it calls into (Fork, Exit, Exec, Reap) already acquire the
// non-reentrant kernel-context lock for their own critical section
// (spec.md §5), so locking around Dispatch too would panic on the
// re-acquire.
func (d *Dispatcher) Dispatch(gtid int, id uint32, a0, a1, a2, a3 uint32) {
	cat, a, cmd := Decode(id)
	switch cat {
	case Vanilla:
		d.vanilla(gtid, cmd, a0, a1, a2, a3)
	case Handle:
		d.handle(gtid, a, cmd, a0, a1, a2, a3)
	case Plugin:
		d.plugin(gtid, a, cmd, a0, a1, a2, a3)
	}
}

func (d *Dispatcher) thread(gtid int) (*proc.Process, *proc.Thread, error) {
	pid, tid := proc.SplitGTID(gtid)
	p, err := d.K.Procs.Get(pid)
	if err != nil {
		return nil, nil, err
	}
	th, ok := p.Threads[tid]
	if !ok {
		return nil, nil, kerr.New("syscall.thread", kerr.INVALID_INDEX, nil)
	}
	return p, th, nil
}

func (d *Dispatcher) ret(th *proc.Thread, kind kerr.Kind, secondary *uint32) {
	th.Frame.SetReturn(uint32(kind), secondary)
}

func (d *Dispatcher) vanilla(gtid int, cmd uint16, a0, a1, a2, a3 uint32) {
	p, th, err := d.thread(gtid)
	if err != nil {
		return
	}
	switch cmd {
	case SCProcFork:
		childPID, err := d.K.Fork(p.ID)
		if err != nil {
			d.ret(th, kerr.As(err), nil)
			return
		}
		sec := uint32(childPID)
		d.ret(th, kerr.SUCCESS, &sec)
		// child's thread 0 is a clone of the calling thread and returns
		// MAX_PROCS (spec.md §4.4); Kernel.Fork seeded it with the parent's
		// thread 0 frame, so copy the caller's frame in and patch it here.
		if child, err := d.K.Procs.Get(childPID); err == nil {
			if cth, ok := child.Threads[0]; ok {
				cth.Frame = th.Frame
				childSec := uint32(kcfg.MaxProcs)
				cth.Frame.SetReturn(uint32(kerr.SUCCESS), &childSec)
			}
		}

	case SCThreadExit:
		d.K.Exit(p.ID, th.ID, a0) // thread is now zombie; no frame to write back to

	case SCProcReap:
		cpid := int(a0)
		if cpid == kcfg.MaxProcs {
			cpid = d.firstZombieChild(p)
			if cpid < 0 {
				d.ret(th, kerr.EMPTY, nil)
				return
			}
		} else if !p.ZombieChildren[cpid] {
			d.ret(th, kerr.EMPTY, nil)
			return
		}
		status, err := d.K.Reap(p.ID, cpid)
		if err != nil {
			d.ret(th, kerr.As(err), nil)
			return
		}
		sec := status
		d.ret(th, kerr.SUCCESS, &sec)
		th.Frame.ECX = uint32(cpid)

	case SCProcExec:
		d.execProc(p, th, a0, a1, a2)

	case SCSignal:
		target, err := d.K.Procs.Get(int(a0))
		if err != nil {
			d.ret(th, kerr.As(err), nil)
			return
		}
		target.SignalSet(uint(a1))
		d.wakeSignalWaiter(target, uint(a1))
		d.ret(th, kerr.SUCCESS, nil)

	case SCSignalAllow:
		p.SignalAllowed = a0
		if p.SignalDisallowedPending() {
			d.K.Exit(p.ID, th.ID, procExitSignal)
			return
		}
		d.ret(th, kerr.SUCCESS, nil)

	case SCSignalWait:
		sv := a0
		if p.SignalPending&sv != 0 {
			sid := lowestSetBit(p.SignalPending & sv)
			p.SignalClear(sid)
			sec := uint32(sid)
			d.ret(th, kerr.SUCCESS, &sec)
			return
		}
		if err := p.SignalWQ.Enqueue(gtid, sv); err != nil {
			d.ret(th, kerr.As(err), nil)
			return
		}
		d.K.Sched.Block(gtid, p.SignalWQ)

	case SCThreadSpawn:
		nt, err := p.AllocThread()
		if err != nil {
			d.ret(th, kerr.As(err), nil)
			return
		}
		nt.Frame.EIP = a0
		nt.Frame.UserESP = a1
		d.K.Sched.MakeRunnable(proc.GTID(p.ID, nt.ID))
		sec := uint32(nt.ID)
		d.ret(th, kerr.SUCCESS, &sec)

	case SCThreadJoin:
		jv := a0
		if jv&(1<<uint(th.ID)) != 0 && jv == 1<<uint(th.ID) {
			d.ret(th, kerr.BAD_ARGS, nil) // jv selects only the caller
			return
		}
		if err := p.JoinWQ.Enqueue(gtid, jv); err != nil {
			d.ret(th, kerr.As(err), nil)
			return
		}
		d.K.Sched.Block(gtid, p.JoinWQ)

	case SCThreadSleep:
		wake := d.K.Tick.WakeTickAfter(a0)
		d.K.Timed.Enqueue(gtid, wake)
		d.K.Sched.Block(gtid, d.K.Timed)

	case SCMemRequest:
		end, err := d.K.VMM.RequestUserMem(p.PD, kcfg.VAddr(a0), kcfg.VAddr(a1))
		if err != nil {
			d.ret(th, kerr.As(err), nil)
			return
		}
		sec := uint32(end)
		d.ret(th, kerr.SUCCESS, &sec)

	case SCMemReturn:
		err := d.K.VMM.ReturnUserMem(p.PD, kcfg.VAddr(a0), kcfg.VAddr(a1))
		d.ret(th, kerr.As(err), nil)

	case SCWrite, SCRead, SCWaitWriteReady, SCWaitReadReady:
		d.defaultIO(gtid, p, th, cmd, a0, a1)

	default:
		d.ret(th, kerr.NOT_IMPLEMENTED, nil)
	}
}

// execProc services sc_proc_exec(user_app, args_block, args_block_size):
// a0 names the encoded UserApp record, a1/a2 the args block and its
// length, both in the caller's address space. A thread replaced by exec
// never returns to its old frame — either the new thread 0 resumes at
// app.Entry, or the process is left as it was on error, in which case the
// caller's original frame is what resumes (spec.md §4.4).
func (d *Dispatcher) execProc(p *proc.Process, th *proc.Thread, a0, a1, a2 uint32) {
	raw := make([]byte, proc.UserAppRecordSize)
	if _, err := d.K.VMM.MemCpyFromUser(p.PD, kcfg.VAddr(a0), raw); err != nil {
		d.ret(th, kerr.As(err), nil)
		return
	}
	readGiven := func(vaddr kcfg.VAddr, length int) ([]byte, error) {
		buf := make([]byte, length)
		if _, err := d.K.VMM.MemCpyFromUser(p.PD, vaddr, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}
	app, err := proc.DecodeUserApp(raw, readGiven)
	if err != nil {
		d.ret(th, kerr.As(err), nil)
		return
	}

	argsBlock := make([]byte, a2)
	if a2 > 0 {
		if _, err := d.K.VMM.MemCpyFromUser(p.PD, kcfg.VAddr(a1), argsBlock); err != nil {
			d.ret(th, kerr.As(err), nil)
			return
		}
	}

	if _, err := d.K.Exec(p.ID, th.ID, app, argsBlock); err != nil {
		d.ret(th, kerr.As(err), nil)
	}
	// On success there is no caller frame left to write a return value
	// into: th is now zombie and the fresh thread 0's frame already points
	// at app.Entry.
}

const procExitSignal = 5 // spec.md §6: PROC_ES_SIGNAL

func (d *Dispatcher) firstZombieChild(p *proc.Process) int {
	for pid := range p.ZombieChildren {
		return pid
	}
	return -1
}

func lowestSetBit(v uint32) uint {
	for i := uint(0); i < 32; i++ {
		if bitfield.Bit(v, i) {
			return i
		}
	}
	return 0
}

// wakeSignalWaiter wakes the one sc_signal_wait caller (if any) whose sv
// covers sid, clears the bit (spec.md §4.4: "on wake-up, the chosen bit is
// cleared"), and delivers sid as the syscall's secondary return value.
func (d *Dispatcher) wakeSignalWaiter(target *proc.Process, sid uint) {
	if target.SignalWQ.Notify(sid, waitq.First) == 0 {
		return
	}
	gtid, _, err := target.SignalWQ.Pop()
	if err != nil {
		return
	}
	if err := d.K.Sched.Wake(gtid); err != nil {
		return
	}
	target.SignalClear(sid)
	_, tid := proc.SplitGTID(gtid)
	if waiter, ok := target.Threads[tid]; ok {
		sec := uint32(sid)
		waiter.Frame.SetReturn(uint32(kerr.SUCCESS), &sec)
	}
}

// defaultIO services the default input/output handle family (spec.md
// §4.4: "default I/O family"), indirecting through whichever handle index
// a process's DefaultIn/DefaultOut currently names.
func (d *Dispatcher) defaultIO(gtid int, p *proc.Process, th *proc.Thread, cmd uint16, a0, a1 uint32) {
	idx := p.DefaultOut
	if cmd == SCRead || cmd == SCWaitReadReady {
		idx = p.DefaultIn
	}
	if idx < 0 {
		d.ret(th, kerr.INVALID_INDEX, nil)
		return
	}
	st, err := p.Handles.Get(idx)
	if err != nil {
		d.ret(th, kerr.As(err), nil)
		return
	}
	d.dispatchState(gtid, p, th, st, cmd, a0, a1)
}

func (d *Dispatcher) handle(gtid int, idx int, cmd uint16, a0, a1, a2, a3 uint32) {
	p, th, err := d.thread(gtid)
	if err != nil {
		return
	}
	st, err := p.Handles.Get(idx)
	if err != nil {
		d.ret(th, kerr.As(err), nil)
		return
	}
	if cmd >= kcfg.NumDefaultHCIDs {
		val, err := st.Cmd(cmd, a0, a1, a2, a3)
		d.ret(th, kerr.As(err), &val)
		return
	}
	d.dispatchState(gtid, p, th, st, cmd, a0, a1)
}

// dispatchState services the fixed, below-NumDefaultHCIDs handle-state
// hooks (write/wait_write_ready/read/wait_read_ready), applying the
// documented NULL-hook defaults (spec.md §4.8).
func (d *Dispatcher) dispatchState(gtid int, p *proc.Process, th *proc.Thread, st hps.State, cmd uint16, a0, a1 uint32) {
	switch cmd {
	case SCWrite:
		buf := make([]byte, a1)
		n, err := d.K.VMM.MemCpyFromUser(p.PD, kcfg.VAddr(a0), buf)
		if err != nil {
			d.ret(th, kerr.As(err), nil)
			return
		}
		written, err := st.Write(buf[:n])
		// A non-empty write may have just made the state readable (pipe's
		// ring notifies its readReady queue, keyboard's push notifies its
		// own); drain it back onto the runnable ring here rather than
		// leaving woken-but-never-drained waiters parked forever.
		if written > 0 {
			if q := st.ReadWaitQueue(); q != nil {
				d.K.Sched.DrainReady(q)
			}
		}
		sec := uint32(written)
		d.ret(th, kerr.As(err), &sec)

	case SCRead:
		buf := make([]byte, a1)
		n, err := st.Read(buf)
		if err != nil && kerr.As(err) != kerr.EMPTY {
			d.ret(th, kerr.As(err), nil)
			return
		}
		if n > 0 {
			if _, werr := d.K.VMM.MemCpyToUser(p.PD, kcfg.VAddr(a0), buf[:n]); werr != nil {
				d.ret(th, kerr.As(werr), nil)
				return
			}
			// Freed ring space may have just made the state writable;
			// drain its writeReady queue the same way SCWrite does for
			// readers.
			if q := st.WriteWaitQueue(); q != nil {
				d.K.Sched.DrainReady(q)
			}
		}
		sec := uint32(n)
		d.ret(th, kerr.As(err), &sec)

	case SCWaitWriteReady:
		q := st.WriteWaitQueue()
		if q == nil || st.Writable() {
			d.ret(th, kerr.SUCCESS, nil)
			return
		}
		q.Enqueue(gtid)
		d.K.Sched.Block(gtid, q)

	case SCWaitReadReady:
		q := st.ReadWaitQueue()
		if q == nil || st.Readable() {
			d.ret(th, kerr.SUCCESS, nil)
			return
		}
		q.Enqueue(gtid)
		d.K.Sched.Block(gtid, q)

	default:
		d.ret(th, kerr.NOT_IMPLEMENTED, nil)
	}
}

func (d *Dispatcher) plugin(gtid int, pluginID int, cmd uint16, a0, a1, a2, a3 uint32) {
	p, th, err := d.thread(gtid)
	if err != nil {
		return
	}
	pl, err := d.K.HPS.Get(pluginID)
	if err != nil {
		d.ret(th, kerr.As(err), nil)
		return
	}
	val, err := pl.Cmd(p.ID, cmd, a0, a1, a2, a3)
	if kerr.As(err) == kerr.WOULD_BLOCK {
		if bp, ok := pl.(hps.BlockingPlugin); ok {
			q, interest := bp.WaitQueue(a0)
			if qerr := q.Enqueue(gtid, interest); qerr == nil {
				d.K.Sched.Block(gtid, q)
				return
			}
		}
	}
	sec := val
	d.ret(th, kerr.As(err), &sec)
}
