package syscall

import (
	"testing"

	"fernos/internal/kcfg"
	"fernos/internal/kerr"
	"fernos/internal/kernel"
	"fernos/internal/proc"

	"github.com/stretchr/testify/require"
)

func newFixture(t *testing.T) (*kernel.Kernel, *Dispatcher, *proc.Process) {
	t.Helper()
	k := kernel.New(kernel.Config{PhysEnd: kcfg.PAddr(64 * 1024 * 1024), TickHz: 1000})
	root, err := k.Boot()
	require.NoError(t, err)
	return k, New(k), root
}

func TestDecodeCategories(t *testing.T) {
	cat, _, cmd := Decode(uint32(SCProcFork))
	require.Equal(t, Vanilla, cat)
	require.EqualValues(t, SCProcFork, cmd)

	cat, h, cmd := Decode(1<<30 | 3<<16 | 5)
	require.Equal(t, Handle, cat)
	require.Equal(t, 3, h)
	require.EqualValues(t, 5, cmd)

	cat, pl, cmd := Decode(2<<30 | 7<<16 | 9)
	require.Equal(t, Plugin, cat)
	require.Equal(t, 7, pl)
	require.EqualValues(t, 9, cmd)
}

func TestForkReturnsChildPidToParentAndMaxProcsToChild(t *testing.T) {
	k, d, root := newFixture(t)
	g := proc.GTID(root.ID, 0)
	th := root.Threads[0]

	d.Dispatch(g, uint32(SCProcFork), 0, 0, 0, 0)
	require.EqualValues(t, kerr.SUCCESS, th.Frame.EAX)
	childPID := th.Frame.EDX

	child, err := k.Procs.Get(int(childPID))
	require.NoError(t, err)
	require.EqualValues(t, kerr.SUCCESS, child.Threads[0].Frame.EAX)
	require.EqualValues(t, kcfg.MaxProcs, child.Threads[0].Frame.EDX)
}

func TestExitReapRoundTrip(t *testing.T) {
	k, d, root := newFixture(t)
	g := proc.GTID(root.ID, 0)
	th := root.Threads[0]

	d.Dispatch(g, uint32(SCProcFork), 0, 0, 0, 0)
	childPID := int(th.Frame.EDX)

	require.NoError(t, k.Exit(childPID, 0, 42))

	d.Dispatch(g, uint32(SCProcReap), uint32(kcfg.MaxProcs), 0, 0, 0)
	require.EqualValues(t, kerr.SUCCESS, th.Frame.EAX)
	require.Equal(t, childPID, int(th.Frame.ECX))
	require.EqualValues(t, 42, th.Frame.EDX)
}

func TestSignalWaitWakesOnPendingBit(t *testing.T) {
	k, d, root := newFixture(t)
	g := proc.GTID(root.ID, 0)
	th := root.Threads[0]

	const sid = 3
	d.Dispatch(g, uint32(SCSignalWait), 1<<sid, 0, 0, 0)
	require.Equal(t, proc.Waiting, th.State)

	d.Dispatch(g, uint32(SCSignal), uint32(root.ID), sid, 0, 0)
	require.Equal(t, proc.Runnable, th.State)
	require.EqualValues(t, kerr.SUCCESS, th.Frame.EAX)
	require.EqualValues(t, sid, th.Frame.EDX)

	_ = k
}

func TestExecSyscallReplacesImage(t *testing.T) {
	k, d, root := newFixture(t)
	g := proc.GTID(root.ID, 0)
	oldTh := root.Threads[0]

	structAddr := kcfg.AppAreaStart
	require.NoError(t, k.VMM.PDMap(root.PD, structAddr, structAddr+kcfg.PageSize, true, true))

	app := &proc.UserApp{Entry: structAddr + 0x500}
	app.Areas[0] = proc.AppArea{
		Occupied:  true,
		Writable:  true,
		LoadVAddr: structAddr + kcfg.PageSize,
		AreaSize:  kcfg.PageSize,
	}
	var givenVAddrs [kcfg.MaxAppAreas]kcfg.VAddr
	raw := proc.EncodeUserApp(app, givenVAddrs)
	_, err := k.VMM.MemCpyToUser(root.PD, structAddr, raw)
	require.NoError(t, err)

	d.Dispatch(g, uint32(SCProcExec), uint32(structAddr), 0, 0, 0)

	newTh := root.Threads[0]
	require.NotSame(t, oldTh, newTh, "exec replaces the caller's thread with a fresh one")
	require.EqualValues(t, uint32(app.Entry), newTh.Frame.EIP)
	require.Len(t, root.Threads, 1)
}

func TestThreadSleepBlocksUntilTimerAdvances(t *testing.T) {
	k, d, root := newFixture(t)
	g := proc.GTID(root.ID, 0)
	th := root.Threads[0]

	d.Dispatch(g, uint32(SCThreadSleep), 2, 0, 0, 0)
	require.Equal(t, proc.Waiting, th.State)

	k.TimerTick()
	require.Equal(t, proc.Waiting, th.State)
	k.TimerTick()
	require.Equal(t, proc.Runnable, th.State)
}
