package kernel

import (
	"testing"

	"fernos/internal/kcfg"
	"fernos/internal/proc"

	"github.com/stretchr/testify/require"
)

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	return New(Config{
		PhysBase: 0,
		PhysEnd:  kcfg.PAddr(64 * 1024 * 1024),
		TickHz:   1000,
	})
}

func TestBootCreatesProcessZero(t *testing.T) {
	k := newTestKernel(t)
	p, err := k.Boot()
	require.NoError(t, err)
	require.Equal(t, 0, p.ID)
	require.Equal(t, proc.NoParent, p.Parent)
	require.Equal(t, 1, k.Sched.Len())
}

func TestForkCreatesRunnableChildWithIndependentHandles(t *testing.T) {
	k := newTestKernel(t)
	root, err := k.Boot()
	require.NoError(t, err)

	childPID, err := k.Fork(root.ID)
	require.NoError(t, err)
	require.NotEqual(t, root.ID, childPID)

	child, err := k.Procs.Get(childPID)
	require.NoError(t, err)
	require.True(t, root.LivingChildren[childPID])
	require.NotSame(t, root.PD, child.PD)
	require.Equal(t, 2, k.Sched.Len(), "root thread plus child thread both runnable")
}

func TestExitZombifiesProcessAndSignalsParent(t *testing.T) {
	k := newTestKernel(t)
	root, err := k.Boot()
	require.NoError(t, err)
	childPID, err := k.Fork(root.ID)
	require.NoError(t, err)

	require.NoError(t, k.Exit(childPID, 0, 7))

	child, err := k.Procs.Get(childPID)
	require.NoError(t, err)
	require.Equal(t, proc.Zombie, child.State)
	require.True(t, root.ZombieChildren[childPID])
	require.False(t, root.LivingChildren[childPID])
	require.True(t, root.SignalPending&(1<<proc.SigCHLD) != 0)
}

func TestReapReleasesZombieChild(t *testing.T) {
	k := newTestKernel(t)
	root, err := k.Boot()
	require.NoError(t, err)
	childPID, err := k.Fork(root.ID)
	require.NoError(t, err)
	require.NoError(t, k.Exit(childPID, 0, 42))

	status, err := k.Reap(root.ID, childPID)
	require.NoError(t, err)
	require.EqualValues(t, 42, status)

	_, err = k.Procs.Get(childPID)
	require.Error(t, err, "reaped process id must be released")
	require.False(t, root.ZombieChildren[childPID])
}

func TestExitOfRootHaltsKernel(t *testing.T) {
	k := newTestKernel(t)
	root, err := k.Boot()
	require.NoError(t, err)
	require.False(t, k.Halted())

	require.NoError(t, k.Exit(root.ID, 0, 0))
	require.True(t, k.Halted(), "process 0 exiting halts the system")
}

func TestExecRebuildsImageAndResumesFreshThreadZero(t *testing.T) {
	k := newTestKernel(t)
	root, err := k.Boot()
	require.NoError(t, err)
	_, err = root.AllocThread() // a second thread that exec must drop
	require.NoError(t, err)
	root.SignalAllowed = 0xFF

	app := &proc.UserApp{Entry: kcfg.AppAreaStart + 0x100}
	app.Areas[0] = proc.AppArea{
		Occupied:  true,
		Writable:  true,
		LoadVAddr: kcfg.AppAreaStart,
		AreaSize:  kcfg.PageSize,
	}

	th, err := k.Exec(root.ID, 0, app, nil)
	require.NoError(t, err)
	require.Equal(t, 0, th.ID)
	require.EqualValues(t, uint32(app.Entry), th.Frame.EIP)
	require.Len(t, root.Threads, 1, "every thread but a fresh thread 0 is dropped")
	require.Zero(t, root.SignalAllowed, "exec resets signal vectors")
}

func TestExecFailsOnUnknownProcess(t *testing.T) {
	k := newTestKernel(t)
	_, err := k.Exec(99, 0, &proc.UserApp{}, nil)
	require.Error(t, err)
}

func TestTimerTickAdvancesTickCounter(t *testing.T) {
	k := newTestKernel(t)
	_, err := k.Boot()
	require.NoError(t, err)

	k.TimerTick()
	k.TimerTick()
	require.EqualValues(t, 2, k.Tick.Now())
}
