package kdebug

import (
	"testing"

	"github.com/stretchr/testify/require"

	"fernos/internal/hps"
	"fernos/internal/proc"
)

type fakeState struct{ hps.BaseState }

func TestProcessTableListsEveryLiveProcess(t *testing.T) {
	procs := proc.NewTable()
	p0, err := procs.Create(proc.NoParent)
	require.NoError(t, err)
	_, err = p0.AllocThread()
	require.NoError(t, err)

	child, err := procs.Create(p0.ID)
	require.NoError(t, err)
	p0.LivingChildren[child.ID] = true

	out := string(ProcessTable(procs))
	require.Contains(t, out, "PID")
	require.Contains(t, out, "0")
	require.Contains(t, out, "1")
}

func TestProcessTableMarksZombieState(t *testing.T) {
	procs := proc.NewTable()
	p, err := procs.Create(proc.NoParent)
	require.NoError(t, err)
	p.State = proc.Zombie

	out := string(ProcessTable(procs))
	require.Contains(t, out, "zombie")
}

func TestThreadTableListsEachThread(t *testing.T) {
	procs := proc.NewTable()
	p, err := procs.Create(proc.NoParent)
	require.NoError(t, err)
	_, err = p.AllocThread()
	require.NoError(t, err)
	_, err = p.AllocThread()
	require.NoError(t, err)

	out := string(ThreadTable(p))
	require.Contains(t, out, "TID")
	require.Contains(t, out, "runnable")
}

func TestHandleTableListsOccupiedSlotsWithType(t *testing.T) {
	procs := proc.NewTable()
	p, err := procs.Create(proc.NoParent)
	require.NoError(t, err)

	idx, err := p.Handles.Alloc(&fakeState{})
	require.NoError(t, err)

	out := string(HandleTable(p))
	require.Contains(t, out, "FD")
	require.Contains(t, out, "fakeState")
	_ = idx
}

func TestDumpIncludesFieldValues(t *testing.T) {
	procs := proc.NewTable()
	p, err := procs.Create(proc.NoParent)
	require.NoError(t, err)
	p.SignalAllowed = 0xBEEF

	out := Dump(p)
	require.Contains(t, out, "SignalAllowed")
	require.Contains(t, out, "48879") // 0xBEEF in decimal, as go-spew renders it
}
