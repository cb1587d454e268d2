package vmm

import (
	"testing"

	"fernos/internal/kcfg"
	"fernos/internal/ppa"

	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	p := ppa.New(0, 4096*kcfg.PageSize)
	mem := NewPhysMemory(0, 4096*kcfg.PageSize)
	return NewManager(p, mem)
}

func TestMapUnmapRoundTrip(t *testing.T) {
	m := newTestManager()
	pd := m.PDCreateUser()

	start, end := kcfg.AppAreaStart, kcfg.AppAreaStart+4*kcfg.PageSize
	require.NoError(t, m.PDMap(pd, start, end, true, true))
	require.Len(t, pd.user, 4)

	require.NoError(t, m.PDUnmap(pd, start, end))
	require.Len(t, pd.user, 0, "map(pd,r); unmap(pd,r) must restore PD state")
}

func TestPDMapFramesSharesFramesAcrossTwoDirectories(t *testing.T) {
	m := newTestManager()
	a, err := m.ppa.AllocOne(false)
	require.NoError(t, err)
	b, err := m.ppa.AllocOne(false)
	require.NoError(t, err)
	frames := []kcfg.PAddr{a, b}

	pd1 := m.PDCreateUser()
	pd2 := m.PDCreateUser()
	require.NoError(t, m.PDMapFrames(pd1, kcfg.SharedAreaStart, frames, true, true))
	require.NoError(t, m.PDMapFrames(pd2, kcfg.SharedAreaStart, frames, true, true))

	e1, ok := pd1.lookup(kcfg.SharedAreaStart)
	require.True(t, ok)
	e2, ok := pd2.lookup(kcfg.SharedAreaStart)
	require.True(t, ok)
	require.Equal(t, e1.Frame(), e2.Frame(), "both directories must see the same physical frame")

	require.NoError(t, m.PDUnmapFrames(pd1, kcfg.SharedAreaStart, 2))
	_, ok = pd1.lookup(kcfg.SharedAreaStart)
	require.False(t, ok)
	_, ok = pd2.lookup(kcfg.SharedAreaStart)
	require.True(t, ok, "unmapping from pd1 must not disturb pd2's mapping")
}

func TestKernelAreaSharedAcrossPDs(t *testing.T) {
	m := newTestManager()
	require.NoError(t, m.MapKernelArea(kcfg.KernelAreaStart, kcfg.KernelAreaStart+kcfg.PageSize, true))

	pd1 := m.PDCreateUser()
	pd2 := m.PDCreateUser()

	e1, ok1 := pd1.lookup(kcfg.KernelAreaStart)
	e2, ok2 := pd2.lookup(kcfg.KernelAreaStart)
	require.True(t, ok1)
	require.True(t, ok2)
	require.Equal(t, e1, e2, "kernel entries must appear identically in every process's page directory")
}

func TestMemCpyToFromUserRoundTrip(t *testing.T) {
	m := newTestManager()
	pd := m.PDCreateUser()
	start := kcfg.AppAreaStart
	require.NoError(t, m.PDMap(pd, start, start+kcfg.PageSize, true, true))

	msg := []byte("hello kernel")
	n, err := m.MemCpyToUser(pd, start+10, msg)
	require.NoError(t, err)
	require.Equal(t, len(msg), n)

	got := make([]byte, len(msg))
	n, err = m.MemCpyFromUser(pd, start+10, got)
	require.NoError(t, err)
	require.Equal(t, len(msg), n)
	require.Equal(t, msg, got)
}

func TestMemCpyToUserFaultsOnUnmapped(t *testing.T) {
	m := newTestManager()
	pd := m.PDCreateUser()

	n, err := m.MemCpyToUser(pd, kcfg.AppAreaStart, []byte("x"))
	require.Error(t, err)
	require.Equal(t, 0, n)
}

func TestMemCpyToUserFaultsOnReadOnly(t *testing.T) {
	m := newTestManager()
	pd := m.PDCreateUser()
	start := kcfg.AppAreaStart
	require.NoError(t, m.PDMap(pd, start, start+kcfg.PageSize, false, true))

	_, err := m.MemCpyToUser(pd, start, []byte("x"))
	require.Error(t, err)
}

func TestMemCpyPartialAcrossPageBoundary(t *testing.T) {
	m := newTestManager()
	pd := m.PDCreateUser()
	start := kcfg.AppAreaStart
	require.NoError(t, m.PDMap(pd, start, start+kcfg.PageSize, true, true))
	// second page intentionally left unmapped

	buf := make([]byte, kcfg.PageSize+16)
	n, err := m.MemCpyToUser(pd, start, buf)
	require.Error(t, err)
	require.Equal(t, kcfg.PageSize, n, "must report exactly the bytes that succeeded before the fault")
}

func TestRequestUserMemBounds(t *testing.T) {
	m := newTestManager()
	pd := m.PDCreateUser()

	trueEnd, err := m.RequestUserMem(pd, kcfg.FreeAreaStart, kcfg.FreeAreaStart+2*kcfg.PageSize)
	require.NoError(t, err)
	require.Equal(t, kcfg.FreeAreaStart+2*kcfg.PageSize, trueEnd)

	_, err = m.RequestUserMem(pd, kcfg.AppAreaStart, kcfg.AppAreaStart+kcfg.PageSize)
	require.Error(t, err, "must reject ranges outside the process's free area")
}
