package shm

import (
	"testing"

	"fernos/internal/kcfg"

	"github.com/stretchr/testify/require"
)

type fakeVMM struct {
	nextFrame kcfg.PAddr
	mapped    map[int][]kcfg.VAddr
	freed     [][]kcfg.PAddr
}

func newFakeVMM() *fakeVMM {
	return &fakeVMM{mapped: map[int][]kcfg.VAddr{}}
}

func (f *fakeVMM) alloc(n int) ([]kcfg.PAddr, error) {
	frames := make([]kcfg.PAddr, n)
	for i := range frames {
		frames[i] = f.nextFrame
		f.nextFrame += kcfg.PageSize
	}
	return frames, nil
}

func (f *fakeVMM) free(frames []kcfg.PAddr) error { f.freed = append(f.freed, frames); return nil }

func (f *fakeVMM) mapFn(pid int, start kcfg.VAddr, frames []kcfg.PAddr, writable bool) error {
	f.mapped[pid] = append(f.mapped[pid], start)
	return nil
}

func (f *fakeVMM) unmapFn(pid int, start kcfg.VAddr, numPages int) error {
	list := f.mapped[pid]
	for i, v := range list {
		if v == start {
			f.mapped[pid] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func TestCreateAttachIncrementsRefcount(t *testing.T) {
	v := newFakeVMM()
	p := NewPlugin(1, kcfg.VAddr(kcfg.PageSize*4), v.mapFn, v.unmapFn, v.alloc, v.free)

	ridVal, err := p.Cmd(0, CmdCreate, 2, 0, 0, 0)
	require.NoError(t, err)
	rid := int(ridVal)

	_, err = p.Cmd(10, CmdAttach, uint32(rid), 0, 0, 0)
	require.NoError(t, err)
	rc, ok := p.Refcount(rid)
	require.True(t, ok)
	require.Equal(t, 1, rc)

	_, err = p.Cmd(11, CmdAttach, uint32(rid), 1, 0, 0)
	require.NoError(t, err)
	rc, _ = p.Refcount(rid)
	require.Equal(t, 2, rc)
}

func TestDetachToZeroFreesFrames(t *testing.T) {
	v := newFakeVMM()
	p := NewPlugin(1, kcfg.VAddr(kcfg.PageSize*4), v.mapFn, v.unmapFn, v.alloc, v.free)

	ridVal, _ := p.Cmd(0, CmdCreate, 1, 0, 0, 0)
	rid := int(ridVal)
	p.Cmd(5, CmdAttach, uint32(rid), 0, 0, 0)

	_, err := p.Cmd(5, CmdDetach, uint32(rid), 0, 0, 0)
	require.NoError(t, err)

	_, ok := p.Refcount(rid)
	require.False(t, ok, "region is released once refcount reaches zero")
	require.Len(t, v.freed, 1)
}
