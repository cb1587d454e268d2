package hps

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// streamState is a minimal test double modeling a readable stream with an
// independent-on-copy cursor (SPEC_FULL.md §E.2).
type streamState struct {
	BaseState
	data []byte
	pos  int
}

func (s *streamState) Read(buf []byte) (int, error) {
	n := copy(buf, s.data[s.pos:])
	s.pos += n
	return n, nil
}

func (s *streamState) Copy(owner int) (State, error) {
	cp := *s // independent struct copy, including pos
	return &cp, nil
}

func TestTableAllocSmallestFreeIndex(t *testing.T) {
	tbl := NewTable()
	i1, err := tbl.Alloc(&streamState{data: []byte("a")})
	require.NoError(t, err)
	i2, err := tbl.Alloc(&streamState{data: []byte("b")})
	require.NoError(t, err)
	require.Equal(t, 0, i1)
	require.Equal(t, 1, i2)

	require.NoError(t, tbl.Close(i1))
	i3, err := tbl.Alloc(&streamState{data: []byte("c")})
	require.NoError(t, err)
	require.Equal(t, 0, i3, "closing slot 0 must make it the smallest free index again")
}

func TestForkDeepCopyIndependentPosition(t *testing.T) {
	tbl := NewTable()
	idx, err := tbl.Alloc(&streamState{data: []byte("0123456789")})
	require.NoError(t, err)

	buf := make([]byte, 3)
	st, _ := tbl.Get(idx)
	n, err := st.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	child, err := tbl.Fork(42)
	require.NoError(t, err)

	parentBuf := make([]byte, 7)
	pn, _ := st.Read(parentBuf)

	childSt, _ := child.Get(idx)
	childBuf := make([]byte, 7)
	cn, _ := childSt.Read(childBuf)

	require.Equal(t, pn, cn)
	require.Equal(t, parentBuf[:pn], childBuf[:cn], "child and parent must read identical bytes after fork (spec.md §8 handle round-trip)")
}

type countingPlugin struct {
	BasePlugin
	ticks int
}

func (p *countingPlugin) Tick(nowTick uint32) { p.ticks++ }

func TestRegistryTickFanOut(t *testing.T) {
	r := NewRegistry()
	p := &countingPlugin{BasePlugin: NewBasePlugin(1, "counter")}
	require.NoError(t, r.Register(p))

	r.Tick(1)
	r.Tick(2)
	require.Equal(t, 2, p.ticks)
}

func TestRegistryDuplicateIDRejected(t *testing.T) {
	r := NewRegistry()
	p1 := &countingPlugin{BasePlugin: NewBasePlugin(1, "a")}
	p2 := &countingPlugin{BasePlugin: NewBasePlugin(1, "b")}
	require.NoError(t, r.Register(p1))
	require.Error(t, r.Register(p2))
}
