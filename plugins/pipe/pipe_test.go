package pipe

import (
	"testing"

	"fernos/internal/hps"

	"github.com/stretchr/testify/require"
)

func TestWriteThenReadRoundTrip(t *testing.T) {
	r, w := New(8)
	n, err := w.Write([]byte("hi"))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	buf := make([]byte, 8)
	n, err = r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hi", string(buf[:n]))
}

func TestReadEmptyReturnsEmptyAndExposesWaitQueue(t *testing.T) {
	r, _ := New(4)
	_, err := r.Read(make([]byte, 1))
	require.Error(t, err)

	q := r.ReadWaitQueue()
	require.NotNil(t, q)
	q.Enqueue(1)
	require.Equal(t, 1, q.Len())
}

func TestFullRingBlocksWriterUntilDrained(t *testing.T) {
	r, w := New(2)
	n, _ := w.Write([]byte("ab"))
	require.Equal(t, 2, n)

	n, _ = w.Write([]byte("c"))
	require.Zero(t, n, "a full ring accepts no more bytes")

	out := make([]byte, 1)
	r.Read(out)
	n, _ = w.Write([]byte("c"))
	require.Equal(t, 1, n, "freed space after a read lets the writer proceed")
}

func TestForkCopyIndependentHandleKeepsSharedRing(t *testing.T) {
	r, w := New(4)
	w.Write([]byte("x"))

	cpState, err := r.Copy(7)
	require.NoError(t, err)
	cp := cpState.(*ReadEnd)

	buf := make([]byte, 1)
	n, err := cp.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "x", string(buf[:n]), "fork's copy shares the underlying ring (same open pipe)")
}

func TestPluginCmdCreatePacksBothIndices(t *testing.T) {
	tbl := hps.NewTable()
	install := func(pid int, st hps.State) (int, error) { return tbl.Alloc(st) }
	p := NewPlugin(5, install)

	packed, err := p.Cmd(1, CmdCreate, 16, 0, 0, 0)
	require.NoError(t, err)

	readIdx := int(packed & 0xFFFF)
	writeIdx := int(packed >> 16)
	require.NotEqual(t, readIdx, writeIdx)

	_, err = tbl.Get(readIdx)
	require.NoError(t, err)
	_, err = tbl.Get(writeIdx)
	require.NoError(t, err)
}
