package proc

import (
	"testing"

	"fernos/internal/kcfg"

	"github.com/stretchr/testify/require"
)

func TestTableCreateSmallestFreeID(t *testing.T) {
	tbl := NewTable()
	p0, err := tbl.Create(NoParent)
	require.NoError(t, err)
	require.Equal(t, 0, p0.ID)

	p1, err := tbl.Create(p0.ID)
	require.NoError(t, err)
	require.Equal(t, 1, p1.ID)

	tbl.Release(p0.ID)
	p2, err := tbl.Create(p1.ID)
	require.NoError(t, err)
	require.Equal(t, 0, p2.ID, "reused proc ids come from the smallest free slot")
}

func TestAllocThreadSmallestFreeID(t *testing.T) {
	tbl := NewTable()
	p, err := tbl.Create(NoParent)
	require.NoError(t, err)

	th0, err := p.AllocThread()
	require.NoError(t, err)
	require.Equal(t, 0, th0.ID)

	th1, err := p.AllocThread()
	require.NoError(t, err)
	require.Equal(t, 1, th1.ID)

	p.RemoveThread(0)
	th2, err := p.AllocThread()
	require.NoError(t, err)
	require.Equal(t, 0, th2.ID)
}

func TestSignalDisallowedPending(t *testing.T) {
	p := newProcess(0, NoParent)
	p.SignalAllowed = 1 << SigCHLD
	p.SignalSet(SigCHLD)
	require.False(t, p.SignalDisallowedPending())

	p.SignalSet(5) // not allowed
	require.True(t, p.SignalDisallowedPending())
}

func TestGTIDRoundTrip(t *testing.T) {
	g := GTID(7, 3)
	pid, tid := SplitGTID(g)
	require.Equal(t, 7, pid)
	require.Equal(t, 3, tid)
}

func TestArgsBlockRewrite(t *testing.T) {
	block := EncodeArgsBlock([]string{"arg1", "arg2"})
	// header: two offsets plus a zero terminator word (12 bytes), so the
	// first string starts at offset 0x0C.
	RewriteArgsBlockAbsolute(block, kcfg.AppArgsAreaStart)

	off0 := leUint32(block[0:4])
	off1 := leUint32(block[4:8])
	term := leUint32(block[8:12])

	require.EqualValues(t, uint32(kcfg.AppArgsAreaStart)+12, off0)
	require.EqualValues(t, 0, term, "terminator word must stay zero so argv ends in NULL")

	arg0Start := off0 - uint32(kcfg.AppArgsAreaStart)
	arg1Start := off1 - uint32(kcfg.AppArgsAreaStart)
	require.Equal(t, "arg1", cStr(block[arg0Start:]))
	require.Equal(t, "arg2", cStr(block[arg1Start:]))
}

func TestArgsBlockLiteralExample(t *testing.T) {
	// spec.md §8 scenario 5's literal bytes.
	block := []byte{
		0x0C, 0, 0, 0,
		0x11, 0, 0, 0,
		0, 0, 0, 0,
		'a', 'r', 'g', '1', 0,
		'a', 'r', 'g', '2', 0,
	}
	const base = kcfg.VAddr(0x10000000)
	RewriteArgsBlockAbsolute(block, base)

	require.EqualValues(t, uint32(base)+0x0C, leUint32(block[0:4]))
	require.EqualValues(t, uint32(base)+0x11, leUint32(block[4:8]))
	require.EqualValues(t, 0, leUint32(block[8:12]))
	require.Equal(t, "arg1", cStr(block[0x0C:]))
	require.Equal(t, "arg2", cStr(block[0x11:]))
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func cStr(b []byte) string {
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	return string(b[:i])
}
