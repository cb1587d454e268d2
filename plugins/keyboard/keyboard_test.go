package keyboard

import (
	"testing"

	"fernos/internal/hps"

	"github.com/stretchr/testify/require"
)

func newFixture() (*Plugin, *hps.Table) {
	tbl := hps.NewTable()
	install := func(pid int, st hps.State) (int, error) { return tbl.Alloc(st) }
	return NewPlugin(1, install, nil), tbl
}

func TestOpenReadsPushedCodeViaInstalledHandle(t *testing.T) {
	p, tbl := newFixture()

	_, err := p.KernelCmd(CmdPushScancode, 0x1E, 0, 0, 0)
	require.NoError(t, err)

	idxVal, err := p.Cmd(0, CmdOpen, 0, 0, 0, 0)
	require.NoError(t, err)

	st, err := tbl.Get(int(idxVal))
	require.NoError(t, err)

	buf := make([]byte, 2)
	n, err := st.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, uint16(0x1E), uint16(buf[0])|uint16(buf[1])<<8)
}

func TestExtendedPrefixOrsIn0xE000(t *testing.T) {
	p, tbl := newFixture()

	_, err := p.KernelCmd(CmdPushScancode, extendedPrefix, 0, 0, 0)
	require.NoError(t, err)
	_, err = p.KernelCmd(CmdPushScancode, 0x48, 0, 0, 0) // extended "up arrow"
	require.NoError(t, err)

	idxVal, _ := p.Cmd(0, CmdOpen, 0, 0, 0, 0)
	st, _ := tbl.Get(int(idxVal))

	buf := make([]byte, 2)
	n, err := st.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	code := uint16(buf[0]) | uint16(buf[1])<<8
	require.Equal(t, uint16(0xE048), code)
}

func TestReadOnEmptyRingReturnsEmptyError(t *testing.T) {
	p, tbl := newFixture()

	idxVal, _ := p.Cmd(0, CmdOpen, 0, 0, 0, 0)
	st, _ := tbl.Get(int(idxVal))

	_, err := st.Read(make([]byte, 2))
	require.Error(t, err)
}

func TestRepeatedOpensShareTheSameGlobalRing(t *testing.T) {
	p, tbl := newFixture()

	firstIdx, _ := p.Cmd(0, CmdOpen, 0, 0, 0, 0)
	secondIdx, _ := p.Cmd(0, CmdOpen, 0, 0, 0, 0)

	_, err := p.KernelCmd(CmdPushScancode, 0x1C, 0, 0, 0) // enter make code
	require.NoError(t, err)

	first, _ := tbl.Get(int(firstIdx))
	n, err := first.Read(make([]byte, 2))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// the code was drained by the first reader; the second handle's view
	// of the same ring now sees it empty too.
	second, _ := tbl.Get(int(secondIdx))
	_, err = second.Read(make([]byte, 2))
	require.Error(t, err)
}
