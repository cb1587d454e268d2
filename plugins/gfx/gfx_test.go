package gfx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func packArgs(lo, hi int) uint32 { return uint32(lo)&0xFFFF | (uint32(hi)&0xFFFF)<<16 }

func TestCmdBeforeInitIsInactive(t *testing.T) {
	p := NewPlugin(1)
	_, err := p.Cmd(0, CmdClear, 0xFF0000, 0, 0, 0)
	require.Error(t, err)
}

func TestInitSizesCanvas(t *testing.T) {
	p := NewPlugin(1)
	_, err := p.Cmd(0, CmdInit, packArgs(64, 0), packArgs(32, 0), 0, 0)
	require.NoError(t, err)

	w, h := p.Dimensions()
	require.Equal(t, 64, w)
	require.Equal(t, 32, h)
}

func TestClearFillsCanvasWithColor(t *testing.T) {
	p := NewPlugin(1)
	p.Cmd(0, CmdInit, packArgs(8, 0), packArgs(8, 0), 0, 0)

	_, err := p.Cmd(0, CmdClear, 0x0000FF, 0, 0, 0)
	require.NoError(t, err)

	bytes := p.ARGBBytes()
	require.Len(t, bytes, 8*8*4)
	// first pixel: A, R, G, B
	require.Equal(t, byte(0xFF), bytes[0])
	require.Equal(t, byte(0x00), bytes[1])
	require.Equal(t, byte(0x00), bytes[2])
	require.Equal(t, byte(0xFF), bytes[3])
}

func TestDrawRectPaintsWithinBounds(t *testing.T) {
	p := NewPlugin(1)
	p.Cmd(0, CmdInit, packArgs(10, 0), packArgs(10, 0), 0, 0)
	p.Cmd(0, CmdClear, 0x000000, 0, 0, 0)

	_, err := p.Cmd(0, CmdDrawRect, packArgs(2, 2), packArgs(4, 4), 0xFF0000, 0)
	require.NoError(t, err)

	bytes := p.ARGBBytes()
	idx := (3*10 + 3) * 4 // row 3, col 3: well inside the rect, away from AA edges
	require.Equal(t, byte(0xFF), bytes[idx+1], "red channel painted inside the rect")
}

func TestDrawGlyphReturnsPositiveAdvanceAndDoesNotPanic(t *testing.T) {
	p := NewPlugin(1)
	p.Cmd(0, CmdInit, packArgs(40, 0), packArgs(20, 0), 0, 0)

	adv, err := p.Cmd(0, CmdDrawGlyph, packArgs(2, 2), 0xFFFFFF, uint32('A'), 0)
	require.NoError(t, err)
	require.Greater(t, adv, uint32(0))
}

func TestDrawGlyphOnSpaceHasNoMaskButStillAdvances(t *testing.T) {
	p := NewPlugin(1)
	p.Cmd(0, CmdInit, packArgs(40, 0), packArgs(20, 0), 0, 0)

	adv, err := p.Cmd(0, CmdDrawGlyph, packArgs(2, 2), 0xFFFFFF, uint32(' '), 0)
	require.NoError(t, err)
	require.Greater(t, adv, uint32(0))
}
