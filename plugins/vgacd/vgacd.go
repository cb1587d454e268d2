// Package vgacd is the legacy VGA text-mode character-display service
// (spec.md §6, SPEC_FULL.md §D's vga_term.c/vga_cd.c supplement): a
// simulated 0xB8000 grid of 80 columns × 25 rows of (char, attr) cells,
// distinct from the ARGB framebuffer service in plugins/gfx.
//
// Grounded in the teacher's mmio newtype-over-a-base-address pattern
// (spec.md Design Notes: "model MMIO as zero-sized newtypes wrapping a
// base address with typed read/write accessors") applied here as a plain
// in-process byte grid instead of a real memory-mapped region, plus
// internal/diag's use of this plugin as the fatal-halt diagnostic surface
// (the teacher's k_bios_term boot-console path).
package vgacd

import (
	"fernos/internal/hps"
	"fernos/internal/kerr"
)

const (
	// Columns and Rows are the fixed legacy text-mode geometry.
	Columns = 80
	Rows    = 25

	// DefaultAttr is the attribute byte a plain write uses: light grey on
	// black, the BIOS default.
	DefaultAttr byte = 0x07
)

const (
	// CmdSetCursor moves the cursor to (a0=col, a1=row).
	CmdSetCursor uint16 = iota
	// CmdClear fills the grid with attr a0 (or DefaultAttr if a0 is 0) and
	// blanks.
	CmdClear
)

// Cell is one (char, attr) pair of the 0xB8000-style grid.
type Cell struct {
	Char byte
	Attr byte
}

// Plugin is the VGA text console's plugin-id collaborator: a single
// global grid (there is exactly one legacy text console, same
// one-instance reasoning as plugins/keyboard's scancode ring), written by
// WriteLine from the diagnostic-halt path and by handle writes from
// userspace.
type Plugin struct {
	hps.BasePlugin

	grid      [Rows][Columns]Cell
	cursorCol int
	cursorRow int

	install Installer
}

// Installer allocates st into callerPID's handle table. Supplied by
// Kernel wiring, same pattern as pipe.Installer/keyboard.Installer.
type Installer func(callerPID int, st hps.State) (int, error)

// NewPlugin constructs the VGA console plugin with a blank grid.
func NewPlugin(id int, install Installer) *Plugin {
	p := &Plugin{
		BasePlugin: hps.NewBasePlugin(id, "vgacd"),
		install:    install,
	}
	p.clear(DefaultAttr)
	return p
}

func (p *Plugin) clear(attr byte) {
	for r := range p.grid {
		for c := range p.grid[r] {
			p.grid[r][c] = Cell{Char: ' ', Attr: attr}
		}
	}
	p.cursorCol, p.cursorRow = 0, 0
}

// putChar writes a single character at the cursor and advances it,
// wrapping columns and scrolling the grid up one row once it runs off
// the bottom (the same terminal semantics the teacher's k_bios_term path
// assumes of any console it writes diagnostics to).
func (p *Plugin) putChar(ch, attr byte) {
	if ch == '\n' {
		p.cursorCol = 0
		p.cursorRow++
	} else {
		p.grid[p.cursorRow][p.cursorCol] = Cell{Char: ch, Attr: attr}
		p.cursorCol++
		if p.cursorCol >= Columns {
			p.cursorCol = 0
			p.cursorRow++
		}
	}
	if p.cursorRow >= Rows {
		copy(p.grid[:Rows-1], p.grid[1:])
		for c := range p.grid[Rows-1] {
			p.grid[Rows-1][c] = Cell{Char: ' ', Attr: attr}
		}
		p.cursorRow = Rows - 1
	}
}

// WriteLine overwrites row with text (truncated/space-padded to Columns)
// at DefaultAttr, without touching the cursor — the entry point
// internal/diag.Panic uses to post a fatal diagnostic, bypassing the
// scrolling teletype semantics putChar gives ordinary writes.
func (p *Plugin) WriteLine(row int, text string) {
	if row < 0 || row >= Rows {
		return
	}
	for c := 0; c < Columns; c++ {
		ch := byte(' ')
		if c < len(text) {
			ch = text[c]
		}
		p.grid[row][c] = Cell{Char: ch, Attr: DefaultAttr}
	}
}

// Snapshot returns a copy of the current grid, for diagnostics/tests.
func (p *Plugin) Snapshot() [Rows][Columns]Cell { return p.grid }

func (p *Plugin) KernelCmd(id uint16, a0, a1, a2, a3 uint32) (uint32, error) {
	switch id {
	case CmdSetCursor:
		col, row := int(a0), int(a1)
		if col < 0 || col >= Columns || row < 0 || row >= Rows {
			return 0, kerr.New("vgacd.KernelCmd", kerr.BAD_ARGS, nil)
		}
		p.cursorCol, p.cursorRow = col, row
		return 0, nil
	case CmdClear:
		attr := byte(a0)
		if attr == 0 {
			attr = DefaultAttr
		}
		p.clear(attr)
		return 0, nil
	default:
		return 0, kerr.New("vgacd.KernelCmd", kerr.NOT_IMPLEMENTED, nil)
	}
}

// Cmd installs a write-only handle over the shared global grid into the
// caller's table (spec.md §4.8's "character display" service accessed as
// a handle).
func (p *Plugin) Cmd(callerPID int, id uint16, a0, a1, a2, a3 uint32) (uint32, error) {
	idx, err := p.install(callerPID, &handle{p: p, attr: DefaultAttr})
	if err != nil {
		return 0, err
	}
	return uint32(idx), nil
}

// handle is the handle state vgacd.Cmd installs. Each open gets its own
// attribute byte (so two writers can use different colors) but shares the
// plugin's single grid (keyboard.handle shares its plugin's ring the same
// way, but has no per-open state).
type handle struct {
	hps.BaseState
	p    *Plugin
	attr byte
}

func (h *handle) Copy(owner int) (hps.State, error) { return &handle{p: h.p, attr: h.attr}, nil }
func (h *handle) Close() error                      { return nil }

func (h *handle) Write(buf []byte) (int, error) {
	for _, b := range buf {
		h.p.putChar(b, h.attr)
	}
	return len(buf), nil
}

func (h *handle) Cmd(id uint16, a0, a1, a2, a3 uint32) (uint32, error) {
	if id != 0 {
		return 0, kerr.New("vgacd.handle.Cmd", kerr.NOT_IMPLEMENTED, nil)
	}
	h.attr = byte(a0)
	return 0, nil
}
