// Package keyboard is the keyboard service (spec.md §4.8, §6, §211): IRQ1
// delivers raw PS/2 scan-set 1 bytes into the plugin's kernel_cmd hook,
// which translates them into 16-bit codes (extended keys OR'd with
// 0xE000, spec.md §6) and appends them to a single global scancode ring —
// global because there is exactly one keyboard, unlike the per-process
// handle tables everything else in the HPS indexes.
//
// Grounded in the teacher's irq1_action dispatch (mazarin's DIP-owned
// IRQ1 trampoline feeding a fixed-size scancode buffer) and the pipe
// ring's head/tail bookkeeping, reused here for a ring of uint16 codes
// instead of bytes.
package keyboard

import (
	"fernos/internal/hps"
	"fernos/internal/kerr"
	"fernos/internal/waitq"
)

const (
	// CmdPushScancode is the kernel_cmd id the IRQ1 action invokes with a0
	// holding the raw byte read from the PS/2 controller's data port.
	CmdPushScancode uint16 = iota
)

const (
	// CmdOpen is the plugin-id command that installs a handle onto the
	// shared global ring (spec.md: "mapping PS/2 scan-set 1 to a pollable
	// handle").
	CmdOpen uint16 = 0
)

// extendedPrefix is the scan-set 1 byte that announces the next byte
// belongs to an extended key (spec.md §6).
const extendedPrefix = 0xE0

// ringCapacity bounds the number of buffered-but-unread codes; once full,
// new scancodes are dropped (a stuck key outruns no reader it doesn't
// have) rather than blocking the IRQ1 action, which must never block.
const ringCapacity = 32

// Installer allocates st into callerPID's handle table at the smallest
// free index. Supplied by Kernel wiring over the live process table, same
// pattern as pipe.Installer.
type Installer func(callerPID int, st hps.State) (int, error)

// Drain moves every now-ready waiter on q back onto the runnable ring
// (Scheduler.DrainReady). Supplied by Kernel wiring, since hps cannot
// import internal/sched (the dependency-inversion design in hps's own doc
// comment) but a pushed scancode still has to wake whoever is blocked in
// wait_read_ready.
type Drain func(q *waitq.Basic) int

// Plugin is the keyboard service's plugin-id and kernel-id collaborator:
// one global scan-code ring plus the extended-prefix state machine that
// feeds it.
type Plugin struct {
	hps.BasePlugin

	codes        []uint16
	head, tail   int
	full         bool
	pendExtended bool

	readReady *waitq.Basic
	install   Installer
	drain     Drain
}

// NewPlugin constructs the keyboard plugin and its global ring.
func NewPlugin(id int, install Installer, drain Drain) *Plugin {
	return &Plugin{
		BasePlugin: hps.NewBasePlugin(id, "keyboard"),
		codes:      make([]uint16, ringCapacity),
		readReady:  waitq.NewBasic(),
		install:    install,
		drain:      drain,
	}
}

func (p *Plugin) len() int {
	if p.full {
		return len(p.codes)
	}
	if p.tail >= p.head {
		return p.tail - p.head
	}
	return len(p.codes) - p.head + p.tail
}

func (p *Plugin) push(code uint16) {
	if p.full {
		return // ring full: drop, see ringCapacity's doc comment
	}
	p.codes[p.tail] = code
	p.tail = (p.tail + 1) % len(p.codes)
	p.full = p.tail == p.head
	p.readReady.Notify(waitq.All)
	if p.drain != nil {
		p.drain(p.readReady)
	}
}

func (p *Plugin) pop() (uint16, bool) {
	if p.len() == 0 {
		return 0, false
	}
	c := p.codes[p.head]
	p.head = (p.head + 1) % len(p.codes)
	p.full = false
	return c, true
}

// KernelCmd services CmdPushScancode: a0's low byte is the raw PS/2 byte.
// An 0xE0 prefix byte is consumed silently, arming the extended flag for
// the following byte; every other byte is widened to 16 bits, OR'ing in
// 0xE000 if the extended flag was armed (spec.md §6), and appended to the
// ring.
func (p *Plugin) KernelCmd(id uint16, a0, a1, a2, a3 uint32) (uint32, error) {
	if id != CmdPushScancode {
		return 0, kerr.New("keyboard.KernelCmd", kerr.NOT_IMPLEMENTED, nil)
	}
	raw := byte(a0)
	if raw == extendedPrefix {
		p.pendExtended = true
		return 0, nil
	}
	code := uint16(raw)
	if p.pendExtended {
		code |= 0xE000
		p.pendExtended = false
	}
	p.push(code)
	return 0, nil
}

// Cmd services CmdOpen: installs a handle over the shared global ring
// into the caller's table. Every open aliases the same ring (spec.md:
// "single global scancode ring"), so repeated opens are cheap and see the
// same stream.
func (p *Plugin) Cmd(callerPID int, id uint16, a0, a1, a2, a3 uint32) (uint32, error) {
	if id != CmdOpen {
		return 0, kerr.New("keyboard.Cmd", kerr.NOT_IMPLEMENTED, nil)
	}
	idx, err := p.install(callerPID, &handle{p: p})
	if err != nil {
		return 0, err
	}
	return uint32(idx), nil
}

// handle is the handle state CmdOpen installs: a thin view over the
// plugin's single global ring. Copy returns a handle aliasing the same
// ring rather than independent state, since the ring itself is global,
// not per-open (unlike pipe's per-instance ring).
type handle struct {
	hps.BaseState
	p *Plugin
}

func (h *handle) Copy(owner int) (hps.State, error) { return &handle{p: h.p}, nil }
func (h *handle) Close() error                      { return nil }

// Read drains up to len(buf)/2 buffered codes, each written little-endian,
// matching the register-pair convention the syscall layer already uses
// for multi-word return values.
func (h *handle) Read(buf []byte) (int, error) {
	max := len(buf) / 2
	n := 0
	for n < max {
		code, ok := h.p.pop()
		if !ok {
			break
		}
		buf[n*2] = byte(code)
		buf[n*2+1] = byte(code >> 8)
		n++
	}
	if n == 0 {
		return 0, kerr.New("keyboard.Read", kerr.EMPTY, nil)
	}
	return n * 2, nil
}

func (h *handle) ReadWaitQueue() *waitq.Basic { return h.p.readReady }

// Readable reports whether the shared ring currently holds unread codes.
func (h *handle) Readable() bool { return h.p.len() > 0 }
