// Package hps is the Handle/Plugin Object System (spec.md §4.8): a
// per-process handle table indexing capability objects ("handle states")
// supplied by plugins, plus a global plugin registry. Dispatch is uniform
// virtual dispatch (close/read/wait-read/write/wait-write/cmd), with a
// missing hook mapped to a documented default rather than an error.
//
// This package depends on nothing above it (not internal/proc, not
// internal/sched): blocking hooks expose the wait queue they would block
// on instead of blocking themselves, so the scheduler (which owns thread
// state) decides what "blocking" means. That keeps the dependency graph a
// DAG: proc imports hps and sched reaches it through proc; hps imports
// neither.
package hps

import (
	"fernos/internal/kerr"
	"fernos/internal/waitq"
)

// State is the handle-state virtual interface (spec.md §4.8). Plugin
// authors only implement the hooks their state actually needs and embed
// BaseState, which supplies the documented default for every other hook.
type State interface {
	// Copy deep-copies this state for fork, owned by the child process
	// owner. Independent copies: spec.md's open question on shared vs.
	// independent stream position is resolved as independent (SPEC_FULL.md
	// §E.2), so Copy must not alias any mutable position state.
	Copy(owner int) (State, error)

	// Close releases underlying resources. Called when the owning handle
	// slot is closed or the process is reaped.
	Close() error

	// Write attempts a non-blocking write, returning bytes written.
	Write(buf []byte) (int, error)

	// ReadWaitQueue returns the queue a wait_read_ready caller should block
	// on, or nil if reads never block (the dispatcher then treats
	// wait_read_ready as returning immediately).
	ReadWaitQueue() *waitq.Basic

	// Read attempts a non-blocking read, returning bytes read, or EMPTY.
	Read(buf []byte) (int, error)

	// WriteWaitQueue mirrors ReadWaitQueue for writers.
	WriteWaitQueue() *waitq.Basic

	// Readable reports whether a Read would currently return data without
	// blocking, so wait_read_ready can return immediately instead of
	// parking a caller that would never need to (spec.md §4.8: "block
	// until data available" — not "block unconditionally").
	Readable() bool

	// Writable mirrors Readable for wait_write_ready.
	Writable() bool

	// Cmd executes a state-specific command. id is the command id from the
	// handle syscall encoding (spec.md §4.7); ids below NumDefaultHCIDs are
	// reserved for the core itself and never reach here.
	Cmd(id uint16, a0, a1, a2, a3 uint32) (uint32, error)
}

// BaseState embeds into a concrete plugin state to supply every hook's
// documented default (spec.md §4.8's dispatch table), so a plugin only
// overrides what it actually implements.
type BaseState struct{}

func (BaseState) Copy(owner int) (State, error) { return nil, kerr.New("hps.Copy", kerr.NOT_IMPLEMENTED, nil) }
func (BaseState) Close() error                  { return nil }
func (BaseState) Write(buf []byte) (int, error) { return 0, nil }
func (BaseState) ReadWaitQueue() *waitq.Basic    { return nil }
func (BaseState) Read(buf []byte) (int, error)  { return 0, kerr.New("hps.Read", kerr.EMPTY, nil) }
func (BaseState) WriteWaitQueue() *waitq.Basic   { return nil }
func (BaseState) Readable() bool                 { return false }
func (BaseState) Writable() bool                 { return false }
func (BaseState) Cmd(id uint16, a0, a1, a2, a3 uint32) (uint32, error) {
	return 0, kerr.New("hps.Cmd", kerr.NOT_IMPLEMENTED, nil)
}
