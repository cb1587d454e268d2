// Package pipe is the pipe service (spec.md §4.8's plugin list; detailed
// in SPEC_FULL.md §D): a bounded ring buffer with a read end and a write
// end, each a handle state, blocking through the basic wait queue when
// empty or full.
//
// Grounded in the teacher's virtqueue.go available/used-ring bookkeeping
// (src/go/mazarin/virtqueue.go): head/tail indices into a fixed backing
// array, generalized from a descriptor ring to a plain byte ring.
package pipe

import (
	"fernos/internal/hps"
	"fernos/internal/kerr"
	"fernos/internal/waitq"
)

// CmdCreate is the plugin-id command that allocates a new pipe; the
// dispatcher's plugin Cmd hook installs the returned ReadEnd/WriteEnd into
// the caller's handle table and packs the two resulting indices into one
// register — read end in the low 16 bits, write end in the high 16 bits —
// the same index-packing idiom the syscall id encoding itself uses
// (spec.md §4.7).
const CmdCreate uint16 = 0

// DefaultCapacity is the ring size a plain pipe() call gets.
const DefaultCapacity = 4096

// ring is the shared backing buffer a read end and write end both point
// to; it is never exposed as an hps.State itself.
type ring struct {
	buf        []byte
	head, tail int // tail is the next write position, head the next read
	full       bool

	readReady  *waitq.Basic
	writeReady *waitq.Basic
}

func newRing(capacity int) *ring {
	return &ring{
		buf:        make([]byte, capacity),
		readReady:  waitq.NewBasic(),
		writeReady: waitq.NewBasic(),
	}
}

func (r *ring) len() int {
	if r.full {
		return len(r.buf)
	}
	if r.tail >= r.head {
		return r.tail - r.head
	}
	return len(r.buf) - r.head + r.tail
}

func (r *ring) free() int { return len(r.buf) - r.len() }

func (r *ring) write(p []byte) int {
	n := 0
	for n < len(p) && r.free() > 0 {
		r.buf[r.tail] = p[n]
		r.tail = (r.tail + 1) % len(r.buf)
		r.full = r.tail == r.head
		n++
	}
	if n > 0 {
		r.readReady.Notify(waitq.All)
	}
	return n
}

func (r *ring) read(p []byte) int {
	n := 0
	for n < len(p) && r.len() > 0 {
		p[n] = r.buf[r.head]
		r.head = (r.head + 1) % len(r.buf)
		r.full = false
		n++
	}
	if n > 0 {
		r.writeReady.Notify(waitq.All)
	}
	return n
}

// ReadEnd is the handle state returned for the reading side of a pipe.
type ReadEnd struct {
	hps.BaseState
	r *ring
}

func (e *ReadEnd) Copy(owner int) (hps.State, error) { return &ReadEnd{r: e.r}, nil }
func (e *ReadEnd) Close() error                      { return nil }
func (e *ReadEnd) Read(buf []byte) (int, error) {
	n := e.r.read(buf)
	if n == 0 {
		return 0, kerr.New("pipe.Read", kerr.EMPTY, nil)
	}
	return n, nil
}
func (e *ReadEnd) ReadWaitQueue() *waitq.Basic { return e.r.readReady }

// Readable reports whether the ring currently holds unread bytes, so
// wait_read_ready returns immediately instead of parking a reader that
// would make progress right away.
func (e *ReadEnd) Readable() bool { return e.r.len() > 0 }

// WriteEnd is the handle state returned for the writing side of a pipe.
type WriteEnd struct {
	hps.BaseState
	r *ring
}

func (e *WriteEnd) Copy(owner int) (hps.State, error) { return &WriteEnd{r: e.r}, nil }
func (e *WriteEnd) Close() error                      { return nil }
func (e *WriteEnd) Write(buf []byte) (int, error)     { return e.r.write(buf), nil }
func (e *WriteEnd) WriteWaitQueue() *waitq.Basic      { return e.r.writeReady }

// Writable reports whether the ring currently has free space, mirroring
// ReadEnd.Readable for wait_write_ready.
func (e *WriteEnd) Writable() bool { return e.r.free() > 0 }

// New returns a fresh (ReadEnd, WriteEnd) pair sharing a ring of the given
// byte capacity, ready to be installed into a process's handle table by
// the syscall layer servicing a pipe-creation plugin command.
func New(capacity int) (*ReadEnd, *WriteEnd) {
	r := newRing(capacity)
	return &ReadEnd{r: r}, &WriteEnd{r: r}
}

// Installer allocates st into callerPID's handle table at the smallest
// free index, returning that index. hps cannot see internal/proc (the
// dependency-inversion design in SPEC_FULL.md/hps's doc comment), so
// Kernel wiring at boot supplies this as a closure over the live process
// table instead of Plugin importing proc directly.
type Installer func(callerPID int, st hps.State) (int, error)

// Plugin is the pipe service's plugin-id collaborator (spec.md §4.8):
// its only command allocates a fresh pipe and installs both ends into the
// caller's handle table.
type Plugin struct {
	hps.BasePlugin
	install Installer
}

// NewPlugin registers the pipe service under id, using install to place
// newly created handle states into a process's table.
func NewPlugin(id int, install Installer) *Plugin {
	return &Plugin{BasePlugin: hps.NewBasePlugin(id, "pipe"), install: install}
}

// Cmd services CmdCreate: a0, if non-zero, overrides DefaultCapacity.
// Returns the read-end index in the low 16 bits and the write-end index
// in the high 16 bits of the single return value.
func (p *Plugin) Cmd(callerPID int, id uint16, a0, a1, a2, a3 uint32) (uint32, error) {
	if id != CmdCreate {
		return 0, kerr.New("pipe.Cmd", kerr.NOT_IMPLEMENTED, nil)
	}
	capacity := DefaultCapacity
	if a0 != 0 {
		capacity = int(a0)
	}
	r, w := New(capacity)
	ri, err := p.install(callerPID, r)
	if err != nil {
		return 0, err
	}
	wi, err := p.install(callerPID, w)
	if err != nil {
		return 0, err
	}
	return uint32(ri) | uint32(wi)<<16, nil
}
