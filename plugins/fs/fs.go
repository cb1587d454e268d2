// fs.go is the filesystem service's plugin-id collaborator: opening a
// root-directory file by path installs a read-only handle over its
// contents into the caller's table.
package fs

import (
	"fernos/internal/hps"
	"fernos/internal/kcfg"
	"fernos/internal/kerr"
)

const (
	// CmdOpen resolves the path at user address a0, of length a1, against
	// the mounted volume's root directory, installing a read-only handle
	// for its contents. A path naming a directory or with no match fails.
	CmdOpen uint16 = iota
)

// MemReader copies length bytes starting at addr out of callerPID's
// address space. Cmd needs this because syscall args carry only the
// path's address and length, not its bytes (SPEC_FULL.md's
// dependency-inversion pattern: Kernel wiring supplies this over the
// live VMM/process table rather than fs importing them directly).
type MemReader func(callerPID int, addr kcfg.VAddr, length int) ([]byte, error)

// Installer allocates st into callerPID's handle table.
type Installer func(callerPID int, st hps.State) (int, error)

// Plugin is the filesystem service's plugin-id collaborator.
type Plugin struct {
	hps.BasePlugin

	vol     *Volume
	memRead MemReader
	install Installer
}

// NewPlugin constructs the filesystem plugin over an already-mounted
// volume.
func NewPlugin(id int, vol *Volume, memRead MemReader, install Installer) *Plugin {
	return &Plugin{BasePlugin: hps.NewBasePlugin(id, "fs"), vol: vol, memRead: memRead, install: install}
}

func (p *Plugin) Cmd(callerPID int, id uint16, a0, a1, a2, a3 uint32) (uint32, error) {
	if id != CmdOpen {
		return 0, kerr.New("fs.Cmd", kerr.NOT_IMPLEMENTED, nil)
	}
	raw, err := p.memRead(callerPID, kcfg.VAddr(a0), int(a1))
	if err != nil {
		return 0, err
	}
	data, err := p.vol.ReadFile(string(raw))
	if err != nil {
		return 0, err
	}
	idx, err := p.install(callerPID, &fileHandle{data: data})
	if err != nil {
		return 0, err
	}
	return uint32(idx), nil
}

// fileHandle is a read-only in-memory view of an opened file's contents.
type fileHandle struct {
	hps.BaseState
	data []byte
	pos  int
}

// Copy gives the child its own read position, starting where the parent's
// stands (SPEC_FULL.md §E.2: fork's handle copy is independent), sharing
// the same backing bytes since the file is read-only.
func (h *fileHandle) Copy(owner int) (hps.State, error) {
	return &fileHandle{data: h.data, pos: h.pos}, nil
}
func (h *fileHandle) Close() error { return nil }

func (h *fileHandle) Read(buf []byte) (int, error) {
	if h.pos >= len(h.data) {
		return 0, kerr.New("fs.fileHandle.Read", kerr.EMPTY, nil)
	}
	n := copy(buf, h.data[h.pos:])
	h.pos += n
	return n, nil
}
