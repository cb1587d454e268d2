package vmm

import "fernos/internal/kcfg"

// PhysMemory is the simulated physical RAM backing every mapped frame: the
// byte contents a real MMU would reach via the frame's physical address.
// Modeled as a flat byte arena rather than real memory-mapped hardware,
// per the core's design note on keeping unchecked address arithmetic
// inside one small module.
type PhysMemory struct {
	base  kcfg.PAddr
	bytes []byte
}

// NewPhysMemory allocates a simulated RAM arena covering [base, end).
func NewPhysMemory(base, end kcfg.PAddr) *PhysMemory {
	return &PhysMemory{base: base, bytes: make([]byte, end-base)}
}

func (m *PhysMemory) slice(frame kcfg.PAddr, offset uint32, n int) []byte {
	start := int(frame-m.base) + int(offset)
	return m.bytes[start : start+n]
}

// ReadFrame copies n bytes starting at offset within frame into dst.
func (m *PhysMemory) ReadFrame(frame kcfg.PAddr, offset uint32, dst []byte) {
	copy(dst, m.slice(frame, offset, len(dst)))
}

// WriteFrame copies src into n bytes starting at offset within frame.
func (m *PhysMemory) WriteFrame(frame kcfg.PAddr, offset uint32, src []byte) {
	copy(m.slice(frame, offset, len(src)), src)
}
