package vmm

import "fernos/internal/kcfg"

// PTE is a page-table-entry-shaped 32-bit word, built with explicit
// shift/mask per the core's design notes (ABI-critical layouts are never
// built via reflection-based bitfield packing). Bit layout mirrors real
// i386 PTEs: bit 0 present, bit 1 writable, bit 2 user-accessible, bits
// 12-31 the frame address.
type PTE uint32

const (
	pteP = 1 << 0 // present
	pteW = 1 << 1 // writable
	pteU = 1 << 2 // user-accessible
)

// NewPTE builds a PTE mapping frame with the given permission bits.
func NewPTE(frame kcfg.PAddr, present, writable, user bool) PTE {
	v := uint32(frame) &^ (kcfg.PageSize - 1)
	if present {
		v |= pteP
	}
	if writable {
		v |= pteW
	}
	if user {
		v |= pteU
	}
	return PTE(v)
}

func (p PTE) Present() bool       { return uint32(p)&pteP != 0 }
func (p PTE) Writable() bool      { return uint32(p)&pteW != 0 }
func (p PTE) User() bool          { return uint32(p)&pteU != 0 }
func (p PTE) Frame() kcfg.PAddr   { return kcfg.PAddr(uint32(p) &^ (kcfg.PageSize - 1)) }

func pageBase(v kcfg.VAddr) kcfg.VAddr {
	return v &^ (kcfg.PageSize - 1)
}

func pageOffset(v kcfg.VAddr) uint32 {
	return uint32(v) & (kcfg.PageSize - 1)
}
