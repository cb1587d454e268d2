package vmm

import (
	"fernos/internal/kcfg"
	"fernos/internal/kerr"
)

// MemCpyToUser walks pd (without ever touching CR3 or any other process's
// page directory) and copies kSrc into the user virtual address uDst, page
// by page. It validates that every destination page is present,
// user-accessible and writable; on the first page that fails that check it
// stops and returns the byte count copied so far plus the fault kind,
// matching spec.md §4.2's contract and the design note that this must
// never panic on a bad user-supplied pointer.
func (m *Manager) MemCpyToUser(pd *PageDirectory, uDst kcfg.VAddr, kSrc []byte) (int, error) {
	return m.copyUser(pd, uDst, kSrc, true)
}

// MemCpyFromUser is MemCpyToUser's mirror: it reads from user memory into
// kDst, requiring only that each source page be present and
// user-accessible (not necessarily writable).
func (m *Manager) MemCpyFromUser(pd *PageDirectory, uSrc kcfg.VAddr, kDst []byte) (int, error) {
	return m.copyUser(pd, uSrc, kDst, false)
}

// copyUser is the shared walk: toUser selects direction (true: buf ->
// user memory, requires writable; false: user memory -> buf, read-only
// is fine) and always returns the prefix of buf actually transferred.
func (m *Manager) copyUser(pd *PageDirectory, uAddr kcfg.VAddr, buf []byte, toUser bool) (int, error) {
	copied := 0
	for copied < len(buf) {
		v := uAddr + kcfg.VAddr(copied)
		base := pageBase(v)
		off := pageOffset(v)

		pte, ok := pd.lookup(base)
		if !ok {
			return copied, kerr.New("vmm.copyUser", kerr.INVALID_INDEX, nil)
		}
		if !pte.User() {
			return copied, kerr.New("vmm.copyUser", kerr.NOT_PERMITTED, nil)
		}
		if toUser && !pte.Writable() {
			return copied, kerr.New("vmm.copyUser", kerr.NOT_PERMITTED, nil)
		}

		n := kcfg.PageSize - int(off)
		if remain := len(buf) - copied; n > remain {
			n = remain
		}

		if toUser {
			m.mem.WriteFrame(pte.Frame(), off, buf[copied:copied+n])
		} else {
			m.mem.ReadFrame(pte.Frame(), off, buf[copied:copied+n])
		}
		copied += n
	}
	return copied, nil
}
