// Package vmm is the Address Space Manager (spec.md §4.2): per-process page
// directories, demand mapping in the user/shared regions, and
// cross-address-space copy primitives that walk a page directory without
// switching CR3. Grounded in the teacher's page.go (Page metadata, free
// list) generalized from a single flat address space to one page directory
// per process, and in the design notes' "cyclic references become
// id -> entry tables" guidance (a PageDirectory is itself just a map keyed
// by virtual address, never a real pointer tree).
package vmm

import (
	"fernos/internal/kcfg"
	"fernos/internal/kerr"
	"fernos/internal/ppa"
)

// PageDirectory is a process's view of virtual memory: a private mapping
// table plus a reference to the kernel's shared entries (spec.md §3: "The
// kernel reserves a fixed low-address kernel area [that] MUST appear
// identically in every process's page directory").
type PageDirectory struct {
	mgr    *Manager
	kernel *map[kcfg.VAddr]PTE // shared pointer: every PD references the same map
	user   map[kcfg.VAddr]PTE
}

// Manager owns the PPA, the simulated physical RAM, and the one kernel
// entry set shared by reference across every process's PageDirectory.
type Manager struct {
	ppa    *ppa.Allocator
	mem    *PhysMemory
	kernel map[kcfg.VAddr]PTE
}

// NewManager constructs an Address Space Manager over the given physical
// allocator and RAM arena.
func NewManager(p *ppa.Allocator, mem *PhysMemory) *Manager {
	return &Manager{ppa: p, mem: mem, kernel: map[kcfg.VAddr]PTE{}}
}

// MapKernelArea installs the resident kernel mapping shared by every
// process's page directory. Called once at boot.
func (m *Manager) MapKernelArea(start, end kcfg.VAddr, writable bool) error {
	for v := pageBase(start); v < end; v += kcfg.PageSize {
		frame, err := m.ppa.AllocOne(true)
		if err != nil {
			return kerr.New("vmm.MapKernelArea", kerr.NO_MEM, nil)
		}
		m.kernel[v] = NewPTE(frame, true, writable, false)
	}
	return nil
}

// PDCreateUser produces a fresh page directory inheriting the kernel
// entries by reference (spec.md §4.2).
func (m *Manager) PDCreateUser() *PageDirectory {
	return &PageDirectory{mgr: m, kernel: &m.kernel, user: map[kcfg.VAddr]PTE{}}
}

// PDDestroy frees every private user frame and page table entry of pd. The
// shared kernel entries are never freed (spec.md §4.2).
func (m *Manager) PDDestroy(pd *PageDirectory) error {
	for v, e := range pd.user {
		if e.Present() {
			if err := m.ppa.FreePages(e.Frame(), e.Frame()+kcfg.PageSize); err != nil {
				return err
			}
		}
		delete(pd.user, v)
	}
	return nil
}

// ResetUser frees every private user frame of pd without destroying pd
// itself, for sc_proc_exec's "tears down all user mappings" step (spec.md
// §4.4): unlike PDDestroy, pd remains usable afterward for the new image's
// mappings.
func (m *Manager) ResetUser(pd *PageDirectory) error {
	for v, e := range pd.user {
		if e.Present() {
			if err := m.ppa.FreePages(e.Frame(), e.Frame()+kcfg.PageSize); err != nil {
				return err
			}
		}
		delete(pd.user, v)
	}
	return nil
}

func (pd *PageDirectory) lookup(v kcfg.VAddr) (PTE, bool) {
	base := pageBase(v)
	if e, ok := (*pd.kernel)[base]; ok {
		return e, true
	}
	e, ok := pd.user[base]
	return e, ok
}

// PDMap demand-maps [start, end) into pd's private user region with the
// given permissions, pulling fresh frames from the PPA. Stops (returning
// ALREADY_ALLOCATED) at the first page already mapped, leaving prior pages in the
// range mapped — callers that need atomicity call PDUnmap on failure.
func (m *Manager) PDMap(pd *PageDirectory, start, end kcfg.VAddr, writable, user bool) error {
	if start%kcfg.PageSize != 0 || end%kcfg.PageSize != 0 {
		return kerr.New("vmm.PDMap", kerr.ALIGN_ERROR, nil)
	}
	if end < start {
		return kerr.New("vmm.PDMap", kerr.INVALID_RANGE, nil)
	}
	for v := start; v < end; v += kcfg.PageSize {
		if _, ok := pd.lookup(v); ok {
			return kerr.New("vmm.PDMap", kerr.ALREADY_ALLOCATED, nil)
		}
		frame, err := m.ppa.AllocOne(!user)
		if err != nil {
			return kerr.New("vmm.PDMap", kerr.NO_MEM, nil)
		}
		pd.user[v] = NewPTE(frame, true, writable, user)
	}
	return nil
}

// PDUnmap unmaps [start, end) from pd's private region, returning each
// page's frame to the PPA. Unmapping an already-unmapped page is a no-op
// for that page, so map-then-unmap of the same range always restores the
// PD to its prior state (spec.md §8 round-trip law).
func (m *Manager) PDUnmap(pd *PageDirectory, start, end kcfg.VAddr) error {
	if start%kcfg.PageSize != 0 || end%kcfg.PageSize != 0 {
		return kerr.New("vmm.PDUnmap", kerr.ALIGN_ERROR, nil)
	}
	for v := start; v < end; v += kcfg.PageSize {
		e, ok := pd.user[v]
		if !ok {
			continue
		}
		if err := m.ppa.FreePages(e.Frame(), e.Frame()+kcfg.PageSize); err != nil {
			return err
		}
		delete(pd.user, v)
	}
	return nil
}

// PDMapFrames maps the given frames into pd one per page starting at
// start, without allocating fresh ones — the shared-memory plugin
// allocates its frames once at region-creation time and every attacher
// must see those exact physical pages, not a private copy (spec.md §4.2,
// §4.8).
func (m *Manager) PDMapFrames(pd *PageDirectory, start kcfg.VAddr, frames []kcfg.PAddr, writable, user bool) error {
	if start%kcfg.PageSize != 0 {
		return kerr.New("vmm.PDMapFrames", kerr.ALIGN_ERROR, nil)
	}
	v := start
	for _, frame := range frames {
		if _, ok := pd.lookup(v); ok {
			return kerr.New("vmm.PDMapFrames", kerr.ALREADY_ALLOCATED, nil)
		}
		pd.user[v] = NewPTE(frame, true, writable, user)
		v += kcfg.PageSize
	}
	return nil
}

// PDUnmapFrames unmaps numPages pages starting at start without returning
// their frames to the PPA — PDMapFrames's inverse, leaving frame ownership
// with whichever plugin allocated them (shm frees its own frames once a
// region's refcount reaches zero).
func (m *Manager) PDUnmapFrames(pd *PageDirectory, start kcfg.VAddr, numPages int) error {
	v := start
	for i := 0; i < numPages; i++ {
		delete(pd.user, v)
		v += kcfg.PageSize
	}
	return nil
}

// RequestUserMem maps [s, e) of pd's free area, stopping at the first page
// that cannot be given (already mapped or out of memory) and returning the
// true end reached, mirroring the PPA's alloc_pages contract but scoped to
// a single process's free-area (spec.md §4.2).
func (m *Manager) RequestUserMem(pd *PageDirectory, s, e kcfg.VAddr) (kcfg.VAddr, error) {
	if s < kcfg.FreeAreaStart || e > kcfg.FreeAreaEnd || e < s {
		return s, kerr.New("vmm.RequestUserMem", kerr.INVALID_RANGE, nil)
	}
	cur := pageBase(s)
	for cur < e {
		if _, ok := pd.lookup(cur); ok {
			return cur, nil
		}
		frame, err := m.ppa.AllocOne(false)
		if err != nil {
			return cur, nil
		}
		pd.user[cur] = NewPTE(frame, true, true, true)
		cur += kcfg.PageSize
	}
	return cur, nil
}

// ReturnUserMem is the inverse of RequestUserMem: unmaps [s, e) from pd's
// free area.
func (m *Manager) ReturnUserMem(pd *PageDirectory, s, e kcfg.VAddr) error {
	return m.PDUnmap(pd, pageBase(s), e)
}
