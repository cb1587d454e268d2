// Package ppa implements the Physical Page Allocator (spec.md §4.1): a
// bitmap over a bounded physical frame range, tracking free/kernel/user
// ownership. Grounded in the teacher's free-list page metadata
// (mazboot/golang/main/page.go's Page/freePages), generalized to a bitmap
// since the core only needs ownership state, not a linked free list.
package ppa

import (
	"sync"

	"fernos/internal/kcfg"
	"fernos/internal/kerr"
)

type frameState uint8

const (
	stateFree frameState = iota
	stateKernel
	stateUser
)

// Allocator tracks ownership of every 4 KiB frame in [PhysBase, PhysEnd).
// All public methods are safe for concurrent use: the single kernel-lock
// mutex models "disable interrupts around the critical section" (spec.md
// §4.1) without requiring a real single-CPU assumption in tests.
type Allocator struct {
	mu        sync.Mutex
	physBase  kcfg.PAddr
	physEnd   kcfg.PAddr
	frames    []frameState
}

// New creates an allocator over the half-open physical range
// [physBase, physEnd). Both bounds must be page-aligned.
func New(physBase, physEnd kcfg.PAddr) *Allocator {
	if physBase%kcfg.PageSize != 0 || physEnd%kcfg.PageSize != 0 || physEnd < physBase {
		panic("ppa.New: misaligned or inverted physical range")
	}
	n := (physEnd - physBase) / kcfg.PageSize
	return &Allocator{
		physBase: physBase,
		physEnd:  physEnd,
		frames:   make([]frameState, n),
	}
}

func (a *Allocator) index(addr kcfg.PAddr) (int, bool) {
	if addr < a.physBase || addr >= a.physEnd {
		return 0, false
	}
	return int((addr - a.physBase) / kcfg.PageSize), true
}

// AllocPages reserves frames over [start, end) as user or kernel frames,
// depending on kernel. It stops at the first frame it cannot give (already
// allocated, or out of range) and returns the true end reached. Success iff
// the returned trueEnd == end.
func (a *Allocator) AllocPages(start, end kcfg.PAddr, kernel bool) (trueEnd kcfg.PAddr, err error) {
	if start%kcfg.PageSize != 0 || end%kcfg.PageSize != 0 {
		return start, kerr.New("ppa.AllocPages", kerr.ALIGN_ERROR, nil)
	}
	if end < start {
		return start, kerr.New("ppa.AllocPages", kerr.INVALID_RANGE, nil)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	want := stateUser
	if kernel {
		want = stateKernel
	}

	cur := start
	for cur < end {
		idx, ok := a.index(cur)
		if !ok || a.frames[idx] != stateFree {
			return cur, nil
		}
		a.frames[idx] = want
		cur += kcfg.PageSize
	}
	return cur, nil
}

// FreePages returns [start, end) to the free pool. Freeing an already-free
// frame is a programmer error (spec.md §4.1: "double-free is a programmer
// error") and panics rather than silently succeeding.
func (a *Allocator) FreePages(start, end kcfg.PAddr) error {
	if start%kcfg.PageSize != 0 || end%kcfg.PageSize != 0 {
		return kerr.New("ppa.FreePages", kerr.ALIGN_ERROR, nil)
	}
	if end < start {
		return kerr.New("ppa.FreePages", kerr.INVALID_RANGE, nil)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for cur := start; cur < end; cur += kcfg.PageSize {
		idx, ok := a.index(cur)
		if !ok {
			return kerr.New("ppa.FreePages", kerr.INVALID_RANGE, nil)
		}
		if a.frames[idx] == stateFree {
			panic("ppa.FreePages: double free of physical frame")
		}
		a.frames[idx] = stateFree
	}
	return nil
}

// AllocOne reserves the first free frame found, returning its address.
func (a *Allocator) AllocOne(kernel bool) (kcfg.PAddr, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	want := stateUser
	if kernel {
		want = stateKernel
	}
	for i, st := range a.frames {
		if st == stateFree {
			a.frames[i] = want
			return a.physBase + kcfg.PAddr(i)*kcfg.PageSize, nil
		}
	}
	return 0, kerr.New("ppa.AllocOne", kerr.NO_MEM, nil)
}

// FreeCount returns the number of currently-free frames (test helper).
func (a *Allocator) FreeCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, st := range a.frames {
		if st == stateFree {
			n++
		}
	}
	return n
}
