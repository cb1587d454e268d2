// Package shm is the shared-memory service (spec.md §4.2, §4.8;
// SPEC_FULL.md §D's plugin_shm.c supplement): refcounted regions in the
// shared virtual-address area, attached/detached under the kernel lock by
// the plugin rather than tracked per-process, since a shared region
// outlives any single attacher.
//
// Grounded in the teacher's page.go frame-bookkeeping style (an id-indexed
// table of metadata) applied to region ids instead of frame numbers.
package shm

import (
	"fernos/internal/hps"
	"fernos/internal/kcfg"
	"fernos/internal/kerr"
)

const (
	// CmdCreate allocates a new region of a0 pages, returning its id.
	CmdCreate uint16 = iota
	// CmdAttach maps an existing region (id a0) into the caller at
	// kcfg.SharedAreaStart + a1*region-size, incrementing its refcount.
	CmdAttach
	// CmdDetach unmaps the region from the caller and decrements its
	// refcount, freeing the backing frames once it reaches zero.
	CmdDetach
)

type region struct {
	frames   []kcfg.PAddr
	refcount int
}

// Mapper maps [start,end) of pid's address space onto the given physical
// frames (shm is mapped by frame, not demand-allocated, since every
// attacher must see the same bytes). Supplied by Kernel wiring, keeping
// this package free of a dependency on internal/vmm's process-facing API
// shape beyond what it needs.
type Mapper func(pid int, start kcfg.VAddr, frames []kcfg.PAddr, writable bool) error

// Unmapper is Mapper's inverse; it does not free the frames (the plugin
// does that itself once refcount reaches zero).
type Unmapper func(pid int, start kcfg.VAddr, numPages int) error

// FrameAllocator allocates n fresh physical frames for a new region.
type FrameAllocator func(n int) ([]kcfg.PAddr, error)

// FrameFreer returns a region's frames to the PPA once its refcount drops
// to zero.
type FrameFreer func(frames []kcfg.PAddr) error

// Plugin is the shared-memory service's plugin-id collaborator.
type Plugin struct {
	hps.BasePlugin

	regions map[int]*region
	nextID  int

	mapFn    Mapper
	unmapFn  Unmapper
	allocFn  FrameAllocator
	freeFn   FrameFreer
	regionSz kcfg.VAddr // stride used to place attached regions in the shared area
}

// NewPlugin constructs the shared-memory plugin, wiring it to the live
// Address Space Manager and Physical Page Allocator via the given
// closures (see Mapper's doc comment for why this is indirection rather
// than a direct import).
func NewPlugin(id int, regionStride kcfg.VAddr, mapFn Mapper, unmapFn Unmapper, allocFn FrameAllocator, freeFn FrameFreer) *Plugin {
	return &Plugin{
		BasePlugin: hps.NewBasePlugin(id, "shm"),
		regions:    map[int]*region{},
		mapFn:      mapFn,
		unmapFn:    unmapFn,
		allocFn:    allocFn,
		freeFn:     freeFn,
		regionSz:   regionStride,
	}
}

func (p *Plugin) Cmd(callerPID int, id uint16, a0, a1, a2, a3 uint32) (uint32, error) {
	switch id {
	case CmdCreate:
		frames, err := p.allocFn(int(a0))
		if err != nil {
			return 0, err
		}
		rid := p.nextID
		p.nextID++
		p.regions[rid] = &region{frames: frames}
		return uint32(rid), nil

	case CmdAttach:
		r, ok := p.regions[int(a0)]
		if !ok {
			return 0, kerr.New("shm.Attach", kerr.INVALID_INDEX, nil)
		}
		start := kcfg.SharedAreaStart + kcfg.VAddr(a1)*p.regionSz
		if err := p.mapFn(callerPID, start, r.frames, true); err != nil {
			return 0, err
		}
		r.refcount++
		return uint32(start), nil

	case CmdDetach:
		r, ok := p.regions[int(a0)]
		if !ok {
			return 0, kerr.New("shm.Detach", kerr.INVALID_INDEX, nil)
		}
		start := kcfg.SharedAreaStart + kcfg.VAddr(a1)*p.regionSz
		if err := p.unmapFn(callerPID, start, len(r.frames)); err != nil {
			return 0, err
		}
		r.refcount--
		if r.refcount <= 0 {
			if err := p.freeFn(r.frames); err != nil {
				return 0, err
			}
			delete(p.regions, int(a0))
		}
		return 0, nil

	default:
		return 0, kerr.New("shm.Cmd", kerr.NOT_IMPLEMENTED, nil)
	}
}

// Refcount reports a region's current attach count, for diagnostics and
// tests.
func (p *Plugin) Refcount(regionID int) (int, bool) {
	r, ok := p.regions[regionID]
	if !ok {
		return 0, false
	}
	return r.refcount, true
}
