// wiring.go builds a fully wired *kernel.Kernel: every plugin registered
// with the closures its NewPlugin needs to reach the VMM/process
// table/scheduler without those packages importing each other (SPEC_FULL.md
// §A, hps's dependency-inversion design). This is the CLI-level
// counterpart of the teacher's boot.go linking the heap, MMIO and
// exception table together, done here in Go composition instead of a
// linker script.
package main

import (
	"encoding/binary"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-logr/logr"

	"fernos/internal/hps"
	"fernos/internal/kcfg"
	"fernos/internal/kernel"
	"fernos/internal/waitq"
	"fernos/plugins/fs"
	"fernos/plugins/futex"
	"fernos/plugins/gfx"
	"fernos/plugins/keyboard"
	"fernos/plugins/pipe"
	"fernos/plugins/shm"
	"fernos/plugins/vgacd"
)

// Plugin ids. Fixed and small, per spec.md §4.8's "a small plugin id"; the
// exact numbering is arbitrary but must stay stable across a CLI session
// since handles reference their owning plugin by it.
const (
	pluginPipe = iota
	pluginShm
	pluginFutex
	pluginKeyboard
	pluginVgacd
	pluginGfx
	pluginFs
)

// shmRegionStride is the per-region slot size in the shared area (spec.md
// §4.2): CmdAttach's a1 selects which stride-sized slot a region lands in.
const shmRegionStride = 16 * kcfg.PageSize

// app bundles the wired kernel with the Badger handle fs's block device
// needs closed on exit.
type app struct {
	kernel *kernel.Kernel
	db     *badger.DB
}

// buildKernel assembles a Kernel with every plugin registered, mirroring
// the teacher's single boot-time wiring pass. dbDir selects the Badger
// directory backing the filesystem service's block device; an empty dir
// uses an ephemeral in-memory-only store (Badger's InMemory option).
func buildKernel(log logr.Logger, physEnd kcfg.PAddr, tickHz uint32, dbDir string) (*app, error) {
	k := kernel.New(kernel.Config{PhysEnd: physEnd, TickHz: tickHz, Log: log})

	install := func(callerPID int, st hps.State) (int, error) {
		p, err := k.Procs.Get(callerPID)
		if err != nil {
			return 0, err
		}
		return p.Handles.Alloc(st)
	}

	if err := k.HPS.Register(pipe.NewPlugin(pluginPipe, install)); err != nil {
		return nil, err
	}

	mapFn := func(pid int, start kcfg.VAddr, frames []kcfg.PAddr, writable bool) error {
		p, err := k.Procs.Get(pid)
		if err != nil {
			return err
		}
		return k.VMM.PDMapFrames(p.PD, start, frames, writable, true)
	}
	unmapFn := func(pid int, start kcfg.VAddr, numPages int) error {
		p, err := k.Procs.Get(pid)
		if err != nil {
			return err
		}
		return k.VMM.PDUnmapFrames(p.PD, start, numPages)
	}
	allocFn := func(n int) ([]kcfg.PAddr, error) {
		frames := make([]kcfg.PAddr, 0, n)
		for i := 0; i < n; i++ {
			f, err := k.PPA.AllocOne(false)
			if err != nil {
				return nil, err
			}
			frames = append(frames, f)
		}
		return frames, nil
	}
	freeFn := func(frames []kcfg.PAddr) error {
		for _, f := range frames {
			if err := k.PPA.FreePages(f, f+kcfg.PageSize); err != nil {
				return err
			}
		}
		return nil
	}
	if err := k.HPS.Register(shm.NewPlugin(pluginShm, shmRegionStride, mapFn, unmapFn, allocFn, freeFn)); err != nil {
		return nil, err
	}

	if err := k.HPS.Register(futex.NewPlugin(pluginFutex, k.Sched.Wake)); err != nil {
		return nil, err
	}

	kbDrain := func(q *waitq.Basic) int { return k.Sched.DrainReady(q) }
	if err := k.HPS.Register(keyboard.NewPlugin(pluginKeyboard, install, kbDrain)); err != nil {
		return nil, err
	}

	if err := k.HPS.Register(vgacd.NewPlugin(pluginVgacd, install)); err != nil {
		return nil, err
	}

	if err := k.HPS.Register(gfx.NewPlugin(pluginGfx)); err != nil {
		return nil, err
	}

	db, vol, err := mountVolume(dbDir)
	if err != nil {
		return nil, err
	}
	memRead := func(callerPID int, addr kcfg.VAddr, length int) ([]byte, error) {
		p, err := k.Procs.Get(callerPID)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, length)
		if _, err := k.VMM.MemCpyFromUser(p.PD, addr, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}
	if err := k.HPS.Register(fs.NewPlugin(pluginFs, vol, memRead, install)); err != nil {
		return nil, err
	}

	return &app{kernel: k, db: db}, nil
}

// mountVolume opens (creating if absent) the Badger-backed block device and
// mounts a FAT32 volume over it (SPEC_FULL.md's plugins/fs domain-stack
// entry). An empty dir runs Badger fully in memory, the right default for
// a CLI session that boots and exits without persisting a filesystem image.
func mountVolume(dir string) (*badger.DB, *fs.Volume, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, err
	}

	const numSectors = 4096
	const sectorSize = 512
	bd := fs.NewBadgerBlockDevice(db, numSectors, sectorSize)
	if err := formatIfEmpty(bd); err != nil {
		db.Close()
		return nil, nil, err
	}
	vol, err := fs.Mount(bd)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, vol, nil
}

// Minimal FAT32 geometry a freshly formatted Badger block device gets:
// one boot sector, one FAT region of fatSectors sectors, and cluster 2 as
// an empty root directory. The CLI's own bootstrap step, not part of
// fat32.go's reader, so it lives here rather than in plugins/fs.
const (
	fmtReservedSectors = 1
	fmtFATSectors      = 8
	fmtRootCluster     = 2
)

// formatIfEmpty writes a blank FAT32 volume to bd if its boot sector looks
// unformatted (bytesPerSector reads as 0 — the zero value Badger returns
// for a key never written, per BadgerBlockDevice.ReadSectors's doc
// comment).
func formatIfEmpty(bd fs.BlockDevice) error {
	boot := make([]byte, bd.SectorSize())
	if err := bd.ReadSectors(0, 1, boot); err != nil {
		return err
	}
	if binary.LittleEndian.Uint16(boot[11:13]) != 0 {
		return nil // already formatted
	}

	binary.LittleEndian.PutUint16(boot[11:13], uint16(bd.SectorSize()))
	boot[13] = 1 // sectorsPerCluster
	binary.LittleEndian.PutUint16(boot[14:16], fmtReservedSectors)
	boot[16] = 1 // numFATs
	binary.LittleEndian.PutUint32(boot[36:40], fmtFATSectors)
	binary.LittleEndian.PutUint32(boot[44:48], fmtRootCluster)
	if err := bd.WriteSectors(0, 1, boot); err != nil {
		return err
	}

	fat := make([]byte, bd.SectorSize())
	binary.LittleEndian.PutUint32(fat[fmtRootCluster*4:fmtRootCluster*4+4], 0x0FFFFFFF)
	if err := bd.WriteSectors(fmtReservedSectors, 1, fat); err != nil {
		return err
	}

	rootLBA := fmtReservedSectors + fmtFATSectors
	empty := make([]byte, bd.SectorSize())
	return bd.WriteSectors(rootLBA, 1, empty)
}

func (a *app) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
