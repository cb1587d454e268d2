package proc

import (
	"encoding/binary"

	"fernos/internal/kcfg"
	"fernos/internal/kerr"
)

// AppArea is one loadable region of a user application image (spec.md §8's
// ELF loader expectations: "area records (occupied, writeable, load_vaddr,
// area_size, given_bytes, given_size)"). GivenBytes may be shorter than
// AreaSize — the remainder is zero-filled on load, the usual BSS pattern.
type AppArea struct {
	Occupied   bool
	Writable   bool
	LoadVAddr  kcfg.VAddr
	AreaSize   uint32
	GivenBytes []byte
}

// UserApp is an ELF loader's output and sc_proc_exec's input: up to
// MaxAppAreas loadable regions plus the entry point a fresh thread 0
// resumes at. The loader that produces one is out of scope for the core
// (spec.md §5); only this descriptor shape is.
type UserApp struct {
	Areas [kcfg.MaxAppAreas]AppArea
	Entry kcfg.VAddr
}

// appAreaRecordSize is the encoded byte size of one area record: occupied,
// writable, load_vaddr, area_size, given_vaddr, given_size, each a
// little-endian u32 (original_source's user_app_area_entry_t, flattened
// since this hosted model has no real C struct layout to match, and
// given/given_size become a separate vaddr/length pair the kernel reads
// from directly rather than a pointer dereferenced in kernel space).
const appAreaRecordSize = 24

// UserAppRecordSize is the on-the-wire size of an encoded UserApp: a u32
// entry point followed by MaxAppAreas area records.
const UserAppRecordSize = 4 + kcfg.MaxAppAreas*appAreaRecordSize

// DecodeUserApp parses UserAppRecordSize bytes (already copied out of the
// caller's address space) into a UserApp, fetching each occupied area's
// given bytes via readGiven(given_vaddr, given_size) — a second
// cross-address-space copy, since the area record only carries the given
// region's address and length (spec.md §4.4, sc_proc_exec's argument).
func DecodeUserApp(raw []byte, readGiven func(vaddr kcfg.VAddr, length int) ([]byte, error)) (*UserApp, error) {
	if len(raw) < UserAppRecordSize {
		return nil, kerr.New("proc.DecodeUserApp", kerr.BAD_ARGS, nil)
	}

	app := &UserApp{Entry: kcfg.VAddr(binary.LittleEndian.Uint32(raw[0:4]))}
	off := 4
	for i := range app.Areas {
		occupied := binary.LittleEndian.Uint32(raw[off:]) != 0
		writable := binary.LittleEndian.Uint32(raw[off+4:]) != 0
		loadVAddr := kcfg.VAddr(binary.LittleEndian.Uint32(raw[off+8:]))
		areaSize := binary.LittleEndian.Uint32(raw[off+12:])
		givenVAddr := kcfg.VAddr(binary.LittleEndian.Uint32(raw[off+16:]))
		givenSize := binary.LittleEndian.Uint32(raw[off+20:])
		off += appAreaRecordSize

		if !occupied {
			continue
		}
		area := AppArea{Occupied: true, Writable: writable, LoadVAddr: loadVAddr, AreaSize: areaSize}
		if givenSize > 0 {
			given, err := readGiven(givenVAddr, int(givenSize))
			if err != nil {
				return nil, err
			}
			area.GivenBytes = given
		}
		app.Areas[i] = area
	}
	return app, nil
}

// EncodeUserApp is DecodeUserApp's inverse, used by test apps and the CLI
// to build a syscall-ready byte buffer; given bytes are written to
// givenVAddr by the caller separately (EncodeUserApp only emits the
// fixed-size record, not the given regions themselves).
func EncodeUserApp(app *UserApp, givenVAddrs [kcfg.MaxAppAreas]kcfg.VAddr) []byte {
	raw := make([]byte, UserAppRecordSize)
	binary.LittleEndian.PutUint32(raw[0:4], uint32(app.Entry))
	off := 4
	for i, area := range app.Areas {
		if area.Occupied {
			binary.LittleEndian.PutUint32(raw[off:], 1)
		}
		if area.Writable {
			binary.LittleEndian.PutUint32(raw[off+4:], 1)
		}
		binary.LittleEndian.PutUint32(raw[off+8:], uint32(area.LoadVAddr))
		binary.LittleEndian.PutUint32(raw[off+12:], area.AreaSize)
		binary.LittleEndian.PutUint32(raw[off+16:], uint32(givenVAddrs[i]))
		binary.LittleEndian.PutUint32(raw[off+20:], uint32(len(area.GivenBytes)))
		off += appAreaRecordSize
	}
	return raw
}
