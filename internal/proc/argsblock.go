package proc

import (
	"encoding/binary"

	"fernos/internal/kcfg"
)

// EncodeArgsBlock builds the bit-exact args block format spec.md §4.4
// defines: one little-endian u32 offset per argument, a zero u32
// terminator, then the NUL-terminated argv strings concatenated.
func EncodeArgsBlock(args []string) []byte {
	header := make([]byte, 4*(len(args)+1)) // offsets + terminator, terminator stays 0
	var strs []byte
	cur := uint32(len(header))
	for i, a := range args {
		binary.LittleEndian.PutUint32(header[4*i:], cur)
		strs = append(strs, []byte(a)...)
		strs = append(strs, 0)
		cur += uint32(len(a)) + 1
	}
	return append(header, strs...)
}

// RewriteArgsBlockAbsolute rewrites each u32 offset in block, in place,
// into the absolute virtual address base + offset, stopping at (and
// leaving untouched) the first zero word — the terminator, which becomes
// the NULL that ends argv (spec.md §4.4 / §8 scenario 5).
func RewriteArgsBlockAbsolute(block []byte, base kcfg.VAddr) {
	for off := 0; off+4 <= len(block); off += 4 {
		v := binary.LittleEndian.Uint32(block[off:])
		if v == 0 {
			return
		}
		binary.LittleEndian.PutUint32(block[off:], uint32(base)+v)
	}
}
