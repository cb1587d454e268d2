// fat32.go is a read-only FAT32 reader over a BlockDevice: boot-sector
// geometry, FAT cluster-chain traversal, and flat 8.3 root-directory
// lookup. Long filenames, subdirectories, and writes are left
// unimplemented — spec.md scopes the FAT32 parser itself out of the
// core's concern beyond the Block Device interface it consumes, so this
// stays the minimum that exercises that interface realistically rather
// than a complete filesystem.
package fs

import (
	"encoding/binary"
	"strings"

	"fernos/internal/kerr"
)

// clusterEOCMin is the smallest FAT32 cluster value meaning "end of
// chain" (values 0x0FFFFFF8-0x0FFFFFFF are all valid EOC markers).
const clusterEOCMin = 0x0FFFFFF8

const freeOrEndMarker = 0x00 // first byte of an unused directory entry
const deletedMarker = 0xE5

type bpb struct {
	bytesPerSector      uint16
	sectorsPerCluster   uint8
	reservedSectorCount uint16
	numFATs             uint8
	fatSize32           uint32
	rootCluster         uint32
}

func parseBPB(sector0 []byte) (bpb, error) {
	if len(sector0) < 48 {
		return bpb{}, kerr.New("fat32.parseBPB", kerr.BAD_ARGS, nil)
	}
	b := bpb{
		bytesPerSector:      binary.LittleEndian.Uint16(sector0[11:13]),
		sectorsPerCluster:   sector0[13],
		reservedSectorCount: binary.LittleEndian.Uint16(sector0[14:16]),
		numFATs:             sector0[16],
		fatSize32:           binary.LittleEndian.Uint32(sector0[36:40]),
		rootCluster:         binary.LittleEndian.Uint32(sector0[44:48]),
	}
	if b.bytesPerSector == 0 || b.sectorsPerCluster == 0 {
		return bpb{}, kerr.New("fat32.parseBPB", kerr.BAD_ARGS, nil)
	}
	return b, nil
}

// Volume is a mounted FAT32 filesystem.
type Volume struct {
	bd           BlockDevice
	geom         bpb
	fatStartLBA  int
	dataStartLBA int
}

// Mount reads bd's boot sector and FAT geometry.
func Mount(bd BlockDevice) (*Volume, error) {
	sector0 := make([]byte, bd.SectorSize())
	if err := bd.ReadSectors(0, 1, sector0); err != nil {
		return nil, err
	}
	b, err := parseBPB(sector0)
	if err != nil {
		return nil, err
	}
	fatStart := int(b.reservedSectorCount)
	dataStart := fatStart + int(b.numFATs)*int(b.fatSize32)
	return &Volume{bd: bd, geom: b, fatStartLBA: fatStart, dataStartLBA: dataStart}, nil
}

func (v *Volume) clusterBytes() int {
	return int(v.geom.sectorsPerCluster) * int(v.geom.bytesPerSector)
}

func (v *Volume) clusterToLBA(cluster uint32) int {
	return v.dataStartLBA + int(cluster-2)*int(v.geom.sectorsPerCluster)
}

// nextCluster looks up cluster's successor in the first FAT.
func (v *Volume) nextCluster(cluster uint32) (uint32, error) {
	byteOffset := int(cluster) * 4
	lba := v.fatStartLBA + byteOffset/int(v.geom.bytesPerSector)
	off := byteOffset % int(v.geom.bytesPerSector)
	buf := make([]byte, 4)
	if err := v.bd.ReadPiece(lba, off, 4, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf) & 0x0FFFFFFF, nil
}

type dirEntry struct {
	name         string
	firstCluster uint32
	size         uint32
	isDir        bool
}

func parse83Name(raw []byte) string {
	name := strings.TrimRight(string(raw[0:8]), " ")
	ext := strings.TrimRight(string(raw[8:11]), " ")
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// findInRoot walks the root directory's cluster chain for an exact 8.3
// name match, skipping deleted entries and long-filename continuation
// entries (attr & 0x0F == 0x0F).
func (v *Volume) findInRoot(name string) (*dirEntry, error) {
	cluster := v.geom.rootCluster
	for {
		buf := make([]byte, v.clusterBytes())
		if err := v.bd.ReadSectors(v.clusterToLBA(cluster), int(v.geom.sectorsPerCluster), buf); err != nil {
			return nil, err
		}
		for off := 0; off+32 <= len(buf); off += 32 {
			raw := buf[off : off+32]
			switch raw[0] {
			case freeOrEndMarker:
				return nil, kerr.New("fat32.findInRoot", kerr.INVALID_INDEX, nil)
			case deletedMarker:
				continue
			}
			if raw[11]&0x0F == 0x0F {
				continue // long-filename entry, unsupported
			}
			if entryName := parse83Name(raw[0:11]); entryName == name {
				hi := binary.LittleEndian.Uint16(raw[20:22])
				lo := binary.LittleEndian.Uint16(raw[26:28])
				return &dirEntry{
					name:         entryName,
					firstCluster: uint32(hi)<<16 | uint32(lo),
					size:         binary.LittleEndian.Uint32(raw[28:32]),
					isDir:        raw[11]&0x10 != 0,
				}, nil
			}
		}
		next, err := v.nextCluster(cluster)
		if err != nil {
			return nil, err
		}
		if next >= clusterEOCMin {
			break
		}
		cluster = next
	}
	return nil, kerr.New("fat32.findInRoot", kerr.INVALID_INDEX, nil)
}

// readClusterChain reads size bytes starting at cluster first, following
// the FAT chain as needed.
func (v *Volume) readClusterChain(first uint32, size uint32) ([]byte, error) {
	out := make([]byte, 0, size)
	cluster := first
	for uint32(len(out)) < size {
		buf := make([]byte, v.clusterBytes())
		if err := v.bd.ReadSectors(v.clusterToLBA(cluster), int(v.geom.sectorsPerCluster), buf); err != nil {
			return nil, err
		}
		remaining := int(size) - len(out)
		if remaining > len(buf) {
			remaining = len(buf)
		}
		out = append(out, buf[:remaining]...)
		if uint32(len(out)) >= size {
			break
		}
		next, err := v.nextCluster(cluster)
		if err != nil {
			return nil, err
		}
		if next >= clusterEOCMin {
			break
		}
		cluster = next
	}
	return out, nil
}

// ReadFile resolves name (an 8.3 root-directory entry, e.g. "HELLO.TXT")
// and returns its full contents.
func (v *Volume) ReadFile(name string) ([]byte, error) {
	entry, err := v.findInRoot(name)
	if err != nil {
		return nil, err
	}
	if entry.isDir {
		return nil, kerr.New("fat32.ReadFile", kerr.BAD_ARGS, nil)
	}
	return v.readClusterChain(entry.firstCluster, entry.size)
}
