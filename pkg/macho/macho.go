// Package macho detects Mach-O executables and zeroes the LC_UUID load
// command payload, the per-build identifier that differs between two
// otherwise identical compilations. Everything else in the file is left
// byte-for-byte untouched.
package macho

import "encoding/binary"

const (
	magic32    = 0xfeedface // thin, 32-bit, reader-endian
	cigam32    = 0xcefaedfe // thin, 32-bit, byte-swapped
	magic64    = 0xfeedfacf
	cigam64    = 0xcffaedfe
	magicFat   = 0xcafebabe // fat headers are always big-endian
	magicFat64 = 0xcafebabf

	headerLen32 = 28
	headerLen64 = 32

	fatHeaderLen  = 8
	fatArchLen32  = 20
	fatArchLen64  = 32
	maxFatSlices  = 128
	lcUUID        = 0x1b
	uuidCmdMinLen = 24 // cmd + cmdsize + 16-byte uuid
)

// IsMachO reports whether data begins with a recognized Mach-O container,
// thin or fat.
func IsMachO(data []byte) bool {
	if isThin(data) {
		return true
	}
	slices, ok := fatSlices(data)
	return ok && len(slices) > 0
}

// ZeroUUID returns a copy of data with every LC_UUID payload zeroed, in all
// fat slices when the file is a universal binary. The second return reports
// whether any identifier was found. Unrecognized input is returned unchanged
// without copying.
func ZeroUUID(data []byte) ([]byte, bool) {
	if isThin(data) {
		out := make([]byte, len(data))
		copy(out, data)
		return out, zeroThin(out)
	}

	if slices, ok := fatSlices(data); ok && len(slices) > 0 {
		out := make([]byte, len(data))
		copy(out, data)
		zeroed := false
		for _, s := range slices {
			if zeroThin(out[s.offset : s.offset+s.size]) {
				zeroed = true
			}
		}
		return out, zeroed
	}

	return data, false
}

func isThin(data []byte) bool {
	if len(data) < headerLen32 {
		return false
	}
	switch binary.LittleEndian.Uint32(data[0:4]) {
	case magic32, cigam32, magic64, cigam64:
		return true
	}
	return false
}

// zeroThin zeroes LC_UUID payloads in a single-architecture image in place.
func zeroThin(buf []byte) bool {
	if len(buf) < headerLen32 {
		return false
	}

	var order binary.ByteOrder
	headerLen := 0
	switch binary.LittleEndian.Uint32(buf[0:4]) {
	case magic32:
		order, headerLen = binary.LittleEndian, headerLen32
	case magic64:
		order, headerLen = binary.LittleEndian, headerLen64
	case cigam32:
		order, headerLen = binary.BigEndian, headerLen32
	case cigam64:
		order, headerLen = binary.BigEndian, headerLen64
	default:
		return false
	}
	if len(buf) < headerLen {
		return false
	}

	ncmds := order.Uint32(buf[16:20])
	sizeofcmds := order.Uint32(buf[20:24])

	end := uint64(headerLen) + uint64(sizeofcmds)
	if end > uint64(len(buf)) {
		end = uint64(len(buf))
	}

	zeroed := false
	off := uint64(headerLen)
	for i := uint32(0); i < ncmds && off+8 <= end; i++ {
		cmd := order.Uint32(buf[off : off+4])
		cmdsize := uint64(order.Uint32(buf[off+4 : off+8]))
		if cmdsize < 8 || off+cmdsize > end {
			break // malformed command list; stop rather than misparse
		}
		if cmd == lcUUID && cmdsize >= uuidCmdMinLen {
			for j := off + 8; j < off+uuidCmdMinLen; j++ {
				buf[j] = 0
			}
			zeroed = true
		}
		off += cmdsize
	}
	return zeroed
}

type fatSlice struct {
	offset uint64
	size   uint64
}

// fatSlices parses a fat (universal) header and returns the contained thin
// slices. Entries that do not hold a recognizable Mach-O image are skipped,
// which also rejects non-Mach-O files sharing the 0xcafebabe magic.
func fatSlices(data []byte) ([]fatSlice, bool) {
	if len(data) < fatHeaderLen {
		return nil, false
	}
	be := binary.BigEndian

	magic := be.Uint32(data[0:4])
	if magic != magicFat && magic != magicFat64 {
		return nil, false
	}
	narch := be.Uint32(data[4:8])
	if narch == 0 || narch > maxFatSlices {
		return nil, false
	}

	archLen := fatArchLen32
	if magic == magicFat64 {
		archLen = fatArchLen64
	}

	var slices []fatSlice
	for i := uint32(0); i < narch; i++ {
		base := fatHeaderLen + int(i)*archLen
		if base+archLen > len(data) {
			return nil, false
		}
		var offset, size uint64
		if magic == magicFat64 {
			offset = be.Uint64(data[base+8 : base+16])
			size = be.Uint64(data[base+16 : base+24])
		} else {
			offset = uint64(be.Uint32(data[base+8 : base+12]))
			size = uint64(be.Uint32(data[base+12 : base+16]))
		}
		if size < headerLen32 || offset > uint64(len(data)) || size > uint64(len(data))-offset {
			return nil, false
		}
		if !isThin(data[offset : offset+size]) {
			continue
		}
		slices = append(slices, fatSlice{offset: offset, size: size})
	}
	return slices, true
}
