// Package segment implements the immutable, memory-mapped columnar
// files that hold one flushed generation of nodes and edges.
//
// A generation is written once by the engine's flush and never mutated;
// the next flush produces a fresh pair of files and the old ones are
// unmapped when their last reader releases them.
package segment

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// NodesMagic marks a node segment file ("RFN1").
	NodesMagic = 0x314e4652
	// EdgesMagic marks an edge segment file ("RFE1").
	EdgesMagic = 0x31454652

	Version = 1

	// HeaderSize is the fixed header length of both segment kinds.
	HeaderSize = 48

	// NoString marks an absent value in a string-index column.
	NoString = uint32(0xFFFFFFFF)

	// flagDeleted marks a durable tombstone row: the record existed in
	// an earlier generation and was deleted before this flush. Rows
	// carrying it are physically dropped by the following flush.
	flagDeleted = byte(1 << 0)

	// metaCompressed prefixes an s2-compressed metadata blob entry.
	metaCompressed = byte(1)
	// metaRaw prefixes an uncompressed metadata blob entry.
	metaRaw = byte(0)

	// compressThreshold is the minimum metadata payload size before the
	// writer attempts s2 compression.
	compressThreshold = 256
)

var (
	ErrInvalidMagic   = errors.New("segment: invalid magic number")
	ErrInvalidVersion = errors.New("segment: unsupported format version")
)

// CorruptError reports a segment file that failed validation on open.
// A segment that cannot be fully validated is never exposed: derived
// indexes depend on complete segment contents.
type CorruptError struct {
	Path   string
	Reason string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("segment: corrupt store %s: %s", e.Path, e.Reason)
}

// header is the fixed 48-byte file header shared by node and edge
// segments.
//
//	Offset  Size  Field
//	0       4     magic
//	4       2     version
//	6       2     reserved
//	8       8     record count
//	16      8     metadata blob offset
//	24      8     string table offset
//	32      4     CRC32 (IEEE) of the body (everything after the header)
//	36      12    reserved
type header struct {
	Magic    uint32
	Count    uint32
	MetaOff  uint64
	StrOff   uint64
	Checksum uint32
}

func (h *header) encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:], Version)
	binary.LittleEndian.PutUint64(buf[8:], uint64(h.Count))
	binary.LittleEndian.PutUint64(buf[16:], h.MetaOff)
	binary.LittleEndian.PutUint64(buf[24:], h.StrOff)
	binary.LittleEndian.PutUint32(buf[32:], h.Checksum)
	return buf
}

func decodeHeader(buf []byte, wantMagic uint32) (*header, error) {
	if len(buf) < HeaderSize {
		return nil, errors.New("buffer too small for header")
	}
	h := &header{}
	h.Magic = binary.LittleEndian.Uint32(buf[0:])
	if h.Magic != wantMagic {
		return nil, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint16(buf[4:]); v != Version {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, v)
	}
	count := binary.LittleEndian.Uint64(buf[8:])
	if count > uint64(^uint32(0)) {
		return nil, fmt.Errorf("record count %d exceeds u32 range", count)
	}
	h.Count = uint32(count)
	h.MetaOff = binary.LittleEndian.Uint64(buf[16:])
	h.StrOff = binary.LittleEndian.Uint64(buf[24:])
	h.Checksum = binary.LittleEndian.Uint32(buf[32:])
	return h, nil
}

// align8 rounds off up to the next 8-byte boundary.
func align8(off int) int {
	return (off + 7) &^ 7
}

// nodeColumnOffsets returns the byte offsets of the fixed-width node
// columns for a segment of n records. The layout is deterministic given
// the record count: ids (16B), then type/name/file string indexes (4B
// each), then flags (1B), then the 8-byte-aligned metadata index (8B).
func nodeColumnOffsets(n int) (ids, types, names, files, flags, metaIdx int) {
	ids = HeaderSize
	types = ids + 16*n
	names = types + 4*n
	files = names + 4*n
	flags = files + 4*n
	metaIdx = align8(flags + n)
	return
}

// edgeColumnOffsets returns the byte offsets of the fixed-width edge
// columns: src ids, dst ids, type string indexes, flags, metadata index.
func edgeColumnOffsets(n int) (src, dst, types, flags, metaIdx int) {
	src = HeaderSize
	dst = src + 16*n
	types = dst + 16*n
	flags = types + 4*n
	metaIdx = align8(flags + n)
	return
}
