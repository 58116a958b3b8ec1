package segment

import (
	"encoding/binary"
	"os"

	"github.com/klauspost/compress/s2"

	"github.com/grafema/rfdb/model"
)

// NodeRow is one node record destined for a new generation. Deleted
// rows are durable tombstones: still addressable and indexed, dropped
// by the following flush.
type NodeRow struct {
	Node    model.Node
	Deleted bool
}

// EdgeRow is one edge record destined for a new generation.
type EdgeRow struct {
	Edge    model.Edge
	Deleted bool
}

// WriteNodes writes a node segment to path. The file is assembled in
// memory, written to a temporary name, fsynced, and renamed into place:
// a crashed flush leaves no partial generation behind.
func WriteNodes(path string, rows []NodeRow) error {
	n := len(rows)
	_, typesOff, namesOff, filesOff, flagsOff, metaIdxOff := nodeColumnOffsets(n)

	strs := newStringTable()
	fixed := make([]byte, metaIdxOff+8*n-HeaderSize)
	var blob []byte

	rel := func(abs int) int { return abs - HeaderSize }

	for i, row := range rows {
		copy(fixed[rel(HeaderSize)+16*i:], row.Node.ID[:])
		putStringIdx(fixed[rel(typesOff)+4*i:], strs, row.Node.Type)
		putStringIdx(fixed[rel(namesOff)+4*i:], strs, row.Node.Name)
		putStringIdx(fixed[rel(filesOff)+4*i:], strs, row.Node.File)
		if row.Deleted {
			fixed[rel(flagsOff)+i] = flagDeleted
		}
		off, length := appendMetaBlob(&blob, row.Node.Metadata)
		binary.LittleEndian.PutUint32(fixed[rel(metaIdxOff)+8*i:], off)
		binary.LittleEndian.PutUint32(fixed[rel(metaIdxOff)+8*i+4:], length)
	}

	h := &header{
		Magic:   NodesMagic,
		Count:   uint32(n),
		MetaOff: uint64(metaIdxOff + 8*n),
	}
	h.StrOff = h.MetaOff + uint64(len(blob))
	return writeSegmentFile(path, h, fixed, blob, strs.encode())
}

// WriteEdges writes an edge segment to path with the same atomicity
// discipline as WriteNodes.
func WriteEdges(path string, rows []EdgeRow) error {
	n := len(rows)
	srcOff, dstOff, typesOff, flagsOff, metaIdxOff := edgeColumnOffsets(n)

	strs := newStringTable()
	fixed := make([]byte, metaIdxOff+8*n-HeaderSize)
	var blob []byte

	rel := func(abs int) int { return abs - HeaderSize }

	for i, row := range rows {
		copy(fixed[rel(srcOff)+16*i:], row.Edge.Src[:])
		copy(fixed[rel(dstOff)+16*i:], row.Edge.Dst[:])
		putStringIdx(fixed[rel(typesOff)+4*i:], strs, row.Edge.Type)
		if row.Deleted {
			fixed[rel(flagsOff)+i] = flagDeleted
		}
		off, length := appendMetaBlob(&blob, row.Edge.Metadata)
		binary.LittleEndian.PutUint32(fixed[rel(metaIdxOff)+8*i:], off)
		binary.LittleEndian.PutUint32(fixed[rel(metaIdxOff)+8*i+4:], length)
	}

	h := &header{
		Magic:   EdgesMagic,
		Count:   uint32(n),
		MetaOff: uint64(metaIdxOff + 8*n),
	}
	h.StrOff = h.MetaOff + uint64(len(blob))
	return writeSegmentFile(path, h, fixed, blob, strs.encode())
}

func putStringIdx(dst []byte, strs *stringTable, s string) {
	if s == "" {
		binary.LittleEndian.PutUint32(dst, NoString)
		return
	}
	binary.LittleEndian.PutUint32(dst, strs.intern(s))
}

// appendMetaBlob appends one metadata entry to the blob and returns its
// (offset, length) within the blob region. Payloads above the size
// threshold are stored s2-compressed when that actually shrinks them;
// a 1-byte prefix records the encoding.
func appendMetaBlob(blob *[]byte, md []byte) (off, length uint32) {
	if len(md) == 0 {
		return 0, 0
	}
	off = uint32(len(*blob))
	if len(md) >= compressThreshold {
		if c := s2.Encode(nil, md); len(c)+1 < len(md) {
			*blob = append(*blob, metaCompressed)
			*blob = append(*blob, c...)
			return off, uint32(len(c) + 1)
		}
	}
	*blob = append(*blob, metaRaw)
	*blob = append(*blob, md...)
	return off, uint32(len(md) + 1)
}

// writeSegmentFile checksums the body, then writes header+body to
// path+".tmp", fsyncs, and renames over path.
func writeSegmentFile(path string, h *header, parts ...[]byte) error {
	var crc uint32
	for _, p := range parts {
		crc = crc32Update(crc, p)
	}
	h.Checksum = crc

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	write := func(p []byte) {
		if err == nil {
			_, err = f.Write(p)
		}
	}
	write(h.encode())
	for _, p := range parts {
		write(p)
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
