package segment

import (
	"encoding/binary"
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/grafema/rfdb/model"
)

// Edges is a read-only view over one generation's edge segment.
type Edges struct {
	path string
	f    *os.File
	m    mmap.MMap
	data []byte
	hdr  *header
	strs *stringTable

	dstOff     int
	typesOff   int
	flagsOff   int
	metaIdxOff int
}

// OpenEdges maps the edge segment at path, failing fast on corruption.
func OpenEdges(path string) (*Edges, error) {
	f, m, data, err := mapSegment(path)
	if err != nil {
		return nil, err
	}
	s := &Edges{path: path, f: f, m: m, data: data}
	if err := s.validate(); err != nil {
		_ = s.Close()
		return nil, &CorruptError{Path: path, Reason: err.Error()}
	}
	return s, nil
}

func (s *Edges) validate() error {
	hdr, err := decodeHeader(s.data, EdgesMagic)
	if err != nil {
		return err
	}
	n := int(hdr.Count)
	_, s.dstOff, s.typesOff, s.flagsOff, s.metaIdxOff = edgeColumnOffsets(n)

	if want := uint64(s.metaIdxOff + 8*n); hdr.MetaOff != want {
		return fmt.Errorf("metadata offset %d does not match layout (want %d)", hdr.MetaOff, want)
	}
	if hdr.StrOff < hdr.MetaOff || hdr.StrOff > uint64(len(s.data)) {
		return fmt.Errorf("string table offset %d out of bounds", hdr.StrOff)
	}
	if actual := computeChecksum(s.data[HeaderSize:]); actual != hdr.Checksum {
		return &ChecksumMismatchError{Expected: hdr.Checksum, Actual: actual}
	}
	strs, err := decodeStringTable(s.data[hdr.StrOff:])
	if err != nil {
		return err
	}
	s.hdr = hdr
	s.strs = strs
	return nil
}

// Count returns the number of edge records, including durable tombstones.
func (s *Edges) Count() uint32 {
	return s.hdr.Count
}

// Src returns the source node id at pos.
func (s *Edges) Src(pos uint32) model.NodeID {
	var id model.NodeID
	if pos < s.hdr.Count {
		copy(id[:], s.data[HeaderSize+16*int(pos):])
	}
	return id
}

// Dst returns the destination node id at pos.
func (s *Edges) Dst(pos uint32) model.NodeID {
	var id model.NodeID
	if pos < s.hdr.Count {
		copy(id[:], s.data[s.dstOff+16*int(pos):])
	}
	return id
}

// Type returns the edge type at pos ("" if absent).
func (s *Edges) Type(pos uint32) string {
	if pos >= s.hdr.Count {
		return ""
	}
	idx := binary.LittleEndian.Uint32(s.data[s.typesOff+4*int(pos):])
	if idx == NoString {
		return ""
	}
	v, _ := s.strs.get(idx)
	return v
}

// IsDeleted reports whether the record at pos is a durable tombstone.
func (s *Edges) IsDeleted(pos uint32) bool {
	if pos >= s.hdr.Count {
		return false
	}
	return s.data[s.flagsOff+int(pos)]&flagDeleted != 0
}

// Metadata returns the raw JSON metadata at pos, or nil.
func (s *Edges) Metadata(pos uint32) ([]byte, error) {
	return readMetaEntry(s.data, s.hdr, s.metaIdxOff, pos)
}

// Edge materializes the full record at pos.
func (s *Edges) Edge(pos uint32) (model.Edge, error) {
	md, err := s.Metadata(pos)
	if err != nil {
		return model.Edge{}, err
	}
	return model.Edge{
		Src:      s.Src(pos),
		Dst:      s.Dst(pos),
		Type:     s.Type(pos),
		Metadata: md,
	}, nil
}

// Path returns the backing file path.
func (s *Edges) Path() string {
	return s.path
}

// Close unmaps the segment and closes the backing file.
func (s *Edges) Close() error {
	return closeMapped(&s.m, &s.f)
}
