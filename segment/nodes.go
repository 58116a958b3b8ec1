package segment

import (
	"encoding/binary"
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/klauspost/compress/s2"

	"github.com/grafema/rfdb/model"
)

// Nodes is a read-only view over one generation's node segment. All
// accessors are O(1) fixed-width reads off the memory mapping; metadata
// payloads are materialized lazily, only when asked for.
type Nodes struct {
	path string
	f    *os.File
	m    mmap.MMap
	data []byte
	hdr  *header
	strs *stringTable

	typesOff   int
	namesOff   int
	filesOff   int
	flagsOff   int
	metaIdxOff int
}

// OpenNodes maps the node segment at path. A corrupt or truncated file
// fails fast with a CorruptError: a partially readable generation is
// never exposed.
func OpenNodes(path string) (*Nodes, error) {
	f, m, data, err := mapSegment(path)
	if err != nil {
		return nil, err
	}
	s := &Nodes{path: path, f: f, m: m, data: data}
	if err := s.validate(); err != nil {
		_ = s.Close()
		return nil, &CorruptError{Path: path, Reason: err.Error()}
	}
	return s, nil
}

func (s *Nodes) validate() error {
	hdr, err := decodeHeader(s.data, NodesMagic)
	if err != nil {
		return err
	}
	n := int(hdr.Count)
	_, s.typesOff, s.namesOff, s.filesOff, s.flagsOff, s.metaIdxOff = nodeColumnOffsets(n)

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

// Count returns the number of records, including durable tombstones.
func (s *Nodes) Count() uint32 {
	return s.hdr.Count
}

// ID returns the node id at pos.
func (s *Nodes) ID(pos uint32) model.NodeID {
	var id model.NodeID
	if pos < s.hdr.Count {
		copy(id[:], s.data[HeaderSize+16*int(pos):])
	}
	return id
}

// Type returns the node type at pos ("" if absent).
func (s *Nodes) Type(pos uint32) string {
	return s.stringAt(s.typesOff, pos)
}

// Name returns the node name at pos ("" if absent).
func (s *Nodes) Name(pos uint32) string {
	return s.stringAt(s.namesOff, pos)
}

// File returns the node's file path at pos ("" if absent).
func (s *Nodes) File(pos uint32) string {
	return s.stringAt(s.filesOff, pos)
}

// IsDeleted reports whether the record at pos is a durable tombstone.
func (s *Nodes) IsDeleted(pos uint32) bool {
	if pos >= s.hdr.Count {
		return false
	}
	return s.data[s.flagsOff+int(pos)]&flagDeleted != 0
}

// Metadata returns the raw JSON metadata at pos, or nil if the record
// has none. Compressed entries are decoded on demand; nothing is parsed.
func (s *Nodes) Metadata(pos uint32) ([]byte, error) {
	return readMetaEntry(s.data, s.hdr, s.metaIdxOff, pos)
}

// Node materializes the full record at pos.
func (s *Nodes) Node(pos uint32) (model.Node, error) {
	md, err := s.Metadata(pos)
	if err != nil {
		return model.Node{}, err
	}
	return model.Node{
		ID:       s.ID(pos),
		Type:     s.Type(pos),
		Name:     s.Name(pos),
		File:     s.File(pos),
		Metadata: md,
	}, nil
}

// Path returns the backing file path.
func (s *Nodes) Path() string {
	return s.path
}

// Close unmaps the segment and closes the backing file. Views returned
// by accessors become invalid.
func (s *Nodes) Close() error {
	return closeMapped(&s.m, &s.f)
}

func (s *Nodes) stringAt(colOff int, pos uint32) string {
	if pos >= s.hdr.Count {
		return ""
	}
	idx := binary.LittleEndian.Uint32(s.data[colOff+4*int(pos):])
	if idx == NoString {
		return ""
	}
	v, _ := s.strs.get(idx)
	return v
}

// mapSegment opens and memory-maps path read-only.
func mapSegment(path string) (*os.File, mmap.MMap, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, nil, err
	}
	if fi.Size() < HeaderSize {
		_ = f.Close()
		return nil, nil, nil, &CorruptError{Path: path, Reason: fmt.Sprintf("file too small: %d bytes", fi.Size())}
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		_ = f.Close()
		return nil, nil, nil, fmt.Errorf("segment: mmap %s: %w", path, err)
	}
	return f, m, []byte(m), nil
}

func closeMapped(m *mmap.MMap, f **os.File) error {
	var err error
	if *m != nil {
		err = m.Unmap()
		*m = nil
	}
	if *f != nil {
		if cerr := (*f).Close(); err == nil {
			err = cerr
		}
		*f = nil
	}
	return err
}

// readMetaEntry resolves one metadata blob entry: bounds-check, strip
// the encoding prefix, and decompress if needed.
func readMetaEntry(data []byte, hdr *header, metaIdxOff int, pos uint32) ([]byte, error) {
	if pos >= hdr.Count {
		return nil, nil
	}
	off := binary.LittleEndian.Uint32(data[metaIdxOff+8*int(pos):])
	length := binary.LittleEndian.Uint32(data[metaIdxOff+8*int(pos)+4:])
	if length == 0 {
		return nil, nil
	}
	start := hdr.MetaOff + uint64(off)
	end := start + uint64(length)
	if end > hdr.StrOff {
		return nil, fmt.Errorf("segment: metadata entry %d out of bounds", pos)
	}
	entry := data[start:end]
	if entry[0] == metaCompressed {
		return s2.Decode(nil, entry[1:])
	}
	out := make([]byte, length-1)
	copy(out, entry[1:])
	return out, nil
}
