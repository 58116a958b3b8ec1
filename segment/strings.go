package segment

import (
	"encoding/binary"
	"fmt"
)

// stringTable interns deduplicated strings at write time and resolves
// 0-based indexes at read time.
//
// On-disk layout:
//
//	[count: u32][data_len: u32][(offset: u32, length: u32) x count][utf8 data]
type stringTable struct {
	data    []byte
	entries [][2]uint32 // (offset, length)
	index   map[string]uint32
}

func newStringTable() *stringTable {
	return &stringTable{index: make(map[string]uint32)}
}

// intern returns the 0-based index for s, appending it on first use.
func (t *stringTable) intern(s string) uint32 {
	if idx, ok := t.index[s]; ok {
		return idx
	}
	idx := uint32(len(t.entries))
	t.entries = append(t.entries, [2]uint32{uint32(len(t.data)), uint32(len(s))})
	t.data = append(t.data, s...)
	t.index[s] = idx
	return idx
}

// get resolves an index to its string. The second return is false for
// out-of-range indexes.
func (t *stringTable) get(idx uint32) (string, bool) {
	if int(idx) >= len(t.entries) {
		return "", false
	}
	e := t.entries[idx]
	start, end := int(e[0]), int(e[0])+int(e[1])
	if end > len(t.data) {
		return "", false
	}
	return string(t.data[start:end]), true
}

func (t *stringTable) encodedSize() int {
	return 8 + 8*len(t.entries) + len(t.data)
}

func (t *stringTable) encode() []byte {
	buf := make([]byte, 0, t.encodedSize())
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(len(t.entries)))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(t.data)))
	buf = append(buf, hdr[:]...)
	for _, e := range t.entries {
		var eb [8]byte
		binary.LittleEndian.PutUint32(eb[0:], e[0])
		binary.LittleEndian.PutUint32(eb[4:], e[1])
		buf = append(buf, eb[:]...)
	}
	return append(buf, t.data...)
}

// decodeStringTable parses a table from the tail of a mapped segment.
// The returned table aliases buf and must not outlive the mapping.
func decodeStringTable(buf []byte) (*stringTable, error) {
	if len(buf) < 8 {
		return nil, fmt.Errorf("string table truncated: %d bytes", len(buf))
	}
	count := binary.LittleEndian.Uint32(buf[0:])
	dataLen := binary.LittleEndian.Uint32(buf[4:])
	entriesEnd := 8 + 8*int(count)
	if entriesEnd+int(dataLen) > len(buf) {
		return nil, fmt.Errorf("string table out of bounds: %d entries, %d data bytes in %d", count, dataLen, len(buf))
	}
	t := &stringTable{
		entries: make([][2]uint32, count),
		data:    buf[entriesEnd : entriesEnd+int(dataLen)],
	}
	for i := range t.entries {
		off := 8 + 8*i
		t.entries[i] = [2]uint32{
			binary.LittleEndian.Uint32(buf[off:]),
			binary.LittleEndian.Uint32(buf[off+4:]),
		}
		if int(t.entries[i][0])+int(t.entries[i][1]) > int(dataLen) {
			return nil, fmt.Errorf("string table entry %d out of bounds", i)
		}
	}
	return t, nil
}
