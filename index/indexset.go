// Package index builds the in-memory lookup structures derived from a
// flushed generation. Indexes are rebuilt from scratch on every flush
// and never patched incrementally: a rebuild is a pure function of the
// segment contents plus the field declarations, so the same inputs
// always produce the same index.
package index

import (
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/buger/jsonparser"

	"github.com/grafema/rfdb/model"
	"github.com/grafema/rfdb/segment"
)

// IndexSet holds every secondary lookup over one node segment: the
// id-to-position map, the type and file inverted indexes, and one
// value index per declared metadata field.
//
// Every index covers all records including durable tombstones, so a
// lookup can distinguish "deleted" from "never existed". Deletion is
// not folded into the indexes; callers subtract Deleted() (or check
// the segment's flag) after lookup.
type IndexSet struct {
	byID    map[model.NodeID]uint32
	byType  map[string]*roaring.Bitmap
	byFile  map[string]*roaring.Bitmap
	byField map[string]map[string]*roaring.Bitmap
	deleted *roaring.Bitmap
	decls   []model.FieldDecl
}

// NewIndexSet returns an empty index set with the given declarations.
func NewIndexSet(decls []model.FieldDecl) *IndexSet {
	return &IndexSet{
		byID:    make(map[model.NodeID]uint32),
		byType:  make(map[string]*roaring.Bitmap),
		byFile:  make(map[string]*roaring.Bitmap),
		byField: make(map[string]map[string]*roaring.Bitmap),
		deleted: roaring.New(),
		decls:   decls,
	}
}

// Rebuild constructs a fresh IndexSet over seg in a single pass.
func Rebuild(seg *segment.Nodes, decls []model.FieldDecl) (*IndexSet, error) {
	ix := NewIndexSet(decls)
	for pos := uint32(0); pos < seg.Count(); pos++ {
		ix.byID[seg.ID(pos)] = pos
		if seg.IsDeleted(pos) {
			ix.deleted.Add(pos)
		}
		nodeType := seg.Type(pos)
		addTo(ix.byType, nodeType, pos)
		if f := seg.File(pos); f != "" {
			addTo(ix.byFile, f, pos)
		}
		if err := ix.indexFields(seg, pos, nodeType); err != nil {
			return nil, err
		}
	}
	return ix, nil
}

func (ix *IndexSet) indexFields(seg *segment.Nodes, pos uint32, nodeType string) error {
	if len(ix.decls) == 0 {
		return nil
	}
	var md []byte
	for i := range ix.decls {
		d := &ix.decls[i]
		if !d.AppliesTo(nodeType) {
			continue
		}
		if md == nil {
			var err error
			if md, err = seg.Metadata(pos); err != nil {
				return err
			}
			if md == nil {
				return nil
			}
		}
		val, ok := fieldValue(md, d)
		if !ok {
			continue
		}
		vm := ix.byField[d.Name]
		if vm == nil {
			vm = make(map[string]*roaring.Bitmap)
			ix.byField[d.Name] = vm
		}
		addTo(vm, val, pos)
	}
	return nil
}

// fieldValue extracts the declared field's value from a metadata JSON
// object as its canonical string key ("express", "true", "42").
func fieldValue(md []byte, d *model.FieldDecl) (string, bool) {
	raw, dt, _, err := jsonparser.Get(md, d.Name)
	if err != nil || dt == jsonparser.Null || dt == jsonparser.NotExist {
		return "", false
	}
	if dt == jsonparser.String {
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return "", false
		}
		return s, true
	}
	return string(raw), true
}

func addTo(m map[string]*roaring.Bitmap, key string, pos uint32) {
	bm := m[key]
	if bm == nil {
		bm = roaring.New()
		m[key] = bm
	}
	bm.Add(pos)
}

// Position resolves a node id to its segment position. Tombstoned ids
// still resolve; check the segment's deleted flag to tell them apart.
func (ix *IndexSet) Position(id model.NodeID) (uint32, bool) {
	pos, ok := ix.byID[id]
	return pos, ok
}

// Len returns the number of indexed ids, tombstones included.
func (ix *IndexSet) Len() int {
	return len(ix.byID)
}

// Deleted returns the positions of durable tombstones. The result is
// a copy the caller may mutate.
func (ix *IndexSet) Deleted() *roaring.Bitmap {
	return ix.deleted.Clone()
}

// ByType returns the positions of nodes with exactly the given type,
// tombstones included. The result is a copy the caller may mutate.
func (ix *IndexSet) ByType(nodeType string) *roaring.Bitmap {
	if bm := ix.byType[nodeType]; bm != nil {
		return bm.Clone()
	}
	return roaring.New()
}

// ByTypePrefix returns the positions of nodes whose type starts with
// prefix. Used for trailing-* wildcard queries.
func (ix *IndexSet) ByTypePrefix(prefix string) *roaring.Bitmap {
	out := roaring.New()
	for t, bm := range ix.byType {
		if strings.HasPrefix(t, prefix) {
			out.Or(bm)
		}
	}
	return out
}

// Types returns the distinct node types and their live (non-tombstone)
// cardinalities. Types whose every record is tombstoned are omitted.
func (ix *IndexSet) Types() map[string]uint64 {
	out := make(map[string]uint64, len(ix.byType))
	for t, bm := range ix.byType {
		live := bm.Clone()
		live.AndNot(ix.deleted)
		if n := live.GetCardinality(); n > 0 {
			out[t] = n
		}
	}
	return out
}

// ByFile returns the positions of nodes in the given file, tombstones
// included.
func (ix *IndexSet) ByFile(file string) *roaring.Bitmap {
	if bm := ix.byFile[file]; bm != nil {
		return bm.Clone()
	}
	return roaring.New()
}

// ByField returns the positions whose declared field equals value, and
// whether a field index exists at all for that name.
func (ix *IndexSet) ByField(name, value string) (*roaring.Bitmap, bool) {
	vm, ok := ix.byField[name]
	if !ok {
		return nil, false
	}
	if bm := vm[value]; bm != nil {
		return bm.Clone(), true
	}
	return roaring.New(), true
}

// FieldIndexed reports whether the named field is declared, and if a
// query's node type is known, whether the declaration covers it. An
// empty nodeType means the type is unconstrained and the index can only
// be trusted for declarations without a node-type restriction.
func (ix *IndexSet) FieldIndexed(name, nodeType string) bool {
	for i := range ix.decls {
		d := &ix.decls[i]
		if d.Name != name {
			continue
		}
		if nodeType == "" {
			return len(d.NodeTypes) == 0
		}
		if d.AppliesTo(nodeType) {
			return true
		}
	}
	return false
}

// Decls returns the declarations this index was built with.
func (ix *IndexSet) Decls() []model.FieldDecl {
	return ix.decls
}
