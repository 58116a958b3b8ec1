package index

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/grafema/rfdb/model"
	"github.com/grafema/rfdb/segment"
)

// Adjacency maps node ids to the positions of their live incident
// edges in one edge segment. Like IndexSet it is rebuilt wholesale on
// every flush.
//
// Edges whose source or destination node is tombstoned are treated as
// dead and left out: a traversal never walks through a deleted node.
type Adjacency struct {
	out   map[model.NodeID]*roaring.Bitmap
	in    map[model.NodeID]*roaring.Bitmap
	byKey map[model.EdgeKey]uint32
	live  uint64
}

// NewAdjacency returns an empty adjacency index.
func NewAdjacency() *Adjacency {
	return &Adjacency{
		out:   make(map[model.NodeID]*roaring.Bitmap),
		in:    make(map[model.NodeID]*roaring.Bitmap),
		byKey: make(map[model.EdgeKey]uint32),
	}
}

// RebuildAdjacency constructs a fresh Adjacency over seg in a single
// pass. nodeDeleted reports whether an endpoint node is tombstoned.
func RebuildAdjacency(seg *segment.Edges, nodeDeleted func(model.NodeID) bool) *Adjacency {
	adj := NewAdjacency()
	for pos := uint32(0); pos < seg.Count(); pos++ {
		if seg.IsDeleted(pos) {
			continue
		}
		src, dst := seg.Src(pos), seg.Dst(pos)
		if nodeDeleted(src) || nodeDeleted(dst) {
			continue
		}
		addID(adj.out, src, pos)
		addID(adj.in, dst, pos)
		adj.byKey[model.EdgeKey{Src: src, Dst: dst, Type: seg.Type(pos)}] = pos
		adj.live++
	}
	return adj
}

func addID(m map[model.NodeID]*roaring.Bitmap, id model.NodeID, pos uint32) {
	bm := m[id]
	if bm == nil {
		bm = roaring.New()
		m[id] = bm
	}
	bm.Add(pos)
}

// Outgoing returns the live edge positions with the given source. The
// result is a copy the caller may mutate.
func (a *Adjacency) Outgoing(id model.NodeID) *roaring.Bitmap {
	if bm := a.out[id]; bm != nil {
		return bm.Clone()
	}
	return roaring.New()
}

// Incoming returns the live edge positions with the given destination.
func (a *Adjacency) Incoming(id model.NodeID) *roaring.Bitmap {
	if bm := a.in[id]; bm != nil {
		return bm.Clone()
	}
	return roaring.New()
}

// Position resolves an edge key to its segment position, if the edge
// is live.
func (a *Adjacency) Position(key model.EdgeKey) (uint32, bool) {
	pos, ok := a.byKey[key]
	return pos, ok
}

// Len returns the number of live edges.
func (a *Adjacency) Len() int {
	return int(a.live)
}
