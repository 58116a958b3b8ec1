package engine

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/grafema/rfdb/model"
)

// deltaLog buffers writes and deletions that happened since the last
// flush. Nothing in it is durable: the delta is merged into a new
// generation by flush and then discarded.
//
// Deletions are tracked two ways. Pending tombstones (id and edge-key
// sets) shadow both delta entries and durable records on lookup. The
// dead-position bitmaps mark records of the current generation deleted
// since its flush, so bitmap-driven queries can subtract them without
// per-candidate set probes.
type deltaLog struct {
	nodes   []model.Node
	nodeIdx map[model.NodeID]int
	edges   []model.Edge
	edgeIdx map[model.EdgeKey]int

	deletedNodes map[model.NodeID]struct{}
	deletedEdges map[model.EdgeKey]struct{}

	deadNodePos *roaring.Bitmap
	deadEdgePos *roaring.Bitmap
}

func newDeltaLog() *deltaLog {
	return &deltaLog{
		nodeIdx:      make(map[model.NodeID]int),
		edgeIdx:      make(map[model.EdgeKey]int),
		deletedNodes: make(map[model.NodeID]struct{}),
		deletedEdges: make(map[model.EdgeKey]struct{}),
		deadNodePos:  roaring.New(),
		deadEdgePos:  roaring.New(),
	}
}

func (d *deltaLog) reset() {
	*d = *newDeltaLog()
}

// size returns the number of buffered entries, counted against the
// overflow cap.
func (d *deltaLog) size() int {
	return len(d.nodes) + len(d.edges)
}

// putNode inserts or overwrites the delta entry for n.ID. A re-insert
// of a deleted id clears its pending tombstone: the fresh entry wins.
func (d *deltaLog) putNode(n model.Node) {
	delete(d.deletedNodes, n.ID)
	if i, ok := d.nodeIdx[n.ID]; ok {
		d.nodes[i] = n
		return
	}
	d.nodeIdx[n.ID] = len(d.nodes)
	d.nodes = append(d.nodes, n)
}

func (d *deltaLog) putEdge(e model.Edge) {
	key := e.Key()
	delete(d.deletedEdges, key)
	if i, ok := d.edgeIdx[key]; ok {
		d.edges[i] = e
		return
	}
	d.edgeIdx[key] = len(d.edges)
	d.edges = append(d.edges, e)
}

// node returns the live delta entry for id, if any. The second return
// distinguishes a pending tombstone from plain absence.
func (d *deltaLog) node(id model.NodeID) (*model.Node, bool) {
	if _, dead := d.deletedNodes[id]; dead {
		return nil, false
	}
	if i, ok := d.nodeIdx[id]; ok {
		return &d.nodes[i], true
	}
	return nil, false
}

func (d *deltaLog) nodeDeleted(id model.NodeID) bool {
	_, ok := d.deletedNodes[id]
	return ok
}

func (d *deltaLog) edgeDeleted(key model.EdgeKey) bool {
	_, ok := d.deletedEdges[key]
	return ok
}

// edgeLive reports whether a delta edge entry is still visible: not
// tombstoned itself and with both endpoints alive.
func (d *deltaLog) edgeLive(e *model.Edge) bool {
	if d.edgeDeleted(e.Key()) {
		return false
	}
	return !d.nodeDeleted(e.Src) && !d.nodeDeleted(e.Dst)
}

// deleteNode records a pending tombstone for id and tombstones every
// delta edge touching it. Edges dead this way stay dead even if the
// node is later re-created.
func (d *deltaLog) deleteNode(id model.NodeID) {
	d.deletedNodes[id] = struct{}{}
	for i := range d.edges {
		e := &d.edges[i]
		if e.Src == id || e.Dst == id {
			d.deletedEdges[e.Key()] = struct{}{}
		}
	}
}

func (d *deltaLog) deleteEdge(key model.EdgeKey) {
	d.deletedEdges[key] = struct{}{}
}
