package engine

import (
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/buger/jsonparser"

	"github.com/grafema/rfdb/model"
)

// GetNode resolves an id through the tiers in priority order: delta
// entry, pending tombstone, durable tombstone, then the current
// generation. A node re-created after deletion resolves to the fresh
// delta entry, never stale segment data. Absent at every tier returns
// ErrNotFound.
func (e *Engine) GetNode(id model.NodeID) (*model.Node, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	return e.getNodeLocked(id)
}

func (e *Engine) getNodeLocked(id model.NodeID) (*model.Node, error) {
	if n, ok := e.delta.node(id); ok {
		cp := *n
		return &cp, nil
	}
	if e.delta.nodeDeleted(id) {
		return nil, ErrNotFound
	}
	if e.cur == nil {
		return nil, ErrNotFound
	}
	pos, ok := e.cur.ix.Position(id)
	if !ok {
		return nil, ErrNotFound
	}
	if e.cur.nodes.IsDeleted(pos) || e.delta.deadNodePos.Contains(pos) {
		return nil, ErrNotFound
	}
	n, err := e.cur.nodes.Node(pos)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// NodeExists reports whether id resolves to a live node.
func (e *Engine) NodeExists(id model.NodeID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return false
	}
	return e.nodeAlive(id)
}

// NodeIdentifier returns the human-readable "TYPE:name@file" form of a
// live node.
func (e *Engine) NodeIdentifier(id model.NodeID) (string, error) {
	n, err := e.GetNode(id)
	if err != nil {
		return "", err
	}
	return n.Identifier(), nil
}

// FindByAttr returns the ids of live nodes matching every set filter.
//
// The delta log is scanned unconditionally (small, unindexed). For the
// segment tier the single most selective index narrows the candidates:
// a declared-field index when a metadata filter matches a declaration
// whose node-type restriction is satisfied, else the type index, else
// the file index, else a full scan. The remaining filters, including
// metadata payload inspection, run only against that narrowed set.
func (e *Engine) FindByAttr(q model.AttrQuery) ([]model.NodeID, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	start := time.Now()

	out := make([]model.NodeID, 0)
	for i := range e.delta.nodes {
		n := &e.delta.nodes[i]
		if e.delta.nodeDeleted(n.ID) {
			continue
		}
		if matchDeltaNode(n, &q) {
			out = append(out, n.ID)
		}
	}

	candidates := len(e.delta.nodes)
	if e.cur != nil {
		cands, used := e.pickIndex(&q)
		cands.AndNot(e.cur.ix.Deleted())
		cands.AndNot(e.delta.deadNodePos)
		candidates += int(cands.GetCardinality())

		it := cands.Iterator()
		for it.HasNext() {
			pos := it.Next()
			id := e.cur.nodes.ID(pos)
			if _, shadowed := e.delta.nodeIdx[id]; shadowed {
				continue
			}
			ok, err := e.matchGenNode(pos, &q, used)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, id)
			}
		}
	}

	e.metrics.OnQuery(candidates, len(out), time.Since(start))
	return out, nil
}

// FindByType returns the ids of live nodes whose type matches the
// pattern ("http:*" matches every type with that prefix).
func (e *Engine) FindByType(nodeType string) ([]model.NodeID, error) {
	return e.FindByAttr(model.AttrQuery{NodeType: nodeType})
}

// CountNodesByType returns live node counts grouped by type. With no
// filters every type is counted; otherwise only types matching one of
// the filter patterns (wildcards supported). Zero counts are omitted.
func (e *Engine) CountNodesByType(filters []string) map[string]int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil
	}

	counts := make(map[string]int)
	if e.cur != nil {
		live := e.liveNodePositions()
		it := live.Iterator()
		for it.HasNext() {
			pos := it.Next()
			if _, shadowed := e.delta.nodeIdx[e.cur.nodes.ID(pos)]; shadowed {
				continue
			}
			if t := e.cur.nodes.Type(pos); matchAnyType(t, filters) {
				counts[t]++
			}
		}
	}
	for i := range e.delta.nodes {
		n := &e.delta.nodes[i]
		if e.delta.nodeDeleted(n.ID) {
			continue
		}
		if matchAnyType(n.Type, filters) {
			counts[n.Type]++
		}
	}
	return counts
}

// CountEdgesByType returns live edge counts grouped by edge type, with
// the same filter semantics as CountNodesByType.
func (e *Engine) CountEdgesByType(filters []string) map[string]int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil
	}

	counts := make(map[string]int)
	if e.cur != nil {
		seg := e.cur.edges
		for pos := uint32(0); pos < seg.Count(); pos++ {
			if !e.genEdgeLive(pos) {
				continue
			}
			if _, shadowed := e.delta.edgeIdx[e.genEdgeKey(pos)]; shadowed {
				continue
			}
			if t := seg.Type(pos); matchAnyType(t, filters) {
				counts[t]++
			}
		}
	}
	for i := range e.delta.edges {
		ed := &e.delta.edges[i]
		if !e.deltaEdgeLive(ed) {
			continue
		}
		if matchAnyType(ed.Type, filters) {
			counts[ed.Type]++
		}
	}
	return counts
}

// pickIndex selects the most selective index for the segment tier and
// returns the candidate positions plus the metadata filter the index
// already satisfied (nil when none).
func (e *Engine) pickIndex(q *model.AttrQuery) (*roaring.Bitmap, *model.MetadataFilter) {
	ix := e.cur.ix
	tp := model.TypePattern(q.NodeType)

	// A field index is only trustworthy when the query's node type is
	// pinned down: for a wildcard or absent type, restricted
	// declarations may not cover every candidate.
	exactType := q.NodeType
	if tp.IsWildcard() {
		exactType = ""
	}
	for i := range q.MetadataFilters {
		f := &q.MetadataFilters[i]
		if !ix.FieldIndexed(f.Key, exactType) {
			continue
		}
		if bm, ok := ix.ByField(f.Key, f.Value); ok {
			return bm, f
		}
	}

	if q.NodeType != "" {
		if tp.IsWildcard() {
			return ix.ByTypePrefix(tp.Prefix()), nil
		}
		return ix.ByType(q.NodeType), nil
	}
	if q.File != "" {
		return ix.ByFile(q.File), nil
	}

	bm := roaring.New()
	bm.AddRange(0, uint64(e.cur.nodes.Count()))
	return bm, nil
}

// matchGenNode applies the filters not already satisfied by the chosen
// index to one segment position. Metadata is read only when a metadata
// filter remains.
func (e *Engine) matchGenNode(pos uint32, q *model.AttrQuery, used *model.MetadataFilter) (bool, error) {
	seg := e.cur.nodes
	if q.NodeType != "" && !model.TypePattern(q.NodeType).Matches(seg.Type(pos)) {
		return false, nil
	}
	if q.Name != "" && seg.Name(pos) != q.Name {
		return false, nil
	}
	if q.File != "" && seg.File(pos) != q.File {
		return false, nil
	}

	var md []byte
	for i := range q.MetadataFilters {
		f := &q.MetadataFilters[i]
		if f == used {
			continue
		}
		if md == nil {
			var err error
			if md, err = seg.Metadata(pos); err != nil {
				return false, err
			}
			if md == nil {
				return false, nil
			}
		}
		if !matchMetadata(md, f) {
			return false, nil
		}
	}
	return true, nil
}

func matchDeltaNode(n *model.Node, q *model.AttrQuery) bool {
	if q.NodeType != "" && !model.TypePattern(q.NodeType).Matches(n.Type) {
		return false
	}
	if q.Name != "" && n.Name != q.Name {
		return false
	}
	if q.File != "" && n.File != q.File {
		return false
	}
	for i := range q.MetadataFilters {
		if n.Metadata == nil || !matchMetadata(n.Metadata, &q.MetadataFilters[i]) {
			return false
		}
	}
	return true
}

// matchMetadata compares one metadata key against a filter value using
// the same canonical string form the field indexes are keyed by.
func matchMetadata(md []byte, f *model.MetadataFilter) bool {
	raw, dt, _, err := jsonparser.Get(md, f.Key)
	if err != nil || dt == jsonparser.Null || dt == jsonparser.NotExist {
		return false
	}
	if dt == jsonparser.String {
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return false
		}
		return s == f.Value
	}
	return string(raw) == f.Value
}

func matchAnyType(t string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if model.TypePattern(f).Matches(t) {
			return true
		}
	}
	return false
}

// nodeAlive reports whether id resolves to a live node in either tier.
func (e *Engine) nodeAlive(id model.NodeID) bool {
	if _, ok := e.delta.node(id); ok {
		return true
	}
	if e.delta.nodeDeleted(id) {
		return false
	}
	if e.cur == nil {
		return false
	}
	pos, ok := e.cur.ix.Position(id)
	if !ok {
		return false
	}
	return !e.cur.nodes.IsDeleted(pos) && !e.delta.deadNodePos.Contains(pos)
}

func (e *Engine) genEdgeKey(pos uint32) model.EdgeKey {
	seg := e.cur.edges
	return model.EdgeKey{Src: seg.Src(pos), Dst: seg.Dst(pos), Type: seg.Type(pos)}
}

// genEdgeLive reports whether the edge at pos in the current
// generation is still visible: not tombstoned at either tier and with
// both endpoints alive.
func (e *Engine) genEdgeLive(pos uint32) bool {
	if e.cur.edges.IsDeleted(pos) || e.delta.deadEdgePos.Contains(pos) {
		return false
	}
	key := e.genEdgeKey(pos)
	if e.delta.edgeDeleted(key) {
		return false
	}
	return e.nodeAlive(key.Src) && e.nodeAlive(key.Dst)
}

func (e *Engine) deltaEdgeLive(ed *model.Edge) bool {
	if e.delta.edgeDeleted(ed.Key()) {
		return false
	}
	return e.nodeAlive(ed.Src) && e.nodeAlive(ed.Dst)
}
