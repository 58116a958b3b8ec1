package engine

import (
	"github.com/grafema/rfdb/model"
)

// OutgoingEdges returns the live edges leaving id, optionally filtered
// by edge type patterns (empty means all).
func (e *Engine) OutgoingEdges(id model.NodeID, edgeTypes []string) ([]model.Edge, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	return e.outgoingLocked(id, edgeTypes)
}

// IncomingEdges returns the live edges arriving at id.
func (e *Engine) IncomingEdges(id model.NodeID, edgeTypes []string) ([]model.Edge, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	return e.incomingLocked(id, edgeTypes)
}

// AllEdges returns every live edge across both tiers.
func (e *Engine) AllEdges() ([]model.Edge, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}

	out := make([]model.Edge, 0)
	if e.cur != nil {
		seg := e.cur.edges
		for pos := uint32(0); pos < seg.Count(); pos++ {
			if !e.genEdgeLive(pos) {
				continue
			}
			if _, shadowed := e.delta.edgeIdx[e.genEdgeKey(pos)]; shadowed {
				continue
			}
			ed, err := seg.Edge(pos)
			if err != nil {
				return nil, err
			}
			out = append(out, ed)
		}
	}
	for i := range e.delta.edges {
		if e.deltaEdgeLive(&e.delta.edges[i]) {
			out = append(out, e.delta.edges[i])
		}
	}
	return out, nil
}

// Neighbors returns the destinations of id's live outgoing edges,
// optionally filtered by edge type patterns.
func (e *Engine) Neighbors(id model.NodeID, edgeTypes []string) ([]model.NodeID, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	return e.neighborsLocked(id, edgeTypes), nil
}

// BFS walks outgoing edges breadth-first from the start nodes up to
// maxDepth hops and returns every node reached, in visit order. Start
// nodes that are dead or unknown are skipped.
func (e *Engine) BFS(start []model.NodeID, maxDepth int, edgeTypes []string) ([]model.NodeID, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	return e.bfsLocked(start, maxDepth, func(id model.NodeID) []model.NodeID {
		return e.neighborsLocked(id, edgeTypes)
	}), nil
}

// Reachability is BFS with an optional backward direction: backward
// follows incoming edges, toward the sources that can reach the start
// set.
func (e *Engine) Reachability(start []model.NodeID, maxDepth int, edgeTypes []string, backward bool) ([]model.NodeID, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	next := func(id model.NodeID) []model.NodeID {
		return e.neighborsLocked(id, edgeTypes)
	}
	if backward {
		next = func(id model.NodeID) []model.NodeID {
			return e.reverseNeighborsLocked(id, edgeTypes)
		}
	}
	return e.bfsLocked(start, maxDepth, next), nil
}

func (e *Engine) bfsLocked(start []model.NodeID, maxDepth int, next func(model.NodeID) []model.NodeID) []model.NodeID {
	type item struct {
		id    model.NodeID
		depth int
	}
	visited := make(map[model.NodeID]struct{})
	result := make([]model.NodeID, 0, len(start))
	queue := make([]item, 0, len(start))

	for _, id := range start {
		if _, seen := visited[id]; seen || !e.nodeAlive(id) {
			continue
		}
		visited[id] = struct{}{}
		result = append(result, id)
		queue = append(queue, item{id: id})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if maxDepth > 0 && cur.depth >= maxDepth {
			continue
		}
		for _, nb := range next(cur.id) {
			if _, seen := visited[nb]; seen {
				continue
			}
			visited[nb] = struct{}{}
			result = append(result, nb)
			queue = append(queue, item{id: nb, depth: cur.depth + 1})
		}
	}
	return result
}

func (e *Engine) neighborsLocked(id model.NodeID, edgeTypes []string) []model.NodeID {
	edges, _ := e.outgoingLocked(id, edgeTypes)
	out := make([]model.NodeID, 0, len(edges))
	for i := range edges {
		out = append(out, edges[i].Dst)
	}
	return out
}

func (e *Engine) reverseNeighborsLocked(id model.NodeID, edgeTypes []string) []model.NodeID {
	edges, _ := e.incomingLocked(id, edgeTypes)
	out := make([]model.NodeID, 0, len(edges))
	for i := range edges {
		out = append(out, edges[i].Src)
	}
	return out
}

func (e *Engine) outgoingLocked(id model.NodeID, edgeTypes []string) ([]model.Edge, error) {
	out := make([]model.Edge, 0)
	if e.cur != nil {
		it := e.cur.adj.Outgoing(id).Iterator()
		for it.HasNext() {
			pos := it.Next()
			ed, ok, err := e.genEdgeAt(pos, edgeTypes)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, ed)
			}
		}
	}
	for i := range e.delta.edges {
		ed := &e.delta.edges[i]
		if ed.Src != id || !e.deltaEdgeLive(ed) || !matchAnyType(ed.Type, edgeTypes) {
			continue
		}
		out = append(out, *ed)
	}
	return out, nil
}

func (e *Engine) incomingLocked(id model.NodeID, edgeTypes []string) ([]model.Edge, error) {
	out := make([]model.Edge, 0)
	if e.cur != nil {
		it := e.cur.adj.Incoming(id).Iterator()
		for it.HasNext() {
			pos := it.Next()
			ed, ok, err := e.genEdgeAt(pos, edgeTypes)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, ed)
			}
		}
	}
	for i := range e.delta.edges {
		ed := &e.delta.edges[i]
		if ed.Dst != id || !e.deltaEdgeLive(ed) || !matchAnyType(ed.Type, edgeTypes) {
			continue
		}
		out = append(out, *ed)
	}
	return out, nil
}

// genEdgeAt materializes the edge at pos if it is live, not shadowed
// by a delta entry, and matches the type filter.
func (e *Engine) genEdgeAt(pos uint32, edgeTypes []string) (model.Edge, bool, error) {
	if !e.genEdgeLive(pos) {
		return model.Edge{}, false, nil
	}
	key := e.genEdgeKey(pos)
	if _, shadowed := e.delta.edgeIdx[key]; shadowed {
		return model.Edge{}, false, nil
	}
	if !matchAnyType(key.Type, edgeTypes) {
		return model.Edge{}, false, nil
	}
	ed, err := e.cur.edges.Edge(pos)
	if err != nil {
		return model.Edge{}, false, err
	}
	return ed, true, nil
}
