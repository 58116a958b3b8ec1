package engine

import (
	"github.com/grafema/rfdb/index"
	"github.com/grafema/rfdb/model"
)

// AddNodes validates and appends nodes to the delta log. A re-insert
// of a deleted id clears its pending tombstone; the fresh entry wins
// over both the tombstone and any durable record under the same id.
func (e *Engine) AddNodes(nodes []model.Node) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	for i := range nodes {
		if err := validateNode(&nodes[i]); err != nil {
			return err
		}
	}
	if err := e.checkCap(len(nodes)); err != nil {
		return err
	}
	for i := range nodes {
		e.delta.putNode(nodes[i])
	}
	return nil
}

// AddEdges validates and appends edges to the delta log. Both
// endpoints must resolve to live nodes in either tier.
func (e *Engine) AddEdges(edges []model.Edge) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	for i := range edges {
		if err := e.validateEdge(&edges[i]); err != nil {
			return err
		}
	}
	if err := e.checkCap(len(edges)); err != nil {
		return err
	}
	for i := range edges {
		e.delta.putEdge(edges[i])
	}
	return nil
}

// DeleteNode tombstones a node and every edge touching it. Deleting an
// unknown id is a no-op, not an error.
func (e *Engine) DeleteNode(id model.NodeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.delta.deleteNode(id)
	if e.cur != nil {
		if pos, ok := e.cur.ix.Position(id); ok {
			e.delta.deadNodePos.Add(pos)
		}
		e.delta.deadEdgePos.Or(e.cur.adj.Outgoing(id))
		e.delta.deadEdgePos.Or(e.cur.adj.Incoming(id))
	}
	return nil
}

// DeleteEdge tombstones the edge identified by (src, dst, edgeType).
func (e *Engine) DeleteEdge(src, dst model.NodeID, edgeType string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	key := model.EdgeKey{Src: src, Dst: dst, Type: edgeType}
	e.delta.deleteEdge(key)
	if e.cur != nil {
		if pos, ok := e.cur.adj.Position(key); ok {
			e.delta.deadEdgePos.Add(pos)
		}
	}
	return nil
}

// DeclareFields replaces the field declarations wholesale, persists
// them, and synchronously rebuilds the field indexes. Later calls
// fully supersede prior coverage; this is not an additive merge.
func (e *Engine) DeclareFields(decls []model.FieldDecl) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	for i := range decls {
		if err := decls[i].Validate(); err != nil {
			return &ValidationError{Field: decls[i].Name, Reason: "invalid declaration", cause: err}
		}
	}

	prev := e.meta.Declarations
	e.meta.Declarations = decls
	if err := e.man.Save(e.meta); err != nil {
		e.meta.Declarations = prev
		return err
	}
	e.decls = decls

	if e.cur != nil {
		ix, err := index.Rebuild(e.cur.nodes, decls)
		if err != nil {
			return err
		}
		e.cur.ix = ix
	}
	e.logger.Infof("fields declared: count=%d", len(decls))
	return nil
}

func (e *Engine) checkCap(n int) error {
	if e.deltaCap > 0 && e.delta.size()+n > e.deltaCap {
		return ErrDeltaLogOverflow
	}
	return nil
}

func validateNode(n *model.Node) error {
	if n.ID.IsZero() {
		return &ValidationError{Field: "id", Reason: "must not be zero"}
	}
	if n.Type == "" {
		return &ValidationError{Field: "type", Reason: "must not be empty"}
	}
	return nil
}

func (e *Engine) validateEdge(edge *model.Edge) error {
	if edge.Type == "" {
		return &ValidationError{Field: "type", Reason: "must not be empty"}
	}
	if !e.nodeAlive(edge.Src) {
		return &ValidationError{Field: "src", Reason: "unknown node " + edge.Src.String()}
	}
	if !e.nodeAlive(edge.Dst) {
		return &ValidationError{Field: "dst", Reason: "unknown node " + edge.Dst.String()}
	}
	return nil
}
