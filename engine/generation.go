package engine

import (
	"github.com/grafema/rfdb/index"
	"github.com/grafema/rfdb/segment"
)

// generation bundles one flushed snapshot: the mapped segment pair and
// the indexes derived from it. The engine's lock guarantees a single
// owner, so teardown is a one-shot close; the onClose callback runs
// after the mappings drop and is used to delete superseded segment
// files.
type generation struct {
	num   uint64
	nodes *segment.Nodes
	edges *segment.Edges
	ix    *index.IndexSet
	adj   *index.Adjacency

	onClose func()
}

func newGeneration(num uint64, nodes *segment.Nodes, edges *segment.Edges, ix *index.IndexSet, adj *index.Adjacency) *generation {
	return &generation{
		num:   num,
		nodes: nodes,
		edges: edges,
		ix:    ix,
		adj:   adj,
	}
}

func (g *generation) close() {
	_ = g.nodes.Close()
	_ = g.edges.Close()
	if g.onClose != nil {
		g.onClose()
	}
}

// setOnClose registers a callback run after the mappings are closed.
func (g *generation) setOnClose(f func()) {
	g.onClose = f
}
