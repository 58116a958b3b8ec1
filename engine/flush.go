package engine

import (
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/grafema/rfdb/index"
	"github.com/grafema/rfdb/manifest"
	"github.com/grafema/rfdb/model"
	"github.com/grafema/rfdb/segment"
)

// Flush merges the delta log into a brand-new generation: segment pair
// written and fsynced, mapped, both indexes rebuilt, then the
// generation is swapped and the delta and tombstone sets
// are cleared. Atomic from the caller's view: on any I/O error the
// prior generation remains live and untouched.
//
// Durable tombstones are carried for exactly one generation. A record
// deleted since the last flush is written with its deleted flag set,
// so the id still resolves as "found but deleted"; the following flush
// drops the flagged row entirely.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	start := time.Now()
	num, nodes, edges, err := e.flushLocked()
	e.metrics.OnFlush(num, nodes, edges, time.Since(start), err)
	if err != nil {
		e.logger.Errorf("flush failed: generation=%d err=%v", num, err)
		return err
	}
	e.logger.Infof("flush complete: generation=%d nodes=%d edges=%d took=%s",
		num, nodes, edges, time.Since(start))
	return nil
}

func (e *Engine) flushLocked() (uint64, int, int, error) {
	num := e.meta.Generation + 1

	nodeRows, liveNodes, err := e.mergeNodes()
	if err != nil {
		return num, 0, 0, err
	}
	edgeRows, liveEdges, err := e.mergeEdges()
	if err != nil {
		return num, 0, 0, err
	}

	nodesPath := filepath.Join(e.dir, manifest.NodeSegmentFile(num))
	edgesPath := filepath.Join(e.dir, manifest.EdgeSegmentFile(num))
	if err := segment.WriteNodes(nodesPath, nodeRows); err != nil {
		return num, 0, 0, err
	}
	if err := segment.WriteEdges(edgesPath, edgeRows); err != nil {
		os.Remove(nodesPath)
		return num, 0, 0, err
	}

	gen, err := e.openGeneration(num)
	if err != nil {
		removeFiles([]string{nodesPath, edgesPath})
		return num, 0, 0, err
	}

	prev := *e.meta
	e.meta.Generation = num
	e.meta.NodeCount = uint64(liveNodes)
	e.meta.EdgeCount = uint64(liveEdges)
	if err := e.man.Save(e.meta); err != nil {
		*e.meta = prev
		gen.setOnClose(func() { removeFiles([]string{nodesPath, edgesPath}) })
		gen.close()
		return num, 0, 0, err
	}

	old := e.cur
	e.cur = gen
	e.delta.reset()
	if old != nil {
		paths := []string{old.nodes.Path(), old.edges.Path()}
		old.setOnClose(func() { removeFiles(paths) })
		old.close()
	}
	return num, liveNodes, liveEdges, nil
}

// mergeNodes produces the next generation's node rows: the current
// generation minus rows that already served their tombstone term,
// with fresh tombstone flags for records deleted since the flush, then
// the live delta entries. On an id collision the delta entry wins.
func (e *Engine) mergeNodes() ([]segment.NodeRow, int, error) {
	var rows []segment.NodeRow
	live := 0
	if e.cur != nil {
		seg := e.cur.nodes
		for pos := uint32(0); pos < seg.Count(); pos++ {
			if seg.IsDeleted(pos) {
				continue
			}
			id := seg.ID(pos)
			if _, shadowed := e.delta.nodeIdx[id]; shadowed && !e.delta.nodeDeleted(id) {
				continue
			}
			deleted := e.delta.deadNodePos.Contains(pos) || e.delta.nodeDeleted(id)
			n, err := seg.Node(pos)
			if err != nil {
				return nil, 0, err
			}
			rows = append(rows, segment.NodeRow{Node: n, Deleted: deleted})
			if !deleted {
				live++
			}
		}
	}
	for i := range e.delta.nodes {
		n := e.delta.nodes[i]
		if e.delta.nodeDeleted(n.ID) {
			continue
		}
		rows = append(rows, segment.NodeRow{Node: n})
		live++
	}
	return rows, live, nil
}

func (e *Engine) mergeEdges() ([]segment.EdgeRow, int, error) {
	var rows []segment.EdgeRow
	live := 0
	if e.cur != nil {
		seg := e.cur.edges
		for pos := uint32(0); pos < seg.Count(); pos++ {
			if seg.IsDeleted(pos) {
				continue
			}
			key := e.genEdgeKey(pos)
			if _, shadowed := e.delta.edgeIdx[key]; shadowed && !e.delta.edgeDeleted(key) {
				continue
			}
			deleted := e.delta.deadEdgePos.Contains(pos) ||
				e.delta.edgeDeleted(key) ||
				!e.nodeAlive(key.Src) || !e.nodeAlive(key.Dst)
			ed, err := seg.Edge(pos)
			if err != nil {
				return nil, 0, err
			}
			rows = append(rows, segment.EdgeRow{Edge: ed, Deleted: deleted})
			if !deleted {
				live++
			}
		}
	}
	for i := range e.delta.edges {
		ed := e.delta.edges[i]
		if !e.deltaEdgeLive(&ed) {
			continue
		}
		rows = append(rows, segment.EdgeRow{Edge: ed})
		live++
	}
	return rows, live, nil
}

// openGeneration maps the segment pair for generation num and rebuilds
// both derived indexes.
func (e *Engine) openGeneration(num uint64) (*generation, error) {
	nodes, err := segment.OpenNodes(filepath.Join(e.dir, manifest.NodeSegmentFile(num)))
	if err != nil {
		return nil, err
	}
	edges, err := segment.OpenEdges(filepath.Join(e.dir, manifest.EdgeSegmentFile(num)))
	if err != nil {
		_ = nodes.Close()
		return nil, err
	}

	start := time.Now()
	ix, adj, err := buildIndexes(nodes, edges, e.decls)
	if err != nil {
		_ = nodes.Close()
		_ = edges.Close()
		return nil, err
	}
	e.metrics.OnRebuild(num, time.Since(start))
	return newGeneration(num, nodes, edges, ix, adj), nil
}

// buildIndexes rebuilds the IndexSet and the AdjacencyIndex in
// parallel; neither depends on the other. The adjacency pass collects
// the tombstoned node ids itself so edges into deleted endpoints are
// skipped.
func buildIndexes(nodes *segment.Nodes, edges *segment.Edges, decls []model.FieldDecl) (*index.IndexSet, *index.Adjacency, error) {
	var (
		ix  *index.IndexSet
		adj *index.Adjacency
	)
	g := new(errgroup.Group)
	g.Go(func() error {
		var err error
		ix, err = index.Rebuild(nodes, decls)
		return err
	})
	g.Go(func() error {
		dead := make(map[model.NodeID]struct{})
		for pos := uint32(0); pos < nodes.Count(); pos++ {
			if nodes.IsDeleted(pos) {
				dead[nodes.ID(pos)] = struct{}{}
			}
		}
		adj = index.RebuildAdjacency(edges, func(id model.NodeID) bool {
			_, ok := dead[id]
			return ok
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return ix, adj, nil
}
