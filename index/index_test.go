package index

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafema/rfdb/model"
	"github.com/grafema/rfdb/segment"
)

func writeNodes(t *testing.T, rows []segment.NodeRow) *segment.Nodes {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nodes.seg")
	require.NoError(t, segment.WriteNodes(path, rows))
	seg, err := segment.OpenNodes(path)
	require.NoError(t, err)
	t.Cleanup(func() { seg.Close() })
	return seg
}

func writeEdges(t *testing.T, rows []segment.EdgeRow) *segment.Edges {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edges.seg")
	require.NoError(t, segment.WriteEdges(path, rows))
	seg, err := segment.OpenEdges(path)
	require.NoError(t, err)
	t.Cleanup(func() { seg.Close() })
	return seg
}

func positions(bm interface{ ToArray() []uint32 }) []uint32 {
	return bm.ToArray()
}

func TestRebuildBasicLookups(t *testing.T) {
	ids := []model.NodeID{model.NewNodeID(), model.NewNodeID(), model.NewNodeID()}
	seg := writeNodes(t, []segment.NodeRow{
		{Node: model.Node{ID: ids[0], Type: "FUNCTION", Name: "a", File: "x.js"}},
		{Node: model.Node{ID: ids[1], Type: "FUNCTION", Name: "b", File: "y.js"}},
		{Node: model.Node{ID: ids[2], Type: "CLASS", Name: "C", File: "x.js"}},
	})

	ix, err := Rebuild(seg, nil)
	require.NoError(t, err)

	for i, id := range ids {
		pos, ok := ix.Position(id)
		require.True(t, ok)
		assert.Equal(t, uint32(i), pos)
	}
	_, ok := ix.Position(model.NewNodeID())
	assert.False(t, ok)

	assert.Equal(t, []uint32{0, 1}, positions(ix.ByType("FUNCTION")))
	assert.Equal(t, []uint32{2}, positions(ix.ByType("CLASS")))
	assert.Empty(t, positions(ix.ByType("ENUM")))
	assert.Equal(t, []uint32{0, 2}, positions(ix.ByFile("x.js")))
	assert.Equal(t, map[string]uint64{"FUNCTION": 2, "CLASS": 1}, ix.Types())
}

func TestRebuildTombstonesStayIndexed(t *testing.T) {
	live, dead := model.NewNodeID(), model.NewNodeID()
	seg := writeNodes(t, []segment.NodeRow{
		{Node: model.Node{ID: live, Type: "FUNCTION", File: "x.js"}},
		{Node: model.Node{ID: dead, Type: "FUNCTION", File: "x.js"}, Deleted: true},
	})

	ix, err := Rebuild(seg, nil)
	require.NoError(t, err)

	pos, ok := ix.Position(dead)
	require.True(t, ok, "tombstoned id must still resolve")
	assert.True(t, seg.IsDeleted(pos))

	// Tombstones stay in every index; deletion is a separate bitmap
	// the caller subtracts.
	assert.Equal(t, []uint32{0, 1}, positions(ix.ByType("FUNCTION")))
	assert.Equal(t, []uint32{0, 1}, positions(ix.ByFile("x.js")))
	assert.Equal(t, []uint32{1}, positions(ix.Deleted()))
	assert.Equal(t, 2, ix.Len())

	assert.Equal(t, map[string]uint64{"FUNCTION": 1}, ix.Types())
}

func TestByTypePrefix(t *testing.T) {
	seg := writeNodes(t, []segment.NodeRow{
		{Node: model.Node{ID: model.NewNodeID(), Type: "http:route"}},
		{Node: model.Node{ID: model.NewNodeID(), Type: "http:middleware"}},
		{Node: model.Node{ID: model.NewNodeID(), Type: "FUNCTION"}},
	})

	ix, err := Rebuild(seg, nil)
	require.NoError(t, err)

	assert.Equal(t, []uint32{0, 1}, positions(ix.ByTypePrefix("http:")))
	assert.Equal(t, []uint32{0, 1, 2}, positions(ix.ByTypePrefix("")))
	assert.Empty(t, positions(ix.ByTypePrefix("grpc:")))
}

func TestFieldIndexRespectsNodeTypeRestriction(t *testing.T) {
	decls := []model.FieldDecl{
		{Name: "status", Type: model.FieldTypeString, NodeTypes: []string{"CALL"}},
		{Name: "exported", Type: model.FieldTypeBool},
	}
	seg := writeNodes(t, []segment.NodeRow{
		{Node: model.Node{ID: model.NewNodeID(), Type: "CALL", Metadata: []byte(`{"status":"resolved","exported":true}`)}},
		{Node: model.Node{ID: model.NewNodeID(), Type: "FUNCTION", Metadata: []byte(`{"status":"resolved","exported":true}`)}},
		{Node: model.Node{ID: model.NewNodeID(), Type: "CALL", Metadata: []byte(`{"status":"unresolved"}`)}},
		{Node: model.Node{ID: model.NewNodeID(), Type: "CALL"}},
	})

	ix, err := Rebuild(seg, decls)
	require.NoError(t, err)

	// "status" is declared for CALL only, so the FUNCTION row at
	// position 1 is invisible to the field index.
	bm, ok := ix.ByField("status", "resolved")
	require.True(t, ok)
	assert.Equal(t, []uint32{0}, positions(bm))

	bm, ok = ix.ByField("exported", "true")
	require.True(t, ok)
	assert.Equal(t, []uint32{0, 1}, positions(bm))

	_, ok = ix.ByField("undeclared", "x")
	assert.False(t, ok)

	assert.True(t, ix.FieldIndexed("status", "CALL"))
	assert.False(t, ix.FieldIndexed("status", "FUNCTION"))
	assert.False(t, ix.FieldIndexed("status", ""))
	assert.True(t, ix.FieldIndexed("exported", ""))
	assert.True(t, ix.FieldIndexed("exported", "ANY"))
}

func TestFieldValueForms(t *testing.T) {
	decls := []model.FieldDecl{
		{Name: "line", Type: model.FieldTypeInt},
		{Name: "title", Type: model.FieldTypeString},
	}
	seg := writeNodes(t, []segment.NodeRow{
		{Node: model.Node{ID: model.NewNodeID(), Type: "N", Metadata: []byte(`{"line":42,"title":"say \"hi\""}`)}},
		{Node: model.Node{ID: model.NewNodeID(), Type: "N", Metadata: []byte(`{"line":null}`)}},
	})

	ix, err := Rebuild(seg, decls)
	require.NoError(t, err)

	bm, ok := ix.ByField("line", "42")
	require.True(t, ok)
	assert.Equal(t, []uint32{0}, positions(bm))

	// String values are indexed unescaped.
	bm, ok = ix.ByField("title", `say "hi"`)
	require.True(t, ok)
	assert.Equal(t, []uint32{0}, positions(bm))

	// null never enters the index.
	bm, ok = ix.ByField("line", "null")
	require.True(t, ok)
	assert.Empty(t, positions(bm))
}

func TestRebuildIsDeterministic(t *testing.T) {
	var rows []segment.NodeRow
	for i := 0; i < 20; i++ {
		rows = append(rows, segment.NodeRow{Node: model.Node{
			ID:       model.NewNodeID(),
			Type:     "FUNCTION",
			Metadata: []byte(`{"exported":true}`),
		}})
	}
	seg := writeNodes(t, rows)
	decls := []model.FieldDecl{{Name: "exported", Type: model.FieldTypeBool}}

	a, err := Rebuild(seg, decls)
	require.NoError(t, err)
	b, err := Rebuild(seg, decls)
	require.NoError(t, err)

	assert.Equal(t, a.Types(), b.Types())
	bmA, _ := a.ByField("exported", "true")
	bmB, _ := b.ByField("exported", "true")
	assert.Equal(t, bmA.ToArray(), bmB.ToArray())
}

func TestAdjacency(t *testing.T) {
	a, b, c, gone := model.NewNodeID(), model.NewNodeID(), model.NewNodeID(), model.NewNodeID()
	seg := writeEdges(t, []segment.EdgeRow{
		{Edge: model.Edge{Src: a, Dst: b, Type: "calls"}},
		{Edge: model.Edge{Src: a, Dst: c, Type: "calls"}},
		{Edge: model.Edge{Src: b, Dst: c, Type: "imports"}},
		{Edge: model.Edge{Src: a, Dst: b, Type: "reads"}, Deleted: true},
		{Edge: model.Edge{Src: a, Dst: gone, Type: "calls"}},
	})

	adj := RebuildAdjacency(seg, func(id model.NodeID) bool { return id == gone })

	assert.Equal(t, []uint32{0, 1}, positions(adj.Outgoing(a)))
	assert.Equal(t, []uint32{0}, positions(adj.Incoming(b)))
	assert.Equal(t, []uint32{1, 2}, positions(adj.Incoming(c)))
	assert.Empty(t, positions(adj.Outgoing(gone)))
	assert.Equal(t, 3, adj.Len())

	pos, ok := adj.Position(model.EdgeKey{Src: b, Dst: c, Type: "imports"})
	require.True(t, ok)
	assert.Equal(t, uint32(2), pos)

	// Neither the durable tombstone nor the dead-endpoint edge resolve.
	_, ok = adj.Position(model.EdgeKey{Src: a, Dst: b, Type: "reads"})
	assert.False(t, ok)
	_, ok = adj.Position(model.EdgeKey{Src: a, Dst: gone, Type: "calls"})
	assert.False(t, ok)
}
