package rfdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafema/rfdb/model"
)

func TestOpenAddFlushQuery(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	defer db.Close()

	fn := model.Node{ID: NewNodeID(), Type: "FUNCTION", Name: "main", File: "src/main.js"}
	call := model.Node{ID: NewNodeID(), Type: "CALL", Name: "log", File: "src/main.js"}
	require.NoError(t, db.AddNodes([]model.Node{fn, call}))
	require.NoError(t, db.AddEdges([]model.Edge{{Src: fn.ID, Dst: call.ID, Type: "contains"}}))
	require.NoError(t, db.Flush())

	ids, err := db.FindByType("FUNCTION")
	require.NoError(t, err)
	assert.Equal(t, []model.NodeID{fn.ID}, ids)

	nbs, err := db.Neighbors(fn.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []model.NodeID{call.ID}, nbs)

	_, err = db.GetNode(NewNodeID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEphemeral(t *testing.T) {
	db, err := Ephemeral()
	require.NoError(t, err)
	dir := db.Dir()

	require.NoError(t, db.AddNodes([]model.Node{{ID: NewNodeID(), Type: "FUNCTION", Name: "f"}}))
	require.NoError(t, db.Flush())
	require.NoError(t, db.Close())

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestOpenWithNilLogger(t *testing.T) {
	db, err := Open(t.TempDir(), WithLogger(nil))
	require.NoError(t, err)
	defer db.Close()

	// Logging is disabled, not broken: operations that log must work.
	require.NoError(t, db.AddNodes([]model.Node{{ID: NewNodeID(), Type: "FUNCTION", Name: "f"}}))
	require.NoError(t, db.Flush())
}

func TestOptionsPlumbing(t *testing.T) {
	db, err := Ephemeral(
		WithLogger(NoopLogger()),
		WithMetricsObserver(nil),
		WithDeltaLogCap(1),
	)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.AddNodes([]model.Node{{ID: NewNodeID(), Type: "A", Name: "a"}}))
	err = db.AddNodes([]model.Node{{ID: NewNodeID(), Type: "A", Name: "b"}})
	assert.ErrorIs(t, err, ErrDeltaLogOverflow)
}

func TestCorruptSegmentFailsOpen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, db.AddNodes([]model.Node{{ID: NewNodeID(), Type: "FUNCTION", Name: "f"}}))
	require.NoError(t, db.Flush())
	require.NoError(t, db.Close())

	seg := filepath.Join(dir, "nodes-000001.seg")
	buf, err := os.ReadFile(seg)
	require.NoError(t, err)
	buf[len(buf)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(seg, buf, 0o644))

	_, err = Open(dir)
	var cerr *CorruptStoreError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, seg, cerr.Path)
}

func TestHandshake(t *testing.T) {
	tests := []struct {
		name   string
		client uint32
		want   uint32
	}{
		{name: "current client", client: 2, want: 2},
		{name: "legacy client", client: 1, want: 1},
		{name: "newer client downgrades to ours", client: 7, want: 2},
		{name: "pre-negotiation client floors at legacy", client: 0, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Handshake(tt.client)
			assert.Equal(t, tt.want, info.Protocol)
			assert.Equal(t, EngineVersion, info.EngineVersion)
		})
	}
}
