package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafema/rfdb/model"
)

func TestLoadMissingFileYieldsFreshManifest(t *testing.T) {
	s := NewStore(t.TempDir())
	m, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, m.Version)
	assert.Equal(t, uint64(0), m.Generation)
	assert.Empty(t, m.Declarations)
	assert.False(t, m.CreatedAt.IsZero())
}

func TestSaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	m, err := s.Load()
	require.NoError(t, err)
	m.Generation = 3
	m.NodeCount = 10
	m.EdgeCount = 4
	m.Declarations = []model.FieldDecl{
		{Name: "exported", Type: model.FieldTypeBool, NodeTypes: []string{"FUNCTION"}},
	}
	require.NoError(t, s.Save(m))

	back, err := NewStore(dir).Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), back.Generation)
	assert.Equal(t, uint64(10), back.NodeCount)
	assert.Equal(t, uint64(4), back.EdgeCount)
	assert.Equal(t, m.Declarations, back.Declarations)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp file left behind")
	assert.Equal(t, FileName, entries[0].Name())
}

func TestLoadRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("not json"), 0o644))

	_, err := NewStore(dir).Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnsupportedVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`{"version":99}`), 0o644))

	_, err := NewStore(dir).Load()
	assert.ErrorContains(t, err, "unsupported version")
}

func TestLoadRejectsInvalidDeclaration(t *testing.T) {
	dir := t.TempDir()
	data := `{"version":1,"declarations":[{"name":"","type":"string"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(data), 0o644))

	_, err := NewStore(dir).Load()
	assert.ErrorContains(t, err, "name must not be empty")
}

func TestSegmentFileNames(t *testing.T) {
	assert.Equal(t, "nodes-000007.seg", NodeSegmentFile(7))
	assert.Equal(t, "edges-000007.seg", EdgeSegmentFile(7))
}
