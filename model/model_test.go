package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeIDRoundtrip(t *testing.T) {
	id := NewNodeID()
	require.False(t, id.IsZero())

	parsed, err := NodeIDFromString(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	fromBytes, err := NodeIDFromBytes(id[:])
	require.NoError(t, err)
	assert.Equal(t, id, fromBytes)
}

func TestNodeIDFromStringUUIDForm(t *testing.T) {
	id, err := NodeIDFromString("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	require.NoError(t, err)
	assert.Equal(t, "6ba7b8109dad11d180b400c04fd430c8", id.String())
}

func TestNodeIDFromStringInvalid(t *testing.T) {
	for _, s := range []string{"", "zz", "6ba7b8109dad11d180b400c04fd430czz"} {
		_, err := NodeIDFromString(s)
		assert.Error(t, err, s)
	}
	_, err := NodeIDFromBytes([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestNodeIdentifier(t *testing.T) {
	n := Node{Type: "FUNCTION", Name: "main", File: "src/main.js"}
	assert.Equal(t, "FUNCTION:main@src/main.js", n.Identifier())
}

func TestTypePattern(t *testing.T) {
	tests := []struct {
		pattern string
		value   string
		want    bool
	}{
		{"FUNCTION", "FUNCTION", true},
		{"FUNCTION", "FUNC", false},
		{"http:*", "http:route", true},
		{"http:*", "http:", true},
		{"http:*", "https", false},
		{"*", "anything", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TypePattern(tt.pattern).Matches(tt.value), "%s vs %s", tt.pattern, tt.value)
	}

	assert.True(t, TypePattern("http:*").IsWildcard())
	assert.False(t, TypePattern("http").IsWildcard())
	assert.Equal(t, "http:", TypePattern("http:*").Prefix())
}

func TestAttrQueryBuilders(t *testing.T) {
	base := AttrQuery{}.WithNodeType("FUNCTION")
	withName := base.WithName("main").WithMetadataFilter("exported", "true")

	assert.Empty(t, base.Name, "builders must not mutate the receiver")
	assert.Empty(t, base.MetadataFilters)
	assert.Equal(t, "FUNCTION", withName.NodeType)
	assert.Equal(t, "main", withName.Name)
	require.Len(t, withName.MetadataFilters, 1)
	assert.Equal(t, MetadataFilter{Key: "exported", Value: "true"}, withName.MetadataFilters[0])
}

func TestFieldTypeJSON(t *testing.T) {
	decl := FieldDecl{Name: "exported", Type: FieldTypeBool, NodeTypes: []string{"FUNCTION"}}
	data, err := json.Marshal(decl)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"exported","type":"bool","node_types":["FUNCTION"]}`, string(data))

	var back FieldDecl
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, decl, back)

	var bad FieldDecl
	assert.Error(t, json.Unmarshal([]byte(`{"name":"x","type":"float"}`), &bad))
}

func TestFieldDeclValidate(t *testing.T) {
	valid := FieldDecl{Name: "line", Type: FieldTypeInt}
	require.NoError(t, valid.Validate())

	assert.Error(t, (&FieldDecl{Type: FieldTypeString}).Validate())
	assert.Error(t, (&FieldDecl{Name: "x", Type: FieldType(9)}).Validate())
	assert.Error(t, (&FieldDecl{Name: "x", NodeTypes: []string{""}}).Validate())
}

func TestFieldDeclAppliesTo(t *testing.T) {
	unrestricted := FieldDecl{Name: "name"}
	assert.True(t, unrestricted.AppliesTo("ANY"))

	restricted := FieldDecl{Name: "status", NodeTypes: []string{"CALL", "http:route"}}
	assert.True(t, restricted.AppliesTo("CALL"))
	assert.False(t, restricted.AppliesTo("FUNCTION"))
}
