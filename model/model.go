package model

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// NodeID is a 128-bit globally unique node identifier. IDs are opaque to
// the engine: the analysis pipeline usually derives them from content
// hashes, but any unique 16-byte value works.
type NodeID [16]byte

// ZeroNodeID is the invalid all-zero identifier.
var ZeroNodeID NodeID

// NewNodeID returns a random NodeID (UUIDv4-backed).
func NewNodeID() NodeID {
	return NodeID(uuid.New())
}

// NodeIDFromBytes builds a NodeID from exactly 16 bytes.
func NodeIDFromBytes(b []byte) (NodeID, error) {
	var id NodeID
	if len(b) != len(id) {
		return ZeroNodeID, fmt.Errorf("node id must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// NodeIDFromString parses a NodeID from either 32 hex characters or
// canonical UUID text.
func NodeIDFromString(s string) (NodeID, error) {
	if len(s) == 32 {
		b, err := hex.DecodeString(s)
		if err != nil {
			return ZeroNodeID, fmt.Errorf("invalid node id %q: %w", s, err)
		}
		return NodeIDFromBytes(b)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return ZeroNodeID, fmt.Errorf("invalid node id %q: %w", s, err)
	}
	return NodeID(u), nil
}

// String returns the ID as 32 lowercase hex characters.
func (id NodeID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether the ID is the invalid all-zero value.
func (id NodeID) IsZero() bool {
	return id == ZeroNodeID
}

// Node is a typed graph node. Metadata is a raw JSON object the engine
// stores verbatim and inspects lazily; nil means no metadata.
type Node struct {
	ID       NodeID
	Type     string // namespaced, e.g. "FUNCTION" or "http:route"
	Name     string
	File     string
	Metadata []byte
}

// Identifier returns the human-readable "TYPE:name@file" form.
func (n *Node) Identifier() string {
	return fmt.Sprintf("%s:%s@%s", n.Type, n.Name, n.File)
}

// Edge is a typed, directed edge between two nodes.
type Edge struct {
	Src      NodeID
	Dst      NodeID
	Type     string
	Metadata []byte
}

// EdgeKey identifies an edge for deletion: (src, dst, type).
type EdgeKey struct {
	Src  NodeID
	Dst  NodeID
	Type string
}

// Key returns the edge's identity triple.
func (e *Edge) Key() EdgeKey {
	return EdgeKey{Src: e.Src, Dst: e.Dst, Type: e.Type}
}
