package model

import (
	"fmt"
	"slices"
)

// FieldType is the type tag of a declared metadata field.
type FieldType uint8

const (
	FieldTypeString FieldType = iota
	FieldTypeBool
	FieldTypeInt
	FieldTypeID
)

// String returns the lowercase wire name of the type tag.
func (t FieldType) String() string {
	switch t {
	case FieldTypeString:
		return "string"
	case FieldTypeBool:
		return "bool"
	case FieldTypeInt:
		return "int"
	case FieldTypeID:
		return "id"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the type tag as its lowercase name.
func (t FieldType) MarshalJSON() ([]byte, error) {
	if t > FieldTypeID {
		return nil, fmt.Errorf("invalid field type %d", uint8(t))
	}
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON decodes a lowercase type name.
func (t *FieldType) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"string"`:
		*t = FieldTypeString
	case `"bool"`:
		*t = FieldTypeBool
	case `"int"`:
		*t = FieldTypeInt
	case `"id"`:
		*t = FieldTypeID
	default:
		return fmt.Errorf("invalid field type %s", data)
	}
	return nil
}

// FieldDecl registers a metadata key for secondary indexing. When
// NodeTypes is non-empty, only nodes of those types are indexed for
// this field.
type FieldDecl struct {
	Name      string    `json:"name"`
	Type      FieldType `json:"type"`
	NodeTypes []string  `json:"node_types,omitempty"`
}

// Validate reports malformed declarations.
func (d *FieldDecl) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("field declaration: name must not be empty")
	}
	if d.Type > FieldTypeID {
		return fmt.Errorf("field declaration %q: unknown type tag %d", d.Name, uint8(d.Type))
	}
	for _, nt := range d.NodeTypes {
		if nt == "" {
			return fmt.Errorf("field declaration %q: empty node type restriction", d.Name)
		}
	}
	return nil
}

// AppliesTo reports whether the declaration covers the given node type.
func (d *FieldDecl) AppliesTo(nodeType string) bool {
	if len(d.NodeTypes) == 0 {
		return true
	}
	return slices.Contains(d.NodeTypes, nodeType)
}
