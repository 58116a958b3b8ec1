package model

import "strings"

// MetadataFilter is one (key, value) equality filter over a node's
// metadata JSON. The value is compared against the string form of the
// JSON value ("true", "42", "express").
type MetadataFilter struct {
	Key   string
	Value string
}

// AttrQuery filters nodes by attributes. All set fields must match
// (AND semantics). NodeType supports a trailing-* wildcard: "http:*"
// matches every type with the "http:" prefix.
type AttrQuery struct {
	NodeType        string
	Name            string
	File            string
	MetadataFilters []MetadataFilter
}

// WithNodeType returns a copy of q with the node type filter set.
func (q AttrQuery) WithNodeType(t string) AttrQuery {
	q.NodeType = t
	return q
}

// WithName returns a copy of q with the name filter set.
func (q AttrQuery) WithName(n string) AttrQuery {
	q.Name = n
	return q
}

// WithFile returns a copy of q with the file filter set.
func (q AttrQuery) WithFile(f string) AttrQuery {
	q.File = f
	return q
}

// WithMetadataFilter returns a copy of q with an additional metadata
// equality filter appended.
func (q AttrQuery) WithMetadataFilter(key, value string) AttrQuery {
	filters := make([]MetadataFilter, 0, len(q.MetadataFilters)+1)
	filters = append(filters, q.MetadataFilters...)
	filters = append(filters, MetadataFilter{Key: key, Value: value})
	q.MetadataFilters = filters
	return q
}

// TypePattern is a node- or edge-type match that understands the
// trailing-* wildcard convention.
type TypePattern string

// Matches reports whether t satisfies the pattern.
func (p TypePattern) Matches(t string) bool {
	s := string(p)
	if prefix, ok := strings.CutSuffix(s, "*"); ok {
		return strings.HasPrefix(t, prefix)
	}
	return t == s
}

// IsWildcard reports whether the pattern ends in *.
func (p TypePattern) IsWildcard() bool {
	return strings.HasSuffix(string(p), "*")
}

// Prefix returns the pattern with a trailing * removed.
func (p TypePattern) Prefix() string {
	return strings.TrimSuffix(string(p), "*")
}
