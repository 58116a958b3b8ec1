// Package rfdb provides an embedded graph database for code analysis
// workloads.
//
// RFDB stores typed nodes and edges in a log-structured layout:
//
//   - Writes land in an in-memory delta log and become durable on Flush,
//     which writes a brand-new immutable columnar generation (mmap-backed
//     segment files) and swaps it in wholesale.
//   - In-memory indexes (id, type, file, declared metadata fields,
//     adjacency) are rebuilt from the segment on open and after every
//     flush; they are never patched incrementally.
//   - Deletions are two-tier: a pending tombstone until the next flush,
//     then a durable flag row that survives exactly one generation.
//
// # Quick Start
//
//	db, err := rfdb.Open("./graph")
//	if err != nil {
//	    panic(err)
//	}
//	defer db.Close()
//
//	fn := model.Node{ID: model.NewNodeID(), Type: "FUNCTION", Name: "main", File: "src/main.js"}
//	if err := db.AddNodes([]model.Node{fn}); err != nil {
//	    panic(err)
//	}
//	if err := db.Flush(); err != nil {
//	    panic(err)
//	}
//
//	ids, err := db.FindByType("FUNCTION")
//
// Declare metadata fields up front to answer attribute queries from an
// index instead of a scan:
//
//	db.DeclareFields([]model.FieldDecl{
//	    {Name: "obj", Type: model.FieldTypeString, NodeTypes: []string{"CALL"}},
//	})
//
// For a throwaway store backed by a temp directory, use Ephemeral.
package rfdb

import (
	"github.com/grafema/rfdb/engine"
	"github.com/grafema/rfdb/model"
)

// DB is a handle to a single RFDB store. All methods are safe for
// concurrent use. DB is a thin shell over the storage engine; it adds
// option plumbing and nothing else.
type DB struct {
	*engine.Engine
}

// Open opens the store in dir, creating it when the directory holds no
// manifest yet.
func Open(dir string, optFns ...Option) (*DB, error) {
	o := applyOptions(optFns)
	e, err := engine.Open(dir, o.engineOptions()...)
	if err != nil {
		return nil, err
	}
	return &DB{Engine: e}, nil
}

// Create initializes a brand-new store in dir and fails if one already
// exists there.
func Create(dir string, optFns ...Option) (*DB, error) {
	o := applyOptions(optFns)
	e, err := engine.Create(dir, o.engineOptions()...)
	if err != nil {
		return nil, err
	}
	return &DB{Engine: e}, nil
}

// Ephemeral creates a throwaway store in a temp directory. Close removes
// the backing files.
func Ephemeral(optFns ...Option) (*DB, error) {
	o := applyOptions(optFns)
	e, err := engine.Ephemeral(o.engineOptions()...)
	if err != nil {
		return nil, err
	}
	return &DB{Engine: e}, nil
}

// NewNodeID returns a fresh random node id. Convenience re-export of
// model.NewNodeID.
func NewNodeID() model.NodeID {
	return model.NewNodeID()
}
