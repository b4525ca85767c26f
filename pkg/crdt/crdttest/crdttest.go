// Package crdttest re-exports the deterministic opset library under a name
// that makes test intent explicit. Persistence and compaction tests use it to
// assert on decoded document state without a real CRDT engine.
package crdttest

import (
	"github.com/rzbill/ystore/pkg/crdt/opset"
)

// Library is the deterministic test library.
type Library = opset.Library

// Doc is the mergeable op-set document.
type Doc = opset.Doc

// New returns the test library.
func New() Library { return opset.New() }

// Update frames ops into a binary update.
func Update(ops ...string) []byte { return opset.Update(ops...) }
