// Package crdt declares the capability set the persistence layer consumes
// from an external CRDT library. Updates, full-state encodings, and state
// vectors are opaque byte sequences; this layer never inspects them.
package crdt

// Document is one in-memory mergeable document instance.
type Document interface {
	// ApplyUpdate folds a binary update into the document. Replayed updates
	// merge deterministically regardless of application order.
	ApplyUpdate(update []byte) error

	// EncodeStateAsUpdate produces the minimal binary update that brings a
	// fresh document to this document's current state.
	EncodeStateAsUpdate() ([]byte, error)

	// EncodeStateVector produces the document's merge-frontier summary.
	EncodeStateVector() ([]byte, error)

	// Transact runs fn as one atomic mutation batch; intermediate states are
	// not separately observable.
	Transact(fn func(Document) error) error
}

// Library creates documents. Implementations are injected by the embedding
// application; tests use crdttest.Library.
type Library interface {
	NewDocument() Document
}
