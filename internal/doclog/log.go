// Package doclog provides the append-only, clock-indexed update log kept per
// document. Clocks start at 0, are assigned by Append, and stay contiguous
// once compaction has run. The log does not serialize concurrent writers to
// one document; the provider facade holds a per-document lock around every
// mutating operation.
package doclog

import (
	"context"

	"github.com/cockroachdb/pebble"

	"github.com/rzbill/ystore/internal/blob"
	"github.com/rzbill/ystore/internal/keys"
	"github.com/rzbill/ystore/internal/statevec"
	pebblestore "github.com/rzbill/ystore/internal/storage/pebble"
	"github.com/rzbill/ystore/internal/yerr"
	"github.com/rzbill/ystore/pkg/crdt"
)

// NoClock is CurrentClock's result for a document with no update records,
// distinguishing "never written" from "at clock 0".
const NoClock int64 = -1

// Log appends and reads a document's update records.
type Log struct {
	db    *pebblestore.DB
	blobs *blob.Store
	svs   *statevec.Store
	lib   crdt.Library
}

// New wires a Log over the chunked blob store and state-vector store.
func New(db *pebblestore.DB, blobs *blob.Store, svs *statevec.Store, lib crdt.Library) *Log {
	return &Log{db: db, blobs: blobs, svs: svs, lib: lib}
}

// CurrentClock returns the highest clock among the document's update records,
// or NoClock when none exist. One reverse seek on the document's update
// bounds; payloads are not read.
func (l *Log) CurrentClock(ctx context.Context, doc string) (int64, error) {
	if err := keys.CheckDocName(doc); err != nil {
		return NoClock, err
	}
	low, high := keys.UpdateBounds(doc)
	iter, err := l.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return NoClock, yerr.Storef("clock iter", err)
	}
	defer iter.Close()
	if !iter.Last() {
		return NoClock, nil
	}
	clock, _, ok := keys.SplitUpdate(doc, iter.Key())
	if !ok {
		return NoClock, yerr.Integrityf(doc, 0, "unrecognized key %q in update range", iter.Key())
	}
	return int64(clock), nil
}

// Append stores update at the next clock and returns it. The very first
// update for a document also seeds the state-vector marker at clock 0 so the
// document becomes discoverable before any compaction has run.
func (l *Log) Append(ctx context.Context, doc string, update []byte) (uint32, error) {
	if err := keys.CheckDocName(doc); err != nil {
		return 0, err
	}
	cur, err := l.CurrentClock(ctx, doc)
	if err != nil {
		return 0, err
	}
	newClock := uint32(cur + 1)
	if cur == NoClock {
		if err := l.SeedStateVector(ctx, doc, update); err != nil {
			return 0, err
		}
	}
	if err := l.blobs.Put(ctx, doc, newClock, update); err != nil {
		return 0, err
	}
	return newClock, nil
}

// SeedStateVector materializes the clock-0 state-vector marker from a
// document's first update. Kept separate from Append on purpose: the seeding
// exists for document discovery, not for CRDT correctness.
func (l *Log) SeedStateVector(ctx context.Context, doc string, firstUpdate []byte) error {
	d := l.lib.NewDocument()
	if err := d.ApplyUpdate(firstUpdate); err != nil {
		return yerr.Validationf("first update rejected by CRDT library: %v", err)
	}
	vec, err := d.EncodeStateVector()
	if err != nil {
		return yerr.Storef("encode seed state vector", err)
	}
	return l.svs.Write(ctx, doc, vec, 0)
}

// ReadRange returns reassembled update payloads with from <= clock < to in
// clock order. Options support reverse order and a most-recent-N limit.
func (l *Log) ReadRange(ctx context.Context, doc string, from, to uint32, opts blob.ReadOptions) ([]blob.Record, error) {
	return l.blobs.GetRange(ctx, doc, from, to, opts)
}

// ClearRange deletes every record (and its parts) with from <= clock < to.
// Compaction-only; external callers never delete history piecemeal.
func (l *Log) ClearRange(ctx context.Context, doc string, from, to uint32) error {
	return l.blobs.DeleteRange(ctx, doc, from, to)
}
