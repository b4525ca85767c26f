// Package compactor folds a document's full update log into one baseline
// update plus a fresh state-vector marker, then discards the subsumed
// history. The baseline is appended as a brand-new log entry before anything
// is deleted, so a crash at any point leaves at least one valid update record
// for every document that was ever successfully written.
package compactor

import (
	"context"

	"github.com/rzbill/ystore/internal/blob"
	"github.com/rzbill/ystore/internal/doclog"
	"github.com/rzbill/ystore/internal/statevec"
	"github.com/rzbill/ystore/internal/yerr"
	"github.com/rzbill/ystore/pkg/crdt"
	logpkg "github.com/rzbill/ystore/pkg/log"
)

// Engine runs per-document compaction. It takes no internal lock across a
// whole Flush; the provider facade serializes compactions per document.
type Engine struct {
	log    *doclog.Log
	svs    *statevec.Store
	lib    crdt.Library
	logger *logpkg.Logger

	// test seam: simulates a crash between the baseline append and the
	// history delete.
	skipCleanup bool
}

// New builds an Engine. logger may be nil.
func New(log *doclog.Log, svs *statevec.Store, lib crdt.Library, logger *logpkg.Logger) *Engine {
	if logger == nil {
		logger = logpkg.Nop()
	}
	return &Engine{log: log, svs: svs, lib: lib, logger: logger.WithComponent("compactor")}
}

// Flush folds every update record into a fresh document inside one library
// transaction, derives the minimal full-state update and state vector, and
// installs them via FlushWith. Returns the new baseline clock.
func (e *Engine) Flush(ctx context.Context, doc string) (uint32, error) {
	cur, err := e.log.CurrentClock(ctx, doc)
	if err != nil {
		return 0, err
	}
	if cur == doclog.NoClock {
		return 0, yerr.Validationf("document %q has no updates to compact", doc)
	}
	recs, err := e.log.ReadRange(ctx, doc, 0, uint32(cur)+1, blob.ReadOptions{})
	if err != nil {
		return 0, err
	}

	d := e.lib.NewDocument()
	err = d.Transact(func(d crdt.Document) error {
		for _, rec := range recs {
			if err := d.ApplyUpdate(rec.Payload); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, yerr.Integrityf(doc, 0, "folding update log: %v", err)
	}

	full, err := d.EncodeStateAsUpdate()
	if err != nil {
		return 0, yerr.Storef("encode full state", err)
	}
	vec, err := d.EncodeStateVector()
	if err != nil {
		return 0, yerr.Storef("encode state vector", err)
	}
	return e.FlushWith(ctx, doc, full, vec)
}

// FlushWith installs a precomputed baseline: append it as a new log entry at
// the next clock, advance the state-vector marker to that clock, then clear
// every older record. Append-then-clear means readers always see either the
// old log, the old log plus the baseline, or the baseline alone; merging any
// of those reconstructs the same document state.
//
// A failed cleanup delete is the one non-fatal step: it only leaves redundant
// already-subsumed records, so it is logged and the flush still succeeds.
func (e *Engine) FlushWith(ctx context.Context, doc string, fullUpdate, vector []byte) (uint32, error) {
	newClock, err := e.log.Append(ctx, doc, fullUpdate)
	if err != nil {
		return 0, err
	}
	if err := e.svs.Write(ctx, doc, vector, newClock); err != nil {
		return 0, err
	}
	if e.skipCleanup {
		return newClock, nil
	}
	if err := e.log.ClearRange(ctx, doc, 0, newClock); err != nil {
		e.logger.Warn("history cleanup failed; superseded records remain",
			"doc", doc, "baseline_clock", newClock, "err", err)
	}
	return newClock, nil
}
