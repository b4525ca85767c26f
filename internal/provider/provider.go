// Package provider exposes the persistence layer's upward facade: store and
// read update logs, state-vector markers, run compaction, and enumerate
// documents. Every mutating operation takes the document's keyed lock, giving
// a built-in one-writer-per-document guarantee instead of pushing
// serialization onto callers.
package provider

import (
	"context"
	"time"

	"github.com/rzbill/ystore/internal/blob"
	"github.com/rzbill/ystore/internal/coalescer"
	"github.com/rzbill/ystore/internal/compactor"
	"github.com/rzbill/ystore/internal/doclog"
	"github.com/rzbill/ystore/internal/docmeta"
	"github.com/rzbill/ystore/internal/keys"
	"github.com/rzbill/ystore/internal/statevec"
	pebblestore "github.com/rzbill/ystore/internal/storage/pebble"
	"github.com/rzbill/ystore/pkg/crdt"
	logpkg "github.com/rzbill/ystore/pkg/log"
)

// NoClock marks a document with no persisted updates / no marker.
const NoClock int64 = doclog.NoClock

// Options tune the provider.
type Options struct {
	// MaxRecordSize caps one physical record's payload. <= 0 selects the
	// blob store default.
	MaxRecordSize int
	// CoalesceWindow is the read-coalescing window. <= 0 selects the default.
	CoalesceWindow time.Duration
	// PerDocKeyspace disables cross-document read coalescing, mirroring a
	// store configured with one collection per document.
	PerDocKeyspace bool
	Logger         *logpkg.Logger
}

// Provider wires the update log, state-vector store, compaction engine, and
// read coalescer over one Pebble instance.
type Provider struct {
	db     *pebblestore.DB
	log    *doclog.Log
	svs    *statevec.Store
	eng    *compactor.Engine
	co     *coalescer.Coalescer
	locks  *lockMap
	logger *logpkg.Logger
}

// New builds a Provider. lib is the external CRDT library.
func New(db *pebblestore.DB, lib crdt.Library, opts Options) *Provider {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.Nop()
	}
	svs := statevec.New(db)
	blobs := blob.New(db, opts.MaxRecordSize)
	l := doclog.New(db, blobs, svs, lib)
	return &Provider{
		db:  db,
		log: l,
		svs: svs,
		eng: compactor.New(l, svs, lib, logger),
		co: coalescer.New(db, coalescer.Options{
			Window:         opts.CoalesceWindow,
			PerDocKeyspace: opts.PerDocKeyspace,
			Logger:         logger,
		}),
		locks:  newLockMap(),
		logger: logger.WithComponent("provider"),
	}
}

// GetUpdates returns every stored update payload for doc in clock order.
// Concurrent calls for different documents inside one coalescing window share
// a single underlying query.
func (p *Provider) GetUpdates(ctx context.Context, doc string) ([][]byte, error) {
	recs, err := p.co.Enqueue(ctx, coalescer.KindUpdate, doc, blob.ReadOptions{})
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(recs))
	for i, r := range recs {
		out[i] = r.Payload
	}
	return out, nil
}

// ReadUpdates is the direct (uncoalesced) range read, for callers that need
// windows, reverse order, or a most-recent-N limit.
func (p *Provider) ReadUpdates(ctx context.Context, doc string, from, to uint32, opts blob.ReadOptions) ([]blob.Record, error) {
	return p.log.ReadRange(ctx, doc, from, to, opts)
}

// GetCurrentClock returns the document's highest update clock, or -1.
func (p *Provider) GetCurrentClock(ctx context.Context, doc string) (int64, error) {
	return p.log.CurrentClock(ctx, doc)
}

// StoreUpdate appends one update and returns its assigned clock. The first
// write to a document also seeds its state-vector marker and metadata record.
func (p *Provider) StoreUpdate(ctx context.Context, doc string, update []byte) (uint32, error) {
	unlock := p.locks.lock(doc)
	defer unlock()

	cur, err := p.log.CurrentClock(ctx, doc)
	if err != nil {
		return 0, err
	}
	clock, err := p.log.Append(ctx, doc, update)
	if err != nil {
		return 0, err
	}
	if cur == doclog.NoClock {
		if _, err := docmeta.Ensure(p.db, doc); err != nil {
			p.logger.Warn("doc metadata seed failed", "doc", doc, "err", err)
		}
	}
	return clock, nil
}

// WriteStateVector overwrites the document's marker.
func (p *Provider) WriteStateVector(ctx context.Context, doc string, vector []byte, clock uint32) error {
	return p.svs.Write(ctx, doc, vector, clock)
}

// ReadStateVector returns the document's marker, or (nil, -1) when unknown.
func (p *Provider) ReadStateVector(ctx context.Context, doc string) ([]byte, int64, error) {
	return p.svs.Read(ctx, doc)
}

// Flush compacts the document's log into a single baseline via the CRDT
// library and returns the baseline clock.
func (p *Provider) Flush(ctx context.Context, doc string) (uint32, error) {
	unlock := p.locks.lock(doc)
	defer unlock()
	return p.eng.Flush(ctx, doc)
}

// FlushDocument installs a caller-provided full-state update and state
// vector as the new baseline, clearing subsumed history.
func (p *Provider) FlushDocument(ctx context.Context, doc string, fullUpdate, vector []byte) (uint32, error) {
	unlock := p.locks.lock(doc)
	defer unlock()
	return p.eng.FlushWith(ctx, doc, fullUpdate, vector)
}

// ListAllDocumentNames enumerates documents via the state-vector scan. A
// non-empty CEL filter expression (variables: name, clock) narrows the list.
func (p *Provider) ListAllDocumentNames(ctx context.Context, filterExpr string) ([]string, error) {
	f, err := newDocFilter(filterExpr)
	if err != nil {
		return nil, err
	}
	var names []string
	err = p.svs.ForEach(ctx, func(e statevec.Entry) bool {
		if f.Eval(e.Doc, e.Clock) {
			names = append(names, e.Doc)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// DocMeta returns the document's metadata record, if present.
func (p *Provider) DocMeta(doc string) (docmeta.Meta, bool, error) {
	return docmeta.Get(p.db, doc)
}

// DropAll removes every persisted record: update logs, state-vector markers,
// and metadata for all documents. Irreversible.
func (p *Provider) DropAll(ctx context.Context) error {
	low, high := keys.SchemeBounds()
	p.logger.Warn("dropping all persisted records")
	return p.db.DeleteRange(ctx, low, high)
}
