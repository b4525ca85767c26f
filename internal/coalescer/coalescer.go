// Package coalescer batches concurrent per-document update reads arriving
// within one short window into a single merged query against one store
// snapshot, then demultiplexes the results back to each caller. It trades a
// few milliseconds of latency for a large reduction in query volume when many
// documents load at once.
package coalescer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/rzbill/ystore/internal/blob"
	"github.com/rzbill/ystore/internal/keys"
	pebblestore "github.com/rzbill/ystore/internal/storage/pebble"
	"github.com/rzbill/ystore/internal/yerr"
	logpkg "github.com/rzbill/ystore/pkg/log"
)

// Kind names the record kind a query targets. Only update reads coalesce.
type Kind string

const (
	KindUpdate      Kind = "update"
	KindStateVector Kind = "state-vector"
	KindMeta        Kind = "meta"
)

// DefaultWindow approximates "the rest of the current scheduling tick" as a
// short timer. Tunable: a longer window coalesces more at higher latency.
const DefaultWindow = 2 * time.Millisecond

// Options configures a Coalescer.
type Options struct {
	// Window is the coalescing window armed by the first enqueue. <= 0
	// selects DefaultWindow.
	Window time.Duration
	// PerDocKeyspace mirrors a store layout with one physical collection per
	// document. Coalescing across documents is invalid there and Enqueue
	// rejects with a UsageError.
	PerDocKeyspace bool
	Logger         *logpkg.Logger
}

type result struct {
	recs []blob.Record
	err  error
}

// Coalescer buffers pending per-document read queries for one window.
type Coalescer struct {
	db             *pebblestore.DB
	window         time.Duration
	perDocKeyspace bool
	logger         *logpkg.Logger

	mu      sync.Mutex
	pending map[string][]chan result
	active  bool

	flushes atomic.Int64
}

// New builds a Coalescer over db.
func New(db *pebblestore.DB, opts Options) *Coalescer {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.Nop()
	}
	return &Coalescer{
		db:             db,
		window:         opts.Window,
		perDocKeyspace: opts.PerDocKeyspace,
		logger:         logger.WithComponent("coalescer"),
		pending:        map[string][]chan result{},
	}
}

// Enqueue registers a full-log update read for doc and blocks until the
// window flushes. Constraint violations are rejected synchronously, before
// anything is buffered:
//   - the store must share one keyspace across documents
//   - the query must carry no read options (limit/reverse)
//   - only update-kind queries coalesce
func (c *Coalescer) Enqueue(ctx context.Context, kind Kind, doc string, opts blob.ReadOptions) ([]blob.Record, error) {
	if kind != KindUpdate {
		return nil, yerr.Usagef("cannot coalesce %q queries; only update reads batch", kind)
	}
	if c.perDocKeyspace {
		return nil, yerr.Usagef("coalescing disabled: store uses one keyspace per document")
	}
	if opts.Limit != 0 || opts.Reverse {
		return nil, yerr.Usagef("cannot coalesce a query with read options (limit/reverse)")
	}
	if err := keys.CheckDocName(doc); err != nil {
		return nil, err
	}

	ch := make(chan result, 1)
	c.mu.Lock()
	c.pending[doc] = append(c.pending[doc], ch)
	if !c.active {
		c.active = true
		time.AfterFunc(c.window, c.flush)
	}
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.recs, res.err
	}
}

// FlushNow fires the current window immediately. Usable as an explicit
// trigger when the caller knows no further queries will join.
func (c *Coalescer) FlushNow() { c.flush() }

// Flushes reports how many merged queries have executed.
func (c *Coalescer) Flushes() int64 { return c.flushes.Load() }

// flush swaps the buffer out and clears the active-window marker before the
// merged query runs, so an enqueue arriving during execution starts a fresh
// window instead of racing into this one.
func (c *Coalescer) flush() {
	c.mu.Lock()
	batch := c.pending
	c.pending = map[string][]chan result{}
	c.active = false
	c.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	c.flushes.Add(1)
	c.logger.Debug("flushing coalesced reads", "docs", len(batch))

	// One snapshot serves every buffered document; per-document bounded
	// iterators over it are the KV rendition of a name-in-{...} query.
	snap := c.db.NewSnapshot()
	defer snap.Close()

	for doc, waiters := range batch {
		recs, err := readDoc(snap, doc)
		for _, ch := range waiters {
			ch <- result{recs: recs, err: err}
		}
	}
}

func readDoc(snap *pebble.Snapshot, doc string) ([]blob.Record, error) {
	low, high := keys.UpdateBounds(doc)
	iter, err := snap.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return nil, yerr.Storef("snapshot iter", err)
	}
	defer iter.Close()
	return blob.ScanRange(iter, doc, blob.ReadOptions{})
}
