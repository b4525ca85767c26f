// Package blob stores byte payloads that may exceed the store's per-record
// size ceiling by splitting them into ordered parts under one logical clock
// and reassembling them on read. Incomplete part sequences are an integrity
// fault, never a silent truncation.
package blob

import (
	"context"

	"github.com/cockroachdb/pebble"
	"golang.org/x/sync/errgroup"

	"github.com/rzbill/ystore/internal/keys"
	pebblestore "github.com/rzbill/ystore/internal/storage/pebble"
	"github.com/rzbill/ystore/internal/yerr"
)

// DefaultMaxRecordSize leaves headroom under a document store's hard 16 MiB
// record cap. Tests use much smaller ceilings.
const DefaultMaxRecordSize = 15_000_000

// putConcurrency bounds in-flight part writes for one oversized Put.
const putConcurrency = 4

// Record is one reassembled logical payload at a clock.
type Record struct {
	Clock   uint32
	Payload []byte
}

// ReadOptions shape a range read. Reverse scans most-recent-first; Limit
// bounds the number of logical records (not physical parts), 0 = unlimited.
type ReadOptions struct {
	Limit   int
	Reverse bool
}

// Store chunks and reassembles payloads over Pebble.
type Store struct {
	db            *pebblestore.DB
	maxRecordSize int
}

// New builds a Store. maxRecordSize <= 0 selects DefaultMaxRecordSize.
func New(db *pebblestore.DB, maxRecordSize int) *Store {
	if maxRecordSize <= 0 {
		maxRecordSize = DefaultMaxRecordSize
	}
	return &Store{db: db, maxRecordSize: maxRecordSize}
}

// MaxRecordSize returns the configured per-record payload ceiling.
func (s *Store) MaxRecordSize() int { return s.maxRecordSize }

// Put writes payload under (doc, clock). Payloads at or under the ceiling
// become one record; larger ones split into ceil(len/ceiling) contiguous
// parts numbered from 1, written concurrently. Success is reported only once
// every part is durably written; an aborted call may leave orphaned parts,
// which the read path reports as an integrity error.
func (s *Store) Put(ctx context.Context, doc string, clock uint32, payload []byte) error {
	if err := keys.CheckDocName(doc); err != nil {
		return err
	}
	if len(payload) <= s.maxRecordSize {
		return yerr.Storef("put update", s.db.Set(keys.Update(doc, clock), encodeValue(payload)))
	}

	nparts := (len(payload) + s.maxRecordSize - 1) / s.maxRecordSize
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(putConcurrency)
	for i := 0; i < nparts; i++ {
		lo := i * s.maxRecordSize
		hi := min(lo+s.maxRecordSize, len(payload))
		part := uint32(i + 1)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return s.db.Set(keys.UpdatePart(doc, clock, part), encodeValue(payload[lo:hi]))
		})
	}
	return yerr.Storef("put update parts", g.Wait())
}

// GetRange reads and reassembles records with from <= clock < to.
func (s *Store) GetRange(ctx context.Context, doc string, from, to uint32, opts ReadOptions) ([]Record, error) {
	if err := keys.CheckDocName(doc); err != nil {
		return nil, err
	}
	low, high := rangeBounds(doc, from, to)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return nil, yerr.Storef("range iter", err)
	}
	defer iter.Close()
	return ScanRange(iter, doc, opts)
}

// DeleteRange removes every record (and all its parts) with from <= clock < to.
func (s *Store) DeleteRange(ctx context.Context, doc string, from, to uint32) error {
	if err := keys.CheckDocName(doc); err != nil {
		return err
	}
	low, high := rangeBounds(doc, from, to)
	return yerr.Storef("delete range", s.db.DeleteRange(ctx, low, high))
}

func rangeBounds(doc string, from, to uint32) (low, high []byte) {
	if to == ^uint32(0) {
		low = keys.Update(doc, from)
		_, high = keys.UpdateBounds(doc)
		return low, high
	}
	return keys.UpdateRange(doc, from, to)
}

// partRec is one physical part awaiting reassembly.
type partRec struct {
	part    uint32
	payload []byte
}

// ScanRange walks an already-bounded iterator and reassembles logical
// records. Exposed so callers holding a snapshot iterator (the coalescer)
// share one reassembly path with GetRange.
func ScanRange(iter *pebble.Iterator, doc string, opts ReadOptions) ([]Record, error) {
	out := make([]Record, 0, max(1, opts.Limit))

	var (
		haveRun   bool
		runClock  uint32
		runWhole  []byte
		haveWhole bool
		runParts  []partRec
	)

	flush := func() error {
		if !haveRun {
			return nil
		}
		rec, err := assemble(doc, runClock, haveWhole, runWhole, runParts, opts.Reverse)
		if err != nil {
			return err
		}
		out = append(out, rec)
		haveRun, haveWhole, runWhole, runParts = false, false, nil, nil
		return nil
	}

	step := iter.Next
	ok := iter.First()
	if opts.Reverse {
		step = iter.Prev
		ok = iter.Last()
	}
	for ; ok; ok = step() {
		clock, part, kOK := keys.SplitUpdate(doc, iter.Key())
		if !kOK {
			return nil, yerr.Integrityf(doc, 0, "unrecognized key %q in update range", iter.Key())
		}
		payload, vOK := decodeValue(iter.Value())
		if !vOK {
			return nil, yerr.Integrityf(doc, clock, "corrupt record value (crc mismatch)")
		}
		if haveRun && clock != runClock {
			if err := flush(); err != nil {
				return nil, err
			}
			if opts.Limit > 0 && len(out) >= opts.Limit {
				return out, nil
			}
		}
		haveRun, runClock = true, clock
		if part == 0 {
			haveWhole, runWhole = true, payload
		} else {
			runParts = append(runParts, partRec{part: part, payload: payload})
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// assemble turns one maximal same-clock run into a Record. A run is either a
// single un-parted record or a gap-free part sequence 1..k; anything else is
// an integrity fault.
func assemble(doc string, clock uint32, haveWhole bool, whole []byte, parts []partRec, reverse bool) (Record, error) {
	if haveWhole {
		if len(parts) > 0 {
			return Record{}, yerr.Integrityf(doc, clock, "both whole record and %d part(s) present", len(parts))
		}
		return Record{Clock: clock, Payload: whole}, nil
	}
	if reverse {
		// reverse iteration delivered parts descending
		for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
			parts[i], parts[j] = parts[j], parts[i]
		}
	}
	total := 0
	for i, p := range parts {
		if p.part != uint32(i+1) {
			return Record{}, yerr.Integrityf(doc, clock, "part sequence broken: want part %d, have part %d", i+1, p.part)
		}
		total += len(p.payload)
	}
	if len(parts) == 0 {
		return Record{}, yerr.Integrityf(doc, clock, "empty record run")
	}
	buf := make([]byte, 0, total)
	for _, p := range parts {
		buf = append(buf, p.payload...)
	}
	return Record{Clock: clock, Payload: buf}, nil
}
