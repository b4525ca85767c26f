// Package statevec persists the single per-document snapshot marker: the
// state vector plus the clock it was taken at. Records are overwritten in
// place, never appended. Scanning all markers is how the system discovers
// which documents exist without a separate registry.
package statevec

import (
	"context"
	"encoding/binary"

	"github.com/cockroachdb/pebble"

	"github.com/rzbill/ystore/internal/keys"
	pebblestore "github.com/rzbill/ystore/internal/storage/pebble"
	"github.com/rzbill/ystore/internal/yerr"
)

// NoClock is returned by Read when no record exists for the document.
const NoClock int64 = -1

// Store reads and writes state-vector records.
type Store struct {
	db *pebblestore.DB
}

// New builds a Store.
func New(db *pebblestore.DB) *Store { return &Store{db: db} }

// Encoding: uvarint clock | uvarint len(vector) | vector. Self-describing and
// forward-compatible: fields can be appended without breaking old readers.
func encode(vector []byte, clock uint32) []byte {
	var tmp [binary.MaxVarintLen64]byte
	out := make([]byte, 0, 2*binary.MaxVarintLen32+len(vector))
	n := binary.PutUvarint(tmp[:], uint64(clock))
	out = append(out, tmp[:n]...)
	n = binary.PutUvarint(tmp[:], uint64(len(vector)))
	out = append(out, tmp[:n]...)
	return append(out, vector...)
}

func decode(b []byte) (vector []byte, clock uint32, ok bool) {
	c, n := binary.Uvarint(b)
	if n <= 0 || c > uint64(^uint32(0)) {
		return nil, 0, false
	}
	b = b[n:]
	l, n := binary.Uvarint(b)
	if n <= 0 || uint64(len(b)-n) < l {
		return nil, 0, false
	}
	return append([]byte(nil), b[n:n+int(l)]...), uint32(c), true
}

// Write overwrites the document's marker with {clock, vector}.
func (s *Store) Write(ctx context.Context, doc string, vector []byte, clock uint32) error {
	if err := keys.CheckDocName(doc); err != nil {
		return err
	}
	return yerr.Storef("write state vector", s.db.Set(keys.StateVector(doc), encode(vector, clock)))
}

// Read returns the document's marker, or (nil, NoClock) when the document is
// unknown.
func (s *Store) Read(ctx context.Context, doc string) ([]byte, int64, error) {
	if err := keys.CheckDocName(doc); err != nil {
		return nil, NoClock, err
	}
	val, err := s.db.Get(keys.StateVector(doc))
	if err != nil {
		if pebblestore.IsNotFound(err) {
			return nil, NoClock, nil
		}
		return nil, NoClock, yerr.Storef("read state vector", err)
	}
	vector, clock, ok := decode(val)
	if !ok {
		return nil, NoClock, yerr.Integrityf(doc, 0, "malformed state-vector record")
	}
	return vector, int64(clock), nil
}

// Delete removes the document's marker. Used when a document is purged.
func (s *Store) Delete(ctx context.Context, doc string) error {
	if err := keys.CheckDocName(doc); err != nil {
		return err
	}
	return yerr.Storef("delete state vector", s.db.Delete(keys.StateVector(doc)))
}

// Entry is one enumerated document marker.
type Entry struct {
	Doc   string
	Clock uint32
}

// ForEach scans every document's marker in name order, invoking fn until it
// returns false or the scan ends.
func (s *Store) ForEach(ctx context.Context, fn func(Entry) bool) error {
	low, high := keys.StateVectorBounds()
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return yerr.Storef("sv iter", err)
	}
	defer iter.Close()
	for ok := iter.First(); ok; ok = iter.Next() {
		doc, kOK := keys.DocFromStateVector(iter.Key())
		if !kOK {
			continue
		}
		_, clock, vOK := decode(iter.Value())
		if !vOK {
			return yerr.Integrityf(doc, 0, "malformed state-vector record")
		}
		if !fn(Entry{Doc: doc, Clock: clock}) {
			return nil
		}
	}
	return nil
}
