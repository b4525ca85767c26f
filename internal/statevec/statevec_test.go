package statevec

import (
	"bytes"
	"context"
	"testing"

	pebblestore "github.com/rzbill/ystore/internal/storage/pebble"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func TestReadUnknownDoc(t *testing.T) {
	s := newTestStore(t)
	vec, clock, err := s.Read(context.Background(), "nope")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if vec != nil || clock != NoClock {
		t.Fatalf("want (nil, -1), got (%v, %d)", vec, clock)
	}
}

func TestWriteOverwritesInPlace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Write(ctx, "doc", []byte("v0"), 0); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Write(ctx, "doc", []byte("v7"), 7); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	vec, clock, err := s.Read(ctx, "doc")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(vec, []byte("v7")) || clock != 7 {
		t.Fatalf("got (%q, %d), want (v7, 7)", vec, clock)
	}

	// Exactly one marker exists per doc.
	seen := 0
	err = s.ForEach(ctx, func(e Entry) bool {
		if e.Doc == "doc" {
			seen++
		}
		return true
	})
	if err != nil {
		t.Fatalf("foreach: %v", err)
	}
	if seen != 1 {
		t.Fatalf("want 1 marker, saw %d", seen)
	}
}

func TestEmptyVectorRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Write(ctx, "doc", nil, 0); err != nil {
		t.Fatalf("write: %v", err)
	}
	vec, clock, err := s.Read(ctx, "doc")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(vec) != 0 || clock != 0 {
		t.Fatalf("got (%q, %d), want empty vector at clock 0", vec, clock)
	}
}

func TestForEachEnumeratesAllDocs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docs := []string{"alpha", "beta", "gamma"}
	for i, d := range docs {
		if err := s.Write(ctx, d, []byte(d), uint32(i)); err != nil {
			t.Fatalf("write %s: %v", d, err)
		}
	}
	var got []Entry
	if err := s.ForEach(ctx, func(e Entry) bool { got = append(got, e); return true }); err != nil {
		t.Fatalf("foreach: %v", err)
	}
	if len(got) != len(docs) {
		t.Fatalf("want %d entries, got %d", len(docs), len(got))
	}
	for i, d := range docs {
		if got[i].Doc != d || got[i].Clock != uint32(i) {
			t.Fatalf("entry %d: %+v", i, got[i])
		}
	}
}

func TestForEachEarlyStop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, d := range []string{"a", "b", "c"} {
		if err := s.Write(ctx, d, nil, 0); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	n := 0
	if err := s.ForEach(ctx, func(Entry) bool { n++; return n < 2 }); err != nil {
		t.Fatalf("foreach: %v", err)
	}
	if n != 2 {
		t.Fatalf("want early stop after 2, got %d", n)
	}
}
