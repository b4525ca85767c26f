package docmeta

import (
	"testing"

	pebblestore "github.com/rzbill/ystore/internal/storage/pebble"
)

func newTestDB(t *testing.T) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestEnsureIsIdempotent(t *testing.T) {
	db := newTestDB(t)

	m1, err := Ensure(db, "doc")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if m1.Name != "doc" || m1.CreatedAtMs == 0 {
		t.Fatalf("bad meta: %+v", m1)
	}
	m2, err := Ensure(db, "doc")
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if m2.CreatedAtMs != m1.CreatedAtMs {
		t.Fatalf("ensure rewrote existing record: %+v vs %+v", m1, m2)
	}
}

func TestGetAbsent(t *testing.T) {
	db := newTestDB(t)
	_, ok, err := Get(db, "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected absent")
	}
}
