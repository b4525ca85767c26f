package provider

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rzbill/ystore/internal/blob"
	pebblestore "github.com/rzbill/ystore/internal/storage/pebble"
	"github.com/rzbill/ystore/pkg/crdt/crdttest"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db, crdttest.New(), Options{
		MaxRecordSize:  64,
		CoalesceWindow: 2 * time.Millisecond,
	})
}

func TestStoreAndGetUpdates(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	u1 := crdttest.Update("alpha")
	u2 := crdttest.Update("beta")
	if c, err := p.StoreUpdate(ctx, "doc", u1); err != nil || c != 0 {
		t.Fatalf("store 1: clock=%d err=%v", c, err)
	}
	if c, err := p.StoreUpdate(ctx, "doc", u2); err != nil || c != 1 {
		t.Fatalf("store 2: clock=%d err=%v", c, err)
	}

	got, err := p.GetUpdates(ctx, "doc")
	if err != nil {
		t.Fatalf("get updates: %v", err)
	}
	if len(got) != 2 || !bytes.Equal(got[0], u1) || !bytes.Equal(got[1], u2) {
		t.Fatalf("updates mismatch: %v", got)
	}

	clock, err := p.GetCurrentClock(ctx, "doc")
	if err != nil || clock != 1 {
		t.Fatalf("current clock %d err %v", clock, err)
	}
	if clock, err = p.GetCurrentClock(ctx, "never"); err != nil || clock != NoClock {
		t.Fatalf("unknown doc clock %d err %v", clock, err)
	}
}

func TestFirstWriteSeedsMetaAndMarker(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	if _, err := p.StoreUpdate(ctx, "doc", crdttest.Update("x")); err != nil {
		t.Fatalf("store: %v", err)
	}

	_, clock, err := p.ReadStateVector(ctx, "doc")
	if err != nil || clock != 0 {
		t.Fatalf("marker clock %d err %v", clock, err)
	}
	meta, ok, err := p.DocMeta("doc")
	if err != nil || !ok || meta.Name != "doc" {
		t.Fatalf("meta %+v ok=%v err=%v", meta, ok, err)
	}

	names, err := p.ListAllDocumentNames(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"doc"}) {
		t.Fatalf("names %v", names)
	}
}

func TestFlushDocumentScenario(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	if _, err := p.StoreUpdate(ctx, "x", crdttest.Update("A")); err != nil {
		t.Fatalf("store A: %v", err)
	}
	if _, err := p.StoreUpdate(ctx, "x", crdttest.Update("B")); err != nil {
		t.Fatalf("store B: %v", err)
	}

	full := crdttest.Update("A", "B")
	sv := []byte("sv-after-ab")
	newClock, err := p.FlushDocument(ctx, "x", full, sv)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if newClock != 2 {
		t.Fatalf("baseline clock %d, want 2", newClock)
	}

	recs, err := p.ReadUpdates(ctx, "x", 0, 10, blob.ReadOptions{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(recs) != 1 || !bytes.Equal(recs[0].Payload, full) {
		t.Fatalf("want only the baseline, got %v", recs)
	}
	vec, clock, err := p.ReadStateVector(ctx, "x")
	if err != nil || clock != 2 || !bytes.Equal(vec, sv) {
		t.Fatalf("marker (%q, %d) err %v", vec, clock, err)
	}
}

func TestEngineFlushThenList(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		doc := fmt.Sprintf("notes/%d", i)
		if _, err := p.StoreUpdate(ctx, doc, crdttest.Update("op")); err != nil {
			t.Fatalf("store: %v", err)
		}
		if _, err := p.Flush(ctx, doc); err != nil {
			t.Fatalf("flush: %v", err)
		}
	}
	if _, err := p.StoreUpdate(ctx, "scratch", crdttest.Update("op")); err != nil {
		t.Fatalf("store: %v", err)
	}

	names, err := p.ListAllDocumentNames(ctx, `name.startsWith("notes/")`)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	sort.Strings(names)
	if !reflect.DeepEqual(names, []string{"notes/0", "notes/1", "notes/2"}) {
		t.Fatalf("filtered names %v", names)
	}

	// clock variable reflects the marker's clock (1 after one flush of a
	// single-update doc).
	names, err = p.ListAllDocumentNames(ctx, "clock >= 1")
	if err != nil {
		t.Fatalf("list by clock: %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("want 3 flushed docs, got %v", names)
	}
}

func TestBadFilterExpressionRejected(t *testing.T) {
	p := newTestProvider(t)
	if _, err := p.ListAllDocumentNames(context.Background(), "no_such_var == 1"); err == nil {
		t.Fatalf("want error for unknown variable")
	}
}

func TestDropAllRemovesEverything(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	for _, doc := range []string{"a", "b"} {
		if _, err := p.StoreUpdate(ctx, doc, crdttest.Update("op")); err != nil {
			t.Fatalf("store: %v", err)
		}
	}
	if err := p.DropAll(ctx); err != nil {
		t.Fatalf("drop: %v", err)
	}
	names, err := p.ListAllDocumentNames(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("documents survived drop: %v", names)
	}
	clock, err := p.GetCurrentClock(ctx, "a")
	if err != nil || clock != NoClock {
		t.Fatalf("clock after drop %d err %v", clock, err)
	}
}

func TestConcurrentStoresSerializePerDoc(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	clocks := make([]uint32, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := p.StoreUpdate(ctx, "doc", crdttest.Update(fmt.Sprintf("op-%d", i)))
			if err != nil {
				t.Errorf("store %d: %v", i, err)
				return
			}
			clocks[i] = c
		}(i)
	}
	wg.Wait()

	seen := map[uint32]bool{}
	for _, c := range clocks {
		if seen[c] {
			t.Fatalf("clock %d assigned twice", c)
		}
		seen[c] = true
	}
	cur, err := p.GetCurrentClock(ctx, "doc")
	if err != nil || cur != n-1 {
		t.Fatalf("current clock %d err %v, want %d", cur, err, n-1)
	}
}
