package keys

import (
	"bytes"
	"testing"
)

func TestUpdateKeyOrdering(t *testing.T) {
	a := Update("doc", 10)
	b := Update("doc", 11)
	if bytes.Compare(a, b) >= 0 {
		t.Fatalf("expected clock 10 < clock 11")
	}
	// big-endian keeps numeric order across byte boundaries
	c := Update("doc", 255)
	d := Update("doc", 256)
	if bytes.Compare(c, d) >= 0 {
		t.Fatalf("expected clock 255 < clock 256")
	}
}

func TestPartKeysSortAfterWholeRecord(t *testing.T) {
	whole := Update("doc", 3)
	p1 := UpdatePart("doc", 3, 1)
	p2 := UpdatePart("doc", 3, 2)
	if bytes.Compare(whole, p1) >= 0 || bytes.Compare(p1, p2) >= 0 {
		t.Fatalf("expected whole < part1 < part2")
	}
	next := Update("doc", 4)
	if bytes.Compare(p2, next) >= 0 {
		t.Fatalf("parts of clock 3 must sort before clock 4")
	}
}

func TestDocNamesDoNotAlias(t *testing.T) {
	low, high := UpdateBounds("a")
	other := Update("ab", 0)
	if bytes.Compare(other, low) >= 0 && bytes.Compare(other, high) < 0 {
		t.Fatalf("doc %q leaked into bounds of doc %q", "ab", "a")
	}
}

func TestUpdateBoundsCoverMaxClockParts(t *testing.T) {
	low, high := UpdateBounds("doc")
	k := UpdatePart("doc", ^uint32(0), ^uint32(0))
	if bytes.Compare(k, low) < 0 || bytes.Compare(k, high) >= 0 {
		t.Fatalf("max clock part key outside bounds")
	}
}

func TestSplitUpdate(t *testing.T) {
	clock, part, ok := SplitUpdate("doc", Update("doc", 7))
	if !ok || clock != 7 || part != 0 {
		t.Fatalf("whole: got clock=%d part=%d ok=%v", clock, part, ok)
	}
	clock, part, ok = SplitUpdate("doc", UpdatePart("doc", 7, 2))
	if !ok || clock != 7 || part != 2 {
		t.Fatalf("part: got clock=%d part=%d ok=%v", clock, part, ok)
	}
	if _, _, ok = SplitUpdate("doc", []byte("v1/u/doc")); ok {
		t.Fatalf("truncated key should not split")
	}
}

func TestStateVectorEnumerationBounds(t *testing.T) {
	low, high := StateVectorBounds()
	k := StateVector("some-doc")
	if bytes.Compare(k, low) < 0 || bytes.Compare(k, high) >= 0 {
		t.Fatalf("sv key outside enumeration bounds")
	}
	doc, ok := DocFromStateVector(k)
	if !ok || doc != "some-doc" {
		t.Fatalf("round-trip doc name: %q ok=%v", doc, ok)
	}
	if u := Update("doc", 0); bytes.Compare(u, low) >= 0 && bytes.Compare(u, high) < 0 {
		t.Fatalf("update key must not fall inside sv bounds")
	}
}

func TestUpdateRangeIsHalfOpen(t *testing.T) {
	low, high := UpdateRange("doc", 2, 5)
	inside := [][]byte{Update("doc", 2), UpdatePart("doc", 4, 3)}
	outside := [][]byte{Update("doc", 1), Update("doc", 5)}
	for _, k := range inside {
		if bytes.Compare(k, low) < 0 || bytes.Compare(k, high) >= 0 {
			t.Fatalf("key %q should be inside [2,5)", k)
		}
	}
	for _, k := range outside {
		if bytes.Compare(k, low) >= 0 && bytes.Compare(k, high) < 0 {
			t.Fatalf("key %q should be outside [2,5)", k)
		}
	}
}

func TestSchemeBoundsCoverAllKinds(t *testing.T) {
	low, high := SchemeBounds()
	for _, k := range [][]byte{
		Update("doc", 0),
		UpdatePart("doc", ^uint32(0), ^uint32(0)),
		StateVector("doc"),
		Meta("doc", "info"),
	} {
		if bytes.Compare(k, low) < 0 || bytes.Compare(k, high) >= 0 {
			t.Fatalf("key %q outside scheme bounds", k)
		}
	}
}

func TestCheckDocName(t *testing.T) {
	if err := CheckDocName(""); err == nil {
		t.Fatalf("empty name should be rejected")
	}
	if err := CheckDocName("a\x00b"); err == nil {
		t.Fatalf("NUL in name should be rejected")
	}
	if err := CheckDocName("notes/2024"); err != nil {
		t.Fatalf("slash in name should be fine: %v", err)
	}
}
