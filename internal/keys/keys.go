// Package keys builds canonical, order-preserving Pebble keys for a
// document's update fragments, state vector, and metadata.
//
// Layout (byte-wise, lexicographically sortable):
//   - v1/u/{doc}\x00{clock_be4}            (whole update)
//   - v1/u/{doc}\x00{clock_be4}{part_be4}  (chunk part, part >= 1)
//   - v1/sv/{doc}                          (state vector, one per doc)
//   - v1/m/{doc}\x00{name}                 (metadata)
//
// Clocks and parts are big-endian so byte order equals numeric order. The
// NUL terminator after the document name keeps one name from aliasing
// another's range ("a" vs "ab").
package keys

import (
	"encoding/binary"
	"strings"

	"github.com/rzbill/ystore/internal/yerr"
)

var (
	term         = byte(0x00)
	updatePrefix = []byte("v1/u/")
	svPrefix     = []byte("v1/sv/")
	metaPrefix   = []byte("v1/m/")
)

func appendBE4(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

// CheckDocName rejects names the key scheme cannot encode.
func CheckDocName(doc string) error {
	if doc == "" {
		return yerr.Validationf("empty document name")
	}
	if strings.IndexByte(doc, 0x00) >= 0 {
		return yerr.Validationf("document name contains NUL byte")
	}
	return nil
}

// Update builds the key for a whole (un-chunked) update record.
func Update(doc string, clock uint32) []byte {
	k := make([]byte, 0, len(updatePrefix)+len(doc)+5+4)
	k = append(k, updatePrefix...)
	k = append(k, doc...)
	k = append(k, term)
	k = appendBE4(k, clock)
	return k
}

// UpdatePart builds the key for the n-th chunk of an oversized update.
func UpdatePart(doc string, clock, part uint32) []byte {
	k := Update(doc, clock)
	k = appendBE4(k, part)
	return k
}

// UpdateRange returns [low, high) bounds covering all update records (and
// their parts) with from <= clock < to.
func UpdateRange(doc string, from, to uint32) (low, high []byte) {
	return Update(doc, from), Update(doc, to)
}

// UpdateBounds returns bounds covering the document's entire update keyspace,
// parts of the highest clock included.
func UpdateBounds(doc string) (low, high []byte) {
	low = Update(doc, 0)
	high = append(Update(doc, ^uint32(0)), 0xff, 0xff, 0xff, 0xff, 0xff)
	return low, high
}

// SplitUpdate extracts (clock, part, ok) from an update key produced by
// Update or UpdatePart. part is 0 for whole records.
func SplitUpdate(doc string, key []byte) (clock, part uint32, ok bool) {
	base := len(updatePrefix) + len(doc) + 1
	switch len(key) {
	case base + 4:
		return binary.BigEndian.Uint32(key[base:]), 0, true
	case base + 8:
		return binary.BigEndian.Uint32(key[base : base+4]), binary.BigEndian.Uint32(key[base+4:]), true
	default:
		return 0, 0, false
	}
}

// StateVector builds the key of the document's single state-vector record.
func StateVector(doc string) []byte {
	k := make([]byte, 0, len(svPrefix)+len(doc))
	k = append(k, svPrefix...)
	k = append(k, doc...)
	return k
}

// StateVectorBounds returns bounds covering every document's state-vector
// record, used to enumerate which documents exist.
func StateVectorBounds() (low, high []byte) {
	low = append([]byte(nil), svPrefix...)
	high = append([]byte(nil), svPrefix...)
	high[len(high)-1]++ // "v1/sv0" > every "v1/sv/..." key
	return low, high
}

// DocFromStateVector recovers the document name from a state-vector key.
func DocFromStateVector(key []byte) (string, bool) {
	if len(key) <= len(svPrefix) {
		return "", false
	}
	return string(key[len(svPrefix):]), true
}

// SchemeBounds returns bounds covering every key this scheme version writes,
// across all documents and record kinds.
func SchemeBounds() (low, high []byte) {
	return []byte("v1/"), []byte("v10")
}

// Meta builds the key for a named per-document metadata record.
func Meta(doc, name string) []byte {
	k := make([]byte, 0, len(metaPrefix)+len(doc)+1+len(name))
	k = append(k, metaPrefix...)
	k = append(k, doc...)
	k = append(k, term)
	k = append(k, name...)
	return k
}
