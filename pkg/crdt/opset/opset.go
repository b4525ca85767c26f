// Package opset is a minimal built-in crdt.Library: a document is a
// mergeable set of opaque ops, an update is a sequence of
// uvarint-length-framed ops, merge is set union, and the minimal full-state
// encoding lists distinct ops in sorted order. It backs the standalone server
// and the test suite; embedding applications inject a real CRDT engine
// instead.
package opset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"sort"

	"github.com/rzbill/ystore/pkg/crdt"
)

// Library implements crdt.Library.
type Library struct{}

// New returns the op-set library.
func New() Library { return Library{} }

// NewDocument returns an empty op-set document.
func (Library) NewDocument() crdt.Document {
	return &Doc{ops: map[string]struct{}{}}
}

// Doc is a mergeable set of opaque ops.
type Doc struct {
	ops map[string]struct{}
}

var _ = crdt.Document(&Doc{})

// Update frames ops into a binary update.
func Update(ops ...string) []byte {
	var out []byte
	var tmp [binary.MaxVarintLen64]byte
	for _, op := range ops {
		n := binary.PutUvarint(tmp[:], uint64(len(op)))
		out = append(out, tmp[:n]...)
		out = append(out, op...)
	}
	return out
}

func decode(update []byte) ([]string, error) {
	var ops []string
	for len(update) > 0 {
		l, n := binary.Uvarint(update)
		if n <= 0 || l > uint64(len(update)-n) {
			return nil, errors.New("opset: malformed update framing")
		}
		ops = append(ops, string(update[n:n+int(l)]))
		update = update[n+int(l):]
	}
	return ops, nil
}

// ApplyUpdate unions the update's ops into the document.
func (d *Doc) ApplyUpdate(update []byte) error {
	ops, err := decode(update)
	if err != nil {
		return err
	}
	for _, op := range ops {
		d.ops[op] = struct{}{}
	}
	return nil
}

// Ops returns the document's distinct ops in sorted order.
func (d *Doc) Ops() []string {
	out := make([]string, 0, len(d.ops))
	for op := range d.ops {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}

// EncodeStateAsUpdate emits the minimal sorted-op encoding.
func (d *Doc) EncodeStateAsUpdate() ([]byte, error) {
	return Update(d.Ops()...), nil
}

// EncodeStateVector summarizes the op set as "count:crc32(sorted ops)".
// Deterministic: equal states always produce equal vectors.
func (d *Doc) EncodeStateVector() ([]byte, error) {
	sum := crc32.ChecksumIEEE(Update(d.Ops()...))
	return []byte(fmt.Sprintf("%d:%08x", len(d.ops), sum)), nil
}

// Transact runs fn against the document. The in-memory set mutates in place;
// callers serialize access, matching the contract of real CRDT engines.
func (d *Doc) Transact(fn func(crdt.Document) error) error {
	return fn(d)
}
