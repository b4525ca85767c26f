// Package docmeta keeps a small JSON metadata record per document under the
// key scheme's metadata kind. Seeded on a document's first write.
package docmeta

import (
	"encoding/json"
	"time"

	"github.com/rzbill/ystore/internal/keys"
	pebblestore "github.com/rzbill/ystore/internal/storage/pebble"
	"github.com/rzbill/ystore/internal/yerr"
)

const infoRecord = "info"

// Meta holds per-document bookkeeping.
type Meta struct {
	Name        string `json:"name"`
	CreatedAtMs int64  `json:"createdAtMs"`
}

// Ensure creates the document's metadata record if absent, returning the
// effective meta. Idempotent: an existing record is returned unchanged.
func Ensure(db *pebblestore.DB, doc string) (Meta, error) {
	if err := keys.CheckDocName(doc); err != nil {
		return Meta{}, err
	}
	key := keys.Meta(doc, infoRecord)
	if b, err := db.Get(key); err == nil && len(b) > 0 {
		var m Meta
		if err := json.Unmarshal(b, &m); err == nil {
			return m, nil
		}
		// corrupted record: rewrite below
	}
	m := Meta{Name: doc, CreatedAtMs: time.Now().UnixMilli()}
	b, err := json.Marshal(m)
	if err != nil {
		return Meta{}, err
	}
	if err := db.Set(key, b); err != nil {
		return Meta{}, yerr.Storef("write doc meta", err)
	}
	return m, nil
}

// Get reads the document's metadata record. ok is false when absent.
func Get(db *pebblestore.DB, doc string) (Meta, bool, error) {
	if err := keys.CheckDocName(doc); err != nil {
		return Meta{}, false, err
	}
	b, err := db.Get(keys.Meta(doc, infoRecord))
	if err != nil {
		if pebblestore.IsNotFound(err) {
			return Meta{}, false, nil
		}
		return Meta{}, false, yerr.Storef("read doc meta", err)
	}
	var m Meta
	if err := json.Unmarshal(b, &m); err != nil {
		return Meta{}, false, yerr.Integrityf(doc, 0, "malformed metadata record: %v", err)
	}
	return m, true, nil
}
