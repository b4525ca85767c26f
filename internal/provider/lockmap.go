package provider

import "sync"

// lockMap hands out one mutex per document name so mutating operations on a
// document serialize while distinct documents proceed independently. Entries
// are reference counted and dropped when the last holder releases.
type lockMap struct {
	mu sync.Mutex
	m  map[string]*docLock
}

type docLock struct {
	mu   sync.Mutex
	refs int
}

func newLockMap() *lockMap {
	return &lockMap{m: map[string]*docLock{}}
}

// lock acquires the document's mutex and returns its release func.
func (lm *lockMap) lock(doc string) func() {
	lm.mu.Lock()
	dl := lm.m[doc]
	if dl == nil {
		dl = &docLock{}
		lm.m[doc] = dl
	}
	dl.refs++
	lm.mu.Unlock()

	dl.mu.Lock()
	return func() {
		dl.mu.Unlock()
		lm.mu.Lock()
		dl.refs--
		if dl.refs == 0 {
			delete(lm.m, doc)
		}
		lm.mu.Unlock()
	}
}
