package runtime

import "sync"

// lockEntry holds the per-item mutex and its reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// itemLocks hands out one exclusive lock per item id, garbage-collecting
// entries by reference counting so the table stays proportional to the number
// of items with in-flight operations.
type itemLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

func newItemLocks() *itemLocks {
	return &itemLocks{entries: make(map[string]*lockEntry)}
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller locks entry.mu (or TryLocks it) and MUST call release(id)
// afterwards, whether or not the mutex was obtained.
func (l *itemLocks) acquire(id string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.entries[id]
	if !exists {
		entry = &lockEntry{}
		l.entries[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (l *itemLocks) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.entries[id]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(l.entries, id)
	}
}
