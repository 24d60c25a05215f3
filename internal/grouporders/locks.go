package grouporders

import (
	"sync"

	"github.com/google/uuid"
)

// orderLocks hands out one mutex per order ID so that all mutations of a
// single group order run serialized while different orders proceed in
// parallel. Entries are refcounted and dropped once the last holder releases,
// keeping the map bounded by the number of in-flight operations.
type orderLocks struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newOrderLocks() *orderLocks {
	return &orderLocks{entries: make(map[uuid.UUID]*lockEntry)}
}

// Acquire blocks until the per-order mutex is held and returns the release
// function. Release must be called exactly once.
func (l *orderLocks) Acquire(orderID uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.entries[orderID]
	if !ok {
		entry = &lockEntry{}
		l.entries[orderID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()
			l.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(l.entries, orderID)
			}
			l.mu.Unlock()
		})
	}
}
