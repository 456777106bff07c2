package aggregates

import (
	"sync"

	"github.com/google/uuid"
)

// keyedLock serializes work per key inside one process. Entries are dropped
// once no goroutine holds or waits on them.
type keyedLock struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*keyedLockEntry
}

type keyedLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{locks: map[uuid.UUID]*keyedLockEntry{}}
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *keyedLock) Lock(key uuid.UUID) func() {
	k.mu.Lock()
	e := k.locks[key]
	if e == nil {
		e = &keyedLockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedLock) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
