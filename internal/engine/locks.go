package engine

import "sync"

// nameLocks hands out a mutex per key so the duplicate check and metadata
// commit for one original name run under mutual exclusion while unrelated
// names proceed concurrently. Entries are reference-counted and dropped
// when the last holder releases, so the map does not grow with the number
// of names ever seen.
type nameLocks struct {
	mu    sync.Mutex
	locks map[string]*nameLock
}

type nameLock struct {
	mu   sync.Mutex
	refs int
}

func newNameLocks() *nameLocks {
	return &nameLocks{locks: make(map[string]*nameLock)}
}

func (l *nameLocks) acquire(name string) {
	l.mu.Lock()
	entry, ok := l.locks[name]
	if !ok {
		entry = &nameLock{}
		l.locks[name] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

func (l *nameLocks) release(name string) {
	l.mu.Lock()
	entry := l.locks[name]
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, name)
	}
	l.mu.Unlock()

	entry.mu.Unlock()
}
