package writer

import (
	"path/filepath"
	"sync"
)

type pathLock struct {
	mu   sync.Mutex
	refs int
}

// lockRegistry hands out one mutex per cleaned absolute path. Entries are
// dropped once nobody holds or waits on them.
type lockRegistry struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

var locks = &lockRegistry{locks: make(map[string]*pathLock)}

func lockKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// acquire blocks until path is free and returns the matching release.
func (r *lockRegistry) acquire(path string) func() {
	key := lockKey(path)

	r.mu.Lock()
	l, ok := r.locks[key]
	if !ok {
		l = &pathLock{}
		r.locks[key] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			r.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(r.locks, key)
			}
			r.mu.Unlock()
		})
	}
}

func (r *lockRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}
