package storage

import (
	"os"
	"sync"
)

// EnsureDir ensures a directory exists with default permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// Listeners is a registry of per-key change callbacks for backends without
// a native notification mechanism. The zero value is ready for use.
type Listeners struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]func()
}

// Add registers fn for key and returns a function that removes it.
func (l *Listeners) Add(key string, fn func()) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.subs == nil {
		l.subs = make(map[string]map[int]func())
	}
	if l.subs[key] == nil {
		l.subs[key] = make(map[int]func())
	}
	id := l.next
	l.next++
	l.subs[key][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.subs[key], id)
			if len(l.subs[key]) == 0 {
				delete(l.subs, key)
			}
		})
	}
}

// Notify calls every callback registered for key. Callbacks run on the
// caller's goroutine, outside the registry lock.
func (l *Listeners) Notify(key string) {
	l.mu.Lock()
	fns := make([]func(), 0, len(l.subs[key]))
	for _, fn := range l.subs[key] {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Len returns the number of callbacks registered for key.
func (l *Listeners) Len(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs[key])
}
