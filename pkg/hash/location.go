package hash

import (
	"strings"
	"sync"
)

// Location is the external hash channel: a single string value with
// last-writer-wins semantics and change notification, like a browser's
// window.location.hash together with its "hashchange" event.
type Location interface {
	// Hash returns the current fragment including its leading "#", or "" when
	// the fragment is empty.
	Hash() string

	// SetHash replaces the fragment. A leading "#" in s is optional.
	SetHash(s string)

	// Subscribe registers fn to be called after every change of the hash.
	// The returned function removes the registration.
	Subscribe(fn func()) (cancel func())
}

// MemoryLocation is an in-process Location. Listeners run synchronously on
// the goroutine that called SetHash, and only when the value actually
// changes.
type MemoryLocation struct {
	mu        sync.Mutex
	hash      string
	listeners map[int]func()
	nextID    int
}

var _ Location = (*MemoryLocation)(nil)

// NewMemoryLocation creates a MemoryLocation holding the fragment s.
func NewMemoryLocation(s string) *MemoryLocation {
	return &MemoryLocation{hash: strings.TrimPrefix(s, "#")}
}

// Hash returns "#" followed by the fragment, or "" when it is empty.
func (l *MemoryLocation) Hash() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.hash == "" {
		return ""
	}
	return "#" + l.hash
}

// SetHash stores s and notifies listeners if the value changed.
func (l *MemoryLocation) SetHash(s string) {
	s = strings.TrimPrefix(s, "#")

	l.mu.Lock()
	if s == l.hash {
		l.mu.Unlock()
		return
	}
	l.hash = s
	fns := make([]func(), 0, len(l.listeners))
	for id := 0; id < l.nextID; id++ {
		if fn, ok := l.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Subscribe registers fn. Listeners are called in registration order.
func (l *MemoryLocation) Subscribe(fn func()) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listeners == nil {
		l.listeners = make(map[int]func())
	}
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.listeners, id)
			l.mu.Unlock()
		})
	}
}

// Listeners returns the number of registered listeners.
func (l *MemoryLocation) Listeners() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.listeners)
}
