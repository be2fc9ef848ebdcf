package common

import "sync"

// RWLock guards a value that has one writer and any number of readers.
type RWLock[V any] struct {
	l sync.RWMutex
	v V
}

func NewRWLock[V any](v V) *RWLock[V] {
	return &RWLock[V]{v: v}
}

// Read runs f with a copy of the current value under the read lock.
func (l *RWLock[V]) Read(f func(V)) {
	l.l.RLock()
	defer l.l.RUnlock()
	f(l.v)
}

// Write runs f with a pointer to the value under the write lock.
func (l *RWLock[V]) Write(f func(*V)) {
	l.l.Lock()
	defer l.l.Unlock()
	f(&l.v)
}

// Load returns a copy of the current value.
func (l *RWLock[V]) Load() V {
	l.l.RLock()
	defer l.l.RUnlock()
	return l.v
}
