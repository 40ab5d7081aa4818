package registry

import (
	"sync"
	"sync/atomic"
	"time"
)

// Version is one immutable generation of the registry contents.
type Version[T any] struct {
	// Number increases by one on every Load. The initial empty version is 0.
	Number uint64

	// LoadedAt is when this version became current. Zero for the initial version.
	LoadedAt time.Time

	// Items are the entries in load order.
	Items []T
}

// Len returns the number of items in the version.
func (v Version[T]) Len() int {
	return len(v.Items)
}

// Registry is an atomically swappable, ordered list of items.
//
// Load and Snapshot are safe for concurrent use. Snapshot never blocks on Load.
type Registry[T any] struct {
	current atomic.Pointer[Version[T]]

	// loadMu serialises writers so version numbers are strictly increasing.
	loadMu sync.Mutex
}

// New creates a [Registry] whose current version is empty.
func New[T any]() *Registry[T] {
	r := &Registry[T]{}
	r.current.Store(&Version[T]{})
	return r
}

// Load replaces the current version with items and returns the new version.
//
// The slice is copied, so callers may reuse it afterwards. A nil or empty
// slice installs an empty version rather than failing.
func (r *Registry[T]) Load(items []T) Version[T] {
	cp := make([]T, len(items))
	copy(cp, items)

	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	next := &Version[T]{
		Number:   r.current.Load().Number + 1,
		LoadedAt: time.Now(),
		Items:    cp,
	}
	r.current.Store(next)
	return *next
}

// Snapshot returns the version that is current at the time of the call.
//
// The returned Items slice is an independent copy; modifying it does not
// affect the registry.
func (r *Registry[T]) Snapshot() Version[T] {
	v := r.current.Load()
	items := make([]T, len(v.Items))
	copy(items, v.Items)
	return Version[T]{
		Number:   v.Number,
		LoadedAt: v.LoadedAt,
		Items:    items,
	}
}
