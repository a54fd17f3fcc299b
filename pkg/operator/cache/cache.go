// Package cache stores the latest known state of every primary resource a
// controller manages, together with the related resources it owns.
package cache

import (
	"sync"

	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/giantswarm/kopkit/pkg/names"
)

// UpdateFunc computes the next WorkItem from the current one. It must be
// pure: it runs while the cache lock is held.
type UpdateFunc[T client.Object] func(WorkItem[T]) WorkItem[T]

// Cache maps resource identities to WorkItems. Items are created on first
// update and never evicted, even when they become empty.
type Cache[T client.Object] struct {
	mu    sync.Mutex
	items map[names.NamespacedName]WorkItem[T]
}

// New returns an empty cache.
func New[T client.Object]() *Cache[T] {
	return &Cache[T]{items: make(map[names.NamespacedName]WorkItem[T])}
}

// Update atomically replaces the item for key with update(current) and
// returns the stored result. A missing item starts out empty.
func (c *Cache[T]) Update(key names.NamespacedName, update UpdateFunc[T]) WorkItem[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := update(c.items[key])
	c.items[key] = next
	return next
}

// TryGet returns the item for key, if any.
func (c *Cache[T]) TryGet(key names.NamespacedName) (WorkItem[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	return item, ok
}

// Len returns the number of stored items.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
