package cache

import (
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/giantswarm/kopkit/pkg/names"
)

// WorkItem is an immutable snapshot of a primary resource and the related
// resources it owns. Every With/Without method returns a new WorkItem and
// leaves the receiver unchanged.
type WorkItem[T client.Object] struct {
	resource    T
	hasResource bool
	related     map[names.GroupKindNamespacedName]client.Object
}

// Resource returns the primary resource and whether it is present.
func (w WorkItem[T]) Resource() (T, bool) {
	return w.resource, w.hasResource
}

// Related returns a copy of the related resources.
func (w WorkItem[T]) Related() map[names.GroupKindNamespacedName]client.Object {
	out := make(map[names.GroupKindNamespacedName]client.Object, len(w.related))
	for k, v := range w.related {
		out[k] = v
	}
	return out
}

// RelatedLen returns the number of related resources.
func (w WorkItem[T]) RelatedLen() int {
	return len(w.related)
}

// IsEmpty reports whether the item has neither a resource nor related resources.
func (w WorkItem[T]) IsEmpty() bool {
	return !w.hasResource && len(w.related) == 0
}

// WithResource returns a copy holding resource.
func (w WorkItem[T]) WithResource(resource T) WorkItem[T] {
	w.resource = resource
	w.hasResource = true
	return w
}

// WithoutResource returns a copy without a primary resource.
func (w WorkItem[T]) WithoutResource() WorkItem[T] {
	var zero T
	w.resource = zero
	w.hasResource = false
	return w
}

// WithRelated returns a copy with obj stored under key.
func (w WorkItem[T]) WithRelated(key names.GroupKindNamespacedName, obj client.Object) WorkItem[T] {
	related := make(map[names.GroupKindNamespacedName]client.Object, len(w.related)+1)
	for k, v := range w.related {
		related[k] = v
	}
	related[key] = obj
	w.related = related
	return w
}

// WithoutRelated returns a copy without key.
func (w WorkItem[T]) WithoutRelated(key names.GroupKindNamespacedName) WorkItem[T] {
	if _, ok := w.related[key]; !ok {
		return w
	}
	related := make(map[names.GroupKindNamespacedName]client.Object, len(w.related))
	for k, v := range w.related {
		if k != key {
			related[k] = v
		}
	}
	w.related = related
	return w
}
