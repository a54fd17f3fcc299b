// Package names defines the identities used to key cached resources.
package names

import (
	"fmt"

	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// NamespacedName identifies a primary resource within its kind.
type NamespacedName = types.NamespacedName

// FromObject returns the NamespacedName of obj.
func FromObject(obj client.Object) NamespacedName {
	return NamespacedName{Namespace: obj.GetNamespace(), Name: obj.GetName()}
}

// GroupKindNamespacedName identifies a resource across kinds. The version is
// deliberately excluded so that the same object served under two versions
// maps to a single key.
type GroupKindNamespacedName struct {
	Group     string
	Kind      string
	Namespace string
	Name      string
}

// NewGroupKindNamespacedName builds a key from a group kind and a namespaced name.
func NewGroupKindNamespacedName(gk schema.GroupKind, nn NamespacedName) GroupKindNamespacedName {
	return GroupKindNamespacedName{
		Group:     gk.Group,
		Kind:      gk.Kind,
		Namespace: nn.Namespace,
		Name:      nn.Name,
	}
}

// ForObject builds a key from obj using gvk for the group and kind.
func ForObject(gvk schema.GroupVersionKind, obj client.Object) GroupKindNamespacedName {
	return NewGroupKindNamespacedName(gvk.GroupKind(), FromObject(obj))
}

// GroupKind returns the group kind part of the key.
func (g GroupKindNamespacedName) GroupKind() schema.GroupKind {
	return schema.GroupKind{Group: g.Group, Kind: g.Kind}
}

// NamespacedName returns the namespace and name part of the key.
func (g GroupKindNamespacedName) NamespacedName() NamespacedName {
	return NamespacedName{Namespace: g.Namespace, Name: g.Name}
}

func (g GroupKindNamespacedName) String() string {
	gk := g.Kind
	if g.Group != "" {
		gk = g.Kind + "." + g.Group
	}
	if g.Namespace == "" {
		return fmt.Sprintf("%s/%s", gk, g.Name)
	}
	return fmt.Sprintf("%s/%s/%s", gk, g.Namespace, g.Name)
}
