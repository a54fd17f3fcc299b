// Package kinds resolves resource kinds to trees of schema elements that
// describe how each field of a resource is merged.
//
// An Element carries a MergeStrategy, an optional merge key for keyed lists
// of objects, named child elements for object properties and a single
// collection element for list items and map values. Trees are built once per
// kind and shared read-only afterwards; a schema definition that is referenced
// more than once, or that references itself, binds to a single Element.
//
// Providers resolve (apiVersion, kind) pairs to a ResourceKind:
//
//   - OpenAPIProvider binds Kubernetes OpenAPI v2 (swagger) definitions using
//     the x-kubernetes-patch-strategy and x-kubernetes-patch-merge-key
//     extensions.
//   - CRDProvider binds apiextensions.k8s.io/v1 CustomResourceDefinition
//     schemas using the x-kubernetes-list-type family of extensions.
//   - Chain queries several providers in order.
//
// A kind that no provider knows about is not an error. Callers fall back to
// the Unknown element, which infers merge behaviour from the values.
package kinds
