package kinds

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

// ErrUnsupportedSchema is matched by errors.Is for every UnsupportedSchemaError.
var ErrUnsupportedSchema = errors.New("unsupported schema")

// UnsupportedSchemaError reports a schema shape that cannot be bound to an Element.
type UnsupportedSchemaError struct {
	APIVersion string
	Kind       string
	Location   string
	Reason     string
}

func (e *UnsupportedSchemaError) Error() string {
	return fmt.Sprintf("%s.%s schema at %q is not supported: %s", e.Kind, e.APIVersion, e.Location, e.Reason)
}

// Is makes errors.Is(err, ErrUnsupportedSchema) true.
func (e *UnsupportedSchemaError) Is(target error) bool {
	return target == ErrUnsupportedSchema
}

// ResourceKind pairs an apiVersion and kind with the root of its schema tree.
type ResourceKind struct {
	apiVersion string
	kind       string
	schema     *Element
}

// NewResourceKind returns a ResourceKind with the given schema root.
func NewResourceKind(apiVersion, kind string, root *Element) *ResourceKind {
	if root == nil {
		root = unknownElement
	}
	return &ResourceKind{apiVersion: apiVersion, kind: kind, schema: root}
}

// APIVersion returns the apiVersion, or "" for a nil kind.
func (k *ResourceKind) APIVersion() string {
	if k == nil {
		return ""
	}
	return k.apiVersion
}

// Kind returns the kind name, or "" for a nil kind.
func (k *ResourceKind) Kind() string {
	if k == nil {
		return ""
	}
	return k.kind
}

// Schema returns the root element; a nil kind yields the Unknown element.
func (k *ResourceKind) Schema() *Element {
	if k == nil {
		return unknownElement
	}
	return k.schema
}

// GroupVersionKind parses the apiVersion into a schema.GroupVersionKind.
func (k *ResourceKind) GroupVersionKind() schema.GroupVersionKind {
	gv, err := schema.ParseGroupVersion(k.APIVersion())
	if err != nil {
		return schema.GroupVersionKind{Kind: k.Kind()}
	}
	return gv.WithKind(k.Kind())
}

// Provider resolves resource kinds. A kind the provider does not know yields
// (nil, nil).
type Provider interface {
	GetResourceKind(ctx context.Context, apiVersion, kind string) (*ResourceKind, error)
}

// Lister is implemented by providers that can enumerate their kinds.
type Lister interface {
	Kinds(ctx context.Context) ([][2]string, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, apiVersion, kind string) (*ResourceKind, error)

// GetResourceKind calls f.
func (f ProviderFunc) GetResourceKind(ctx context.Context, apiVersion, kind string) (*ResourceKind, error) {
	return f(ctx, apiVersion, kind)
}

type chain []Provider

// Chain returns a Provider that asks each provider in turn and returns the
// first kind found. An error from any provider stops the search.
func Chain(providers ...Provider) Provider {
	flat := make(chain, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			flat = append(flat, p)
		}
	}
	return flat
}

func (c chain) GetResourceKind(ctx context.Context, apiVersion, kind string) (*ResourceKind, error) {
	for _, p := range c {
		rk, err := p.GetResourceKind(ctx, apiVersion, kind)
		if err != nil {
			return nil, err
		}
		if rk != nil {
			return rk, nil
		}
	}
	return nil, nil
}

// ResolveOrUnknown returns the kind known to p, or a kind with an Unknown
// schema root when p does not know it. A nil provider always yields Unknown.
func ResolveOrUnknown(ctx context.Context, p Provider, apiVersion, kind string) (*ResourceKind, error) {
	if p != nil {
		rk, err := p.GetResourceKind(ctx, apiVersion, kind)
		if err != nil {
			return nil, err
		}
		if rk != nil {
			return rk, nil
		}
	}
	return NewResourceKind(apiVersion, kind, unknownElement), nil
}

// apiVersionFor joins a group and version the way Kubernetes apiVersion fields do.
func apiVersionFor(group, version string) string {
	if group == "" {
		return version
	}
	return group + "/" + version
}

type kindKey struct {
	apiVersion string
	kind       string
}
