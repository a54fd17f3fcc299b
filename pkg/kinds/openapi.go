package kinds

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"k8s.io/kube-openapi/pkg/validation/spec"

	"github.com/giantswarm/kopkit/pkg/logging"
)

const (
	extPatchStrategy      = "x-kubernetes-patch-strategy"
	extPatchMergeKey      = "x-kubernetes-patch-merge-key"
	extGroupVersionKind   = "x-kubernetes-group-version-kind"
	extIntOrString        = "x-kubernetes-int-or-string"
	extPreserveUnknown    = "x-kubernetes-preserve-unknown-fields"
	definitionsRefPrefix  = "#/definitions/"
	providerLogSubsystem  = "KindProvider"
	patchStrategyMergeTag = "merge"
)

// DocumentLoader loads an OpenAPI v2 document.
type DocumentLoader func(ctx context.Context) (*spec.Swagger, error)

// OpenAPIProvider resolves kinds from the definitions of an OpenAPI v2
// document. The document is loaded on first use; resolved kinds are cached
// for the lifetime of the provider.
type OpenAPIProvider struct {
	load DocumentLoader

	loadMu      sync.Mutex
	loaded      bool
	definitions spec.Definitions
	index       map[kindKey]string

	mu    sync.Mutex
	kinds map[kindKey]*ResourceKind
}

// NewOpenAPIProvider returns a provider backed by load.
func NewOpenAPIProvider(load DocumentLoader) *OpenAPIProvider {
	return &OpenAPIProvider{
		load:  load,
		kinds: make(map[kindKey]*ResourceKind),
	}
}

// GetResourceKind implements Provider.
func (p *OpenAPIProvider) GetResourceKind(ctx context.Context, apiVersion, kind string) (*ResourceKind, error) {
	key := kindKey{apiVersion: apiVersion, kind: kind}

	p.mu.Lock()
	cached, ok := p.kinds[key]
	p.mu.Unlock()
	if ok {
		return cached, nil
	}

	definitions, index, err := p.document(ctx)
	if err != nil {
		return nil, err
	}

	name, ok := index[key]
	if !ok {
		return nil, nil
	}

	b := &openAPIBinder{
		apiVersion:  apiVersion,
		kind:        kind,
		definitions: definitions,
		elements:    make(map[string]*Element),
	}
	root, err := b.bindRef(name, name)
	if err != nil {
		return nil, err
	}
	rk := NewResourceKind(apiVersion, kind, root)

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.kinds[key]; ok {
		return existing, nil
	}
	p.kinds[key] = rk
	logging.Debug(providerLogSubsystem, "Bound %s.%s from definition %s (%d shared definitions)", kind, apiVersion, name, len(b.elements))
	return rk, nil
}

// Kinds lists every (apiVersion, kind) declared by the document.
func (p *OpenAPIProvider) Kinds(ctx context.Context) ([][2]string, error) {
	_, index, err := p.document(ctx)
	if err != nil {
		return nil, err
	}
	out := make([][2]string, 0, len(index))
	for key := range index {
		out = append(out, [2]string{key.apiVersion, key.kind})
	}
	return out, nil
}

func (p *OpenAPIProvider) document(ctx context.Context) (spec.Definitions, map[kindKey]string, error) {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	if p.loaded {
		return p.definitions, p.index, nil
	}

	doc, err := p.load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}
	if doc == nil {
		return nil, nil, fmt.Errorf("failed to load OpenAPI document: loader returned no document")
	}

	p.definitions = doc.Definitions
	p.index = indexDefinitions(doc.Definitions)
	p.loaded = true
	logging.Info(providerLogSubsystem, "Loaded OpenAPI document with %d definitions and %d kinds", len(p.definitions), len(p.index))
	return p.definitions, p.index, nil
}

// indexDefinitions maps the first group-version-kind of every definition to
// the definition name.
func indexDefinitions(definitions spec.Definitions) map[kindKey]string {
	index := make(map[kindKey]string)
	for name, def := range definitions {
		raw, ok := def.Extensions[extGroupVersionKind]
		if !ok {
			continue
		}
		list, ok := raw.([]interface{})
		if !ok || len(list) == 0 {
			continue
		}
		gvk, ok := list[0].(map[string]interface{})
		if !ok {
			continue
		}
		group, _ := gvk["group"].(string)
		version, _ := gvk["version"].(string)
		kind, _ := gvk["kind"].(string)
		if version == "" || kind == "" {
			continue
		}
		index[kindKey{apiVersion: apiVersionFor(group, version), kind: kind}] = name
	}
	return index
}

type openAPIBinder struct {
	apiVersion  string
	kind        string
	definitions spec.Definitions
	// elements is keyed by definition name so every definition binds once.
	elements map[string]*Element
}

func (b *openAPIBinder) unsupported(location, reason string) error {
	return &UnsupportedSchemaError{APIVersion: b.apiVersion, Kind: b.kind, Location: location, Reason: reason}
}

func (b *openAPIBinder) bindRef(location, name string) (*Element, error) {
	if e, ok := b.elements[name]; ok {
		return e, nil
	}
	def, ok := b.definitions[name]
	if !ok {
		return nil, b.unsupported(location, "unresolved reference "+name)
	}
	return b.bindSchema(location, name, &def)
}

func (b *openAPIBinder) bind(location string, s *spec.Schema) (*Element, error) {
	if s == nil {
		return unknownElement, nil
	}
	if ref := s.Ref.String(); ref != "" {
		if !strings.HasPrefix(ref, definitionsRefPrefix) {
			return nil, b.unsupported(location, "non-local reference "+ref)
		}
		return b.bindRef(location, strings.TrimPrefix(ref, definitionsRefPrefix))
	}
	if len(s.AllOf) == 1 && len(s.Properties) == 0 && len(s.Type) == 0 {
		return b.bind(location, &s.AllOf[0])
	}
	return b.bindSchema(location, "", s)
}

// bindSchema classifies s and binds its children. When name is set, the new
// element is registered before the children are visited so that recursive
// definitions resolve to it.
func (b *openAPIBinder) bindSchema(location, name string, s *spec.Schema) (*Element, error) {
	register := func(e *Element) {
		if name != "" {
			b.elements[name] = e
		}
	}

	switch {
	case isOpenAPIPrimitive(s):
		register(primitiveElement)
		return primitiveElement, nil

	case s.Type.Contains("array") || s.Items != nil:
		item, err := b.itemSchema(location, s)
		if err != nil {
			return nil, err
		}
		merge := hasPatchStrategy(s, patchStrategyMergeTag)
		var e *Element
		if item != nil && isOpenAPIPrimitive(item) {
			if merge {
				e = &Element{strategy: MergeListOfPrimitive}
			} else {
				e = &Element{strategy: ReplaceListOfPrimitive}
			}
		} else if key, ok := extString(s.Extensions, extPatchMergeKey); merge && ok && key != "" {
			e = &Element{strategy: MergeListOfObject, mergeKey: key}
		} else {
			e = &Element{strategy: ReplaceListOfObject}
		}
		register(e)
		itemElement, err := b.bindItems(location+"/items", s)
		if err != nil {
			return nil, err
		}
		e.collection = itemElement
		return e, nil

	case s.AdditionalProperties != nil && (s.AdditionalProperties.Schema != nil || s.AdditionalProperties.Allows) && len(s.Properties) == 0:
		e := &Element{strategy: MergeMap}
		register(e)
		value, err := b.bind(location+"/additionalProperties", s.AdditionalProperties.Schema)
		if err != nil {
			return nil, err
		}
		e.collection = value
		return e, nil

	case len(s.Properties) > 0 || s.Type.Contains("object"):
		e := &Element{strategy: MergeObject, properties: make(map[string]*Element, len(s.Properties))}
		register(e)
		for prop, propSchema := range s.Properties {
			propSchema := propSchema
			child, err := b.bind(location+"/"+prop, &propSchema)
			if err != nil {
				return nil, err
			}
			e.properties[prop] = child
		}
		return e, nil

	case isOpenAPIUnstructured(s):
		register(unknownElement)
		return unknownElement, nil
	}

	return nil, b.unsupported(location, fmt.Sprintf("unrecognised schema type %v", []string(s.Type)))
}

// itemSchema returns the resolved item schema of an array, or nil.
func (b *openAPIBinder) itemSchema(location string, s *spec.Schema) (*spec.Schema, error) {
	if s.Items == nil || s.Items.Schema == nil {
		return nil, nil
	}
	item := s.Items.Schema
	for depth := 0; item.Ref.String() != ""; depth++ {
		ref := item.Ref.String()
		def, ok := b.definitions[strings.TrimPrefix(ref, definitionsRefPrefix)]
		if !ok || depth > len(b.definitions) {
			return nil, b.unsupported(location+"/items", "unresolved reference "+ref)
		}
		item = &def
	}
	return item, nil
}

func (b *openAPIBinder) bindItems(location string, s *spec.Schema) (*Element, error) {
	if s.Items == nil {
		return unknownElement, nil
	}
	if len(s.Items.Schemas) > 0 {
		return nil, b.unsupported(location, "tuple arrays")
	}
	return b.bind(location, s.Items.Schema)
}

func isOpenAPIPrimitive(s *spec.Schema) bool {
	if v, ok := s.Extensions[extIntOrString].(bool); ok && v {
		return true
	}
	for _, t := range []string{"string", "integer", "number", "boolean"} {
		if s.Type.Contains(t) {
			return true
		}
	}
	return false
}

// isOpenAPIUnstructured reports schemas that describe arbitrary JSON.
func isOpenAPIUnstructured(s *spec.Schema) bool {
	if v, ok := s.Extensions[extPreserveUnknown].(bool); ok && v {
		return true
	}
	return len(s.Type) == 0 && len(s.Properties) == 0 && s.Items == nil && s.AdditionalProperties == nil &&
		len(s.AllOf) == 0 && len(s.AnyOf) == 0 && len(s.OneOf) == 0
}

func hasPatchStrategy(s *spec.Schema, value string) bool {
	strategy, ok := extString(s.Extensions, extPatchStrategy)
	if !ok {
		return false
	}
	for _, part := range strings.Split(strategy, ",") {
		if strings.TrimSpace(part) == value {
			return true
		}
	}
	return false
}

func extString(ext spec.Extensions, key string) (string, bool) {
	if ext == nil {
		return "", false
	}
	for k, v := range ext {
		if strings.EqualFold(k, key) {
			s, ok := v.(string)
			return s, ok
		}
	}
	return "", false
}
