package kinds

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
)

const (
	listTypeMap    = "map"
	listTypeSet    = "set"
	listTypeAtomic = "atomic"
)

// CRDProvider resolves the kinds declared by CustomResourceDefinitions.
type CRDProvider struct {
	schemas map[kindKey]*apiextensionsv1.JSONSchemaProps

	mu    sync.Mutex
	kinds map[kindKey]*ResourceKind
}

// NewCRDProvider indexes every served version of crds.
func NewCRDProvider(crds ...*apiextensionsv1.CustomResourceDefinition) *CRDProvider {
	p := &CRDProvider{
		schemas: make(map[kindKey]*apiextensionsv1.JSONSchemaProps),
		kinds:   make(map[kindKey]*ResourceKind),
	}
	for _, crd := range crds {
		if crd == nil {
			continue
		}
		for i := range crd.Spec.Versions {
			v := &crd.Spec.Versions[i]
			key := kindKey{apiVersion: apiVersionFor(crd.Spec.Group, v.Name), kind: crd.Spec.Names.Kind}
			var schema *apiextensionsv1.JSONSchemaProps
			if v.Schema != nil {
				schema = v.Schema.OpenAPIV3Schema
			}
			p.schemas[key] = schema
		}
	}
	return p
}

// LoadCRDFile decodes every CustomResourceDefinition in a (multi-document)
// YAML or JSON file.
func LoadCRDFile(path string) ([]*apiextensionsv1.CustomResourceDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return DecodeCRDs(data)
}

// DecodeCRDs decodes every CustomResourceDefinition in data. Documents of
// other kinds are skipped.
func DecodeCRDs(data []byte) ([]*apiextensionsv1.CustomResourceDefinition, error) {
	decoder := utilyaml.NewYAMLOrJSONDecoder(bytes.NewReader(data), 4096)
	var crds []*apiextensionsv1.CustomResourceDefinition
	for {
		crd := &apiextensionsv1.CustomResourceDefinition{}
		if err := decoder.Decode(crd); err != nil {
			if errors.Is(err, io.EOF) {
				return crds, nil
			}
			return nil, fmt.Errorf("failed to decode CustomResourceDefinition: %w", err)
		}
		if crd.Kind != "CustomResourceDefinition" {
			continue
		}
		crds = append(crds, crd)
	}
}

// GetResourceKind implements Provider.
func (p *CRDProvider) GetResourceKind(_ context.Context, apiVersion, kind string) (*ResourceKind, error) {
	key := kindKey{apiVersion: apiVersion, kind: kind}

	p.mu.Lock()
	defer p.mu.Unlock()

	if rk, ok := p.kinds[key]; ok {
		return rk, nil
	}
	schema, ok := p.schemas[key]
	if !ok {
		return nil, nil
	}

	b := crdBinder{apiVersion: apiVersion, kind: kind}
	root, err := b.bind("", schema)
	if err != nil {
		return nil, err
	}
	rk := NewResourceKind(apiVersion, kind, root)
	p.kinds[key] = rk
	return rk, nil
}

// Kinds lists every (apiVersion, kind) declared by the CRDs.
func (p *CRDProvider) Kinds(context.Context) ([][2]string, error) {
	out := make([][2]string, 0, len(p.schemas))
	for key := range p.schemas {
		out = append(out, [2]string{key.apiVersion, key.kind})
	}
	return out, nil
}

type crdBinder struct {
	apiVersion string
	kind       string
}

func (b crdBinder) bind(location string, s *apiextensionsv1.JSONSchemaProps) (*Element, error) {
	if s == nil {
		return unknownElement, nil
	}

	switch {
	case s.XIntOrString || isCRDPrimitive(s):
		return primitiveElement, nil

	case s.Type == "array":
		var itemSchema *apiextensionsv1.JSONSchemaProps
		if s.Items != nil {
			if len(s.Items.JSONSchemas) > 0 {
				return nil, &UnsupportedSchemaError{APIVersion: b.apiVersion, Kind: b.kind, Location: location + "/items", Reason: "tuple arrays"}
			}
			itemSchema = s.Items.Schema
		}
		item, err := b.bind(location+"/items", itemSchema)
		if err != nil {
			return nil, err
		}
		primitive := itemSchema != nil && (itemSchema.XIntOrString || isCRDPrimitive(itemSchema))

		listType := listTypeAtomic
		if s.XListType != nil {
			listType = *s.XListType
		}
		switch {
		case listType == listTypeSet && primitive:
			return &Element{strategy: MergeListOfPrimitive, collection: item}, nil
		case listType == listTypeMap && len(s.XListMapKeys) == 1:
			return &Element{strategy: MergeListOfObject, mergeKey: s.XListMapKeys[0], collection: item}, nil
		case primitive:
			return &Element{strategy: ReplaceListOfPrimitive, collection: item}, nil
		default:
			return &Element{strategy: ReplaceListOfObject, collection: item}, nil
		}

	case s.AdditionalProperties != nil && len(s.Properties) == 0:
		value, err := b.bind(location+"/additionalProperties", s.AdditionalProperties.Schema)
		if err != nil {
			return nil, err
		}
		return &Element{strategy: MergeMap, collection: value}, nil

	case len(s.Properties) > 0:
		e := &Element{strategy: MergeObject, properties: make(map[string]*Element, len(s.Properties))}
		for name := range s.Properties {
			prop := s.Properties[name]
			child, err := b.bind(location+"/"+name, &prop)
			if err != nil {
				return nil, err
			}
			e.properties[name] = child
		}
		return e, nil

	case s.XPreserveUnknownFields != nil && *s.XPreserveUnknownFields:
		return unknownElement, nil

	case s.Type == "object":
		return &Element{strategy: MergeObject, properties: map[string]*Element{}}, nil

	case s.Type == "":
		return unknownElement, nil
	}

	return nil, &UnsupportedSchemaError{APIVersion: b.apiVersion, Kind: b.kind, Location: location, Reason: "unrecognised schema type " + s.Type}
}

func isCRDPrimitive(s *apiextensionsv1.JSONSchemaProps) bool {
	switch s.Type {
	case "string", "integer", "number", "boolean":
		return true
	}
	return false
}
