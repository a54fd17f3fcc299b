package kinds

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRDProvider(t *testing.T) {
	crds, err := LoadCRDFile("testdata/crd.yaml")
	require.NoError(t, err)
	require.Len(t, crds, 1, "non-CRD documents are skipped")

	p := NewCRDProvider(crds...)

	rk, err := p.GetResourceKind(context.Background(), "example.com/v1alpha1", "Widget")
	require.NoError(t, err)
	require.NotNil(t, rk)

	spec := rk.Schema().Property("spec")

	tests := []struct {
		property string
		strategy MergeStrategy
		mergeKey string
	}{
		{"replicas", ReplacePrimitive, ""},
		{"size", ReplacePrimitive, ""},
		{"tags", MergeListOfPrimitive, ""},
		{"args", ReplaceListOfPrimitive, ""},
		{"ports", MergeListOfObject, "name"},
		{"rules", ReplaceListOfObject, ""},
		{"labels", MergeMap, ""},
		{"config", Unknown, ""},
	}
	for _, tt := range tests {
		t.Run(tt.property, func(t *testing.T) {
			e := spec.Property(tt.property)
			assert.Equal(t, tt.strategy, e.MergeStrategy())
			assert.Equal(t, tt.mergeKey, e.MergeKey())
		})
	}

	assert.Equal(t, MergeObject, rk.Schema().Property("metadata").MergeStrategy())

	again, err := p.GetResourceKind(context.Background(), "example.com/v1alpha1", "Widget")
	require.NoError(t, err)
	assert.Same(t, rk, again)

	listed, err := p.Kinds(context.Background())
	require.NoError(t, err)
	assert.Contains(t, listed, [2]string{"example.com/v1alpha1", "Widget"})
}

func TestCRDProvider_UnknownKind(t *testing.T) {
	p := NewCRDProvider()
	rk, err := p.GetResourceKind(context.Background(), "example.com/v1alpha1", "Widget")
	require.NoError(t, err)
	assert.Nil(t, rk)
}

func TestChain(t *testing.T) {
	crds, err := LoadCRDFile("testdata/crd.yaml")
	require.NoError(t, err)

	p := Chain(NewOpenAPIProvider(FromFile("testdata/swagger.yaml")), nil, NewCRDProvider(crds...))

	pod, err := p.GetResourceKind(context.Background(), "v1", "Pod")
	require.NoError(t, err)
	assert.NotNil(t, pod)

	widget, err := p.GetResourceKind(context.Background(), "example.com/v1alpha1", "Widget")
	require.NoError(t, err)
	assert.NotNil(t, widget)

	missing, err := p.GetResourceKind(context.Background(), "v1", "Nothing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
