package patch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	"github.com/giantswarm/kopkit/pkg/kinds"
)

type fixtureKind struct {
	APIVersion string `json:"apiVersion"`
	Kind       string `json:"kind"`
}

type fixture struct {
	ResourceKind *fixtureKind `json:"resourceKind"`
	Apply        interface{}  `json:"apply"`
	LastApplied  interface{}  `json:"lastApplied"`
	Live         interface{}  `json:"live"`
	Patch        []Operation  `json:"patch"`
}

func (f fixture) hasRemove() bool {
	for _, op := range f.Patch {
		if op.Op == OperationRemove {
			return true
		}
	}
	return false
}

func loadFixtures(t *testing.T) map[string]fixture {
	t.Helper()

	paths, err := filepath.Glob(filepath.Join("testdata", "cases", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	fixtures := make(map[string]fixture, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var f fixture
		require.NoError(t, yaml.Unmarshal(data, &f), path)
		fixtures[strings.TrimSuffix(filepath.Base(path), ".yaml")] = f
	}
	return fixtures
}

func TestFixtures(t *testing.T) {
	provider := kinds.NewOpenAPIProvider(kinds.FromFile(filepath.Join("testdata", "swagger.yaml")))

	for name, f := range loadFixtures(t) {
		t.Run(name, func(t *testing.T) {
			var kind *kinds.ResourceKind
			if f.ResourceKind != nil {
				var err error
				kind, err = provider.GetResourceKind(context.Background(), f.ResourceKind.APIVersion, f.ResourceKind.Kind)
				require.NoError(t, err)
				require.NotNil(t, kind, "fixture kind must exist in swagger.yaml")
			}

			t.Run("three-way", func(t *testing.T) {
				got, err := CreateJSONPatch(Params{Kind: kind, Apply: f.Apply, LastApplied: f.LastApplied, Live: f.Live})
				require.NoError(t, err)
				assertSamePatch(t, f.Patch, got)
			})

			if f.hasRemove() {
				return
			}

			t.Run("apply-live-only", func(t *testing.T) {
				got, err := CreateJSONPatch(Params{Kind: kind, Apply: f.Apply, Live: f.Live})
				require.NoError(t, err)
				assertSamePatch(t, f.Patch, got)
			})
		})
	}
}

func assertSamePatch(t *testing.T, want, got Patch) {
	t.Helper()
	if len(want) == 0 {
		assert.Empty(t, got)
		return
	}
	assert.ElementsMatch(t, want, got)
}
