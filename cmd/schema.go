package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	utiljson "k8s.io/apimachinery/pkg/util/json"
	"k8s.io/client-go/discovery"
	"sigs.k8s.io/yaml"

	"github.com/giantswarm/kopkit/internal/config"
	"github.com/giantswarm/kopkit/pkg/informer"
	"github.com/giantswarm/kopkit/pkg/kinds"
)

// schemaFlags are the schema source flags shared by several commands.
type schemaFlags struct {
	openapi     string
	crds        []string
	fromCluster bool
}

func (f *schemaFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.openapi, "openapi", "", "OpenAPI v2 document (JSON or YAML) providing merge strategies")
	cmd.Flags().StringSliceVar(&f.crds, "crd", nil, "File with CustomResourceDefinitions providing merge strategies (repeatable)")
	cmd.Flags().BoolVar(&f.fromCluster, "from-cluster", false, "Fetch the OpenAPI v2 document from the current cluster")
}

// resolve merges the flags over the configured schema sources.
func (f *schemaFlags) resolve(cmd *cobra.Command, base config.SchemaConfig) config.SchemaConfig {
	if cmd.Flags().Changed("openapi") {
		base.OpenAPI = f.openapi
	}
	if cmd.Flags().Changed("crd") {
		base.CRDs = f.crds
	}
	if cmd.Flags().Changed("from-cluster") {
		base.FromCluster = f.fromCluster
	}
	return base
}

// buildProvider assembles the providers named by s. CRDs take precedence over
// OpenAPI documents. The listers enumerate the kinds each source knows.
func buildProvider(s config.SchemaConfig) (kinds.Provider, []kinds.Lister, error) {
	var (
		providers []kinds.Provider
		listers   []kinds.Lister
	)

	if len(s.CRDs) > 0 {
		var crds []*apiextensionsv1.CustomResourceDefinition
		for _, path := range s.CRDs {
			loaded, err := kinds.LoadCRDFile(path)
			if err != nil {
				return nil, nil, err
			}
			crds = append(crds, loaded...)
		}
		p := kinds.NewCRDProvider(crds...)
		providers = append(providers, p)
		listers = append(listers, p)
	}

	if s.OpenAPI != "" {
		p := kinds.NewOpenAPIProvider(kinds.FromFile(s.OpenAPI))
		providers = append(providers, p)
		listers = append(listers, p)
	}

	if s.FromCluster {
		restConfig, err := informer.GetRestConfig()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get Kubernetes config: %w", err)
		}
		client, err := discovery.NewDiscoveryClientForConfig(restConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create discovery client: %w", err)
		}
		p := kinds.NewOpenAPIProvider(kinds.FromCluster(client))
		providers = append(providers, p)
		listers = append(listers, p)
	}

	return kinds.Chain(providers...), listers, nil
}

// readDocument decodes a JSON or YAML document. An empty path yields nil and
// "-" reads stdin.
func readDocument(cmd *cobra.Command, path string) (interface{}, error) {
	if path == "" {
		return nil, nil
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	var doc interface{}
	if err := utiljson.Unmarshal(jsonData, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return doc, nil
}
