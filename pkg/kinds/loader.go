package kinds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"k8s.io/client-go/discovery"
	"k8s.io/kube-openapi/pkg/validation/spec"
	"sigs.k8s.io/yaml"
)

// FromBytes returns a loader that decodes data as a JSON or YAML OpenAPI v2 document.
func FromBytes(data []byte) DocumentLoader {
	return func(context.Context) (*spec.Swagger, error) {
		return decodeSwagger(data)
	}
}

// FromFile returns a loader that reads a JSON or YAML OpenAPI v2 document from path.
func FromFile(path string) DocumentLoader {
	return func(context.Context) (*spec.Swagger, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		doc, err := decodeSwagger(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		return doc, nil
	}
}

// FromCluster returns a loader that fetches /openapi/v2 from the API server
// behind client.
func FromCluster(client discovery.DiscoveryInterface) DocumentLoader {
	return func(ctx context.Context) (*spec.Swagger, error) {
		data, err := client.RESTClient().Get().
			AbsPath("/openapi/v2").
			SetHeader("Accept", "application/json").
			Do(ctx).
			Raw()
		if err != nil {
			return nil, fmt.Errorf("failed to fetch /openapi/v2: %w", err)
		}
		return decodeSwagger(data)
	}
}

func decodeSwagger(data []byte) (*spec.Swagger, error) {
	jsonData := bytes.TrimSpace(data)
	if !bytes.HasPrefix(jsonData, []byte("{")) {
		var err error
		if jsonData, err = yaml.YAMLToJSON(data); err != nil {
			return nil, err
		}
	}
	doc := &spec.Swagger{}
	if err := json.Unmarshal(jsonData, doc); err != nil {
		return nil, err
	}
	return doc, nil
}
