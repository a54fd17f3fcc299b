package config

import (
	"github.com/giantswarm/kopkit/pkg/operator"
)

// Config is the top-level configuration structure for kopkit.
type Config struct {
	Operator operator.Options `yaml:"operator"`
	Schema   SchemaConfig     `yaml:"schema,omitempty"`
	LogLevel string           `yaml:"logLevel,omitempty"` // debug, info, warn or error (default: info)
	Debug    bool             `yaml:"debug,omitempty"`    // Shorthand for logLevel: debug
}

// SchemaConfig names the schema sources used to pick merge strategies.
type SchemaConfig struct {
	OpenAPI     string   `yaml:"openapi,omitempty"`     // Swagger 2.0 document, JSON or YAML
	CRDs        []string `yaml:"crds,omitempty"`        // Files holding CustomResourceDefinitions
	FromCluster bool     `yaml:"fromCluster,omitempty"` // Fetch /openapi/v2 from the current cluster
}

// IsEmpty reports whether no schema source is configured.
func (s SchemaConfig) IsEmpty() bool {
	return s.OpenAPI == "" && len(s.CRDs) == 0 && !s.FromCluster
}
