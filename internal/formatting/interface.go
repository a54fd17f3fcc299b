// Package formatting renders command output: documents as JSON or YAML and
// listings as tables.
package formatting

import (
	"fmt"
	"strings"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatJSON OutputFormat = "json" // Indented JSON output
	FormatYAML OutputFormat = "yaml" // YAML output
)

// ParseOutputFormat validates a user supplied format name.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}
