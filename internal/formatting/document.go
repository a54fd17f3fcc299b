package formatting

import (
	"bytes"
	"encoding/json"
	"io"

	"sigs.k8s.io/yaml"
)

// WriteDocument writes the JSON encoded data to w in the given format. JSON
// output is indented and ends with a newline.
func WriteDocument(w io.Writer, data []byte, format OutputFormat) error {
	if format == FormatYAML {
		y, err := yaml.JSONToYAML(data)
		if err != nil {
			return err
		}
		_, err = w.Write(y)
		return err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
