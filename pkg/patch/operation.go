package patch

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// OperationType is the "op" member of a patch operation.
type OperationType string

const (
	OperationAdd     OperationType = "add"
	OperationRemove  OperationType = "remove"
	OperationReplace OperationType = "replace"
)

// Operation is one JSON patch operation.
type Operation struct {
	Op    OperationType `json:"op"`
	Path  string        `json:"path"`
	Value interface{}   `json:"value,omitempty"`
}

// MarshalJSON writes the value member for every operation except remove,
// including explicit nulls.
func (o Operation) MarshalJSON() ([]byte, error) {
	if o.Op == OperationRemove {
		return json.Marshal(struct {
			Op   OperationType `json:"op"`
			Path string        `json:"path"`
		}{o.Op, o.Path})
	}
	return json.Marshal(struct {
		Op    OperationType `json:"op"`
		Path  string        `json:"path"`
		Value interface{}   `json:"value"`
	}{o.Op, o.Path, o.Value})
}

func (o Operation) String() string {
	if o.Op == OperationRemove {
		return fmt.Sprintf("%s %s", o.Op, o.Path)
	}
	value, err := json.Marshal(o.Value)
	if err != nil {
		return fmt.Sprintf("%s %s %v", o.Op, o.Path, o.Value)
	}
	return fmt.Sprintf("%s %s %s", o.Op, o.Path, value)
}

// Patch is an ordered list of operations.
type Patch []Operation

// IsEmpty reports whether the patch has no operations.
func (p Patch) IsEmpty() bool {
	return len(p) == 0
}

// MarshalJSON encodes an empty or nil patch as [].
func (p Patch) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal([]Operation(p))
}

// Apply applies the patch to a JSON document and returns the patched document.
func (p Patch) Apply(doc []byte) ([]byte, error) {
	if p.IsEmpty() {
		return doc, nil
	}
	raw, err := p.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode patch: %w", err)
	}
	decoded, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode patch: %w", err)
	}
	out, err := decoded.Apply(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to apply patch: %w", err)
	}
	return out, nil
}
