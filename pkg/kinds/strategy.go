package kinds

import "fmt"

// MergeStrategy selects the algorithm used to merge one node of a resource.
type MergeStrategy int

const (
	// Unknown infers the strategy from the shape of the applied value.
	Unknown MergeStrategy = iota
	// MergeObject merges an object property by property.
	MergeObject
	// ReplacePrimitive replaces a scalar when it differs.
	ReplacePrimitive
	// MergeMap merges a map with homogeneous values key by key.
	MergeMap
	// MergeListOfPrimitive merges an ordered list of scalars under partial ownership.
	MergeListOfPrimitive
	// ReplaceListOfPrimitive replaces a list of scalars when it differs.
	ReplaceListOfPrimitive
	// MergeListOfObject merges a list of objects matched by a merge key.
	MergeListOfObject
	// ReplaceListOfObject replaces a list of objects when it differs.
	ReplaceListOfObject
)

var strategyNames = map[MergeStrategy]string{
	Unknown:                "Unknown",
	MergeObject:            "MergeObject",
	ReplacePrimitive:       "ReplacePrimitive",
	MergeMap:               "MergeMap",
	MergeListOfPrimitive:   "MergeListOfPrimitive",
	ReplaceListOfPrimitive: "ReplaceListOfPrimitive",
	MergeListOfObject:      "MergeListOfObject",
	ReplaceListOfObject:    "ReplaceListOfObject",
}

func (s MergeStrategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("MergeStrategy(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s MergeStrategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *MergeStrategy) UnmarshalText(text []byte) error {
	for strategy, name := range strategyNames {
		if name == string(text) {
			*s = strategy
			return nil
		}
	}
	return fmt.Errorf("unknown merge strategy %q", string(text))
}

// IsList reports whether the strategy applies to arrays.
func (s MergeStrategy) IsList() bool {
	switch s {
	case MergeListOfPrimitive, ReplaceListOfPrimitive, MergeListOfObject, ReplaceListOfObject:
		return true
	}
	return false
}
