package patch

import (
	"encoding/json"
	"math"
	"strconv"
)

// token is a value at one path of a document. A present token may hold a
// JSON null.
type token struct {
	value   interface{}
	present bool
}

var absent = token{}

func present(v interface{}) token {
	return token{value: v, present: true}
}

// rootToken treats a nil document as absent.
func rootToken(v interface{}) token {
	if v == nil {
		return absent
	}
	return present(v)
}

func (t token) object() (map[string]interface{}, bool) {
	if !t.present {
		return nil, false
	}
	m, ok := t.value.(map[string]interface{})
	return m, ok
}

func (t token) array() ([]interface{}, bool) {
	if !t.present {
		return nil, false
	}
	a, ok := t.value.([]interface{})
	return a, ok
}

func (t token) isScalar() bool {
	if !t.present {
		return false
	}
	switch t.value.(type) {
	case map[string]interface{}, []interface{}:
		return false
	}
	return true
}

// property returns the token for key in an object token.
func (t token) property(key string) token {
	m, ok := t.object()
	if !ok {
		return absent
	}
	v, ok := m[key]
	if !ok {
		return absent
	}
	return present(v)
}

func (t token) typeName() string {
	if !t.present {
		return "absent"
	}
	return typeName(t.value)
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	}
	if _, ok := number(v); ok {
		return "number"
	}
	return "unknown"
}

// number converts the numeric types produced by encoding/json and the
// unstructured converter to float64.
func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func integer(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n), true
		}
	}
	return 0, false
}

// equal compares two JSON values structurally. Numbers compare by value
// regardless of their Go representation.
func equal(a, b interface{}) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case map[string]interface{}:
		bv, ok := b.(map[string]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, x := range av {
			y, ok := bv[k]
			if !ok || !equal(x, y) {
				return false
			}
		}
		return true
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}

	if ai, ok := integer(a); ok {
		if bi, ok := integer(b); ok {
			return ai == bi
		}
	}
	if af, ok := number(a); ok {
		bf, ok := number(b)
		return ok && af == bf
	}
	return false
}

// mergeKeyOf returns a canonical string for the merge key of an object list
// item, or false when the key is missing or empty.
func mergeKeyOf(item interface{}, mergeKey string) (string, bool) {
	m, ok := item.(map[string]interface{})
	if !ok {
		return "", false
	}
	v, ok := m[mergeKey]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		if s == "" {
			return "", false
		}
		return "s:" + s, true
	}
	if i, ok := integer(v); ok {
		return "i:" + strconv.FormatInt(i, 10), true
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return "j:" + string(raw), true
}
