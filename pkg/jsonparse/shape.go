package jsonparse

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Kind tags the shape of a decoded value.
type Kind int

const (
	// Other is anything that is neither an array nor an object carrying one.
	Other Kind = iota
	// Array is a top-level JSON array.
	Array
	// ObjectWithArrayField is an object with an array-valued field that
	// passed the caller's acceptance test.
	ObjectWithArrayField
)

func (k Kind) String() string {
	switch k {
	case Array:
		return "array"
	case ObjectWithArrayField:
		return "object_with_array_field"
	default:
		return "other"
	}
}

// Shape is the classified form of a decoded value.
type Shape struct {
	Kind Kind
	// Items is set for Array and ObjectWithArrayField.
	Items []any
	// Field names the array field for ObjectWithArrayField.
	Field string
	// Value is the original decoded value.
	Value any
}

// Classify tags v. For objects a non-empty array in the preferred field wins
// outright. Otherwise the remaining fields are scanned in sorted key order and
// the first array field that accept reports as usable is taken. A nil accept
// takes any non-empty array.
func Classify(v any, preferred string, accept func([]any) bool) Shape {
	if accept == nil {
		accept = nonEmpty
	}

	switch val := v.(type) {
	case []any:
		return Shape{Kind: Array, Items: val, Value: v}
	case map[string]any:
		if preferred != "" {
			if items, ok := val[preferred].([]any); ok && nonEmpty(items) {
				return Shape{Kind: ObjectWithArrayField, Items: items, Field: preferred, Value: v}
			}
		}

		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if k == preferred {
				continue
			}
			if items, ok := val[k].([]any); ok && accept(items) {
				return Shape{Kind: ObjectWithArrayField, Items: items, Field: k, Value: v}
			}
		}
	}
	return Shape{Kind: Other, Value: v}
}

func nonEmpty(items []any) bool { return len(items) > 0 }

// FirstString returns the first alias key in m holding a non-blank string.
func FirstString(m map[string]any, aliases []string) (string, bool) {
	for _, key := range aliases {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

// ItemText reduces one extracted item to a string: strings pass through,
// objects resolve through aliases, and anything unmatched is serialized whole.
func ItemText(item any, aliases []string) string {
	switch val := item.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any:
		if s, ok := FirstString(val, aliases); ok {
			return s
		}
	}
	return Stringify(item)
}

// Stringify renders v as compact JSON, falling back to fmt formatting.
func Stringify(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
