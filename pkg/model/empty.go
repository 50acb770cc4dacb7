package model

import (
	"reflect"
	"strings"

	"github.com/mitchellh/copystructure"
)

// IsEmpty reports whether a field value counts as unset for override purposes:
// nil, a whitespace-only string, an empty sequence or an empty mapping.
// Zero numbers and false are values.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return true
		}
		return IsEmpty(rv.Elem().Interface())
	}
	return false
}

// CloneAttrs deep-copies an attribute map so the copy shares no nested maps or slices.
func CloneAttrs(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	dup, err := copystructure.Copy(attrs)
	if err == nil {
		if out, ok := dup.(map[string]any); ok {
			return out
		}
	}

	// copystructure only fails on exotic types; fall back to copying the top level
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

// CloneValue deep-copies a single decoded field value.
func CloneValue(v any) any {
	dup, err := copystructure.Copy(v)
	if err != nil {
		return v
	}
	return dup
}
