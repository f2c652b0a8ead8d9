// Package fieldcase translates record field names between the storage
// layer's snake_case convention and the application's camelCase convention.
// Each entity kind carries an explicit field map; unmapped keys fall back to
// a generic word-boundary transform so the two directions stay inverses.
package fieldcase

import (
	"strings"
	"unicode"
)

// FieldMap maps storage field names to application field names for one
// entity kind. Keys not present fall back to the generic transform.
type FieldMap map[string]string

// Inverse returns the application-to-storage direction of the map.
func (m FieldMap) Inverse() FieldMap {
	inv := make(FieldMap, len(m))
	for storage, application := range m {
		inv[application] = storage
	}
	return inv
}

// ToApplication converts every key of a record (and any nested records) from
// storage naming to application naming. Primitives, nil, and non-record
// values pass through unchanged.
func ToApplication(v interface{}, m FieldMap) interface{} {
	return convert(v, m, SnakeToCamel)
}

// ToStorage is the inverse of ToApplication.
func ToStorage(v interface{}, m FieldMap) interface{} {
	return convert(v, m.Inverse(), CamelToSnake)
}

func convert(v interface{}, m FieldMap, fallback func(string) string) interface{} {
	switch value := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(value))
		for key, nested := range value {
			mapped, ok := m[key]
			if !ok {
				mapped = fallback(key)
			}
			out[mapped] = convert(nested, m, fallback)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(value))
		for i, nested := range value {
			out[i] = convert(nested, m, fallback)
		}
		return out
	default:
		return v
	}
}

// SnakeToCamel converts snake_case to camelCase. Already-camel input is
// returned unchanged.
func SnakeToCamel(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	upperNext := false
	for i, r := range s {
		if r == '_' {
			// Leading underscores are kept verbatim.
			if i == 0 || upperNext {
				b.WriteRune(r)
				continue
			}
			upperNext = true
			continue
		}
		if upperNext {
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CamelToSnake converts camelCase to snake_case. Already-snake input is
// returned unchanged.
func CamelToSnake(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
