package store

import "time"

// Field value accessors. Documents round-trip through JSON in the PostgreSQL
// implementation, so numbers come back as float64 and nested maps as
// map[string]any; these helpers absorb both representations.

// AsString returns the field value as a string.
func AsString(v any) string {
	s, _ := v.(string)
	return s
}

// AsBool returns the field value as a bool.
func AsBool(v any) bool {
	b, _ := v.(bool)
	return b
}

// AsInt returns the field value as an int, accepting the JSON float64 form.
func AsInt(v any) int {
	switch tv := v.(type) {
	case int:
		return tv
	case int64:
		return int(tv)
	case float64:
		return int(tv)
	}
	return 0
}

// AsTime parses a canonical timestamp field value. The zero time is returned
// for absent or malformed values.
func AsTime(v any) time.Time {
	switch tv := v.(type) {
	case time.Time:
		return tv
	case string:
		if t, err := time.Parse(TimeFormat, tv); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339Nano, tv); err == nil {
			return t
		}
	}
	return time.Time{}
}

// AsStringSlice returns the field value as a []string, accepting both the
// native and the JSON-decoded []any form.
func AsStringSlice(v any) []string {
	switch tv := v.(type) {
	case []string:
		return tv
	case []any:
		out := make([]string, 0, len(tv))
		for _, item := range tv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// AsFields returns the field value as a nested Fields map.
func AsFields(v any) Fields {
	f, _ := v.(Fields)
	return f
}
