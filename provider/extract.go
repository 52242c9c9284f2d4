package provider

import "strings"

// Provider response and webhook payloads nest the interesting fields at
// different depths depending on API version. Extraction is data-driven: an
// ordered list of dotted key paths is tried until one yields a value.

// lookupPath walks a dotted key path through nested JSON maps.
func lookupPath(data map[string]any, path string) (any, bool) {
	current := any(data)
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// ExtractString returns the first non-empty string found at any of the given
// dotted key paths, in order.
func ExtractString(data map[string]any, paths ...string) string {
	for _, path := range paths {
		if value, ok := lookupPath(data, path); ok {
			if s, ok := value.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// ExtractMap returns the first nested object found at any of the given dotted
// key paths, in order.
func ExtractMap(data map[string]any, paths ...string) map[string]any {
	for _, path := range paths {
		if value, ok := lookupPath(data, path); ok {
			if m, ok := value.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}
