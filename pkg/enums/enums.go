// Package enums holds the string enums shared by the API, the models and the
// Postgres enum types they map to.
package enums

import (
	"fmt"
	"slices"
)

// member reports whether v is one of set.
func member[T ~string](v T, set []T) bool {
	return slices.Contains(set, v)
}

// parse converts raw input into the enum T, naming kind in the error.
func parse[T ~string](raw, kind string, set []T) (T, error) {
	if v := T(raw); member(v, set) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, raw)
}
