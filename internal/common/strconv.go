package common

import "strconv"

// AtoiDefault parses value as an integer, returning def for empty or
// malformed input. Handlers use it for limit/offset query parameters.
func AtoiDefault(value string, def int) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
