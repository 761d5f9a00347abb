// Package util provides utility functions for the FuelQ Pro console.
package util

import (
	"math/rand/v2"
	"strings"
)

// GenerateRandomHex generates a random hexadecimal string of the specified length.
// Uses math/rand/v2; the IDs are collision-avoidance suffixes, not secrets.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}

	return builder.String()
}

// NormalizeNamePart lowercases a user-supplied value and reduces it to a
// charset safe for object names: letters, digits, and underscores. Empty
// input normalizes to the given fallback.
func NormalizeNamePart(s, fallback string) string {
	var builder strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '.':
			builder.WriteByte('_')
		}
	}
	if builder.Len() == 0 {
		return fallback
	}
	return builder.String()
}
