// Package strings provides string slice normalization shared by input
// validation and persistence.
package strings

import (
	"strings"
)

// Normalize trims whitespace from each element and drops empties and
// exact duplicates. Order of first occurrence is preserved. Poll option
// texts pass through here so "Tabs", " Tabs " and "" never become three
// distinct options.
func Normalize(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}
