// Package strings provides string slice utilities.
package strings

import "strings"

// SplitList splits a comma-separated value into its elements, trimming
// whitespace and dropping duplicates and empties. Order is preserved.
// Intended for environment variables like "host1:9092, host2:9092".
func SplitList(value string) []string {
	return DedupeAndTrim(strings.Split(value, ","))
}

// DedupeAndTrim removes duplicates and empty strings from a slice, trimming
// whitespace from each element. Order is preserved.
func DedupeAndTrim(values []string) []string {
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
