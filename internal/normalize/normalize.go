package normalize

import "strings"

// Username returns a normalized form of a username suitable for
// storage and comparisons. Normalization currently trims surrounding
// whitespace and lower-cases the name.
func Username(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}
