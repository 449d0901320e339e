// Package strings provides string helpers shared by request validation.
package strings

import (
	"strings"
	"unicode"
)

// DedupeAndTrim trims each element and drops blanks and repeats, keeping
// first-seen order.
//
//	DedupeAndTrim([]string{"  full_name ", "photo", "full_name", ""})
//	// []string{"full_name", "photo"}
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
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

// ToSnakeCase converts a Go field name such as RequestedFields to
// requested_fields. Acronym runs stay together: HolderID becomes holder_id.
func ToSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 &&
			(unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
