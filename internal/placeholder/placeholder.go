// Package placeholder finds {{...}} template tokens in message bodies.
package placeholder

import "regexp"

var tokenPattern = regexp.MustCompile(`\{\{[^}]+\}\}`)

// Detect returns the distinct placeholder tokens in s, in order of first
// appearance. Tokens are compared by their exact text, inner whitespace
// included. The result is never nil.
func Detect(s string) []string {
	result := []string{}
	if s == "" {
		return result
	}

	seen := make(map[string]struct{})
	for _, m := range tokenPattern.FindAllString(s, -1) {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		result = append(result, m)
	}
	return result
}
