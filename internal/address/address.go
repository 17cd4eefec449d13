// Package address normalizes free-form recipient input into validated,
// deduplicated mailbox lists.
package address

import (
	"net/mail"
	"strings"

	"github.com/shineum/oft-eml-exporter/internal/email"
)

// Split breaks a raw recipient string on ',' and ';', trimming each segment
// and dropping empty ones.
func Split(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})

	result := make([]string, 0, len(fields))
	for _, f := range fields {
		trimmed := strings.TrimSpace(f)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Parse validates a single token against RFC 5322 address grammar.
// The second return value is false when the token is not a valid mailbox.
func Parse(token string) (email.Address, bool) {
	parsed, err := mail.ParseAddress(strings.TrimSpace(token))
	if err != nil {
		return email.Address{}, false
	}
	return email.Address{Name: parsed.Name, Address: parsed.Address}, true
}

// Normalize splits, validates and deduplicates raw recipient input.
// Invalid tokens are dropped. Duplicates are detected by exact (case
// sensitive) bare address and the first occurrence wins, so the result keeps
// first-seen order.
func Normalize(raw []string) []email.Address {
	result := make([]email.Address, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for _, entry := range raw {
		for _, token := range Split(entry) {
			addr, ok := Parse(token)
			if !ok {
				continue
			}
			if _, dup := seen[addr.Address]; dup {
				continue
			}
			seen[addr.Address] = struct{}{}
			result = append(result, addr)
		}
	}
	return result
}
