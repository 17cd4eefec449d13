// Package filename maps message subjects to portable file names.
package filename

import "strings"

// Default is the stem used when a subject yields nothing usable.
const Default = "Message"

// invalid reports whether r is rejected in file names on at least one of the
// common desktop platforms. Exported files are downloaded by clients we do
// not control, so the union of the restricted sets is used.
func invalid(r rune) bool {
	if r < 0x20 {
		return true
	}
	switch r {
	case '"', '<', '>', '|', ':', '*', '?', '\\', '/':
		return true
	}
	return false
}

// Sanitize returns a filesystem-safe file name stem for subject.
func Sanitize(subject string) string {
	if subject == "" {
		return Default
	}

	stem := strings.Map(func(r rune) rune {
		if invalid(r) {
			return '_'
		}
		return r
	}, subject)

	if strings.TrimSpace(stem) == "" {
		return Default
	}
	return stem
}

// WithExtension returns the sanitized stem of subject joined with ext.
// ext is given without the leading dot.
func WithExtension(subject, ext string) string {
	return Sanitize(subject) + "." + ext
}
