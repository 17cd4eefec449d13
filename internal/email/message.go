// Package email defines the core message data model shared by the builder,
// the serializers and the reader.
package email

import "strings"

// Message is a fully built email ready to be previewed or serialized.
// It is constructed in one step and treated as read-only afterwards.
type Message struct {
	Subject string

	// IsHTML reports whether HtmlBody carries the rendered body. TextBody is
	// kept independently either way.
	IsHTML   bool
	HtmlBody string
	TextBody string

	To  []Address
	Cc  []Address
	Bcc []Address

	Attachments []Attachment
}

// Address is a syntactically valid mailbox with an optional display name.
type Address struct {
	Name    string
	Address string
}

// String formats the address the way it appears in a header.
func (a Address) String() string {
	if a.Name == "" {
		return a.Address
	}
	return a.Name + " <" + a.Address + ">"
}

// DisplayName returns the display name, falling back to the bare address.
func (a Address) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Address
}

// Attachment represents a file attached to an email message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Addresses returns the bare address strings of list, never nil.
func Addresses(list []Address) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Address)
	}
	return out
}

// JoinDisplay joins display names with "; " as Outlook shows them in the
// To/Cc/Bcc summary lines.
func JoinDisplay(list []Address) string {
	names := make([]string, 0, len(list))
	for _, a := range list {
		names = append(names, a.DisplayName())
	}
	return strings.Join(names, "; ")
}
