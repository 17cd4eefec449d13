// Package eml implements a Serializer producing RFC 5322 internet messages.
package eml

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/shineum/oft-eml-exporter/internal/email"
)

const (
	// Name is the format name clients request.
	Name = "eml"

	// MIMEType is the media type of produced files.
	MIMEType = "message/rfc822"

	defaultAttachmentType = "application/octet-stream"
)

// Serializer writes messages as .eml files. Files carry an X-Unsent header
// so mail clients open them as editable drafts.
type Serializer struct {
	now func() time.Time
}

// New creates an EML Serializer stamping messages with the current time.
func New() *Serializer {
	return &Serializer{now: time.Now}
}

// NewWithClock creates an EML Serializer with a fixed clock, used for testing.
func NewWithClock(now func() time.Time) *Serializer {
	return &Serializer{now: now}
}

// Name returns the format name.
func (s *Serializer) Name() string { return Name }

// Extension returns the file extension.
func (s *Serializer) Extension() string { return "eml" }

// MIMEType returns the media type of produced files.
func (s *Serializer) MIMEType() string { return MIMEType }

// Serialize renders msg as a MIME message.
func (s *Serializer) Serialize(ctx context.Context, msg *email.Message) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := gomail.NewMessage(
		gomail.SetCharset("UTF-8"),
		gomail.SetEncoding(gomail.QuotedPrintable),
	)

	m.SetHeader("Subject", msg.Subject)
	m.SetDateHeader("Date", s.now())
	m.SetHeader("X-Unsent", "1")

	if to := formatAddresses(m, msg.To); len(to) > 0 {
		m.SetHeader("To", to...)
	}
	if cc := formatAddresses(m, msg.Cc); len(cc) > 0 {
		m.SetHeader("Cc", cc...)
	}

	switch {
	case msg.IsHTML && msg.TextBody != "":
		m.SetBody("text/plain", msg.TextBody)
		m.AddAlternative("text/html", msg.HtmlBody)
	case msg.IsHTML:
		m.SetBody("text/html", msg.HtmlBody)
	default:
		m.SetBody("text/plain", msg.TextBody)
	}

	for _, att := range msg.Attachments {
		content := att.Content
		m.Attach(att.Filename,
			gomail.SetHeader(map[string][]string{
				"Content-Type": {attachmentType(att)},
			}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
		)
	}

	var buf bytes.Buffer

	// gomail never writes Bcc, it only uses it for the envelope. A draft has
	// to keep it in the header block.
	if bcc := formatAddresses(m, msg.Bcc); len(bcc) > 0 {
		buf.WriteString("Bcc: " + strings.Join(bcc, ", ") + "\r\n")
	}

	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write eml: %w", err)
	}
	return buf.Bytes(), nil
}

func formatAddresses(m *gomail.Message, list []email.Address) []string {
	values := make([]string, 0, len(list))
	for _, a := range list {
		values = append(values, m.FormatAddress(a.Address, a.Name))
	}
	return values
}

// attachmentType returns the Content-Type header value for att, carrying the
// file name as the "name" parameter the way most mail clients expect.
// Parameters of the declared type are kept.
func attachmentType(att email.Attachment) string {
	mediaType, params, err := mime.ParseMediaType(att.ContentType)
	if err != nil {
		mediaType, params = defaultAttachmentType, map[string]string{}
	}
	params["name"] = att.Filename

	if v := mime.FormatMediaType(mediaType, params); v != "" {
		return v
	}
	return mime.FormatMediaType(defaultAttachmentType, map[string]string{"name": att.Filename})
}
