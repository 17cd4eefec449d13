// Package report prints human-readable summaries of messages and exported
// files for the command line.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/shineum/oft-eml-exporter/internal/email"
	"github.com/shineum/oft-eml-exporter/internal/placeholder"
)

const separator = "========================================\n"

// bodyPreviewLimit caps the number of body runes printed.
const bodyPreviewLimit = 500

// WrittenFile describes one file produced by an offline export.
type WrittenFile struct {
	Path string
	Mime string
	Size int
}

// Printer writes summaries to an output stream.
type Printer struct {
	writer io.Writer
}

// New creates a Printer that writes to w.
func New(w io.Writer) *Printer {
	return &Printer{writer: w}
}

// Message prints the headers, body preview, placeholders and attachments of
// msg. source names where the message came from.
func (p *Printer) Message(source string, msg *email.Message) error {
	var b strings.Builder

	b.WriteString(separator)
	fmt.Fprintf(&b, "Source: %s\n", source)
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	fmt.Fprintf(&b, "To: %s\n", joinAddresses(msg.To))

	if len(msg.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\n", joinAddresses(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		fmt.Fprintf(&b, "Bcc: %s\n", joinAddresses(msg.Bcc))
	}

	bodyType := "text"
	body := msg.TextBody
	if body == "" && msg.IsHTML {
		bodyType = "html"
		body = msg.HtmlBody
	}
	fmt.Fprintf(&b, "Body (%s):\n", bodyType)
	b.WriteString(preview(body) + "\n")

	if tokens := placeholder.Detect(msg.HtmlBody); len(tokens) > 0 {
		fmt.Fprintf(&b, "Placeholders: %s\n", strings.Join(tokens, ", "))
	}

	if len(msg.Attachments) > 0 {
		attachments := make([]string, 0, len(msg.Attachments))
		for _, att := range msg.Attachments {
			attachments = append(attachments, fmt.Sprintf("%s (%s, %s)", att.Filename, att.ContentType, formatSize(len(att.Content))))
		}
		fmt.Fprintf(&b, "Attachments: %s\n", strings.Join(attachments, ", "))
	}

	b.WriteString(separator)

	_, err := fmt.Fprint(p.writer, b.String())
	return err
}

// Export prints the list of files written by an offline export.
func (p *Printer) Export(files []WrittenFile) error {
	var b strings.Builder

	b.WriteString(separator)
	if len(files) == 0 {
		b.WriteString("No files written\n")
	}
	for _, f := range files {
		fmt.Fprintf(&b, "%s  %s  %s\n", f.Path, f.Mime, formatSize(f.Size))
	}
	b.WriteString(separator)

	_, err := fmt.Fprint(p.writer, b.String())
	return err
}

func joinAddresses(list []email.Address) string {
	parts := make([]string, 0, len(list))
	for _, a := range list {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}

func preview(body string) string {
	runes := []rune(strings.TrimSpace(body))
	if len(runes) <= bodyPreviewLimit {
		return string(runes)
	}
	return string(runes[:bodyPreviewLimit]) + "..."
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
