package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shineum/oft-eml-exporter/internal/email"
)

func TestMessage_Basic(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := New(&buf)

	msg := &email.Message{
		Subject:  "Monthly Report",
		To:       []email.Address{{Name: "Alice", Address: "alice@example.com"}, {Address: "bob@example.com"}},
		TextBody: "Please find the report attached.",
	}

	if err := p.Message("report.eml", msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()

	if !strings.Contains(output, "Source: report.eml") {
		t.Error("output missing source")
	}
	if !strings.Contains(output, "To: Alice <alice@example.com>, bob@example.com") {
		t.Error("output missing To header")
	}
	if !strings.Contains(output, "Subject: Monthly Report") {
		t.Error("output missing Subject header")
	}
	if !strings.Contains(output, "Body (text):\nPlease find the report attached.") {
		t.Error("output missing body text")
	}
	if strings.Contains(output, "Cc:") || strings.Contains(output, "Bcc:") {
		t.Error("output should not contain empty Cc/Bcc lines")
	}
	if strings.Contains(output, "Attachments:") {
		t.Error("output should not contain Attachments line when there are none")
	}
	if !strings.HasPrefix(output, separator) {
		t.Error("output should start with separator line")
	}
	if !strings.HasSuffix(output, separator) {
		t.Error("output should end with separator line")
	}
}

func TestMessage_HTMLWithAttachments(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := New(&buf)

	msg := &email.Message{
		Subject:  "Invite",
		IsHTML:   true,
		HtmlBody: "<p>Hi {{name}}, code {{code}}</p>",
		Cc:       []email.Address{{Address: "carol@example.com"}},
		Bcc:      []email.Address{{Address: "dave@example.com"}},
		Attachments: []email.Attachment{
			{Filename: "plan.pdf", ContentType: "application/pdf", Content: make([]byte, 46080)},
			{Filename: "note.txt", ContentType: "text/plain", Content: []byte("hi")},
		},
	}

	if err := p.Message("invite.oft", msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Body (html):\n<p>Hi {{name}}, code {{code}}</p>") {
		t.Error("HTML body should be shown when there is no text body")
	}
	if !strings.Contains(output, "Cc: carol@example.com") || !strings.Contains(output, "Bcc: dave@example.com") {
		t.Error("output missing Cc/Bcc")
	}
	if !strings.Contains(output, "Placeholders: {{name}}, {{code}}") {
		t.Error("output missing placeholders")
	}
	if !strings.Contains(output, "Attachments: plan.pdf (application/pdf, 45.0 KB), note.txt (text/plain, 2 B)") {
		t.Errorf("output missing attachments line:\n%s", output)
	}
}

func TestMessage_LongBodyTruncated(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := New(&buf)

	body := strings.Repeat("é", bodyPreviewLimit+10)
	if err := p.Message("x", &email.Message{TextBody: body}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := strings.Repeat("é", bodyPreviewLimit) + "...\n"
	if !strings.Contains(buf.String(), want) {
		t.Error("body should be truncated on a rune boundary")
	}
}

func TestExport(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p := New(&buf)

	err := p.Export([]WrittenFile{
		{Path: "out/Report.oft", Mime: "application/vnd.ms-outlook", Size: 1258291},
		{Path: "out/Report.eml", Mime: "message/rfc822", Size: 512},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "out/Report.oft  application/vnd.ms-outlook  1.2 MB\n") {
		t.Errorf("missing oft line:\n%s", output)
	}
	if !strings.Contains(output, "out/Report.eml  message/rfc822  512 B\n") {
		t.Errorf("missing eml line:\n%s", output)
	}
}

func TestExport_NoFiles(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := New(&buf).Export(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "No files written") {
		t.Error("expected empty export notice")
	}
}

func TestFormatSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		bytes int
		want  string
	}{
		{name: "zero bytes", bytes: 0, want: "0 B"},
		{name: "small bytes", bytes: 512, want: "512 B"},
		{name: "kilobytes", bytes: 46080, want: "45.0 KB"},
		{name: "megabytes", bytes: 1258291, want: "1.2 MB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := formatSize(tt.bytes)
			if got != tt.want {
				t.Errorf("formatSize(%d): got %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}
