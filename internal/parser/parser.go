// Package parser reads exported .eml files back into the message model so
// they can be inspected or compared with what was built.
package parser

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/shineum/oft-eml-exporter/internal/email"
)

// fallbackName names attachments that carry no file name.
const fallbackName = "attachment"

var wordDecoder = new(mime.WordDecoder)

// header is satisfied by both mail.Header and textproto.MIMEHeader.
type header interface {
	Get(key string) string
}

// Parse reads a raw RFC 5322 message. Parts it cannot interpret are skipped
// with a warning; only an unreadable header block or a broken top-level
// multipart structure is an error.
func Parse(raw []byte) (*email.Message, error) {
	m, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	msg := &email.Message{
		Subject: decodeWords(m.Header.Get("Subject")),
		To:      addressList(m.Header, "To"),
		Cc:      addressList(m.Header, "Cc"),
		Bcc:     addressList(m.Header, "Bcc"),
	}

	if err := readEntity(msg, m.Header, m.Body, true); err != nil {
		return nil, err
	}

	msg.IsHTML = strings.TrimSpace(msg.HtmlBody) != ""
	return msg, nil
}

// readEntity stores one MIME entity into msg, descending into multiparts.
// Errors are returned only for the top-level entity.
func readEntity(msg *email.Message, h header, body io.Reader, top bool) error {
	contentType := h.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		if !top {
			slog.Warn("skipping part with invalid content type", "content_type", contentType, "error", err)
			return nil
		}
		slog.Warn("invalid content type, reading body as text", "content_type", contentType, "error", err)
		mediaType, params = "text/plain", map[string]string{}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return readMultipart(msg, body, params["boundary"], top)
	}

	content, err := decodeBody(body, h.Get("Content-Transfer-Encoding"))
	if err != nil {
		if top {
			return fmt.Errorf("failed to read message body: %w", err)
		}
		slog.Warn("skipping unreadable part", "content_type", mediaType, "error", err)
		return nil
	}

	disposition, dispParams, _ := mime.ParseMediaType(h.Get("Content-Disposition"))
	name := decodeWords(dispParams["filename"])
	if name == "" {
		name = decodeWords(params["name"])
	}

	isBody := disposition != "attachment" && name == ""
	switch {
	case isBody && mediaType == "text/html":
		if msg.HtmlBody == "" {
			msg.HtmlBody = string(content)
		}
	case isBody && (mediaType == "text/plain" || top):
		if msg.TextBody == "" {
			msg.TextBody = string(content)
		}
	case isBody:
		slog.Warn("skipping unnamed inline part", "content_type", mediaType)
	default:
		if name == "" {
			name = fallbackName
		}
		msg.Attachments = append(msg.Attachments, email.Attachment{
			Filename:    name,
			ContentType: attachmentType(mediaType, params),
			Content:     content,
		})
	}

	return nil
}

func readMultipart(msg *email.Message, body io.Reader, boundary string, top bool) error {
	if boundary == "" {
		if top {
			return errors.New("multipart message missing boundary")
		}
		slog.Warn("skipping nested multipart without boundary")
		return nil
	}

	r := multipart.NewReader(body, boundary)
	for {
		part, err := r.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if top {
				return fmt.Errorf("failed to read multipart body: %w", err)
			}
			slog.Warn("stopping at broken nested multipart", "error", err)
			return nil
		}

		// NextPart has already removed quoted-printable encoding and its header.
		if err := readEntity(msg, part.Header, part, false); err != nil {
			return err
		}
	}
}

// decodeBody reverses the transfer encoding of r.
func decodeBody(r io.Reader, transferEncoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "base64":
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		cleaned := strings.Join(strings.Fields(string(raw)), "")
		out, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			if out, err = base64.RawStdEncoding.DecodeString(cleaned); err != nil {
				return nil, fmt.Errorf("invalid base64 content: %w", err)
			}
		}
		return out, nil
	case "quoted-printable":
		return io.ReadAll(quotedprintable.NewReader(r))
	default:
		return io.ReadAll(r)
	}
}

// attachmentType rebuilds the declared content type without the file name
// parameter, which is reported separately.
func attachmentType(mediaType string, params map[string]string) string {
	kept := make(map[string]string, len(params))
	for k, v := range params {
		if k != "name" {
			kept[k] = v
		}
	}
	if v := mime.FormatMediaType(mediaType, kept); v != "" {
		return v
	}
	return mediaType
}

func decodeWords(s string) string {
	decoded, err := wordDecoder.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}

// addressList reads an address header. When the list does not parse, the
// comma separated entries are kept as bare addresses so that inspection
// shows everything the file carries.
func addressList(h mail.Header, key string) []email.Address {
	list, err := h.AddressList(key)
	if errors.Is(err, mail.ErrHeaderNotPresent) {
		return nil
	}
	if err != nil {
		var result []email.Address
		for _, entry := range strings.Split(decodeWords(h.Get(key)), ",") {
			if entry = strings.TrimSpace(entry); entry != "" {
				result = append(result, email.Address{Address: entry})
			}
		}
		return result
	}

	result := make([]email.Address, 0, len(list))
	for _, a := range list {
		result = append(result, email.Address{Name: a.Name, Address: a.Address})
	}
	return result
}
