// Package compose turns client compose requests into immutable messages.
package compose

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/shineum/oft-eml-exporter/internal/address"
	"github.com/shineum/oft-eml-exporter/internal/email"
)

// DefaultMIMEType is used for attachments that do not declare a type.
const DefaultMIMEType = "application/octet-stream"

// Request is the client description of a message prior to serialization.
type Request struct {
	Subject     string       `json:"subject"`
	HtmlBody    string       `json:"htmlBody"`
	TextBody    string       `json:"textBody"`
	To          []string     `json:"to"`
	Cc          []string     `json:"cc"`
	Bcc         []string     `json:"bcc"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment is a client-supplied attachment with base64 content.
type Attachment struct {
	Filename      string `json:"filename"`
	ContentBase64 string `json:"contentBase64"`
	Mime          string `json:"mime"`
}

// ErrInvalidContent is wrapped by AttachmentError when the content is not
// valid base64.
var ErrInvalidContent = errors.New("invalid base64 content")

// AttachmentError identifies an attachment whose content could not be decoded.
type AttachmentError struct {
	Index    int
	Filename string
	Err      error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("attachment %d (%q): %v", e.Index, e.Filename, e.Err)
}

func (e *AttachmentError) Unwrap() error {
	return e.Err
}

// Build constructs a Message from req. Invalid addresses and attachments
// missing a filename or content are dropped; content that is present but
// not decodable fails the whole build with an *AttachmentError.
func Build(req Request) (*email.Message, error) {
	attachments, err := decodeAttachments(req.Attachments)
	if err != nil {
		return nil, err
	}

	return &email.Message{
		Subject:     req.Subject,
		IsHTML:      strings.TrimSpace(req.HtmlBody) != "",
		HtmlBody:    req.HtmlBody,
		TextBody:    req.TextBody,
		To:          address.Normalize(req.To),
		Cc:          address.Normalize(req.Cc),
		Bcc:         address.Normalize(req.Bcc),
		Attachments: attachments,
	}, nil
}

func decodeAttachments(list []Attachment) ([]email.Attachment, error) {
	result := make([]email.Attachment, 0, len(list))

	for i, a := range list {
		if strings.TrimSpace(a.Filename) == "" || strings.TrimSpace(a.ContentBase64) == "" {
			continue
		}

		content, dataType, err := decodeContent(a.ContentBase64)
		if err != nil {
			return nil, &AttachmentError{Index: i, Filename: a.Filename, Err: err}
		}

		contentType := strings.TrimSpace(a.Mime)
		if contentType == "" {
			contentType = dataType
		}
		if contentType == "" {
			contentType = DefaultMIMEType
		}

		result = append(result, email.Attachment{
			Filename:    a.Filename,
			ContentType: contentType,
			Content:     content,
		})
	}

	return result, nil
}

// decodeContent decodes plain base64 or a base64 data URI. For data URIs the
// declared media type is returned as well.
func decodeContent(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)

	var mediaType string
	if strings.HasPrefix(s, "data:") {
		meta, payload, ok := strings.Cut(s, ",")
		if !ok || !strings.HasSuffix(meta, ";base64") {
			return nil, "", fmt.Errorf("%w: unsupported data URI", ErrInvalidContent)
		}
		mediaType = strings.TrimSuffix(strings.TrimPrefix(meta, "data:"), ";base64")
		s = payload
	}

	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)

	decoded, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		// Unpadded input is common from browser encoders.
		decoded, err = base64.RawStdEncoding.DecodeString(cleaned)
		if err != nil {
			return nil, "", ErrInvalidContent
		}
	}

	return decoded, mediaType, nil
}
