// Package service implements the preview, export and template publishing
// operations on top of the message builder and the serializers.
package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/shineum/oft-eml-exporter/internal/compose"
	"github.com/shineum/oft-eml-exporter/internal/email"
	"github.com/shineum/oft-eml-exporter/internal/filename"
	"github.com/shineum/oft-eml-exporter/internal/format"
	"github.com/shineum/oft-eml-exporter/internal/metrics"
	"github.com/shineum/oft-eml-exporter/internal/placeholder"
)

// DefaultFormats is the format set used when an export request omits formats.
var DefaultFormats = []string{"oft", "eml"}

var (
	// ErrTemplatesDisabled is returned when no template publisher is configured.
	ErrTemplatesDisabled = errors.New("template publishing is not configured")

	// ErrTemplateName is returned for missing or malformed template names.
	ErrTemplateName = errors.New("template name must be 1-64 characters of letters, digits, '_' or '-'")

	// ErrSerialize wraps serializer failures.
	ErrSerialize = errors.New("serialization failed")

	// ErrPublish wraps template publisher failures.
	ErrPublish = errors.New("template publishing failed")
)

var templateNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Publisher stores a message as a reusable template under name.
type Publisher interface {
	Publish(ctx context.Context, name string, msg *email.Message) error
}

// ExportRequest is a compose request plus the requested output formats.
// A nil Formats means the field was absent; an empty slice asks for no files.
type ExportRequest struct {
	compose.Request
	Formats *[]string `json:"formats"`
}

// TemplateRequest is a compose request plus the template name.
type TemplateRequest struct {
	compose.Request
	Name string `json:"name"`
}

// NormalizedFields lists the cleaned recipients and detected placeholders.
type NormalizedFields struct {
	To           []string `json:"to"`
	Cc           []string `json:"cc"`
	Bcc          []string `json:"bcc"`
	Placeholders []string `json:"placeholders"`
}

// Preview is the result of previewing a compose request.
type Preview struct {
	Subject     string           `json:"subject"`
	HtmlPreview string           `json:"htmlPreview"`
	TextPreview string           `json:"textPreview"`
	Normalized  NormalizedFields `json:"normalized"`
}

// File is one exported message file.
type File struct {
	Filename      string `json:"filename"`
	Mime          string `json:"mime"`
	ContentBase64 string `json:"contentBase64"`
}

// Template describes a published template.
type Template struct {
	Name         string   `json:"name"`
	Placeholders []string `json:"placeholders"`
}

// Service builds, previews and exports messages.
type Service struct {
	formats   *format.Registry
	publisher Publisher
}

// New creates a Service exporting through formats. publisher may be nil, in
// which case template publishing reports ErrTemplatesDisabled.
func New(formats *format.Registry, publisher Publisher) *Service {
	return &Service{
		formats:   formats,
		publisher: publisher,
	}
}

// Normalize derives the normalized fields of a built message.
func Normalize(msg *email.Message) NormalizedFields {
	return NormalizedFields{
		To:           email.Addresses(msg.To),
		Cc:           email.Addresses(msg.Cc),
		Bcc:          email.Addresses(msg.Bcc),
		Placeholders: placeholder.Detect(msg.HtmlBody),
	}
}

// Preview builds the message and returns its normalized view. No
// serializer is invoked.
func (s *Service) Preview(req compose.Request) (Preview, error) {
	msg, err := compose.Build(req)
	if err != nil {
		return Preview{}, err
	}

	return Preview{
		Subject:     msg.Subject,
		HtmlPreview: msg.HtmlBody,
		TextPreview: msg.TextBody,
		Normalized:  Normalize(msg),
	}, nil
}

// ResolveFormats applies the tri-state formats rule: nil selects the
// defaults, anything else is lower-cased and deduplicated. Names are not
// trimmed, so " oft" matches no format.
func ResolveFormats(requested *[]string) map[string]struct{} {
	names := DefaultFormats
	if requested != nil {
		names = *requested
	}

	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = struct{}{}
	}
	return set
}

// Export builds the message and serializes it in every requested format the
// registry knows, in registry order. Unknown format names are ignored.
func (s *Service) Export(ctx context.Context, req ExportRequest) ([]File, error) {
	msg, err := compose.Build(req.Request)
	if err != nil {
		return nil, err
	}

	requested := ResolveFormats(req.Formats)
	for name := range requested {
		if _, ok := s.formats.Lookup(name); !ok {
			slog.DebugContext(ctx, "ignoring unknown format", "format", name)
		}
	}

	files := make([]File, 0, len(requested))

	for _, ser := range s.formats.All() {
		if _, ok := requested[strings.ToLower(ser.Name())]; !ok {
			continue
		}

		started := time.Now()
		data, err := ser.Serialize(ctx, msg)
		metrics.SerializeDuration.WithLabelValues(ser.Name()).Observe(time.Since(started).Seconds())
		if err != nil {
			metrics.ExportedFiles.WithLabelValues(ser.Name(), "error").Inc()
			return nil, fmt.Errorf("%w: %s: %w", ErrSerialize, ser.Name(), err)
		}
		metrics.ExportedFiles.WithLabelValues(ser.Name(), "ok").Inc()

		slog.DebugContext(ctx, "message serialized",
			"format", ser.Name(),
			"bytes", len(data),
		)

		files = append(files, File{
			Filename:      filename.WithExtension(msg.Subject, ser.Extension()),
			Mime:          ser.MIMEType(),
			ContentBase64: base64.StdEncoding.EncodeToString(data),
		})
	}

	return files, nil
}

// PublishTemplate builds the message and stores it with the configured
// publisher under req.Name.
func (s *Service) PublishTemplate(ctx context.Context, req TemplateRequest) (Template, error) {
	if s.publisher == nil {
		return Template{}, ErrTemplatesDisabled
	}
	if !templateNamePattern.MatchString(req.Name) {
		return Template{}, ErrTemplateName
	}

	msg, err := compose.Build(req.Request)
	if err != nil {
		return Template{}, err
	}

	if err := s.publisher.Publish(ctx, req.Name, msg); err != nil {
		metrics.TemplatesPublished.WithLabelValues("error").Inc()
		return Template{}, fmt.Errorf("%w: %w", ErrPublish, err)
	}
	metrics.TemplatesPublished.WithLabelValues("ok").Inc()

	placeholders := placeholder.Detect(msg.HtmlBody)
	for _, p := range placeholder.Detect(msg.Subject + "\n" + msg.TextBody) {
		if !slices.Contains(placeholders, p) {
			placeholders = append(placeholders, p)
		}
	}

	return Template{Name: req.Name, Placeholders: placeholders}, nil
}
