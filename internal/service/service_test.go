package service

import (
	"context"
	"encoding/base64"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/shineum/oft-eml-exporter/internal/compose"
	"github.com/shineum/oft-eml-exporter/internal/email"
	"github.com/shineum/oft-eml-exporter/internal/format"
)

type countingSerializer struct {
	name string
	mime string
	err  error

	mu    sync.Mutex
	calls int
}

func (c *countingSerializer) Name() string      { return c.name }
func (c *countingSerializer) Extension() string { return c.name }
func (c *countingSerializer) MIMEType() string  { return c.mime }

func (c *countingSerializer) Serialize(_ context.Context, msg *email.Message) ([]byte, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return []byte(c.name + ":" + msg.Subject), nil
}

func (c *countingSerializer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type recordingPublisher struct {
	err  error
	name string
	msg  *email.Message
}

func (p *recordingPublisher) Publish(_ context.Context, name string, msg *email.Message) error {
	p.name = name
	p.msg = msg
	return p.err
}

func newTestService(pub Publisher) (*Service, *countingSerializer, *countingSerializer) {
	oft := &countingSerializer{name: "oft", mime: "application/vnd.ms-outlook"}
	eml := &countingSerializer{name: "eml", mime: "message/rfc822"}
	return New(format.NewRegistry(oft, eml), pub), oft, eml
}

func formats(names ...string) *[]string {
	return &names
}

func TestPreview_NormalizesWithoutSerializing(t *testing.T) {
	t.Parallel()

	svc, oft, eml := newTestService(nil)

	got, err := svc.Preview(compose.Request{
		Subject:  "Hi {{name}}",
		HtmlBody: "<p>Hello {{name}}, order {{order_id}}</p>",
		TextBody: "Hello",
		To:       []string{"a@x.com; B <b@x.com>", "bad"},
		Cc:       []string{"a@x.com"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Subject != "Hi {{name}}" {
		t.Errorf("Subject: got %q", got.Subject)
	}
	if got.HtmlPreview != "<p>Hello {{name}}, order {{order_id}}</p>" {
		t.Errorf("HtmlPreview: got %q", got.HtmlPreview)
	}
	if got.TextPreview != "Hello" {
		t.Errorf("TextPreview: got %q", got.TextPreview)
	}
	if want := []string{"a@x.com", "b@x.com"}; !reflect.DeepEqual(got.Normalized.To, want) {
		t.Errorf("To: got %v, want %v", got.Normalized.To, want)
	}
	if want := []string{"a@x.com"}; !reflect.DeepEqual(got.Normalized.Cc, want) {
		t.Errorf("Cc: got %v, want %v", got.Normalized.Cc, want)
	}
	if got.Normalized.Bcc == nil || len(got.Normalized.Bcc) != 0 {
		t.Errorf("Bcc: got %#v, want empty non-nil", got.Normalized.Bcc)
	}
	if want := []string{"{{name}}", "{{order_id}}"}; !reflect.DeepEqual(got.Normalized.Placeholders, want) {
		t.Errorf("Placeholders: got %v, want %v", got.Normalized.Placeholders, want)
	}

	if oft.count()+eml.count() != 0 {
		t.Error("preview must not invoke serializers")
	}
}

func TestPreview_InvalidAttachment(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(nil)

	_, err := svc.Preview(compose.Request{
		Attachments: []compose.Attachment{{Filename: "a.txt", ContentBase64: "!!not base64!!"}},
	})

	var attErr *compose.AttachmentError
	if !errors.As(err, &attErr) {
		t.Fatalf("expected *compose.AttachmentError, got %v", err)
	}
}

func TestResolveFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		requested *[]string
		want      map[string]struct{}
	}{
		{"absent", nil, map[string]struct{}{"oft": {}, "eml": {}}},
		{"empty", formats(), map[string]struct{}{}},
		{"mixed case", formats("OFT", "Eml", "oft"), map[string]struct{}{"oft": {}, "eml": {}}},
		{"padding kept", formats(" oft"), map[string]struct{}{" oft": {}}},
		{"unknown kept", formats("pdf"), map[string]struct{}{"pdf": {}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ResolveFormats(tt.requested); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExport_Formats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		requested *[]string
		wantMimes []string
	}{
		{"default", nil, []string{"application/vnd.ms-outlook", "message/rfc822"}},
		{"empty", formats(), []string{}},
		{"only oft", formats("OFT"), []string{"application/vnd.ms-outlook"}},
		{"registry order", formats("eml", "oft"), []string{"application/vnd.ms-outlook", "message/rfc822"}},
		{"unknown ignored", formats("pdf", "eml"), []string{"message/rfc822"}},
		{"padded name ignored", formats(" oft", "eml"), []string{"message/rfc822"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, _, _ := newTestService(nil)
			files, err := svc.Export(context.Background(), ExportRequest{
				Request: compose.Request{Subject: "Q3: Report/Plan*"},
				Formats: tt.requested,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			mimes := make([]string, 0, len(files))
			for _, f := range files {
				mimes = append(mimes, f.Mime)
			}
			if !reflect.DeepEqual(mimes, tt.wantMimes) {
				t.Errorf("mimes: got %v, want %v", mimes, tt.wantMimes)
			}
		})
	}
}

func TestExport_FileContents(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(nil)
	files, err := svc.Export(context.Background(), ExportRequest{
		Request: compose.Request{Subject: "Q3: Report/Plan*"},
		Formats: formats("eml"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}

	if files[0].Filename != "Q3_ Report_Plan_.eml" {
		t.Errorf("Filename: got %q", files[0].Filename)
	}
	data, err := base64.StdEncoding.DecodeString(files[0].ContentBase64)
	if err != nil {
		t.Fatalf("ContentBase64 is not valid base64: %v", err)
	}
	if string(data) != "eml:Q3: Report/Plan*" {
		t.Errorf("content: got %q", data)
	}
}

func TestExport_EmptySubjectUsesDefaultFilename(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(nil)
	files, err := svc.Export(context.Background(), ExportRequest{Formats: formats("oft")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 || files[0].Filename != "Message.oft" {
		t.Errorf("got %+v, want Message.oft", files)
	}
}

func TestExport_SerializerError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	bad := &countingSerializer{name: "oft", mime: "application/vnd.ms-outlook", err: boom}
	svc := New(format.NewRegistry(bad), nil)

	_, err := svc.Export(context.Background(), ExportRequest{})
	if !errors.Is(err, ErrSerialize) {
		t.Errorf("expected ErrSerialize, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
}

func TestExport_InvalidAttachmentSkipsSerializers(t *testing.T) {
	t.Parallel()

	svc, oft, eml := newTestService(nil)
	_, err := svc.Export(context.Background(), ExportRequest{
		Request: compose.Request{
			Attachments: []compose.Attachment{{Filename: "a.bin", ContentBase64: "%%%"}},
		},
	})

	var attErr *compose.AttachmentError
	if !errors.As(err, &attErr) {
		t.Fatalf("expected *compose.AttachmentError, got %v", err)
	}
	if oft.count()+eml.count() != 0 {
		t.Error("serializers must not run when the build fails")
	}
}

func TestPublishTemplate(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	svc, _, _ := newTestService(pub)

	got, err := svc.PublishTemplate(context.Background(), TemplateRequest{
		Name: "welcome_v1",
		Request: compose.Request{
			Subject:  "Welcome {{first}}",
			HtmlBody: "<p>{{name}}</p>",
			TextBody: "{{name}} {{code}}",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Name != "welcome_v1" {
		t.Errorf("Name: got %q", got.Name)
	}
	if want := []string{"{{name}}", "{{first}}", "{{code}}"}; !reflect.DeepEqual(got.Placeholders, want) {
		t.Errorf("Placeholders: got %v, want %v", got.Placeholders, want)
	}
	if pub.name != "welcome_v1" || pub.msg == nil || pub.msg.Subject != "Welcome {{first}}" {
		t.Errorf("publisher received name=%q msg=%+v", pub.name, pub.msg)
	}
}

func TestPublishTemplate_Errors(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(nil)
	if _, err := svc.PublishTemplate(context.Background(), TemplateRequest{Name: "x"}); !errors.Is(err, ErrTemplatesDisabled) {
		t.Errorf("nil publisher: got %v, want ErrTemplatesDisabled", err)
	}

	svc, _, _ = newTestService(&recordingPublisher{})
	for _, name := range []string{"", "has space", "dot.name"} {
		if _, err := svc.PublishTemplate(context.Background(), TemplateRequest{Name: name}); !errors.Is(err, ErrTemplateName) {
			t.Errorf("name %q: got %v, want ErrTemplateName", name, err)
		}
	}

	boom := errors.New("throttled")
	svc, _, _ = newTestService(&recordingPublisher{err: boom})
	_, err := svc.PublishTemplate(context.Background(), TemplateRequest{Name: "ok"})
	if !errors.Is(err, ErrPublish) || !errors.Is(err, boom) {
		t.Errorf("publisher failure: got %v", err)
	}
}
