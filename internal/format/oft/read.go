package oft

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/richardlehane/mscfb"

	"github.com/shineum/oft-eml-exporter/internal/email"
)

const (
	recipientPrefix  = "__recip_version1.0_#"
	attachmentPrefix = "__attach_version1.0_#"
)

// Read loads an Outlook message or template back into the message model.
// Only the properties this package writes are interpreted.
func Read(raw []byte) (*email.Message, error) {
	doc, err := mscfb.New(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to open compound file: %w", err)
	}

	streams := make(map[string][]byte)
	for {
		entry, err := doc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read compound directory: %w", err)
		}
		if entry.Size == 0 {
			continue
		}
		data := make([]byte, entry.Size)
		if _, err := io.ReadFull(entry, data); err != nil {
			return nil, fmt.Errorf("failed to read stream %q: %w", entry.Name, err)
		}
		streams[entryKey(entry.Path, entry.Name)] = data
	}

	top := objectView{streams: streams}
	msg := &email.Message{
		Subject:  top.str(pidSubject),
		TextBody: top.str(pidBody),
		HtmlBody: string(top.bin(pidHTML)),
	}
	msg.IsHTML = strings.TrimSpace(msg.HtmlBody) != ""

	for _, name := range subobjects(streams, recipientPrefix) {
		r := objectView{streams: streams, dir: name}
		addr := email.Address{Address: r.str(pidSMTPAddress)}
		if addr.Address == "" {
			addr.Address = r.str(pidEmailAddress)
		}
		if display := r.str(pidDisplayName); display != addr.Address {
			addr.Name = display
		}

		switch r.integer(pidRecipientType) {
		case recipientCc:
			msg.Cc = append(msg.Cc, addr)
		case recipientBcc:
			msg.Bcc = append(msg.Bcc, addr)
		default:
			msg.To = append(msg.To, addr)
		}
	}

	for _, name := range subobjects(streams, attachmentPrefix) {
		a := objectView{streams: streams, dir: name}
		filename := a.str(pidAttachLongFilename)
		if filename == "" {
			filename = a.str(pidAttachFilename)
		}
		msg.Attachments = append(msg.Attachments, email.Attachment{
			Filename:    filename,
			ContentType: a.str(pidAttachMimeTag),
			Content:     a.bin(pidAttachDataBin),
		})
	}

	return msg, nil
}

// IsCompound reports whether raw starts with the compound file signature.
func IsCompound(raw []byte) bool {
	return bytes.HasPrefix(raw, signature)
}

// entryKey joins a directory path below the root entry with name.
func entryKey(path []string, name string) string {
	parts := make([]string, 0, len(path)+1)
	for _, p := range path {
		if p == "" || p == "Root Entry" {
			continue
		}
		parts = append(parts, p)
	}
	return strings.Join(append(parts, name), "/")
}

// subobjects returns the sorted names of top-level storages with prefix.
func subobjects(streams map[string][]byte, prefix string) []string {
	set := make(map[string]struct{})
	for key := range streams {
		dir, _, ok := strings.Cut(key, "/")
		if ok && strings.HasPrefix(dir, prefix) {
			set[dir] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// objectView reads the properties of the object stored in dir ("" for the
// message itself).
type objectView struct {
	streams map[string][]byte
	dir     string
}

func (v objectView) stream(name string) []byte {
	if v.dir == "" {
		return v.streams[name]
	}
	return v.streams[v.dir+"/"+name]
}

func (v objectView) str(id uint16) string {
	return decodeUTF16(v.stream(property{id: id, typ: ptString}.streamName()))
}

func (v objectView) bin(id uint16) []byte {
	return v.stream(property{id: id, typ: ptBinary}.streamName())
}

// integer looks up a fixed-size PtypInteger32 value in the property stream.
func (v objectView) integer(id uint16) uint32 {
	headerLen := 8
	if v.dir == "" {
		headerLen = 32
	}
	data := v.stream(propertyStreamName)
	want := property{id: id, typ: ptInt32}.tag()

	for off := headerLen; off+16 <= len(data); off += 16 {
		if binary.LittleEndian.Uint32(data[off:]) == want {
			return binary.LittleEndian.Uint32(data[off+8:])
		}
	}
	return 0
}
