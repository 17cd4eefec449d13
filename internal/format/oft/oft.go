// Package oft implements a Serializer producing Outlook message templates:
// MAPI property streams stored inside a compound file.
package oft

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/shineum/oft-eml-exporter/internal/email"
)

const (
	// Name is the format name clients request.
	Name = "oft"

	// MIMEType is the media type of produced files.
	MIMEType = "application/vnd.ms-outlook"

	messageClass = "IPM.Note"
	addrTypeSMTP = "SMTP"
	codepageUTF8 = 65001

	msgFlagUnsent    = 0x00000008
	msgFlagHasAttach = 0x00000010

	storeUnicodeOK = 0x00040000

	nativeBodyPlain = 1
	nativeBodyHTML  = 3

	recipientTo  = 1
	recipientCc  = 2
	recipientBcc = 3

	objectTypeMailUser = 6
	objectTypeAttach   = 7

	attachByValue = 1
)

// templateCLSID is {0006F046-0000-0000-C000-000000000046} in on-disk byte
// order. Outlook opens files whose root carries it as templates.
var templateCLSID = [16]byte{
	0x46, 0xF0, 0x06, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xC0, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x46,
}

// Serializer writes messages as .oft templates.
type Serializer struct {
	now func() time.Time
}

// New creates an OFT Serializer stamping templates with the current time.
func New() *Serializer {
	return &Serializer{now: time.Now}
}

// NewWithClock creates an OFT Serializer with a fixed clock, used for testing.
func NewWithClock(now func() time.Time) *Serializer {
	return &Serializer{now: now}
}

// Name returns the format name.
func (s *Serializer) Name() string { return Name }

// Extension returns the file extension.
func (s *Serializer) Extension() string { return "oft" }

// MIMEType returns the media type of produced files.
func (s *Serializer) MIMEType() string { return MIMEType }

// Serialize renders msg as an Outlook template.
func (s *Serializer) Serialize(ctx context.Context, msg *email.Message) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	root := NewCompound()
	root.SetCLSID(templateCLSID)

	nameid := root.Storage("__nameid_version1.0")
	nameid.Stream("__substg1.0_00020102", nil)
	nameid.Stream("__substg1.0_00030102", nil)
	nameid.Stream("__substg1.0_00040102", nil)

	flags := uint32(msgFlagUnsent)
	if len(msg.Attachments) > 0 {
		flags |= msgFlagHasAttach
	}
	native := uint32(nativeBodyPlain)
	if msg.IsHTML {
		native = nativeBodyHTML
	}

	props := []property{
		stringProp(pidMessageClass, messageClass),
		stringProp(pidSubject, msg.Subject),
		stringProp(pidNormalizedSubject, msg.Subject),
		stringProp(pidBody, msg.TextBody),
		stringProp(pidDisplayTo, email.JoinDisplay(msg.To)),
		stringProp(pidDisplayCc, email.JoinDisplay(msg.Cc)),
		stringProp(pidDisplayBcc, email.JoinDisplay(msg.Bcc)),
		int32Prop(pidMessageFlags, flags),
		boolProp(pidHasAttach, len(msg.Attachments) > 0),
		int32Prop(pidNativeBody, native),
		int32Prop(pidStoreSupportMask, storeUnicodeOK),
		int32Prop(pidInternetCPID, codepageUTF8),
		int32Prop(pidMessageCodepage, codepageUTF8),
		timeProp(pidCreationTime, now),
		timeProp(pidLastModTime, now),
	}
	if msg.IsHTML {
		props = append(props, binaryProp(pidHTML, []byte(msg.HtmlBody)))
	}

	recipients := 0
	for _, group := range []struct {
		kind uint32
		list []email.Address
	}{
		{recipientTo, msg.To},
		{recipientCc, msg.Cc},
		{recipientBcc, msg.Bcc},
	} {
		for _, a := range group.list {
			writeRecipient(root, recipients, group.kind, a)
			recipients++
		}
	}

	for i, att := range msg.Attachments {
		writeAttachment(root, i, att)
	}

	writeProperties(root, messageHeader(recipients, len(msg.Attachments)), props)

	out, err := root.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to write oft: %w", err)
	}
	return out, nil
}

func writeRecipient(root *Storage, index int, kind uint32, a email.Address) {
	st := root.Storage(fmt.Sprintf("__recip_version1.0_#%08X", index))
	writeProperties(st, subobjectHeader(), []property{
		int32Prop(pidRecipientType, kind),
		int32Prop(pidRowID, uint32(index)),
		int32Prop(pidObjectType, objectTypeMailUser),
		int32Prop(pidDisplayType, 0),
		stringProp(pidDisplayName, a.DisplayName()),
		stringProp(pidRecipientDisplay, a.DisplayName()),
		stringProp(pidAddrType, addrTypeSMTP),
		stringProp(pidEmailAddress, a.Address),
		stringProp(pidSMTPAddress, a.Address),
	})
}

func writeAttachment(root *Storage, index int, att email.Attachment) {
	st := root.Storage(fmt.Sprintf("__attach_version1.0_#%08X", index))
	writeProperties(st, subobjectHeader(), []property{
		int32Prop(pidAttachNum, uint32(index)),
		int32Prop(pidAttachMethod, attachByValue),
		int32Prop(pidAttachSize, uint32(len(att.Content))),
		int32Prop(pidObjectType, objectTypeAttach),
		int32Prop(pidRenderingPosition, 0xFFFFFFFF),
		stringProp(pidDisplayName, att.Filename),
		stringProp(pidAttachFilename, att.Filename),
		stringProp(pidAttachLongFilename, att.Filename),
		stringProp(pidAttachExtension, filepath.Ext(att.Filename)),
		stringProp(pidAttachMimeTag, att.ContentType),
		binaryProp(pidAttachDataBin, att.Content),
	})
}
