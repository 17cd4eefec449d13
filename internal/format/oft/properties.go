package oft

import (
	"encoding/binary"
	"fmt"
	"sort"
	"time"
	"unicode/utf16"
)

// MAPI property types.
const (
	ptInt32   uint16 = 0x0003
	ptBoolean uint16 = 0x000B
	ptTime    uint16 = 0x0040
	ptString  uint16 = 0x001F
	ptBinary  uint16 = 0x0102
)

// MAPI property identifiers used by message templates.
const (
	pidMessageClass       uint16 = 0x001A
	pidSubject            uint16 = 0x0037
	pidDisplayBcc         uint16 = 0x0E02
	pidDisplayCc          uint16 = 0x0E03
	pidDisplayTo          uint16 = 0x0E04
	pidMessageFlags       uint16 = 0x0E07
	pidHasAttach          uint16 = 0x0E1B
	pidNormalizedSubject  uint16 = 0x0E1D
	pidAttachSize         uint16 = 0x0E20
	pidAttachNum          uint16 = 0x0E21
	pidRecipientType      uint16 = 0x0C15
	pidObjectType         uint16 = 0x0FFE
	pidBody               uint16 = 0x1000
	pidHTML               uint16 = 0x1013
	pidNativeBody         uint16 = 0x1016
	pidRowID              uint16 = 0x3000
	pidDisplayName        uint16 = 0x3001
	pidAddrType           uint16 = 0x3002
	pidEmailAddress       uint16 = 0x3003
	pidCreationTime       uint16 = 0x3007
	pidLastModTime        uint16 = 0x3008
	pidStoreSupportMask   uint16 = 0x340D
	pidAttachDataBin      uint16 = 0x3701
	pidAttachExtension    uint16 = 0x3703
	pidAttachFilename     uint16 = 0x3704
	pidAttachMethod       uint16 = 0x3705
	pidAttachLongFilename uint16 = 0x3707
	pidRenderingPosition  uint16 = 0x370B
	pidAttachMimeTag      uint16 = 0x370E
	pidDisplayType        uint16 = 0x3900
	pidSMTPAddress        uint16 = 0x39FE
	pidInternetCPID       uint16 = 0x3FDE
	pidMessageCodepage    uint16 = 0x3FFD
	pidRecipientDisplay   uint16 = 0x5FF6
)

const (
	propReadable = 0x2
	propWritable = 0x4

	propertyStreamName = "__properties_version1.0"

	// filetimeEpochOffset is the number of 100ns intervals between
	// 1601-01-01 and the Unix epoch.
	filetimeEpochOffset = 116444736000000000
)

// property is a single MAPI property value.
type property struct {
	id    uint16
	typ   uint16
	fixed uint64
	data  []byte
}

func (p property) tag() uint32 {
	return uint32(p.id)<<16 | uint32(p.typ)
}

func int32Prop(id uint16, v uint32) property {
	return property{id: id, typ: ptInt32, fixed: uint64(v)}
}

func boolProp(id uint16, v bool) property {
	p := property{id: id, typ: ptBoolean}
	if v {
		p.fixed = 1
	}
	return p
}

func timeProp(id uint16, t time.Time) property {
	return property{id: id, typ: ptTime, fixed: uint64(t.UnixNano()/100 + filetimeEpochOffset)}
}

func stringProp(id uint16, s string) property {
	return property{id: id, typ: ptString, data: encodeUTF16(s)}
}

func binaryProp(id uint16, b []byte) property {
	return property{id: id, typ: ptBinary, data: b}
}

func (p property) variable() bool {
	return p.typ == ptString || p.typ == ptBinary
}

// streamName is the name of the substorage stream holding a variable-length value.
func (p property) streamName() string {
	return fmt.Sprintf("__substg1.0_%04X%04X", p.id, p.typ)
}

// writeProperties stores props under st: one fixed-size entry per property
// in the property stream and one stream per variable-length value. header
// is the object-specific prefix of the property stream.
func writeProperties(st *Storage, header []byte, props []property) {
	sorted := make([]property, len(props))
	copy(sorted, props)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].tag() < sorted[j].tag() })

	buf := make([]byte, len(header), len(header)+16*len(sorted))
	copy(buf, header)

	le := binary.LittleEndian
	for _, p := range sorted {
		var rec [16]byte
		le.PutUint32(rec[0:], p.tag())
		le.PutUint32(rec[4:], propReadable|propWritable)

		if p.variable() {
			size := uint32(len(p.data))
			if p.typ == ptString {
				// Size counts the terminating null that the stream omits.
				size += 2
			}
			le.PutUint32(rec[8:], size)
			st.Stream(p.streamName(), p.data)
		} else {
			le.PutUint64(rec[8:], p.fixed)
		}
		buf = append(buf, rec[:]...)
	}

	st.Stream(propertyStreamName, buf)
}

// messageHeader is the 32-byte property stream prefix of a top-level message.
func messageHeader(recipients, attachments int) []byte {
	h := make([]byte, 32)
	le := binary.LittleEndian
	le.PutUint32(h[8:], uint32(recipients))
	le.PutUint32(h[12:], uint32(attachments))
	le.PutUint32(h[16:], uint32(recipients))
	le.PutUint32(h[20:], uint32(attachments))
	return h
}

// subobjectHeader is the 8-byte reserved prefix of recipient and attachment
// property streams.
func subobjectHeader() []byte {
	return make([]byte, 8)
}

func encodeUTF16(s string) []byte {
	units := utf16.Encode([]rune(s))
	b := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(b[i*2:], u)
	}
	return b
}

func decodeUTF16(b []byte) string {
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	return string(utf16.Decode(units))
}
