package oft

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"
)

// Compound file (CFB version 3) layout constants.
const (
	sectorSize       = 512
	miniSectorSize   = 64
	miniStreamCutoff = 4096
	dirEntrySize     = 128
	fatPerSector     = sectorSize / 4
	difatPerSector   = fatPerSector - 1
	headerDIFAT      = 109
	maxNameLen       = 31

	freeSect   uint32 = 0xFFFFFFFF
	endOfChain uint32 = 0xFFFFFFFE
	fatSect    uint32 = 0xFFFFFFFD
	difSect    uint32 = 0xFFFFFFFC
	noStream   uint32 = 0xFFFFFFFF

	typeStorage = 1
	typeStream  = 2
	typeRoot    = 5
	colorBlack  = 1
)

var signature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// entry is a storage or stream in the compound file directory.
type entry struct {
	name     string
	stream   bool
	data     []byte
	children []*entry
	clsid    [16]byte

	id          uint32
	left, right uint32
	child       uint32
	start       uint32
}

// Storage is a directory node of a compound file under construction.
type Storage struct {
	e *entry
}

// NewCompound creates the root storage of an empty compound file.
func NewCompound() *Storage {
	return &Storage{e: &entry{name: "Root Entry"}}
}

// Storage adds a child storage.
func (s *Storage) Storage(name string) *Storage {
	child := &entry{name: name}
	s.e.children = append(s.e.children, child)
	return &Storage{e: child}
}

// SetCLSID sets the class id recorded in the storage's directory entry.
func (s *Storage) SetCLSID(id [16]byte) {
	s.e.clsid = id
}

// Stream adds a child stream holding data.
func (s *Storage) Stream(name string, data []byte) {
	s.e.children = append(s.e.children, &entry{name: name, stream: true, data: data})
}

// Bytes lays out the compound file rooted at s.
func (s *Storage) Bytes() ([]byte, error) {
	entries := []*entry{s.e}
	if err := collect(s.e, &entries); err != nil {
		return nil, err
	}
	for i, e := range entries {
		e.id = uint32(i)
	}
	for _, e := range entries {
		e.left, e.right, e.child = noStream, noStream, noStream
	}
	for _, e := range entries {
		if !e.stream {
			e.child = siblingTree(e.children)
		}
	}

	// Small streams share the mini stream; the rest get regular sectors.
	var (
		mini    []byte
		miniFAT []uint32
		large   []*entry
	)
	for _, e := range entries[1:] {
		if !e.stream {
			continue
		}
		switch {
		case len(e.data) == 0:
			e.start = endOfChain
		case len(e.data) < miniStreamCutoff:
			first := uint32(len(miniFAT))
			count := ceilDiv(len(e.data), miniSectorSize)
			for i := 0; i < count; i++ {
				next := first + uint32(i) + 1
				if i == count-1 {
					next = endOfChain
				}
				miniFAT = append(miniFAT, next)
			}
			e.start = first
			mini = append(mini, pad(e.data, miniSectorSize)...)
		default:
			large = append(large, e)
		}
	}

	miniSectors := ceilDiv(len(mini), sectorSize)
	largeSectors := 0
	for _, e := range large {
		largeSectors += ceilDiv(len(e.data), sectorSize)
	}
	miniFATSectors := ceilDiv(len(miniFAT), fatPerSector)
	dirSectors := ceilDiv(len(entries), sectorSize/dirEntrySize)

	base := miniSectors + largeSectors + miniFATSectors + dirSectors
	fatSectors, difatSectors := 0, 0
	for {
		total := base + fatSectors + difatSectors
		needFAT := ceilDiv(total, fatPerSector)
		needDIFAT := 0
		if needFAT > headerDIFAT {
			needDIFAT = ceilDiv(needFAT-headerDIFAT, difatPerSector)
		}
		if needFAT == fatSectors && needDIFAT == difatSectors {
			break
		}
		fatSectors, difatSectors = needFAT, needDIFAT
	}

	fat := make([]uint32, fatSectors*fatPerSector)
	for i := range fat {
		fat[i] = freeSect
	}
	next := 0
	allocate := func(count int) uint32 {
		if count == 0 {
			return endOfChain
		}
		first := next
		for i := 0; i < count; i++ {
			if i == count-1 {
				fat[first+i] = endOfChain
			} else {
				fat[first+i] = uint32(first + i + 1)
			}
		}
		next += count
		return uint32(first)
	}

	root := entries[0]
	root.start = allocate(miniSectors)
	for _, e := range large {
		e.start = allocate(ceilDiv(len(e.data), sectorSize))
	}
	miniFATStart := allocate(miniFATSectors)
	dirStart := allocate(dirSectors)

	fatStart := next
	for i := 0; i < fatSectors; i++ {
		fat[fatStart+i] = fatSect
	}
	difatStart := fatStart + fatSectors
	for i := 0; i < difatSectors; i++ {
		fat[difatStart+i] = difSect
	}

	out := make([]byte, 0, sectorSize*(1+base+fatSectors+difatSectors))
	out = append(out, header(fatSectors, dirStart, miniFATStart, miniFATSectors, fatStart, difatStart, difatSectors)...)

	out = append(out, pad(mini, sectorSize)...)
	for _, e := range large {
		out = append(out, pad(e.data, sectorSize)...)
	}
	out = append(out, uint32Sectors(miniFAT, miniFATSectors)...)

	dir := make([]byte, 0, dirSectors*sectorSize)
	for _, e := range entries {
		dir = append(dir, dirEntry(e, uint64(len(mini)))...)
	}
	for i := len(entries); i < dirSectors*(sectorSize/dirEntrySize); i++ {
		dir = append(dir, unusedDirEntry()...)
	}
	out = append(out, dir...)

	out = append(out, uint32Sectors(fat, fatSectors)...)

	for i := 0; i < difatSectors; i++ {
		sector := make([]uint32, fatPerSector)
		for j := range sector {
			sector[j] = freeSect
		}
		for j := 0; j < difatPerSector; j++ {
			idx := headerDIFAT + i*difatPerSector + j
			if idx < fatSectors {
				sector[j] = uint32(fatStart + idx)
			}
		}
		sector[difatPerSector] = endOfChain
		if i < difatSectors-1 {
			sector[difatPerSector] = uint32(difatStart + i + 1)
		}
		out = append(out, uint32Sectors(sector, 1)...)
	}

	return out, nil
}

func collect(e *entry, entries *[]*entry) error {
	seen := make(map[string]struct{}, len(e.children))
	for _, c := range e.children {
		if len(utf16.Encode([]rune(c.name))) > maxNameLen {
			return fmt.Errorf("compound entry name too long: %q", c.name)
		}
		key := strings.ToUpper(c.name)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("duplicate compound entry name: %q", c.name)
		}
		seen[key] = struct{}{}

		*entries = append(*entries, c)
		if !c.stream {
			if err := collect(c, entries); err != nil {
				return err
			}
		}
	}
	return nil
}

// siblingTree arranges children as a balanced binary search tree in
// directory order and returns the id of its root.
func siblingTree(children []*entry) uint32 {
	sorted := make([]*entry, len(children))
	copy(sorted, children)
	sort.Slice(sorted, func(i, j int) bool {
		return lessName(sorted[i].name, sorted[j].name)
	})
	return buildTree(sorted)
}

func buildTree(sorted []*entry) uint32 {
	if len(sorted) == 0 {
		return noStream
	}
	mid := len(sorted) / 2
	n := sorted[mid]
	n.left = buildTree(sorted[:mid])
	n.right = buildTree(sorted[mid+1:])
	return n.id
}

// lessName orders names the way compound file readers search them: shorter
// names first, then by upper-cased UTF-16 code units.
func lessName(a, b string) bool {
	ua := utf16.Encode([]rune(strings.ToUpper(a)))
	ub := utf16.Encode([]rune(strings.ToUpper(b)))
	if len(ua) != len(ub) {
		return len(ua) < len(ub)
	}
	for i := range ua {
		if ua[i] != ub[i] {
			return ua[i] < ub[i]
		}
	}
	return false
}

func header(fatSectors int, dirStart, miniFATStart uint32, miniFATSectors, fatStart, difatStart, difatSectors int) []byte {
	h := make([]byte, sectorSize)
	le := binary.LittleEndian

	copy(h[0:8], signature)
	le.PutUint16(h[24:], 0x003E)
	le.PutUint16(h[26:], 0x0003)
	le.PutUint16(h[28:], 0xFFFE)
	le.PutUint16(h[30:], 9)
	le.PutUint16(h[32:], 6)
	le.PutUint32(h[44:], uint32(fatSectors))
	le.PutUint32(h[48:], dirStart)
	le.PutUint32(h[56:], miniStreamCutoff)
	le.PutUint32(h[60:], miniFATStart)
	le.PutUint32(h[64:], uint32(miniFATSectors))

	if difatSectors > 0 {
		le.PutUint32(h[68:], uint32(difatStart))
	} else {
		le.PutUint32(h[68:], endOfChain)
	}
	le.PutUint32(h[72:], uint32(difatSectors))

	for i := 0; i < headerDIFAT; i++ {
		v := freeSect
		if i < fatSectors {
			v = uint32(fatStart + i)
		}
		le.PutUint32(h[76+i*4:], v)
	}
	return h
}

func dirEntry(e *entry, miniStreamSize uint64) []byte {
	b := make([]byte, dirEntrySize)
	le := binary.LittleEndian

	name := utf16.Encode([]rune(e.name))
	for i, u := range name {
		le.PutUint16(b[i*2:], u)
	}
	le.PutUint16(b[64:], uint16((len(name)+1)*2))

	var size uint64
	switch {
	case e.id == 0:
		b[66] = typeRoot
		size = miniStreamSize
	case e.stream:
		b[66] = typeStream
		size = uint64(len(e.data))
	default:
		b[66] = typeStorage
	}
	b[67] = colorBlack

	le.PutUint32(b[68:], e.left)
	le.PutUint32(b[72:], e.right)
	le.PutUint32(b[76:], e.child)
	copy(b[80:96], e.clsid[:])

	start := e.start
	if !e.stream && e.id != 0 {
		start = 0
	}
	le.PutUint32(b[116:], start)
	le.PutUint64(b[120:], size)
	return b
}

func unusedDirEntry() []byte {
	b := make([]byte, dirEntrySize)
	le := binary.LittleEndian
	le.PutUint32(b[68:], noStream)
	le.PutUint32(b[72:], noStream)
	le.PutUint32(b[76:], noStream)
	return b
}

// uint32Sectors encodes values into exactly n sectors, padding with FREESECT.
func uint32Sectors(values []uint32, n int) []byte {
	b := make([]byte, n*sectorSize)
	for i := 0; i < n*fatPerSector; i++ {
		v := freeSect
		if i < len(values) {
			v = values[i]
		}
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
	return b
}

func pad(data []byte, size int) []byte {
	rem := len(data) % size
	if rem == 0 {
		return data
	}
	out := make([]byte, len(data)+size-rem)
	copy(out, data)
	return out
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}
