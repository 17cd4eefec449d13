package oft

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/richardlehane/mscfb"
)

// readAll returns every non-empty stream of a compound file keyed by path.
func readAll(t *testing.T, raw []byte) map[string][]byte {
	t.Helper()

	doc, err := mscfb.New(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("mscfb.New: %v", err)
	}

	out := make(map[string][]byte)
	for {
		entry, err := doc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if entry.Size == 0 {
			continue
		}
		data := make([]byte, entry.Size)
		if _, err := io.ReadFull(entry, data); err != nil {
			t.Fatalf("read %q: %v", entry.Name, err)
		}
		out[entryKey(entry.Path, entry.Name)] = data
	}
	return out
}

func filled(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i%251)
	}
	return b
}

func TestCompound_Header(t *testing.T) {
	t.Parallel()

	root := NewCompound()
	root.Stream("small", []byte("hello"))

	raw, err := root.Bytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(raw)%sectorSize != 0 {
		t.Errorf("file size %d is not a multiple of %d", len(raw), sectorSize)
	}
	if !bytes.Equal(raw[:8], signature) {
		t.Errorf("signature: got % x", raw[:8])
	}
	if got := binary.LittleEndian.Uint16(raw[26:]); got != 3 {
		t.Errorf("major version: got %d, want 3", got)
	}
	if got := binary.LittleEndian.Uint32(raw[56:]); got != miniStreamCutoff {
		t.Errorf("mini stream cutoff: got %d, want %d", got, miniStreamCutoff)
	}
	if got := binary.LittleEndian.Uint32(raw[68:]); got != endOfChain {
		t.Errorf("first DIFAT sector: got %#x, want ENDOFCHAIN", got)
	}
}

func TestCompound_CLSIDOnlyWhereSet(t *testing.T) {
	t.Parallel()

	id := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	root := NewCompound()
	root.SetCLSID(id)
	root.Storage("sub").Stream("s", []byte("x"))

	raw, err := root.Bytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dir := raw[sectorSize+int(binary.LittleEndian.Uint32(raw[48:]))*sectorSize:]
	if !bytes.Equal(dir[80:96], id[:]) {
		t.Errorf("root CLSID: got % x", dir[80:96])
	}
	for i := 1; i < 3; i++ {
		e := dir[i*dirEntrySize:]
		if !bytes.Equal(e[80:96], make([]byte, 16)) {
			t.Errorf("entry %d CLSID: got % x, want zero", i, e[80:96])
		}
	}
}

func TestCompound_MiniAndRegularStreams(t *testing.T) {
	t.Parallel()

	small := filled(100, 1)
	medium := filled(miniStreamCutoff-1, 2)
	large := filled(miniStreamCutoff*3+17, 3)

	root := NewCompound()
	root.Stream("small", small)
	sub := root.Storage("sub")
	sub.Stream("medium", medium)
	sub.Stream("large", large)
	sub.Stream("empty", nil)

	raw, err := root.Bytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	streams := readAll(t, raw)
	if !bytes.Equal(streams["small"], small) {
		t.Error("small stream mismatch")
	}
	if !bytes.Equal(streams["sub/medium"], medium) {
		t.Error("medium stream mismatch")
	}
	if !bytes.Equal(streams["sub/large"], large) {
		t.Error("large stream mismatch")
	}
}

func TestCompound_ManyEntries(t *testing.T) {
	t.Parallel()

	root := NewCompound()
	want := make(map[string][]byte)
	for i := 0; i < 40; i++ {
		name := "s" + string(rune('A'+i%26)) + string(rune('a'+i/26))
		data := filled(10+i*7, byte(i))
		root.Stream(name, data)
		want[name] = data
	}

	raw, err := root.Bytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	streams := readAll(t, raw)
	for name, data := range want {
		if !bytes.Equal(streams[name], data) {
			t.Errorf("stream %q mismatch", name)
		}
	}
}

func TestCompound_DIFATForLargeFiles(t *testing.T) {
	t.Parallel()

	// More than 109 FAT sectors are needed past ~7 MB.
	big := filled(8<<20, 7)

	root := NewCompound()
	root.Stream("big", big)

	raw, err := root.Bytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := binary.LittleEndian.Uint32(raw[72:]); got == 0 {
		t.Fatal("expected at least one DIFAT sector")
	}

	streams := readAll(t, raw)
	if !bytes.Equal(streams["big"], big) {
		t.Error("big stream mismatch")
	}
}

func TestCompound_RejectsBadNames(t *testing.T) {
	t.Parallel()

	root := NewCompound()
	root.Stream("this-name-is-definitely-longer-than-31", nil)
	if _, err := root.Bytes(); err == nil {
		t.Error("expected error for long name")
	}

	root = NewCompound()
	root.Stream("dup", nil)
	root.Stream("DUP", nil)
	if _, err := root.Bytes(); err == nil {
		t.Error("expected error for duplicate name")
	}
}

func TestLessName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want bool
	}{
		{"b", "aa", true},
		{"aa", "b", false},
		{"abc", "ABD", true},
		{"ABC", "abc", false},
	}
	for _, tt := range tests {
		if got := lessName(tt.a, tt.b); got != tt.want {
			t.Errorf("lessName(%q, %q): got %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
