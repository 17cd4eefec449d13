package address

import (
	"reflect"
	"testing"

	"github.com/shineum/oft-eml-exporter/internal/email"
)

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "single", raw: "a@x.com", want: []string{"a@x.com"}},
		{name: "comma and semicolon", raw: "a@x.com, b@x.com; c@x.com", want: []string{"a@x.com", "b@x.com", "c@x.com"}},
		{name: "empty segments", raw: " ,; a@x.com ;;", want: []string{"a@x.com"}},
		{name: "blank", raw: "   ", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Split(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split(%q): got %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	addr, ok := Parse("Jane Doe <jane@example.com>")
	if !ok {
		t.Fatal("expected display-name form to be valid")
	}
	if addr.Address != "jane@example.com" {
		t.Errorf("Address: got %q, want %q", addr.Address, "jane@example.com")
	}
	if addr.Name != "Jane Doe" {
		t.Errorf("Name: got %q, want %q", addr.Name, "Jane Doe")
	}

	for _, bad := range []string{"not-an-address", "@x.com", "a@", ""} {
		if _, ok := Parse(bad); ok {
			t.Errorf("Parse(%q): expected invalid", bad)
		}
	}
}

func TestNormalize_SplitsAndDedupes(t *testing.T) {
	t.Parallel()

	got := email.Addresses(Normalize([]string{"a@x.com, b@x.com; b@x.com"}))
	want := []string{"a@x.com", "b@x.com"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNormalize_DropsInvalid(t *testing.T) {
	t.Parallel()

	got := email.Addresses(Normalize([]string{"not-an-address", "c@x.com"}))
	want := []string{"c@x.com"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNormalize_FirstOccurrenceWins(t *testing.T) {
	t.Parallel()

	got := Normalize([]string{"Alice <a@x.com>", "a@x.com", "b@x.com"})
	if len(got) != 2 {
		t.Fatalf("got %d addresses, want 2", len(got))
	}
	if got[0].Name != "Alice" || got[0].Address != "a@x.com" {
		t.Errorf("first: got %+v, want Alice <a@x.com>", got[0])
	}
	if got[1].Address != "b@x.com" {
		t.Errorf("second: got %q, want %q", got[1].Address, "b@x.com")
	}
}

func TestNormalize_CaseSensitiveDedup(t *testing.T) {
	t.Parallel()

	got := email.Addresses(Normalize([]string{"A@x.com; a@x.com"}))
	want := []string{"A@x.com", "a@x.com"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	first := email.Addresses(Normalize([]string{"x@y.com;z@y.com", " x@y.com ", "bogus", "w@y.com"}))
	second := email.Addresses(Normalize(first))
	if !reflect.DeepEqual(first, second) {
		t.Errorf("not idempotent: first %v, second %v", first, second)
	}
}

func TestNormalize_NilInput(t *testing.T) {
	t.Parallel()

	got := Normalize(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil slice", got)
	}
}
