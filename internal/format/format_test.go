package format

import (
	"context"
	"reflect"
	"testing"

	"github.com/shineum/oft-eml-exporter/internal/email"
)

type fakeSerializer struct {
	name string
}

func (f fakeSerializer) Name() string      { return f.name }
func (f fakeSerializer) Extension() string { return f.name }
func (f fakeSerializer) MIMEType() string  { return "application/x-" + f.name }

func (f fakeSerializer) Serialize(_ context.Context, _ *email.Message) ([]byte, error) {
	return []byte(f.name), nil
}

func TestRegistry_OrderAndLookup(t *testing.T) {
	t.Parallel()

	r := NewRegistry(fakeSerializer{"oft"}, fakeSerializer{"EML"}, fakeSerializer{"oft"})

	if got, want := r.Names(), []string{"oft", "eml"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names: got %v, want %v", got, want)
	}

	s, ok := r.Lookup("Eml")
	if !ok {
		t.Fatal("Lookup(Eml): not found")
	}
	if s.Name() != "EML" {
		t.Errorf("Lookup(Eml): got %q", s.Name())
	}

	if _, ok := r.Lookup("pdf"); ok {
		t.Error("Lookup(pdf): expected miss")
	}
}

func TestRegistry_AllReturnsCopy(t *testing.T) {
	t.Parallel()

	r := NewRegistry(fakeSerializer{"oft"})
	all := r.All()
	all[0] = fakeSerializer{"changed"}

	if r.All()[0].Name() != "oft" {
		t.Error("All must not expose internal slice")
	}
}
