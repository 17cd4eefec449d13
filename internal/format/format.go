// Package format defines the interface for message file serializers and a
// registry that resolves them by name.
package format

import (
	"context"
	"strings"

	"github.com/shineum/oft-eml-exporter/internal/email"
)

// Serializer turns a built message into the bytes of one file format.
type Serializer interface {
	// Name is the lower-case format name clients request, e.g. "eml".
	Name() string

	// Extension is the file extension without the leading dot.
	Extension() string

	// MIMEType is the media type of the produced file.
	MIMEType() string

	// Serialize renders msg. It must not modify msg.
	Serialize(ctx context.Context, msg *email.Message) ([]byte, error)
}

// Registry holds serializers in registration order.
type Registry struct {
	ordered []Serializer
	byName  map[string]Serializer
}

// NewRegistry creates a Registry. Later serializers with a duplicate name
// are ignored.
func NewRegistry(serializers ...Serializer) *Registry {
	r := &Registry{byName: make(map[string]Serializer, len(serializers))}
	for _, s := range serializers {
		name := strings.ToLower(s.Name())
		if _, ok := r.byName[name]; ok {
			continue
		}
		r.byName[name] = s
		r.ordered = append(r.ordered, s)
	}
	return r
}

// Lookup finds a serializer by case-insensitive name.
func (r *Registry) Lookup(name string) (Serializer, bool) {
	s, ok := r.byName[strings.ToLower(name)]
	return s, ok
}

// All returns the serializers in registration order.
func (r *Registry) All() []Serializer {
	out := make([]Serializer, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Names returns the registered format names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ordered))
	for _, s := range r.ordered {
		names = append(names, strings.ToLower(s.Name()))
	}
	return names
}
