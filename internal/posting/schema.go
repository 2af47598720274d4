// Package posting defines the fixed-width posting record shared by every
// postings store, the PropertySchema that describes its slots, and the pull
// iterator contract consumed by the merge, intersect and scoring engines.
package posting

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/errors"
)

// Kind is the scalar type held by a property slot.
type Kind uint8

const (
	KindInt Kind = iota + 1
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Property describes one named slot of a schema.
type Property struct {
	Name string
	Kind Kind
	Slot int
}

// Schema is a closed, ordered set of named, typed property slots. Slots are
// ordered by property name, so two schemas built from the same properties
// encode identically.
type Schema struct {
	name  string
	props []Property
	index map[string]int
}

// SchemaBuilder fixes the slot layout of a Schema once, at Build time.
type SchemaBuilder struct {
	name  string
	kinds map[string]Kind
	err   error
}

// NewSchema starts a schema for the posting type called name.
func NewSchema(name string) *SchemaBuilder {
	return &SchemaBuilder{name: name, kinds: make(map[string]Kind)}
}

func (b *SchemaBuilder) Int(name string) *SchemaBuilder {
	return b.add(name, KindInt)
}

func (b *SchemaBuilder) Float(name string) *SchemaBuilder {
	return b.add(name, KindFloat)
}

func (b *SchemaBuilder) add(name string, kind Kind) *SchemaBuilder {
	if b.err != nil {
		return b
	}
	if name == "" || strings.ContainsAny(name, reservedBytes) {
		b.err = apperrors.Preconditionf("schema %s: invalid property name %q", b.name, name)
		return b
	}
	if _, exists := b.kinds[name]; exists {
		b.err = apperrors.Preconditionf("schema %s: property %q declared twice", b.name, name)
		return b
	}
	b.kinds[name] = kind
	return b
}

// Build sorts the declared properties by name and assigns slot indexes.
func (b *SchemaBuilder) Build() (*Schema, error) {
	if b.err != nil {
		return nil, b.err
	}
	names := make([]string, 0, len(b.kinds))
	for name := range b.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	s := &Schema{
		name:  b.name,
		props: make([]Property, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, name := range names {
		s.props[i] = Property{Name: name, Kind: b.kinds[name], Slot: i}
		s.index[name] = i
	}
	return s, nil
}

// MustBuild is like Build but panics on a declaration error. It is meant for
// package-level schema variables.
func (b *SchemaBuilder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Name() string { return s.name }

// Len returns the number of property slots.
func (s *Schema) Len() int { return len(s.props) }

// IndexOf returns the slot index of the named property.
func (s *Schema) IndexOf(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Property returns the descriptor of slot i.
func (s *Schema) Property(i int) Property { return s.props[i] }

// Properties returns the slot descriptors in slot order.
func (s *Schema) Properties() []Property {
	out := make([]Property, len(s.props))
	copy(out, s.props)
	return out
}

// Compatible reports whether postings of s and other share a layout.
func (s *Schema) Compatible(other *Schema) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil || len(s.props) != len(other.props) {
		return false
	}
	for i := range s.props {
		if s.props[i].Name != other.props[i].Name || s.props[i].Kind != other.props[i].Kind {
			return false
		}
	}
	return true
}

func (s *Schema) mustIndex(name string) int {
	i, ok := s.index[name]
	if !ok {
		panic(fmt.Sprintf("posting: schema %s has no property %q", s.name, name))
	}
	return i
}

func (s *Schema) String() string {
	parts := make([]string, len(s.props))
	for i, p := range s.props {
		parts[i] = p.Name + ":" + p.Kind.String()
	}
	return s.name + "{" + strings.Join(parts, ",") + "}"
}
