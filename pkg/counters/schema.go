package counters

import (
	"fmt"
	"slices"
)

// Header names present at the start of every schema, in wire order.
const (
	HeaderBackend   = "metric_backend"
	HeaderHostname  = "hostname"
	HeaderJobID     = "job_id"
	HeaderTimestamp = "timestamp"

	// NameWidth is the width of the backend and hostname headers. A receiver
	// peeks this many bytes to learn which schema follows.
	NameWidth = 255
)

// StandardHeaders returns the headers every schema starts with.
func StandardHeaders() []FieldDefinition {
	return []FieldDefinition{
		{Name: HeaderBackend, Type: String(NameWidth), Unit: Label, Rule: None, Description: "Metric backend"},
		{Name: HeaderHostname, Type: String(NameWidth), Unit: Label, Rule: None, Description: "Hostname"},
		{Name: HeaderJobID, Type: UInt64, Unit: Raw, Rule: None, Description: "Job id"},
		{Name: HeaderTimestamp, Type: UInt64, Unit: Date, Rule: None, Description: "Timestamp"},
	}
}

// FieldDefinition declares one header or counter.
type FieldDefinition struct {
	Name        string
	Type        FieldType
	Unit        DisplayUnit
	Rule        Rule
	Description string
}

// Field is a FieldDefinition placed in a schema.
type Field struct {
	FieldDefinition
	Index  int
	Offset int
	Header bool
}

// Accessor reads and writes one field of a packed buffer in place.
type Accessor struct {
	Get func(buf []byte) any
	Set func(buf []byte, v any) error
}

// Schema is an immutable record layout identified by name. Headers come
// first, then counters, each in declaration order.
type Schema struct {
	name     string
	parent   string
	fields   []Field
	nHeaders int
	index    map[string]int
	access   map[string]Accessor
	length   int
}

func (s *Schema) Name() string   { return s.name }
func (s *Schema) Parent() string { return s.parent }

// Len is the packed record length in bytes.
func (s *Schema) Len() int { return s.length }

// Fields returns headers followed by counters.
func (s *Schema) Fields() []Field { return slices.Clone(s.fields) }

func (s *Schema) Headers() []Field  { return slices.Clone(s.fields[:s.nHeaders]) }
func (s *Schema) Counters() []Field { return slices.Clone(s.fields[s.nHeaders:]) }

// Field looks up a header or counter by name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Accessor returns the packed-buffer getter/setter pair for a field.
func (s *Schema) Accessor(name string) (Accessor, bool) {
	a, ok := s.access[name]
	return a, ok
}

// Equal reports whether two schemas have the same name and layout.
func (s *Schema) Equal(o *Schema) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil || s.name != o.name || s.length != o.length || len(s.fields) != len(o.fields) {
		return false
	}
	for i := range s.fields {
		a, b := s.fields[i], o.fields[i]
		if a.Name != b.Name || a.Type != b.Type || a.Rule != b.Rule || a.Offset != b.Offset {
			return false
		}
	}
	return true
}

// DefineSchema builds a schema from explicit extra header and counter lists.
func DefineSchema(name string, headers, counters []FieldDefinition) (*Schema, error) {
	b := NewSchemaBuilder(name)
	for _, h := range headers {
		b.Header(h.Name, h.Type, h.Unit, h.Description)
	}
	for _, c := range counters {
		b.Counter(c.Name, c.Type, c.Unit, c.Rule, c.Description)
	}
	return b.Build()
}

// ============================================================================
// Builder
// ============================================================================

// SchemaBuilder collects ordered field declarations and produces a Schema.
type SchemaBuilder struct {
	name     string
	parents  []*Schema
	headers  []FieldDefinition
	counters []FieldDefinition
}

func NewSchemaBuilder(name string) *SchemaBuilder {
	return &SchemaBuilder{name: name}
}

// Derive makes the new schema start with all fields of parent. Only one
// parent is allowed; Build fails otherwise.
func (b *SchemaBuilder) Derive(parent *Schema) *SchemaBuilder {
	b.parents = append(b.parents, parent)
	return b
}

// Header declares an extra header after the inherited ones.
func (b *SchemaBuilder) Header(name string, t FieldType, unit DisplayUnit, description string) *SchemaBuilder {
	b.headers = append(b.headers, FieldDefinition{
		Name: name, Type: t, Unit: unit, Rule: None, Description: description,
	})
	return b
}

// Counter declares a counter after the inherited ones.
func (b *SchemaBuilder) Counter(name string, t FieldType, unit DisplayUnit, rule Rule, description string) *SchemaBuilder {
	b.counters = append(b.counters, FieldDefinition{
		Name: name, Type: t, Unit: unit, Rule: rule, Description: description,
	})
	return b
}

func (b *SchemaBuilder) Build() (*Schema, error) {
	if b.name == "" {
		return nil, fmt.Errorf("schema name is empty")
	}
	if len(b.name) > NameWidth {
		return nil, fmt.Errorf("schema name %q longer than %d bytes", b.name, NameWidth)
	}
	if len(b.parents) > 1 {
		return nil, fmt.Errorf("schema %q: %w", b.name, ErrMultipleParents)
	}

	var headers, counters []FieldDefinition
	parent := ""
	if len(b.parents) == 1 {
		p := b.parents[0]
		parent = p.name
		for _, f := range p.fields[:p.nHeaders] {
			headers = append(headers, f.FieldDefinition)
		}
		for _, f := range p.fields[p.nHeaders:] {
			counters = append(counters, f.FieldDefinition)
		}
	} else {
		headers = StandardHeaders()
	}
	headers = append(headers, b.headers...)
	counters = append(counters, b.counters...)

	s := &Schema{
		name:     b.name,
		parent:   parent,
		fields:   make([]Field, 0, len(headers)+len(counters)),
		nHeaders: len(headers),
		index:    make(map[string]int, len(headers)+len(counters)),
		access:   make(map[string]Accessor, len(headers)+len(counters)),
	}

	offset := 0
	for i, def := range slices.Concat(headers, counters) {
		if _, dup := s.index[def.Name]; dup {
			return nil, &DuplicateFieldError{Schema: b.name, Field: def.Name}
		}
		if def.Type.width == 0 {
			return nil, fmt.Errorf("schema %q: field %q has no type", b.name, def.Name)
		}
		if def.Rule == "" {
			def.Rule = None
		}
		if !def.Rule.validFor(def.Type) {
			return nil, fmt.Errorf("schema %q: field %q: %w: %s on %s",
				b.name, def.Name, ErrInvalidRule, def.Rule, def.Type.name)
		}
		f := Field{FieldDefinition: def, Index: i, Offset: offset, Header: i < len(headers)}
		s.fields = append(s.fields, f)
		s.index[def.Name] = i
		s.access[def.Name] = newAccessor(f)
		offset += def.Type.width
	}
	s.length = offset
	return s, nil
}

// MustBuild is Build for schemas declared at startup.
func (b *SchemaBuilder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

func newAccessor(f Field) Accessor {
	t, lo, hi := f.Type, f.Offset, f.Offset+f.Type.width
	return Accessor{
		Get: func(buf []byte) any {
			return t.Decode(buf[lo:hi])
		},
		Set: func(buf []byte, v any) error {
			return t.Encode(buf[lo:hi], v)
		},
	}
}
