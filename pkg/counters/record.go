package counters

import (
	"fmt"
	"maps"
	"slices"

	"colmet/pkg/utils"
)

// Record is one instance of a schema, held either as *Packed (a byte
// buffer) or *Unpacked (decoded values). Converting between the two is
// explicit: Packed.Unpack and Unpacked.Pack.
type Record interface {
	Schema() *Schema
	isRecord()
}

// ============================================================================
// Packed
// ============================================================================

// Packed is a record in wire form.
type Packed struct {
	schema *Schema
	buf    []byte
}

// View wraps buf as a packed record of schema s without copying.
func View(s *Schema, buf []byte) (*Packed, error) {
	if len(buf) != s.length {
		return nil, &LengthMismatchError{Schema: s.name, Want: s.length, Got: len(buf)}
	}
	if tag := PeekBackend(buf); tag != s.name {
		return nil, &SchemaMismatchError{Want: s.name, Got: tag}
	}
	return &Packed{schema: s, buf: buf}, nil
}

// Copy is View over a private copy of buf.
func Copy(s *Schema, buf []byte) (*Packed, error) {
	return View(s, slices.Clone(buf))
}

// PeekBackend decodes the backend-name header at the start of buf.
func PeekBackend(buf []byte) string {
	if len(buf) < NameWidth {
		return ""
	}
	return String(NameWidth).Decode(buf[:NameWidth]).(string)
}

func (p *Packed) Schema() *Schema { return p.schema }
func (*Packed) isRecord()         {}

// Bytes returns the underlying buffer.
func (p *Packed) Bytes() []byte { return p.buf }

// Get reads one field from the buffer.
func (p *Packed) Get(name string) (any, error) {
	a, ok := p.schema.access[name]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", p.schema.name, name, ErrUnknownField)
	}
	return a.Get(p.buf), nil
}

// Set writes one field into the buffer in place.
func (p *Packed) Set(name string, v any) error {
	if name == HeaderBackend {
		return fmt.Errorf("%s.%s is fixed by the schema", p.schema.name, name)
	}
	a, ok := p.schema.access[name]
	if !ok {
		return fmt.Errorf("%s.%s: %w", p.schema.name, name, ErrUnknownField)
	}
	return a.Set(p.buf, v)
}

// Unpack decodes every field into a new Unpacked record.
func (p *Packed) Unpack() *Unpacked {
	u := &Unpacked{schema: p.schema, values: make([]any, len(p.schema.fields))}
	for i, f := range p.schema.fields {
		u.values[i] = f.Type.Decode(p.buf[f.Offset : f.Offset+f.Type.width])
	}
	return u
}

// ============================================================================
// Unpacked
// ============================================================================

// Unpacked is a record held as decoded values. A nil counter is missing.
type Unpacked struct {
	schema *Schema
	values []any
}

// New returns a zero-filled record of schema s.
func New(s *Schema) *Unpacked {
	u := &Unpacked{schema: s, values: make([]any, len(s.fields))}
	for i, f := range s.fields {
		u.values[i] = f.Type.Zero()
	}
	u.values[0] = s.name
	return u
}

// Empty returns a record of schema s whose counters are all missing.
func Empty(s *Schema) *Unpacked {
	u := New(s)
	for i := s.nHeaders; i < len(u.values); i++ {
		u.values[i] = nil
	}
	return u
}

// FromValues builds a record from a name-to-value map. Fields not in the
// map are missing. Unknown names are an error.
func FromValues(s *Schema, values map[string]any) (*Unpacked, error) {
	u := Empty(s)
	for _, name := range slices.Sorted(maps.Keys(values)) {
		if name == HeaderBackend {
			if utils.ToString(values[name]) != s.name {
				return nil, &SchemaMismatchError{Want: s.name, Got: utils.ToString(values[name])}
			}
			continue
		}
		if err := u.Set(name, values[name]); err != nil {
			return nil, err
		}
	}
	return u, nil
}

func (u *Unpacked) Schema() *Schema { return u.schema }
func (*Unpacked) isRecord()         {}

// Get returns a field value, nil when missing.
func (u *Unpacked) Get(name string) (any, error) {
	i, ok := u.schema.index[name]
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", u.schema.name, name, ErrUnknownField)
	}
	return u.values[i], nil
}

// Value is Get that ignores unknown names.
func (u *Unpacked) Value(name string) any {
	v, _ := u.Get(name)
	return v
}

// Set stores v, converted to the field's canonical representation.
func (u *Unpacked) Set(name string, v any) error {
	i, ok := u.schema.index[name]
	if !ok {
		return fmt.Errorf("%s.%s: %w", u.schema.name, name, ErrUnknownField)
	}
	if i == 0 {
		return fmt.Errorf("%s.%s is fixed by the schema", u.schema.name, name)
	}
	nv, err := u.schema.fields[i].Type.Normalize(v)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", u.schema.name, name, err)
	}
	u.values[i] = nv
	return nil
}

// SetHeaders stamps the hostname, job id and timestamp headers.
func (u *Unpacked) SetHeaders(hostname string, jobID uint64, timestamp uint64) {
	u.values[u.schema.index[HeaderHostname]], _ = String(NameWidth).Normalize(hostname)
	u.values[u.schema.index[HeaderJobID]] = jobID
	u.values[u.schema.index[HeaderTimestamp]] = timestamp
}

func (u *Unpacked) Backend() string  { return u.schema.name }
func (u *Unpacked) Hostname() string { return utils.ToString(u.Value(HeaderHostname)) }
func (u *Unpacked) JobID() uint64    { return utils.ToUint64(u.Value(HeaderJobID)) }
func (u *Unpacked) Timestamp() uint64 {
	return utils.ToUint64(u.Value(HeaderTimestamp))
}

// Values returns a copy of all fields keyed by name.
func (u *Unpacked) Values() map[string]any {
	m := make(map[string]any, len(u.values))
	for i, f := range u.schema.fields {
		m[f.Name] = u.values[i]
	}
	return m
}

// Clone returns an independent copy.
func (u *Unpacked) Clone() *Unpacked {
	return &Unpacked{schema: u.schema, values: slices.Clone(u.values)}
}

// Equal reports whether both records share a schema and all values.
func (u *Unpacked) Equal(o *Unpacked) bool {
	return u.schema.Equal(o.schema) && slices.Equal(u.values, o.values)
}

// Pack encodes the record into a new buffer.
func (u *Unpacked) Pack() *Packed {
	buf := make([]byte, u.schema.length)
	u.packInto(buf)
	return &Packed{schema: u.schema, buf: buf}
}

// PackInto encodes the record into dst, which must be exactly Len bytes.
func (u *Unpacked) PackInto(dst []byte) error {
	if len(dst) != u.schema.length {
		return &LengthMismatchError{Schema: u.schema.name, Want: u.schema.length, Got: len(dst)}
	}
	u.packInto(dst)
	return nil
}

func (u *Unpacked) packInto(dst []byte) {
	for i, f := range u.schema.fields {
		// values are normalized by Set
		_ = f.Type.Encode(dst[f.Offset:f.Offset+f.Type.width], u.values[i])
	}
}

// Unpack decodes a buffer of schema s into a new record.
func Unpack(s *Schema, buf []byte) (*Unpacked, error) {
	p, err := View(s, buf)
	if err != nil {
		return nil, err
	}
	return p.Unpack(), nil
}
