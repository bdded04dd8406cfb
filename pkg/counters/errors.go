package counters

import (
	"errors"
	"fmt"
)

var (
	ErrMultipleParents = errors.New("schema may derive from at most one parent")
	ErrInvalidRule     = errors.New("accumulation rule not valid for field type")
	ErrDuplicateSchema = errors.New("schema already registered")
	ErrUnknownField    = errors.New("unknown field")
	ErrRegistrySealed  = errors.New("schema registry is sealed")
)

// DuplicateFieldError is returned when a field name occurs twice in one schema.
type DuplicateFieldError struct {
	Schema string
	Field  string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("schema %q: duplicate field %q", e.Schema, e.Field)
}

// SchemaNotFoundError is returned when a schema name is not registered.
type SchemaNotFoundError struct {
	Name string
}

func (e *SchemaNotFoundError) Error() string {
	return fmt.Sprintf("schema %q not registered", e.Name)
}

// LengthMismatchError is returned when a buffer does not have the schema's record length.
type LengthMismatchError struct {
	Schema string
	Want   int
	Got    int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("schema %q: buffer length %d, want %d", e.Schema, e.Got, e.Want)
}

// TruncatedBatchError is returned when a batch ends in the middle of a record.
type TruncatedBatchError struct {
	Offset    int
	Want      int
	Remaining int
}

func (e *TruncatedBatchError) Error() string {
	return fmt.Sprintf("truncated batch at offset %d: need %d bytes, %d remaining",
		e.Offset, e.Want, e.Remaining)
}

// SchemaMismatchError is returned when records of different schemas are combined.
type SchemaMismatchError struct {
	Want string
	Got  string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: %q vs %q", e.Want, e.Got)
}

// IsIntegrity reports whether err is a wire-format integrity violation.
func IsIntegrity(err error) bool {
	var lm *LengthMismatchError
	var tb *TruncatedBatchError
	return errors.As(err, &lm) || errors.As(err, &tb)
}
