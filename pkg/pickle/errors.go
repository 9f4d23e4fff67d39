// Package pickle implements the pickler façade (distilled spec §4.8)
// over the record engine and sum dispatcher that pkg/chain builds
// (§4.6-§4.7): the runtime surface that turns a prebuilt delegation
// chain into Serialize/Deserialize calls against a pooled byte buffer.
package pickle

import (
	"errors"
	"fmt"
)

// Sentinel errors for the five error kinds named in distilled spec §7.
// Every error that For and the Pickler methods return wraps exactly one
// of these; callers distinguish them with errors.Is. The stream helpers
// are the exception: a StreamWriter or MessageIterator I/O failure
// carries the underlying I/O error instead, and writing to a closed
// StreamWriter returns an EncodeError with no cause.
var (
	// ErrUnsupportedType indicates a type encountered during AST
	// analysis or schema discovery has no wire representation.
	// Construction-time only.
	ErrUnsupportedType = errors.New("pickle: unsupported type")

	// ErrInvalidSchema indicates a defect in the discovered schema
	// itself: an unregistered interface or enum, a non-record sealed
	// interface variant, and so on. Raised while building a Pickler,
	// and also by Serialize/SizeOf for an interface value whose concrete
	// type was never registered or an enum value outside its registered
	// set.
	ErrInvalidSchema = errors.New("pickle: invalid schema")

	// ErrBufferExhausted indicates a read ran past the end of the
	// input buffer. Per-call.
	ErrBufferExhausted = errors.New("pickle: buffer exhausted")

	// ErrMalformedWire indicates a decoded value violates the wire
	// contract: an ordinal outside [0, M], a container marker where a
	// different marker was required, an enum variant ordinal outside
	// [0, k), a negative or implausibly large length. Per-call.
	ErrMalformedWire = errors.New("pickle: malformed wire data")

	// ErrSchemaMismatch indicates a decoded ordinal references a
	// record whose field count does not match the wire and no
	// compatibility mode resolves the difference. Per-call. Under
	// schema.Off and schema.Forward any wire field count below the
	// struct's is a mismatch; a wire field count above the struct's is a
	// mismatch under every mode.
	ErrSchemaMismatch = errors.New("pickle: schema mismatch")
)

// ConstructionError provides detailed context for a failure while
// building a Pickler: analysing the root type's AST, discovering its
// schema, or building a field's delegation chain.
type ConstructionError struct {
	// Type is the Go type being analysed, rendered as a string.
	Type string

	// Field is the struct field being analysed, if applicable.
	Field string

	// Message describes what went wrong.
	Message string

	// Cause is the underlying error; always non-nil and wraps one of
	// the sentinels above.
	Cause error
}

func (e *ConstructionError) Error() string {
	switch {
	case e.Type != "" && e.Field != "":
		return fmt.Sprintf("pickle: construct %s.%s: %s", e.Type, e.Field, e.Message)
	case e.Type != "":
		return fmt.Sprintf("pickle: construct %s: %s", e.Type, e.Message)
	default:
		return fmt.Sprintf("pickle: construct: %s", e.Message)
	}
}

func (e *ConstructionError) Unwrap() error { return e.Cause }

func (e *ConstructionError) Is(target error) bool {
	return e.Cause != nil && errors.Is(e.Cause, target)
}

// NewConstructionError wraps cause with the type under analysis.
func NewConstructionError(typ, message string, cause error) *ConstructionError {
	return &ConstructionError{Type: typ, Message: message, Cause: cause}
}

// NewFieldConstructionError wraps cause with the type and field under
// analysis.
func NewFieldConstructionError(typ, field, message string, cause error) *ConstructionError {
	return &ConstructionError{Type: typ, Field: field, Message: message, Cause: cause}
}

// DecodeError provides detailed context for a Deserialize failure.
type DecodeError struct {
	// Type is the name of the type being decoded, if known.
	Type string

	// Field is the name of the field being decoded, if applicable.
	Field string

	// Offset is the byte offset in the input where the error occurred,
	// or -1 if not meaningful.
	Offset int

	// Message describes what went wrong.
	Message string

	// Cause is the underlying error. For Deserialize it wraps one of the
	// sentinels above; for a MessageIterator stream read failure it is
	// the underlying I/O error.
	Cause error
}

func (e *DecodeError) Error() string {
	var prefix string
	switch {
	case e.Type != "" && e.Field != "":
		prefix = fmt.Sprintf("%s.%s", e.Type, e.Field)
	case e.Type != "":
		prefix = e.Type
	case e.Field != "":
		prefix = e.Field
	}
	switch {
	case prefix != "" && e.Offset >= 0:
		return fmt.Sprintf("pickle: decode %s at offset %d: %s", prefix, e.Offset, e.Message)
	case prefix != "":
		return fmt.Sprintf("pickle: decode %s: %s", prefix, e.Message)
	case e.Offset >= 0:
		return fmt.Sprintf("pickle: decode at offset %d: %s", e.Offset, e.Message)
	default:
		return fmt.Sprintf("pickle: decode: %s", e.Message)
	}
}

func (e *DecodeError) Unwrap() error { return e.Cause }

func (e *DecodeError) Is(target error) bool {
	return e.Cause != nil && errors.Is(e.Cause, target)
}

// NewDecodeError wraps cause with a byte offset.
func NewDecodeError(offset int, message string, cause error) *DecodeError {
	return &DecodeError{Offset: offset, Message: message, Cause: cause}
}

// NewFieldDecodeError wraps cause with the type, field, and offset.
func NewFieldDecodeError(typ, field string, offset int, message string, cause error) *DecodeError {
	return &DecodeError{Type: typ, Field: field, Offset: offset, Message: message, Cause: cause}
}

// EncodeError provides detailed context for a Serialize failure. The
// only way Serialize can fail once a Pickler is constructed is a
// caller-supplied io.Writer (streaming mode) returning an error, an
// interface value whose concrete type was never registered as a
// variant, or an enum value outside the enum's registered value set.
type EncodeError struct {
	Type    string
	Field   string
	Message string
	Cause   error
}

func (e *EncodeError) Error() string {
	switch {
	case e.Type != "" && e.Field != "":
		return fmt.Sprintf("pickle: encode %s.%s: %s", e.Type, e.Field, e.Message)
	case e.Type != "":
		return fmt.Sprintf("pickle: encode %s: %s", e.Type, e.Message)
	default:
		return fmt.Sprintf("pickle: encode: %s", e.Message)
	}
}

func (e *EncodeError) Unwrap() error { return e.Cause }

func (e *EncodeError) Is(target error) bool {
	return e.Cause != nil && errors.Is(e.Cause, target)
}

// NewEncodeError wraps cause with a message.
func NewEncodeError(message string, cause error) *EncodeError {
	return &EncodeError{Message: message, Cause: cause}
}

// NewFieldEncodeError wraps cause with the type and field.
func NewFieldEncodeError(typ, field, message string, cause error) *EncodeError {
	return &EncodeError{Type: typ, Field: field, Message: message, Cause: cause}
}

// IsConstructionTime reports whether err is one of the two error kinds
// raised while building a Pickler (UnsupportedType, InvalidSchema), as
// opposed to the three that occur per-call. Serialize and SizeOf also
// report an unregistered variant or enum value as InvalidSchema, so
// this returns true for those errors as well.
func IsConstructionTime(err error) bool {
	return errors.Is(err, ErrUnsupportedType) || errors.Is(err, ErrInvalidSchema)
}

// IsPerCall reports whether err is one of the three error kinds that
// can only occur on a Serialize/Deserialize call (BufferExhausted,
// MalformedWire, SchemaMismatch).
func IsPerCall(err error) bool {
	return errors.Is(err, ErrBufferExhausted) || errors.Is(err, ErrMalformedWire) || errors.Is(err, ErrSchemaMismatch)
}
