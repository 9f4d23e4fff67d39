// Package chain builds the per-field writer, reader, and sizer closures
// described by distilled spec §4.5: given a field's Type AST
// (pkg/typeast) and the schema it belongs to (pkg/schema), Build walks
// the AST once, right to left, and returns three closures that encode,
// decode, and size values of that field's static type with no further
// reflection-based type dispatch. The dispatch decision (which tag,
// which container, which record) is made once, at chain-construction
// time; every subsequent call only walks the prebuilt closure tree.
package chain

import (
	"errors"
	"reflect"

	"github.com/blockberries/pickle/pkg/schema"
)

// WriteFunc appends v's wire encoding to buf and returns the extended
// buffer. v is always the concrete, already-dereferenced value the
// chain was built for (a container wrapper handles the pointer/nil
// check before calling its inner chain). The only way Write fails is a
// sum-typed field holding a concrete value whose type was never
// registered as a variant, or an enum field holding a value outside
// its registered set — both are per-call EncodeErrors, not
// construction-time defects, since they depend on the instance passed
// to Serialize, not on the type alone.
type WriteFunc func(buf []byte, v reflect.Value) ([]byte, error)

// SizeFunc returns the number of bytes WriteFunc would append for v,
// failing for exactly the same reasons Write can.
type SizeFunc func(v reflect.Value) (int, error)

// ReadFunc decodes one value from the front of data into v (which must
// be addressable and settable) and returns the number of bytes
// consumed. ctx carries the per-call resource limits and the recursion
// depth counter that protect against hostile or truncated input.
type ReadFunc func(data []byte, v reflect.Value, ctx *Context) (int, error)

// Chain is the three closures built for one AST subtree.
type Chain struct {
	Write WriteFunc
	Read  ReadFunc
	Size  SizeFunc
}

// Context carries per-call state threaded through every ReadFunc: the
// resource limits from Options.Limits, whether decoded strings are
// UTF-8 validated, the active CompatibilityMode, and a live recursion
// depth counter. A *Context is created once per Deserialize call and
// passed down by every container and record reader; nothing in this
// package stores one past the call that created it.
type Context struct {
	MaxStringLength    int
	MaxContainerLength int
	MaxDepth           int
	ValidateUTF8       bool
	Compatibility      schema.CompatibilityMode

	Depth int
}

// Errors a ReadFunc can return. Callers outside this package compare
// with errors.Is; pkg/pickle re-wraps these into its own DecodeError.
var (
	// ErrBufferExhausted indicates a read ran past the end of data.
	ErrBufferExhausted = errors.New("pickle: buffer exhausted")

	// ErrMalformedWire indicates a marker, ordinal, or length violates
	// the wire contract.
	ErrMalformedWire = errors.New("pickle: malformed wire data")

	// ErrLimitExceeded indicates a decoded string, container length, or
	// recursion depth exceeded the active Context's limits.
	ErrLimitExceeded = errors.New("pickle: decode limit exceeded")

	// ErrSchemaMismatch names a record's wire field count that could
	// not be reconciled with the current Go struct under the active
	// CompatibilityMode. The readers in this package report that case
	// as a *schema.ErrSchemaMismatch value, not as this sentinel.
	ErrSchemaMismatch = errors.New("pickle: schema mismatch")

	// ErrUnregisteredVariant indicates a sum-typed field holds a
	// concrete value whose type was never registered via
	// schema.Registry.RegisterVariants.
	ErrUnregisteredVariant = errors.New("pickle: value's type is not a registered variant")

	// ErrUnknownEnumValue indicates an enum-typed field holds a value
	// outside the set registered via schema.Registry.RegisterEnum.
	ErrUnknownEnumValue = errors.New("pickle: enum value not in registered set")
)

// enter increments the recursion depth and reports whether it is still
// within ctx.MaxDepth (0 means unlimited). Every RECORD/INTERFACE
// reader calls this before recursing into field readers, since those
// are the only two AST node kinds whose runtime nesting is not already
// bounded by the field's static type (a self-referential record field
// lets a hostile wire encode arbitrarily deep recursion even though the
// Go type graph itself is shallow).
func (c *Context) enter() bool {
	c.Depth++
	return c.MaxDepth <= 0 || c.Depth <= c.MaxDepth
}

func (c *Context) exit() {
	c.Depth--
}
