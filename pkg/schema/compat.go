package schema

import "fmt"

// CompatibilityMode governs how the record engine tolerates a mismatch
// between the field count encoded on the wire and the field count of
// the Go struct currently registered for that ordinal (distilled spec
// §8, SPEC_FULL §6). Ordinal stability only protects against renames
// and reordering within one process; it says nothing about a struct
// gaining or losing fields between the writer and the reader, which is
// what this mode governs.
type CompatibilityMode int

const (
	// Off rejects any field-count mismatch outright. This is the
	// default: a pickler is exact about its schema unless told
	// otherwise.
	Off CompatibilityMode = iota
	// Backward tolerates a wire record with fewer fields than the
	// current struct: the struct's trailing fields, absent from the
	// wire, are left at their Go zero value.
	Backward
	// Forward is reserved for a wire record with more fields than the
	// current struct: the reader would need to walk past the surplus
	// trailing fields without knowing their shape, which a flat,
	// marker-free record body cannot do. The record engine currently
	// treats this case the same as Off regardless of mode; see
	// DESIGN.md.
	Forward
	// Both combines Backward and Forward.
	Both
)

func (m CompatibilityMode) String() string {
	switch m {
	case Off:
		return "off"
	case Backward:
		return "backward"
	case Forward:
		return "forward"
	case Both:
		return "both"
	default:
		return "unknown"
	}
}

// AllowsFewerFields reports whether m tolerates a wire record with
// fewer fields than the current struct (the wire is "older").
func (m CompatibilityMode) AllowsFewerFields() bool {
	return m == Backward || m == Both
}

// AllowsMoreFields reports whether m tolerates a wire record with more
// fields than the current struct (the wire is "newer").
func (m CompatibilityMode) AllowsMoreFields() bool {
	return m == Forward || m == Both
}

// ErrSchemaMismatch is returned when a decoded record's wire field
// count differs from the current struct's field count in a way the
// active CompatibilityMode does not tolerate (distilled spec §7,
// SchemaMismatch — per-call, compatibility-mode-dependent).
type ErrSchemaMismatch struct {
	Record    fmt.Stringer // the record's Go type, rendered lazily
	WireCount int
	GoCount   int
	Mode      CompatibilityMode
}

func (e *ErrSchemaMismatch) Error() string {
	return fmt.Sprintf("pickle: record %s has %d wire fields but %d Go fields (mode %s)",
		e.Record, e.WireCount, e.GoCount, e.Mode)
}
