// Package schema discovers the transitive closure of user-defined types
// reachable from a root Go type and assigns each one the stable,
// deterministic ordinal that goes on the wire in place of its name
// (distilled spec §4.4). Nothing here inspects a value; discovery runs
// once per root reflect.Type, and its result is cached the same way
// typeast's ASTs are.
package schema

import "reflect"

// Kind distinguishes the two flavours of user-defined type that occupy
// a wire ordinal. Sealed interfaces are discovered too, but never
// receive an ordinal of their own: on the wire, a sum-typed field is
// represented by its concrete variant's own record ordinal.
type Kind int

const (
	// KindRecord is a product type: a Go struct encoded field by field
	// in declaration order.
	KindRecord Kind = iota
	// KindEnum is a named integer type standing in for a closed set of
	// ordinal-encoded values.
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// Field describes one field of a RecordType, in the struct's
// declaration order — the order fields are written and read in
// (distilled spec §4.6).
type Field struct {
	Name string
	Type reflect.Type
}

// RecordType is a discovered product type.
type RecordType struct {
	Go     reflect.Type
	Fields []Field
}

// EnumType is a discovered named-integer type together with the
// ordered list of values it may take, as supplied by the caller at
// registration time (Go has no way to enumerate a named int type's
// "members" by reflection alone).
type EnumType struct {
	Go     reflect.Type
	Values []int64
}

// InterfaceType is a discovered sum type: the set of concrete record
// types the caller registered as its variants, in registration order.
// The order registered is NOT the wire order — each variant's wire
// identity is its own RecordType ordinal, not a position in this list.
type InterfaceType struct {
	Go       reflect.Type
	Variants []reflect.Type
}

// UserType is one ordinal-bearing entry in a Schema: exactly one of
// Record or Enum is populated, selected by Kind.
type UserType struct {
	Kind    Kind
	Ordinal int // 1..len(schema.Types); stable only within this Schema
	Record  *RecordType
	Enum    *EnumType
}

// GoType returns the reflect.Type this entry was discovered from.
func (u UserType) GoType() reflect.Type {
	switch u.Kind {
	case KindRecord:
		return u.Record.Go
	case KindEnum:
		return u.Enum.Go
	default:
		return nil
	}
}

// Schema is the complete, ordinal-assigned closure of user types
// reachable from one root type (distilled spec §4.4). Types holds
// `userTypes[]` — every discovered record and enum, sorted by fully
// qualified name, index i holding ordinal i+1. Interfaces holds every
// discovered sealed interface, which never appears in Types because it
// never occupies a wire ordinal of its own. A Schema is immutable after
// Discover returns it and safe for concurrent use.
type Schema struct {
	Root       reflect.Type
	Types      []UserType
	Interfaces map[reflect.Type]*InterfaceType

	byType map[reflect.Type]*UserType
}

// Lookup returns the UserType discovered for t, if any.
func (s *Schema) Lookup(t reflect.Type) (*UserType, bool) {
	u, ok := s.byType[t]
	return u, ok
}

// OrdinalOf returns the stable ordinal assigned to t within this
// Schema, or 0 if t is not part of it. This is `ordinalByType`: the
// inverse index the write path needs, since a writer starts from an
// instance's concrete type, not a position in Types.
func (s *Schema) OrdinalOf(t reflect.Type) int {
	if u, ok := s.byType[t]; ok {
		return u.Ordinal
	}
	return 0
}

// ByOrdinal returns the UserType for a wire ordinal in 1..len(Types),
// or false if ordinal is out of range.
func (s *Schema) ByOrdinal(ordinal int) (*UserType, bool) {
	if ordinal < 1 || ordinal > len(s.Types) {
		return nil, false
	}
	return &s.Types[ordinal-1], true
}

func (s *Schema) index() {
	s.byType = make(map[reflect.Type]*UserType, len(s.Types))
	for i := range s.Types {
		s.byType[s.Types[i].GoType()] = &s.Types[i]
	}
}
