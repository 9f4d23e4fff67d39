// Package typeast implements the recursive descent over a Go value's
// static type that yields a flat, left-to-right Type AST of container
// operators and leaf types (distilled spec §4.3). The AST is the only
// artifact the chain builder (pkg/chain) ever looks at; nothing
// downstream inspects a reflect.Value's dynamic type again once the AST
// for its static type has been built.
package typeast

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/blockberries/pickle/internal/wire"
	"github.com/google/uuid"
)

// Node is one (tag, concrete type) pair in the flattened AST. For a
// container node, Type is the container's own static type (e.g. the
// []*Address for a LIST node, the *Address for the OPTIONAL node
// beneath it) — carrying the concrete type at every step is what lets
// the reader allocate the right Go type without guessing from the wire
// (distilled spec §4.5, reader chain notes). MapSeparator nodes carry a
// nil Type; they are a pure AST punctuation mark.
type Node struct {
	Tag  wire.Tag
	Type reflect.Type
}

// AST is the ordered, left-to-right sequence produced by Analyse.
type AST []Node

// ErrUnsupportedType is returned when a type cannot appear anywhere in
// an AST: channels, funcs, unsafe pointers, complex numbers, and
// uintptr have no wire representation (distilled spec §7,
// UnsupportedType, construction-time only).
var ErrUnsupportedType = errors.New("pickle: unsupported type")

// ErrASTTooDeep guards against runaway recursion. The distilled spec's
// own recursion guard exists to reject re-entrant descent through
// recursive type parameters; Go's reflect.Type graph has no type
// variables to re-enter, so a simple depth cap serves the same purpose
// without needing a visited-set (there is nothing to revisit structurally
// short of a record field being the record's own slice/pointer, which is
// legitimate and handled by RECORD being a leaf, not a recursion point).
var ErrASTTooDeep = errors.New("pickle: type AST exceeds maximum nesting depth")

const maxDepth = 64

// EnumNamer is the signature of a construction-time classifier for
// ambiguous leaf kinds: idiomatic Go enums are named integer types
// (`type Suit int32`), which Analyse already distinguishes from the
// unnamed builtin int32 (INTEGER) by checking PkgPath(). Nothing in
// this package accepts or calls an EnumNamer; Analyse and AnalyseType
// classify by PkgPath() alone.
type EnumNamer func(t reflect.Type) bool

var cache sync.Map // reflect.Type -> AST

// AnalyseType analyses t using the process-wide memoisation cache
// (distilled spec §4.3, "ASTs are memoised by the type object identity
// to save cost"). Equivalent to Analyse(t) for repeat callers.
func AnalyseType(t reflect.Type) (AST, error) {
	if cached, ok := cache.Load(t); ok {
		return cached.(AST), nil
	}
	ast, err := Analyse(t)
	if err != nil {
		return nil, err
	}
	cache.Store(t, ast)
	return ast, nil
}

// Analyse performs the recursive descent described in distilled spec
// §4.3, without consulting or populating the memoisation cache.
func Analyse(t reflect.Type) (AST, error) {
	var ast AST
	if err := analyse(t, &ast, 0); err != nil {
		return nil, err
	}
	return ast, nil
}

func analyse(t reflect.Type, ast *AST, depth int) error {
	if depth > maxDepth {
		return ErrASTTooDeep
	}
	if t == nil {
		return fmt.Errorf("%w: nil type", ErrUnsupportedType)
	}
	if t == uuidType {
		*ast = append(*ast, Node{wire.TagUUID, t})
		return nil
	}

	switch t.Kind() {
	case reflect.Ptr:
		*ast = append(*ast, Node{wire.TagOptional, t})
		return analyse(t.Elem(), ast, depth+1)

	case reflect.Slice, reflect.Array:
		elem := t.Elem()
		*ast = append(*ast, Node{arrayOrListTag(elem), t})
		return analyse(elem, ast, depth+1)

	case reflect.Map:
		*ast = append(*ast, Node{wire.TagMap, t})
		if err := analyse(t.Key(), ast, depth+1); err != nil {
			return err
		}
		*ast = append(*ast, Node{wire.TagMapSeparator, nil})
		return analyse(t.Elem(), ast, depth+1)

	default:
		tag, err := leafTag(t)
		if err != nil {
			return err
		}
		*ast = append(*ast, Node{tag, t})
		return nil
	}
}

// arrayOrListTag decides ARRAY vs. LIST for a slice/array element type
// (SPEC_FULL §6, "Array vs. List on the Go side"): ARRAY is reserved for
// the element kinds the distilled spec's §4.5 bulk specialisations name
// (byte, bool, int32, int64); every other element type uses LIST.
func arrayOrListTag(elem reflect.Type) wire.Tag {
	if isBuiltinPrimitive(elem) {
		switch elem.Kind() {
		case reflect.Uint8, reflect.Int8, reflect.Bool, reflect.Int32, reflect.Int64:
			return wire.TagArray
		}
	}
	return wire.TagList
}

var uuidType = reflect.TypeOf(uuid.UUID{})

func leafTag(t reflect.Type) (wire.Tag, error) {
	if t == uuidType {
		return wire.TagUUID, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return wire.TagBoolean, nil
	case reflect.String:
		return wire.TagString, nil
	case reflect.Float32:
		return wire.TagFloat, nil
	case reflect.Float64:
		return wire.TagDouble, nil
	case reflect.Int8, reflect.Uint8:
		if isBuiltinPrimitive(t) {
			return wire.TagByte, nil
		}
		return wire.TagEnum, nil
	case reflect.Int16:
		if isBuiltinPrimitive(t) {
			return wire.TagShort, nil
		}
		return wire.TagEnum, nil
	case reflect.Uint16:
		if isBuiltinPrimitive(t) {
			return wire.TagCharacter, nil
		}
		return wire.TagEnum, nil
	case reflect.Int32:
		if isBuiltinPrimitive(t) {
			return wire.TagInteger, nil
		}
		return wire.TagEnum, nil
	case reflect.Int64, reflect.Int:
		if isBuiltinPrimitive(t) {
			return wire.TagLong, nil
		}
		return wire.TagEnum, nil
	case reflect.Struct:
		return wire.TagRecord, nil
	case reflect.Interface:
		return wire.TagInterface, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
}

// isBuiltinPrimitive reports whether t is one of Go's predeclared
// numeric/bool kinds rather than a named type built on one of them. A
// named integer type (`type Suit int32`) is the idiomatic Go spelling
// of an enum (distilled spec's ENUM leaf); the predeclared type itself
// is always the corresponding built-in leaf.
func isBuiltinPrimitive(t reflect.Type) bool {
	return t.PkgPath() == ""
}
