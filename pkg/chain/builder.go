package chain

import (
	"fmt"
	"reflect"

	"github.com/blockberries/pickle/internal/wire"
	"github.com/blockberries/pickle/pkg/schema"
	"github.com/blockberries/pickle/pkg/typeast"
)

// Builder builds Chains against one discovered Schema. A Builder is
// used once, at Pickler construction, to build the root chain and
// every record chain transitively reachable from it; the resulting
// Chains are immutable and safe for concurrent use thereafter
// (distilled spec §5).
type Builder struct {
	schema        *schema.Schema
	deterministic bool

	records map[reflect.Type]*recordChain
	enums   map[reflect.Type]*enumChain
}

// NewBuilder returns a Builder for s. When deterministic is set, every
// MAP chain it builds sorts its keys before writing, trading a bit of
// encode-time cost for byte-identical output across runs.
func NewBuilder(s *schema.Schema, deterministic bool) *Builder {
	return &Builder{
		schema:        s,
		deterministic: deterministic,
		records:       make(map[reflect.Type]*recordChain),
		enums:         make(map[reflect.Type]*enumChain),
	}
}

// Build analyses t's Type AST and constructs the Chain for it. t is
// usually the pickler's root type, but the same Builder is reused
// internally to build each field's chain and each discovered record's
// field chains, so that recursive record graphs share one recordChain
// per type rather than recursing into the type generator forever.
func (b *Builder) Build(t reflect.Type) (Chain, error) {
	ast, err := typeast.AnalyseType(t)
	if err != nil {
		return Chain{}, err
	}
	if err := typeast.Validate(ast); err != nil {
		return Chain{}, err
	}
	c, next, err := b.build(ast, 0)
	if err != nil {
		return Chain{}, err
	}
	if next != len(ast) {
		return Chain{}, fmt.Errorf("pickle: chain: AST for %s left %d unconsumed nodes", t, len(ast)-next)
	}
	return c, nil
}

// build performs the recursive descent of distilled spec §4.5: each
// container node recurses into its inner subtree(s) first (so the
// innermost chain is built before the frame that wraps it, i.e.
// right-to-left construction), then wraps the result. It returns the
// index just past the subtree rooted at pos.
func (b *Builder) build(ast typeast.AST, pos int) (Chain, int, error) {
	node := ast[pos]

	switch node.Tag {
	case wire.TagOptional:
		inner, next, err := b.build(ast, pos+1)
		if err != nil {
			return Chain{}, 0, err
		}
		return b.buildOptional(node.Type, inner), next, nil

	case wire.TagList:
		inner, next, err := b.build(ast, pos+1)
		if err != nil {
			return Chain{}, 0, err
		}
		return b.buildList(node.Type, inner), next, nil

	case wire.TagArray:
		inner, next, err := b.build(ast, pos+1)
		if err != nil {
			return Chain{}, 0, err
		}
		c, err := b.buildArray(node.Type, inner)
		return c, next, err

	case wire.TagMap:
		keyChain, afterKey, err := b.build(ast, pos+1)
		if err != nil {
			return Chain{}, 0, err
		}
		if afterKey >= len(ast) || ast[afterKey].Tag != wire.TagMapSeparator {
			return Chain{}, 0, fmt.Errorf("%w: MAP missing MAP_SEPARATOR", typeast.ErrMalformedAST)
		}
		valueChain, afterValue, err := b.build(ast, afterKey+1)
		if err != nil {
			return Chain{}, 0, err
		}
		return b.buildMap(node.Type, keyChain, valueChain), afterValue, nil

	case wire.TagRecord:
		c, err := b.buildRecordLeaf(node.Type)
		return c, pos + 1, err

	case wire.TagEnum:
		c, err := b.buildEnumLeaf(node.Type)
		return c, pos + 1, err

	case wire.TagInterface:
		c, err := b.buildInterfaceLeaf(node.Type)
		return c, pos + 1, err

	default:
		c, err := b.buildBuiltinLeaf(node.Tag, node.Type)
		return c, pos + 1, err
	}
}

// recordChain is the lazily-populated, per-type field chain list for
// one discovered record. It is registered in Builder.records before
// its fields are built, so a record that reaches itself through a
// slice/pointer field (distilled spec §4.6, "recursive record types
// ... supported structurally through the lazy ordinal indirection")
// finds the in-progress placeholder instead of recursing forever; the
// closures below all read rc.fields at call time, by when Build has
// long since finished populating it.
type recordChain struct {
	typ     reflect.Type
	ordinal int
	fields  []Chain
}

func (b *Builder) recordChainFor(t reflect.Type) (*recordChain, error) {
	if rc, ok := b.records[t]; ok {
		return rc, nil
	}
	ut, ok := b.schema.Lookup(t)
	if !ok || ut.Kind != schema.KindRecord {
		return nil, fmt.Errorf("%w: %s was not discovered as a record", schema.ErrInvalidSchema, t)
	}

	rc := &recordChain{typ: t, ordinal: ut.Ordinal}
	b.records[t] = rc

	fields := make([]Chain, len(ut.Record.Fields))
	for i, f := range ut.Record.Fields {
		ast, err := typeast.AnalyseType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("pickle: field %s.%s: %w", t, f.Name, err)
		}
		c, _, err := b.build(ast, 0)
		if err != nil {
			return nil, fmt.Errorf("pickle: field %s.%s: %w", t, f.Name, err)
		}
		fields[i] = c
	}
	rc.fields = fields
	return rc, nil
}

// buildRecordLeaf builds the Chain for a RECORD AST leaf: a field
// whose static type is a concrete struct (distilled spec §4.5, "RECORD
// leaf"). The ordinal is written and checked even though the static
// type already pins the record, mirroring the wire grammar's
// `primitive-frame(RECORD) := ordinal body-of(that record)` exactly —
// there is no abbreviated form for the non-polymorphic case.
func (b *Builder) buildRecordLeaf(t reflect.Type) (Chain, error) {
	rc, err := b.recordChainFor(t)
	if err != nil {
		return Chain{}, err
	}

	return Chain{
		Write: func(buf []byte, v reflect.Value) ([]byte, error) {
			buf = wire.AppendSvarint(buf, int64(rc.ordinal))
			return writeRecordBody(buf, v, rc)
		},
		Read: func(data []byte, v reflect.Value, ctx *Context) (int, error) {
			ord, n, err := wire.DecodeSvarint(data)
			if err != nil {
				return 0, translateVarintErr(err)
			}
			if ord != int64(rc.ordinal) {
				return 0, fmt.Errorf("%w: expected record ordinal %d, got %d", ErrMalformedWire, rc.ordinal, ord)
			}
			consumed, err := readRecordBody(data[n:], v, rc, ctx)
			if err != nil {
				return 0, err
			}
			return n + consumed, nil
		},
		Size: func(v reflect.Value) (int, error) {
			s, err := sizeRecordBody(v, rc)
			if err != nil {
				return 0, err
			}
			return wire.SvarintSize(int64(rc.ordinal)) + s, nil
		},
	}, nil
}

// writeRecordBody, readRecordBody, and sizeRecordBody implement the
// record engine proper (distilled spec §4.6): the record's own ordinal
// has already been written/consumed by the caller (buildRecordLeaf or
// buildInterfaceLeaf); what remains is the field sequence.
//
// record-body is prefixed with a varint field count ahead of the
// field-payload sequence. The distilled grammar's own `record-body :=
// field-payload* (in source order)` has no such prefix, but a
// compatibility mode that tolerates a wire field count different from
// the current struct's is undecidable without one — there is nothing
// else in a flat, marker-free field sequence that would tell a reader
// where the record ends short of the struct's own (possibly stale)
// field count. This is recorded as a wire-format addition in DESIGN.md.
func writeRecordBody(buf []byte, v reflect.Value, rc *recordChain) ([]byte, error) {
	buf = wire.AppendUvarint(buf, uint64(len(rc.fields)))
	var err error
	for i, f := range rc.fields {
		buf, err = f.Write(buf, v.Field(i))
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func readRecordBody(data []byte, v reflect.Value, rc *recordChain, ctx *Context) (int, error) {
	if !ctx.enter() {
		return 0, fmt.Errorf("%w: record nesting exceeds depth limit %d", ErrLimitExceeded, ctx.MaxDepth)
	}
	defer ctx.exit()

	wireCount, n, err := wire.DecodeUvarint(data)
	if err != nil {
		return 0, translateVarintErr(err)
	}
	total := n
	goCount := len(rc.fields)

	readField := func(i int) error {
		consumed, err := rc.fields[i].Read(data[total:], v.Field(i), ctx)
		if err != nil {
			return err
		}
		total += consumed
		return nil
	}

	switch {
	case int(wireCount) == goCount:
		for i := 0; i < goCount; i++ {
			if err := readField(i); err != nil {
				return 0, err
			}
		}

	case int(wireCount) < goCount:
		if !ctx.Compatibility.AllowsFewerFields() {
			return 0, &schema.ErrSchemaMismatch{Record: rc.typ, WireCount: int(wireCount), GoCount: goCount, Mode: ctx.Compatibility}
		}
		for i := 0; i < int(wireCount); i++ {
			if err := readField(i); err != nil {
				return 0, err
			}
		}
		for i := int(wireCount); i < goCount; i++ {
			v.Field(i).Set(reflect.Zero(v.Field(i).Type()))
		}

	default: // wireCount > goCount
		if !ctx.Compatibility.AllowsMoreFields() {
			return 0, &schema.ErrSchemaMismatch{Record: rc.typ, WireCount: int(wireCount), GoCount: goCount, Mode: ctx.Compatibility}
		}
		// Forward compatibility proper would skip the surplus trailing
		// fields using their own (unknown to this build) readers; a
		// positional, marker-free record body gives no way to walk past
		// a value whose type this binary was never told about. This
		// falls back to the same rejection as Off until the wire format
		// grows a self-describing field envelope (SPEC_FULL §6, recorded
		// in DESIGN.md as an Open Question resolution).
		return 0, &schema.ErrSchemaMismatch{Record: rc.typ, WireCount: int(wireCount), GoCount: goCount, Mode: ctx.Compatibility}
	}

	return total, nil
}

func sizeRecordBody(v reflect.Value, rc *recordChain) (int, error) {
	size := wire.UvarintSize(uint64(len(rc.fields)))
	for i, f := range rc.fields {
		s, err := f.Size(v.Field(i))
		if err != nil {
			return 0, err
		}
		size += s
	}
	return size, nil
}

// enumChain is the lazily-populated value<->index table for one
// discovered enum type.
type enumChain struct {
	indexOf map[int64]int
	values  []int64
}

func (b *Builder) enumChainFor(t reflect.Type) (*enumChain, error) {
	if ec, ok := b.enums[t]; ok {
		return ec, nil
	}
	ut, ok := b.schema.Lookup(t)
	if !ok || ut.Kind != schema.KindEnum {
		return nil, fmt.Errorf("%w: %s was not discovered as an enum", schema.ErrInvalidSchema, t)
	}
	ec := &enumChain{values: ut.Enum.Values, indexOf: make(map[int64]int, len(ut.Enum.Values))}
	for i, val := range ut.Enum.Values {
		ec.indexOf[val] = i
	}
	b.enums[t] = ec
	return ec, nil
}

// buildEnumLeaf builds the Chain for an ENUM AST leaf: the wire
// carries the value's zero-based index into the registered value set,
// not the value itself and not a type marker (distilled spec §4.5,
// "ENUM leaf").
func (b *Builder) buildEnumLeaf(t reflect.Type) (Chain, error) {
	ec, err := b.enumChainFor(t)
	if err != nil {
		return Chain{}, err
	}

	return Chain{
		Write: func(buf []byte, v reflect.Value) ([]byte, error) {
			idx, ok := ec.indexOf[v.Int()]
			if !ok {
				return nil, fmt.Errorf("%w: %s(%d)", ErrUnknownEnumValue, t, v.Int())
			}
			return wire.AppendSvarint(buf, int64(idx)), nil
		},
		Read: func(data []byte, v reflect.Value, ctx *Context) (int, error) {
			idx, n, err := wire.DecodeSvarint(data)
			if err != nil {
				return 0, translateVarintErr(err)
			}
			if idx < 0 || int(idx) >= len(ec.values) {
				return 0, fmt.Errorf("%w: enum variant ordinal %d out of range [0, %d)", ErrMalformedWire, idx, len(ec.values))
			}
			v.SetInt(ec.values[idx])
			return n, nil
		},
		Size: func(v reflect.Value) (int, error) {
			idx, ok := ec.indexOf[v.Int()]
			if !ok {
				return 0, fmt.Errorf("%w: %s(%d)", ErrUnknownEnumValue, t, v.Int())
			}
			return wire.SvarintSize(int64(idx)), nil
		},
	}, nil
}

// buildInterfaceLeaf builds the Chain for an INTERFACE AST leaf: a
// sealed sum type. The write path dispatches on the runtime concrete
// type; the read path indexes the schema by the decoded ordinal
// (distilled spec §4.7, "Sum dispatcher").
func (b *Builder) buildInterfaceLeaf(t reflect.Type) (Chain, error) {
	iface, ok := b.schema.Interfaces[t]
	if !ok {
		return Chain{}, fmt.Errorf("%w: interface %s was not discovered", schema.ErrInvalidSchema, t)
	}
	// Pre-build every variant's record chain so a write never has to
	// build one lazily mid-call.
	for _, variant := range iface.Variants {
		if _, err := b.recordChainFor(variant); err != nil {
			return Chain{}, err
		}
	}

	return Chain{
		Write: func(buf []byte, v reflect.Value) ([]byte, error) {
			if v.IsNil() {
				return wire.AppendSvarint(buf, int64(wire.NullMarker)), nil
			}
			concrete := v.Elem()
			for concrete.Kind() == reflect.Ptr {
				concrete = concrete.Elem()
			}
			rc, ok := b.records[concrete.Type()]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnregisteredVariant, concrete.Type())
			}
			buf = wire.AppendSvarint(buf, int64(rc.ordinal))
			return writeRecordBody(buf, concrete, rc)
		},
		Read: func(data []byte, v reflect.Value, ctx *Context) (int, error) {
			ord, n, err := wire.DecodeSvarint(data)
			if err != nil {
				return 0, translateVarintErr(err)
			}
			if ord == int64(wire.NullMarker) {
				v.Set(reflect.Zero(t))
				return n, nil
			}
			ut, ok := b.schema.ByOrdinal(int(ord))
			if !ok || ut.Kind != schema.KindRecord {
				return 0, fmt.Errorf("%w: ordinal %d does not name a record", ErrMalformedWire, ord)
			}
			rc, ok := b.records[ut.Record.Go]
			if !ok {
				return 0, fmt.Errorf("%w: ordinal %d is not a registered variant of %s", ErrMalformedWire, ord, t)
			}
			target := reflect.New(rc.typ).Elem()
			consumed, err := readRecordBody(data[n:], target, rc, ctx)
			if err != nil {
				return 0, err
			}
			v.Set(addrIfPointerVariant(t, target))
			return n + consumed, nil
		},
		Size: func(v reflect.Value) (int, error) {
			if v.IsNil() {
				return wire.SvarintSize(int64(wire.NullMarker)), nil
			}
			concrete := v.Elem()
			for concrete.Kind() == reflect.Ptr {
				concrete = concrete.Elem()
			}
			rc, ok := b.records[concrete.Type()]
			if !ok {
				return 0, fmt.Errorf("%w: %s", ErrUnregisteredVariant, concrete.Type())
			}
			s, err := sizeRecordBody(concrete, rc)
			if err != nil {
				return 0, err
			}
			return wire.SvarintSize(int64(rc.ordinal)) + s, nil
		},
	}, nil
}

// addrIfPointerVariant returns target as-is if T itself already
// satisfies iface (the common case: a value-receiver method set),
// reconstructing the exact concrete type the write side dispatched on.
// Only when T's own method set does not satisfy iface — the variant
// was registered via a pointer receiver — does it return target's
// address instead; the interface reader always decodes into a value
// allocated with reflect.New, so target.Addr() is safe whenever this
// fallback is needed. Checking
// target.Type() first matters because *T's method set is always a
// superset of T's: a naive "does the pointer implement iface" check
// would pick the pointer form even when the value form already
// implements it, flipping every value-receiver variant into a pointer
// on the read path.
func addrIfPointerVariant(iface reflect.Type, target reflect.Value) reflect.Value {
	if target.Type().Implements(iface) {
		return target
	}
	return target.Addr()
}
