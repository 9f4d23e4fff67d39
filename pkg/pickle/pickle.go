package pickle

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/blockberries/pickle/internal/wire"
	"github.com/blockberries/pickle/pkg/chain"
	"github.com/blockberries/pickle/pkg/schema"
	"github.com/blockberries/pickle/pkg/typeast"
)

// Pickler is the façade described in distilled spec §4.8: one Pickler
// is built per root Go type T and then reused concurrently across
// every Serialize/Deserialize/SizeOf call (distilled spec §5,
// "construction is single-threaded; its use is concurrent"). T may be
// a record (struct), an enum (named integer type), or a sealed
// interface — For[T] builds whichever Chain the root's own Type AST
// calls for.
type Pickler[T any] struct {
	root   reflect.Type
	schema *schema.Schema
	chain  chain.Chain
	opts   Options
}

// config accumulates Option effects before For[T] resolves them into a
// Pickler. Errors from individual options (an unregisterable variant,
// a malformed enum value set) are deferred to the first one
// encountered, mirroring the teacher's own fail-on-first-defect registry
// validation rather than a collect-everything report.
type config struct {
	registry *schema.Registry
	opts     Options
	err      error
}

// Option configures a Pickler at construction time.
type Option func(*config)

// WithOptions overrides the default Options a Pickler is built with.
func WithOptions(opts Options) Option {
	return func(c *config) { c.opts = opts }
}

// Variants declares impls as the exhaustive set of concrete record
// types implementing sealed interface I (distilled spec §7,
// InvalidSchema covers "a sealed interface has a non-record/non-interface
// variant"; Go cannot discover this relation by reflection alone — see
// pkg/schema.Registry). Pass zero values or nil pointers of the
// implementing types, e.g. Variants[Animal](Dog{}, &Eagle{}).
func Variants[I any](impls ...any) Option {
	return func(c *config) {
		if c.err != nil {
			return
		}
		ifaceType := reflect.TypeOf((*I)(nil)).Elem()
		implTypes := make([]reflect.Type, len(impls))
		for i, impl := range impls {
			implTypes[i] = reflect.TypeOf(impl)
		}
		if err := c.registry.RegisterVariants(ifaceType, implTypes...); err != nil {
			c.err = err
		}
	}
}

// EnumValues declares values as the exhaustive, ordered set of values
// named integer type E may take (Go cannot enumerate a named type's
// declared constants by reflection; see pkg/schema.Registry). The
// order given is the order written to the wire as a zero-based index
// (distilled spec §4.5, ENUM leaf).
func EnumValues[E ~int8 | ~int16 | ~int32 | ~int64 | ~int](values ...E) Option {
	return func(c *config) {
		if c.err != nil {
			return
		}
		if len(values) == 0 {
			c.err = fmt.Errorf("%w: EnumValues called with no values", ErrInvalidSchema)
			return
		}
		enumType := reflect.TypeOf(values[0])
		asInt64 := make([]int64, len(values))
		for i, v := range values {
			asInt64[i] = int64(v)
		}
		if err := c.registry.RegisterEnum(enumType, asInt64); err != nil {
			c.err = err
		}
	}
}

// For builds a Pickler for T: it discovers T's schema (pkg/schema),
// builds T's delegation chain (pkg/chain), and freezes both for
// concurrent reuse. Construction-time failures are always
// UnsupportedType or InvalidSchema (distilled spec §7).
func For[T any](opts ...Option) (*Pickler[T], error) {
	cfg := &config{registry: schema.NewRegistry(), opts: DefaultOptions}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.err != nil {
		return nil, NewConstructionError("", "option failed", constructionErr(cfg.err))
	}

	root := rootType[T]()

	s, err := schema.Discover(root, cfg.registry)
	if err != nil {
		return nil, NewConstructionError(root.String(), "schema discovery failed", constructionErr(err))
	}

	builder := chain.NewBuilder(s, cfg.opts.Deterministic)
	c, err := builder.Build(root)
	if err != nil {
		return nil, NewConstructionError(root.String(), "chain construction failed", constructionErr(err))
	}

	return &Pickler[T]{root: root, schema: s, chain: c, opts: cfg.opts}, nil
}

func rootType[T any]() reflect.Type {
	var zero T
	if t := reflect.TypeOf(zero); t != nil {
		return t
	}
	// zero is a nil interface or nil pointer: TypeOf loses the static
	// type, so recover it the same way reflect.New would need to.
	return reflect.TypeOf((*T)(nil)).Elem()
}

// constructionErr maps pkg/typeast's unsupported-type errors onto
// ErrUnsupportedType and every other construction failure onto
// ErrInvalidSchema, keeping the original error in the chain.
func constructionErr(err error) error {
	if errors.Is(err, typeast.ErrUnsupportedType) || errors.Is(err, typeast.ErrASTTooDeep) {
		return fmt.Errorf("%w: %w", ErrUnsupportedType, err)
	}
	return fmt.Errorf("%w: %w", ErrInvalidSchema, err)
}

func (p *Pickler[T]) newContext() *chain.Context {
	return &chain.Context{
		MaxStringLength:    p.opts.Limits.MaxStringLength,
		MaxContainerLength: p.opts.Limits.MaxContainerLength,
		MaxDepth:           p.opts.Limits.MaxDepth,
		ValidateUTF8:       p.opts.ValidateUTF8,
		Compatibility:      p.opts.Compatibility,
	}
}

// Serialize appends the encoding of v onto buf and returns the
// extended slice, so the output buffer is owned and pre-sized by the
// caller (distilled spec §5). Passing a nil buf takes a 64-byte
// buffer from the pool, which append grows as needed.
func (p *Pickler[T]) Serialize(buf []byte, v *T) ([]byte, error) {
	if buf == nil {
		buf = GetBuffer(64)
	}
	out, err := p.chain.Write(buf, reflect.ValueOf(v).Elem())
	if err != nil {
		return nil, wrapEncodeErr(p.root, err)
	}
	return out, nil
}

// Deserialize decodes one T from the front of buf and returns it
// alongside whatever bytes of buf remain unconsumed, so callers can
// pack several records back to back in one buffer without a
// length-prefix framing layer of their own.
func (p *Pickler[T]) Deserialize(buf []byte) (T, []byte, error) {
	var zero T
	ptr := reflect.New(p.root)
	ctx := p.newContext()
	n, err := p.chain.Read(buf, ptr.Elem(), ctx)
	if err != nil {
		return zero, nil, wrapDecodeErr(p.root, err)
	}
	return *ptr.Interface().(*T), buf[n:], nil
}

// SizeOf returns the number of bytes Serialize(nil, v) would write,
// without writing them.
func (p *Pickler[T]) SizeOf(v *T) (int, error) {
	n, err := p.chain.Size(reflect.ValueOf(v).Elem())
	if err != nil {
		return 0, wrapEncodeErr(p.root, err)
	}
	return n, nil
}

// SerializeMany appends the encoding of a homogeneous sequence of
// values onto buf, prepending a varint count (distilled spec §4.8,
// "convenience... variants that serialize a sequence... by prepending
// a varint count").
func (p *Pickler[T]) SerializeMany(buf []byte, vs []T) ([]byte, error) {
	if buf == nil {
		buf = GetBuffer(64 * len(vs))
	}
	buf = wire.AppendUvarint(buf, uint64(len(vs)))
	for i := range vs {
		var err error
		buf, err = p.chain.Write(buf, reflect.ValueOf(&vs[i]).Elem())
		if err != nil {
			return nil, wrapEncodeErr(p.root, err)
		}
	}
	return buf, nil
}

// DeserializeMany decodes a sequence written by SerializeMany and
// returns it alongside whatever bytes of buf remain unconsumed.
func (p *Pickler[T]) DeserializeMany(buf []byte) ([]T, []byte, error) {
	count, n, err := wire.DecodeUvarint(buf)
	if err != nil {
		return nil, nil, wrapDecodeErr(p.root, ErrBufferExhausted)
	}
	ctx := p.newContext()
	if ctx.MaxContainerLength > 0 && count > uint64(ctx.MaxContainerLength) {
		return nil, nil, wrapDecodeErr(p.root, fmt.Errorf("%w: sequence length %d exceeds limit %d", ErrMalformedWire, count, ctx.MaxContainerLength))
	}
	out := make([]T, count)
	total := n
	for i := range out {
		consumed, err := p.chain.Read(buf[total:], reflect.ValueOf(&out[i]).Elem(), ctx)
		if err != nil {
			return nil, nil, wrapDecodeErr(p.root, err)
		}
		total += consumed
	}
	return out, buf[total:], nil
}

// Schema exposes the discovered schema, mainly so callers can inspect
// ordinal assignments or feed them to diagnostic tooling.
func (p *Pickler[T]) Schema() *schema.Schema { return p.schema }

func wrapEncodeErr(root reflect.Type, err error) error {
	return NewEncodeError(err.Error(), classifyChainErr(err))
}

func wrapDecodeErr(root reflect.Type, err error) error {
	return NewDecodeError(-1, err.Error(), classifyChainErr(err))
}

// classifyChainErr maps pkg/chain's own sentinels, and pkg/schema's
// ErrSchemaMismatch value, onto this package's exported ones so
// errors.Is works across both package boundaries without exposing
// either in the public API surface.
func classifyChainErr(err error) error {
	var mismatch *schema.ErrSchemaMismatch
	switch {
	case errors.As(err, &mismatch):
		return fmt.Errorf("%w: %s", ErrSchemaMismatch, mismatch.Error())
	case isChainErr(err, chain.ErrBufferExhausted):
		return ErrBufferExhausted
	case isChainErr(err, chain.ErrMalformedWire), isChainErr(err, chain.ErrLimitExceeded):
		return ErrMalformedWire
	case isChainErr(err, chain.ErrUnregisteredVariant), isChainErr(err, chain.ErrUnknownEnumValue):
		return ErrInvalidSchema
	default:
		return err
	}
}

func isChainErr(err, target error) bool {
	for err != nil {
		if err == target {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
