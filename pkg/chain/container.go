package chain

import (
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/blockberries/pickle/internal/wire"
)

// buildOptional wraps inner (already built for the pointer's element
// type) as the OPTIONAL container described in distilled spec §4.5: a
// present value is the OPTIONAL marker followed by inner's encoding of
// the dereferenced value; an absent (nil) value is the bare NULL
// sentinel, replacing the marker entirely.
func (b *Builder) buildOptional(t reflect.Type, inner Chain) Chain {
	marker := wire.AppendSvarint(nil, int64(wire.MarkerFor(wire.TagOptional)))
	markerSize := len(marker)

	return Chain{
		Write: func(buf []byte, v reflect.Value) ([]byte, error) {
			if v.IsNil() {
				return wire.AppendSvarint(buf, int64(wire.NullMarker)), nil
			}
			buf = append(buf, marker...)
			return inner.Write(buf, v.Elem())
		},
		Read: func(data []byte, v reflect.Value, ctx *Context) (int, error) {
			m, n, err := wire.DecodeSvarint(data)
			if err != nil {
				return 0, translateVarintErr(err)
			}
			if m == int64(wire.NullMarker) {
				v.Set(reflect.Zero(t))
				return n, nil
			}
			if m != int64(wire.MarkerFor(wire.TagOptional)) {
				return 0, fmt.Errorf("%w: expected OPTIONAL marker, got %d", ErrMalformedWire, m)
			}
			v.Set(reflect.New(t.Elem()))
			consumed, err := inner.Read(data[n:], v.Elem(), ctx)
			if err != nil {
				return 0, err
			}
			return n + consumed, nil
		},
		Size: func(v reflect.Value) (int, error) {
			if v.IsNil() {
				return wire.SvarintSize(int64(wire.NullMarker)), nil
			}
			inner, err := inner.Size(v.Elem())
			if err != nil {
				return 0, err
			}
			return markerSize + inner, nil
		},
	}
}

// buildList wraps inner (built for the slice's element type) as the
// LIST container: marker, varint length, then inner called length
// times. A nil slice writes the NULL sentinel.
func (b *Builder) buildList(t reflect.Type, inner Chain) Chain {
	marker := wire.AppendSvarint(nil, int64(wire.MarkerFor(wire.TagList)))

	return Chain{
		Write: func(buf []byte, v reflect.Value) ([]byte, error) {
			if v.IsNil() {
				return wire.AppendSvarint(buf, int64(wire.NullMarker)), nil
			}
			buf = append(buf, marker...)
			buf = wire.AppendUvarint(buf, uint64(v.Len()))
			var err error
			for i := 0; i < v.Len(); i++ {
				buf, err = inner.Write(buf, v.Index(i))
				if err != nil {
					return nil, err
				}
			}
			return buf, nil
		},
		Read: func(data []byte, v reflect.Value, ctx *Context) (int, error) {
			m, n, err := wire.DecodeSvarint(data)
			if err != nil {
				return 0, translateVarintErr(err)
			}
			if m == int64(wire.NullMarker) {
				v.Set(reflect.Zero(t))
				return n, nil
			}
			if m != int64(wire.MarkerFor(wire.TagList)) {
				return 0, fmt.Errorf("%w: expected LIST marker, got %d", ErrMalformedWire, m)
			}
			total := n
			length, ln, err := wire.DecodeUvarint(data[total:])
			if err != nil {
				return 0, translateVarintErr(err)
			}
			total += ln
			if err := checkContainerLength(ctx, length); err != nil {
				return 0, err
			}
			out := reflect.MakeSlice(t, int(length), int(length))
			for i := 0; i < int(length); i++ {
				consumed, err := inner.Read(data[total:], out.Index(i), ctx)
				if err != nil {
					return 0, err
				}
				total += consumed
			}
			v.Set(out)
			return total, nil
		},
		Size: func(v reflect.Value) (int, error) {
			if v.IsNil() {
				return wire.SvarintSize(int64(wire.NullMarker)), nil
			}
			size := wire.SvarintSize(int64(wire.MarkerFor(wire.TagList))) + wire.UvarintSize(uint64(v.Len()))
			for i := 0; i < v.Len(); i++ {
				s, err := inner.Size(v.Index(i))
				if err != nil {
					return 0, err
				}
				size += s
			}
			return size, nil
		},
	}
}

// buildMap wraps keyChain/valueChain (split at the AST's MAP_SEPARATOR
// by the Builder) as the MAP container: marker, varint size, then
// length interleaved key/value pairs. A nil map writes NULL. When the
// Builder was constructed with Options.Deterministic, keys are sorted
// before writing so the same map always produces the same bytes.
func (b *Builder) buildMap(t reflect.Type, keyChain, valueChain Chain) Chain {
	marker := wire.AppendSvarint(nil, int64(wire.MarkerFor(wire.TagMap)))
	keyType := t.Key()
	valType := t.Elem()
	deterministic := b.deterministic

	return Chain{
		Write: func(buf []byte, v reflect.Value) ([]byte, error) {
			if v.IsNil() {
				return wire.AppendSvarint(buf, int64(wire.NullMarker)), nil
			}
			buf = append(buf, marker...)
			buf = wire.AppendUvarint(buf, uint64(v.Len()))
			keys := v.MapKeys()
			if deterministic {
				sortMapKeys(keys)
			}
			var err error
			for _, key := range keys {
				buf, err = keyChain.Write(buf, key)
				if err != nil {
					return nil, err
				}
				buf, err = valueChain.Write(buf, v.MapIndex(key))
				if err != nil {
					return nil, err
				}
			}
			return buf, nil
		},
		Read: func(data []byte, v reflect.Value, ctx *Context) (int, error) {
			m, n, err := wire.DecodeSvarint(data)
			if err != nil {
				return 0, translateVarintErr(err)
			}
			if m == int64(wire.NullMarker) {
				v.Set(reflect.Zero(t))
				return n, nil
			}
			if m != int64(wire.MarkerFor(wire.TagMap)) {
				return 0, fmt.Errorf("%w: expected MAP marker, got %d", ErrMalformedWire, m)
			}
			total := n
			size, sn, err := wire.DecodeUvarint(data[total:])
			if err != nil {
				return 0, translateVarintErr(err)
			}
			total += sn
			if err := checkContainerLength(ctx, size); err != nil {
				return 0, err
			}
			out := reflect.MakeMapWithSize(t, int(size))
			for i := 0; i < int(size); i++ {
				key := reflect.New(keyType).Elem()
				consumed, err := keyChain.Read(data[total:], key, ctx)
				if err != nil {
					return 0, err
				}
				total += consumed
				val := reflect.New(valType).Elem()
				consumed, err = valueChain.Read(data[total:], val, ctx)
				if err != nil {
					return 0, err
				}
				total += consumed
				out.SetMapIndex(key, val)
			}
			v.Set(out)
			return total, nil
		},
		Size: func(v reflect.Value) (int, error) {
			if v.IsNil() {
				return wire.SvarintSize(int64(wire.NullMarker)), nil
			}
			size := wire.SvarintSize(int64(wire.MarkerFor(wire.TagMap))) + wire.UvarintSize(uint64(v.Len()))
			iter := v.MapRange()
			for iter.Next() {
				ks, err := keyChain.Size(iter.Key())
				if err != nil {
					return 0, err
				}
				vs, err := valueChain.Size(iter.Value())
				if err != nil {
					return 0, err
				}
				size += ks + vs
			}
			return size, nil
		},
	}
}

// sortMapKeys orders keys in place for deterministic MAP encoding,
// dispatching on the key's reflect.Kind the way a Go map key itself is
// restricted to a comparable scalar (string, integer, float, or bool).
func sortMapKeys(keys []reflect.Value) {
	if len(keys) <= 1 {
		return
	}
	switch keys[0].Kind() {
	case reflect.String:
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		sort.Slice(keys, func(i, j int) bool { return keys[i].Int() < keys[j].Int() })
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		sort.Slice(keys, func(i, j int) bool { return keys[i].Uint() < keys[j].Uint() })
	case reflect.Float32, reflect.Float64:
		sort.Slice(keys, func(i, j int) bool { return compareFloatKeys(keys[i].Float(), keys[j].Float()) })
	case reflect.Bool:
		sort.Slice(keys, func(i, j int) bool { return !keys[i].Bool() && keys[j].Bool() })
	default:
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	}
}

// compareFloatKeys gives float map keys a total order: NaNs sort after
// every other value (ties broken by raw bit pattern, so distinct NaN
// payloads still sort deterministically), and -0.0 compares equal to
// +0.0 like any other float comparison.
func compareFloatKeys(a, b float64) bool {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return math.Float64bits(a) < math.Float64bits(b)
	case aNaN:
		return false
	case bNaN:
		return true
	default:
		return a < b
	}
}

// checkContainerLength rejects a decoded LIST/MAP/ARRAY length that is
// negative (DecodeUvarint never returns a negative value, but a
// pathological varint can still decode to a length that will never fit
// in memory) or exceeds the active Context's MaxContainerLength.
func checkContainerLength(ctx *Context, length uint64) error {
	if length > (1 << 32) {
		return fmt.Errorf("%w: container length %d is implausibly large", ErrMalformedWire, length)
	}
	if ctx.MaxContainerLength > 0 && length > uint64(ctx.MaxContainerLength) {
		return fmt.Errorf("%w: container length %d exceeds limit %d", ErrLimitExceeded, length, ctx.MaxContainerLength)
	}
	return nil
}
