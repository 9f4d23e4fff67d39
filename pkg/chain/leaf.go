package chain

import (
	"fmt"
	"reflect"

	"github.com/blockberries/pickle/internal/wire"
	"github.com/google/uuid"
)

// buildBuiltinLeaf returns the Chain for one of the fixed built-in tags
// (distilled spec §4.2/§4.5). None of these ever read or write a
// marker of their own: the enclosing container frame (or the record
// engine, for a bare field) has already established that this position
// on the wire holds exactly this primitive.
func (b *Builder) buildBuiltinLeaf(tag wire.Tag, t reflect.Type) (Chain, error) {
	switch tag {
	case wire.TagBoolean:
		return Chain{
			Write: func(buf []byte, v reflect.Value) ([]byte, error) {
				if v.Bool() {
					return append(buf, 1), nil
				}
				return append(buf, 0), nil
			},
			Read: func(data []byte, v reflect.Value, ctx *Context) (int, error) {
				if len(data) < 1 {
					return 0, ErrBufferExhausted
				}
				v.SetBool(data[0] != 0)
				return 1, nil
			},
			Size: func(reflect.Value) (int, error) { return wire.BooleanSize, nil },
		}, nil

	case wire.TagByte:
		signed := t.Kind() == reflect.Int8
		return Chain{
			Write: func(buf []byte, v reflect.Value) ([]byte, error) {
				if signed {
					return append(buf, byte(int8(v.Int()))), nil
				}
				return append(buf, byte(v.Uint())), nil
			},
			Read: func(data []byte, v reflect.Value, ctx *Context) (int, error) {
				if len(data) < 1 {
					return 0, ErrBufferExhausted
				}
				if signed {
					v.SetInt(int64(int8(data[0])))
				} else {
					v.SetUint(uint64(data[0]))
				}
				return 1, nil
			},
			Size: func(reflect.Value) (int, error) { return wire.ByteSize, nil },
		}, nil

	case wire.TagShort:
		return Chain{
			Write: func(buf []byte, v reflect.Value) ([]byte, error) {
				return wire.AppendFixed16(buf, uint16(int16(v.Int()))), nil
			},
			Read: func(data []byte, v reflect.Value, ctx *Context) (int, error) {
				u, err := wire.DecodeFixed16(data)
				if err != nil {
					return 0, ErrBufferExhausted
				}
				v.SetInt(int64(int16(u)))
				return 2, nil
			},
			Size: func(reflect.Value) (int, error) { return wire.ShortSize, nil },
		}, nil

	case wire.TagCharacter:
		return Chain{
			Write: func(buf []byte, v reflect.Value) ([]byte, error) {
				return wire.AppendFixed16(buf, uint16(v.Uint())), nil
			},
			Read: func(data []byte, v reflect.Value, ctx *Context) (int, error) {
				u, err := wire.DecodeFixed16(data)
				if err != nil {
					return 0, ErrBufferExhausted
				}
				v.SetUint(uint64(u))
				return 2, nil
			},
			Size: func(reflect.Value) (int, error) { return wire.CharSize, nil },
		}, nil

	case wire.TagInteger:
		return Chain{
			Write: func(buf []byte, v reflect.Value) ([]byte, error) {
				return wire.AppendSvarint(buf, v.Int()), nil
			},
			Read: func(data []byte, v reflect.Value, ctx *Context) (int, error) {
				n, size, err := wire.DecodeSvarint(data)
				if err != nil {
					return 0, translateVarintErr(err)
				}
				v.SetInt(n)
				return size, nil
			},
			Size: func(v reflect.Value) (int, error) { return wire.SvarintSize(v.Int()), nil },
		}, nil

	case wire.TagLong:
		return Chain{
			Write: func(buf []byte, v reflect.Value) ([]byte, error) {
				return wire.AppendSvarint(buf, v.Int()), nil
			},
			Read: func(data []byte, v reflect.Value, ctx *Context) (int, error) {
				n, size, err := wire.DecodeSvarint(data)
				if err != nil {
					return 0, translateVarintErr(err)
				}
				v.SetInt(n)
				return size, nil
			},
			Size: func(v reflect.Value) (int, error) { return wire.SvarintSize(v.Int()), nil },
		}, nil

	case wire.TagFloat:
		return Chain{
			Write: func(buf []byte, v reflect.Value) ([]byte, error) {
				return wire.AppendFloat32(buf, float32(v.Float())), nil
			},
			Read: func(data []byte, v reflect.Value, ctx *Context) (int, error) {
				f, err := wire.DecodeFloat32(data)
				if err != nil {
					return 0, ErrBufferExhausted
				}
				v.SetFloat(float64(f))
				return wire.Float32Size, nil
			},
			Size: func(reflect.Value) (int, error) { return wire.Float32Size, nil },
		}, nil

	case wire.TagDouble:
		return Chain{
			Write: func(buf []byte, v reflect.Value) ([]byte, error) {
				return wire.AppendFloat64(buf, v.Float()), nil
			},
			Read: func(data []byte, v reflect.Value, ctx *Context) (int, error) {
				f, err := wire.DecodeFloat64(data)
				if err != nil {
					return 0, ErrBufferExhausted
				}
				v.SetFloat(f)
				return wire.Float64Size, nil
			},
			Size: func(reflect.Value) (int, error) { return wire.Float64Size, nil },
		}, nil

	case wire.TagString:
		return Chain{
			Write: func(buf []byte, v reflect.Value) ([]byte, error) {
				return wire.AppendString(buf, v.String()), nil
			},
			Read: func(data []byte, v reflect.Value, ctx *Context) (int, error) {
				s, n, err := wire.DecodeString(data, ctx.ValidateUTF8)
				if err != nil {
					return 0, translateVarintErr(err)
				}
				if ctx.MaxStringLength > 0 && len(s) > ctx.MaxStringLength {
					return 0, fmt.Errorf("%w: string length %d exceeds limit %d", ErrLimitExceeded, len(s), ctx.MaxStringLength)
				}
				v.SetString(s)
				return n, nil
			},
			Size: func(v reflect.Value) (int, error) { return wire.StringSize(v.String()), nil },
		}, nil

	case wire.TagUUID:
		return Chain{
			Write: func(buf []byte, v reflect.Value) ([]byte, error) {
				return wire.AppendUUID(buf, v.Interface().(uuid.UUID)), nil
			},
			Read: func(data []byte, v reflect.Value, ctx *Context) (int, error) {
				if len(data) < wire.UUIDByteLen {
					return 0, ErrBufferExhausted
				}
				u, err := wire.ParseUUID(data[:wire.UUIDByteLen])
				if err != nil {
					return 0, ErrBufferExhausted
				}
				v.Set(reflect.ValueOf(u))
				return wire.UUIDByteLen, nil
			},
			Size: func(reflect.Value) (int, error) { return wire.UUIDByteLen, nil },
		}, nil

	default:
		return Chain{}, fmt.Errorf("pickle: chain: unhandled built-in tag %s", tag)
	}
}

// translateVarintErr maps the low-level wire package's own sentinels
// onto this package's ReadFunc error vocabulary so callers only ever
// need to know about chain.ErrBufferExhausted/ErrMalformedWire.
func translateVarintErr(err error) error {
	switch err {
	case wire.ErrVarintTruncated:
		return ErrBufferExhausted
	case wire.ErrVarintOverflow, wire.ErrVarintTooLong:
		return ErrMalformedWire
	case wire.ErrInvalidUTF8:
		return ErrMalformedWire
	default:
		return err
	}
}
