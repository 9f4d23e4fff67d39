//go:build go1.18

package pickle

import (
	"math"
	"testing"

	"github.com/blockberries/pickle/internal/wire"
)

type fuzzMessage struct {
	ID      int64
	Name    string
	Value   float64
	Enabled bool
}

// FuzzDeserializeNeverPanics asserts that decoding arbitrary bytes
// against a real Pickler either succeeds or returns an error — never
// panics, regardless of how the input is malformed (distilled spec §7,
// every per-call error kind is a returned error, not a crash).
func FuzzDeserializeNeverPanics(f *testing.F) {
	p, err := For[fuzzMessage]()
	if err != nil {
		f.Fatalf("For[fuzzMessage]: %v", err)
	}

	f.Add([]byte{})
	f.Add([]byte{0x00})
	f.Add([]byte{0x01, 0x04})
	f.Add([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01})

	seedMsg := fuzzMessage{ID: 7, Name: "hello", Value: 1.5, Enabled: true}
	if seed, err := p.Serialize(nil, &seedMsg); err == nil {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		_, _, _ = p.Deserialize(data)
	})
}

// FuzzSerializeDeserializeRoundTrip asserts that any fuzzMessage value
// serializes and deserializes back to itself.
func FuzzSerializeDeserializeRoundTrip(f *testing.F) {
	p, err := For[fuzzMessage]()
	if err != nil {
		f.Fatalf("For[fuzzMessage]: %v", err)
	}

	f.Add(int64(0), "", float64(0), false)
	f.Add(int64(1), "hello", float64(1.5), true)
	f.Add(int64(-1), "world", float64(-1.5), false)
	f.Add(int64(math.MaxInt64), "max", math.MaxFloat64, true)
	f.Add(int64(math.MinInt64), "min", -math.MaxFloat64, false)

	f.Fuzz(func(t *testing.T, id int64, name string, value float64, enabled bool) {
		original := fuzzMessage{ID: id, Name: name, Value: value, Enabled: enabled}

		data, err := p.Serialize(nil, &original)
		if err != nil {
			t.Fatalf("Serialize failed: %v", err)
		}

		decoded, _, err := p.Deserialize(data)
		if err != nil {
			t.Fatalf("Deserialize failed: %v", err)
		}

		if decoded.ID != original.ID || decoded.Name != original.Name || decoded.Enabled != original.Enabled {
			t.Fatalf("round-trip mismatch: got %+v, want %+v", decoded, original)
		}
		if !(math.IsNaN(decoded.Value) && math.IsNaN(original.Value)) && decoded.Value != original.Value {
			t.Fatalf("round-trip mismatch on Value: got %v, want %v", decoded.Value, original.Value)
		}
	})
}

// FuzzVarintRoundTrip exercises the zig-zag varint codec directly,
// the same shape as the teacher's own Writer/Reader varint fuzz target
// but against internal/wire's append/decode function pairs instead of a
// stateful Writer/Reader, since those are this module's lowest-level
// primitives now.
func FuzzVarintRoundTrip(f *testing.F) {
	f.Add(int64(0), uint64(0))
	f.Add(int64(1), uint64(1))
	f.Add(int64(-1), uint64(math.MaxUint64))
	f.Add(int64(math.MaxInt64), uint64(math.MaxUint32))
	f.Add(int64(math.MinInt64), uint64(math.MaxUint64))

	f.Fuzz(func(t *testing.T, signed int64, unsigned uint64) {
		buf := wire.AppendSvarint(nil, signed)
		buf = wire.AppendUvarint(buf, unsigned)

		gotSigned, n, err := wire.DecodeSvarint(buf)
		if err != nil {
			t.Fatalf("DecodeSvarint failed: %v", err)
		}
		gotUnsigned, _, err := wire.DecodeUvarint(buf[n:])
		if err != nil {
			t.Fatalf("DecodeUvarint failed: %v", err)
		}

		if gotSigned != signed {
			t.Errorf("signed: got %d, want %d", gotSigned, signed)
		}
		if gotUnsigned != unsigned {
			t.Errorf("unsigned: got %d, want %d", gotUnsigned, unsigned)
		}
	})
}

// FuzzDecodeUvarintNeverPanics asserts the decoder only ever returns an
// error on malformed input, regardless of truncation or overflow.
func FuzzDecodeUvarintNeverPanics(f *testing.F) {
	f.Add([]byte{0x00})
	f.Add([]byte{0x7f})
	f.Add([]byte{0x80, 0x01})
	f.Add([]byte{0x80})
	f.Add([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01})

	f.Fuzz(func(t *testing.T, data []byte) {
		_, _, _ = wire.DecodeUvarint(data)
	})
}

// FuzzStringRoundTrip exercises DecodeString against arbitrary length
// prefixes and payloads.
func FuzzStringRoundTrip(f *testing.F) {
	f.Add("")
	f.Add("hello")
	f.Add("unicode: é中\U0001F600")

	f.Fuzz(func(t *testing.T, s string) {
		buf := wire.AppendString(nil, s)
		got, n, err := wire.DecodeString(buf, true)
		if err != nil {
			t.Fatalf("DecodeString failed: %v", err)
		}
		if n != len(buf) {
			t.Fatalf("DecodeString consumed %d bytes, want %d", n, len(buf))
		}
		if got != s {
			t.Fatalf("round-trip mismatch: got %q, want %q", got, s)
		}
	})
}

// FuzzFloatRoundTrip tests float encoding round-trip, including NaN-ness
// and negative-zero preservation (internal/wire/fixed.go
// deliberately performs no canonicalization).
func FuzzFloatRoundTrip(f *testing.F) {
	f.Add(float32(0), float64(0))
	f.Add(float32(1.5), float64(1.5))
	f.Add(float32(-1.5), float64(-1.5))
	f.Add(float32(math.MaxFloat32), float64(math.MaxFloat64))
	f.Add(float32(math.SmallestNonzeroFloat32), float64(math.SmallestNonzeroFloat64))

	f.Fuzz(func(t *testing.T, f32 float32, f64 float64) {
		buf := wire.AppendFloat32(nil, f32)
		buf = wire.AppendFloat64(buf, f64)

		gotF32, err := wire.DecodeFloat32(buf[:wire.Float32Size])
		if err != nil {
			t.Fatalf("DecodeFloat32 failed: %v", err)
		}
		gotF64, err := wire.DecodeFloat64(buf[wire.Float32Size:])
		if err != nil {
			t.Fatalf("DecodeFloat64 failed: %v", err)
		}

		if math.IsNaN(float64(f32)) {
			if !math.IsNaN(float64(gotF32)) {
				t.Errorf("float32 NaN: got %v, want NaN", gotF32)
			}
		} else if gotF32 != f32 || math.Signbit(float64(gotF32)) != math.Signbit(float64(f32)) {
			t.Errorf("float32: got %v, want %v", gotF32, f32)
		}

		if math.IsNaN(f64) {
			if !math.IsNaN(gotF64) {
				t.Errorf("float64 NaN: got %v, want NaN", gotF64)
			}
		} else if gotF64 != f64 || math.Signbit(gotF64) != math.Signbit(f64) {
			t.Errorf("float64: got %v, want %v", gotF64, f64)
		}
	})
}
