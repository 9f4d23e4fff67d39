package pickle

import "github.com/blockberries/pickle/pkg/schema"

// Limits bounds the resources a single Deserialize call may consume,
// so that untrusted input cannot force unbounded allocation before a
// single byte of application data is available (distilled spec §7,
// BufferExhausted/MalformedWire are the errors these limits turn
// otherwise-unbounded reads into).
type Limits struct {
	// MaxDepth caps how deeply records may nest inside one decoded
	// value. A value of 0 means no limit.
	MaxDepth int

	// MaxStringLength caps a single STRING leaf's byte length.
	// A value of 0 means no limit beyond the buffer itself.
	MaxStringLength int

	// MaxContainerLength caps the element/entry count of a single
	// LIST, ARRAY, or MAP frame. A value of 0 means no limit.
	MaxContainerLength int
}

// DefaultLimits are generous limits suitable for trusted input.
var DefaultLimits = Limits{
	MaxDepth:           100,
	MaxStringLength:    64 * 1024 * 1024,
	MaxContainerLength: 1_000_000,
}

// SecureLimits are conservative limits for untrusted input.
var SecureLimits = Limits{
	MaxDepth:           32,
	MaxStringLength:    1 * 1024 * 1024,
	MaxContainerLength: 10_000,
}

// NoLimits disables all resource limits. Use only for trusted input.
var NoLimits = Limits{}

// Options configures a Pickler's construction and its runtime
// behaviour (distilled spec §8's "optional compatibility flag
// surface").
type Options struct {
	// Limits bounds per-call resource consumption on the read path.
	Limits Limits

	// ValidateUTF8 validates that decoded STRING leaves are valid
	// UTF-8, returning MalformedWire if not. Costs a full scan of
	// every decoded string; disable for trusted, high-throughput input.
	ValidateUTF8 bool

	// Compatibility governs how the record engine reacts to a
	// field-count mismatch between the wire and the current struct
	// (pkg/schema.CompatibilityMode). Off by default.
	Compatibility schema.CompatibilityMode

	// Deterministic sorts MAP keys before writing, at construction
	// time, so that the same map value always serializes to the same
	// bytes. Disable for better throughput when byte-identical output
	// across runs doesn't matter.
	Deterministic bool
}

// DefaultOptions are the default construction options: exact schema
// matching, UTF-8 validated, generous resource limits, deterministic
// map encoding.
var DefaultOptions = Options{
	Limits:        DefaultLimits,
	ValidateUTF8:  true,
	Compatibility: schema.Off,
	Deterministic: true,
}

// SecureOptions are conservative options for untrusted input.
var SecureOptions = Options{
	Limits:        SecureLimits,
	ValidateUTF8:  true,
	Compatibility: schema.Off,
	Deterministic: true,
}

// FastOptions prioritise throughput over defensiveness: no UTF-8
// validation, no resource limits, and map keys written in Go's
// randomized iteration order. Use only for trusted input produced by a
// pickler of the same schema.
var FastOptions = Options{
	Limits:        NoLimits,
	ValidateUTF8:  false,
	Compatibility: schema.Off,
	Deterministic: false,
}

// Version information, set by ldflags at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// VersionInfo returns a formatted version string.
func VersionInfo() string {
	return Version + " (" + GitCommit + ", " + BuildDate + ")"
}
