package wire

import "github.com/google/uuid"

// Tag is the structural tag of a single Type AST node: a container
// operator, a built-in leaf, a user leaf, or the MAP_SEPARATOR
// pseudo-marker (distilled spec §3). Tag is a closed enumeration —
// adding a new built-in tag appends to the end; existing values never
// change meaning, because a Marker, once shipped, is permanent.
type Tag int

const (
	// Container operators.
	TagArray Tag = iota
	TagList
	TagOptional
	TagMap

	// Built-in leaves.
	TagBoolean
	TagByte
	TagShort
	TagCharacter
	TagInteger
	TagLong
	TagFloat
	TagDouble
	TagString
	TagUUID

	// User leaves. These never receive a registry entry below: their
	// marker is the target type's ordinal (positive), not a built-in
	// negative marker, and their wire size is never fixed.
	TagEnum
	TagRecord
	TagInterface

	// Pseudo-marker: separates a MAP's key sub-AST from its value
	// sub-AST. Never appears on the wire; AST-only.
	TagMapSeparator
)

func (t Tag) String() string {
	switch t {
	case TagArray:
		return "ARRAY"
	case TagList:
		return "LIST"
	case TagOptional:
		return "OPTIONAL"
	case TagMap:
		return "MAP"
	case TagBoolean:
		return "BOOLEAN"
	case TagByte:
		return "BYTE"
	case TagShort:
		return "SHORT"
	case TagCharacter:
		return "CHARACTER"
	case TagInteger:
		return "INTEGER"
	case TagLong:
		return "LONG"
	case TagFloat:
		return "FLOAT"
	case TagDouble:
		return "DOUBLE"
	case TagString:
		return "STRING"
	case TagUUID:
		return "UUID"
	case TagEnum:
		return "ENUM"
	case TagRecord:
		return "RECORD"
	case TagInterface:
		return "INTERFACE"
	case TagMapSeparator:
		return "MAP_SEPARATOR"
	default:
		return "UNKNOWN"
	}
}

// IsContainer reports whether t is one of the four container operators.
func (t Tag) IsContainer() bool {
	switch t {
	case TagArray, TagList, TagOptional, TagMap:
		return true
	default:
		return false
	}
}

// IsBuiltinLeaf reports whether t is a fixed, process-wide registered
// built-in leaf (as opposed to a user-defined ENUM/RECORD/INTERFACE leaf).
func (t Tag) IsBuiltinLeaf() bool {
	return t >= TagBoolean && t <= TagUUID
}

// IsUserLeaf reports whether t terminates an AST path into a
// caller-declared type rather than a built-in.
func (t Tag) IsUserLeaf() bool {
	switch t {
	case TagEnum, TagRecord, TagInterface:
		return true
	default:
		return false
	}
}

// Marker is the signed integer written to the wire to discriminate the
// next frame. Built-in tag markers are the negation of a small positive
// ordinal into the registry below (distilled spec §3): stable forever,
// because appending a new built-in tag to the const block above only
// ever grows the registry, never renumbers it. Zero is reserved for
// NULL; user type markers are the target's logical ordinal ([1, M]),
// assigned at schema discovery time (see pkg/schema), not here.
type Marker int64

// NullMarker is the sentinel written in place of an entire container
// frame (or an entire user-value frame) when the value is absent.
const NullMarker Marker = 0

// Pseudo-tags for the array bulk-encoding discriminators. They are not
// part of the Tag enum proper (they never label an AST node — the AST
// already knows its element is int32/int64; they only ever appear
// inside an ARRAY frame, right after its length) but they live in
// the same marker space as the built-in tags, so they are declared with
// values the real Tag enum never reaches.
const (
	tagIntArrayPacked Tag = 1000 + iota
	tagIntArrayPlain
	tagLongArrayPacked
	tagLongArrayPlain
)

// builtinEntry describes one built-in tag's wire behaviour: its stable
// ordinal (marker = -ordinal) and, where the tag has one, its fixed
// per-instance wire size. FixedSize is -1 for variable-width tags
// (INTEGER, LONG, STRING) and for the four container operators, whose
// size depends on their contents.
type builtinEntry struct {
	tag       Tag
	ordinal   int
	fixedSize int
}

// registryOrder is the closed, process-wide enumeration of built-in
// tags. Ordinals are assigned by table position and never reused or
// reordered; a future built-in tag is appended at the end.
var registryOrder = []builtinEntry{
	{TagArray, 1, -1},
	{TagList, 2, -1},
	{TagOptional, 3, -1},
	{TagMap, 4, -1},
	{TagBoolean, 5, BooleanSize},
	{TagByte, 6, ByteSize},
	{TagShort, 7, ShortSize},
	{TagCharacter, 8, CharSize},
	{TagInteger, 9, -1}, // varint
	{TagLong, 10, -1},   // varint
	{TagFloat, 11, Float32Size},
	{TagDouble, 12, Float64Size},
	{TagString, 13, -1}, // varint length + bytes
	{TagUUID, 14, UUIDSize},
	{tagIntArrayPacked, 15, -1},
	{tagIntArrayPlain, 16, -1},
	{tagLongArrayPacked, 17, -1},
	{tagLongArrayPlain, 18, -1},
}

var registry = func() map[Tag]builtinEntry {
	m := make(map[Tag]builtinEntry, len(registryOrder))
	for _, e := range registryOrder {
		m[e.tag] = e
	}
	return m
}()

// MarkerFor returns the stable wire marker for a built-in tag.
func MarkerFor(t Tag) Marker {
	e, ok := registry[t]
	if !ok {
		panic("wire: MarkerFor called with non-registry tag " + t.String())
	}
	return Marker(-e.ordinal)
}

// IntArrayPackedMarker, IntArrayPlainMarker, LongArrayPackedMarker, and
// LongArrayPlainMarker are the four dedicated discriminators written
// right after the length inside an ARRAY frame whose AST element is INTEGER or
// LONG (distilled spec §4.5, "Array specialisations").
func IntArrayPackedMarker() Marker  { return MarkerFor(tagIntArrayPacked) }
func IntArrayPlainMarker() Marker   { return MarkerFor(tagIntArrayPlain) }
func LongArrayPackedMarker() Marker { return MarkerFor(tagLongArrayPacked) }
func LongArrayPlainMarker() Marker  { return MarkerFor(tagLongArrayPlain) }

// FixedSizeOf returns the built-in tag's fixed per-instance wire size,
// or -1 if the tag has a variable-width (or container) encoding.
func FixedSizeOf(t Tag) int {
	e, ok := registry[t]
	if !ok {
		return -1
	}
	return e.fixedSize
}

// UUIDByteLen is the fixed wire size of a UUID leaf, re-exported for
// callers outside this package (the Tag registry and google/uuid agree
// on 16 raw bytes, no separators, no varint length prefix).
const UUIDByteLen = UUIDSize

// ParseUUID and AppendUUID round out the UUID leaf's primitive pair;
// google/uuid.UUID is a plain [16]byte, so these are direct copies, not
// a codec.
func ParseUUID(b []byte) (uuid.UUID, error) {
	if len(b) != UUIDByteLen {
		return uuid.UUID{}, ErrVarintTruncated
	}
	var u uuid.UUID
	copy(u[:], b)
	return u, nil
}

func AppendUUID(buf []byte, u uuid.UUID) []byte {
	return append(buf, u[:]...)
}
