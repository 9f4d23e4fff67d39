package wire

import (
	"testing"

	"github.com/google/uuid"
)

func TestTagString(t *testing.T) {
	cases := []struct {
		tag  Tag
		want string
	}{
		{TagArray, "ARRAY"},
		{TagList, "LIST"},
		{TagOptional, "OPTIONAL"},
		{TagMap, "MAP"},
		{TagBoolean, "BOOLEAN"},
		{TagByte, "BYTE"},
		{TagShort, "SHORT"},
		{TagCharacter, "CHARACTER"},
		{TagInteger, "INTEGER"},
		{TagLong, "LONG"},
		{TagFloat, "FLOAT"},
		{TagDouble, "DOUBLE"},
		{TagString, "STRING"},
		{TagUUID, "UUID"},
		{TagEnum, "ENUM"},
		{TagRecord, "RECORD"},
		{TagInterface, "INTERFACE"},
		{TagMapSeparator, "MAP_SEPARATOR"},
	}
	for _, c := range cases {
		if got := c.tag.String(); got != c.want {
			t.Errorf("%v.String() = %q, want %q", int(c.tag), got, c.want)
		}
	}
}

func TestTagClassification(t *testing.T) {
	containers := []Tag{TagArray, TagList, TagOptional, TagMap}
	for _, tag := range containers {
		if !tag.IsContainer() {
			t.Errorf("%v should be a container", tag)
		}
		if tag.IsUserLeaf() {
			t.Errorf("%v should not be a user leaf", tag)
		}
	}

	builtins := []Tag{TagBoolean, TagByte, TagShort, TagCharacter, TagInteger, TagLong, TagFloat, TagDouble, TagString, TagUUID}
	for _, tag := range builtins {
		if !tag.IsBuiltinLeaf() {
			t.Errorf("%v should be a builtin leaf", tag)
		}
		if tag.IsContainer() {
			t.Errorf("%v should not be a container", tag)
		}
	}

	userLeaves := []Tag{TagEnum, TagRecord, TagInterface}
	for _, tag := range userLeaves {
		if !tag.IsUserLeaf() {
			t.Errorf("%v should be a user leaf", tag)
		}
		if tag.IsBuiltinLeaf() {
			t.Errorf("%v should not be a builtin leaf", tag)
		}
	}
}

func TestMarkersAreNegativeAndDistinct(t *testing.T) {
	seen := map[Marker]Tag{}
	for _, e := range registryOrder {
		m := MarkerFor(e.tag)
		if m >= 0 {
			t.Errorf("marker for %v is %d, want negative", e.tag, m)
		}
		if other, dup := seen[m]; dup {
			t.Errorf("marker %d reused by both %v and %v", m, other, e.tag)
		}
		seen[m] = e.tag
	}
}

func TestArrayDiscriminatorMarkersDistinct(t *testing.T) {
	markers := []Marker{IntArrayPackedMarker(), IntArrayPlainMarker(), LongArrayPackedMarker(), LongArrayPlainMarker()}
	seen := map[Marker]bool{}
	for _, m := range markers {
		if seen[m] {
			t.Fatalf("duplicate array discriminator marker %d", m)
		}
		seen[m] = true
	}
}

func TestFixedSizeOf(t *testing.T) {
	cases := []struct {
		tag  Tag
		size int
	}{
		{TagBoolean, 1},
		{TagByte, 1},
		{TagShort, 2},
		{TagCharacter, 2},
		{TagFloat, 4},
		{TagDouble, 8},
		{TagUUID, 16},
		{TagInteger, -1},
		{TagLong, -1},
		{TagString, -1},
		{TagArray, -1},
	}
	for _, c := range cases {
		if got := FixedSizeOf(c.tag); got != c.size {
			t.Errorf("FixedSizeOf(%v) = %d, want %d", c.tag, got, c.size)
		}
	}
}

func TestUUIDRoundTrip(t *testing.T) {
	u := uuid.New()
	buf := AppendUUID(nil, u)
	if len(buf) != UUIDByteLen {
		t.Fatalf("encoded UUID length = %d, want %d", len(buf), UUIDByteLen)
	}
	got, err := ParseUUID(buf)
	if err != nil {
		t.Fatalf("ParseUUID: %v", err)
	}
	if got != u {
		t.Fatalf("round trip failed: %v -> %v", u, got)
	}
}

func TestParseUUIDTruncated(t *testing.T) {
	if _, err := ParseUUID([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated UUID bytes")
	}
}
