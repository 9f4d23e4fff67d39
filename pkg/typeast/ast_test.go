package typeast

import (
	"reflect"
	"testing"

	"github.com/blockberries/pickle/internal/wire"
	"github.com/google/uuid"
)

type Person struct {
	Name string
	Age  int32
}

type Suit int32

func tags(ast AST) []wire.Tag {
	out := make([]wire.Tag, len(ast))
	for i, n := range ast {
		out[i] = n.Tag
	}
	return out
}

func assertTags(t *testing.T, ast AST, want ...wire.Tag) {
	t.Helper()
	got := tags(ast)
	if len(got) != len(want) {
		t.Fatalf("AST length = %d (%v), want %d (%v)", len(got), got, len(want), want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("AST[%d] = %v, want %v (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestAnalyseLeaves(t *testing.T) {
	cases := []struct {
		name string
		typ  reflect.Type
		want wire.Tag
	}{
		{"bool", reflect.TypeOf(true), wire.TagBoolean},
		{"int8", reflect.TypeOf(int8(0)), wire.TagByte},
		{"int16", reflect.TypeOf(int16(0)), wire.TagShort},
		{"uint16", reflect.TypeOf(uint16(0)), wire.TagCharacter},
		{"int32", reflect.TypeOf(int32(0)), wire.TagInteger},
		{"int64", reflect.TypeOf(int64(0)), wire.TagLong},
		{"float32", reflect.TypeOf(float32(0)), wire.TagFloat},
		{"float64", reflect.TypeOf(float64(0)), wire.TagDouble},
		{"string", reflect.TypeOf(""), wire.TagString},
		{"uuid", reflect.TypeOf(uuid.UUID{}), wire.TagUUID},
		{"named int32 enum", reflect.TypeOf(Suit(0)), wire.TagEnum},
		{"struct record", reflect.TypeOf(Person{}), wire.TagRecord},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ast, err := Analyse(c.typ)
			if err != nil {
				t.Fatalf("Analyse(%s): %v", c.name, err)
			}
			assertTags(t, ast, c.want)
		})
	}
}

func TestAnalyseInterfaceLeaf(t *testing.T) {
	var iface interface{ Speak() string }
	ast, err := Analyse(reflect.TypeOf(&iface).Elem())
	if err != nil {
		t.Fatalf("Analyse: %v", err)
	}
	assertTags(t, ast, wire.TagInterface)
}

// List<Optional<Integer[]>> from the distilled spec's own example maps
// to a Go []*[]int32 — a list of optional arrays of int32, where the
// int32 element kind is one of the ones bound to ARRAY's bulk
// specialisations (SPEC_FULL §6).
func TestAnalyseListOfOptionalArrayOfInt32(t *testing.T) {
	typ := reflect.TypeOf([]*[]int32{})
	ast, err := Analyse(typ)
	if err != nil {
		t.Fatalf("Analyse: %v", err)
	}
	assertTags(t, ast, wire.TagList, wire.TagOptional, wire.TagArray, wire.TagInteger)
}

// A slice of records never qualifies for the ARRAY bulk specialisations,
// since those only cover byte/bool/int32/int64 elements (SPEC_FULL §6);
// it is classified LIST regardless of the nesting around it.
func TestAnalyseListOfOptionalListOfRecord(t *testing.T) {
	typ := reflect.TypeOf([]*[]Person{})
	ast, err := Analyse(typ)
	if err != nil {
		t.Fatalf("Analyse: %v", err)
	}
	assertTags(t, ast, wire.TagList, wire.TagOptional, wire.TagList, wire.TagRecord)
}

// Map<String, Optional<Integer[]>[]> maps to Go map[string][]*[]int32.
func TestAnalyseMapWithNestedOptionalArray(t *testing.T) {
	typ := reflect.TypeOf(map[string][]*[]int32{})
	ast, err := Analyse(typ)
	if err != nil {
		t.Fatalf("Analyse: %v", err)
	}
	assertTags(t, ast,
		wire.TagMap,
		wire.TagString,
		wire.TagMapSeparator,
		wire.TagList,
		wire.TagOptional,
		wire.TagArray,
		wire.TagInteger,
	)
	if ast[0].Type != typ {
		t.Fatalf("MAP node Type = %v, want %v", ast[0].Type, typ)
	}
	if ast[2].Type != nil {
		t.Fatalf("MAP_SEPARATOR node Type = %v, want nil", ast[2].Type)
	}
}

func TestAnalyseArrayElementKinds(t *testing.T) {
	cases := []struct {
		name string
		typ  reflect.Type
	}{
		{"byte slice", reflect.TypeOf([]byte{})},
		{"bool slice", reflect.TypeOf([]bool{})},
		{"int32 slice", reflect.TypeOf([]int32{})},
		{"int64 slice", reflect.TypeOf([]int64{})},
		{"fixed byte array", reflect.TypeOf([4]byte{})},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ast, err := Analyse(c.typ)
			if err != nil {
				t.Fatalf("Analyse(%s): %v", c.name, err)
			}
			if ast[0].Tag != wire.TagArray {
				t.Fatalf("%s: root tag = %v, want ARRAY", c.name, ast[0].Tag)
			}
		})
	}
}

func TestAnalyseListElementKinds(t *testing.T) {
	cases := []reflect.Type{
		reflect.TypeOf([]string{}),
		reflect.TypeOf([]float64{}),
		reflect.TypeOf([]Person{}),
	}
	for _, typ := range cases {
		ast, err := Analyse(typ)
		if err != nil {
			t.Fatalf("Analyse(%v): %v", typ, err)
		}
		if ast[0].Tag != wire.TagList {
			t.Fatalf("%v: root tag = %v, want LIST", typ, ast[0].Tag)
		}
	}
}

func TestAnalyseRejectsUnsupportedKinds(t *testing.T) {
	cases := []reflect.Type{
		reflect.TypeOf(make(chan int)),
		reflect.TypeOf(func() {}),
		reflect.TypeOf(complex64(0)),
		reflect.TypeOf(uintptr(0)),
	}
	for _, typ := range cases {
		if _, err := Analyse(typ); err == nil {
			t.Errorf("Analyse(%v): expected ErrUnsupportedType, got nil", typ)
		}
	}
}

func TestAnalyseRejectsExcessiveDepth(t *testing.T) {
	typ := reflect.TypeOf([]byte{})
	for i := 0; i < maxDepth+2; i++ {
		typ = reflect.PtrTo(typ)
	}
	if _, err := Analyse(typ); err == nil {
		t.Fatal("expected ErrASTTooDeep for excessively nested type")
	}
}

func TestAnalyseTypeMemoises(t *testing.T) {
	typ := reflect.TypeOf(Person{})
	first, err := AnalyseType(typ)
	if err != nil {
		t.Fatalf("AnalyseType: %v", err)
	}
	second, err := AnalyseType(typ)
	if err != nil {
		t.Fatalf("AnalyseType: %v", err)
	}
	if &first[0] != &second[0] {
		t.Fatal("AnalyseType did not return the cached slice on the second call")
	}
}

func TestValidateAcceptsAnalyseOutput(t *testing.T) {
	typs := []reflect.Type{
		reflect.TypeOf(Person{}),
		reflect.TypeOf([]*[]Person{}),
		reflect.TypeOf(map[string][]*[]int32{}),
	}
	for _, typ := range typs {
		ast, err := Analyse(typ)
		if err != nil {
			t.Fatalf("Analyse(%v): %v", typ, err)
		}
		if err := Validate(ast); err != nil {
			t.Errorf("Validate rejected well-formed AST for %v: %v", typ, err)
		}
	}
}

func TestValidateRejectsMalformedASTs(t *testing.T) {
	cases := []struct {
		name string
		ast  AST
	}{
		{"empty", AST{}},
		{"unclosed container", AST{{wire.TagList, reflect.TypeOf([]int32{})}}},
		{"dangling map separator", AST{{wire.TagMapSeparator, nil}, {wire.TagString, reflect.TypeOf("")}}},
		{"map missing separator", AST{
			{wire.TagMap, reflect.TypeOf(map[string]int32{})},
			{wire.TagString, reflect.TypeOf("")},
			{wire.TagInteger, reflect.TypeOf(int32(0))},
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if err := Validate(c.ast); err == nil {
				t.Errorf("Validate(%s): expected error, got nil", c.name)
			}
		})
	}
}
