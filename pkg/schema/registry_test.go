package schema

import (
	"errors"
	"reflect"
	"testing"
)

type animal interface{ isAnimal() }

type dog struct {
	Name string
	Legs int32
}

func (dog) isAnimal() {}

type eagle struct {
	Wingspan float64
}

func (eagle) isAnimal() {}

type notAnAnimal struct{}

type suit int32

func TestRegisterVariantsAcceptsStructImplementations(t *testing.T) {
	r := NewRegistry()
	iface := reflect.TypeOf((*animal)(nil)).Elem()
	if err := r.RegisterVariants(iface, reflect.TypeOf(dog{}), reflect.TypeOf(eagle{})); err != nil {
		t.Fatalf("RegisterVariants: %v", err)
	}
	got, ok := r.VariantsOf(iface)
	if !ok || len(got) != 2 {
		t.Fatalf("VariantsOf = %v, %v", got, ok)
	}
}

func TestRegisterVariantsRejectsNonImplementor(t *testing.T) {
	r := NewRegistry()
	iface := reflect.TypeOf((*animal)(nil)).Elem()
	err := r.RegisterVariants(iface, reflect.TypeOf(notAnAnimal{}))
	if !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema, got %v", err)
	}
}

func TestRegisterVariantsRejectsNonInterface(t *testing.T) {
	r := NewRegistry()
	err := r.RegisterVariants(reflect.TypeOf(dog{}), reflect.TypeOf(eagle{}))
	if !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema, got %v", err)
	}
}

func TestRegisterVariantsRejectsEmpty(t *testing.T) {
	r := NewRegistry()
	iface := reflect.TypeOf((*animal)(nil)).Elem()
	if err := r.RegisterVariants(iface); err == nil {
		t.Fatal("expected error for empty variant list")
	}
}

func TestRegisterEnumRoundTrip(t *testing.T) {
	r := NewRegistry()
	typ := reflect.TypeOf(suit(0))
	if err := r.RegisterEnum(typ, []int64{0, 1, 2, 3}); err != nil {
		t.Fatalf("RegisterEnum: %v", err)
	}
	got, ok := r.EnumValuesOf(typ)
	if !ok || len(got) != 4 {
		t.Fatalf("EnumValuesOf = %v, %v", got, ok)
	}
}

func TestRegisterEnumRejectsDuplicateValues(t *testing.T) {
	r := NewRegistry()
	typ := reflect.TypeOf(suit(0))
	if err := r.RegisterEnum(typ, []int64{0, 1, 1}); err == nil {
		t.Fatal("expected error for duplicate enum values")
	}
}

func TestRegisterEnumRejectsEmpty(t *testing.T) {
	r := NewRegistry()
	typ := reflect.TypeOf(suit(0))
	if err := r.RegisterEnum(typ, nil); err == nil {
		t.Fatal("expected error for empty enum value list")
	}
}
