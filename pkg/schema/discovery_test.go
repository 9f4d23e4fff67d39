package schema

import (
	"errors"
	"reflect"
	"testing"
)

type address struct {
	City    string
	ZipCode string
}

type person struct {
	Name    string
	Age     int32
	Home    *address
	Friends []person
}

func TestDiscoverSimpleRecordGraph(t *testing.T) {
	reg := NewRegistry()
	s, err := Discover(reflect.TypeOf(person{}), reg)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(s.Types) != 2 {
		t.Fatalf("len(Types) = %d, want 2 (person, address)", len(s.Types))
	}
	// "address" sorts before "person" lexicographically.
	if s.Types[0].Record.Go != reflect.TypeOf(address{}) {
		t.Fatalf("Types[0] = %v, want address", s.Types[0].Record.Go)
	}
	if s.Types[1].Record.Go != reflect.TypeOf(person{}) {
		t.Fatalf("Types[1] = %v, want person", s.Types[1].Record.Go)
	}
	if s.OrdinalOf(reflect.TypeOf(address{})) != 1 {
		t.Fatalf("OrdinalOf(address) = %d, want 1", s.OrdinalOf(reflect.TypeOf(address{})))
	}
	if s.OrdinalOf(reflect.TypeOf(person{})) != 2 {
		t.Fatalf("OrdinalOf(person) = %d, want 2", s.OrdinalOf(reflect.TypeOf(person{})))
	}
}

func TestDiscoverIsStableAcrossCalls(t *testing.T) {
	reg := NewRegistry()
	a, err := Discover(reflect.TypeOf(person{}), reg)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	b, err := Discover(reflect.TypeOf(person{}), reg)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(a.Types) != len(b.Types) {
		t.Fatalf("ordinal assignment not stable across calls")
	}
	for i := range a.Types {
		if a.Types[i].GoType() != b.Types[i].GoType() {
			t.Fatalf("ordinal %d differs across calls: %v vs %v", i+1, a.Types[i].GoType(), b.Types[i].GoType())
		}
	}
}

func TestDiscoverSealedInterface(t *testing.T) {
	reg := NewRegistry()
	iface := reflect.TypeOf((*animal)(nil)).Elem()
	if err := reg.RegisterVariants(iface, reflect.TypeOf(dog{}), reflect.TypeOf(eagle{})); err != nil {
		t.Fatalf("RegisterVariants: %v", err)
	}

	type zoo struct {
		Exhibit animal
	}
	s, err := Discover(reflect.TypeOf(zoo{}), reg)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(s.Types) != 3 {
		t.Fatalf("len(Types) = %d, want 3 (dog, eagle, zoo)", len(s.Types))
	}
	if _, ok := s.Interfaces[iface]; !ok {
		t.Fatal("expected discovered interface to be recorded")
	}
	if len(s.Interfaces[iface].Variants) != 2 {
		t.Fatalf("interface variants = %v, want 2", s.Interfaces[iface].Variants)
	}
	if s.OrdinalOf(reflect.TypeOf(dog{})) == 0 || s.OrdinalOf(reflect.TypeOf(eagle{})) == 0 {
		t.Fatal("expected dog and eagle to each receive an ordinal")
	}
}

func TestDiscoverUnregisteredInterfaceFails(t *testing.T) {
	type withAnimal struct {
		Pet animal
	}
	reg := NewRegistry()
	if _, err := Discover(reflect.TypeOf(withAnimal{}), reg); !errors.Is(err, ErrInvalidSchema) || !errors.Is(err, ErrUnregistered) {
		t.Fatalf("expected ErrInvalidSchema+ErrUnregistered, got %v", err)
	}
}

func TestDiscoverUnregisteredEnumFails(t *testing.T) {
	type withSuit struct {
		S suit
	}
	reg := NewRegistry()
	if _, err := Discover(reflect.TypeOf(withSuit{}), reg); !errors.Is(err, ErrInvalidSchema) || !errors.Is(err, ErrUnregistered) {
		t.Fatalf("expected ErrInvalidSchema+ErrUnregistered, got %v", err)
	}
}

func TestDiscoverRegisteredEnum(t *testing.T) {
	type withSuit struct {
		S suit
	}
	reg := NewRegistry()
	if err := reg.RegisterEnum(reflect.TypeOf(suit(0)), []int64{0, 1, 2, 3}); err != nil {
		t.Fatalf("RegisterEnum: %v", err)
	}
	s, err := Discover(reflect.TypeOf(withSuit{}), reg)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(s.Types) != 2 {
		t.Fatalf("len(Types) = %d, want 2 (suit, withSuit)", len(s.Types))
	}
}

func TestDiscoverSkipsUnexportedFields(t *testing.T) {
	type withUnexported struct {
		Public  string
		private address
	}
	reg := NewRegistry()
	s, err := Discover(reflect.TypeOf(withUnexported{}), reg)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(s.Types) != 1 {
		t.Fatalf("len(Types) = %d, want 1 (unexported field must not pull in address)", len(s.Types))
	}
}

func TestByOrdinalRoundTrip(t *testing.T) {
	reg := NewRegistry()
	s, err := Discover(reflect.TypeOf(person{}), reg)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	for ord := 1; ord <= len(s.Types); ord++ {
		u, ok := s.ByOrdinal(ord)
		if !ok || u.Ordinal != ord {
			t.Fatalf("ByOrdinal(%d) = %v, %v", ord, u, ok)
		}
	}
	if _, ok := s.ByOrdinal(0); ok {
		t.Fatal("ByOrdinal(0) should fail")
	}
	if _, ok := s.ByOrdinal(len(s.Types) + 1); ok {
		t.Fatal("ByOrdinal(out of range) should fail")
	}
}
