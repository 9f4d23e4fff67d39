package schema

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/blockberries/pickle/pkg/typeast"
)

var discoveryCache sync.Map // discoveryKey -> *Schema

type discoveryKey struct {
	root     reflect.Type
	registry *Registry
}

// Discover computes the transitive closure of every record and enum
// reachable from root through record field ASTs and through the
// permitted-variants relation of any sealed interface encountered
// (distilled spec §4.4), using reg to resolve interface variants and
// enum value sets. Results are memoised per (root, reg) pair, mirroring
// typeast's own per-type memoisation.
func Discover(root reflect.Type, reg *Registry) (*Schema, error) {
	key := discoveryKey{root, reg}
	if cached, ok := discoveryCache.Load(key); ok {
		return cached.(*Schema), nil
	}

	d := &discoverer{
		reg:        reg,
		visited:    make(map[reflect.Type]bool),
		records:    make(map[reflect.Type]*RecordType),
		enums:      make(map[reflect.Type]*EnumType),
		interfaces: make(map[reflect.Type]*InterfaceType),
	}
	if err := d.discover(root); err != nil {
		return nil, err
	}

	schema, err := d.build(root)
	if err != nil {
		return nil, err
	}
	discoveryCache.Store(key, schema)
	return schema, nil
}

type discoverer struct {
	reg        *Registry
	visited    map[reflect.Type]bool
	records    map[reflect.Type]*RecordType
	enums      map[reflect.Type]*EnumType
	interfaces map[reflect.Type]*InterfaceType
}

func (d *discoverer) discover(t reflect.Type) error {
	if d.visited[t] {
		return nil
	}
	d.visited[t] = true

	switch t.Kind() {
	case reflect.Struct:
		return d.discoverRecord(t)
	case reflect.Interface:
		return d.discoverInterface(t)
	default:
		return d.discoverEnum(t)
	}
}

func (d *discoverer) discoverRecord(t reflect.Type) error {
	rec := &RecordType{Go: t}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" { // unexported
			continue
		}
		rec.Fields = append(rec.Fields, Field{Name: sf.Name, Type: sf.Type})

		ast, err := typeast.AnalyseType(sf.Type)
		if err != nil {
			return fmt.Errorf("pickle: field %s.%s: %w", t, sf.Name, err)
		}
		for _, node := range ast {
			if node.Tag.IsUserLeaf() {
				if err := d.discover(node.Type); err != nil {
					return fmt.Errorf("pickle: field %s.%s: %w", t, sf.Name, err)
				}
			}
		}
	}
	d.records[t] = rec
	return nil
}

func (d *discoverer) discoverEnum(t reflect.Type) error {
	values, ok := d.reg.EnumValuesOf(t)
	if !ok {
		return fmt.Errorf("%w: %w: enum type %s has no registered values (use pickle.EnumValues)", ErrInvalidSchema, ErrUnregistered, t)
	}
	d.enums[t] = &EnumType{Go: t, Values: values}
	return nil
}

func (d *discoverer) discoverInterface(t reflect.Type) error {
	variants, ok := d.reg.VariantsOf(t)
	if !ok {
		return fmt.Errorf("%w: %w: interface type %s has no registered variants (use pickle.Variants)", ErrInvalidSchema, ErrUnregistered, t)
	}
	concrete := make([]reflect.Type, len(variants))
	for i, v := range variants {
		ct := v
		if ct.Kind() == reflect.Ptr {
			ct = ct.Elem()
		}
		concrete[i] = ct
		if err := d.discover(ct); err != nil {
			return fmt.Errorf("pickle: variant %s of %s: %w", v, t, err)
		}
	}
	d.interfaces[t] = &InterfaceType{Go: t, Variants: concrete}
	return nil
}

// build sorts the discovered records and enums by fully qualified name
// and assigns the resulting stable, logical ordinals (distilled spec
// §4.4, "this ordering is the only source of truth").
func (d *discoverer) build(root reflect.Type) (*Schema, error) {
	type named struct {
		fqn  string
		kind Kind
		t    reflect.Type
	}
	var all []named
	for t := range d.records {
		all = append(all, named{fqn(t), KindRecord, t})
	}
	for t := range d.enums {
		all = append(all, named{fqn(t), KindEnum, t})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].fqn < all[j].fqn })

	s := &Schema{Root: root, Interfaces: d.interfaces}
	s.Types = make([]UserType, len(all))
	for i, n := range all {
		u := UserType{Kind: n.kind, Ordinal: i + 1}
		switch n.kind {
		case KindRecord:
			u.Record = d.records[n.t]
		case KindEnum:
			u.Enum = d.enums[n.t]
		}
		s.Types[i] = u
	}
	s.index()
	return s, nil
}

// fqn returns a type's fully qualified name for ordinal sorting: its
// import path joined with its declared name. Builtin-only leaves never
// reach this function since they are never enqueued for discovery.
func fqn(t reflect.Type) string {
	return t.PkgPath() + "." + t.Name()
}
