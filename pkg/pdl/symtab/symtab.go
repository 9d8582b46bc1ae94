// Package symtab holds the type hierarchy, object universes, and parameter
// bindings that the rest of the compiler grounds formulas against. Types and
// Objects are created once by the parser and referenced by identity for the
// remainder of a compilation; nothing in this package mutates an existing
// Type or Object after construction.
package symtab

import "fmt"

// Type is a named node in a single-rooted type hierarchy. A Type carries an
// optional parent and an ordered list of Objects that belong to it directly.
// Object membership is transitive: every Object belongs to its declared Type
// and every ancestor Type. Objects holds only the directly declared ones;
// Table.AllObjectsOf answers the transitive query.
type Type struct {
	Name    string
	Parent  *Type
	Objects []*Object
}

// NewType creates a root or child Type. Pass nil for parent to create a
// root type (RDDL's implicit "object" root).
func NewType(name string, parent *Type) *Type {
	return &Type{Name: name, Parent: parent}
}

// IsSubtypeOf reports whether t is parent, or a descendant of parent,
// walking the parent chain. A type is considered a subtype of itself.
func (t *Type) IsSubtypeOf(parent *Type) bool {
	for cur := t; cur != nil; cur = cur.Parent {
		if cur == parent {
			return true
		}
	}
	return false
}

// ObjectsTransitive returns t's own declared Objects (the same list as
// t.Objects); Objects of t's subtypes are not included. Type values only
// track their own Objects list, so aggregating the objects of subtypes is
// left to Table.AllObjectsOf.
func (t *Type) ObjectsTransitive() []*Object {
	return t.Objects
}

// Object is a named typed value. Objects serve dual roles: as parameter
// bindings during grounding (Instantiator.instantiate_params) and as the
// semantic values of non-numeric fluents (an enum-typed StateFluent's value
// is an Object's Ordinal).
type Object struct {
	Name    string
	Type    *Type
	Ordinal int // nonnegative position within Type.Objects
}

func (o *Object) String() string {
	if o == nil {
		return "<nil-object>"
	}
	return o.Name
}

// Parameter is a (name, type) pair appearing in a schematic variable's
// parameter list or a quantifier binder. During grounding a Parameter is
// replaced by a concrete Object of a type satisfying Type.
type Parameter struct {
	Name string
	Type *Type
}

// Table owns every Type and Object created while parsing a domain, and
// provides the lookups the Instantiator needs to enumerate cartesian
// products of parameter types.
type Table struct {
	types    map[string]*Type
	objects  map[string]*Object // qualified by type to disambiguate same-name objects across types
	byType   map[*Type][]*Object
	typeList []*Type
}

// NewTable creates an empty symbol table.
func NewTable() *Table {
	return &Table{
		types:   make(map[string]*Type),
		objects: make(map[string]*Object),
		byType:  make(map[*Type][]*Object),
	}
}

// DeclareType registers a new Type. Returns an error if the name is already
// in use (duplicate domain/non-fluents/instance name, per §7 Schema errors).
func (t *Table) DeclareType(name string, parent *Type) (*Type, error) {
	if _, ok := t.types[name]; ok {
		return nil, fmt.Errorf("duplicate type declaration: %q", name)
	}
	typ := NewType(name, parent)
	t.types[name] = typ
	t.typeList = append(t.typeList, typ)
	return typ, nil
}

// Type looks up a previously declared Type by name.
func (t *Table) Type(name string) (*Type, error) {
	typ, ok := t.types[name]
	if !ok {
		return nil, fmt.Errorf("unknown type: %q", name)
	}
	return typ, nil
}

// DeclareObject registers an Object of the given Type, assigning it the next
// ordinal within that Type's own object list. The object is also recorded
// as belonging to every ancestor type, so AllObjectsOf can answer queries
// against a supertype.
func (t *Table) DeclareObject(name string, typ *Type) (*Object, error) {
	key := typ.Name + "::" + name
	if _, ok := t.objects[key]; ok {
		return nil, fmt.Errorf("duplicate object %q for type %q", name, typ.Name)
	}
	obj := &Object{Name: name, Type: typ, Ordinal: len(typ.Objects)}
	typ.Objects = append(typ.Objects, obj)
	t.objects[key] = obj
	for cur := typ; cur != nil; cur = cur.Parent {
		t.byType[cur] = append(t.byType[cur], obj)
	}
	return obj, nil
}

// AllObjectsOf returns every Object whose declared type is typ or a
// descendant of typ, in declaration order. This is the object universe a
// Parameter of this Type ranges over during grounding.
func (t *Table) AllObjectsOf(typ *Type) []*Object {
	return t.byType[typ]
}

// Object looks up a previously declared Object of the given Type by name.
func (t *Table) Object(name string, typ *Type) (*Object, error) {
	key := typ.Name + "::" + name
	obj, ok := t.objects[key]
	if !ok {
		return nil, fmt.Errorf("unknown object %q of type %q", name, typ.Name)
	}
	return obj, nil
}

// Types returns every declared Type in declaration order.
func (t *Table) Types() []*Type {
	return t.typeList
}

// ObjectNamesOf implements expr.QuantifierInstantiator: it returns the
// object universe a quantifier binder of the given type name ranges over,
// in declaration order.
func (t *Table) ObjectNamesOf(typeName string) ([]string, error) {
	typ, err := t.Type(typeName)
	if err != nil {
		return nil, err
	}
	objs := t.AllObjectsOf(typ)
	names := make([]string, len(objs))
	for i, o := range objs {
		names[i] = o.Name
	}
	return names, nil
}
