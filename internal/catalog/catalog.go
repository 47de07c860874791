package catalog

import (
	"fmt"
	"sort"

	"github.com/roach88/querylift/internal/flatten"
	"github.com/roach88/querylift/internal/qmodel"
	"github.com/roach88/querylift/internal/registry"
)

// DefaultPackage is the package of entity and enum types when a catalog
// does not name one.
const DefaultPackage = "model"

// DefaultFlattenable lists the result operators that may be relocated from
// a flattened subquery into its outer query when a catalog does not say
// otherwise.
var DefaultFlattenable = flatten.DefaultOperators

// Catalog is the compiled mapping: entities with their persistent
// properties, enums, server-side functions and the flattening allow-list.
// A Catalog is read-only after compilation and safe for concurrent use.
type Catalog struct {
	Package  string
	Entities map[string]*Entity
	Enums    map[string]*Enum

	functions   []FunctionSpec
	builtins    bool
	flattenable []qmodel.OperatorKind
}

// Entity is a mapped persistent type.
type Entity struct {
	Name       string
	Table      string
	Type       *qmodel.Type
	Properties map[string]*Property

	order []string
}

// PropertyNames lists properties in declaration order.
func (e *Entity) PropertyNames() []string {
	return append([]string(nil), e.order...)
}

// Property is one mapped property.
type Property struct {
	Name        string
	Type        *qmodel.Type
	Member      *qmodel.MemberInfo
	Association bool
}

// Enum is a mapped enum with its named values.
type Enum struct {
	Name   string
	Type   *qmodel.Type
	Values map[string]int64
}

// FunctionKind says whether a function is a method call or a member read.
type FunctionKind string

const (
	FunctionMethod FunctionKind = "method"
	FunctionMember FunctionKind = "member"
)

// FunctionSpec registers one server-side function.
type FunctionSpec struct {
	DeclaringType  string
	Name           string
	Kind           FunctionKind
	HQL            string
	Generator      string
	IgnoreInstance bool
}

// Key is the registry key of the function.
func (f FunctionSpec) Key() string {
	return f.DeclaringType + "." + f.Name
}

// Entity returns the named entity.
func (c *Catalog) Entity(name string) (*Entity, bool) {
	e, ok := c.Entities[name]
	return e, ok
}

// Member returns the member info of a mapped property, for building
// expressions against the catalog.
func (c *Catalog) Member(entity, property string) (*qmodel.MemberInfo, error) {
	e, ok := c.Entities[entity]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", entity)
	}
	p, ok := e.Properties[property]
	if !ok {
		return nil, fmt.Errorf("entity %s has no property %q", entity, property)
	}
	return p.Member, nil
}

// EntityNames lists entity names, sorted.
func (c *Catalog) EntityNames() []string {
	names := make([]string, 0, len(c.Entities))
	for n := range c.Entities {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Functions lists the function specs in declaration order.
func (c *Catalog) Functions() []FunctionSpec {
	return append([]FunctionSpec(nil), c.functions...)
}

// ParseType reads a type in catalog notation: a scalar name
// (object included), enum:Name or entity:Name, with an optional trailing ?
// for nullable value types.
func (c *Catalog) ParseType(decl string) (*qmodel.Type, error) {
	if decl == "object" {
		return qmodel.Object, nil
	}
	t, _, err := c.parseType(decl)
	return t, err
}

// Flattener returns a flattener over the catalog's allow-list.
func (c *Catalog) Flattener(opts ...flatten.Option) *flatten.Flattener {
	return flatten.New(append([]flatten.Option{flatten.WithOperators(c.Flattenable()...)}, opts...)...)
}

// Flattenable returns the result operator kinds the flattener may relocate.
func (c *Catalog) Flattenable() []qmodel.OperatorKind {
	if c.flattenable == nil {
		return append([]qmodel.OperatorKind(nil), DefaultFlattenable...)
	}
	return append([]qmodel.OperatorKind(nil), c.flattenable...)
}

// Registry builds the function registry: the built-in string functions
// (unless disabled) plus every catalog function.
func (c *Catalog) Registry() (*registry.Registry, error) {
	b := registry.NewBuilder()
	if c.builtins {
		b = registry.Builtins()
	}
	for _, f := range c.functions {
		g, err := f.generator()
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", f.Key(), err)
		}
		switch f.Kind {
		case FunctionMember:
			err = b.Member(f.Key(), g)
		default:
			err = b.Method(f.Key(), g)
		}
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", f.Key(), err)
		}
	}
	return b.Build(), nil
}

func (f FunctionSpec) generator() (registry.Generator, error) {
	switch f.Generator {
	case "", "function":
		return &registry.FunctionGenerator{Name: f.HQL, Ignore: f.IgnoreInstance}, nil
	case "binary":
		return &registry.BinaryGenerator{Op: queryirOp(f.HQL)}, nil
	case "contains":
		return &registry.LikeGenerator{Mode: registry.LikeContains}, nil
	case "starts_with":
		return &registry.LikeGenerator{Mode: registry.LikeStartsWith}, nil
	case "ends_with":
		return &registry.LikeGenerator{Mode: registry.LikeEndsWith}, nil
	default:
		return nil, fmt.Errorf("unknown generator %q", f.Generator)
	}
}

// Resolution describes a member access that maps to a persistent property.
type Resolution struct {
	Entity   string
	Property string
	Type     *qmodel.Type
}

// Resolver reports whether member accesses map to persistent properties.
type Resolver interface {
	Resolve(m *qmodel.Member) (Resolution, bool)
}

// Resolve implements Resolver. A member resolves when its receiver is
// typed as a mapped entity that declares the member; association
// properties chain (p.Owner.Name).
func (c *Catalog) Resolve(m *qmodel.Member) (Resolution, bool) {
	if m == nil || m.Object == nil {
		return Resolution{}, false
	}
	owner := m.Object.Type()
	if owner == nil || owner.Kind != qmodel.TypeEntity {
		return Resolution{}, false
	}
	e, ok := c.Entities[owner.Name]
	if !ok || e.Type.Package != owner.Package {
		return Resolution{}, false
	}
	p, ok := e.Properties[m.Member.Name]
	if !ok {
		return Resolution{}, false
	}
	return Resolution{Entity: e.Name, Property: p.Name, Type: p.Type}, true
}

var _ Resolver = (*Catalog)(nil)
