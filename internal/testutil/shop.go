package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/roach88/querylift/internal/catalog"
	"github.com/roach88/querylift/internal/qmodel"
	"github.com/roach88/querylift/internal/registry"
	"github.com/roach88/querylift/internal/session"
)

// ShopCUE is the mapping catalog shared by translation tests.
const ShopCUE = `
namespace: "shop"

enum: Status: {
	underlying: "int"
	values: {Active: 1, Retired: 2}
}

entity: Person: {
	table: "people"
	properties: {
		Name:    "string"
		Nick:    "string"
		Age:     "int"
		Status:  "enum:Status"
		Manager: "entity:Person"
		Score:   "float?"
	}
}

entity: Order: properties: {
	Code:  "string"
	Owner: "entity:Person"
	Total: "decimal"
}

function: {
	"string": Length: {hql: "length"}
	Clock: Today: {hql: "current_date", ignore_instance: true}
}
`

// Shop is a compiled ShopCUE with helpers for building query models
// against it.
type Shop struct {
	t        testing.TB
	Catalog  *catalog.Catalog
	Registry *registry.Registry
	Person   *qmodel.Type
	Order    *qmodel.Type
	Status   *qmodel.Type
}

// NewShop compiles ShopCUE, failing the test on error.
func NewShop(t testing.TB) *Shop {
	t.Helper()
	c, err := catalog.Compile(ShopCUE, "shop.cue")
	if err != nil {
		t.Fatalf("compile shop catalog: %v", err)
	}
	reg, err := c.Registry()
	if err != nil {
		t.Fatalf("build shop registry: %v", err)
	}
	person, _ := c.Entity("Person")
	order, _ := c.Entity("Order")
	return &Shop{
		t:        t,
		Catalog:  c,
		Registry: reg,
		Person:   person.Type,
		Order:    order.Type,
		Status:   c.Enums["Status"].Type,
	}
}

// Session returns a session over the shop catalog with a fixed id and a
// discarding logger.
func (s *Shop) Session(opts ...session.Option) *session.Session {
	base := []session.Option{
		session.WithID("test-session"),
		session.WithLogger(session.DiscardLogger()),
	}
	return session.New(s.Registry, s.Catalog, append(base, opts...)...)
}

// From declares "from name in Entity".
func (s *Shop) From(name, entity string) *qmodel.FromClause {
	s.t.Helper()
	e, ok := s.Catalog.Entity(entity)
	if !ok {
		s.t.Fatalf("unknown entity %q", entity)
	}
	return qmodel.NewFromClause(name, e.Type, qmodel.NewEntitySource(e.Type))
}

// Prop reads a mapped property of obj. The entity is taken from obj's
// static type.
func (s *Shop) Prop(obj qmodel.Expr, property string) *qmodel.Member {
	s.t.Helper()
	m, err := s.Catalog.Member(obj.Type().Name, property)
	if err != nil {
		s.t.Fatalf("prop: %v", err)
	}
	return qmodel.NewMember(obj, m)
}

// Ref refers to the item of a from or join clause.
func Ref(src qmodel.QuerySource) *qmodel.QuerySourceRef {
	return qmodel.NewQuerySourceRef(src)
}

// LengthMethod is string.Length() with a client-side implementation.
var LengthMethod = &qmodel.Method{
	DeclaringType: qmodel.String,
	Name:          "Length",
	Result:        qmodel.Int,
	Invoke: func(recv any, _ []any) (any, error) {
		s, ok := recv.(string)
		if !ok {
			return nil, fmt.Errorf("Length on %T", recv)
		}
		return int64(len([]rune(s))), nil
	},
}

// ToUpperMethod is string.ToUpper(), a built-in registered function.
var ToUpperMethod = &qmodel.Method{
	DeclaringType: qmodel.String,
	Name:          "ToUpper",
	Result:        qmodel.String,
	Invoke: func(recv any, _ []any) (any, error) {
		s, ok := recv.(string)
		if !ok {
			return nil, fmt.Errorf("ToUpper on %T", recv)
		}
		return strings.ToUpper(s), nil
	},
}

// LocalFormat is a static client-only method with no server generator.
var LocalFormat = &qmodel.Method{
	DeclaringType: qmodel.ClassType("app", "Fmt"),
	Name:          "LocalFormat",
	Static:        true,
	Params:        []*qmodel.Type{qmodel.Int},
	Result:        qmodel.String,
	Invoke: func(_ any, args []any) (any, error) {
		return fmt.Sprintf("#%v", args[0]), nil
	},
}

// PersonView is a user-defined class with a two-argument constructor
// (name, age). Instances are *View values.
var PersonView = &qmodel.Constructor{
	Type:   qmodel.ClassType("app", "PersonView"),
	Params: []*qmodel.Type{qmodel.String, qmodel.String},
	Make: func(args []any) (any, error) {
		v := &View{}
		if args[0] != nil {
			v.Name = args[0].(string)
		}
		if args[1] != nil {
			v.Detail = args[1].(string)
		}
		return v, nil
	},
}

// View is the client-side value built by PersonView.
type View struct {
	Name   string
	Detail string
}

// Shape returns a constructor of an anonymous shape with the given member
// types. Its instances are *qmodel.Record values.
func Shape(name string, params ...*qmodel.Type) *qmodel.Constructor {
	return &qmodel.Constructor{Type: qmodel.AnonymousType(name), Params: params}
}
