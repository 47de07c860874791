package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querylift/internal/qmodel"
)

const shopCUE = `
namespace: "shop"

enum: Status: {
	underlying: "int"
	values: {Active: 1, Retired: 2}
}

entity: Person: {
	table: "people"
	properties: {
		Name:    "string"
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
	"string": PadLeft: {hql: "lpad"}
	Clock: Today: {hql: "current_date", ignore_instance: true}
	Person: IsNamed: {hql: "=", generator: "binary"}
	Order: Reference: {kind: "member", hql: "order_ref"}
}

flattenable: ["lock", "fetch_one"]
`

func compileShop(t *testing.T) *Catalog {
	t.Helper()
	c, err := Compile(shopCUE, "shop.cue")
	require.NoError(t, err)
	return c
}

func TestCompile_Entities(t *testing.T) {
	c := compileShop(t)

	assert.Equal(t, "shop", c.Package)
	assert.Equal(t, []string{"Order", "Person"}, c.EntityNames())

	person, ok := c.Entity("Person")
	require.True(t, ok)
	assert.Equal(t, "people", person.Table)
	assert.Equal(t, []string{"Name", "Age", "Status", "Manager", "Score"}, person.PropertyNames())
	assert.Equal(t, qmodel.TypeEntity, person.Type.Kind)
	assert.Equal(t, "shop", person.Type.Package)

	order, _ := c.Entity("Order")
	assert.Equal(t, "order", order.Table, "table defaults to the lowercased name")
	assert.True(t, order.Properties["Owner"].Association)
	assert.True(t, qmodel.SameType(person.Type, order.Properties["Owner"].Type))
}

func TestCompile_PropertyTypes(t *testing.T) {
	c := compileShop(t)
	person, _ := c.Entity("Person")

	assert.Same(t, qmodel.String, person.Properties["Name"].Type)
	assert.Same(t, qmodel.Int, person.Properties["Age"].Type)
	assert.True(t, person.Properties["Status"].Type.IsEnum())
	assert.Same(t, qmodel.Int, person.Properties["Status"].Type.Underlying)

	score := person.Properties["Score"].Type
	assert.Equal(t, qmodel.TypeFloat, score.Kind)
	assert.True(t, score.Nullable)
}

func TestCompile_Enums(t *testing.T) {
	c := compileShop(t)
	status, ok := c.Enums["Status"]
	require.True(t, ok)
	assert.Equal(t, map[string]int64{"Active": 1, "Retired": 2}, status.Values)
}

func TestCatalog_Member(t *testing.T) {
	c := compileShop(t)

	m, err := c.Member("Person", "Name")
	require.NoError(t, err)
	assert.Equal(t, "Person.Name", m.Key())

	_, err = c.Member("Person", "Shoe")
	assert.Error(t, err)
	_, err = c.Member("Pet", "Name")
	assert.Error(t, err)
}

func TestCatalog_ParseType(t *testing.T) {
	c := compileShop(t)

	typ, err := c.ParseType("int?")
	require.NoError(t, err)
	assert.True(t, typ.Nullable)

	typ, err = c.ParseType("entity:Person")
	require.NoError(t, err)
	assert.Equal(t, qmodel.TypeEntity, typ.Kind)

	typ, err = c.ParseType("object")
	require.NoError(t, err)
	assert.Same(t, qmodel.Object, typ)

	_, err = c.ParseType("enum:Nope")
	assert.Error(t, err)
}

func TestCatalog_Resolve(t *testing.T) {
	c := compileShop(t)
	person, _ := c.Entity("Person")
	from := qmodel.NewFromClause("p", person.Type, qmodel.NewEntitySource(person.Type))
	ref := qmodel.NewQuerySourceRef(from)

	name, _ := c.Member("Person", "Name")
	manager, _ := c.Member("Person", "Manager")

	r, ok := c.Resolve(qmodel.NewMember(ref, name))
	require.True(t, ok)
	assert.Equal(t, Resolution{Entity: "Person", Property: "Name", Type: qmodel.String}, r)

	chained := qmodel.NewMember(qmodel.NewMember(ref, manager), name)
	_, ok = c.Resolve(chained)
	assert.True(t, ok, "association chains resolve")

	anon := qmodel.AnonymousType("<>f__A")
	unmapped := &qmodel.MemberInfo{DeclaringType: anon, Name: "Name", Type: qmodel.String}
	_, ok = c.Resolve(qmodel.NewMember(qmodel.NewParameter("x", anon), unmapped))
	assert.False(t, ok)

	foreign := qmodel.EntityType("other", "Person")
	_, ok = c.Resolve(qmodel.NewMember(qmodel.NewParameter("y", foreign), name))
	assert.False(t, ok, "same name in another namespace")

	_, ok = c.Resolve(qmodel.NewMember(nil, name))
	assert.False(t, ok, "static members are not mapped")
}

func TestCatalog_Registry(t *testing.T) {
	c := compileShop(t)
	reg, err := c.Registry()
	require.NoError(t, err)

	today := &qmodel.Method{DeclaringType: qmodel.ClassType("app", "Clock"), Name: "Today", Static: true, Result: qmodel.DateTime}
	g, ok := reg.Method(today)
	require.True(t, ok)
	assert.True(t, g.IgnoreInstance())

	length := &qmodel.MemberInfo{DeclaringType: qmodel.String, Name: "Length", Type: qmodel.Int}
	_, ok = reg.Member(length)
	assert.True(t, ok, "builtins included by default")

	ref := &qmodel.MemberInfo{DeclaringType: qmodel.EntityType("shop", "Order"), Name: "Reference", Type: qmodel.String}
	_, ok = reg.Member(ref)
	assert.True(t, ok)
}

func TestCatalog_RegistryWithoutBuiltins(t *testing.T) {
	c, err := Compile(`builtins: false
function: Clock: Today: {hql: "current_date"}`, "nobuiltins.cue")
	require.NoError(t, err)

	reg, err := c.Registry()
	require.NoError(t, err)
	methods, members := reg.Keys()
	assert.Equal(t, []string{"Clock.Today"}, methods)
	assert.Empty(t, members)
}

func TestCatalog_RegistryDuplicateBuiltin(t *testing.T) {
	c, err := Compile(`function: "string": Length: {kind: "member", hql: "char_length"}`, "dup.cue")
	require.NoError(t, err)

	_, err = c.Registry()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "string.Length")
}

func TestCatalog_Flattenable(t *testing.T) {
	c := compileShop(t)
	assert.Equal(t, []qmodel.OperatorKind{qmodel.OpKindLock, qmodel.OpKindFetchOne}, c.Flattenable())

	empty, err := Compile(`namespace: "x"`, "empty.cue")
	require.NoError(t, err)
	assert.Equal(t, DefaultFlattenable, empty.Flattenable())
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		wantField string
	}{
		{"unknown property type", `entity: P: properties: {X: "money"}`, "entity.P.properties.X"},
		{"unknown enum", `entity: P: properties: {X: "enum:Nope"}`, "entity.P.properties.X"},
		{"missing properties", `entity: P: {table: "p"}`, "entity.P"},
		{"enum storage", `enum: E: {underlying: "string"}`, "enum.E.underlying"},
		{"missing hql", `function: Clock: Today: {kind: "method"}`, "function.Clock.Today"},
		{"bad kind", `function: Clock: Today: {hql: "now", kind: "field"}`, "function.Clock.Today.kind"},
		{"bad generator", `function: Clock: Today: {hql: "now", generator: "magic"}`, "function.Clock.Today"},
		{"bad operator", `function: P: Same: {hql: "===", generator: "binary"}`, "function.P.Same.hql"},
		{"unknown operator kind", `flattenable: ["lock", "group_by"]`, "flattenable"},
		{"syntax", `entity: {`, "cue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.src, "bad.cue")
			require.Error(t, err)

			var ce *CompileError
			require.True(t, errors.As(err, &ce), "want CompileError, got %T: %v", err, err)
			assert.Equal(t, tt.wantField, ce.Field)
			assert.True(t, ce.Pos.IsValid(), "error carries a CUE position")
		})
	}
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shop.cue"), []byte("package shop\n"+shopCUE), 0o644))

	c, err := Load(dir)
	require.NoError(t, err)
	assert.Len(t, c.Entities, 2)
}

func TestOpen_FileOrDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "shop.cue")
	require.NoError(t, os.WriteFile(file, []byte("package shop\n"+shopCUE), 0o644))

	c, err := Open(file)
	require.NoError(t, err)
	assert.Len(t, c.Entities, 2)

	c, err = Open(dir)
	require.NoError(t, err)
	assert.Len(t, c.Entities, 2)

	var le *LoadError
	_, err = Open(filepath.Join(dir, "missing.cue"))
	assert.ErrorAs(t, err, &le)
}

func TestLoad_Errors(t *testing.T) {
	var le *LoadError

	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	require.True(t, errors.As(err, &le))

	_, err = Load(t.TempDir())
	require.True(t, errors.As(err, &le))
	assert.Contains(t, le.Message, "no CUE files")
}
