package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/qmodel"
	"github.com/roach88/querylift/internal/testutil"
)

// parseNode decodes src into its document's root node.
func parseNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	require.Len(t, doc.Content, 1)
	return doc.Content[0]
}

func buildQuery(t *testing.T, src string) (*qmodel.QueryModel, []*qmodel.Constant, error) {
	t.Helper()
	b := NewBuilder(testutil.NewShop(t).Catalog)
	return b.Query(parseNode(t, src))
}

func TestBuilder_Query(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "member path",
			src:  `{from: {p: Person}, select: {prop: p.Manager.Name}}`,
			want: "from p in Person select p.Manager.Name",
		},
		{
			name: "where and orderby",
			src: `
from: {p: Person}
body:
  - where: {gt: [{prop: p.Age}, {const: 3}]}
  - orderby: [{asc: {prop: p.Name}}, {desc: {prop: p.Age}}]
select: {ref: p}`,
			want: "from p in Person where (p.Age > 3) orderby p.Name, p.Age desc select p",
		},
		{
			name: "second from",
			src: `
from: {p: Person}
body:
  - from: {o: Order}
  - where: {eq: [{prop: o.Owner}, {ref: p}]}
select: {prop: o.Code}`,
			want: "from p in Person from o in Order where (o.Owner == p) select o.Code",
		},
		{
			name: "instance call",
			src:  `{from: {p: Person}, select: {call: {method: ToUpper, on: {prop: p.Name}}}}`,
			want: "from p in Person select p.Name.ToUpper()",
		},
		{
			name: "static client call",
			src:  `{from: {p: Person}, select: {call: {method: Fmt.Tag, args: [{prop: p.Age}]}}}`,
			want: "from p in Person select Fmt.Tag(p.Age)",
		},
		{
			name: "anonymous shape",
			src:  `{from: {p: Person}, select: {new: {N: {prop: p.Name}, A: {prop: p.Age}}}}`,
			want: "from p in Person select new { N = p.Name, A = p.Age }",
		},
		{
			name: "conditional",
			src:  `{from: {p: Person}, select: {cond: [{gt: [{prop: p.Age}, {const: 17}]}, {const: adult}, {const: minor}]}}`,
			want: "from p in Person select ((p.Age > 17) ? 'adult' : 'minor')",
		},
		{
			name: "operators",
			src:  `{from: {p: Person}, select: {prop: p.Name}, operators: [distinct, {skip: 5}, {take: 10}, {lock: upgrade}]}`,
			want: "from p in Person select p.Name => distinct skip(5) take(10) lock(upgrade)",
		},
		{
			name: "fetch",
			src:  `{from: {p: Person}, select: {ref: p}, operators: [{fetch: Manager}]}`,
			want: "from p in Person select p => fetch_one(Manager)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, err := buildQuery(t, tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, qmodel.FormatModel(m))
		})
	}
}

func TestBuilder_ParamsInOrder(t *testing.T) {
	m, params, err := buildQuery(t, `
from: {p: Person}
body:
  - where: {and: [{eq: [{prop: p.Name}, {param: Ann}]}, {gt: [{prop: p.Age}, {param: 30}]}]}
select: {prop: p.Name}`)
	require.NoError(t, err)

	require.Len(t, params, 2)
	assert.Equal(t, ir.IRString("Ann"), params[0].Value)
	assert.Equal(t, ir.IRInt(30), params[1].Value)
	assert.Equal(t, "from p in Person where ((p.Name == 'Ann') && (p.Age > 30)) select p.Name", qmodel.FormatModel(m))
}

func TestBuilder_SubquerySourceShape(t *testing.T) {
	m, _, err := buildQuery(t, `
from:
  s:
    subquery:
      from: {x: Person}
      select: {new: {A: {prop: x.Name}}}
select: {prop: s.A}`)
	require.NoError(t, err)

	assert.Equal(t, "from s in (from x in Person select new { A = x.Name }) select s.A", qmodel.FormatModel(m))
	assert.Equal(t, qmodel.String, m.Select.Selector.Type())
	assert.True(t, m.MainFrom.Type.IsAnonymous())
}

func TestBuilder_NestedSubquerySeesOuterItems(t *testing.T) {
	m, _, err := buildQuery(t, `
from: {p: Person}
select:
  subquery:
    from: {o: Order}
    body:
      - where: {eq: [{prop: o.Owner}, {ref: p}]}
    select: {ref: o}
    operators: [count]`)
	require.NoError(t, err)
	assert.Equal(t, "from p in Person select (from o in Order where (o.Owner == p) select o => count)", qmodel.FormatModel(m))
}

func TestBuilder_Expr(t *testing.T) {
	shop := testutil.NewShop(t)
	p := shop.From("p", "Person")
	b := NewBuilder(shop.Catalog)

	x, err := b.Expr(parseNode(t, `{prop: p.Name.Length}`), p)
	require.NoError(t, err)
	assert.Equal(t, "p.Name.Length", qmodel.Format(x))
	assert.Same(t, qmodel.Int, x.Type())

	x, err = b.Expr(parseNode(t, `{null: string}`), p)
	require.NoError(t, err)
	c, ok := x.(*qmodel.Constant)
	require.True(t, ok)
	assert.Equal(t, ir.IRNull{}, c.Value)
	assert.Equal(t, qmodel.String, c.Type())
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"missing select", `{from: {p: Person}}`, "query needs from and select"},
		{"unknown query field", `{from: {p: Person}, select: {ref: p}, limit: 3}`, `unknown field "limit"`},
		{"unknown entity", `{from: {p: Animal}, select: {ref: p}}`, `unknown entity "Animal"`},
		{"unknown item", `{from: {p: Person}, select: {ref: q}}`, `unknown item "q"`},
		{"unknown property", `{from: {p: Person}, select: {prop: p.Height}}`, `no property "Height"`},
		{"unknown expression", `{from: {p: Person}, select: {frob: 1}}`, `unknown expression "frob"`},
		{"binary arity", `{from: {p: Person}, select: {eq: [{ref: p}]}}`, "eq takes two operands"},
		{"call without returns", `{from: {p: Person}, select: {call: {method: Fmt.Shout, args: [{prop: p.Name}]}}}`, "call Fmt.Shout needs returns"},
		{"static call without type", `{from: {p: Person}, select: {call: {method: Shout}}}`, "static call needs Type.Method"},
		{"unknown operator", `{from: {p: Person}, select: {ref: p}, operators: [reverse]}`, `unknown result operator "reverse"`},
		{"bad take", `{from: {p: Person}, select: {ref: p}, operators: [{take: many}]}`, "count must be an integer"},
		{"null constant", `{from: {p: Person}, select: {const: null}}`, "use null: <type>"},
		{"empty array", `{from: {p: Person}, select: {array: []}}`, "array needs at least one element"},
		{"bad ordering", `{from: {p: Person}, body: [{orderby: [{up: {ref: p}}]}], select: {ref: p}}`, "ordering must be asc or desc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := buildQuery(t, tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Contains(t, err.Error(), "line ")
		})
	}
}
