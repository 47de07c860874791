package harness

import (
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/querylift/internal/catalog"
	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/qmodel"
)

// Builder decodes the query DSL of scenario files into query models.
//
// A query is a mapping:
//
//	from: {p: Person}              # or {s: {subquery: <query>}}
//	body:
//	  - where: <expr>
//	  - from: {o: Order}
//	  - join: {name: o, entity: Order, outer: <expr>, inner: <expr>}
//	  - orderby: [{asc: <expr>}, {desc: <expr>}]
//	select: <expr>
//	operators: [distinct, count, first, first_or_default, any, {take: 10}, {skip: 5}, {lock: upgrade}, {fetch: Owner}]
//
// An expression is a single-key mapping:
//
//	ref: p                          prop: p.Owner.Name
//	const: 3                        null: string
//	param: "Ann"                    not: <expr>    neg: <expr>
//	eq|ne|lt|le|gt|ge|and|or|add|sub|mul|div|mod|coalesce: [<expr>, <expr>]
//	convert: {to: int, expr: <expr>}        changetype: {to: int, expr: <expr>}
//	cond: [<test>, <then>, <else>]          (two items: if-then)
//	call: {method: ToUpper, on: <expr>, args: [...], returns: string}
//	new: {Name: <expr>, Age: <expr>}        (anonymous shape)
//	object: {class: PersonView, args: [...]}
//	array: [<expr>, ...]
//	subquery: <query>
//
// Constants introduced with param become bind parameters, in order of
// appearance.
type Builder struct {
	catalog *catalog.Catalog
	params  []*qmodel.Constant

	// shapes holds the member types of every anonymous shape built, so
	// that prop paths can read members of subquery items.
	shapes map[*qmodel.Type]map[string]*qmodel.Type
}

// NewBuilder returns a builder over c.
func NewBuilder(c *catalog.Catalog) *Builder {
	return &Builder{catalog: c, shapes: make(map[*qmodel.Type]map[string]*qmodel.Type)}
}

// scope resolves item names; nested subqueries see their outer items.
type scope struct {
	parent  *scope
	sources map[string]qmodel.QuerySource
}

func (s *scope) lookup(name string) (qmodel.QuerySource, bool) {
	for ; s != nil; s = s.parent {
		if src, ok := s.sources[name]; ok {
			return src, true
		}
	}
	return nil, false
}

func (s *scope) declare(src qmodel.QuerySource) {
	s.sources[src.ItemName()] = src
}

// Query decodes a query and returns it with its bind parameters.
func (b *Builder) Query(n *yaml.Node) (*qmodel.QueryModel, []*qmodel.Constant, error) {
	b.params = nil
	m, err := b.query(n, nil)
	if err != nil {
		return nil, nil, err
	}
	return m, b.params, nil
}

// Expr decodes a single expression with the given items in scope.
func (b *Builder) Expr(n *yaml.Node, items ...qmodel.QuerySource) (qmodel.Expr, error) {
	sc := &scope{sources: map[string]qmodel.QuerySource{}}
	for _, it := range items {
		sc.declare(it)
	}
	return b.expr(n, sc)
}

func (b *Builder) query(n *yaml.Node, parent *scope) (*qmodel.QueryModel, error) {
	fields, err := mapping(n, "from", "body", "select", "operators")
	if err != nil {
		return nil, err
	}
	if fields["from"] == nil || fields["select"] == nil {
		return nil, errAt(n, "query needs from and select")
	}
	sc := &scope{parent: parent, sources: map[string]qmodel.QuerySource{}}

	main, err := b.fromClause(fields["from"], sc)
	if err != nil {
		return nil, err
	}
	sc.declare(main)

	m := &qmodel.QueryModel{MainFrom: main}
	if body := fields["body"]; body != nil {
		if body.Kind != yaml.SequenceNode {
			return nil, errAt(body, "body must be a list")
		}
		for _, item := range body.Content {
			c, err := b.bodyClause(item, sc)
			if err != nil {
				return nil, err
			}
			m.Body = append(m.Body, c)
		}
	}

	sel, err := b.expr(fields["select"], sc)
	if err != nil {
		return nil, err
	}
	m.Select = &qmodel.SelectClause{Selector: sel}

	if ops := fields["operators"]; ops != nil {
		if ops.Kind != yaml.SequenceNode {
			return nil, errAt(ops, "operators must be a list")
		}
		for _, item := range ops.Content {
			op, err := b.operator(item, main, sc)
			if err != nil {
				return nil, err
			}
			m.ResultOperators = append(m.ResultOperators, op)
		}
	}
	return m, nil
}

// fromClause decodes {name: Entity} or {name: {subquery: <query>}}.
func (b *Builder) fromClause(n *yaml.Node, sc *scope) (*qmodel.FromClause, error) {
	name, v, err := single(n)
	if err != nil {
		return nil, err
	}
	if v.Kind == yaml.ScalarNode {
		e, ok := b.catalog.Entity(v.Value)
		if !ok {
			return nil, errAt(v, "unknown entity %q", v.Value)
		}
		return qmodel.NewFromClause(name, e.Type, qmodel.NewEntitySource(e.Type)), nil
	}
	key, sub, err := single(v)
	if err != nil {
		return nil, err
	}
	if key != "subquery" {
		return nil, errAt(v, "from source must be an entity name or a subquery")
	}
	m, err := b.query(sub, sc)
	if err != nil {
		return nil, err
	}
	return qmodel.NewFromClause(name, m.Select.Selector.Type(), qmodel.NewSubQuery(m)), nil
}

func (b *Builder) bodyClause(n *yaml.Node, sc *scope) (qmodel.BodyClause, error) {
	key, v, err := single(n)
	if err != nil {
		return nil, err
	}
	switch key {
	case "where":
		pred, err := b.expr(v, sc)
		if err != nil {
			return nil, err
		}
		return &qmodel.WhereClause{Predicate: pred}, nil
	case "from":
		c, err := b.fromClause(v, sc)
		if err != nil {
			return nil, err
		}
		sc.declare(c)
		return c, nil
	case "join":
		return b.joinClause(v, sc)
	case "orderby":
		if v.Kind != yaml.SequenceNode {
			return nil, errAt(v, "orderby must be a list")
		}
		c := &qmodel.OrderByClause{}
		for _, item := range v.Content {
			dir, e, err := single(item)
			if err != nil {
				return nil, err
			}
			if dir != "asc" && dir != "desc" {
				return nil, errAt(item, "ordering must be asc or desc, got %q", dir)
			}
			x, err := b.expr(e, sc)
			if err != nil {
				return nil, err
			}
			c.Orderings = append(c.Orderings, qmodel.Ordering{Expr: x, Descending: dir == "desc"})
		}
		return c, nil
	default:
		return nil, errAt(n, "unknown body clause %q", key)
	}
}

func (b *Builder) joinClause(n *yaml.Node, sc *scope) (*qmodel.JoinClause, error) {
	fields, err := mapping(n, "name", "entity", "outer", "inner")
	if err != nil {
		return nil, err
	}
	for _, f := range []string{"name", "entity", "outer", "inner"} {
		if fields[f] == nil {
			return nil, errAt(n, "join needs %s", f)
		}
	}
	e, ok := b.catalog.Entity(fields["entity"].Value)
	if !ok {
		return nil, errAt(fields["entity"], "unknown entity %q", fields["entity"].Value)
	}
	outer, err := b.expr(fields["outer"], sc)
	if err != nil {
		return nil, err
	}
	j := &qmodel.JoinClause{
		Name:     fields["name"].Value,
		Type:     e.Type,
		Inner:    qmodel.NewEntitySource(e.Type),
		OuterKey: outer,
	}
	sc.declare(j)
	if j.InnerKey, err = b.expr(fields["inner"], sc); err != nil {
		return nil, err
	}
	return j, nil
}

var simpleOperators = map[string]func() qmodel.ResultOperator{
	"distinct":              func() qmodel.ResultOperator { return &qmodel.DistinctOperator{} },
	"count":                 func() qmodel.ResultOperator { return &qmodel.CountOperator{} },
	"first":                 func() qmodel.ResultOperator { return &qmodel.FirstOperator{} },
	"first_or_default":      func() qmodel.ResultOperator { return &qmodel.FirstOperator{OrDefault: true} },
	"any":                   func() qmodel.ResultOperator { return &qmodel.AnyOperator{} },
	"as_queryable":          func() qmodel.ResultOperator { return &qmodel.AsQueryableOperator{} },
	"fetch_lazy_properties": func() qmodel.ResultOperator { return &qmodel.FetchLazyPropertiesOperator{} },
}

func (b *Builder) operator(n *yaml.Node, main *qmodel.FromClause, sc *scope) (qmodel.ResultOperator, error) {
	if n.Kind == yaml.ScalarNode {
		mk, ok := simpleOperators[n.Value]
		if !ok {
			return nil, errAt(n, "unknown result operator %q", n.Value)
		}
		return mk(), nil
	}
	key, v, err := single(n)
	if err != nil {
		return nil, err
	}
	switch key {
	case "take", "skip":
		count, err := b.countExpr(v, sc)
		if err != nil {
			return nil, err
		}
		if key == "take" {
			return &qmodel.TakeOperator{Count: count}, nil
		}
		return &qmodel.SkipOperator{Count: count}, nil
	case "lock":
		return &qmodel.LockOperator{Mode: v.Value, Source: qmodel.NewQuerySourceRef(main)}, nil
	case "fetch", "fetch_many":
		m, err := b.catalog.Member(main.Type.Name, v.Value)
		if err != nil {
			return nil, errAt(v, "%v", err)
		}
		return &qmodel.FetchOperator{Member: m, Many: key == "fetch_many"}, nil
	default:
		return nil, errAt(n, "unknown result operator %q", key)
	}
}

// countExpr accepts a bare integer or an expression.
func (b *Builder) countExpr(n *yaml.Node, sc *scope) (qmodel.Expr, error) {
	if n.Kind == yaml.ScalarNode {
		var c int64
		if err := n.Decode(&c); err != nil {
			return nil, errAt(n, "count must be an integer")
		}
		return qmodel.ConstantOf(c), nil
	}
	return b.expr(n, sc)
}

var binaryOps = map[string]qmodel.BinaryOp{
	"eq":       qmodel.OpEqual,
	"ne":       qmodel.OpNotEqual,
	"lt":       qmodel.OpLess,
	"le":       qmodel.OpLessEqual,
	"gt":       qmodel.OpGreater,
	"ge":       qmodel.OpGreaterEqual,
	"and":      qmodel.OpAnd,
	"or":       qmodel.OpOr,
	"add":      qmodel.OpAdd,
	"sub":      qmodel.OpSub,
	"mul":      qmodel.OpMul,
	"div":      qmodel.OpDiv,
	"mod":      qmodel.OpMod,
	"coalesce": qmodel.OpCoalesce,
}

func (b *Builder) expr(n *yaml.Node, sc *scope) (qmodel.Expr, error) {
	key, v, err := single(n)
	if err != nil {
		return nil, err
	}
	if op, ok := binaryOps[key]; ok {
		args, err := b.exprList(v, sc)
		if err != nil {
			return nil, err
		}
		if len(args) != 2 {
			return nil, errAt(v, "%s takes two operands", key)
		}
		return qmodel.NewBinary(op, args[0], args[1]), nil
	}

	switch key {
	case "ref":
		src, ok := sc.lookup(v.Value)
		if !ok {
			return nil, errAt(v, "unknown item %q", v.Value)
		}
		return qmodel.NewQuerySourceRef(src), nil
	case "prop":
		return b.prop(v, sc)
	case "const", "param":
		c, err := constant(v)
		if err != nil {
			return nil, err
		}
		if key == "param" {
			b.params = append(b.params, c)
		}
		return c, nil
	case "null":
		t, err := b.typ(v)
		if err != nil {
			return nil, err
		}
		return qmodel.Null(t), nil
	case "not", "neg":
		x, err := b.expr(v, sc)
		if err != nil {
			return nil, err
		}
		if key == "not" {
			return qmodel.NewUnary(qmodel.OpNot, x), nil
		}
		return qmodel.NewUnary(qmodel.OpNegate, x), nil
	case "convert", "changetype":
		fields, err := mapping(v, "to", "expr")
		if err != nil {
			return nil, err
		}
		if fields["to"] == nil || fields["expr"] == nil {
			return nil, errAt(v, "%s needs to and expr", key)
		}
		t, err := b.typ(fields["to"])
		if err != nil {
			return nil, err
		}
		x, err := b.expr(fields["expr"], sc)
		if err != nil {
			return nil, err
		}
		if key == "changetype" {
			return qmodel.ChangeType(x, t), nil
		}
		return qmodel.NewConvert(x, t), nil
	case "cond":
		args, err := b.exprList(v, sc)
		if err != nil {
			return nil, err
		}
		switch len(args) {
		case 2:
			return qmodel.IfThen(args[0], args[1]), nil
		case 3:
			return qmodel.NewConditional(args[0], args[1], args[2]), nil
		}
		return nil, errAt(v, "cond takes two or three operands")
	case "call":
		return b.call(v, sc)
	case "new":
		return b.shape(v, sc)
	case "object":
		return b.object(v, sc)
	case "array":
		elems, err := b.exprList(v, sc)
		if err != nil {
			return nil, err
		}
		if len(elems) == 0 {
			return nil, errAt(v, "array needs at least one element")
		}
		return qmodel.NewArrayInit(elems[0].Type(), elems...), nil
	case "subquery":
		m, err := b.query(v, sc)
		if err != nil {
			return nil, err
		}
		return qmodel.NewSubQuery(m), nil
	default:
		return nil, errAt(n, "unknown expression %q", key)
	}
}

func (b *Builder) exprList(n *yaml.Node, sc *scope) ([]qmodel.Expr, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, errAt(n, "expected a list of expressions")
	}
	out := make([]qmodel.Expr, 0, len(n.Content))
	for _, item := range n.Content {
		x, err := b.expr(item, sc)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

// builtinMembers are the non-persistent members prop paths may read.
var builtinMembers = map[string]*qmodel.Type{
	"string.Length": qmodel.Int,
}

// prop decodes "item.Member.Member...".
func (b *Builder) prop(n *yaml.Node, sc *scope) (qmodel.Expr, error) {
	parts := strings.Split(n.Value, ".")
	if len(parts) < 2 {
		return nil, errAt(n, "prop needs item.Member, got %q", n.Value)
	}
	src, ok := sc.lookup(parts[0])
	if !ok {
		return nil, errAt(n, "unknown item %q", parts[0])
	}
	var x qmodel.Expr = qmodel.NewQuerySourceRef(src)
	for _, name := range parts[1:] {
		owner := x.Type()
		if owner.Kind == qmodel.TypeEntity {
			m, err := b.catalog.Member(owner.Name, name)
			if err != nil {
				return nil, errAt(n, "%v", err)
			}
			x = qmodel.NewMember(x, m)
			continue
		}
		base := qmodel.NonNullable(owner)
		t, ok := builtinMembers[base.Name+"."+name]
		if members, isShape := b.shapes[owner]; isShape {
			t, ok = members[name]
		}
		if !ok {
			return nil, errAt(n, "%s has no member %q", owner, name)
		}
		x = qmodel.NewMember(x, &qmodel.MemberInfo{DeclaringType: base, Name: name, Type: t})
	}
	return x, nil
}

// builtinResults are the result types of methods the default registry and
// the client evaluator both know.
var builtinResults = map[string]*qmodel.Type{
	"string.ToUpper":    qmodel.String,
	"string.ToLower":    qmodel.String,
	"string.Trim":       qmodel.String,
	"string.Substring":  qmodel.String,
	"string.Concat":     qmodel.String,
	"string.Contains":   qmodel.Bool,
	"string.StartsWith": qmodel.Bool,
	"string.EndsWith":   qmodel.Bool,
	"string.Equals":     qmodel.Bool,
}

func (b *Builder) call(n *yaml.Node, sc *scope) (qmodel.Expr, error) {
	fields, err := mapping(n, "method", "on", "args", "returns")
	if err != nil {
		return nil, err
	}
	if fields["method"] == nil {
		return nil, errAt(n, "call needs method")
	}

	var recv qmodel.Expr
	if on := fields["on"]; on != nil {
		if recv, err = b.expr(on, sc); err != nil {
			return nil, err
		}
	}
	var args []qmodel.Expr
	if a := fields["args"]; a != nil {
		if args, err = b.exprList(a, sc); err != nil {
			return nil, err
		}
	}

	method := &qmodel.Method{Name: fields["method"].Value}
	switch {
	case recv != nil:
		method.DeclaringType = qmodel.NonNullable(recv.Type())
	default:
		decl, name, ok := strings.Cut(method.Name, ".")
		if !ok {
			return nil, errAt(fields["method"], "static call needs Type.Method, got %q", method.Name)
		}
		method.Static = true
		method.Name = name
		if decl == "string" {
			method.DeclaringType = qmodel.String
		} else {
			method.DeclaringType = qmodel.ClassType(b.catalog.Package, decl)
		}
	}
	for _, a := range args {
		method.Params = append(method.Params, a.Type())
	}

	switch {
	case fields["returns"] != nil:
		if method.Result, err = b.typ(fields["returns"]); err != nil {
			return nil, err
		}
	case builtinResults[method.Key()] != nil:
		method.Result = builtinResults[method.Key()]
	case clientFunctions[method.Key()].result != nil:
		method.Result = clientFunctions[method.Key()].result
	default:
		return nil, errAt(n, "call %s needs returns", method.Key())
	}
	if f, ok := clientFunctions[method.Key()]; ok {
		method.Invoke = f.invoke
	}
	return qmodel.NewCall(recv, method, args...), nil
}

// shape decodes an anonymous shape; members keep their YAML order.
func (b *Builder) shape(n *yaml.Node, sc *scope) (qmodel.Expr, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) == 0 {
		return nil, errAt(n, "new needs at least one member")
	}
	var (
		names  []string
		args   []qmodel.Expr
		params []*qmodel.Type
	)
	for i := 0; i < len(n.Content); i += 2 {
		x, err := b.expr(n.Content[i+1], sc)
		if err != nil {
			return nil, err
		}
		names = append(names, n.Content[i].Value)
		args = append(args, x)
		params = append(params, x.Type())
	}
	ctor := &qmodel.Constructor{
		Type:   qmodel.AnonymousType("<>f__AnonymousType_" + strings.Join(names, "_")),
		Params: params,
	}
	members := make(map[string]*qmodel.Type, len(names))
	for i, name := range names {
		members[name] = params[i]
	}
	b.shapes[ctor.Type] = members
	return qmodel.NewObject(ctor, args, names), nil
}

// object decodes construction of a user class. Instances are records
// whose members are named Item0, Item1, ...
func (b *Builder) object(n *yaml.Node, sc *scope) (qmodel.Expr, error) {
	fields, err := mapping(n, "class", "args")
	if err != nil {
		return nil, err
	}
	if fields["class"] == nil {
		return nil, errAt(n, "object needs class")
	}
	var args []qmodel.Expr
	if a := fields["args"]; a != nil {
		if args, err = b.exprList(a, sc); err != nil {
			return nil, err
		}
	}
	ctor := &qmodel.Constructor{Type: qmodel.ClassType(b.catalog.Package, fields["class"].Value)}
	for _, a := range args {
		ctor.Params = append(ctor.Params, a.Type())
	}
	return qmodel.NewObject(ctor, args, nil), nil
}

func (b *Builder) typ(n *yaml.Node) (*qmodel.Type, error) {
	t, err := b.catalog.ParseType(n.Value)
	if err != nil {
		return nil, errAt(n, "%v", err)
	}
	return t, nil
}

func constant(n *yaml.Node) (*qmodel.Constant, error) {
	if n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return nil, errAt(n, "constant must be a scalar; use null: <type> for nulls")
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, errAt(n, "%v", err)
	}
	if i, ok := v.(int); ok {
		v = int64(i)
	}
	if _, err := ir.FromGo(v); err != nil {
		return nil, errAt(n, "%v", err)
	}
	return qmodel.ConstantOf(v), nil
}

// single returns the only key and value of a single-key mapping.
func single(n *yaml.Node) (string, *yaml.Node, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return "", nil, errAt(n, "expected a single-key mapping")
	}
	return n.Content[0].Value, n.Content[1], nil
}

// mapping returns the values of a mapping by key, rejecting keys outside
// allowed.
func mapping(n *yaml.Node, allowed ...string) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errAt(n, "expected a mapping")
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i < len(n.Content); i += 2 {
		k := n.Content[i].Value
		if !slices.Contains(allowed, k) {
			return nil, errAt(n.Content[i], "unknown field %q (want one of %s)", k, strings.Join(slices.Sorted(slices.Values(allowed)), ", "))
		}
		out[k] = n.Content[i+1]
	}
	return out, nil
}

func errAt(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("line %d: %s", n.Line, fmt.Sprintf(format, args...))
}
