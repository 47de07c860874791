// Package translate turns query models into plans: a server query in the
// target IR plus the client-side projector that rebuilds results from its
// rows.
//
// A translation runs in one session. Subqueries that survive flattening
// are translated inside the same session, so their bind parameters and
// aliases are shared with the outer query.
package translate

import (
	"fmt"
	"log/slog"

	"github.com/roach88/querylift/internal/catalog"
	"github.com/roach88/querylift/internal/eval"
	"github.com/roach88/querylift/internal/flatten"
	"github.com/roach88/querylift/internal/hqlgen"
	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/qmodel"
	"github.com/roach88/querylift/internal/queryir"
	"github.com/roach88/querylift/internal/registry"
	"github.com/roach88/querylift/internal/selectclause"
	"github.com/roach88/querylift/internal/session"
)

// Translator translates query models. It is safe for concurrent use; each
// Translate call owns its session.
type Translator struct {
	registry  *registry.Registry
	resolver  catalog.Resolver
	flattener *flatten.Flattener
	ids       session.IDGenerator
	logger    *slog.Logger
}

// Option configures a Translator.
type Option func(*Translator)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Translator) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithFlattener replaces the subquery flattener.
func WithFlattener(f *flatten.Flattener) Option {
	return func(t *Translator) {
		if f != nil {
			t.flattener = f
		}
	}
}

// WithIDGenerator sets the session id source. Default: UUIDv7.
func WithIDGenerator(g session.IDGenerator) Option {
	return func(t *Translator) {
		if g != nil {
			t.ids = g
		}
	}
}

// New creates a Translator over a function registry and a mapped-type
// resolver.
func New(reg *registry.Registry, resolver catalog.Resolver, opts ...Option) *Translator {
	t := &Translator{
		registry: reg,
		resolver: resolver,
		ids:      session.UUIDv7Generator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.flattener == nil {
		t.flattener = flatten.New(flatten.WithLogger(t.logger))
	}
	return t
}

// FromCatalog creates a Translator from a mapping catalog: its functions,
// its mapped properties and its flattening allow-list.
func FromCatalog(c *catalog.Catalog, opts ...Option) (*Translator, error) {
	reg, err := c.Registry()
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	return New(reg, c, append([]Option{WithFlattener(c.Flattener())}, opts...)...), nil
}

// Translate translates m. params are the constants of m that are bind
// parameters, in parameter order.
//
// Translate rewrites m in place: eligible subquery sources are flattened
// into it before translation.
func (t *Translator) Translate(m *qmodel.QueryModel, params ...*qmodel.Constant) (*Plan, error) {
	if m == nil || m.MainFrom == nil || m.Select == nil {
		return nil, session.InvalidModel("query model needs a main from clause and a select clause")
	}
	s := session.New(t.registry, t.resolver,
		session.WithID(t.ids.Generate()),
		session.WithLogger(t.logger),
		session.WithParameters(params...),
	)

	flattened := t.flatten(m)

	q, err := t.query(s, m, false)
	if err != nil {
		return nil, err
	}

	key, err := ir.PlanKey(qmodel.Fingerprint(m, s.ParameterIDs()))
	if err != nil {
		return nil, fmt.Errorf("plan key: %w", err)
	}

	plan := &Plan{
		ID:                        s.ID(),
		Key:                       key,
		Model:                     qmodel.FormatModel(m),
		Query:                     q.sel,
		Parameters:                s.Parameters(),
		Projection:                q.projection.Lambda,
		Slots:                     q.projection.Slots,
		Result:                    q.result,
		Hints:                     q.hints,
		CanCachePlan:              s.CanCachePlan(),
		UncacheableReasons:        s.UncacheableReasons(),
		ContainsUntranslatedCalls: q.projection.ContainsUntranslatedCalls,
		Flattened:                 flattened,
	}
	if plan.Projection != nil {
		if plan.Projector, err = eval.Compile(plan.Projection); err != nil {
			return nil, fmt.Errorf("compile projection: %w", err)
		}
	}

	for _, w := range queryir.Validate(q.sel).Warnings {
		s.Logger().Warn("query validation", "plan_key", key, "warning", w)
	}
	s.Logger().Info("query translated",
		"plan_key", key,
		"slots", plan.Slots,
		"result", plan.Result.String(),
		"flattened", flattened,
		"cacheable", plan.CanCachePlan,
	)
	return plan, nil
}

// flatten flattens m until no subquery source is eligible.
func (t *Translator) flatten(m *qmodel.QueryModel) int {
	total := 0
	for {
		n := t.flattener.Rewrite(m)
		if n == 0 {
			return total
		}
		total += n
	}
}

type translated struct {
	sel        *queryir.Select
	projection *selectclause.Projection
	result     ResultKind
	hints      []string
}

// query translates one query level. isSubQuery marks a query embedded in
// another: a from-clause source or a nested subquery expression.
func (t *Translator) query(s *session.Session, m *qmodel.QueryModel, isSubQuery bool) (*translated, error) {
	em := hqlgen.New(s, hqlgen.WithSubQuery(t.nested))
	out := &translated{sel: &queryir.Select{}}

	main, err := t.source(s, m.MainFrom.Name, m.MainFrom.FromExpression)
	if err != nil {
		return nil, err
	}
	out.sel.From = append(out.sel.From, main)

	for _, c := range m.Body {
		if err := t.bodyClause(s, em, out.sel, c); err != nil {
			return nil, err
		}
	}

	selector := m.Select.Selector
	distinct := false
	for _, op := range m.ResultOperators {
		switch o := op.(type) {
		case *qmodel.DistinctOperator:
			distinct = true
		case *qmodel.TakeOperator:
			if out.sel.Limit, err = em.Emit(o.Count); err != nil {
				return nil, err
			}
		case *qmodel.SkipOperator:
			if out.sel.Offset, err = em.Emit(o.Count); err != nil {
				return nil, err
			}
		case *qmodel.CountOperator:
			out.result = ResultCount
		case *qmodel.FirstOperator:
			out.result = ResultFirst
			if o.OrDefault {
				out.result = ResultFirstOrDefault
			}
			out.sel.Limit = &queryir.Constant{Value: ir.IRInt(1)}
		case *qmodel.AnyOperator:
			out.result = ResultAny
			out.sel.Limit = &queryir.Constant{Value: ir.IRInt(1)}
		default:
			out.hints = append(out.hints, hint(op))
		}
	}

	if out.result == ResultCount {
		if distinct {
			return nil, session.NotSupported("count over a distinct projection", selector)
		}
		out.sel.Projection = []queryir.Node{&queryir.Aggregate{Func: qmodel.AggCount.String()}}
		out.projection = &selectclause.Projection{Nodes: out.sel.Projection, Slots: 1}
		return out, nil
	}

	if distinct {
		selector = qmodel.NewDistinct(selector)
	}
	proj, err := selectclause.VisitSelector(em, selector, isSubQuery)
	if err != nil {
		return nil, err
	}
	out.sel.Projection = proj.Nodes
	out.projection = proj
	return out, nil
}

func hint(op qmodel.ResultOperator) string {
	switch o := op.(type) {
	case *qmodel.LockOperator:
		return fmt.Sprintf("lock(%s)", o.Mode)
	case *qmodel.FetchOperator:
		return fmt.Sprintf("%s(%s)", o.Kind(), o.Member.Name)
	default:
		return string(op.Kind())
	}
}

func (t *Translator) bodyClause(s *session.Session, em *hqlgen.Emitter, sel *queryir.Select, c qmodel.BodyClause) error {
	switch c := c.(type) {
	case *qmodel.FromClause:
		src, err := t.source(s, c.Name, c.FromExpression)
		if err != nil {
			return err
		}
		sel.From = append(sel.From, src)
	case *qmodel.JoinClause:
		src, err := t.source(s, c.Name, c.Inner)
		if err != nil {
			return err
		}
		outer, err := em.Emit(c.OuterKey)
		if err != nil {
			return err
		}
		inner, err := em.Emit(c.InnerKey)
		if err != nil {
			return err
		}
		src.On = &queryir.Binary{Op: queryir.OpEq, Left: outer, Right: inner}
		sel.From = append(sel.From, src)
	case *qmodel.WhereClause:
		pred, err := em.Emit(c.Predicate)
		if err != nil {
			return err
		}
		if sel.Where == nil {
			sel.Where = pred
		} else {
			sel.Where = &queryir.Binary{Op: queryir.OpAnd, Left: sel.Where, Right: pred}
		}
	case *qmodel.OrderByClause:
		for _, o := range c.Orderings {
			key, err := em.Emit(o.Expr)
			if err != nil {
				return err
			}
			sel.OrderBy = append(sel.OrderBy, queryir.OrderItem{Expr: queryir.ToArithmetic(key), Descending: o.Descending})
		}
	default:
		return session.InvalidModel(fmt.Sprintf("unknown body clause %T", c))
	}
	return nil
}

// source translates the source of a from or join clause. A subquery
// source is translated on the server; when its rows are shapes, their
// reconstruction is registered under the item name so outer references
// splice it in.
func (t *Translator) source(s *session.Session, name string, from qmodel.Expr) (queryir.FromSource, error) {
	if et, ok := qmodel.EntitySource(from); ok {
		return queryir.FromSource{Entity: et.Name, Alias: name}, nil
	}
	sq, ok := from.(*qmodel.SubQuery)
	if !ok {
		return queryir.FromSource{}, session.InvalidModel(fmt.Sprintf("item %s: source %s is neither an entity nor a subquery", name, qmodel.Format(from)))
	}
	t.flatten(sq.Model)
	q, err := t.query(s, sq.Model, true)
	if err != nil {
		return queryir.FromSource{}, err
	}
	if q.result != ResultSequence {
		return queryir.FromSource{}, session.NotSupported(fmt.Sprintf("%s result as a query source", q.result), from)
	}

	proj := q.projection
	switch {
	case proj.Lambda != nil && proj.Columns != nil:
		s.RegisterAlias(name, proj.Lambda.Body, proj.Columns)
	case proj.Lambda == nil && isScalar(sq.Model.Select.Selector.Type()):
		// A scalar column gets a name the outer query can read.
		q.sel.Projection = aliasColumns(q.sel.Projection)
		row := qmodel.NewRowParameter()
		s.RegisterAlias(name, qmodel.NewConvert(qmodel.NewRowValue(row, 0), sq.Model.Select.Selector.Type()), []string{"c0"})
	case proj.Lambda != nil:
		// Unnamed columns get c0, c1, ... for the splice to read.
		q.sel.Projection = aliasColumns(q.sel.Projection)
		columns := make([]string, proj.Slots)
		for i := range columns {
			columns[i] = fmt.Sprintf("c%d", i)
		}
		s.RegisterAlias(name, proj.Lambda.Body, columns)
	}
	return queryir.FromSource{SubQuery: q.sel, Alias: name}, nil
}

// isScalar reports whether values of t are single columns rather than
// entity rows.
func isScalar(t *qmodel.Type) bool {
	switch t.Kind {
	case qmodel.TypeEntity, qmodel.TypeAnonymous, qmodel.TypeClass, qmodel.TypeArray, qmodel.TypeObject:
		return false
	default:
		return true
	}
}

// aliasColumns names projected columns c0, c1, ... A distinct holder
// keeps its marker in head position.
func aliasColumns(nodes []queryir.Node) []queryir.Node {
	if len(nodes) == 1 {
		if h, ok := nodes[0].(*queryir.SubTreeHolder); ok && len(h.Children) > 0 {
			if _, ok := h.Children[0].(*queryir.Distinct); ok {
				children := append([]queryir.Node{h.Children[0]}, aliasColumns(h.Children[1:])...)
				return []queryir.Node{&queryir.SubTreeHolder{Children: children}}
			}
		}
	}
	out := make([]queryir.Node, len(nodes))
	for i, n := range nodes {
		out[i] = &queryir.Alias{Expr: n, Name: fmt.Sprintf("c%d", i)}
	}
	return out
}

// nested translates a subquery expression for the emitter. The result
// is a server value; a nested query whose result needs client-side
// reconstruction cannot be used.
func (t *Translator) nested(s *session.Session, m *qmodel.QueryModel) (*queryir.Select, error) {
	t.flatten(m)
	q, err := t.query(s, m, true)
	if err != nil {
		return nil, err
	}
	if q.projection.Lambda != nil {
		return nil, session.NotSupported("nested subquery needs client-side reconstruction", qmodel.NewSubQuery(m))
	}
	return q.sel, nil
}
