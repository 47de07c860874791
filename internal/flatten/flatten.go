// Package flatten merges subqueries used as from-clause sources into the
// query that reads them, when doing so cannot change the result.
package flatten

import (
	"log/slog"

	"github.com/roach88/querylift/internal/qmodel"
)

// DefaultOperators are the result operators that relocate verbatim from
// a subquery to its outer query: lock hints, fetch requests and
// as-queryable markers.
var DefaultOperators = []qmodel.OperatorKind{
	qmodel.OpKindLock,
	qmodel.OpKindFetchLazyProperties,
	qmodel.OpKindFetchOne,
	qmodel.OpKindFetchMany,
	qmodel.OpKindAsQueryable,
}

// Flattener rewrites query models in place. The allow-list is fixed at
// construction; a Flattener is safe for concurrent use on distinct models.
type Flattener struct {
	allowed map[qmodel.OperatorKind]bool
	logger  *slog.Logger
}

// Option configures a Flattener.
type Option func(*Flattener)

// WithOperators replaces the allow-list of relocatable result operators.
func WithOperators(kinds ...qmodel.OperatorKind) Option {
	return func(f *Flattener) {
		f.allowed = make(map[qmodel.OperatorKind]bool, len(kinds))
		for _, k := range kinds {
			f.allowed[k] = true
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *Flattener) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates a Flattener allowing DefaultOperators unless configured
// otherwise.
func New(opts ...Option) *Flattener {
	f := &Flattener{logger: slog.Default()}
	WithOperators(DefaultOperators...)(f)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Rewrite flattens the model's main and additional from clauses with
// DefaultOperators.
func Rewrite(m *qmodel.QueryModel) int {
	return New().Rewrite(m)
}

// Operators lists the allow-list in declaration order of
// qmodel.AllOperatorKinds.
func (f *Flattener) Operators() []qmodel.OperatorKind {
	var out []qmodel.OperatorKind
	for _, k := range qmodel.AllOperatorKinds {
		if f.allowed[k] {
			out = append(out, k)
		}
	}
	return out
}

// Rewrite inlines every eligible subquery source of m, one nesting level
// per call, and returns how many were inlined. A model with no eligible
// subquery is left untouched.
func (f *Flattener) Rewrite(m *qmodel.QueryModel) int {
	flattened := 0
	if f.flattenClause(m, m.MainFrom, 0) {
		flattened++
	}
	// Body clauses spliced in by an earlier flattening are visited too.
	for i := 0; i < len(m.Body); i++ {
		from, ok := m.Body[i].(*qmodel.FromClause)
		if !ok {
			continue
		}
		if f.flattenClause(m, from, i+1) {
			flattened++
		}
	}
	return flattened
}

// Flattenable reports whether sub may be merged into an outer query.
func (f *Flattener) Flattenable(sub *qmodel.QueryModel) bool {
	if sub.HasOrdering() {
		return false
	}
	switch sub.Select.Selector.(type) {
	case *qmodel.New, *qmodel.MemberInit:
		// Member names would have to be re-derived across scopes.
		return false
	}
	for _, op := range sub.ResultOperators {
		if !f.allowed[op.Kind()] {
			return false
		}
	}
	return true
}

// flattenClause merges the subquery source of clause into m. Spliced body
// clauses start at dest.
func (f *Flattener) flattenClause(m *qmodel.QueryModel, clause *qmodel.FromClause, dest int) bool {
	sq, ok := clause.FromExpression.(*qmodel.SubQuery)
	if !ok || !f.Flattenable(sq.Model) {
		return false
	}
	sub := sq.Model
	innerFrom := sub.MainFrom
	outerName := clause.Name

	clause.CopyFromClauseData(innerFrom)

	// The subquery's row becomes the expression that computed it.
	toSelector := map[qmodel.QuerySource]qmodel.Expr{clause: sub.Select.Selector}
	m.TransformExpressions(func(e qmodel.Expr) qmodel.Expr {
		return qmodel.ReplaceClauseReferences(e, toSelector)
	})

	for i, c := range sub.Body {
		m.InsertBodyClause(dest+i, c)
	}
	for i, op := range sub.ResultOperators {
		m.InsertResultOperator(i, op)
	}

	// Spliced clauses now refer to the outer clause's item.
	toOuter := map[qmodel.QuerySource]qmodel.Expr{innerFrom: qmodel.NewQuerySourceRef(clause)}
	m.TransformExpressions(func(e qmodel.Expr) qmodel.Expr {
		return qmodel.ReplaceClauseReferences(e, toOuter)
	})

	f.logger.Debug("subquery flattened",
		"item", outerName,
		"inner_item", innerFrom.Name,
		"body_clauses", len(sub.Body),
		"result_operators", len(sub.ResultOperators),
	)
	return true
}
