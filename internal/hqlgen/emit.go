// Package hqlgen emits target IR for expressions the nominator classified
// as server-translatable, and for where, order-by and join clauses, which
// must translate completely.
package hqlgen

import (
	"fmt"

	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/qmodel"
	"github.com/roach88/querylift/internal/queryir"
	"github.com/roach88/querylift/internal/session"
)

// SubQueryFunc translates a nested query model to a server subquery.
type SubQueryFunc func(s *session.Session, m *qmodel.QueryModel) (*queryir.Select, error)

// Emitter converts expressions to IR within one session.
type Emitter struct {
	s        *session.Session
	subquery SubQueryFunc
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithSubQuery sets the translator for nested SubQuery expressions.
// Without it, subqueries fail to emit.
func WithSubQuery(fn SubQueryFunc) Option {
	return func(e *Emitter) {
		e.subquery = fn
	}
}

// New creates an Emitter bound to s.
func New(s *session.Session, opts ...Option) *Emitter {
	e := &Emitter{s: s}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Session returns the session the emitter writes parameters to.
func (em *Emitter) Session() *session.Session { return em.s }

// Emit converts x to one IR node. Constants promoted to bind parameters
// become named parameters; other constants are inlined.
func (em *Emitter) Emit(x qmodel.Expr) (queryir.Node, error) {
	switch n := x.(type) {
	case *qmodel.Constant:
		if name, ok := em.s.ParameterFor(n.ID()); ok {
			return &queryir.NamedParameter{Name: name}, nil
		}
		return &queryir.Constant{Value: n.Value}, nil
	case *qmodel.QuerySourceRef:
		return &queryir.Ident{Name: n.Source.ItemName()}, nil
	case *qmodel.Member:
		return em.emitMember(n)
	case *qmodel.Call:
		return em.emitCall(n)
	case *qmodel.Binary:
		return em.emitBinary(n)
	case *qmodel.Unary:
		operand, err := em.Emit(n.Operand)
		if err != nil {
			return nil, err
		}
		if n.Op == qmodel.OpNot {
			return &queryir.Not{Operand: operand}, nil
		}
		return &queryir.Binary{Op: queryir.OpSub, Left: &queryir.Constant{Value: ir.IRInt(0)}, Right: operand}, nil
	case *qmodel.Convert:
		operand, err := em.Emit(n.Operand)
		if err != nil {
			return nil, err
		}
		from, to := n.Operand.Type(), n.Type()
		if from.IsNumeric() && to.IsNumeric() && from.Kind != to.Kind {
			return &queryir.Cast{Operand: operand, Type: CastType(to)}, nil
		}
		return operand, nil
	case *qmodel.Conditional:
		if n.IfFalse == nil {
			return nil, session.EmitFailed("if-then statement has no IR form", x)
		}
		test, err := em.Emit(n.Test)
		if err != nil {
			return nil, err
		}
		ifTrue, err := em.Emit(n.IfTrue)
		if err != nil {
			return nil, err
		}
		ifFalse, err := em.Emit(n.IfFalse)
		if err != nil {
			return nil, err
		}
		// The backend types a case expression only through an explicit cast.
		return &queryir.Cast{
			Operand: &queryir.Case{Whens: []queryir.When{{Cond: test, Then: ifTrue}}, Else: ifFalse},
			Type:    CastType(n.Type()),
		}, nil
	case *qmodel.Aggregate:
		agg := &queryir.Aggregate{Func: n.Op.String()}
		if n.Operand != nil {
			operand, err := em.Emit(n.Operand)
			if err != nil {
				return nil, err
			}
			agg.Operand = operand
		}
		return agg, nil
	case *qmodel.SubQuery:
		if em.subquery == nil {
			return nil, session.EmitFailed("nested subquery without a subquery translator", x)
		}
		sel, err := em.subquery(em.s, n.Model)
		if err != nil {
			return nil, err
		}
		return &queryir.SubQuery{Select: sel}, nil
	case *qmodel.Nominated:
		return em.Emit(n.Operand)
	case *qmodel.New:
		return nil, session.EmitFailed("object construction projects one column per argument", x)
	case *qmodel.Parameter, *qmodel.MemberInit, *qmodel.NewArray, *qmodel.Block,
		*qmodel.Label, *qmodel.Return, *qmodel.Distinct, *qmodel.RowValue, *qmodel.Lambda:
		return nil, session.EmitFailed(fmt.Sprintf("%s has no IR form", x.Kind()), x)
	default:
		return nil, session.EmitFailed(fmt.Sprintf("unknown expression %T", x), x)
	}
}

// Shape emits a structural construction as one aliased column per
// argument, for subquery projections.
func (em *Emitter) Shape(n *qmodel.New) ([]queryir.Node, error) {
	if len(n.Members) != len(n.Args) {
		return nil, session.EmitFailed("shape arguments need member names", n)
	}
	out := make([]queryir.Node, 0, len(n.Args))
	for i, arg := range n.Args {
		node, err := em.Emit(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, &queryir.Alias{Expr: queryir.ToArithmetic(node), Name: n.Members[i]})
	}
	return out, nil
}

func (em *Emitter) emitMember(n *qmodel.Member) (queryir.Node, error) {
	if _, ok := em.s.Resolve(n); ok {
		obj, err := em.Emit(n.Object)
		if err != nil {
			return nil, err
		}
		return &queryir.Dot{Left: obj, Name: n.Member.Name}, nil
	}
	if g, ok := em.s.Registry().Member(n.Member); ok {
		var recv queryir.Node
		if n.Object != nil {
			var err error
			if recv, err = em.Emit(n.Object); err != nil {
				return nil, err
			}
		}
		node, err := g.BuildIR(recv, nil)
		if err != nil {
			return nil, session.EmitFailed(err.Error(), n)
		}
		return node, nil
	}
	// A column of a server subquery projected under an alias.
	if ref, ok := n.Object.(*qmodel.QuerySourceRef); ok {
		name := ref.Source.ItemName()
		for _, col := range em.s.AliasColumns(name) {
			if col == n.Member.Name {
				return &queryir.Dot{Left: &queryir.Ident{Name: name}, Name: col}, nil
			}
		}
	}
	return nil, session.EmitFailed(fmt.Sprintf("member %s is not mapped", n.Member.Key()), n)
}

func (em *Emitter) emitCall(n *qmodel.Call) (queryir.Node, error) {
	g, ok := em.s.Registry().Method(n.Method)
	if !ok {
		return nil, session.EmitFailed(fmt.Sprintf("method %s has no server generator", n.Method.Key()), n)
	}
	var recv queryir.Node
	if n.Object != nil && !g.IgnoreInstance() {
		var err error
		if recv, err = em.Emit(n.Object); err != nil {
			return nil, err
		}
	}
	args := make([]queryir.Node, 0, len(n.Args))
	for _, a := range n.Args {
		node, err := em.Emit(a)
		if err != nil {
			return nil, err
		}
		args = append(args, node)
	}
	node, err := g.BuildIR(recv, args)
	if err != nil {
		return nil, session.EmitFailed(err.Error(), n)
	}
	return node, nil
}

var binaryOps = map[qmodel.BinaryOp]queryir.BinaryOp{
	qmodel.OpEqual:        queryir.OpEq,
	qmodel.OpNotEqual:     queryir.OpNe,
	qmodel.OpLess:         queryir.OpLt,
	qmodel.OpLessEqual:    queryir.OpLe,
	qmodel.OpGreater:      queryir.OpGt,
	qmodel.OpGreaterEqual: queryir.OpGe,
	qmodel.OpAnd:          queryir.OpAnd,
	qmodel.OpOr:           queryir.OpOr,
	qmodel.OpAdd:          queryir.OpAdd,
	qmodel.OpSub:          queryir.OpSub,
	qmodel.OpMul:          queryir.OpMul,
	qmodel.OpDiv:          queryir.OpDiv,
	qmodel.OpMod:          queryir.OpMod,
}

func (em *Emitter) emitBinary(n *qmodel.Binary) (queryir.Node, error) {
	if n.Op == qmodel.OpEqual || n.Op == qmodel.OpNotEqual {
		if operand, ok := nullComparison(n); ok {
			node, err := em.Emit(operand)
			if err != nil {
				return nil, err
			}
			if n.Op == qmodel.OpEqual {
				return &queryir.IsNull{Operand: node}, nil
			}
			return &queryir.IsNotNull{Operand: node}, nil
		}
	}

	left, err := em.Emit(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := em.Emit(n.Right)
	if err != nil {
		return nil, err
	}

	switch {
	case n.Op == qmodel.OpCoalesce:
		return &queryir.Call{Name: "coalesce", Args: []queryir.Node{left, right}}, nil
	case n.Op == qmodel.OpAdd && n.Type().Kind == qmodel.TypeString:
		return &queryir.Call{Name: "concat", Args: []queryir.Node{left, right}}, nil
	}
	op, ok := binaryOps[n.Op]
	if !ok {
		return nil, session.EmitFailed(fmt.Sprintf("operator %s has no IR form", n.Op), n)
	}
	return &queryir.Binary{Op: op, Left: left, Right: right}, nil
}

// nullComparison returns the non-null operand of x == null or x != null.
func nullComparison(n *qmodel.Binary) (qmodel.Expr, bool) {
	if isNullConstant(n.Right) {
		return n.Left, true
	}
	if isNullConstant(n.Left) {
		return n.Right, true
	}
	return nil, false
}

func isNullConstant(x qmodel.Expr) bool {
	c, ok := x.(*qmodel.Constant)
	return ok && ir.IsNull(c.Value)
}

// CastType names t in the IR's cast vocabulary. Enums cast to their
// storage type.
func CastType(t *qmodel.Type) string {
	if t.IsEnum() && t.Underlying != nil {
		return t.Underlying.Name
	}
	return t.Name
}
