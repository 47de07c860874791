// Package selectclause translates a select clause: nominated subtrees
// become IR columns, and the rest of the selector becomes a reconstruction
// lambda over the fetched row.
package selectclause

import (
	"fmt"

	"github.com/roach88/querylift/internal/hqlgen"
	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/nominate"
	"github.com/roach88/querylift/internal/qmodel"
	"github.com/roach88/querylift/internal/queryir"
	"github.com/roach88/querylift/internal/session"
)

// Projection is a translated select clause.
type Projection struct {
	// Lambda rebuilds the requested value from a fetched row. It is nil
	// when the single column of Nodes is the result.
	Lambda *qmodel.Lambda

	// Nodes are the IR columns. Row slot i holds the value of Nodes[i];
	// a distinct marker, when present, groups them all into one holder.
	Nodes []queryir.Node

	// Slots is the number of row slots, which equals the number of
	// projected columns.
	Slots int

	// Columns names the projected columns of a subquery shape, one per
	// slot. It is nil when the projection is not an aliased shape.
	Columns []string

	Distinct                  bool
	ContainsUntranslatedCalls bool
}

// ColumnNodes returns the IR columns without the distinct holder.
func (p *Projection) ColumnNodes() []queryir.Node {
	if p.Distinct && len(p.Nodes) == 1 {
		if h, ok := p.Nodes[0].(*queryir.SubTreeHolder); ok && len(h.Children) > 0 {
			return h.Children[1:]
		}
	}
	return p.Nodes
}

// VisitSelector translates selector. isSubQuery is set when the selector
// belongs to a query embedded in another; shapes then project server-side
// under aliases.
//
// The reconstruction body, when one is needed, is recorded in the session
// under the selector's id. VisitSelector fails with a NOT_SUPPORTED
// TranslationError when a distinct selector depends on client-side calls.
func VisitSelector(em *hqlgen.Emitter, selector qmodel.Expr, isSubQuery bool) (*Projection, error) {
	s := em.Session()
	key := selector

	expr := selector
	distinct := false
	if d, ok := expr.(*qmodel.Distinct); ok {
		expr = d.Operand
		distinct = true
	}

	nom := nominate.Nominate(s, expr, isSubQuery)
	expr = nom.Expr

	// De-duplication happens on the server, before client-side calls
	// could change the values.
	if distinct && nom.ContainsUntranslatedCalls {
		return nil, session.NotSupported("cannot use distinct on a result that depends on methods with no server equivalent", selector)
	}

	v := &visitor{
		em:         em,
		nom:        nom,
		row:        qmodel.NewRowParameter(),
		isSubQuery: isSubQuery,
	}
	projection, err := v.visit(expr)
	if err != nil {
		return nil, err
	}

	// A selector with no server column still yields one row per match.
	placeholder := len(v.nodes) == 0
	if placeholder {
		v.nodes = append(v.nodes, &queryir.Constant{Value: ir.IRInt(1)})
		v.column++
	}

	p := &Projection{
		Slots:                     v.column,
		Columns:                   v.columns,
		Distinct:                  distinct,
		ContainsUntranslatedCalls: nom.ContainsUntranslatedCalls,
	}
	if placeholder || (projection.ID() != expr.ID() && !nom.IsCandidate(expr)) || isConstruction(projection) {
		p.Lambda = qmodel.NewLambda(projection, v.row)
		s.SetSubQuerySelect(key.ID(), projection)
	}

	nodes := make([]queryir.Node, len(v.nodes))
	for i, n := range v.nodes {
		nodes[i] = queryir.ToArithmetic(n)
	}
	if distinct {
		nodes = []queryir.Node{&queryir.SubTreeHolder{
			Children: append([]queryir.Node{&queryir.Distinct{}}, nodes...),
		}}
	}
	p.Nodes = nodes

	s.Logger().Debug("select clause translated",
		"slots", p.Slots,
		"reconstruction", p.Lambda != nil,
		"distinct", distinct,
		"subquery", isSubQuery,
	)
	return p, nil
}

func isConstruction(e qmodel.Expr) bool {
	switch e.(type) {
	case *qmodel.New, *qmodel.Block:
		return true
	default:
		return false
	}
}

type visitor struct {
	em         *hqlgen.Emitter
	nom        *nominate.Result
	row        *qmodel.Parameter
	isSubQuery bool

	column  int
	nodes   []queryir.Node
	columns []string
}

// emit appends one IR column and returns a read of its slot.
func (v *visitor) emit(node queryir.Node, t *qmodel.Type) qmodel.Expr {
	v.nodes = append(v.nodes, node)
	slot := qmodel.NewRowValue(v.row, v.column)
	v.column++
	return convertSlot(slot, t)
}

func (v *visitor) visit(e qmodel.Expr) (qmodel.Expr, error) {
	if e == nil {
		return nil, nil
	}
	if !v.nom.IsCandidate(e) {
		var err error
		out := qmodel.VisitChildren(e, func(child qmodel.Expr) qmodel.Expr {
			if err != nil {
				return child
			}
			var r qmodel.Expr
			r, err = v.visit(child)
			if err != nil {
				return child
			}
			return r
		})
		return out, err
	}

	switch n := e.(type) {
	case *qmodel.New:
		return v.visitShape(n)
	case *qmodel.QuerySourceRef:
		if body, ok := v.em.Session().AliasReplacement(n.Source.ItemName()); ok {
			return v.splice(n, body)
		}
	}

	node, err := v.em.Emit(e)
	if err != nil {
		return nil, err
	}
	return v.emit(node, e.Type()), nil
}

// visitShape allocates one slot per constructor argument, left to right,
// and rebuilds the object client-side. The object is null when any
// argument of a non-nullable type reads null.
func (v *visitor) visitShape(n *qmodel.New) (qmodel.Expr, error) {
	var nodes []queryir.Node
	if v.isSubQuery && len(n.Members) == len(n.Args) {
		shape, err := v.em.Shape(n)
		if err != nil {
			return nil, err
		}
		nodes = shape
		v.columns = append(v.columns, n.Members...)
	} else {
		nodes = make([]queryir.Node, len(n.Args))
		for i, arg := range n.Args {
			node, err := v.em.Emit(arg)
			if err != nil {
				return nil, err
			}
			nodes[i] = node
		}
	}

	ret := qmodel.NewLabelTarget("ret", n.Type())
	returnNull := qmodel.NewReturn(ret, qmodel.Null(n.Type()))

	var testers []qmodel.Expr
	args := make([]qmodel.Expr, len(n.Args))
	for i, arg := range n.Args {
		v.nodes = append(v.nodes, nodes[i])
		slot := qmodel.NewRowValue(v.row, v.column)
		v.column++

		if !arg.Type().IsNullableOrReference() {
			testers = append(testers, qmodel.IfThen(qmodel.Equal(slot, qmodel.Null(qmodel.Object)), returnNull))
		}
		args[i] = convertSlot(slot, arg.Type())
	}

	built := qmodel.NewObject(n.Ctor, args, n.Members)
	testers = append(testers, qmodel.NewLabel(ret, built))
	return qmodel.NewBlock(testers...), nil
}

// splice substitutes the registered reconstruction of a server subquery
// for a reference to its item. The subquery's columns are fetched as
// consecutive slots starting at the current one.
func (v *visitor) splice(ref *qmodel.QuerySourceRef, body qmodel.Expr) (qmodel.Expr, error) {
	name := ref.Source.ItemName()
	columns := v.em.Session().AliasColumns(name)

	out, maxIndex := Renumber(body, v.row, v.column)
	if maxIndex >= len(columns) {
		return nil, session.EmitFailed(
			fmt.Sprintf("alias %s reads %d slots but projects %d columns", name, maxIndex+1, len(columns)), ref)
	}
	for _, col := range columns {
		v.nodes = append(v.nodes, &queryir.Dot{Left: &queryir.Ident{Name: name}, Name: col})
	}
	v.column += len(columns)
	return out, nil
}

// convertSlot converts a raw row value to t. Enums are first changed to
// their storage type, since the column may hold a different integer type.
func convertSlot(slot qmodel.Expr, t *qmodel.Type) qmodel.Expr {
	if t.IsEnum() && t.Underlying != nil {
		slot = qmodel.ChangeType(slot, t.Underlying)
	}
	return qmodel.NewConvert(slot, t)
}
