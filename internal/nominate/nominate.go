// Package nominate classifies the subtrees of a projection expression as
// server-translatable or client-only.
package nominate

import (
	"sort"

	"github.com/roach88/querylift/internal/qmodel"
	"github.com/roach88/querylift/internal/session"
)

// Result is the outcome of one nomination pass.
type Result struct {
	// Expr is the classified expression with Nominated wrappers removed.
	// Candidate ids refer to nodes of Expr.
	Expr qmodel.Expr

	// ContainsUntranslatedCalls is set when some method call in the tree
	// has no server-side generator and must run client-side.
	ContainsUntranslatedCalls bool

	candidates map[qmodel.NodeID]struct{}
}

// IsCandidate reports whether e is a server candidate. Identity is by
// NodeID: equal-looking subtrees at different positions are distinct.
func (r *Result) IsCandidate(e qmodel.Expr) bool {
	if e == nil {
		return false
	}
	_, ok := r.candidates[e.ID()]
	return ok
}

// Len returns the number of candidates.
func (r *Result) Len() int { return len(r.candidates) }

// Candidates lists candidate ids in ascending order.
func (r *Result) Candidates() []qmodel.NodeID {
	ids := make([]qmodel.NodeID, 0, len(r.candidates))
	for id := range r.candidates {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Nominate classifies every subtree of root. In a subquery projection
// (isSubQuery) constants are projected on the server from the start.
//
// Nominate never fails: whatever cannot be proven server-evaluable is left
// for the client. It may clear the session's cache-ability flag when a
// bind parameter ends up evaluated client-side.
func Nominate(s *session.Session, root qmodel.Expr, isSubQuery bool) *Result {
	n := &nominator{
		s:          s,
		root:       root,
		candidates: make(map[qmodel.NodeID]struct{}),
	}
	if nom, ok := root.(*qmodel.Nominated); ok {
		n.root = nom.Operand
	}
	expr, _ := n.visit(root, isSubQuery)

	s.Logger().Debug("projection nominated",
		"candidates", len(n.candidates),
		"untranslated_calls", n.untranslated,
		"subquery", isSubQuery,
	)
	return &Result{
		Expr:                      expr,
		ContainsUntranslatedCalls: n.untranslated,
		candidates:                n.candidates,
	}
}

type nominator struct {
	s            *session.Session
	root         qmodel.Expr
	candidates   map[qmodel.NodeID]struct{}
	untranslated bool
}

func (n *nominator) add(e qmodel.Expr)    { n.candidates[e.ID()] = struct{}{} }
func (n *nominator) remove(e qmodel.Expr) { delete(n.candidates, e.ID()) }

// visit classifies e and returns it with Nominated wrappers stripped,
// together with whether its parent may still become a candidate.
// projectConstants is the mode inherited from the parent.
func (n *nominator) visit(e qmodel.Expr, projectConstants bool) (qmodel.Expr, bool) {
	if e == nil {
		return nil, true
	}

	isRoot := e == n.root
	switch x := e.(type) {
	case *qmodel.Nominated:
		if sh, ok := x.Operand.(*qmodel.New); ok && sh != n.root {
			return n.visit(sh, projectConstants)
		}
		n.add(x.Operand)
		return x.Operand, true
	case *qmodel.QuerySourceRef:
		// Replaced by the registered reconstruction later, so the parent
		// cannot be translated as one unit.
		if n.s.HasAlias(x.Source.ItemName()) {
			n.add(x)
			return x, false
		}
	}

	mode := projectConstants || isEqual(e) || n.isRegisteredFunction(e)
	if _, ok := e.(*qmodel.Call); ok && !n.isRegisteredFunction(e) {
		n.untranslated = true
	}

	if agg, ok := e.(*qmodel.Aggregate); ok && agg.Op == qmodel.AggCount {
		n.add(e)
		return e, true
	}

	candidate := true
	e = qmodel.VisitChildren(e, func(child qmodel.Expr) qmodel.Expr {
		out, ok := n.visit(child, mode)
		candidate = candidate && ok
		return out
	})

	// A half-translated equality is useless: its constant operands go back
	// to the client with it.
	if !candidate {
		if b, ok := e.(*qmodel.Binary); ok && b.Op == qmodel.OpEqual {
			if _, isConst := b.Left.(*qmodel.Constant); isConst {
				n.remove(b.Left)
			}
			if _, isConst := b.Right.(*qmodel.Constant); isConst {
				n.remove(b.Right)
			}
		}
	}

	if candidate {
		if n.evaluable(e, mode, isRoot) {
			n.add(e)
		} else {
			candidate = false
		}
	}
	return e, candidate
}

func isEqual(e qmodel.Expr) bool {
	b, ok := e.(*qmodel.Binary)
	return ok && b.Op == qmodel.OpEqual
}

// isRegisteredFunction reports whether e is a call with an applicable
// generator, or an aggregate marker. A call on a captured constant
// receiver is applicable only when the generator ignores the receiver.
func (n *nominator) isRegisteredFunction(e qmodel.Expr) bool {
	switch x := e.(type) {
	case *qmodel.Call:
		g, ok := n.s.Registry().Method(x.Method)
		if !ok {
			return false
		}
		if x.Object == nil {
			return true
		}
		if _, isConst := x.Object.(*qmodel.Constant); !isConst {
			return true
		}
		return g.IgnoreInstance()
	case *qmodel.Aggregate:
		return true
	default:
		return false
	}
}

// evaluable is the server-evaluability predicate for a node whose
// children all passed.
func (n *nominator) evaluable(e qmodel.Expr, projectConstants, isRoot bool) bool {
	switch x := e.(type) {
	case *qmodel.New:
		// A shape splits into one aliased column per argument. Only the
		// selector of a subquery select can be split; nested or compared
		// shapes have no single-column form.
		return isRoot && projectConstants && x.Type().IsAnonymous()
	case *qmodel.MemberInit, *qmodel.NewArray:
		return false
	case *qmodel.Constant:
		if !projectConstants {
			if name, ok := n.s.ParameterFor(x.ID()); ok {
				n.s.MarkUncacheable("parameter " + name + " evaluated client-side")
			}
		}
		return projectConstants
	case *qmodel.Call:
		return n.isRegisteredFunction(e)
	case *qmodel.Conditional:
		return projectConstants
	case *qmodel.Member:
		if _, ok := n.s.Resolve(x); ok {
			return true
		}
		_, ok := n.s.Registry().Member(x.Member)
		return ok
	case *qmodel.Parameter, *qmodel.Lambda, *qmodel.Block, *qmodel.Label,
		*qmodel.Return, *qmodel.RowValue, *qmodel.Distinct:
		// No IR form.
		return false
	default:
		return true
	}
}
