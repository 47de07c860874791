package qmodel

import "fmt"

// Children returns the direct operands of e in evaluation order. Subquery
// models and lambda parameters are not children.
func Children(e Expr) []Expr {
	switch n := e.(type) {
	case *Constant, *Parameter, *QuerySourceRef, *SubQuery, *RowValue:
		return nil
	case *Member:
		return optional(n.Object)
	case *Call:
		return append(optional(n.Object), n.Args...)
	case *Binary:
		return []Expr{n.Left, n.Right}
	case *Unary:
		return []Expr{n.Operand}
	case *Convert:
		return []Expr{n.Operand}
	case *Conditional:
		return append([]Expr{n.Test, n.IfTrue}, optional(n.IfFalse)...)
	case *New:
		return n.Args
	case *MemberInit:
		out := []Expr{n.New}
		for _, b := range n.Bindings {
			out = append(out, b.Value)
		}
		return out
	case *NewArray:
		if n.Bounds != nil {
			return []Expr{n.Bounds}
		}
		return n.Elements
	case *Block:
		return n.Exprs
	case *Label:
		return optional(n.Default)
	case *Return:
		return optional(n.Value)
	case *Aggregate:
		return optional(n.Operand)
	case *Distinct:
		return []Expr{n.Operand}
	case *Nominated:
		return []Expr{n.Operand}
	case *Lambda:
		return []Expr{n.Body}
	default:
		panic(fmt.Sprintf("qmodel.Children: unknown expression %T", e))
	}
}

func optional(e Expr) []Expr {
	if e == nil {
		return nil
	}
	return []Expr{e}
}

// VisitChildren applies fn to each direct child of e. If no child changes,
// e itself is returned; otherwise a copy with a fresh NodeID and the same
// static type is built. e is never modified.
func VisitChildren(e Expr, fn func(Expr) Expr) Expr {
	switch n := e.(type) {
	case *Constant, *Parameter, *QuerySourceRef, *SubQuery, *RowValue:
		return e
	case *Member:
		obj, changed := visitOne(n.Object, fn)
		if !changed {
			return n
		}
		return &Member{node: newNode(n.typ), Object: obj, Member: n.Member}
	case *Call:
		obj, objChanged := visitOne(n.Object, fn)
		args, argsChanged := visitList(n.Args, fn)
		if !objChanged && !argsChanged {
			return n
		}
		return &Call{node: newNode(n.typ), Object: obj, Method: n.Method, Args: args}
	case *Binary:
		l, lc := visitOne(n.Left, fn)
		r, rc := visitOne(n.Right, fn)
		if !lc && !rc {
			return n
		}
		return &Binary{node: newNode(n.typ), Op: n.Op, Left: l, Right: r}
	case *Unary:
		o, changed := visitOne(n.Operand, fn)
		if !changed {
			return n
		}
		return &Unary{node: newNode(n.typ), Op: n.Op, Operand: o}
	case *Convert:
		o, changed := visitOne(n.Operand, fn)
		if !changed {
			return n
		}
		return &Convert{node: newNode(n.typ), Operand: o, Dynamic: n.Dynamic}
	case *Conditional:
		test, tc := visitOne(n.Test, fn)
		a, ac := visitOne(n.IfTrue, fn)
		b, bc := visitOne(n.IfFalse, fn)
		if !tc && !ac && !bc {
			return n
		}
		return &Conditional{node: newNode(n.typ), Test: test, IfTrue: a, IfFalse: b}
	case *New:
		args, changed := visitList(n.Args, fn)
		if !changed {
			return n
		}
		return &New{node: newNode(n.typ), Ctor: n.Ctor, Args: args, Members: n.Members}
	case *MemberInit:
		rewritten := fn(n.New)
		nn, ok := rewritten.(*New)
		if !ok {
			panic(fmt.Sprintf("qmodel.VisitChildren: member-init constructor rewritten to %T", rewritten))
		}
		var bindings []MemberBinding
		for i, b := range n.Bindings {
			v := fn(b.Value)
			if v != b.Value && bindings == nil {
				bindings = append([]MemberBinding(nil), n.Bindings...)
			}
			if bindings != nil {
				bindings[i].Value = v
			}
		}
		if bindings == nil {
			if nn == n.New {
				return n
			}
			bindings = n.Bindings
		}
		return &MemberInit{node: newNode(n.typ), New: nn, Bindings: bindings}
	case *NewArray:
		bounds, bc := visitOne(n.Bounds, fn)
		elems, ec := visitList(n.Elements, fn)
		if !bc && !ec {
			return n
		}
		return &NewArray{node: newNode(n.typ), Elements: elems, Bounds: bounds}
	case *Block:
		exprs, changed := visitList(n.Exprs, fn)
		if !changed {
			return n
		}
		return &Block{node: newNode(n.typ), Exprs: exprs}
	case *Label:
		d, changed := visitOne(n.Default, fn)
		if !changed {
			return n
		}
		return &Label{node: newNode(n.typ), Target: n.Target, Default: d}
	case *Return:
		v, changed := visitOne(n.Value, fn)
		if !changed {
			return n
		}
		return &Return{node: newNode(n.typ), Target: n.Target, Value: v}
	case *Aggregate:
		o, changed := visitOne(n.Operand, fn)
		if !changed {
			return n
		}
		return &Aggregate{node: newNode(n.typ), Op: n.Op, Operand: o}
	case *Distinct:
		o, changed := visitOne(n.Operand, fn)
		if !changed {
			return n
		}
		return &Distinct{node: newNode(n.typ), Operand: o}
	case *Nominated:
		o, changed := visitOne(n.Operand, fn)
		if !changed {
			return n
		}
		return &Nominated{node: newNode(n.typ), Operand: o}
	case *Lambda:
		body, changed := visitOne(n.Body, fn)
		if !changed {
			return n
		}
		return &Lambda{node: newNode(n.typ), Params: n.Params, Body: body}
	default:
		panic(fmt.Sprintf("qmodel.VisitChildren: unknown expression %T", e))
	}
}

func visitOne(e Expr, fn func(Expr) Expr) (Expr, bool) {
	if e == nil {
		return nil, false
	}
	r := fn(e)
	return r, r != e
}

func visitList(list []Expr, fn func(Expr) Expr) ([]Expr, bool) {
	var out []Expr
	for i, e := range list {
		r := fn(e)
		if r != e && out == nil {
			out = make([]Expr, len(list))
			copy(out, list[:i])
		}
		if out != nil {
			out[i] = r
		}
	}
	if out == nil {
		return list, false
	}
	return out, true
}

// Transform rewrites e top-down. fn is called on each node before its
// children; when it reports a replacement, the replacement is used as is
// and its children are not visited.
func Transform(e Expr, fn func(Expr) (Expr, bool)) Expr {
	if e == nil {
		return nil
	}
	if r, ok := fn(e); ok {
		return r
	}
	return VisitChildren(e, func(c Expr) Expr { return Transform(c, fn) })
}

// Walk visits e and its descendants in pre-order. Returning false from fn
// skips the node's children.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, c := range Children(e) {
		Walk(c, fn)
	}
}

// ReplaceClauseReferences replaces every reference to a source in mapping
// with the mapped expression, descending into subquery models (which are
// updated in place). Unmapped references are left unchanged.
func ReplaceClauseReferences(e Expr, mapping map[QuerySource]Expr) Expr {
	return Transform(e, func(x Expr) (Expr, bool) {
		switch n := x.(type) {
		case *QuerySourceRef:
			if r, ok := mapping[n.Source]; ok {
				return r, true
			}
		case *SubQuery:
			n.Model.TransformExpressions(func(inner Expr) Expr {
				return ReplaceClauseReferences(inner, mapping)
			})
			return n, true
		}
		return nil, false
	})
}
