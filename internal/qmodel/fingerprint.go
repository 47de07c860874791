package qmodel

import "github.com/roach88/querylift/internal/ir"

// Fingerprint describes the shape of m as an IR value suitable for
// canonical hashing. Constants whose NodeID appears in params contribute
// the bind-parameter name instead of their value, so two models that
// differ only in parameter values share a fingerprint.
func Fingerprint(m *QueryModel, params map[NodeID]string) ir.IRValue {
	f := fingerprinter{params: params}
	return f.model(m)
}

type fingerprinter struct {
	params map[NodeID]string
}

func (f fingerprinter) model(m *QueryModel) ir.IRValue {
	body := make(ir.IRArray, 0, len(m.Body))
	for _, c := range m.Body {
		body = append(body, f.clause(c))
	}
	ops := make(ir.IRArray, 0, len(m.ResultOperators))
	for _, op := range m.ResultOperators {
		ops = append(ops, f.operator(op))
	}
	return ir.IRObject{
		"from":   f.from(m.MainFrom),
		"body":   body,
		"select": f.expr(m.Select.Selector),
		"ops":    ops,
	}
}

func (f fingerprinter) from(c *FromClause) ir.IRValue {
	return ir.IRObject{
		"k":    ir.IRString("from"),
		"item": ir.IRString(c.Name),
		"type": ir.IRString(c.Type.String()),
		"src":  f.expr(c.FromExpression),
	}
}

func (f fingerprinter) clause(c BodyClause) ir.IRValue {
	switch c := c.(type) {
	case *FromClause:
		return f.from(c)
	case *WhereClause:
		return ir.IRObject{"k": ir.IRString("where"), "p": f.expr(c.Predicate)}
	case *OrderByClause:
		keys := make(ir.IRArray, 0, len(c.Orderings))
		for _, o := range c.Orderings {
			keys = append(keys, ir.IRObject{"e": f.expr(o.Expr), "desc": ir.IRBool(o.Descending)})
		}
		return ir.IRObject{"k": ir.IRString("orderby"), "keys": keys}
	case *JoinClause:
		return ir.IRObject{
			"k":     ir.IRString("join"),
			"item":  ir.IRString(c.Name),
			"type":  ir.IRString(c.Type.String()),
			"inner": f.expr(c.Inner),
			"outer": f.expr(c.OuterKey),
			"ikey":  f.expr(c.InnerKey),
		}
	default:
		return ir.IRNull{}
	}
}

func (f fingerprinter) operator(op ResultOperator) ir.IRValue {
	out := ir.IRObject{"k": ir.IRString(op.Kind())}
	switch o := op.(type) {
	case *TakeOperator:
		out["n"] = f.expr(o.Count)
	case *SkipOperator:
		out["n"] = f.expr(o.Count)
	case *LockOperator:
		out["mode"] = ir.IRString(o.Mode)
		if o.Source != nil {
			out["src"] = f.expr(o.Source)
		}
	case *FetchOperator:
		out["member"] = ir.IRString(o.Member.Key())
	case *FirstOperator:
		out["or_default"] = ir.IRBool(o.OrDefault)
	}
	return out
}

func (f fingerprinter) expr(e Expr) ir.IRValue {
	if e == nil {
		return ir.IRNull{}
	}
	out := ir.IRObject{
		"k": ir.IRString(e.Kind().String()),
		"t": ir.IRString(e.Type().String()),
	}
	switch n := e.(type) {
	case *Constant:
		if name, ok := f.params[n.ID()]; ok {
			out["p"] = ir.IRString(name)
		} else {
			out["v"] = n.Value
		}
	case *Parameter:
		out["n"] = ir.IRString(n.Name)
	case *Member:
		out["n"] = ir.IRString(n.Member.Key())
	case *Call:
		out["n"] = ir.IRString(n.Method.Key())
		out["static"] = ir.IRBool(n.Object == nil)
	case *Binary:
		out["op"] = ir.IRString(n.Op.String())
	case *Unary:
		out["op"] = ir.IRString(n.Op.String())
	case *Convert:
		out["dyn"] = ir.IRBool(n.Dynamic)
	case *New:
		members := make(ir.IRArray, len(n.Members))
		for i, m := range n.Members {
			members[i] = ir.IRString(m)
		}
		out["members"] = members
	case *MemberInit:
		names := make(ir.IRArray, len(n.Bindings))
		for i, b := range n.Bindings {
			names[i] = ir.IRString(b.Member)
		}
		out["bindings"] = names
	case *Label:
		out["n"] = ir.IRString(n.Target.Name)
	case *Return:
		out["n"] = ir.IRString(n.Target.Name)
	case *QuerySourceRef:
		out["n"] = ir.IRString(n.Source.ItemName())
	case *SubQuery:
		out["m"] = f.model(n.Model)
	case *Aggregate:
		out["op"] = ir.IRString(n.Op.String())
	case *RowValue:
		out["i"] = ir.IRInt(n.Index)
	case *Lambda:
		params := make(ir.IRArray, len(n.Params))
		for i, p := range n.Params {
			params[i] = ir.IRString(p.Name)
		}
		out["params"] = params
	}
	children := Children(e)
	if len(children) > 0 {
		c := make(ir.IRArray, len(children))
		for i, child := range children {
			c[i] = f.expr(child)
		}
		out["c"] = c
	}
	return out
}
