package qmodel

import (
	"fmt"
	"strings"

	"github.com/xlab/treeprint"

	"github.com/roach88/querylift/internal/ir"
)

// NewEntitySource builds the source expression of a from clause that reads
// all rows of entity t.
func NewEntitySource(t *Type) *Constant {
	return NewConstant(ir.IRString(t.Name), ArrayOf(t))
}

// EntitySource reports the entity read by a from-clause source expression.
func EntitySource(e Expr) (*Type, bool) {
	c, ok := e.(*Constant)
	if !ok || c.Type().Kind != TypeArray || c.Type().Elem == nil || c.Type().Elem.Kind != TypeEntity {
		return nil, false
	}
	return c.Type().Elem, true
}

// Format renders e as a compact single-line string for logs and tests.
func Format(e Expr) string {
	var sb strings.Builder
	writeExpr(&sb, e)
	return sb.String()
}

func writeExpr(sb *strings.Builder, e Expr) {
	switch n := e.(type) {
	case nil:
		sb.WriteString("<nil>")
	case *Constant:
		if t, ok := EntitySource(n); ok {
			sb.WriteString(t.Name)
			return
		}
		sb.WriteString(ir.Literal(n.Value))
	case *Parameter:
		sb.WriteString(n.Name)
	case *Member:
		if n.Object == nil {
			sb.WriteString(n.Member.DeclaringType.Name)
		} else {
			writeExpr(sb, n.Object)
		}
		sb.WriteByte('.')
		sb.WriteString(n.Member.Name)
	case *Call:
		if n.Object != nil {
			writeExpr(sb, n.Object)
			sb.WriteByte('.')
		} else if n.Method.DeclaringType != nil && n.Method.DeclaringType.Name != "" {
			sb.WriteString(n.Method.DeclaringType.Name)
			sb.WriteByte('.')
		}
		sb.WriteString(n.Method.Name)
		writeArgs(sb, n.Args)
	case *Binary:
		sb.WriteByte('(')
		writeExpr(sb, n.Left)
		fmt.Fprintf(sb, " %s ", n.Op)
		writeExpr(sb, n.Right)
		sb.WriteByte(')')
	case *Unary:
		sb.WriteString(n.Op.String())
		writeExpr(sb, n.Operand)
	case *Convert:
		if n.Dynamic {
			sb.WriteString("changetype(")
			writeExpr(sb, n.Operand)
			fmt.Fprintf(sb, ", %s)", n.Type())
			return
		}
		fmt.Fprintf(sb, "(%s)", n.Type())
		writeExpr(sb, n.Operand)
	case *Conditional:
		if n.IfFalse == nil {
			sb.WriteString("if ")
			writeExpr(sb, n.Test)
			sb.WriteString(" then ")
			writeExpr(sb, n.IfTrue)
			return
		}
		sb.WriteByte('(')
		writeExpr(sb, n.Test)
		sb.WriteString(" ? ")
		writeExpr(sb, n.IfTrue)
		sb.WriteString(" : ")
		writeExpr(sb, n.IfFalse)
		sb.WriteByte(')')
	case *New:
		writeNew(sb, n)
	case *MemberInit:
		writeNew(sb, n.New)
		sb.WriteString(" { ")
		for i, b := range n.Bindings {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(b.Member)
			sb.WriteString(" = ")
			writeExpr(sb, b.Value)
		}
		sb.WriteString(" }")
	case *NewArray:
		if n.Bounds != nil {
			fmt.Fprintf(sb, "new %s[", n.Type().Elem)
			writeExpr(sb, n.Bounds)
			sb.WriteByte(']')
			return
		}
		fmt.Fprintf(sb, "new %s[] { ", n.Type().Elem)
		writeList(sb, n.Elements)
		sb.WriteString(" }")
	case *Block:
		sb.WriteString("{ ")
		for i, x := range n.Exprs {
			if i > 0 {
				sb.WriteString("; ")
			}
			writeExpr(sb, x)
		}
		sb.WriteString(" }")
	case *Label:
		fmt.Fprintf(sb, "%s: ", n.Target.Name)
		writeExpr(sb, n.Default)
	case *Return:
		fmt.Fprintf(sb, "return %s ", n.Target.Name)
		writeExpr(sb, n.Value)
	case *QuerySourceRef:
		sb.WriteString(n.Source.ItemName())
	case *SubQuery:
		sb.WriteByte('(')
		sb.WriteString(FormatModel(n.Model))
		sb.WriteByte(')')
	case *Aggregate:
		sb.WriteString(n.Op.String())
		sb.WriteByte('(')
		if n.Operand != nil {
			writeExpr(sb, n.Operand)
		}
		sb.WriteByte(')')
	case *Distinct:
		sb.WriteString("distinct(")
		writeExpr(sb, n.Operand)
		sb.WriteByte(')')
	case *Nominated:
		sb.WriteString("nominated(")
		writeExpr(sb, n.Operand)
		sb.WriteByte(')')
	case *RowValue:
		fmt.Fprintf(sb, "%s[%d]", n.Row.Name, n.Index)
	case *Lambda:
		for i, p := range n.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.Name)
		}
		sb.WriteString(" => ")
		writeExpr(sb, n.Body)
	default:
		fmt.Fprintf(sb, "<%T>", e)
	}
}

func writeNew(sb *strings.Builder, n *New) {
	if n.Type().IsAnonymous() && len(n.Members) == len(n.Args) {
		sb.WriteString("new { ")
		for i, a := range n.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(n.Members[i])
			sb.WriteString(" = ")
			writeExpr(sb, a)
		}
		sb.WriteString(" }")
		return
	}
	sb.WriteString("new ")
	sb.WriteString(n.Type().Name)
	writeArgs(sb, n.Args)
}

func writeArgs(sb *strings.Builder, args []Expr) {
	sb.WriteByte('(')
	writeList(sb, args)
	sb.WriteByte(')')
}

func writeList(sb *strings.Builder, list []Expr) {
	for i, a := range list {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeExpr(sb, a)
	}
}

// FormatModel renders a query model in comprehension syntax, for example
// "from x in Person where (x.Age > 3) select x.Name => take(10)".
func FormatModel(m *QueryModel) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "from %s in ", m.MainFrom.Name)
	writeExpr(&sb, m.MainFrom.FromExpression)
	for _, c := range m.Body {
		sb.WriteByte(' ')
		switch c := c.(type) {
		case *FromClause:
			fmt.Fprintf(&sb, "from %s in ", c.Name)
			writeExpr(&sb, c.FromExpression)
		case *WhereClause:
			sb.WriteString("where ")
			writeExpr(&sb, c.Predicate)
		case *OrderByClause:
			sb.WriteString("orderby ")
			for i, o := range c.Orderings {
				if i > 0 {
					sb.WriteString(", ")
				}
				writeExpr(&sb, o.Expr)
				if o.Descending {
					sb.WriteString(" desc")
				}
			}
		case *JoinClause:
			fmt.Fprintf(&sb, "join %s in ", c.Name)
			writeExpr(&sb, c.Inner)
			sb.WriteString(" on ")
			writeExpr(&sb, c.OuterKey)
			sb.WriteString(" equals ")
			writeExpr(&sb, c.InnerKey)
		}
	}
	sb.WriteString(" select ")
	writeExpr(&sb, m.Select.Selector)
	if len(m.ResultOperators) > 0 {
		sb.WriteString(" =>")
		for _, op := range m.ResultOperators {
			sb.WriteByte(' ')
			sb.WriteString(formatOperator(op))
		}
	}
	return sb.String()
}

func formatOperator(op ResultOperator) string {
	switch o := op.(type) {
	case *TakeOperator:
		return fmt.Sprintf("take(%s)", Format(o.Count))
	case *SkipOperator:
		return fmt.Sprintf("skip(%s)", Format(o.Count))
	case *LockOperator:
		return fmt.Sprintf("lock(%s)", o.Mode)
	case *FetchOperator:
		return fmt.Sprintf("%s(%s)", o.Kind(), o.Member.Name)
	default:
		return string(op.Kind())
	}
}

// Tree renders e as an indented tree, one node per line.
func Tree(e Expr) string {
	return asTree(e, nil).String()
}

func asTree(e Expr, root treeprint.Tree) treeprint.Tree {
	txt := describe(e)
	var branch treeprint.Tree
	if root == nil {
		branch = treeprint.NewWithRoot(txt)
	} else {
		branch = root.AddBranch(txt)
	}
	for _, c := range Children(e) {
		asTree(c, branch)
	}
	return branch
}

func describe(e Expr) string {
	var detail string
	switch n := e.(type) {
	case *Constant, *Parameter, *QuerySourceRef, *RowValue, *SubQuery:
		detail = Format(n)
	case *Member:
		detail = n.Member.Name
	case *Call:
		detail = n.Method.Name
	case *Binary:
		detail = n.Op.String()
	case *Unary:
		detail = n.Op.String()
	case *New:
		detail = n.Type().Name
	case *Aggregate:
		detail = n.Op.String()
	case *Label:
		detail = n.Target.Name
	case *Return:
		detail = n.Target.Name
	}
	if detail == "" {
		return fmt.Sprintf("%s : %s", e.Kind(), e.Type())
	}
	return fmt.Sprintf("%s %s : %s", e.Kind(), detail, e.Type())
}
