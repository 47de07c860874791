package queryir

import (
	"fmt"
	"strings"

	"github.com/xlab/treeprint"

	"github.com/roach88/querylift/internal/ir"
)

// Format renders n as HQL-like text.
//
// Values reach the text only as literal Constants; everything supplied by
// the caller is a NamedParameter rendered as :name.
func Format(n Node) string {
	var sb strings.Builder
	writeNode(&sb, n)
	return sb.String()
}

// FormatSelect renders a complete query.
func FormatSelect(sel *Select) string {
	var sb strings.Builder
	writeSelect(&sb, sel)
	return sb.String()
}

func writeSelect(sb *strings.Builder, sel *Select) {
	sb.WriteString("select ")
	writeList(sb, sel.Projection)

	for i, src := range sel.From {
		switch {
		case i == 0:
			sb.WriteString(" from ")
		case src.On != nil:
			sb.WriteString(" join ")
		default:
			sb.WriteString(", ")
		}
		if src.SubQuery != nil {
			sb.WriteByte('(')
			writeSelect(sb, src.SubQuery)
			sb.WriteByte(')')
		} else {
			sb.WriteString(src.Entity)
		}
		sb.WriteByte(' ')
		sb.WriteString(src.Alias)
		if src.On != nil && i > 0 {
			sb.WriteString(" on ")
			writeNode(sb, src.On)
		}
	}

	if sel.Where != nil {
		sb.WriteString(" where ")
		writeNode(sb, sel.Where)
	}
	if len(sel.OrderBy) > 0 {
		sb.WriteString(" order by ")
		for i, o := range sel.OrderBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeNode(sb, o.Expr)
			if o.Descending {
				sb.WriteString(" desc")
			}
		}
	}
	if sel.Limit != nil {
		sb.WriteString(" limit ")
		writeNode(sb, sel.Limit)
	}
	if sel.Offset != nil {
		sb.WriteString(" offset ")
		writeNode(sb, sel.Offset)
	}
}

func writeList(sb *strings.Builder, nodes []Node) {
	for i, n := range nodes {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeNode(sb, n)
	}
}

func writeNode(sb *strings.Builder, n Node) {
	switch x := n.(type) {
	case nil:
		sb.WriteString("<nil>")
	case *Ident:
		sb.WriteString(x.Name)
	case *Dot:
		writeNode(sb, x.Left)
		sb.WriteByte('.')
		sb.WriteString(x.Name)
	case *Constant:
		sb.WriteString(ir.Literal(x.Value))
	case *NamedParameter:
		sb.WriteByte(':')
		sb.WriteString(x.Name)
	case *Call:
		sb.WriteString(x.Name)
		sb.WriteByte('(')
		writeList(sb, x.Args)
		sb.WriteByte(')')
	case *Binary:
		writeOperand(sb, x.Left)
		fmt.Fprintf(sb, " %s ", x.Op)
		writeOperand(sb, x.Right)
	case *Not:
		sb.WriteString("not ")
		writeOperand(sb, x.Operand)
	case *IsNull:
		writeOperand(sb, x.Operand)
		sb.WriteString(" is null")
	case *IsNotNull:
		writeOperand(sb, x.Operand)
		sb.WriteString(" is not null")
	case *Case:
		sb.WriteString("case")
		for _, w := range x.Whens {
			sb.WriteString(" when ")
			writeNode(sb, w.Cond)
			sb.WriteString(" then ")
			writeNode(sb, w.Then)
		}
		if x.Else != nil {
			sb.WriteString(" else ")
			writeNode(sb, x.Else)
		}
		sb.WriteString(" end")
	case *Cast:
		sb.WriteString("cast(")
		writeNode(sb, x.Operand)
		fmt.Fprintf(sb, " as %s)", x.Type)
	case *Aggregate:
		sb.WriteString(x.Func)
		sb.WriteByte('(')
		if x.Operand == nil {
			sb.WriteByte('*')
		} else {
			writeNode(sb, x.Operand)
		}
		sb.WriteByte(')')
	case *Alias:
		writeNode(sb, x.Expr)
		sb.WriteString(" as ")
		sb.WriteString(x.Name)
	case *Distinct:
		sb.WriteString("distinct")
	case *SubTreeHolder:
		for i, c := range x.Children {
			if i > 0 {
				if _, prevDistinct := x.Children[i-1].(*Distinct); prevDistinct {
					sb.WriteByte(' ')
				} else {
					sb.WriteString(", ")
				}
			}
			writeNode(sb, c)
		}
	case *SubQuery:
		sb.WriteByte('(')
		writeSelect(sb, x.Select)
		sb.WriteByte(')')
	case *Star:
		sb.WriteByte('*')
	default:
		fmt.Fprintf(sb, "<%T>", n)
	}
}

// writeOperand parenthesizes compound operands so precedence never
// depends on the reader.
func writeOperand(sb *strings.Builder, n Node) {
	switch n.(type) {
	case *Binary, *Not, *IsNull, *IsNotNull:
		sb.WriteByte('(')
		writeNode(sb, n)
		sb.WriteByte(')')
	default:
		writeNode(sb, n)
	}
}

// ParameterNames lists the bind parameters referenced by sel in order of
// first appearance.
func ParameterNames(sel *Select) []string {
	seen := map[string]bool{}
	var names []string
	var visit func(Node)
	visit = func(n Node) {
		switch x := n.(type) {
		case nil:
			return
		case *NamedParameter:
			if !seen[x.Name] {
				seen[x.Name] = true
				names = append(names, x.Name)
			}
		case *SubQuery:
			for _, name := range ParameterNames(x.Select) {
				if !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
			}
		}
		for _, c := range Children(n) {
			visit(c)
		}
	}
	for _, p := range sel.Projection {
		visit(p)
	}
	for _, src := range sel.From {
		if src.SubQuery != nil {
			visit(&SubQuery{Select: src.SubQuery})
		}
		visit(src.On)
	}
	visit(sel.Where)
	for _, o := range sel.OrderBy {
		visit(o.Expr)
	}
	visit(sel.Limit)
	visit(sel.Offset)
	return names
}

// Tree renders n as an indented tree, one node per line.
func Tree(n Node) string {
	return asTree(n, nil).String()
}

func asTree(n Node, root treeprint.Tree) treeprint.Tree {
	txt := describe(n)
	var branch treeprint.Tree
	if root == nil {
		branch = treeprint.NewWithRoot(txt)
	} else {
		branch = root.AddBranch(txt)
	}
	for _, c := range Children(n) {
		asTree(c, branch)
	}
	return branch
}

func describe(n Node) string {
	switch x := n.(type) {
	case *Ident, *Constant, *NamedParameter, *Star, *Distinct, *SubQuery:
		return Format(x)
	case *Dot:
		return "." + x.Name
	case *Call:
		return x.Name + "()"
	case *Binary:
		return string(x.Op)
	case *Not:
		return "not"
	case *IsNull:
		return "is null"
	case *IsNotNull:
		return "is not null"
	case *Case:
		return "case"
	case *Cast:
		return "cast as " + x.Type
	case *Aggregate:
		return x.Func
	case *Alias:
		return "as " + x.Name
	case *SubTreeHolder:
		return "group"
	default:
		return fmt.Sprintf("%T", n)
	}
}
