package queryir

import (
	"github.com/roach88/querylift/internal/ir"
)

// Node is a target IR expression.
// Sealed interface - only types in this package implement it.
type Node interface {
	irNode()
}

// Ident is a bare identifier, typically a from-clause alias.
type Ident struct {
	Name string
}

// Dot is a property path step: Left.Name.
type Dot struct {
	Left Node
	Name string
}

// Constant is a literal value inlined into the query text.
type Constant struct {
	Value ir.IRValue
}

// NamedParameter is a bind parameter (:name). Values are supplied at
// execution time and never interpolated.
type NamedParameter struct {
	Name string
}

// Call is a function call: Name(Args...).
type Call struct {
	Name string
	Args []Node
}

// BinaryOp is a target IR binary operator.
type BinaryOp string

const (
	OpEq   BinaryOp = "="
	OpNe   BinaryOp = "<>"
	OpLt   BinaryOp = "<"
	OpLe   BinaryOp = "<="
	OpGt   BinaryOp = ">"
	OpGe   BinaryOp = ">="
	OpAnd  BinaryOp = "and"
	OpOr   BinaryOp = "or"
	OpLike BinaryOp = "like"
	OpAdd  BinaryOp = "+"
	OpSub  BinaryOp = "-"
	OpMul  BinaryOp = "*"
	OpDiv  BinaryOp = "/"
	OpMod  BinaryOp = "%"
)

// IsBoolean reports whether op produces a logical value.
func (op BinaryOp) IsBoolean() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpAnd, OpOr, OpLike:
		return true
	default:
		return false
	}
}

// Binary is a binary operation.
type Binary struct {
	Op    BinaryOp
	Left  Node
	Right Node
}

// Not negates a logical value.
type Not struct {
	Operand Node
}

// IsNull tests for null.
type IsNull struct {
	Operand Node
}

// IsNotNull tests for non-null.
type IsNotNull struct {
	Operand Node
}

// When is one branch of a Case.
type When struct {
	Cond Node
	Then Node
}

// Case is a searched case expression. Else may be nil.
type Case struct {
	Whens []When
	Else  Node
}

// Cast converts Operand to a named IR type.
type Cast struct {
	Operand Node
	Type    string
}

// Aggregate applies an aggregate function. A nil Operand means (*).
type Aggregate struct {
	Func    string
	Operand Node
}

// Alias names a projected value (expr as name). Only legal in subquery
// projections.
type Alias struct {
	Expr Node
	Name string
}

// Distinct is the distinct marker. It must head a SubTreeHolder.
type Distinct struct{}

// SubTreeHolder groups nodes that render as one unit, such as a distinct
// marker followed by the projected expressions it scopes over.
type SubTreeHolder struct {
	Children []Node
}

// SubQuery embeds a nested select.
type SubQuery struct {
	Select *Select
}

// Star is the * projection.
type Star struct{}

func (*Ident) irNode()          {}
func (*Dot) irNode()            {}
func (*Constant) irNode()       {}
func (*NamedParameter) irNode() {}
func (*Call) irNode()           {}
func (*Binary) irNode()         {}
func (*Not) irNode()            {}
func (*IsNull) irNode()         {}
func (*IsNotNull) irNode()      {}
func (*Case) irNode()           {}
func (*Cast) irNode()           {}
func (*Aggregate) irNode()      {}
func (*Alias) irNode()          {}
func (*Distinct) irNode()       {}
func (*SubTreeHolder) irNode()  {}
func (*SubQuery) irNode()       {}
func (*Star) irNode()           {}

// FromSource is one entry of a from list: an entity or a subquery, with an
// alias. A source with On set is an inner join to the sources before it.
type FromSource struct {
	Entity   string
	SubQuery *Select
	Alias    string
	On       Node
}

// OrderItem is one order-by key.
type OrderItem struct {
	Expr       Node
	Descending bool
}

// Select is a complete target IR query.
type Select struct {
	Projection []Node
	From       []FromSource
	Where      Node
	OrderBy    []OrderItem
	Limit      Node
	Offset     Node
}

// Children returns the direct operands of n. Subquery selects are not
// children.
func Children(n Node) []Node {
	switch x := n.(type) {
	case *Dot:
		return []Node{x.Left}
	case *Call:
		return x.Args
	case *Binary:
		return []Node{x.Left, x.Right}
	case *Not:
		return []Node{x.Operand}
	case *IsNull:
		return []Node{x.Operand}
	case *IsNotNull:
		return []Node{x.Operand}
	case *Case:
		out := make([]Node, 0, 2*len(x.Whens)+1)
		for _, w := range x.Whens {
			out = append(out, w.Cond, w.Then)
		}
		if x.Else != nil {
			out = append(out, x.Else)
		}
		return out
	case *Cast:
		return []Node{x.Operand}
	case *Aggregate:
		if x.Operand == nil {
			return nil
		}
		return []Node{x.Operand}
	case *Alias:
		return []Node{x.Expr}
	case *SubTreeHolder:
		return x.Children
	default:
		return nil
	}
}

// IsBoolean reports whether n evaluates to a logical value.
func IsBoolean(n Node) bool {
	switch x := n.(type) {
	case *Binary:
		return x.Op.IsBoolean()
	case *Not, *IsNull, *IsNotNull:
		return true
	default:
		return false
	}
}

// ToArithmetic rewrites a logical node to its numeric encoding
// (case when n then 1 else 0 end). Other nodes are returned unchanged.
func ToArithmetic(n Node) Node {
	if !IsBoolean(n) {
		return n
	}
	return &Case{
		Whens: []When{{Cond: n, Then: &Constant{Value: ir.IRInt(1)}}},
		Else:  &Constant{Value: ir.IRInt(0)},
	}
}
