package qmodel

import (
	"sync/atomic"

	"github.com/roach88/querylift/internal/ir"
)

// NodeID identifies one expression node. Ids are assigned at construction
// and never reused within a process, so two structurally identical subtrees
// at different positions have different ids.
type NodeID uint64

var lastNodeID atomic.Uint64

func nextNodeID() NodeID {
	return NodeID(lastNodeID.Add(1))
}

// NodeKind tags an expression variant.
type NodeKind int

const (
	KindConstant NodeKind = iota + 1
	KindParameter
	KindMember
	KindCall
	KindBinary
	KindUnary
	KindConvert
	KindConditional
	KindNew
	KindMemberInit
	KindNewArray
	KindBlock
	KindLabel
	KindReturn
	KindQuerySourceRef
	KindSubQuery
	KindAggregate
	KindDistinct
	KindNominated
	KindRowValue
	KindLambda
)

var nodeKindNames = [...]string{
	KindConstant:       "constant",
	KindParameter:      "parameter",
	KindMember:         "member",
	KindCall:           "call",
	KindBinary:         "binary",
	KindUnary:          "unary",
	KindConvert:        "convert",
	KindConditional:    "conditional",
	KindNew:            "new",
	KindMemberInit:     "member_init",
	KindNewArray:       "new_array",
	KindBlock:          "block",
	KindLabel:          "label",
	KindReturn:         "return",
	KindQuerySourceRef: "query_source_ref",
	KindSubQuery:       "subquery",
	KindAggregate:      "aggregate",
	KindDistinct:       "distinct",
	KindNominated:      "nominated",
	KindRowValue:       "row_value",
	KindLambda:         "lambda",
}

func (k NodeKind) String() string {
	if k > 0 && int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return "unknown"
}

// Expr is a node of the expression graph.
// Sealed: only types in this package implement it.
type Expr interface {
	ID() NodeID
	Kind() NodeKind
	Type() *Type
	exprNode()
}

type node struct {
	id  NodeID
	typ *Type
}

func newNode(t *Type) node {
	return node{id: nextNodeID(), typ: t}
}

func (n *node) ID() NodeID  { return n.id }
func (n *node) Type() *Type { return n.typ }

// Constant is a literal or captured value.
type Constant struct {
	node
	Value ir.IRValue
}

// Parameter is a lambda parameter.
type Parameter struct {
	node
	Name string
}

// Member reads a property. Object is nil for static members.
type Member struct {
	node
	Object Expr
	Member *MemberInfo
}

// Call invokes a method. Object is nil for static calls.
type Call struct {
	node
	Object Expr
	Method *Method
	Args   []Expr
}

// BinaryOp enumerates binary operators.
type BinaryOp int

const (
	OpEqual BinaryOp = iota + 1
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpAnd
	OpOr
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpCoalesce
)

var binaryOpSymbols = [...]string{
	OpEqual:        "==",
	OpNotEqual:     "!=",
	OpLess:         "<",
	OpLessEqual:    "<=",
	OpGreater:      ">",
	OpGreaterEqual: ">=",
	OpAnd:          "&&",
	OpOr:           "||",
	OpAdd:          "+",
	OpSub:          "-",
	OpMul:          "*",
	OpDiv:          "/",
	OpMod:          "%",
	OpCoalesce:     "??",
}

func (op BinaryOp) String() string {
	if op > 0 && int(op) < len(binaryOpSymbols) {
		return binaryOpSymbols[op]
	}
	return "?"
}

// IsComparison reports whether op yields a boolean from two operands.
func (op BinaryOp) IsComparison() bool {
	return op >= OpEqual && op <= OpGreaterEqual
}

// IsLogical reports whether op combines two booleans.
func (op BinaryOp) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

// Binary is a binary operation.
type Binary struct {
	node
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	OpNot UnaryOp = iota + 1
	OpNegate
)

func (op UnaryOp) String() string {
	switch op {
	case OpNot:
		return "!"
	case OpNegate:
		return "-"
	default:
		return "?"
	}
}

// Unary is a unary operation.
type Unary struct {
	node
	Op      UnaryOp
	Operand Expr
}

// Convert changes the static type of its operand. Dynamic marks a
// change-type conversion (numeric to enum underlying storage and back)
// rather than a plain cast.
type Convert struct {
	node
	Operand Expr
	Dynamic bool
}

// Conditional is test ? IfTrue : IfFalse. A nil IfFalse makes it an
// if-then statement of type Void.
type Conditional struct {
	node
	Test    Expr
	IfTrue  Expr
	IfFalse Expr
}

// New constructs an object. Members names the member each argument
// initializes; it is set for structural shapes and may be nil otherwise.
type New struct {
	node
	Ctor    *Constructor
	Args    []Expr
	Members []string
}

// MemberBinding assigns one member after construction.
type MemberBinding struct {
	Member string
	Value  Expr
}

// MemberInit constructs an object and assigns members.
type MemberInit struct {
	node
	New      *New
	Bindings []MemberBinding
}

// NewArray builds an array from Elements, or an empty array of length
// Bounds when Bounds is set.
type NewArray struct {
	node
	Elements []Expr
	Bounds   Expr
}

// Block evaluates Exprs in order and yields the last value.
type Block struct {
	node
	Exprs []Expr
}

// LabelTarget is a jump destination shared by a Label and its Returns.
type LabelTarget struct {
	Name string
	Type *Type
}

// NewLabelTarget creates a fresh jump destination. Targets compare by
// pointer.
func NewLabelTarget(name string, t *Type) *LabelTarget {
	return &LabelTarget{Name: name, Type: t}
}

// Label marks a jump destination inside a block. Its value is Default
// unless a Return to Target fires first.
type Label struct {
	node
	Target  *LabelTarget
	Default Expr
}

// Return jumps to Target with Value.
type Return struct {
	node
	Target *LabelTarget
	Value  Expr
}

// QuerySourceRef refers to the item of a from or join clause.
type QuerySourceRef struct {
	node
	Source QuerySource
}

// SubQuery embeds a nested query model.
type SubQuery struct {
	node
	Model *QueryModel
}

// AggregateOp enumerates aggregate markers.
type AggregateOp int

const (
	AggCount AggregateOp = iota + 1
	AggSum
	AggAverage
	AggMin
	AggMax
)

func (op AggregateOp) String() string {
	switch op {
	case AggCount:
		return "count"
	case AggSum:
		return "sum"
	case AggAverage:
		return "avg"
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	default:
		return "unknown"
	}
}

// Aggregate is an aggregate marker. Operand is nil for count(*).
type Aggregate struct {
	node
	Op      AggregateOp
	Operand Expr
}

// Distinct marks a selector whose results must be de-duplicated.
type Distinct struct {
	node
	Operand Expr
}

// Nominated wraps an expression already classified as server-translatable
// by an earlier partial pass.
type Nominated struct {
	node
	Operand Expr
}

// RowValue reads slot Index of the fetched row bound to Row.
type RowValue struct {
	node
	Row   *Parameter
	Index int
}

// Lambda is a function of its parameters.
type Lambda struct {
	node
	Params []*Parameter
	Body   Expr
}

func (*Constant) exprNode()       {}
func (*Parameter) exprNode()      {}
func (*Member) exprNode()         {}
func (*Call) exprNode()           {}
func (*Binary) exprNode()         {}
func (*Unary) exprNode()          {}
func (*Convert) exprNode()        {}
func (*Conditional) exprNode()    {}
func (*New) exprNode()            {}
func (*MemberInit) exprNode()     {}
func (*NewArray) exprNode()       {}
func (*Block) exprNode()          {}
func (*Label) exprNode()          {}
func (*Return) exprNode()         {}
func (*QuerySourceRef) exprNode() {}
func (*SubQuery) exprNode()       {}
func (*Aggregate) exprNode()      {}
func (*Distinct) exprNode()       {}
func (*Nominated) exprNode()      {}
func (*RowValue) exprNode()       {}
func (*Lambda) exprNode()         {}

func (*Constant) Kind() NodeKind       { return KindConstant }
func (*Parameter) Kind() NodeKind      { return KindParameter }
func (*Member) Kind() NodeKind         { return KindMember }
func (*Call) Kind() NodeKind           { return KindCall }
func (*Binary) Kind() NodeKind         { return KindBinary }
func (*Unary) Kind() NodeKind          { return KindUnary }
func (*Convert) Kind() NodeKind        { return KindConvert }
func (*Conditional) Kind() NodeKind    { return KindConditional }
func (*New) Kind() NodeKind            { return KindNew }
func (*MemberInit) Kind() NodeKind     { return KindMemberInit }
func (*NewArray) Kind() NodeKind       { return KindNewArray }
func (*Block) Kind() NodeKind          { return KindBlock }
func (*Label) Kind() NodeKind          { return KindLabel }
func (*Return) Kind() NodeKind         { return KindReturn }
func (*QuerySourceRef) Kind() NodeKind { return KindQuerySourceRef }
func (*SubQuery) Kind() NodeKind       { return KindSubQuery }
func (*Aggregate) Kind() NodeKind      { return KindAggregate }
func (*Distinct) Kind() NodeKind       { return KindDistinct }
func (*Nominated) Kind() NodeKind      { return KindNominated }
func (*RowValue) Kind() NodeKind       { return KindRowValue }
func (*Lambda) Kind() NodeKind         { return KindLambda }

// Compile-time interface satisfaction checks.
var (
	_ Expr = (*Constant)(nil)
	_ Expr = (*Parameter)(nil)
	_ Expr = (*Member)(nil)
	_ Expr = (*Call)(nil)
	_ Expr = (*Binary)(nil)
	_ Expr = (*Unary)(nil)
	_ Expr = (*Convert)(nil)
	_ Expr = (*Conditional)(nil)
	_ Expr = (*New)(nil)
	_ Expr = (*MemberInit)(nil)
	_ Expr = (*NewArray)(nil)
	_ Expr = (*Block)(nil)
	_ Expr = (*Label)(nil)
	_ Expr = (*Return)(nil)
	_ Expr = (*QuerySourceRef)(nil)
	_ Expr = (*SubQuery)(nil)
	_ Expr = (*Aggregate)(nil)
	_ Expr = (*Distinct)(nil)
	_ Expr = (*Nominated)(nil)
	_ Expr = (*RowValue)(nil)
	_ Expr = (*Lambda)(nil)
)
