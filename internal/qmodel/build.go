package qmodel

import (
	"fmt"

	"github.com/roach88/querylift/internal/ir"
)

// NewConstant builds a constant of type t.
func NewConstant(v ir.IRValue, t *Type) *Constant {
	return &Constant{node: newNode(t), Value: v}
}

// ConstantOf builds a constant from a plain Go value, inferring its type.
// It panics on values FromGo rejects; use NewConstant for checked input.
func ConstantOf(v any) *Constant {
	val, err := ir.FromGo(v)
	if err != nil {
		panic(fmt.Sprintf("qmodel.ConstantOf: %v", err))
	}
	return NewConstant(val, typeOfValue(val))
}

// Null builds a null constant of type t.
func Null(t *Type) *Constant {
	return NewConstant(ir.IRNull{}, t)
}

func typeOfValue(v ir.IRValue) *Type {
	switch v.(type) {
	case ir.IRString:
		return String
	case ir.IRInt:
		return Int
	case ir.IRFloat:
		return Float
	case ir.IRBool:
		return Bool
	default:
		return Object
	}
}

// NewParameter declares a lambda parameter.
func NewParameter(name string, t *Type) *Parameter {
	return &Parameter{node: newNode(t), Name: name}
}

// NewMember reads member m of obj (nil obj for a static member).
func NewMember(obj Expr, m *MemberInfo) *Member {
	return &Member{node: newNode(m.Type), Object: obj, Member: m}
}

// NewCall invokes m on obj (nil obj for a static call).
func NewCall(obj Expr, m *Method, args ...Expr) *Call {
	return &Call{node: newNode(m.Result), Object: obj, Method: m, Args: args}
}

// NewBinary builds a binary operation. Comparisons and logical operators
// are boolean; arithmetic takes the left operand's type; coalesce takes the
// right operand's type.
func NewBinary(op BinaryOp, left, right Expr) *Binary {
	var t *Type
	switch {
	case op.IsComparison(), op.IsLogical():
		t = Bool
	case op == OpCoalesce:
		t = right.Type()
	default:
		t = left.Type()
	}
	return &Binary{node: newNode(t), Op: op, Left: left, Right: right}
}

// Equal builds left == right.
func Equal(left, right Expr) *Binary {
	return NewBinary(OpEqual, left, right)
}

// NewUnary builds a unary operation.
func NewUnary(op UnaryOp, operand Expr) *Unary {
	t := operand.Type()
	if op == OpNot {
		t = Bool
	}
	return &Unary{node: newNode(t), Op: op, Operand: operand}
}

// NewConvert casts operand to t.
func NewConvert(operand Expr, t *Type) *Convert {
	return &Convert{node: newNode(t), Operand: operand}
}

// ChangeType converts operand to t with a dynamic change-type conversion.
func ChangeType(operand Expr, t *Type) *Convert {
	return &Convert{node: newNode(t), Operand: operand, Dynamic: true}
}

// NewConditional builds test ? ifTrue : ifFalse.
func NewConditional(test, ifTrue, ifFalse Expr) *Conditional {
	return &Conditional{node: newNode(ifTrue.Type()), Test: test, IfTrue: ifTrue, IfFalse: ifFalse}
}

// IfThen builds an if-then statement.
func IfThen(test, then Expr) *Conditional {
	return &Conditional{node: newNode(Void), Test: test, IfTrue: then}
}

// NewObject invokes ctor. members may be nil.
func NewObject(ctor *Constructor, args []Expr, members []string) *New {
	return &New{node: newNode(ctor.Type), Ctor: ctor, Args: args, Members: members}
}

// NewMemberInit constructs n and applies bindings.
func NewMemberInit(n *New, bindings ...MemberBinding) *MemberInit {
	return &MemberInit{node: newNode(n.Type()), New: n, Bindings: bindings}
}

// NewArrayInit builds an array of elem from elements.
func NewArrayInit(elem *Type, elements ...Expr) *NewArray {
	return &NewArray{node: newNode(ArrayOf(elem)), Elements: elements}
}

// NewArrayBounds builds an empty array of elem with length size.
func NewArrayBounds(elem *Type, size Expr) *NewArray {
	return &NewArray{node: newNode(ArrayOf(elem)), Bounds: size}
}

// NewBlock builds a block whose type is that of its last expression.
func NewBlock(exprs ...Expr) *Block {
	t := Void
	if len(exprs) > 0 {
		t = exprs[len(exprs)-1].Type()
	}
	return &Block{node: newNode(t), Exprs: exprs}
}

// NewLabel marks target with a fall-through value.
func NewLabel(target *LabelTarget, def Expr) *Label {
	return &Label{node: newNode(target.Type), Target: target, Default: def}
}

// NewReturn jumps to target with value.
func NewReturn(target *LabelTarget, value Expr) *Return {
	return &Return{node: newNode(Void), Target: target, Value: value}
}

// NewQuerySourceRef refers to the item of src.
func NewQuerySourceRef(src QuerySource) *QuerySourceRef {
	return &QuerySourceRef{node: newNode(src.ItemType()), Source: src}
}

// NewSubQuery embeds m. Its type is the model's result type.
func NewSubQuery(m *QueryModel) *SubQuery {
	return &SubQuery{node: newNode(m.ResultType()), Model: m}
}

// NewAggregate builds an aggregate marker. For count, operand may be nil
// and the type is always Int.
func NewAggregate(op AggregateOp, operand Expr) *Aggregate {
	var t *Type
	switch {
	case op == AggCount:
		t = Int
	case op == AggAverage:
		t = Float
	default:
		t = operand.Type()
	}
	return &Aggregate{node: newNode(t), Op: op, Operand: operand}
}

// NewDistinct marks operand as de-duplicated.
func NewDistinct(operand Expr) *Distinct {
	return &Distinct{node: newNode(operand.Type()), Operand: operand}
}

// NewNominated wraps an already-translated expression.
func NewNominated(operand Expr) *Nominated {
	return &Nominated{node: newNode(operand.Type()), Operand: operand}
}

// NewRowValue reads slot index of row as an untyped value.
func NewRowValue(row *Parameter, index int) *RowValue {
	return &RowValue{node: newNode(Object), Row: row, Index: index}
}

// NewLambda builds a function of params.
func NewLambda(body Expr, params ...*Parameter) *Lambda {
	return &Lambda{node: newNode(body.Type()), Params: params, Body: body}
}

// RowType is the static type of a fetched row.
var RowType = ArrayOf(Object)

// NewRowParameter declares the conventional fetched-row parameter.
func NewRowParameter() *Parameter {
	return NewParameter("row", RowType)
}
