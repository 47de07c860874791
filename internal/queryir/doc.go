// Package queryir provides the target query intermediate representation
// (IR) produced by the select-clause translator.
//
// ARCHITECTURE:
//
// The IR sits between the expression graph and the backend:
//
//	[qmodel expression] → [hqlgen emitter] → [queryir Node] → [backend]
//	                                                        → Format (HQL text)
//
// The translator decides which expression subtrees become IR nodes and in
// what order; this package only models and renders them.
//
// SEALED INTERFACES:
//
// Node is a sealed interface using the marker method pattern. Only types in
// this package implement it, so renderers can switch exhaustively:
//
//	switch n := node.(type) {
//	case *Dot:
//	    // property path
//	case *Call:
//	    // function call
//	default:
//	    // every remaining variant
//	}
//
// PROJECTIONS:
//
// Select.Projection is ordered: projection entry i is row slot i of every
// fetched row. A distinct projection is one SubTreeHolder whose first child
// is the Distinct marker:
//
//	[SubTreeHolder{Distinct, a.Name, a.Age}]  →  select distinct a.Name, a.Age
//
// Backends do not agree on how logical values come back in a result row,
// so projected logical nodes are rewritten with ToArithmetic:
//
//	a.Age > 3  →  case when a.Age > 3 then 1 else 0 end
//
// VALUES:
//
// Literals use ir.IRValue. Caller-supplied values are NamedParameters and
// are never interpolated into the rendered text.
package queryir
