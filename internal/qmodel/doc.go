// Package qmodel is the expression graph and query model consumed by the
// select-clause translator.
//
// EXPRESSIONS:
//
// Expr is a sealed interface with one variant per node kind (constant,
// member access, call, binary, conditional, new, member-init, block,
// label/return, query-source reference, subquery, aggregate markers,
// distinct, nominated, row value, lambda). Consumers classify and emit
// through exhaustive type switches.
//
// Expressions are immutable. Every node carries a NodeID assigned at
// construction; sets keyed by expression identity use NodeID, never
// structural equality. VisitChildren and Transform rebuild only the spine
// above a changed child, so unchanged subtrees keep their node and id:
//
//	before:  new { A = x.A, B = f(x.B) }      (#7)
//	rewrite: x.A -> row[0]
//	after:   new { A = row[0], B = f(x.B) }   (#31, f(x.B) still shared)
//
// QUERY MODEL:
//
// QueryModel holds the main from clause, body clauses (additional from,
// where, order-by, join), the select clause and result operators. Clauses
// are mutable; the flattener rewrites them in place. QuerySource values
// (from and join clauses) compare by pointer.
//
// Entity tables are modeled as constant source expressions
// (NewEntitySource), so a from clause is always "name in expression".
//
// IDENTITY:
//
// Fingerprint produces an ir.IRValue describing a model's shape. Bind
// parameters contribute their names instead of values, so plans for the
// same query with different arguments share a plan key.
package qmodel
