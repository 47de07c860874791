package queryir

import (
	"fmt"
)

// ValidationResult contains structural problems found in a query.
type ValidationResult struct {
	// Valid is true when no warnings were produced.
	Valid bool

	// Warnings lists every problem found, in traversal order.
	Warnings []string
}

// Validate checks a select for structural problems the backend would
// reject or misinterpret:
//  1. An empty projection
//  2. A distinct marker anywhere but at the head of the first projected unit
//  3. Logical values left in a projection (they must be arithmetic)
//  4. Aliases outside a subquery projection
//
// Validate is a pure function with no side effects.
func Validate(sel *Select) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validateSelect(sel, false)

	return ValidationResult{
		Valid:    len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

// addWarning appends a warning message.
func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateSelect(sel *Select, subquery bool) {
	if sel == nil {
		v.addWarning("nil select")
		return
	}
	if len(sel.Projection) == 0 {
		v.addWarning("empty projection")
	}
	if len(sel.From) == 0 {
		v.addWarning("select has no from source")
	}

	for i, p := range sel.Projection {
		v.validateProjected(p, i, subquery)
	}

	for _, src := range sel.From {
		if src.Alias == "" {
			v.addWarning("from source without alias")
		}
		if src.SubQuery != nil {
			v.validateSelect(src.SubQuery, true)
		}
		if src.On != nil {
			v.validateExpr(src.On)
		}
	}
	if sel.Where != nil {
		v.validateExpr(sel.Where)
	}
	for _, o := range sel.OrderBy {
		v.validateExpr(o.Expr)
	}
}

// validateProjected checks one projection entry at position i.
func (v *validator) validateProjected(n Node, i int, subquery bool) {
	if holder, ok := n.(*SubTreeHolder); ok {
		for j, c := range holder.Children {
			if _, isDistinct := c.(*Distinct); isDistinct {
				if i != 0 || j != 0 {
					v.addWarning("distinct marker at projection %d.%d - must head the projection", i, j)
				}
				continue
			}
			v.validateProjected(c, i, subquery)
		}
		return
	}

	if _, isDistinct := n.(*Distinct); isDistinct {
		v.addWarning("bare distinct marker at projection %d - must be grouped with the nodes it scopes over", i)
		return
	}

	if alias, ok := n.(*Alias); ok {
		if !subquery {
			v.addWarning("alias %q at projection %d - aliases are only legal in subquery projections", alias.Name, i)
		}
		n = alias.Expr
	}
	if IsBoolean(n) {
		v.addWarning("logical value at projection %d - must be converted to arithmetic", i)
	}
	v.validateExpr(n)
}

// validateExpr walks an expression looking for misplaced markers and
// nested subqueries.
func (v *validator) validateExpr(n Node) {
	if n == nil {
		v.addWarning("nil expression")
		return
	}
	switch x := n.(type) {
	case *Distinct:
		v.addWarning("distinct marker inside an expression")
	case *SubQuery:
		v.validateSelect(x.Select, true)
		return
	}
	for _, c := range Children(n) {
		v.validateExpr(c)
	}
}
