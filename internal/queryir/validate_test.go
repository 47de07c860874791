package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querylift/internal/ir"
)

func entityFrom(entity, alias string) []FromSource {
	return []FromSource{{Entity: entity, Alias: alias}}
}

func TestValidate_Valid(t *testing.T) {
	sel := &Select{
		Projection: []Node{prop("p", "Name"), ToArithmetic(&Binary{Op: OpGt, Left: prop("p", "Age"), Right: &NamedParameter{Name: "p0"}})},
		From:       entityFrom("Person", "p"),
	}

	result := Validate(sel)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Warnings)
}

func TestValidate_DistinctHead(t *testing.T) {
	sel := &Select{
		Projection: []Node{&SubTreeHolder{Children: []Node{&Distinct{}, prop("p", "Name"), prop("p", "Age")}}},
		From:       entityFrom("Person", "p"),
	}
	assert.True(t, Validate(sel).Valid)
}

func TestValidate_DistinctNotHead(t *testing.T) {
	sel := &Select{
		Projection: []Node{&SubTreeHolder{Children: []Node{prop("p", "Name"), &Distinct{}}}},
		From:       entityFrom("Person", "p"),
	}

	result := Validate(sel)
	assert.False(t, result.Valid)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "must head the projection")
}

func TestValidate_BareDistinct(t *testing.T) {
	sel := &Select{
		Projection: []Node{&Distinct{}, prop("p", "Name")},
		From:       entityFrom("Person", "p"),
	}
	result := Validate(sel)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "bare distinct marker")
}

func TestValidate_BooleanInProjection(t *testing.T) {
	sel := &Select{
		Projection: []Node{&IsNull{Operand: prop("p", "Name")}},
		From:       entityFrom("Person", "p"),
	}
	result := Validate(sel)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "logical value at projection 0")
}

func TestValidate_AliasOnlyInSubquery(t *testing.T) {
	inner := &Select{
		Projection: []Node{&Alias{Expr: prop("x", "A"), Name: "A"}},
		From:       entityFrom("Thing", "x"),
	}
	outer := &Select{
		Projection: []Node{prop("s", "A")},
		From:       []FromSource{{SubQuery: inner, Alias: "s"}},
	}
	assert.True(t, Validate(outer).Valid)

	top := &Select{
		Projection: []Node{&Alias{Expr: prop("x", "A"), Name: "A"}},
		From:       entityFrom("Thing", "x"),
	}
	result := Validate(top)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], `alias "A"`)
}

func TestValidate_EmptyProjection(t *testing.T) {
	result := Validate(&Select{From: entityFrom("Person", "p")})
	assert.False(t, result.Valid)
	assert.Contains(t, result.Warnings, "empty projection")
}

func TestValidate_NestedSubqueryWhere(t *testing.T) {
	inner := &Select{
		Projection: []Node{&Aggregate{Func: "count"}},
		From:       entityFrom("Order", "o"),
		Where:      &Binary{Op: OpEq, Left: prop("o", "Owner"), Right: &Ident{Name: "p"}},
	}
	sel := &Select{
		Projection: []Node{&SubQuery{Select: inner}},
		From:       entityFrom("Person", "p"),
		Where:      &Binary{Op: OpGt, Left: prop("p", "Age"), Right: &Constant{Value: ir.IRInt(1)}},
	}
	assert.True(t, Validate(sel).Valid)
}

func TestValidate_Nil(t *testing.T) {
	result := Validate(nil)
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"nil select"}, result.Warnings)
}
