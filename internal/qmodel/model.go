package qmodel

// QuerySource is a clause that introduces an item other clauses can refer
// to. Sources compare by pointer identity.
type QuerySource interface {
	ItemName() string
	ItemType() *Type
	querySource()
}

// BodyClause is a clause between the main from clause and the select.
type BodyClause interface {
	TransformExpressions(fn func(Expr) Expr)
	bodyClause()
}

// FromClause introduces an item from FromExpression. The main from clause
// of a model and its additional from clauses share this type.
type FromClause struct {
	Name           string
	Type           *Type
	FromExpression Expr
}

// NewFromClause builds a from clause.
func NewFromClause(name string, t *Type, from Expr) *FromClause {
	return &FromClause{Name: name, Type: t, FromExpression: from}
}

func (c *FromClause) ItemName() string { return c.Name }
func (c *FromClause) ItemType() *Type  { return c.Type }

// TransformExpressions rewrites the source expression.
func (c *FromClause) TransformExpressions(fn func(Expr) Expr) {
	c.FromExpression = fn(c.FromExpression)
}

// CopyFromClauseData takes over the item name, item type and source
// expression of src.
func (c *FromClause) CopyFromClauseData(src *FromClause) {
	c.Name = src.Name
	c.Type = src.Type
	c.FromExpression = src.FromExpression
}

// WhereClause filters items.
type WhereClause struct {
	Predicate Expr
}

func (c *WhereClause) TransformExpressions(fn func(Expr) Expr) {
	c.Predicate = fn(c.Predicate)
}

// Ordering is one key of an order-by clause.
type Ordering struct {
	Expr       Expr
	Descending bool
}

// OrderByClause sorts items.
type OrderByClause struct {
	Orderings []Ordering
}

func (c *OrderByClause) TransformExpressions(fn func(Expr) Expr) {
	for i := range c.Orderings {
		c.Orderings[i].Expr = fn(c.Orderings[i].Expr)
	}
}

// JoinClause is an inner join on key equality.
type JoinClause struct {
	Name     string
	Type     *Type
	Inner    Expr
	OuterKey Expr
	InnerKey Expr
}

func (c *JoinClause) ItemName() string { return c.Name }
func (c *JoinClause) ItemType() *Type  { return c.Type }

func (c *JoinClause) TransformExpressions(fn func(Expr) Expr) {
	c.Inner = fn(c.Inner)
	c.OuterKey = fn(c.OuterKey)
	c.InnerKey = fn(c.InnerKey)
}

func (*FromClause) querySource() {}
func (*JoinClause) querySource() {}

func (*FromClause) bodyClause()    {}
func (*WhereClause) bodyClause()   {}
func (*OrderByClause) bodyClause() {}
func (*JoinClause) bodyClause()    {}

// SelectClause projects each item.
type SelectClause struct {
	Selector Expr
}

// QueryModel is a parsed query: from, body, select and result operators.
type QueryModel struct {
	MainFrom        *FromClause
	Body            []BodyClause
	Select          *SelectClause
	ResultOperators []ResultOperator
}

// NewQueryModel builds a model with no body clauses or result operators.
func NewQueryModel(from *FromClause, selector Expr) *QueryModel {
	return &QueryModel{MainFrom: from, Select: &SelectClause{Selector: selector}}
}

// TransformExpressions applies fn to every expression of every clause.
func (m *QueryModel) TransformExpressions(fn func(Expr) Expr) {
	m.MainFrom.TransformExpressions(fn)
	for _, c := range m.Body {
		c.TransformExpressions(fn)
	}
	m.Select.Selector = fn(m.Select.Selector)
	for _, op := range m.ResultOperators {
		op.TransformExpressions(fn)
	}
}

// InsertBodyClause inserts c at index.
func (m *QueryModel) InsertBodyClause(index int, c BodyClause) {
	m.Body = append(m.Body, nil)
	copy(m.Body[index+1:], m.Body[index:])
	m.Body[index] = c
}

// InsertResultOperator inserts op at index.
func (m *QueryModel) InsertResultOperator(index int, op ResultOperator) {
	m.ResultOperators = append(m.ResultOperators, nil)
	copy(m.ResultOperators[index+1:], m.ResultOperators[index:])
	m.ResultOperators[index] = op
}

// HasOrdering reports whether any body clause orders items.
func (m *QueryModel) HasOrdering() bool {
	for _, c := range m.Body {
		if _, ok := c.(*OrderByClause); ok {
			return true
		}
	}
	return false
}

// ResultType is the static type of the model's result: a scalar for
// count and first, otherwise a sequence of the selector type.
func (m *QueryModel) ResultType() *Type {
	sel := m.Select.Selector.Type()
	for i := len(m.ResultOperators) - 1; i >= 0; i-- {
		switch m.ResultOperators[i].Kind() {
		case OpKindCount:
			return Int
		case OpKindAny:
			return Bool
		case OpKindFirst:
			return sel
		}
	}
	return ArrayOf(sel)
}
