package qmodel

// OperatorKind names a result operator. Kinds are stable strings so they
// can be listed in configuration.
type OperatorKind string

const (
	OpKindLock                OperatorKind = "lock"
	OpKindFetchLazyProperties OperatorKind = "fetch_lazy_properties"
	OpKindFetchOne            OperatorKind = "fetch_one"
	OpKindFetchMany           OperatorKind = "fetch_many"
	OpKindAsQueryable         OperatorKind = "as_queryable"
	OpKindDistinct            OperatorKind = "distinct"
	OpKindTake                OperatorKind = "take"
	OpKindSkip                OperatorKind = "skip"
	OpKindCount               OperatorKind = "count"
	OpKindFirst               OperatorKind = "first"
	OpKindAny                 OperatorKind = "any"
)

// AllOperatorKinds lists every known kind in declaration order.
var AllOperatorKinds = []OperatorKind{
	OpKindLock, OpKindFetchLazyProperties, OpKindFetchOne, OpKindFetchMany,
	OpKindAsQueryable, OpKindDistinct, OpKindTake, OpKindSkip, OpKindCount,
	OpKindFirst, OpKindAny,
}

// IsKnown reports whether k is one of AllOperatorKinds.
func (k OperatorKind) IsKnown() bool {
	for _, known := range AllOperatorKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ResultOperator is applied to the sequence produced by the select clause.
type ResultOperator interface {
	Kind() OperatorKind
	TransformExpressions(fn func(Expr) Expr)
	resultOperator()
}

// LockOperator requests a lock on the rows of Source.
type LockOperator struct {
	Mode   string
	Source Expr
}

// FetchLazyPropertiesOperator loads lazy properties eagerly.
type FetchLazyPropertiesOperator struct{}

// FetchOperator requests an eager fetch of a relation.
type FetchOperator struct {
	Member *MemberInfo
	Many   bool
}

// AsQueryableOperator marks a sequence as composable.
type AsQueryableOperator struct{}

// DistinctOperator removes duplicates.
type DistinctOperator struct{}

// TakeOperator limits the result.
type TakeOperator struct {
	Count Expr
}

// SkipOperator skips leading results.
type SkipOperator struct {
	Count Expr
}

// CountOperator counts results.
type CountOperator struct{}

// FirstOperator returns the first result.
type FirstOperator struct {
	OrDefault bool
}

// AnyOperator reports whether there is a result.
type AnyOperator struct{}

func (*LockOperator) Kind() OperatorKind                { return OpKindLock }
func (*FetchLazyPropertiesOperator) Kind() OperatorKind { return OpKindFetchLazyProperties }
func (*AsQueryableOperator) Kind() OperatorKind         { return OpKindAsQueryable }
func (*DistinctOperator) Kind() OperatorKind            { return OpKindDistinct }
func (*TakeOperator) Kind() OperatorKind                { return OpKindTake }
func (*SkipOperator) Kind() OperatorKind                { return OpKindSkip }
func (*CountOperator) Kind() OperatorKind               { return OpKindCount }
func (*FirstOperator) Kind() OperatorKind               { return OpKindFirst }
func (*AnyOperator) Kind() OperatorKind                 { return OpKindAny }

func (o *FetchOperator) Kind() OperatorKind {
	if o.Many {
		return OpKindFetchMany
	}
	return OpKindFetchOne
}

func (o *LockOperator) TransformExpressions(fn func(Expr) Expr) {
	if o.Source != nil {
		o.Source = fn(o.Source)
	}
}

func (o *TakeOperator) TransformExpressions(fn func(Expr) Expr) { o.Count = fn(o.Count) }
func (o *SkipOperator) TransformExpressions(fn func(Expr) Expr) { o.Count = fn(o.Count) }

func (*FetchLazyPropertiesOperator) TransformExpressions(func(Expr) Expr) {}
func (*FetchOperator) TransformExpressions(func(Expr) Expr)               {}
func (*AsQueryableOperator) TransformExpressions(func(Expr) Expr)         {}
func (*DistinctOperator) TransformExpressions(func(Expr) Expr)            {}
func (*CountOperator) TransformExpressions(func(Expr) Expr)               {}
func (*FirstOperator) TransformExpressions(func(Expr) Expr)               {}
func (*AnyOperator) TransformExpressions(func(Expr) Expr)                 {}

func (*LockOperator) resultOperator()                {}
func (*FetchLazyPropertiesOperator) resultOperator() {}
func (*FetchOperator) resultOperator()               {}
func (*AsQueryableOperator) resultOperator()         {}
func (*DistinctOperator) resultOperator()            {}
func (*TakeOperator) resultOperator()                {}
func (*SkipOperator) resultOperator()                {}
func (*CountOperator) resultOperator()               {}
func (*FirstOperator) resultOperator()               {}
func (*AnyOperator) resultOperator()                 {}
