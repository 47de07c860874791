package nominate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/qmodel"
	"github.com/roach88/querylift/internal/testutil"
)

func TestNominate_RegisteredCallInShape(t *testing.T) {
	shop := testutil.NewShop(t)
	p := shop.From("p", "Person")

	name := shop.Prop(testutil.Ref(p), "Name")
	length := qmodel.NewCall(shop.Prop(testutil.Ref(p), "Nick"), testutil.LengthMethod)
	shape := qmodel.NewObject(testutil.Shape("<>f__X", qmodel.String, qmodel.Int),
		[]qmodel.Expr{name, length}, []string{"X", "Y"})

	r := Nominate(shop.Session(), shape, false)

	assert.False(t, r.ContainsUntranslatedCalls)
	assert.True(t, r.IsCandidate(name))
	assert.True(t, r.IsCandidate(length))
	assert.False(t, r.IsCandidate(shape), "shapes outside a subquery are built client-side")
	assert.Same(t, shape, r.Expr)
}

func TestNominate_UnregisteredCall(t *testing.T) {
	shop := testutil.NewShop(t)
	p := shop.From("p", "Person")

	name := shop.Prop(testutil.Ref(p), "Name")
	age := shop.Prop(testutil.Ref(p), "Age")
	format := qmodel.NewCall(nil, testutil.LocalFormat, age)
	view := qmodel.NewObject(testutil.PersonView, []qmodel.Expr{name, format}, nil)

	r := Nominate(shop.Session(), view, false)

	assert.True(t, r.ContainsUntranslatedCalls)
	assert.True(t, r.IsCandidate(name))
	assert.True(t, r.IsCandidate(age), "arguments of a client call are still fetched")
	assert.False(t, r.IsCandidate(format))
	assert.False(t, r.IsCandidate(view))
}

func TestNominate_EqualityDropsHalfTranslatedConstant(t *testing.T) {
	shop := testutil.NewShop(t)
	p := shop.From("p", "Person")

	format := qmodel.NewCall(nil, testutil.LocalFormat, shop.Prop(testutil.Ref(p), "Age"))
	lit := qmodel.ConstantOf("#3")
	eq := qmodel.Equal(format, lit)

	r := Nominate(shop.Session(), eq, false)
	assert.False(t, r.IsCandidate(lit))
	assert.False(t, r.IsCandidate(eq))

	name := shop.Prop(testutil.Ref(p), "Name")
	lit2 := qmodel.ConstantOf("Ann")
	eq2 := qmodel.Equal(name, lit2)

	r = Nominate(shop.Session(), eq2, false)
	assert.True(t, r.IsCandidate(lit2), "equality projects its constants")
	assert.True(t, r.IsCandidate(eq2))
}

func TestNominate_ConstantOutsideServerContext(t *testing.T) {
	shop := testutil.NewShop(t)
	p := shop.From("p", "Person")
	shape := testutil.Shape("<>f__C", qmodel.String, qmodel.String)

	t.Run("literal", func(t *testing.T) {
		lit := qmodel.ConstantOf("fixed")
		expr := qmodel.NewObject(shape, []qmodel.Expr{shop.Prop(testutil.Ref(p), "Name"), lit}, []string{"A", "B"})
		s := shop.Session()

		r := Nominate(s, expr, false)
		assert.False(t, r.IsCandidate(lit))
		assert.True(t, s.CanCachePlan())
	})

	t.Run("bind parameter", func(t *testing.T) {
		param := qmodel.ConstantOf("captured")
		expr := qmodel.NewObject(shape, []qmodel.Expr{shop.Prop(testutil.Ref(p), "Name"), param}, []string{"A", "B"})
		s := shop.Session()
		s.AddParameter(param)

		r := Nominate(s, expr, false)
		assert.False(t, r.IsCandidate(param))
		assert.False(t, s.CanCachePlan(), "plan depends on a client-side parameter value")
	})

	t.Run("registered function argument", func(t *testing.T) {
		param := qmodel.ConstantOf("x")
		concat := &qmodel.Method{DeclaringType: qmodel.String, Name: "Concat", Static: true, Result: qmodel.String}
		call := qmodel.NewCall(nil, concat, shop.Prop(testutil.Ref(p), "Name"), param)
		s := shop.Session()
		s.AddParameter(param)

		r := Nominate(s, call, false)
		assert.True(t, r.IsCandidate(param))
		assert.True(t, r.IsCandidate(call))
		assert.True(t, s.CanCachePlan())
	})
}

func TestNominate_SubQueryProjectsShapes(t *testing.T) {
	shop := testutil.NewShop(t)
	x := shop.From("x", "Person")

	shape := qmodel.NewObject(testutil.Shape("<>f__A", qmodel.String, qmodel.String),
		[]qmodel.Expr{shop.Prop(testutil.Ref(x), "Name"), qmodel.ConstantOf("k")}, []string{"A", "K"})

	r := Nominate(shop.Session(), shape, true)
	assert.True(t, r.IsCandidate(shape))

	view := qmodel.NewObject(testutil.PersonView,
		[]qmodel.Expr{shop.Prop(testutil.Ref(x), "Name"), shop.Prop(testutil.Ref(x), "Nick")}, nil)
	r = Nominate(shop.Session(), view, true)
	assert.False(t, r.IsCandidate(view), "classes never construct server-side")
}

func TestNominate_OnlySelectorShapeIsCandidate(t *testing.T) {
	shop := testutil.NewShop(t)
	x := shop.From("x", "Person")
	in := testutil.Shape("<>f__I", qmodel.String)

	t.Run("nested shape", func(t *testing.T) {
		name := shop.Prop(testutil.Ref(x), "Name")
		inner := qmodel.NewObject(in, []qmodel.Expr{name}, []string{"B"})
		outer := qmodel.NewObject(testutil.Shape("<>f__O", in.Type), []qmodel.Expr{inner}, []string{"In"})

		r := Nominate(shop.Session(), outer, true)
		assert.False(t, r.IsCandidate(inner))
		assert.False(t, r.IsCandidate(outer))
		assert.True(t, r.IsCandidate(name))
	})

	t.Run("compared shapes", func(t *testing.T) {
		left := qmodel.NewObject(in, []qmodel.Expr{shop.Prop(testutil.Ref(x), "Name")}, []string{"B"})
		right := qmodel.NewObject(in, []qmodel.Expr{shop.Prop(testutil.Ref(x), "Nick")}, []string{"B"})
		eq := qmodel.Equal(left, right)

		r := Nominate(shop.Session(), eq, false)
		assert.False(t, r.IsCandidate(left))
		assert.False(t, r.IsCandidate(right))
		assert.False(t, r.IsCandidate(eq))
	})
}

func TestNominate_ConstructionNeverEvaluable(t *testing.T) {
	shop := testutil.NewShop(t)
	p := shop.From("p", "Person")
	name := shop.Prop(testutil.Ref(p), "Name")

	arr := qmodel.NewArrayInit(qmodel.String, name)
	r := Nominate(shop.Session(), arr, true)
	assert.False(t, r.IsCandidate(arr))
	assert.True(t, r.IsCandidate(name))

	init := qmodel.NewMemberInit(qmodel.NewObject(testutil.Shape("<>f__M"), nil, nil),
		qmodel.MemberBinding{Member: "N", Value: shop.Prop(testutil.Ref(p), "Name")})
	r = Nominate(shop.Session(), init, true)
	assert.False(t, r.IsCandidate(init))
}

func TestNominate_StripsNominatedWrapper(t *testing.T) {
	shop := testutil.NewShop(t)
	p := shop.From("p", "Person")

	inner := qmodel.NewCall(nil, testutil.LocalFormat, shop.Prop(testutil.Ref(p), "Age"))
	wrapped := qmodel.NewNominated(inner)
	view := qmodel.NewObject(testutil.PersonView, []qmodel.Expr{shop.Prop(testutil.Ref(p), "Name"), wrapped}, nil)

	r := Nominate(shop.Session(), view, false)

	assert.True(t, r.IsCandidate(inner))
	assert.False(t, r.ContainsUntranslatedCalls, "the wrapped call is not inspected")

	got, ok := r.Expr.(*qmodel.New)
	require.True(t, ok)
	assert.NotEqual(t, view.ID(), got.ID(), "rebuilt without the wrapper")
	assert.Same(t, inner, got.Args[1])
}

func TestNominate_AliasReferenceBlocksParent(t *testing.T) {
	shop := testutil.NewShop(t)
	anon := qmodel.AnonymousType("<>f__S")
	s := qmodel.NewFromClause("s", anon, qmodel.NewEntitySource(anon))
	member := &qmodel.MemberInfo{DeclaringType: anon, Name: "A", Type: qmodel.String}

	sess := shop.Session()
	sess.RegisterAlias("s", qmodel.NewRowValue(qmodel.NewRowParameter(), 0), []string{"A"})

	ref := testutil.Ref(s)
	read := qmodel.NewMember(ref, member)
	r := Nominate(sess, read, false)

	assert.True(t, r.IsCandidate(ref))
	assert.False(t, r.IsCandidate(read))
}

func TestNominate_Aggregates(t *testing.T) {
	shop := testutil.NewShop(t)
	p := shop.From("p", "Person")

	count := qmodel.NewAggregate(qmodel.AggCount, nil)
	r := Nominate(shop.Session(), count, false)
	assert.True(t, r.IsCandidate(count))

	// Aggregates project constants into their operand.
	lit := qmodel.ConstantOf(int64(1))
	sum := qmodel.NewAggregate(qmodel.AggSum, qmodel.NewBinary(qmodel.OpAdd, shop.Prop(testutil.Ref(p), "Age"), lit))
	r = Nominate(shop.Session(), sum, false)
	assert.True(t, r.IsCandidate(lit))
	assert.True(t, r.IsCandidate(sum))
}

func TestNominate_ConstantReceiver(t *testing.T) {
	shop := testutil.NewShop(t)

	upper := qmodel.NewCall(qmodel.ConstantOf("fixed"), testutil.ToUpperMethod)
	r := Nominate(shop.Session(), upper, false)
	assert.True(t, r.ContainsUntranslatedCalls, "receiver is part of the IR")
	assert.False(t, r.IsCandidate(upper))

	clock := qmodel.ClassType("app", "Clock")
	today := &qmodel.Method{DeclaringType: clock, Name: "Today", Result: qmodel.DateTime}
	call := qmodel.NewCall(qmodel.NewConstant(ir.IRNull{}, clock), today)
	r = Nominate(shop.Session(), call, false)
	assert.False(t, r.ContainsUntranslatedCalls, "generator ignores the receiver")
	assert.True(t, r.IsCandidate(call))
}

func TestNominate_Conditional(t *testing.T) {
	shop := testutil.NewShop(t)
	p := shop.From("p", "Person")

	cond := func() *qmodel.Conditional {
		return qmodel.NewConditional(
			qmodel.NewBinary(qmodel.OpGreater, shop.Prop(testutil.Ref(p), "Age"), qmodel.ConstantOf(int64(17))),
			qmodel.ConstantOf("adult"), qmodel.ConstantOf("minor"))
	}

	c := cond()
	r := Nominate(shop.Session(), c, false)
	assert.False(t, r.IsCandidate(c))

	inner := cond()
	upper := qmodel.NewCall(inner, testutil.ToUpperMethod)
	r = Nominate(shop.Session(), upper, false)
	assert.True(t, r.IsCandidate(inner), "inside a registered call")
	assert.True(t, r.IsCandidate(upper))
}

func TestNominate_Members(t *testing.T) {
	shop := testutil.NewShop(t)
	p := shop.From("p", "Person")

	chain := shop.Prop(shop.Prop(testutil.Ref(p), "Manager"), "Name")
	unmapped := qmodel.NewMember(testutil.Ref(p), &qmodel.MemberInfo{DeclaringType: shop.Person, Name: "FullName", Type: qmodel.String})
	length := qmodel.NewMember(shop.Prop(testutil.Ref(p), "Name"),
		&qmodel.MemberInfo{DeclaringType: qmodel.String, Name: "Length", Type: qmodel.Int})

	r := Nominate(shop.Session(), chain, false)
	assert.True(t, r.IsCandidate(chain), "association chain")

	r = Nominate(shop.Session(), unmapped, false)
	assert.False(t, r.IsCandidate(unmapped))

	r = Nominate(shop.Session(), length, false)
	assert.True(t, r.IsCandidate(length), "registered member")
}

func TestNominate_IdentityNotStructure(t *testing.T) {
	shop := testutil.NewShop(t)
	p := shop.From("p", "Person")
	shape := testutil.Shape("<>f__D", qmodel.String, qmodel.String)

	// Same text, different nodes: one in an equality (projected), one bare.
	inEq := qmodel.ConstantOf("x")
	bare := qmodel.ConstantOf("x")
	expr := qmodel.NewObject(shape, []qmodel.Expr{
		qmodel.Equal(shop.Prop(testutil.Ref(p), "Name"), inEq),
		bare,
	}, []string{"A", "B"})

	r := Nominate(shop.Session(), expr, false)
	assert.True(t, r.IsCandidate(inEq))
	assert.False(t, r.IsCandidate(bare))
	assert.Len(t, r.Candidates(), r.Len())
}
