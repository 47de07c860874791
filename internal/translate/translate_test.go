package translate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/qmodel"
	"github.com/roach88/querylift/internal/session"
	"github.com/roach88/querylift/internal/testutil"
)

func newTranslator(t *testing.T, shop *testutil.Shop) *Translator {
	t.Helper()
	tr, err := FromCatalog(shop.Catalog,
		WithLogger(session.DiscardLogger()),
		WithIDGenerator(session.NewFixedGenerator("plan-1", "plan-2", "plan-3")),
	)
	require.NoError(t, err)
	return tr
}

func TestTranslate_ShapeWithRegisteredCall(t *testing.T) {
	shop := testutil.NewShop(t)
	p := shop.From("p", "Person")
	shape := qmodel.NewObject(testutil.Shape("<>f__X", qmodel.String, qmodel.Int),
		[]qmodel.Expr{
			shop.Prop(testutil.Ref(p), "Name"),
			qmodel.NewCall(shop.Prop(testutil.Ref(p), "Nick"), testutil.LengthMethod),
		},
		[]string{"X", "Y"})

	plan, err := newTranslator(t, shop).Translate(qmodel.NewQueryModel(p, shape))
	require.NoError(t, err)

	assert.Equal(t, "plan-1", plan.ID)
	assert.Equal(t, "select p.Name, length(p.Nick) from Person p", plan.HQL())
	assert.Equal(t, 2, plan.Slots)
	assert.False(t, plan.ContainsUntranslatedCalls)
	assert.True(t, plan.CanCachePlan)
	assert.NotEmpty(t, plan.Key)

	got, err := plan.Execute([][]any{{"Ann", int64(3)}, {"Bo", int64(0)}})
	require.NoError(t, err)
	rows := got.([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, []any{"Ann", int64(3)}, rows[0].(*qmodel.Record).Values)
	assert.Equal(t, []any{"Bo", int64(0)}, rows[1].(*qmodel.Record).Values)
}

func TestTranslate_ClientCall(t *testing.T) {
	shop := testutil.NewShop(t)
	p := shop.From("p", "Person")
	view := qmodel.NewObject(testutil.PersonView, []qmodel.Expr{
		shop.Prop(testutil.Ref(p), "Name"),
		qmodel.NewCall(nil, testutil.LocalFormat, shop.Prop(testutil.Ref(p), "Age")),
	}, nil)

	plan, err := newTranslator(t, shop).Translate(qmodel.NewQueryModel(p, view))
	require.NoError(t, err)

	assert.Equal(t, "select p.Name, p.Age from Person p", plan.HQL())
	assert.True(t, plan.ContainsUntranslatedCalls)

	got, err := plan.Execute([][]any{{"Ann", int64(30)}})
	require.NoError(t, err)
	assert.Equal(t, []any{&testutil.View{Name: "Ann", Detail: "#30"}}, got)
}

func TestTranslate_DistinctWithClientCall(t *testing.T) {
	shop := testutil.NewShop(t)
	p := shop.From("p", "Person")
	view := qmodel.NewObject(testutil.PersonView, []qmodel.Expr{
		shop.Prop(testutil.Ref(p), "Name"),
		qmodel.NewCall(nil, testutil.LocalFormat, shop.Prop(testutil.Ref(p), "Age")),
	}, nil)
	m := qmodel.NewQueryModel(p, view)
	m.ResultOperators = append(m.ResultOperators, &qmodel.DistinctOperator{})

	_, err := newTranslator(t, shop).Translate(m)
	require.Error(t, err)
	assert.True(t, session.IsNotSupported(err))
}

func TestTranslate_Distinct(t *testing.T) {
	shop := testutil.NewShop(t)
	p := shop.From("p", "Person")
	m := qmodel.NewQueryModel(p, shop.Prop(testutil.Ref(p), "Name"))
	m.ResultOperators = append(m.ResultOperators, &qmodel.DistinctOperator{})

	plan, err := newTranslator(t, shop).Translate(m)
	require.NoError(t, err)
	assert.Equal(t, "select distinct p.Name from Person p", plan.HQL())
	assert.Nil(t, plan.Projector)

	got, err := plan.Execute([][]any{{"Ann"}, {"Bo"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"Ann", "Bo"}, got)
}

func TestTranslate_FlattensSubquerySource(t *testing.T) {
	shop := testutil.NewShop(t)
	x := shop.From("x", "Person")
	sub := qmodel.NewQueryModel(x, testutil.Ref(x))
	sub.Body = append(sub.Body, &qmodel.WhereClause{
		Predicate: qmodel.NewBinary(qmodel.OpGreater, shop.Prop(testutil.Ref(x), "Age"), qmodel.ConstantOf(int64(3))),
	})
	s := qmodel.NewFromClause("s", shop.Person, qmodel.NewSubQuery(sub))
	m := qmodel.NewQueryModel(s, shop.Prop(testutil.Ref(s), "Name"))

	plan, err := newTranslator(t, shop).Translate(m)
	require.NoError(t, err)

	assert.Equal(t, 1, plan.Flattened)
	assert.Equal(t, "from x in Person where (x.Age > 3) select x.Name", plan.Model)
	assert.Equal(t, "select x.Name from Person x where x.Age > 3", plan.HQL())
}

func TestTranslate_ShapeSubquerySourceStays(t *testing.T) {
	shop := testutil.NewShop(t)
	x := shop.From("x", "Person")
	anon := testutil.Shape("<>f__A", qmodel.String)
	sub := qmodel.NewQueryModel(x, qmodel.NewObject(anon,
		[]qmodel.Expr{shop.Prop(testutil.Ref(x), "Name")}, []string{"A"}))
	s := qmodel.NewFromClause("s", anon.Type, qmodel.NewSubQuery(sub))
	member := &qmodel.MemberInfo{DeclaringType: anon.Type, Name: "A", Type: qmodel.String}
	m := qmodel.NewQueryModel(s, qmodel.NewMember(testutil.Ref(s), member))

	plan, err := newTranslator(t, shop).Translate(m)
	require.NoError(t, err)

	assert.Equal(t, 0, plan.Flattened)
	assert.Equal(t, "select s.A from (select x.Name as A from Person x) s", plan.HQL())
	require.NotNil(t, plan.Projector)

	got, err := plan.Execute([][]any{{"Ann"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"Ann"}, got)
}

func TestTranslate_ScalarSubquerySource(t *testing.T) {
	shop := testutil.NewShop(t)
	x := shop.From("x", "Person")
	sub := qmodel.NewQueryModel(x, shop.Prop(testutil.Ref(x), "Name"))
	sub.ResultOperators = append(sub.ResultOperators, &qmodel.TakeOperator{Count: qmodel.ConstantOf(int64(5))})
	s := qmodel.NewFromClause("s", qmodel.String, qmodel.NewSubQuery(sub))
	m := qmodel.NewQueryModel(s, testutil.Ref(s))

	plan, err := newTranslator(t, shop).Translate(m)
	require.NoError(t, err)

	assert.Equal(t, 0, plan.Flattened, "take does not relocate")
	assert.Equal(t, "select s.c0 from (select x.Name as c0 from Person x limit 5) s", plan.HQL())
	assert.Equal(t, 1, plan.Slots)
}

func TestTranslate_NestedSubqueryExpression(t *testing.T) {
	shop := testutil.NewShop(t)
	p := shop.From("p", "Person")
	o := shop.From("o", "Order")
	orders := qmodel.NewQueryModel(o, testutil.Ref(o))
	orders.Body = append(orders.Body, &qmodel.WhereClause{
		Predicate: qmodel.Equal(shop.Prop(testutil.Ref(o), "Owner"), testutil.Ref(p)),
	})
	orders.ResultOperators = append(orders.ResultOperators, &qmodel.CountOperator{})

	m := qmodel.NewQueryModel(p, shop.Prop(testutil.Ref(p), "Name"))
	m.Body = append(m.Body, &qmodel.WhereClause{
		Predicate: qmodel.NewBinary(qmodel.OpGreater, qmodel.NewSubQuery(orders), qmodel.ConstantOf(int64(0))),
	})

	plan, err := newTranslator(t, shop).Translate(m)
	require.NoError(t, err)
	assert.Equal(t, "select p.Name from Person p where (select count(*) from Order o where o.Owner = p) > 0", plan.HQL())
}

func TestTranslate_NestedSubqueryNeedingReconstruction(t *testing.T) {
	shop := testutil.NewShop(t)
	p := shop.From("p", "Person")
	o := shop.From("o", "Order")
	view := qmodel.NewObject(testutil.PersonView, []qmodel.Expr{
		shop.Prop(testutil.Ref(o), "Code"), shop.Prop(testutil.Ref(o), "Code"),
	}, nil)
	orders := qmodel.NewQueryModel(o, view)
	orders.ResultOperators = append(orders.ResultOperators, &qmodel.FirstOperator{})

	m := qmodel.NewQueryModel(p, shop.Prop(testutil.Ref(p), "Name"))
	m.Body = append(m.Body, &qmodel.WhereClause{
		Predicate: qmodel.Equal(qmodel.NewSubQuery(orders), qmodel.Null(testutil.PersonView.Type)),
	})

	_, err := newTranslator(t, shop).Translate(m)
	require.Error(t, err)
	assert.True(t, session.IsNotSupported(err), "got %v", err)
}

func TestTranslate_Parameters(t *testing.T) {
	shop := testutil.NewShop(t)
	tr := newTranslator(t, shop)

	build := func(name string) (*qmodel.QueryModel, *qmodel.Constant) {
		p := shop.From("p", "Person")
		c := qmodel.ConstantOf(name)
		m := qmodel.NewQueryModel(p, shop.Prop(testutil.Ref(p), "Age"))
		m.Body = append(m.Body, &qmodel.WhereClause{Predicate: qmodel.Equal(shop.Prop(testutil.Ref(p), "Name"), c)})
		return m, c
	}

	m1, c1 := build("Ann")
	plan1, err := tr.Translate(m1, c1)
	require.NoError(t, err)
	assert.Equal(t, "select p.Age from Person p where p.Name = :p0", plan1.HQL())
	assert.Equal(t, map[string]ir.IRValue{"p0": ir.IRString("Ann")}, plan1.Parameters)
	assert.True(t, plan1.CanCachePlan)

	m2, c2 := build("Bo")
	plan2, err := tr.Translate(m2, c2)
	require.NoError(t, err)
	assert.Equal(t, plan1.Key, plan2.Key, "parameter values do not change the plan key")
	assert.Equal(t, "plan-2", plan2.ID)

	m3, _ := build("Bo")
	plan3, err := tr.Translate(m3)
	require.NoError(t, err)
	assert.NotEqual(t, plan1.Key, plan3.Key, "an inlined literal is part of the plan")
}

func TestTranslate_ClientOnlyParameterIsUncacheable(t *testing.T) {
	shop := testutil.NewShop(t)
	p := shop.From("p", "Person")
	c := qmodel.ConstantOf("note")
	view := qmodel.NewObject(testutil.PersonView, []qmodel.Expr{shop.Prop(testutil.Ref(p), "Name"), c}, nil)

	plan, err := newTranslator(t, shop).Translate(qmodel.NewQueryModel(p, view), c)
	require.NoError(t, err)

	assert.False(t, plan.CanCachePlan)
	assert.Equal(t, []string{"parameter p0 evaluated client-side"}, plan.UncacheableReasons)
	assert.Equal(t, "select p.Name from Person p", plan.HQL())
}

func TestTranslate_ResultOperators(t *testing.T) {
	shop := testutil.NewShop(t)

	t.Run("count", func(t *testing.T) {
		p := shop.From("p", "Person")
		m := qmodel.NewQueryModel(p, testutil.Ref(p))
		m.ResultOperators = append(m.ResultOperators, &qmodel.CountOperator{})

		plan, err := newTranslator(t, shop).Translate(m)
		require.NoError(t, err)
		assert.Equal(t, "select count(*) from Person p", plan.HQL())
		assert.Equal(t, ResultCount, plan.Result)

		got, err := plan.Execute([][]any{{int64(7)}})
		require.NoError(t, err)
		assert.Equal(t, int64(7), got)
	})

	t.Run("first", func(t *testing.T) {
		p := shop.From("p", "Person")
		m := qmodel.NewQueryModel(p, shop.Prop(testutil.Ref(p), "Name"))
		m.ResultOperators = append(m.ResultOperators, &qmodel.FirstOperator{})

		plan, err := newTranslator(t, shop).Translate(m)
		require.NoError(t, err)
		assert.Equal(t, "select p.Name from Person p limit 1", plan.HQL())

		got, err := plan.Execute([][]any{{"Ann"}})
		require.NoError(t, err)
		assert.Equal(t, "Ann", got)

		_, err = plan.Execute(nil)
		assert.ErrorIs(t, err, ErrNoRows)
	})

	t.Run("first or default", func(t *testing.T) {
		p := shop.From("p", "Person")
		m := qmodel.NewQueryModel(p, shop.Prop(testutil.Ref(p), "Name"))
		m.ResultOperators = append(m.ResultOperators, &qmodel.FirstOperator{OrDefault: true})

		plan, err := newTranslator(t, shop).Translate(m)
		require.NoError(t, err)
		got, err := plan.Execute(nil)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("any", func(t *testing.T) {
		p := shop.From("p", "Person")
		m := qmodel.NewQueryModel(p, testutil.Ref(p))
		m.ResultOperators = append(m.ResultOperators, &qmodel.AnyOperator{})

		plan, err := newTranslator(t, shop).Translate(m)
		require.NoError(t, err)
		got, err := plan.Execute([][]any{{int64(1)}})
		require.NoError(t, err)
		assert.Equal(t, true, got)
	})

	t.Run("paging and hints", func(t *testing.T) {
		p := shop.From("p", "Person")
		m := qmodel.NewQueryModel(p, shop.Prop(testutil.Ref(p), "Name"))
		m.ResultOperators = append(m.ResultOperators,
			&qmodel.LockOperator{Mode: "upgrade", Source: testutil.Ref(p)},
			&qmodel.SkipOperator{Count: qmodel.ConstantOf(int64(20))},
			&qmodel.TakeOperator{Count: qmodel.ConstantOf(int64(10))},
		)

		plan, err := newTranslator(t, shop).Translate(m)
		require.NoError(t, err)
		assert.Equal(t, "select p.Name from Person p limit 10 offset 20", plan.HQL())
		assert.Equal(t, []string{"lock(upgrade)"}, plan.Hints)
	})

	t.Run("count over distinct", func(t *testing.T) {
		p := shop.From("p", "Person")
		m := qmodel.NewQueryModel(p, shop.Prop(testutil.Ref(p), "Name"))
		m.ResultOperators = append(m.ResultOperators, &qmodel.DistinctOperator{}, &qmodel.CountOperator{})

		_, err := newTranslator(t, shop).Translate(m)
		assert.True(t, session.IsNotSupported(err))
	})
}

func TestTranslate_Join(t *testing.T) {
	shop := testutil.NewShop(t)
	p := shop.From("p", "Person")
	join := &qmodel.JoinClause{Name: "o", Type: shop.Order, Inner: qmodel.NewEntitySource(shop.Order)}
	join.OuterKey = testutil.Ref(p)
	join.InnerKey = shop.Prop(testutil.Ref(join), "Owner")
	view := qmodel.NewObject(testutil.PersonView, []qmodel.Expr{
		shop.Prop(testutil.Ref(p), "Name"),
		shop.Prop(testutil.Ref(join), "Code"),
	}, nil)
	m := qmodel.NewQueryModel(p, view)
	m.Body = append(m.Body, join)

	plan, err := newTranslator(t, shop).Translate(m)
	require.NoError(t, err)
	assert.Equal(t, "select p.Name, o.Code from Person p join Order o on p = o.Owner", plan.HQL())
}

func TestTranslate_InvalidModel(t *testing.T) {
	shop := testutil.NewShop(t)
	tr := newTranslator(t, shop)

	_, err := tr.Translate(nil)
	var terr *session.TranslationError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, session.ErrCodeInvalidModel, terr.Code)

	p := shop.From("p", "Person")
	bad := qmodel.NewFromClause("q", shop.Person, qmodel.ConstantOf(int64(1)))
	m := qmodel.NewQueryModel(p, testutil.Ref(p))
	m.Body = append(m.Body, bad)
	_, err = tr.Translate(m)
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, session.ErrCodeInvalidModel, terr.Code)
}

func TestPlan_ExecuteRowWidth(t *testing.T) {
	shop := testutil.NewShop(t)
	p := shop.From("p", "Person")
	plan, err := newTranslator(t, shop).Translate(qmodel.NewQueryModel(p, shop.Prop(testutil.Ref(p), "Name")))
	require.NoError(t, err)

	_, err = plan.Execute([][]any{{"Ann", "extra"}})
	assert.ErrorContains(t, err, "row 0")
}

func TestTranslate_ClientOnlySelector(t *testing.T) {
	shop := testutil.NewShop(t)
	p := shop.From("p", "Person")

	plan, err := newTranslator(t, shop).Translate(qmodel.NewQueryModel(p, qmodel.ConstantOf("x")))
	require.NoError(t, err)

	assert.Equal(t, "select 1 from Person p", plan.HQL())
	assert.Equal(t, 1, plan.Slots)
	require.NotNil(t, plan.Projector)

	got, err := plan.Execute([][]any{{int64(1)}, {int64(1)}})
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "x"}, got)

	_, err = plan.Execute([][]any{{}})
	assert.ErrorContains(t, err, "row 0")
}

func TestTranslate_NestedShapeSubquerySource(t *testing.T) {
	shop := testutil.NewShop(t)
	x := shop.From("x", "Person")
	in := testutil.Shape("<>f__I", qmodel.String)
	outer := testutil.Shape("<>f__O", qmodel.String, in.Type)
	sub := qmodel.NewQueryModel(x, qmodel.NewObject(outer,
		[]qmodel.Expr{
			shop.Prop(testutil.Ref(x), "Name"),
			qmodel.NewObject(in, []qmodel.Expr{shop.Prop(testutil.Ref(x), "Nick")}, []string{"B"}),
		},
		[]string{"A", "In"}))
	s := qmodel.NewFromClause("s", outer.Type, qmodel.NewSubQuery(sub))

	plan, err := newTranslator(t, shop).Translate(qmodel.NewQueryModel(s, testutil.Ref(s)))
	require.NoError(t, err)

	assert.Equal(t, "select s.c0, s.c1 from (select x.Name as c0, x.Nick as c1 from Person x) s", plan.HQL())
	assert.Equal(t, 2, plan.Slots)

	got, err := plan.Execute([][]any{{"Ann", "A"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	rec := got.([]any)[0].(*qmodel.Record)
	assert.Equal(t, "Ann", rec.Values[0])
	assert.Equal(t, []any{"A"}, rec.Values[1].(*qmodel.Record).Values)
}

func TestPlan_ExecuteWithoutProjector(t *testing.T) {
	plan := &Plan{Slots: 2}
	_, err := plan.Execute([][]any{{"a", "b"}})
	assert.ErrorContains(t, err, "without a projector")
}
