// Package eval runs reconstruction lambdas client-side.
//
// Compile turns a lambda over a fetched row into a Projector. Compilation
// walks the tree once and produces a closure per node; running a projector
// never re-inspects the expression tree.
//
// Values are plain Go values as returned by a database/sql driver: nil,
// int64, float64, bool, string, []byte and time.Time, plus whatever the
// Make, Get and Invoke hooks of the model return. Shapes without a Make
// hook evaluate to *qmodel.Record.
package eval

import (
	"errors"
	"fmt"
	"maps"

	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/qmodel"
)

// Projector rebuilds one result value from a fetched row.
type Projector func(row []any) (any, error)

// Func is the client-side value of a nested lambda.
type Func func(args ...any) (any, error)

type frame struct {
	env map[*qmodel.Parameter]any
}

type fn func(f *frame) (any, error)

// jump carries a Return to the block that declares its label.
type jump struct {
	target *qmodel.LabelTarget
	value  any
}

func (j *jump) Error() string {
	return fmt.Sprintf("return to label %s outside its block", j.target.Name)
}

// Compile compiles a lambda of one row parameter.
func Compile(l *qmodel.Lambda) (Projector, error) {
	if l == nil {
		return nil, errors.New("eval: nil lambda")
	}
	if len(l.Params) != 1 {
		return nil, fmt.Errorf("eval: a projector takes one row parameter, got %d", len(l.Params))
	}
	body, err := compile(l.Body)
	if err != nil {
		return nil, err
	}
	row := l.Params[0]
	return func(values []any) (any, error) {
		return body(&frame{env: map[*qmodel.Parameter]any{row: values}})
	}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(l *qmodel.Lambda) Projector {
	p, err := Compile(l)
	if err != nil {
		panic(err)
	}
	return p
}

func unsupported(e qmodel.Expr) error {
	return fmt.Errorf("eval: %s has no client-side form (%s)", qmodel.Format(e), e.Kind())
}

func compile(e qmodel.Expr) (fn, error) {
	switch n := e.(type) {
	case nil:
		return func(*frame) (any, error) { return nil, nil }, nil
	case *qmodel.Constant:
		if _, ok := qmodel.EntitySource(n); ok {
			return nil, unsupported(e)
		}
		v := ir.ToGo(n.Value)
		return func(*frame) (any, error) { return v, nil }, nil
	case *qmodel.Parameter:
		return func(f *frame) (any, error) {
			v, ok := f.env[n]
			if !ok {
				return nil, fmt.Errorf("parameter %s is unbound", n.Name)
			}
			return v, nil
		}, nil
	case *qmodel.RowValue:
		return compileRowValue(n), nil
	case *qmodel.Member:
		return compileMember(n)
	case *qmodel.Call:
		return compileCall(n)
	case *qmodel.Binary:
		return compileBinary(n)
	case *qmodel.Unary:
		return compileUnary(n)
	case *qmodel.Convert:
		return compileConvert(n)
	case *qmodel.Conditional:
		return compileConditional(n)
	case *qmodel.New:
		return compileNew(n)
	case *qmodel.MemberInit:
		return compileMemberInit(n)
	case *qmodel.NewArray:
		return compileNewArray(n)
	case *qmodel.Block:
		return compileBlock(n)
	case *qmodel.Label:
		return compileLabel(n)
	case *qmodel.Return:
		value, err := compile(n.Value)
		if err != nil {
			return nil, err
		}
		return func(f *frame) (any, error) {
			v, err := value(f)
			if err != nil {
				return nil, err
			}
			return nil, &jump{target: n.Target, value: v}
		}, nil
	case *qmodel.Lambda:
		return compileLambda(n)
	default:
		// Query sources, subqueries, aggregates and markers only exist
		// server-side.
		return nil, unsupported(e)
	}
}

func compileAll(exprs []qmodel.Expr) ([]fn, error) {
	out := make([]fn, len(exprs))
	for i, e := range exprs {
		c, err := compile(e)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func evalAll(f *frame, fns []fn) ([]any, error) {
	out := make([]any, len(fns))
	for i, c := range fns {
		v, err := c(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func compileRowValue(n *qmodel.RowValue) fn {
	return func(f *frame) (any, error) {
		row, ok := f.env[n.Row].([]any)
		if !ok {
			return nil, fmt.Errorf("%s is not bound to a row", n.Row.Name)
		}
		if n.Index < 0 || n.Index >= len(row) {
			return nil, fmt.Errorf("%s[%d]: row has %d slots", n.Row.Name, n.Index, len(row))
		}
		return row[n.Index], nil
	}
}

func compileMember(n *qmodel.Member) (fn, error) {
	var obj fn
	if n.Object != nil {
		var err error
		if obj, err = compile(n.Object); err != nil {
			return nil, err
		}
	}
	m := n.Member
	return func(f *frame) (any, error) {
		var recv any
		if obj != nil {
			var err error
			if recv, err = obj(f); err != nil {
				return nil, err
			}
			if recv == nil {
				return nil, fmt.Errorf("null reference reading %s", m.Key())
			}
		}
		if m.Get != nil {
			return m.Get(recv)
		}
		if r, ok := recv.(*qmodel.Record); ok {
			v, ok := r.Get(m.Name)
			if !ok {
				return nil, fmt.Errorf("%s has no member %s", r.Type, m.Name)
			}
			return v, nil
		}
		if get, ok := builtinMembers[m.Key()]; ok {
			return get(recv)
		}
		return nil, fmt.Errorf("no client implementation of %s", m.Key())
	}, nil
}

func compileCall(n *qmodel.Call) (fn, error) {
	var obj fn
	if n.Object != nil {
		var err error
		if obj, err = compile(n.Object); err != nil {
			return nil, err
		}
	}
	args, err := compileAll(n.Args)
	if err != nil {
		return nil, err
	}
	m := n.Method
	invoke := m.Invoke
	if invoke == nil {
		invoke = builtinMethods[m.Key()]
	}
	if invoke == nil {
		return nil, fmt.Errorf("eval: no client implementation of %s", m.Key())
	}
	return func(f *frame) (any, error) {
		var recv any
		if obj != nil {
			var err error
			if recv, err = obj(f); err != nil {
				return nil, err
			}
			if recv == nil {
				return nil, fmt.Errorf("null reference calling %s", m.Key())
			}
		}
		vals, err := evalAll(f, args)
		if err != nil {
			return nil, err
		}
		v, err := invoke(recv, vals)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Key(), err)
		}
		return v, nil
	}, nil
}

func compileConditional(n *qmodel.Conditional) (fn, error) {
	test, err := compile(n.Test)
	if err != nil {
		return nil, err
	}
	ifTrue, err := compile(n.IfTrue)
	if err != nil {
		return nil, err
	}
	var ifFalse fn
	if n.IfFalse != nil {
		if ifFalse, err = compile(n.IfFalse); err != nil {
			return nil, err
		}
	}
	return func(f *frame) (any, error) {
		t, err := test(f)
		if err != nil {
			return nil, err
		}
		b, ok := t.(bool)
		if !ok {
			return nil, fmt.Errorf("condition %s is %T, not bool", qmodel.Format(n.Test), t)
		}
		switch {
		case b:
			v, err := ifTrue(f)
			if ifFalse == nil {
				return nil, err
			}
			return v, err
		case ifFalse != nil:
			return ifFalse(f)
		default:
			return nil, nil
		}
	}, nil
}

func compileNew(n *qmodel.New) (fn, error) {
	args, err := compileAll(n.Args)
	if err != nil {
		return nil, err
	}
	ctor := n.Ctor
	t := n.Type()
	names := n.Members
	if names == nil {
		names = make([]string, len(n.Args))
		for i := range names {
			names[i] = fmt.Sprintf("Item%d", i+1)
		}
	}
	return func(f *frame) (any, error) {
		vals, err := evalAll(f, args)
		if err != nil {
			return nil, err
		}
		if ctor.Make == nil {
			return qmodel.NewRecord(t, append([]string(nil), names...), vals), nil
		}
		v, err := ctor.Make(vals)
		if err != nil {
			return nil, fmt.Errorf("new %s: %w", t, err)
		}
		return v, nil
	}, nil
}

func compileMemberInit(n *qmodel.MemberInit) (fn, error) {
	build, err := compileNew(n.New)
	if err != nil {
		return nil, err
	}
	values := make([]fn, len(n.Bindings))
	for i, b := range n.Bindings {
		if values[i], err = compile(b.Value); err != nil {
			return nil, err
		}
	}
	set := n.New.Ctor.Set
	return func(f *frame) (any, error) {
		obj, err := build(f)
		if err != nil {
			return nil, err
		}
		for i, b := range n.Bindings {
			v, err := values[i](f)
			if err != nil {
				return nil, err
			}
			if set != nil {
				if err := set(obj, b.Member, v); err != nil {
					return nil, fmt.Errorf("assign %s: %w", b.Member, err)
				}
				continue
			}
			r, ok := obj.(*qmodel.Record)
			if !ok {
				return nil, fmt.Errorf("cannot assign %s on %T", b.Member, obj)
			}
			r.Set(b.Member, v)
		}
		return obj, nil
	}, nil
}

func compileNewArray(n *qmodel.NewArray) (fn, error) {
	if n.Bounds != nil {
		size, err := compile(n.Bounds)
		if err != nil {
			return nil, err
		}
		return func(f *frame) (any, error) {
			v, err := size(f)
			if err != nil {
				return nil, err
			}
			l, ok := asInt(v)
			if !ok || l < 0 {
				return nil, fmt.Errorf("invalid array length %v", v)
			}
			return make([]any, l), nil
		}, nil
	}
	elems, err := compileAll(n.Elements)
	if err != nil {
		return nil, err
	}
	return func(f *frame) (any, error) {
		return evalAll(f, elems)
	}, nil
}

func compileBlock(n *qmodel.Block) (fn, error) {
	exprs, err := compileAll(n.Exprs)
	if err != nil {
		return nil, err
	}
	labels := map[*qmodel.LabelTarget]bool{}
	for _, e := range n.Exprs {
		if l, ok := e.(*qmodel.Label); ok {
			labels[l.Target] = true
		}
	}
	return func(f *frame) (any, error) {
		var v any
		for _, x := range exprs {
			var err error
			if v, err = x(f); err != nil {
				var j *jump
				if errors.As(err, &j) && labels[j.target] {
					return j.value, nil
				}
				return nil, err
			}
		}
		return v, nil
	}, nil
}

func compileLabel(n *qmodel.Label) (fn, error) {
	def, err := compile(n.Default)
	if err != nil {
		return nil, err
	}
	return func(f *frame) (any, error) {
		v, err := def(f)
		var j *jump
		if errors.As(err, &j) && j.target == n.Target {
			return j.value, nil
		}
		return v, err
	}, nil
}

func compileLambda(n *qmodel.Lambda) (fn, error) {
	body, err := compile(n.Body)
	if err != nil {
		return nil, err
	}
	params := n.Params
	return func(outer *frame) (any, error) {
		return Func(func(args ...any) (any, error) {
			if len(args) != len(params) {
				return nil, fmt.Errorf("lambda takes %d arguments, got %d", len(params), len(args))
			}
			inner := &frame{env: maps.Clone(outer.env)}
			for i, p := range params {
				inner.env[p] = args[i]
			}
			return body(inner)
		}), nil
	}, nil
}
