package eval

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/querylift/internal/qmodel"
)

var errDivideByZero = errors.New("division by zero")

func compileBinary(n *qmodel.Binary) (fn, error) {
	left, err := compile(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := compile(n.Right)
	if err != nil {
		return nil, err
	}
	op := n.Op
	switch op {
	case qmodel.OpAnd, qmodel.OpOr:
		return func(f *frame) (any, error) {
			l, err := evalBool(f, left, n.Left)
			if err != nil {
				return nil, err
			}
			if (op == qmodel.OpAnd && !l) || (op == qmodel.OpOr && l) {
				return l, nil
			}
			return evalBool(f, right, n.Right)
		}, nil
	case qmodel.OpCoalesce:
		return func(f *frame) (any, error) {
			l, err := left(f)
			if err != nil || l != nil {
				return l, err
			}
			return right(f)
		}, nil
	}
	stringAdd := op == qmodel.OpAdd && n.Type().Kind == qmodel.TypeString
	return func(f *frame) (any, error) {
		l, err := left(f)
		if err != nil {
			return nil, err
		}
		r, err := right(f)
		if err != nil {
			return nil, err
		}
		switch {
		case op == qmodel.OpEqual:
			return equal(l, r), nil
		case op == qmodel.OpNotEqual:
			return !equal(l, r), nil
		case op.IsComparison():
			return compare(op, l, r)
		case stringAdd:
			return stringOf(l) + stringOf(r), nil
		default:
			return arithmetic(op, l, r)
		}
	}, nil
}

func evalBool(f *frame, c fn, e qmodel.Expr) (bool, error) {
	v, err := c(f)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s is %T, not bool", qmodel.Format(e), v)
	}
	return b, nil
}

func compileUnary(n *qmodel.Unary) (fn, error) {
	operand, err := compile(n.Operand)
	if err != nil {
		return nil, err
	}
	return func(f *frame) (any, error) {
		v, err := operand(f)
		if err != nil || v == nil {
			return nil, err
		}
		switch n.Op {
		case qmodel.OpNot:
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("not of %T", v)
			}
			return !b, nil
		case qmodel.OpNegate:
			if i, ok := v.(int64); ok {
				return -i, nil
			}
			x, ok := asFloat(v)
			if !ok {
				return nil, fmt.Errorf("negate of %T", v)
			}
			return -x, nil
		default:
			return nil, fmt.Errorf("unknown unary operator %s", n.Op)
		}
	}, nil
}

func compileConvert(n *qmodel.Convert) (fn, error) {
	operand, err := compile(n.Operand)
	if err != nil {
		return nil, err
	}
	t := n.Type()
	dynamic := n.Dynamic
	return func(f *frame) (any, error) {
		v, err := operand(f)
		if err != nil {
			return nil, err
		}
		return Convert(v, t, dynamic)
	}, nil
}

// Convert converts a fetched value to t. A null value converts to a null
// of any nullable or reference type and fails otherwise. Dynamic
// conversions also parse strings and round fractional numbers to the
// nearest even integer; plain casts truncate.
func Convert(v any, t *qmodel.Type, dynamic bool) (any, error) {
	if v == nil {
		if t.IsNullableOrReference() {
			return nil, nil
		}
		return nil, fmt.Errorf("null cannot be converted to non-nullable %s", t)
	}
	switch t.Kind {
	case qmodel.TypeInt, qmodel.TypeInt64, qmodel.TypeEnum:
		return toInt(v, t, dynamic)
	case qmodel.TypeFloat, qmodel.TypeDecimal:
		if s, ok := v.(string); ok && dynamic {
			x, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("convert %q to %s: %w", s, t, err)
			}
			return x, nil
		}
		x, ok := asFloat(v)
		if !ok {
			return nil, fmt.Errorf("cannot convert %T to %s", v, t)
		}
		return x, nil
	case qmodel.TypeBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			if dynamic {
				return strconv.ParseBool(b)
			}
		}
		// Boolean columns arrive in their arithmetic encoding.
		if i, ok := asInt(v); ok {
			return i != 0, nil
		}
		return nil, fmt.Errorf("cannot convert %T to %s", v, t)
	case qmodel.TypeString:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
		if dynamic {
			return stringOf(v), nil
		}
		return nil, fmt.Errorf("cannot convert %T to %s", v, t)
	case qmodel.TypeDateTime:
		switch d := v.(type) {
		case time.Time:
			return d, nil
		case string:
			return time.Parse(time.RFC3339Nano, d)
		}
		return nil, fmt.Errorf("cannot convert %T to %s", v, t)
	default:
		return v, nil
	}
}

func toInt(v any, t *qmodel.Type, dynamic bool) (any, error) {
	if i, ok := asInt(v); ok {
		return i, nil
	}
	switch x := v.(type) {
	case float64, float32:
		f, _ := asFloat(x)
		if dynamic {
			f = math.RoundToEven(f)
		}
		if f > math.MaxInt64 || f < math.MinInt64 {
			return nil, fmt.Errorf("%v overflows %s", f, t)
		}
		return int64(f), nil
	case string:
		if dynamic {
			i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("convert %q to %s: %w", x, t, err)
			}
			return i, nil
		}
	case bool:
		if x {
			return int64(1), nil
		}
		return int64(0), nil
	}
	return nil, fmt.Errorf("cannot convert %T to %s", v, t)
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int16:
		return int64(x), true
	case int8:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

func stringOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func equal(l, r any) bool {
	if l == nil || r == nil {
		return l == nil && r == nil
	}
	if li, ok := asInt(l); ok {
		if ri, ok := asInt(r); ok {
			return li == ri
		}
	}
	if lf, ok := asFloat(l); ok {
		if rf, ok := asFloat(r); ok {
			return lf == rf
		}
	}
	if lt, ok := l.(time.Time); ok {
		if rt, ok := r.(time.Time); ok {
			return lt.Equal(rt)
		}
	}
	return reflect.DeepEqual(l, r)
}

// compare applies an ordering operator. Comparisons with null are false.
func compare(op qmodel.BinaryOp, l, r any) (any, error) {
	if l == nil || r == nil {
		return false, nil
	}
	var c int
	switch {
	case isString(l) && isString(r):
		c = strings.Compare(stringOf(l), stringOf(r))
	case isTime(l) && isTime(r):
		c = l.(time.Time).Compare(r.(time.Time))
	default:
		lf, lok := asFloat(l)
		rf, rok := asFloat(r)
		if !lok || !rok {
			return nil, fmt.Errorf("cannot compare %T %s %T", l, op, r)
		}
		li, liok := asInt(l)
		ri, riok := asInt(r)
		switch {
		case liok && riok:
			c = cmpOrdered(li, ri)
		default:
			c = cmpOrdered(lf, rf)
		}
	}
	switch op {
	case qmodel.OpLess:
		return c < 0, nil
	case qmodel.OpLessEqual:
		return c <= 0, nil
	case qmodel.OpGreater:
		return c > 0, nil
	case qmodel.OpGreaterEqual:
		return c >= 0, nil
	default:
		return nil, fmt.Errorf("unknown comparison %s", op)
	}
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func isString(v any) bool {
	switch v.(type) {
	case string, []byte:
		return true
	default:
		return false
	}
}

func isTime(v any) bool {
	_, ok := v.(time.Time)
	return ok
}

// arithmetic is lifted: a null operand yields null.
func arithmetic(op qmodel.BinaryOp, l, r any) (any, error) {
	if l == nil || r == nil {
		return nil, nil
	}
	if li, ok := asInt(l); ok {
		if ri, ok := asInt(r); ok {
			switch op {
			case qmodel.OpAdd:
				return li + ri, nil
			case qmodel.OpSub:
				return li - ri, nil
			case qmodel.OpMul:
				return li * ri, nil
			case qmodel.OpDiv:
				if ri == 0 {
					return nil, errDivideByZero
				}
				return li / ri, nil
			case qmodel.OpMod:
				if ri == 0 {
					return nil, errDivideByZero
				}
				return li % ri, nil
			}
			return nil, fmt.Errorf("unknown operator %s", op)
		}
	}
	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if !lok || !rok {
		return nil, fmt.Errorf("cannot apply %s to %T and %T", op, l, r)
	}
	switch op {
	case qmodel.OpAdd:
		return lf + rf, nil
	case qmodel.OpSub:
		return lf - rf, nil
	case qmodel.OpMul:
		return lf * rf, nil
	case qmodel.OpDiv:
		return lf / rf, nil
	case qmodel.OpMod:
		return math.Mod(lf, rf), nil
	default:
		return nil, fmt.Errorf("unknown operator %s", op)
	}
}
