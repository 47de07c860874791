package catalog

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/querylift/internal/qmodel"
	"github.com/roach88/querylift/internal/queryir"
)

// CompileError is a catalog problem with its CUE source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

// CompileValue builds a Catalog from a CUE value holding the top-level
// namespace, builtins, enum, entity, function and flattenable fields.
func CompileValue(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	c := &Catalog{
		Package:  DefaultPackage,
		Entities: make(map[string]*Entity),
		Enums:    make(map[string]*Enum),
		builtins: true,
	}

	if pkg := v.LookupPath(cue.ParsePath("namespace")); pkg.Exists() {
		s, err := pkg.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		c.Package = s
	}
	if b := v.LookupPath(cue.ParsePath("builtins")); b.Exists() {
		on, err := b.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		c.builtins = on
	}

	// Enums first: entity properties may refer to them.
	if err := c.parseEnums(v.LookupPath(cue.ParsePath("enum"))); err != nil {
		return nil, err
	}
	if err := c.parseEntities(v.LookupPath(cue.ParsePath("entity"))); err != nil {
		return nil, err
	}
	if err := c.parseFunctions(v.LookupPath(cue.ParsePath("function"))); err != nil {
		return nil, err
	}
	if err := c.parseFlattenable(v.LookupPath(cue.ParsePath("flattenable"))); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) parseEnums(v cue.Value) error {
	if !v.Exists() {
		return nil
	}
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		ev := iter.Value()

		underlying := qmodel.Int
		if u := ev.LookupPath(cue.ParsePath("underlying")); u.Exists() {
			s, err := u.String()
			if err != nil {
				return formatCUEError(err)
			}
			t, ok := scalarTypes[s]
			if !ok || (t.Kind != qmodel.TypeInt && t.Kind != qmodel.TypeInt64) {
				return &CompileError{
					Field:   "enum." + name + ".underlying",
					Message: fmt.Sprintf("enum storage must be an integral type, got %q", s),
					Pos:     u.Pos(),
				}
			}
			underlying = t
		}

		e := &Enum{
			Name:   name,
			Type:   qmodel.EnumType(c.Package, name, underlying),
			Values: make(map[string]int64),
		}
		if vals := ev.LookupPath(cue.ParsePath("values")); vals.Exists() {
			vi, err := vals.Fields()
			if err != nil {
				return formatCUEError(err)
			}
			for vi.Next() {
				n, err := vi.Value().Int64()
				if err != nil {
					return formatCUEError(err)
				}
				e.Values[vi.Label()] = n
			}
		}
		c.Enums[name] = e
	}
	return nil
}

func (c *Catalog) parseEntities(v cue.Value) error {
	if !v.Exists() {
		return nil
	}
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	// Declare every entity type before reading properties so that
	// associations can point forward.
	var names []string
	var values []cue.Value
	for iter.Next() {
		name := iter.Label()
		names = append(names, name)
		c.Entities[name] = &Entity{
			Name:       name,
			Table:      strings.ToLower(name),
			Type:       qmodel.EntityType(c.Package, name),
			Properties: make(map[string]*Property),
		}
		values = append(values, iter.Value())
	}

	for i, ev := range values {
		name := names[i]
		e := c.Entities[name]

		if table := ev.LookupPath(cue.ParsePath("table")); table.Exists() {
			s, err := table.String()
			if err != nil {
				return formatCUEError(err)
			}
			e.Table = s
		}

		props := ev.LookupPath(cue.ParsePath("properties"))
		if !props.Exists() {
			return &CompileError{
				Field:   "entity." + name,
				Message: "properties are required",
				Pos:     ev.Pos(),
			}
		}
		pi, err := props.Fields()
		if err != nil {
			return formatCUEError(err)
		}
		for pi.Next() {
			pname := pi.Label()
			decl, err := pi.Value().String()
			if err != nil {
				return formatCUEError(err)
			}
			t, assoc, err := c.parseType(decl)
			if err != nil {
				return &CompileError{
					Field:   "entity." + name + ".properties." + pname,
					Message: err.Error(),
					Pos:     pi.Value().Pos(),
				}
			}
			e.Properties[pname] = &Property{
				Name:        pname,
				Type:        t,
				Association: assoc,
				Member:      &qmodel.MemberInfo{DeclaringType: e.Type, Name: pname, Type: t},
			}
			e.order = append(e.order, pname)
		}
	}
	return nil
}

var scalarTypes = map[string]*qmodel.Type{
	"int":      qmodel.Int,
	"int64":    qmodel.Int64,
	"float":    qmodel.Float,
	"decimal":  qmodel.Decimal,
	"string":   qmodel.String,
	"bool":     qmodel.Bool,
	"datetime": qmodel.DateTime,
}

// parseType reads a property type: a scalar name, enum:Name or
// entity:Name, with an optional trailing ? for nullable value types.
func (c *Catalog) parseType(decl string) (*qmodel.Type, bool, error) {
	nullable := strings.HasSuffix(decl, "?")
	base := strings.TrimSuffix(decl, "?")

	var t *qmodel.Type
	assoc := false
	switch {
	case strings.HasPrefix(base, "enum:"):
		e, ok := c.Enums[strings.TrimPrefix(base, "enum:")]
		if !ok {
			return nil, false, fmt.Errorf("unknown enum %q", strings.TrimPrefix(base, "enum:"))
		}
		t = e.Type
	case strings.HasPrefix(base, "entity:"):
		e, ok := c.Entities[strings.TrimPrefix(base, "entity:")]
		if !ok {
			return nil, false, fmt.Errorf("unknown entity %q", strings.TrimPrefix(base, "entity:"))
		}
		t = e.Type
		assoc = true
	default:
		s, ok := scalarTypes[base]
		if !ok {
			return nil, false, fmt.Errorf("unknown type %q", base)
		}
		t = s
	}
	if nullable {
		t = qmodel.NullableOf(t)
	}
	return t, assoc, nil
}

func (c *Catalog) parseFunctions(v cue.Value) error {
	if !v.Exists() {
		return nil
	}
	types, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for types.Next() {
		declaring := types.Label()
		fns, err := types.Value().Fields()
		if err != nil {
			return formatCUEError(err)
		}
		for fns.Next() {
			fv := fns.Value()
			field := "function." + declaring + "." + fns.Label()
			spec := FunctionSpec{DeclaringType: declaring, Name: fns.Label(), Kind: FunctionMethod}

			hql := fv.LookupPath(cue.ParsePath("hql"))
			if !hql.Exists() {
				return &CompileError{Field: field, Message: "hql is required", Pos: fv.Pos()}
			}
			if spec.HQL, err = hql.String(); err != nil {
				return formatCUEError(err)
			}

			if k := fv.LookupPath(cue.ParsePath("kind")); k.Exists() {
				s, err := k.String()
				if err != nil {
					return formatCUEError(err)
				}
				switch FunctionKind(s) {
				case FunctionMethod, FunctionMember:
					spec.Kind = FunctionKind(s)
				default:
					return &CompileError{Field: field + ".kind", Message: fmt.Sprintf("kind must be method or member, got %q", s), Pos: k.Pos()}
				}
			}
			if g := fv.LookupPath(cue.ParsePath("generator")); g.Exists() {
				if spec.Generator, err = g.String(); err != nil {
					return formatCUEError(err)
				}
			}
			if ig := fv.LookupPath(cue.ParsePath("ignore_instance")); ig.Exists() {
				if spec.IgnoreInstance, err = ig.Bool(); err != nil {
					return formatCUEError(err)
				}
			}

			if _, err := spec.generator(); err != nil {
				return &CompileError{Field: field, Message: err.Error(), Pos: fv.Pos()}
			}
			if spec.Generator == "binary" && !validBinaryOp(spec.HQL) {
				return &CompileError{Field: field + ".hql", Message: fmt.Sprintf("unknown operator %q", spec.HQL), Pos: hql.Pos()}
			}
			c.functions = append(c.functions, spec)
		}
	}
	return nil
}

func (c *Catalog) parseFlattenable(v cue.Value) error {
	if !v.Exists() {
		return nil
	}
	iter, err := v.List()
	if err != nil {
		return formatCUEError(err)
	}
	kinds := []qmodel.OperatorKind{}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return formatCUEError(err)
		}
		k := qmodel.OperatorKind(s)
		if !k.IsKnown() {
			return &CompileError{
				Field:   "flattenable",
				Message: fmt.Sprintf("unknown result operator %q", s),
				Pos:     iter.Value().Pos(),
			}
		}
		kinds = append(kinds, k)
	}
	c.flattenable = kinds
	return nil
}

func queryirOp(s string) queryir.BinaryOp {
	return queryir.BinaryOp(s)
}

func validBinaryOp(s string) bool {
	switch queryir.BinaryOp(s) {
	case queryir.OpEq, queryir.OpNe, queryir.OpLt, queryir.OpLe, queryir.OpGt, queryir.OpGe,
		queryir.OpAnd, queryir.OpOr, queryir.OpLike,
		queryir.OpAdd, queryir.OpSub, queryir.OpMul, queryir.OpDiv, queryir.OpMod:
		return true
	default:
		return false
	}
}
