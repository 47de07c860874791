package qmodel

// TypeKind classifies the static type of an expression.
type TypeKind int

const (
	TypeObject TypeKind = iota
	TypeInt
	TypeInt64
	TypeFloat
	TypeDecimal
	TypeString
	TypeBool
	TypeDateTime
	TypeEnum
	TypeEntity
	TypeAnonymous
	TypeClass
	TypeArray
	TypeVoid
)

var typeKindNames = map[TypeKind]string{
	TypeObject:    "object",
	TypeInt:       "int",
	TypeInt64:     "int64",
	TypeFloat:     "float",
	TypeDecimal:   "decimal",
	TypeString:    "string",
	TypeBool:      "bool",
	TypeDateTime:  "datetime",
	TypeEnum:      "enum",
	TypeEntity:    "entity",
	TypeAnonymous: "anonymous",
	TypeClass:     "class",
	TypeArray:     "array",
	TypeVoid:      "void",
}

func (k TypeKind) String() string {
	if s, ok := typeKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Type describes the static type of an expression node.
//
// Types are immutable once built. Identity is structural: two *Type values
// describing the same kind, name, package and nullability are the same type
// (see SameType).
type Type struct {
	Kind TypeKind
	Name string

	// Package is empty for built-in scalars and for anonymous shapes.
	// A user-defined class or entity always has a package.
	Package string

	// Nullable marks a value type wrapped in a nullable container.
	// Reference kinds are always nullable, see IsNullableOrReference.
	Nullable bool

	// Elem is the element type of an array.
	Elem *Type

	// Underlying is the integral storage type of an enum.
	Underlying *Type
}

// Built-in scalar types.
var (
	Object   = &Type{Kind: TypeObject, Name: "object"}
	Int      = &Type{Kind: TypeInt, Name: "int"}
	Int64    = &Type{Kind: TypeInt64, Name: "int64"}
	Float    = &Type{Kind: TypeFloat, Name: "float"}
	Decimal  = &Type{Kind: TypeDecimal, Name: "decimal"}
	String   = &Type{Kind: TypeString, Name: "string"}
	Bool     = &Type{Kind: TypeBool, Name: "bool"}
	DateTime = &Type{Kind: TypeDateTime, Name: "datetime"}
	Void     = &Type{Kind: TypeVoid, Name: "void"}
)

// NullableOf returns the nullable form of a value type. Reference types are
// returned unchanged.
func NullableOf(t *Type) *Type {
	if t.IsNullableOrReference() {
		return t
	}
	c := *t
	c.Nullable = true
	return &c
}

// NonNullable strips the nullable wrapper from a value type.
func NonNullable(t *Type) *Type {
	if !t.Nullable {
		return t
	}
	c := *t
	c.Nullable = false
	return &c
}

// ArrayOf returns the array type with the given element type.
func ArrayOf(elem *Type) *Type {
	return &Type{Kind: TypeArray, Name: elem.Name + "[]", Elem: elem}
}

// EnumType declares an enum stored as the given integral type.
func EnumType(pkg, name string, underlying *Type) *Type {
	return &Type{Kind: TypeEnum, Name: name, Package: pkg, Underlying: underlying}
}

// EntityType declares a mapped persistent type.
func EntityType(pkg, name string) *Type {
	return &Type{Kind: TypeEntity, Name: name, Package: pkg}
}

// ClassType declares a user-defined, non-persistent class.
func ClassType(pkg, name string) *Type {
	return &Type{Kind: TypeClass, Name: name, Package: pkg}
}

// AnonymousType declares a structural shape with no user-defined identity.
func AnonymousType(name string) *Type {
	return &Type{Kind: TypeAnonymous, Name: name}
}

// IsNullableOrReference reports whether a null value is a legal value of t.
func (t *Type) IsNullableOrReference() bool {
	if t == nil || t.Nullable {
		return true
	}
	switch t.Kind {
	case TypeString, TypeEntity, TypeAnonymous, TypeClass, TypeArray, TypeObject:
		return true
	default:
		return false
	}
}

// IsAnonymous reports whether t is a structural shape. Only such shapes can
// be projected server-side with aliases.
func (t *Type) IsAnonymous() bool {
	return t != nil && t.Kind == TypeAnonymous && t.Package == ""
}

// IsEnum reports whether t (or its non-nullable form) is an enum.
func (t *Type) IsEnum() bool {
	return t != nil && t.Kind == TypeEnum
}

// IsNumeric reports whether t holds numbers.
func (t *Type) IsNumeric() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case TypeInt, TypeInt64, TypeFloat, TypeDecimal:
		return true
	default:
		return false
	}
}

// QualifiedName returns package.name, or just the name when there is no
// package.
func (t *Type) QualifiedName() string {
	if t.Package == "" {
		return t.Name
	}
	return t.Package + "." + t.Name
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	if t.Nullable {
		return t.Name + "?"
	}
	return t.Name
}

// SameType reports structural type identity.
func SameType(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Kind != b.Kind || a.Name != b.Name || a.Package != b.Package || a.Nullable != b.Nullable {
		return false
	}
	if a.Kind == TypeArray {
		return SameType(a.Elem, b.Elem)
	}
	return true
}
