package qmodel

import (
	"fmt"
	"strings"
)

// MemberInfo describes a readable property or field.
type MemberInfo struct {
	DeclaringType *Type
	Name          string
	Type          *Type

	// Get reads the member client-side. Optional: members of *Record values
	// are read by name when Get is nil.
	Get func(obj any) (any, error)
}

// Key identifies the member in the function registry.
func (m *MemberInfo) Key() string {
	return m.DeclaringType.Name + "." + m.Name
}

// Method describes a callable. Static methods (and extension methods) are
// invoked without a receiver expression.
type Method struct {
	DeclaringType *Type
	Name          string
	Static        bool
	Params        []*Type
	Result        *Type

	// Invoke runs the method client-side. The receiver is nil for static
	// methods.
	Invoke func(receiver any, args []any) (any, error)
}

// Key identifies the method in the function registry.
func (m *Method) Key() string {
	return m.DeclaringType.Name + "." + m.Name
}

// Constructor describes how a New node builds its value client-side.
type Constructor struct {
	Type   *Type
	Params []*Type

	// Make builds the instance. When nil, a *Record of the constructed type
	// is produced from the New node's member names.
	Make func(args []any) (any, error)

	// Set assigns a member after construction (member-init). When nil, only
	// *Record instances can be initialized.
	Set func(obj any, member string, value any) error
}

// Record is the client-side value of a structural shape: ordered
// name/value pairs.
type Record struct {
	Type   *Type
	Names  []string
	Values []any
}

// NewRecord builds a record with the given member names and values.
func NewRecord(t *Type, names []string, values []any) *Record {
	return &Record{Type: t, Names: names, Values: values}
}

// Get returns the value of the named member.
func (r *Record) Get(name string) (any, bool) {
	for i, n := range r.Names {
		if n == name {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Set assigns or appends the named member.
func (r *Record) Set(name string, value any) {
	for i, n := range r.Names {
		if n == name {
			r.Values[i] = value
			return
		}
	}
	r.Names = append(r.Names, name)
	r.Values = append(r.Values, value)
}

func (r *Record) String() string {
	var sb strings.Builder
	sb.WriteString("{ ")
	for i, n := range r.Names {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s = %v", n, r.Values[i])
	}
	sb.WriteString(" }")
	return sb.String()
}
