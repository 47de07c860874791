// Package registry maps callables of the expression graph to generators
// that emit their target IR equivalent.
package registry

import (
	"fmt"
	"sort"

	"github.com/roach88/querylift/internal/qmodel"
	"github.com/roach88/querylift/internal/queryir"
)

// Generator emits the IR for one registered method or member.
type Generator interface {
	// BuildIR combines the emitted receiver (nil for static callables) and
	// arguments into one IR node.
	BuildIR(receiver queryir.Node, args []queryir.Node) (queryir.Node, error)

	// IgnoreInstance reports whether the receiver is not part of the
	// emitted IR. A call on a captured constant receiver is translatable
	// only when its generator ignores the receiver.
	IgnoreInstance() bool
}

// Registry is an immutable lookup from callable keys to generators.
// It is safe for concurrent use.
type Registry struct {
	methods map[string]Generator
	members map[string]Generator
}

// Method returns the generator registered for m.
func (r *Registry) Method(m *qmodel.Method) (Generator, bool) {
	if r == nil || m == nil {
		return nil, false
	}
	g, ok := r.methods[m.Key()]
	return g, ok
}

// Member returns the generator registered for m.
func (r *Registry) Member(m *qmodel.MemberInfo) (Generator, bool) {
	if r == nil || m == nil {
		return nil, false
	}
	g, ok := r.members[m.Key()]
	return g, ok
}

// Keys lists registered method and member keys, sorted.
func (r *Registry) Keys() (methods, members []string) {
	for k := range r.methods {
		methods = append(methods, k)
	}
	for k := range r.members {
		members = append(members, k)
	}
	sort.Strings(methods)
	sort.Strings(members)
	return methods, members
}

// Builder collects registrations. Build freezes them into a Registry.
type Builder struct {
	methods map[string]Generator
	members map[string]Generator
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		methods: make(map[string]Generator),
		members: make(map[string]Generator),
	}
}

// Method registers g for the method key (DeclaringType.Name).
func (b *Builder) Method(key string, g Generator) error {
	if _, dup := b.methods[key]; dup {
		return fmt.Errorf("method %q registered twice", key)
	}
	b.methods[key] = g
	return nil
}

// Member registers g for the member key (DeclaringType.Name).
func (b *Builder) Member(key string, g Generator) error {
	if _, dup := b.members[key]; dup {
		return fmt.Errorf("member %q registered twice", key)
	}
	b.members[key] = g
	return nil
}

// Build returns an immutable copy of the registrations.
func (b *Builder) Build() *Registry {
	r := &Registry{
		methods: make(map[string]Generator, len(b.methods)),
		members: make(map[string]Generator, len(b.members)),
	}
	for k, g := range b.methods {
		r.methods[k] = g
	}
	for k, g := range b.members {
		r.members[k] = g
	}
	return r
}

// Builtins returns a builder preloaded with the string functions every
// backend supports.
func Builtins() *Builder {
	b := NewBuilder()
	// Keys are fixed and distinct; registration cannot fail.
	_ = b.Member("string.Length", &FunctionGenerator{Name: "length"})
	_ = b.Method("string.ToUpper", &FunctionGenerator{Name: "upper"})
	_ = b.Method("string.ToLower", &FunctionGenerator{Name: "lower"})
	_ = b.Method("string.Trim", &FunctionGenerator{Name: "trim"})
	_ = b.Method("string.Substring", &FunctionGenerator{Name: "substring"})
	_ = b.Method("string.Concat", &FunctionGenerator{Name: "concat", Ignore: true})
	_ = b.Method("string.Contains", &LikeGenerator{Mode: LikeContains})
	_ = b.Method("string.StartsWith", &LikeGenerator{Mode: LikeStartsWith})
	_ = b.Method("string.EndsWith", &LikeGenerator{Mode: LikeEndsWith})
	_ = b.Method("string.Equals", &BinaryGenerator{Op: queryir.OpEq})
	return b
}
