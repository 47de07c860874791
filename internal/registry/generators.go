package registry

import (
	"fmt"

	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/queryir"
)

// FunctionGenerator emits Name(receiver, args...). The receiver is dropped
// when Ignore is set.
type FunctionGenerator struct {
	Name   string
	Ignore bool
}

func (g *FunctionGenerator) BuildIR(receiver queryir.Node, args []queryir.Node) (queryir.Node, error) {
	all := make([]queryir.Node, 0, len(args)+1)
	if receiver != nil && !g.Ignore {
		all = append(all, receiver)
	}
	all = append(all, args...)
	return &queryir.Call{Name: g.Name, Args: all}, nil
}

func (g *FunctionGenerator) IgnoreInstance() bool { return g.Ignore }

// BinaryGenerator emits an operator between the receiver and the single
// argument, or between two arguments of a static call.
type BinaryGenerator struct {
	Op queryir.BinaryOp
}

func (g *BinaryGenerator) BuildIR(receiver queryir.Node, args []queryir.Node) (queryir.Node, error) {
	operands := args
	if receiver != nil {
		operands = append([]queryir.Node{receiver}, args...)
	}
	if len(operands) != 2 {
		return nil, fmt.Errorf("operator %s needs 2 operands, got %d", g.Op, len(operands))
	}
	return &queryir.Binary{Op: g.Op, Left: operands[0], Right: operands[1]}, nil
}

func (g *BinaryGenerator) IgnoreInstance() bool { return false }

// LikeMode selects where the pattern is anchored.
type LikeMode int

const (
	LikeContains LikeMode = iota
	LikeStartsWith
	LikeEndsWith
)

// LikeGenerator emits receiver like concat(...) with % wildcards.
type LikeGenerator struct {
	Mode LikeMode
}

func (g *LikeGenerator) BuildIR(receiver queryir.Node, args []queryir.Node) (queryir.Node, error) {
	if receiver == nil || len(args) != 1 {
		return nil, fmt.Errorf("like needs a receiver and 1 argument, got %d", len(args))
	}
	wildcard := &queryir.Constant{Value: ir.IRString("%")}
	var parts []queryir.Node
	switch g.Mode {
	case LikeContains:
		parts = []queryir.Node{wildcard, args[0], wildcard}
	case LikeStartsWith:
		parts = []queryir.Node{args[0], wildcard}
	case LikeEndsWith:
		parts = []queryir.Node{wildcard, args[0]}
	default:
		return nil, fmt.Errorf("unknown like mode %d", g.Mode)
	}
	return &queryir.Binary{
		Op:    queryir.OpLike,
		Left:  receiver,
		Right: &queryir.Call{Name: "concat", Args: parts},
	}, nil
}

func (g *LikeGenerator) IgnoreInstance() bool { return false }
