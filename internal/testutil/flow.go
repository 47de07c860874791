package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs names translation sessions prefix-1, prefix-2, and so on
// without running out. Harness scenarios use it so golden plans carry
// stable ids however many queries a scenario holds.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs returns a generator for prefix. An empty prefix means
// "plan".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "plan"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id. It implements session.IDGenerator.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
