package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates batch ids "<prefix>-0001", "<prefix>-0002", ...
//
// This enables deterministic load results and golden snapshot comparison:
// the same fixture loaded with a fresh SequentialIDs produces identical
// batch ids. It satisfies loader.IDGenerator.
//
// Unlike loader.FixedGenerator, which panics once its list is consumed,
// SequentialIDs never runs out.
//
// Thread-safety: SequentialIDs is safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator with the given prefix.
// If prefix is empty, ids start with "batch".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "batch"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
