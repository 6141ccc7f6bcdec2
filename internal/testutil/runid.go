package testutil

import (
	"fmt"
	"sync"
)

// SequentialRunIDs generates "<prefix>-1", "<prefix>-2", ... for digest runs.
//
// Golden traces depend on run IDs being identical between executions, and
// the trace store keys runs by ID, so every digest needs a distinct one.
// If prefix is empty, "run" is used.
type SequentialRunIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialRunIDs creates a generator with the given prefix.
func NewSequentialRunIDs(prefix string) *SequentialRunIDs {
	if prefix == "" {
		prefix = "run"
	}
	return &SequentialRunIDs{prefix: prefix}
}

// Generate returns the next run ID. Implements engine.RunIDGenerator.
func (g *SequentialRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
