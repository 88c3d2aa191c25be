package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates "prefix-0001", "prefix-0002", ... so that
// records and workbooks keep stable identities from run to run. The
// same scenario with the same generators produces byte-identical index
// snapshots.
//
// Implements provision.IDGenerator.
//
// Thread-safety: all methods are safe for concurrent use.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator with the given prefix. An empty
// prefix defaults to "id".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "id"
	}
	return &SequentialIDs{prefix: prefix}
}

// NewID returns the next identifier in the sequence.
func (g *SequentialIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Reset restarts the sequence. After Reset the next NewID returns
// "prefix-0001" again.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
