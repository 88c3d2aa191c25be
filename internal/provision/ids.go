package provision

import (
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces record IDs.
// Implemented by UUIDGenerator (production) and FixedIDs (tests).
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator generates random UUIDv4 record IDs.
//
// Record IDs need no ordering, only collision-improbability, so v4 is
// the right variant here.
//
// Thread-safety: UUIDGenerator is stateless and safe for concurrent use.
type UUIDGenerator struct{}

// NewID returns a new hyphenated UUIDv4.
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// FixedIDs returns predetermined IDs for testing.
//
// Deterministic IDs make tags, refs and golden outputs reproducible.
//
// Thread-safety: FixedIDs is safe for concurrent use via internal mutex.
type FixedIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDs creates a generator that returns ids in order.
//
// Panics on exhaustion - a test asking for more IDs than it declared is
// misconfigured and should fail loudly.
func NewFixedIDs(ids ...string) *FixedIDs {
	return &FixedIDs{ids: ids}
}

// NewID returns the next predetermined ID.
func (g *FixedIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedIDs: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
