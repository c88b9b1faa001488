package testutil

import (
	"fmt"
	"sync"

	"github.com/tableside/syncengine/internal/domain"
)

// SeqIDGenerator produces predictable IDs for tests: action IDs
// "act-0001", "act-0002", ... and temp IDs "temp_0001", "temp_0002", ...
// Sequential IDs sort lexicographically like UUIDv7 does, so log
// ordering behaves as in production.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SeqIDGenerator struct {
	mu      sync.Mutex
	actions int
	temps   int
}

// NewSeqIDGenerator creates a generator starting at 1.
func NewSeqIDGenerator() *SeqIDGenerator {
	return &SeqIDGenerator{}
}

// NewActionID implements domain.IDGenerator.
func (g *SeqIDGenerator) NewActionID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.actions++
	return fmt.Sprintf("act-%04d", g.actions)
}

// NewTempID implements domain.IDGenerator.
func (g *SeqIDGenerator) NewTempID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.temps++
	return fmt.Sprintf("%s%04d", domain.TempIDPrefix, g.temps)
}

// StaticSession is a session provider with a fixed actor.
// An empty ID simulates an unauthenticated session.
type StaticSession struct {
	ID string
}

// ActorID implements dispatch.Session.
func (s StaticSession) ActorID() string { return s.ID }
