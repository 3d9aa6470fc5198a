package testfixtures

import (
	"fmt"
	"sync"
)

// IDGenerator produces deterministic eight character hex suffixes, the same
// shape as the random part of a session identifier.
type IDGenerator struct {
	mu      sync.Mutex
	counter uint32
}

// NewIDGenerator constructs a generator whose first value is start+1.
func NewIDGenerator(start uint32) *IDGenerator {
	return &IDGenerator{counter: start}
}

// Next returns the next suffix in the sequence.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("%08x", g.counter)
}

// NextFunc exposes Next as a function suitable for dependency injection.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "00000000" }
	}
	return g.Next
}

// Reset rewinds the sequence so that the next value is start+1.
func (g *IDGenerator) Reset(start uint32) {
	g.mu.Lock()
	g.counter = start
	g.mu.Unlock()
}
