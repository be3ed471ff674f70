package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs hands out predictable run and snapshot IDs.
//
// The same scenario driven by a fresh SequentialIDs produces byte-identical
// golden output, which random UUIDs would not.
//
// Thread-safety: Next is safe for concurrent use.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs returns a generator whose IDs look like "<prefix>-0001".
// If prefix is empty, "test" is used.
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "test"
	}
	return &SequentialIDs{prefix: prefix}
}

// Next returns the next ID.
func (g *SequentialIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
