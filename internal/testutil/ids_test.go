package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDs_Sequence(t *testing.T) {
	gen := NewSequentialIDs("run")

	assert.Equal(t, "run-0001", gen.Next())
	assert.Equal(t, "run-0002", gen.Next())
	assert.Equal(t, "run-0003", gen.Next())
}

func TestSequentialIDs_EmptyPrefixDefault(t *testing.T) {
	gen := NewSequentialIDs("")
	assert.Equal(t, "test-0001", gen.Next())
}

func TestSequentialIDs_ConcurrentCallsAreUnique(t *testing.T) {
	gen := NewSequentialIDs("id")
	const n = 200

	var mu sync.Mutex
	seen := make(map[string]bool, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			id := gen.Next()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
}
