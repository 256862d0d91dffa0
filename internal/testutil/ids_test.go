package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialIDs_Sequence(t *testing.T) {
	gen := NewSequentialIDs("load")

	assert.Equal(t, "load-0001", gen.Generate())
	assert.Equal(t, "load-0002", gen.Generate())
	assert.Equal(t, "load-0003", gen.Generate())
}

func TestSequentialIDs_EmptyPrefixDefault(t *testing.T) {
	gen := NewSequentialIDs("")
	assert.Equal(t, "batch-0001", gen.Generate())
}

func TestSequentialIDs_Deterministic(t *testing.T) {
	a := NewSequentialIDs("x")
	b := NewSequentialIDs("x")
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Generate(), b.Generate())
	}
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	gen := NewSequentialIDs("")
	const goroutines = 10
	const calls = 100

	var mu sync.Mutex
	seen := make(map[string]bool)

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				id := gen.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, goroutines*calls, "ids must be unique")
	assert.True(t, seen["batch-1000"])
}
