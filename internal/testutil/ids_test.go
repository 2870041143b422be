package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedIDGenerator_ReturnsSameID(t *testing.T) {
	gen := NewFixedIDGenerator("cycle-123")

	assert.Equal(t, "cycle-123", gen.Generate())
	assert.Equal(t, "cycle-123", gen.Generate())
}

func TestFixedIDGenerator_EmptyIDDefault(t *testing.T) {
	gen := NewFixedIDGenerator("")
	assert.Equal(t, "test-cycle-default", gen.Generate())
}

func TestSequenceIDGenerator_Increments(t *testing.T) {
	gen := NewSequenceIDGenerator("tmp")

	assert.Equal(t, "tmp-0001", gen.Generate())
	assert.Equal(t, "tmp-0002", gen.Generate())
	assert.Equal(t, "tmp-0003", gen.Generate())
}

func TestSequenceIDGenerator_Reset(t *testing.T) {
	gen := NewSequenceIDGenerator("tmp")
	gen.Generate()
	gen.Generate()

	gen.Reset()
	assert.Equal(t, "tmp-0001", gen.Generate())
}

func TestSequenceIDGenerator_ConcurrentUnique(t *testing.T) {
	gen := NewSequenceIDGenerator("c")

	var mu sync.Mutex
	seen := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := gen.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1000)
}
