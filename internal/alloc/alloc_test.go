package alloc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlloc(t *testing.T) {
	a := New(96)
	assert.Equal(t, uint64(96), a.Alloc(40, "root header"))
	assert.Equal(t, uint64(136), a.Alloc(0, "empty"))
	assert.Equal(t, uint64(136), a.Alloc(8, "heap"))
	assert.Equal(t, uint64(144), a.EOF())
	assert.Equal(t, []Span{{96, 40, "root header"}, {136, 8, "heap"}}, a.Spans())
	require.NoError(t, a.Validate())
}

func TestValidateCatchesCorruptSpans(t *testing.T) {
	a := New(96)
	a.Alloc(16, "a")
	a.spans = append(a.spans, Span{Addr: 100, Size: 4, Tag: "b"})
	err := a.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlaps")

	a = New(96)
	a.spans = append(a.spans, Span{Addr: 8, Size: 4, Tag: "early"})
	assert.ErrorContains(t, a.Validate(), "early")
}

func TestConcurrentAlloc(t *testing.T) {
	a := New(0)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				a.Alloc(3, "chunk")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(16*100*3), a.EOF())
	assert.NoError(t, a.Validate())
}
