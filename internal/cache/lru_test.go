package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](2)
	c.Add("a", 1)
	c.Add("b", 2)

	_, ok := c.Get("a") // a becomes MRU
	require.True(t, ok)
	c.Add("c", 3)

	_, ok = c.Get("b")
	require.False(t, ok)
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.Equal(t, 2, c.Len())
}

func TestLRU_UpdateKeepsSize(t *testing.T) {
	c := New[string, int](2)
	c.Add("a", 1)
	c.Add("a", 10)
	v, _ := c.Get("a")
	require.Equal(t, 10, v)
	require.Equal(t, 1, c.Len())
}

func TestLRU_RemoveFunc(t *testing.T) {
	type key struct {
		slug    string
		version int
	}
	c := New[key, string](8)
	c.Add(key{"a", 1}, "x")
	c.Add(key{"a", 2}, "y")
	c.Add(key{"b", 1}, "z")

	require.Equal(t, 2, c.RemoveFunc(func(k key) bool { return k.slug == "a" }))
	require.Equal(t, 1, c.Len())
}

func TestLRU_ConcurrentUse(t *testing.T) {
	c := New[string, int](16)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				k := fmt.Sprintf("k%d", (i+j)%32)
				c.Add(k, j)
				c.Get(k)
			}
		}(i)
	}
	wg.Wait()
	require.LessOrEqual(t, c.Len(), 16)
}

func TestNew_PanicsOnZeroCapacity(t *testing.T) {
	require.Panics(t, func() { New[string, int](0) })
}
