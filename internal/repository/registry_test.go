package repository

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPulse/internal/services/forecast"
)

type hitCounter struct {
	mu        sync.Mutex
	hit, miss int
}

func (h *hitCounter) RecordRegistry(hit bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if hit {
		h.hit++
	} else {
		h.miss++
	}
}

func TestRegistryLRU(t *testing.T) {
	r := NewMemoryRegistry(2, 0, nil)
	a, b, c := &forecast.State{ProductID: "a"}, &forecast.State{ProductID: "b"}, &forecast.State{ProductID: "c"}
	r.Put("a", a)
	r.Put("b", b)
	_, ok := r.Get("a")
	require.True(t, ok)
	r.Put("c", c)

	_, ok = r.Get("b")
	assert.False(t, ok, "b was least recently used")
	got, ok := r.Get("a")
	assert.True(t, ok)
	assert.Same(t, a, got)

	st := r.Stats()
	assert.Equal(t, 2, st.Size)
	assert.Equal(t, int64(1), st.Evictions)
	assert.Equal(t, int64(2), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
}

func TestRegistryTTL(t *testing.T) {
	hc := &hitCounter{}
	r := NewMemoryRegistry(50, 40*time.Millisecond, hc)

	r.Put("a", &forecast.State{ProductID: "a"})
	_, ok := r.Get("a")
	assert.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	_, ok = r.Get("a")
	assert.False(t, ok)
	assert.Eventually(t, func() bool { return r.Stats().Size == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), r.Stats().Evictions)

	hc.mu.Lock()
	defer hc.mu.Unlock()
	assert.Equal(t, 1, hc.hit)
	assert.Equal(t, 1, hc.miss)
}

func TestRegistryDeleteAndClear(t *testing.T) {
	r := NewMemoryRegistry(0, 0, nil)
	assert.Equal(t, 50, r.Stats().MaxSize)
	r.Put("a", &forecast.State{})
	r.Put("b", &forecast.State{})
	r.Delete("a")
	assert.Equal(t, 1, r.Stats().Size)
	r.Clear()
	assert.Equal(t, 0, r.Stats().Size)
	assert.Zero(t, r.Stats().Evictions, "explicit removal is not an eviction")
}

func TestRegistryPutReplacesWithoutEviction(t *testing.T) {
	r := NewMemoryRegistry(1, 0, nil)
	first, second := &forecast.State{ProductID: "a"}, &forecast.State{ProductID: "a"}
	r.Put("a", first)
	r.Put("a", second)

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Zero(t, r.Stats().Evictions)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewMemoryRegistry(10, time.Minute, &hitCounter{})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("p%d", (g*7+i)%25)
				if i%3 == 0 {
					r.Put(id, &forecast.State{ProductID: id})
				} else if s, ok := r.Get(id); ok {
					assert.Equal(t, id, s.ProductID)
				}
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, r.Stats().Size, 10)
}
