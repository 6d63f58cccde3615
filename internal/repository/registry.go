package repository

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"MarketPulse/internal/services/forecast"
)

// RegistryStats is a point-in-time view of registry usage.
type RegistryStats struct {
	Size      int     `json:"size"`
	MaxSize   int     `json:"max_size"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

type registryEntry struct {
	state *forecast.State
	// set before an explicit Delete or Clear so the drop is not counted as an eviction
	dropped atomic.Bool
}

// RegistryRecorder receives hit and miss counts.
type RegistryRecorder interface {
	RecordRegistry(hit bool)
}

// MemoryRegistry maps product ids to served states with LRU eviction and a
// TTL. States are immutable once trained, so a state returned by Get may be
// used without any lock.
type MemoryRegistry struct {
	cache     *expirable.LRU[string, *registryEntry]
	maxSize   int
	metrics   RegistryRecorder
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewMemoryRegistry creates a registry holding at most maxSize states for ttl
// each. A ttl of zero keeps entries until evicted.
func NewMemoryRegistry(maxSize int, ttl time.Duration, metrics RegistryRecorder) *MemoryRegistry {
	if maxSize <= 0 {
		maxSize = 50
	}
	r := &MemoryRegistry{maxSize: maxSize, metrics: metrics}
	r.cache = expirable.NewLRU(maxSize, func(_ string, e *registryEntry) {
		if !e.dropped.Load() {
			r.evictions.Add(1)
		}
	}, ttl)
	return r
}

func (r *MemoryRegistry) Get(productID string) (*forecast.State, bool) {
	e, ok := r.cache.Get(productID)
	if ok {
		r.hits.Add(1)
	} else {
		r.misses.Add(1)
	}
	if r.metrics != nil {
		r.metrics.RecordRegistry(ok)
	}
	if !ok {
		return nil, false
	}
	return e.state, true
}

func (r *MemoryRegistry) Put(productID string, s *forecast.State) {
	r.cache.Add(productID, &registryEntry{state: s})
}

func (r *MemoryRegistry) Delete(productID string) {
	if e, ok := r.cache.Peek(productID); ok {
		e.dropped.Store(true)
	}
	r.cache.Remove(productID)
}

// Clear drops every entry and keeps the counters.
func (r *MemoryRegistry) Clear() {
	for _, e := range r.cache.Values() {
		e.dropped.Store(true)
	}
	r.cache.Purge()
}

func (r *MemoryRegistry) Stats() RegistryStats {
	hits, misses := r.hits.Load(), r.misses.Load()
	st := RegistryStats{
		Size:      r.cache.Len(),
		MaxSize:   r.maxSize,
		Hits:      hits,
		Misses:    misses,
		Evictions: r.evictions.Load(),
	}
	if total := hits + misses; total > 0 {
		st.HitRate = float64(hits) / float64(total)
	}
	return st
}
