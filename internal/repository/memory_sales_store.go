package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
)

// MemorySalesStore keeps sales history in process. Later writes for the same
// day replace earlier ones, matching the ClickHouse table.
type MemorySalesStore struct {
	mu    sync.RWMutex
	days  map[string]map[time.Time]float64
	limit int
}

// NewMemorySalesStore keeps at most maxDays days per product; 0 means no limit.
func NewMemorySalesStore(maxDays int) *MemorySalesStore {
	return &MemorySalesStore{days: make(map[string]map[time.Time]float64), limit: maxDays}
}

func (m *MemorySalesStore) Append(_ context.Context, productID string, records []models.SalesRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byDay, ok := m.days[productID]
	if !ok {
		byDay = make(map[time.Time]float64)
		m.days[productID] = byDay
	}
	for _, r := range records {
		byDay[dayOf(r.Date)] = r.Quantity
	}
	if m.limit > 0 && len(byDay) > m.limit {
		keys := sortedDays(byDay)
		for _, d := range keys[:len(keys)-m.limit] {
			delete(byDay, d)
		}
	}
	return nil
}

func (m *MemorySalesStore) History(_ context.Context, productID string, since time.Time) ([]models.SalesRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byDay := m.days[productID]
	since = dayOf(since)
	out := make([]models.SalesRecord, 0, len(byDay))
	for _, d := range sortedDays(byDay) {
		if d.Before(since) {
			continue
		}
		out = append(out, models.SalesRecord{Date: d, Quantity: byDay[d]})
	}
	return out, nil
}

func (m *MemorySalesStore) Health(context.Context) error { return nil }

func sortedDays(byDay map[time.Time]float64) []time.Time {
	keys := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		keys = append(keys, d)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}

func dayOf(t time.Time) time.Time {
	y, mo, d := t.UTC().Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
