package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCHSalesStoreQueries(t *testing.T) {
	s := newCHSalesStore(nil, "mp.sales_daily", BreakerSettings{}, nil)

	assert.Equal(t, "INSERT INTO mp.sales_daily (product_id, day, quantity)", s.insertQuery())
	q := s.historyQuery()
	assert.Contains(t, q, "argMax(quantity, ingested_at)")
	assert.Contains(t, q, "GROUP BY day")
	assert.Contains(t, q, "ORDER BY day")
	assert.Equal(t, "closed", s.BreakerState())
}
