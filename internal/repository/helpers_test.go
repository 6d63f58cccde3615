package repository

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/forecast"
	"MarketPulse/pkg/config"
)

var jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testEngine(t *testing.T) *forecast.Engine {
	t.Helper()
	e, err := forecast.NewEngine(config.DefaultForecast(), forecast.WithClock(func() time.Time { return jan1 }))
	require.NoError(t, err)
	return e
}

func history(n int, seed int64) []models.SalesRecord {
	rng := rand.New(rand.NewSource(seed))
	out := make([]models.SalesRecord, n)
	for i := range out {
		d := jan1.AddDate(0, 0, i)
		q := 40.0 + float64(i%7)*2 + rng.Float64()*6
		out[i] = models.SalesRecord{Date: d, Quantity: q}
	}
	return out
}

func trainedState(t *testing.T, productID string, n int) *forecast.State {
	t.Helper()
	s, _, err := testEngine(t).Train(productID, history(n, 7))
	require.NoError(t, err)
	return s
}
