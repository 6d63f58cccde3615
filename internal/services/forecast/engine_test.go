package forecast

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/calendar"
	"MarketPulse/internal/services/features"
	"MarketPulse/pkg/config"
)

var jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, mutate ...func(*config.ForecastConfig)) *Engine {
	t.Helper()
	cfg := config.DefaultForecast()
	for _, m := range mutate {
		m(&cfg)
	}
	e, err := NewEngine(cfg, WithClock(func() time.Time { return jan1 }))
	require.NoError(t, err)
	return e
}

// weekendSeries is 50 units on weekdays, 60 on weekends, plus uniform noise.
func weekendSeries(n int, noise float64, seed int64) []models.SalesRecord {
	rng := rand.New(rand.NewSource(seed))
	out := make([]models.SalesRecord, n)
	for i := range out {
		d := jan1.AddDate(0, 0, i)
		q := 50.0
		if calendar.Weekday(d) >= 5 {
			q += 10
		}
		q += (rng.Float64()*2 - 1) * noise
		out[i] = models.SalesRecord{Date: d, Quantity: q}
	}
	return out
}

func meanOf(points []models.PredictionPoint) float64 {
	s := 0.0
	for _, p := range points {
		s += float64(p.PredictedQuantity)
	}
	return s / float64(len(points))
}

func TestEndToEndWeekendSeries(t *testing.T) {
	e := newTestEngine(t)
	history := weekendSeries(60, 3, 1)

	s, res, err := e.Train("sku-1", history)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, models.ModeMLTrained, res.Mode)
	require.NotNil(t, res.Metrics.BaselineMAE)
	assert.Less(t, res.Metrics.ValMAE, *res.Metrics.BaselineMAE)
	assert.Greater(t, res.Metrics.ImprovementPct, 0.0)
	assert.Equal(t, features.ColumnsFor(60), s.Features)
	assert.Equal(t, history[59].Date, s.LastDate)

	points, err := e.Predict(s, 7)
	require.NoError(t, err)
	require.Len(t, points, 7)

	histMean := 0.0
	for _, r := range history {
		histMean += r.Quantity
	}
	histMean /= float64(len(history))
	m := meanOf(points)
	assert.InDelta(t, histMean, m, histMean*0.3)
	assert.GreaterOrEqual(t, m, 50.0)
	assert.LessOrEqual(t, m, 65.0)
}

func TestPredictShapeAndBounds(t *testing.T) {
	e := newTestEngine(t)
	for _, n := range []int{1, 5, 20, 60, 170} {
		s, _, err := e.Train("sku", weekendSeries(n, 8, int64(n)))
		require.NoError(t, err)
		for _, days := range []int{1, 7, 30} {
			points, err := e.Predict(s, days)
			require.NoError(t, err)
			require.Len(t, points, days)
			for i, p := range points {
				assert.GreaterOrEqual(t, p.PredictedQuantity, 1)
				assert.LessOrEqual(t, p.LowerBound, p.PredictedQuantity)
				assert.GreaterOrEqual(t, p.UpperBound, p.PredictedQuantity)
				assert.GreaterOrEqual(t, p.LowerBound, 0)
				assert.Equal(t, p.Date.Format("2006-01-02"), p.DateString)
				assert.Equal(t, calendar.Weekday(p.Date), p.DayOfWeek)
				if i > 0 {
					assert.True(t, p.Date.After(points[i-1].Date))
				} else {
					assert.Equal(t, s.LastDate.AddDate(0, 0, 1), p.Date)
				}
			}
		}
	}
}

func TestColdStartFromSingleRecord(t *testing.T) {
	e := newTestEngine(t)
	s, res, err := e.Train("new-sku", []models.SalesRecord{{Date: jan1, Quantity: 4}})
	require.NoError(t, err)
	assert.Equal(t, models.ModeColdStart, res.Mode)
	assert.Nil(t, res.Metrics.BaselineMAE)
	assert.Equal(t, models.EnsembleWeights{Model: 0, Rule: 1}, res.Weights)
	assert.Nil(t, s.Model)

	points, err := e.Predict(s, 7)
	require.NoError(t, err)
	require.Len(t, points, 7)
	for _, p := range points {
		assert.GreaterOrEqual(t, p.PredictedQuantity, 1)
		assert.GreaterOrEqual(t, p.LowerBound, 0)
		assert.Equal(t, models.ConfidenceLow, p.Confidence)
	}
}

func TestColdStartSeed(t *testing.T) {
	e := newTestEngine(t)
	history := weekendSeries(10, 0, 1)
	s, _, err := e.Train("sku", history)
	require.NoError(t, err)
	require.Equal(t, models.ModeColdStart, s.Mode)
	assert.InDelta(t, history[9].Quantity, s.LastRow[features.Lag1], 1e-12)
	assert.InDelta(t, history[3].Quantity, s.LastRow[features.Lag7], 1e-12)
	assert.InDelta(t, s.Stats.Mean, s.LastRow[features.RollMean7], 1e-12)
	assert.Greater(t, s.Metrics.StdError, 0.0)
}

func TestWeightsAlwaysSumToOne(t *testing.T) {
	e := newTestEngine(t)
	for _, n := range []int{1, 13, 14, 30, 61, 130, 260} {
		_, res, err := e.Train("sku", weekendSeries(n, 6, int64(n)))
		require.NoError(t, err)
		assert.InDelta(t, 1.0, res.Weights.Model+res.Weights.Rule, 1e-9, "n=%d", n)
	}
}

func TestImprovementNeverLowersTrust(t *testing.T) {
	cfg := config.DefaultForecast().Ensemble
	for _, cv := range []float64{0.1, 0.9} {
		for _, overfit := range []float64{1, 2.5, 4} {
			lo := EnsembleWeights(20, cv, overfit, cfg)
			hi := EnsembleWeights(95, cv, overfit, cfg)
			assert.GreaterOrEqual(t, hi.Model, lo.Model)
		}
	}
	prev := 0.0
	for imp := -50.0; imp <= 100; imp += 5 {
		w := EnsembleWeights(imp, 0.2, 1, cfg).Model
		assert.GreaterOrEqual(t, w, prev)
		assert.GreaterOrEqual(t, w, cfg.MinModelWeight)
		assert.LessOrEqual(t, w, cfg.MaxModelWeight)
		prev = w
	}
}

func TestEnsemblePenaltiesFollowConfig(t *testing.T) {
	cfg := config.DefaultForecast().Ensemble
	assert.InDelta(t, 0.85, EnsembleWeights(90, 0.2, 1, cfg).Model, 1e-12)
	assert.InDelta(t, 0.75, EnsembleWeights(90, 0.9, 1, cfg).Model, 1e-12)
	assert.InDelta(t, 0.75, EnsembleWeights(90, 0.2, 2.5, cfg).Model, 1e-12)
	assert.InDelta(t, 0.70, EnsembleWeights(90, 0.2, 3.5, cfg).Model, 1e-12)

	cfg.CVPenalty = 0
	cfg.OverfitSevere = 5
	cfg.OverfitSeverePenalty = 0.3
	assert.InDelta(t, 0.85, EnsembleWeights(90, 0.9, 1, cfg).Model, 1e-12)
	assert.InDelta(t, 0.75, EnsembleWeights(90, 0.2, 3.5, cfg).Model, 1e-12)
	assert.InDelta(t, 0.55, EnsembleWeights(90, 0.2, 6, cfg).Model, 1e-12)
}

func TestSmoothingCapsDailyChange(t *testing.T) {
	e := newTestEngine(t)
	for _, n := range []int{8, 45, 90, 200} {
		history := weekendSeries(n, 20, int64(n))
		history[n-1].Quantity = 400
		s, _, err := e.Train("sku", history)
		require.NoError(t, err)
		tier := e.cfg.Predictor.TierFor(s.TrainingRows)

		points, err := e.Predict(s, 30)
		require.NoError(t, err)
		for i := 1; i < len(points); i++ {
			prev := float64(points[i-1].PredictedQuantity)
			change := math.Abs(float64(points[i].PredictedQuantity)-prev) / prev
			assert.LessOrEqual(t, change, tier.MaxChange+1e-9, "n=%d day=%d", n, i)
		}
	}
}

func TestPredictIsDeterministic(t *testing.T) {
	e := newTestEngine(t)
	s, _, err := e.Train("sku", weekendSeries(90, 5, 3))
	require.NoError(t, err)
	a, err := e.Predict(s, 14)
	require.NoError(t, err)
	b, err := e.Predict(s, 14)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPredictRejectsBadInput(t *testing.T) {
	e := newTestEngine(t)
	s, _, err := e.Train("sku", weekendSeries(20, 2, 1))
	require.NoError(t, err)

	for _, days := range []int{0, -1, 31} {
		_, err := e.Predict(s, days)
		assert.ErrorIs(t, err, ErrParameter)
	}
	_, err = e.Predict(&State{ProductID: "empty"}, 7)
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Contains(t, err.Error(), "empty")
	_, err = e.Predict(nil, 7)
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestTrainErrorTaxonomy(t *testing.T) {
	e := newTestEngine(t)

	_, _, err := e.Train("sku", nil)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, _, err = e.Train("sku", []models.SalesRecord{{Date: jan1, Quantity: 0}, {Date: jan1.AddDate(0, 0, 1), Quantity: -3}})
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.Contains(t, err.Error(), "0 of 2")

	_, _, err = e.Train("sku", []models.SalesRecord{{Quantity: 3}})
	assert.ErrorIs(t, err, ErrDataFormat)
	assert.Equal(t, "data_format", Kind(err))

	_, err = RecordsFromRows("sku", []map[string]any{{"date": "2024-01-01"}})
	assert.ErrorIs(t, err, ErrDataFormat)
	assert.Contains(t, err.Error(), "quantity")

	_, err = RecordsFromRows("sku", []map[string]any{{"date": "soon", "quantity": 1}})
	assert.ErrorIs(t, err, ErrDataFormat)
}

func TestCleaningDeduplicatesLastWins(t *testing.T) {
	e := newTestEngine(t)
	rows, err := RecordsFromRows("sku", []map[string]any{
		{"date": "2024-01-03", "quantity": "7"},
		{"date": "01/01/2024", "quantity": 2.0},
		{"date": "2024-01-03", "quantity": 9},
		{"date": "2024-01-02", "quantity": math.NaN()},
	})
	require.NoError(t, err)
	dates, q, err := e.clean("sku", rows)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{jan1, jan1.AddDate(0, 0, 2)}, dates)
	assert.Equal(t, []float64{2, 9}, q)
}

func TestCleaningLaterZeroRemovesDay(t *testing.T) {
	e := newTestEngine(t)
	day2 := jan1.AddDate(0, 0, 1)
	dates, q, err := e.clean("sku", []models.SalesRecord{
		{Date: jan1, Quantity: 4},
		{Date: day2, Quantity: 12},
		{Date: day2, Quantity: 0},
		{Date: jan1, Quantity: -1},
		{Date: jan1, Quantity: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, []time.Time{jan1}, dates)
	assert.Equal(t, []float64{5}, q)

	_, _, err = e.clean("sku", []models.SalesRecord{{Date: jan1, Quantity: 3}, {Date: jan1, Quantity: 0}})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestAnchorFallsBackToClock(t *testing.T) {
	e := newTestEngine(t)
	s, _, err := e.Train("sku", weekendSeries(5, 0, 1))
	require.NoError(t, err)
	s.LastDate = time.Time{}
	points, err := e.Predict(s, 2)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", points[0].DateString)
}

func TestRescaleIsOffByDefault(t *testing.T) {
	history := []models.SalesRecord{}
	for i := 0; i < 6; i++ {
		history = append(history, models.SalesRecord{Date: jan1.AddDate(0, 0, i), Quantity: 1})
	}
	history = append(history, models.SalesRecord{Date: jan1.AddDate(0, 0, 6), Quantity: 200})

	plain := newTestEngine(t)
	s, _, err := plain.Train("sku", history)
	require.NoError(t, err)
	raw, err := plain.Predict(s, 7)
	require.NoError(t, err)

	rescaling := newTestEngine(t, func(c *config.ForecastConfig) {
		c.Predictor.Rescale.Enabled = true
		c.Predictor.Rescale.Threshold = 0.3
	})
	scaled, err := rescaling.Predict(s, 7)
	require.NoError(t, err)

	assert.Less(t, meanOf(scaled), meanOf(raw))
	for _, p := range scaled {
		assert.GreaterOrEqual(t, p.PredictedQuantity, 1)
		assert.LessOrEqual(t, p.LowerBound, p.PredictedQuantity)
		assert.GreaterOrEqual(t, p.UpperBound, p.PredictedQuantity)
	}
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultForecast()
	cfg.Burst.Critical = 0.5
	_, err := NewEngine(cfg)
	assert.ErrorIs(t, err, ErrParameter)
}
