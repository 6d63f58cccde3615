package forecast

import (
	"math"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/calendar"
	"MarketPulse/internal/services/features"
	"MarketPulse/internal/services/series"
)

// coldStart fills s with summary statistics only. No regressor is fitted and
// the rule estimate carries the full weight; a single record is enough.
func (e *Engine) coldStart(s *State, dates []time.Time, q []float64) {
	n := len(q)
	mean := math.Max(series.Mean(q), 1)
	std := 0.3 * mean
	if n > 1 {
		std = series.Or(series.SampleStd(q), std)
	}
	dataStd := std
	if dataStd == 0 {
		dataStd = 1
	}
	stdErr := 1.5 * std
	if stdErr == 0 {
		stdErr = 0.3 * mean
	}

	last := q[n-1]
	lag7 := mean
	if n >= 7 {
		lag7 = q[n-7]
	}
	next := dates[n-1].AddDate(0, 0, 1)
	dow := calendar.Weekday(next)

	s.Mode = models.ModeColdStart
	s.Model = nil
	s.Features = nil
	s.Stats = features.Stats{
		Mean:        mean,
		Std:         dataStd,
		CV:          dataStd / mean,
		DowPatterns: features.DowMeans(dates, q),
	}
	s.Metrics = models.TrainingMetrics{StdError: stdErr, OverfitRatio: 1, TrainRows: n}
	s.Weights = models.EnsembleWeights{Model: 0, Rule: 1}
	s.LastRow = map[string]float64{
		features.RollMean7: mean,
		features.RollMean3: mean,
		features.Lag1:      math.Max(last, 1),
		features.Lag7:      lag7,
		features.DowAvg:    mean,
		features.Ema7:      mean,
		features.DayOfWeek: float64(dow),
		features.IsWeekend: boolf(e.cal.IsWeekendDay(dow)),
	}
}

func boolf(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
