package forecast

import (
	"math"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/calendar"
	"MarketPulse/internal/services/features"
	"MarketPulse/internal/services/series"
	"MarketPulse/pkg/config"
	"MarketPulse/pkg/logger"
)

// Predict walks the state forward one day at a time for the given horizon.
// Each day's prediction is fed back as lag and rolling input for the next,
// so the loop is strictly sequential. The state itself is not modified.
func (e *Engine) Predict(s *State, days int) ([]models.PredictionPoint, error) {
	start := time.Now()
	if days < 1 || days > e.cfg.Predictor.MaxHorizon {
		pid := ""
		if s != nil {
			pid = s.ProductID
		}
		return nil, newError(ErrParameter, pid, "predict",
			"days=%d outside [1, %d]", days, e.cfg.Predictor.MaxHorizon)
	}
	if !s.Trained() {
		pid := ""
		if s != nil {
			pid = s.ProductID
		}
		return nil, newError(ErrPrecondition, pid, "predict", "state has no seed row; train or load a model first")
	}

	pc := e.cfg.Predictor
	tier := pc.TierFor(s.TrainingRows)
	w := 0.0
	if s.HasModel() {
		w = s.Weights.Model
	}
	conf := models.ConfidenceMedium
	switch {
	case s.Mode == models.ModeColdStart:
		conf = models.ConfidenceLow
	case w >= e.cfg.Ensemble.HighConfidence:
		conf = models.ConfidenceHigh
	}
	trend := 1 + s.Physics.Momentum.Combined*pc.TrendScale
	anchor := s.LastDate
	if anchor.IsZero() {
		anchor = calendar.Day(e.clock())
	}
	band := pc.UncertaintyZ * s.Metrics.StdError

	state := s.seed()
	points := make([]models.PredictionPoint, 0, days)
	preds := make([]float64, 0, days)

	for i := 0; i < days; i++ {
		date := anchor.AddDate(0, 0, i+1)
		row := e.features.PredictionRow(date, state, s.Stats.DowPatterns)
		roll7, lag1, dowAvg := row[features.RollMean7], row[features.Lag1], row[features.DowAvg]

		est := roll7
		if w > 0 {
			est = e.modelEstimate(s, row, roll7)
		}
		rule := math.Max(0, (pc.LagWeight*lag1+pc.RollWeight*roll7+pc.DowWeight*dowAvg)*trend)
		value := w*est + (1-w)*rule
		value *= 1 + (e.calendarFactor(date, s, tier)-1)*(1-w)

		pred := max(int(math.Round(value)), pc.MinQuantity)
		if i > 0 {
			pred = smooth(pred, int(preds[i-1]), tier.MaxChange)
			pred = max(pred, pc.MinQuantity)
		}
		preds = append(preds, float64(pred))
		points = append(points, e.point(date, pred, band, conf))

		e.advance(state, row, preds, i)
	}

	if pc.Rescale.Enabled {
		e.rescale(s, points, band)
	}
	e.metrics.RecordPrediction(days, time.Since(start))
	return points, nil
}

// modelEstimate scores the row with the fitted booster, falling back to the
// rolling mean when inference fails.
func (e *Engine) modelEstimate(s *State, row map[string]float64, fallback float64) float64 {
	v, err := s.Model.Predict(features.Vectorize(row, s.Features))
	if err == nil && !series.Finite(v) {
		err = ErrModelInference
	}
	if err != nil {
		e.metrics.RecordInferenceFallback()
		e.log.Warn("model inference failed, using rolling mean",
			logger.String("product_id", s.ProductID), logger.Error(err))
		return fallback
	}
	return math.Max(0, v)
}

// calendarFactor blends the learned weekday ratio with the default weekday
// uplift according to the data-quality tier, then applies payday and
// special-date multipliers. Thin tiers never let a weekend fall below the
// default uplift.
func (e *Engine) calendarFactor(date time.Time, s *State, tier config.QualityTier) float64 {
	dow := calendar.Weekday(date)
	weekend := e.cal.IsWeekendDay(dow)
	def := 1.0
	if weekend {
		def = e.cfg.Predictor.WeekendUplift
	}
	learned := def
	if v, ok := s.Stats.DowPatterns[dow]; ok && s.Stats.Mean > 0 {
		learned = v / s.Stats.Mean
	}
	f := tier.LearnedWeight*learned + (1-tier.LearnedWeight)*def
	if weekend && tier.BiasCorrect && f < def {
		f = def
	}
	return f * e.cal.PaydayFactor(date) * e.cal.SpecialFactor(date)
}

// smooth caps the day-over-day change of an integer forecast at frac of prev.
func smooth(pred, prev int, frac float64) int {
	if prev <= 0 {
		return pred
	}
	p := float64(prev)
	lo := int(math.Ceil(p*(1-frac) - 1e-9))
	hi := int(math.Floor(p*(1+frac) + 1e-9))
	return min(max(pred, lo), hi)
}

// advance rolls the walk state forward after predicting day i.
func (e *Engine) advance(state, row map[string]float64, preds []float64, i int) {
	pred := preds[i]
	lag1 := row[features.Lag1]
	state[features.Lag3] = row[features.Lag2]
	state[features.Lag2] = lag1
	state[features.Lag1] = pred
	if i >= 6 {
		state[features.Lag7] = preds[i-6]
	}
	state[features.Diff1] = pred - lag1
	state[features.Roc1] = 0
	if lag1 != 0 {
		state[features.Roc1] = (pred - lag1) / lag1
	}
	state[features.Ema7] = emaStep(row[features.Ema7], pred, 7)
	state[features.Ema14] = emaStep(row[features.Ema14], pred, 14)

	window := preds[max(0, len(preds)-7):]
	state[features.RollMean7] = series.Mean(window)
	if len(preds) >= 3 {
		state[features.RollMean3] = series.Mean(preds[len(preds)-3:])
	} else {
		state[features.RollMean3] = pred
	}
}

func emaStep(prev, x float64, span int) float64 {
	alpha := 2 / (float64(span) + 1)
	return alpha*x + (1-alpha)*prev
}

func (e *Engine) point(date time.Time, pred int, band float64, conf models.Confidence) models.PredictionPoint {
	dow := calendar.Weekday(date)
	lower := max(0, int(math.Round(float64(pred)-band)))
	upper := max(pred, int(math.Round(float64(pred)+band)))
	return models.PredictionPoint{
		Date:              date,
		DateString:        date.Format(dateLayout),
		PredictedQuantity: pred,
		LowerBound:        min(lower, pred),
		UpperBound:        upper,
		Confidence:        conf,
		DayOfWeek:         dow,
		IsWeekend:         e.cal.IsWeekendDay(dow),
	}
}

// rescale pulls the whole horizon back towards the last known weekly
// baseline when its mean has drifted past the configured threshold.
func (e *Engine) rescale(s *State, points []models.PredictionPoint, band float64) {
	rc := e.cfg.Predictor.Rescale
	baseline := s.LastRow[features.RollMean7]
	if baseline <= 0 {
		baseline = s.Stats.Mean
	}
	sum := 0.0
	for _, p := range points {
		sum += float64(p.PredictedQuantity)
	}
	mean := sum / float64(len(points))
	if baseline <= 0 || mean <= 0 || math.Abs(mean/baseline-1) <= rc.Threshold {
		return
	}
	factor := series.Clamp(baseline/mean, rc.MinFactor, rc.MaxFactor)
	for i, p := range points {
		pred := max(int(math.Round(float64(p.PredictedQuantity)*factor)), e.cfg.Predictor.MinQuantity)
		points[i] = e.point(p.Date, pred, band, p.Confidence)
	}
	e.log.Info("forecast rescaled towards baseline",
		logger.String("product_id", s.ProductID),
		logger.Float64("forecast_mean", mean),
		logger.Float64("baseline", baseline),
		logger.Float64("factor", factor))
}
