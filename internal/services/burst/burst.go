// Package burst flags the last observed day when it departs from the demand
// expected by a rolling baseline scaled by calendar factors.
package burst

import (
	"math"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/calendar"
	"MarketPulse/internal/services/series"
	"MarketPulse/pkg/config"
)

type Detector struct {
	cfg config.BurstConfig
	cal *calendar.Calendar
}

func NewDetector(cfg config.BurstConfig, cal *calendar.Calendar) *Detector {
	return &Detector{cfg: cfg, cal: cal}
}

// Detect scores the last record of a date-sorted history. Dates and
// quantities must have equal length.
func (d *Detector) Detect(dates []time.Time, q []float64) models.Burst {
	n := len(q)
	if n == 0 || len(dates) != n {
		return models.Burst{Level: models.BurstNormal}
	}

	global := series.Mean(q)
	baseline := series.RollingMean(q, d.cfg.BaselineWindow, 1)
	dowFactor := d.dowFactors(dates, q, global)

	residuals := make([]float64, n)
	var last models.BurstFactors
	expectedLast := 0.0
	for i := range q {
		f := models.BurstFactors{
			Baseline:  baseline[i],
			DayOfWeek: dowFactor[calendar.Weekday(dates[i])],
			Payday:    d.cal.PaydayFactor(dates[i]),
			Special:   d.cal.SpecialFactor(dates[i]),
		}
		expected := f.Baseline * f.DayOfWeek * f.Payday * f.Special
		residuals[i] = q[i] - expected
		if i == n-1 {
			last, expectedLast = f, expected
		}
	}

	sigma := series.SampleStd(residuals)
	if !series.Finite(sigma) || sigma == 0 {
		sigma = 1
		if global > 0 {
			sigma = global * d.cfg.ResidualFallbackRatio
		}
	}

	b := models.Burst{
		Actual:   q[n-1],
		Expected: expectedLast,
		Score:    (q[n-1] - expectedLast) / sigma,
		Factors:  last,
	}
	b.Level = d.level(b.Score)
	if b.Level != models.BurstNormal {
		b.Type = d.classify(dates, q, b.Score)
	}
	return b
}

// dowFactors is mean(quantity on weekday) / global mean, 1 for unseen days.
func (d *Detector) dowFactors(dates []time.Time, q []float64, global float64) [7]float64 {
	var sum [7]float64
	var cnt [7]int
	for i, t := range dates {
		w := calendar.Weekday(t)
		sum[w] += q[i]
		cnt[w]++
	}
	var out [7]float64
	for w := range out {
		out[w] = 1
		if cnt[w] > 0 && global != 0 && series.Finite(global) {
			out[w] = (sum[w] / float64(cnt[w])) / global
		}
	}
	return out
}

func (d *Detector) level(score float64) models.BurstLevel {
	switch {
	case score > d.cfg.Critical:
		return models.BurstCritical
	case score > d.cfg.Significant:
		return models.BurstSignificant
	case score > d.cfg.Mild:
		return models.BurstMild
	default:
		return models.BurstNormal
	}
}

func (d *Detector) classify(dates []time.Time, q []float64, score float64) models.BurstType {
	start := max(0, len(q)-d.cfg.SeasonalWindow)
	var weekend, weekday []float64
	for i := start; i < len(q); i++ {
		if d.cal.IsWeekend(dates[i]) {
			weekend = append(weekend, q[i])
		} else {
			weekday = append(weekday, q[i])
		}
	}
	if len(weekend) > 0 && len(weekday) > 0 &&
		series.Mean(weekend) > series.Mean(weekday)*d.cfg.WeekendSeasonalRatio {
		return models.BurstTypeSeasonal
	}
	if score > d.cfg.Viral {
		return models.BurstTypeViral
	}
	return models.BurstTypeMonitoring
}

// PriorityScore blends trend direction with burst intensity into one scalar.
func PriorityScore(m models.Momentum, b models.Burst, cfg config.PriorityConfig) float64 {
	mom := series.Clamp(m.Combined, -1, 1)
	burst := series.Clamp(b.Score/cfg.BurstDivisor, 0, 1)
	p := cfg.MomentumWeight*mom + cfg.BurstWeight*burst
	if math.IsNaN(p) {
		return 0
	}
	return p
}
