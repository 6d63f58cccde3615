package forecast

import (
	"fmt"
	"math"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/features"
	"MarketPulse/internal/services/series"
)

// Recommend turns momentum into a stocking hint around the weekly baseline.
func (e *Engine) Recommend(s *State) models.Recommendation {
	if !s.Trained() {
		return models.Recommendation{Action: models.ActionNoData, Message: "no trained model"}
	}
	r := models.Recommendation{
		DailyBaseline: s.LastRow[features.RollMean7],
		Momentum:      s.Physics.Momentum.Status,
		Burst:         s.Physics.Burst.Level,
		PriorityScore: s.Physics.PriorityScore,
	}
	switch r.Momentum {
	case models.MomentumTrendingUp, models.MomentumGrowing:
		r.Action = models.ActionIncrease
		r.Message = "increase stock 20-30%"
	case models.MomentumFalling, models.MomentumDeclining:
		r.Action = models.ActionReduce
		r.Message = "reduce stock 10-20%"
	default:
		r.Action = models.ActionMaintain
		r.Message = "maintain current stock levels"
	}
	if r.Burst == models.BurstCritical || r.Burst == models.BurstSignificant {
		r.Message += fmt.Sprintf("; demand burst %s (%s)", r.Burst, s.Physics.Burst.Type)
	}
	return r
}

// DetectPeak reports a forecast that climbs to a maximum and then drops by
// more than a quarter on average over the remaining days.
func DetectPeak(points []models.PredictionPoint) *models.PeakInfo {
	if len(points) < 3 {
		return nil
	}
	maxIdx := 0
	for i, p := range points {
		if p.PredictedQuantity > points[maxIdx].PredictedQuantity {
			maxIdx = i
		}
	}
	peak := float64(points[maxIdx].PredictedQuantity)
	if maxIdx >= len(points)-2 || peak <= 0 {
		return nil
	}
	after := make([]float64, 0, len(points)-maxIdx-1)
	for _, p := range points[maxIdx+1:] {
		after = append(after, float64(p.PredictedQuantity))
	}
	decline := (peak - series.Mean(after)) / peak
	if decline <= 0.25 {
		return nil
	}
	return &models.PeakInfo{
		HasPeak:           true,
		PeakDay:           maxIdx + 1,
		PeakDate:          points[maxIdx].DateString,
		PeakValue:         points[maxIdx].PredictedQuantity,
		DeclinePercentage: math.Round(decline*1000) / 10,
	}
}

// Dataset quality reasons.
const (
	ReasonTooFewRows  = "too_few_rows"
	ReasonFlatData    = "flat_data"
	ReasonLowVariance = "low_variance"
	ReasonSparseDates = "sparse_dates"
)

type QualityReport struct {
	OK       bool     `json:"ok"`
	Rows     int      `json:"rows"`
	Unique   int      `json:"unique_values"`
	CV       float64  `json:"cv"`
	Coverage float64  `json:"date_coverage"`
	Reasons  []string `json:"reasons,omitempty"`
}

// AssessQuality grades a raw history for model training. It is advisory:
// Train accepts any history with at least one positive quantity.
func AssessQuality(history []models.SalesRecord) QualityReport {
	r := QualityReport{Rows: len(history)}
	if r.Rows == 0 {
		r.Reasons = []string{ReasonTooFewRows}
		return r
	}
	q := make([]float64, len(history))
	uniq := make(map[float64]struct{})
	first, last := history[0].Date, history[0].Date
	for i, h := range history {
		q[i] = h.Quantity
		uniq[h.Quantity] = struct{}{}
		if h.Date.Before(first) {
			first = h.Date
		}
		if h.Date.After(last) {
			last = h.Date
		}
	}
	r.Unique = len(uniq)
	if m := series.Mean(q); m != 0 {
		r.CV = series.Or(series.SampleStd(q), 0) / m
	}
	span := int(last.Sub(first)/(24*time.Hour)) + 1
	r.Coverage = float64(r.Rows) / float64(span)

	if r.Rows < 30 {
		r.Reasons = append(r.Reasons, ReasonTooFewRows)
	}
	if r.Unique < 5 {
		r.Reasons = append(r.Reasons, ReasonFlatData)
	}
	if r.CV < 0.10 {
		r.Reasons = append(r.Reasons, ReasonLowVariance)
	}
	if r.Coverage < 0.30 {
		r.Reasons = append(r.Reasons, ReasonSparseDates)
	}
	r.OK = len(r.Reasons) == 0
	return r
}
