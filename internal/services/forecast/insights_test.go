package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPulse/internal/domain/models"
)

func pts(values ...int) []models.PredictionPoint {
	out := make([]models.PredictionPoint, len(values))
	for i, v := range values {
		d := jan1.AddDate(0, 0, i+1)
		out[i] = models.PredictionPoint{Date: d, DateString: d.Format(dateLayout), PredictedQuantity: v}
	}
	return out
}

func TestDetectPeak(t *testing.T) {
	p := DetectPeak(pts(10, 40, 12, 10, 9))
	require.NotNil(t, p)
	assert.True(t, p.HasPeak)
	assert.Equal(t, 2, p.PeakDay)
	assert.Equal(t, 40, p.PeakValue)
	assert.Equal(t, "2024-01-03", p.PeakDate)
	assert.InDelta(t, 74.2, p.DeclinePercentage, 0.1)

	assert.Nil(t, DetectPeak(pts(10, 11)))
	assert.Nil(t, DetectPeak(pts(10, 11, 12, 40)))
	assert.Nil(t, DetectPeak(pts(40, 35, 36, 38)))
}

func TestRecommendFollowsMomentum(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, models.ActionNoData, e.Recommend(nil).Action)

	s := &State{Mode: models.ModeColdStart, LastRow: map[string]float64{"roll_mean_7": 12}}
	s.Physics.Momentum.Status = models.MomentumTrendingUp
	r := e.Recommend(s)
	assert.Equal(t, models.ActionIncrease, r.Action)
	assert.Equal(t, 12.0, r.DailyBaseline)

	s.Physics.Momentum.Status = models.MomentumFalling
	assert.Equal(t, models.ActionReduce, e.Recommend(s).Action)
	s.Physics.Momentum.Status = models.MomentumStable
	assert.Equal(t, models.ActionMaintain, e.Recommend(s).Action)
}

func TestAssessQuality(t *testing.T) {
	good := weekendSeries(60, 15, 2)
	r := AssessQuality(good)
	assert.True(t, r.OK, r.Reasons)

	flat := make([]models.SalesRecord, 10)
	for i := range flat {
		flat[i] = models.SalesRecord{Date: jan1.AddDate(0, 0, i*10), Quantity: 5}
	}
	r = AssessQuality(flat)
	assert.False(t, r.OK)
	assert.ElementsMatch(t, []string{ReasonTooFewRows, ReasonFlatData, ReasonLowVariance, ReasonSparseDates}, r.Reasons)
}

func TestRemoveOutliers(t *testing.T) {
	dates := make([]time.Time, 12)
	q := make([]float64, 12)
	for i := range q {
		dates[i] = jan1.AddDate(0, 0, i)
		q[i] = 10 + float64(i%2)
	}
	q[5] = 1000
	d, out := RemoveOutliers(dates, q, 3)
	assert.Len(t, out, 11)
	assert.Len(t, d, 11)
	assert.NotContains(t, out, 1000.0)

	_, short := RemoveOutliers(dates[:5], q[:5], 3)
	assert.Len(t, short, 5)
}

func TestHealth(t *testing.T) {
	e := newTestEngine(t)
	s, _, err := e.Train("sku-h", weekendSeries(40, 4, 9))
	require.NoError(t, err)
	h := s.Health()
	assert.Equal(t, "sku-h", h.ProductID)
	assert.True(t, h.Trained)
	assert.Equal(t, models.ModeMLTrained, h.Mode)
	assert.NotNil(t, h.BaselineMAE)
	assert.Equal(t, "2024-02-09", h.LastDate)

	var none *State
	assert.False(t, none.Health().Trained)
}
