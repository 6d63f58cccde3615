package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketPulse/internal/services/calendar"
	"MarketPulse/pkg/config"
)

func newBuilder() *Builder {
	cfg := config.DefaultForecast()
	return NewBuilder(cfg.Features, calendar.New(cfg.Calendar))
}

func history(n int) ([]time.Time, []float64) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, n)
	q := make([]float64, n)
	for i := range q {
		dates[i] = start.AddDate(0, 0, i)
		q[i] = 20 + float64(i%7)*3 + float64(i%5)
	}
	return dates, q
}

func TestFeaturesIgnoreCurrentAndFutureValues(t *testing.T) {
	dates, q := history(60)
	b := newBuilder()
	base := b.Build(dates, q)

	const at = 30
	mutated := append([]float64(nil), q...)
	for i := at; i < len(mutated); i++ {
		mutated[i] = mutated[i]*7 + 500
	}
	changed := b.Build(dates, mutated)

	for _, col := range AllColumns() {
		for i := 0; i <= at; i++ {
			assert.InDelta(t, base.Columns[col][i], changed.Columns[col][i], 1e-9, "column %s row %d", col, i)
		}
	}
}

func TestSingleLateChangeLeavesEarlierRowsAlone(t *testing.T) {
	dates, q := history(60)
	b := newBuilder()
	base := b.Build(dates, q)

	const at = 40
	mutated := append([]float64(nil), q...)
	mutated[at] = 900
	changed := b.Build(dates, mutated)

	for _, col := range AllColumns() {
		for i := 0; i <= at; i++ {
			assert.Equal(t, base.Columns[col][i], changed.Columns[col][i], "column %s row %d", col, i)
		}
	}
	for _, col := range []string{Lag1, RollMean7, RollMin7, RollMax7, DowAvg, Ema7} {
		assert.Zero(t, base.Columns[col][0], "row 0 %s", col)
	}
}

func TestBuildHasNoMissingValues(t *testing.T) {
	dates, q := history(20)
	q[3] = 0
	f := newBuilder().Build(dates, q)
	for _, col := range AllColumns() {
		require.Len(t, f.Columns[col], 20, col)
		for i, v := range f.Columns[col] {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "column %s row %d = %v", col, i, v)
		}
	}
}

func TestRollingMeanUsesPreviousDays(t *testing.T) {
	dates, q := history(10)
	f := newBuilder().Build(dates, q)
	want := (q[0] + q[1] + q[2] + q[3] + q[4] + q[5] + q[6]) / 7
	assert.InDelta(t, want, f.Columns[RollMean7][7], 1e-12)
	assert.InDelta(t, q[6], f.Columns[Lag1][7], 1e-12)
	assert.InDelta(t, q[0], f.Columns[Lag7][7], 1e-12)
}

func TestColumnTiers(t *testing.T) {
	assert.Len(t, ColumnsFor(20), 11)
	assert.Len(t, ColumnsFor(60), 17)
	assert.Len(t, ColumnsFor(100), 28)
	assert.Len(t, ColumnsFor(400), 33)
	assert.Equal(t, AllColumns(), ColumnsFor(400))
	assert.NotContains(t, ColumnsFor(39), Lag14)
	assert.Contains(t, ColumnsFor(40), Lag14)
}

func TestComputeStats(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // Monday
	dates := []time.Time{start, start.AddDate(0, 0, 1), start.AddDate(0, 0, 7)}
	s := newBuilder().ComputeStats(dates, []float64{10, 20, 30})
	assert.InDelta(t, 20, s.Mean, 1e-12)
	assert.InDelta(t, 10, s.Std, 1e-12)
	assert.InDelta(t, 0.5, s.CV, 1e-12)
	assert.Equal(t, map[int]float64{0: 20, 1: 20}, s.DowPatterns)

	flat := newBuilder().ComputeStats(dates[:1], []float64{5})
	assert.Equal(t, 1.0, flat.Std)
}

func TestNextRowSeedsFollowingDay(t *testing.T) {
	dates, q := history(30)
	row := newBuilder().NextRow(dates, q)
	assert.InDelta(t, q[29], row[Lag1], 1e-12)
	assert.InDelta(t, q[23], row[Lag7], 1e-12)
	mean7 := 0.0
	for _, v := range q[23:] {
		mean7 += v
	}
	assert.InDelta(t, mean7/7, row[RollMean7], 1e-12)
	assert.Equal(t, float64(calendar.Weekday(dates[29].AddDate(0, 0, 1))), row[DayOfWeek])
}

func TestPredictionRowDefaults(t *testing.T) {
	b := newBuilder()
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) // Saturday
	row := b.PredictionRow(date, map[string]float64{RollMean7: 10}, map[int]float64{5: 15})
	assert.Equal(t, 10.0, row[Lag1])
	assert.Equal(t, 10.0, row[Lag2])
	assert.Equal(t, 10.0, row[RollMean3])
	assert.Equal(t, 15.0, row[DowAvg])
	assert.InDelta(t, 8.0, row[RollMin7], 1e-12)
	assert.InDelta(t, 12.0, row[RollMax7], 1e-12)
	assert.Equal(t, 1.0, row[IsWeekend])
	assert.InDelta(t, 10.0/15.0, row[RelToDow], 1e-12)

	empty := b.PredictionRow(date, nil, nil)
	assert.Equal(t, 1.0, empty[RollMean7])
	assert.Equal(t, 0.0, empty[RollStd7])
}
