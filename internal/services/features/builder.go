// Package features turns a daily quantity series into model inputs.
//
// Every column at row t is computed from quantities strictly before t, so the
// training frame never sees the value it is asked to predict. Missing values
// are filled from earlier rows only; row 0 has no earlier rows and gets zeros,
// so callers that fit on the frame skip it. The regressor never receives NaN
// or Inf.
package features

import (
	"math"
	"time"

	"MarketPulse/internal/services/calendar"
	"MarketPulse/internal/services/series"
	"MarketPulse/pkg/config"
)

// Stats are the summary statistics learned from a training history.
type Stats struct {
	Mean        float64         `json:"data_mean"`
	Std         float64         `json:"data_std"`
	CV          float64         `json:"data_cv"`
	DowPatterns map[int]float64 `json:"dow_patterns"`
}

// Frame is a column-oriented feature table aligned with the input series.
type Frame struct {
	Dates    []time.Time
	Quantity []float64
	Columns  map[string][]float64
}

type Builder struct {
	cfg config.FeatureConfig
	cal *calendar.Calendar
}

func NewBuilder(cfg config.FeatureConfig, cal *calendar.Calendar) *Builder {
	return &Builder{cfg: cfg, cal: cal}
}

// ComputeStats returns mean, sample std (1 when degenerate), coefficient of
// variation and the per-weekday mean quantity.
func (b *Builder) ComputeStats(dates []time.Time, q []float64) Stats {
	s := Stats{
		Mean:        series.Or(series.Mean(q), 0),
		Std:         series.Or(series.SampleStd(q), 0),
		DowPatterns: DowMeans(dates, q),
	}
	if s.Std == 0 {
		s.Std = 1
	}
	if s.Mean != 0 {
		s.CV = s.Std / s.Mean
	}
	return s
}

// DowMeans averages quantity per weekday (Monday=0); unseen weekdays are absent.
func DowMeans(dates []time.Time, q []float64) map[int]float64 {
	var sum [7]float64
	var cnt [7]int
	for i, t := range dates {
		w := calendar.Weekday(t)
		sum[w] += q[i]
		cnt[w]++
	}
	out := make(map[int]float64, 7)
	for w := 0; w < 7; w++ {
		if cnt[w] > 0 {
			out[w] = sum[w] / float64(cnt[w])
		}
	}
	return out
}

// Build computes every column for a date-sorted series.
func (b *Builder) Build(dates []time.Time, q []float64) *Frame {
	return b.build(dates, q)
}

// NextRow returns every column for the day after the last date, derived
// only from the given history. It seeds the autoregressive forecast.
func (b *Builder) NextRow(dates []time.Time, q []float64) map[string]float64 {
	if len(dates) == 0 {
		return nil
	}
	next := dates[len(dates)-1].AddDate(0, 0, 1)
	extDates := append(append(make([]time.Time, 0, len(dates)+1), dates...), next)
	// the placeholder quantity is never read by row n
	extQ := append(append(make([]float64, 0, len(q)+1), q...), 0)
	f := b.build(extDates, extQ)
	return f.Row(len(q), AllColumns())
}

func (b *Builder) build(dates []time.Time, q []float64) *Frame {
	n := len(q)
	f := &Frame{Dates: dates, Quantity: q, Columns: make(map[string][]float64, 40)}

	b.temporal(f)

	prev := series.Shift(q, 1)
	priorMean := series.Shift(series.ExpandingMean(q), 1)
	fillPrior := func(v []float64) []float64 {
		for i := range v {
			if !series.Finite(v[i]) {
				v[i] = series.Or(priorMean[i], 0)
			}
		}
		return v
	}
	fillConst := func(v []float64, c float64) []float64 {
		for i := range v {
			if !series.Finite(v[i]) {
				v[i] = c
			}
		}
		return v
	}

	for _, lag := range []struct {
		name string
		k    int
	}{{Lag1, 1}, {Lag2, 2}, {Lag3, 3}, {Lag7, 7}, {Lag14, 14}} {
		f.Columns[lag.name] = fillPrior(series.Shift(q, lag.k))
	}

	for _, w := range []struct {
		mean, std string
		size      int
	}{{RollMean3, RollStd3, 3}, {RollMean7, RollStd7, 7}, {RollMean14, RollStd14, 14}} {
		f.Columns[w.mean] = fillConst(series.RollingMean(prev, w.size, 1), 0)
		f.Columns[w.std] = fillConst(series.RollingStd(prev, w.size, 2), 0)
	}
	f.Columns[RollMin7] = fillConst(series.RollingMin(prev, 7, 1), 0)
	f.Columns[RollMax7] = fillConst(series.RollingMax(prev, 7, 1), 0)

	f.Columns[DowAvg] = b.priorDowAverage(dates, q)

	lag1 := f.Columns[Lag1]
	roc1, roc7 := make([]float64, n), make([]float64, n)
	diff1, diff7 := make([]float64, n), make([]float64, n)
	for i := range q {
		if i >= 2 {
			roc1[i] = pctChange(q[i-1], q[i-2])
			diff1[i] = q[i-1] - q[i-2]
		}
		if i >= 8 {
			roc7[i] = pctChange(q[i-1], q[i-8])
			diff7[i] = q[i-1] - q[i-8]
		}
	}
	f.Columns[Roc1], f.Columns[Roc7] = roc1, roc7
	f.Columns[Diff1], f.Columns[Diff7] = diff1, diff7

	f.Columns[Ema7] = shiftedEMA(q, 7)
	f.Columns[Ema14] = shiftedEMA(q, 14)

	rel7, relDow := make([]float64, n), make([]float64, n)
	for i := range q {
		rel7[i] = b.relative(lag1[i], f.Columns[RollMean7][i])
		relDow[i] = b.relative(lag1[i], f.Columns[DowAvg][i])
	}
	f.Columns[RelToRoll7], f.Columns[RelToDow] = rel7, relDow

	return f
}

func (b *Builder) temporal(f *Frame) {
	n := len(f.Dates)
	cols := map[string][]float64{}
	for _, c := range []string{DayOfWeek, DayOfMonth, WeekOfYear, Month, IsWeekend, IsPaydayPeriod, WeekOfMonth, DowSin, DowCos, MonthSin, MonthCos} {
		cols[c] = make([]float64, n)
	}
	for i, t := range f.Dates {
		for k, v := range b.temporalRow(t) {
			cols[k][i] = v
		}
	}
	for k, v := range cols {
		f.Columns[k] = v
	}
}

// temporalRow holds every calendar-derived column for a single date.
func (b *Builder) temporalRow(t time.Time) map[string]float64 {
	dow := calendar.Weekday(t)
	dom := t.Day()
	_, week := t.ISOWeek()
	month := int(t.Month())
	return map[string]float64{
		DayOfWeek:      float64(dow),
		DayOfMonth:     float64(dom),
		WeekOfYear:     float64(week),
		Month:          float64(month),
		IsWeekend:      boolf(b.cal.IsWeekendDay(dow)),
		IsPaydayPeriod: boolf(b.cal.IsPayday(t)),
		WeekOfMonth:    float64((dom-1)/7 + 1),
		DowSin:         math.Sin(2 * math.Pi * float64(dow) / 7),
		DowCos:         math.Cos(2 * math.Pi * float64(dow) / 7),
		MonthSin:       math.Sin(2 * math.Pi * float64(month) / 12),
		MonthCos:       math.Cos(2 * math.Pi * float64(month) / 12),
	}
}

// priorDowAverage is the same-weekday mean of earlier rows, optionally shrunk
// towards the prior overall mean; rows with no earlier same-weekday value use
// the prior overall mean, and row 0 gets 0.
func (b *Builder) priorDowAverage(dates []time.Time, q []float64) []float64 {
	out := make([]float64, len(q))
	var sum [7]float64
	var cnt [7]int
	total, seen := 0.0, 0
	s := b.cfg.DowSmoothing
	for i, t := range dates {
		w := calendar.Weekday(t)
		prior := 0.0
		if seen > 0 {
			prior = total / float64(seen)
		}
		switch {
		case cnt[w] == 0:
			out[i] = prior
		case s > 0:
			c := float64(cnt[w])
			out[i] = (sum[w] + s*prior) / (c + s)
		default:
			out[i] = sum[w] / float64(cnt[w])
		}
		sum[w] += q[i]
		cnt[w]++
		total += q[i]
		seen++
	}
	return out
}

func (b *Builder) relative(num, den float64) float64 {
	if den == 0 || !series.Finite(den) {
		den = 1
	}
	v := num / den
	if !series.Finite(v) {
		return 1
	}
	return series.Clamp(v, b.cfg.RelativeMin, b.cfg.RelativeMax)
}

// PredictionRow completes a feature row for target date from the rolling
// state of the forecast walk (lag and rolling values), substituting safe
// defaults for anything the state does not carry.
func (b *Builder) PredictionRow(date time.Time, state map[string]float64, dow map[int]float64) map[string]float64 {
	get := func(k string, def float64) float64 {
		if v, ok := state[k]; ok && series.Finite(v) {
			return v
		}
		return def
	}
	roll7 := math.Max(get(RollMean7, 1), 0.1)
	roll3 := math.Max(get(RollMean3, roll7), 0.1)
	lag1 := math.Max(get(Lag1, roll7), 0.1)
	lag7 := math.Max(get(Lag7, roll7), 0.1)
	dowAvg := roll7
	if v, ok := dow[calendar.Weekday(date)]; ok && v > 0 {
		dowAvg = v
	}

	row := b.temporalRow(date)
	row[RollMean7] = roll7
	row[RollMean3] = roll3
	row[Lag1] = lag1
	row[Lag7] = lag7
	row[Lag2] = get(Lag2, lag1)
	row[Lag3] = get(Lag3, lag1)
	row[Lag14] = get(Lag14, lag7)
	row[RollMean14] = get(RollMean14, roll7)
	row[RollStd3] = get(RollStd3, 0)
	row[RollStd7] = get(RollStd7, 0)
	row[RollStd14] = get(RollStd14, 0)
	row[RollMin7] = get(RollMin7, roll7*0.8)
	row[RollMax7] = get(RollMax7, roll7*1.2)
	row[DowAvg] = dowAvg
	row[Roc1] = get(Roc1, 0)
	row[Roc7] = get(Roc7, 0)
	row[Diff1] = get(Diff1, 0)
	row[Diff7] = get(Diff7, 0)
	row[Ema7] = get(Ema7, roll7)
	row[Ema14] = get(Ema14, roll7)
	row[RelToRoll7] = b.relative(lag1, roll7)
	row[RelToDow] = b.relative(lag1, dowAvg)
	return row
}

// Vectorize orders a row map by columns.
func Vectorize(row map[string]float64, cols []string) []float64 {
	out := make([]float64, len(cols))
	for i, c := range cols {
		out[i] = row[c]
	}
	return out
}

func shiftedEMA(q []float64, span int) []float64 {
	out := series.Shift(series.EMA(q, span), 1)
	if len(out) > 0 {
		out[0] = 0
	}
	return out
}

func pctChange(cur, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	v := (cur - prev) / prev
	if !series.Finite(v) {
		return 0
	}
	return v
}

func boolf(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// Matrix returns row-major values for the given columns.
func (f *Frame) Matrix(cols []string) [][]float64 {
	out := make([][]float64, len(f.Quantity))
	for i := range out {
		out[i] = f.Vector(i, cols)
	}
	return out
}

// Vector returns row i's values for the given columns.
func (f *Frame) Vector(i int, cols []string) []float64 {
	row := make([]float64, len(cols))
	for j, c := range cols {
		row[j] = f.Columns[c][i]
	}
	return row
}

// Row returns row i as a column->value map.
func (f *Frame) Row(i int, cols []string) map[string]float64 {
	row := make(map[string]float64, len(cols))
	for _, c := range cols {
		row[c] = f.Columns[c][i]
	}
	return row
}
