// Package series holds the small numeric helpers shared by the signal
// analyzers and the feature builder. NaN marks "undefined" throughout.
package series

import (
	"math"

	"github.com/viterin/vek"
)

// Mean returns the arithmetic mean, or NaN for an empty slice.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return vek.Mean(x)
}

// SampleStd is the n-1 standard deviation; NaN when len(x) < 2.
func SampleStd(x []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	return math.Sqrt(sumSquaredDev(x) / float64(len(x)-1))
}

// PopStd is the population standard deviation; NaN for empty input.
func PopStd(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return math.Sqrt(sumSquaredDev(x) / float64(len(x)))
}

func sumSquaredDev(x []float64) float64 {
	m := vek.Mean(x)
	d := make([]float64, len(x))
	for i, v := range x {
		d[i] = v - m
	}
	return vek.Dot(d, d)
}

// MAE is the mean absolute error between two equally sized slices.
func MAE(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	diff := vek.Sub(actual, predicted)
	s := 0.0
	for _, d := range diff {
		s += math.Abs(d)
	}
	return s / float64(len(diff))
}

// EMA returns the recursive exponential moving average with alpha = 2/(span+1),
// seeded with the first value and without bias correction.
func EMA(x []float64, span int) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1)
	out[0] = x[0]
	for i := 1; i < len(x); i++ {
		out[i] = alpha*x[i] + (1-alpha)*out[i-1]
	}
	return out
}

// Shift moves values k positions forward, filling the head with NaN.
func Shift(x []float64, k int) []float64 {
	out := make([]float64, len(x))
	for i := range out {
		if i-k >= 0 && i-k < len(x) {
			out[i] = x[i-k]
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// RollingFunc applies fn to each trailing window of size w (ending at i),
// skipping NaN. Rows with fewer than minPeriods valid values get NaN.
func RollingFunc(x []float64, w, minPeriods int, fn func([]float64) float64) []float64 {
	out := make([]float64, len(x))
	buf := make([]float64, 0, w)
	for i := range x {
		buf = buf[:0]
		for j := max(0, i-w+1); j <= i; j++ {
			if !math.IsNaN(x[j]) {
				buf = append(buf, x[j])
			}
		}
		if len(buf) < minPeriods || len(buf) == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(buf)
	}
	return out
}

func RollingMean(x []float64, w, minPeriods int) []float64 {
	return RollingFunc(x, w, minPeriods, Mean)
}

func RollingStd(x []float64, w, minPeriods int) []float64 {
	return RollingFunc(x, w, max(minPeriods, 2), SampleStd)
}

func RollingMin(x []float64, w, minPeriods int) []float64 {
	return RollingFunc(x, w, minPeriods, func(v []float64) float64 {
		m := v[0]
		for _, f := range v[1:] {
			m = math.Min(m, f)
		}
		return m
	})
}

func RollingMax(x []float64, w, minPeriods int) []float64 {
	return RollingFunc(x, w, minPeriods, func(v []float64) float64 {
		m := v[0]
		for _, f := range v[1:] {
			m = math.Max(m, f)
		}
		return m
	})
}

// ExpandingMean is the running mean up to and including each row.
func ExpandingMean(x []float64) []float64 {
	out := make([]float64, len(x))
	sum, n := 0.0, 0
	for i, v := range x {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
		if n == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// Finite reports whether v is neither NaN nor ±Inf.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Or returns v when it is finite, otherwise fallback.
func Or(v, fallback float64) float64 {
	if Finite(v) {
		return v
	}
	return fallback
}

func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
