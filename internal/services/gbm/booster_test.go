package gbm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepData(n int) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(7))
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := range x {
		a, b := rng.Float64()*10, rng.Float64()
		x[i] = []float64{a, b}
		y[i] = 5
		if a > 5 {
			y[i] = 20
		}
	}
	return x, y
}

func TestFitLearnsStepFunction(t *testing.T) {
	x, y := stepData(200)
	m := NewBooster(Params{NEstimators: 60, MaxDepth: 2, LearningRate: 0.2, Lambda: 1})
	require.NoError(t, m.Fit(x, y))

	lo, err := m.Predict([]float64{2, 0.5})
	require.NoError(t, err)
	hi, err := m.Predict([]float64{8, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 5, lo, 1)
	assert.InDelta(t, 20, hi, 1)
}

func TestFitIsDeterministic(t *testing.T) {
	x, y := stepData(120)
	p := Params{NEstimators: 30, MaxDepth: 3, LearningRate: 0.1, Subsample: 0.8, ColsampleByTree: 0.5, Seed: 42}
	a, b := NewBooster(p), NewBooster(p)
	require.NoError(t, a.Fit(x, y))
	require.NoError(t, b.Fit(x, y))
	pa, _ := a.PredictBatch(x)
	pb, _ := b.PredictBatch(x)
	assert.Equal(t, pa, pb)
}

func TestRegularisationShrinksLeaves(t *testing.T) {
	x, y := stepData(50)
	loose := NewBooster(Params{NEstimators: 1, MaxDepth: 1, LearningRate: 1, Lambda: 0})
	tight := NewBooster(Params{NEstimators: 1, MaxDepth: 1, LearningRate: 1, Lambda: 50, Alpha: 20})
	require.NoError(t, loose.Fit(x, y))
	require.NoError(t, tight.Fit(x, y))

	l, _ := loose.Predict([]float64{9, 0})
	tt, _ := tight.Predict([]float64{9, 0})
	assert.Greater(t, math.Abs(l-loose.BaseScore), math.Abs(tt-tight.BaseScore))
}

func TestGammaPreventsSplits(t *testing.T) {
	x, y := stepData(50)
	m := NewBooster(Params{NEstimators: 3, MaxDepth: 3, LearningRate: 0.5, Gamma: 1e9})
	require.NoError(t, m.Fit(x, y))
	for _, tree := range m.Trees {
		assert.Len(t, tree.Nodes, 1)
	}
}

func TestJSONRoundTripPreservesPredictions(t *testing.T) {
	x, y := stepData(80)
	m := NewBooster(Params{NEstimators: 20, MaxDepth: 3, LearningRate: 0.1, Subsample: 0.85, ColsampleByTree: 0.85})
	require.NoError(t, m.Fit(x, y))

	raw, err := json.Marshal(m)
	require.NoError(t, err)
	var back Booster
	require.NoError(t, json.Unmarshal(raw, &back))

	for _, row := range x[:10] {
		want, _ := m.Predict(row)
		got, err := back.Predict(row)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestPredictErrors(t *testing.T) {
	var m *Booster
	_, err := m.Predict([]float64{1})
	assert.ErrorIs(t, err, ErrNotFitted)

	fitted := NewBooster(Params{NEstimators: 1})
	require.NoError(t, fitted.Fit([][]float64{{1}, {2}}, []float64{1, 2}))
	_, err = fitted.Predict([]float64{1, 2})
	assert.Error(t, err)

	assert.ErrorIs(t, NewBooster(Params{}).Fit(nil, nil), ErrEmptyTrainingSet)
	assert.Error(t, NewBooster(Params{}).Fit([][]float64{{math.NaN()}}, []float64{1}))
}
