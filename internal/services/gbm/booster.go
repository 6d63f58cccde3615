// Package gbm fits gradient-boosted regression trees with a squared-error
// objective and XGBoost-style regularisation (L1, L2, gamma, min child weight,
// row and column subsampling). Fitting is deterministic for a given seed.
package gbm

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/viterin/vek"
)

var (
	ErrEmptyTrainingSet = errors.New("gbm: empty training set")
	ErrNotFitted        = errors.New("gbm: model not fitted")
)

// Booster is an additive ensemble of regression trees.
type Booster struct {
	Params    Params  `json:"params"`
	BaseScore float64 `json:"base_score"`
	NFeatures int     `json:"n_features"`
	Trees     []*Tree `json:"trees"`
}

func NewBooster(p Params) *Booster {
	return &Booster{Params: p.withDefaults()}
}

// Fit trains on a row-major matrix x and targets y.
func (m *Booster) Fit(x [][]float64, y []float64) error {
	n := len(y)
	if n == 0 || len(x) != n {
		return ErrEmptyTrainingSet
	}
	nf := len(x[0])
	for i, row := range x {
		if len(row) != nf {
			return fmt.Errorf("gbm: row %d has %d features, want %d", i, len(row), nf)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("gbm: row %d has a non-finite feature", i)
			}
		}
	}

	p := m.Params
	m.NFeatures = nf
	m.BaseScore = vek.Mean(y)
	m.Trees = m.Trees[:0]

	rng := rand.New(rand.NewSource(p.Seed))
	pred := make([]float64, n)
	for i := range pred {
		pred[i] = m.BaseScore
	}
	hess := make([]float64, n)
	for i := range hess {
		hess[i] = 1
	}
	grad := make([]float64, n)
	allFeatures := make([]int, nf)
	for i := range allFeatures {
		allFeatures[i] = i
	}

	tb := &treeBuilder{p: p, x: x, hess: hess}
	for t := 0; t < p.NEstimators; t++ {
		for i := range grad {
			grad[i] = pred[i] - y[i]
		}
		tb.grad = grad
		tb.features = sampleFeatures(rng, allFeatures, p.ColsampleByTree)
		tree := tb.build(sampleRows(rng, n, p.Subsample))
		m.Trees = append(m.Trees, tree)
		for i := range pred {
			pred[i] += tree.Predict(x[i])
		}
	}
	return nil
}

// Predict scores one feature vector.
func (m *Booster) Predict(x []float64) (float64, error) {
	if m == nil || m.NFeatures == 0 {
		return 0, ErrNotFitted
	}
	if len(x) != m.NFeatures {
		return 0, fmt.Errorf("gbm: got %d features, want %d", len(x), m.NFeatures)
	}
	out := m.BaseScore
	for _, t := range m.Trees {
		out += t.Predict(x)
	}
	return out, nil
}

// PredictBatch scores every row of x.
func (m *Booster) PredictBatch(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i, row := range x {
		v, err := m.Predict(row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func sampleRows(rng *rand.Rand, n int, frac float64) []int {
	if frac >= 1 {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	rows := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if rng.Float64() < frac {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		rows = append(rows, rng.Intn(n))
	}
	return rows
}

func sampleFeatures(rng *rand.Rand, all []int, frac float64) []int {
	if frac >= 1 || len(all) <= 1 {
		return all
	}
	k := max(1, int(math.Round(frac*float64(len(all)))))
	perm := rng.Perm(len(all))[:k]
	out := make([]int, k)
	for i, j := range perm {
		out[i] = all[j]
	}
	return out
}
