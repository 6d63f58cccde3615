package forecast

import "MarketPulse/internal/services/gbm"

// HyperParams picks booster settings from the number of training rows:
// thinner data gets shallower, fewer and more regularised trees.
func HyperParams(nTrain int, seed int64) gbm.Params {
	p := gbm.Params{Seed: seed}
	switch {
	case nTrain < 30:
		p.NEstimators, p.MaxDepth, p.LearningRate, p.MinChildWeight = 50, 2, 0.1, 3
		p.Subsample, p.ColsampleByTree = 0.8, 0.8
		p.Alpha, p.Lambda, p.Gamma = 0.5, 1.0, 0.2
	case nTrain < 60:
		p.NEstimators, p.MaxDepth, p.LearningRate, p.MinChildWeight = 80, 3, 0.08, 2
		p.Subsample, p.ColsampleByTree = 0.85, 0.85
		p.Alpha, p.Lambda, p.Gamma = 0.3, 0.8, 0.15
	case nTrain < 120:
		p.NEstimators, p.MaxDepth, p.LearningRate, p.MinChildWeight = 120, 3, 0.06, 2
		p.Subsample, p.ColsampleByTree = 0.85, 0.85
		p.Alpha, p.Lambda, p.Gamma = 0.2, 0.5, 0.1
	case nTrain < 250:
		p.NEstimators, p.MaxDepth, p.LearningRate, p.MinChildWeight = 150, 4, 0.05, 2
		p.Subsample, p.ColsampleByTree = 0.85, 0.85
		p.Alpha, p.Lambda, p.Gamma = 0.15, 0.4, 0.08
	default:
		p.NEstimators, p.MaxDepth, p.LearningRate, p.MinChildWeight = 200, 4, 0.04, 1
		p.Subsample, p.ColsampleByTree = 0.85, 0.85
		p.Alpha, p.Lambda, p.Gamma = 0.1, 0.3, 0.05
	}
	return p
}

// validationSize holds out 15% (20% for up to 100 rows) of the tail,
// at least 2 and at most 50 rows.
func validationSize(n int) int {
	frac := 0.2
	if n > 100 {
		frac = 0.15
	}
	return max(2, min(int(float64(n)*frac), 50))
}
