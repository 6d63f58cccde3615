package gbm

// Params mirrors the usual XGBoost knobs for squared-error regression.
type Params struct {
	NEstimators     int     `json:"n_estimators"`
	MaxDepth        int     `json:"max_depth"`
	LearningRate    float64 `json:"learning_rate"`
	MinChildWeight  float64 `json:"min_child_weight"`
	Subsample       float64 `json:"subsample"`
	ColsampleByTree float64 `json:"colsample_bytree"`
	Alpha           float64 `json:"reg_alpha"`
	Lambda          float64 `json:"reg_lambda"`
	Gamma           float64 `json:"gamma"`
	Seed            int64   `json:"random_state"`
}

// DefaultParams are the library defaults used when a field is left zero.
func DefaultParams() Params {
	return Params{
		NEstimators:     100,
		MaxDepth:        3,
		LearningRate:    0.1,
		MinChildWeight:  1,
		Subsample:       1,
		ColsampleByTree: 1,
		Lambda:          1,
		Seed:            42,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.NEstimators <= 0 {
		p.NEstimators = d.NEstimators
	}
	if p.MaxDepth <= 0 {
		p.MaxDepth = d.MaxDepth
	}
	if p.LearningRate <= 0 {
		p.LearningRate = d.LearningRate
	}
	if p.Subsample <= 0 || p.Subsample > 1 {
		p.Subsample = d.Subsample
	}
	if p.ColsampleByTree <= 0 || p.ColsampleByTree > 1 {
		p.ColsampleByTree = d.ColsampleByTree
	}
	if p.Lambda < 0 {
		p.Lambda = 0
	}
	return p
}
