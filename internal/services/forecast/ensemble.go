package forecast

import (
	"math"

	"MarketPulse/internal/domain/models"
	"MarketPulse/pkg/config"
)

// improvementSteps maps improvement over the naive baseline (percent) to the
// starting model weight; the first matching floor wins.
var improvementSteps = []struct {
	floor, weight float64
}{
	{80, 0.85},
	{70, 0.80},
	{60, 0.75},
	{50, 0.70},
	{30, 0.65},
}

// EnsembleWeights derives the model/rule mix. The model weight never
// decreases as improvement grows; volatile data (high cv) and a large
// validation/train gap pull it down. The result is clamped to
// [MinModelWeight, MaxModelWeight] and the pair always sums to 1.
func EnsembleWeights(improvement, cv, overfit float64, cfg config.EnsembleConfig) models.EnsembleWeights {
	w := 0.55
	for _, s := range improvementSteps {
		if improvement >= s.floor {
			w = s.weight
			break
		}
	}
	if cv > cfg.HighCV {
		w = math.Max(cfg.MinModelWeight, w-cfg.CVPenalty)
	}
	switch {
	case overfit > cfg.OverfitSevere:
		w = math.Max(cfg.MinModelWeight, w-cfg.OverfitSeverePenalty)
	case overfit > cfg.OverfitMild:
		w = math.Max(cfg.MinModelWeight, w-cfg.OverfitMildPenalty)
	}
	w = math.Max(cfg.MinModelWeight, math.Min(cfg.MaxModelWeight, w))
	return models.EnsembleWeights{Model: w, Rule: 1 - w}
}
