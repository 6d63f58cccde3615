// Package momentum scores demand trend from multi-horizon EMAs.
package momentum

import (
	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/series"
	"MarketPulse/pkg/config"
)

// Analyze computes per-span EMA change ratios over a chronologically sorted
// quantity series and blends them into a combined score and status.
//
// A span whose lagged EMA is undefined (series not longer than the span) or
// zero contributes 0, so short histories lean towards STABLE.
func Analyze(quantities []float64, cfg config.MomentumConfig) models.Momentum {
	m := models.Momentum{
		Short:  ratio(quantities, cfg.ShortSpan),
		Medium: ratio(quantities, cfg.MediumSpan),
		Long:   ratio(quantities, cfg.LongSpan),
	}
	m.Combined = cfg.ShortWeight*m.Short + cfg.MediumWeight*m.Medium + cfg.LongWeight*m.Long
	m.Status = Classify(m.Combined, cfg)
	return m
}

// ratio is (EMA_now - EMA_{now-span}) / EMA_{now-span}.
func ratio(q []float64, span int) float64 {
	n := len(q)
	if n == 0 || span <= 0 || n <= span {
		return 0
	}
	ema := series.EMA(q, span)
	cur, lag := ema[n-1], ema[n-1-span]
	if lag == 0 || !series.Finite(lag) || !series.Finite(cur) {
		return 0
	}
	return (cur - lag) / lag
}

func Classify(combined float64, cfg config.MomentumConfig) models.MomentumStatus {
	switch {
	case combined > cfg.UpStrong:
		return models.MomentumTrendingUp
	case combined > cfg.UpMild:
		return models.MomentumGrowing
	case combined < cfg.DownStrong:
		return models.MomentumDeclining
	case combined < cfg.DownMild:
		return models.MomentumFalling
	default:
		return models.MomentumStable
	}
}
