package forecast

import (
	"maps"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/features"
	"MarketPulse/internal/services/gbm"
)

// State is the trained engine for one product. It is written only by Train
// and read-only afterwards, so a resolved *State may be shared between
// goroutines without locking.
type State struct {
	ProductID    string                 `json:"product_id"`
	Mode         models.TrainingMode    `json:"mode"`
	Model        *gbm.Booster           `json:"model,omitempty"`
	Stats        features.Stats         `json:"stats"`
	LastRow      map[string]float64     `json:"last_row"`
	LastDate     time.Time              `json:"last_date"`
	Metrics      models.TrainingMetrics `json:"metrics"`
	Weights      models.EnsembleWeights `json:"ensemble_weights"`
	Features     []string               `json:"features"`
	Physics      models.PhysicsMetrics  `json:"physics"`
	TrainingRows int                    `json:"training_rows"`
	TrainedAt    time.Time              `json:"trained_at"`
}

// Trained reports whether the state can seed a forecast.
func (s *State) Trained() bool {
	return s != nil && len(s.LastRow) > 0 && s.Mode != models.ModeUntrained && s.Mode != ""
}

// HasModel reports whether a fitted regressor takes part in predictions.
func (s *State) HasModel() bool {
	return s.Mode == models.ModeMLTrained && s.Model != nil && len(s.Features) > 0
}

// Health summarises the state for operators.
func (s *State) Health() models.ModelHealth {
	if s == nil {
		return models.ModelHealth{Mode: models.ModeUntrained}
	}
	h := models.ModelHealth{
		ProductID:      s.ProductID,
		Trained:        s.Trained(),
		Mode:           s.Mode,
		ValMAE:         s.Metrics.ValMAE,
		BaselineMAE:    s.Metrics.BaselineMAE,
		OverfitRatio:   s.Metrics.OverfitRatio,
		ImprovementPct: s.Metrics.ImprovementPct,
	}
	if !s.LastDate.IsZero() {
		h.LastDate = s.LastDate.Format(dateLayout)
	}
	return h
}

// seed returns a private copy of the last row for the forecast walk.
func (s *State) seed() map[string]float64 {
	return maps.Clone(s.LastRow)
}

const dateLayout = "2006-01-02"
