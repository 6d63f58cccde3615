package repository

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/forecast"
)

// FormatVersion is the artifact schema version written by this build.
// Loading any other version fails instead of guessing.
const FormatVersion = 1

type artifact struct {
	FormatVersion int             `json:"format_version"`
	ProductID     string          `json:"product_id"`
	SavedAt       time.Time       `json:"saved_at"`
	State         *forecast.State `json:"state"`
}

// Metadata is the human-readable summary written next to every artifact.
type Metadata struct {
	FormatVersion    int                    `json:"format_version"`
	ProductID        string                 `json:"product_id"`
	GeneratedAt      time.Time              `json:"generated_at"`
	Mode             models.TrainingMode    `json:"mode"`
	ValMAE           float64                `json:"val_mae"`
	NormalizedValMAE float64                `json:"normalized_val_mae"`
	BaselineMAE      *float64               `json:"baseline_mae"`
	ImprovementPct   float64                `json:"improvement_pct"`
	DataCV           float64                `json:"data_cv"`
	OverfitRatio     float64                `json:"overfit_ratio"`
	Weights          models.EnsembleWeights `json:"ensemble_weights"`
	TrainingRows     int                    `json:"training_rows"`
	LastDate         string                 `json:"last_date,omitempty"`
}

func encodeArtifact(s *forecast.State, savedAt time.Time) ([]byte, error) {
	return json.Marshal(artifact{
		FormatVersion: FormatVersion,
		ProductID:     s.ProductID,
		SavedAt:       savedAt.UTC(),
		State:         s,
	})
}

// decodeArtifact restores a state and checks that it belongs to productID
// (any product when productID is empty) and can seed a forecast.
func decodeArtifact(data []byte, productID string) (*forecast.State, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, persistenceError(productID, "decode artifact", err)
	}
	switch {
	case a.FormatVersion != FormatVersion:
		return nil, persistenceError(productID, "decode artifact",
			fmt.Errorf("format version %d, want %d", a.FormatVersion, FormatVersion))
	case a.State == nil:
		return nil, persistenceError(productID, "decode artifact", fmt.Errorf("no state"))
	case productID != "" && a.ProductID != productID:
		return nil, persistenceError(productID, "decode artifact",
			fmt.Errorf("artifact belongs to %q", a.ProductID))
	case !a.State.Trained():
		return nil, persistenceError(productID, "decode artifact", fmt.Errorf("state has no seed row"))
	case a.State.HasModel() && a.State.Model.NFeatures != len(a.State.Features):
		return nil, persistenceError(productID, "decode artifact",
			fmt.Errorf("model expects %d features, state lists %d", a.State.Model.NFeatures, len(a.State.Features)))
	}
	return a.State, nil
}

func metadataFor(s *forecast.State, at time.Time) Metadata {
	m := Metadata{
		FormatVersion:    FormatVersion,
		ProductID:        s.ProductID,
		GeneratedAt:      at.UTC(),
		Mode:             s.Mode,
		ValMAE:           s.Metrics.ValMAE,
		NormalizedValMAE: s.Metrics.NormalizedValMAE,
		BaselineMAE:      s.Metrics.BaselineMAE,
		ImprovementPct:   s.Metrics.ImprovementPct,
		DataCV:           s.Stats.CV,
		OverfitRatio:     s.Metrics.OverfitRatio,
		Weights:          s.Weights,
		TrainingRows:     s.TrainingRows,
	}
	if !s.LastDate.IsZero() {
		m.LastDate = s.LastDate.Format("2006-01-02")
	}
	return m
}

// worse reports whether a candidate validation error should not replace the
// existing one. An existing artifact without a validation error never blocks.
func worse(existing, candidate, tolerance float64) bool {
	return existing > 0 && candidate > existing*tolerance
}

func persistenceError(productID, op string, err error) error {
	return &forecast.Error{Kind: forecast.ErrPersistence, ProductID: productID, Op: op, Err: err}
}
