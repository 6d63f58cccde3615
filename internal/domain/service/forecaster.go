package service

import (
	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/forecast"
)

// Forecaster trains per-product states and walks them forward.
type Forecaster interface {
	Train(productID string, history []models.SalesRecord) (*forecast.State, models.TrainingResult, error)
	Predict(s *forecast.State, days int) ([]models.PredictionPoint, error)
	Recommend(s *forecast.State) models.Recommendation
}

var _ Forecaster = (*forecast.Engine)(nil)
