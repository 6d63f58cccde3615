package models

import "time"

// RetrainJob is the queue payload asking for a product to be retrained.
type RetrainJob struct {
	ProductID   string `json:"product_id" validate:"required"`
	HistoryDays int    `json:"history_days" default:"365" validate:"min=1"`
	HorizonDays int    `json:"horizon_days" default:"7" validate:"min=1,max=30"`
	Reason      string `json:"reason" default:"sales_event"`
}

// QueueKey lets the job queue coalesce pending retrains of one product.
func (j RetrainJob) QueueKey() string { return j.ProductID }

// RetrainBatch retrains several products in one job; their forecasts are
// published together.
type RetrainBatch struct {
	Jobs []RetrainJob `json:"jobs" validate:"min=1,dive"`
}

// ForecastEvent is published after a product has been (re)trained.
type ForecastEvent struct {
	ID             string            `json:"id"`
	ProductID      string            `json:"product_id"`
	GeneratedAt    time.Time         `json:"generated_at"`
	Mode           TrainingMode      `json:"mode"`
	Points         []PredictionPoint `json:"points"`
	Peak           *PeakInfo         `json:"peak,omitempty"`
	Recommendation Recommendation    `json:"recommendation"`
}

// ForecastRequest asks for a forecast from the currently served model.
type ForecastRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Days      int    `json:"days" default:"7" validate:"min=1,max=30"`
}

// ForecastResult is a forecast together with the insights derived from it.
type ForecastResult struct {
	ProductID      string            `json:"product_id"`
	Mode           TrainingMode      `json:"mode"`
	ModelVersion   int64             `json:"model_version"`
	Points         []PredictionPoint `json:"points"`
	Peak           *PeakInfo         `json:"peak,omitempty"`
	Recommendation Recommendation    `json:"recommendation"`
}
