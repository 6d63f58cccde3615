package models

import "time"

type TrainingMode string

const (
	ModeUntrained TrainingMode = "UNTRAINED"
	ModeColdStart TrainingMode = "COLD_START"
	ModeMLTrained TrainingMode = "ML_TRAINED"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// PredictionPoint is one forecast day.
type PredictionPoint struct {
	Date              time.Time  `json:"-"`
	DateString        string     `json:"date"`
	PredictedQuantity int        `json:"predicted_quantity"`
	LowerBound        int        `json:"lower_bound"`
	UpperBound        int        `json:"upper_bound"`
	Confidence        Confidence `json:"confidence"`
	DayOfWeek         int        `json:"day_of_week"`
	IsWeekend         bool       `json:"is_weekend"`
}

// EnsembleWeights mixes the learned model with the rule estimate; Model+Rule == 1.
type EnsembleWeights struct {
	Model float64 `json:"model"`
	Rule  float64 `json:"rule"`
}

// TrainingMetrics are the error figures of one training run.
// Baseline is nil when no naive baseline could be evaluated (cold start).
type TrainingMetrics struct {
	TrainMAE         float64  `json:"train_mae"`
	ValMAE           float64  `json:"val_mae"`
	NormalizedValMAE float64  `json:"normalized_val_mae"`
	BaselineMAE      *float64 `json:"baseline_mae"`
	ImprovementPct   float64  `json:"improvement_pct"`
	OverfitRatio     float64  `json:"overfit_ratio"`
	StdError         float64  `json:"std_error"`
	ValRMSE          float64  `json:"val_rmse"`
	ValMAPE          float64  `json:"val_mape"`
	R2               float64  `json:"r2"`
	Accuracy         float64  `json:"accuracy"`
	TrainRows        int      `json:"train_rows"`
	ValRows          int      `json:"val_rows"`
}

// TrainingResult is returned by a successful training call.
type TrainingResult struct {
	Success        bool            `json:"success"`
	ProductID      string          `json:"product_id"`
	Mode           TrainingMode    `json:"mode"`
	Metrics        TrainingMetrics `json:"metrics"`
	Weights        EnsembleWeights `json:"ensemble_weights"`
	Features       []string        `json:"features"`
	Physics        PhysicsMetrics  `json:"physics"`
	Recommendation Recommendation  `json:"recommendation"`
	Duration       time.Duration   `json:"-"`
}

type StockAction string

const (
	ActionIncrease StockAction = "INCREASE"
	ActionReduce   StockAction = "REDUCE"
	ActionMaintain StockAction = "MAINTAIN"
	ActionNoData   StockAction = "NO_DATA"
)

// Recommendation is the stocking hint derived from momentum and burst state.
type Recommendation struct {
	Action        StockAction    `json:"action"`
	Message       string         `json:"message"`
	DailyBaseline float64        `json:"daily_baseline"`
	Momentum      MomentumStatus `json:"momentum_status,omitempty"`
	Burst         BurstLevel     `json:"burst_level,omitempty"`
	PriorityScore float64        `json:"priority_score"`
}

// ModelHealth summarises a product's engine state.
type ModelHealth struct {
	ProductID      string       `json:"product_id"`
	Trained        bool         `json:"trained"`
	Mode           TrainingMode `json:"mode"`
	ValMAE         float64      `json:"val_mae"`
	BaselineMAE    *float64     `json:"baseline_mae"`
	OverfitRatio   float64      `json:"overfit_ratio"`
	ImprovementPct float64      `json:"improvement_pct"`
	LastDate       string       `json:"last_date,omitempty"`
}

// PeakInfo marks a forecast that rises to a maximum and then falls off.
type PeakInfo struct {
	HasPeak           bool    `json:"has_peak"`
	PeakDay           int     `json:"peak_day"`
	PeakDate          string  `json:"peak_date"`
	PeakValue         int     `json:"peak_value"`
	DeclinePercentage float64 `json:"decline_percentage"`
}
