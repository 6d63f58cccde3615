package config

import (
	"errors"
	"fmt"

	"github.com/creasty/defaults"

	"MarketPulse/pkg/validate"
)

// ForecastConfig groups every tunable of the forecasting engine.
type ForecastConfig struct {
	Calendar  CalendarConfig  `yaml:"calendar"`
	Momentum  MomentumConfig  `yaml:"momentum"`
	Burst     BurstConfig     `yaml:"burst"`
	Priority  PriorityConfig  `yaml:"priority"`
	Features  FeatureConfig   `yaml:"features"`
	Trainer   TrainerConfig   `yaml:"trainer"`
	Ensemble  EnsembleConfig  `yaml:"ensemble"`
	Predictor PredictorConfig `yaml:"predictor"`
}

// DayRange is an inclusive day-of-month range.
type DayRange struct {
	From int `yaml:"from" json:"from" validate:"min=1,max=31"`
	To   int `yaml:"to" json:"to" validate:"min=1,max=31,gtefield=From"`
}

type CalendarConfig struct {
	// Monday=0 .. Sunday=6
	WeekendDays      []int      `yaml:"weekend_days" default:"[5,6]" validate:"dive,min=0,max=6"`
	PaydayRanges     []DayRange `yaml:"payday_ranges" default:"[{\"from\":1,\"to\":5},{\"from\":25,\"to\":31}]" validate:"dive"`
	PaydayMultiplier float64    `yaml:"payday_multiplier" default:"1.15" validate:"gt=0"`
	// "MM-DD" -> multiplier
	SpecialDates map[string]float64 `yaml:"special_dates"`
}

type MomentumConfig struct {
	ShortSpan    int     `yaml:"short_span" default:"7" validate:"min=1"`
	MediumSpan   int     `yaml:"medium_span" default:"14" validate:"min=1"`
	LongSpan     int     `yaml:"long_span" default:"30" validate:"min=1"`
	ShortWeight  float64 `yaml:"short_weight" default:"0.5"`
	MediumWeight float64 `yaml:"medium_weight" default:"0.3"`
	LongWeight   float64 `yaml:"long_weight" default:"0.2"`
	UpStrong     float64 `yaml:"up_strong" default:"0.05"`
	UpMild       float64 `yaml:"up_mild" default:"0.02"`
	DownStrong   float64 `yaml:"down_strong" default:"-0.05"`
	DownMild     float64 `yaml:"down_mild" default:"-0.02"`
}

type BurstConfig struct {
	BaselineWindow        int     `yaml:"baseline_window" default:"30" validate:"min=1"`
	Critical              float64 `yaml:"critical" default:"3"`
	Significant           float64 `yaml:"significant" default:"2"`
	Mild                  float64 `yaml:"mild" default:"1"`
	Viral                 float64 `yaml:"viral" default:"4"`
	SeasonalWindow        int     `yaml:"seasonal_window" default:"28" validate:"min=1"`
	WeekendSeasonalRatio  float64 `yaml:"weekend_seasonal_ratio" default:"1.2"`
	ResidualFallbackRatio float64 `yaml:"residual_fallback_ratio" default:"0.1"`
}

type PriorityConfig struct {
	MomentumWeight float64 `yaml:"momentum_weight" default:"0.7"`
	BurstWeight    float64 `yaml:"burst_weight" default:"0.3"`
	BurstDivisor   float64 `yaml:"burst_divisor" default:"3" validate:"gt=0"`
}

type FeatureConfig struct {
	// 0 disables smoothed target encoding of dow_avg
	DowSmoothing float64 `yaml:"dow_smoothing" validate:"gte=0"`
	RelativeMin  float64 `yaml:"relative_min" default:"0.1"`
	RelativeMax  float64 `yaml:"relative_max" default:"10"`
}

type TrainerConfig struct {
	MinTrainingRows  int     `yaml:"min_training_rows" default:"14" validate:"min=2"`
	OverfitWarn      float64 `yaml:"overfit_warn" default:"2.5"`
	BaselineDiscount float64 `yaml:"baseline_discount" default:"0.95" validate:"gt=0,lte=1"`
	Seed             int64   `yaml:"seed" default:"42"`
	// z-score outlier removal before training; off unless configured
	OutlierZ float64 `yaml:"outlier_z" validate:"gte=0"`
}

type EnsembleConfig struct {
	MinModelWeight float64 `yaml:"min_model_weight" default:"0.5" validate:"gte=0,lte=1"`
	MaxModelWeight float64 `yaml:"max_model_weight" default:"0.9" validate:"gte=0,lte=1,gtefield=MinModelWeight"`
	HighCV         float64 `yaml:"high_cv" default:"0.6"`
	HighConfidence float64 `yaml:"high_confidence" default:"0.7"`
	// weight taken off the model for volatile series and for a large
	// validation/train gap; the severe gap penalty wins over the mild one
	CVPenalty            float64 `yaml:"cv_penalty" default:"0.1" validate:"gte=0,lte=1"`
	OverfitMild          float64 `yaml:"overfit_mild" default:"2" validate:"gt=0"`
	OverfitMildPenalty   float64 `yaml:"overfit_mild_penalty" default:"0.1" validate:"gte=0,lte=1"`
	OverfitSevere        float64 `yaml:"overfit_severe" default:"3" validate:"gtefield=OverfitMild"`
	OverfitSeverePenalty float64 `yaml:"overfit_severe_penalty" default:"0.15" validate:"gte=0,lte=1"`
}

type RescaleConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold float64 `yaml:"threshold" default:"1.0" validate:"gt=0"`
	MinFactor float64 `yaml:"min_factor" default:"0.5" validate:"gt=0"`
	MaxFactor float64 `yaml:"max_factor" default:"1.5" validate:"gtefield=MinFactor"`
}

type PredictorConfig struct {
	MaxHorizon       int           `yaml:"max_horizon" default:"30" validate:"min=1,max=30"`
	TrendScale       float64       `yaml:"trend_scale" default:"0.1"`
	UncertaintyZ     float64       `yaml:"uncertainty_z" default:"1.64" validate:"gte=0"`
	WeekendUplift    float64       `yaml:"weekend_uplift" default:"1.2" validate:"gt=0"`
	MinQuantity      int           `yaml:"min_quantity" default:"1" validate:"min=0"`
	LagWeight        float64       `yaml:"lag_weight" default:"0.5"`
	RollWeight       float64       `yaml:"roll_weight" default:"0.3"`
	DowWeight        float64       `yaml:"dow_weight" default:"0.2"`
	Rescale          RescaleConfig `yaml:"rescale"`
	QualityTiers     []QualityTier `yaml:"quality_tiers" default:"[{\"name\":\"thin\",\"max_rows\":40,\"learned_weight\":0.3,\"max_change\":0.15,\"bias_correct\":true},{\"name\":\"fair\",\"max_rows\":80,\"learned_weight\":0.6,\"max_change\":0.25,\"bias_correct\":true},{\"name\":\"good\",\"max_rows\":150,\"learned_weight\":0.8,\"max_change\":0.35},{\"name\":\"rich\",\"max_rows\":0,\"learned_weight\":1.0,\"max_change\":0.45}]" validate:"min=1,dive"`
}

// QualityTier ties history size to how far learned calendar factors are trusted
// and how fast the forecast may move day over day. MaxRows 0 means unbounded.
type QualityTier struct {
	Name          string  `yaml:"name" json:"name"`
	MaxRows       int     `yaml:"max_rows" json:"max_rows" validate:"min=0"`
	LearnedWeight float64 `yaml:"learned_weight" json:"learned_weight" validate:"gte=0,lte=1"`
	MaxChange     float64 `yaml:"max_change" json:"max_change" validate:"gt=0,lte=1"`
	BiasCorrect   bool    `yaml:"bias_correct" json:"bias_correct"`
}

// DefaultForecast returns engine defaults; usable with zero external configuration.
func DefaultForecast() ForecastConfig {
	var f ForecastConfig
	if err := defaults.Set(&f); err != nil {
		panic(fmt.Sprintf("forecast defaults: %v", err))
	}
	return f
}

// Validate checks rules validator tags cannot express.
func (f ForecastConfig) Validate() error {
	if err := validate.Check(f); err != nil {
		return err
	}
	m := f.Momentum
	if !(m.UpStrong >= m.UpMild && m.DownStrong <= m.DownMild) {
		return errors.New("forecast.momentum: strong thresholds must be outside mild thresholds")
	}
	b := f.Burst
	if !(b.Critical >= b.Significant && b.Significant >= b.Mild) {
		return errors.New("forecast.burst: thresholds must satisfy critical >= significant >= mild")
	}
	tiers := f.Predictor.QualityTiers
	for i, t := range tiers {
		if t.MaxRows == 0 && i != len(tiers)-1 {
			return fmt.Errorf("forecast.predictor.quality_tiers[%d]: only the last tier may be unbounded", i)
		}
		if i > 0 && t.MaxRows != 0 && t.MaxRows <= tiers[i-1].MaxRows {
			return fmt.Errorf("forecast.predictor.quality_tiers[%d]: max_rows must increase", i)
		}
	}
	return nil
}

// TierFor returns the quality tier for a history of n rows.
func (p PredictorConfig) TierFor(n int) QualityTier {
	for _, t := range p.QualityTiers {
		if t.MaxRows == 0 || n < t.MaxRows {
			return t
		}
	}
	return p.QualityTiers[len(p.QualityTiers)-1]
}
