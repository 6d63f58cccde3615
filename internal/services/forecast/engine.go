// Package forecast is the hybrid demand forecasting engine: it trains a
// per-product State (gradient-boosted trees or a cold-start rule baseline)
// and walks it forward day by day to produce bounded forecasts.
package forecast

import (
	"fmt"
	"time"

	"MarketPulse/internal/services/burst"
	"MarketPulse/internal/services/calendar"
	"MarketPulse/internal/services/features"
	"MarketPulse/pkg/config"
	"MarketPulse/pkg/logger"
)

// Metrics receives engine telemetry. Implementations must be safe for
// concurrent use.
type Metrics interface {
	RecordTraining(mode string, d time.Duration, err error)
	RecordPrediction(days int, d time.Duration)
	RecordInferenceFallback()
}

type nopMetrics struct{}

func (nopMetrics) RecordTraining(string, time.Duration, error) {}
func (nopMetrics) RecordPrediction(int, time.Duration)         {}
func (nopMetrics) RecordInferenceFallback()                    {}

// Engine is stateless apart from its configuration; every product's learned
// state lives in the *State returned by Train.
type Engine struct {
	cfg      config.ForecastConfig
	cal      *calendar.Calendar
	burst    *burst.Detector
	features *features.Builder
	log      *logger.Logger
	metrics  Metrics
	clock    func() time.Time
}

type Option func(*Engine)

func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithClock sets the time source used when a state carries no last date.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.clock = now
		}
	}
}

// NewEngine validates cfg and builds an engine around it.
func NewEngine(cfg config.ForecastConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Kind: ErrParameter, Op: "new engine", Detail: "invalid configuration", Err: err}
	}
	cal := calendar.New(cfg.Calendar)
	e := &Engine{
		cfg:      cfg,
		cal:      cal,
		burst:    burst.NewDetector(cfg.Burst, cal),
		features: features.NewBuilder(cfg.Features, cal),
		log:      logger.Nop(),
		metrics:  nopMetrics{},
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// MustEngine is NewEngine for configurations known to be valid.
func MustEngine(cfg config.ForecastConfig, opts ...Option) *Engine {
	e, err := NewEngine(cfg, opts...)
	if err != nil {
		panic(fmt.Sprintf("forecast engine: %v", err))
	}
	return e
}

func (e *Engine) Config() config.ForecastConfig { return e.cfg }
