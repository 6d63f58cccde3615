package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
	dservice "MarketPulse/internal/domain/service"
	"MarketPulse/internal/services/forecast"
	"MarketPulse/pkg/cache"
	"MarketPulse/pkg/logger"
	"MarketPulse/pkg/validate"
)

// ErrTrainingInProgress is returned when another worker holds the product's
// training lock.
var ErrTrainingInProgress = errors.New("training already in progress")

// ServiceConfig tunes the orchestration around the engine.
type ServiceConfig struct {
	HistoryDays int
	HorizonDays int
	LockTTL     time.Duration
	ForecastTTL time.Duration
}

// ForecastService ties the engine to storage: it retrains products from
// their sales history and serves forecasts from the registered states.
type ForecastService struct {
	engine    dservice.Forecaster
	registry  drepo.StateRegistry
	store     drepo.ModelStore
	sales     drepo.SalesHistoryStore
	publisher drepo.ForecastPublisher
	cache     cache.Service
	metrics   drepo.Metrics
	log       *logger.Logger
	cfg       ServiceConfig
	now       func() time.Time
}

type ServiceOption func(*ForecastService)

func WithServiceLogger(l *logger.Logger) ServiceOption {
	return func(s *ForecastService) {
		if l != nil {
			s.log = l
		}
	}
}

func WithServiceMetrics(m drepo.Metrics) ServiceOption {
	return func(s *ForecastService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithPublisher sends a ForecastEvent after every successful retrain.
func WithPublisher(p drepo.ForecastPublisher) ServiceOption {
	return func(s *ForecastService) { s.publisher = p }
}

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *ForecastService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewForecastService(
	engine dservice.Forecaster,
	registry drepo.StateRegistry,
	store drepo.ModelStore,
	sales drepo.SalesHistoryStore,
	c cache.Service,
	cfg ServiceConfig,
	opts ...ServiceOption,
) *ForecastService {
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 365
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 7
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	s := &ForecastService{
		engine:   engine,
		registry: registry,
		store:    store,
		sales:    sales,
		cache:    c,
		metrics:  nopMetrics{},
		log:      logger.Nop(),
		cfg:      cfg,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewJob builds a retrain request with the configured history and horizon.
func (s *ForecastService) NewJob(productID, reason string) models.RetrainJob {
	return models.RetrainJob{
		ProductID:   productID,
		HistoryDays: s.cfg.HistoryDays,
		HorizonDays: s.cfg.HorizonDays,
		Reason:      reason,
	}
}

// NewBatch builds one retrain request per product.
func (s *ForecastService) NewBatch(productIDs []string, reason string) models.RetrainBatch {
	b := models.RetrainBatch{Jobs: make([]models.RetrainJob, len(productIDs))}
	for i, pid := range productIDs {
		b.Jobs[i] = s.NewJob(pid, reason)
	}
	return b
}

// BatchError reports the products of a batch that failed, and the publish
// failure if the surviving forecasts could not be sent.
type BatchError struct {
	Failed  map[string]error
	Publish error
}

func (e *BatchError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s: %v", id, e.Failed[id]))
	}
	if e.Publish != nil {
		parts = append(parts, e.Publish.Error())
	}
	return "retrain batch: " + strings.Join(parts, "; ")
}

func (e *BatchError) Unwrap() []error {
	out := make([]error, 0, len(e.Failed)+1)
	for _, err := range e.Failed {
		out = append(out, err)
	}
	if e.Publish != nil {
		out = append(out, e.Publish)
	}
	return out
}

// Retrain fits a fresh state from the product's stored history, serves it,
// persists it and publishes the resulting forecast.
func (s *ForecastService) Retrain(ctx context.Context, job models.RetrainJob) (*models.ForecastEvent, error) {
	ev, err := s.retrain(ctx, job)
	if err != nil {
		return nil, err
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, *ev); err != nil {
			s.metrics.RecordError("retrain", "publish")
			return ev, err
		}
	}
	return ev, nil
}

// RetrainBatch retrains every product of the batch and publishes the
// forecasts in a single write. A product whose lock is held elsewhere is
// skipped; any other failure leaves the remaining products unaffected and is
// reported through *BatchError.
func (s *ForecastService) RetrainBatch(ctx context.Context, batch models.RetrainBatch) ([]models.ForecastEvent, error) {
	if err := validate.Struct(ctx, &batch); err != nil {
		return nil, err
	}
	events := make([]models.ForecastEvent, 0, len(batch.Jobs))
	var berr BatchError
	for _, job := range batch.Jobs {
		ev, err := s.retrain(ctx, job)
		switch {
		case err == nil:
			events = append(events, *ev)
		case errors.Is(err, ErrTrainingInProgress):
		default:
			if berr.Failed == nil {
				berr.Failed = make(map[string]error)
			}
			berr.Failed[job.ProductID] = err
		}
	}
	if s.publisher != nil && len(events) > 0 {
		if err := s.publisher.PublishBatch(ctx, events); err != nil {
			s.metrics.RecordError("retrain", "publish")
			berr.Publish = err
		}
	}
	if len(berr.Failed) > 0 || berr.Publish != nil {
		return events, &berr
	}
	return events, nil
}

func (s *ForecastService) retrain(ctx context.Context, job models.RetrainJob) (*models.ForecastEvent, error) {
	if err := validate.Struct(ctx, &job); err != nil {
		return nil, err
	}
	pid := job.ProductID
	log := s.log.With(logger.String("product_id", pid), logger.String("reason", job.Reason))

	lockKey := cache.Key("lock:train", pid)
	ok, err := s.cache.TryLock(ctx, lockKey, s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire train lock: %w", err)
	}
	if !ok {
		log.Debug("training skipped, lock held elsewhere")
		return nil, ErrTrainingInProgress
	}
	defer func() {
		if err := s.cache.Unlock(context.WithoutCancel(ctx), lockKey); err != nil {
			log.Warn("release train lock", logger.Error(err))
		}
	}()

	since := s.now().UTC().AddDate(0, 0, -job.HistoryDays)
	history, err := s.sales.History(ctx, pid, since)
	if err != nil {
		s.metrics.RecordError("retrain", "history")
		return nil, fmt.Errorf("load history: %w", err)
	}
	if q := forecast.AssessQuality(history); !q.OK {
		log.Info("history below training quality",
			logger.Int("rows", q.Rows),
			logger.Float64("cv", q.CV),
			logger.Float64("coverage", q.Coverage),
			logger.Strings("reasons", q.Reasons))
	}

	state, result, err := s.engine.Train(pid, history)
	if err != nil {
		s.metrics.RecordError("retrain", forecast.Kind(err))
		return nil, err
	}
	s.registry.Put(pid, state)

	saved, err := s.store.Save(ctx, state)
	switch {
	case err != nil:
		s.metrics.RecordError("retrain", forecast.Kind(err))
		log.Error("persist model", logger.Error(err))
	case !saved:
		log.Info("stored model kept, new model serves from memory only")
	}

	res, err := s.build(state, job.HorizonDays)
	if err != nil {
		return nil, err
	}
	ev := &models.ForecastEvent{
		ID:             uuid.NewString(),
		ProductID:      pid,
		GeneratedAt:    s.now().UTC(),
		Mode:           result.Mode,
		Points:         res.Points,
		Peak:           res.Peak,
		Recommendation: res.Recommendation,
	}
	if err := s.cache.Set(ctx, forecastKey(pid, job.HorizonDays, res.ModelVersion), res, s.cfg.ForecastTTL); err != nil {
		log.Warn("cache forecast", logger.Error(err))
	}
	log.Info("product retrained",
		logger.String("mode", string(result.Mode)),
		logger.Int("rows", len(history)),
		logger.Bool("saved", saved))
	return ev, nil
}

// Forecast predicts from the served state, loading it from the model store
// on a registry miss.
func (s *ForecastService) Forecast(ctx context.Context, req models.ForecastRequest) (*models.ForecastResult, error) {
	if err := validate.Struct(ctx, &req); err != nil {
		return nil, err
	}
	state, err := s.resolve(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	key := forecastKey(req.ProductID, req.Days, version(state))
	var cached models.ForecastResult
	switch err := s.cache.Get(ctx, key, &cached); {
	case err == nil:
		restoreDates(cached.Points)
		return &cached, nil
	case !errors.Is(err, cache.ErrCacheMiss):
		s.log.Warn("read forecast cache", logger.String("key", key), logger.Error(err))
	}

	res, err := s.build(state, req.Days)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, res, s.cfg.ForecastTTL); err != nil {
		s.log.Warn("cache forecast", logger.String("key", key), logger.Error(err))
	}
	return res, nil
}

// Health reports the served model of a product; false when none exists.
func (s *ForecastService) Health(ctx context.Context, productID string) (models.ModelHealth, bool) {
	state, err := s.resolve(ctx, productID)
	if err != nil {
		return models.ModelHealth{ProductID: productID, Mode: models.ModeUntrained}, false
	}
	return state.Health(), true
}

func (s *ForecastService) resolve(ctx context.Context, productID string) (*forecast.State, error) {
	if st, ok := s.registry.Get(productID); ok {
		return st, nil
	}
	st, ok, err := s.store.Load(ctx, productID)
	if err != nil {
		s.metrics.RecordError("forecast", forecast.Kind(err))
		s.log.Warn("unreadable model artifact", logger.String("product_id", productID), logger.Error(err))
	}
	if !ok {
		return nil, fmt.Errorf("%w: no model for product %s", forecast.ErrPrecondition, productID)
	}
	s.registry.Put(productID, st)
	return st, nil
}

func (s *ForecastService) build(state *forecast.State, days int) (*models.ForecastResult, error) {
	points, err := s.engine.Predict(state, days)
	if err != nil {
		s.metrics.RecordError("forecast", forecast.Kind(err))
		return nil, err
	}
	return &models.ForecastResult{
		ProductID:      state.ProductID,
		Mode:           state.Mode,
		ModelVersion:   version(state),
		Points:         points,
		Peak:           forecast.DetectPeak(points),
		Recommendation: s.engine.Recommend(state),
	}, nil
}

// version changes whenever a product is retrained, so cached forecasts of
// an older model are never served.
func version(s *forecast.State) int64 {
	return s.TrainedAt.UnixNano()
}

func forecastKey(productID string, days int, version int64) string {
	return cache.Key("forecast", productID, days, version)
}

// restoreDates refills the parsed date dropped by the JSON form.
func restoreDates(points []models.PredictionPoint) {
	for i := range points {
		if d, err := time.Parse("2006-01-02", points[i].DateString); err == nil {
			points[i].Date = d
		}
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordSaveRefused()         {}
func (nopMetrics) RecordRegistry(bool)        {}
func (nopMetrics) RecordMessage(string)       {}
func (nopMetrics) RecordError(string, string) {}
