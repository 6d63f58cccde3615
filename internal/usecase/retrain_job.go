package usecase

import (
	"context"
	"errors"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/forecast"
	"MarketPulse/pkg/logger"
	"MarketPulse/pkg/queue"
	"MarketPulse/pkg/validate"
)

const (
	// RetrainJobType routes queue messages to RetrainJob.
	RetrainJobType = "retrain_product"
	// RetrainBatchJobType routes queue messages to RetrainBatchJob.
	RetrainBatchJobType = "retrain_batch"
)

// RetrainJob is the queue worker side of retraining.
type RetrainJob struct {
	svc *ForecastService
	log *logger.Logger
}

var _ queue.Job = (*RetrainJob)(nil)

func NewRetrainJob(svc *ForecastService, l *logger.Logger) *RetrainJob {
	if l == nil {
		l = logger.Nop()
	}
	return &RetrainJob{svc: svc, log: l}
}

func (j *RetrainJob) Name() string { return "retrain" }
func (j *RetrainJob) Type() string { return RetrainJobType }

// Handle retrains one product. Errors that a retry cannot fix are logged
// and swallowed so the queue does not redeliver them.
func (j *RetrainJob) Handle(ctx context.Context, payload []byte) error {
	job, err := queue.ParsePayload[models.RetrainJob](payload)
	if err != nil {
		j.log.Error("drop malformed retrain job", logger.Error(err))
		return nil
	}
	_, err = j.svc.Retrain(ctx, *job)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTrainingInProgress):
		return nil
	case retryable(err):
		return err
	default:
		j.log.Warn("retrain failed",
			logger.String("product_id", job.ProductID),
			logger.String("kind", forecast.Kind(err)),
			logger.Error(err))
		return nil
	}
}

// RetrainBatchJob retrains several products and publishes their forecasts
// together.
type RetrainBatchJob struct {
	svc *ForecastService
	log *logger.Logger
}

var _ queue.Job = (*RetrainBatchJob)(nil)

func NewRetrainBatchJob(svc *ForecastService, l *logger.Logger) *RetrainBatchJob {
	if l == nil {
		l = logger.Nop()
	}
	return &RetrainBatchJob{svc: svc, log: l}
}

func (j *RetrainBatchJob) Name() string { return "retrain_batch" }
func (j *RetrainBatchJob) Type() string { return RetrainBatchJobType }

// Handle retries the whole batch when publishing failed or any product hit
// an infrastructure error. Data errors are logged per product.
func (j *RetrainBatchJob) Handle(ctx context.Context, payload []byte) error {
	batch, err := queue.ParsePayload[models.RetrainBatch](payload)
	if err != nil {
		j.log.Error("drop malformed retrain batch", logger.Error(err))
		return nil
	}
	events, err := j.svc.RetrainBatch(ctx, *batch)
	if err == nil {
		j.log.Debug("retrain batch done",
			logger.Int("products", len(batch.Jobs)),
			logger.Int("published", len(events)))
		return nil
	}
	var berr *BatchError
	if !errors.As(err, &berr) {
		j.log.Error("drop invalid retrain batch", logger.Error(err))
		return nil
	}
	if berr.Publish != nil {
		return err
	}
	for pid, perr := range berr.Failed {
		if retryable(perr) {
			return err
		}
		j.log.Warn("retrain failed",
			logger.String("product_id", pid),
			logger.String("kind", forecast.Kind(perr)),
			logger.Error(perr))
	}
	return nil
}

// retryable reports whether err came from infrastructure rather than the
// data, which would fail the same way again.
func retryable(err error) bool {
	var verrs validate.Errors
	if errors.As(err, &verrs) {
		return false
	}
	return forecast.Kind(err) == "internal"
}
