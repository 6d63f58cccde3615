package repository

import (
	"time"

	"MarketPulse/pkg/logger"
)

// RefusalRecorder counts saves declined by the overwrite guard.
type RefusalRecorder interface {
	RecordSaveRefused()
}

type nopRefusals struct{}

func (nopRefusals) RecordSaveRefused() {}

type storeOptions struct {
	tolerance float64
	log       *logger.Logger
	metrics   RefusalRecorder
	now       func() time.Time
}

// StoreOption configures the model stores.
type StoreOption func(*storeOptions)

// WithTolerance sets how much worse (as a ratio) a new validation error may
// be before the existing artifact is kept. Zero or below disables the guard.
func WithTolerance(ratio float64) StoreOption {
	return func(o *storeOptions) { o.tolerance = ratio }
}

func WithStoreLogger(l *logger.Logger) StoreOption {
	return func(o *storeOptions) {
		if l != nil {
			o.log = l
		}
	}
}

func WithRefusalRecorder(m RefusalRecorder) StoreOption {
	return func(o *storeOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

func WithStoreClock(now func() time.Time) StoreOption {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func newStoreOptions(opts []StoreOption) storeOptions {
	o := storeOptions{
		tolerance: 1.1,
		log:       logger.Nop(),
		metrics:   nopRefusals{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o storeOptions) refuse(productID string, existing, candidate float64) bool {
	if o.tolerance <= 0 || !worse(existing, candidate, o.tolerance) {
		return false
	}
	o.log.Warn("kept existing artifact, new model validates worse",
		logger.String("product_id", productID),
		logger.Float64("existing_val_mae", existing),
		logger.Float64("new_val_mae", candidate),
		logger.Float64("tolerance", o.tolerance))
	o.metrics.RecordSaveRefused()
	return true
}
