package repository

import (
	"context"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/services/forecast"
)

// SalesHistoryStore keeps the daily sales series per product.
type SalesHistoryStore interface {
	Append(ctx context.Context, productID string, records []models.SalesRecord) error
	// History returns one record per day since the given day, oldest first.
	History(ctx context.Context, productID string, since time.Time) ([]models.SalesRecord, error)
	Health(ctx context.Context) error
}

// ModelStore persists trained states. Save reports false without an error
// when it declines to replace a better artifact; Load reports false when no
// usable artifact exists.
type ModelStore interface {
	Save(ctx context.Context, s *forecast.State) (bool, error)
	Load(ctx context.Context, productID string) (*forecast.State, bool, error)
	Close() error
}

// StateRegistry holds the states currently served, keyed by product.
type StateRegistry interface {
	Get(productID string) (*forecast.State, bool)
	Put(productID string, s *forecast.State)
	Delete(productID string)
}

type ForecastPublisher interface {
	Publish(ctx context.Context, ev models.ForecastEvent) error
	PublishBatch(ctx context.Context, evs []models.ForecastEvent) error
	Close() error
}

type Metrics interface {
	RecordSaveRefused()
	RecordRegistry(hit bool)
	RecordMessage(topic string)
	RecordError(component, kind string)
}
