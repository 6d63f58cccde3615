//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"MarketPulse/pkg/config"
	"MarketPulse/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideKafkaProducer,

		// Repositories
		ProvideModelStore,
		ProvideRegistry,
		ProvideSalesStore,
		ProvideCache,
		ProvideForecastPublisher,

		// Engine and use cases
		ProvideEngine,
		ProvideForecastService,
		ProvideRetrainJob,
		ProvideRetrainBatchJob,
		ProvideRetrainQueue,
		ProvideEnqueuer,
		ProvideLimiter,
		ProvideSalesEventsHandler,

		// Transport
		ProvideKafkaConsumer,
		ProvideOpsHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
