package di

import (
	"context"
	"fmt"
	"io"
	"time"

	drepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/handler/api"
	"MarketPulse/internal/repository"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/internal/services/forecast"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/cache"
	pkgch "MarketPulse/pkg/clickhouse"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	pkgkafka "MarketPulse/pkg/kafka"
	"MarketPulse/pkg/logger"
	"MarketPulse/pkg/metrics"
	"MarketPulse/pkg/queue"
	"MarketPulse/pkg/server"
)

// ProvideLogger builds the process logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&cfg.Logger)
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New(nil)
}

func ProvideEngine(cfg *config.Config, l *logger.Logger, m *metrics.Recorder) (*forecast.Engine, error) {
	return forecast.NewEngine(cfg.Forecast, forecast.WithLogger(l), forecast.WithMetrics(m))
}

func ProvideRegistry(cfg *config.Config, m *metrics.Recorder) *repository.MemoryRegistry {
	return repository.NewMemoryRegistry(cfg.Registry.MaxSize, cfg.Registry.TTL, m)
}

// ProvideModelStore opens the configured artifact backend.
func ProvideModelStore(cfg *config.Config, l *logger.Logger, m *metrics.Recorder) (drepo.ModelStore, error) {
	opts := []repository.StoreOption{
		repository.WithTolerance(cfg.Artifacts.OverwriteTolerance),
		repository.WithStoreLogger(l),
		repository.WithRefusalRecorder(m),
	}
	switch cfg.Artifacts.Backend {
	case "badger":
		return repository.OpenBadgerModelStore(cfg.Artifacts.BadgerPath, opts...)
	default:
		return repository.NewFileModelStore(cfg.Artifacts.Dir, opts...)
	}
}

// ProvideClickHouseClient connects and creates the sales schema. Returns nil
// when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, true),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, pkgch.SalesSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideSalesStore uses ClickHouse when connected and process memory otherwise.
func ProvideSalesStore(cfg *config.Config, client *pkgch.Client, l *logger.Logger) drepo.SalesHistoryStore {
	if client == nil {
		l.Warn("clickhouse disabled, sales history kept in memory")
		return repository.NewMemorySalesStore(cfg.Retrain.HistoryDays)
	}
	return repository.NewCHSalesStore(client, repository.BreakerSettings{
		Failures: cfg.ClickHouse.BreakerFailures,
		Timeout:  cfg.ClickHouse.BreakerTimeout,
	}, l)
}

// ProvideRedisCache returns nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache puts a short-lived memory layer in front of Redis, or uses
// memory alone.
func ProvideCache(rc *cache.RedisCache) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache()
	}
	return cache.NewLayeredCache(rc)
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithBatchSize(cfg.Kafka.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.BatchTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

func ProvideForecastPublisher(cfg *config.Config, producer *pkgkafka.Producer) drepo.ForecastPublisher {
	if producer == nil {
		return nil
	}
	return repository.NewKafkaForecastPublisher(producer, cfg.Kafka.ForecastTopic)
}

func ProvideForecastService(
	cfg *config.Config,
	engine *forecast.Engine,
	registry *repository.MemoryRegistry,
	store drepo.ModelStore,
	sales drepo.SalesHistoryStore,
	c cache.Service,
	pub drepo.ForecastPublisher,
	m *metrics.Recorder,
	l *logger.Logger,
) *usecase.ForecastService {
	return usecase.NewForecastService(engine, registry, store, sales, c,
		usecase.ServiceConfig{
			HistoryDays: cfg.Retrain.HistoryDays,
			HorizonDays: cfg.Retrain.HorizonDays,
			LockTTL:     cfg.Retrain.LockTTL,
			ForecastTTL: cfg.Retrain.ForecastTTL,
		},
		usecase.WithPublisher(pub),
		usecase.WithServiceMetrics(m),
		usecase.WithServiceLogger(l),
	)
}

func ProvideRetrainJob(svc *usecase.ForecastService, l *logger.Logger) *usecase.RetrainJob {
	return usecase.NewRetrainJob(svc, l)
}

func ProvideRetrainBatchJob(svc *usecase.ForecastService, l *logger.Logger) *usecase.RetrainBatchJob {
	return usecase.NewRetrainBatchJob(svc, l)
}

// ProvideRetrainQueue returns nil when Redis is disabled.
func ProvideRetrainQueue(
	cfg *config.Config,
	rc *cache.RedisCache,
	job *usecase.RetrainJob,
	batchJob *usecase.RetrainBatchJob,
	l *logger.Logger,
) *queue.RedisQueue {
	if rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay,
		PendingTTL: cfg.Queue.PendingTTL,
	}, rc.Client(), queue.WithKeyPrefix("marketpulse:queue:"+cfg.Queue.Name))
	q.RegisterJob(job)
	q.RegisterJob(batchJob)
	return q
}

// ProvideEnqueuer runs retrains inline when there is no Redis queue.
func ProvideEnqueuer(q *queue.RedisQueue, job *usecase.RetrainJob, batchJob *usecase.RetrainBatchJob) queue.Enqueuer {
	if q == nil {
		return queue.NewInline(job, batchJob)
	}
	return q
}

func ProvideLimiter(cfg *config.Config) *ratelimit.ProductLimiter {
	return ratelimit.New(cfg.Retrain.MinInterval, 1)
}

func ProvideSalesEventsHandler(
	cfg *config.Config,
	sales drepo.SalesHistoryStore,
	jobs queue.Enqueuer,
	limiter *ratelimit.ProductLimiter,
	svc *usecase.ForecastService,
	m *metrics.Recorder,
	l *logger.Logger,
) *usecase.SalesEventsHandler {
	return usecase.NewSalesEventsHandler(cfg.Kafka.SalesTopic, sales, jobs, limiter, svc, m, l)
}

// ProvideKafkaConsumer returns nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.RetryMax, cfg.Kafka.BackoffMin, cfg.Kafka.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.DLQTopic),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideOpsHandler(
	l *logger.Logger,
	svc *usecase.ForecastService,
	registry *repository.MemoryRegistry,
	sales drepo.SalesHistoryStore,
	retrainQueue *queue.RedisQueue,
) *api.OpsHandler {
	deps := map[string]api.Pinger{"sales_history": sales}
	if retrainQueue != nil {
		deps["retrain_queue"] = retrainQueue
	}
	return api.NewOpsHandler(l, svc, registry, deps)
}

func ProvideHTTPServer(cfg *config.Config, l *logger.Logger, ops *api.OpsHandler) *xhttp.Server {
	return xhttp.NewServer(l, []xhttp.Handler{ops},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	)
}

// ProvideApp assembles the lifecycle. Components that are disabled arrive as
// nil and are left out.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	salesHandler *usecase.SalesEventsHandler,
	retrainQueue *queue.RedisQueue,
	store drepo.ModelStore,
	c cache.Service,
	rc *cache.RedisCache,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
) *server.App {
	opts := []server.Option{server.WithShutdownTimeout(cfg.Server.ShutdownTimeout)}
	if chClient != nil {
		opts = append(opts, server.WithCloser("clickhouse", chClient))
	}
	if producer != nil {
		opts = append(opts, server.WithCloser("kafka_producer", producer))
	}
	if rc != nil {
		opts = append(opts, server.WithCloser("redis", rc))
	}
	if closer, ok := c.(io.Closer); ok {
		opts = append(opts, server.WithCloser("cache", closer))
	}
	opts = append(opts, server.WithCloser("model_store", store))
	if retrainQueue != nil {
		opts = append(opts, server.WithWorker(retrainQueue))
	}
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer, salesHandler))
	}
	return server.New(l, httpServer, opts...)
}
