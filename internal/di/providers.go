package di

import (
	"context"
	"fmt"
	"time"

	"AnchorPull/internal/domain/repository"
	"AnchorPull/internal/handler/api"
	internalrepo "AnchorPull/internal/repository"
	"AnchorPull/internal/services/engine"
	"AnchorPull/internal/usecase"
	pkgcache "AnchorPull/pkg/cache"
	pkgch "AnchorPull/pkg/clickhouse"
	"AnchorPull/pkg/config"
	xhttp "AnchorPull/pkg/http"
	pkgkafka "AnchorPull/pkg/kafka"
	applogger "AnchorPull/pkg/logger"
	"AnchorPull/pkg/metrics"
	"AnchorPull/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideClickHouseClient creates a ClickHouse client and initializes the
// schema. Signals and zone history land in ReplacingMergeTree tables so
// re-runs overwrite instead of duplicating.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			symbol String,
			date Date,
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			volume Int64,
			split_factor Float64 DEFAULT 1.0,
			updated_at DateTime DEFAULT now()
		) ENGINE=ReplacingMergeTree(updated_at) ORDER BY (symbol, date)`, db, cfg.ClickHouse.BarsTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			symbol String,
			date Date,
			kind String,
			reference_price Float64,
			anchored_vwap Float64,
			zone String,
			updated_at DateTime DEFAULT now()
		) ENGINE=ReplacingMergeTree(updated_at) ORDER BY (symbol, date)`, db, cfg.ClickHouse.SignalsTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			date Date,
			zone String,
			updated_at DateTime DEFAULT now()
		) ENGINE=ReplacingMergeTree(updated_at) ORDER BY (date)`, db, cfg.ClickHouse.ZonesTable),
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideRedisCache creates the Redis-backed cache service.
func ProvideRedisCache(cfg *config.Config) (pkgcache.Service, error) {
	c, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil if Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer, or nil if Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.BarsTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetLogger(l)
	return consumer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideBarCache creates the ClickHouse bar cache.
func ProvideBarCache(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) *internalrepo.CHBarCache {
	table := cfg.ClickHouse.Database + "." + cfg.ClickHouse.BarsTable
	bc := internalrepo.NewCHBarCache(ch, table, cfg.Universe.Benchmark)
	bc.SetLogger(l)
	return bc
}

// ProvideBarReader exposes the bar cache read side.
func ProvideBarReader(bc *internalrepo.CHBarCache) repository.BarCache { return bc }

// ProvideBarWriter exposes the bar cache write side for ingest.
func ProvideBarWriter(bc *internalrepo.CHBarCache) repository.BarWriter { return bc }

// ProvideSignalStore creates the ClickHouse signal store.
func ProvideSignalStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.SignalStore {
	table := cfg.ClickHouse.Database + "." + cfg.ClickHouse.SignalsTable
	s := internalrepo.NewCHSignalStore(ch, table)
	s.SetLogger(l)
	return s
}

// ProvideZoneHistory creates the ClickHouse zone history.
func ProvideZoneHistory(ch *pkgch.Client, cfg *config.Config) repository.ZoneHistory {
	table := cfg.ClickHouse.Database + "." + cfg.ClickHouse.ZonesTable
	return internalrepo.NewCHZoneHistory(ch, table)
}

// ProvideStateStore creates the Redis-backed evaluation state store.
func ProvideStateStore(cache pkgcache.Service) repository.StateStore {
	return internalrepo.NewRedisStateStore(cache)
}

// ProvideSignalPublisher creates the Kafka signal publisher, or nil when
// Kafka is disabled.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	if producer == nil || cfg.Kafka.SignalsTopic == "" {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalsTopic)
}

// ProvideRunConfig maps YAML engine and run settings onto the orchestrator.
func ProvideRunConfig(cfg *config.Config) usecase.RunConfig {
	return usecase.RunConfig{
		Universe: cfg.Universe.Symbols,
		Workers:  cfg.Run.Workers,
		Live:     cfg.Run.Live,
		Zone: engine.ZoneConfig{
			EpsilonUp:   cfg.Engine.EpsilonUp,
			EpsilonDown: cfg.Engine.EpsilonDown,
		},
		Basis: engine.PriceBasis(cfg.Engine.PriceBasis),
		Detector: engine.DetectorConfig{
			ConfirmBars:        cfg.Engine.ConfirmBars,
			RequireAlternating: cfg.Engine.RequireAlternating,
		},
		StoreRetryMax:   cfg.Run.StoreRetryMax,
		StoreBackoffMin: cfg.Run.StoreBackoffMin,
		StoreBackoffMax: cfg.Run.StoreBackoffMax,
	}
}

// ProvideDailyRun creates the daily evaluation orchestrator.
func ProvideDailyRun(
	bars repository.BarCache,
	signals repository.SignalStore,
	state repository.StateStore,
	zones repository.ZoneHistory,
	pub repository.SignalPublisher,
	m repository.Metrics,
	l *applogger.Logger,
	rc usecase.RunConfig,
) *usecase.DailyRun {
	return usecase.NewDailyRun(bars, signals, state, zones, pub, m, l, rc)
}

// ProvideBackfill creates the historical replay orchestrator.
func ProvideBackfill(
	bars repository.BarCache,
	signals repository.SignalStore,
	state repository.StateStore,
	zones repository.ZoneHistory,
	m repository.Metrics,
	l *applogger.Logger,
	rc usecase.RunConfig,
) *usecase.Backfill {
	return usecase.NewBackfill(bars, signals, state, zones, m, l, rc)
}

// ProvideBarsHandler registers the handler for the bar ingest topic.
func ProvideBarsHandler(cfg *config.Config, writer repository.BarWriter, l *applogger.Logger) pkgkafka.MessageHandler {
	return usecase.NewKafkaBarsHandler(cfg.Kafka.BarsTopic, writer, l)
}

// ProvideRunsHandler creates the HTTP API handler.
func ProvideRunsHandler(
	l *applogger.Logger,
	daily *usecase.DailyRun,
	backfill *usecase.Backfill,
	signals repository.SignalStore,
	state repository.StateStore,
	zones repository.ZoneHistory,
	locks pkgcache.Service,
) xhttp.Handler {
	return api.NewRunsEchoHandler(l, daily, backfill, signals, state, zones, locks)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	daily *usecase.DailyRun,
	backfill *usecase.Backfill,
	consumer *pkgkafka.Consumer,
	barsHandler pkgkafka.MessageHandler,
	pub repository.SignalPublisher,
	chClient *pkgch.Client,
	httpHandler xhttp.Handler,
) *server.App {
	app := server.New(cfg, l, daily, backfill, consumer, barsHandler, pub, chClient)
	app.SetHTTPHandler(httpHandler)
	return app
}
