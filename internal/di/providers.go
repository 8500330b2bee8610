package di

import (
	"context"
	"fmt"
	"time"

	"ExecGuard/internal/domain/models"
	"ExecGuard/internal/domain/repository"
	"ExecGuard/internal/handler/api"
	internalrepo "ExecGuard/internal/repository"
	"ExecGuard/internal/service/gateway"
	"ExecGuard/internal/service/instruments"
	"ExecGuard/internal/services/orders"
	"ExecGuard/internal/services/pricing"
	"ExecGuard/internal/services/risk"
	"ExecGuard/internal/usecase"
	"ExecGuard/pkg/cache"
	pkgch "ExecGuard/pkg/clickhouse"
	"ExecGuard/pkg/clock"
	"ExecGuard/pkg/config"
	xhttp "ExecGuard/pkg/http"
	pkgkafka "ExecGuard/pkg/kafka"
	applogger "ExecGuard/pkg/logger"
	"ExecGuard/pkg/metrics"
	"ExecGuard/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return l, l.RemoveCollector, nil
}

// ProvideRegistry creates the registry for application metrics. Runtime and Kafka
// client metrics stay on the default registry; /metrics serves both.
func ProvideRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.NewWithRegistry(reg)
}

func ProvideClock() clock.Clock { return clock.New() }

// ProvideCatalog indexes configured instruments and guardrail prices.
func ProvideCatalog(cfg *config.Config) *instruments.Catalog {
	return instruments.NewFromConfig(cfg)
}

// ProvidePriceStore selects the durable backend for the price cache.
func ProvidePriceStore(cfg *config.Config, clk clock.Clock) (repository.PriceStore, func(), error) {
	switch cfg.Cache.Backend {
	case "file":
		return internalrepo.NewFileStore(cfg.Cache.FilePath), func() {}, nil
	case "redis":
		rc, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Cache.Redis.Host),
			cache.WithRedisPort(cfg.Cache.Redis.Port),
			cache.WithRedisPassword(cfg.Cache.Redis.Password),
			cache.WithRedisDB(cfg.Cache.Redis.DB),
			cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
			cache.WithRedisPool(cfg.Cache.Redis.PoolSize, cfg.Cache.Redis.MinIdleConns, cfg.Cache.Redis.PoolTimeout),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("price store: %w", err)
		}
		return internalrepo.NewKVStore(rc, cfg.Cache.RedisKey), func() { _ = rc.Close() }, nil
	case "memory":
		mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(16), cache.WithMemoryClock(clk.Now))
		return internalrepo.NewKVStore(mc, cfg.Cache.RedisKey), func() {}, nil
	default:
		return internalrepo.NopStore{}, func() {}, nil
	}
}

// ProvidePriceCache loads the durable cache; the cleanup persists it one final time.
func ProvidePriceCache(store repository.PriceStore, cfg *config.Config, clk clock.Clock, l *applogger.Logger, m repository.Metrics) (*pricing.PriceCache, func()) {
	pc := pricing.NewPriceCache(store, pricing.CacheOptions{
		TTL:          cfg.Cache.TTL,
		PersistEvery: cfg.Cache.PersistEvery,
	}, clk, l, m)
	return pc, func() { _ = pc.Close() }
}

// ProvideGateway creates the broker gateway client. It stays disconnected until the app's health loop runs.
func ProvideGateway(cfg *config.Config, l *applogger.Logger) *gateway.Client {
	return gateway.New(cfg.Gateway, l)
}

// ProvideResolver builds the tier chain in configured order.
func ProvideResolver(
	cfg *config.Config,
	client repository.MarketDataClient,
	pc *pricing.PriceCache,
	catalog repository.InstrumentCatalog,
	clk clock.Clock,
	l *applogger.Logger,
	m repository.Metrics,
) (*pricing.Resolver, error) {
	order := make([]models.PriceTier, 0, len(cfg.Pricing.TierOrder))
	for _, t := range cfg.Pricing.TierOrder {
		order = append(order, models.PriceTier(t))
	}
	sources, err := pricing.BuildSources(order, client, pc, catalog, cfg.Pricing.RealtimeWait, cfg.Pricing.DelayedWait, clk, l)
	if err != nil {
		return nil, fmt.Errorf("price sources: %w", err)
	}
	return pricing.NewResolver(sources, pc, catalog,
		pricing.WithClock(clk),
		pricing.WithLogger(l),
		pricing.WithMetrics(m),
		pricing.WithStaleAfter(cfg.Pricing.StaleAfter),
		pricing.WithBatchParallelism(cfg.Pricing.BatchParallelism),
	), nil
}

func ProvideGenerator(cfg *config.Config, catalog repository.InstrumentCatalog, clk clock.Clock, l *applogger.Logger, m repository.Metrics) *orders.Generator {
	return orders.NewGenerator(cfg.Orders, catalog,
		orders.WithClock(clk),
		orders.WithLogger(l),
		orders.WithMetrics(m),
	)
}

func ProvideDiscipline(cfg *config.Config, clk clock.Clock, l *applogger.Logger, m repository.Metrics) *risk.Discipline {
	return risk.NewDiscipline(cfg.Risk, clk, l, m)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
// Error-level logs are aggregated onto the alerts topic through it.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}

	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval: 30 * time.Second,
		Topic:        cfg.Kafka.Topics.Alerts,
		Publisher:    internalrepo.NewAlertPublisher(producer),
	})
	return producer, func() {
		// flush pending alerts before the writer goes away
		l.RemoveCollector()
		_ = producer.Close()
	}, nil
}

// ProvidePublisher publishes orders and decisions to Kafka, or drops them when disabled.
func ProvidePublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.Publisher {
	if producer == nil {
		return internalrepo.NopPublisher{}
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topics.Orders, cfg.Kafka.Topics.Decisions)
}

// ProvideClickHouseClient connects and creates the audit schema, or returns nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if err := client.InitSchema(ctx, internalrepo.DecisionSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideAuditStorage appends decisions to ClickHouse, or drops them when disabled.
func ProvideAuditStorage(cfg *config.Config, ch *pkgch.Client) repository.AuditStorage {
	if ch == nil {
		return internalrepo.NopAuditStorage{}
	}
	return internalrepo.NewClickHouseAuditStorage(ch.DB(), cfg.ClickHouse.Database+".decisions")
}

func ProvideExecutionGate(
	resolver *pricing.Resolver,
	generator *orders.Generator,
	discipline *risk.Discipline,
	pub repository.Publisher,
	audit repository.AuditStorage,
	m repository.Metrics,
	clk clock.Clock,
	l *applogger.Logger,
) *usecase.ExecutionGate {
	return usecase.NewExecutionGate(resolver, generator, discipline, pub, audit, m, clk, l)
}

func ProvidePnLHandler(cfg *config.Config, discipline *risk.Discipline, m repository.Metrics, clk clock.Clock, l *applogger.Logger) *usecase.PnLHandler {
	return usecase.NewPnLHandler(cfg.Kafka.Topics.PnL, discipline, m, clk, l)
}

// ProvideKafkaConsumer creates the P&L feed consumer, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.LoggingHook(l, time.Second))
	return consumer, nil
}

func ProvideExecutionHandler(
	l *applogger.Logger,
	resolver *pricing.Resolver,
	pc *pricing.PriceCache,
	generator *orders.Generator,
	discipline *risk.Discipline,
	gate *usecase.ExecutionGate,
) *api.ExecutionEchoHandler {
	return api.NewExecutionEchoHandler(l, resolver, pc, generator, discipline, gate)
}

// ProvideHTTPServer registers the operator API and serves metrics from reg.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, reg *prometheus.Registry, h *api.ExecutionEchoHandler) *xhttp.Server {
	return xhttp.NewServer(l, []xhttp.Handler{h},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithRegistry(reg),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	gw *gateway.Client,
	pc *pricing.PriceCache,
	consumer *pkgkafka.Consumer,
	pnl *usecase.PnLHandler,
) *server.App {
	return server.New(cfg, l, srv, gw, pc, consumer, pnl)
}
