//go:build wireinject
// +build wireinject

package di

import (
	"ExecGuard/internal/domain/repository"
	"ExecGuard/internal/service/gateway"
	"ExecGuard/internal/service/instruments"
	"ExecGuard/pkg/config"
	"ExecGuard/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// The cleanup closes infrastructure in reverse construction order.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,
		ProvideClock,

		// Catalog and collaborators
		ProvideCatalog,
		wire.Bind(new(repository.InstrumentCatalog), new(*instruments.Catalog)),
		ProvideGateway,
		wire.Bind(new(repository.MarketDataClient), new(*gateway.Client)),
		ProvidePriceStore,

		// Core services
		ProvidePriceCache,
		ProvideResolver,
		ProvideGenerator,
		ProvideDiscipline,

		// Infrastructure
		ProvideKafkaProducer,
		ProvidePublisher,
		ProvideClickHouseClient,
		ProvideAuditStorage,
		ProvideKafkaConsumer,

		// Use cases and transport
		ProvideExecutionGate,
		ProvidePnLHandler,
		ProvideExecutionHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return nil, nil, nil
}
