//go:build wireinject
// +build wireinject

package di

import (
	"AnchorPull/pkg/config"
	"AnchorPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideBarCache,
		ProvideBarReader,
		ProvideBarWriter,
		ProvideSignalStore,
		ProvideZoneHistory,
		ProvideStateStore,
		ProvideSignalPublisher,

		// Use cases
		ProvideRunConfig,
		ProvideDailyRun,
		ProvideBackfill,
		ProvideBarsHandler,

		// HTTP
		ProvideRunsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
