// Code generated by Wire. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package di

import (
	"AnchorPull/pkg/config"
	"AnchorPull/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	client, err := ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, err
	}
	chBarCache := ProvideBarCache(client, cfg, logger)
	barCache := ProvideBarReader(chBarCache)
	signalStore := ProvideSignalStore(client, cfg, logger)
	service, err := ProvideRedisCache(cfg)
	if err != nil {
		return nil, err
	}
	stateStore := ProvideStateStore(service)
	zoneHistory := ProvideZoneHistory(client, cfg)
	producer, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, err
	}
	signalPublisher := ProvideSignalPublisher(producer, cfg)
	metrics := ProvideMetrics()
	runConfig := ProvideRunConfig(cfg)
	dailyRun := ProvideDailyRun(barCache, signalStore, stateStore, zoneHistory, signalPublisher, metrics, logger, runConfig)
	backfill := ProvideBackfill(barCache, signalStore, stateStore, zoneHistory, metrics, logger, runConfig)
	consumer, err := ProvideKafkaConsumer(cfg, logger)
	if err != nil {
		return nil, err
	}
	barWriter := ProvideBarWriter(chBarCache)
	messageHandler := ProvideBarsHandler(cfg, barWriter, logger)
	handler := ProvideRunsHandler(logger, dailyRun, backfill, signalStore, stateStore, zoneHistory, service)
	app := ProvideApp(cfg, logger, dailyRun, backfill, consumer, messageHandler, signalPublisher, client, handler)
	return app, nil
}
