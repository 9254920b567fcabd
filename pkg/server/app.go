package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"AnchorPull/internal/domain/models"
	domrepo "AnchorPull/internal/domain/repository"
	"AnchorPull/internal/usecase"
	pkgch "AnchorPull/pkg/clickhouse"
	"AnchorPull/pkg/config"
	xhttp "AnchorPull/pkg/http"
	pkgkafka "AnchorPull/pkg/kafka"
	applogger "AnchorPull/pkg/logger"
)

// App encapsulates the application lifecycle: one-shot evaluation runs and
// the long-running serve mode with the HTTP API and bar ingest consumer.
type App struct {
	cfg         *config.Config
	l           *applogger.Logger
	daily       *usecase.DailyRun
	backfill    *usecase.Backfill
	consumer    *pkgkafka.Consumer
	barsHandler pkgkafka.MessageHandler
	publisher   domrepo.SignalPublisher
	chClient    *pkgch.Client
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	daily *usecase.DailyRun,
	backfill *usecase.Backfill,
	consumer *pkgkafka.Consumer,
	barsHandler pkgkafka.MessageHandler,
	publisher domrepo.SignalPublisher,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:         cfg,
		l:           l,
		daily:       daily,
		backfill:    backfill,
		consumer:    consumer,
		barsHandler: barsHandler,
		publisher:   publisher,
		chClient:    chClient,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// RunOnce evaluates the universe for one date and returns the summary.
func (a *App) RunOnce(ctx context.Context, asOf time.Time) (models.RunSummary, error) {
	defer a.closeClients()
	return a.daily.Run(ctx, asOf)
}

// RunBackfill replays cached history from a start date.
func (a *App) RunBackfill(ctx context.Context, from time.Time) (models.RunSummary, error) {
	defer a.closeClients()
	return a.backfill.Run(ctx, from)
}

// Serve starts the HTTP API and, when configured, the Kafka bar ingest
// consumer, then blocks until interrupted.
func (a *App) Serve() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithServerLogger(a.l),
	)

	if a.consumer != nil && a.barsHandler != nil {
		a.consumer.RegisterHandler(a.barsHandler)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.l.Info("bar ingest started", applogger.String("topic", a.barsHandler.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("serving",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Strings("universe", a.cfg.Universe.Symbols),
		applogger.String("benchmark", a.cfg.Universe.Benchmark),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.closeClients()
	a.l.Info("shutdown complete")
	return nil
}

func (a *App) closeClients() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.l.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
}
