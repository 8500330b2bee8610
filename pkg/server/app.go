package server

import (
	"context"
	"time"

	"ExecGuard/internal/service/gateway"
	"ExecGuard/internal/services/pricing"
	"ExecGuard/pkg/config"
	xhttp "ExecGuard/pkg/http"
	pkgkafka "ExecGuard/pkg/kafka"
	applogger "ExecGuard/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	gateway    *gateway.Client
	cache      *pricing.PriceCache
	consumer   *pkgkafka.Consumer
	pnl        pkgkafka.MessageHandler
}

// New creates a new App instance. consumer may be nil when Kafka is disabled.
// Infrastructure clients are closed by the injector's cleanup, not by App.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	gw *gateway.Client,
	cache *pricing.PriceCache,
	consumer *pkgkafka.Consumer,
	pnl pkgkafka.MessageHandler,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		gateway:    gw,
		cache:      cache,
		consumer:   consumer,
		pnl:        pnl,
	}
}

// Run starts every component and blocks until ctx is cancelled, then shuts down.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Gateway.Enabled && a.gateway != nil {
		go a.gateway.RunHealthLoop(ctx, a.cfg.Gateway.HealthInterval)
		a.log.Info("gateway health loop started", applogger.String("base_url", a.cfg.Gateway.BaseURL))
	}

	if a.consumer != nil && a.pnl != nil {
		a.consumer.RegisterHandler(a.pnl)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.pnl.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops intake first, then flushes cached prices.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.httpServer.ShutdownTimeout()+5*time.Second)
	defer cancel()

	httpCtx, httpCancel := context.WithTimeout(ctx, a.httpServer.ShutdownTimeout())
	defer httpCancel()
	if err := a.httpServer.Stop(httpCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.gateway != nil {
		_ = a.gateway.Close()
	}

	if a.cache != nil {
		a.cache.Flush()
		a.log.Info("price cache flushed", applogger.Int("entries", a.cache.Metrics().Size))
	}

	a.log.Info("shutdown complete")
	return nil
}
