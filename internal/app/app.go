package app

import (
	"context"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/botgateway/api/handler"
	"github.com/fastygo/botgateway/internal/config"
	"github.com/fastygo/botgateway/internal/infrastructure/accesslog"
	"github.com/fastygo/botgateway/internal/infrastructure/downstream"
	"github.com/fastygo/botgateway/internal/infrastructure/journal"
	"github.com/fastygo/botgateway/internal/infrastructure/monitor"
	redisInfra "github.com/fastygo/botgateway/internal/infrastructure/redis"
	"github.com/fastygo/botgateway/internal/metrics"
	"github.com/fastygo/botgateway/internal/middleware"
	"github.com/fastygo/botgateway/internal/router"
	"github.com/fastygo/botgateway/internal/services"
	"github.com/fastygo/botgateway/internal/services/lifecycle"
	"github.com/fastygo/botgateway/pkg/httpcontext"
	adminUC "github.com/fastygo/botgateway/usecase/admin"
)

// App is the assembled gateway: HTTP surface, health scheduler and the
// resources they share.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	manager   *lifecycle.Manager
	server    *fasthttp.Server
	scheduler *services.HealthScheduler
	botURL    string
}

// New opens every resource and wires the components. Resources opened before
// a failure are released before returning.
func New(cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	manager := lifecycle.New(cfg.Context.ShutdownTimeout, logger)
	defer func() {
		if err != nil {
			_ = manager.Shutdown(context.Background())
		}
	}()

	sink, err := accesslog.Open(cfg.AccessLogPath())
	if err != nil {
		return nil, fmt.Errorf("open access log: %w", err)
	}
	manager.Register("access_log", func(ctx context.Context) error {
		return sink.Close()
	})

	tickStore, err := journal.Open(cfg.Journal.Path, "ticks")
	if err != nil {
		return nil, fmt.Errorf("open tick journal: %w", err)
	}
	manager.Register("journal", func(ctx context.Context) error {
		return tickStore.Close()
	})
	if entries, err := tickStore.Size(); err == nil {
		logger.Info("tick journal opened", zap.String("path", cfg.Journal.Path), zap.Int("entries", entries))
	}

	redisClient, err := redisInfra.NewClient(cfg.Redis, cfg.AppName)
	if err != nil {
		return nil, fmt.Errorf("tick lease: %w", err)
	}

	var lease services.TickLease
	if redisClient != nil {
		lease = redisInfra.NewLease(redisClient, "", cfg.Health.LeaseTTL)
		logger.Info("tick lease enabled", zap.Duration("ttl", cfg.Health.LeaseTTL))
		manager.Register("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})
	}

	mtr := metrics.New("botgateway")

	client, err := downstream.New(downstream.Config{
		BaseURL:  cfg.Downstream.BaseURL,
		Timeout:  cfg.Downstream.Timeout,
		MaxConns: cfg.Downstream.MaxConns,
		Name:     cfg.AppName,
	}, mtr, logger.Named("downstream"))
	if err != nil {
		return nil, err
	}

	mon := monitor.New(client, client.Timeout(), logger)
	gateway := adminUC.New(client, mon, logger)

	scheduler, err := services.NewHealthScheduler(
		services.SchedulerDeps{
			Monitor:  mon,
			Starter:  gateway,
			Journal:  tickStore,
			Lease:    lease,
			Observer: mtr,
		},
		services.NewRestartPolicy(cfg.Health.ToleratedStates...),
		logger.Named("health"),
		services.SchedulerConfig{
			Schedule:    cfg.Health.Schedule,
			TickTimeout: cfg.Health.TickTimeout,
			Retention:   cfg.JournalRetention(),
			RunOnStart:  cfg.Health.RunOnStart,
		},
	)
	if err != nil {
		return nil, err
	}

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Health: apiHandler.NewHealthHandler(mon, ctxAdapter, logger),
		Admin:  apiHandler.NewAdminHandler(gateway, ctxAdapter, logger),
		Ticks:  apiHandler.NewTickHandler(tickStore, ctxAdapter, logger),
	}

	opts := router.Options{Pprof: cfg.HTTP.EnablePprof, Logger: logger}
	if cfg.HTTP.EnableMetrics {
		opts.Metrics = mtr.Handler()
	}
	r := router.New(handlers, opts)

	access := middleware.AccessLog(sink.Logger(), logger.Named("http"), mtr)

	server := &fasthttp.Server{
		Handler:      middleware.SecureHeaders(access(r.Handler)),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		manager:   manager,
		server:    server,
		scheduler: scheduler,
		botURL:    client.BaseURL(),
	}, nil
}

// Handler is the full middleware-wrapped request handler.
func (a *App) Handler() fasthttp.RequestHandler {
	return a.server.Handler
}

// ListenForSignals cancels the app context on SIGINT or SIGTERM.
func (a *App) ListenForSignals(cancel context.CancelFunc) {
	a.manager.Listen(cancel)
}

// Run serves on the configured address until ctx ends, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	a.scheduler.Start()
	a.manager.Register("health_scheduler", func(ctx context.Context) error {
		a.scheduler.Stop(ctx)
		return nil
	})

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server started",
			zap.String("address", a.cfg.Address()),
			zap.String("bot_service", a.botURL))
		errCh <- a.server.ListenAndServe(a.cfg.Address())
	}()

	a.manager.Register("http_server", func(ctx context.Context) error {
		return a.server.ShutdownWithContext(ctx)
	})

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		if serveErr != nil {
			a.logger.Error("server crashed", zap.Error(serveErr))
		}
	}

	if err := a.manager.Shutdown(context.Background()); err != nil {
		a.logger.Error("graceful shutdown error", zap.Error(err))
		if serveErr == nil {
			serveErr = err
		}
	}
	return serveErr
}

// Close releases resources without serving; used when Run was never called.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.manager.Shutdown(ctx)
}
