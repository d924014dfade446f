package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/schoolshop/internal/domain/auth"
	"github.com/xenking/schoolshop/internal/domain/checkout"
	"github.com/xenking/schoolshop/internal/domain/gateway"
	"github.com/xenking/schoolshop/internal/domain/order"
	"github.com/xenking/schoolshop/internal/domain/product"
	"github.com/xenking/schoolshop/internal/domain/settings"
	"github.com/xenking/schoolshop/internal/handler"
	"github.com/xenking/schoolshop/internal/storage/memory"
	"github.com/xenking/schoolshop/internal/storage/postgres"
	"github.com/xenking/schoolshop/internal/storage/sqlite"
	"github.com/xenking/schoolshop/internal/storefront"
	"github.com/xenking/schoolshop/pkg/health"
	"github.com/xenking/schoolshop/pkg/httpmiddleware"
)

// backend is the selected Data Access Gateway with its admin key source.
type backend struct {
	gw    gateway.Gateway
	keys  auth.Repository
	close func()
}

// openBackend connects the configured gateway. PostgreSQL readiness is
// registered with hs.
func openBackend(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config, hs *health.Health) (*backend, error) {
	pepper := []byte(cfg.Admin.KeyPepper)
	if cfg.Backend == BackendMemory {
		lg.Warn("Using in-memory backend, data is lost on restart")
		return &backend{
			gw: memory.New(),
			keys: auth.StaticRepository{{
				ID:      "local",
				KeyHash: auth.Hash(pepper, cfg.Admin.Secret),
				Name:    "local admin",
			}},
			close: func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	hs.Add(health.Readiness, "postgres", health.PingCheck(pool), health.WithTimeout(5*time.Second))
	return &backend{
		gw:    postgres.NewGateway(pool, postgres.WithTracerProvider(m.TracerProvider())),
		keys:  postgres.NewAdminKeyRepository(pool),
		close: pool.Close,
	}, nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("backend", string(cfg.Backend)),
	)
	ctx = zctx.Base(ctx, lg)

	healthSvc := health.New()
	be, err := openBackend(ctx, lg, m, cfg, healthSvc)
	if err != nil {
		return err
	}
	defer be.close()

	sessions, err := sqlite.Open(ctx, cfg.Session.DB)
	if err != nil {
		return errors.Wrap(err, "open session store")
	}
	defer func() { _ = sessions.Close() }()

	healthSvc.Add(health.Readiness, "sessions", health.PingCheck(sessions))
	healthSvc.Add(health.Liveness, "goroutines", health.GoroutineCountCheck(10000))

	// Domain services.
	catalog := product.NewService(product.NewGatewayRepository(be.gw))
	orderRepo := order.NewGatewayRepository(be.gw)
	orders := order.NewService(orderRepo)
	site := settings.NewStore(be.gw)
	if err := site.EnsureDefaults(ctx); err != nil {
		lg.Warn("Site settings defaults not written", zap.Error(err))
	}

	metrics, err := checkout.NewMetrics(m.MeterProvider().Meter("schoolshop/checkout"))
	if err != nil {
		return errors.Wrap(err, "checkout metrics")
	}
	registry := storefront.NewRegistry(sessions, orderRepo, storefront.Config{
		IdleTimeout:     cfg.Session.IdleTimeout,
		CheckoutOptions: []checkout.Option{checkout.WithMetrics(metrics)},
	})
	go registry.Run(ctx, cfg.Session.IdleTimeout/2)

	// HTTP handlers.
	limit := func(max int) httpmiddleware.Middleware {
		return httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:     max,
			Window:  cfg.RateLimit.Window,
			KeyFunc: handler.SessionKey,
		})
	}
	h := handler.NewHandler(
		handler.HandlerConfig{
			ImageBaseURL:  cfg.ImageBaseURL,
			CookieSecure:  cfg.Session.CookieSecure,
			CheckoutLimit: limit(cfg.RateLimit.Checkout),
			LoginLimit:    limit(cfg.RateLimit.Login),
		},
		catalog,
		orders,
		site,
		registry,
		auth.NewKeyChecker(be.keys, []byte(cfg.Admin.KeyPepper)),
	)

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Router: health endpoints + API routes on one server.
	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	h.Routes(router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Instrument("schoolshop", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.RequestID(),
			httpmiddleware.LogRequests(),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
