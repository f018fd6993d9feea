package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/shop-api/internal/domain/auth"
	"github.com/xenking/shop-api/internal/domain/cart"
	"github.com/xenking/shop-api/internal/domain/expert"
	"github.com/xenking/shop-api/internal/domain/order"
	"github.com/xenking/shop-api/internal/domain/product"
	"github.com/xenking/shop-api/internal/domain/user"
	"github.com/xenking/shop-api/internal/handler"
	"github.com/xenking/shop-api/internal/openai"
	"github.com/xenking/shop-api/internal/storage/postgres"
	rediscache "github.com/xenking/shop-api/internal/storage/redis"
	"github.com/xenking/shop-api/pkg/health"
	"github.com/xenking/shop-api/pkg/httpmiddleware"
)

const serviceName = "shop-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	healthSvc := health.New()
	healthSvc.Register(health.Probe{
		Name:    "postgres",
		Kind:    health.Readiness,
		Timeout: 5 * time.Second,
		Check:   health.PingCheck(pool),
	})
	healthSvc.Register(health.Probe{
		Name:    "goroutines",
		Kind:    health.Liveness,
		Timeout: time.Second,
		Check:   health.GoroutineCountCheck(10000),
	})

	// Repositories.
	var products product.Repository = postgres.NewProductRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)
	userRepo := postgres.NewUserRepository(pool)

	var limiter httpmiddleware.Limiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "parse redis url")
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()

		cache := rediscache.NewProductCache(products, rdb, cfg.Catalog.CacheTTL)
		products = cache
		limiter = rediscache.NewFixedWindow(rdb, cfg.RateLimit.Max, cfg.RateLimit.Window)
		healthSvc.Register(health.Probe{
			Name:    "redis",
			Kind:    health.Readiness,
			Timeout: 2 * time.Second,
			Check:   health.PingCheck(cache),
		})
		lg.Info("Redis enabled", zap.String("addr", opts.Addr))
	} else {
		window := httpmiddleware.NewSlidingWindow(cfg.RateLimit.Max, cfg.RateLimit.Window)
		go window.Run(ctx)
		limiter = window
	}

	// Domain services.
	tokens := auth.NewTokenManager([]byte(cfg.Auth.Secret), cfg.Auth.TokenTTL)
	orderService := order.NewService(orderRepo)
	productService := product.NewService(
		product.ServiceConfig{StrictPurchaseGate: cfg.Catalog.StrictPurchaseGate},
		products,
		orderService,
	)

	var chat expert.Client
	if cfg.Expert.APIKey != "" {
		chat = openai.NewClient(openai.Options{
			APIKey:         cfg.Expert.APIKey,
			BaseURL:        cfg.Expert.BaseURL,
			Model:          cfg.Expert.Model,
			Timeout:        cfg.Expert.Timeout,
			TracerProvider: m.TracerProvider(),
			MeterProvider:  m.MeterProvider(),
		})
	} else {
		lg.Warn("Product expert disabled: no API key configured")
	}

	// HTTP handlers.
	h := handler.NewHandler(
		handler.HandlerConfig{ImageBaseURL: cfg.ImageBaseURL},
		handler.Services{
			Products: productService,
			Carts:    cart.NewService(cartRepo, products),
			Orders:   orderService,
			Users:    user.NewService(userRepo, tokens),
			Expert:   expert.NewService(products, chat),
		},
		tokens,
	)

	routes, err := httpmiddleware.NewRoutes(m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create route metrics")
	}

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", h.Router(httpmiddleware.LogRequests(), routes.Middleware()))

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Expert.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Instrument(serviceName, m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				Origins:          cfg.CORS.Origins,
				Headers:          []string{"Content-Type", "Authorization", httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "Retry-After"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           24 * time.Hour,
			}),
			httpmiddleware.RateLimit(limiter, httpmiddleware.ClientIP),
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
