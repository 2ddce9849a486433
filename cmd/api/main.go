package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"influencer-attribution-api/internal/cache"
	"influencer-attribution-api/internal/config"
	"influencer-attribution-api/internal/database"
	"influencer-attribution-api/internal/events"
	"influencer-attribution-api/internal/features"
	"influencer-attribution-api/internal/handler"
	"influencer-attribution-api/internal/logger"
	"influencer-attribution-api/internal/middleware"
	"influencer-attribution-api/internal/referral"
	"influencer-attribution-api/internal/service"
	"influencer-attribution-api/internal/tracing"
)

const serviceName = "influencer-attribution-api"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configFile := flag.String("config", "", "Path to a JSON config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()
	zap.ReplaceGlobals(zlog)

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	var c cache.Cache
	firstTouch := service.FirstTouchDatabase
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			return err
		}
		defer rc.Close()
		c = rc
		firstTouch = service.FirstTouchCache
		zlog.Info("using redis cache", zap.String("addr", cfg.Redis.Addr))
	} else {
		mc := cache.NewInMemoryCache()
		defer mc.Close()
		c = mc
		zlog.Info("using in-memory cache, first touches stored in sqlite")
	}

	if _, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: serviceName,
		Environment: cfg.Tracing.Environment,
		Version:     version,
	}); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(ctx); err != nil {
			zlog.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	flags := features.NewManager()
	flags.Register(features.AnalyticsCache, cfg.Features.AnalyticsCache, "cache influencer analytics until the next mutation")
	flags.Register(features.EventHooks, cfg.Features.EventHooks, "publish domain events to subscribers")

	ev := events.NewManager(cfg.Features.EventHooks, zlog)
	ev.SubscribeAll(events.AuditHandler(zlog.Named("audit")))
	defer ev.Shutdown()

	svc := service.NewService(db, c, ev, flags, service.Options{
		Generator: referral.NewGenerator(
			cfg.Attribution.BaseURL,
			cfg.Attribution.Medium,
			cfg.Attribution.DefaultCampaign,
		),
		CacheTTL:     cfg.Analytics.CacheTTL,
		MaxRangeDays: cfg.Analytics.MaxRangeDays,
		FirstTouch:   firstTouch,
	})

	h := handler.NewHandlerWithOptions(svc, handler.NewHandlerOptions{
		MaxBodySize: cfg.Security.MaxRequestBodySize,
	})

	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logger.Middleware(zlog))
	r.Use(chimw.Recoverer)

	if cfg.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Rate, time.Duration(cfg.RateLimit.Window)*time.Second)
		defer rateLimiter.Stop()
		r.Use(middleware.RateLimitMiddleware(rateLimiter))
	}

	r.Use(middleware.TracingMiddleware(serviceName))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Security.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	h.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		zlog.Info("starting server",
			zap.String("addr", addr),
			zap.Bool("tls", cfg.Server.TLSEnabled()),
			zap.String("database", cfg.Database.Path),
			zap.Int("rate_limit", cfg.RateLimit.Rate),
			zap.Int("rate_window_seconds", cfg.RateLimit.Window),
		)
		if cfg.Server.TLSEnabled() {
			serveErr <- server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			serveErr <- server.ListenAndServe()
		}
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-sigint:
	}

	zlog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
