package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/cczslater/sellbuydeal-sub000/internal/app"
	"github.com/cczslater/sellbuydeal-sub000/internal/config"
	"github.com/cczslater/sellbuydeal-sub000/internal/domain/credit"
	"github.com/cczslater/sellbuydeal-sub000/internal/domain/gateway"
	"github.com/cczslater/sellbuydeal-sub000/internal/domain/loyalty"
	"github.com/cczslater/sellbuydeal-sub000/internal/domain/promotion"
	"github.com/cczslater/sellbuydeal-sub000/internal/middleware"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/idempotency"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/jwt"
	"github.com/cczslater/sellbuydeal-sub000/internal/pkg/logger"
	pkgresponse "github.com/cczslater/sellbuydeal-sub000/internal/pkg/response"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		Service:     "api",
		LogFile:     cfg.LogFile,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Str("store", cfg.StoreDriver).
		Msg("Starting SellBuyDeal API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAccessTTL)

	var idem *idempotency.Manager
	if a.Redis != nil {
		idem = idempotency.NewManager(a.Redis, a.Redis.Key("idempotency"), cfg.IdempotencyTTL)
	} else {
		log.Warn().Msg("Idempotency keys disabled, Redis not configured")
	}

	workerDone := make(chan struct{})
	if cfg.RunWorkers {
		w, err := a.Worker()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create worker")
		}
		go func() {
			defer close(workerDone)
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Worker stopped")
			}
		}()
	} else {
		close(workerDone)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(a, jwtService, idem),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	<-workerDone

	log.Info().Msg("Server exited properly")
}

func newRouter(a *app.App, jwtService *jwt.Service, idem *idempotency.Manager) http.Handler {
	authMiddleware := middleware.Auth(jwtService)

	creditHandler := credit.NewHandler(a.Credits)
	loyaltyHandler := loyalty.NewHandler(a.Loyalty, a.Promotions)
	promotionHandler := promotion.NewHandler(a.Promotions)
	gatewayHandler := gateway.NewHandler(a.Gateway, idem)

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(a.Config.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("Health check failed")
			pkgresponse.ServiceUnavailable(w, "dependency unavailable")
			return
		}
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})
	r.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			pkgresponse.OK(w, map[string]string{"message": "pong"})
		})

		r.Mount("/credits", creditHandler.Routes(authMiddleware))
		r.Mount("/loyalty", loyaltyHandler.Routes(authMiddleware))
		r.Mount("/promotions", promotionHandler.Routes(authMiddleware))
		r.Mount("/gateway", gatewayHandler.Routes(authMiddleware))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Mount("/credits", creditHandler.AdminRoutes(authMiddleware))
		r.Mount("/loyalty", loyaltyHandler.AdminRoutes(authMiddleware))
		r.Mount("/promotions", promotionHandler.AdminRoutes(authMiddleware))
		r.Mount("/gateway", gatewayHandler.AdminRoutes(authMiddleware))
	})

	return r
}
