package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/agrocast/weather-insight-service/internal/acquire"
	"github.com/agrocast/weather-insight-service/internal/agronomy"
	"github.com/agrocast/weather-insight-service/internal/config"
	"github.com/agrocast/weather-insight-service/internal/gateway"
	"github.com/agrocast/weather-insight-service/internal/geocode"
	httphandler "github.com/agrocast/weather-insight-service/internal/http"
	"github.com/agrocast/weather-insight-service/internal/observability"
	"github.com/agrocast/weather-insight-service/internal/store"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if cfg.WeatherAPIKey == "" {
		logger.Warn("WEATHER_API_KEY not set; acquisitions will fail until configured")
	}

	gw := gateway.New(cfg.WeatherAPIKey, cfg.WeatherBaseURL, cfg.UpstreamTimeout, gateway.BreakerSettings{
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
	})
	resolver := geocode.NewResolver(gw)

	var (
		st             store.Store
		memcacheCloser *store.MemcachedStore
	)
	switch cfg.StoreBackend {
	case "memcached":
		mc, err := store.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached store", zap.Error(err))
		}
		memcacheCloser = mc
		st = mc
		logger.Info("store backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		st = store.NewMemoryStore()
		logger.Info("store backend: in_memory")
	}

	orchestrator := acquire.NewOrchestrator(resolver, gw, st, logger)

	advisor, err := agronomy.NewAdvisor()
	if err != nil {
		logger.Fatal("crop catalogue", zap.Error(err))
	}

	var storePing func() error
	if memcacheCloser != nil {
		storePing = memcacheCloser.Ping
	}
	handler := httphandler.NewHandler(orchestrator, advisor, st, logger, storePing)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	router.HandleFunc("/crops", handler.GetCrops).Methods("GET")
	router.HandleFunc("/locations", handler.GetLocations).Methods("GET")
	router.HandleFunc("/locations", handler.ClearLocations).Methods("DELETE")

	acquiring := router.NewRoute().Subrouter()
	acquiring.Use(httphandler.RateLimitMiddleware(limiter))
	acquiring.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	acquiring.HandleFunc("/weather", handler.GetWeather).Methods("GET")
	acquiring.HandleFunc("/weather/alerts", handler.GetAlerts).Methods("GET")
	acquiring.HandleFunc("/weather/agronomy/{crop}", handler.GetAgronomy).Methods("GET")
	acquiring.HandleFunc("/airquality", handler.GetAirQuality).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
