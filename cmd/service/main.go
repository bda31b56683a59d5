package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/fwi-predictor/internal/artifact"
	"github.com/kjstillabower/fwi-predictor/internal/cache"
	"github.com/kjstillabower/fwi-predictor/internal/circuitbreaker"
	"github.com/kjstillabower/fwi-predictor/internal/config"
	httphandler "github.com/kjstillabower/fwi-predictor/internal/http"
	"github.com/kjstillabower/fwi-predictor/internal/lifecycle"
	"github.com/kjstillabower/fwi-predictor/internal/observability"
	"github.com/kjstillabower/fwi-predictor/internal/service"
)

func main() {
	logger, err := observability.NewLogger(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if cfg.Debug {
		if logger, err = observability.NewLogger(true); err != nil {
			fmt.Fprintf(os.Stderr, "logger: %v\n", err)
			os.Exit(1)
		}
	}
	logger, logCloser := observability.WithLogFile(logger, observability.LogFile{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	defer func() {
		_ = logger.Sync()
		if logCloser != nil {
			_ = logCloser.Close()
		}
	}()

	store, err := artifact.Load(cfg.ScalerPath, cfg.ModelPath)
	if err != nil {
		logger.Fatal("artifacts", zap.Error(err))
	}
	observability.SetArtifactFingerprint(store.Fingerprint())
	logger.Info("artifacts loaded",
		zap.String("scaler", cfg.ScalerPath),
		zap.String("model", cfg.ModelPath),
		zap.String("fingerprint", store.Fingerprint()))

	cacheSvc, memcacheCloser, err := buildCache(cfg, logger)
	if err != nil {
		logger.Fatal("cache", zap.Error(err))
	}
	logger.Info("cache backend: "+cfg.CacheBackend, zap.Duration("ttl", cfg.CacheTTL))
	predictionService := service.NewPredictionService(store.Scaler(), store.Model(), store.Fingerprint(),
		cacheSvc, cfg.CacheBackend, cfg.CacheTTL)

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
		StartTime:            time.Now(),
		ArtifactFingerprint:  store.Fingerprint(),
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	observability.RegisterTrafficGauges(cfg.OverloadWindow)

	handler := httphandler.NewHandler(predictionService, healthConfig, logger)
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
	}, logger)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", cfg.Addr()), zap.Bool("debug", cfg.Debug))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.BeginShutdown(time.Now())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

// buildCache returns the result cache for the configured backend. The memcached client is
// also returned so main can wire its health ping and close it on shutdown.
func buildCache(cfg *config.Config, logger *zap.Logger) (cache.Cache, *cache.MemcachedCache, error) {
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, nil, fmt.Errorf("memcached cache: %w", err)
		}
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.MemcachedBreakerFailures,
			Cooldown:         cfg.MemcachedBreakerCooldown,
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.RecordCacheBreakerTransition(from.String(), to.String(), int(to))
				logger.Warn("memcached circuit breaker", zap.String("from", from.String()), zap.String("to", to.String()))
			},
		})
		return cache.NewBreakerCache(mc, cb), mc, nil
	case "none":
		return nil, nil, nil
	default:
		return cache.NewInMemoryCache(cfg.CacheSize, cfg.CacheTTL), nil, nil
	}
}
