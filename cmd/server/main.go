package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Clark-Hu/movie-reviews/internal/auth"
	"github.com/Clark-Hu/movie-reviews/internal/cache"
	"github.com/Clark-Hu/movie-reviews/internal/config"
	"github.com/Clark-Hu/movie-reviews/internal/coordinator"
	httpserver "github.com/Clark-Hu/movie-reviews/internal/http"
	"github.com/Clark-Hu/movie-reviews/internal/logging"
	"github.com/Clark-Hu/movie-reviews/internal/repository"
	"github.com/Clark-Hu/movie-reviews/internal/repository/memory"
	"github.com/Clark-Hu/movie-reviews/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var (
		db     repository.Database
		health httpserver.HealthChecker
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		db = memory.New()
	default:
		dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		st, err := store.New(dbCtx, cfg.DBURL, store.Options{
			MaxConns:               int32(cfg.DBMaxConns),
			MinConns:               int32(cfg.DBMinConns),
			MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
			MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
			ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
			StatementCacheCapacity: cfg.DBStatementCache,
			Logger:                 logger,
		})
		cancel()
		if err != nil {
			logger.Fatal("connect database", zap.Error(err))
		}
		defer st.Close()
		st.RegisterMetrics(reg)
		db = repository.New(st, time.Duration(cfg.TxTimeoutSecs)*time.Second)
		health = st
	}

	movieCache, closeCache := buildCache(ctx, cfg, logger)
	defer closeCache()

	coord := coordinator.New(db,
		cache.NewMovieReader(movieCache, logger.Named("cache")),
		coordinator.NewMetrics(reg),
		logger.Named("coordinator"),
	)
	verifier := auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}
	server := httpserver.New(cfg, health, coord, verifier, reg, logger.Named("http"))

	logger.Info("starting server", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver))

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			logger.Error("server error", zap.Error(err))
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("graceful shutdown error", zap.Error(err))
	}
}

// buildCache picks Redis when REDIS_URL is set and reachable, otherwise the
// in-process cache.
func buildCache(ctx context.Context, cfg config.Config, logger *zap.Logger) (cache.Cache, func()) {
	ttl := time.Duration(cfg.CacheTTLSecs) * time.Second
	if cfg.RedisURL == "" {
		return cache.NewMemoryCache(ttl), func() {}
	}

	rc, err := cache.NewRedisCache(cfg.RedisURL, ttl)
	if err != nil {
		logger.Warn("invalid REDIS_URL, falling back to in-process cache", zap.Error(err))
		return cache.NewMemoryCache(ttl), func() {}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable, falling back to in-process cache", zap.Error(err))
		_ = rc.Close()
		return cache.NewMemoryCache(ttl), func() {}
	}
	logger.Info("using redis movie cache", zap.Duration("ttl", ttl))
	return rc, func() { _ = rc.Close() }
}
