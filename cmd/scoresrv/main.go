package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"credit-scoring/internal/cache"
	"credit-scoring/internal/cfg"
	"credit-scoring/internal/metrics"
	"credit-scoring/internal/ml"
	"credit-scoring/internal/server"
	"credit-scoring/internal/service"
	"credit-scoring/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup happens before exit.
func run() int {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(c.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scorers, err := loadModels(c)
	if err != nil {
		log.Error().Err(err).Msg("model load failed")
		return 1
	}

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	opts := []service.Option{service.WithMetrics(mw)}
	g, gctx := errgroup.WithContext(ctx)

	predCache, closeCache := initializeCache(gctx, g, c)
	if closeCache != nil {
		defer closeCache()
	}
	if predCache != nil {
		opts = append(opts, service.WithCache(predCache))
	}

	svc, err := service.New(scorers, opts...)
	if err != nil {
		log.Error().Err(err).Msg("service init failed")
		return 1
	}

	var scatter server.ScatterSource
	if store := initializeStorage(c); store != nil {
		defer store.Close()
		scatter = store
	}

	srv := server.New(svc, scatter, mw, server.Config{
		Addr:              c.Addr(),
		CORSOrigin:        c.CORSOrigin,
		ScatterSampleSize: c.ScatterSampleSize,
	})

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return 1
	}
	log.Info().Msg("server stopped")
	return 0
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

// loadModels loads both artifacts. The registry's active version of a kind
// wins over the configured path. Any missing or corrupt artifact fails the
// whole load.
func loadModels(c cfg.Settings) ([]ml.Scorer, error) {
	models, err := ml.NewModelManager(c.ModelsDir)
	if err != nil {
		return nil, err
	}
	paths := []struct {
		kind ml.Kind
		path string
	}{
		{ml.KindCredit, models.ServedPath(ml.KindCredit, c.CreditModelPath)},
		{ml.KindApproval, models.ServedPath(ml.KindApproval, c.ApprovalModelPath)},
	}

	scorers := make([]ml.Scorer, 0, len(paths))
	for _, p := range paths {
		pipeline, err := ml.LoadPipeline(p.path)
		if err != nil {
			return nil, fmt.Errorf("%s model: %w", p.kind, err)
		}
		if pipeline.Kind() != p.kind {
			return nil, fmt.Errorf("%s: holds a %s model, want %s", p.path, pipeline.Kind(), p.kind)
		}
		meta := pipeline.Metadata()
		log.Info().
			Str("kind", string(p.kind)).
			Str("path", p.path).
			Time("created_at", meta.CreatedAt).
			Int("train_rows", meta.TrainRows).
			Msg("model loaded")
		scorers = append(scorers, pipeline)
	}
	return scorers, nil
}

// initializeCache picks Redis when REDIS_ADDR is set and an in-process cache
// with oldest-entry eviction otherwise. A zero CACHE_SIZE disables caching.
func initializeCache(ctx context.Context, g *errgroup.Group, c cfg.Settings) (cache.Cache, func()) {
	if c.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, c.RedisAddr, c.CacheTTL)
		if err != nil {
			log.Warn().Err(err).Str("addr", c.RedisAddr).Msg("redis unavailable, falling back to memory cache")
		} else {
			log.Info().Str("addr", c.RedisAddr).Msg("using redis prediction cache")
			return rc, func() { rc.Close() }
		}
	}
	if c.CacheSize <= 0 {
		return nil, nil
	}

	mc := cache.NewMemoryCache(c.CacheSize, c.CacheTTL)
	g.Go(func() error {
		mc.RunSweeper(ctx)
		return nil
	})
	log.Info().Int("size", c.CacheSize).Dur("ttl", c.CacheTTL).Msg("using memory prediction cache")
	return mc, nil
}

// initializeStorage opens the applicant store if DATA_PATH is configured
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, /scatter disabled")
		return nil
	}
	return store
}
