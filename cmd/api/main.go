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

	"tanktally_backend/internal/bootstrap"
	"tanktally_backend/internal/events"
	"tanktally_backend/internal/geo"
	apphttp "tanktally_backend/internal/http"
	"tanktally_backend/internal/http/router"
	"tanktally_backend/internal/maps"
	"tanktally_backend/internal/planner"
	"tanktally_backend/internal/provider/ipapi"
	"tanktally_backend/internal/provider/mapbox"
	"tanktally_backend/internal/resolver"
	"tanktally_backend/internal/session"
	"tanktally_backend/internal/stream"
	"tanktally_backend/platform/clock"
	"tanktally_backend/platform/config"
	"tanktally_backend/platform/db"
	"tanktally_backend/platform/httpkit"
	"tanktally_backend/platform/logger"
	"tanktally_backend/platform/validator"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.NewWithFile(cfg.GetEnv(), logger.FileOptions{
		Path:       cfg.GetLogFile(),
		MaxSizeMB:  cfg.GetLogMaxSizeMB(),
		MaxBackups: cfg.GetLogMaxBackups(),
		MaxAgeDays: cfg.GetLogMaxAgeDays(),
	})
	log.Info("starting server", "env", cfg.GetEnv(), "addr", cfg.GetHTTPAddr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	rdb := connectRedis(ctx, cfg, log)
	if rdb != nil {
		defer rdb.Close()
	}

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	policy, err := session.ParsePolicy(cfg.GetSessionRotation())
	if err != nil {
		panic("invalid session rotation: " + err.Error())
	}

	mapboxClient := mapbox.NewFromConfig(cfg, cfg.GetSuggestLimit(), log)
	originClient := ipapi.New(cfg.GetIPLookupURL(), cfg.GetProviderTimeout(), log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	boot := bootstrap.New(bootstrap.Options{
		Origin:   originClient,
		Geocoder: mapboxClient,
		Fallback: geo.View{
			Center: geo.Coordinates{Longitude: cfg.GetDefaultLongitude(), Latitude: cfg.GetDefaultLatitude()},
			Zoom:   cfg.GetDefaultZoom(),
		},
		RegionalZoom: cfg.GetRegionalZoom(),
		StepTimeout:  cfg.GetBootstrapTimeout(),
		Log:          log,
	})

	coordinateResolver := resolver.New(mapboxClient, log)
	registry := planner.NewRegistry(planner.Dependencies{
		Geocoder: mapboxClient,
		Router:   mapboxClient,
		Resolver: coordinateResolver,
		Clock:    clock.Real(),
		Bus:      eventBus,
		Log:      log,
	}, planner.Settings{
		Debounce: cfg.GetSuggestDebounce(),
		Rotation: policy,
	}, boot, cfg.GetPlannerIdleTTL())

	streamService := stream.New(log)
	streamService.Subscribe(eventBus)
	registry.KeepWatched(streamService.Clients)
	defer streamService.Close()

	snapshot := func(ctx context.Context, plannerID string) (interface{}, error) {
		return registry.SnapshotOf(ctx, plannerID)
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	apiLimit, err := httpkit.NewAPIRateLimiter(cfg.GetAPIRateLimit(), rdb, log)
	if err != nil {
		panic("failed to configure rate limiter: " + err.Error())
	}

	app := &apphttp.App{
		Config:            cfg,
		Logger:            log,
		EventBus:          eventBus,
		RateLimit:         apiLimit,
		CreateRateLimiter: httpkit.NewIPRateLimiter(rate.Every(6*time.Second), 10, log),
		Modules: []apphttp.Module{
			planner.NewModule(registry, val),
			stream.NewModule(streamService, snapshot),
			maps.NewModule(mapboxClient, mapboxClient, coordinateResolver, val),
		},
	}
	if rdb != nil {
		app.Health = db.NewHealthAdapter(rdb)
	}

	srv := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.GetHTTPAddr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return registry.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		// Shutdown waits for active handlers, so end the event streams first.
		streamService.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// connectRedis returns nil when no Redis is configured or it stays
// unreachable, in which case rate limit counters live in process memory.
func connectRedis(ctx context.Context, cfg config.RateLimitConfig, log *logger.Logger) *redis.Client {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; rate limits are per instance")
		return nil
	}

	var client *redis.Client
	if err := withRetry(ctx, log, "redis connection", 5, 2*time.Second, func() error {
		c, err := db.NewClient(ctx, cfg)
		if err != nil {
			return err
		}
		client = c
		return nil
	}); err != nil {
		log.Error("failed to connect to redis; rate limits are per instance", "error", err)
		return nil
	}
	log.Info("redis connection established")
	return client
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
