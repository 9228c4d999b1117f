// Command gateway fronts the C12 simulator with a job ledger, result cache,
// event stream and REST/WebSocket API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/c12qe/c12sim-go/internal/api"
	"github.com/c12qe/c12sim-go/internal/config"
	handler "github.com/c12qe/c12sim-go/internal/delivery/http"
	"github.com/c12qe/c12sim-go/internal/publisher"
	"github.com/c12qe/c12sim-go/internal/repository/postgres"
	redisrepo "github.com/c12qe/c12sim-go/internal/repository/redis"
	"github.com/c12qe/c12sim-go/internal/usecase"
	"github.com/c12qe/c12sim-go/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, cfgErr := config.Load()

	logger := newLogger(cfgErr == nil && cfg.C12.Verbose)
	defer logger.Sync()

	if cfgErr != nil {
		logger.Fatal("Failed to load configuration", zap.Error(cfgErr))
	}
	logger.Info("Starting C12 simulator gateway", zap.Bool("verbose", cfg.C12.Verbose))

	gin.SetMode(cfg.Gateway.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL
	dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer dbPool.Close()
	if err := dbPool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping PostgreSQL", zap.Error(err))
	}
	if err := postgres.Migrate(ctx, dbPool); err != nil {
		logger.Fatal("Failed to migrate schema", zap.Error(err))
	}
	logger.Info("Connected to PostgreSQL")

	// Connect to Redis
	redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Fatal("Invalid Redis URL", zap.Error(err))
	}
	redisClient := goredis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to ping Redis", zap.Error(err))
	}
	logger.Info("Connected to Redis")

	pub, err := publisher.NewRabbitMQPublisher(cfg.RabbitMQ.URL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize RabbitMQ publisher", zap.Error(err))
	}
	defer pub.Close()
	logger.Info("Connected to RabbitMQ")

	client, err := api.NewClient(cfg.C12.BaseURL(), cfg.C12.Token,
		api.WithLogger(logger),
		api.WithTimeout(cfg.C12.RequestTimeout),
	)
	if err != nil {
		logger.Fatal("Invalid simulator address", zap.Error(err))
	}

	jobRepo := postgres.NewPostgresJobRepository(dbPool)
	resultCache := redisrepo.NewRedisResultCache(redisClient)

	g, gctx := errgroup.WithContext(ctx)

	watchUC := usecase.NewWatchJobUsecase(client, jobRepo, resultCache, pub, usecase.WatchOptions{
		PollWait: cfg.C12.PollWait,
		Timeout:  cfg.C12.PollTimeout,
	}, logger)
	pool := watcher.NewPool(cfg.Watcher.PoolSize, cfg.Watcher.PoolSize*16, watchUC, logger)
	pool.Start(gctx)
	defer pool.Stop()

	router := handler.NewRouter(gctx, handler.Usecases{
		Submit:   usecase.NewSubmitJobUsecase(client, jobRepo, pool, cfg.C12.Backend, logger),
		GetJob:   usecase.NewGetJobUsecase(client, jobRepo, resultCache, logger),
		Backends: usecase.NewListBackendsUsecase(client),
	}, healthChecks(
		dbPool.Ping,
		func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		pub,
		client.Health,
	), logger, cfg.Gateway.RateLimit)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Gateway.Port),
		Handler:      router,
		ReadTimeout:  cfg.Gateway.ReadTimeout,
		WriteTimeout: cfg.Gateway.WriteTimeout,
	}

	// Resume jobs left pending by a previous run.
	g.Go(func() error {
		ids, err := jobRepo.ListPending(gctx)
		if err != nil {
			return fmt.Errorf("list pending jobs: %w", err)
		}
		for _, id := range ids {
			if err := pool.Enqueue(gctx, id); err != nil {
				logger.Warn("Failed to resume job", zap.String("job_id", id.String()), zap.Error(err))
				return nil
			}
		}
		logger.Info("Resumed pending jobs", zap.Int("count", len(ids)))
		return nil
	})

	g.Go(func() error {
		logger.Info("Gateway listening", zap.Int("port", cfg.Gateway.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gateway...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Gateway stopped with error", zap.Error(err))
	}
	logger.Info("Gateway stopped")
}

// newLogger returns the development logger in verbose mode, the production one otherwise.
func newLogger(verbose bool) *zap.Logger {
	build := zap.NewProduction
	if verbose {
		build = zap.NewDevelopment
	}
	logger, err := build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func healthChecks(db, cache handler.Check, pub publisher.Publisher, simulator handler.Check) map[string]handler.Check {
	return map[string]handler.Check{
		"postgres":  db,
		"redis":     cache,
		"rabbitmq":  pub.Ping,
		"simulator": simulator,
	}
}
