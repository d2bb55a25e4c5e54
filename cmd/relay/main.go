package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/relay/core/auth"
	"github.com/dmitrymomot/relay/core/config"
	"github.com/dmitrymomot/relay/core/logger"
	"github.com/dmitrymomot/relay/core/metrics"
	"github.com/dmitrymomot/relay/core/relay"
	"github.com/dmitrymomot/relay/core/server"
	"github.com/dmitrymomot/relay/integration/database/redis"
	"github.com/dmitrymomot/relay/pkg/ratelimiter"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg Config
	config.MustLoad(&cfg)

	log := newLogger(cfg)
	logger.SetAsDefault(log)

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Relay stopped with error", logger.Error(err))
		os.Exit(1)
	}

	log.Info("Relay stopped")
}

func newLogger(cfg Config) *slog.Logger {
	opts := []logger.Option{logger.WithContextExtractors(logger.AttrsFromContext)}
	if cfg.AppEnv == "production" {
		opts = append(opts, logger.WithProduction(cfg.AppName))
	} else {
		opts = append(opts, logger.WithDevelopment(cfg.AppName))
	}
	opts = append(opts, logger.WithLevel(logger.ParseLevel(cfg.LogLevel)))
	return logger.New(opts...)
}

func run(ctx context.Context, cfg Config, log *slog.Logger) error {
	if err := cfg.Relay.Validate(); err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)

	registryOpts := []metrics.Option{
		metrics.WithPrefix(cfg.Relay.MetricsPrefix),
		metrics.WithLogger(log.With(logger.Component("metrics"))),
	}
	if cfg.Relay.MetricsRuntime {
		registryOpts = append(registryOpts, metrics.WithRuntimeCollectors())
	}
	registry := metrics.New(registryOpts...)

	gate, err := auth.NewGate(cfg.Relay.JWTSecret, auth.WithLogger(log.With(logger.Component("auth"))))
	if err != nil {
		return err
	}
	if !gate.Enabled() {
		log.Warn("JWT_SECRET is not set, accepting unauthenticated connections", logger.Component("auth"))
	}

	var (
		store     ratelimiter.Store
		readiness []func(context.Context) error
	)
	if cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, cfg.Redis, redis.WithLogger(log))
		if err != nil {
			return err
		}
		defer client.Close()

		store = ratelimiter.NewRedisStore(client)
		readiness = append(readiness, redis.Healthcheck(client))
		log.Info("Using Redis rate limit store", logger.Component("ratelimiter"))
	} else {
		mem := ratelimiter.NewMemoryStore(
			ratelimiter.WithSweepInterval(cfg.Relay.RateLimitSweepInterval),
			ratelimiter.WithMemoryStoreLogger(log.With(logger.Component("ratelimiter"))),
		)
		eg.Go(mem.Run(ctx))
		store = mem
		readiness = append(readiness, mem.Healthcheck)
	}

	limiter, err := ratelimiter.New(store, cfg.Relay.RateLimit(),
		ratelimiter.WithLogger(log.With(logger.Component("ratelimiter"))))
	if err != nil {
		return err
	}

	relaySrv, err := relay.NewServer(gate, registry,
		relay.WithNamespaces(cfg.Relay.Namespaces...),
		relay.WithRateLimiter(limiter),
		relay.WithAllowedOrigins(cfg.Relay.AllowedOrigins()...),
		relay.WithReadinessChecks(readiness...),
		relay.WithMaxMessageSize(cfg.Relay.MaxMessageBytes),
		relay.WithSendBufferSize(cfg.Relay.SendBuffer),
		relay.WithKeepalive(cfg.Relay.PongWait),
		relay.WithLogger(log.With(logger.Component("relay"))),
	)
	if err != nil {
		return err
	}

	if cfg.Relay.PushgatewayURL != "" {
		pusher, err := metrics.NewPusher(registry, cfg.Relay.PushgatewayURL, cfg.Relay.PrometheusJobName,
			cfg.Relay.PushInterval(), metrics.WithPusherLogger(log.With(logger.Component("metrics.push"))))
		if err != nil {
			return err
		}
		eg.Go(pusher.Run(ctx))
	}

	httpSrv, err := server.NewFromConfig(cfg.Server,
		server.WithLogger(log.With(logger.Component("server"))),
		server.WithOnShutdown(relaySrv.CloseAll),
	)
	if err != nil {
		return err
	}

	log.Info("Relay listening",
		slog.String("addr", cfg.Server.Addr()),
		slog.Any("namespaces", cfg.Relay.Namespaces),
		slog.Bool("auth", gate.Enabled()),
	)

	eg.Go(httpSrv.Run(ctx, relaySrv.Handler()))
	eg.Go(relaySrv.Run(ctx, cfg.Server.ShutdownTimeout))

	return eg.Wait()
}
