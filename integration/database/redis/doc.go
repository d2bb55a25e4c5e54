// Package redis connects to Redis with retry and exposes a readiness check.
//
// The relay uses Redis as a shared rate limit store so several instances
// enforce one window per connection:
//
//	client, err := redis.Connect(ctx, cfg.Redis)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	store := ratelimiter.NewRedisStore(client)
//	srv, err := relay.NewServer(gate, registry,
//		relay.WithReadinessChecks(redis.Healthcheck(client)),
//	)
//
// Configuration comes from REDIS_URL, REDIS_RETRY_ATTEMPTS,
// REDIS_RETRY_INTERVAL and REDIS_CONNECT_TIMEOUT. Both redis:// and rediss://
// URLs are accepted. Failures wrap ErrEmptyURL,
// ErrInvalidURL, ErrNotReady or ErrUnhealthy.
package redis
