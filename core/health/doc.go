// Package health provides HTTP handlers for service health monitoring.
//
// Handlers:
//   - Liveness: process is running, reports uptime
//   - Readiness: all dependencies are available
//   - NoContent: returns 204 for minimal overhead
//
// Dependency checks follow the func(context.Context) error signature:
//
//	r.Get("/health/ready", health.Readiness(log, redis.Healthcheck(client)))
package health
