package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/relay/core/logger"
	"github.com/dmitrymomot/relay/core/response"
)

// Readiness verifies every dependency check passes.
// Returns "READY" when they do, 503 Service Unavailable otherwise.
//
//	r.Get("/health/ready", health.Readiness(log, redis.Healthcheck(client)))
func Readiness(log *slog.Logger, fn ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		for _, f := range fn {
			if err := f(ctx); err != nil {
				log.ErrorContext(ctx, "Readiness check failed", logger.Error(err))
				_ = response.Error(w, response.ErrServiceUnavailable)
				return
			}
		}

		_ = response.String(w, "READY")
	}
}
