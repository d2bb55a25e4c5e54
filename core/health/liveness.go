package health

import (
	"net/http"
	"time"

	"github.com/dmitrymomot/relay/core/response"
)

// Status is the liveness body.
type Status struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime"`
}

// Liveness reports that the process is up along with its uptime in seconds.
// No dependency checks.
//
//	r.Get("/health", health.Liveness(registry.Uptime))
func Liveness(uptime func() time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_ = response.JSON(w, Status{Status: "ok", Uptime: uptime().Seconds()})
	}
}

// NoContent returns HTTP 204 without body.
func NoContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
