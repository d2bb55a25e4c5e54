// Package middleware provides net/http middleware for the relay's HTTP surface.
//
// Logging writes one structured record per completed request, including the
// request ID set by chi's RequestID middleware and the client address:
//
//	r := chi.NewRouter()
//	r.Use(chimw.RequestID)
//	r.Use(middleware.LoggingWithConfig(middleware.LoggingConfig{
//		Logger: log,
//		Skip: func(r *http.Request) bool {
//			return r.URL.Path == "/health" || r.URL.Path == "/metrics"
//		},
//	}))
//
// A websocket session is logged once, when it ends, with status 101 and the
// session length as its duration.
package middleware
