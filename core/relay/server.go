package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/relay/core/auth"
	"github.com/dmitrymomot/relay/core/health"
	"github.com/dmitrymomot/relay/core/logger"
	"github.com/dmitrymomot/relay/core/metrics"
	"github.com/dmitrymomot/relay/core/response"
	"github.com/dmitrymomot/relay/middleware"
	"github.com/dmitrymomot/relay/pkg/clientip"
)

// Server owns the namespaces and exposes them over HTTP and websocket.
type Server struct {
	gate     *auth.Gate
	registry *metrics.Registry
	limiter  Limiter

	root       *Namespace
	namespaces map[string]*Namespace
	labels     []string

	roomsMu sync.Mutex

	origins        []string
	readiness      []func(context.Context) error
	upgrader       websocket.Upgrader
	newID          func() string
	sendBuffer     int
	maxMessageSize int64
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration
	logger         *slog.Logger

	// mu guards closing and every wg.Add from a zero counter.
	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithNamespaces registers named namespaces served at /ws/{label}.
func WithNamespaces(labels ...string) ServerOption {
	return func(s *Server) {
		s.labels = append(s.labels, labels...)
	}
}

// WithRateLimiter gates join, leave and message actions in every namespace.
func WithRateLimiter(l Limiter) ServerOption {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithAllowedOrigins restricts CORS and websocket origins. "*" allows any.
func WithAllowedOrigins(origins ...string) ServerOption {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithReadinessChecks adds dependency checks for /health/ready.
func WithReadinessChecks(checks ...func(context.Context) error) ServerOption {
	return func(s *Server) {
		s.readiness = append(s.readiness, checks...)
	}
}

// WithIDGenerator overrides connection id generation.
func WithIDGenerator(fn func() string) ServerOption {
	return func(s *Server) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithSendBufferSize sets the per-connection queue length.
func WithSendBufferSize(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.sendBuffer = n
		}
	}
}

// WithMaxMessageSize limits inbound frame size in bytes.
func WithMaxMessageSize(n int64) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxMessageSize = n
		}
	}
}

// WithKeepalive sets how long to wait for a pong. Pings are sent at 9/10 of it.
func WithKeepalive(pongWait time.Duration) ServerOption {
	return func(s *Server) {
		if pongWait > 0 {
			s.pongWait = pongWait
			s.pingPeriod = pongWait * 9 / 10
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer builds a relay server. A nil gate disables authentication and a
// nil registry gets a private one.
func NewServer(gate *auth.Gate, registry *metrics.Registry, opts ...ServerOption) (*Server, error) {
	s := &Server{
		gate:           gate,
		registry:       registry,
		namespaces:     make(map[string]*Namespace),
		origins:        []string{"*"},
		newID:          uuid.NewString,
		sendBuffer:     DefaultSendBuffer,
		maxMessageSize: DefaultMaxMessageSize,
		writeWait:      DefaultWriteWait,
		pongWait:       DefaultPongWait,
		pingPeriod:     DefaultPongWait * 9 / 10,
		logger:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.gate == nil {
		g, err := auth.NewGate("")
		if err != nil {
			return nil, err
		}
		s.gate = g
	}
	if s.registry == nil {
		s.registry = metrics.New()
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	s.root = s.newNamespace(RootNamespace)
	s.namespaces[RootNamespace] = s.root
	for _, label := range s.labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		if _, ok := s.namespaces[label]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, label)
		}
		s.namespaces[label] = s.newNamespace(label)
	}

	return s, nil
}

func (s *Server) newNamespace(label string) *Namespace {
	opts := []NamespaceOption{
		WithRecorder(s.registry),
		WithRoomsChanged(s.refreshRooms),
		WithSendBuffer(s.sendBuffer),
		WithNamespaceLogger(s.logger.With(logger.Namespace(label))),
	}
	if s.limiter != nil {
		opts = append(opts, WithLimiter(s.limiter))
	}
	return NewNamespace(label, opts...)
}

// refreshRooms publishes the number of distinct rooms across all namespaces.
func (s *Server) refreshRooms() {
	s.roomsMu.Lock()
	defer s.roomsMu.Unlock()
	s.registry.SetRooms(s.RoomCount())
}

// Handler returns the HTTP surface: health, metrics and websocket endpoints.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.LoggingWithConfig(middleware.LoggingConfig{
		Logger: s.logger,
		Skip: func(r *http.Request) bool {
			return r.URL.Path == "/health" || r.URL.Path == "/metrics"
		},
	}))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/health", health.Liveness(s.registry.Uptime))
	r.Get("/health/ready", health.Readiness(s.logger, s.readiness...))
	r.Get("/metrics", s.serveMetrics)
	r.Get("/ws", s.serveNamespace(func(*http.Request) string { return RootNamespace }))
	r.Get("/ws/{namespace}", s.serveNamespace(func(r *http.Request) string {
		return chi.URLParam(r, "namespace")
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		_ = response.Error(w, response.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		_ = response.Error(w, response.ErrMethodNotAllowed)
	})

	return r
}

func (s *Server) serveMetrics(w http.ResponseWriter, r *http.Request) {
	text, err := s.registry.Render()
	if err != nil {
		s.logger.ErrorContext(r.Context(), "failed to render metrics", logger.Error(err))
		_ = response.Error(w, response.ErrInternalServerError)
		return
	}
	_ = response.Text(w, http.StatusOK, response.ContentTypeExposition, text)
}

func (s *Server) serveNamespace(label func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ns, ok := s.namespaces[label(r)]
		if !ok {
			_ = response.Error(w, response.ErrNotFound.WithError(ErrUnknownNamespace))
			return
		}

		principal, err := s.gate.AdmitRequest(r)
		if err != nil {
			s.registry.AuthFailure()
			s.logger.InfoContext(ctx, "client rejected",
				logger.Namespace(ns.label), logger.ClientIP(clientip.GetIP(r)), logger.Error(err))
			_ = response.Error(w, response.ErrUnauthorized.WithError(err))
			return
		}

		if !s.track() {
			_ = response.Error(w, response.ErrServiceUnavailable.WithError(ErrServerClosing))
			return
		}
		defer s.wg.Done()

		ws, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.DebugContext(ctx, "websocket upgrade failed",
				logger.Namespace(ns.label), logger.Error(err))
			return
		}

		c := ns.Admit(s.newID(), principal)
		if s.isClosing() {
			// Shutdown may have swept the namespaces before c was registered.
			ns.Disconnect(c)
		}
		s.logger.InfoContext(ctx, "client connected",
			logger.ConnectionID(c.id),
			logger.Namespace(ns.label),
			logger.Subject(principal.Subject()),
			logger.ClientIP(clientip.GetIP(r)),
		)

		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			s.writePump(ws, c)
		}()
		go func() {
			defer s.wg.Done()
			ns.Serve(context.WithoutCancel(ctx), c)
		}()

		s.readPump(ns, ws, c)

		s.logger.InfoContext(ctx, "client disconnected",
			logger.ConnectionID(c.id), logger.Namespace(ns.label))
	}
}

// track counts one websocket session towards Shutdown. It reports false once
// the relay is closing.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(s.origins, "*") {
		return true
	}
	return slices.ContainsFunc(s.origins, func(o string) bool {
		return strings.EqualFold(o, origin)
	})
}

// Namespace returns the namespace registered under label.
func (s *Server) Namespace(label string) (*Namespace, bool) {
	ns, ok := s.namespaces[label]
	return ns, ok
}

// Root returns the default namespace.
func (s *Server) Root() *Namespace { return s.root }

// Registry returns the metrics registry.
func (s *Server) Registry() *metrics.Registry { return s.registry }

// RoomCount sums non-empty rooms over every namespace.
func (s *Server) RoomCount() int {
	total := 0
	for _, ns := range s.namespaces {
		total += ns.RoomCount()
	}
	return total
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	total := 0
	for _, ns := range s.namespaces {
		total += ns.Len()
	}
	return total
}

// CloseAll disconnects every active connection.
func (s *Server) CloseAll() {
	for _, ns := range s.namespaces {
		for _, c := range ns.Connections() {
			ns.Disconnect(c)
		}
	}
}

// Shutdown refuses new sessions, disconnects every client and waits for
// their pumps to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	s.CloseAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run blocks until ctx is canceled and then shuts the relay down.
// It returns a function for use with errgroup.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) func() error {
	return func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("relay shutdown incomplete", logger.Error(err))
		}
		return nil
	}
}
