package auth

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/relay/pkg/jwt"
)

// Principal is the decoded payload of an accepted token.
type Principal map[string]any

// Subject returns the "sub" claim, if any.
func (p Principal) Subject() string {
	sub, _ := p["sub"].(string)
	return sub
}

// Gate decides whether a connection may be admitted.
// A gate without a secret admits everyone with no principal.
type Gate struct {
	service  *jwt.Service
	logger   *slog.Logger
	onReject func(reason error)
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger used for rejections.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithOnReject registers a callback run once per rejected admission.
func WithOnReject(fn func(reason error)) Option {
	return func(g *Gate) {
		g.onReject = fn
	}
}

// NewGate creates a gate. An empty secret disables authentication.
func NewGate(secret string, opts ...Option) (*Gate, error) {
	g := &Gate{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}

	if secret == "" {
		return g, nil
	}

	svc, err := jwt.NewFromString(secret)
	if err != nil {
		return nil, fmt.Errorf("auth gate: %w", err)
	}
	g.service = svc
	return g, nil
}

// Enabled reports whether tokens are verified.
func (g *Gate) Enabled() bool {
	return g.service != nil
}

// Admit verifies token. With auth disabled it returns a nil principal and no error.
func (g *Gate) Admit(token string) (Principal, error) {
	if !g.Enabled() {
		return nil, nil
	}

	if token == "" {
		return nil, g.reject(ErrMissingToken, nil)
	}

	claims := jwt.MapClaims{}
	if err := g.service.Parse(token, claims); err != nil {
		return nil, g.reject(ErrInvalidToken, err)
	}

	return Principal(claims), nil
}

// AdmitRequest extracts the token from r and verifies it.
func (g *Gate) AdmitRequest(r *http.Request) (Principal, error) {
	return g.Admit(TokenFromRequest(r))
}

func (g *Gate) reject(reason, cause error) error {
	if g.onReject != nil {
		g.onReject(reason)
	}
	g.logger.Warn("connection rejected", slog.Any("reason", reason), slog.Any("cause", cause))

	if cause != nil {
		return fmt.Errorf("%w: %w", reason, cause)
	}
	return reason
}

// TokenFromRequest returns the first non-empty token from the Authorization
// bearer header or the "token" query parameter.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}
