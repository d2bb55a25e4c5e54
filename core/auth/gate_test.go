package auth_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/relay/core/auth"
	"github.com/dmitrymomot/relay/pkg/jwt"
)

const secret = "0123456789abcdef0123456789abcdef"

func sign(t *testing.T, key string, claims jwt.Claims) string {
	t.Helper()
	svc, err := jwt.NewFromString(key)
	require.NoError(t, err)
	token, err := svc.Generate(claims)
	require.NoError(t, err)
	return token
}

func TestGate_Disabled(t *testing.T) {
	t.Parallel()

	rejected := 0
	gate, err := auth.NewGate("", auth.WithOnReject(func(error) { rejected++ }))
	require.NoError(t, err)
	assert.False(t, gate.Enabled())

	principal, err := gate.Admit("")
	require.NoError(t, err)
	assert.Nil(t, principal)

	principal, err = gate.Admit("garbage")
	require.NoError(t, err)
	assert.Nil(t, principal)
	assert.Zero(t, rejected)
}

func TestGate_Enabled(t *testing.T) {
	t.Parallel()

	valid := sign(t, secret, jwt.MapClaims{
		"sub":  "user-1",
		"role": "editor",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	expired := sign(t, secret, jwt.StandardClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NumericDate(time.Now().Add(-time.Hour)),
	})
	foreign := sign(t, "ffffffffffffffffffffffffffffffff", jwt.StandardClaims{Subject: "user-1"})
	unsigned, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, gojwt.MapClaims{"sub": "user-1"}).
		SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	stripped := valid[:strings.LastIndex(valid, ".")+1]

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"missing", "", auth.ErrMissingToken},
		{"expired", expired, auth.ErrInvalidToken},
		{"wrong secret", foreign, auth.ErrInvalidToken},
		{"unsigned alg none", unsigned, auth.ErrInvalidToken},
		{"signature stripped", stripped, auth.ErrInvalidToken},
		{"malformed", "a.b.c", auth.ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rejected := 0
			gate, err := auth.NewGate(secret, auth.WithOnReject(func(error) { rejected++ }))
			require.NoError(t, err)

			principal, err := gate.Admit(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, auth.ErrAdmissionRejected)
			assert.Nil(t, principal)
			assert.Equal(t, 1, rejected)
		})
	}

	t.Run("valid", func(t *testing.T) {
		rejected := 0
		gate, err := auth.NewGate(secret, auth.WithOnReject(func(error) { rejected++ }))
		require.NoError(t, err)

		principal, err := gate.Admit(valid)
		require.NoError(t, err)
		assert.Equal(t, "user-1", principal.Subject())
		assert.Equal(t, "editor", principal["role"])
		assert.Zero(t, rejected)
	})
}

func TestTokenFromRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		url    string
		header string
		want   string
	}{
		{"header wins", "/ws?token=query", "Bearer header", "header"},
		{"query fallback", "/ws?token=query", "", "query"},
		{"empty bearer falls back", "/ws?token=query", "Bearer   ", "query"},
		{"non bearer scheme ignored", "/ws?token=query", "Basic abc", "query"},
		{"nothing", "/ws", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, auth.TokenFromRequest(r))
		})
	}
}

func TestGate_AdmitRequest(t *testing.T) {
	t.Parallel()

	gate, err := auth.NewGate(secret)
	require.NoError(t, err)

	token := sign(t, secret, jwt.StandardClaims{Subject: "user-2"})
	r := httptest.NewRequest("GET", "/ws/chat?token="+token, nil)

	principal, err := gate.AdmitRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "user-2", principal.Subject())
}
