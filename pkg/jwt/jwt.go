package jwt

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// StandardClaims holds the RFC 7519 registered claims.
type StandardClaims = jwt.RegisteredClaims

// MapClaims is an arbitrary JSON object payload.
type MapClaims = jwt.MapClaims

// Claims is implemented by every payload the service can sign or parse.
type Claims = jwt.Claims

// NumericDate converts a time to the claim representation used by StandardClaims.
var NumericDate = jwt.NewNumericDate

// Service signs and verifies HS256 tokens with a shared key.
type Service struct {
	key    []byte
	parser *jwt.Parser
}

// New creates a service for the given signing key.
func New(key []byte) (*Service, error) {
	if len(key) == 0 {
		return nil, ErrMissingSigningKey
	}
	return &Service{
		key:    key,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}, nil
}

// NewFromString creates a service from a string key.
func NewFromString(key string) (*Service, error) {
	return New([]byte(key))
}

// Generate signs claims and returns the compact token.
func (s *Service) Generate(claims Claims) (string, error) {
	if claims == nil {
		return "", ErrMissingClaims
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Parse verifies the token signature and temporal claims, decoding the payload into claims.
func (s *Service) Parse(token string, claims Claims) error {
	if claims == nil {
		return ErrMissingClaims
	}

	_, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	})
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpiredToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrUnexpectedSigningMethod, err)
	default:
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
}
