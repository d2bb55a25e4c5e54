package jwt

import "errors"

var (
	ErrInvalidToken            = errors.New("invalid token")
	ErrExpiredToken            = errors.New("token has expired")
	ErrInvalidSignature        = errors.New("invalid token signature")
	ErrUnexpectedSigningMethod = errors.New("unexpected signing method")
	ErrMissingSigningKey       = errors.New("missing signing key")
	ErrMissingClaims           = errors.New("missing claims")
)
