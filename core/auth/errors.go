package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrAdmissionRejected is the parent of every admission failure.
	ErrAdmissionRejected = errors.New("unauthorized")

	ErrMissingToken = fmt.Errorf("%w: missing token", ErrAdmissionRejected)
	ErrInvalidToken = fmt.Errorf("%w: token verification failed", ErrAdmissionRejected)
)
