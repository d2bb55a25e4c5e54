package relay

import "errors"

var (
	ErrUnknownNamespace = errors.New("unknown namespace")
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrUnknownEvent     = errors.New("unknown event")
	ErrDuplicateName    = errors.New("duplicate namespace")
	ErrConnectionClosed = errors.New("connection closed")
	ErrServerClosing    = errors.New("relay is shutting down")
)
