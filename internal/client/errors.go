package client

import "errors"

var (
	// ErrMissingCredential is returned by Connect when no bearer token is
	// available. The connect URL embeds the token, so there is nothing to
	// attempt without one.
	ErrMissingCredential = errors.New("missing bearer credential")

	// ErrNotConnected is returned by operations that require an open
	// transport.
	ErrNotConnected = errors.New("not connected")

	// ErrConnectionSuperseded is returned by Connect when the connection was
	// torn down while the dial was still in flight.
	ErrConnectionSuperseded = errors.New("connection superseded")

	// ErrSendBufferFull is returned when the outbound write buffer cannot
	// accept another frame.
	ErrSendBufferFull = errors.New("send buffer full")
)
