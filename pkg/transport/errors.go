package transport

import "errors"

var (
	// ErrClosed is returned by operations on a stopped socket or connection.
	ErrClosed = errors.New("transport: closed")

	// ErrInvalidAddress is returned for a nil destination or a group address
	// that is not IPv4 multicast.
	ErrInvalidAddress = errors.New("transport: invalid address")

	// ErrNoHandler is returned when a config has no MessageHandler.
	ErrNoHandler = errors.New("transport: no message handler configured")

	ErrAlreadyStarted = errors.New("transport: already started")

	// ErrConnectionNotFound is returned by TCP.Send when no peer with that
	// remote address is connected.
	ErrConnectionNotFound = errors.New("transport: no connection to peer")

	// ErrConnectionLost is the terminal error of a Conn whose peer went away.
	// Read errors other than EOF are wrapped with it.
	ErrConnectionLost = errors.New("transport: connection lost")

	// ErrMessageTooLarge is returned for datagrams above MaxDatagramSize.
	ErrMessageTooLarge = errors.New("transport: datagram too large")
)
