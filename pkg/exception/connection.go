package exception

import "github.com/yanun0323/errors"

// Connection errors
var (
	// ErrConnect is returned when the initial connect, auth or subscribe handshake fails.
	ErrConnect = errors.New("connection: connect failed")

	// ErrConnectionLost signals that the peer went away and no more data is available on the socket.
	ErrConnectionLost = errors.New("connection: lost")

	// ErrTransport is any socket failure that is not a lost connection.
	ErrTransport = errors.New("connection: transport error")

	// ErrReconnectInProgress is returned for writes while the socket is being replaced.
	ErrReconnectInProgress = errors.New("connection: reconnect in progress")

	ErrReconnectExhausted = errors.New("connection: reconnect attempts exhausted")
	ErrSessionFailed      = errors.New("connection: session failed")
	ErrInvalidTransition  = errors.New("connection: invalid state transition")
	ErrNilDialer          = errors.New("connection: nil dialer")
)
