package exception

import "github.com/yanun0323/errors"

var (
	ErrFatalStatus        = errors.New("relay: fatal status from provider")
	ErrControlWrite       = errors.New("relay: control write failed")
	ErrStopRequested      = errors.New("relay: stop requested")
	ErrCommandQueueFull   = errors.New("relay: command queue full")
	ErrCommandQueueClosed = errors.New("relay: command queue closed")
	ErrUnknownCommand     = errors.New("relay: unknown command")
)

var (
	ErrBrokerClosed = errors.New("broker: closed")
	ErrNoBrokers    = errors.New("broker: no seed brokers")
)

var ErrInvalidConfig = errors.New("config: invalid")
