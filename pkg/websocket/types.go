package websocket

import "time"

// MessageType represents a WebSocket message type.
// Values match RFC 6455 opcodes where applicable.
type MessageType uint8

const (
	// MessageText is a text data frame.
	MessageText MessageType = 1
	// MessageBinary is a binary data frame.
	MessageBinary MessageType = 2
	// MessageClose is a close control frame.
	MessageClose MessageType = 8
	// MessagePing is a ping control frame.
	MessagePing MessageType = 9
	// MessagePong is a pong control frame.
	MessagePong MessageType = 10
)

// CloseCode is a WebSocket close code.
type CloseCode uint16

const (
	CloseNormal         CloseCode = 1000
	CloseGoingAway      CloseCode = 1001
	CloseAbnormal       CloseCode = 1006
	CloseServiceRestart CloseCode = 1012
	CloseTryAgainLater  CloseCode = 1013
)

// Backoff defines reconnect backoff behavior.
type Backoff struct {
	// Min is the minimum backoff duration.
	Min time.Duration `yaml:"min"`
	// Max is the maximum backoff duration.
	Max time.Duration `yaml:"max"`
	// Factor multiplies the delay for each retry attempt.
	Factor float64 `yaml:"factor"`
	// Jitter adds randomization as a fraction of the delay (0-1).
	Jitter float64 `yaml:"jitter"`
}
