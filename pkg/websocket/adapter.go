package websocket

import (
	"context"
	"sync"
)

// Reader is the inbound half of a connection.
type Reader interface {
	// Read blocks for the next data message. A peer that went away is
	// reported as exception.ErrConnectionLost.
	Read(ctx context.Context) (MessageType, []byte, error)
}

// Writer is the outbound half of a connection.
type Writer interface {
	Write(ctx context.Context, msgType MessageType, payload []byte) error
}

// Conn is a minimal interface for a WebSocket connection.
type Conn interface {
	Reader
	Writer
	Close(code CloseCode, reason string) error
}

// Dialer creates new connections.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Split returns the read and write halves of conn. The halves only expose
// their own capability, and writes through the returned Writer are
// serialized.
func Split(conn Conn) (Reader, Writer) {
	return readHalf{conn: conn}, &writeHalf{conn: conn}
}

type readHalf struct {
	conn Conn
}

func (r readHalf) Read(ctx context.Context) (MessageType, []byte, error) {
	return r.conn.Read(ctx)
}

type writeHalf struct {
	mu   sync.Mutex
	conn Conn
}

func (w *writeHalf) Write(ctx context.Context, msgType MessageType, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.Write(ctx, msgType, payload)
}
