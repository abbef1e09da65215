package ingest

import (
	"context"

	"github.com/yanun0323/errors"

	"market-relay/internal/model"
	"market-relay/pkg/exception"
	"market-relay/pkg/websocket"
)

// Inbound is the read half of a Connection. It is not safe for concurrent use.
type Inbound struct {
	conn    *Connection
	pending []model.Message
	errs    []error
}

// Recv returns the next decoded message.
//
// Per-record decode failures are returned one at a time wrapping
// exception.ErrDecode and leave the session Streaming. A lost connection is
// recovered transparently. Exhausted reconnects return
// exception.ErrReconnectExhausted and any other socket failure returns
// exception.ErrTransport; both leave the session Failed. A fatal provider
// status is returned to the caller and also leaves the session Failed.
func (in *Inbound) Recv(ctx context.Context) (model.Message, error) {
	for {
		if len(in.errs) != 0 {
			err := in.errs[0]
			in.errs = in.errs[1:]
			return nil, err
		}
		if len(in.pending) != 0 {
			msg := in.pending[0]
			in.pending[0] = nil
			in.pending = in.pending[1:]
			if status, ok := msg.(model.Status); ok && status.Status.IsFatal() {
				in.conn.fail()
				in.pending, in.errs = nil, nil
			}
			return msg, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if in.conn.State() == StateFailed {
			return nil, exception.ErrSessionFailed
		}

		msgType, payload, err := in.conn.reader.Read(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if websocket.IsConnectionLost(err) {
				if err := in.conn.reconnect(ctx, err); err != nil {
					return nil, err
				}
				continue
			}
			in.conn.fail()
			return nil, errors.Wrap(err, "read")
		}

		if msgType != websocket.MessageText && msgType != websocket.MessageBinary {
			continue
		}
		in.pending, in.errs = model.DecodeFrame(payload)
	}
}

// Outbound is the write half of a Connection. Writes are serialized with the
// reconnect handshake, so an action always lands on the current socket.
type Outbound struct {
	conn *Connection
}

// Send writes action to the live socket. While a reconnect is in progress
// the error is exception.ErrReconnectInProgress; once the session has failed
// it is exception.ErrSessionFailed. Any other error comes from the socket
// write itself.
func (out *Outbound) Send(ctx context.Context, action model.Action) error {
	return out.conn.send(ctx, action)
}
