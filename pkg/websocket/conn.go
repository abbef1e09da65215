package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const closeWriteWait = time.Second

type conn struct {
	ws        *websocket.Conn
	opt       Option
	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newConn(ws *websocket.Conn, opt Option) *conn {
	c := &conn{
		ws:   ws,
		opt:  opt,
		done: make(chan struct{}),
	}
	if opt.ReadLimit > 0 {
		ws.SetReadLimit(opt.ReadLimit)
	}
	if opt.PongWait > 0 {
		_ = ws.SetReadDeadline(time.Now().Add(opt.PongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(opt.PongWait))
		})
	}
	if opt.PingInterval > 0 {
		go c.keepalive()
	}
	return c
}

func (c *conn) Read(ctx context.Context) (MessageType, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	// unblock the pending read when ctx ends
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	msgType, payload, err := c.ws.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, ctxErr
		}
		return 0, nil, classify(err)
	}
	if c.opt.PongWait > 0 {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opt.PongWait))
	}
	return MessageType(msgType), payload, nil
}

func (c *conn) Write(ctx context.Context, msgType MessageType, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(c.opt.WriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return classify(err)
	}
	if err := c.ws.WriteMessage(int(msgType), payload); err != nil {
		return classify(err)
	}
	return nil
}

func (c *conn) Close(code CloseCode, reason string) error {
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(int(code), reason)
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func (c *conn) keepalive() {
	ticker := time.NewTicker(c.opt.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opt.WriteWait)); err != nil {
				return
			}
		}
	}
}
