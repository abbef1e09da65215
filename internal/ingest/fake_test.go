package ingest

import (
	"context"
	"sync"

	"github.com/yanun0323/errors"

	"market-relay/pkg/exception"
	"market-relay/pkg/websocket"
)

var errNoScript = errors.Wrap(exception.ErrTransport, "fake dialer: no script")

type readResult struct {
	msgType websocket.MessageType
	payload []byte
	err     error
}

type fakeConn struct {
	reads chan readResult

	mu       sync.Mutex
	written  []string
	writeErr error
	closed   bool
}

func newFakeConn(results ...readResult) *fakeConn {
	c := &fakeConn{reads: make(chan readResult, len(results)+8)}
	for _, r := range results {
		c.reads <- r
	}
	return c
}

func text(payload string) readResult {
	return readResult{msgType: websocket.MessageText, payload: []byte(payload)}
}

func fail(err error) readResult {
	return readResult{err: err}
}

func (c *fakeConn) Read(ctx context.Context) (websocket.MessageType, []byte, error) {
	select {
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	case r := <-c.reads:
		return r.msgType, r.payload, r.err
	}
}

func (c *fakeConn) Write(_ context.Context, _ websocket.MessageType, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, string(payload))
	return nil
}

func (c *fakeConn) Close(websocket.CloseCode, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) Written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	copy(out, c.written)
	return out
}

func (c *fakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeDialer hands out scripted dial outcomes in order.
type fakeDialer struct {
	mu    sync.Mutex
	steps []dialStep
	dials int
}

type dialStep struct {
	conn *fakeConn
	err  error
}

func (d *fakeDialer) Dial(context.Context) (websocket.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.steps) == 0 {
		return nil, errNoScript
	}
	step := d.steps[0]
	d.steps = d.steps[1:]
	if step.err != nil {
		return nil, step.err
	}
	return step.conn, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}
